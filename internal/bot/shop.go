package bot

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"

	"github.com/bwmarrin/discordgo"

	"github.com/FAST22588/bot-Discord-v3/internal/currency"
	"github.com/FAST22588/bot-Discord-v3/internal/drive"
	"github.com/FAST22588/bot-Discord-v3/internal/ledger"
)

const (
	shopSelectID = "shop_select"

	// Discord select menus cap at 25 options.
	maxMenuOptions = 25

	noneValue = "__none__"
)

func (b *Bot) handleShop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	items, err := b.ledger.ListCatalog(contextOf(i))
	if err != nil {
		b.log.Error().Err(err).Msg("catalog listing failed")
		b.respond(s, i, "ระบบขัดข้อง กรุณาลองใหม่ภายหลัง")
		return
	}

	options := []discordgo.SelectMenuOption{}
	for _, item := range items {
		if len(options) == maxMenuOptions {
			break
		}
		// select menu labels cap at 100 characters
		label := truncateRunes(item.Name, 100)
		options = append(options, discordgo.SelectMenuOption{
			Label:       label,
			Value:       item.Name,
			Description: "ราคา " + currency.FormatBaht(item.PriceCents),
		})
	}
	if len(options) == 0 {
		options = []discordgo.SelectMenuOption{{
			Label:       "ยังไม่มีสินค้า",
			Value:       noneValue,
			Description: "ให้แอดมินเพิ่มด้วย /set_item",
			Default:     true,
		}}
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "โปรดเลือกรายการที่ต้องการซื้อจากเมนูด้านล่าง:",
			Flags:   discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.SelectMenu{
							CustomID:    shopSelectID,
							Placeholder: "เลือกรายการที่ต้องการซื้อ...",
							Options:     options,
						},
					},
				},
			},
		},
	})
	if err != nil {
		b.log.Error().Err(err).Msg("shop menu respond failed")
	}
}

func (b *Bot) handleShopSelect(s *discordgo.Session, i *discordgo.InteractionCreate) {
	choice := i.MessageComponentData().Values[0]
	if choice == noneValue {
		b.respond(s, i, "ยังไม่มีสินค้าให้ซื้อ")
		return
	}

	user := interactionUser(i)
	discordID, err := parseDiscordID(user.ID)
	if err != nil {
		b.respond(s, i, "ไม่สามารถอ่านบัญชีผู้ใช้ได้")
		return
	}

	// The download can take a while; defer the reply first.
	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		b.log.Error().Err(err).Msg("defer failed")
		return
	}

	ctx := contextOf(i)
	result, err := b.ledger.AttemptPurchase(ctx, discordID, choice)
	if err != nil {
		b.followup(s, i, &discordgo.WebhookParams{Content: "❌ " + purchaseErrorText(err, choice)})
		return
	}

	if b.linkDelivery {
		b.deliverLink(s, i, result)
		return
	}
	b.deliverFile(s, i, discordID, result)
}

func purchaseErrorText(err error, itemName string) string {
	var insufficient *ledger.InsufficientFundsError
	switch {
	case errors.Is(err, ledger.ErrItemNotFound):
		return "ไม่พบรายการ `" + itemName + "`"
	case errors.As(err, &insufficient):
		return "ยอดเงินไม่พอ ต้องการเพิ่มอีก " + currency.FormatBaht(insufficient.Shortfall)
	default:
		return "ระบบขัดข้อง กรุณาลองใหม่ภายหลัง"
	}
}

// deliverFile downloads the asset and uploads it. On any fetch failure
// the purchase is refunded, at most once per purchase reference.
func (b *Bot) deliverFile(s *discordgo.Session, i *discordgo.InteractionCreate, discordID int64, result *ledger.PurchaseResult) {
	ctx := contextOf(i)

	path, size, err := b.fetcher.Download(ctx, result.DriveID)
	if err != nil {
		b.log.Warn().Err(err).Str("reference", result.Reference).Msg("download failed")
		b.refundOnce(s, i, discordID, result, err)
		return
	}
	defer os.RemoveAll(filepath.Dir(path))

	if size > drive.SizeWarnLimit {
		b.followup(s, i, &discordgo.WebhookParams{
			Content: "⚠️ ไฟล์มีขนาดใหญ่กว่า 8MB อาจส่งไม่สำเร็จบนเซิร์ฟเวอร์ที่ไม่มี Nitro/Boost\n" +
				"ให้แอดมินบีบอัด/ลดขนาดไฟล์ก่อน หรือส่งผ่านลิงก์แทน",
		})
	}

	b.followup(s, i, &discordgo.WebhookParams{
		Content: "✅ ชำระเงินสำเร็จ: **" + result.ItemName + "** — " +
			currency.FormatBaht(result.PricePaid) +
			"\nยอดเงินคงเหลือ: **" + currency.FormatBaht(result.NewBalance) + "**",
	})

	file, err := os.Open(path)
	if err != nil {
		b.log.Error().Err(err).Msg("open downloaded file failed")
		b.refundOnce(s, i, discordID, result, err)
		return
	}
	defer file.Close()

	_, err = s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: "นี่คือไฟล์ของคุณ:",
		Flags:   discordgo.MessageFlagsEphemeral,
		Files: []*discordgo.File{{
			Name:   result.ItemName + ".mp4",
			Reader: file,
		}},
	})
	if err != nil {
		// Paid and fetched but the upload itself failed. No refund:
		// the asset is intact and an admin can resend it.
		b.log.Error().Err(err).Str("reference", result.Reference).Msg("upload failed")
		b.followup(s, i, &discordgo.WebhookParams{
			Content: "⚠️ อัปโหลดไฟล์ล้มเหลว: " + err.Error(),
		})
	}
}

// deliverLink sends a direct-download URL plus a QR code instead of the
// file itself.
func (b *Bot) deliverLink(s *discordgo.Session, i *discordgo.InteractionCreate, result *ledger.PurchaseResult) {
	link := drive.DirectLink(result.DriveID)

	params := &discordgo.WebhookParams{
		Content: "✅ ชำระเงินสำเร็จ: **" + result.ItemName + "** — " +
			currency.FormatBaht(result.PricePaid) +
			"\nยอดเงินคงเหลือ: **" + currency.FormatBaht(result.NewBalance) + "**" +
			"\nลิงก์ดาวน์โหลดของคุณ: " + link,
	}
	if png, err := drive.QRCode(link); err == nil {
		params.Files = []*discordgo.File{{
			Name:        "download_qr.png",
			ContentType: "image/png",
			Reader:      bytes.NewReader(png),
		}}
	}
	b.followup(s, i, params)
}

// refundOnce runs the compensating credit behind the refund guard so a
// repeated failure path can never double-refund one purchase.
func (b *Bot) refundOnce(s *discordgo.Session, i *discordgo.InteractionCreate, discordID int64, result *ledger.PurchaseResult, cause error) {
	ctx := contextOf(i)

	first, err := b.guard.Begin(result.Reference)
	if err != nil {
		b.log.Error().Err(err).Str("reference", result.Reference).Msg("refund guard failed")
		b.followup(s, i, &discordgo.WebhookParams{
			Content: "⚠️ ดาวน์โหลดไฟล์ไม่สำเร็จ และระบบคืนเงินขัดข้อง กรุณาติดต่อแอดมิน (อ้างอิง: " + result.Reference + ")",
		})
		return
	}
	if !first {
		b.followup(s, i, &discordgo.WebhookParams{
			Content: "⚠️ ดาวน์โหลดไฟล์ไม่สำเร็จ: " + cause.Error() + "\nรายการนี้ได้รับการคืนเงินไปแล้ว",
		})
		return
	}

	if err := b.ledger.Compensate(ctx, discordID, result.Reference, result.PricePaid); err != nil {
		// Debited but not refunded; reference stays pending in the
		// guard for the ops reconciliation endpoint.
		b.log.Error().Err(err).Str("reference", result.Reference).Msg("compensation failed")
		b.followup(s, i, &discordgo.WebhookParams{
			Content: "⚠️ ดาวน์โหลดไฟล์ไม่สำเร็จ และคืนเงินอัตโนมัติไม่สำเร็จ กรุณาติดต่อแอดมิน (อ้างอิง: " + result.Reference + ")",
		})
		return
	}
	if err := b.guard.MarkDone(result.Reference); err != nil {
		b.log.Error().Err(err).Str("reference", result.Reference).Msg("refund guard mark failed")
	}

	b.followup(s, i, &discordgo.WebhookParams{
		Content: "⚠️ ดาวน์โหลดไฟล์ไม่สำเร็จ: " + cause.Error() + "\nได้ทำการคืนเงินแล้ว",
	})
}
