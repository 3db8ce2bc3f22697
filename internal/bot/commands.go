package bot

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/FAST22588/bot-Discord-v3/internal/currency"
	"github.com/FAST22588/bot-Discord-v3/internal/drive"
	"github.com/FAST22588/bot-Discord-v3/internal/models"
)

// Discord caps a message at 2000 characters; history output is trimmed
// below that.
const maxMessageLen = 1900

// truncateRunes cuts s to at most n runes. Discord limits are in
// characters, and a byte slice could split a Thai rune.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "balance",
			Description: "เช็คยอดเงินของคุณ",
		},
		{
			Name:        "history",
			Description: "ดูประวัติการซื้อของคุณ (ล่าสุด 50 รายการ)",
		},
		{
			Name:        "list_items",
			Description: "ดูรายการทั้งหมดในร้าน",
		},
		{
			Name:        "shop",
			Description: "เปิดเมนูร้านค้า: เลือกรายการ ซื้อ และรับไฟล์",
		},
		{
			Name:        "add_funds",
			Description: "[ADMIN] เติมเงินให้ผู้ใช้ (หน่วยบาท)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "เลือกสมาชิก",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionNumber,
					Name:        "amount_baht",
					Description: "จำนวนเงิน (บาท)",
					Required:    true,
				},
			},
		},
		{
			Name:        "set_item",
			Description: "[ADMIN] เพิ่ม/แก้ไขรายการ (ชื่อ, ราคา(บาท), Google Drive link/ID)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "ชื่อรายการ",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionNumber,
					Name:        "price_baht",
					Description: "ราคา (บาท)",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "drive_link_or_id",
					Description: "ลิงก์หรือ file id จาก Google Drive",
					Required:    true,
				},
			},
		},
		{
			Name:        "remove_item",
			Description: "[ADMIN] ลบรายการออกจากแคตตาล็อก",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "ชื่อรายการ",
					Required:    true,
				},
			},
		},
	}
}

func optionMap(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	opts := i.ApplicationCommandData().Options
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, opt := range opts {
		m[opt.Name] = opt
	}
	return m
}

func parseDiscordID(id string) (int64, error) {
	return strconv.ParseInt(id, 10, 64)
}

func (b *Bot) handleBalance(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	discordID, err := parseDiscordID(user.ID)
	if err != nil {
		b.respond(s, i, "ไม่สามารถอ่านบัญชีผู้ใช้ได้")
		return
	}

	balance, err := b.ledger.Balance(contextOf(i), discordID)
	if err != nil {
		b.log.Error().Err(err).Msg("balance lookup failed")
		b.respond(s, i, "ระบบขัดข้อง กรุณาลองใหม่ภายหลัง")
		return
	}
	b.respond(s, i, "ยอดเงินคงเหลือของคุณ: **"+currency.FormatBaht(balance)+"**")
}

func (b *Bot) handleHistory(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	discordID, err := parseDiscordID(user.ID)
	if err != nil {
		b.respond(s, i, "ไม่สามารถอ่านบัญชีผู้ใช้ได้")
		return
	}

	records, err := b.ledger.ListHistory(contextOf(i), discordID)
	if err != nil {
		b.log.Error().Err(err).Msg("history lookup failed")
		b.respond(s, i, "ระบบขัดข้อง กรุณาลองใหม่ภายหลัง")
		return
	}
	if len(records) == 0 {
		b.respond(s, i, "ยังไม่มีประวัติการซื้อ")
		return
	}

	lines := make([]string, 0, len(records))
	for _, rec := range records {
		line := "• " + rec.CreatedAt.Local().Format("2006-01-02 15:04") +
			" — " + rec.ItemName + " — " + currency.FormatBaht(rec.PriceCents)
		if rec.RefundedAt != nil {
			line += " (คืนเงินแล้ว)"
		}
		lines = append(lines, line)
	}

	msg := "ประวัติการซื้อของคุณ:\n" + strings.Join(lines, "\n")
	if cut := truncateRunes(msg, maxMessageLen); cut != msg {
		msg = cut + "\n..."
	}
	b.respond(s, i, msg)
}

func (b *Bot) handleListItems(s *discordgo.Session, i *discordgo.InteractionCreate) {
	items, err := b.ledger.ListCatalog(contextOf(i))
	if err != nil {
		b.log.Error().Err(err).Msg("catalog listing failed")
		b.respond(s, i, "ระบบขัดข้อง กรุณาลองใหม่ภายหลัง")
		return
	}
	if len(items) == 0 {
		b.respond(s, i, "ยังไม่มีรายการในร้าน")
		return
	}

	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, "• "+item.Name+" — "+currency.FormatBaht(item.PriceCents))
	}
	b.respond(s, i, "รายการทั้งหมด:\n"+strings.Join(lines, "\n"))
}

func (b *Bot) handleAddFunds(s *discordgo.Session, i *discordgo.InteractionCreate) {
	caller := interactionUser(i)
	if !b.isAdmin(caller.ID) {
		b.respond(s, i, "คำสั่งนี้สำหรับแอดมินเท่านั้น")
		return
	}

	opts := optionMap(i)
	target := opts["user"].UserValue(s)
	amountBaht := opts["amount_baht"].FloatValue()

	discordID, err := parseDiscordID(target.ID)
	if err != nil {
		b.respond(s, i, "ไม่สามารถอ่านบัญชีผู้ใช้ได้")
		return
	}

	cents := currency.ToCents(amountBaht)
	newBalance, err := b.ledger.CreditAccount(contextOf(i), discordID, cents)
	if err != nil {
		b.log.Error().Err(err).Msg("credit failed")
		b.respond(s, i, "เติมเงินไม่สำเร็จ: จำนวนเงินไม่ถูกต้องหรือระบบขัดข้อง")
		return
	}

	b.respond(s, i, "เติมเงินให้ "+target.Mention()+
		" จำนวน "+currency.FormatBaht(cents)+" เรียบร้อย\nยอดใหม่: **"+
		currency.FormatBaht(newBalance)+"**")
}

func (b *Bot) handleSetItem(s *discordgo.Session, i *discordgo.InteractionCreate) {
	caller := interactionUser(i)
	if !b.isAdmin(caller.ID) {
		b.respond(s, i, "คำสั่งนี้สำหรับแอดมินเท่านั้น")
		return
	}

	opts := optionMap(i)
	name := strings.TrimSpace(opts["name"].StringValue())
	priceBaht := opts["price_baht"].FloatValue()
	driveID := drive.ParseID(opts["drive_link_or_id"].StringValue())

	item := &models.CatalogItem{
		Name:       name,
		DriveID:    driveID,
		PriceCents: currency.ToCents(priceBaht),
	}
	if err := b.ledger.UpsertCatalogItem(contextOf(i), item); err != nil {
		b.log.Error().Err(err).Str("item", name).Msg("upsert failed")
		b.respond(s, i, "บันทึกรายการไม่สำเร็จ: ข้อมูลไม่ถูกต้องหรือระบบขัดข้อง")
		return
	}

	b.respond(s, i, "บันทึกรายการ **"+name+"** ราคา "+
		currency.FormatBaht(item.PriceCents)+" (drive id: `"+driveID+"`) เรียบร้อย")
}

func (b *Bot) handleRemoveItem(s *discordgo.Session, i *discordgo.InteractionCreate) {
	caller := interactionUser(i)
	if !b.isAdmin(caller.ID) {
		b.respond(s, i, "คำสั่งนี้สำหรับแอดมินเท่านั้น")
		return
	}

	name := strings.TrimSpace(optionMap(i)["name"].StringValue())
	removed, err := b.ledger.RemoveCatalogItem(contextOf(i), name)
	if err != nil {
		b.log.Error().Err(err).Str("item", name).Msg("remove failed")
		b.respond(s, i, "ลบรายการไม่สำเร็จ: ระบบขัดข้อง")
		return
	}
	if removed {
		b.respond(s, i, "ลบรายการ **"+name+"** เรียบร้อย")
	} else {
		b.respond(s, i, "ไม่พบรายการ **"+name+"**")
	}
}
