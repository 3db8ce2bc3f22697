// Package bot wires the ledger to Discord: slash commands, the shop
// select menu, and ephemeral replies. All user-facing text is Thai.
package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/FAST22588/bot-Discord-v3/internal/drive"
	"github.com/FAST22588/bot-Discord-v3/internal/ledger"
	"github.com/FAST22588/bot-Discord-v3/internal/refund"
)

// Bot owns the Discord session and routes interactions to the ledger.
type Bot struct {
	session *discordgo.Session
	ledger  *ledger.Service
	fetcher *drive.Fetcher
	guard   *refund.Guard

	admins       map[string]struct{}
	linkDelivery bool
	log          zerolog.Logger
}

// New builds the bot. adminIDs is the static allow-list for mutating
// admin commands; linkDelivery switches from file upload to shared-link
// delivery.
func New(token string, svc *ledger.Service, fetcher *drive.Fetcher, guard *refund.Guard,
	adminIDs []string, linkDelivery bool, log zerolog.Logger) (*Bot, error) {

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	admins := make(map[string]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}

	return &Bot{
		session:      session,
		ledger:       svc,
		fetcher:      fetcher,
		guard:        guard,
		admins:       admins,
		linkDelivery: linkDelivery,
		log:          log.With().Str("component", "bot").Logger(),
	}, nil
}

// Start opens the gateway connection and registers the slash commands
// globally.
func (b *Bot) Start() error {
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.log.Info().
			Str("user", r.User.Username).
			Str("user_id", r.User.ID).
			Msg("logged in")
	})
	b.session.AddHandler(b.onInteraction)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}

	for _, cmd := range commands() {
		if _, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, "", cmd); err != nil {
			return fmt.Errorf("register command %s: %w", cmd.Name, err)
		}
	}
	return nil
}

func (b *Bot) Stop() error {
	return b.session.Close()
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		switch data.Name {
		case "balance":
			b.handleBalance(s, i)
		case "history":
			b.handleHistory(s, i)
		case "list_items":
			b.handleListItems(s, i)
		case "shop":
			b.handleShop(s, i)
		case "add_funds":
			b.handleAddFunds(s, i)
		case "set_item":
			b.handleSetItem(s, i)
		case "remove_item":
			b.handleRemoveItem(s, i)
		}
	case discordgo.InteractionMessageComponent:
		if i.MessageComponentData().CustomID == shopSelectID {
			b.handleShopSelect(s, i)
		}
	}
}

// contextOf gives handlers a context for store calls. The gateway does
// not carry one per interaction.
func contextOf(_ *discordgo.InteractionCreate) context.Context {
	return context.Background()
}

// interactionUser works for both guild (Member) and DM (User)
// interactions.
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil {
		return i.Member.User
	}
	return i.User
}

func (b *Bot) isAdmin(userID string) bool {
	_, ok := b.admins[userID]
	return ok
}

func (b *Bot) respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.log.Error().Err(err).Msg("interaction respond failed")
	}
}

func (b *Bot) followup(s *discordgo.Session, i *discordgo.InteractionCreate, params *discordgo.WebhookParams) {
	params.Flags = discordgo.MessageFlagsEphemeral
	if _, err := s.FollowupMessageCreate(i.Interaction, true, params); err != nil {
		b.log.Error().Err(err).Msg("followup failed")
	}
}
