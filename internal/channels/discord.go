package channels

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/bus"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/config"
)

func init() {
	Register("discord", newDiscordChannel)
}

// DiscordChannel delivers reminders as messages with a button component.
// Refs have the form "channelID:messageID".
type DiscordChannel struct {
	session      *discordgo.Session
	bus          *bus.MessageBus
	allowedUsers map[string]bool
}

func newDiscordChannel(cfg *config.Config, msgBus *bus.MessageBus) (Channel, error) {
	dcfg := cfg.Channels.Discord
	session, err := discordgo.New("Bot " + dcfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent
	return &DiscordChannel{
		session:      session,
		bus:          msgBus,
		allowedUsers: allowList(dcfg.AllowedUsers),
	}, nil
}

func (c *DiscordChannel) Name() string { return "discord" }

func (c *DiscordChannel) Start(ctx context.Context) error {
	c.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if msg, ok := c.fromMessage(m); ok {
			c.bus.PublishInbound(msg)
		}
	})
	c.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionMessageComponent {
			return
		}
		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredMessageUpdate,
		})
		if err != nil {
			slog.Warn("discord: failed to acknowledge interaction", "error", err)
		}
		if msg, ok := c.fromInteraction(i); ok {
			c.bus.PublishInbound(msg)
		}
	})
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("discord: failed to open websocket: %w", err)
	}
	return nil
}

func (c *DiscordChannel) fromMessage(m *discordgo.MessageCreate) (bus.InboundMessage, bool) {
	if m.Author == nil || m.Author.Bot {
		return bus.InboundMessage{}, false
	}
	if !c.IsAllowed(m.Author.ID) {
		slog.Warn("discord: message from disallowed user", "userID", m.Author.ID)
		return bus.InboundMessage{}, false
	}
	msg := bus.InboundMessage{
		Channel:  "discord",
		SenderID: m.Author.ID,
		ChatID:   m.ChannelID,
		Content:  m.Content,
	}
	if m.MessageReference != nil && m.MessageReference.MessageID != "" {
		msg.ReplyTo = FormatRef(m.ChannelID, m.MessageReference.MessageID)
	}
	return msg, true
}

func (c *DiscordChannel) fromInteraction(i *discordgo.InteractionCreate) (bus.InboundMessage, bool) {
	if i.Message == nil {
		return bus.InboundMessage{}, false
	}
	var userID string
	switch {
	case i.Member != nil && i.Member.User != nil:
		userID = i.Member.User.ID
	case i.User != nil:
		userID = i.User.ID
	default:
		return bus.InboundMessage{}, false
	}
	if !c.IsAllowed(userID) {
		slog.Warn("discord: button press from disallowed user", "userID", userID)
		return bus.InboundMessage{}, false
	}
	return bus.InboundMessage{
		Channel:   "discord",
		SenderID:  userID,
		ChatID:    i.ChannelID,
		Action:    i.MessageComponentData().CustomID,
		SourceRef: FormatRef(i.ChannelID, i.Message.ID),
	}, true
}

func (c *DiscordChannel) Stop() error {
	return c.session.Close()
}

func (c *DiscordChannel) Send(msg bus.OutboundMessage) error {
	_, err := c.session.ChannelMessageSend(msg.ChatID, msg.Content)
	if err != nil {
		return fmt.Errorf("discord: failed to send message: %w", err)
	}
	return nil
}

func (c *DiscordChannel) Notify(ctx context.Context, recipient, text string) (bus.MessageRef, error) {
	return c.notify(ctx, recipient, &discordgo.MessageSend{Content: text})
}

func (c *DiscordChannel) NotifyWithControl(ctx context.Context, recipient, text string, control Control) (bus.MessageRef, error) {
	return c.notify(ctx, recipient, &discordgo.MessageSend{
		Content:    text,
		Components: discordButtonRow(control),
	})
}

func (c *DiscordChannel) notify(ctx context.Context, recipient string, data *discordgo.MessageSend) (bus.MessageRef, error) {
	m, err := c.session.ChannelMessageSendComplex(recipient, data, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("discord: failed to send message: %w", err)
	}
	return FormatRef(m.ChannelID, m.ID), nil
}

func (c *DiscordChannel) RemoveControl(ctx context.Context, ref bus.MessageRef) error {
	channelID, messageID, err := ParseRef(ref)
	if err != nil {
		return err
	}
	none := []discordgo.MessageComponent{}
	edit := discordgo.NewMessageEdit(channelID, messageID)
	edit.Components = &none
	if _, err := c.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: failed to remove components: %w", err)
	}
	return nil
}

func (c *DiscordChannel) Delete(ctx context.Context, ref bus.MessageRef) error {
	channelID, messageID, err := ParseRef(ref)
	if err != nil {
		return err
	}
	if err := c.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: failed to delete message: %w", err)
	}
	return nil
}

func (c *DiscordChannel) IsAllowed(senderID string) bool {
	return isAllowed(c.allowedUsers, senderID)
}

func discordButtonRow(control Control) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    control.Label,
					Style:    discordgo.PrimaryButton,
					CustomID: control.Action,
				},
			},
		},
	}
}
