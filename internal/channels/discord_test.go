package channels

import (
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/bus"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/config"
)

func newTestDiscord(t *testing.T, allowed []string) *DiscordChannel {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Channels.Discord.Token = "token"
	cfg.Channels.Discord.AllowedUsers = allowed
	ch, err := newDiscordChannel(cfg, bus.NewMessageBus(4))
	if err != nil {
		t.Fatalf("newDiscordChannel: %v", err)
	}
	return ch.(*DiscordChannel)
}

func TestDiscordFromInteraction(t *testing.T) {
	ch := newTestDiscord(t, nil)

	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:      discordgo.InteractionMessageComponent,
		ChannelID: "chan",
		Message:   &discordgo.Message{ID: "msg"},
		Member:    &discordgo.Member{User: &discordgo.User{ID: "u1"}},
		Data:      discordgo.MessageComponentInteractionData{CustomID: bus.ActionAcknowledge},
	}}

	msg, ok := ch.fromInteraction(i)
	if !ok {
		t.Fatal("expected interaction to be accepted")
	}
	if !msg.IsAcknowledge() || msg.AcknowledgedRef() != "chan:msg" || msg.SenderID != "u1" {
		t.Errorf("unexpected inbound %+v", msg)
	}
}

func TestDiscordFromMessage(t *testing.T) {
	ch := newTestDiscord(t, []string{"u1"})

	reply := &discordgo.MessageCreate{Message: &discordgo.Message{
		ChannelID:        "chan",
		Content:          "готово",
		Author:           &discordgo.User{ID: "u1"},
		MessageReference: &discordgo.MessageReference{MessageID: "msg"},
	}}
	msg, ok := ch.fromMessage(reply)
	if !ok || msg.ReplyTo != "chan:msg" {
		t.Errorf("reply not mapped: %+v", msg)
	}

	bot := &discordgo.MessageCreate{Message: &discordgo.Message{Author: &discordgo.User{ID: "u1", Bot: true}}}
	if _, ok := ch.fromMessage(bot); ok {
		t.Error("bot messages should be skipped")
	}

	stranger := &discordgo.MessageCreate{Message: &discordgo.Message{Author: &discordgo.User{ID: "u2"}, Content: "/start"}}
	if _, ok := ch.fromMessage(stranger); ok {
		t.Error("disallowed user should be skipped")
	}
}

func TestDiscordButtonRow(t *testing.T) {
	row := discordButtonRow(Control{Label: "Выполнено", Action: bus.ActionAcknowledge})
	if len(row) != 1 {
		t.Fatalf("expected one row, got %d", len(row))
	}
	actions, ok := row[0].(discordgo.ActionsRow)
	if !ok || len(actions.Components) != 1 {
		t.Fatalf("unexpected row %+v", row[0])
	}
	btn, ok := actions.Components[0].(discordgo.Button)
	if !ok || btn.CustomID != bus.ActionAcknowledge || btn.Label != "Выполнено" {
		t.Errorf("unexpected button %+v", actions.Components[0])
	}
}
