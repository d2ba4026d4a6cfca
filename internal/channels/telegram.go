package channels

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/bus"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/config"
)

func init() {
	Register("telegram", newTelegramChannel)
}

// TelegramChannel delivers reminders as bot messages with an inline button.
// Refs have the form "chatID:messageID".
type TelegramChannel struct {
	bot          *tgbotapi.BotAPI
	bus          *bus.MessageBus
	allowedUsers map[string]bool
	stopCh       chan struct{}
	stopOnce     sync.Once
}

func newTelegramChannel(cfg *config.Config, msgBus *bus.MessageBus) (Channel, error) {
	tcfg := cfg.Channels.Telegram
	return NewTelegramChannel(tcfg.Token, tgbotapi.APIEndpoint, &http.Client{Timeout: 90 * time.Second}, tcfg.AllowedUsers, msgBus)
}

// NewTelegramChannel connects to the Bot API at endpoint (a format string
// taking the token and the method name).
func NewTelegramChannel(token, endpoint string, client *http.Client, allowedUsers []string, msgBus *bus.MessageBus) (*TelegramChannel, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramChannel{
		bot:          bot,
		bus:          msgBus,
		allowedUsers: allowList(allowedUsers),
		stopCh:       make(chan struct{}),
	}, nil
}

func (c *TelegramChannel) Name() string { return "telegram" }

func (c *TelegramChannel) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				c.handleUpdate(update)
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case <-c.stopCh:
				c.bot.StopReceivingUpdates()
				return
			}
		}
	}()
	return nil
}

func (c *TelegramChannel) handleUpdate(update tgbotapi.Update) {
	if cq := update.CallbackQuery; cq != nil {
		c.handleCallback(cq)
		return
	}

	m := update.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return
	}
	senderID := strconv.FormatInt(m.From.ID, 10)
	if !c.IsAllowed(senderID) {
		slog.Warn("telegram: message from disallowed user", "senderID", senderID)
		return
	}
	chatID := strconv.FormatInt(m.Chat.ID, 10)
	msg := bus.InboundMessage{
		Channel:  "telegram",
		SenderID: senderID,
		ChatID:   chatID,
		Content:  m.Text,
	}
	if m.ReplyToMessage != nil {
		msg.ReplyTo = FormatRef(chatID, strconv.Itoa(m.ReplyToMessage.MessageID))
	}
	c.bus.PublishInbound(msg)
}

func (c *TelegramChannel) handleCallback(cq *tgbotapi.CallbackQuery) {
	// Answer first so the client stops showing the progress spinner.
	if _, err := c.bot.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		slog.Warn("telegram: failed to answer callback", "error", err)
	}
	if cq.From == nil || cq.Message == nil || cq.Message.Chat == nil {
		return
	}
	senderID := strconv.FormatInt(cq.From.ID, 10)
	if !c.IsAllowed(senderID) {
		slog.Warn("telegram: button press from disallowed user", "senderID", senderID)
		return
	}
	chatID := strconv.FormatInt(cq.Message.Chat.ID, 10)
	c.bus.PublishInbound(bus.InboundMessage{
		Channel:   "telegram",
		SenderID:  senderID,
		ChatID:    chatID,
		Action:    cq.Data,
		SourceRef: FormatRef(chatID, strconv.Itoa(cq.Message.MessageID)),
	})
}

func (c *TelegramChannel) Stop() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	return nil
}

func (c *TelegramChannel) Send(msg bus.OutboundMessage) error {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chatID %q: %w", msg.ChatID, err)
	}
	m := tgbotapi.NewMessage(chatID, msg.Content)
	_, err = c.bot.Send(m)
	return err
}

func (c *TelegramChannel) Notify(ctx context.Context, recipient, text string) (bus.MessageRef, error) {
	return c.notify(ctx, recipient, text, nil)
}

func (c *TelegramChannel) NotifyWithControl(ctx context.Context, recipient, text string, control Control) (bus.MessageRef, error) {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(control.Label, control.Action)),
	)
	return c.notify(ctx, recipient, text, keyboard)
}

func (c *TelegramChannel) notify(ctx context.Context, recipient, text string, markup interface{}) (bus.MessageRef, error) {
	chatID, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return "", fmt.Errorf("telegram: invalid chatID %q: %w", recipient, err)
	}
	m := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		m.ReplyMarkup = markup
	}

	var sent tgbotapi.Message
	err = withContext(ctx, func() error {
		var sendErr error
		sent, sendErr = c.bot.Send(m)
		return sendErr
	})
	if err != nil {
		return "", fmt.Errorf("telegram: send: %w", err)
	}
	return FormatRef(recipient, strconv.Itoa(sent.MessageID)), nil
}

func (c *TelegramChannel) RemoveControl(ctx context.Context, ref bus.MessageRef) error {
	chatID, msgID, err := parseTelegramRef(ref)
	if err != nil {
		return err
	}
	empty := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, msgID, empty)
	return withContext(ctx, func() error {
		if _, err := c.bot.Request(edit); err != nil {
			return fmt.Errorf("telegram: remove keyboard: %w", err)
		}
		return nil
	})
}

func (c *TelegramChannel) Delete(ctx context.Context, ref bus.MessageRef) error {
	chatID, msgID, err := parseTelegramRef(ref)
	if err != nil {
		return err
	}
	return withContext(ctx, func() error {
		if _, err := c.bot.Request(tgbotapi.NewDeleteMessage(chatID, msgID)); err != nil {
			return fmt.Errorf("telegram: delete message: %w", err)
		}
		return nil
	})
}

func (c *TelegramChannel) IsAllowed(senderID string) bool {
	return isAllowed(c.allowedUsers, senderID)
}

func parseTelegramRef(ref bus.MessageRef) (int64, int, error) {
	chat, msg, err := ParseRef(ref)
	if err != nil {
		return 0, 0, err
	}
	chatID, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("telegram: invalid chatID in ref %q: %w", ref, err)
	}
	msgID, err := strconv.Atoi(msg)
	if err != nil {
		return 0, 0, fmt.Errorf("telegram: invalid message id in ref %q: %w", ref, err)
	}
	return chatID, msgID, nil
}
