package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/bus"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/reminder"
)

const (
	msgStart        = "Привет! Используйте команду /schedule, чтобы настроить сообщение."
	msgScheduled    = "Сообщение запланировано на %s."
	msgChatID       = "Your chat ID is: %s"
	msgNoPending    = "Нет запланированных напоминаний."
	msgScheduleFail = "Не удалось запланировать сообщение, попробуйте позже."
	msgUnknown      = "Неизвестная команда. Список команд: /help"
	msgHelp         = `Команды:
/schedule YYYY-MM-DD HH:MM <текст> - запланировать напоминание
/pending - список ожидающих напоминаний
/getchatid - показать ID этого чата
/help - эта справка`
)

// Scheduler is the part of the lifecycle controller commands use.
type Scheduler interface {
	Schedule(ctx context.Context, fireAt time.Time, text string) (reminder.Pending, error)
	Pending() []reminder.Pending
	Location() *time.Location
}

// Handler answers chat commands. Replies go out through the bus.
type Handler struct {
	sched Scheduler
	bus   *bus.MessageBus
}

func NewHandler(sched Scheduler, msgBus *bus.MessageBus) *Handler {
	return &Handler{sched: sched, bus: msgBus}
}

// Handle processes one inbound message. Plain text is ignored.
func (h *Handler) Handle(ctx context.Context, msg bus.InboundMessage) {
	name, args, ok := Split(msg.Content)
	if !ok {
		slog.Debug("command: ignoring plain text", "from", msg.Key())
		return
	}
	slog.Debug("command: received", "command", name, "from", msg.Key())

	switch name {
	case "start":
		h.reply(msg, msgStart)
	case "schedule":
		h.schedule(ctx, msg, args)
	case "getchatid", "chatid":
		h.reply(msg, fmt.Sprintf(msgChatID, msg.ChatID))
	case "pending", "list":
		h.reply(msg, h.pendingText())
	case "help":
		h.reply(msg, msgHelp)
	default:
		h.reply(msg, msgUnknown)
	}
}

func (h *Handler) schedule(ctx context.Context, msg bus.InboundMessage, args string) {
	loc := h.sched.Location()
	req, err := Parse(args, loc)
	if err == nil {
		var p reminder.Pending
		p, err = h.sched.Schedule(ctx, req.FireAt, req.Text)
		if err == nil {
			h.reply(msg, fmt.Sprintf(msgScheduled, p.FireAt.In(loc).Format("2006-01-02 15:04:05")))
			return
		}
	}

	if errors.Is(err, reminder.ErrValidation) {
		h.reply(msg, err.Error())
		return
	}
	slog.Error("command: schedule failed", "from", msg.Key(), "error", err)
	h.bus.PublishOutbound(bus.OutboundMessage{Channel: msg.Channel, ChatID: msg.ChatID, Content: msgScheduleFail, Type: "error"})
}

func (h *Handler) pendingText() string {
	pending := h.sched.Pending()
	if len(pending) == 0 {
		return msgNoPending
	}
	loc := h.sched.Location()
	var sb strings.Builder
	fmt.Fprintf(&sb, "Напоминаний: %d", len(pending))
	for _, p := range pending {
		status := "запланировано"
		if p.State == reminder.StateAwaiting {
			status = "ожидает подтверждения"
		}
		fmt.Fprintf(&sb, "\n%s %s (%s)", p.FireAt.In(loc).Format(Layout), p.Text, status)
	}
	return sb.String()
}

func (h *Handler) reply(msg bus.InboundMessage, text string) {
	h.bus.PublishOutbound(bus.OutboundMessage{Channel: msg.Channel, ChatID: msg.ChatID, Content: text, Type: "text"})
}
