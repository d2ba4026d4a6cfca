package transport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/command"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/reminder"
)

type ReminderHandler struct {
	sched command.Scheduler
}

func NewReminderHandler(sched command.Scheduler) *ReminderHandler {
	return &ReminderHandler{sched: sched}
}

// CreateReminderRequest mirrors the /schedule command: date and time in the
// recipient zone.
type CreateReminderRequest struct {
	Date string `json:"date" binding:"required"` // 2006-01-02
	Time string `json:"time" binding:"required"` // 15:04
	Text string `json:"text"`
}

type ReminderResponse struct {
	ID     string    `json:"id"`
	FireAt time.Time `json:"fire_at"`
	Text   string    `json:"text"`
	State  string    `json:"state"`
	Source string    `json:"source"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *ReminderHandler) CreateReminder(c *gin.Context) {
	var req CreateReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: command.MsgUsage})
		return
	}

	parsed, err := command.ParseParts(req.Date, req.Time, req.Text, h.sched.Location())
	if err == nil {
		var p reminder.Pending
		p, err = h.sched.Schedule(c.Request.Context(), parsed.FireAt, parsed.Text)
		if err == nil {
			c.JSON(http.StatusCreated, toResponse(p))
			return
		}
	}

	if errors.Is(err, reminder.ErrValidation) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	slog.Error("http: schedule failed", "error", err)
	c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func (h *ReminderHandler) ListReminders(c *gin.Context) {
	pending := h.sched.Pending()
	out := make([]ReminderResponse, 0, len(pending))
	for _, p := range pending {
		out = append(out, toResponse(p))
	}
	c.JSON(http.StatusOK, out)
}

func toResponse(p reminder.Pending) ReminderResponse {
	return ReminderResponse{
		ID:     string(p.ID),
		FireAt: p.FireAt,
		Text:   p.Text,
		State:  string(p.State),
		Source: string(p.Source),
	}
}
