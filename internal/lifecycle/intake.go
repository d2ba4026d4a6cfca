package lifecycle

import (
	"context"
	"log/slog"

	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/bus"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/reminder"
)

// OnAcknowledge confirms the awaiting reminder whose notification or prompt
// is ref. Unknown or already resolved refs are dropped. Reports whether this
// call resolved a reminder.
func (c *Controller) OnAcknowledge(ctx context.Context, ref bus.MessageRef) bool {
	if ref == "" {
		return false
	}
	p, ok := c.store.Find(func(p reminder.Pending) bool {
		return p.State == reminder.StateAwaiting && p.Refers(ref)
	})
	if !ok {
		slog.Debug("lifecycle: acknowledgement matches no awaiting reminder", "ref", ref)
		return false
	}
	return c.resolve(ctx, p.ID, reminder.StateConfirmed)
}
