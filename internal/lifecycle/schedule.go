package lifecycle

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

// Schedule accepts a one-off reminder. fireAt must be strictly in the
// future; otherwise the error is marked reminder.ErrValidation. Empty text
// falls back to the default reminder text.
func (c *Controller) Schedule(_ context.Context, fireAt time.Time, text string) (reminder.Pending, error) {
	return c.schedule(fireAt, text, reminder.SourceAdHoc)
}

func (c *Controller) schedule(fireAt time.Time, text string, source reminder.Source) (reminder.Pending, error) {
	now := c.opts.Now()
	if !fireAt.After(now) {
		return reminder.Pending{}, reminder.ValidationError(MsgPastTime)
	}
	if strings.TrimSpace(text) == "" {
		text = c.opts.DefaultText
	}

	p := reminder.Pending{
		ID:        reminder.NewID(),
		Text:      text,
		FireAt:    fireAt.In(c.opts.Location),
		Source:    source,
		State:     reminder.StateScheduled,
		CreatedAt: now,
	}
	if err := c.store.Insert(p); err != nil {
		return reminder.Pending{}, errors.Wrap(err, "schedule")
	}

	h := c.timers.Arm(p.FireAt, bus.TimerEvent{Kind: bus.TimerSend, ScheduleID: string(p.ID)})
	updated, err := c.store.Transition(p.ID, reminder.StateScheduled, reminder.StateScheduled, func(p *reminder.Pending) {
		p.Timers = append(p.Timers, h)
	})
	if err != nil {
		// Already picked up by a worker; the handle has fired.
		updated = p
	}

	slog.Info("lifecycle: reminder scheduled", "id", p.ID, "fireAt", p.FireAt, "source", source)
	return updated, nil
}

// startCalendar schedules occurrences up to the first rollover and arms the
// rollover rule. A calendar without entries arms nothing.
func (c *Controller) startCalendar() error {
	if c.opts.Calendar == nil || c.opts.Calendar.Len() == 0 {
		return nil
	}

	now := c.opts.Now()
	next, err := c.timers.NextActivation(c.opts.Rollover, now)
	if err != nil {
		return fmt.Errorf("calendar rollover: %w", err)
	}
	if _, err := c.timers.ArmRecurring(c.opts.Rollover, bus.TimerEvent{Kind: bus.TimerRollover}); err != nil {
		return fmt.Errorf("calendar rollover: %w", err)
	}

	c.horizonMu.Lock()
	defer c.horizonMu.Unlock()
	c.expand(now, next)
	c.horizon = next
	return nil
}

// handleRollover schedules the occurrences of the next rollover period.
func (c *Controller) handleRollover() {
	c.horizonMu.Lock()
	defer c.horizonMu.Unlock()

	from := c.horizon
	base := from
	if now := c.opts.Now(); now.After(base) {
		base = now
	}
	next, err := c.timers.NextActivation(c.opts.Rollover, base)
	if err != nil {
		slog.Error("lifecycle: calendar rollover failed", "error", err)
		return
	}
	c.expand(from, next)
	c.horizon = next
}

// expand schedules every calendar occurrence in (from, to]. Caller holds
// horizonMu.
func (c *Controller) expand(from, to time.Time) {
	occurrences := c.opts.Calendar.Occurrences(from, to)
	for _, occ := range occurrences {
		if _, err := c.schedule(occ.At, occ.Text, reminder.SourceCalendar); err != nil {
			slog.Warn("lifecycle: calendar occurrence skipped", "at", occ.At, "error", err)
		}
	}
	slog.Debug("lifecycle: calendar expanded", "from", from, "to", to, "scheduled", len(occurrences))
}
