// Package lifecycle drives reminders from scheduling to resolution: send the
// notification, wait for an acknowledgement or the end of the confirmation
// window, then log exactly one outcome row.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/bus"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/channels"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/cron"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/logstore"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/reminder"
)

// Timers arms the entries the controller reacts to. Fired entries arrive on
// the bus timer queue.
type Timers interface {
	Arm(fireAt time.Time, ev bus.TimerEvent) *cron.Handle
	ArmRecurring(rule string, ev bus.TimerEvent) (*cron.Handle, error)
	NextActivation(rule string, t time.Time) (time.Time, error)
}

// InboundHandler receives inbound messages that are not acknowledgements.
type InboundHandler func(ctx context.Context, msg bus.InboundMessage)

// Controller owns the reminder lifecycle. All transitions go through the
// store so that an acknowledgement and a timeout racing for the same
// reminder resolve it exactly once.
type Controller struct {
	opts     Options
	store    reminder.Store
	timers   Timers
	notifier channels.Notifier
	log      logstore.Store
	bus      *bus.MessageBus

	inbound InboundHandler

	horizonMu sync.Mutex
	horizon   time.Time // calendar occurrences up to here are scheduled
}

// New creates a controller. Zero option fields take the config defaults.
func New(store reminder.Store, timers Timers, notifier channels.Notifier, log logstore.Store, msgBus *bus.MessageBus, opts Options) *Controller {
	opts.setDefaults()
	return &Controller{
		opts:     opts,
		store:    store,
		timers:   timers,
		notifier: notifier,
		log:      log,
		bus:      msgBus,
	}
}

// SetInboundHandler routes non-acknowledgement messages (commands) to h.
// Must be called before Run.
func (c *Controller) SetInboundHandler(h InboundHandler) {
	c.inbound = h
}

// Location returns the recipient time zone.
func (c *Controller) Location() *time.Location { return c.opts.Location }

// Recipient returns where notifications go.
func (c *Controller) Recipient() string { return c.opts.Recipient }

// Pending lists reminders that are scheduled or awaiting acknowledgement.
func (c *Controller) Pending() []reminder.Pending {
	return c.store.List()
}

// Run expands the calendar and processes timer and inbound events with a
// pool of workers until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.startCalendar(); err != nil {
		return err
	}

	slog.Info("lifecycle: started", "workers", c.opts.Workers, "window", c.opts.Window, "recipient", c.opts.Recipient)

	var wg sync.WaitGroup
	for i := 0; i < c.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.worker(ctx)
		}()
	}
	wg.Wait()

	slog.Info("lifecycle: stopped", "pending", len(c.store.List()))
	return nil
}

func (c *Controller) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.bus.Timers():
			if !ok {
				return
			}
			c.handleTimer(ctx, ev)
		case msg, ok := <-c.bus.Inbound():
			if !ok {
				return
			}
			c.handleInbound(ctx, msg)
		}
	}
}

func (c *Controller) handleTimer(ctx context.Context, ev bus.TimerEvent) {
	id := reminder.ID(ev.ScheduleID)
	switch ev.Kind {
	case bus.TimerSend:
		c.handleSend(ctx, id)
	case bus.TimerPrompt:
		c.handlePrompt(ctx, id)
	case bus.TimerTimeout:
		c.handleTimeout(ctx, id)
	case bus.TimerRollover:
		c.handleRollover()
	default:
		slog.Warn("lifecycle: unknown timer kind", "kind", ev.Kind, "id", id)
	}
}

func (c *Controller) handleInbound(ctx context.Context, msg bus.InboundMessage) {
	if msg.IsAcknowledge() {
		c.OnAcknowledge(ctx, msg.AcknowledgedRef())
		return
	}
	if c.inbound != nil {
		c.inbound(ctx, msg)
		return
	}
	slog.Debug("lifecycle: inbound message dropped", "from", msg.Key())
}

func (c *Controller) control() channels.Control {
	return channels.Control{Label: c.opts.ButtonLabel, Action: bus.ActionAcknowledge}
}

// io returns a context bounded by the I/O timeout. It outlives the parent's
// cancellation so that a resolution already under way can write its row
// during shutdown.
func (c *Controller) io(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.opts.IOTimeout)
}

// handleSend delivers the notification and opens the confirmation window.
func (c *Controller) handleSend(ctx context.Context, id reminder.ID) {
	p, err := c.store.Get(id)
	if err != nil {
		slog.Debug("lifecycle: send timer for unknown reminder", "id", id)
		return
	}
	if p.State != reminder.StateScheduled {
		return
	}

	ioCtx, cancel := c.io(ctx)
	ref, err := c.notifier.NotifyWithControl(ioCtx, c.opts.Recipient, p.Text, c.control())
	cancel()
	if err != nil {
		slog.Error("lifecycle: failed to send reminder", "id", id, "step", "send", "error", errors.Mark(err, ErrChannel))
		c.store.Remove(id)
		return
	}

	sentAt := c.opts.Now()
	p, err = c.store.Transition(id, reminder.StateScheduled, reminder.StateAwaiting, func(p *reminder.Pending) {
		p.SentRef = ref
		p.SentAt = sentAt
	})
	if err != nil {
		slog.Warn("lifecycle: reminder vanished while sending", "id", id, "step", "send", "error", err)
		return
	}

	handles := []reminder.Canceler{
		c.timers.Arm(sentAt.Add(c.opts.Window), bus.TimerEvent{Kind: bus.TimerTimeout, ScheduleID: string(id)}),
	}
	if c.opts.promptEnabled() {
		handles = append(handles,
			c.timers.Arm(sentAt.Add(c.opts.PromptAfter), bus.TimerEvent{Kind: bus.TimerPrompt, ScheduleID: string(id)}))
	}

	_, err = c.store.Transition(id, reminder.StateAwaiting, reminder.StateAwaiting, func(p *reminder.Pending) {
		p.Timers = append(p.Timers, handles...)
	})
	if err != nil {
		// Acknowledged before the timers were recorded.
		for _, h := range handles {
			h.Cancel()
		}
		return
	}

	slog.Info("lifecycle: reminder sent", "id", id, "ref", ref, "deadline", sentAt.Add(c.opts.Window))
}

// handlePrompt shows a follow-up message while the window is still open.
func (c *Controller) handlePrompt(ctx context.Context, id reminder.ID) {
	p, err := c.store.Get(id)
	if err != nil || p.State != reminder.StateAwaiting || p.PromptRef != "" {
		return
	}

	text := fmt.Sprintf("%s\n\n%s", c.opts.PromptText, p.Text)
	ioCtx, cancel := c.io(ctx)
	ref, err := c.notifier.NotifyWithControl(ioCtx, c.opts.Recipient, text, c.control())
	cancel()
	if err != nil {
		slog.Warn("lifecycle: failed to send prompt", "id", id, "step", "prompt", "error", errors.Mark(err, ErrChannel))
		return
	}

	_, err = c.store.Transition(id, reminder.StateAwaiting, reminder.StateAwaiting, func(p *reminder.Pending) {
		p.PromptRef = ref
	})
	if err != nil {
		// Resolved while the prompt was in flight; nobody else will clean it up.
		c.bestEffort(ctx, id, "delete-prompt", func(ctx context.Context) error {
			return c.notifier.Delete(ctx, ref)
		})
		return
	}
	slog.Debug("lifecycle: prompt sent", "id", id, "ref", ref)
}

func (c *Controller) handleTimeout(ctx context.Context, id reminder.ID) {
	c.resolve(ctx, id, reminder.StateUnconfirmed)
}

// resolve moves an awaiting reminder to outcome and performs the resolution
// side effects. It returns false if another handler got there first.
func (c *Controller) resolve(ctx context.Context, id reminder.ID, outcome reminder.State) bool {
	p, err := c.store.Transition(id, reminder.StateAwaiting, outcome, nil)
	if err != nil {
		if reminder.IsRaceLoss(err) {
			slog.Debug("lifecycle: already resolved", "id", id, "outcome", outcome)
		} else {
			slog.Error("lifecycle: resolve failed", "id", id, "outcome", outcome, "error", err)
		}
		return false
	}

	for _, t := range p.Timers {
		t.Cancel()
	}

	if p.SentRef != "" {
		c.bestEffort(ctx, id, "remove-control", func(ctx context.Context) error {
			return c.notifier.RemoveControl(ctx, p.SentRef)
		})
	}
	if p.PromptRef != "" {
		c.bestEffort(ctx, id, "delete-prompt", func(ctx context.Context) error {
			return c.notifier.Delete(ctx, p.PromptRef)
		})
	}

	row := c.row(p, outcome)
	ioCtx, cancel := c.io(ctx)
	err = c.log.AppendRow(ioCtx, row)
	cancel()
	if err != nil {
		slog.Error("lifecycle: failed to append log row", "id", id, "step", "log",
			"date", row.Date, "time", row.Time, "outcome", row.Outcome, "error", errors.Mark(err, ErrLogStore))
	}

	c.store.Remove(id)
	slog.Info("lifecycle: reminder resolved", "id", id, "outcome", outcome)
	return true
}

func (c *Controller) row(p reminder.Pending, outcome reminder.State) logstore.Row {
	at := p.FireAt.In(c.opts.Location)
	label := c.opts.UnconfirmedLabel
	if outcome == reminder.StateConfirmed {
		label = c.opts.ConfirmedLabel
	}
	return logstore.Row{Date: at.Format("2006-01-02"), Time: at.Format("15:04"), Outcome: label}
}

// bestEffort runs a side action whose failure is logged and ignored.
func (c *Controller) bestEffort(ctx context.Context, id reminder.ID, step string, call func(context.Context) error) {
	ioCtx, cancel := c.io(ctx)
	defer cancel()
	if err := call(ioCtx); err != nil {
		slog.Warn("lifecycle: side action failed", "id", id, "step", step, "error", errors.Mark(err, ErrChannel))
	}
}
