package cron

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	robfigcron "github.com/robfig/cron/v3"

	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/bus"
)

// parser accepts standard 5-field specs and descriptors (@daily, @every 1h).
var parser = robfigcron.NewParser(
	robfigcron.Minute | robfigcron.Hour | robfigcron.Dom | robfigcron.Month | robfigcron.Dow | robfigcron.Descriptor,
)

// Service is the timer scheduler. Every entry shares one robfig scheduler and
// therefore one clock. Firing an entry only publishes its payload onto the
// bus; the work happens in whoever consumes the timer queue.
type Service struct {
	scheduler *robfigcron.Cron
	bus       *bus.MessageBus
	location  *time.Location
	handles   map[*Handle]struct{}
	mu        sync.Mutex
}

// NewService creates a timer service evaluating recurrence rules in loc.
// A nil loc means time.Local.
func NewService(msgBus *bus.MessageBus, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	logger := slogLogger{}
	return &Service{
		scheduler: robfigcron.New(
			robfigcron.WithLocation(loc),
			robfigcron.WithParser(parser),
			robfigcron.WithLogger(logger),
			robfigcron.WithChain(robfigcron.Recover(logger)),
		),
		bus:      msgBus,
		location: loc,
		handles:  make(map[*Handle]struct{}),
	}
}

// Start begins the scheduler.
func (s *Service) Start() {
	s.scheduler.Start()
}

// Stop stops the scheduler. Entries already firing still publish.
func (s *Service) Stop() {
	s.scheduler.Stop()
}

// Location returns the zone recurrence rules are evaluated in.
func (s *Service) Location() *time.Location { return s.location }

// Arm registers a one-shot entry. ev is published once at or after fireAt,
// unless the handle is cancelled first. A fireAt in the past fires at once.
func (s *Service) Arm(fireAt time.Time, ev bus.TimerEvent) *Handle {
	if ev.FireAt.IsZero() {
		ev.FireAt = fireAt
	}
	h := &Handle{svc: s, event: ev, fireAt: fireAt}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.scheduler.Schedule(&onceSchedule{at: fireAt}, robfigcron.FuncJob(func() { s.fire(h) }))
	h.entryID = int(id)
	s.handles[h] = struct{}{}
	return h
}

// ArmRecurring registers an entry firing on every activation of rule.
func (s *Service) ArmRecurring(rule string, ev bus.TimerEvent) (*Handle, error) {
	schedule, err := parser.Parse(rule)
	if err != nil {
		return nil, fmt.Errorf("invalid rule %q: %w", rule, err)
	}
	h := &Handle{svc: s, event: ev, rule: rule}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.scheduler.Schedule(schedule, robfigcron.FuncJob(func() { s.fire(h) }))
	h.entryID = int(id)
	s.handles[h] = struct{}{}
	return h, nil
}

// Cancel calls off h. It returns true if the entry had not fired yet (for a
// recurring entry: if it was still active). A payload already handed to the
// bus is not recalled.
func (s *Service) Cancel(h *Handle) bool {
	if h == nil {
		return false
	}
	if !h.state.CompareAndSwap(stateArmed, stateCancelled) {
		return false
	}
	s.forget(h)
	return true
}

// Len returns the number of entries still registered.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// NextActivation returns when rule next fires after t, in the service zone.
func (s *Service) NextActivation(rule string, t time.Time) (time.Time, error) {
	schedule, err := parser.Parse(rule)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid rule %q: %w", rule, err)
	}
	return schedule.Next(t.In(s.location)), nil
}

// fire runs on a robfig job goroutine.
func (s *Service) fire(h *Handle) {
	ev := h.event
	ev.FiredAt = time.Now().In(s.location)

	if h.Recurring() {
		if h.state.Load() != stateArmed {
			return
		}
		s.bus.PublishTimer(ev)
		return
	}

	if !h.state.CompareAndSwap(stateArmed, stateFired) {
		return
	}
	s.forget(h)
	s.bus.PublishTimer(ev)
}

// forget drops h from the scheduler. Blocks until the robfig run loop accepts
// the removal, so it must not be called from the run loop itself.
func (s *Service) forget(h *Handle) {
	s.mu.Lock()
	_, ok := s.handles[h]
	delete(s.handles, h)
	id := robfigcron.EntryID(h.entryID)
	s.mu.Unlock()

	if ok {
		s.scheduler.Remove(id)
	}
}

// slogLogger adapts robfig's logger to slog. robfig logs every wake-up at
// info level, which is debug noise here.
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
