package cron

import (
	"sync/atomic"
	"time"

	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/bus"
)

const (
	stateArmed int32 = iota
	stateFired
	stateCancelled
)

// Handle is one armed timer entry: a fire time (or a recurrence rule) and the
// payload published when it fires.
type Handle struct {
	svc     *Service
	entryID int // robfig entry, guarded by svc.mu
	event   bus.TimerEvent
	fireAt  time.Time
	rule    string
	state   atomic.Int32
}

// Cancel calls off the entry. It reports whether the call prevented a firing;
// cancelling after the entry fired is a no-op that returns false.
func (h *Handle) Cancel() bool {
	return h.svc.Cancel(h)
}

// Event returns the payload the entry carries.
func (h *Handle) Event() bus.TimerEvent { return h.event }

// FireAt returns the fire time of a one-shot entry, zero for recurring ones.
func (h *Handle) FireAt() time.Time { return h.fireAt }

// Recurring reports whether the entry was armed with a recurrence rule.
func (h *Handle) Recurring() bool { return h.rule != "" }

// Fired reports whether a one-shot entry has been delivered.
func (h *Handle) Fired() bool { return h.state.Load() == stateFired }

// onceSchedule is a robfig Schedule that yields a single activation time.
// robfig calls Next when the entry is added and again after every run; only
// the first call returns the fire time.
type onceSchedule struct {
	at    time.Time
	calls int
}

func (s *onceSchedule) Next(time.Time) time.Time {
	s.calls++
	if s.calls > 1 {
		return time.Time{}
	}
	return s.at
}
