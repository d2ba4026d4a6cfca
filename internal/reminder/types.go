package reminder

import (
	"time"

	"github.com/google/uuid"

	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/bus"
)

// ID identifies one reminder occurrence. It is generated at creation and
// never derived from the fire time, so two reminders may share a fire time.
type ID string

// NewID returns a fresh random ID.
func NewID() ID {
	return ID(uuid.NewString())
}

// State is the lifecycle state of a pending reminder.
type State string

const (
	StateScheduled   State = "scheduled"   // accepted, waiting for its fire time
	StateAwaiting    State = "awaiting"    // notification delivered, window open
	StateConfirmed   State = "confirmed"   // acknowledged inside the window
	StateUnconfirmed State = "unconfirmed" // window elapsed without acknowledgement
)

// Terminal reports whether s is a resolved state.
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateUnconfirmed
}

// Source tells where a reminder came from.
type Source string

const (
	SourceAdHoc    Source = "adhoc"
	SourceCalendar Source = "calendar"
)

// Canceler is a timer that can still be called off, typically a *cron.Handle.
type Canceler interface {
	Cancel() bool
}

// Pending is one reminder occurrence while it is owned by the store.
type Pending struct {
	ID        ID
	Text      string
	FireAt    time.Time // intended fire time, used for the log row
	Source    Source
	State     State
	SentRef   bus.MessageRef // delivered notification, set on send
	PromptRef bus.MessageRef // follow-up prompt, set once shown
	SentAt    time.Time
	Timers    []Canceler // armed timers to call off on resolution
	CreatedAt time.Time
}

// Refers reports whether ref points at the notification or the prompt.
func (p Pending) Refers(ref bus.MessageRef) bool {
	if ref == "" {
		return false
	}
	return p.SentRef == ref || p.PromptRef == ref
}

func (p Pending) clone() Pending {
	if p.Timers != nil {
		p.Timers = append([]Canceler(nil), p.Timers...)
	}
	return p
}
