package bus

import (
	"fmt"
	"strings"
	"time"
)

// MessageRef identifies a message delivered by a channel. The format is
// channel-specific and opaque to everything outside the channel.
type MessageRef string

// ActionAcknowledge is the action carried by the acknowledge button.
const ActionAcknowledge = "ack"

// InboundMessage represents a user action received from a channel:
// a text message, a command or a button press.
type InboundMessage struct {
	Channel   string            // source channel name (e.g. "telegram", "discord")
	SenderID  string            // sender identifier
	ChatID    string            // chat/conversation identifier
	Content   string            // text content
	Action    string            // button action, empty for text messages
	SourceRef MessageRef        // message the pressed button is attached to
	ReplyTo   MessageRef        // message a text reply refers to
	Metadata  map[string]string // arbitrary metadata
}

// IsCommand reports whether the message is a slash command.
func (m InboundMessage) IsCommand() bool {
	return m.Action == "" && strings.HasPrefix(strings.TrimSpace(m.Content), "/")
}

// IsAcknowledge reports whether the message acknowledges a reminder,
// either by pressing the button or by replying to the reminder message.
func (m InboundMessage) IsAcknowledge() bool {
	if m.Action == ActionAcknowledge && m.SourceRef != "" {
		return true
	}
	return m.Action == "" && m.ReplyTo != "" && !m.IsCommand()
}

// AcknowledgedRef returns the message the acknowledgement refers to.
func (m InboundMessage) AcknowledgedRef() MessageRef {
	if m.SourceRef != "" {
		return m.SourceRef
	}
	return m.ReplyTo
}

// Key returns "channel:chatID", used for log context.
func (m InboundMessage) Key() string {
	return fmt.Sprintf("%s:%s", m.Channel, m.ChatID)
}

// OutboundMessage represents a plain reply to be sent to a channel.
type OutboundMessage struct {
	Channel string // target channel
	ChatID  string // target chat
	Content string // text content
	Type    string // "text", "error"
}

// TimerKind tells the lifecycle controller what a fired timer means.
type TimerKind string

const (
	TimerSend     TimerKind = "send"     // deliver the reminder
	TimerPrompt   TimerKind = "prompt"   // follow-up prompt inside the window
	TimerTimeout  TimerKind = "timeout"  // confirmation window elapsed
	TimerRollover TimerKind = "rollover" // expand the recurring calendar
)

// TimerEvent is the payload carried by a timer entry.
type TimerEvent struct {
	Kind       TimerKind
	ScheduleID string
	FireAt     time.Time // intended fire time, zero for recurring entries
	FiredAt    time.Time // set when the entry fires
}
