package channels

import (
	"context"
	"fmt"
	"strings"

	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/bus"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/config"
)

// Control is an interactive element attached to a notification, such as an
// inline button. Pressing it publishes an inbound message carrying Action.
type Control struct {
	Label  string
	Action string
}

// Notifier delivers reminder notifications and edits them afterwards.
// Every call is bounded by ctx.
type Notifier interface {
	Notify(ctx context.Context, recipient, text string) (bus.MessageRef, error)
	NotifyWithControl(ctx context.Context, recipient, text string, control Control) (bus.MessageRef, error)
	RemoveControl(ctx context.Context, ref bus.MessageRef) error
	Delete(ctx context.Context, ref bus.MessageRef) error
}

// Channel is the interface all chat platform channels must implement.
type Channel interface {
	Notifier
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Send(msg bus.OutboundMessage) error
	IsAllowed(senderID string) bool
}

// ChannelFactory creates a Channel from config and a MessageBus.
type ChannelFactory func(cfg *config.Config, msgBus *bus.MessageBus) (Channel, error)

var registry = map[string]ChannelFactory{}

// Register adds a channel factory to the registry.
func Register(name string, factory ChannelFactory) {
	registry[name] = factory
}

// GetFactory returns the factory for a channel name.
func GetFactory(name string) (ChannelFactory, bool) {
	f, ok := registry[name]
	return f, ok
}

// RegisteredNames returns all registered channel names.
func RegisteredNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// FormatRef builds a message reference from a container (chat, channel)
// and a message identifier within it.
func FormatRef(container, id string) bus.MessageRef {
	return bus.MessageRef(container + ":" + id)
}

// ParseRef splits a reference built by FormatRef.
func ParseRef(ref bus.MessageRef) (container, id string, err error) {
	container, id, ok := strings.Cut(string(ref), ":")
	if !ok || container == "" || id == "" {
		return "", "", fmt.Errorf("malformed message ref %q", ref)
	}
	return container, id, nil
}

func allowList(users []string) map[string]bool {
	allowed := make(map[string]bool, len(users))
	for _, u := range users {
		allowed[u] = true
	}
	return allowed
}

func isAllowed(allowed map[string]bool, senderID string) bool {
	if len(allowed) == 0 {
		return true
	}
	return allowed[senderID]
}

// withContext runs call and returns early with ctx.Err() if ctx ends first.
// For client libraries whose calls take no context.
func withContext(ctx context.Context, call func() error) error {
	done := make(chan error, 1)
	go func() { done <- call() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
