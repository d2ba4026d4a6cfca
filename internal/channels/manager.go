package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/bus"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/config"
)

type Manager struct {
	channels []Channel
	bus      *bus.MessageBus
	mu       sync.Mutex
}

func NewManager(msgBus *bus.MessageBus) *Manager {
	m := &Manager{bus: msgBus}
	m.setupOutboundDispatch()
	return m
}

// AddChannel creates and adds a channel from config.
func (m *Manager) AddChannel(name string, cfg *config.Config) (Channel, error) {
	factory, ok := GetFactory(name)
	if !ok {
		return nil, fmt.Errorf("no factory registered for channel %q", name)
	}
	ch, err := factory(cfg, m.bus)
	if err != nil {
		return nil, fmt.Errorf("failed to create channel %q: %w", name, err)
	}
	m.Add(ch)
	return ch, nil
}

// Add registers an already built channel.
func (m *Manager) Add(ch Channel) {
	m.mu.Lock()
	m.channels = append(m.channels, ch)
	m.mu.Unlock()
}

// Get returns the channel with the given name.
func (m *Manager) Get(name string) (Channel, bool) {
	for _, ch := range m.snapshot() {
		if ch.Name() == name {
			return ch, true
		}
	}
	return nil, false
}

// StartAll starts all registered channels.
func (m *Manager) StartAll(ctx context.Context) error {
	for _, ch := range m.snapshot() {
		if err := ch.Start(ctx); err != nil {
			return fmt.Errorf("failed to start channel %q: %w", ch.Name(), err)
		}
	}
	return nil
}

// StopAll stops all channels.
func (m *Manager) StopAll() error {
	var firstErr error
	for _, ch := range m.snapshot() {
		if err := ch.Stop(); err != nil {
			slog.Error("failed to stop channel", "channel", ch.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (m *Manager) snapshot() []Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	chs := make([]Channel, len(m.channels))
	copy(chs, m.channels)
	return chs
}

// setupOutboundDispatch subscribes to outbound messages and routes to channels.
func (m *Manager) setupOutboundDispatch() {
	m.bus.Subscribe("", func(msg bus.OutboundMessage) {
		if msg.Content == "" {
			return
		}
		ch, ok := m.Get(msg.Channel)
		if !ok {
			slog.Warn("no channel for outbound message", "channel", msg.Channel)
			return
		}
		if err := ch.Send(msg); err != nil {
			slog.Error("failed to send message", "channel", ch.Name(), "error", err)
		}
	})
}
