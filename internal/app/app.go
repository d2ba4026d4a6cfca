// Package app wires the reminder bot together.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/bus"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/calendar"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/channels"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/command"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/config"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/cron"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/heartbeat"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/lifecycle"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/logstore"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/reminder"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/transport"
)

const busSize = 100

// App owns every long-lived component.
type App struct {
	cfg       *config.Config
	bus       *bus.MessageBus
	timers    *cron.Service
	log       logstore.Store
	manager   *channels.Manager
	ctrl      *lifecycle.Controller
	heartbeat *heartbeat.Service
	server    *transport.Server
}

// New builds the components described by cfg. It does not start anything;
// the caller must either Run the app or Close it.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	cal, err := calendar.FromConfig(cfg.Calendar, loc)
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar: %w", err)
	}

	msgBus := bus.NewMessageBus(busSize)
	timers := cron.NewService(msgBus, loc)

	log, err := logstore.Open(ctx, cfg.LogStore)
	if err != nil {
		return nil, err
	}

	manager := channels.NewManager(msgBus)
	ch, err := manager.AddChannel(cfg.Channel, cfg)
	if err != nil {
		log.Close()
		return nil, err
	}

	ctrl := lifecycle.New(
		reminder.NewMemoryStore(),
		timers,
		ch,
		log,
		msgBus,
		lifecycle.OptionsFromConfig(cfg, loc, cal),
	)
	ctrl.SetInboundHandler(command.NewHandler(ctrl, msgBus).Handle)

	hb := heartbeat.NewService(heartbeat.Config{
		Interval: cfg.HTTP.Heartbeat,
		Timeout:  cfg.Reminder.IOTimeout,
		Checks: map[string]heartbeat.Check{
			"logstore": func(context.Context) error { return logstore.Check(log) },
		},
		Pending: func() int { return len(ctrl.Pending()) },
	})

	a := &App{
		cfg:       cfg,
		bus:       msgBus,
		timers:    timers,
		log:       log,
		manager:   manager,
		ctrl:      ctrl,
		heartbeat: hb,
	}
	if cfg.HTTP.Enabled {
		a.server = transport.NewServer(cfg.HTTP.Addr, transport.InitRoutes(ctrl, hb.Status))
	}
	return a, nil
}

// Controller exposes the lifecycle controller.
func (a *App) Controller() *lifecycle.Controller { return a.ctrl }

// Run starts every component and blocks until ctx is cancelled or one of
// them fails. Components are stopped and the log store closed on return.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	if err := a.manager.StartAll(ctx); err != nil {
		return err
	}
	defer func() {
		if err := a.manager.StopAll(); err != nil {
			slog.Warn("app: stopping channels", "error", err)
		}
	}()

	a.timers.Start()
	defer a.timers.Stop()

	a.heartbeat.Start(ctx)
	defer a.heartbeat.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.bus.DispatchOutbound(gctx)
		return nil
	})
	g.Go(func() error {
		return a.ctrl.Run(gctx)
	})
	if a.server != nil {
		g.Go(func() error {
			return a.server.Run(gctx)
		})
	}

	slog.Info("app: running", "channel", a.cfg.Channel, "logstore", a.cfg.LogStore.Driver, "http", a.cfg.HTTP.Enabled)
	err := g.Wait()
	slog.Info("app: shutting down")
	return err
}

// Close releases the log store.
func (a *App) Close() {
	if err := a.log.Close(); err != nil {
		slog.Warn("app: closing logstore", "error", err)
	}
}

// Run builds and runs the app described by cfg.
func Run(ctx context.Context, cfg *config.Config) error {
	a, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
