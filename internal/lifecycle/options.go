package lifecycle

import (
	"time"

	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/calendar"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/config"
)

// Options configures a Controller.
type Options struct {
	Recipient   string
	Window      time.Duration // confirmation window, measured from delivery
	PromptAfter time.Duration // follow-up prompt delay; 0 or >= Window disables it
	IOTimeout   time.Duration // bound on every channel and log store call
	Workers     int

	DefaultText      string
	ButtonLabel      string
	PromptText       string
	ConfirmedLabel   string
	UnconfirmedLabel string

	Rollover string // cron rule for calendar expansion
	Calendar *calendar.Calendar
	Location *time.Location

	Now func() time.Time
}

// OptionsFromConfig maps the reminder, logstore and top-level settings.
func OptionsFromConfig(cfg *config.Config, loc *time.Location, cal *calendar.Calendar) Options {
	return Options{
		Recipient:        cfg.Recipient,
		Window:           cfg.Reminder.ConfirmWindow,
		PromptAfter:      cfg.Reminder.PromptAfter,
		IOTimeout:        cfg.Reminder.IOTimeout,
		Workers:          cfg.Reminder.Workers,
		DefaultText:      cfg.Reminder.DefaultText,
		ButtonLabel:      cfg.Reminder.ButtonLabel,
		PromptText:       cfg.Reminder.PromptText,
		ConfirmedLabel:   cfg.LogStore.ConfirmedLabel,
		UnconfirmedLabel: cfg.LogStore.UnconfirmedLabel,
		Rollover:         cfg.Reminder.Rollover,
		Calendar:         cal,
		Location:         loc,
	}
}

func (o *Options) setDefaults() {
	d := config.DefaultConfig()
	if o.Window <= 0 {
		o.Window = d.Reminder.ConfirmWindow
	}
	if o.IOTimeout <= 0 {
		o.IOTimeout = d.Reminder.IOTimeout
	}
	if o.Workers <= 0 {
		o.Workers = d.Reminder.Workers
	}
	if o.DefaultText == "" {
		o.DefaultText = d.Reminder.DefaultText
	}
	if o.ButtonLabel == "" {
		o.ButtonLabel = d.Reminder.ButtonLabel
	}
	if o.PromptText == "" {
		o.PromptText = d.Reminder.PromptText
	}
	if o.ConfirmedLabel == "" {
		o.ConfirmedLabel = d.LogStore.ConfirmedLabel
	}
	if o.UnconfirmedLabel == "" {
		o.UnconfirmedLabel = d.LogStore.UnconfirmedLabel
	}
	if o.Rollover == "" {
		o.Rollover = d.Reminder.Rollover
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// promptEnabled reports whether a follow-up prompt fits inside the window.
func (o Options) promptEnabled() bool {
	return o.PromptAfter > 0 && o.PromptAfter < o.Window
}
