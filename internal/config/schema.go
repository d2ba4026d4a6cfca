package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the top-level configuration
type Config struct {
	Channel   string          `mapstructure:"channel"`   // recipient channel name
	Recipient string          `mapstructure:"recipient"` // chat/channel ID reminders go to
	Timezone  string          `mapstructure:"timezone"`
	Reminder  ReminderConfig  `mapstructure:"reminder"`
	Calendar  []CalendarEntry `mapstructure:"calendar"`
	Channels  ChannelsConfig  `mapstructure:"channels"`
	LogStore  LogStoreConfig  `mapstructure:"logstore"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
}

// ReminderConfig holds the confirmation lifecycle settings.
type ReminderConfig struct {
	ConfirmWindow time.Duration `mapstructure:"confirm_window"`
	PromptAfter   time.Duration `mapstructure:"prompt_after"` // 0 disables the follow-up prompt
	IOTimeout     time.Duration `mapstructure:"io_timeout"`
	Workers       int           `mapstructure:"workers"`
	DefaultText   string        `mapstructure:"default_text"`
	ButtonLabel   string        `mapstructure:"button_label"`
	PromptText    string        `mapstructure:"prompt_text"`
	Rollover      string        `mapstructure:"rollover"` // cron rule for calendar expansion
}

// CalendarEntry is one weekly recurring reminder.
type CalendarEntry struct {
	Weekday string `mapstructure:"weekday"`
	Hour    int    `mapstructure:"hour"`
	Minute  int    `mapstructure:"minute"`
	Text    string `mapstructure:"text"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Discord  DiscordConfig  `mapstructure:"discord"`
	Slack    SlackConfig    `mapstructure:"slack"`
}

type TelegramConfig struct {
	Token        string   `mapstructure:"token"`
	AllowedUsers []string `mapstructure:"allowed_users"`
}

type DiscordConfig struct {
	Token        string   `mapstructure:"token"`
	AllowedUsers []string `mapstructure:"allowed_users"`
}

type SlackConfig struct {
	BotToken     string   `mapstructure:"bot_token"`
	AppToken     string   `mapstructure:"app_token"`
	AllowedUsers []string `mapstructure:"allowed_users"`
}

// LogStoreConfig selects and configures the durable outcome log.
type LogStoreConfig struct {
	Driver           string         `mapstructure:"driver"` // sheets, sqlite, postgres, console
	ConfirmedLabel   string         `mapstructure:"confirmed_label"`
	UnconfirmedLabel string         `mapstructure:"unconfirmed_label"`
	Breaker          BreakerConfig  `mapstructure:"breaker"`
	Sheets           SheetsConfig   `mapstructure:"sheets"`
	SQLite           SQLiteConfig   `mapstructure:"sqlite"`
	Postgres         PostgresConfig `mapstructure:"postgres"`
}

type BreakerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxRequests uint32        `mapstructure:"max_requests"`
	Interval    time.Duration `mapstructure:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Failures    uint32        `mapstructure:"failures"` // consecutive failures that open the breaker
}

type SheetsConfig struct {
	SpreadsheetID   string `mapstructure:"spreadsheet_id"`
	Range           string `mapstructure:"range"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type HTTPConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Heartbeat time.Duration `mapstructure:"heartbeat"` // dependency probe interval
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

// DefaultConfig returns a Config with sensible defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Channel:  "telegram",
		Timezone: "Europe/Moscow",
		Reminder: ReminderConfig{
			ConfirmWindow: 30 * time.Minute,
			PromptAfter:   15 * time.Minute,
			IOTimeout:     10 * time.Second,
			Workers:       10,
			DefaultText:   "Напоминание",
			ButtonLabel:   "Выполнено",
			PromptText:    "Напоминание ещё не подтверждено. Нажмите кнопку, когда выполните.",
			Rollover:      "0 0 * * *",
		},
		LogStore: LogStoreConfig{
			Driver:           "console",
			ConfirmedLabel:   "Confirmed",
			UnconfirmedLabel: "Unconfirmed",
			Breaker: BreakerConfig{
				Enabled:     true,
				MaxRequests: 3,
				Interval:    10 * time.Second,
				Timeout:     time.Minute,
				Failures:    3,
			},
			Sheets: SheetsConfig{Range: "Лист1!A:C"},
			SQLite: SQLiteConfig{Path: "remindbot.db"},
		},
		HTTP: HTTPConfig{Addr: ":8080", Heartbeat: time.Minute},
		Log:  LogConfig{Level: "info", Format: "text"},
	}
}

// Location resolves the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate checks settings that would otherwise only fail at runtime.
func (c *Config) Validate() error {
	var problems []string

	if c.Recipient == "" {
		problems = append(problems, "recipient is required")
	}
	switch c.Channel {
	case "telegram":
		if c.Channels.Telegram.Token == "" {
			problems = append(problems, "channels.telegram.token is required")
		}
	case "discord":
		if c.Channels.Discord.Token == "" {
			problems = append(problems, "channels.discord.token is required")
		}
	case "slack":
		if c.Channels.Slack.BotToken == "" || c.Channels.Slack.AppToken == "" {
			problems = append(problems, "channels.slack.bot_token and app_token are required")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown channel %q", c.Channel))
	}
	if _, err := c.Location(); err != nil {
		problems = append(problems, err.Error())
	}

	r := c.Reminder
	if r.ConfirmWindow <= 0 {
		problems = append(problems, "reminder.confirm_window must be positive")
	}
	if r.PromptAfter < 0 || (r.ConfirmWindow > 0 && r.PromptAfter >= r.ConfirmWindow) {
		problems = append(problems, "reminder.prompt_after must be 0 or shorter than confirm_window")
	}
	if r.IOTimeout <= 0 {
		problems = append(problems, "reminder.io_timeout must be positive")
	}
	if r.Workers <= 0 {
		problems = append(problems, "reminder.workers must be positive")
	}

	for i, e := range c.Calendar {
		if e.Hour < 0 || e.Hour > 23 || e.Minute < 0 || e.Minute > 59 {
			problems = append(problems, fmt.Sprintf("calendar[%d]: time %02d:%02d out of range", i, e.Hour, e.Minute))
		}
	}

	switch c.LogStore.Driver {
	case "console":
	case "sheets":
		if c.LogStore.Sheets.SpreadsheetID == "" {
			problems = append(problems, "logstore.sheets.spreadsheet_id is required")
		}
	case "sqlite":
		if c.LogStore.SQLite.Path == "" {
			problems = append(problems, "logstore.sqlite.path is required")
		}
	case "postgres":
		if c.LogStore.Postgres.DSN == "" {
			problems = append(problems, "logstore.postgres.dsn is required")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown logstore driver %q", c.LogStore.Driver))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
