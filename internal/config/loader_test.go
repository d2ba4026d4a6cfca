package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFromReader(t *testing.T) {
	yamlData := `
channel: telegram
recipient: "-100123"
timezone: Europe/Moscow
reminder:
  confirm_window: 45m
  prompt_after: 20m
  workers: 4
calendar:
  - weekday: tuesday
    hour: 11
    minute: 36
    text: Проверить давление
logstore:
  driver: sqlite
  sqlite:
    path: /tmp/log.db
channels:
  telegram:
    token: "123:abc"
`

	cfg, err := LoadFromReader(strings.NewReader(yamlData), "yaml")
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}

	if cfg.Recipient != "-100123" {
		t.Errorf("expected recipient -100123, got %s", cfg.Recipient)
	}
	if cfg.Reminder.ConfirmWindow != 45*time.Minute {
		t.Errorf("expected confirm window 45m, got %v", cfg.Reminder.ConfirmWindow)
	}
	if cfg.Reminder.PromptAfter != 20*time.Minute {
		t.Errorf("expected prompt after 20m, got %v", cfg.Reminder.PromptAfter)
	}
	if cfg.Reminder.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Reminder.Workers)
	}
	if len(cfg.Calendar) != 1 || cfg.Calendar[0].Weekday != "tuesday" || cfg.Calendar[0].Minute != 36 {
		t.Errorf("unexpected calendar %+v", cfg.Calendar)
	}
	if cfg.LogStore.Driver != "sqlite" || cfg.LogStore.SQLite.Path != "/tmp/log.db" {
		t.Errorf("unexpected logstore %+v", cfg.LogStore)
	}
	if cfg.Channels.Telegram.Token != "123:abc" {
		t.Errorf("expected telegram token, got %q", cfg.Channels.Telegram.Token)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Reminder.ConfirmWindow != 30*time.Minute {
		t.Errorf("expected confirm window 30m, got %v", cfg.Reminder.ConfirmWindow)
	}
	if cfg.Reminder.PromptAfter != 15*time.Minute {
		t.Errorf("expected prompt after 15m, got %v", cfg.Reminder.PromptAfter)
	}
	if cfg.Reminder.Workers != 10 {
		t.Errorf("expected 10 workers, got %d", cfg.Reminder.Workers)
	}
	if cfg.Timezone != "Europe/Moscow" {
		t.Errorf("expected Europe/Moscow, got %s", cfg.Timezone)
	}
	if cfg.Reminder.Rollover != "0 0 * * *" {
		t.Errorf("expected midnight rollover, got %q", cfg.Reminder.Rollover)
	}
	if cfg.LogStore.Driver != "console" {
		t.Errorf("expected console driver, got %s", cfg.LogStore.Driver)
	}
	if cfg.LogStore.ConfirmedLabel != "Confirmed" || cfg.LogStore.UnconfirmedLabel != "Unconfirmed" {
		t.Errorf("unexpected labels %q/%q", cfg.LogStore.ConfirmedLabel, cfg.LogStore.UnconfirmedLabel)
	}
}

func TestLoadFromReaderAppliesDefaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`{"recipient": "42"}`), "json")
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}

	if cfg.Recipient != "42" {
		t.Errorf("expected recipient 42, got %s", cfg.Recipient)
	}
	if cfg.Reminder.ConfirmWindow != 30*time.Minute {
		t.Errorf("expected default window, got %v", cfg.Reminder.ConfirmWindow)
	}
	if cfg.Reminder.IOTimeout != 10*time.Second {
		t.Errorf("expected default io timeout, got %v", cfg.Reminder.IOTimeout)
	}
	if cfg.LogStore.Breaker.Failures != 3 {
		t.Errorf("expected default breaker failures 3, got %d", cfg.LogStore.Breaker.Failures)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("expected default addr :8080, got %s", cfg.HTTP.Addr)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("REMINDBOT_RECIPIENT", "env-chat")
	t.Setenv("REMINDBOT_REMINDER_CONFIRM_WINDOW", "5m")
	t.Setenv("REMINDBOT_LOGSTORE_DRIVER", "postgres")

	cfg, err := LoadFromReader(strings.NewReader(`{"recipient": "file-chat"}`), "json")
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}

	if cfg.Recipient != "env-chat" {
		t.Errorf("expected env override env-chat, got %s", cfg.Recipient)
	}
	if cfg.Reminder.ConfirmWindow != 5*time.Minute {
		t.Errorf("expected window 5m, got %v", cfg.Reminder.ConfirmWindow)
	}
	if cfg.LogStore.Driver != "postgres" {
		t.Errorf("expected driver postgres, got %s", cfg.LogStore.Driver)
	}
}

func TestLegacyTelegramEnv(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "legacy-token")
	t.Setenv("TELEGRAM_CHAT_ID", "777")

	cfg, err := LoadFromReader(strings.NewReader(`{}`), "json")
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}

	if cfg.Channels.Telegram.Token != "legacy-token" {
		t.Errorf("expected legacy token, got %q", cfg.Channels.Telegram.Token)
	}
	if cfg.Recipient != "777" {
		t.Errorf("expected recipient 777, got %q", cfg.Recipient)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remindbot.yaml")
	if err := os.WriteFile(path, []byte("recipient: \"55\"\nhttp:\n  enabled: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Recipient != "55" || !cfg.HTTP.Enabled {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestInvalidInput(t *testing.T) {
	if _, err := LoadFromReader(strings.NewReader("{not json"), "json"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Recipient = "1"
		cfg.Channels.Telegram.Token = "t"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no recipient", func(c *Config) { c.Recipient = "" }, "recipient is required"},
		{"no token", func(c *Config) { c.Channels.Telegram.Token = "" }, "channels.telegram.token"},
		{"unknown channel", func(c *Config) { c.Channel = "fax" }, `unknown channel "fax"`},
		{"bad zone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "invalid timezone"},
		{"prompt after window", func(c *Config) { c.Reminder.PromptAfter = time.Hour }, "prompt_after"},
		{"no prompt", func(c *Config) { c.Reminder.PromptAfter = 0 }, ""},
		{"zero workers", func(c *Config) { c.Reminder.Workers = 0 }, "workers"},
		{"bad calendar time", func(c *Config) {
			c.Calendar = []CalendarEntry{{Weekday: "monday", Hour: 25}}
		}, "calendar[0]"},
		{"sheets without id", func(c *Config) { c.LogStore.Driver = "sheets" }, "spreadsheet_id"},
		{"unknown driver", func(c *Config) { c.LogStore.Driver = "csv" }, "unknown logstore driver"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if loc.String() != "Europe/Moscow" {
		t.Errorf("expected Europe/Moscow, got %s", loc)
	}
}
