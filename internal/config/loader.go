package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. REMINDBOT_RECIPIENT.
const EnvPrefix = "REMINDBOT"

// Load loads config from path. An empty path searches ./config.yaml and
// ./config/config.yaml; a missing file is not an error, so a deployment can
// run purely from the environment.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return decode(v)
}

// LoadFromReader loads config from r in the given format ("yaml", "json"),
// applying defaults and env overrides.
func LoadFromReader(r io.Reader, format string) (*Config, error) {
	v := newViper()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Variable names older deployments export.
	_ = v.BindEnv("channels.telegram.token", EnvPrefix+"_CHANNELS_TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("recipient", EnvPrefix+"_RECIPIENT", "TELEGRAM_CHAT_ID")
	return v
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("channel", d.Channel)
	v.SetDefault("recipient", d.Recipient)
	v.SetDefault("timezone", d.Timezone)

	v.SetDefault("reminder.confirm_window", d.Reminder.ConfirmWindow)
	v.SetDefault("reminder.prompt_after", d.Reminder.PromptAfter)
	v.SetDefault("reminder.io_timeout", d.Reminder.IOTimeout)
	v.SetDefault("reminder.workers", d.Reminder.Workers)
	v.SetDefault("reminder.default_text", d.Reminder.DefaultText)
	v.SetDefault("reminder.button_label", d.Reminder.ButtonLabel)
	v.SetDefault("reminder.prompt_text", d.Reminder.PromptText)
	v.SetDefault("reminder.rollover", d.Reminder.Rollover)

	v.SetDefault("channels.telegram.token", "")
	v.SetDefault("channels.discord.token", "")
	v.SetDefault("channels.slack.bot_token", "")
	v.SetDefault("channels.slack.app_token", "")

	v.SetDefault("logstore.driver", d.LogStore.Driver)
	v.SetDefault("logstore.confirmed_label", d.LogStore.ConfirmedLabel)
	v.SetDefault("logstore.unconfirmed_label", d.LogStore.UnconfirmedLabel)
	v.SetDefault("logstore.breaker.enabled", d.LogStore.Breaker.Enabled)
	v.SetDefault("logstore.breaker.max_requests", d.LogStore.Breaker.MaxRequests)
	v.SetDefault("logstore.breaker.interval", d.LogStore.Breaker.Interval)
	v.SetDefault("logstore.breaker.timeout", d.LogStore.Breaker.Timeout)
	v.SetDefault("logstore.breaker.failures", d.LogStore.Breaker.Failures)
	v.SetDefault("logstore.sheets.spreadsheet_id", d.LogStore.Sheets.SpreadsheetID)
	v.SetDefault("logstore.sheets.range", d.LogStore.Sheets.Range)
	v.SetDefault("logstore.sheets.credentials_file", d.LogStore.Sheets.CredentialsFile)
	v.SetDefault("logstore.sqlite.path", d.LogStore.SQLite.Path)
	v.SetDefault("logstore.postgres.dsn", d.LogStore.Postgres.DSN)

	v.SetDefault("http.enabled", d.HTTP.Enabled)
	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("http.heartbeat", d.HTTP.Heartbeat)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
