package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/app"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/calendar"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/config"
	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/logstore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "remindbot",
		Short:        "Reminder bot with acknowledge-or-timeout tracking",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./config.yaml)")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		setupLogging(cfg.Log)
		return cfg, nil
	}

	root.AddCommand(
		newRunCmd(load),
		newCheckConfigCmd(load),
		newNextCmd(load),
		newLogCmd(load),
	)
	return root
}

type loader func() (*config.Config, error)

func newRunCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx, cfg)
		},
	}
}

func newCheckConfigCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config ok: channel=%s logstore=%s timezone=%s calendar=%d\n",
				cfg.Channel, cfg.LogStore.Driver, cfg.Timezone, len(cfg.Calendar))
			return nil
		},
	}
}

func newNextCmd(load loader) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Print upcoming calendar reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			cal, err := calendar.FromConfig(cfg.Calendar, loc)
			if err != nil {
				return err
			}
			return printNext(cmd, cal, time.Now(), count)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 5, "number of occurrences to print")
	return cmd
}

func printNext(cmd *cobra.Command, cal *calendar.Calendar, from time.Time, count int) error {
	if cal.Len() == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "calendar is empty")
		return nil
	}
	t := from
	for i := 0; i < count; i++ {
		occ, ok := cal.Next(t)
		if !ok {
			break
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", occ.At.Format("Mon 2006-01-02 15:04"), occ.Text)
		t = occ.At
	}
	return nil
}

func newLogCmd(load loader) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Print the latest outcome rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			store, err := logstore.Open(ctx, cfg.LogStore)
			if err != nil {
				return err
			}
			defer store.Close()

			reader, ok := store.(logstore.Reader)
			if !ok {
				return fmt.Errorf("%s logstore: %w", cfg.LogStore.Driver, logstore.ErrNotListable)
			}
			rows, err := reader.Rows(ctx, limit)
			if err != nil {
				return err
			}
			for _, r := range rows {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", r.Date, r.Time, r.Outcome)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of rows to print, 0 for all")
	return cmd
}

func setupLogging(cfg config.LogConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
