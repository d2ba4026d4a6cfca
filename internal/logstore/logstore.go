// Package logstore is the durable record of reminder outcomes. Each resolved
// reminder appends exactly one row; nothing is ever read back by the bot.
package logstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/config"
)

// Row is one outcome record. Date and Time are the intended fire time in the
// recipient zone, formatted as 2006-01-02 and 15:04.
type Row struct {
	Date    string
	Time    string
	Outcome string
}

// Values returns the row as spreadsheet cells.
func (r Row) Values() []interface{} {
	return []interface{}{r.Date, r.Time, r.Outcome}
}

// ErrNotListable is returned when the store cannot list what it recorded.
var ErrNotListable = errors.New("logstore cannot list rows")

// Store appends outcome rows.
type Store interface {
	AppendRow(ctx context.Context, row Row) error
	Close() error
}

// Reader is implemented by stores that can list what they recorded.
type Reader interface {
	Rows(ctx context.Context, limit int) ([]Row, error)
}

// Open builds the configured store, wrapped in a circuit breaker when enabled.
func Open(ctx context.Context, cfg config.LogStoreConfig) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.Driver {
	case "", "console":
		store = NewConsole()
	case "sheets":
		store, err = NewSheets(ctx, cfg.Sheets)
	case "sqlite":
		store, err = NewSQLite(cfg.SQLite.Path)
	case "postgres":
		store, err = NewPostgres(ctx, cfg.Postgres.DSN)
	default:
		return nil, fmt.Errorf("unknown logstore driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s logstore: %w", cfg.Driver, err)
	}

	if cfg.Breaker.Enabled {
		return NewBreaker(store, cfg.Driver, cfg.Breaker), nil
	}
	return store, nil
}
