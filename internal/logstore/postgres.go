package logstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores rows in a PostgreSQL table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn and ensures the reminder_log table exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS reminder_log (
			id         BIGSERIAL PRIMARY KEY,
			fire_date  TEXT NOT NULL,
			fire_time  TEXT NOT NULL,
			outcome    TEXT NOT NULL,
			logged_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) AppendRow(ctx context.Context, row Row) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO reminder_log (fire_date, fire_time, outcome) VALUES ($1, $2, $3)`,
		row.Date, row.Time, row.Outcome)
	if err != nil {
		return fmt.Errorf("failed to insert row: %w", err)
	}
	return nil
}

// Rows returns the most recent rows, oldest first. limit <= 0 returns all.
func (p *Postgres) Rows(ctx context.Context, limit int) ([]Row, error) {
	query := `SELECT fire_date, fire_time, outcome FROM reminder_log ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Date, &r.Time, &r.Outcome); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
