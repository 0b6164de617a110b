package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/quantbr/ticksynth/internal/model"
	"github.com/quantbr/ticksynth/internal/store"
)

// ticksRepo implements store.TicksRepo for PostgreSQL
type ticksRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewTicksRepo creates a new PostgreSQL tick repository
func NewTicksRepo(db *sqlx.DB, timeout time.Duration) store.TicksRepo {
	return &ticksRepo{
		db:      db,
		timeout: timeout,
	}
}

// Connect opens a PostgreSQL connection pool and verifies it
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// InsertBatch writes one generated session atomically
func (r *ticksRepo) InsertBatch(ctx context.Context, ticker, date string, ticks []model.Tick) error {
	if len(ticks) == 0 {
		return nil
	}

	// Scale the timeout with batch size; sessions can run to tens of
	// thousands of rows
	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(ticks)/1000+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO synthetic_ticks (ts, ticker, session_date, bid, ask, trade_price, volume, side)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, tick := range ticks {
		_, err = stmt.ExecContext(ctx,
			tick.Timestamp, ticker, date,
			tick.Bid, tick.Ask, tick.TradePrice, tick.Volume, tick.Side)
		if err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
				return fmt.Errorf("duplicate tick for %s at %s: %w", ticker, tick.Timestamp, err)
			}
			return fmt.Errorf("failed to insert tick in batch: %w", err)
		}
	}

	return tx.Commit()
}

// ListByTicker retrieves ticks for a ticker within a time range, oldest
// first
func (r *ticksRepo) ListByTicker(ctx context.Context, ticker string, tr store.TimeRange, limit int) ([]model.Tick, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT ts, bid, ask, trade_price, volume, side
		FROM synthetic_ticks
		WHERE ticker = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts
		LIMIT $4`

	rows, err := r.db.QueryxContext(ctx, query, ticker, tr.From, tr.To, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticks by ticker: %w", err)
	}
	defer rows.Close()

	var ticks []model.Tick
	for rows.Next() {
		var tick model.Tick
		if err := rows.Scan(&tick.Timestamp, &tick.Bid, &tick.Ask,
			&tick.TradePrice, &tick.Volume, &tick.Side); err != nil {
			return nil, fmt.Errorf("failed to scan tick: %w", err)
		}
		ticks = append(ticks, tick)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return ticks, nil
}

// Count returns total stored ticks in a time range
func (r *ticksRepo) Count(ctx context.Context, tr store.TimeRange) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT COUNT(*)
		FROM synthetic_ticks
		WHERE ts >= $1 AND ts <= $2`

	var count int64
	if err := r.db.QueryRowxContext(ctx, query, tr.From, tr.To).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count ticks: %w", err)
	}

	return count, nil
}
