package store

import (
	"context"
	"time"

	"github.com/quantbr/ticksynth/internal/model"
)

// TimeRange represents a time window for tick queries
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// TicksRepo persists generated tick sessions to a relational store for
// consumers that prefer SQL access over the CSV layout
type TicksRepo interface {
	// InsertBatch writes one generated session atomically
	InsertBatch(ctx context.Context, ticker, date string, ticks []model.Tick) error

	// ListByTicker retrieves ticks for a ticker within a time range,
	// ordered by timestamp
	ListByTicker(ctx context.Context, ticker string, tr TimeRange, limit int) ([]model.Tick, error)

	// Count returns the number of stored ticks in a time range
	Count(ctx context.Context, tr TimeRange) (int64, error)
}
