// Package store persists OHLCV bar data so backtests can run repeatedly
// without refetching from the market data provider. Two backends exist:
// SQLite for a single-file cache and Parquet for a columnar layout that
// plays well with external analysis tools.
package store

import (
	"context"
	"fmt"
	"time"

	"scalparo/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars, deduplicating on
	// (symbol, timestamp); rewritten bars replace earlier ones.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the symbol within [start, end], ordered
	// by timestamp. A range with no data yields an empty slice.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols with stored bars.
	ListSymbols(ctx context.Context) ([]string, error)

	// Close releases backend resources.
	Close() error
}

// Open selects and initializes a backend by name: "sqlite" or "parquet".
// For SQLite, path is the database file; for Parquet, the data directory.
func Open(backend, path string) (BarStore, error) {
	switch backend {
	case "sqlite":
		return NewSQLiteStore(path)
	case "parquet":
		return NewParquetStore(path), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
