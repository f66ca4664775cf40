// Package marketdata supplies bar series to the backtest runner, either
// straight from the Alpaca crypto API or from a local bar store populated
// by the fetch job.
package marketdata

import (
	"context"
	"fmt"
	"time"

	"scalparo/internal/domain"
	"scalparo/internal/store"
)

// StoreSource serves bars from a local BarStore. An uncovered range comes
// back as an empty series, keeping the source contract: empty, never
// partial or corrupt.
type StoreSource struct {
	Store store.BarStore
}

// Bars reads the symbol's bars for [start, end] and wraps them as a series.
// The interval argument is ignored; the store holds whatever interval the
// fetch job wrote.
func (s *StoreSource) Bars(ctx context.Context, symbol, _ string, start, end time.Time) (*domain.Series, error) {
	bars, err := s.Store.ReadBars(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("reading stored bars for %s: %w", symbol, err)
	}
	return domain.NewSeries(symbol, bars)
}
