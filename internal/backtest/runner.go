package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"scalparo/internal/domain"
	"scalparo/internal/strategy"
)

// BarSource supplies the bar series for a run. An exhausted or unavailable
// range comes back as an empty series, never a partial one; the runner
// translates empty into ErrNoData before the engine starts.
type BarSource interface {
	Bars(ctx context.Context, symbol, interval string, start, end time.Time) (*domain.Series, error)
}

// RunRequest names everything one backtest needs.
type RunRequest struct {
	Symbol   string
	Interval string
	Start    time.Time
	End      time.Time

	Strategy string
	Params   strategy.Params

	InitialCash    float64
	CommissionRate float64
}

// Runner binds a bar source and a strategy registry to the engine. It
// validates configuration before any data is fetched, so an unknown
// strategy or an out-of-range parameter fails fast.
type Runner struct {
	source   BarSource
	registry *strategy.Registry
	logger   *slog.Logger
}

// NewRunner creates a runner. A nil registry uses the default registry; a
// nil logger disables logging.
func NewRunner(source BarSource, registry *strategy.Registry, logger *slog.Logger) *Runner {
	if registry == nil {
		registry = strategy.Default
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{source: source, registry: registry, logger: logger}
}

// Run executes one backtest end to end: build the strategy, fetch the bars,
// run the engine.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*Result, error) {
	strat, err := r.registry.New(req.Strategy, req.Params)
	if err != nil {
		return nil, err
	}

	series, err := r.source.Bars(ctx, req.Symbol, req.Interval, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("fetch bars for %s: %w", req.Symbol, err)
	}
	if series == nil || series.Len() == 0 {
		return nil, fmt.Errorf("%w: %s %s [%s, %s]", ErrNoData,
			req.Symbol, req.Interval, req.Start.Format(time.RFC3339), req.End.Format(time.RFC3339))
	}

	r.logger.Info("starting backtest",
		"symbol", req.Symbol, "strategy", req.Strategy, "bars", series.Len())

	engine := NewEngine(req.CommissionRate, r.logger)
	return engine.Run(series, strat, req.Params, req.InitialCash)
}

// BatchResult pairs one request with its outcome.
type BatchResult struct {
	Request RunRequest
	Result  *Result
	Err     error
}

// RunBatch executes independent requests across a bounded worker pool.
// Runs share no mutable state, so the only coordination is the work queue.
// Results come back in request order; a failed run fills its slot's Err
// without stopping the others.
func (r *Runner) RunBatch(ctx context.Context, reqs []RunRequest, workers int) []BatchResult {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(reqs) {
		workers = len(reqs)
	}

	out := make([]BatchResult, len(reqs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				res, err := r.Run(ctx, reqs[idx])
				out[idx] = BatchResult{Request: reqs[idx], Result: res, Err: err}
			}
		}()
	}

	for idx := range reqs {
		select {
		case jobs <- idx:
		case <-ctx.Done():
			out[idx] = BatchResult{Request: reqs[idx], Err: ctx.Err()}
		}
	}
	close(jobs)
	wg.Wait()
	return out
}
