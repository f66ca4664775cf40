package backtest

import (
	"errors"
	"fmt"
)

// Run preconditions and per-intent rejections.
//
// ErrNoData is fatal and raised before any ledger mutation. The two order
// errors are recovered locally: the engine logs the rejection and the bar
// loop continues without a fill.
var (
	ErrNoData            = errors.New("no market data")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidOrderSize  = errors.New("invalid order size")
)

// StrategyFault wraps an error returned by a strategy's Init or Decide.
// It is fatal: the run aborts and no partial report is produced.
type StrategyFault struct {
	Strategy string
	Bar      int
	Err      error
}

func (f *StrategyFault) Error() string {
	return fmt.Sprintf("strategy %q failed at bar %d: %v", f.Strategy, f.Bar, f.Err)
}

func (f *StrategyFault) Unwrap() error { return f.Err }
