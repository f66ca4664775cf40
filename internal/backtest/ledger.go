package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"scalparo/internal/domain"
	"scalparo/internal/strategy"
)

// sizeEpsilon absorbs float drift when matching a requested sell size
// against whole lots.
const sizeEpsilon = 1e-9

// Ledger tracks cash and the open lot list for one run. Lots open whole and
// close whole; allocated capital is maintained incrementally so that it
// always equals the sum of entry_price*size over open lots.
//
// The ledger is owned by the engine and is not safe for concurrent use.
// Strategies only ever see read-only snapshots of it.
type Ledger struct {
	cash      float64
	allocated float64
	lots      []domain.Lot // FIFO by open time
}

// NewLedger creates a ledger holding initialCash and no lots.
func NewLedger(initialCash float64) *Ledger {
	return &Ledger{cash: initialCash}
}

// Cash returns the free cash balance.
func (l *Ledger) Cash() float64 { return l.cash }

// Allocated returns the entry value of all open lots.
func (l *Ledger) Allocated() float64 { return l.allocated }

// HeldSize returns the total open quantity across lots.
func (l *Ledger) HeldSize() float64 {
	var total float64
	for _, lot := range l.lots {
		total += lot.Size
	}
	return total
}

// View returns a read-only snapshot for strategy consumption. The lot slice
// is copied so a strategy cannot reach back into ledger state.
func (l *Ledger) View() strategy.PortfolioView {
	lots := make([]domain.Lot, len(l.lots))
	copy(lots, l.lots)
	return strategy.PortfolioView{Cash: l.cash, Allocated: l.allocated, Lots: lots}
}

// MarkToMarket values the portfolio at the given price: cash plus every
// open lot's size at that price.
func (l *Ledger) MarkToMarket(price float64) float64 {
	v := l.cash
	for _, lot := range l.lots {
		v += lot.Size * price
	}
	return v
}

// OpenLot debits cost (fill value plus commission) from cash and appends a
// new lot. It returns ErrInsufficientFunds when cost exceeds cash, leaving
// the ledger untouched.
func (l *Ledger) OpenLot(price, size, cost float64, ts time.Time, targetPct, stopPrice float64) (domain.Lot, error) {
	if cost > l.cash+sizeEpsilon {
		return domain.Lot{}, fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientFunds, cost, l.cash)
	}
	lot := domain.Lot{
		ID:         uuid.NewString(),
		EntryPrice: price,
		Size:       size,
		OpenedAt:   ts,
		TargetPct:  targetPct,
		StopPrice:  stopPrice,
	}
	l.cash -= cost
	l.allocated += price * size
	l.lots = append(l.lots, lot)
	return lot, nil
}

// CloseLot removes the identified lot and credits proceeds (fill value minus
// commission) back to cash. The lot must exist and must close whole.
func (l *Ledger) CloseLot(lotID string, proceeds float64) (domain.Lot, error) {
	for i, lot := range l.lots {
		if lot.ID != lotID {
			continue
		}
		l.lots = append(l.lots[:i], l.lots[i+1:]...)
		l.allocated -= lot.EntryPrice * lot.Size
		if l.allocated < 0 && l.allocated > -sizeEpsilon {
			l.allocated = 0
		}
		l.cash += proceeds
		return lot, nil
	}
	return domain.Lot{}, fmt.Errorf("%w: unknown lot %q", ErrInvalidOrderSize, lotID)
}

// ResolveSell maps a sell intent onto concrete lots without mutating the
// ledger. A LotID names one specific lot and the requested size must match
// it whole. Without a LotID, size 0 selects the entire position and a
// positive size selects lots oldest-first, but only if it lands exactly on
// whole-lot boundaries.
func (l *Ledger) ResolveSell(lotID string, size float64) ([]domain.Lot, error) {
	if len(l.lots) == 0 {
		return nil, fmt.Errorf("%w: no open position", ErrInvalidOrderSize)
	}

	if lotID != "" {
		for _, lot := range l.lots {
			if lot.ID != lotID {
				continue
			}
			if size > 0 && math.Abs(size-lot.Size) > sizeEpsilon {
				return nil, fmt.Errorf("%w: lot %q holds %v, requested %v",
					ErrInvalidOrderSize, lotID, lot.Size, size)
			}
			return []domain.Lot{lot}, nil
		}
		return nil, fmt.Errorf("%w: unknown lot %q", ErrInvalidOrderSize, lotID)
	}

	if size <= 0 {
		out := make([]domain.Lot, len(l.lots))
		copy(out, l.lots)
		return out, nil
	}

	var out []domain.Lot
	remaining := size
	for _, lot := range l.lots {
		if remaining < sizeEpsilon {
			break
		}
		if lot.Size > remaining+sizeEpsilon {
			return nil, fmt.Errorf("%w: size %v does not align with whole lots", ErrInvalidOrderSize, size)
		}
		out = append(out, lot)
		remaining -= lot.Size
	}
	if remaining > sizeEpsilon {
		return nil, fmt.Errorf("%w: requested %v exceeds held %v", ErrInvalidOrderSize, size, l.HeldSize())
	}
	return out, nil
}
