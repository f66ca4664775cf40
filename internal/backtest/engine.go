// Package backtest contains the execution engine: the strict per-bar loop
// that turns a bar series and a strategy into an equity curve, a fill log,
// and a list of closed trades.
package backtest

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"scalparo/internal/domain"
	"scalparo/internal/strategy"
)

// CashUseFraction is the default sizing policy for buy intents carrying
// neither an explicit size nor a value: spend this fraction of free cash at
// the bar close. The remainder covers the commission.
const CashUseFraction = 0.95

// Engine runs backtests with a fixed commission rate. One Engine may run
// many backtests; each run owns its own ledger and outputs, so independent
// runs share no mutable state.
type Engine struct {
	commissionRate float64
	logger         *slog.Logger
	newRecorder    func() Recorder
}

// Result is the frozen output of one completed run.
type Result struct {
	RunID           string
	Symbol          string
	StrategyName    string
	InitialCash     float64
	FinalValue      float64
	TotalCommission float64

	EquityCurve []domain.EquityPoint
	Fills       []domain.Fill
	Trades      []domain.Trade
	Signals     []domain.SignalMarker
	Rejections  []Rejection
}

// NewEngine creates an engine. A nil logger disables engine logging.
func NewEngine(commissionRate float64, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{commissionRate: commissionRate, logger: logger}
}

// UseRecorder makes subsequent runs record signals through recorders from
// factory instead of the default in-memory SignalLog. The factory is
// invoked once per run, so runs stay isolated.
func (e *Engine) UseRecorder(factory func() Recorder) {
	e.newRecorder = factory
}

func (e *Engine) recorder() Recorder {
	if e.newRecorder != nil {
		return e.newRecorder()
	}
	return NewSignalLog()
}

// Run drives the bar loop over the whole series.
//
// The loop is single-threaded and synchronous: each bar the strategy is
// asked for at most one intent, the intent fills immediately at the bar
// close or is rejected, and the portfolio is marked to market once. Order
// rejections are logged and recovered; any error from the strategy itself
// aborts the run with a StrategyFault, and an empty series fails with
// ErrNoData before the ledger is created.
func (e *Engine) Run(series *domain.Series, strat strategy.Strategy, params strategy.Params, initialCash float64) (*Result, error) {
	if series == nil || series.Len() == 0 {
		return nil, fmt.Errorf("%w: empty bar series", ErrNoData)
	}

	if err := strat.Init(series, params); err != nil {
		return nil, &StrategyFault{Strategy: strat.Name(), Bar: -1, Err: err}
	}

	ledger := NewLedger(initialCash)
	signals := e.recorder()
	observer, _ := strat.(strategy.FillObserver)

	res := &Result{
		RunID:        uuid.NewString(),
		Symbol:       series.Symbol(),
		StrategyName: strat.Name(),
		InitialCash:  initialCash,
		EquityCurve:  make([]domain.EquityPoint, 0, series.Len()),
	}
	entryCommission := make(map[string]float64)

	for i := 0; i < series.Len(); i++ {
		bar := series.Bar(i)

		intent, err := strat.Decide(i, ledger.View())
		if err != nil {
			return nil, &StrategyFault{Strategy: strat.Name(), Bar: i, Err: err}
		}
		if intent != nil {
			e.execute(i, bar, intent, ledger, signals, observer, res, entryCommission)
		}

		res.EquityCurve = append(res.EquityCurve, domain.EquityPoint{
			Timestamp: bar.Timestamp,
			Value:     ledger.MarkToMarket(bar.Close),
		})
	}

	res.FinalValue = res.EquityCurve[len(res.EquityCurve)-1].Value
	res.Signals = signals.Markers()
	res.Rejections = signals.Rejections()
	return res, nil
}

// execute fills a single intent at the bar close or records its rejection.
func (e *Engine) execute(i int, bar domain.Bar, intent *domain.Intent, ledger *Ledger,
	signals Recorder, observer strategy.FillObserver, res *Result, entryCommission map[string]float64) {

	switch intent.Side {
	case domain.SideBuy:
		e.executeBuy(i, bar, intent, ledger, signals, observer, res, entryCommission)
	case domain.SideSell:
		e.executeSell(i, bar, intent, ledger, signals, observer, res, entryCommission)
	default:
		e.logger.Warn("intent with unknown side dropped", "side", intent.Side, "bar", i)
	}
}

func (e *Engine) executeBuy(i int, bar domain.Bar, intent *domain.Intent, ledger *Ledger,
	signals Recorder, observer strategy.FillObserver, res *Result, entryCommission map[string]float64) {

	price := bar.Close
	size := intent.Size
	if size <= 0 && intent.Value > 0 {
		size = intent.Value / price
	}
	if size <= 0 {
		size = ledger.Cash() * CashUseFraction / price
	}
	if size <= 0 {
		e.reject(i, bar, intent, fmt.Errorf("%w: computed size %v", ErrInvalidOrderSize, size), signals)
		return
	}

	value := size * price
	commission := value * e.commissionRate
	lot, err := ledger.OpenLot(price, size, value+commission, bar.Timestamp, intent.TargetPct, intent.StopPrice)
	if err != nil {
		e.reject(i, bar, intent, err, signals)
		return
	}
	entryCommission[lot.ID] = commission

	fill := domain.Fill{
		Side:       domain.SideBuy,
		Price:      price,
		Size:       size,
		Value:      value,
		Commission: commission,
		Timestamp:  bar.Timestamp,
		Reason:     intent.Reason,
		LotID:      lot.ID,
	}
	e.applyFill(i, fill, bar, signals, observer, res)
}

func (e *Engine) executeSell(i int, bar domain.Bar, intent *domain.Intent, ledger *Ledger,
	signals Recorder, observer strategy.FillObserver, res *Result, entryCommission map[string]float64) {

	price := bar.Close
	lots, err := ledger.ResolveSell(intent.LotID, intent.Size)
	if err != nil {
		e.reject(i, bar, intent, err, signals)
		return
	}

	for _, target := range lots {
		value := target.Size * price
		commission := value * e.commissionRate
		closed, err := ledger.CloseLot(target.ID, value-commission)
		if err != nil {
			// ResolveSell validated against current state, so this is a bug.
			e.logger.Error("close of resolved lot failed", "lot", target.ID, "err", err)
			continue
		}

		buyCommission := entryCommission[closed.ID]
		delete(entryCommission, closed.ID)

		pnl := (price-closed.EntryPrice)*closed.Size - buyCommission - commission
		result := domain.TradeLoss
		if pnl > 0 {
			result = domain.TradeWin
		}
		res.Trades = append(res.Trades, domain.Trade{
			Direction:  "long",
			EntryPrice: closed.EntryPrice,
			ExitPrice:  price,
			Size:       closed.Size,
			PnL:        pnl,
			Result:     result,
			EntryTime:  closed.OpenedAt,
			ExitTime:   bar.Timestamp,
		})

		fill := domain.Fill{
			Side:       domain.SideSell,
			Price:      price,
			Size:       closed.Size,
			Value:      value,
			Commission: commission,
			Timestamp:  bar.Timestamp,
			Reason:     intent.Reason,
			LotID:      closed.ID,
		}
		e.applyFill(i, fill, bar, signals, observer, res)
	}
}

func (e *Engine) applyFill(i int, fill domain.Fill, bar domain.Bar,
	signals Recorder, observer strategy.FillObserver, res *Result) {

	res.Fills = append(res.Fills, fill)
	res.TotalCommission += fill.Commission
	signals.RecordFill(domain.SignalMarker{
		Timestamp: fill.Timestamp,
		Price:     fill.Price,
		Side:      fill.Side,
		Reason:    fill.Reason,
	})
	if observer != nil {
		observer.OnFill(i, fill)
	}
	e.logger.Debug("order filled",
		"bar", i, "side", fill.Side, "price", fill.Price, "size", fill.Size, "reason", fill.Reason)
}

func (e *Engine) reject(i int, bar domain.Bar, intent *domain.Intent, cause error, signals Recorder) {
	signals.RecordReject(bar.Timestamp, intent, cause)
	e.logger.Debug("intent rejected", "bar", i, "side", intent.Side, "cause", cause, "reason", intent.Reason)
}
