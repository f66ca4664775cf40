package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"scalparo/internal/domain"
	"scalparo/internal/util"
)

const (
	fetchAttempts = 3
	fetchBackoff  = 2 * time.Second
)

// AlpacaSource fetches crypto bars from the Alpaca market-data API. Calls
// are rate limited and retried with backoff.
type AlpacaSource struct {
	client  *marketdata.Client
	limiter *util.RateLimiter
	log     *slog.Logger
}

// NewAlpacaSource creates a source with the given credentials. An empty
// dataURL uses Alpaca's default endpoint; ratePerMinute caps outgoing
// request rate.
func NewAlpacaSource(apiKey, apiSecret, dataURL string, ratePerMinute int, logger *slog.Logger) *AlpacaSource {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AlpacaSource{
		client:  marketdata.NewClient(opts),
		limiter: util.NewRateLimiter(ratePerMinute),
		log:     logger.With("source", "alpaca"),
	}
}

// Bars fetches the symbol's crypto bars for [start, end] at the given
// interval ("1m", "15m", "1h", "1d", ...). A range with no data yields an
// empty series; API failures surface as errors after retries.
func (s *AlpacaSource) Bars(ctx context.Context, symbol, interval string, start, end time.Time) (*domain.Series, error) {
	tf, err := parseTimeFrame(interval)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var raw []marketdata.CryptoBar
	err = util.Retry(ctx, fetchAttempts, fetchBackoff, func() error {
		var reqErr error
		raw, reqErr = s.client.GetCryptoBars(symbol, marketdata.GetCryptoBarsRequest{
			TimeFrame: tf,
			Start:     start,
			End:       end,
		})
		return reqErr
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s %s bars: %w", symbol, interval, err)
	}

	bars := make([]domain.Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, domain.Bar{
			Symbol:    symbol,
			Timestamp: b.Timestamp.UTC(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}
	s.log.Debug("fetched bars", "symbol", symbol, "interval", interval, "count", len(bars))
	return domain.NewSeries(symbol, bars)
}

// parseTimeFrame maps interval strings like "1m", "15m", "1h", "1d" onto
// Alpaca timeframes.
func parseTimeFrame(interval string) (marketdata.TimeFrame, error) {
	if len(interval) < 2 {
		return marketdata.TimeFrame{}, fmt.Errorf("invalid interval %q", interval)
	}
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || n <= 0 {
		return marketdata.TimeFrame{}, fmt.Errorf("invalid interval %q", interval)
	}
	switch interval[len(interval)-1] {
	case 'm':
		return marketdata.NewTimeFrame(n, marketdata.Min), nil
	case 'h':
		return marketdata.NewTimeFrame(n, marketdata.Hour), nil
	case 'd':
		return marketdata.NewTimeFrame(n, marketdata.Day), nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("invalid interval %q", interval)
	}
}
