// Command scalparo-fetch pulls crypto bars from the Alpaca market-data API
// and writes them to the local bar store for later backtesting.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"scalparo/internal/config"
	"scalparo/internal/domain"
	"scalparo/internal/marketdata"
	"scalparo/internal/store"
	"scalparo/internal/util"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("SCALPARO_CONFIG"), "config file path")
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols (overrides config)")
	interval := flag.String("interval", "", "bar interval (overrides config)")
	startFlag := flag.String("start", "", "range start (YYYY-MM-DD, overrides config)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	if *symbolsFlag != "" {
		cfg.Fetch.Symbols = strings.Split(*symbolsFlag, ",")
	}
	if *interval != "" {
		cfg.Fetch.Interval = *interval
	}
	if *startFlag != "" {
		cfg.Fetch.StartDate = *startFlag
	}
	if len(cfg.Fetch.Symbols) == 0 {
		log.Fatal("no symbols to fetch; set fetch.symbols or -symbols")
	}
	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		log.Fatal("missing Alpaca credentials; set APCA_API_KEY_ID and APCA_API_SECRET_KEY")
	}

	start := time.Now().UTC().AddDate(0, -3, 0)
	if cfg.Fetch.StartDate != "" {
		start, err = time.Parse("2006-01-02", cfg.Fetch.StartDate)
		if err != nil {
			log.Fatalf("invalid fetch.start_date %q: %v", cfg.Fetch.StartDate, err)
		}
	}
	end := time.Now().UTC()

	barStore, err := store.Open(cfg.Storage.Backend, cfg.Storage.Path())
	if err != nil {
		log.Fatalf("failed to open bar store: %v", err)
	}
	defer barStore.Close()

	source := marketdata.NewAlpacaSource(
		cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL,
		cfg.Fetch.RateLimitPerMin, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	for _, symbol := range cfg.Fetch.Symbols {
		symbol = strings.TrimSpace(symbol)
		logger.Info("fetching bars",
			"symbol", symbol, "interval", cfg.Fetch.Interval,
			"start", start.Format("2006-01-02"), "end", end.Format("2006-01-02"))

		series, err := source.Bars(ctx, symbol, cfg.Fetch.Interval, start, end)
		if err != nil {
			log.Fatalf("fetch %s failed: %v", symbol, err)
		}
		if series.Len() == 0 {
			logger.Warn("no bars returned", "symbol", symbol)
			continue
		}

		bars := make([]domain.Bar, series.Len())
		for i := range bars {
			bars[i] = series.Bar(i)
		}
		if err := barStore.WriteBars(ctx, bars); err != nil {
			log.Fatalf("store %s failed: %v", symbol, err)
		}
		logger.Info("stored bars", "symbol", symbol, "count", series.Len())
	}
}
