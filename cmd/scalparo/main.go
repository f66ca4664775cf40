// Command scalparo runs backtests against locally stored market data and
// prints or exports the resulting report.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"scalparo/internal/analytics"
	"scalparo/internal/backtest"
	"scalparo/internal/config"
	"scalparo/internal/domain"
	"scalparo/internal/marketdata"
	"scalparo/internal/report"
	"scalparo/internal/store"
	"scalparo/internal/strategy"
	_ "scalparo/internal/strategy/builtins"
	"scalparo/internal/util"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: scalparo <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  run         Run a backtest\n")
		fmt.Fprintf(os.Stderr, "  strategies  List registered strategies and their parameters\n")
		fmt.Fprintf(os.Stderr, "  version     Print the version\n")
		fmt.Fprintf(os.Stderr, "\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("scalparo %s\n", version)

	case "strategies":
		listStrategies()

	case "run":
		runBacktest(os.Args[2:])

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		flag.Usage()
		os.Exit(1)
	}
}

func listStrategies() {
	for _, name := range strategy.Default.List() {
		fmt.Println(name)
		specs, err := strategy.Default.ParamSpecs(name)
		if err != nil {
			continue
		}
		for pname, ps := range specs {
			fmt.Printf("  %-18s %-5s default=%-8v range=[%v, %v]  %s\n",
				pname, ps.Type, ps.Default, ps.Min, ps.Max, ps.Description)
		}
	}
}

func runBacktest(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	var (
		cfgPath    = fs.String("config", configPath(), "config file path")
		symbol     = fs.String("symbol", "BTC/USD", "instrument symbol, or a comma-separated list for a batch run")
		interval   = fs.String("interval", "1h", "bar interval")
		stratName  = fs.String("strategy", "sma-cross", "strategy name")
		paramsFlag = fs.String("params", "", "strategy parameters, name=value comma separated")
		startFlag  = fs.String("start", "", "range start (YYYY-MM-DD)")
		endFlag    = fs.String("end", "", "range end (YYYY-MM-DD), default now")
		cash       = fs.Float64("cash", 0, "initial cash (overrides config)")
		commission = fs.Float64("commission", -1, "commission rate (overrides config)")
		jsonPath   = fs.String("out", "", "write the JSON report to this file")
	)
	fs.Parse(args)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	params, err := parseParams(*paramsFlag)
	if err != nil {
		log.Fatalf("invalid -params: %v", err)
	}

	start, end, err := parseRange(*startFlag, *endFlag)
	if err != nil {
		log.Fatalf("invalid range: %v", err)
	}

	if *cash > 0 {
		cfg.Backtest.InitialCash = *cash
	}
	if *commission >= 0 {
		cfg.Backtest.CommissionRate = *commission
	}

	barStore, err := store.Open(cfg.Storage.Backend, cfg.Storage.Path())
	if err != nil {
		log.Fatalf("failed to open bar store: %v", err)
	}
	defer barStore.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	symbols := splitSymbols(*symbol)
	if len(symbols) == 0 {
		log.Fatal("no symbols given")
	}
	reqs := make([]backtest.RunRequest, len(symbols))
	for i, sym := range symbols {
		reqs[i] = backtest.RunRequest{
			Symbol:         sym,
			Interval:       *interval,
			Start:          start,
			End:            end,
			Strategy:       *stratName,
			Params:         params,
			InitialCash:    cfg.Backtest.InitialCash,
			CommissionRate: cfg.Backtest.CommissionRate,
		}
	}

	runner := backtest.NewRunner(&marketdata.StoreSource{Store: barStore}, strategy.Default, logger)
	results := runner.RunBatch(ctx, reqs, cfg.Backtest.Workers)

	failed := 0
	for _, br := range results {
		if br.Err != nil {
			logger.Error("backtest failed", "symbol", br.Request.Symbol, "err", br.Err)
			failed++
			continue
		}
		if err := emitReport(ctx, barStore, cfg, br.Request, br.Result, *jsonPath, len(symbols) > 1, logger); err != nil {
			log.Fatalf("report for %s failed: %v", br.Request.Symbol, err)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// emitReport analyzes one run against its stored reference bars and writes
// the console report, plus a JSON file when jsonPath is set. In a batch the
// symbol is folded into the file name so runs do not overwrite each other.
func emitReport(ctx context.Context, barStore store.BarStore, cfg *config.Config,
	req backtest.RunRequest, res *backtest.Result, jsonPath string, batch bool, logger *slog.Logger) error {

	market, err := barStore.ReadBars(ctx, req.Symbol, req.Start, req.End)
	if err != nil {
		return fmt.Errorf("reading reference bars: %w", err)
	}
	marketSeries, err := domain.NewSeries(req.Symbol, market)
	if err != nil {
		return fmt.Errorf("reference bars out of order: %w", err)
	}

	metrics := analytics.Analyze(res.EquityCurve, res.Trades, marketSeries, analytics.Config{
		RiskFreeRate:  cfg.Backtest.RiskFreeRate,
		Annualization: cfg.Backtest.Annualization,
		RollingWindow: cfg.Backtest.RollingWindow,
	})

	rep := report.Build(res, metrics, time.Now())
	if err := rep.WriteConsole(os.Stdout); err != nil {
		return fmt.Errorf("printing report: %w", err)
	}

	if jsonPath != "" {
		path := jsonPath
		if batch {
			path = outPath(jsonPath, req.Symbol)
		}
		data, err := rep.MarshalIndent()
		if err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		logger.Info("report written", "symbol", req.Symbol, "path", path)
	}
	return nil
}

// splitSymbols parses a comma-separated symbol list, dropping empties.
func splitSymbols(s string) []string {
	var out []string
	for _, sym := range strings.Split(s, ",") {
		if sym = strings.TrimSpace(sym); sym != "" {
			out = append(out, sym)
		}
	}
	return out
}

// outPath folds a symbol into a report file name: "report.json" with
// "BTC/USD" becomes "report-BTC-USD.json".
func outPath(base, symbol string) string {
	sym := strings.ReplaceAll(symbol, "/", "-")
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "-" + sym + ext
}

func configPath() string {
	if p := os.Getenv("SCALPARO_CONFIG"); p != "" {
		return p
	}
	return ""
}

// parseParams parses "period=20,dev=2.5" into a strategy parameter set.
func parseParams(s string) (strategy.Params, error) {
	params := strategy.Params{}
	if s == "" {
		return params, nil
	}
	for _, pair := range strings.Split(s, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("expected name=value, got %q", pair)
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		params[name] = f
	}
	return params, nil
}

func parseRange(startFlag, endFlag string) (time.Time, time.Time, error) {
	end := time.Now().UTC()
	if endFlag != "" {
		t, err := time.Parse("2006-01-02", endFlag)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = t
	}
	start := end.AddDate(0, -3, 0)
	if startFlag != "" {
		t, err := time.Parse("2006-01-02", startFlag)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = t
	}
	return start, end, nil
}
