// Package config loads the scalparo YAML configuration and applies
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Alpaca   Alpaca   `yaml:"alpaca"`
	Logging  Logging  `yaml:"logging"`
	Backtest Backtest `yaml:"backtest"`
	Fetch    Fetch    `yaml:"fetch"`
}

// Storage selects the bar store backend and its location.
type Storage struct {
	Backend    string `yaml:"backend"` // "sqlite" or "parquet"
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Path returns the backend-appropriate location.
func (s Storage) Path() string {
	if s.Backend == "sqlite" {
		return s.SQLitePath
	}
	return s.DataDir
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Backtest holds run defaults; per-run flags can override each of them.
type Backtest struct {
	InitialCash    float64 `yaml:"initial_cash"`
	CommissionRate float64 `yaml:"commission_rate"`
	RiskFreeRate   float64 `yaml:"risk_free_rate"`
	Annualization  float64 `yaml:"annualization"`
	RollingWindow  int     `yaml:"rolling_window"`
	Workers        int     `yaml:"workers"`
}

// Fetch configures the bar fetch job.
type Fetch struct {
	Symbols         []string `yaml:"symbols"`
	Interval        string   `yaml:"interval"`
	StartDate       string   `yaml:"start_date"`
	RateLimitPerMin int      `yaml:"rate_limit_per_min"`
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	return &Config{
		Storage: Storage{
			Backend:    "sqlite",
			DataDir:    "data",
			SQLitePath: "data/bars.db",
		},
		Logging: Logging{Level: "info", Format: "text"},
		Backtest: Backtest{
			InitialCash:    10000,
			CommissionRate: 0.001,
			RiskFreeRate:   0.02,
			Annualization:  252,
			RollingWindow:  30,
			Workers:        4,
		},
		Fetch: Fetch{
			Interval:        "1h",
			RateLimitPerMin: 200,
		},
	}
}

// Load reads the YAML file at path over the defaults and applies
// environment overrides. An empty path loads defaults plus environment
// only.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Storage.Backend != "sqlite" && c.Storage.Backend != "parquet" {
		return fmt.Errorf("storage.backend must be sqlite or parquet, got %q", c.Storage.Backend)
	}
	if c.Backtest.InitialCash <= 0 {
		return fmt.Errorf("backtest.initial_cash must be positive, got %v", c.Backtest.InitialCash)
	}
	if c.Backtest.CommissionRate < 0 || c.Backtest.CommissionRate >= 1 {
		return fmt.Errorf("backtest.commission_rate must be in [0, 1), got %v", c.Backtest.CommissionRate)
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding fields when set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SCALPARO_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("SCALPARO_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SCALPARO_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("SCALPARO_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SCALPARO_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SCALPARO_INITIAL_CASH"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Backtest.InitialCash = f
		}
	}
	if v := os.Getenv("SCALPARO_COMMISSION_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Backtest.CommissionRate = f
		}
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	// Standard Alpaca env vars, canonical names used by the SDK.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
