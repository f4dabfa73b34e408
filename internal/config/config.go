// Package config provides the immutable settings value the pipeline is
// constructed from. Settings are built once at startup — defaults, then
// an optional .env file, then process environment — and passed down
// explicitly; nothing reads configuration from ambient state after that.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// envPrefix namespaces every environment variable this program reads.
const envPrefix = "KLINESYNC_"

// Settings holds the complete configuration for one run.
type Settings struct {
	// Exchange names the data source; it is part of the derived output
	// file name.
	Exchange string `env:"EXCHANGE"`

	// Symbol is the default trading pair.
	Symbol string `env:"SYMBOL"`

	// Interval is the default candle interval code.
	Interval string `env:"INTERVAL"`

	// DataDir is the directory derived output paths live in.
	DataDir string `env:"DATA_DIR"`

	// StartIfEmpty is the fallback fetch start for a first-ever run.
	StartIfEmpty string `env:"START_IF_EMPTY"`

	// BaseURL overrides the exchange API base URL when non-empty.
	BaseURL string `env:"BASE_URL"`

	// PageLimit is the klines page size.
	PageLimit int `env:"PAGE_LIMIT"`

	// PageDelay is the fixed delay between kline pages.
	PageDelay time.Duration `env:"PAGE_DELAY"`

	// Logging configures the slog handler.
	Logging LoggingSettings
}

// LoggingSettings configures structured logging.
type LoggingSettings struct {
	Level      string `env:"LOG_LEVEL"`       // debug, info, warn, error
	Format     string `env:"LOG_FORMAT"`      // text, json
	Output     string `env:"LOG_OUTPUT"`      // stderr, stdout, file
	FilePath   string `env:"LOG_FILE_PATH"`   // used when Output is "file"
	MaxSizeMB  int    `env:"LOG_MAX_SIZE"`    // rotation threshold
	MaxBackups int    `env:"LOG_MAX_BACKUPS"` // rotated files kept
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Exchange:     "binance",
		Symbol:       "BTCUSDT",
		Interval:     "1h",
		DataDir:      "data/raw",
		StartIfEmpty: "2024-01-01 00:00:00",
		PageLimit:    1000,
		PageDelay:    200 * time.Millisecond,
		Logging: LoggingSettings{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
	}
}

// Load builds the settings: defaults, then a .env file if one exists in
// the working directory, then process environment variables.
func Load() (Settings, error) {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	s := Default()

	s.Exchange = envString("EXCHANGE", s.Exchange)
	s.Symbol = envString("SYMBOL", s.Symbol)
	s.Interval = envString("INTERVAL", s.Interval)
	s.DataDir = envString("DATA_DIR", s.DataDir)
	s.StartIfEmpty = envString("START_IF_EMPTY", s.StartIfEmpty)
	s.BaseURL = envString("BASE_URL", s.BaseURL)

	var err error
	if s.PageLimit, err = envInt("PAGE_LIMIT", s.PageLimit); err != nil {
		return s, err
	}
	if s.PageDelay, err = envDuration("PAGE_DELAY", s.PageDelay); err != nil {
		return s, err
	}

	s.Logging.Level = envString("LOG_LEVEL", s.Logging.Level)
	s.Logging.Format = envString("LOG_FORMAT", s.Logging.Format)
	s.Logging.Output = envString("LOG_OUTPUT", s.Logging.Output)
	s.Logging.FilePath = envString("LOG_FILE_PATH", s.Logging.FilePath)
	if s.Logging.MaxSizeMB, err = envInt("LOG_MAX_SIZE", s.Logging.MaxSizeMB); err != nil {
		return s, err
	}
	if s.Logging.MaxBackups, err = envInt("LOG_MAX_BACKUPS", s.Logging.MaxBackups); err != nil {
		return s, err
	}

	return s, s.Validate()
}

// Validate checks the settings for values no run could work with.
func (s Settings) Validate() error {
	if s.Exchange == "" {
		return fmt.Errorf("exchange cannot be empty")
	}
	if s.Symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if s.Interval == "" {
		return fmt.Errorf("interval cannot be empty")
	}
	if s.DataDir == "" {
		return fmt.Errorf("data dir cannot be empty")
	}
	if s.PageLimit <= 0 {
		return fmt.Errorf("page limit must be positive, got %d", s.PageLimit)
	}
	if s.PageDelay < 0 {
		return fmt.Errorf("page delay cannot be negative, got %s", s.PageDelay)
	}
	return nil
}

// OutPath derives the series file path for a (symbol, interval) pair:
// {data_dir}/{exchange}_{SYMBOL}_{interval}.csv with the symbol
// upper-cased.
func (s Settings) OutPath(symbol, interval string) string {
	if symbol == "" {
		symbol = s.Symbol
	}
	if interval == "" {
		interval = s.Interval
	}
	return fmt.Sprintf("%s/%s_%s_%s.csv", s.DataDir, s.Exchange, strings.ToUpper(symbol), interval)
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
	}
	return d, nil
}
