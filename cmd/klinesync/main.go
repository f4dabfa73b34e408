// klinesync downloads historical kline (OHLCV) data from the Binance
// public REST API and keeps a local CSV series file up to date,
// appending only newly-available candles on each run.
//
// Usage:
//
//	klinesync sync --symbol BTCUSDT --interval 1h
//	klinesync sync --symbol ETHUSDT --interval 15m --out data/eth.csv
//	klinesync check
//
// For detailed help, use: klinesync --help
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/klinesync/klinesync/internal/apperrors"
	"github.com/klinesync/klinesync/internal/config"
	"github.com/klinesync/klinesync/internal/exchange"
	"github.com/klinesync/klinesync/internal/ingest"
	"github.com/klinesync/klinesync/internal/logger"
	"github.com/klinesync/klinesync/internal/storage"
	"github.com/klinesync/klinesync/internal/timeconv"
)

const (
	Version = "1.0.0"
	AppName = "klinesync"
)

// Exit codes following standard conventions
const (
	ExitSuccess     = 0
	ExitUsageError  = 1
	ExitConfigError = 2
	ExitTransport   = 3
	ExitDataError   = 4
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(ExitUsageError)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	settings, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		os.Exit(ExitConfigError)
	}

	log, closer, err := logger.New(settings.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to set up logging: %v\n", err)
		os.Exit(ExitConfigError)
	}
	if closer != nil {
		defer closer.Close()
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "sync":
		if err := runSync(ctx, settings, log, args); err != nil {
			log.Error("sync failed", "error", err)
			os.Exit(exitCodeFor(err))
		}
	case "check":
		if err := runCheck(ctx, settings, log); err != nil {
			log.Error("exchange health check failed", "error", err)
			os.Exit(ExitTransport)
		}
		fmt.Println("exchange reachable")
	case "--version", "-v", "version":
		fmt.Printf("%s version %s\n", AppName, Version)
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", command)
		printUsage()
		os.Exit(ExitUsageError)
	}
}

// runSync executes one incremental ingestion run and prints the one-line
// summary contract on success.
func runSync(ctx context.Context, settings config.Settings, log *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	symbol := fs.String("symbol", settings.Symbol, "Trading pair symbol (e.g. BTCUSDT)")
	interval := fs.String("interval", settings.Interval, "Candle interval (1m, 15m, 1h, 1d, 1w)")
	out := fs.String("out", "", "Output CSV path (default: derived from symbol and interval)")
	startIfEmpty := fs.String("start-if-empty", settings.StartIfEmpty, "Fetch start for a first-ever run")
	end := fs.String("end", "", "Optional fetch end time (default: open-ended)")
	dataDir := fs.String("data-dir", settings.DataDir, "Directory for derived output paths")
	limit := fs.Int("limit", settings.PageLimit, "Klines page size")
	delay := fs.Duration("delay", settings.PageDelay, "Fixed delay between kline pages")

	if err := fs.Parse(args); err != nil {
		os.Exit(ExitUsageError)
	}

	settings.DataDir = *dataDir
	outPath := *out
	if outPath == "" {
		outPath = settings.OutPath(*symbol, *interval)
	}

	// Reject a bad interval code before any network or file work.
	if _, err := timeconv.IntervalMillis(*interval); err != nil {
		return err
	}

	opts := []exchange.BinanceOption{
		exchange.WithLogger(log),
		exchange.WithPageDelay(*delay),
		exchange.WithPageLimit(*limit),
	}
	if settings.BaseURL != "" {
		opts = append(opts, exchange.WithBaseURL(settings.BaseURL))
	}
	adapter := exchange.NewBinanceAdapter(opts...)

	updater := ingest.NewUpdater(adapter, storage.NewCSVStore(log), log)

	req := ingest.UpdateRequest{
		Symbol:       *symbol,
		Interval:     *interval,
		OutPath:      outPath,
		StartIfEmpty: timeconv.Text(*startIfEmpty),
		PageLimit:    *limit,
	}
	if *end != "" {
		req.End = timeconv.Text(*end)
	}

	started := time.Now()
	result, err := updater.Update(ctx, req)
	if err != nil {
		return err
	}

	log.Debug("sync finished", "elapsed", time.Since(started))
	fmt.Printf("Saved/updated: %s | total_rows=%d | added_rows=%d\n",
		result.Path, result.TotalRows, result.AddedRows)
	return nil
}

// runCheck pings the exchange to verify it is reachable.
func runCheck(ctx context.Context, settings config.Settings, log *slog.Logger) error {
	opts := []exchange.BinanceOption{exchange.WithLogger(log)}
	if settings.BaseURL != "" {
		opts = append(opts, exchange.WithBaseURL(settings.BaseURL))
	}
	return exchange.NewBinanceAdapter(opts...).HealthCheck(ctx)
}

// exitCodeFor maps the error taxonomy onto exit codes.
func exitCodeFor(err error) int {
	switch {
	case apperrors.IsTransport(err):
		return ExitTransport
	case apperrors.IsCorruptSeriesFile(err):
		return ExitDataError
	default:
		return ExitDataError
	}
}

func printUsage() {
	fmt.Printf(`%s - incremental Binance OHLCV downloader

USAGE:
    %s <command> [options]

COMMANDS:
    sync       Fetch new candles and merge them into the series CSV
    check      Verify the exchange API is reachable
    version    Show version information
    help       Show this help message

SYNC OPTIONS:
    --symbol string           Trading pair symbol (default "BTCUSDT")
    --interval string         Candle interval: 1m, 15m, 1h, 1d, 1w (default "1h")
    --out string              Output CSV path (default: {data-dir}/{exchange}_{SYMBOL}_{interval}.csv)
    --start-if-empty string   Fetch start for a first-ever run (default "2024-01-01 00:00:00")
    --end string              Optional fetch end time
    --data-dir string         Directory for derived output paths (default "data/raw")
    --limit int               Klines page size (default 1000)
    --delay duration          Fixed delay between kline pages (default 200ms)

EXAMPLES:
    %s sync --symbol BTCUSDT --interval 1h
    %s sync --symbol ETHUSDT --interval 15m --end "2024-06-01 00:00:00"
    %s check

Configuration may also come from KLINESYNC_* environment variables or a
.env file in the working directory; flags take precedence.
`, AppName, AppName, AppName, AppName, AppName)
}
