// Command frontier runs one simulation from the command line and prints the
// named portfolios. Logs go to stderr so the report can be piped.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/di"
	"github.com/aristath/frontier/internal/modules/export"
	"github.com/aristath/frontier/internal/modules/frontier"
	"github.com/aristath/frontier/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	symbols := flag.String("symbols", "", "comma-separated ticker symbols (required)")
	start := flag.String("start", time.Now().AddDate(-1, 0, 0).Format(time.DateOnly), "first day, YYYY-MM-DD")
	end := flag.String("end", time.Now().Format(time.DateOnly), "last day, YYYY-MM-DD")
	samples := flag.Int("samples", cfg.Sampler.DefaultSamples, "number of random portfolios")
	rf := flag.Float64("rf", cfg.Sampler.DefaultRiskFreeRate, "annual risk-free rate as a fraction")
	seed := flag.Uint64("seed", 0, "random seed for a reproducible run (unset = random)")
	top := flag.Int("top", 10, "print the best N sampled portfolios by Sharpe (0 = none)")
	showPrices := flag.Bool("prices", false, "print the aligned closing prices used for the run")
	chartPath := flag.String("chart", "", "write the frontier chart PNG to this path")
	parquetPath := flag.String("parquet", "", "write all sampled portfolios to this Parquet file")
	logLevel := flag.String("log-level", "warn", "log level (debug, info, warn, error)")
	flag.Parse()

	log := logger.New(logger.Config{
		Level:  *logLevel,
		Pretty: true,
		Output: os.Stderr,
	})

	req, err := buildRequest(*symbols, *start, *end, *samples, *rf)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			req.Seed = seed
		}
	})

	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	result, err := container.FrontierService.Run(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "simulation failed: %v\n", err)
		os.Exit(exitCode(err))
	}

	fmt.Printf("%s  %s .. %s  (%d observations, %d samples, rf %.2f%%)\n\n",
		strings.Join(result.Symbols, ","),
		result.Start.Format(time.DateOnly),
		result.End.Format(time.DateOnly),
		result.Observations,
		result.Samples,
		result.RiskFreeRate*100,
	)
	fmt.Print(frontier.FormatAssets(result.Moments))
	fmt.Println()
	fmt.Print(frontier.FormatReport(result))

	if *top > 0 {
		fmt.Printf("\nTop %d by Sharpe\n", *top)
		fmt.Print(frontier.FormatTable(frontier.TopBySharpe(result.Portfolios, *top), result.Symbols))
	}

	if *showPrices {
		fmt.Printf("\nPrices (%d rows)\n", result.Prices.Len())
		fmt.Print(frontier.FormatPrices(result.Prices))
	}

	if *chartPath != "" {
		buf, err := container.ChartService.RenderFrontier(result)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to render chart")
		}
		if err := os.WriteFile(*chartPath, buf, 0644); err != nil {
			log.Fatal().Err(err).Str("path", *chartPath).Msg("Failed to write chart")
		}
		fmt.Fprintf(os.Stderr, "chart written to %s\n", *chartPath)
	}

	if *parquetPath != "" {
		if err := export.WriteFile(*parquetPath, result); err != nil {
			log.Fatal().Err(err).Msg("Failed to export portfolios")
		}
		fmt.Fprintf(os.Stderr, "portfolios written to %s\n", *parquetPath)
	}
}

func buildRequest(symbols, start, end string, samples int, rf float64) (frontier.Request, error) {
	if strings.TrimSpace(symbols) == "" {
		return frontier.Request{}, errors.New("-symbols is required")
	}
	startDate, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return frontier.Request{}, fmt.Errorf("invalid -start %q: %w", start, err)
	}
	endDate, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return frontier.Request{}, fmt.Errorf("invalid -end %q: %w", end, err)
	}
	return frontier.Request{
		Symbols:      strings.Split(symbols, ","),
		Start:        startDate,
		End:          endDate,
		Samples:      samples,
		RiskFreeRate: rf,
	}, nil
}

// exitCode separates bad input from data and runtime failures
func exitCode(err error) int {
	switch {
	case errors.Is(err, frontier.ErrInvalidConfiguration):
		return 2
	case errors.Is(err, frontier.ErrNoData), errors.Is(err, frontier.ErrInsufficientData):
		return 3
	default:
		return 1
	}
}
