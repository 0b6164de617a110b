package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/quantbr/ticksynth/internal/config"
	"github.com/quantbr/ticksynth/internal/marketdata"
	"github.com/quantbr/ticksynth/internal/metrics"
	"github.com/quantbr/ticksynth/internal/pipeline"
	"github.com/quantbr/ticksynth/internal/stats"
	"github.com/quantbr/ticksynth/internal/store"
	"github.com/quantbr/ticksynth/internal/store/postgres"
	"github.com/quantbr/ticksynth/internal/synth"
	"github.com/quantbr/ticksynth/internal/universe"
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run the full generation pipeline",
		Long: `Rank the universe by liquidity, select a percentile spread of
tickers, and synthesize tick sessions for the last N trading days.`,
		RunE: runGenerate,
	}

	cmd.Flags().String("output", "", "Output directory (overrides config)")
	cmd.Flags().String("universe", "", "Universe YAML path (overrides config)")
	cmd.Flags().Int("tickers", 0, "Number of tickers to select")
	cmd.Flags().Int("days", 0, "Number of trading days to generate")
	cmd.Flags().Int("workers", 0, "Generation worker count")
	cmd.Flags().Int("ticks-per-min", 0, "Fallback ticks per minute without session stats")
	cmd.Flags().Float64("spread-mean", 0, "Mean bid-ask spread fraction")
	cmd.Flags().Int64("seed", 0, "Random seed (0 keeps the configured seed)")
	cmd.Flags().String("as-of", "", "Run as of date YYYY-MM-DD (default today)")
	cmd.Flags().String("progress", "auto", "Progress output mode (auto|plain)")

	return cmd
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyGenerateFlags(cmd, &cfg)

	asOf := time.Now().UTC()
	if raw, _ := cmd.Flags().GetString("as-of"); raw != "" {
		asOf, err = time.Parse("2006-01-02", raw)
		if err != nil {
			return fmt.Errorf("invalid --as-of date: %w", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	uni, err := universe.Load(cfg.UniversePath)
	if err != nil {
		return err
	}

	var registry *metrics.Registry
	if cfg.Metrics.Addr != "" {
		registry = metrics.NewRegistry()
	}

	source, err := buildSource(cfg, registry)
	if err != nil {
		return err
	}

	engine, err := synth.New(cfg.Generator)
	if err != nil {
		return err
	}

	sink, err := store.NewOrganizer(cfg.OutputDir)
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		Universe:     uni,
		Source:       source,
		Engine:       engine,
		Sink:         sink,
		Workers:      cfg.Pipeline.Workers,
		Days:         cfg.Pipeline.Days,
		NumTickers:   cfg.Pipeline.NumTickers,
		LookbackDays: cfg.Pipeline.LookbackDays,
		Plain:        plainProgress(cmd),
	}

	if cfg.Stats.BaseURL != "" {
		statsClient, err := stats.NewClient(cfg.Stats)
		if err != nil {
			return err
		}
		opts.Stats = statsClient
	}

	if cfg.Postgres.DSN != "" {
		db, err := postgres.Connect(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		opts.Repo = postgres.NewTicksRepo(db, cfg.Postgres.Timeout)
	}

	if registry != nil {
		server := metrics.NewServer(cfg.Metrics.Addr, registry)
		server.Start()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("Metrics server shutdown failed")
			}
		}()
		opts.Metrics = registry
	}

	p, err := pipeline.New(opts)
	if err != nil {
		return err
	}

	result, err := p.Run(ctx, asOf)
	if err != nil {
		return err
	}

	log.Info().
		Str("run_id", result.RunID).
		Int("sessions", result.Sessions).
		Int("failed", result.Failed).
		Int("ticks", result.Ticks).
		Str("output", cfg.OutputDir).
		Msg("Generation finished")
	return nil
}

// buildSource assembles the candle source with its cache layers
func buildSource(cfg config.Config, registry *metrics.Registry) (marketdata.Source, error) {
	httpSource, err := marketdata.NewHTTPSource(cfg.MarketData.HTTP)
	if err != nil {
		return nil, err
	}

	var cache marketdata.Cache
	ttl := cfg.MarketData.Cache.TTL
	if cfg.MarketData.Redis.Addr != "" {
		cache = marketdata.NewRedisCache(cfg.MarketData.Redis.Addr, cfg.MarketData.Redis.Password, cfg.MarketData.Redis.DB)
		ttl = cfg.MarketData.Redis.TTL
		log.Info().Str("addr", cfg.MarketData.Redis.Addr).Msg("Using Redis candle cache")
	} else {
		cache = marketdata.NewMemoryCache(int64(cfg.MarketData.Cache.MaxEntries))
	}

	source := marketdata.NewCachedSource(httpSource, cache, ttl)
	if registry != nil {
		source.WithRecorder(registry)
	}
	return source, nil
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// applyGenerateFlags lets CLI flags override the loaded config
func applyGenerateFlags(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetString("output"); v != "" {
		cfg.OutputDir = v
	}
	if v, _ := cmd.Flags().GetString("universe"); v != "" {
		cfg.UniversePath = v
	}
	if v, _ := cmd.Flags().GetInt("tickers"); v > 0 {
		cfg.Pipeline.NumTickers = v
	}
	if v, _ := cmd.Flags().GetInt("days"); v > 0 {
		cfg.Pipeline.Days = v
	}
	if v, _ := cmd.Flags().GetInt("workers"); v > 0 {
		cfg.Pipeline.Workers = v
	}
	if v, _ := cmd.Flags().GetInt("ticks-per-min"); v > 0 {
		cfg.Generator.TicksPerMin = v
	}
	if v, _ := cmd.Flags().GetFloat64("spread-mean"); v > 0 {
		cfg.Generator.SpreadMean = v
	}
	if v, _ := cmd.Flags().GetInt64("seed"); v != 0 {
		cfg.Generator.Seed = v
	}
}

// plainProgress decides whether to render the interactive progress bar
func plainProgress(cmd *cobra.Command) bool {
	mode, _ := cmd.Flags().GetString("progress")
	switch mode {
	case "plain":
		return true
	case "auto":
		return !term.IsTerminal(int(os.Stderr.Fd()))
	default:
		return false
	}
}
