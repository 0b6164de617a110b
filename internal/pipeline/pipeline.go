package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	applog "github.com/quantbr/ticksynth/internal/log"
	"github.com/quantbr/ticksynth/internal/liquidity"
	"github.com/quantbr/ticksynth/internal/marketdata"
	"github.com/quantbr/ticksynth/internal/metrics"
	"github.com/quantbr/ticksynth/internal/model"
	"github.com/quantbr/ticksynth/internal/stats"
	"github.com/quantbr/ticksynth/internal/store"
	"github.com/quantbr/ticksynth/internal/synth"
	"github.com/quantbr/ticksynth/internal/universe"
)

// Pipeline step names, in execution order
const (
	StepLiquidity = "analyze_liquidity"
	StepSelect    = "select_tickers"
	StepGenerate  = "generate_ticks"
	StepFinalize  = "finalize_output"
)

// Sink receives generated sessions and run artifacts. store.Organizer
// is the production implementation.
type Sink interface {
	SaveTickerTicks(ticker, date string, ticks []model.Tick, info *liquidity.Metrics) error
	SaveLiquidityRanking(metrics []liquidity.Metrics) error
	UpdateMetadata(update map[string]interface{}) error
}

// Options wires a pipeline run. Stats, Repo and Metrics are optional.
type Options struct {
	Universe *universe.Manager
	Source   marketdata.Source
	Engine   *synth.Engine
	Sink     Sink

	Stats   stats.Provider
	Repo    store.TicksRepo
	Metrics *metrics.Registry

	Workers      int
	Days         int
	NumTickers   int
	LookbackDays int
	Plain        bool
}

// Result summarizes one completed run
type Result struct {
	RunID    string
	Selected []string
	Dates    []string
	Sessions int
	Failed   int
	Ticks    int
}

// Pipeline runs the five-step generation flow: universe, liquidity
// ranking, ticker selection, tick synthesis, output finalization
type Pipeline struct {
	opts Options
}

// New validates options and builds a pipeline
func New(opts Options) (*Pipeline, error) {
	if opts.Universe == nil {
		return nil, fmt.Errorf("pipeline requires a universe")
	}
	if opts.Source == nil {
		return nil, fmt.Errorf("pipeline requires a market data source")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("pipeline requires a generation engine")
	}
	if opts.Sink == nil {
		return nil, fmt.Errorf("pipeline requires an output sink")
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Days <= 0 {
		opts.Days = 5
	}
	if opts.NumTickers <= 0 {
		opts.NumTickers = 10
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 30
	}
	return &Pipeline{opts: opts}, nil
}

// Run executes the full pipeline as of the given date
func (p *Pipeline) Run(ctx context.Context, asOf time.Time) (*Result, error) {
	runID := uuid.New().String()
	steps := applog.NewStepLogger([]string{StepLiquidity, StepSelect, StepGenerate, StepFinalize})

	log.Info().
		Str("run_id", runID).
		Int("workers", p.opts.Workers).
		Int("days", p.opts.Days).
		Msg("Starting generation pipeline")

	steps.StartStep(StepLiquidity)
	ranked, err := p.analyzeLiquidity(ctx, asOf)
	if err != nil {
		steps.Fail(err.Error())
		return nil, err
	}

	steps.StartStep(StepSelect)
	selected := p.selectTickers(ranked)
	if len(selected) == 0 {
		err := fmt.Errorf("no tickers selected from %d ranked", len(ranked))
		steps.Fail(err.Error())
		return nil, err
	}
	log.Info().Strs("tickers", selected).Msg("Tickers selected")

	steps.StartStep(StepGenerate)
	dates := TradingDates(asOf, p.opts.Days)
	result := p.generate(ctx, runID, selected, dates, ranked)

	steps.StartStep(StepFinalize)
	if err := p.finalize(runID, result, asOf); err != nil {
		steps.Fail(err.Error())
		return nil, err
	}
	steps.Finish()

	if result.Sessions == 0 {
		return nil, fmt.Errorf("all %d sessions failed", result.Failed)
	}
	return result, nil
}

// analyzeLiquidity ranks the universe and persists the ranking
func (p *Pipeline) analyzeLiquidity(ctx context.Context, asOf time.Time) ([]liquidity.Metrics, error) {
	analyzer := liquidity.NewAnalyzer(p.opts.Source, p.opts.LookbackDays)
	ranked, err := analyzer.AnalyzeTickers(ctx, p.opts.Universe.Tickers(false), asOf)
	if err != nil {
		return nil, fmt.Errorf("liquidity analysis failed: %w", err)
	}
	if err := p.opts.Sink.SaveLiquidityRanking(ranked); err != nil {
		return nil, err
	}
	return ranked, nil
}

// selectTickers picks a percentile-spread sample, excluding the index
func (p *Pipeline) selectTickers(ranked []liquidity.Metrics) []string {
	var exclude []string
	if idx := p.opts.Universe.IndexSymbol(); idx != "" {
		exclude = append(exclude, idx)
	}
	return liquidity.SelectByPercentiles(ranked, p.opts.NumTickers, exclude)
}

type job struct {
	ticker string
	date   string
}

type jobResult struct {
	ok    bool
	ticks int
}

// generate fans ticker-date sessions out over a worker pool. Each
// worker derives its own engine from the session key, so the output
// for a given seed does not depend on scheduling.
func (p *Pipeline) generate(ctx context.Context, runID string, tickers, dates []string, ranked []liquidity.Metrics) *Result {
	jobs := make(chan job)
	results := make(chan jobResult)

	progress := applog.NewProgressIndicator("Generating sessions", len(tickers)*len(dates), p.opts.Plain)

	var wg sync.WaitGroup
	for w := 0; w < p.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				ticks, err := p.generateSession(ctx, j.ticker, j.date, ranked)
				if err != nil {
					log.Warn().Err(err).Str("ticker", j.ticker).Str("date", j.date).Msg("Session generation failed")
					results <- jobResult{ok: false}
					continue
				}
				results <- jobResult{ok: true, ticks: ticks}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, ticker := range tickers {
			for _, date := range dates {
				select {
				case jobs <- job{ticker: ticker, date: date}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	result := &Result{RunID: runID, Selected: tickers, Dates: dates}
	for r := range results {
		if r.ok {
			result.Sessions++
			result.Ticks += r.ticks
		} else {
			result.Failed++
		}
		progress.Increment("")
	}

	if result.Failed > 0 {
		progress.Fail(fmt.Sprintf("%d of %d sessions failed", result.Failed, result.Sessions+result.Failed))
	} else {
		progress.Finish()
	}
	return result
}

// generateSession synthesizes and persists one ticker-date session
func (p *Pipeline) generateSession(ctx context.Context, ticker, date string, ranked []liquidity.Metrics) (int, error) {
	var timer *metrics.SessionTimer
	if p.opts.Metrics != nil {
		timer = p.opts.Metrics.StartSession(ticker)
	}
	done := func(status string, ticks int) {
		if timer != nil {
			timer.Done(status, ticks)
		}
	}

	candles, err := p.opts.Source.MinuteCandles(ctx, ticker, date)
	if err != nil {
		if p.opts.Metrics != nil {
			p.opts.Metrics.RecordFetchError("candles")
		}
		done("fetch_error", 0)
		return 0, fmt.Errorf("fetch candles: %w", err)
	}
	if len(candles) == 0 {
		done("no_data", 0)
		return 0, fmt.Errorf("no candles for %s on %s", ticker, date)
	}

	var sessionStats *model.SessionStats
	if p.opts.Stats != nil {
		code := p.opts.Universe.ExchangeCode(ticker)
		sessionStats, err = p.opts.Stats.SessionStats(ctx, code, date)
		if err != nil {
			// Stats are an enrichment; the constant-rate fallback still
			// produces a valid session
			log.Warn().Err(err).Str("ticker", ticker).Str("date", date).Msg("Session stats unavailable")
			sessionStats = nil
		}
	}

	engine := p.opts.Engine.ForSession(ticker + "|" + date)
	ticks := engine.GenerateSession(candles, sessionStats)
	if len(ticks) == 0 {
		done("empty", 0)
		return 0, fmt.Errorf("no ticks generated for %s on %s", ticker, date)
	}

	var info *liquidity.Metrics
	if m, ok := liquidity.Find(ranked, ticker); ok {
		info = &m
	}
	if err := p.opts.Sink.SaveTickerTicks(ticker, date, ticks, info); err != nil {
		done("save_error", 0)
		return 0, fmt.Errorf("save session: %w", err)
	}

	if p.opts.Repo != nil {
		if err := p.opts.Repo.InsertBatch(ctx, ticker, date, ticks); err != nil {
			done("db_error", 0)
			return 0, fmt.Errorf("persist session: %w", err)
		}
	}

	done("ok", len(ticks))
	return len(ticks), nil
}

// finalize stamps run metadata on the output root
func (p *Pipeline) finalize(runID string, result *Result, asOf time.Time) error {
	return p.opts.Sink.UpdateMetadata(map[string]interface{}{
		"run_id":          runID,
		"as_of":           asOf.Format("2006-01-02"),
		"universe":        p.opts.Universe.IndexSymbol(),
		"tickers":         result.Selected,
		"dates":           result.Dates,
		"sessions":        result.Sessions,
		"failed_sessions": result.Failed,
		"total_ticks":     result.Ticks,
	})
}

// TradingDates returns the last n weekdays ending at asOf, oldest
// first, as YYYY-MM-DD strings. Exchange holidays are not modeled.
func TradingDates(asOf time.Time, n int) []string {
	dates := make([]string, 0, n)
	day := asOf
	for len(dates) < n {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			dates = append(dates, day.Format("2006-01-02"))
		}
		day = day.AddDate(0, 0, -1)
	}
	for i, j := 0, len(dates)-1; i < j; i, j = i+1, j-1 {
		dates[i], dates[j] = dates[j], dates[i]
	}
	return dates
}
