package liquidity

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantbr/ticksynth/internal/marketdata"
)

// Metrics describes one ticker's liquidity over the lookback window.
// Liquidity is the mean daily notional (volume x close); Percentile and
// Level are the ticker's rank within the analyzed set.
type Metrics struct {
	Ticker     string  `json:"ticker"`
	AvgVolume  float64 `json:"avg_volume"`
	AvgPrice   float64 `json:"avg_price"`
	Liquidity  float64 `json:"liquidity"`
	Percentile float64 `json:"percentile"`
	Level      int     `json:"level"`
}

// Analyzer ranks tickers by traded notional over a daily-candle
// lookback window
type Analyzer struct {
	source       marketdata.Source
	lookbackDays int
	minSessions  int
}

// NewAnalyzer creates a liquidity analyzer with the given lookback
func NewAnalyzer(source marketdata.Source, lookbackDays int) *Analyzer {
	if lookbackDays <= 0 {
		lookbackDays = 30
	}
	return &Analyzer{
		source:       source,
		lookbackDays: lookbackDays,
		minSessions:  5,
	}
}

// AnalyzeTickers computes liquidity metrics for every ticker that has
// enough valid sessions, ranked most liquid first. Tickers with missing
// or insufficient data are skipped, not fatal.
func (a *Analyzer) AnalyzeTickers(ctx context.Context, tickers []string, asOf time.Time) ([]Metrics, error) {
	// Extra calendar days absorb weekends and holidays in the window
	from := asOf.AddDate(0, 0, -(a.lookbackDays + 10))

	results := make([]Metrics, 0, len(tickers))
	for _, ticker := range tickers {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		m, err := a.analyzeTicker(ctx, ticker, from, asOf)
		if err != nil {
			log.Warn().Err(err).Str("ticker", ticker).Msg("Skipping ticker in liquidity analysis")
			continue
		}
		results = append(results, m)
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("no valid liquidity data collected for %d tickers", len(tickers))
	}

	rank(results)

	log.Info().Int("analyzed", len(results)).Int("requested", len(tickers)).Msg("Liquidity analysis complete")
	return results, nil
}

func (a *Analyzer) analyzeTicker(ctx context.Context, ticker string, from, to time.Time) (Metrics, error) {
	candles, err := a.source.DailyCandles(ctx, ticker, from, to)
	if err != nil {
		return Metrics{}, fmt.Errorf("daily candles: %w", err)
	}

	var sumPrice, sumVolume, sumNotional float64
	sessions := 0
	for _, c := range candles {
		if math.IsNaN(c.Close) || math.IsNaN(c.Volume) {
			continue
		}
		sumPrice += c.Close
		sumVolume += c.Volume
		sumNotional += c.Close * c.Volume
		sessions++
	}

	if sessions < a.minSessions {
		return Metrics{}, fmt.Errorf("only %d valid sessions, need %d", sessions, a.minSessions)
	}

	n := float64(sessions)
	return Metrics{
		Ticker:    ticker,
		AvgVolume: sumVolume / n,
		AvgPrice:  sumPrice / n,
		Liquidity: sumNotional / n,
	}, nil
}

// rank assigns percentile (ascending rank fraction x 100) and decile
// level, then orders the slice most liquid first
func rank(metrics []Metrics) {
	sort.Slice(metrics, func(i, j int) bool {
		return metrics[i].Liquidity < metrics[j].Liquidity
	})

	n := len(metrics)
	for i := range metrics {
		metrics[i].Percentile = float64(i+1) / float64(n) * 100
		level := i*10/n + 1
		if level > 10 {
			level = 10
		}
		metrics[i].Level = level
	}

	sort.Slice(metrics, func(i, j int) bool {
		return metrics[i].Liquidity > metrics[j].Liquidity
	})
}

// SelectByPercentiles picks n tickers spread evenly across the
// liquidity distribution: targets are evenly spaced between the 10th
// and 90th percentile, and each target takes the closest remaining
// ticker. Excluded tickers (e.g. the index itself) never participate.
func SelectByPercentiles(metrics []Metrics, n int, exclude []string) []string {
	excluded := make(map[string]bool, len(exclude))
	for _, t := range exclude {
		excluded[t] = true
	}

	pool := make([]Metrics, 0, len(metrics))
	for _, m := range metrics {
		if !excluded[m.Ticker] {
			pool = append(pool, m)
		}
	}

	if len(pool) <= n {
		selected := make([]string, 0, len(pool))
		for _, m := range pool {
			selected = append(selected, m.Ticker)
		}
		return selected
	}

	selected := make([]string, 0, n)
	for i := 0; i < n; i++ {
		target := 10.0
		if n > 1 {
			target = 10 + 80*float64(i)/float64(n-1)
		}

		best := -1
		bestDist := math.Inf(1)
		for j, m := range pool {
			if d := math.Abs(m.Percentile - target); d < bestDist {
				bestDist = d
				best = j
			}
		}

		selected = append(selected, pool[best].Ticker)
		pool = append(pool[:best], pool[best+1:]...)
	}
	return selected
}

// Find returns the metrics for one ticker
func Find(metrics []Metrics, ticker string) (Metrics, bool) {
	for _, m := range metrics {
		if m.Ticker == ticker {
			return m, true
		}
	}
	return Metrics{}, false
}
