package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantbr/ticksynth/internal/liquidity"
	"github.com/quantbr/ticksynth/internal/model"
)

const tickFileSuffix = "_ticks.csv"

// Organizer persists generated data in a structured directory layout:
//
//	<base>/metadata.json
//	<base>/liquidity_ranking.json
//	<base>/tickers/<ticker>/<date>_ticks.csv
//	<base>/tickers/<ticker>/ticker_info.json
type Organizer struct {
	tickersDir   string
	metadataPath string
	rankingPath  string
}

// TickerSummary describes the stored data for one ticker
type TickerSummary struct {
	NumDates       int      `json:"num_dates"`
	Dates          []string `json:"dates"`
	LiquidityLevel int      `json:"liquidity_level,omitempty"`
}

// Summary describes everything under the output root
type Summary struct {
	TotalTickers int                      `json:"total_tickers"`
	Tickers      map[string]TickerSummary `json:"tickers"`
}

// NewOrganizer creates the output directory structure
func NewOrganizer(baseDir string) (*Organizer, error) {
	o := &Organizer{
		tickersDir:   filepath.Join(baseDir, "tickers"),
		metadataPath: filepath.Join(baseDir, "metadata.json"),
		rankingPath:  filepath.Join(baseDir, "liquidity_ranking.json"),
	}
	if err := os.MkdirAll(o.tickersDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directories: %w", err)
	}
	return o, nil
}

// SaveTickerTicks writes one session's ticks as CSV and merges the
// ticker's liquidity metadata when provided
func (o *Organizer) SaveTickerTicks(ticker, date string, ticks []model.Tick, info *liquidity.Metrics) error {
	tickerDir := filepath.Join(o.tickersDir, ticker)
	if err := os.MkdirAll(tickerDir, 0755); err != nil {
		return fmt.Errorf("failed to create ticker dir: %w", err)
	}

	path := filepath.Join(tickerDir, date+tickFileSuffix)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create tick file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "bid", "ask", "trade_price", "volume", "side"}); err != nil {
		return fmt.Errorf("failed to write tick header: %w", err)
	}
	for _, tick := range ticks {
		record := []string{
			tick.Timestamp.UTC().Format(time.RFC3339Nano),
			strconv.FormatFloat(tick.Bid, 'f', 4, 64),
			strconv.FormatFloat(tick.Ask, 'f', 4, 64),
			strconv.FormatFloat(tick.TradePrice, 'f', 4, 64),
			strconv.FormatInt(tick.Volume, 10),
			string(tick.Side),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write tick record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush tick file: %w", err)
	}

	if info != nil {
		if err := o.updateTickerInfo(ticker, *info); err != nil {
			return err
		}
	}

	log.Debug().Str("ticker", ticker).Str("date", date).Int("ticks", len(ticks)).Msg("Session saved")
	return nil
}

// updateTickerInfo merges liquidity metadata into ticker_info.json
func (o *Organizer) updateTickerInfo(ticker string, info liquidity.Metrics) error {
	path := filepath.Join(o.tickersDir, ticker, "ticker_info.json")

	existing := make(map[string]interface{})
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			existing = make(map[string]interface{})
		}
	}

	fresh, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal ticker info: %w", err)
	}
	update := make(map[string]interface{})
	if err := json.Unmarshal(fresh, &update); err != nil {
		return fmt.Errorf("failed to merge ticker info: %w", err)
	}
	for k, v := range update {
		existing[k] = v
	}

	return writeJSON(path, existing)
}

// SaveLiquidityRanking writes the full ranking for later inspection
func (o *Organizer) SaveLiquidityRanking(metrics []liquidity.Metrics) error {
	if err := writeJSON(o.rankingPath, metrics); err != nil {
		return err
	}
	log.Info().Int("tickers", len(metrics)).Msg("Liquidity ranking saved")
	return nil
}

// LoadLiquidityRanking reads a previously saved ranking
func (o *Organizer) LoadLiquidityRanking() ([]liquidity.Metrics, error) {
	data, err := os.ReadFile(o.rankingPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read liquidity ranking: %w", err)
	}
	var metrics []liquidity.Metrics
	if err := json.Unmarshal(data, &metrics); err != nil {
		return nil, fmt.Errorf("failed to parse liquidity ranking: %w", err)
	}
	return metrics, nil
}

// UpdateMetadata merges fields into metadata.json and stamps
// last_updated
func (o *Organizer) UpdateMetadata(update map[string]interface{}) error {
	existing := make(map[string]interface{})
	if data, err := os.ReadFile(o.metadataPath); err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			existing = make(map[string]interface{})
		}
	}

	for k, v := range update {
		existing[k] = v
	}
	existing["last_updated"] = time.Now().UTC().Format(time.RFC3339)

	return writeJSON(o.metadataPath, existing)
}

// ListTickers returns every ticker that has stored data
func (o *Organizer) ListTickers() []string {
	entries, err := os.ReadDir(o.tickersDir)
	if err != nil {
		return nil
	}

	tickers := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			tickers = append(tickers, entry.Name())
		}
	}
	sort.Strings(tickers)
	return tickers
}

// ListDates returns the stored session dates for one ticker
func (o *Organizer) ListDates(ticker string) []string {
	entries, err := os.ReadDir(filepath.Join(o.tickersDir, ticker))
	if err != nil {
		return nil
	}

	dates := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, tickFileSuffix) {
			dates = append(dates, strings.TrimSuffix(name, tickFileSuffix))
		}
	}
	sort.Strings(dates)
	return dates
}

// TickerInfo loads the stored metadata for one ticker
func (o *Organizer) TickerInfo(ticker string) (map[string]interface{}, error) {
	data, err := os.ReadFile(filepath.Join(o.tickersDir, ticker, "ticker_info.json"))
	if err != nil {
		return nil, err
	}
	info := make(map[string]interface{})
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse ticker info: %w", err)
	}
	return info, nil
}

// Summarize walks the output root and reports what was generated
func (o *Organizer) Summarize() Summary {
	tickers := o.ListTickers()
	summary := Summary{
		TotalTickers: len(tickers),
		Tickers:      make(map[string]TickerSummary, len(tickers)),
	}

	for _, ticker := range tickers {
		dates := o.ListDates(ticker)
		ts := TickerSummary{NumDates: len(dates), Dates: dates}
		if info, err := o.TickerInfo(ticker); err == nil {
			if level, ok := info["level"].(float64); ok {
				ts.LiquidityLevel = int(level)
			}
		}
		summary.Tickers[ticker] = ts
	}
	return summary
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
