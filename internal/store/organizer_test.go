package store

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbr/ticksynth/internal/liquidity"
	"github.com/quantbr/ticksynth/internal/model"
)

func sampleTicks() []model.Tick {
	start := time.Date(2025, 8, 22, 9, 30, 0, 0, time.UTC)
	return []model.Tick{
		{Timestamp: start, Bid: 37.54, Ask: 37.56, TradePrice: 37.55, Volume: 1200, Side: model.SideBuy},
		{Timestamp: start.Add(500 * time.Millisecond), Bid: 37.55, Ask: 37.57, TradePrice: 37.56, Volume: 800, Side: model.SideSell},
	}
}

func TestOrganizer_SaveTickerTicks(t *testing.T) {
	o, err := NewOrganizer(t.TempDir())
	require.NoError(t, err)

	info := &liquidity.Metrics{Ticker: "PETR4.SA", Percentile: 87.5, Level: 9}
	require.NoError(t, o.SaveTickerTicks("PETR4.SA", "2025-08-22", sampleTicks(), info))

	f, err := os.Open(filepath.Join(o.tickersDir, "PETR4.SA", "2025-08-22_ticks.csv"))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"timestamp", "bid", "ask", "trade_price", "volume", "side"}, rows[0])
	assert.Equal(t, "37.5500", rows[1][3])
	assert.Equal(t, "1200", rows[1][4])
	assert.Equal(t, "buy", rows[1][5])
	assert.Equal(t, "sell", rows[2][5])

	stored, err := o.TickerInfo("PETR4.SA")
	require.NoError(t, err)
	assert.Equal(t, 9.0, stored["level"])
}

func TestOrganizer_TickerInfoMergePreservesFields(t *testing.T) {
	o, err := NewOrganizer(t.TempDir())
	require.NoError(t, err)

	tickerDir := filepath.Join(o.tickersDir, "VALE3.SA")
	require.NoError(t, os.MkdirAll(tickerDir, 0755))
	seed := map[string]interface{}{"exchange_code": "VALE3", "custom_note": "kept"}
	data, err := json.Marshal(seed)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(tickerDir, "ticker_info.json"), data, 0644))

	info := &liquidity.Metrics{Ticker: "VALE3.SA", Level: 7}
	require.NoError(t, o.SaveTickerTicks("VALE3.SA", "2025-08-22", sampleTicks(), info))

	stored, err := o.TickerInfo("VALE3.SA")
	require.NoError(t, err)
	assert.Equal(t, "kept", stored["custom_note"])
	assert.Equal(t, 7.0, stored["level"])
}

func TestOrganizer_LiquidityRankingRoundTrip(t *testing.T) {
	o, err := NewOrganizer(t.TempDir())
	require.NoError(t, err)

	metrics := []liquidity.Metrics{
		{Ticker: "PETR4.SA", Liquidity: 2_000_000, Percentile: 100, Level: 10},
		{Ticker: "VALE3.SA", Liquidity: 1_500_000, Percentile: 50, Level: 5},
	}
	require.NoError(t, o.SaveLiquidityRanking(metrics))

	loaded, err := o.LoadLiquidityRanking()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "PETR4.SA", loaded[0].Ticker)
	assert.Equal(t, 10, loaded[0].Level)
}

func TestOrganizer_Summarize(t *testing.T) {
	o, err := NewOrganizer(t.TempDir())
	require.NoError(t, err)

	info := &liquidity.Metrics{Ticker: "PETR4.SA", Level: 8}
	require.NoError(t, o.SaveTickerTicks("PETR4.SA", "2025-08-21", sampleTicks(), info))
	require.NoError(t, o.SaveTickerTicks("PETR4.SA", "2025-08-22", sampleTicks(), nil))
	require.NoError(t, o.SaveTickerTicks("VALE3.SA", "2025-08-22", sampleTicks(), nil))

	assert.Equal(t, []string{"PETR4.SA", "VALE3.SA"}, o.ListTickers())
	assert.Equal(t, []string{"2025-08-21", "2025-08-22"}, o.ListDates("PETR4.SA"))

	summary := o.Summarize()
	assert.Equal(t, 2, summary.TotalTickers)
	assert.Equal(t, 2, summary.Tickers["PETR4.SA"].NumDates)
	assert.Equal(t, 8, summary.Tickers["PETR4.SA"].LiquidityLevel)
	assert.Equal(t, 1, summary.Tickers["VALE3.SA"].NumDates)
}

func TestOrganizer_UpdateMetadata(t *testing.T) {
	o, err := NewOrganizer(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, o.UpdateMetadata(map[string]interface{}{"run_id": "abc", "tickers": 5.0}))
	require.NoError(t, o.UpdateMetadata(map[string]interface{}{"tickers": 6.0}))

	data, err := os.ReadFile(o.metadataPath)
	require.NoError(t, err)
	meta := make(map[string]interface{})
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, "abc", meta["run_id"])
	assert.Equal(t, 6.0, meta["tickers"])
	assert.NotEmpty(t, meta["last_updated"])
}
