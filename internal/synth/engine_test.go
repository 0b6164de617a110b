package synth

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbr/ticksynth/internal/model"
)

func sessionStart() time.Time {
	return time.Date(2025, 8, 22, 9, 30, 0, 0, time.UTC)
}

func testCandle() model.Candle {
	return model.Candle{
		Ticker:    "PETR4.SA",
		Timestamp: sessionStart(),
		Open:      10.00,
		High:      10.20,
		Low:       9.95,
		Close:     10.15,
		Volume:    12000,
	}
}

func testSession(minutes int) []model.Candle {
	candles := make([]model.Candle, 0, minutes)
	for i := 0; i < minutes; i++ {
		c := testCandle()
		c.Timestamp = sessionStart().Add(time.Duration(i) * time.Minute)
		candles = append(candles, c)
	}
	return candles
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero_ticks_per_min", func(c *Config) { c.TicksPerMin = 0 }, true},
		{"negative_ticks_per_min", func(c *Config) { c.TicksPerMin = -5 }, true},
		{"negative_spread_vol", func(c *Config) { c.SpreadVol = -0.1 }, true},
		{"negative_volume_noise", func(c *Config) { c.VolumeNoise = -1 }, true},
		{"zero_vols_allowed", func(c *Config) { c.SpreadVol = 0; c.VolumeNoise = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGenerateSession_Determinism(t *testing.T) {
	candles := testSession(5)
	stats := &model.SessionStats{TotalTrades: 900}

	first, err := New(DefaultConfig())
	require.NoError(t, err)
	second, err := New(DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, first.GenerateSession(candles, stats), second.GenerateSession(candles, stats))
}

func TestGenerateSession_EndToEndExample(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TicksPerMin = 120
	cfg.SpreadMean = 0.0015
	cfg.SpreadVol = 0.0003
	cfg.Seed = 42

	engine, err := New(cfg)
	require.NoError(t, err)

	candle := testCandle()
	ticks := engine.GenerateSession([]model.Candle{candle}, nil)
	require.Len(t, ticks, 120)

	var totalVolume int64
	for i, tick := range ticks {
		wantTS := candle.Timestamp.Add(time.Duration(i) * 500 * time.Millisecond)
		assert.True(t, tick.Timestamp.Equal(wantTS), "tick %d timestamp %v want %v", i, tick.Timestamp, wantTS)

		assert.LessOrEqual(t, tick.Bid, tick.Ask, "tick %d inverted quote", i)
		for _, px := range []float64{tick.Bid, tick.Ask, tick.TradePrice} {
			assert.GreaterOrEqual(t, px, candle.Low, "tick %d below candle low", i)
			assert.LessOrEqual(t, px, candle.High, "tick %d above candle high", i)
		}
		assert.GreaterOrEqual(t, tick.Volume, int64(0))
		assert.Contains(t, []model.Side{model.SideBuy, model.SideSell}, tick.Side)

		totalVolume += tick.Volume
	}

	assert.InDelta(t, 12000, float64(totalVolume), 120, "volume conservation within one unit per tick")
}

func TestGenerateSession_ChronologicalOrder(t *testing.T) {
	engine, err := New(DefaultConfig())
	require.NoError(t, err)

	ticks := engine.GenerateSession(testSession(10), &model.SessionStats{TotalTrades: 2400})
	require.NotEmpty(t, ticks)

	for i := 1; i < len(ticks); i++ {
		assert.True(t, ticks[i-1].Timestamp.Before(ticks[i].Timestamp),
			"tick %d not strictly after predecessor", i)
	}
}

func TestGenerateSession_CountWithoutStats(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TicksPerMin = 37

	engine, err := New(cfg)
	require.NoError(t, err)

	ticks := engine.GenerateSession(testSession(4), nil)
	assert.Len(t, ticks, 4*37)
}

func TestGenerateSession_UShapeSchedule(t *testing.T) {
	engine, err := New(DefaultConfig())
	require.NoError(t, err)

	candles := testSession(3)
	ticks := engine.GenerateSession(candles, &model.SessionStats{TotalTrades: 900})

	perMinute := make([]int, 3)
	for _, tick := range ticks {
		idx := int(tick.Timestamp.Sub(sessionStart()) / time.Minute)
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, 3)
		perMinute[idx]++
	}

	total := perMinute[0] + perMinute[1] + perMinute[2]
	assert.InDelta(t, 900, float64(total), 10, "schedule sums approximately to target")
	assert.Greater(t, perMinute[0], perMinute[1], "open minute busier than midday")
	assert.Greater(t, perMinute[2], perMinute[1], "close minute busier than midday")
}

func TestGenerateSession_DirectionalBias(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TicksPerMin = 5000

	engine, err := New(cfg)
	require.NoError(t, err)

	bullish := testCandle() // close well above open
	ticks := engine.GenerateSession([]model.Candle{bullish}, nil)
	require.Len(t, ticks, 5000)

	buys := 0
	for _, tick := range ticks {
		if tick.Side == model.SideBuy {
			buys++
		}
	}
	frac := float64(buys) / float64(len(ticks))
	assert.Greater(t, frac, 0.52, "buy fraction should exceed 0.5 for bullish candle")
	assert.Less(t, frac, 0.58, "buy fraction should approach 0.55")
}

func TestGenerateSession_DropsIncompleteCandles(t *testing.T) {
	engine, err := New(DefaultConfig())
	require.NoError(t, err)

	candles := testSession(3)
	candles[1].Volume = math.NaN()

	ticks := engine.GenerateSession(candles, nil)
	assert.Len(t, ticks, 2*DefaultConfig().TicksPerMin)
}

func TestGenerateSession_EmptyInput(t *testing.T) {
	engine, err := New(DefaultConfig())
	require.NoError(t, err)

	assert.Empty(t, engine.GenerateSession(nil, nil))
	assert.Empty(t, engine.GenerateSession([]model.Candle{}, &model.SessionStats{TotalTrades: 500}))
}

func TestGenerateSession_PricePrecision(t *testing.T) {
	engine, err := New(DefaultConfig())
	require.NoError(t, err)

	ticks := engine.GenerateSession([]model.Candle{testCandle()}, nil)
	for _, tick := range ticks {
		for _, px := range []float64{tick.Bid, tick.Ask, tick.TradePrice} {
			scaled := px * 10000
			assert.InDelta(t, math.Round(scaled), scaled, 1e-6, "price %v not at 4-decimal precision", px)
		}
	}
}

func TestForSession(t *testing.T) {
	parent, err := New(DefaultConfig())
	require.NoError(t, err)

	candles := testSession(2)

	t.Run("same_key_reproducible", func(t *testing.T) {
		a := parent.ForSession("PETR4.SA/2025-08-22").GenerateSession(candles, nil)
		b := parent.ForSession("PETR4.SA/2025-08-22").GenerateSession(candles, nil)
		assert.Equal(t, a, b)
	})

	t.Run("different_keys_diverge", func(t *testing.T) {
		a := parent.ForSession("PETR4.SA/2025-08-22").GenerateSession(candles, nil)
		b := parent.ForSession("VALE3.SA/2025-08-22").GenerateSession(candles, nil)
		assert.NotEqual(t, a, b)
	})
}
