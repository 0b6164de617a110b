package model

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCandle_Complete(t *testing.T) {
	base := Candle{
		Ticker:    "PETR4.SA",
		Timestamp: time.Date(2025, 8, 22, 9, 30, 0, 0, time.UTC),
		Open:      37.55,
		High:      37.70,
		Low:       37.50,
		Close:     37.65,
		Volume:    12000,
	}
	assert.True(t, base.Complete())

	nanVolume := base
	nanVolume.Volume = math.NaN()
	assert.False(t, nanVolume.Complete())

	infHigh := base
	infHigh.High = math.Inf(1)
	assert.False(t, infHigh.Complete())

	noTimestamp := base
	noTimestamp.Timestamp = time.Time{}
	assert.False(t, noTimestamp.Complete())
}

func TestCandle_Bullish(t *testing.T) {
	assert.True(t, Candle{Open: 10.00, Close: 10.10}.Bullish())
	assert.False(t, Candle{Open: 10.10, Close: 10.00}.Bullish())
	assert.False(t, Candle{Open: 10.00, Close: 10.00}.Bullish())
}

func TestCandle_Range(t *testing.T) {
	assert.InDelta(t, 0.25, Candle{High: 10.20, Low: 9.95}.Range(), 1e-9)
}
