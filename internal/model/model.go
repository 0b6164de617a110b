package model

import (
	"math"
	"time"
)

// Side identifies the aggressor side of a synthesized trade
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Candle is one minute of OHLCV data for a single ticker
type Candle struct {
	Ticker    string    `json:"ticker"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Complete reports whether all OHLCV fields carry usable values.
// Candles failing this check are dropped before tick synthesis.
func (c Candle) Complete() bool {
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return !c.Timestamp.IsZero()
}

// Bullish reports whether the candle closed above its open
func (c Candle) Bullish() bool {
	return c.Close > c.Open
}

// Range returns the high-low price range
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// SessionStats carries exchange-reported session aggregates for one
// ticker on one trading date. TotalTrades drives the intraday tick
// distribution when present.
type SessionStats struct {
	Ticker      string  `json:"ticker"`
	Date        string  `json:"date"`
	TotalTrades int     `json:"total_trades"`
	TotalQty    int64   `json:"total_qty"`
	Notional    float64 `json:"notional"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Mean        float64 `json:"mean"`
	Close       float64 `json:"close"`
}

// Tick is one synthesized quote/trade event
type Tick struct {
	Timestamp  time.Time `json:"timestamp"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
	TradePrice float64   `json:"trade_price"`
	Volume     int64     `json:"volume"`
	Side       Side      `json:"side"`
}
