package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantbr/ticksynth/internal/model"
)

// Source provides OHLCV candles to the generation pipeline
type Source interface {
	// MinuteCandles returns the 1-minute candles for one ticker on one
	// trading date (YYYY-MM-DD), in chronological order
	MinuteCandles(ctx context.Context, ticker, date string) ([]model.Candle, error)

	// DailyCandles returns daily candles for the liquidity lookback
	// window, in chronological order
	DailyCandles(ctx context.Context, ticker string, from, to time.Time) ([]model.Candle, error)
}

// CacheRecorder observes cache outcomes. metrics.Registry satisfies it.
type CacheRecorder interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

// CachedSource wraps a Source with a candle cache
type CachedSource struct {
	source   Source
	cache    Cache
	ttl      time.Duration
	recorder CacheRecorder
}

// NewCachedSource creates a caching decorator around a candle source
func NewCachedSource(source Source, cache Cache, ttl time.Duration) *CachedSource {
	return &CachedSource{source: source, cache: cache, ttl: ttl}
}

// WithRecorder attaches a cache outcome recorder
func (s *CachedSource) WithRecorder(recorder CacheRecorder) *CachedSource {
	s.recorder = recorder
	return s
}

func (s *CachedSource) record(cacheType string, hit bool) {
	if s.recorder == nil {
		return
	}
	if hit {
		s.recorder.RecordCacheHit(cacheType)
	} else {
		s.recorder.RecordCacheMiss(cacheType)
	}
}

// MinuteCandles serves from cache when possible
func (s *CachedSource) MinuteCandles(ctx context.Context, ticker, date string) ([]model.Candle, error) {
	key := fmt.Sprintf("1m:%s:%s", ticker, date)
	if candles, ok := s.cache.Get(ctx, key); ok {
		s.record("1m", true)
		return candles, nil
	}
	s.record("1m", false)

	candles, err := s.source.MinuteCandles(ctx, ticker, date)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, key, candles, s.ttl)
	log.Debug().Str("ticker", ticker).Str("date", date).Int("candles", len(candles)).Msg("Minute candles cached")
	return candles, nil
}

// DailyCandles serves from cache when possible
func (s *CachedSource) DailyCandles(ctx context.Context, ticker string, from, to time.Time) ([]model.Candle, error) {
	key := fmt.Sprintf("1d:%s:%s:%s", ticker, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if candles, ok := s.cache.Get(ctx, key); ok {
		s.record("1d", true)
		return candles, nil
	}
	s.record("1d", false)

	candles, err := s.source.DailyCandles(ctx, ticker, from, to)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, key, candles, s.ttl)
	return candles, nil
}
