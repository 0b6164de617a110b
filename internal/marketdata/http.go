package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/quantbr/ticksynth/internal/model"
	"github.com/quantbr/ticksynth/internal/net/ratelimit"
)

// HTTPSourceConfig configures the REST candle client
type HTTPSourceConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	RPS     float64       `yaml:"rps"`
	Burst   int           `yaml:"burst"`
}

// HTTPSource fetches candles from a REST endpoint serving normalized
// OHLCV JSON. Requests are rate limited per host and guarded by a
// circuit breaker so a flapping upstream fails fast instead of stalling
// the whole pipeline.
type HTTPSource struct {
	baseURL string
	client  *http.Client
	limiter *ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker
}

type candlesResponse struct {
	Symbol  string `json:"symbol"`
	Candles []struct {
		Timestamp time.Time `json:"timestamp"`
		Open      float64   `json:"open"`
		High      float64   `json:"high"`
		Low       float64   `json:"low"`
		Close     float64   `json:"close"`
		Volume    float64   `json:"volume"`
	} `json:"candles"`
}

// NewHTTPSource creates a REST candle source
func NewHTTPSource(cfg HTTPSourceConfig) (*HTTPSource, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("candle source base_url is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 4
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 8
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "candle-source",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state change")
		},
	})

	return &HTTPSource{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: ratelimit.NewLimiter(cfg.RPS, cfg.Burst),
		breaker: breaker,
	}, nil
}

// MinuteCandles fetches the 1-minute candles for one ticker and date
func (s *HTTPSource) MinuteCandles(ctx context.Context, ticker, date string) ([]model.Candle, error) {
	params := url.Values{}
	params.Set("symbol", ticker)
	params.Set("interval", "1m")
	params.Set("date", date)
	return s.fetch(ctx, ticker, params)
}

// DailyCandles fetches daily candles for the lookback window
func (s *HTTPSource) DailyCandles(ctx context.Context, ticker string, from, to time.Time) ([]model.Candle, error) {
	params := url.Values{}
	params.Set("symbol", ticker)
	params.Set("interval", "1d")
	params.Set("from", from.Format("2006-01-02"))
	params.Set("to", to.Format("2006-01-02"))
	return s.fetch(ctx, ticker, params)
}

func (s *HTTPSource) fetch(ctx context.Context, ticker string, params url.Values) ([]model.Candle, error) {
	endpoint := fmt.Sprintf("%s/v1/candles?%s", s.baseURL, params.Encode())

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid candle endpoint: %w", err)
	}
	if err := s.limiter.Wait(ctx, parsed.Host); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	result, err := s.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("candle request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("candle request returned status %d", resp.StatusCode)
		}

		var payload candlesResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("failed to decode candle response: %w", err)
		}
		return payload, nil
	})
	if err != nil {
		return nil, err
	}

	payload := result.(candlesResponse)
	candles := make([]model.Candle, 0, len(payload.Candles))
	for _, c := range payload.Candles {
		candles = append(candles, model.Candle{
			Ticker:    ticker,
			Timestamp: c.Timestamp,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		})
	}
	return candles, nil
}
