package stats

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/quantbr/ticksynth/internal/model"
	"github.com/quantbr/ticksynth/internal/net/ratelimit"
)

// Config configures the session-stats archive client
type Config struct {
	BaseURL  string        `yaml:"base_url"`
	CacheDir string        `yaml:"cache_dir"`
	Timeout  time.Duration `yaml:"timeout"`
	RPS      float64       `yaml:"rps"`
	Burst    int           `yaml:"burst"`
}

// Provider serves per-(ticker, date) session statistics. A nil result
// with nil error means the archive has no record for that session; the
// engine then falls back to its constant ticks-per-minute.
type Provider interface {
	SessionStats(ctx context.Context, tickerCode, date string) (*model.SessionStats, error)
}

// Client downloads annual fixed-width archive files, caches the
// extracted text on disk, and serves lookups from an in-memory index
// built once per year per run.
type Client struct {
	cfg     Config
	client  *http.Client
	limiter *ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker

	mu    sync.Mutex
	years map[int]map[string]model.SessionStats
}

// NewClient creates an archive client and ensures the cache directory
// exists
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("stats archive base_url is empty")
	}
	if cfg.CacheDir == "" {
		return nil, fmt.Errorf("stats archive cache_dir is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 2
	}

	if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create stats cache dir: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "stats-archive",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: ratelimit.NewLimiter(cfg.RPS, cfg.Burst),
		breaker: breaker,
		years:   make(map[int]map[string]model.SessionStats),
	}, nil
}

// SessionStats returns the archived session record for a ticker code
// (venue-native, without any suffix) on a YYYY-MM-DD date
func (c *Client) SessionStats(ctx context.Context, tickerCode, date string) (*model.SessionStats, error) {
	if len(date) != 10 {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", date)
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", date)
	}

	index, err := c.yearIndex(ctx, year)
	if err != nil {
		return nil, err
	}

	rec, ok := index[indexKey(tickerCode, date)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func indexKey(tickerCode, date string) string {
	return tickerCode + "|" + date
}

// yearIndex loads (downloading if necessary) and indexes one annual
// archive. Loads are serialized; every later lookup is a map read.
func (c *Client) yearIndex(ctx context.Context, year int) (map[string]model.SessionStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index, ok := c.years[year]; ok {
		return index, nil
	}

	txtPath := filepath.Join(c.cfg.CacheDir, fmt.Sprintf("COTAHIST_A%d.TXT", year))
	if _, err := os.Stat(txtPath); os.IsNotExist(err) {
		log.Info().Int("year", year).Msg("Downloading session-stats archive")
		if err := c.download(ctx, year, txtPath); err != nil {
			return nil, err
		}
	}

	f, err := os.Open(txtPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cached archive: %w", err)
	}
	defer f.Close()

	records, err := ParseArchive(f)
	if err != nil {
		return nil, err
	}

	index := make(map[string]model.SessionStats, len(records))
	for _, rec := range records {
		key := indexKey(rec.Ticker, rec.Date)
		// First record wins when the archive repeats a session
		if _, exists := index[key]; !exists {
			index[key] = rec
		}
	}

	c.years[year] = index
	log.Info().Int("year", year).Int("sessions", len(index)).Msg("Session-stats archive indexed")
	return index, nil
}

// download fetches the annual ZIP and extracts its text payload to
// txtPath
func (c *Client) download(ctx context.Context, year int, txtPath string) error {
	endpoint := fmt.Sprintf("%s/COTAHIST_A%d.ZIP", c.cfg.BaseURL, year)

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid archive endpoint: %w", err)
	}
	if err := c.limiter.Wait(ctx, parsed.Host); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	zipPath := txtPath + ".zip"
	_, err = c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("archive request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("archive request returned status %d", resp.StatusCode)
		}

		out, err := os.Create(zipPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create archive file: %w", err)
		}
		defer out.Close()

		if _, err := io.Copy(out, resp.Body); err != nil {
			return nil, fmt.Errorf("failed to write archive file: %w", err)
		}
		return nil, nil
	})
	if err != nil {
		os.Remove(zipPath)
		return err
	}
	defer os.Remove(zipPath)

	return extractText(zipPath, txtPath)
}

// extractText pulls the first .TXT entry out of the downloaded ZIP
func extractText(zipPath, txtPath string) error {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("failed to open archive zip: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if !strings.EqualFold(filepath.Ext(file.Name), ".txt") {
			continue
		}

		src, err := file.Open()
		if err != nil {
			return fmt.Errorf("failed to open zip entry: %w", err)
		}
		defer src.Close()

		dst, err := os.Create(txtPath)
		if err != nil {
			return fmt.Errorf("failed to create extracted file: %w", err)
		}
		defer dst.Close()

		if _, err := io.Copy(dst, src); err != nil {
			return fmt.Errorf("failed to extract archive text: %w", err)
		}
		return nil
	}

	return fmt.Errorf("no text payload found in archive zip")
}
