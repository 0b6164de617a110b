package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantbr/ticksynth/internal/marketdata"
	"github.com/quantbr/ticksynth/internal/stats"
	"github.com/quantbr/ticksynth/internal/synth"
)

// Config is the full runtime configuration for a generation run
type Config struct {
	OutputDir    string `yaml:"output_dir"`
	UniversePath string `yaml:"universe_path"`

	Generator  synth.Config     `yaml:"generator"`
	MarketData MarketDataConfig `yaml:"market_data"`
	Stats      stats.Config     `yaml:"stats"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`

	Postgres PostgresConfig `yaml:"postgres"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// MarketDataConfig wires the candle source and its caches
type MarketDataConfig struct {
	HTTP  marketdata.HTTPSourceConfig `yaml:"http"`
	Cache CacheConfig                 `yaml:"cache"`
	Redis RedisConfig                 `yaml:"redis"`
}

// CacheConfig controls the in-memory candle cache
type CacheConfig struct {
	MaxEntries int           `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`
}

// RedisConfig enables the shared candle cache when Addr is set
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// PipelineConfig shapes one end-to-end run
type PipelineConfig struct {
	Workers      int `yaml:"workers"`
	Days         int `yaml:"days"`
	NumTickers   int `yaml:"num_tickers"`
	LookbackDays int `yaml:"lookback_days"`
}

// PostgresConfig enables relational persistence when DSN is set
type PostgresConfig struct {
	DSN     string        `yaml:"dsn"`
	Timeout time.Duration `yaml:"timeout"`
}

// MetricsConfig enables the observability endpoint when Addr is set
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		OutputDir:    "data",
		UniversePath: "configs/universe.yaml",
		Generator:    synth.DefaultConfig(),
		MarketData: MarketDataConfig{
			HTTP: marketdata.HTTPSourceConfig{
				Timeout: 30 * time.Second,
				RPS:     4,
				Burst:   8,
			},
			Cache: CacheConfig{
				MaxEntries: 1000,
				TTL:        15 * time.Minute,
			},
			Redis: RedisConfig{
				TTL: time.Hour,
			},
		},
		Stats: stats.Config{
			CacheDir: "data/.stats-cache",
			Timeout:  60 * time.Second,
			RPS:      1,
			Burst:    2,
		},
		Pipeline: PipelineConfig{
			Workers:      4,
			Days:         5,
			NumTickers:   10,
			LookbackDays: 30,
		},
		Postgres: PostgresConfig{
			Timeout: 10 * time.Second,
		},
	}
}

// Load reads a YAML config file over the defaults
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the fields the pipeline depends on
func (c Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir is empty")
	}
	if err := c.Generator.Validate(); err != nil {
		return fmt.Errorf("generator: %w", err)
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline workers must be positive, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.Days <= 0 {
		return fmt.Errorf("pipeline days must be positive, got %d", c.Pipeline.Days)
	}
	if c.Pipeline.NumTickers <= 0 {
		return fmt.Errorf("pipeline num_tickers must be positive, got %d", c.Pipeline.NumTickers)
	}
	if c.Pipeline.LookbackDays <= 0 {
		return fmt.Errorf("pipeline lookback_days must be positive, got %d", c.Pipeline.LookbackDays)
	}
	return nil
}
