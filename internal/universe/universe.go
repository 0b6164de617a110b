package universe

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Symbol is one instrument in the universe with its exchange code and
// ranking metadata
type Symbol struct {
	Symbol        string `yaml:"symbol" json:"symbol"`
	ExchangeCode  string `yaml:"exchange_code,omitempty" json:"exchange_code,omitempty"`
	MarketCapRank int    `yaml:"market_cap_rank,omitempty" json:"market_cap_rank,omitempty"`
}

// Config is the YAML universe definition: the index composition plus
// the index symbol itself
type Config struct {
	Universe struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		IndexSymbol string `yaml:"index_symbol"`
	} `yaml:"universe"`
	Symbols []Symbol `yaml:"symbols"`
}

// Manager holds the loaded instrument universe
type Manager struct {
	config  Config
	symbols []Symbol
}

// Load reads a universe YAML file and builds the manager
func Load(path string) (*Manager, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read universe config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse universe YAML: %w", err)
	}

	return NewManager(cfg)
}

// NewManager builds a manager from an in-memory config
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("universe %q contains no symbols", cfg.Universe.Name)
	}

	symbols := make([]Symbol, 0, len(cfg.Symbols))
	seen := make(map[string]bool, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		name := strings.TrimSpace(s.Symbol)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		s.Symbol = name
		symbols = append(symbols, s)
	}

	sort.Slice(symbols, func(i, j int) bool {
		if symbols[i].MarketCapRank != symbols[j].MarketCapRank {
			return symbols[i].MarketCapRank < symbols[j].MarketCapRank
		}
		return symbols[i].Symbol < symbols[j].Symbol
	})

	log.Info().
		Str("universe", cfg.Universe.Name).
		Int("symbols", len(symbols)).
		Msg("Universe loaded")

	return &Manager{config: cfg, symbols: symbols}, nil
}

// IndexSymbol returns the configured index symbol ("" when none)
func (m *Manager) IndexSymbol() string {
	return m.config.Universe.IndexSymbol
}

// Tickers returns the universe ticker list, optionally with the index
// symbol prepended
func (m *Manager) Tickers(includeIndex bool) []string {
	tickers := make([]string, 0, len(m.symbols)+1)
	if includeIndex && m.config.Universe.IndexSymbol != "" {
		tickers = append(tickers, m.config.Universe.IndexSymbol)
	}
	for _, s := range m.symbols {
		if s.Symbol == m.config.Universe.IndexSymbol {
			continue
		}
		tickers = append(tickers, s.Symbol)
	}
	return tickers
}

// Contains reports whether a ticker belongs to the universe (the index
// symbol counts)
func (m *Manager) Contains(ticker string) bool {
	if ticker == m.config.Universe.IndexSymbol {
		return true
	}
	for _, s := range m.symbols {
		if s.Symbol == ticker {
			return true
		}
	}
	return false
}

// ExchangeCode returns the venue-native code for a ticker, falling back
// to the ticker with any venue suffix stripped
func (m *Manager) ExchangeCode(ticker string) string {
	for _, s := range m.symbols {
		if s.Symbol == ticker && s.ExchangeCode != "" {
			return s.ExchangeCode
		}
	}
	if idx := strings.IndexByte(ticker, '.'); idx > 0 {
		return ticker[:idx]
	}
	return ticker
}
