package universe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleUniverse = `
universe:
  name: ibovespa
  description: Test composition
  index_symbol: "^BVSP"
symbols:
  - symbol: PETR4.SA
    exchange_code: PETR4
    market_cap_rank: 2
  - symbol: VALE3.SA
    exchange_code: VALE3
    market_cap_rank: 1
  - symbol: ITUB4.SA
    exchange_code: ITUB4
    market_cap_rank: 3
  - symbol: PETR4.SA
    exchange_code: PETR4
    market_cap_rank: 2
`

func writeUniverse(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "universe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	mgr, err := Load(writeUniverse(t, sampleUniverse))
	require.NoError(t, err)

	t.Run("dedupes_and_sorts_by_rank", func(t *testing.T) {
		assert.Equal(t, []string{"VALE3.SA", "PETR4.SA", "ITUB4.SA"}, mgr.Tickers(false))
	})

	t.Run("index_prepended", func(t *testing.T) {
		assert.Equal(t, []string{"^BVSP", "VALE3.SA", "PETR4.SA", "ITUB4.SA"}, mgr.Tickers(true))
	})

	t.Run("contains", func(t *testing.T) {
		assert.True(t, mgr.Contains("PETR4.SA"))
		assert.True(t, mgr.Contains("^BVSP"))
		assert.False(t, mgr.Contains("AAPL"))
	})

	t.Run("exchange_code", func(t *testing.T) {
		assert.Equal(t, "VALE3", mgr.ExchangeCode("VALE3.SA"))
		assert.Equal(t, "WEGE3", mgr.ExchangeCode("WEGE3.SA"), "falls back to stripping the suffix")
		assert.Equal(t, "^BVSP", mgr.ExchangeCode("^BVSP"))
	})
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing_file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("empty_universe", func(t *testing.T) {
		_, err := Load(writeUniverse(t, "universe:\n  name: empty\nsymbols: []\n"))
		assert.Error(t, err)
	})

	t.Run("bad_yaml", func(t *testing.T) {
		_, err := Load(writeUniverse(t, "universe: [unclosed"))
		assert.Error(t, err)
	})
}
