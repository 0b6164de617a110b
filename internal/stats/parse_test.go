package stats

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// archiveLine builds one fixed-width quote record. Prices are written
// with two implied decimals, the way the exchange archive stores them.
func archiveLine(ticker, date string, open, high, low, mean, closePx float64, trades, qty, notional int64) string {
	line := []byte(strings.Repeat(" ", 245))
	put := func(start int, s string) {
		copy(line[start:], s)
	}

	put(0, "01")
	put(2, date)
	put(10, "02")
	put(12, fmt.Sprintf("%-12s", ticker))

	for i, px := range []float64{open, high, low, mean, closePx} {
		put(56+i*13, fmt.Sprintf("%013d", int64(math.Round(px*100))))
	}

	put(147, fmt.Sprintf("%05d", trades))
	put(152, fmt.Sprintf("%018d", qty))
	put(170, fmt.Sprintf("%018d", notional))

	return string(line)
}

func TestParseArchive(t *testing.T) {
	header := "00COTAHIST.2025BOVESPA " + strings.Repeat(" ", 222)
	trailer := "99COTAHIST.2025BOVESPA " + strings.Repeat(" ", 222)

	input := strings.Join([]string{
		header,
		archiveLine("PETR4", "20250822", 37.55, 38.10, 37.20, 37.70, 38.00, 45120, 82000000, 3090000000),
		archiveLine("VALE3", "20250822", 60.00, 61.25, 59.80, 60.50, 61.00, 38900, 41000000, 2480000000),
		"short line",
		trailer,
	}, "\n")

	records, err := ParseArchive(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2, "header, trailer and short lines are skipped")

	petr := records[0]
	assert.Equal(t, "PETR4", petr.Ticker)
	assert.Equal(t, "2025-08-22", petr.Date)
	assert.Equal(t, 45120, petr.TotalTrades)
	assert.Equal(t, int64(82000000), petr.TotalQty)
	assert.InDelta(t, 3090000000, petr.Notional, 0.001)
	assert.InDelta(t, 37.55, petr.Open, 0.001)
	assert.InDelta(t, 38.10, petr.High, 0.001)
	assert.InDelta(t, 37.20, petr.Low, 0.001)
	assert.InDelta(t, 37.70, petr.Mean, 0.001)
	assert.InDelta(t, 38.00, petr.Close, 0.001)

	assert.Equal(t, "VALE3", records[1].Ticker)
}

func TestParseArchive_Empty(t *testing.T) {
	records, err := ParseArchive(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParseArchive_BadNumerics(t *testing.T) {
	line := archiveLine("PETR4", "20250822", 37.55, 38.10, 37.20, 37.70, 38.00, 45120, 82000000, 3090000000)
	corrupted := line[:147] + "XXXXX" + line[152:]

	records, err := ParseArchive(strings.NewReader(corrupted))
	require.NoError(t, err)
	assert.Empty(t, records, "records with unparseable trade counts are skipped")
}
