package stats

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/quantbr/ticksynth/internal/model"
)

// Fixed-width field positions in the exchange's annual quote archive.
// Prices carry two implied decimal places.
const (
	fieldRecordType  = 0 // [0:2)
	fieldDate        = 2 // [2:10) YYYYMMDD
	fieldTickerCode  = 12
	fieldTickerEnd   = 24
	fieldOpen        = 56
	fieldHigh        = 69
	fieldLow         = 82
	fieldMean        = 95
	fieldClose       = 108
	fieldPriceWidth  = 13
	fieldTradeCount  = 147
	fieldTradeEnd    = 152
	fieldTotalQty    = 152
	fieldQtyEnd      = 170
	fieldNotional    = 170
	fieldNotionalEnd = 188

	minLineLength = fieldNotionalEnd
	quoteRecord   = "01"
)

// ParseArchive reads the fixed-width archive text and returns one
// SessionStats per quote record. Lines that are too short, non-quote
// records, or carry unparseable numerics are skipped.
func ParseArchive(r io.Reader) ([]model.SessionStats, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256), 1024)

	var records []model.SessionStats
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if len(line) < minLineLength || line[fieldRecordType:fieldRecordType+2] != quoteRecord {
			continue
		}

		rec, ok := parseLine(line)
		if !ok {
			continue
		}
		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed reading archive at line %d: %w", lineNo, err)
	}
	return records, nil
}

func parseLine(line string) (model.SessionStats, bool) {
	ticker := strings.TrimSpace(line[fieldTickerCode:fieldTickerEnd])
	if ticker == "" {
		return model.SessionStats{}, false
	}

	rawDate := line[fieldDate : fieldDate+8]
	if _, err := strconv.Atoi(rawDate); err != nil {
		return model.SessionStats{}, false
	}
	date := rawDate[0:4] + "-" + rawDate[4:6] + "-" + rawDate[6:8]

	trades, err := parseInt(line[fieldTradeCount:fieldTradeEnd])
	if err != nil {
		return model.SessionStats{}, false
	}
	qty, err := parseInt(line[fieldTotalQty:fieldQtyEnd])
	if err != nil {
		return model.SessionStats{}, false
	}
	notional, err := parseFloat(line[fieldNotional:fieldNotionalEnd])
	if err != nil {
		return model.SessionStats{}, false
	}

	prices := make([]float64, 0, 5)
	for _, start := range []int{fieldOpen, fieldHigh, fieldLow, fieldMean, fieldClose} {
		v, err := parseFloat(line[start : start+fieldPriceWidth])
		if err != nil {
			return model.SessionStats{}, false
		}
		prices = append(prices, v/100)
	}

	return model.SessionStats{
		Ticker:      ticker,
		Date:        date,
		TotalTrades: int(trades),
		TotalQty:    qty,
		Notional:    notional,
		Open:        prices[0],
		High:        prices[1],
		Low:         prices[2],
		Mean:        prices[3],
		Close:       prices[4],
	}, true
}

func parseInt(field string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(field), 10, 64)
}

func parseFloat(field string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(field), 64)
}
