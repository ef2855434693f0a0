// Package prices fetches, aligns and caches daily closing prices for the
// frontier service.
package prices

import (
	"math"
	"sort"
	"time"

	"github.com/aristath/frontier/internal/modules/frontier"
)

// DailyClose is one adjusted closing price.
type DailyClose struct {
	Date  time.Time
	Close float64
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Align merges per-symbol histories onto the union of their dates and keeps
// only the dates on which every symbol has a close. Non-positive or non-finite
// closes count as missing. Column order follows symbols.
func Align(symbols []string, history map[string][]DailyClose) frontier.PriceSeries {
	byDate := make(map[time.Time][]float64)
	for i, sym := range symbols {
		for _, dc := range history[sym] {
			if dc.Close <= 0 || math.IsNaN(dc.Close) || math.IsInf(dc.Close, 0) {
				continue
			}
			d := DateOf(dc.Date)
			row, ok := byDate[d]
			if !ok {
				row = make([]float64, len(symbols))
				for j := range row {
					row[j] = math.NaN()
				}
				byDate[d] = row
			}
			row[i] = dc.Close
		}
	}

	allDates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		allDates = append(allDates, d)
	}
	sort.Slice(allDates, func(i, j int) bool { return allDates[i].Before(allDates[j]) })

	out := frontier.PriceSeries{
		Symbols: symbols,
		Dates:   make([]time.Time, 0, len(allDates)),
		Prices:  make([][]float64, 0, len(allDates)),
	}
	for _, d := range allDates {
		row := byDate[d]
		if !complete(row) {
			continue
		}
		out.Dates = append(out.Dates, d)
		out.Prices = append(out.Prices, row)
	}
	return out
}

func complete(row []float64) bool {
	for _, v := range row {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}
