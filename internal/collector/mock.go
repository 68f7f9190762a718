package collector

import (
	"context"
	"hash/fnv"
	"math"
	"time"

	"PivotScreener/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	// Bars, when non-nil, is the only data served; symbols missing from it are absent.
	Bars map[string][]model.OHLCV
	// Err, when set, fails the whole batch.
	Err error
	// Days of generated history for symbols not in Bars. Zero means 130.
	Days int
	// End is the date of the last generated bar. Zero means today.
	End time.Time
	// Calls counts FetchDailyBars invocations.
	Calls int
}

func (m *MockFetcher) Name() string { return "mock" }

// FetchDailyBars implements Fetcher.
func (m *MockFetcher) FetchDailyBars(ctx context.Context, symbols []string) (map[string][]model.OHLCV, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string][]model.OHLCV, len(symbols))
	for _, sym := range symbols {
		if bars, ok := m.Bars[sym]; ok {
			out[sym] = bars
			continue
		}
		if m.Bars == nil {
			out[sym] = m.generate(sym)
		}
	}
	return out, nil
}

// generate builds a deterministic weekday series whose price level and swing depend on the symbol.
func (m *MockFetcher) generate(symbol string) []model.OHLCV {
	days := m.Days
	if days <= 0 {
		days = 130
	}
	end := m.End
	if end.IsZero() {
		end = time.Now()
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	seed := h.Sum32()
	base := 100 + float64(seed%4900)
	swing := 0.002 + float64(seed%7)*0.002

	bars := make([]model.OHLCV, 0, days)
	for d := end; len(bars) < days; d = d.AddDate(0, 0, -1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		i := float64(len(bars))
		p := base * (1 + swing*math.Sin(i/5))
		bars = append(bars, model.OHLCV{
			Time:   time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location()),
			Open:   p * (1 - swing/10),
			High:   p * (1 + swing),
			Low:    p * (1 - swing),
			Close:  p,
			Volume: 1_000_000 + float64(seed%1000)*100,
		})
	}
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars
}
