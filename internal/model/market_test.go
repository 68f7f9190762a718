package model

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC)
}

func TestSeriesAccessors(t *testing.T) {
	s := Series{
		{Time: day(1), Close: 1},
		{Time: day(2), Close: 2},
		{Time: day(3), Close: 3},
	}

	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, 3.0, cur.Close)

	ref, ok := s.MostRecentCompleted()
	require.True(t, ok)
	assert.Equal(t, 2.0, ref.Close)

	before, ok := s.ReferenceBeforeThat()
	require.True(t, ok)
	assert.Equal(t, 1.0, before.Close)

	_, ok = s[:2].ReferenceBeforeThat()
	assert.False(t, ok)
	_, ok = Series{}.Current()
	assert.False(t, ok)
}

func TestCleanBars(t *testing.T) {
	bars := []OHLCV{
		{Time: day(3), Open: 10, High: 11, Low: 9, Close: 10},
		{Time: day(1), Open: 10, High: 11, Low: 9, Close: 10},
		{Time: day(2), Open: math.NaN(), High: 11, Low: 9, Close: 10},
		{Time: day(4), Open: 10, High: 9, Low: 11, Close: 10},
		{Time: day(5), Open: 0, High: 11, Low: 9, Close: 10},
		{Open: 10, High: 11, Low: 9, Close: 10},
	}

	cleaned := CleanBars(bars)
	require.Len(t, cleaned, 2)
	assert.Equal(t, day(1), cleaned[0].Time)
	assert.Equal(t, day(3), cleaned[1].Time)
	assert.Len(t, bars, 6)
}

func TestScanDiagnosticsString(t *testing.T) {
	var d ScanDiagnostics
	assert.Equal(t, "no tickers evaluated", d.String())

	d.Count(OutcomeInsufficientHistory)
	d.Count(OutcomeInsufficientHistory)
	d.Count(OutcomeMatched)
	assert.Equal(t, "insufficient_history: 2, matched: 1", d.String())
}

func TestScanReportFilter(t *testing.T) {
	r := NewScanReport("run", day(1), 3, []StrategyMatch{
		{Ticker: "A", Strategies: []StrategyTag{TagDojiSetup}},
		{Ticker: "B", Strategies: []StrategyTag{TagInsideCamarilla}},
		{Ticker: "C", Strategies: []StrategyTag{TagDojiSetup, TagInsideCamarilla}},
	})

	assert.Equal(t, "2025-03-01 00:00:00", r.LastUpdated)
	doji := r.Filter(TagDojiSetup)
	require.Len(t, doji, 2)
	assert.Equal(t, "A", doji[0].Ticker)
	assert.Equal(t, "C", doji[1].Ticker)

	empty := NewScanReport("run", day(1), 0, nil)
	assert.NotNil(t, empty.Stocks)
}

func TestCleanBars_RejectsPricesOutsideRange(t *testing.T) {
	bars := []OHLCV{
		{Time: day(1), Open: 120, High: 110, Low: 90, Close: 100},
		{Time: day(2), Open: 100, High: 110, Low: 90, Close: 85},
		{Time: day(3), Open: 100, High: 110, Low: 90, Close: 110},
	}
	assert.False(t, bars[0].Valid(), "open above high")
	assert.False(t, bars[1].Valid(), "close below low")

	cleaned := CleanBars(bars)
	require.Len(t, cleaned, 1)
	assert.Equal(t, day(3), cleaned[0].Time)
}

func TestCleanBars_MergesRowsOfOneSession(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	at := func(d, h, m int) time.Time { return time.Date(2025, time.April, d, h, m, 0, 0, ist) }
	bars := []OHLCV{
		{Time: at(10, 15, 15), Open: 104, High: 106, Low: 103, Close: 105, Volume: 900},
		{Time: at(9, 9, 15), Open: 100, High: 102, Low: 99, Close: 101, Volume: 500},
		{Time: at(10, 9, 15), Open: 101, High: 104, Low: 100, Close: 103, Volume: 400},
	}

	s := Series(CleanBars(bars))
	require.Len(t, s, 2)

	yesterday, ok := s.MostRecentCompleted()
	require.True(t, ok)
	assert.Equal(t, at(9, 9, 15), yesterday.Time)

	today, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, OHLCV{Time: at(10, 9, 15), Open: 101, High: 106, Low: 100, Close: 105, Volume: 900}, today)
	assert.Equal(t, 104.0, bars[0].Open, "input is not modified")
}
