package model

import (
	"math"
	"sort"
	"time"
)

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Range returns High - Low.
func (b OHLCV) Range() float64 { return b.High - b.Low }

// Body returns the absolute distance between open and close.
func (b OHLCV) Body() float64 { return math.Abs(b.Close - b.Open) }

// Valid reports whether every price is a positive finite number and the bar is internally consistent.
func (b OHLCV) Valid() bool {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return false
		}
	}
	if b.Time.IsZero() {
		return false
	}
	return b.High >= math.Max(b.Open, b.Close) && b.Low <= math.Min(b.Open, b.Close)
}

// sameSession reports whether a and b fall on the same calendar date in a's location.
func sameSession(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.In(a.Location()).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Series is an ascending sequence of bars. The last element is the bar under evaluation,
// which for monthly data may be a partial month.
type Series []OHLCV

// Current returns the bar being evaluated (today, or this month).
func (s Series) Current() (OHLCV, bool) {
	return s.fromEnd(1)
}

// MostRecentCompleted returns the reference bar for Current: yesterday, or last month.
func (s Series) MostRecentCompleted() (OHLCV, bool) {
	return s.fromEnd(2)
}

// ReferenceBeforeThat returns the reference bar for MostRecentCompleted.
func (s Series) ReferenceBeforeThat() (OHLCV, bool) {
	return s.fromEnd(3)
}

func (s Series) fromEnd(n int) (OHLCV, bool) {
	if len(s) < n {
		return OHLCV{}, false
	}
	return s[len(s)-n], true
}

// Closes extracts closing prices in order.
func (s Series) Closes() []float64 {
	closes := make([]float64, len(s))
	for i, b := range s {
		closes[i] = b.Close
	}
	return closes
}

// CleanBars drops incomplete or inconsistent rows and returns the rest sorted by time, one bar
// per calendar date. Rows sharing a date, such as a live intraday row next to the session row,
// are merged: first open, highest high, lowest low, last close, largest volume.
// The input slice is not modified.
func CleanBars(bars []OHLCV) []OHLCV {
	valid := make([]OHLCV, 0, len(bars))
	for _, b := range bars {
		if b.Valid() {
			valid = append(valid, b)
		}
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Time.Before(valid[j].Time) })

	out := valid[:0]
	for _, b := range valid {
		if n := len(out); n > 0 && sameSession(out[n-1].Time, b.Time) {
			last := &out[n-1]
			last.High = math.Max(last.High, b.High)
			last.Low = math.Min(last.Low, b.Low)
			last.Close = b.Close
			last.Volume = math.Max(last.Volume, b.Volume)
			continue
		}
		out = append(out, b)
	}
	return out
}
