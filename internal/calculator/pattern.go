package calculator

import (
	"math"

	"PivotScreener/internal/model"
)

const (
	// dojiBodyRatio is the largest body, as a share of range, still counted as a doji.
	dojiBodyRatio = 0.10
	// hammerWickMultiple is how many bodies the lower wick must exceed.
	hammerWickMultiple = 2.0
)

// ClassifyCandle labels a single bar as Doji or Hammer. Doji wins when both apply.
// A bar with zero range is never classified.
func ClassifyCandle(open, high, low, close float64) model.PatternResult {
	rng := high - low
	if rng == 0 {
		return model.PatternResult{Matched: false, Label: model.PatternNone}
	}
	body := math.Abs(close - open)
	if body <= rng*dojiBodyRatio {
		return model.PatternResult{Matched: true, Label: model.PatternDoji}
	}
	upperWick := high - math.Max(open, close)
	lowerWick := math.Min(open, close) - low
	if lowerWick > hammerWickMultiple*body && upperWick < body {
		return model.PatternResult{Matched: true, Label: model.PatternHammer}
	}
	return model.PatternResult{Matched: false, Label: model.PatternNone}
}

// IsSmallCandle reports whether body/range is below ratio. Zero-range bars never qualify.
func IsSmallCandle(open, high, low, close, ratio float64) bool {
	rng := high - low
	if rng <= 0 {
		return false
	}
	return math.Abs(close-open)/rng < ratio
}
