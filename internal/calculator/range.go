package calculator

import (
	"errors"
	"math"

	"PivotScreener/internal/model"
)

// DistancePct returns |price - ref| / ref * 100.
func DistancePct(price, ref float64) (float64, error) {
	if ref == 0 {
		return 0, errors.New("reference is zero")
	}
	return math.Abs(price-ref) / ref * 100, nil
}

// RangePct returns a bar's high-low range as a percentage of price.
func RangePct(bar model.OHLCV, price float64) (float64, error) {
	if price == 0 {
		return 0, errors.New("price is zero")
	}
	return bar.Range() / price * 100, nil
}
