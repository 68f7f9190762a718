package calculator

import (
	"errors"
	"math"

	"github.com/markcheno/go-talib"
)

// ErrInsufficientData is returned when a series is shorter than the requested window.
var ErrInsufficientData = errors.New("not enough data")

// CalculateEMA returns the latest exponential moving average of closes over period.
func CalculateEMA(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(closes) < period {
		return 0, ErrInsufficientData
	}
	values := talib.Ema(closes, period)
	last := values[len(values)-1]
	if math.IsNaN(last) || math.IsInf(last, 0) {
		return 0, errors.New("ema is not finite")
	}
	return last, nil
}
