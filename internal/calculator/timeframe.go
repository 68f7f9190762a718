package calculator

import (
	"errors"
	"fmt"

	"PivotScreener/internal/model"
)

// ErrInsufficientMonths is returned when fewer than MinMonthlyBars calendar months are present.
var ErrInsufficientMonths = errors.New("not enough monthly bars")

// MinMonthlyBars covers the current month, the last completed month and the month before it.
const MinMonthlyBars = 3

// ToMonthly rolls ascending daily bars into calendar-month bars, grouping by the year and month of
// each bar in its own location. The last element is the current, possibly partial, month.
func ToMonthly(daily []model.OHLCV) ([]model.OHLCV, error) {
	var monthly []model.OHLCV
	var month model.OHLCV
	var started bool

	for _, d := range daily {
		if !started {
			month = d
			started = true
			continue
		}
		if d.Time.Year() != month.Time.Year() || d.Time.Month() != month.Time.Month() {
			monthly = append(monthly, month)
			month = d
			continue
		}
		if d.High > month.High {
			month.High = d.High
		}
		if d.Low < month.Low {
			month.Low = d.Low
		}
		month.Close = d.Close
		month.Volume += d.Volume
	}
	if started {
		monthly = append(monthly, month)
	}

	if len(monthly) < MinMonthlyBars {
		return monthly, fmt.Errorf("%w: got %d, need %d", ErrInsufficientMonths, len(monthly), MinMonthlyBars)
	}
	return monthly, nil
}
