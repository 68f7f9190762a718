package strategy

import (
	"errors"
	"fmt"

	"PivotScreener/internal/calculator"
	"PivotScreener/internal/model"
)

// Config holds every threshold the rules use.
type Config struct {
	TightCPRThresholdPct float64
	CenterProximityPct   float64
	EMAProximityPct      float64
	PivotTolerancePct    float64
	SmallCandleBodyRatio float64
	EMAFastPeriod        int
	EMASlowPeriod        int
	MinHistoryBars       int
	CamarillaCenter      model.CenterPolicy
	InsideGranularity    model.Granularity
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		TightCPRThresholdPct: 0.5,
		CenterProximityPct:   0.3,
		EMAProximityPct:      1.5,
		PivotTolerancePct:    0.1,
		SmallCandleBodyRatio: 0.30,
		EMAFastPeriod:        8,
		EMASlowPeriod:        20,
		MinHistoryBars:       50,
		CamarillaCenter:      model.CenterPivotAverage,
		InsideGranularity:    model.GranularityMonthly,
	}
}

// Validate rejects configurations the rules cannot run with.
func (c Config) Validate() error {
	if c.TightCPRThresholdPct <= 0 || c.CenterProximityPct <= 0 || c.EMAProximityPct <= 0 {
		return errors.New("proximity thresholds must be positive")
	}
	if c.PivotTolerancePct < 0 || c.PivotTolerancePct >= 100 {
		return fmt.Errorf("pivot tolerance %.2f%% out of range", c.PivotTolerancePct)
	}
	if c.SmallCandleBodyRatio <= 0 || c.SmallCandleBodyRatio > 1 {
		return fmt.Errorf("small candle body ratio %.2f out of range", c.SmallCandleBodyRatio)
	}
	if c.EMAFastPeriod <= 0 || c.EMASlowPeriod <= 0 {
		return errors.New("ema periods must be positive")
	}
	// the daily test needs today and yesterday, and the EMAs need their window
	minBars := max(2, c.EMAFastPeriod, c.EMASlowPeriod, calculator.MinMonthlyBars)
	if c.MinHistoryBars < minBars {
		return fmt.Errorf("min history bars must be at least %d", minBars)
	}
	switch c.CamarillaCenter {
	case model.CenterPivotAverage, model.CenterClose:
	default:
		return fmt.Errorf("unknown camarilla center %q", c.CamarillaCenter)
	}
	switch c.InsideGranularity {
	case model.GranularityMonthly, model.GranularityDaily:
	default:
		return fmt.Errorf("unknown inside granularity %q", c.InsideGranularity)
	}
	return nil
}
