package strategy

import (
	"PivotScreener/internal/calculator"
	"PivotScreener/internal/model"
)

// DojiInput is everything the Doji/CPR setup looks at for one ticker on one day.
type DojiInput struct {
	Price     float64
	Today     model.OHLCV
	CPR       model.CPRLevels       // from yesterday's bar
	Camarilla model.CamarillaLevels // from yesterday's bar
	EMAFast   float64               // zero when unavailable
	EMASlow   float64
}

// DojiSetup applies the daily tight-CPR rule. It returns the candle label that satisfied the shape
// condition, or PatternNone.
func DojiSetup(cfg Config, in DojiInput) (bool, model.CandlePattern) {
	label := candleShape(cfg, in.Today)

	if in.CPR.WidthPct >= cfg.TightCPRThresholdPct {
		return false, label
	}
	dist, err := calculator.DistancePct(in.Price, in.Camarilla.Center)
	if err != nil || dist >= cfg.CenterProximityPct {
		return false, label
	}
	if label == model.PatternNone {
		return false, label
	}
	if in.Price < in.CPR.Pivot*(1-cfg.PivotTolerancePct/100) {
		return false, label
	}
	if !nearEither(in.Price, cfg.EMAProximityPct, in.EMAFast, in.EMASlow) {
		return false, label
	}
	return true, label
}

// candleShape runs the classifier and falls back to the looser small-body check.
func candleShape(cfg Config, b model.OHLCV) model.CandlePattern {
	if res := calculator.ClassifyCandle(b.Open, b.High, b.Low, b.Close); res.Matched {
		return res.Label
	}
	if calculator.IsSmallCandle(b.Open, b.High, b.Low, b.Close, cfg.SmallCandleBodyRatio) {
		return model.PatternSmallCandle
	}
	return model.PatternNone
}

func nearEither(price, pct float64, averages ...float64) bool {
	for _, avg := range averages {
		if avg <= 0 {
			continue
		}
		if dist, err := calculator.DistancePct(price, avg); err == nil && dist < pct {
			return true
		}
	}
	return false
}

// InsideCamarilla reports whether both of curr's bands sit inside prev's.
func InsideCamarilla(curr, prev model.CamarillaLevels) bool {
	insideH3L3 := curr.H3 <= prev.H3 && curr.L3 >= prev.L3
	insideH4L4 := curr.H4 <= prev.H4 && curr.L4 >= prev.L4
	return insideH3L3 && insideH4L4
}
