package calculator

import (
	"errors"
	"math"

	"PivotScreener/internal/model"
)

// ErrZeroPivot is returned when a reference bar produces a zero pivot.
var ErrZeroPivot = errors.New("pivot is zero")

// camarillaFactor scales the reference range into H3/L3 (÷4) and H4/L4 (÷2) offsets.
const camarillaFactor = 1.1

// CalculateCPR derives the Central Pivot Range from a completed reference bar.
func CalculateCPR(high, low, close float64) (model.CPRLevels, error) {
	pivot := (high + low + close) / 3
	if pivot == 0 {
		return model.CPRLevels{}, ErrZeroPivot
	}
	bc := (high + low) / 2
	tc := pivot + (pivot - bc)
	return model.CPRLevels{
		Pivot:         pivot,
		BottomCentral: bc,
		TopCentral:    tc,
		WidthPct:      math.Abs(tc-bc) / pivot * 100,
	}, nil
}

// CalculateCamarilla derives Camarilla levels centred on the (h+l+c)/3 pivot.
func CalculateCamarilla(high, low, close float64) model.CamarillaLevels {
	return CalculateCamarillaWith(high, low, close, model.CenterPivotAverage)
}

// CalculateCamarillaWith derives Camarilla levels using the given center policy.
// A flat reference bar collapses every band onto close.
func CalculateCamarillaWith(high, low, close float64, center model.CenterPolicy) model.CamarillaLevels {
	r := high - low
	lv := model.CamarillaLevels{
		H3: close + r*camarillaFactor/4,
		L3: close - r*camarillaFactor/4,
		H4: close + r*camarillaFactor/2,
		L4: close - r*camarillaFactor/2,
	}
	switch center {
	case model.CenterClose:
		lv.Center = close
	default:
		lv.Center = (high + low + close) / 3
	}
	return lv
}

// CPRFromBar is CalculateCPR applied to a reference bar.
func CPRFromBar(ref model.OHLCV) (model.CPRLevels, error) {
	return CalculateCPR(ref.High, ref.Low, ref.Close)
}

// CamarillaFromBar is CalculateCamarillaWith applied to a reference bar.
func CamarillaFromBar(ref model.OHLCV, center model.CenterPolicy) model.CamarillaLevels {
	return CalculateCamarillaWith(ref.High, ref.Low, ref.Close, center)
}
