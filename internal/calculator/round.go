package calculator

import (
	"github.com/shopspring/decimal"

	"PivotScreener/internal/model"
)

// Round2 rounds half away from zero to two decimals. Use it only when values leave the engine.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// RoundCPR returns a display copy of l.
func RoundCPR(l model.CPRLevels) model.CPRLevels {
	return model.CPRLevels{
		Pivot:         Round2(l.Pivot),
		BottomCentral: Round2(l.BottomCentral),
		TopCentral:    Round2(l.TopCentral),
		WidthPct:      Round2(l.WidthPct),
	}
}

// RoundCamarilla returns a display copy of l.
func RoundCamarilla(l model.CamarillaLevels) model.CamarillaLevels {
	return model.CamarillaLevels{
		H3:     Round2(l.H3),
		L3:     Round2(l.L3),
		H4:     Round2(l.H4),
		L4:     Round2(l.L4),
		Center: Round2(l.Center),
	}
}
