package calculator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PivotScreener/internal/model"
)

func bar(y int, m time.Month, d int, o, h, l, c float64) model.OHLCV {
	return model.OHLCV{Time: time.Date(y, m, d, 9, 15, 0, 0, time.UTC), Open: o, High: h, Low: l, Close: c, Volume: 10}
}

func TestToMonthly_ThreeMonths(t *testing.T) {
	daily := []model.OHLCV{
		bar(2025, time.January, 2, 10, 12, 9, 11),
		bar(2025, time.January, 15, 11, 15, 10, 14),
		bar(2025, time.January, 31, 14, 14.5, 8, 9),
		bar(2025, time.February, 3, 20, 21, 19, 20),
		bar(2025, time.February, 28, 20, 25, 18, 24),
		bar(2025, time.March, 3, 30, 31, 29, 30.5),
	}

	monthly, err := ToMonthly(daily)
	require.NoError(t, err)
	require.Len(t, monthly, 3)

	jan := monthly[0]
	assert.Equal(t, 10.0, jan.Open)
	assert.Equal(t, 15.0, jan.High)
	assert.Equal(t, 8.0, jan.Low)
	assert.Equal(t, 9.0, jan.Close)
	assert.Equal(t, 30.0, jan.Volume)

	feb := monthly[1]
	assert.Equal(t, 20.0, feb.Open)
	assert.Equal(t, 25.0, feb.High)
	assert.Equal(t, 18.0, feb.Low)
	assert.Equal(t, 24.0, feb.Close)

	mar := monthly[2]
	assert.Equal(t, 30.0, mar.Open)
	assert.Equal(t, 31.0, mar.High)
	assert.Equal(t, 30.5, mar.Close)
}

func TestToMonthly_YearBoundaryAndGaps(t *testing.T) {
	daily := []model.OHLCV{
		bar(2024, time.November, 29, 1, 2, 1, 2),
		// December missing entirely
		bar(2025, time.January, 2, 3, 4, 3, 4),
		bar(2025, time.January, 3, 4, 5, 4, 5),
		bar(2025, time.February, 3, 6, 7, 6, 7),
	}

	monthly, err := ToMonthly(daily)
	require.NoError(t, err)
	require.Len(t, monthly, 3)
	assert.Equal(t, time.November, monthly[0].Time.Month())
	assert.Equal(t, time.January, monthly[1].Time.Month())
	assert.Equal(t, 5.0, monthly[1].High)

	s := model.Series(monthly)
	ref, ok := s.MostRecentCompleted()
	require.True(t, ok)
	assert.Equal(t, time.January, ref.Time.Month())
	before, ok := s.ReferenceBeforeThat()
	require.True(t, ok)
	assert.Equal(t, 2024, before.Time.Year())
}

func TestToMonthly_GroupsInBarLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	// 2025-01-31 20:00 UTC is already February 1st in IST
	late := model.OHLCV{Time: time.Date(2025, time.January, 31, 20, 0, 0, 0, time.UTC).In(ist), Open: 1, High: 1, Low: 1, Close: 1}
	daily := []model.OHLCV{
		{Time: time.Date(2024, time.December, 2, 9, 15, 0, 0, ist), Open: 1, High: 1, Low: 1, Close: 1},
		{Time: time.Date(2025, time.January, 2, 9, 15, 0, 0, ist), Open: 1, High: 1, Low: 1, Close: 1},
		late,
	}
	monthly, err := ToMonthly(daily)
	require.NoError(t, err)
	require.Len(t, monthly, 3)
	assert.Equal(t, time.February, monthly[2].Time.Month())
}

func TestToMonthly_Insufficient(t *testing.T) {
	daily := []model.OHLCV{
		bar(2025, time.January, 2, 1, 2, 1, 2),
		bar(2025, time.February, 3, 1, 2, 1, 2),
	}
	monthly, err := ToMonthly(daily)
	assert.ErrorIs(t, err, ErrInsufficientMonths)
	assert.Len(t, monthly, 2)

	_, err = ToMonthly(nil)
	assert.ErrorIs(t, err, ErrInsufficientMonths)
}
