package rates

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrengthOf(t *testing.T) {
	assert.Equal(t, StrengthWeak, StrengthOf(0.29))
	assert.Equal(t, StrengthWeak, StrengthOf(-0.1))
	assert.Equal(t, StrengthModerate, StrengthOf(0.3))
	assert.Equal(t, StrengthModerate, StrengthOf(-0.69))
	assert.Equal(t, StrengthStrong, StrengthOf(0.7))
	assert.Equal(t, StrengthStrong, StrengthOf(-1))
	assert.Equal(t, "forte", StrengthStrong.String())
}

func TestCorrelatePerfect(t *testing.T) {
	c, e := Correlate([]float64{1, 2, 3, 4, math.NaN()}, []float64{2, 4, 6, 8, 10})
	assert.Nil(t, e)
	assert.Equal(t, 4, c.N)
	assert.InDelta(t, 1.0, c.R, 1e-9)
	assert.InDelta(t, 1.0, c.R2, 1e-9)
	assert.InDelta(t, 2.0, c.Slope, 1e-9)
	assert.InDelta(t, 0.0, c.Intercept, 1e-9)
	assert.Equal(t, StrengthStrong, c.Strength)
	assert.InDelta(t, 0.0, c.PValue, 1e-9)

	c, e = Correlate([]float64{1, 2, 3}, []float64{3, 2, 1})
	assert.Nil(t, e)
	assert.InDelta(t, -1.0, c.R, 1e-9)
	assert.InDelta(t, -1.0, c.Slope, 1e-9)
}

func TestCorrelateNoisy(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	y := []float64{2, 1, 4, 3, 6, 5, 8, 7}

	c, e := Correlate(x, y)
	assert.Nil(t, e)
	assert.True(t, c.R > 0.7 && c.R < 1)
	assert.True(t, c.PValue > 0 && c.PValue < 0.05)
	assert.Contains(t, c.String(), "n=8")
}

func TestCorrelateErrors(t *testing.T) {
	_, e := Correlate([]float64{1, 2}, []float64{1, 2})
	assert.NotNil(t, e)

	_, e = Correlate([]float64{1, 2, 3}, []float64{1, 2})
	assert.NotNil(t, e)

	_, e = Correlate([]float64{1, 2, 3, math.Inf(1)}, []float64{1, 2, math.NaN(), 4})
	assert.NotNil(t, e)

	_, e = Correlate([]float64{1, 1, 1}, []float64{1, 2, 3})
	assert.NotNil(t, e)
}

func TestScorePairs(t *testing.T) {
	ci := testIndex(t)
	sp, _ := ci.Lookup(MustTerritory("355030"))
	rj, _ := ci.Lookup(MustTerritory("330455"))
	df, _ := ci.Lookup(MustTerritory("530010"))
	bh, _ := ci.Lookup(MustTerritory("310620"))

	rows := []JoinedRow{
		{RateRow: testRow("355030", 100, 20000), Class: sp},
		{RateRow: testRow("330455", 30, 0), Class: rj},
		{RateRow: testRow("530010", 0, 10000), Class: df},
		{RateRow: testRow("310620", 10, 1000), Class: bh},
	}
	rows[0].Deaths, rows[0].StayDays, rows[0].DeathRate = 4, 500, 20
	rows[1].Deaths, rows[1].StayDays = 3, 90

	tests := []struct {
		m Measure
		x []float64
		y []float64
	}{
		{MeasureRate, []float64{60, 55}, []float64{500, 0}},
		{MeasureDeathRate, []float64{60, 55}, []float64{20, 0}},
		{MeasureMortality, []float64{60, 50}, []float64{4, 10}},
		{MeasureMeanStay, []float64{60, 50}, []float64{5, 3}},
		{MeasureCases, []float64{60, 50, 55}, []float64{100, 30, 0}},
	}

	for _, tt := range tests {
		x, y := ScorePairs(rows, IDSC, tt.m)
		assert.Equal(t, tt.x, x, tt.m.String())
		assert.InDeltaSlice(t, tt.y, y, 1e-9, tt.m.String())
	}

	x, _ := ScorePairs(rows, "iRAPS", MeasureRate)
	assert.Empty(t, x)
}

func TestMeasure(t *testing.T) {
	for _, nm := range []string{"rate", "death-rate", "mortality", "mean-stay", "cases"} {
		m, e := MeasureFromString(nm)
		assert.Nil(t, e)
		assert.Equal(t, nm, m.String())
	}

	m, e := MeasureFromString("tempo_medio_permanencia")
	assert.Nil(t, e)
	assert.Equal(t, MeasureMeanStay, m)

	m, e = MeasureFromString("")
	assert.Nil(t, e)
	assert.Equal(t, MeasureRate, m)

	_, e = MeasureFromString("taxa")
	assert.ErrorIs(t, e, ErrUnknownKey)

	row := testRow("330455", 30, 0)
	assert.True(t, math.IsNaN(MeasureRate.Value(&row)))
	assert.True(t, math.IsNaN(MeasureDeathRate.Value(&row)))
	assert.Equal(t, 0.0, MeasureMortality.Value(&row))
	assert.Equal(t, 30.0, MeasureCases.Value(&row))
	assert.Equal(t, "Taxa de mortalidade (%)", MeasureMortality.Label())
}
