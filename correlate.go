package rates

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Strength labels |r|.
type Strength uint8

// values of Strength
const (
	StrengthWeak Strength = 0 + iota
	StrengthModerate
	StrengthStrong
)

func (s Strength) String() string {
	switch s {
	case StrengthModerate:
		return "moderada"
	case StrengthStrong:
		return "forte"
	default:
		return "fraca"
	}
}

// StrengthOf applies the thresholds |r| < 0.3 weak, |r| < 0.7 moderate, else strong.
func StrengthOf(r float64) Strength {
	switch a := math.Abs(r); {
	case a < 0.3:
		return StrengthWeak
	case a < 0.7:
		return StrengthModerate
	default:
		return StrengthStrong
	}
}

// Correlation is a least-squares fit of y on x.
type Correlation struct {
	N         int
	R         float64
	R2        float64
	Slope     float64
	Intercept float64
	PValue    float64 // two-sided test of r = 0
	Strength  Strength
}

func (c *Correlation) String() string {
	return fmt.Sprintf("n=%d r=%.4f R²=%.4f p=%.4g (%s) y = %.4f + %.4f x", c.N, c.R, c.R2, c.PValue, c.Strength, c.Intercept, c.Slope)
}

// Correlate fits y on x. Pairs where either value is NaN are dropped first; fewer than
// three remaining pairs, or a constant series, is an error.
func Correlate(x, y []float64) (*Correlation, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("correlate: series lengths differ: %d and %d", len(x), len(y))
	}

	var xs, ys []float64
	for ind := range x {
		if math.IsNaN(x[ind]) || math.IsNaN(y[ind]) || math.IsInf(x[ind], 0) || math.IsInf(y[ind], 0) {
			continue
		}

		xs, ys = append(xs, x[ind]), append(ys, y[ind])
	}

	n := len(xs)
	if n < 3 {
		return nil, fmt.Errorf("correlate: need at least 3 complete pairs, have %d", n)
	}

	if stat.Variance(xs, nil) == 0 || stat.Variance(ys, nil) == 0 {
		return nil, fmt.Errorf("correlate: a series is constant")
	}

	c := &Correlation{N: n, R: stat.Correlation(xs, ys, nil)}
	c.Intercept, c.Slope = stat.LinearRegression(xs, ys, nil, false)
	c.R2 = c.R * c.R
	c.Strength = StrengthOf(c.R)
	c.PValue = pValue(c.R, n)

	return c, nil
}

func pValue(r float64, n int) float64 {
	df := float64(n - 2)
	if 1-r*r <= 0 {
		return 0
	}

	t := math.Abs(r) * math.Sqrt(df/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}

	return 2 * (1 - dist.CDF(t))
}

// ScorePairs returns (score, measure) pairs of the rows whose classification carries the
// named score. Rows where the measure is NaN are skipped.
func ScorePairs(rows []JoinedRow, score string, m Measure) (x, y []float64) {
	for ind := range rows {
		v := m.Value(&rows[ind].RateRow)
		if math.IsNaN(v) {
			continue
		}

		s, ok := rows[ind].Class.Score(score)
		if !ok {
			continue
		}

		x, y = append(x, s), append(y, v)
	}

	return x, y
}
