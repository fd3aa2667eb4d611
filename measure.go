package rates

import (
	"fmt"
	"math"
)

// Measure selects the value of a rate row that an analysis works on.
type Measure uint8

// values of Measure
const (
	MeasureRate      Measure = 0 + iota // cases per 100,000
	MeasureDeathRate                    // deaths per 100,000
	MeasureMortality                    // in-hospital mortality %
	MeasureMeanStay                     // mean length of stay, days
	MeasureCases                        // case count
)

var measureNames = []string{"rate", "death-rate", "mortality", "mean-stay", "cases"}

// column names used by the dashboards' exports
var measureColumns = []string{"taxa_internacoes_100k", "taxa_mortalidade_100k", "taxa_mortalidade",
	"tempo_medio_permanencia", "total_internacoes"}

func (m Measure) String() string {
	if int(m) >= len(measureNames) {
		return "unknown"
	}

	return measureNames[m]
}

// Label is the axis title of the measure.
func (m Measure) Label() string {
	switch m {
	case MeasureDeathRate:
		return "Óbitos por 100.000 hab."
	case MeasureMortality:
		return "Taxa de mortalidade (%)"
	case MeasureMeanStay:
		return "Tempo médio de permanência (dias)"
	case MeasureCases:
		return "Total de internações"
	default:
		return "Taxa por 100.000 hab."
	}
}

// MeasureFromString accepts the names returned by String and the export column names.
// An empty name is MeasureRate.
func MeasureFromString(nm string) (Measure, error) {
	if nm == "" {
		return MeasureRate, nil
	}

	for ind := range measureNames {
		if nm == measureNames[ind] || nm == measureColumns[ind] {
			return Measure(ind), nil
		}
	}

	return MeasureRate, fmt.Errorf("%w: measure %q", ErrUnknownKey, nm)
}

// Value returns the measure of r. Population rates are NaN without a denominator;
// mortality and mean stay are NaN without cases.
func (m Measure) Value(r *RateRow) float64 {
	switch m {
	case MeasureDeathRate:
		if !r.Defined() {
			return math.NaN()
		}

		return r.DeathRate
	case MeasureMortality:
		return r.Mortality()
	case MeasureMeanStay:
		return r.MeanStay()
	case MeasureCases:
		return float64(r.Cases)
	default:
		if !r.Defined() {
			return math.NaN()
		}

		return r.Rate
	}
}
