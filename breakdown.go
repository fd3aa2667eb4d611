package rates

import (
	"fmt"
	"math"
	"sort"
)

// Dimension is a categorical split of the cases.
type Dimension uint8

// values of Dimension
const (
	DimSex Dimension = 1 + iota
	DimRace
	DimAge
	DimGroup
	DimRegime
)

var dimNames = []string{"", "sex", "race", "age", "group", "regime"}

func (d Dimension) String() string {
	if d < DimSex || d > DimRegime {
		return "unknown"
	}

	return dimNames[d]
}

// DimensionFromString accepts "sex", "race", "age", "group" and "regime".
func DimensionFromString(nm string) (Dimension, error) {
	for ind := int(DimSex); ind < len(dimNames); ind++ {
		if nm == dimNames[ind] {
			return Dimension(ind), nil
		}
	}

	return 0, fmt.Errorf("%w: dimension %q", ErrUnknownKey, nm)
}

// HasPopulation is true for the dimensions the population table is stratified by.
func (d Dimension) HasPopulation() bool {
	return d == DimSex || d == DimRace || d == DimAge
}

// Label returns the stratum of c. Races are grouped under scheme.
func (d Dimension) Label(c *Case, scheme RaceScheme) string {
	switch d {
	case DimSex:
		return c.Sex.String()
	case DimRace:
		return scheme.Group(c.Race).String()
	case DimAge:
		b, e := BandOf(c.Age)
		if e != nil {
			return ""
		}

		return b.Key
	case DimGroup:
		return c.Group
	case DimRegime:
		return c.Regime
	}

	return ""
}

// narrow restricts a copy of f to the stratum. It is false for strata with no population counterpart.
func (d Dimension) narrow(f *Filter, label string, scheme RaceScheme) (*Filter, bool) {
	nf := Filter{Scheme: scheme}
	if f != nil {
		nf = *f
	}

	switch d {
	case DimSex:
		s, e := ParseSex(label)
		if e != nil || s == SexAll {
			return nil, false
		}

		nf.Sex = s
	case DimRace:
		r, e := ParseRace(label)
		if e != nil || r == RaceAll || scheme.Check(r) != nil {
			return nil, false
		}

		nf.Race = r
	case DimAge:
		b, e := LookupAgeBand(label)
		if e != nil || b.IsZero() {
			return nil, false
		}

		nf.Age = b
	default:
		return nil, false
	}

	return &nf, true
}

// rank orders strata the way their categories are listed; other dimensions sort by label.
func (d Dimension) rank(label string, scheme RaceScheme) int {
	switch d {
	case DimSex:
		if s, e := ParseSex(label); e == nil && s != SexAll {
			return int(s)
		}
	case DimRace:
		if r, e := ParseRace(label); e == nil && has(r, scheme.Categories()) {
			return position(r, scheme.Categories())
		}
	case DimAge:
		if b, e := LookupAgeBand(label); e == nil && !b.IsZero() {
			return b.Min
		}
	default:
		return 0
	}

	return math.MaxInt
}

// StratumCount is the aggregation of the cases of one stratum in one group.
type StratumCount struct {
	Stratum string
	Count
}

// StratumRow is one stratum of a Breakdown. Rate and DeathRate are NaN for strata
// without a population counterpart.
type StratumRow struct {
	Stratum string
	RateRow
}

// Breakdown is the output of a categorical split, sorted by year then stratum.
type Breakdown struct {
	Dim    Dimension
	Scheme RaceScheme
	By     GroupBy

	Rows          []StratumRow
	Substitutions []Substitution
}

// ComputeBreakdown computes the rates of each stratum. Population strata are divided by the
// population of f narrowed to the stratum, so a collapsed category is re-derived from the
// summed cases and summed population of its members. Diagnosis and regime strata carry
// counts, mortality and stay only.
func ComputeBreakdown(counts []StratumCount, pop PopulationRegistry, f *Filter, dim Dimension, by GroupBy, opts RateOpts) (*Breakdown, error) {
	if by != ByYear && by != ByTotal {
		return nil, fmt.Errorf("%w: breakdown grouping must be ByYear or ByTotal, got %s", ErrUnknownKey, by)
	}

	if dim < DimSex || dim > DimRegime {
		return nil, fmt.Errorf("%w: dimension %d", ErrUnknownKey, dim)
	}

	scheme := SchemeTraditional
	if f != nil {
		scheme = f.Scheme
	}

	var strata []string
	split := make(map[string][]Count)
	for _, c := range counts {
		if _, ok := split[c.Stratum]; !ok {
			strata = append(strata, c.Stratum)
		}

		split[c.Stratum] = append(split[c.Stratum], c.Count)
	}

	bd := &Breakdown{Dim: dim, Scheme: scheme, By: by}
	for _, st := range strata {
		sf, ok := dim.narrow(f, st, scheme)
		if !ok {
			for _, c := range split[st] {
				bd.Rows = append(bd.Rows, StratumRow{Stratum: st, RateRow: unrated(c)})
			}

			continue
		}

		tab, e := ComputeRates(split[st], pop, sf, by, LevelMunicipality, opts)
		if e != nil {
			return nil, fmt.Errorf("stratum %s: %w", st, e)
		}

		for _, row := range tab.Rows {
			bd.Rows = append(bd.Rows, StratumRow{Stratum: st, RateRow: row})
		}

		for _, s := range tab.Substitutions {
			s.Stratum = st
			bd.Substitutions = append(bd.Substitutions, s)
		}
	}

	sort.SliceStable(bd.Rows, func(i, j int) bool {
		ri, rj := &bd.Rows[i], &bd.Rows[j]
		if ri.Key.Year != rj.Key.Year {
			return ri.Key.Year < rj.Key.Year
		}

		if ki, kj := dim.rank(ri.Stratum, scheme), dim.rank(rj.Stratum, scheme); ki != kj {
			return ki < kj
		}

		return ri.Stratum < rj.Stratum
	})

	return bd, nil
}

// Row returns the row of stratum in year (0 for ByTotal).
func (b *Breakdown) Row(year int, stratum string) (*StratumRow, bool) {
	for ind := range b.Rows {
		if b.Rows[ind].Key.Year == year && b.Rows[ind].Stratum == stratum {
			return &b.Rows[ind], true
		}
	}

	return nil, false
}

func unrated(c Count) RateRow {
	return RateRow{Key: c.Key, Cases: c.Cases, Deaths: c.Deaths, StayDays: c.StayDays,
		PopMissing: true, Rate: math.NaN(), DeathRate: math.NaN()}
}
