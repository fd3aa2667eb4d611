package rates

import (
	"fmt"
	"math"
	"sort"
)

// Per is the rate normalization.
const Per = 100000.0

// Count is the aggregation of cases in one group.
type Count struct {
	Key      GroupKey
	Cases    int
	Deaths   int
	StayDays int
}

// RateRow is one group of a RateTable. Rate and DeathRate are NaN when PopMissing.
type RateRow struct {
	Key GroupKey

	Cases    int
	Deaths   int
	StayDays int

	Population  int64
	PopYear     int
	PopMissing  bool
	Substituted bool

	Rate      float64 // cases per 100,000
	DeathRate float64 // deaths per 100,000
}

// Defined reports whether the row has a usable denominator.
func (r *RateRow) Defined() bool {
	return !r.PopMissing && !math.IsNaN(r.Rate)
}

// Mortality is the in-hospital mortality percentage, NaN without cases.
func (r *RateRow) Mortality() float64 {
	if r.Cases == 0 {
		return math.NaN()
	}

	return float64(r.Deaths) / float64(r.Cases) * 100
}

// MeanStay is the average length of stay, NaN without cases.
func (r *RateRow) MeanStay() float64 {
	if r.Cases == 0 {
		return math.NaN()
	}

	return float64(r.StayDays) / float64(r.Cases)
}

// Substitution records a denominator taken from an earlier year.
type Substitution struct {
	Key       GroupKey
	Stratum   string // set by breakdowns
	Requested int
	Used      int
}

func (s Substitution) String() string {
	grp := s.Key.String()
	if s.Stratum != "" {
		grp += " " + s.Stratum
	}

	return fmt.Sprintf("%s: population for %d taken from %d", grp, s.Requested, s.Used)
}

// RateTable is the output of the Rate Calculator, sorted by key.
type RateTable struct {
	By    GroupBy
	Level Level

	Rows          []RateRow
	Substitutions []Substitution
}

// RateOpts controls denominator selection.
//   - NearestYear: use the nearest earlier year when the requested year has no population row.
//   - Year: denominator year for ByTerritory and ByTotal; 0 uses the filter's upper bound, else the latest year available.
//   - IncludeEmpty: add population groups inside the filter's year range that have no cases.
type RateOpts struct {
	NearestYear  bool
	Year         int
	IncludeEmpty bool
}

func rate(n int, pop int64) float64 {
	if pop <= 0 {
		return math.NaN()
	}

	return float64(n) / float64(pop) * Per
}

// ComputeRates left-joins counts onto the population totals of f's demographic strata.
// Every count produces a row; rows without a denominator keep a NaN rate.
func ComputeRates(counts []Count, pop PopulationRegistry, f *Filter, by GroupBy, level Level, opts RateOpts) (*RateTable, error) {
	if by < ByYear || by > ByTotal {
		return nil, fmt.Errorf("%w: grouping %d", ErrUnknownKey, by)
	}

	if pop == nil {
		return nil, fmt.Errorf("%w: no population registry", ErrSource)
	}

	var (
		totals []PopTotal
		e      error
	)
	if totals, e = pop.Totals(NewPopQuery(f, by, level)); e != nil {
		return nil, fmt.Errorf("%w: population totals: %v", ErrSource, e)
	}

	den := newDenominators(totals)

	if opts.IncludeEmpty {
		counts = fillEmpty(counts, den, f, by)
	}

	tab := &RateTable{By: by, Level: level}
	for _, c := range counts {
		row := RateRow{Key: c.Key, Cases: c.Cases, Deaths: c.Deaths, StayDays: c.StayDays}

		requested := c.Key.Year
		if !by.hasYear() {
			requested = opts.Year
			if requested == 0 && f != nil {
				requested = f.YearTo
			}
		}

		var (
			year int
			p    int64
			ok   bool
		)
		switch {
		case requested == 0:
			year, p, ok = den.latest(c.Key.Territory)
		case opts.NearestYear:
			year, p, ok = den.nearest(c.Key.Territory, requested)
		default:
			year = requested
			p, ok = den.exact(c.Key.Territory, requested)
		}

		row.PopYear, row.Population = year, p
		row.PopMissing = !ok || p <= 0
		row.Substituted = ok && requested != 0 && year != requested
		row.Rate, row.DeathRate = math.NaN(), math.NaN()

		if !row.PopMissing {
			row.Rate, row.DeathRate = rate(c.Cases, p), rate(c.Deaths, p)
		}

		if row.Substituted {
			tab.Substitutions = append(tab.Substitutions, Substitution{Key: c.Key, Requested: requested, Used: year})
		}

		tab.Rows = append(tab.Rows, row)
	}

	sort.SliceStable(tab.Rows, func(i, j int) bool { return tab.Rows[i].Key.Less(tab.Rows[j].Key) })

	return tab, nil
}

// Collapse sums rows sharing a key after mapping through fn, then re-derives the rates
// from the summed numerators and denominators. Rows without a denominator contribute cases only,
// and mark the merged row as missing.
func (t *RateTable) Collapse(fn func(k GroupKey) GroupKey) *RateTable {
	type acc struct {
		row     RateRow
		missing bool
	}

	var keys []GroupKey
	accs := make(map[GroupKey]*acc)
	for _, r := range t.Rows {
		k := fn(r.Key)
		a, ok := accs[k]
		if !ok {
			a = &acc{row: RateRow{Key: k, PopYear: r.PopYear}}
			accs[k] = a
			keys = append(keys, k)
		}

		a.row.Cases += r.Cases
		a.row.Deaths += r.Deaths
		a.row.StayDays += r.StayDays
		a.row.Substituted = a.row.Substituted || r.Substituted
		if r.PopMissing {
			a.missing = true
			continue
		}

		a.row.Population += r.Population
	}

	sortKeys(keys)
	out := &RateTable{By: t.By, Level: t.Level, Substitutions: t.Substitutions}
	for _, k := range keys {
		a := accs[k]
		a.row.PopMissing = a.missing || a.row.Population <= 0
		a.row.Rate, a.row.DeathRate = math.NaN(), math.NaN()
		if !a.row.PopMissing {
			a.row.Rate, a.row.DeathRate = rate(a.row.Cases, a.row.Population), rate(a.row.Deaths, a.row.Population)
		}

		out.Rows = append(out.Rows, a.row)
	}

	return out
}

// Row returns the row for key.
func (t *RateTable) Row(key GroupKey) (*RateRow, bool) {
	for ind := range t.Rows {
		if t.Rows[ind].Key == key {
			return &t.Rows[ind], true
		}
	}

	return nil, false
}

// Totals sums the table into a single row (numerators and denominators summed).
func (t *RateTable) Totals() RateRow {
	tot := t.Collapse(func(GroupKey) GroupKey { return GroupKey{} })
	if len(tot.Rows) == 0 {
		return RateRow{PopMissing: true, Rate: math.NaN(), DeathRate: math.NaN()}
	}

	return tot.Rows[0]
}

// ***************** denominators *****************

type denominators struct {
	pop   map[TerritoryCode]map[int]int64
	years map[TerritoryCode][]int
}

func newDenominators(totals []PopTotal) *denominators {
	d := &denominators{pop: make(map[TerritoryCode]map[int]int64), years: make(map[TerritoryCode][]int)}
	for _, t := range totals {
		m, ok := d.pop[t.Key.Territory]
		if !ok {
			m = make(map[int]int64)
			d.pop[t.Key.Territory] = m
		}

		if _, dup := m[t.Key.Year]; !dup {
			d.years[t.Key.Territory] = append(d.years[t.Key.Territory], t.Key.Year)
		}

		m[t.Key.Year] += t.Population
	}

	for tc := range d.years {
		sort.Ints(d.years[tc])
	}

	return d
}

func (d *denominators) exact(tc TerritoryCode, year int) (int64, bool) {
	p, ok := d.pop[tc][year]
	return p, ok
}

// nearest returns year itself if present, else the closest earlier year.
func (d *denominators) nearest(tc TerritoryCode, year int) (int, int64, bool) {
	if p, ok := d.exact(tc, year); ok {
		return year, p, true
	}

	yrs := d.years[tc]
	for ind := len(yrs) - 1; ind >= 0; ind-- {
		if yrs[ind] < year {
			return yrs[ind], d.pop[tc][yrs[ind]], true
		}
	}

	return year, 0, false
}

func (d *denominators) latest(tc TerritoryCode) (int, int64, bool) {
	yrs := d.years[tc]
	if len(yrs) == 0 {
		return 0, 0, false
	}

	y := yrs[len(yrs)-1]

	return y, d.pop[tc][y], true
}

// fillEmpty adds zero-case counts for population groups in f's year range.
func fillEmpty(counts []Count, den *denominators, f *Filter, by GroupBy) []Count {
	seen := make(map[GroupKey]bool)
	for _, c := range counts {
		seen[c.Key] = true
	}

	out := append([]Count(nil), counts...)
	for tc, yrs := range den.years {
		for _, y := range yrs {
			if f != nil && ((f.YearFrom > 0 && y < f.YearFrom) || (f.YearTo > 0 && y > f.YearTo)) {
				continue
			}

			k := GroupKey{Territory: tc}
			if by.hasYear() {
				k.Year = y
			}

			if !seen[k] {
				seen[k] = true
				out = append(out, Count{Key: k})
			}
		}
	}

	return out
}
