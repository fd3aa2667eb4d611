package rates

import (
	"fmt"
	"io"
	"log/slog"
)

// Taxonomy is the three-level diagnosis hierarchy of a case set.
type Taxonomy interface {
	Groups() []string
	Categories(group string) []string
	Subcategories(group, category string) []string
}

// CaseSource is a Case Registry, or a filtered subset of one.
type CaseSource interface {
	Taxonomy

	Len() int
	Filter(f *Filter) (CaseSource, error)
	Count(by GroupBy, level Level) []Count
	CountBy(by GroupBy, level Level, label func(c *Case) string) []StratumCount
}

// Registry is the handle every computation runs through. The sources are loaded once by
// the caller and are not modified afterward, so a Registry may be shared across goroutines.
type Registry struct {
	cases CaseSource
	pop   PopulationRegistry
	index *ClassificationIndex
	names Names

	logger       *slog.Logger
	nearestYear  bool
	includeEmpty bool
	maxUnmatched float64
}

type RegistryOpt func(r *Registry) error

func NewRegistry(cases CaseSource, pop PopulationRegistry, opts ...RegistryOpt) (*Registry, error) {
	if cases == nil {
		return nil, fmt.Errorf("%w: no case registry", ErrSource)
	}

	if pop == nil {
		return nil, fmt.Errorf("%w: no population registry", ErrSource)
	}

	r := &Registry{
		cases:        cases,
		pop:          pop,
		names:        Names{},
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		nearestYear:  true,
		maxUnmatched: DefaultMaxUnmatched,
	}

	for _, opt := range opts {
		if e := opt(r); e != nil {
			return nil, e
		}
	}

	if len(r.names) == 0 && r.index != nil {
		r.names = r.index.Names()
	}

	return r, nil
}

// ***************** Options *****************

func WithIndex(ci *ClassificationIndex) RegistryOpt {
	return func(r *Registry) error {
		r.index = ci
		return nil
	}
}

// WithNames sets the display names. Without it the names of the classification index are used.
func WithNames(names Names) RegistryOpt {
	return func(r *Registry) error {
		if names != nil {
			r.names = names
		}

		return nil
	}
}

func WithLogger(logger *slog.Logger) RegistryOpt {
	return func(r *Registry) error {
		if logger == nil {
			return fmt.Errorf("nil logger")
		}

		r.logger = logger

		return nil
	}
}

// WithNearestYear turns nearest-earlier-year denominator substitution on or off.
func WithNearestYear(on bool) RegistryOpt {
	return func(r *Registry) error {
		r.nearestYear = on
		return nil
	}
}

// WithEmptyGroups adds zero-case rows for population groups inside the filter's years.
func WithEmptyGroups(on bool) RegistryOpt {
	return func(r *Registry) error {
		r.includeEmpty = on
		return nil
	}
}

// WithMaxUnmatched sets the unmatched share above which joins warn.
func WithMaxUnmatched(share float64) RegistryOpt {
	return func(r *Registry) error {
		if share <= 0 || share > 1 {
			return fmt.Errorf("unmatched share must be in (0,1], got %v", share)
		}

		r.maxUnmatched = share

		return nil
	}
}

// ***************** Accessors *****************

func (r *Registry) Cases() CaseSource {
	return r.cases
}

func (r *Registry) Population() PopulationRegistry {
	return r.pop
}

func (r *Registry) Index() *ClassificationIndex {
	return r.index
}

func (r *Registry) Names() Names {
	return r.names
}

// ***************** Pipeline *****************

// resolve returns a copy of f with its tier bound to the index. The caller's filter is not modified.
func (r *Registry) resolve(f *Filter) (*Filter, error) {
	if f == nil {
		return nil, nil
	}

	nf := *f
	if e := nf.Resolve(r.index); e != nil {
		return nil, e
	}

	return &nf, nil
}

// Select applies f to the case registry.
func (r *Registry) Select(f *Filter) (CaseSource, error) {
	nf, e := r.resolve(f)
	if e != nil {
		return nil, e
	}

	return r.cases.Filter(nf)
}

// Taxonomy returns the diagnosis hierarchy of the cases matching f's non-diagnosis predicates.
func (r *Registry) Taxonomy(f *Filter) (Taxonomy, error) {
	if f == nil {
		return r.cases, nil
	}

	nf := *f
	nf.Group, nf.Category, nf.Subcategory = "", "", ""

	return r.Select(&nf)
}

// Rates filters the cases, counts them by group and divides by the matching population.
func (r *Registry) Rates(f *Filter, by GroupBy, level Level) (*RateTable, error) {
	var (
		nf  *Filter
		sel CaseSource
		tab *RateTable
		e   error
	)
	if nf, e = r.resolve(f); e != nil {
		return nil, e
	}

	if sel, e = r.cases.Filter(nf); e != nil {
		return nil, e
	}

	if tab, e = ComputeRates(sel.Count(by, level), r.pop, nf, by, level, r.rateOpts()); e != nil {
		return nil, e
	}

	missing := 0
	for ind := range tab.Rows {
		if tab.Rows[ind].PopMissing {
			missing++
		}
	}

	if missing > 0 {
		r.logger.Warn("rows without population", "rows", missing, "of", len(tab.Rows), "filter", f.String())
	}

	r.logSubstitutions(tab.Substitutions)
	r.logger.Debug("rates computed", "by", by.String(), "level", level.String(), "rows", len(tab.Rows), "cases", sel.Len())

	return tab, nil
}

// Breakdown filters the cases and splits them by dim, by year or over the whole range.
// Sex, race and age strata are divided by the population of the stratum.
func (r *Registry) Breakdown(f *Filter, dim Dimension, by GroupBy) (*Breakdown, error) {
	var (
		nf  *Filter
		sel CaseSource
		bd  *Breakdown
		e   error
	)
	if nf, e = r.resolve(f); e != nil {
		return nil, e
	}

	if sel, e = r.cases.Filter(nf); e != nil {
		return nil, e
	}

	scheme := SchemeTraditional
	if nf != nil {
		scheme = nf.Scheme
	}

	counts := sel.CountBy(by, LevelMunicipality, func(c *Case) string { return dim.Label(c, scheme) })
	if bd, e = ComputeBreakdown(counts, r.pop, nf, dim, by, r.rateOpts()); e != nil {
		return nil, e
	}

	r.logSubstitutions(bd.Substitutions)
	r.logger.Debug("breakdown computed", "dim", dim.String(), "by", by.String(), "rows", len(bd.Rows), "cases", sel.Len())

	return bd, nil
}

func (r *Registry) rateOpts() RateOpts {
	return RateOpts{NearestYear: r.nearestYear, IncludeEmpty: r.includeEmpty}
}

func (r *Registry) logSubstitutions(subs []Substitution) {
	for _, s := range subs {
		if s.Stratum != "" {
			r.logger.Info("population year substituted", "group", s.Key.String(), "stratum", s.Stratum, "requested", s.Requested, "used", s.Used)
			continue
		}

		r.logger.Info("population year substituted", "group", s.Key.String(), "requested", s.Requested, "used", s.Used)
	}
}

// Join reconciles a municipality-level table with the classification index.
func (r *Registry) Join(tab *RateTable) ([]JoinedRow, *JoinReport, error) {
	rows, rep, e := JoinClassification(tab, r.index, r.maxUnmatched)
	if e != nil {
		return nil, nil, e
	}

	if rep.Warning != "" {
		r.logger.Warn("classification join", "warning", rep.Warning, "unmatched", rep.Unmatched,
			"invalid", rep.Invalid, "rows", rep.Rows)
	}

	r.logger.Debug("classification join", "report", rep.String())

	return rows, rep, nil
}

// Tiers computes municipality rates for f and sums them by development tier.
func (r *Registry) Tiers(f *Filter) ([]TierRate, *JoinReport, error) {
	var (
		tab  *RateTable
		rows []JoinedRow
		rep  *JoinReport
		e    error
	)
	if tab, e = r.Rates(f, ByTerritory, LevelMunicipality); e != nil {
		return nil, nil, e
	}

	if rows, rep, e = r.Join(tab); e != nil {
		return nil, nil, e
	}

	return RatesByTier(rows), rep, nil
}

// Correlate computes municipality rates for f, joins them and fits the measure on the named score.
func (r *Registry) Correlate(f *Filter, score string, m Measure) (*Correlation, []JoinedRow, *JoinReport, error) {
	var (
		tab  *RateTable
		rows []JoinedRow
		rep  *JoinReport
		corr *Correlation
		e    error
	)
	if tab, e = r.Rates(f, ByTerritory, LevelMunicipality); e != nil {
		return nil, nil, nil, e
	}

	if rows, rep, e = r.Join(tab); e != nil {
		return nil, nil, nil, e
	}

	x, y := ScorePairs(rows, score, m)
	if corr, e = Correlate(x, y); e != nil {
		return nil, rows, rep, fmt.Errorf("score %s, measure %s: %w", score, m, e)
	}

	r.logger.Debug("correlation", "score", score, "measure", m.String(), "result", corr.String())

	return corr, rows, rep, nil
}
