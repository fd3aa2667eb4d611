package rates

import (
	"fmt"
	"strings"
)

// Case is one hospitalization or death event.
type Case struct {
	Year        int
	Territory   TerritoryCode // municipality of residence, canonical 6-digit form
	Sex         Sex
	Race        Race // traditional scheme
	Age         int  // years
	Group       string
	Category    string
	Subcategory string
	Stay        int // length of stay, days
	Death       bool
	Regime      string
}

// Filter is a conjunction of predicates over cases. Zero-valued fields impose no predicate.
type Filter struct {
	YearFrom int
	YearTo   int

	State        TerritoryCode
	Municipality TerritoryCode

	Sex    Sex
	Age    AgeBand
	Race   Race
	Scheme RaceScheme

	Group       string
	Category    string
	Subcategory string

	Regime string

	Tier    DevelopmentTier
	members *territorySet // municipalities of Tier, set by Resolve
}

type territorySet map[TerritoryCode]bool

type FilterOpt func(f *Filter) error

// NewFilter applies opts in order and validates the result.
func NewFilter(opts ...FilterOpt) (*Filter, error) {
	f := &Filter{}
	for _, opt := range opts {
		if e := opt(f); e != nil {
			return nil, e
		}
	}

	if e := f.Validate(); e != nil {
		return nil, e
	}

	return f, nil
}

// ***************** Options *****************

// FilterYears sets inclusive year bounds; 0 leaves a side open.
func FilterYears(from, to int) FilterOpt {
	return func(f *Filter) error {
		f.YearFrom, f.YearTo = from, to
		return nil
	}
}

// FilterState accepts a UF code or abbreviation; "" or "Todos" clears it.
func FilterState(code string) FilterOpt {
	return func(f *Filter) error {
		if code == "" || strings.EqualFold(code, "todos") {
			f.State = TerritoryCode{}
			return nil
		}

		var (
			st State
			e  error
		)
		if st, e = StateByCode(code); e != nil {
			return e
		}

		f.State = TerritoryCode{code: st.Code, enc: EncState}

		return nil
	}
}

// FilterMunicipality accepts a 6- or 7-digit code and stores its canonical form.
func FilterMunicipality(code string) FilterOpt {
	return func(f *Filter) error {
		if code == "" || strings.EqualFold(code, "todos") {
			f.Municipality = TerritoryCode{}
			return nil
		}

		var (
			tc TerritoryCode
			e  error
		)
		if tc, e = ParseTerritory(code); e != nil {
			return e
		}

		if tc.IsState() {
			return fmt.Errorf("%w: %s is a state code", ErrEncoding, code)
		}

		f.Municipality, e = tc.Canonical()

		return e
	}
}

func FilterSex(s string) FilterOpt {
	return func(f *Filter) error {
		var e error
		f.Sex, e = ParseSex(s)

		return e
	}
}

func FilterAgeBand(key string) FilterOpt {
	return func(f *Filter) error {
		if strings.EqualFold(key, "todas") {
			key = ""
		}

		var e error
		f.Age, e = LookupAgeBand(key)

		return e
	}
}

// FilterRace selects a category under scheme. "Negra" requires SchemeCollapsed.
func FilterRace(r string, scheme RaceScheme) FilterOpt {
	return func(f *Filter) error {
		f.Scheme = scheme
		if strings.EqualFold(r, "todas") {
			r = ""
		}

		var e error
		if f.Race, e = ParseRace(r); e != nil {
			return e
		}

		return scheme.Check(f.Race)
	}
}

// FilterDiagnosis sets the hierarchical diagnosis selection. Each level requires its parent.
func FilterDiagnosis(group, category, subcategory string) FilterOpt {
	return func(f *Filter) error {
		f.Group, f.Category, f.Subcategory = strings.TrimSpace(group), strings.TrimSpace(category), strings.TrimSpace(subcategory)
		return nil
	}
}

func FilterRegime(regime string) FilterOpt {
	return func(f *Filter) error {
		f.Regime = strings.TrimSpace(regime)
		return nil
	}
}

// FilterTier restricts to municipalities of a development tier. The tier is
// resolved against a classification index before the filter is applied.
func FilterTier(t string) FilterOpt {
	return func(f *Filter) error {
		if strings.EqualFold(t, "todos") {
			t = ""
		}

		var e error
		f.Tier, e = ParseTier(t)
		f.members = nil

		return e
	}
}

// ***************** Methods *****************

// Resolve binds the tier predicate to the municipalities ci places in f.Tier.
func (f *Filter) Resolve(ci *ClassificationIndex) error {
	if f == nil || f.Tier == TierNone {
		return nil
	}

	if ci == nil {
		return fmt.Errorf("%w: tier filter %q needs a classification index", ErrSource, f.Tier)
	}

	set := make(territorySet)
	for tc, c := range ci.recs {
		if c.Tier == f.Tier {
			set[tc] = true
		}
	}

	f.members = &set

	return nil
}

// Resolved is false when a tier is selected but not yet bound to municipalities.
func (f *Filter) Resolved() bool {
	return f == nil || f.Tier == TierNone || f.members != nil
}

func (f *Filter) territories() map[TerritoryCode]bool {
	if f == nil || f.members == nil {
		return nil
	}

	return *f.members
}

// Validate checks year order, the diagnosis cascade, the race scheme and that
// a selected municipality lies in the selected state.
func (f *Filter) Validate() error {
	if f.YearFrom > 0 && f.YearTo > 0 && f.YearFrom > f.YearTo {
		return fmt.Errorf("year range %d-%d is reversed", f.YearFrom, f.YearTo)
	}

	if f.Category != "" && f.Group == "" {
		return fmt.Errorf("%w: category %q without a group", ErrCascade, f.Category)
	}

	if f.Subcategory != "" && f.Category == "" {
		return fmt.Errorf("%w: subcategory %q without a category", ErrCascade, f.Subcategory)
	}

	if e := f.Scheme.Check(f.Race); e != nil {
		return e
	}

	if !f.State.IsZero() && !f.Municipality.IsZero() && f.Municipality.State() != f.State {
		return fmt.Errorf("%w: municipality %s is not in state %s", ErrCascade, f.Municipality, f.State)
	}

	return nil
}

// Empty is true when the filter imposes no predicate.
func (f *Filter) Empty() bool {
	return f == nil || *f == Filter{Scheme: f.Scheme}
}

// Match evaluates the conjunction for one case.
func (f *Filter) Match(c *Case) bool {
	if f == nil {
		return true
	}

	if (f.YearFrom > 0 && c.Year < f.YearFrom) || (f.YearTo > 0 && c.Year > f.YearTo) {
		return false
	}

	if !f.State.IsZero() && c.Territory.State() != f.State {
		return false
	}

	if !f.Municipality.IsZero() && c.Territory != f.Municipality {
		return false
	}

	if f.Sex != SexAll && c.Sex != f.Sex {
		return false
	}

	if !f.Age.IsZero() && !f.Age.Contains(c.Age) {
		return false
	}

	if f.Race != RaceAll && f.Scheme.Group(c.Race) != f.Race {
		return false
	}

	if f.Group != "" && c.Group != f.Group {
		return false
	}

	if f.Category != "" && c.Category != f.Category {
		return false
	}

	if f.Subcategory != "" && c.Subcategory != f.Subcategory {
		return false
	}

	if f.Tier != TierNone && !f.territories()[c.Territory] {
		return false
	}

	return f.Regime == "" || c.Regime == f.Regime
}

// String summarizes the applied filters for display.
func (f *Filter) String() string {
	if f == nil {
		return "Filtros: nenhum"
	}

	var parts []string
	switch {
	case f.YearFrom > 0 && f.YearTo > 0:
		parts = append(parts, fmt.Sprintf("Período: %d a %d", f.YearFrom, f.YearTo))
	case f.YearFrom > 0:
		parts = append(parts, fmt.Sprintf("Período: a partir de %d", f.YearFrom))
	case f.YearTo > 0:
		parts = append(parts, fmt.Sprintf("Período: até %d", f.YearTo))
	}

	estado := "Todos"
	if !f.State.IsZero() {
		if st, e := StateByCode(f.State.String()); e == nil {
			estado = st.String()
		}
	}

	municipio := "Todos"
	if !f.Municipality.IsZero() {
		municipio = f.Municipality.String()
	}

	raca := "Todas"
	if f.Race != RaceAll {
		raca = f.Race.String()
	}

	parts = append(parts, "Estado: "+estado, "Município: "+municipio, "Sexo: "+f.Sex.String(),
		"Faixa Etária: "+f.Age.String(), "Raça/Cor: "+raca, "Classificação Racial: "+f.Scheme.String())

	if f.Group != "" {
		parts = append(parts, "Grupo Diagnóstico: "+f.Group)
	}

	if f.Category != "" {
		parts = append(parts, "Categoria Diagnóstica: "+f.Category)
	}

	if f.Subcategory != "" {
		parts = append(parts, "Subcategoria: "+f.Subcategory)
	}

	if f.Regime != "" {
		parts = append(parts, "Regime: "+f.Regime)
	}

	if f.Tier != TierNone {
		parts = append(parts, "Grupo CIR: "+f.Tier.String())
	}

	return strings.Join(parts, " | ")
}
