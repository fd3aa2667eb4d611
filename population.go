package rates

import (
	"fmt"
	"sort"
)

// GroupBy is the dimension rates are computed over.
type GroupBy uint8

// values of GroupBy
const (
	ByYear GroupBy = 1 + iota
	ByYearTerritory
	ByTerritory
	ByTotal // a single group over the filter's whole range
)

func (g GroupBy) String() string {
	switch g {
	case ByYear:
		return "ByYear"
	case ByYearTerritory:
		return "ByYearTerritory"
	case ByTerritory:
		return "ByTerritory"
	case ByTotal:
		return "ByTotal"
	default:
		return "ByUnknown"
	}
}

func (g GroupBy) hasYear() bool {
	return g == ByYear || g == ByYearTerritory
}

func (g GroupBy) hasTerritory() bool {
	return g == ByYearTerritory || g == ByTerritory
}

// GroupByFromString accepts "year", "year-territory", "territory" and "total".
func GroupByFromString(nm string) (GroupBy, error) {
	switch nm {
	case "year", "ByYear":
		return ByYear, nil
	case "year-territory", "ByYearTerritory":
		return ByYearTerritory, nil
	case "territory", "ByTerritory":
		return ByTerritory, nil
	case "total", "ByTotal":
		return ByTotal, nil
	}

	return 0, fmt.Errorf("%w: grouping %q", ErrUnknownKey, nm)
}

// Level is the territorial resolution of a grouping.
type Level uint8

// values of Level
const (
	LevelMunicipality Level = 0 + iota
	LevelState
)

func (l Level) String() string {
	if l == LevelState {
		return "LevelState"
	}

	return "LevelMunicipality"
}

// LevelFromString accepts "municipality" and "state".
func LevelFromString(nm string) (Level, error) {
	switch nm {
	case "", "municipality", "LevelMunicipality":
		return LevelMunicipality, nil
	case "state", "LevelState":
		return LevelState, nil
	}

	return 0, fmt.Errorf("%w: level %q", ErrUnknownKey, nm)
}

// Territory reduces a canonical code to the level.
func (l Level) Territory(tc TerritoryCode) TerritoryCode {
	if l == LevelState {
		return tc.State()
	}

	return tc
}

// GroupKey identifies one output row. Year is 0 when the grouping has no year;
// Territory is zero when it has no territory.
type GroupKey struct {
	Year      int
	Territory TerritoryCode
}

func (k GroupKey) String() string {
	switch {
	case k == GroupKey{}:
		return "Total"
	case k.Territory.IsZero():
		return fmt.Sprintf("%d", k.Year)
	case k.Year == 0:
		return k.Territory.String()
	default:
		return fmt.Sprintf("%d/%s", k.Year, k.Territory)
	}
}

// Less orders by territory then year.
func (k GroupKey) Less(k2 GroupKey) bool {
	if k.Territory.code != k2.Territory.code {
		return k.Territory.code < k2.Territory.code
	}

	return k.Year < k2.Year
}

func sortKeys(keys []GroupKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}

// MakeKey builds the group key of a case-level observation.
func MakeKey(by GroupBy, level Level, year int, tc TerritoryCode) GroupKey {
	var k GroupKey
	if by.hasYear() {
		k.Year = year
	}

	if by.hasTerritory() {
		k.Territory = level.Territory(tc)
	}

	return k
}

// PopRecord is one stratum of the population table.
type PopRecord struct {
	Year       int
	Territory  TerritoryCode // canonical 6-digit
	Sex        Sex
	Race       Race // traditional scheme
	Age        string
	Population int64
}

// PopQuery carries the demographic predicates of a Filter to a PopulationRegistry.
// Registries always group by year, and by territory at Level when Territorial is set.
type PopQuery struct {
	MaxYear int // 0 = no bound

	State        TerritoryCode
	Municipality TerritoryCode

	Sex   Sex
	Races []Race // summed; nil = all
	Age   string

	Territories map[TerritoryCode]bool // municipality set of a tier filter; nil = all

	Territorial bool
	Level       Level
}

// NewPopQuery derives the population query for f. The lower year bound is not
// applied so earlier years remain available for substitution.
func NewPopQuery(f *Filter, by GroupBy, level Level) *PopQuery {
	q := &PopQuery{Territorial: by.hasTerritory(), Level: level}
	if f == nil {
		return q
	}

	q.MaxYear = f.YearTo
	q.State, q.Municipality = f.State, f.Municipality
	q.Sex = f.Sex
	q.Races = f.Race.Members()
	q.Age = f.Age.Key
	q.Territories = f.territories()

	return q
}

// Match evaluates the query's predicates on one record.
func (q *PopQuery) Match(r *PopRecord) bool {
	if q.MaxYear > 0 && r.Year > q.MaxYear {
		return false
	}

	if !q.State.IsZero() && r.Territory.State() != q.State {
		return false
	}

	if !q.Municipality.IsZero() && r.Territory != q.Municipality {
		return false
	}

	if q.Territories != nil && !q.Territories[r.Territory] {
		return false
	}

	if q.Sex != SexAll && r.Sex != q.Sex {
		return false
	}

	if q.Races != nil && !has(r.Race, q.Races) {
		return false
	}

	return q.Age == "" || r.Age == q.Age
}

// Key returns the group a matching record is summed into.
func (q *PopQuery) Key(r *PopRecord) GroupKey {
	k := GroupKey{Year: r.Year}
	if q.Territorial {
		k.Territory = q.Level.Territory(r.Territory)
	}

	return k
}

// PopTotal is the summed population of one group.
type PopTotal struct {
	Key        GroupKey
	Population int64
}

// PopulationRegistry supplies denominators.
type PopulationRegistry interface {
	Totals(q *PopQuery) ([]PopTotal, error)
}
