package mem

import (
	"fmt"
	"sort"

	"github.com/invertedv/rates"
)

// Cases is an in-memory Case Registry stored by column. A Cases is not modified after
// construction; Filter returns a new Cases.
type Cases struct {
	year        []int
	territory   []rates.TerritoryCode
	sex         []rates.Sex
	race        []rates.Race
	age         []int
	group       []string
	category    []string
	subcategory []string
	stay        []int
	death       []bool
	regime      []string
}

// NewCases stores the records with their territory codes canonicalized.
func NewCases(recs ...rates.Case) (*Cases, error) {
	c := &Cases{}
	for ind := range recs {
		rec := recs[ind]

		var e error
		if rec.Territory, e = rec.Territory.Canonical(); e != nil {
			return nil, fmt.Errorf("case %d: %w", ind, e)
		}

		if rec.Territory.IsState() {
			return nil, fmt.Errorf("%w: case %d has state code %s for municipality", rates.ErrEncoding, ind, rec.Territory)
		}

		if rec.Age < 0 || rec.Stay < 0 {
			return nil, fmt.Errorf("%w: case %d has negative age or stay", rates.ErrSource, ind)
		}

		c.append(&rec)
	}

	return c, nil
}

func (c *Cases) append(rec *rates.Case) {
	c.year = append(c.year, rec.Year)
	c.territory = append(c.territory, rec.Territory)
	c.sex = append(c.sex, rec.Sex)
	c.race = append(c.race, rec.Race)
	c.age = append(c.age, rec.Age)
	c.group = append(c.group, rec.Group)
	c.category = append(c.category, rec.Category)
	c.subcategory = append(c.subcategory, rec.Subcategory)
	c.stay = append(c.stay, rec.Stay)
	c.death = append(c.death, rec.Death)
	c.regime = append(c.regime, rec.Regime)
}

func (c *Cases) Len() int {
	return len(c.year)
}

// Case returns row ind.
func (c *Cases) Case(ind int) rates.Case {
	return rates.Case{
		Year:        c.year[ind],
		Territory:   c.territory[ind],
		Sex:         c.sex[ind],
		Race:        c.race[ind],
		Age:         c.age[ind],
		Group:       c.group[ind],
		Category:    c.category[ind],
		Subcategory: c.subcategory[ind],
		Stay:        c.stay[ind],
		Death:       c.death[ind],
		Regime:      c.regime[ind],
	}
}

// Filter implements rates.CaseSource.
func (c *Cases) Filter(f *rates.Filter) (rates.CaseSource, error) {
	return c.Select(f)
}

// Select returns the cases matching every predicate of f. A filter with no predicates
// returns c itself. Diagnosis keys absent from c's taxonomy are an error.
func (c *Cases) Select(f *rates.Filter) (*Cases, error) {
	if f.Empty() {
		return c, nil
	}

	if e := f.Validate(); e != nil {
		return nil, e
	}

	if !f.Resolved() {
		return nil, fmt.Errorf("tier filter %q has not been resolved against a classification index", f.Tier)
	}

	if e := c.checkDiagnosis(f); e != nil {
		return nil, e
	}

	var keep []int
	for ind := 0; ind < c.Len(); ind++ {
		cs := c.Case(ind)
		if f.Match(&cs) {
			keep = append(keep, ind)
		}
	}

	return c.take(keep), nil
}

func (c *Cases) checkDiagnosis(f *rates.Filter) error {
	if f.Group != "" && !has(f.Group, c.Groups()) {
		return fmt.Errorf("%w: diagnosis group %q", rates.ErrUnknownKey, f.Group)
	}

	if f.Category != "" && !has(f.Category, c.Categories(f.Group)) {
		return fmt.Errorf("%w: category %q in group %q", rates.ErrUnknownKey, f.Category, f.Group)
	}

	if f.Subcategory != "" && !has(f.Subcategory, c.Subcategories(f.Group, f.Category)) {
		return fmt.Errorf("%w: subcategory %q in category %q", rates.ErrUnknownKey, f.Subcategory, f.Category)
	}

	return nil
}

func (c *Cases) take(rows []int) *Cases {
	out := &Cases{}
	for _, ind := range rows {
		cs := c.Case(ind)
		out.append(&cs)
	}

	return out
}

// Count aggregates cases, deaths and days of stay by group key, sorted by key.
func (c *Cases) Count(by rates.GroupBy, level rates.Level) []rates.Count {
	strata := c.CountBy(by, level, nil)

	out := make([]rates.Count, len(strata))
	for ind := range strata {
		out[ind] = strata[ind].Count
	}

	return out
}

// CountBy aggregates like Count with each group further split by label, sorted by key then stratum.
// A nil label puts every case in the same stratum.
func (c *Cases) CountBy(by rates.GroupBy, level rates.Level, label func(cs *rates.Case) string) []rates.StratumCount {
	type key struct {
		group   rates.GroupKey
		stratum string
	}

	var keys []key
	counts := make(map[key]*rates.StratumCount)
	for ind := 0; ind < c.Len(); ind++ {
		k := key{group: rates.MakeKey(by, level, c.year[ind], c.territory[ind])}
		if label != nil {
			cs := c.Case(ind)
			k.stratum = label(&cs)
		}

		cnt, ok := counts[k]
		if !ok {
			cnt = &rates.StratumCount{Stratum: k.stratum, Count: rates.Count{Key: k.group}}
			counts[k] = cnt
			keys = append(keys, k)
		}

		cnt.Cases++
		cnt.StayDays += c.stay[ind]
		if c.death[ind] {
			cnt.Deaths++
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].group != keys[j].group {
			return keys[i].group.Less(keys[j].group)
		}

		return keys[i].stratum < keys[j].stratum
	})

	out := make([]rates.StratumCount, len(keys))
	for ind, k := range keys {
		out[ind] = *counts[k]
	}

	return out
}

// Years returns the distinct event years, ascending.
func (c *Cases) Years() []int {
	return distinct(c.year, func(int) bool { return true })
}

// Territories returns the distinct municipality codes, ascending.
func (c *Cases) Territories() []rates.TerritoryCode {
	seen := make(map[rates.TerritoryCode]bool)
	var out []rates.TerritoryCode
	for _, tc := range c.territory {
		if !seen[tc] {
			seen[tc] = true
			out = append(out, tc)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })

	return out
}
