package mem

import (
	"fmt"

	"github.com/invertedv/rates"
)

// Population is an in-memory Population Registry.
type Population struct {
	recs []rates.PopRecord
}

// NewPopulation stores recs with territory codes canonicalized. Age keys must be bands of the fixed partition.
func NewPopulation(recs ...rates.PopRecord) (*Population, error) {
	p := &Population{}
	for ind := range recs {
		rec := recs[ind]

		var e error
		if rec.Territory, e = rec.Territory.Canonical(); e != nil {
			return nil, fmt.Errorf("population row %d: %w", ind, e)
		}

		if rec.Territory.IsState() {
			return nil, fmt.Errorf("%w: population row %d has state code %s", rates.ErrEncoding, ind, rec.Territory)
		}

		if _, e = rates.LookupAgeBand(rec.Age); e != nil {
			return nil, fmt.Errorf("population row %d: %w", ind, e)
		}

		if rec.Population < 0 {
			return nil, fmt.Errorf("%w: population row %d is negative", rates.ErrSource, ind)
		}

		p.recs = append(p.recs, rec)
	}

	return p, nil
}

func (p *Population) Len() int {
	return len(p.recs)
}

func (p *Population) Records() []rates.PopRecord {
	return p.recs
}

// Totals implements rates.PopulationRegistry.
func (p *Population) Totals(q *rates.PopQuery) ([]rates.PopTotal, error) {
	var keys []rates.GroupKey
	tot := make(map[rates.GroupKey]int64)
	for ind := range p.recs {
		r := &p.recs[ind]
		if !q.Match(r) {
			continue
		}

		k := q.Key(r)
		if _, ok := tot[k]; !ok {
			keys = append(keys, k)
		}

		tot[k] += r.Population
	}

	out := make([]rates.PopTotal, len(keys))
	for ind, k := range keys {
		out[ind] = rates.PopTotal{Key: k, Population: tot[k]}
	}

	return out, nil
}

// Years returns the distinct years present.
func (p *Population) Years() []int {
	yrs := make([]int, len(p.recs))
	for ind := range p.recs {
		yrs[ind] = p.recs[ind].Year
	}

	return distinct(yrs, func(int) bool { return true })
}
