package rates

import (
	"fmt"
	"math"
	"sort"
)

// DefaultMaxUnmatched is the unmatched share above which a join reports a data-quality warning.
const DefaultMaxUnmatched = 0.10

// IDSC is the score name of the overall sustainability index.
const IDSC = "IDSC"

// Classification is one municipality of the Territorial Classification Index.
type Classification struct {
	Territory TerritoryCode // as written by the source
	Name      string
	Tier      DevelopmentTier
	Scores    map[string]float64 // IDSC, goal sub-scores, iCAPS, iRAPS, ...
}

// Score returns the named score; ok is false when absent or NaN.
func (c *Classification) Score(name string) (float64, bool) {
	if c == nil {
		return math.NaN(), false
	}

	x, ok := c.Scores[name]
	if !ok || math.IsNaN(x) {
		return math.NaN(), false
	}

	return x, true
}

// ClassificationIndex holds classification records keyed by canonical code.
type ClassificationIndex struct {
	enc  Encoding
	recs map[TerritoryCode]*Classification

	invalid    []string
	duplicates int
	verify     bool
}

type IndexOpt func(ci *ClassificationIndex) error

// IndexVerify rejects 7-digit codes whose check digit is wrong.
func IndexVerify(verify bool) IndexOpt {
	return func(ci *ClassificationIndex) error {
		ci.verify = verify
		return nil
	}
}

// NewClassificationIndex canonicalizes every record code. Records whose code does not
// match enc, fails verification, or repeats a canonical code are not indexed and are counted.
func NewClassificationIndex(enc Encoding, recs []Classification, opts ...IndexOpt) (*ClassificationIndex, error) {
	if enc != EncIBGE6 && enc != EncIBGE7 {
		return nil, fmt.Errorf("%w: classification index must be keyed by municipality, got %s", ErrEncoding, enc)
	}

	ci := &ClassificationIndex{enc: enc, recs: make(map[TerritoryCode]*Classification)}
	for _, opt := range opts {
		if e := opt(ci); e != nil {
			return nil, e
		}
	}

	for ind := range recs {
		rec := recs[ind]
		if rec.Territory.Encoding() != enc || (ci.verify && !rec.Territory.Verify()) {
			ci.invalid = append(ci.invalid, rec.Territory.String())
			continue
		}

		canon, e := rec.Territory.Canonical()
		if e != nil {
			ci.invalid = append(ci.invalid, rec.Territory.String())
			continue
		}

		if _, dup := ci.recs[canon]; dup {
			ci.duplicates++
			continue
		}

		ci.recs[canon] = &rec
	}

	if len(ci.recs) == 0 {
		return nil, fmt.Errorf("%w: classification index has no valid records (%d invalid)", ErrSource, len(ci.invalid))
	}

	return ci, nil
}

func (ci *ClassificationIndex) Encoding() Encoding {
	return ci.enc
}

func (ci *ClassificationIndex) Len() int {
	return len(ci.recs)
}

// Invalid returns the source codes rejected at load.
func (ci *ClassificationIndex) Invalid() []string {
	return ci.invalid
}

func (ci *ClassificationIndex) Duplicates() int {
	return ci.duplicates
}

// Lookup canonicalizes code before the key comparison.
func (ci *ClassificationIndex) Lookup(code TerritoryCode) (*Classification, bool) {
	canon, e := code.Canonical()
	if e != nil || canon.IsState() {
		return nil, false
	}

	c, ok := ci.recs[canon]

	return c, ok
}

// ScoreNames lists the score names present in the index, sorted.
func (ci *ClassificationIndex) ScoreNames() []string {
	seen := make(map[string]bool)
	for _, c := range ci.recs {
		for nm := range c.Scores {
			seen[nm] = true
		}
	}

	var names []string
	for nm := range seen {
		names = append(names, nm)
	}

	sort.Strings(names)

	return names
}

// Names returns the display names carried by the index.
func (ci *ClassificationIndex) Names() Names {
	names := Names{}
	for tc, c := range ci.recs {
		if c.Name != "" {
			names[tc] = c.Name
		}
	}

	return names
}

// Codes returns the canonical codes of the index, sorted.
func (ci *ClassificationIndex) Codes() []TerritoryCode {
	var codes []TerritoryCode
	for tc := range ci.recs {
		codes = append(codes, tc)
	}

	sort.Slice(codes, func(i, j int) bool { return codes[i].code < codes[j].code })

	return codes
}

// JoinedRow is a rate row with its classification.
type JoinedRow struct {
	RateRow
	Class *Classification
}

// JoinReport describes the outcome of the reconciliation.
//   - Invalid: rows whose code could not be canonicalized
//   - Unmatched: valid rows with no index record
//   - IndexUnmatched: index records no row referenced
type JoinReport struct {
	Rows           int
	Matched        int
	Unmatched      int
	Invalid        int
	IndexUnmatched int
	UnmatchedShare float64
	UnmatchedCodes []string
	Warning        string
}

func (jr *JoinReport) String() string {
	return fmt.Sprintf("rows %d, matched %d, unmatched %d, invalid %d, index unmatched %d (%.1f%% dropped)",
		jr.Rows, jr.Matched, jr.Unmatched, jr.Invalid, jr.IndexUnmatched, 100*jr.UnmatchedShare)
}

// JoinClassification joins a municipality-level rate table to the index. Rows that fail reconciliation
// are dropped from the result and counted in the report; a share above maxUnmatched sets Warning.
func JoinClassification(tab *RateTable, ci *ClassificationIndex, maxUnmatched float64) ([]JoinedRow, *JoinReport, error) {
	if ci == nil {
		return nil, nil, fmt.Errorf("%w: no classification index", ErrSource)
	}

	if !tab.By.hasTerritory() || tab.Level != LevelMunicipality {
		return nil, nil, fmt.Errorf("classification join needs a municipality grouping, got %s/%s", tab.By, tab.Level)
	}

	if maxUnmatched <= 0 {
		maxUnmatched = DefaultMaxUnmatched
	}

	rep := &JoinReport{Rows: len(tab.Rows)}
	used := make(map[TerritoryCode]bool)

	var out []JoinedRow
	for _, row := range tab.Rows {
		canon, e := row.Key.Territory.Canonical()
		if e != nil || canon.IsState() {
			rep.Invalid++
			rep.UnmatchedCodes = append(rep.UnmatchedCodes, row.Key.Territory.String())
			continue
		}

		c, ok := ci.recs[canon]
		if !ok {
			rep.Unmatched++
			rep.UnmatchedCodes = append(rep.UnmatchedCodes, canon.String())
			continue
		}

		used[canon] = true
		rep.Matched++
		out = append(out, JoinedRow{RateRow: row, Class: c})
	}

	rep.IndexUnmatched = len(ci.recs) - len(used)
	if rep.Rows > 0 {
		rep.UnmatchedShare = float64(rep.Unmatched+rep.Invalid) / float64(rep.Rows)
	}

	if rep.UnmatchedShare > maxUnmatched {
		rep.Warning = fmt.Sprintf("%.1f%% of rows did not match the classification index (limit %.1f%%)",
			100*rep.UnmatchedShare, 100*maxUnmatched)
	}

	return out, rep, nil
}

// TierRate is the rate of one development tier, re-derived from summed cases and population.
// Municipalities without a denominator are left out of both sums and counted in Missing.
type TierRate struct {
	Tier DevelopmentTier
	RateRow
	Municipalities int
	Missing        int
}

// RatesByTier sums joined rows into development tiers. Rows of unclassified municipalities are skipped.
func RatesByTier(rows []JoinedRow) []TierRate {
	acc := make(map[DevelopmentTier]*TierRate)
	for _, r := range rows {
		if r.Class == nil || r.Class.Tier == TierNone {
			continue
		}

		tr, ok := acc[r.Class.Tier]
		if !ok {
			tr = &TierRate{Tier: r.Class.Tier}
			acc[r.Class.Tier] = tr
		}

		tr.Municipalities++
		if !r.Defined() {
			tr.Missing++
			continue
		}

		tr.Cases += r.Cases
		tr.Deaths += r.Deaths
		tr.StayDays += r.StayDays
		tr.Population += r.Population
		tr.Substituted = tr.Substituted || r.Substituted
	}

	var out []TierRate
	for _, tr := range acc {
		tr.PopMissing = tr.Population <= 0
		tr.Rate, tr.DeathRate = rate(tr.Cases, tr.Population), rate(tr.Deaths, tr.Population)
		out = append(out, *tr)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Tier < out[j].Tier })

	return out
}
