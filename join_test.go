package rates

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testIndex(t *testing.T) *ClassificationIndex {
	recs := []Classification{
		{Territory: MustTerritory("3550308"), Name: "São Paulo", Tier: 1, Scores: map[string]float64{IDSC: 60, "iCAPS": 0.8}},
		{Territory: MustTerritory("3304557"), Name: "Rio de Janeiro", Tier: 2, Scores: map[string]float64{IDSC: 50}},
		{Territory: MustTerritory("5300108"), Name: "Brasília", Tier: 1, Scores: map[string]float64{IDSC: 55}},
		{Territory: MustTerritory("3106200"), Name: "Belo Horizonte", Tier: 3, Scores: map[string]float64{IDSC: math.NaN()}},
		{Territory: MustTerritory("3550308"), Name: "São Paulo", Tier: 1},
		{Territory: MustTerritory("431490"), Name: "Porto Alegre", Tier: 2},
	}

	ci, e := NewClassificationIndex(EncIBGE7, recs)
	assert.Nil(t, e)

	return ci
}

func testRow(code string, cases int, pop int64) RateRow {
	row := RateRow{Key: GroupKey{Territory: MustTerritory(code)}, Cases: cases, Population: pop, PopYear: 2020}
	row.PopMissing = pop <= 0
	row.Rate, row.DeathRate = rate(cases, pop), rate(0, pop)

	return row
}

func TestClassificationIndex(t *testing.T) {
	ci := testIndex(t)
	assert.Equal(t, 4, ci.Len())
	assert.Equal(t, 1, ci.Duplicates())
	assert.Equal(t, []string{"431490"}, ci.Invalid())
	assert.Equal(t, EncIBGE7, ci.Encoding())
	assert.Equal(t, []string{IDSC, "iCAPS"}, ci.ScoreNames())
	assert.Equal(t, MustTerritory("310620"), ci.Codes()[0])
	assert.Equal(t, "Brasília", ci.Names().Name(MustTerritory("5300108")))

	c, ok := ci.Lookup(MustTerritory("355030"))
	assert.True(t, ok)
	assert.Equal(t, "São Paulo", c.Name)

	c, ok = ci.Lookup(MustTerritory("3550308"))
	assert.True(t, ok)
	x, ok := c.Score(IDSC)
	assert.True(t, ok)
	assert.Equal(t, 60.0, x)

	_, ok = ci.Lookup(MustTerritory("35"))
	assert.False(t, ok)

	c, _ = ci.Lookup(MustTerritory("310620"))
	_, ok = c.Score(IDSC)
	assert.False(t, ok)

	var nc *Classification
	_, ok = nc.Score(IDSC)
	assert.False(t, ok)
}

func TestClassificationIndexErrors(t *testing.T) {
	_, e := NewClassificationIndex(EncState, nil)
	assert.True(t, errors.Is(e, ErrEncoding))

	_, e = NewClassificationIndex(EncIBGE7, []Classification{{Territory: MustTerritory("355030")}})
	assert.True(t, errors.Is(e, ErrSource))

	ci, e := NewClassificationIndex(EncIBGE7,
		[]Classification{{Territory: MustTerritory("3550308")}, {Territory: MustTerritory("3550307")}}, IndexVerify(true))
	assert.Nil(t, e)
	assert.Equal(t, 1, ci.Len())
	assert.Equal(t, []string{"3550307"}, ci.Invalid())
}

func TestJoinClassification(t *testing.T) {
	ci := testIndex(t)
	tab := &RateTable{By: ByTerritory, Level: LevelMunicipality, Rows: []RateRow{
		testRow("355030", 100, 20000),
		testRow("330455", 30, 0),
		testRow("530010", 50, 10000),
		testRow("999999", 1, 100),
		testRow("35", 10, 1000),
	}}

	rows, rep, e := JoinClassification(tab, ci, 0)
	assert.Nil(t, e)
	assert.Equal(t, 3, len(rows))
	assert.Equal(t, 5, rep.Rows)
	assert.Equal(t, 3, rep.Matched)
	assert.Equal(t, 1, rep.Unmatched)
	assert.Equal(t, 1, rep.Invalid)
	assert.Equal(t, 1, rep.IndexUnmatched)
	assert.InDelta(t, 0.4, rep.UnmatchedShare, 1e-9)
	assert.Equal(t, []string{"999999", "35"}, rep.UnmatchedCodes)
	assert.NotEmpty(t, rep.Warning)
	assert.Equal(t, "São Paulo", rows[0].Class.Name)

	_, rep, e = JoinClassification(tab, ci, 0.5)
	assert.Nil(t, e)
	assert.Empty(t, rep.Warning)

	// rows keyed by the 7-digit code reconcile the same way
	tab7 := &RateTable{By: ByYearTerritory, Level: LevelMunicipality, Rows: []RateRow{testRow("3550308", 1, 10)}}
	rows, rep, e = JoinClassification(tab7, ci, 0)
	assert.Nil(t, e)
	assert.Equal(t, 1, rep.Matched)
	assert.Equal(t, 1, len(rows))

	_, _, e = JoinClassification(&RateTable{By: ByYear}, ci, 0)
	assert.NotNil(t, e)

	_, _, e = JoinClassification(&RateTable{By: ByTerritory, Level: LevelState}, ci, 0)
	assert.NotNil(t, e)

	_, _, e = JoinClassification(tab, nil, 0)
	assert.True(t, errors.Is(e, ErrSource))
}

func TestRatesByTier(t *testing.T) {
	ci := testIndex(t)
	tab := &RateTable{By: ByTerritory, Level: LevelMunicipality, Rows: []RateRow{
		testRow("355030", 100, 20000),
		testRow("330455", 30, 0),
		testRow("530010", 50, 10000),
	}}

	rows, _, e := JoinClassification(tab, ci, 0)
	assert.Nil(t, e)

	tiers := RatesByTier(rows)
	assert.Equal(t, 2, len(tiers))

	assert.Equal(t, DevelopmentTier(1), tiers[0].Tier)
	assert.Equal(t, 2, tiers[0].Municipalities)
	assert.Equal(t, 150, tiers[0].Cases)
	assert.InDelta(t, 500.0, tiers[0].Rate, 1e-9)

	assert.Equal(t, DevelopmentTier(2), tiers[1].Tier)
	assert.Equal(t, 1, tiers[1].Missing)
	assert.True(t, tiers[1].PopMissing)
	assert.True(t, math.IsNaN(tiers[1].Rate))
}
