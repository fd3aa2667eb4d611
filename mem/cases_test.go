package mem

import (
	"errors"
	"testing"

	"github.com/invertedv/rates"
	"github.com/stretchr/testify/assert"
)

func testCases(t *testing.T) *Cases {
	sp, rj := rates.MustTerritory("3550308"), rates.MustTerritory("330455")
	c, e := NewCases(
		rates.Case{Year: 2019, Territory: sp, Sex: rates.SexMale, Race: rates.RacePreta, Age: 22, Group: "F30-F39", Category: "F32", Subcategory: "F32.9", Stay: 3},
		rates.Case{Year: 2020, Territory: sp, Sex: rates.SexFemale, Race: rates.RaceParda, Age: 40, Group: "F30-F39", Category: "F33", Subcategory: "F33.1", Stay: 5, Death: true},
		rates.Case{Year: 2020, Territory: sp, Sex: rates.SexMale, Race: rates.RaceBranca, Age: 23, Group: "F20-F29", Category: "F20", Subcategory: "F20.0", Stay: 10},
		rates.Case{Year: 2020, Territory: rj, Sex: rates.SexMale, Race: rates.RaceParda, Age: 21, Group: "F30-F39", Category: "F32", Subcategory: "F32.0", Stay: 2},
	)
	assert.Nil(t, e)

	return c
}

func TestNewCases(t *testing.T) {
	c := testCases(t)
	assert.Equal(t, 4, c.Len())
	assert.Equal(t, rates.MustTerritory("355030"), c.Case(0).Territory)
	assert.Equal(t, []int{2019, 2020}, c.Years())
	assert.Equal(t, []rates.TerritoryCode{rates.MustTerritory("330455"), rates.MustTerritory("355030")}, c.Territories())

	_, e := NewCases(rates.Case{Year: 2020, Territory: rates.MustTerritory("35")})
	assert.True(t, errors.Is(e, rates.ErrEncoding))

	_, e = NewCases(rates.Case{Year: 2020, Territory: rates.MustTerritory("355030"), Age: -1})
	assert.True(t, errors.Is(e, rates.ErrSource))

	_, e = NewCases(rates.Case{Year: 2020})
	assert.True(t, errors.Is(e, rates.ErrEncoding))
}

func TestSelect(t *testing.T) {
	c := testCases(t)

	f, e := rates.NewFilter()
	assert.Nil(t, e)

	out, e := c.Select(f)
	assert.Nil(t, e)
	assert.Same(t, c, out)

	f, e = rates.NewFilter(rates.FilterYears(2020, 2020), rates.FilterRace("Negra", rates.SchemeCollapsed))
	assert.Nil(t, e)

	out, e = c.Select(f)
	assert.Nil(t, e)
	assert.Equal(t, 2, out.Len())
	assert.Equal(t, 4, c.Len())

	f, e = rates.NewFilter(rates.FilterDiagnosis("F30-F39", "F32", ""), rates.FilterAgeBand("20-24"))
	assert.Nil(t, e)

	out, e = c.Select(f)
	assert.Nil(t, e)
	assert.Equal(t, 2, out.Len())

	f, e = rates.NewFilter(rates.FilterDiagnosis("F30-F39", "F32", ""), rates.FilterState("RJ"))
	assert.Nil(t, e)

	src, e := c.Filter(f)
	assert.Nil(t, e)
	assert.Equal(t, 1, src.Len())
}

func TestSelectUnknownKeys(t *testing.T) {
	c := testCases(t)

	f, _ := rates.NewFilter(rates.FilterDiagnosis("X00-X09", "", ""))
	_, e := c.Select(f)
	assert.True(t, errors.Is(e, rates.ErrUnknownKey))

	f, _ = rates.NewFilter(rates.FilterDiagnosis("F30-F39", "F20", ""))
	_, e = c.Select(f)
	assert.True(t, errors.Is(e, rates.ErrUnknownKey))

	f, _ = rates.NewFilter(rates.FilterDiagnosis("F30-F39", "F32", "F33.1"))
	_, e = c.Select(f)
	assert.True(t, errors.Is(e, rates.ErrUnknownKey))

	// a cascade violation set directly on the struct is caught too
	_, e = c.Select(&rates.Filter{Category: "F32"})
	assert.True(t, errors.Is(e, rates.ErrCascade))

	f, _ = rates.NewFilter(rates.FilterTier("1"))
	_, e = c.Select(f)
	assert.NotNil(t, e)
}

func TestTaxonomy(t *testing.T) {
	c := testCases(t)
	assert.Equal(t, []string{"F20-F29", "F30-F39"}, c.Groups())
	assert.Equal(t, []string{"F32", "F33"}, c.Categories("F30-F39"))
	assert.Equal(t, []string{"F32.0", "F32.9"}, c.Subcategories("F30-F39", "F32"))
	assert.Nil(t, c.Categories(""))
	assert.Nil(t, c.Subcategories("F30-F39", ""))
	assert.Nil(t, c.Subcategories("", "F32"))
	assert.Empty(t, c.Categories("Z00-Z99"))

	f, _ := rates.NewFilter(rates.FilterState("RJ"))
	out, e := c.Select(f)
	assert.Nil(t, e)
	assert.Equal(t, []string{"F30-F39"}, out.Groups())
	assert.Equal(t, []string{"F32"}, out.Categories("F30-F39"))
}

func TestCount(t *testing.T) {
	c := testCases(t)

	cnt := c.Count(rates.ByYear, rates.LevelMunicipality)
	assert.Equal(t, []rates.Count{
		{Key: rates.GroupKey{Year: 2019}, Cases: 1, StayDays: 3},
		{Key: rates.GroupKey{Year: 2020}, Cases: 3, Deaths: 1, StayDays: 17},
	}, cnt)

	cnt = c.Count(rates.ByTerritory, rates.LevelMunicipality)
	assert.Equal(t, 2, len(cnt))
	assert.Equal(t, rates.MustTerritory("330455"), cnt[0].Key.Territory)
	assert.Equal(t, 3, cnt[1].Cases)

	cnt = c.Count(rates.ByYearTerritory, rates.LevelState)
	assert.Equal(t, 3, len(cnt))
	assert.Equal(t, rates.GroupKey{Year: 2020, Territory: rates.MustTerritory("33")}, cnt[0].Key)
}

func TestCountBy(t *testing.T) {
	c := testCases(t)

	race := func(cs *rates.Case) string { return rates.SchemeCollapsed.Group(cs.Race).String() }
	cnt := c.CountBy(rates.ByYear, rates.LevelMunicipality, race)
	assert.Equal(t, []rates.StratumCount{
		{Stratum: "Negra", Count: rates.Count{Key: rates.GroupKey{Year: 2019}, Cases: 1, StayDays: 3}},
		{Stratum: "Branca", Count: rates.Count{Key: rates.GroupKey{Year: 2020}, Cases: 1, StayDays: 10}},
		{Stratum: "Negra", Count: rates.Count{Key: rates.GroupKey{Year: 2020}, Cases: 2, Deaths: 1, StayDays: 7}},
	}, cnt)

	cnt = c.CountBy(rates.ByTotal, rates.LevelMunicipality, func(cs *rates.Case) string { return cs.Group })
	assert.Equal(t, 2, len(cnt))
	assert.Equal(t, "F20-F29", cnt[0].Stratum)
	assert.Equal(t, rates.GroupKey{}, cnt[1].Key)
	assert.Equal(t, 3, cnt[1].Cases)

	assert.Equal(t, c.Count(rates.ByYear, rates.LevelMunicipality)[1], c.CountBy(rates.ByYear, rates.LevelMunicipality, nil)[1].Count)
}
