package rates

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testCase() *Case {
	return &Case{Year: 2020, Territory: MustTerritory("355030"), Sex: SexMale, Race: RaceParda, Age: 33,
		Group: "F30-F39", Category: "F32", Subcategory: "F32.9", Stay: 4, Regime: "Público"}
}

func TestFilterEmpty(t *testing.T) {
	f, e := NewFilter()
	assert.Nil(t, e)
	assert.True(t, f.Empty())
	assert.True(t, f.Match(testCase()))

	f, e = NewFilter(FilterRace("", SchemeCollapsed), FilterAgeBand("Todas"), FilterState("Todos"))
	assert.Nil(t, e)
	assert.True(t, f.Empty())

	var nf *Filter
	assert.True(t, nf.Empty())
	assert.True(t, nf.Match(testCase()))
}

func TestFilterMatch(t *testing.T) {
	c := testCase()

	tests := []struct {
		opts []FilterOpt
		want bool
	}{
		{[]FilterOpt{FilterYears(2018, 2020)}, true},
		{[]FilterOpt{FilterYears(2021, 2022)}, false},
		{[]FilterOpt{FilterState("SP")}, true},
		{[]FilterOpt{FilterState("33")}, false},
		{[]FilterOpt{FilterMunicipality("3550308")}, true},
		{[]FilterOpt{FilterSex("F")}, false},
		{[]FilterOpt{FilterAgeBand("30-34")}, true},
		{[]FilterOpt{FilterAgeBand("35-39")}, false},
		{[]FilterOpt{FilterRace("Parda", SchemeTraditional)}, true},
		{[]FilterOpt{FilterRace("Negra", SchemeCollapsed)}, true},
		{[]FilterOpt{FilterRace("Preta", SchemeTraditional)}, false},
		{[]FilterOpt{FilterDiagnosis("F30-F39", "F32", "")}, true},
		{[]FilterOpt{FilterDiagnosis("F30-F39", "F33", "")}, false},
		{[]FilterOpt{FilterRegime("Privado")}, false},
		{[]FilterOpt{FilterYears(2020, 2020), FilterState("35"), FilterSex("1"), FilterRace("Negra", SchemeCollapsed)}, true},
	}

	for ind, tst := range tests {
		f, e := NewFilter(tst.opts...)
		assert.Nil(t, e, ind)
		assert.Equal(t, tst.want, f.Match(c), ind)
	}
}

func TestFilterCascade(t *testing.T) {
	_, e := NewFilter(FilterDiagnosis("", "F32", ""))
	assert.True(t, errors.Is(e, ErrCascade))

	_, e = NewFilter(FilterDiagnosis("F30-F39", "", "F32.9"))
	assert.True(t, errors.Is(e, ErrCascade))

	_, e = NewFilter(FilterState("33"), FilterMunicipality("355030"))
	assert.True(t, errors.Is(e, ErrCascade))

	_, e = NewFilter(FilterYears(2021, 2019))
	assert.NotNil(t, e)
}

func TestFilterBadKeys(t *testing.T) {
	_, e := NewFilter(FilterAgeBand("20-30"))
	assert.True(t, errors.Is(e, ErrUnknownKey))

	_, e = NewFilter(FilterRace("Negra", SchemeTraditional))
	assert.True(t, errors.Is(e, ErrUnknownKey))

	_, e = NewFilter(FilterSex("Z"))
	assert.True(t, errors.Is(e, ErrUnknownKey))

	_, e = NewFilter(FilterMunicipality("35"))
	assert.True(t, errors.Is(e, ErrEncoding))

	_, e = NewFilter(FilterTier("9"))
	assert.True(t, errors.Is(e, ErrUnknownKey))
}

func TestFilterTier(t *testing.T) {
	ci := testIndex(t)

	f, e := NewFilter(FilterTier("1"))
	assert.Nil(t, e)
	assert.False(t, f.Resolved())
	assert.True(t, errors.Is(f.Resolve(nil), ErrSource))

	assert.Nil(t, f.Resolve(ci))
	assert.True(t, f.Resolved())
	assert.True(t, f.Match(testCase()))

	c := testCase()
	c.Territory = MustTerritory("330455")
	assert.False(t, f.Match(c))
}

func TestFilterString(t *testing.T) {
	f, e := NewFilter(FilterYears(2015, 2020), FilterState("SP"), FilterRace("Negra", SchemeCollapsed))
	assert.Nil(t, e)

	s := f.String()
	assert.True(t, strings.Contains(s, "2015 a 2020"))
	assert.True(t, strings.Contains(s, "São Paulo (SP)"))
	assert.True(t, strings.Contains(s, "Negra"))
}
