package rates

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testTable() *RateTable {
	sp := MustTerritory("355030")
	tab := &RateTable{By: ByYearTerritory, Level: LevelMunicipality, Rows: []RateRow{
		testRow("330455", 4, 0),
		testRow("355030", 100, 20000),
	}}
	tab.Rows[0].Key.Year, tab.Rows[1].Key.Year = 2020, 2021
	tab.Rows[1].Deaths, tab.Rows[1].Substituted = 5, true
	tab.Substitutions = []Substitution{{Key: GroupKey{Year: 2021, Territory: sp}, Requested: 2021, Used: 2020}}

	return tab
}

func TestFormat(t *testing.T) {
	names := Names{MustTerritory("355030"): "São Paulo"}

	s := testTable().Format(names)
	assert.Contains(t, s, "São Paulo")
	assert.Contains(t, s, "330455")
	assert.Contains(t, s, "2021 (pop 2020)")
	assert.Contains(t, s, "500.00")
	assert.Contains(t, s, "population for 2021 taken from 2020")

	assert.Equal(t, "(sem resultados)\n", (&RateTable{}).String())
}

func TestSummary(t *testing.T) {
	s := testTable().Summary()
	assert.Contains(t, s, "median")
	assert.Contains(t, s, "no population")

	s = (&RateTable{Rows: []RateRow{testRow("355030", 1, 0)}}).Summary()
	assert.Contains(t, s, "no defined rates (1 rows")

	// quartiles interpolate between the rates 100 through 500
	tab := &RateTable{}
	for ind := 1; ind <= 5; ind++ {
		tab.Rows = append(tab.Rows, testRow("355030", 100*ind, 100000))
	}

	s = tab.Summary()
	assert.Contains(t, s, "125.00")
	assert.Contains(t, s, "250.00")
	assert.Contains(t, s, "375.00")
}

func testBreakdown() *Breakdown {
	negra := RateRow{Cases: 100, Deaths: 4, StayDays: 500, Population: 20000, PopYear: 2020, Rate: 500, DeathRate: 20}
	return &Breakdown{Dim: DimRace, Scheme: SchemeCollapsed, By: ByTotal, Rows: []StratumRow{
		{Stratum: "Negra", RateRow: negra},
		{Stratum: "", RateRow: unrated(Count{Cases: 3, StayDays: 6})},
	}}
}

func TestBreakdownFormat(t *testing.T) {
	s := testBreakdown().Format()
	assert.Contains(t, s, "race")
	assert.Contains(t, s, "Negra")
	assert.Contains(t, s, "(vazio)")
	assert.Contains(t, s, "500.00")

	assert.Equal(t, "(sem resultados)\n", (&Breakdown{}).Format())
}

func TestWriteBreakdown(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "breakdown.csv")
	assert.Nil(t, WriteBreakdown(fileName, testBreakdown()))

	b, e := os.ReadFile(fileName)
	assert.Nil(t, e)

	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	assert.Equal(t, 3, len(lines))
	assert.True(t, strings.HasPrefix(lines[0], "ano,estrato,casos"))
	assert.Equal(t, `,"Negra",100,4,20000,2020,false,500.0000,20.0000,4.0000,5.0000`, lines[1])
	assert.Equal(t, `,"",3,0,,,false,,,0.0000,2.0000`, lines[2])
}

func TestWriteRates(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "rates.csv")
	assert.Nil(t, WriteRates(fileName, testTable(), nil))

	b, e := os.ReadFile(fileName)
	assert.Nil(t, e)

	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	assert.Equal(t, 3, len(lines))
	assert.Equal(t, strings.Join(rateFields, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], `2020,"330455","330455",4,0,,,false,,,0.0000,0.0000`))
	assert.True(t, strings.HasPrefix(lines[2], `2021,"355030","355030",100,5,20000,2020,true,500.0000,0.0000,5.0000`))
}

func TestWriteJoined(t *testing.T) {
	ci := testIndex(t)
	sp, _ := ci.Lookup(MustTerritory("355030"))

	fileName := filepath.Join(t.TempDir(), "joined.csv")
	rows := []JoinedRow{{RateRow: testRow("355030", 100, 20000), Class: sp}}
	assert.Nil(t, WriteJoined(fileName, rows, Names{}, []string{IDSC, "iRAPS"}))

	b, e := os.ReadFile(fileName)
	assert.Nil(t, e)

	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	assert.Equal(t, 2, len(lines))
	assert.True(t, strings.HasSuffix(lines[0], "grupo_cir,IDSC,iRAPS"))
	assert.True(t, strings.HasSuffix(lines[1], ",1,60.0000,"))
}

func TestPlots(t *testing.T) {
	dir := t.TempDir()

	p, e := PlotTrend(testTable(), nil, PlotTitle("trend"))
	assert.Nil(t, e)
	assert.Nil(t, p.Save(filepath.Join(dir, "trend.html")))

	_, e = PlotRates(testTable(), nil)
	assert.NotNil(t, e)

	tab := &RateTable{By: ByTerritory, Rows: []RateRow{testRow("355030", 100, 20000)}}
	p, e = PlotRates(tab, nil, PlotSubtitle("SP"))
	assert.Nil(t, e)
	assert.Nil(t, p.Save(filepath.Join(dir, "rates.html")))

	_, e = PlotTrend(tab, nil)
	assert.NotNil(t, e)

	ci := testIndex(t)
	sp, _ := ci.Lookup(MustTerritory("355030"))
	df, _ := ci.Lookup(MustTerritory("530010"))
	rows := []JoinedRow{{RateRow: testRow("355030", 100, 20000), Class: sp}, {RateRow: testRow("530010", 20, 10000), Class: df}}
	p, e = PlotScatter(rows, IDSC, MeasureRate, &Correlation{R: 1, Slope: 60, Intercept: -3100}, nil)
	assert.Nil(t, e)
	assert.Nil(t, p.Save(filepath.Join(dir, "scatter.html")))

	p, e = PlotScatter(rows, IDSC, MeasureMeanStay, nil, nil)
	assert.Nil(t, e)
	assert.Nil(t, p.Save(filepath.Join(dir, "stay.html")))

	p, e = PlotBreakdown(testBreakdown(), MeasureMortality)
	assert.Nil(t, e)
	assert.Nil(t, p.Save(filepath.Join(dir, "breakdown.html")))

	bd := &Breakdown{Dim: DimSex, By: ByYear, Rows: []StratumRow{
		{Stratum: "Masculino", RateRow: testRow("355030", 10, 1000)},
		{Stratum: "Feminino", RateRow: testRow("355030", 12, 1000)},
	}}
	p, e = PlotBreakdown(bd, MeasureRate, PlotTitle("sexo"))
	assert.Nil(t, e)
	assert.Nil(t, p.Save(filepath.Join(dir, "breakdown_year.html")))

	p, e = PlotTiers(RatesByTier(rows))
	assert.Nil(t, e)
	assert.Nil(t, p.Save(filepath.Join(dir, "tiers.html")))

	assert.NotNil(t, p.Save(""))
	assert.Equal(t, []any{1.0, nil}, gaps([]float64{1, math.NaN()}))
}
