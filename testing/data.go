package testing

import (
	"fmt"
	"os"

	"github.com/invertedv/rates"
	"github.com/invertedv/rates/mem"
	"github.com/invertedv/rates/sql"
)

// The fixture has 11 municipalities; Rio Branco has no classification.
// Every municipality-year has 12 population strata (2 sexes x 3 races x 2 age bands):
// 1000 inhabitants each, 2000 for Parda. Population covers 2018-2020, cases 2018-2021.
// A stratum has tier+1 cases, one more for Preta; the first case of a male stratum is a death.
const (
	memPkg = "mem"
	slPkg  = "sqlite3"
	pgPkg  = "postgres"
	chPkg  = "clickhouse"

	popTable = "populacao_test"
)

type muni struct {
	code string
	name string
	tier int
}

var munis = []muni{
	{"355030", "São Paulo", 1},
	{"330455", "Rio de Janeiro", 2},
	{"530010", "Brasília", 1},
	{"310620", "Belo Horizonte", 3},
	{"431490", "Porto Alegre", 2},
	{"230440", "Fortaleza", 4},
	{"292740", "Salvador", 4},
	{"211130", "São Luís", 5},
	{"150140", "Belém", 5},
	{"221100", "Teresina", 6},
	{"120040", "Rio Branco", 0},
}

var (
	popYears  = []int{2018, 2019, 2020}
	caseYears = []int{2018, 2019, 2020, 2021}
	sexes     = []rates.Sex{rates.SexMale, rates.SexFemale}
	races     = []rates.Race{rates.RaceBranca, rates.RacePreta, rates.RaceParda}
	bands     = []string{"20-24", "60-64"}
)

// environment variables for the database servers:
//   - host
//   - user
//   - password
//   - db

// list of population backends to test
func pkgs() []string {
	out := []string{memPkg, slPkg}
	if os.Getenv("host") != "" && os.Getenv("user") != "" {
		out = append(out, pgPkg, chPkg)
	}

	return out
}

func stratumPop(r rates.Race) int64 {
	if r == rates.RaceParda {
		return 2000
	}

	return 1000
}

func stratumCases(m muni, r rates.Race) int {
	n := m.tier + 1
	if r == rates.RacePreta {
		n++
	}

	return n
}

func fixturePop() []rates.PopRecord {
	var recs []rates.PopRecord
	for _, m := range munis {
		for _, y := range popYears {
			for _, s := range sexes {
				for _, r := range races {
					for _, b := range bands {
						recs = append(recs, rates.PopRecord{Year: y, Territory: rates.MustTerritory(m.code), Sex: s, Race: r,
							Age: b, Population: stratumPop(r)})
					}
				}
			}
		}
	}

	return recs
}

func fixtureCases() []rates.Case {
	var recs []rates.Case
	for _, m := range munis {
		for _, y := range caseYears {
			for _, s := range sexes {
				for _, r := range races {
					for _, b := range bands {
						band, _ := rates.LookupAgeBand(b)
						for k := 0; k < stratumCases(m, r); k++ {
							c := rates.Case{Year: y, Territory: rates.MustTerritory(m.code), Sex: s, Race: r, Age: band.Min + k%5,
								Group: "F30-F39", Category: "F32", Subcategory: "F32.9", Stay: 1 + k, Regime: "Público",
								Death: k == 0 && s == rates.SexMale}
							if k%2 == 1 {
								c.Group, c.Category, c.Subcategory = "F20-F29", "F20", "F20.0"
							}

							recs = append(recs, c)
						}
					}
				}
			}
		}
	}

	return recs
}

// fixtureIndex carries 7-digit codes and an IDSC that falls with the tier.
func fixtureIndex() []rates.Classification {
	var recs []rates.Classification
	for ind, m := range munis {
		if m.tier == 0 {
			continue
		}

		tc, e := rates.MustTerritory(m.code).WithCheckDigit()
		if e != nil {
			panic(e)
		}

		recs = append(recs, rates.Classification{Territory: tc, Name: m.name, Tier: rates.DevelopmentTier(m.tier),
			Scores: map[string]float64{rates.IDSC: 80 - 6*float64(m.tier) + float64(ind%3)}})
	}

	return recs
}

// population returns the fixture population in the backend pkg and a cleanup function.
func population(pkg string) (rates.PopulationRegistry, func(), error) {
	if pkg == memPkg {
		p, e := mem.NewPopulation(fixturePop()...)
		return p, func() {}, e
	}

	c := &sql.Connection{Driver: pkg, File: ":memory:", Table: popTable,
		Host: os.Getenv("host"), User: os.Getenv("user"), Password: os.Getenv("password"), Database: os.Getenv("db")}

	var (
		dlct *sql.Dialect
		p    *sql.Population
		e    error
	)
	if dlct, e = c.Open(); e != nil {
		return nil, nil, fmt.Errorf("%s: %w", pkg, e)
	}

	cleanup := func() {
		_ = dlct.DropTable(popTable)
		_ = dlct.Close()
	}

	if p, e = sql.NewPopulation(dlct, popTable); e != nil {
		cleanup()
		return nil, nil, e
	}

	if e = p.Load(fixturePop(), true); e != nil {
		cleanup()
		return nil, nil, e
	}

	return p, cleanup, nil
}

// loadData builds a registry over the fixture with the population held in pkg.
func loadData(pkg string, opts ...rates.RegistryOpt) (*rates.Registry, func(), error) {
	var (
		cases *mem.Cases
		ci    *rates.ClassificationIndex
		pop   rates.PopulationRegistry
		clean func()
		e     error
	)
	if cases, e = mem.NewCases(fixtureCases()...); e != nil {
		return nil, nil, e
	}

	if ci, e = rates.NewClassificationIndex(rates.EncIBGE7, fixtureIndex(), rates.IndexVerify(true)); e != nil {
		return nil, nil, e
	}

	if pop, clean, e = population(pkg); e != nil {
		return nil, nil, e
	}

	reg, e := rates.NewRegistry(cases, pop, append([]rates.RegistryOpt{rates.WithIndex(ci)}, opts...)...)
	if e != nil {
		clean()
		return nil, nil, e
	}

	return reg, clean, nil
}
