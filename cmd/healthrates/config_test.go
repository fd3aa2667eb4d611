package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/invertedv/rates"
	"github.com/invertedv/rates/mem"
)

func TestParseConfig(t *testing.T) {
	cfg, e := ParseConfig([]byte(`
data:
  cases: sih.csv
  population: pop.csv
  classification: idsc.csv
classification:
  layout: cir
  encoding: ibge6
  max_unmatched: 0.2
log:
  level: debug
  json: true
`))
	assert.Nil(t, e)
	assert.Equal(t, "sih", cfg.Data.Layout)
	assert.Equal(t, rates.EncIBGE6, cfg.Encoding())
	assert.Equal(t, mem.CIRColumns, cfg.ClassificationColumns())
	assert.Equal(t, 0.2, cfg.Classification.MaxUnmatched)
	assert.True(t, *cfg.Rates.NearestYear)
	assert.Nil(t, cfg.Store)

	cols, e := cfg.CaseColumns()
	assert.Nil(t, e)
	assert.Equal(t, mem.SIHColumns, cols)
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, e := ParseConfig([]byte("data:\n  cases: sim.csv\n  layout: sim\n  population: pop.csv\nrates:\n  nearest_year: false\n"))
	assert.Nil(t, e)
	assert.Equal(t, rates.EncIBGE7, cfg.Encoding())
	assert.Equal(t, mem.IDSCColumns, cfg.ClassificationColumns())
	assert.Equal(t, rates.DefaultMaxUnmatched, cfg.Classification.MaxUnmatched)
	assert.False(t, *cfg.Rates.NearestYear)
	assert.Equal(t, "info", cfg.Log.Level)

	cols, e := cfg.CaseColumns()
	assert.Nil(t, e)
	assert.Equal(t, mem.SIMColumns, cols)
}

func TestParseConfigColumns(t *testing.T) {
	cfg, e := ParseConfig([]byte(`
data:
  cases: x.csv
  population: pop.csv
  columns:
    year: ano
    territory: mun
    age: idade
`))
	assert.Nil(t, e)

	cols, e := cfg.CaseColumns()
	assert.Nil(t, e)
	assert.Equal(t, mem.CaseColumns{Year: "ano", Territory: "mun", Age: "idade"}, cols)

	_, e = ParseConfig([]byte("data:\n  cases: x.csv\n  population: pop.csv\n  columns:\n    year: ano\n"))
	assert.NotNil(t, e)
}

func TestParseConfigStore(t *testing.T) {
	t.Setenv("host", "db.example")
	t.Setenv("password", "secret")

	cfg, e := ParseConfig([]byte("data:\n  cases: x.csv\nstore:\n  driver: pgx\n  user: me\n"))
	assert.Nil(t, e)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "db.example", cfg.Store.Host)
	assert.Equal(t, "secret", cfg.Store.Password)
	assert.Equal(t, "me", cfg.Store.User)
	assert.Equal(t, "populacao", cfg.Store.Table)

	cfg, e = ParseConfig([]byte("data:\n  cases: x.csv\nstore:\n  driver: sqlite\n  file: pop.db\n"))
	assert.Nil(t, e)
	assert.Equal(t, "sqlite3", cfg.Store.Driver)
}

func TestParseConfigInvalid(t *testing.T) {
	bad := []string{
		"data:\n  population: pop.csv\n",
		"data:\n  cases: x.csv\n",
		"data:\n  cases: x.csv\n  population: p.csv\n  layout: sinan\n",
		"data:\n  cases: x.csv\n  population: p.csv\nclassification:\n  encoding: cnes\n",
		"data:\n  cases: x.csv\n  population: p.csv\nclassification:\n  max_unmatched: 2\n",
		"data:\n  cases: x.csv\n  population: p.csv\nlog:\n  level: loud\n",
		"data:\n  cases: x.csv\nstore:\n  driver: mysql\n  host: h\n",
		"data:\n  cases: x.csv\nstore:\n  driver: sqlite3\n",
		"data: [",
	}

	for _, b := range bad {
		_, e := ParseConfig([]byte(b))
		assert.NotNil(t, e, b)
	}

	_, e := LoadConfig("/no/such/healthrates.yaml")
	assert.NotNil(t, e)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, LogConfig{Level: "warn", JSON: true})
	logger.Info("hidden")
	logger.Warn("shown", "rows", 3)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"rows":3`)
}

func TestFilterFlags(t *testing.T) {
	ff := filterFlags{years: "2015-2020", state: "SP", race: "Negra", collapsed: true, age: "20-24"}
	f, e := ff.filter()
	assert.Nil(t, e)
	assert.Equal(t, 2015, f.YearFrom)
	assert.Equal(t, 2020, f.YearTo)
	assert.Equal(t, rates.RaceNegra, f.Race)

	ff = filterFlags{years: "2019"}
	f, e = ff.filter()
	assert.Nil(t, e)
	assert.Equal(t, 2019, f.YearFrom)
	assert.Equal(t, 2019, f.YearTo)

	ff = filterFlags{years: "abc"}
	_, e = ff.filter()
	assert.NotNil(t, e)

	ff = filterFlags{race: "Negra"}
	_, e = ff.filter()
	assert.NotNil(t, e)
}

const (
	cliCases = `ANO_CMPT,MUNIC_RES,SEXO,RACA_COR,IDADE,def_diag_princ_grupo,def_diag_princ_cat,def_diag_princ_subcat,DIAS_PERM,MORTE,def_regime
2020,355030,1,02,22,F30-F39,F32,F32.9,3,0,Público
2020,355030,3,03,40,F30-F39,F33,F33.1,5,1,Privado
2020,330455,1,01,23,F20-F29,F20,F20.0,10,0,Público
2020,530010,1,03,50,F30-F39,F32,F32.0,2,0,Público
`
	cliPop = `ano,codigo_municipio,sexo,raca,faixa_etaria,populacao
2020,355030,M,Preta,20-24,1000
2020,355030,F,Parda,40-44,1000
2020,330455,M,Branca,20-24,500
2020,530010,M,Parda,50-54,2000
`
	cliIDSC = `COD_MUN;MUNICIPIO;grupo_cir;IDSC-BR
3550308;São Paulo;1;61,2
3304557;Rio de Janeiro;2;55,1
5300108;Brasília;1;58,0
`
)

func writeFiles(t *testing.T) string {
	dir := t.TempDir()
	for nm, body := range map[string]string{"sih.csv": cliCases, "pop.csv": cliPop, "idsc.csv": cliIDSC} {
		assert.Nil(t, os.WriteFile(filepath.Join(dir, nm), []byte(body), 0o644))
	}

	cfg := "data:\n  cases: " + filepath.Join(dir, "sih.csv") +
		"\n  population: " + filepath.Join(dir, "pop.csv") +
		"\n  classification: " + filepath.Join(dir, "idsc.csv") + "\nlog:\n  level: error\n"
	assert.Nil(t, os.WriteFile(filepath.Join(dir, "healthrates.yaml"), []byte(cfg), 0o644))

	return dir
}

func run(t *testing.T, args ...string) string {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	assert.Nil(t, rootCmd.Execute(), strings.Join(args, " "))

	return out.String()
}

func TestCommands(t *testing.T) {
	dir := writeFiles(t)
	cfg := filepath.Join(dir, "healthrates.yaml")

	out := run(t, "rates", "-c", cfg, "--by", "territory", "--years", "2020", "-o", filepath.Join(dir, "rates.csv"))
	assert.Contains(t, out, "São Paulo")
	assert.Contains(t, out, "100.00")

	_, e := os.Stat(filepath.Join(dir, "rates.csv"))
	assert.Nil(t, e)

	out = run(t, "join", "-c", cfg, "--years", "2020", "-o", "")
	assert.Contains(t, out, "matched 3")

	out = run(t, "tiers", "-c", cfg, "--years", "2020")
	assert.Contains(t, out, "Alto Desenvolvimento")

	out = run(t, "taxonomy", "-c", cfg, "--years", "", "F30-F39")
	assert.Equal(t, "F32\nF33\n", out)

	out = run(t, "correlate", "-c", cfg, "--years", "2020", "--measure", "mean-stay")
	assert.Contains(t, out, "Tempo médio de permanência (dias)")

	out = run(t, "breakdown", "-c", cfg, "--years", "2020", "--dim", "race", "-o", filepath.Join(dir, "race.csv"))
	assert.Contains(t, out, "Preta")
	assert.Contains(t, out, "200.00")

	_, e = os.Stat(filepath.Join(dir, "race.csv"))
	assert.Nil(t, e)

	// 1 Preta and 2 Parda cases over 1000 + 3000 inhabitants
	out = run(t, "breakdown", "-c", cfg, "--years", "2020", "--collapsed", "-o", "")
	assert.Contains(t, out, "Negra")
	assert.Contains(t, out, "75.00")
}
