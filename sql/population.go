package sql

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/invertedv/rates"
)

// DefaultTable is the population table name.
const DefaultTable = "populacao"

var popFields = []string{"ano", "codigo_municipio", "sexo", "raca", "faixa_etaria", "populacao"}

// Population is a Population Registry backed by a database table. Codes are stored in the
// canonical 6-digit form; sex and race are stored as their labels.
type Population struct {
	dlct  *Dialect
	table string
}

func NewPopulation(dlct *Dialect, table string) (*Population, error) {
	if dlct == nil {
		return nil, fmt.Errorf("no dialect")
	}

	if table == "" {
		table = DefaultTable
	}

	if !validName(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	return &Population{dlct: dlct, table: table}, nil
}

func (p *Population) Dialect() *Dialect {
	return p.dlct
}

func (p *Population) Table() string {
	return p.table
}

// Query builds the aggregation for q. Every predicate value is a bound parameter.
// With a municipality set (tier filter) rows are grouped by municipality and reduced by the caller.
func (p *Population) Query(q *rates.PopQuery) (qry string, args []any) {
	d := p.dlct

	var where []string
	bind := func(cond string, val any) {
		args = append(args, val)
		where = append(where, strings.Replace(cond, "?", d.Placeholder(len(args)), 1))
	}

	if q.MaxYear > 0 {
		bind("ano <= ?", q.MaxYear)
	}

	if !q.State.IsZero() {
		bind(d.Prefix("codigo_municipio", 2)+" = ?", q.State.String())
	}

	if !q.Municipality.IsZero() {
		bind("codigo_municipio = ?", q.Municipality.String())
	}

	if q.Sex != rates.SexAll {
		bind("sexo = ?", q.Sex.Label())
	}

	if len(q.Races) > 0 {
		var ors []string
		for _, r := range q.Races {
			args = append(args, r.Label())
			ors = append(ors, "raca = "+d.Placeholder(len(args)))
		}

		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}

	if q.Age != "" {
		bind("faixa_etaria = ?", q.Age)
	}

	terr := "''"
	switch {
	case q.Territories != nil:
		terr = "codigo_municipio"
	case q.Territorial && q.Level == rates.LevelState:
		terr = d.Prefix("codigo_municipio", 2)
	case q.Territorial:
		terr = "codigo_municipio"
	}

	qry = fmt.Sprintf("SELECT %s AS ano_ref, %s AS territorio, %s AS total FROM %s",
		d.CastInt("ano"), terr, d.CastInt("SUM(populacao)"), p.table)
	if len(where) > 0 {
		qry += " WHERE " + strings.Join(where, " AND ")
	}

	qry += " GROUP BY ano"
	if terr != "''" {
		qry += ", " + terr
	}

	return qry, args
}

// Totals implements rates.PopulationRegistry.
func (p *Population) Totals(q *rates.PopQuery) ([]rates.PopTotal, error) {
	qry, args := p.Query(q)

	var (
		rows *sql.Rows
		e    error
	)
	if rows, e = p.dlct.db.Query(qry, args...); e != nil {
		return nil, fmt.Errorf("%s: %w", p.table, e)
	}
	defer func() { _ = rows.Close() }()

	var keys []rates.GroupKey
	tot := make(map[rates.GroupKey]int64)
	for rows.Next() {
		var (
			year int64
			code string
			pop  int64
		)
		if e = rows.Scan(&year, &code, &pop); e != nil {
			return nil, e
		}

		rec := rates.PopRecord{Year: int(year)}
		if code != "" {
			if rec.Territory, e = rates.ParseTerritory(code); e != nil {
				return nil, e
			}

			if rec.Territory, e = rec.Territory.Canonical(); e != nil {
				return nil, e
			}
		}

		if q.Territories != nil && !q.Territories[rec.Territory] {
			continue
		}

		k := rates.GroupKey{Year: rec.Year}
		if q.Territorial {
			k.Territory = q.Level.Territory(rec.Territory)
		}

		if _, ok := tot[k]; !ok {
			keys = append(keys, k)
		}

		tot[k] += pop
	}

	if e = rows.Err(); e != nil {
		return nil, e
	}

	out := make([]rates.PopTotal, len(keys))
	for ind, k := range keys {
		out[ind] = rates.PopTotal{Key: k, Population: tot[k]}
	}

	return out, nil
}

// Load writes recs to the table, creating it if needed.
func (p *Population) Load(recs []rates.PopRecord, overwrite bool) error {
	exists, e := p.dlct.Exists(p.table)
	if e != nil {
		return e
	}

	if !exists || overwrite {
		if e = p.dlct.Create(p.table, overwrite); e != nil {
			return e
		}
	}

	rows := make([][]any, 0, len(recs))
	for ind := range recs {
		r := &recs[ind]

		var tc rates.TerritoryCode
		if tc, e = r.Territory.Canonical(); e != nil {
			return fmt.Errorf("row %d: %w", ind, e)
		}

		if tc.IsState() {
			return fmt.Errorf("%w: row %d has state code %s", rates.ErrEncoding, ind, tc)
		}

		if r.Sex == rates.SexAll || r.Race == rates.RaceAll || r.Race == rates.RaceNegra {
			return fmt.Errorf("row %d: population strata need a sex and a traditional race", ind)
		}

		rows = append(rows, []any{int32(r.Year), tc.String(), r.Sex.Label(), r.Race.Label(), r.Age, r.Population})
	}

	return p.dlct.Insert(p.table, popFields, rows)
}

// Years returns the distinct years in the table.
func (p *Population) Years() ([]int, error) {
	rows, e := p.dlct.db.Query(fmt.Sprintf("SELECT DISTINCT %s FROM %s ORDER BY 1", p.dlct.CastInt("ano"), p.table))
	if e != nil {
		return nil, e
	}
	defer func() { _ = rows.Close() }()

	var yrs []int
	for rows.Next() {
		var y int64
		if e = rows.Scan(&y); e != nil {
			return nil, e
		}

		yrs = append(yrs, int(y))
	}

	return yrs, rows.Err()
}
