package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
)

// All code interacting with a database is here

var (
	//go:embed skeletons/clickhouse/create.txt
	chCreate string
	//go:embed skeletons/postgres/create.txt
	pgCreate string
	//go:embed skeletons/sqlite/create.txt
	slCreate string

	//go:embed skeletons/clickhouse/dropIf.txt
	chDropIf string
	//go:embed skeletons/postgres/dropIf.txt
	pgDropIf string
	//go:embed skeletons/sqlite/dropIf.txt
	slDropIf string
)

const (
	ch = "clickhouse"
	pg = "postgres"
	sl = "sqlite3"
)

type Dialect struct {
	db      *sql.DB
	dialect string

	create string
	dropIf string
}

// NewDialect accepts "clickhouse", "postgres" (or "pgx") and "sqlite3" (or "sqlite").
func NewDialect(dialect string, db *sql.DB) (*Dialect, error) {
	if db == nil {
		return nil, fmt.Errorf("no database connection")
	}

	d := &Dialect{db: db}
	switch strings.ToLower(dialect) {
	case ch:
		d.dialect, d.create, d.dropIf = ch, chCreate, chDropIf
	case pg, "pgx":
		d.dialect, d.create, d.dropIf = pg, pgCreate, pgDropIf
	case sl, "sqlite":
		d.dialect, d.create, d.dropIf = sl, slCreate, slDropIf
	default:
		return nil, fmt.Errorf("no skeletons for database %s", dialect)
	}

	return d, nil
}

// ***************** Methods *****************

func (d *Dialect) Close() error {
	return d.db.Close()
}

func (d *Dialect) DB() *sql.DB {
	return d.db
}

func (d *Dialect) DialectName() string {
	return d.dialect
}

// Placeholder returns the bind parameter for the n-th (1-based) argument.
func (d *Dialect) Placeholder(n int) string {
	if d.dialect == pg {
		return fmt.Sprintf("$%d", n)
	}

	return "?"
}

// Prefix is the SQL for the first n characters of field.
func (d *Dialect) Prefix(field string, n int) string {
	if d.dialect == ch {
		return fmt.Sprintf("substring(%s, 1, %d)", field, n)
	}

	return fmt.Sprintf("substr(%s, 1, %d)", field, n)
}

// CastInt casts an aggregate to a 64-bit integer so every driver scans it into int64.
func (d *Dialect) CastInt(expr string) string {
	switch d.dialect {
	case ch:
		return fmt.Sprintf("toInt64(%s)", expr)
	case pg:
		return fmt.Sprintf("CAST(%s AS bigint)", expr)
	default:
		return fmt.Sprintf("CAST(%s AS INTEGER)", expr)
	}
}

func (d *Dialect) Exists(tableName string) (bool, error) {
	var (
		qry  string
		args []any
	)
	switch d.dialect {
	case ch:
		qry = "SELECT count(*) FROM system.tables WHERE database = currentDatabase() AND name = ?"
		args = []any{tableName}
	case pg:
		qry = "SELECT count(*) FROM information_schema.tables WHERE table_name = $1"
		args = []any{strings.ToLower(tableName)}
	default:
		qry = "SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
		args = []any{tableName}
	}

	var n int64
	if e := d.db.QueryRow(qry, args...).Scan(&n); e != nil {
		return false, e
	}

	return n > 0, nil
}

// Create builds the population table from the dialect's skeleton.
func (d *Dialect) Create(tableName string, overwrite bool) error {
	if !validName(tableName) {
		return fmt.Errorf("invalid table name %q", tableName)
	}

	exists, e := d.Exists(tableName)
	if e != nil {
		return e
	}

	if exists {
		if !overwrite {
			return fmt.Errorf("table %s exists", tableName)
		}

		if e = d.DropTable(tableName); e != nil {
			return e
		}
	}

	create := strings.ReplaceAll(d.create, "?TableName", tableName)
	for _, stmt := range strings.Split(create, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}

		if _, e = d.db.Exec(stmt); e != nil {
			return e
		}
	}

	return nil
}

func (d *Dialect) DropTable(tableName string) error {
	if !validName(tableName) {
		return fmt.Errorf("invalid table name %q", tableName)
	}

	qry := strings.ReplaceAll(d.dropIf, "?TableName", tableName)
	_, e := d.db.Exec(qry)

	return e
}

// Insert writes rows in one transaction through a prepared statement.
func (d *Dialect) Insert(tableName string, fields []string, rows [][]any) error {
	if !validName(tableName) {
		return fmt.Errorf("invalid table name %q", tableName)
	}

	for _, f := range fields {
		if !validName(f) {
			return fmt.Errorf("invalid field name %q", f)
		}
	}

	qry := fmt.Sprintf("INSERT INTO %s (%s)", tableName, strings.Join(fields, ","))
	if d.dialect != ch {
		var ph []string
		for ind := range fields {
			ph = append(ph, d.Placeholder(ind+1))
		}

		qry += fmt.Sprintf(" VALUES (%s)", strings.Join(ph, ","))
	}

	var (
		tx   *sql.Tx
		stmt *sql.Stmt
		e    error
	)
	if tx, e = d.db.Begin(); e != nil {
		return e
	}

	if stmt, e = tx.Prepare(qry); e != nil {
		_ = tx.Rollback()
		return e
	}

	for _, row := range rows {
		if len(row) != len(fields) {
			_ = stmt.Close()
			_ = tx.Rollback()
			return fmt.Errorf("row has %d values, expected %d", len(row), len(fields))
		}

		if _, e = stmt.Exec(row...); e != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return e
		}
	}

	if e = stmt.Close(); e != nil {
		_ = tx.Rollback()
		return e
	}

	return tx.Commit()
}

// ***************** Helpers *****************

func validName(name string) bool {
	const illegal = "!@#$%^&*()=+-;:'`/.,>< ~ " + `"`

	return name != "" && !strings.ContainsAny(name, illegal)
}
