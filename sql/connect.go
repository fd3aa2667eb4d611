package sql

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/jackc/pgx/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Connection holds what is needed to reach a population store.
type Connection struct {
	Driver   string `yaml:"driver" validate:"required,oneof=sqlite3 postgres clickhouse"`
	Host     string `yaml:"host" validate:"required_unless=Driver sqlite3"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	File     string `yaml:"file" validate:"required_if=Driver sqlite3"`
	Table    string `yaml:"table"`
}

// Open connects and returns the dialect for c.Driver.
func (c *Connection) Open() (*Dialect, error) {
	var (
		db *sql.DB
		e  error
	)
	switch c.Driver {
	case ch:
		db, e = NewConnectCH(c.Host, c.User, c.Password, c.Database)
	case pg, "pgx":
		db, e = NewConnectPG(c.Host, c.User, c.Password, c.Database)
	case sl, "sqlite":
		db, e = NewConnectSQLite(c.File)
	default:
		return nil, fmt.Errorf("unknown driver %s", c.Driver)
	}

	if e != nil {
		return nil, e
	}

	return NewDialect(c.Driver, db)
}

func NewConnectCH(host, user, password, dbName string) (*sql.DB, error) {
	if dbName == "" {
		dbName = "default"
	}

	db := clickhouse.OpenDB(
		&clickhouse.Options{
			Addr: []string{host + ":9000"},
			Auth: clickhouse.Auth{
				Database: dbName,
				Username: user,
				Password: password,
			},
			DialTimeout: 300 * time.Second,
			Compression: &clickhouse.Compression{
				Method: clickhouse.CompressionLZ4,
				Level:  0,
			},
		})

	if e := db.Ping(); e != nil {
		return nil, e
	}

	return db, nil
}

func NewConnectPG(host, user, password, dbName string) (*sql.DB, error) {
	connectionStr := fmt.Sprintf("postgres://%s:%s@%s:5432/%s", user, password, host, dbName)
	var (
		db *sql.DB
		e  error
	)
	if db, e = sql.Open("pgx", connectionStr); e != nil {
		return nil, e
	}

	if e := db.Ping(); e != nil {
		return nil, e
	}

	return db, nil
}

// NewConnectSQLite opens the file; ":memory:" gives a private in-memory database.
func NewConnectSQLite(fileName string) (*sql.DB, error) {
	var (
		db *sql.DB
		e  error
	)
	if db, e = sql.Open("sqlite3", fileName); e != nil {
		return nil, e
	}

	// each pooled connection to ":memory:" is a separate database
	db.SetMaxOpenConns(1)

	if e := db.Ping(); e != nil {
		return nil, e
	}

	return db, nil
}
