package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/invertedv/rates"
	"github.com/invertedv/rates/mem"
	"github.com/invertedv/rates/sql"
)

// Config is the run configuration, read from YAML. Database credentials can be
// supplied through the environment variables host, user, password and db.
type Config struct {
	Data           DataConfig           `yaml:"data" validate:"required"`
	Store          *sql.Connection      `yaml:"store" validate:"omitempty"`
	Classification ClassificationConfig `yaml:"classification"`
	Rates          RatesConfig          `yaml:"rates"`
	Log            LogConfig            `yaml:"log"`
}

type DataConfig struct {
	Cases          string           `yaml:"cases" validate:"required"`
	Layout         string           `yaml:"layout" validate:"omitempty,oneof=sih sim"`
	Columns        *mem.CaseColumns `yaml:"columns" validate:"omitempty"`
	Population     string           `yaml:"population"`
	Classification string           `yaml:"classification"`
	Names          string           `yaml:"names"`
}

type ClassificationConfig struct {
	Encoding     string  `yaml:"encoding" validate:"omitempty,oneof=ibge6 ibge7"`
	Layout       string  `yaml:"layout" validate:"omitempty,oneof=cir idsc"`
	Verify       bool    `yaml:"verify"`
	MaxUnmatched float64 `yaml:"max_unmatched" validate:"gte=0,lte=1"`
}

type RatesConfig struct {
	NearestYear *bool `yaml:"nearest_year"`
	EmptyGroups bool  `yaml:"empty_groups"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
}

// LoadConfig reads fileName, applies environment overrides and validates.
func LoadConfig(fileName string) (*Config, error) {
	var (
		data []byte
		e    error
	)
	if data, e = os.ReadFile(fileName); e != nil {
		return nil, fmt.Errorf("failed to read the config file %w", e)
	}

	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if e := yaml.Unmarshal(data, cfg); e != nil {
		return nil, fmt.Errorf("failed to parse the config: %w", e)
	}

	cfg.applyEnv()
	cfg.defaults()

	if e := cfg.Validate(); e != nil {
		return nil, e
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if c.Store == nil {
		return
	}

	for env, fld := range map[string]*string{"host": &c.Store.Host, "user": &c.Store.User,
		"password": &c.Store.Password, "db": &c.Store.Database} {
		if v := os.Getenv(env); v != "" {
			*fld = v
		}
	}
}

func (c *Config) defaults() {
	if c.Data.Layout == "" {
		c.Data.Layout = "sih"
	}

	if c.Classification.Encoding == "" {
		c.Classification.Encoding = "ibge7"
	}

	if c.Classification.Layout == "" {
		c.Classification.Layout = "idsc"
	}

	if c.Classification.MaxUnmatched == 0 {
		c.Classification.MaxUnmatched = rates.DefaultMaxUnmatched
	}

	if c.Rates.NearestYear == nil {
		on := true
		c.Rates.NearestYear = &on
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Store != nil {
		c.Store.Driver = strings.ToLower(c.Store.Driver)
		switch c.Store.Driver {
		case "sqlite":
			c.Store.Driver = "sqlite3"
		case "pgx":
			c.Store.Driver = "postgres"
		}

		if c.Store.Table == "" {
			c.Store.Table = sql.DefaultTable
		}
	}
}

func (c *Config) Validate() error {
	if e := validator.New().Struct(c); e != nil {
		return fmt.Errorf("invalid config: %w", e)
	}

	if c.Data.Population == "" && c.Store == nil {
		return fmt.Errorf("invalid config: either data.population or store is required")
	}

	return nil
}

// CaseColumns returns the explicit column layout, else the named preset.
func (c *Config) CaseColumns() (mem.CaseColumns, error) {
	if c.Data.Columns != nil {
		return *c.Data.Columns, nil
	}

	return mem.ColumnsFromString(c.Data.Layout)
}

func (c *Config) ClassificationColumns() mem.ClassificationColumns {
	if c.Classification.Layout == "cir" {
		return mem.CIRColumns
	}

	return mem.IDSCColumns
}

func (c *Config) Encoding() rates.Encoding {
	return rates.EncodingFromString(c.Classification.Encoding)
}
