package rates

import (
	"fmt"
	"math"
	"os"
	"strings"
)

// All code writing result tables to files is here

const (
	Sep         = ','
	EOL         = '\n'
	StringDelim = '"'
	FloatFormat = "%.4f"
	Header      = true
)

type Files struct {
	FieldNames  []string
	EOL         byte
	Sep         byte
	StringDelim byte
	FloatFormat string
	Header      bool

	file     *os.File
	fileName string
}

func NewFiles() *Files {
	f := &Files{
		EOL:         byte(EOL),
		Sep:         byte(Sep),
		StringDelim: byte(StringDelim),
		FloatFormat: FloatFormat,
		Header:      Header,
	}

	return f
}

func (f *Files) Create(fileName string) error {
	var e error
	f.fileName = fileName
	f.file, e = os.Create(fileName)

	return e
}

func (f *Files) FileName() string {
	return f.fileName
}

func (f *Files) Close() error {
	if f.file != nil {
		return f.file.Close()
	}

	return fmt.Errorf("no open files")
}

// WriteLine writes one record. NaN floats are written as empty fields.
func (f *Files) WriteLine(v []any) error {
	var line []byte
	for ind := 0; ind < len(v); ind++ {
		var lx []byte
		switch d := v[ind].(type) {
		case nil:
		case float64:
			if !math.IsNaN(d) {
				lx = []byte(fmt.Sprintf(f.FloatFormat, d))
			}
		case int:
			lx = []byte(fmt.Sprintf("%v", d))
		case int64:
			lx = []byte(fmt.Sprintf("%v", d))
		case bool:
			lx = []byte(fmt.Sprintf("%v", d))
		case string:
			lx = []byte(strings.ReplaceAll(d, string(f.StringDelim), ""))
			lx = append([]byte{f.StringDelim}, lx...)
			lx = append(lx, f.StringDelim)
		case fmt.Stringer:
			lx = []byte(d.String())
		default:
			lx = []byte("#err#")
		}
		line = append(line, lx...)
		if ind < len(v)-1 {
			line = append(line, f.Sep)
		}
	}
	if _, e := f.file.Write(line); e != nil {
		return e
	}
	_, e := f.file.Write([]byte{f.EOL})

	return e
}

func (f *Files) WriteHeader() error {
	if !f.Header {
		return nil
	}

	if f.FieldNames == nil {
		return fmt.Errorf("field names not set in *Files")
	}

	_, e := f.file.WriteString(strings.Join(f.FieldNames, string(rune(f.Sep))) + string(rune(f.EOL)))

	return e
}

// ***************** Rate tables *****************

var rateFields = []string{"ano", "territorio", "nome", "casos", "obitos", "populacao", "ano_populacao",
	"substituido", "taxa", "taxa_obitos", "mortalidade", "permanencia_media"}

func rateLine(r *RateRow, names Names) []any {
	var year, pop, popY any
	if r.Key.Year > 0 {
		year = r.Key.Year
	}

	if !r.PopMissing {
		pop, popY = r.Population, r.PopYear
	}

	nm := "Total"
	if !r.Key.Territory.IsZero() {
		nm = names.Name(r.Key.Territory)
	}

	return []any{year, r.Key.Territory.String(), nm, r.Cases, r.Deaths, pop, popY,
		r.Substituted, r.Rate, r.DeathRate, r.Mortality(), r.MeanStay()}
}

// WriteRates writes the table to fileName as CSV.
func WriteRates(fileName string, tab *RateTable, names Names) error {
	f := NewFiles()
	f.FieldNames = rateFields
	if e := f.Create(fileName); e != nil {
		return e
	}
	defer func() { _ = f.Close() }()

	if e := f.WriteHeader(); e != nil {
		return e
	}

	for ind := range tab.Rows {
		if e := f.WriteLine(rateLine(&tab.Rows[ind], names)); e != nil {
			return e
		}
	}

	return nil
}

// WriteJoined writes joined rows with their tier and the named scores.
func WriteJoined(fileName string, rows []JoinedRow, names Names, scores []string) error {
	f := NewFiles()
	f.FieldNames = append(append(append([]string{}, rateFields...), "grupo_cir"), scores...)
	if e := f.Create(fileName); e != nil {
		return e
	}
	defer func() { _ = f.Close() }()

	if e := f.WriteHeader(); e != nil {
		return e
	}

	for ind := range rows {
		line := append(rateLine(&rows[ind].RateRow, names), int(rows[ind].Class.Tier))
		for _, s := range scores {
			x, _ := rows[ind].Class.Score(s)
			line = append(line, x)
		}

		if e := f.WriteLine(line); e != nil {
			return e
		}
	}

	return nil
}

// WriteBreakdown writes the breakdown to fileName as CSV.
func WriteBreakdown(fileName string, bd *Breakdown) error {
	f := NewFiles()
	f.FieldNames = []string{"ano", "estrato", "casos", "obitos", "populacao", "ano_populacao",
		"substituido", "taxa", "taxa_obitos", "mortalidade", "permanencia_media"}
	if e := f.Create(fileName); e != nil {
		return e
	}
	defer func() { _ = f.Close() }()

	if e := f.WriteHeader(); e != nil {
		return e
	}

	for ind := range bd.Rows {
		r := &bd.Rows[ind]
		line := rateLine(&r.RateRow, nil)
		// replace territory and name with the stratum
		line = append(append([]any{line[0], r.Stratum}), line[3:]...)
		if e := f.WriteLine(line); e != nil {
			return e
		}
	}

	return nil
}
