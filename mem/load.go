package mem

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/invertedv/rates"
)

// CaseColumns names the CSV columns of a case file. Columns left empty are not read:
// an empty Death marks every row as a death (mortality records); empty Stay and Regime read as zero.
type CaseColumns struct {
	Year        string `yaml:"year" validate:"required"`
	Territory   string `yaml:"territory" validate:"required"`
	Sex         string `yaml:"sex"`
	Race        string `yaml:"race"`
	Age         string `yaml:"age" validate:"required"`
	Group       string `yaml:"group"`
	Category    string `yaml:"category"`
	Subcategory string `yaml:"subcategory"`
	Stay        string `yaml:"stay"`
	Death       string `yaml:"death"`
	Regime      string `yaml:"regime"`
}

// SIHColumns is the layout of the hospitalization extract.
var SIHColumns = CaseColumns{
	Year:        "ANO_CMPT",
	Territory:   "MUNIC_RES",
	Sex:         "SEXO",
	Race:        "RACA_COR",
	Age:         "IDADE",
	Group:       "def_diag_princ_grupo",
	Category:    "def_diag_princ_cat",
	Subcategory: "def_diag_princ_subcat",
	Stay:        "DIAS_PERM",
	Death:       "MORTE",
	Regime:      "def_regime",
}

// SIMColumns is the layout of the mortality extract.
var SIMColumns = CaseColumns{
	Year:        "ano_obito",
	Territory:   "CODMUNRES",
	Sex:         "def_sexo",
	Race:        "def_raca_cor",
	Age:         "idade_obito_anos",
	Group:       "causabas_grupo",
	Category:    "causabas_categoria",
	Subcategory: "causabas_subcategoria",
}

// ColumnsFromString returns the preset layout "sih" or "sim".
func ColumnsFromString(nm string) (CaseColumns, error) {
	switch strings.ToLower(nm) {
	case "", "sih":
		return SIHColumns, nil
	case "sim":
		return SIMColumns, nil
	}

	return CaseColumns{}, fmt.Errorf("%w: case layout %q", rates.ErrUnknownKey, nm)
}

// ***************** Cases *****************

// LoadCases reads a case file with a header row.
func LoadCases(r io.Reader, cols CaseColumns) (*Cases, error) {
	var (
		rdr *reader
		e   error
	)
	if rdr, e = newReader(r); e != nil {
		return nil, e
	}

	var idx map[string]int
	if idx, e = rdr.index(cols.Year, cols.Territory, cols.Sex, cols.Race, cols.Age, cols.Group, cols.Category,
		cols.Subcategory, cols.Stay, cols.Death, cols.Regime); e != nil {
		return nil, e
	}

	var recs []rates.Case
	for {
		var row []string
		if row, e = rdr.next(); e != nil {
			if errors.Is(e, io.EOF) {
				break
			}

			return nil, e
		}

		var c rates.Case
		if c, e = parseCase(row, idx, cols); e != nil {
			return nil, fmt.Errorf("%w: line %d: %v", rates.ErrSource, rdr.line, e)
		}

		recs = append(recs, c)
	}

	return NewCases(recs...)
}

func parseCase(row []string, idx map[string]int, cols CaseColumns) (rates.Case, error) {
	var (
		c  rates.Case
		ok bool
		e  error
	)
	get := func(col string) string {
		if col == "" {
			return ""
		}

		return strings.TrimSpace(row[idx[col]])
	}

	if c.Year, ok = toInt(get(cols.Year)); !ok {
		return c, fmt.Errorf("bad year %q", get(cols.Year))
	}

	if c.Territory, e = rates.NewTerritoryCode(get(cols.Territory), rates.EncIBGE6); e != nil {
		// some extracts carry the 7-digit code
		if c.Territory, e = rates.NewTerritoryCode(get(cols.Territory), rates.EncIBGE7); e != nil {
			return c, e
		}
	}

	if c.Sex, e = rates.ParseSex(get(cols.Sex)); e != nil {
		return c, e
	}

	if c.Race, e = rates.ParseRace(get(cols.Race)); e != nil {
		return c, e
	}

	if c.Age, ok = toInt(get(cols.Age)); !ok {
		return c, fmt.Errorf("bad age %q", get(cols.Age))
	}

	c.Group, c.Category, c.Subcategory = get(cols.Group), get(cols.Category), get(cols.Subcategory)
	c.Regime = get(cols.Regime)

	if s := get(cols.Stay); s != "" {
		if c.Stay, ok = toInt(s); !ok {
			return c, fmt.Errorf("bad length of stay %q", s)
		}
	}

	c.Death = true
	if cols.Death != "" {
		if c.Death, ok = toBool(get(cols.Death)); !ok {
			return c, fmt.Errorf("bad death flag %q", get(cols.Death))
		}
	}

	return c, nil
}

// LoadCasesFile opens fileName and calls LoadCases.
func LoadCasesFile(fileName string, cols CaseColumns) (*Cases, error) {
	var (
		f *os.File
		e error
	)
	if f, e = os.Open(fileName); e != nil {
		return nil, fmt.Errorf("%w: %v", rates.ErrSource, e)
	}
	defer func() { _ = f.Close() }()

	return LoadCases(f, cols)
}

// ***************** Population *****************

var popColumns = []string{"ano", "codigo_municipio", "sexo", "raca", "faixa_etaria", "populacao"}

// ReadPopulation reads population rows with header ano, codigo_municipio, sexo, raca, faixa_etaria, populacao.
func ReadPopulation(r io.Reader) ([]rates.PopRecord, error) {
	var (
		rdr *reader
		e   error
	)
	if rdr, e = newReader(r); e != nil {
		return nil, e
	}

	var idx map[string]int
	if idx, e = rdr.index(popColumns...); e != nil {
		return nil, e
	}

	var recs []rates.PopRecord
	for {
		var row []string
		if row, e = rdr.next(); e != nil {
			if errors.Is(e, io.EOF) {
				break
			}

			return nil, e
		}

		var (
			rec rates.PopRecord
			ok  bool
			pop int
		)
		if rec.Year, ok = toInt(row[idx["ano"]]); !ok {
			return nil, fmt.Errorf("%w: line %d: bad year %q", rates.ErrSource, rdr.line, row[idx["ano"]])
		}

		if rec.Territory, e = rates.ParseTerritory(row[idx["codigo_municipio"]]); e != nil {
			return nil, fmt.Errorf("%w: line %d: %v", rates.ErrSource, rdr.line, e)
		}

		if rec.Sex, e = rates.ParseSex(row[idx["sexo"]]); e != nil {
			return nil, fmt.Errorf("%w: line %d: %v", rates.ErrSource, rdr.line, e)
		}

		if rec.Race, e = rates.ParseRace(row[idx["raca"]]); e != nil {
			return nil, fmt.Errorf("%w: line %d: %v", rates.ErrSource, rdr.line, e)
		}

		rec.Age = strings.TrimSpace(row[idx["faixa_etaria"]])
		if pop, ok = toInt(row[idx["populacao"]]); !ok {
			return nil, fmt.Errorf("%w: line %d: bad population %q", rates.ErrSource, rdr.line, row[idx["populacao"]])
		}

		rec.Population = int64(pop)
		recs = append(recs, rec)
	}

	return recs, nil
}

// LoadPopulation reads and validates an in-memory Population Registry.
func LoadPopulation(r io.Reader) (*Population, error) {
	recs, e := ReadPopulation(r)
	if e != nil {
		return nil, e
	}

	return NewPopulation(recs...)
}

// ***************** Classification *****************

// ClassificationColumns names the columns of a classification file. Every other column that
// parses as a number is kept as a score under its header name.
type ClassificationColumns struct {
	Territory string `yaml:"territory" validate:"required"`
	Name      string `yaml:"name"`
	Tier      string `yaml:"tier"`
	IDSC      string `yaml:"idsc"`
}

// CIRColumns is the layout written by the CIR generation step.
var CIRColumns = ClassificationColumns{Territory: "cod_municipio", Name: "Nome_Município", Tier: "grupo_cir"}

// IDSCColumns is the layout of the IDSC-BR extract.
var IDSCColumns = ClassificationColumns{Territory: "COD_MUN", Name: "MUNICIPIO", Tier: "grupo_cir", IDSC: "IDSC-BR"}

// ReadClassification reads classification records whose codes are in encoding enc.
// Rows whose code does not parse are kept with a zero code so the index counts them invalid.
func ReadClassification(r io.Reader, enc rates.Encoding, cols ClassificationColumns) ([]rates.Classification, error) {
	var (
		rdr *reader
		e   error
	)
	if rdr, e = newReader(r); e != nil {
		return nil, e
	}

	if _, e = rdr.index(cols.Territory); e != nil {
		return nil, e
	}

	idsc := rdr.find(cols.IDSC)

	var recs []rates.Classification
	for {
		var row []string
		if row, e = rdr.next(); e != nil {
			if errors.Is(e, io.EOF) {
				break
			}

			return nil, e
		}

		rec := rates.Classification{Scores: make(map[string]float64)}
		raw := strings.TrimSpace(row[rdr.cols[cols.Territory]])
		if rec.Territory, e = rates.NewTerritoryCode(raw, enc); e != nil {
			// keep the source form for the report
			rec.Territory, _ = rates.ParseTerritory(raw)
		}

		if ind, ok := rdr.cols[cols.Name]; ok && cols.Name != "" {
			rec.Name = strings.TrimSpace(row[ind])
		}

		if ind, ok := rdr.cols[cols.Tier]; ok && cols.Tier != "" {
			if rec.Tier, e = rates.ParseTier(row[ind]); e != nil {
				return nil, fmt.Errorf("%w: line %d: %v", rates.ErrSource, rdr.line, e)
			}
		}

		for ind, hdr := range rdr.header {
			if hdr == cols.Territory || hdr == cols.Name || hdr == cols.Tier {
				continue
			}

			x, ok := toFloat(row[ind])
			if !ok {
				continue
			}

			if ind == idsc {
				hdr = rates.IDSC
			}

			rec.Scores[hdr] = x
		}

		if _, ok := rec.Scores[rates.IDSC]; !ok && idsc >= 0 {
			rec.Scores[rates.IDSC] = math.NaN()
		}

		recs = append(recs, rec)
	}

	return recs, nil
}

// LoadClassification reads a classification file and builds the index.
func LoadClassification(r io.Reader, enc rates.Encoding, cols ClassificationColumns, opts ...rates.IndexOpt) (*rates.ClassificationIndex, error) {
	recs, e := ReadClassification(r, enc, cols)
	if e != nil {
		return nil, e
	}

	return rates.NewClassificationIndex(enc, recs, opts...)
}

// ***************** Names *****************

// LoadNames reads a two-column municipality dictionary: code, name.
func LoadNames(r io.Reader) (rates.Names, error) {
	var (
		rdr *reader
		e   error
	)
	if rdr, e = newReader(r); e != nil {
		return nil, e
	}

	if len(rdr.header) < 2 {
		return nil, fmt.Errorf("%w: names file needs code and name columns", rates.ErrSource)
	}

	names := rates.Names{}
	for {
		var row []string
		if row, e = rdr.next(); e != nil {
			if errors.Is(e, io.EOF) {
				break
			}

			return nil, e
		}

		tc, e1 := rates.ParseTerritory(row[0])
		if e1 != nil {
			continue
		}

		if tc, e1 = tc.Canonical(); e1 != nil {
			continue
		}

		names[tc] = strings.TrimSpace(row[1])
	}

	return names, nil
}

// ***************** reader *****************

type reader struct {
	csv    *csv.Reader
	header []string
	cols   map[string]int
	line   int
}

// newReader reads the header, sniffing ';' as the separator when the header has no ','.
func newReader(r io.Reader) (*reader, error) {
	var (
		buf []byte
		e   error
	)
	if buf, e = io.ReadAll(r); e != nil {
		return nil, fmt.Errorf("%w: %v", rates.ErrSource, e)
	}

	text := strings.TrimPrefix(string(buf), "\ufeff")
	first, _, _ := strings.Cut(text, "\n")

	cr := csv.NewReader(strings.NewReader(text))
	if !strings.Contains(first, ",") && strings.Contains(first, ";") {
		cr.Comma = ';'
	}

	cr.FieldsPerRecord = -1

	rdr := &reader{csv: cr, cols: make(map[string]int), line: 1}
	if rdr.header, e = cr.Read(); e != nil {
		return nil, fmt.Errorf("%w: no header: %v", rates.ErrSource, e)
	}

	for ind, h := range rdr.header {
		h = strings.TrimSpace(h)
		rdr.header[ind] = h
		rdr.cols[h] = ind
	}

	return rdr, nil
}

// index checks that every non-empty name is a column.
func (rdr *reader) index(names ...string) (map[string]int, error) {
	idx := make(map[string]int)
	for _, nm := range names {
		if nm == "" {
			continue
		}

		ind, ok := rdr.cols[nm]
		if !ok {
			return nil, fmt.Errorf("%w: missing column %q", rates.ErrSource, nm)
		}

		idx[nm] = ind
	}

	return idx, nil
}

// find returns the column named nm, or the first column starting with nm ("IDSC-BR 2024"), or -1.
func (rdr *reader) find(nm string) int {
	if nm == "" {
		return -1
	}

	if ind, ok := rdr.cols[nm]; ok {
		return ind
	}

	for ind, h := range rdr.header {
		if strings.HasPrefix(h, nm) {
			return ind
		}
	}

	return -1
}

func (rdr *reader) next() ([]string, error) {
	row, e := rdr.csv.Read()
	rdr.line++
	if e != nil {
		if errors.Is(e, io.EOF) {
			return nil, e
		}

		return nil, fmt.Errorf("%w: line %d: %v", rates.ErrSource, rdr.line, e)
	}

	if len(row) < len(rdr.header) {
		return nil, fmt.Errorf("%w: line %d has %d fields, header has %d", rates.ErrSource, rdr.line, len(row), len(rdr.header))
	}

	return row, nil
}
