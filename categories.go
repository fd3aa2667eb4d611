package rates

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// *********** Sex ***********

type Sex uint8

// values of Sex. SexAll imposes no predicate.
const (
	SexAll Sex = 0 + iota
	SexMale
	SexFemale
)

// ParseSex accepts SIH codes (1 male, 3 female; 2 is the older female code),
// store labels (M, F) and display names.
func ParseSex(s string) (Sex, error) {
	switch strings.ToLower(fold(strings.TrimSpace(s))) {
	case "", "todos", "all":
		return SexAll, nil
	case "1", "m", "masculino", "male":
		return SexMale, nil
	case "2", "3", "f", "feminino", "female":
		return SexFemale, nil
	}

	return SexAll, fmt.Errorf("%w: sex %q", ErrUnknownKey, s)
}

func (s Sex) String() string {
	switch s {
	case SexMale:
		return "Masculino"
	case SexFemale:
		return "Feminino"
	default:
		return "Todos"
	}
}

// Label is the value stored in the population table.
func (s Sex) Label() string {
	switch s {
	case SexMale:
		return "M"
	case SexFemale:
		return "F"
	default:
		return ""
	}
}

// *********** Race/color ***********

type Race uint8

// values of Race. RaceNegra only exists under the collapsed scheme.
const (
	RaceAll Race = 0 + iota
	RaceBranca
	RacePreta
	RaceParda
	RaceAmarela
	RaceIndigena
	RaceSemInfo
	RaceNegra
)

var raceNames = []string{"Todas", "Branca", "Preta", "Parda", "Amarela", "Indígena", "Sem informação", "Negra"}

// SIH/SIM RACA_COR codes
var raceCodes = map[int]Race{1: RaceBranca, 2: RacePreta, 3: RaceParda, 4: RaceAmarela, 5: RaceIndigena, 9: RaceSemInfo}

// ParseRace accepts a RACA_COR code or a category name (accents and case ignored).
func ParseRace(s string) (Race, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return RaceAll, nil
	}

	if code, e := strconv.Atoi(strings.TrimSuffix(s, ".0")); e == nil {
		if r, ok := raceCodes[code]; ok {
			return r, nil
		}

		return RaceAll, fmt.Errorf("%w: race code %d", ErrUnknownKey, code)
	}

	key := strings.ToLower(fold(s))
	for ind, nm := range raceNames {
		if strings.ToLower(fold(nm)) == key {
			return Race(ind), nil
		}
	}

	return RaceAll, fmt.Errorf("%w: race %q", ErrUnknownKey, s)
}

func (r Race) String() string {
	if int(r) >= len(raceNames) {
		return "unknown"
	}

	return raceNames[r]
}

// Label is the value stored in the population table (no diacritics).
func (r Race) Label() string {
	return fold(r.String())
}

// Members returns the traditional categories that make up r.
func (r Race) Members() []Race {
	switch r {
	case RaceAll:
		return nil
	case RaceNegra:
		return []Race{RacePreta, RaceParda}
	default:
		return []Race{r}
	}
}

// RaceScheme selects between the traditional five categories and the collapsed scheme.
type RaceScheme uint8

// values of RaceScheme
const (
	SchemeTraditional RaceScheme = 0 + iota
	SchemeCollapsed              // Preta + Parda = Negra
)

func (sc RaceScheme) String() string {
	if sc == SchemeCollapsed {
		return "Raça/Cor 2 (Preta + Parda = Negra)"
	}

	return "Tradicional"
}

// Group maps a traditional category to its label under the scheme.
func (sc RaceScheme) Group(r Race) Race {
	if sc == SchemeCollapsed && (r == RacePreta || r == RaceParda) {
		return RaceNegra
	}

	return r
}

// Categories lists the selectable categories of the scheme.
func (sc RaceScheme) Categories() []Race {
	if sc == SchemeCollapsed {
		return []Race{RaceBranca, RaceNegra, RaceAmarela, RaceIndigena, RaceSemInfo}
	}

	return []Race{RaceBranca, RacePreta, RaceParda, RaceAmarela, RaceIndigena, RaceSemInfo}
}

// Check returns an error if r cannot be selected under the scheme.
func (sc RaceScheme) Check(r Race) error {
	if r == RaceAll {
		return nil
	}

	if !has(r, sc.Categories()) {
		return fmt.Errorf("%w: race %s not in scheme %s", ErrUnknownKey, r, sc)
	}

	return nil
}

// *********** Age bands ***********

// AgeBand is one bucket of the fixed partition of [0, ∞). Max < 0 means open-ended.
type AgeBand struct {
	Key string
	Min int
	Max int
}

var ageBands = buildAgeBands()

func buildAgeBands() []AgeBand {
	const (
		width = 5
		last  = 100
	)

	var bands []AgeBand
	for lower := 0; lower < last; lower += width {
		bands = append(bands, AgeBand{Key: fmt.Sprintf("%d-%d", lower, lower+width-1), Min: lower, Max: lower + width - 1})
	}

	return append(bands, AgeBand{Key: fmt.Sprintf("%d+", last), Min: last, Max: -1})
}

// AgeBands returns the partition in ascending order.
func AgeBands() []AgeBand {
	out := make([]AgeBand, len(ageBands))
	copy(out, ageBands)

	return out
}

// LookupAgeBand fails for keys outside the fixed table; an empty key is the zero band (no predicate).
func LookupAgeBand(key string) (AgeBand, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return AgeBand{}, nil
	}

	for _, b := range ageBands {
		if b.Key == key {
			return b, nil
		}
	}

	return AgeBand{}, fmt.Errorf("%w: age band %q", ErrUnknownKey, key)
}

// BandOf returns the band containing age.
func BandOf(age int) (AgeBand, error) {
	for _, b := range ageBands {
		if b.Contains(age) {
			return b, nil
		}
	}

	return AgeBand{}, fmt.Errorf("%w: age %d", ErrUnknownKey, age)
}

func (a AgeBand) IsZero() bool {
	return a.Key == ""
}

func (a AgeBand) Contains(age int) bool {
	if age < a.Min {
		return false
	}

	return a.Max < 0 || age <= a.Max
}

func (a AgeBand) String() string {
	if a.IsZero() {
		return "Todas"
	}

	return a.Key
}

// *********** States ***********

type State struct {
	Code   string
	Name   string
	Abbrev string
}

var states = []State{
	{"11", "Rondônia", "RO"}, {"12", "Acre", "AC"}, {"13", "Amazonas", "AM"}, {"14", "Roraima", "RR"},
	{"15", "Pará", "PA"}, {"16", "Amapá", "AP"}, {"17", "Tocantins", "TO"}, {"21", "Maranhão", "MA"},
	{"22", "Piauí", "PI"}, {"23", "Ceará", "CE"}, {"24", "Rio Grande do Norte", "RN"}, {"25", "Paraíba", "PB"},
	{"26", "Pernambuco", "PE"}, {"27", "Alagoas", "AL"}, {"28", "Sergipe", "SE"}, {"29", "Bahia", "BA"},
	{"31", "Minas Gerais", "MG"}, {"32", "Espírito Santo", "ES"}, {"33", "Rio de Janeiro", "RJ"},
	{"35", "São Paulo", "SP"}, {"41", "Paraná", "PR"}, {"42", "Santa Catarina", "SC"},
	{"43", "Rio Grande do Sul", "RS"}, {"50", "Mato Grosso do Sul", "MS"}, {"51", "Mato Grosso", "MT"},
	{"52", "Goiás", "GO"}, {"53", "Distrito Federal", "DF"},
}

func States() []State {
	out := make([]State, len(states))
	copy(out, states)

	return out
}

// StateByCode accepts the 2-digit code or the abbreviation.
func StateByCode(code string) (State, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, st := range states {
		if st.Code == code || st.Abbrev == code {
			return st, nil
		}
	}

	return State{}, fmt.Errorf("%w: state %q", ErrUnknownKey, code)
}

func (s State) String() string {
	return fmt.Sprintf("%s (%s)", s.Name, s.Abbrev)
}

// *********** Development tiers ***********

// DevelopmentTier is the CIR classification group, 1 (highest) to 6 (lowest).
type DevelopmentTier uint8

// TierNone means the municipality has no classification.
const TierNone DevelopmentTier = 0

var tierNames = []string{"Sem classificação", "Alto Desenvolvimento", "Médio-Alto Desenvolvimento", "Médio Desenvolvimento",
	"Médio-Baixo Desenvolvimento", "Baixo Desenvolvimento", "Muito Baixo Desenvolvimento"}

// ParseTier accepts the group number or its name.
func ParseTier(s string) (DevelopmentTier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TierNone, nil
	}

	if n, e := strconv.Atoi(strings.TrimSuffix(s, ".0")); e == nil {
		if n < 1 || n >= len(tierNames) {
			return TierNone, fmt.Errorf("%w: tier %d", ErrUnknownKey, n)
		}

		return DevelopmentTier(n), nil
	}

	key := strings.ToLower(fold(s))
	for ind := 1; ind < len(tierNames); ind++ {
		if strings.ToLower(fold(tierNames[ind])) == key {
			return DevelopmentTier(ind), nil
		}
	}

	return TierNone, fmt.Errorf("%w: tier %q", ErrUnknownKey, s)
}

func Tiers() []DevelopmentTier {
	var out []DevelopmentTier
	for ind := 1; ind < len(tierNames); ind++ {
		out = append(out, DevelopmentTier(ind))
	}

	return out
}

func (t DevelopmentTier) String() string {
	if int(t) >= len(tierNames) {
		return tierNames[0]
	}

	return tierNames[t]
}

// *********** Helpers ***********

// fold strips diacritics: "Indígena" -> "Indigena".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	out, _, e := transform.String(t, s)
	if e != nil {
		return s
	}

	return out
}
