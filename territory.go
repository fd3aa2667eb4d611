package rates

import (
	"fmt"
	"strings"
)

// Encoding identifies how a territory code is written by its source.
type Encoding uint8

// values of Encoding
const (
	EncUnknown Encoding = 0 + iota
	EncState            // 2-digit UF code
	EncIBGE6            // 6-digit municipality code, check digit dropped (SIH, SIM, CIR)
	EncIBGE7            // 7-digit IBGE municipality code with trailing check digit (DTB, IDSC)
)

func (enc Encoding) String() string {
	switch enc {
	case EncState:
		return "EncState"
	case EncIBGE6:
		return "EncIBGE6"
	case EncIBGE7:
		return "EncIBGE7"
	default:
		return "EncUnknown"
	}
}

func (enc Encoding) width() int {
	switch enc {
	case EncState:
		return 2
	case EncIBGE6:
		return 6
	case EncIBGE7:
		return 7
	default:
		return 0
	}
}

// EncodingFromString returns the Encoding whose String() or short name ("uf", "ibge6", "ibge7") is nm.
func EncodingFromString(nm string) Encoding {
	switch strings.ToLower(strings.TrimSpace(nm)) {
	case "encstate", "uf", "state":
		return EncState
	case "encibge6", "ibge6", "6":
		return EncIBGE6
	case "encibge7", "ibge7", "7":
		return EncIBGE7
	default:
		return EncUnknown
	}
}

// IBGE codes whose published check digit does not follow the mod-10 rule.
var checkDigitExceptions = []string{"2201919", "2201988", "2202251", "2611533", "3117836",
	"3152131", "4305871", "5203939", "5203962"}

// TerritoryCode is a state or municipality code tagged with its encoding.
// The zero value means "no territory".
type TerritoryCode struct {
	code string
	enc  Encoding
}

// NewTerritoryCode validates code against enc. With EncUnknown the encoding is inferred from the length.
// Codes read from spreadsheets as floats ("3550308.0") are accepted.
func NewTerritoryCode(code string, enc Encoding) (TerritoryCode, error) {
	code = strings.TrimSpace(code)
	code = strings.TrimSuffix(code, ".0")

	if enc == EncUnknown {
		switch len(code) {
		case 2:
			enc = EncState
		case 6:
			enc = EncIBGE6
		case 7:
			enc = EncIBGE7
		default:
			return TerritoryCode{}, fmt.Errorf("%w: cannot infer encoding of territory code %q", ErrEncoding, code)
		}
	}

	if len(code) != enc.width() {
		return TerritoryCode{}, fmt.Errorf("%w: territory code %q is not %s", ErrEncoding, code, enc)
	}

	if !digits(code) {
		return TerritoryCode{}, fmt.Errorf("%w: territory code %q has non-digits", ErrEncoding, code)
	}

	return TerritoryCode{code: code, enc: enc}, nil
}

// ParseTerritory is NewTerritoryCode with the encoding inferred.
func ParseTerritory(code string) (TerritoryCode, error) {
	return NewTerritoryCode(code, EncUnknown)
}

// MustTerritory panics if code is invalid. Meant for constants and tests.
func MustTerritory(code string) TerritoryCode {
	tc, e := ParseTerritory(code)
	if e != nil {
		panic(e)
	}

	return tc
}

func (tc TerritoryCode) String() string {
	return tc.code
}

func (tc TerritoryCode) Encoding() Encoding {
	return tc.enc
}

func (tc TerritoryCode) IsZero() bool {
	return tc.code == ""
}

func (tc TerritoryCode) IsState() bool {
	return tc.enc == EncState
}

// State returns the UF code, the first two digits of any encoding.
func (tc TerritoryCode) State() TerritoryCode {
	if tc.IsZero() {
		return tc
	}

	return TerritoryCode{code: tc.code[:2], enc: EncState}
}

// Canonical is the reconciliation step between sources: municipality codes are reduced to the
// 6-digit form by dropping the check digit; state codes are returned unchanged.
func (tc TerritoryCode) Canonical() (TerritoryCode, error) {
	switch tc.enc {
	case EncState, EncIBGE6:
		return tc, nil
	case EncIBGE7:
		return TerritoryCode{code: tc.code[:6], enc: EncIBGE6}, nil
	default:
		return TerritoryCode{}, fmt.Errorf("%w: cannot canonicalize %q", ErrEncoding, tc.code)
	}
}

// WithCheckDigit converts a 6-digit code to the 7-digit IBGE form.
func (tc TerritoryCode) WithCheckDigit() (TerritoryCode, error) {
	switch tc.enc {
	case EncIBGE7:
		return tc, nil
	case EncIBGE6:
		var (
			dv byte
			e  error
		)
		if dv, e = CheckDigit(tc.code); e != nil {
			return TerritoryCode{}, e
		}

		return TerritoryCode{code: tc.code + string(dv), enc: EncIBGE7}, nil
	default:
		return TerritoryCode{}, fmt.Errorf("%w: %s has no check digit", ErrEncoding, tc.enc)
	}
}

// Verify reports whether a 7-digit code carries a valid check digit. Other encodings always verify.
func (tc TerritoryCode) Verify() bool {
	if tc.enc != EncIBGE7 {
		return true
	}

	if has(tc.code, checkDigitExceptions) {
		return true
	}

	dv, e := CheckDigit(tc.code[:6])

	return e == nil && dv == tc.code[6]
}

// CheckDigit computes the IBGE check digit of a 6-digit municipality code:
// digits weighted 1,2,1,2,1,2, products reduced to a digit sum, result (10 - sum mod 10) mod 10.
func CheckDigit(code6 string) (byte, error) {
	if len(code6) != 6 || !digits(code6) {
		return 0, fmt.Errorf("%w: %q is not a 6-digit code", ErrEncoding, code6)
	}

	sum := 0
	for ind := 0; ind < 6; ind++ {
		p := int(code6[ind]-'0') * (1 + ind%2)
		sum += p/10 + p%10
	}

	return byte('0' + (10-sum%10)%10), nil
}

// Names maps canonical municipality codes to display names.
type Names map[TerritoryCode]string

// Name returns the display name for code, or the code itself.
func (n Names) Name(code TerritoryCode) string {
	if c, e := code.Canonical(); e == nil {
		if nm, ok := n[c]; ok {
			return nm
		}
	}

	if code.IsState() {
		if st, e := StateByCode(code.String()); e == nil {
			return st.Name
		}
	}

	return code.String()
}

func digits(s string) bool {
	if s == "" {
		return false
	}

	for ind := 0; ind < len(s); ind++ {
		if s[ind] < '0' || s[ind] > '9' {
			return false
		}
	}

	return true
}
