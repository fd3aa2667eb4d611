package rates

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// String renders the table as aligned text.
func (t *RateTable) String() string {
	return t.Format(nil)
}

// Format renders the table with territory names from names.
func (t *RateTable) Format(names Names) string {
	if len(t.Rows) == 0 {
		return "(sem resultados)\n"
	}

	var (
		header = []string{"ano", "território", "casos", "óbitos", "população", "taxa/100mil", "mortalidade %"}
		years  []string
		terrs  []string
		cases  []int
		deaths []int
		pops   []int
		rts    []float64
		mort   []float64
	)
	for _, r := range t.Rows {
		y := "*"
		if r.Key.Year > 0 {
			y = fmt.Sprintf("%d", r.Key.Year)
			if r.Substituted {
				y += fmt.Sprintf(" (pop %d)", r.PopYear)
			}
		}

		tn := "Total"
		if !r.Key.Territory.IsZero() {
			tn = names.Name(r.Key.Territory)
		}

		years, terrs = append(years, y), append(terrs, tn)
		cases, deaths, pops = append(cases, r.Cases), append(deaths, r.Deaths), append(pops, int(r.Population))
		rts, mort = append(rts, r.Rate), append(mort, r.Mortality())
	}

	out := prettyPrint(header, years, terrs, cases, deaths, pops, rts, mort)
	for _, s := range t.Substitutions {
		out += s.String() + "\n"
	}

	return out
}

// Format renders the breakdown as aligned text.
func (b *Breakdown) Format() string {
	if len(b.Rows) == 0 {
		return "(sem resultados)\n"
	}

	var (
		header = []string{"ano", b.Dim.String(), "casos", "óbitos", "população", "taxa/100mil", "mortalidade %", "permanência média"}
		years  []string
		strata []string
		cases  []int
		deaths []int
		pops   []int
		rts    []float64
		mort   []float64
		stay   []float64
	)
	for ind := range b.Rows {
		r := &b.Rows[ind]
		y := "*"
		if r.Key.Year > 0 {
			y = fmt.Sprintf("%d", r.Key.Year)
			if r.Substituted {
				y += fmt.Sprintf(" (pop %d)", r.PopYear)
			}
		}

		st := r.Stratum
		if st == "" {
			st = "(vazio)"
		}

		years, strata = append(years, y), append(strata, st)
		cases, deaths, pops = append(cases, r.Cases), append(deaths, r.Deaths), append(pops, int(r.Population))
		rts, mort, stay = append(rts, r.Rate), append(mort, r.Mortality()), append(stay, r.MeanStay())
	}

	return prettyPrint(header, years, strata, cases, deaths, pops, rts, mort, stay)
}

// Summary describes the distribution of the defined rates.
func (t *RateTable) Summary() string {
	var x []float64
	missing := 0
	for _, r := range t.Rows {
		if !r.Defined() {
			missing++
			continue
		}

		x = append(x, r.Rate)
	}

	if len(x) == 0 {
		return fmt.Sprintf("no defined rates (%d rows without population)\n", missing)
	}

	sort.Float64s(x)
	minx := x[0]
	maxx := x[len(x)-1]
	q25 := stat.Quantile(0.25, stat.LinInterp, x, nil)
	q50 := stat.Quantile(0.5, stat.LinInterp, x, nil)
	q75 := stat.Quantile(0.75, stat.LinInterp, x, nil)
	xbar := stat.Mean(x, nil)
	cats := []string{"min", "lq", "median", "mean", "uq", "max", "n", "no population"}
	vals := []float64{minx, q25, q50, xbar, q75, maxx, float64(len(x)), float64(missing)}
	header := []string{"metric", "rate"}

	return prettyPrint(header, cats, vals)
}

// ***************** Helpers *****************

func prettyPrint(header []string, cols ...any) string {
	var colsS [][]string

	for ind := 0; ind < len(cols); ind++ {
		colsS = append(colsS, stringSlice(header[ind], cols[ind]))
	}

	out := ""
	for row := 0; row < len(colsS[0]); row++ {
		for c := 0; c < len(colsS); c++ {
			out += colsS[c][row]
		}
		out += "\n"
	}

	return out
}

func stringSlice(header string, inVal any) []string {
	const pad = 3
	c := []string{header}

	var (
		n       int
		numeric bool
	)
	switch x := inVal.(type) {
	case []float64:
		n, numeric = len(x), true
	case []int:
		n, numeric = len(x), true
	case []string:
		n = len(x)
	default:
		panic(fmt.Errorf("unsupported data type"))
	}

	maxLen := len([]rune(header))
	for ind := 0; ind < n; ind++ {
		var el string
		switch x := inVal.(type) {
		case []float64:
			el = "-"
			if !math.IsNaN(x[ind]) {
				el = fmt.Sprintf(selectFormat(x), x[ind])
			}
		case []int:
			el = fmt.Sprintf("%d", x[ind])
		case []string:
			el = x[ind]
		}

		if l := len([]rune(el)); l > maxLen {
			maxLen = l
		}

		c = append(c, el)
	}

	for ind, cx := range c {
		fill := strings.Repeat(" ", maxLen-len([]rune(cx))+pad)
		padded := cx + fill
		if numeric {
			padded = fill + cx
		}
		c[ind] = padded
	}

	return c
}

func selectFormat(x []float64) string {
	var minX, maxX float64
	first := true
	for _, xv := range x {
		if math.IsNaN(xv) {
			continue
		}

		xva := math.Abs(xv)
		if first || xva < minX {
			minX = xva
		}

		if first || xva > maxX {
			maxX = xva
		}
		first = false
	}

	rangeX := maxX - minX
	l := math.Log10(rangeX)
	dp := 2
	if rangeX > 0 && l < -1 {
		dp = int(math.Abs(l)+0.5) + 1
	}

	return "%." + fmt.Sprintf("%d", dp) + "f"
}
