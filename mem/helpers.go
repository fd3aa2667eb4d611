package mem

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
)

func has[C comparable](needle C, haystack []C) bool {
	for _, straw := range haystack {
		if needle == straw {
			return true
		}
	}

	return false
}

// distinct returns the sorted distinct non-zero values x[ind] for which keep(ind) is true.
func distinct[T cmp.Ordered](x []T, keep func(ind int) bool) []T {
	var zero T
	seen := make(map[T]bool)

	var out []T
	for ind, v := range x {
		if v == zero || seen[v] || !keep(ind) {
			continue
		}

		seen[v] = true
		out = append(out, v)
	}

	slices.Sort(out)

	return out
}

// *********** Conversions ***********

// toInt parses integers written by spreadsheets and DBF exports ("12", "12.0", " 12 ").
func toInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if i, e := strconv.Atoi(s); e == nil {
		return i, true
	}

	if f, e := strconv.ParseFloat(s, 64); e == nil && f == float64(int(f)) {
		return int(f), true
	}

	return 0, false
}

// toFloat accepts a decimal comma ("61,24"). Empty is not a number.
func toFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if f, e := strconv.ParseFloat(s, 64); e == nil {
		return f, true
	}

	if f, e := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64); e == nil {
		return f, true
	}

	return 0, false
}

func toBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "1.0", "true", "sim", "s":
		return true, true
	case "0", "0.0", "false", "nao", "não", "n", "":
		return false, true
	}

	return false, false
}
