package zoning

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseRatio reads a numeric ratio such as a floor area ratio from provider
// text. It parses the longest leading decimal literal ("0.5", "1.25 FAR",
// " 2e-1") and ignores whatever follows. Returns NaN when the text does not
// start with a number; the caller decides whether that is fatal.
func ParseRatio(s string) float64 {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := decimalPrefix(s)
	if end == 0 {
		return math.NaN()
	}
	lit := s[:end]
	switch strings.TrimLeft(lit, "+-") {
	case "Infinity":
		if strings.HasPrefix(lit, "-") {
			return math.Inf(-1)
		}
		return math.Inf(1)
	}
	v, err := strconv.ParseFloat(lit, 64)
	if err != nil && !math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

// decimalPrefix returns the length of the decimal literal at the start of s,
// or 0 when there is none.
func decimalPrefix(s string) int {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	if strings.HasPrefix(s[i:], "Infinity") {
		return i + len("Infinity")
	}

	intDigits := digitsAt(s, i)
	i += intDigits
	fracDigits := 0
	if i < len(s) && s[i] == '.' {
		fracDigits = digitsAt(s, i+1)
		if intDigits > 0 || fracDigits > 0 {
			i += 1 + fracDigits
		}
	}
	if intDigits == 0 && fracDigits == 0 {
		return 0
	}

	// Exponent only counts when digits follow it.
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if n := digitsAt(s, j); n > 0 {
			i = j + n
		}
	}
	return i
}

func digitsAt(s string, i int) int {
	n := 0
	for i+n < len(s) && s[i+n] >= '0' && s[i+n] <= '9' {
		n++
	}
	return n
}
