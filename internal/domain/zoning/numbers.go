// Package zoning turns free-text zoning rules into numbers.
//
// Zoning setbacks and height limits arrive from the parcel data provider as
// prose ("10 ft or 20% of lot width, whichever is greater"). This package pulls
// the numerals out of that prose and resolves them to a single effective value
// using the tie-break phrase the rule carries. Everything here is pure: no I/O,
// no shared mutable state, safe for concurrent use.
package zoning

import (
	"regexp"
	"strconv"
)

// numeralPattern matches an unsigned integer or decimal-point numeral.
// No exponents, no thousands separators, no signs.
var numeralPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ExtractNumbers returns every numeral in description, in document order,
// duplicates included. Returns nil for an empty description or when the text
// holds no numerals.
func ExtractNumbers(description string) []float64 {
	if description == "" {
		return nil
	}
	found := numeralPattern.FindAllString(description, -1)
	if len(found) == 0 {
		return nil
	}

	numbers := make([]float64, 0, len(found))
	for _, s := range found {
		// The pattern only admits digits and one dot, so the only possible
		// error is ErrRange, where ParseFloat still returns ±Inf.
		v, _ := strconv.ParseFloat(s, 64)
		numbers = append(numbers, v)
	}
	return numbers
}

// ResolveCondition reduces numbers to one effective value using the tie-break
// phrase in description:
//
//	"whichever is less"    → minimum
//	"whichever is greater" → maximum
//	neither                → first number
//
// Phrase matching is exact and case-sensitive on the raw description. The
// second return is false when description or numbers is empty.
func ResolveCondition(description string, numbers []float64) (float64, bool) {
	if description == "" || len(numbers) == 0 {
		return 0, false
	}
	return resolve(defaultParser.policy(description), numbers)
}

// resolve applies a tie-break kind to a non-empty value list.
func resolve(kind Kind, values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	switch kind {
	case KindConditionalMin:
		return minOf(values), true
	case KindConditionalMax:
		return maxOf(values), true
	default:
		return values[0], true
	}
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
