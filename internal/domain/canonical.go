package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatFloat renders f as the shortest decimal that round-trips, using fixed
// notation for decimal exponents in [-4, 16) and scientific notation with a
// signed, at least two-digit exponent otherwise. Integral values keep a
// trailing ".0".
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case f == 0:
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, expPart, _ := strings.Cut(sci, "e")
	exp, _ := strconv.Atoi(expPart)

	if exp < -4 || exp >= 16 {
		sign := '+'
		if exp < 0 {
			sign = '-'
			exp = -exp
		}
		return fmt.Sprintf("%se%c%02d", mantissa, sign, exp)
	}

	fixed := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(fixed, ".") {
		fixed += ".0"
	}
	return fixed
}

// FormatBounds renders bounds as "[a, b, c, d]".
func FormatBounds(bounds []float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range bounds {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(FormatFloat(v))
	}
	b.WriteByte(']')
	return b.String()
}

// CanonicalString joins the query fields in the order the seed depends on.
func CanonicalString(p QueryParameters) string {
	return FormatBounds(p.Bounds) +
		"_" + p.StartDate +
		"_" + p.EndDate +
		"_" + p.Satellite +
		"_" + strconv.Itoa(p.MaxCloudCover)
}
