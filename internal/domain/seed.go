package domain

// Seed is the reproducible 32-bit value derived from a query.
type Seed uint32

// RollingHash32 folds s into 32 bits with acc = acc*33 + codepoint, wrapping
// on every step.
func RollingHash32(s string) uint32 {
	var acc uint32
	for _, r := range s {
		acc = (acc << 5) + acc + uint32(r)
	}
	return acc
}

// DeriveSeed hashes the canonical form of p. Only the shape of the bounds is
// checked here; see QueryParameters.Validate for the full set of invariants.
func DeriveSeed(p QueryParameters) (Seed, error) {
	if err := checkBoundsShape(p.Bounds); err != nil {
		return 0, err
	}
	return Seed(RollingHash32(CanonicalString(p))), nil
}
