package recon

import (
	"strconv"
	"strings"
)

// ParseOptionalFloat coerces an upstream numeric field to a float. Absent,
// null-ish, and malformed values all map to nil; no call site in the engine
// is allowed to fail on a number the provider mangled.
func ParseOptionalFloat(raw string) *float64 {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// DeductionOrZero coerces an svc_deduction value, where absence means no
// store-value credit was used.
func DeductionOrZero(raw string) float64 {
	if v := ParseOptionalFloat(raw); v != nil {
		return *v
	}
	return 0
}
