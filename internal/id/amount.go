package id

import (
	"math/big"
	"strings"

	clierr "github.com/alemendo/intent-cli/internal/errors"
)

// RequireBaseUnits validates that an amount is a positive integer string of
// raw base units. Decimal input is rejected outright instead of being scaled
// or truncated: silently rounding money is how funds get lost, so conversion
// is the caller's job.
func RequireBaseUnits(field, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", clierr.NewReason(clierr.CodeUsage, clierr.ReasonMissingFields, field+" is required").
			WithDetail("field", field)
	}
	if strings.Contains(trimmed, ".") {
		return "", clierr.NewReason(
			clierr.CodeUsage,
			clierr.ReasonInvalidFormat,
			field+" must be a raw base-unit integer; convert decimal amounts to raw units yourself",
		).WithDetail("field", field)
	}
	parsed, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return "", clierr.NewReason(clierr.CodeUsage, clierr.ReasonInvalidFormat, field+" must be a positive integer string").
			WithDetail("field", field)
	}
	if parsed.Sign() <= 0 {
		return "", clierr.NewReason(clierr.CodeUsage, clierr.ReasonInvalidFormat, field+" must be greater than zero").
			WithDetail("field", field)
	}
	return parsed.String(), nil
}

// FormatDecimal converts a base-unit integer string into a decimal string for
// display only; it is never fed back into an intent.
func FormatDecimal(baseUnits string, decimals int) string {
	n, ok := new(big.Int).SetString(strings.TrimSpace(baseUnits), 10)
	if !ok || decimals < 0 {
		return baseUnits
	}
	if decimals == 0 {
		return n.String()
	}
	s := n.String()
	if len(s) <= decimals {
		pad := strings.Repeat("0", decimals-len(s)+1)
		s = pad + s
	}
	intPart := s[:len(s)-decimals]
	fracPart := strings.TrimRight(s[len(s)-decimals:], "0")
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}
