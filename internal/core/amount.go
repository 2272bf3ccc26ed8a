// Package core provides the budget domain types and amount parsing.
//
// Amounts are whole yen. Inputs may use thousands separators, so
// "12,500" and "12500" are the same amount.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseAmount converts a user-entered amount into whole yen.
//
// Commas, full-width commas and surrounding spaces are ignored. Signs,
// decimals and zero are rejected.
//
// Examples:
//
//	ParseAmount("12,500") -> 12500, nil
//	ParseAmount(" 800 ")  -> 800, nil
//	ParseAmount("1.5")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(",", "", "，", "").Replace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	for _, r := range s {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return 0, ErrInvalidAmount
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// overflow
		return 0, ErrInvalidAmount
	}
	if v <= 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}
