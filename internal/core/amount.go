// Package core defines the bill-splitting domain model and the pure
// aggregation functions derived from it.
//
// This file contains parsing and comparison helpers for monetary amounts.
// Amounts are plain float64 values; aggregation code guards against
// floating-point noise with the thresholds defined here.
package core

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

const (
	// MinOwedThreshold filters floating-point noise out of the debtor
	// rollup: outstanding amounts below half a cent are not debts.
	MinOwedThreshold = 0.005

	// SettledThreshold is the residual below which an aggregate
	// outstanding debt counts as fully settled.
	SettledThreshold = 0.01
)

// ParseAmount converts a decimal string to a non-negative amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Explicit signs are rejected; amounts are never negative.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("-1")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' {
			return 0, ErrInvalidAmount
		}
	}
	if strings.Count(s, ".") > 1 {
		return 0, ErrInvalidAmount
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// amountsEqual compares two amounts within the settled threshold.
func amountsEqual(a, b float64) bool {
	return math.Abs(a-b) < SettledThreshold
}
