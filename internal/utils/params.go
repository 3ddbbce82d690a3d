// Package utils provides small, generic helpers for parsing and bounding
// request parameters. They carry no domain logic.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault parses s (surrounding whitespace ignored) as an int, returning
// def when s is empty or not a valid integer.
//
//	utils.AtoiDefault("42", 0)  // 42
//	utils.AtoiDefault(" 7 ", 0) // 7
//	utils.AtoiDefault("x", 5)   // 5
func AtoiDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Clamp bounds n to [lo, hi]. When lo > hi, hi wins.
func Clamp(n, lo, hi int) int {
	if n < lo {
		n = lo
	}
	if n > hi {
		n = hi
	}
	return n
}
