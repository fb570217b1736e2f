// Package utils provides small, generic helpers shared across layers. Nothing
// here knows about domain or transport types.
package utils

import "strconv"

// AtoiDefault parses s as a base-10 int and returns def when s is empty or
// unparseable. Input is not trimmed; callers pass query values as received.
//
// Example:
//
//	w := utils.AtoiDefault(c.Query("width"), 128)
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
