// Package sysutil holds process-level helpers shared by the entrypoint and
// the HTTP layer: log level selection and loose string coercions for values
// arriving from the environment or query parameters.
package sysutil

import (
	"strings"

	"github.com/rs/zerolog"
)

// SetLogLevel applies lvl to the global zerolog level. Recognized values
// (case-insensitive) are debug, info, warn, error, fatal, and panic; anything
// else, including the empty string, selects info.
func SetLogLevel(lvl string) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// IsTruthy interprets a flag-like string ("1", "true", "yes", "y", "on",
// case-insensitive) as true. Used for env toggles and query parameters such
// as checkDb.
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// FirstNonEmpty returns the first value whose trimmed form is non-empty, or
// "" when every value is blank.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
