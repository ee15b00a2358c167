package common

import (
	"regexp"
	"strings"
)

var (
	invalidPathChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	underscoreRuns   = regexp.MustCompile(`_+`)
)

// SanitizeFilename makes a string safe for use as a path component.
// Invalid characters become underscores, runs collapse to one, surrounding
// whitespace is trimmed, and an empty result becomes "unknown".
// The function is idempotent.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = invalidPathChars.ReplaceAllString(name, "_")
	name = underscoreRuns.ReplaceAllString(name, "_")
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	return name
}

// OrUnknown substitutes the literal "unknown" for empty metadata fields so
// path building never produces empty segments.
func OrUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}
