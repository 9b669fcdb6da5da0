package scrape

import (
	"regexp"
	"strings"
	"time"
)

var partSuffixPattern = regexp.MustCompile(`(?i)\s*-\s*Part\s+\d+\s*$`)

// ParseHouseDate parses the link text the house archive uses for recordings,
// e.g. "Thursday, February 20, 2025" or "Wednesday, April 16, 2025 - Part 2".
// The weekday prefix and any part suffix are stripped before parsing.
func ParseHouseDate(text string) (time.Time, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return time.Time{}, false
	}
	trimmed = partSuffixPattern.ReplaceAllString(trimmed, "")
	if idx := strings.Index(trimmed, ","); idx >= 0 {
		trimmed = strings.TrimSpace(trimmed[idx+1:])
	}
	parsed, err := time.Parse("January 2, 2006", trimmed)
	if err != nil {
		return time.Time{}, false
	}
	return parsed.UTC(), true
}

// ParseSenateDate parses the timestamp the senate media API attaches to files,
// e.g. "2025-12-23T17:01:05.730Z". Plain dates are accepted as a fallback.
func ParseSenateDate(text string) (time.Time, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}
