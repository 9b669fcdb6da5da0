// Package language normalizes the language codes accepted in transcription
// configuration. WhisperX wants ISO 639-1 codes; operators write whatever
// they write ("en", "eng", "en-US"), so everything funnels through BCP 47
// parsing before touching the command line.
package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// ToISO2 normalizes a language identifier to its ISO 639-1 code. Regional
// subtags are dropped ("en-US" becomes "en"). Unrecognized input returns the
// empty string so callers can fall back to auto-detection.
func ToISO2(code string) string {
	tag, ok := parse(code)
	if !ok {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	iso := base.String()
	// Base.String returns a 3-letter code for languages without a 639-1
	// assignment; WhisperX only accepts 2-letter codes.
	if len(iso) != 2 {
		return ""
	}
	return iso
}

// DisplayName returns the English name for a language code, or "Unknown"
// when the code cannot be parsed.
func DisplayName(code string) string {
	tag, ok := parse(code)
	if !ok {
		return "Unknown"
	}
	name := display.English.Languages().Name(tag)
	if name == "" {
		return "Unknown"
	}
	return name
}

// IsValid reports whether the code parses to a known language.
func IsValid(code string) bool {
	_, ok := parse(code)
	return ok
}

func parse(code string) (language.Tag, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return language.Und, false
	}
	tag, err := language.Parse(code)
	if err != nil || tag == language.Und {
		return language.Und, false
	}
	return tag, true
}
