// Package language validates ISO 639-1 codes and renders the flag and
// English name shown in translation headers.
package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// DefaultFlag is used for languages without an entry in the flag table.
const DefaultFlag = "🌍"

// flags maps a language to the flag of the country most associated with it.
var flags = map[string]string{
	"ar": "🇸🇦",
	"bn": "🇧🇩",
	"cs": "🇨🇿",
	"da": "🇩🇰",
	"de": "🇩🇪",
	"el": "🇬🇷",
	"en": "🇺🇸",
	"es": "🇪🇸",
	"fa": "🇮🇷",
	"fi": "🇫🇮",
	"fr": "🇫🇷",
	"he": "🇮🇱",
	"hi": "🇮🇳",
	"hu": "🇭🇺",
	"id": "🇮🇩",
	"it": "🇮🇹",
	"ja": "🇯🇵",
	"ko": "🇰🇷",
	"ms": "🇲🇾",
	"nl": "🇳🇱",
	"no": "🇳🇴",
	"pl": "🇵🇱",
	"pt": "🇵🇹",
	"ro": "🇷🇴",
	"ru": "🇷🇺",
	"sv": "🇸🇪",
	"th": "🇹🇭",
	"tl": "🇵🇭",
	"tr": "🇹🇷",
	"uk": "🇺🇦",
	"ur": "🇵🇰",
	"vi": "🇻🇳",
	"zh": "🇨🇳",
}

// Valid reports whether code is a known two-letter ISO 639-1 language code.
// Codes are case-sensitive and must be lower case.
func Valid(code string) bool {
	if len(code) != 2 || code != strings.ToLower(code) {
		return false
	}
	_, err := language.ParseBase(code)
	return err == nil
}

// Normalize lower-cases and trims a code reported by a detector, keeping
// only the primary subtag ("EN-us" becomes "en").
func Normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	code = strings.Trim(code, "'\".` ")
	if i := strings.IndexAny(code, "-_"); i >= 0 {
		code = code[:i]
	}
	return code
}

// Name returns the English name of code, or code itself when unknown.
func Name(code string) string {
	b, err := language.ParseBase(code)
	if err != nil {
		return code
	}
	if n := display.English.Languages().Name(b); n != "" {
		return n
	}
	return code
}

// Flag returns the flag emoji for code, or [DefaultFlag].
func Flag(code string) string {
	if f, ok := flags[code]; ok {
		return f
	}
	return DefaultFlag
}
