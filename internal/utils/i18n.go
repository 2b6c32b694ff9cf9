package utils

import (
	"strconv"
	"strings"
)

// Minimal server-side i18n for fixed keys.
// Bubble and card chrome lives in the display; the server only localizes what
// it composes itself.

// SupportedLocales are the languages the wall is translated into.
var SupportedLocales = []string{"en", "nl"}

var translations = map[string]map[string]string{
	"en": {
		"health.ok":          "ok",
		"answer.placeholder": "No answer text",
		"season.winter":      "Winter",
		"season.spring":      "Spring",
		"season.summer":      "Summer",
		"season.fall":        "Fall",
		"scan.failed":        "We could not read your note. Please type your answer instead.",
	},
	"nl": {
		"health.ok":          "ok",
		"answer.placeholder": "Geen antwoordtekst",
		"season.winter":      "Winter",
		"season.spring":      "Lente",
		"season.summer":      "Zomer",
		"season.fall":        "Herfst",
		"scan.failed":        "We konden je briefje niet lezen. Typ je antwoord alsjeblieft in.",
	},
}

// T returns the translated string for key in locale; falls back to English.
func T(locale, key string) string {
	if m, ok := translations[strings.ToLower(locale)]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if m, ok := translations["en"]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return key
}

// SeasonLabel renders "<season> <year>" in locale. Locales without a
// translation keep the configured label.
func SeasonLabel(locale, quarter string, year int, fallback string) string {
	m, ok := translations[strings.ToLower(locale)]
	if !ok {
		return fallback
	}
	name, ok := m["season."+quarter]
	if !ok {
		return fallback
	}
	return name + " " + strconv.Itoa(year)
}
