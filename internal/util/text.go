package util

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var upper = cases.Upper(language.Und)

// Initials returns the upper-cased first letter of every word, or ".." for an empty name.
func Initials(fullName string) string {
	var b strings.Builder
	for word := range strings.FieldsSeq(fullName) {
		r, _ := utf8.DecodeRuneInString(word)
		if r != utf8.RuneError && !unicode.IsPunct(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ".."
	}
	return upper.String(b.String())
}

// FirstName returns the first word of a full name.
func FirstName(fullName string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(fullName), " ")
	return first
}

var historyIcons = map[string]string{
	"checkin":        "calendar-check",
	"event":          "calendar-check",
	"challenge":      "award",
	"plastic":        "recycle",
	"order":          "shopping-cart",
	"coupon":         "ticket",
	"quiz":           "brain",
	"streak_restore": "zap",
	"booking":        "film",
}

// HistoryIcon maps a ledger source type to its icon name.
func HistoryIcon(sourceType string) string {
	if icon, ok := historyIcons[sourceType]; ok {
		return icon
	}
	return "help-circle"
}

// ChallengeIcon maps a challenge type to its icon name.
func ChallengeIcon(challengeType string) string {
	switch challengeType {
	case "Quiz":
		return "brain"
	case "Upload", "selfie":
		return "camera"
	case "spot":
		return "eye"
	default:
		return "award"
	}
}
