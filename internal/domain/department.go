package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// DepartmentGeneral collects users with no course on record.
const DepartmentGeneral = "GENERAL"

var yearPrefix = regexp.MustCompile(`^(FY|SY|TY)[\s.]?`)

// Department maps a free-text course to its department key: "FY. BSc IT" and
// "sy bsc it" both become "BSC IT". A strip that leaves fewer than two
// characters keeps the unstripped course.
func Department(course string) string {
	raw := cases.Upper(language.Und).String(norm.NFC.String(strings.TrimSpace(course)))
	if raw == "" {
		return DepartmentGeneral
	}
	dept := strings.TrimSpace(yearPrefix.ReplaceAllString(raw, ""))
	if utf8.RuneCountInString(dept) < 2 {
		return raw
	}
	return dept
}
