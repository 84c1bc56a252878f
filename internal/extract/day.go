package extract

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

// dateRe matches the DD/MM/YYYY date inside a day column header.
var dateRe = regexp.MustCompile(`(\d{2}/\d{2}/\d{4})`)

const dayHeaderLayout = "02/01/2006"

// unknownDay is reported for headers naming no known weekday.
const (
	unknownDayHebrew  = "לא ידוע"
	unknownDayEnglish = "unknown"
)

// weekdays pairs the Hebrew day names with their English equivalents, in
// week order so substring scans are deterministic.
var weekdays = []struct {
	hebrew  string
	english string
}{
	{"ראשון", "Sunday"},
	{"שני", "Monday"},
	{"שלישי", "Tuesday"},
	{"רביעי", "Wednesday"},
	{"חמישי", "Thursday"},
	{"שישי", "Friday"},
	{"שבת", "Saturday"},
}

// hebrewWeekday finds the weekday named in text. Unknown text maps to
// the unknown pair rather than failing, since headers vary across club
// pages.
func hebrewWeekday(text string) (hebrew, english string) {
	for _, day := range weekdays {
		if strings.Contains(text, day.hebrew) {
			return day.hebrew, day.english
		}
	}
	return unknownDayHebrew, unknownDayEnglish
}

// parseDayHeader splits a column header like "ראשון 27/04/2025" into the
// Hebrew day label and an ISO date. Headers without a parseable date
// fall back to the English weekday name so entries still group by day.
func parseDayHeader(text string) (label, date string) {
	text = cleanText(text)

	if m := dateRe.FindString(text); m != "" {
		if parsed, err := time.Parse(dayHeaderLayout, m); err == nil {
			date = parsed.Format("2006-01-02")
			label = trimNonHebrew(strings.Replace(text, m, "", 1))
			if !containsHebrew(label) {
				label, _ = hebrewWeekday(text)
			}
			return label, date
		}
	}

	label, date = hebrewWeekday(text)
	return label, date
}

func trimNonHebrew(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return !unicode.Is(unicode.Hebrew, r)
	})
}

func containsHebrew(s string) bool {
	return strings.ContainsFunc(s, func(r rune) bool {
		return unicode.Is(unicode.Hebrew, r)
	})
}
