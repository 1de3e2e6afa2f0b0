package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var compactDate = regexp.MustCompile(`^(\d{1,2})([A-Z]{3})(\d{2}|\d{4})$`)

var shortMonths = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// Day-first layouts seen on labels and invoices. ISO forms are tried first.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2/1/2006",
	"2006/1/2",
	"2-1-2006",
	"2 Jan 2006",
	"2-Jan-2006",
	"2-Jan-06",
}

// ParseDate parses the date formats found on shipping documents
// (23SEP25, 2025-09-23, 23/09/2025, 23-09-2025, 23 Sep 2025, 23-Sep-25).
// It returns false rather than guessing when nothing matches.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if m := compactDate.FindStringSubmatch(strings.ToUpper(s)); m != nil {
		if month, ok := shortMonths[m[2]]; ok {
			day, _ := strconv.Atoi(m[1])
			year, _ := strconv.Atoi(m[3])
			if year < 100 {
				year += 2000
			}
			t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
			if t.Day() == day {
				return t, true
			}
		}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, mo, d := t.Date()
			return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// FormatDate renders a date the way the declaration sheet expects (DD/MM/YYYY).
func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006")
}
