package model

import (
	"encoding/json"
	"strings"
	"time"
)

// DateFormat is the ISO calendar date layout used for output.
const DateFormat = "2006-01-02"

var dateLayouts = []string{
	DateFormat,
	"02/01/2006",
	"2/1/2006",
	"02/01/06",
	"02 Jan 2006",
	"2 Jan 2006",
	"02 Jan 06",
	"2 Jan 06",
	"02 January 2006",
	"2 January 2006",
	"02-Jan-2006",
	"02-Jan-06",
}

// ParseDate parses the calendar date formats found in UK statement extracts.
// The result is UTC midnight; ok is false for blank or unrecognised input.
func ParseDate(s string) (time.Time, bool) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return Day(d), true
		}
	}
	return time.Time{}, false
}

// Day truncates t to its calendar date at UTC midnight.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders t as ISO or "" when zero.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateFormat)
}

// DateRange is an inclusive span of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether d falls inside the range, boundaries included.
func (r DateRange) Contains(d time.Time) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r DateRange) String() string {
	return FormatDate(r.Start) + ".." + FormatDate(r.End)
}

// MarshalJSON emits {"start": "...", "end": "..."}.
func (r DateRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}{FormatDate(r.Start), FormatDate(r.End)})
}

// DaysBetween returns |b - a| in whole days.
func DaysBetween(a, b time.Time) int {
	n := int(Day(b).Sub(Day(a)).Hours() / 24)
	if n < 0 {
		return -n
	}
	return n
}
