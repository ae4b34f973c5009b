package utils

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO date format used across the CSV snapshots, config
// and query parameters.
const DateLayout = "2006-01-02"

// ET is US Eastern time, where treasury yields are quoted.
var ET *time.Location

func init() {
	var err error
	ET, err = time.LoadLocation("America/New_York")
	if err != nil {
		// Fallback: create fixed zone if tz database is not available
		ET = time.FixedZone("EST", -5*60*60)
	}
}

// NowET returns the current time in ET.
func NowET() time.Time {
	return time.Now().In(ET)
}

// Today returns the current ET calendar date as UTC midnight, the form the
// series dates use.
func Today() time.Time {
	return DateOf(NowET())
}

// DateOf drops the clock and zone of t, keeping its calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a date string in "2006-01-02" format as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

// ParseOptionalDate is ParseDate except that an empty string yields the zero
// time.
func ParseOptionalDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return ParseDate(s)
}

// FormatDate formats t as "2006-01-02"; the zero time formats as "".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// IsWeekend reports whether t falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

// DaysBetween returns the whole calendar days from a to b (negative if b is
// earlier).
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}

// DateDiff is a calendar difference between two dates.
type DateDiff struct {
	Years  int `json:"years"`
	Months int `json:"months"`
	Days   int `json:"days"`
}

// DateDifference returns the calendar distance between a and b, regardless
// of order. Month arithmetic clamps to month end, so Jan 31 to Feb 29 is one
// month.
func DateDifference(a, b time.Time) DateDiff {
	a, b = DateOf(a), DateOf(b)
	if b.Before(a) {
		a, b = b, a
	}

	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	for months > 0 && addMonthsClamped(a, months).After(b) {
		months--
	}
	days := DaysBetween(addMonthsClamped(a, months), b)
	return DateDiff{Years: months / 12, Months: months % 12, Days: days}
}

// String renders "Date Difference: 1 years, 2 months, 3 days", leaving out
// zero years and months.
func (d DateDiff) String() string {
	var b strings.Builder
	b.WriteString("Date Difference: ")
	if d.Years != 0 {
		fmt.Fprintf(&b, "%d years, ", d.Years)
	}
	if d.Months != 0 {
		fmt.Fprintf(&b, "%d months, ", d.Months)
	}
	fmt.Fprintf(&b, "%d days", d.Days)
	return b.String()
}

func addMonthsClamped(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	last := first.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}
