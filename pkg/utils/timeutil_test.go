package utils

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNowET(t *testing.T) {
	now := NowET()
	if name := now.Location().String(); name != "America/New_York" && name != "EST" {
		t.Errorf("NowET() location = %s, want America/New_York or EST", name)
	}
	today := Today()
	if today.Hour() != 0 || today.Location() != time.UTC {
		t.Errorf("Today() = %v, want UTC midnight", today)
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate(" 2024-02-29 ")
	if err != nil {
		t.Fatalf("ParseDate error: %v", err)
	}
	if !got.Equal(date(2024, 2, 29)) {
		t.Errorf("ParseDate = %v", got)
	}
	if _, err := ParseDate("02/29/2024"); err == nil {
		t.Error("expected error for non-ISO date")
	}

	zero, err := ParseOptionalDate("")
	if err != nil || !zero.IsZero() {
		t.Errorf("ParseOptionalDate(\"\") = %v, %v", zero, err)
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate(date(1976, 6, 1)); got != "1976-06-01" {
		t.Errorf("FormatDate = %q", got)
	}
	if got := FormatDate(time.Time{}); got != "" {
		t.Errorf("FormatDate(zero) = %q, want empty", got)
	}
}

func TestIsWeekend(t *testing.T) {
	tests := []struct {
		d    time.Time
		want bool
	}{
		{date(2024, 1, 5), false}, // Friday
		{date(2024, 1, 6), true},  // Saturday
		{date(2024, 1, 7), true},  // Sunday
		{date(2024, 1, 8), false}, // Monday
	}
	for _, tc := range tests {
		if got := IsWeekend(tc.d); got != tc.want {
			t.Errorf("IsWeekend(%s) = %v, want %v", tc.d.Weekday(), got, tc.want)
		}
	}
}

func TestDaysBetween(t *testing.T) {
	if got := DaysBetween(date(2024, 1, 1), date(2024, 3, 1)); got != 60 {
		t.Errorf("DaysBetween = %d, want 60", got)
	}
	if got := DaysBetween(date(2024, 1, 8), date(2024, 1, 1)); got != -7 {
		t.Errorf("DaysBetween reversed = %d, want -7", got)
	}
}

func TestDateDifference(t *testing.T) {
	tests := []struct {
		a, b time.Time
		want DateDiff
		text string
	}{
		{date(2024, 1, 1), date(2024, 1, 8), DateDiff{Days: 7}, "Date Difference: 7 days"},
		{date(2023, 1, 15), date(2024, 3, 20), DateDiff{Years: 1, Months: 2, Days: 5}, "Date Difference: 1 years, 2 months, 5 days"},
		{date(2024, 3, 20), date(2023, 1, 15), DateDiff{Years: 1, Months: 2, Days: 5}, "Date Difference: 1 years, 2 months, 5 days"},
		{date(2024, 1, 31), date(2024, 2, 29), DateDiff{Months: 1}, "Date Difference: 1 months, 0 days"},
		{date(2020, 5, 10), date(2024, 5, 10), DateDiff{Years: 4}, "Date Difference: 4 years, 0 days"},
		{date(2024, 1, 20), date(2024, 2, 10), DateDiff{Days: 21}, "Date Difference: 21 days"},
	}
	for _, tc := range tests {
		got := DateDifference(tc.a, tc.b)
		if got != tc.want {
			t.Errorf("DateDifference(%s, %s) = %+v, want %+v", FormatDate(tc.a), FormatDate(tc.b), got, tc.want)
		}
		if got.String() != tc.text {
			t.Errorf("String() = %q, want %q", got.String(), tc.text)
		}
	}
}
