package series

import (
	"fmt"
	"strings"
	"time"
)

// Interval is a resampling period. Each period is labelled by its last day.
type Interval int

const (
	Daily    Interval = iota // "D"
	Weekly                   // "W", weeks end on Sunday
	MonthEnd                 // "ME", calendar months
)

// String returns the short code accepted by ParseInterval.
func (iv Interval) String() string {
	switch iv {
	case Weekly:
		return "W"
	case MonthEnd:
		return "ME"
	default:
		return "D"
	}
}

// ParseInterval accepts "D", "W" or "ME" (case-insensitive). "M" is read as
// month-end.
func ParseInterval(s string) (Interval, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "D", "DAY", "DAILY":
		return Daily, nil
	case "W", "WEEK", "WEEKLY", "W-SUN":
		return Weekly, nil
	case "ME", "M", "MONTH", "MONTHLY":
		return MonthEnd, nil
	}
	return Daily, fmt.Errorf("unknown interval %q (want D, W or ME)", s)
}

// PeriodEnd returns the label of the period containing t.
func (iv Interval) PeriodEnd(t time.Time) time.Time {
	t = Day(t)
	switch iv {
	case Weekly:
		return t.AddDate(0, 0, (7-int(t.Weekday()))%7)
	case MonthEnd:
		return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	default:
		return t
	}
}

// next returns the label of the period after the one ending on end.
func (iv Interval) next(end time.Time) time.Time {
	switch iv {
	case Weekly:
		return end.AddDate(0, 0, 7)
	case MonthEnd:
		return iv.PeriodEnd(end.AddDate(0, 0, 1))
	default:
		return end.AddDate(0, 0, 1)
	}
}
