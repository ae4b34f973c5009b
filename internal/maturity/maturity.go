// Package maturity models treasury tenors ("3-month", "10-year") and the
// overnight Fed Funds sentinel ("0-month"). It owns the mapping between FRED
// series identifiers, human-readable duration labels and the numeric
// year-fraction encoding used by the derived series.
package maturity

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Unit is the tenor unit of a Duration.
type Unit int

const (
	Month Unit = iota
	Year
)

func (u Unit) String() string {
	if u == Year {
		return "year"
	}
	return "month"
}

// Duration is one maturity on the curve. The zero value is the overnight
// Fed Funds rate ("0-month").
type Duration struct {
	Count int
	Unit  Unit
}

// FedFunds is the overnight sentinel.
var FedFunds = Duration{Count: 0, Unit: Month}

// String returns the label, e.g. "6-month" or "2-year".
func (d Duration) String() string {
	return strconv.Itoa(d.Count) + "-" + d.Unit.String()
}

// Years returns the year-fraction encoding: months are n/12 rounded to three
// decimals (1-month -> 0.083, 6-month -> 0.5), years are n.
func (d Duration) Years() float64 {
	if d.Unit == Year {
		return float64(d.Count)
	}
	f, _ := decimal.NewFromInt(int64(d.Count)).
		DivRound(decimal.NewFromInt(12), 3).
		Float64()
	return f
}

// IsFedFunds reports whether d is the overnight sentinel.
func (d Duration) IsFedFunds() bool {
	return d.Count == 0
}

// Less orders durations by year fraction, then by label.
func (d Duration) Less(o Duration) bool {
	if dy, oy := d.Years(), o.Years(); dy != oy {
		return dy < oy
	}
	return d.String() < o.String()
}

// MarshalText encodes the duration as its label.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a label produced by MarshalText.
func (d *Duration) UnmarshalText(b []byte) error {
	parsed, err := ParseLabel(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseError is returned when an identifier or label does not match any
// known maturity pattern.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unrecognized maturity %q: %s", e.Input, e.Reason)
}

var (
	treasuryIDPattern = regexp.MustCompile(`^DGS([0-9]+)(MO)?$`)
	labelPattern      = regexp.MustCompile(`^([0-9]+)-(month|year)s?$`)
)

// Parse maps a FRED series identifier or a path to its CSV snapshot onto a
// Duration. "FF..." is the overnight rate, "DGS<n>MO" is n months and
// "DGS<n>" is n years. Anything else is a *ParseError.
func Parse(identifier string) (Duration, error) {
	base := filepath.Base(strings.TrimSpace(identifier))
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	id := strings.ToUpper(base)

	if id == "" || id == "." {
		return Duration{}, &ParseError{Input: identifier, Reason: "empty identifier"}
	}
	if strings.HasPrefix(id, "FF") {
		return FedFunds, nil
	}

	m := treasuryIDPattern.FindStringSubmatch(id)
	if m == nil {
		return Duration{}, &ParseError{Input: identifier, Reason: "expected FF, DGS<n>MO or DGS<n>"}
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return Duration{}, &ParseError{Input: identifier, Reason: "tenor must be a positive integer"}
	}
	if m[2] == "MO" {
		return Duration{Count: n, Unit: Month}, nil
	}
	return Duration{Count: n, Unit: Year}, nil
}

// ParseLabel parses a human label such as "3-month", "10-year" or "0-month".
func ParseLabel(label string) (Duration, error) {
	m := labelPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(label)))
	if m == nil {
		return Duration{}, &ParseError{Input: label, Reason: `expected "<n>-month" or "<n>-year"`}
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return Duration{}, &ParseError{Input: label, Reason: err.Error()}
	}
	if m[2] == "year" {
		if n == 0 {
			return Duration{}, &ParseError{Input: label, Reason: "0-year is not a tenor"}
		}
		return Duration{Count: n, Unit: Year}, nil
	}
	return Duration{Count: n, Unit: Month}, nil
}

// SeriesID maps a Duration back to its FRED series identifier.
func SeriesID(d Duration) string {
	switch {
	case d.IsFedFunds():
		return "FF"
	case d.Unit == Month:
		return fmt.Sprintf("DGS%dMO", d.Count)
	default:
		return fmt.Sprintf("DGS%d", d.Count)
	}
}

// Sort orders durations ascending by year fraction then label.
func Sort(ds []Duration) {
	sort.SliceStable(ds, func(i, j int) bool { return ds[i].Less(ds[j]) })
}

// DefaultSeries is the FRED identifier set the dashboard downloads and reads.
var DefaultSeries = []string{
	"FF", "DGS1MO", "DGS3MO", "DGS6MO", "DGS1", "DGS2", "DGS3", "DGS5", "DGS7", "DGS10", "DGS20", "DGS30",
}
