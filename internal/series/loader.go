package series

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/yieldcharts/internal/maturity"
)

// DateLayout is the ISO date format used by the CSV snapshots.
const DateLayout = "2006-01-02"

// FileError reports a snapshot that could not be read or is malformed.
type FileError struct {
	Path string
	Line int // 1-based, 0 when not line specific
	Err  error
}

func (e *FileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("series file %s line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("series file %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// LoadFile reads one maturity snapshot. The duration label comes from the
// file name (see maturity.Parse).
func LoadFile(path string) (MaturitySeries, error) {
	label, err := maturity.Parse(path)
	if err != nil {
		return MaturitySeries{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return MaturitySeries{}, &FileError{Path: path, Err: err}
	}
	defer f.Close()

	return read(f, path, label)
}

// Load parses a snapshot from r, labelling it from identifier.
func Load(r io.Reader, identifier string) (MaturitySeries, error) {
	label, err := maturity.Parse(identifier)
	if err != nil {
		return MaturitySeries{}, err
	}
	return read(r, identifier, label)
}

func read(r io.Reader, name string, label maturity.Duration) (MaturitySeries, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	s := MaturitySeries{Label: label}
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return MaturitySeries{}, &FileError{Path: name, Line: line, Err: err}
		}
		if len(rec) == 0 || (len(rec) == 1 && strings.TrimSpace(rec[0]) == "") {
			continue
		}

		date, ok := parseDate(rec[0])
		if !ok {
			if line == 1 {
				continue // header
			}
			return MaturitySeries{}, &FileError{Path: name, Line: line, Err: fmt.Errorf("invalid date %q", rec[0])}
		}

		obs := Observation{Date: date, Missing: true}
		if len(rec) > 1 {
			if v, present, err := parseValue(rec[1]); err != nil {
				return MaturitySeries{}, &FileError{Path: name, Line: line, Err: err}
			} else if present {
				obs.Value, obs.Missing = v, false
			}
		}

		if n := len(s.Observations); n > 0 && !obs.Date.After(s.Observations[n-1].Date) {
			return MaturitySeries{}, &FileError{
				Path: name,
				Line: line,
				Err:  fmt.Errorf("date %s is not after %s", obs.Date.Format(DateLayout), s.Observations[n-1].Date.Format(DateLayout)),
			}
		}
		s.Observations = append(s.Observations, obs)
	}
	return s, nil
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateLayout, "2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), true
		}
	}
	return time.Time{}, false
}

// parseValue treats blank cells and FRED's "." as missing.
func parseValue(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "." {
		return 0, false, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false, fmt.Errorf("invalid value %q", s)
	}
	f, _ := d.Float64()
	return f, true, nil
}

// FormatValue renders a yield the way the snapshots store it; missing values
// are blank.
func FormatValue(o Observation) string {
	if o.Missing {
		return ""
	}
	return decimal.NewFromFloat(o.Value).String()
}

// Set is the result of loading a snapshot directory.
type Set struct {
	Series  []MaturitySeries
	Skipped []error // per-file parse/read failures that were excluded
}

// Labels returns the loaded durations in order.
func (s Set) Labels() []maturity.Duration {
	out := make([]maturity.Duration, len(s.Series))
	for i, ms := range s.Series {
		out[i] = ms.Label
	}
	return out
}

// Get returns the series for d.
func (s Set) Get(d maturity.Duration) (MaturitySeries, bool) {
	for _, ms := range s.Series {
		if ms.Label == d {
			return ms, true
		}
	}
	return MaturitySeries{}, false
}

// Only returns the subset of series whose labels are in ds. An empty ds
// keeps everything.
func (s Set) Only(ds []maturity.Duration) Set {
	if len(ds) == 0 {
		return s
	}
	want := make(map[maturity.Duration]bool, len(ds))
	for _, d := range ds {
		want[d] = true
	}
	out := Set{Skipped: s.Skipped}
	for _, ms := range s.Series {
		if want[ms.Label] {
			out.Series = append(out.Series, ms)
		}
	}
	return out
}

// LoadDir reads every *.csv snapshot in dir. When ids is non-empty only
// those identifiers are read. A file that fails to parse is logged, recorded
// in Set.Skipped and excluded; the others still load. Only a directory that
// cannot be listed is an error.
func LoadDir(dir string, ids []string, logger *slog.Logger) (Set, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var paths []string
	if len(ids) > 0 {
		for _, id := range ids {
			paths = append(paths, filepath.Join(dir, id+".csv"))
		}
	} else {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return Set{}, fmt.Errorf("list series dir %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
				continue
			}
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}

	var set Set
	for _, p := range paths {
		ms, err := LoadFile(p)
		if err != nil {
			var pe *maturity.ParseError
			level := slog.LevelWarn
			if errors.As(err, &pe) {
				level = slog.LevelError
			}
			logger.Log(context.Background(), level, "skipping series file", "path", p, "error", err)
			set.Skipped = append(set.Skipped, err)
			continue
		}
		set.Series = append(set.Series, ms)
	}

	SortByDuration(set.Series)
	return set, nil
}

// Write renders observations as a snapshot with the header
// "observation_date,<id>". Missing values are written blank.
func Write(w io.Writer, id string, obs []Observation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"observation_date", id}); err != nil {
		return err
	}
	for _, o := range obs {
		if err := cw.Write([]string{o.Date.Format(DateLayout), FormatValue(o)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes a snapshot to path atomically: the data goes to a
// temporary file in the same directory which is then renamed over path.
func WriteFile(path, id string, obs []Observation) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &FileError{Path: path, Err: err}
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &FileError{Path: path, Err: err}
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	if err := Write(tmp, id, obs); err != nil {
		tmp.Close()
		return &FileError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &FileError{Path: path, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &FileError{Path: path, Err: err}
	}
	return nil
}
