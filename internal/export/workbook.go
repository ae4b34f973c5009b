// Package export writes the combined yields and their derived series to an
// Excel workbook, one sheet per dataset.
package export

import (
	"fmt"
	"io"
	"slices"

	"github.com/xuri/excelize/v2"

	"github.com/seenimoa/yieldcharts/internal/events"
	"github.com/seenimoa/yieldcharts/internal/yields"
	"github.com/seenimoa/yieldcharts/pkg/models"
)

// Sheet names, in workbook order.
const (
	SheetYields       = "Yields"
	SheetSpread       = "Min Max Spread"
	SheetHighLow      = "High Low Yields"
	SheetExtrema      = "Extrema"
	SheetDifferential = "Differential"
	SheetEvents       = "Events"
)

// Workbook is the content to export. Nil or empty parts produce no sheet,
// except Table which is required.
type Workbook struct {
	Table        *yields.WideYieldTable
	Spread       yields.SpreadSeries
	High, Low    models.NamedSeries
	Lowest       yields.DerivedExtremaSeries
	Highest      yields.DerivedExtremaSeries
	Differential yields.SpreadSeries
	Events       []events.Annotation
}

// Write renders wb as xlsx to w.
func Write(w io.Writer, wb Workbook) error {
	if wb.Table == nil {
		return fmt.Errorf("export: no yield table")
	}

	f := excelize.NewFile()
	defer f.Close()

	sw := &sheetWriter{f: f}
	if err := sw.init(); err != nil {
		return err
	}

	if err := sw.yields(wb.Table); err != nil {
		return err
	}
	if len(wb.Spread.Rows) > 0 {
		if err := sw.spread(SheetSpread, wb.Spread); err != nil {
			return err
		}
	}
	if wb.High.Len() > 0 {
		if err := sw.highLow(wb.High, wb.Low); err != nil {
			return err
		}
	}
	if len(wb.Lowest.Rows) > 0 || len(wb.Highest.Rows) > 0 {
		if err := sw.extrema(wb.Lowest, wb.Highest); err != nil {
			return err
		}
	}
	if len(wb.Differential.Rows) > 0 {
		if err := sw.spread(SheetDifferential, wb.Differential); err != nil {
			return err
		}
	}
	if len(wb.Events) > 0 {
		if err := sw.events(wb.Events); err != nil {
			return err
		}
	}

	// excelize starts with "Sheet1"; the first real sheet replaces it.
	if idx, err := f.GetSheetIndex(SheetYields); err == nil {
		f.SetActiveSheet(idx)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

type sheetWriter struct {
	f      *excelize.File
	header int
	date   int
}

func (s *sheetWriter) init() error {
	var err error
	if s.header, err = s.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return fmt.Errorf("export: header style: %w", err)
	}
	fmtDate := "yyyy-mm-dd"
	if s.date, err = s.f.NewStyle(&excelize.Style{CustomNumFmt: &fmtDate}); err != nil {
		return fmt.Errorf("export: date style: %w", err)
	}
	return nil
}

// stream opens sheet, writes a bold header row and calls rows with a
// function that appends one data row.
func (s *sheetWriter) stream(sheet string, header []string, rows func(add func(vals ...any) error) error) error {
	if _, err := s.f.NewSheet(sheet); err != nil {
		return fmt.Errorf("export: sheet %s: %w", sheet, err)
	}
	w, err := s.f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("export: sheet %s: %w", sheet, err)
	}

	head := make([]any, len(header))
	for i, h := range header {
		head[i] = excelize.Cell{StyleID: s.header, Value: h}
	}
	if err := w.SetPanes(&excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	if err := w.SetRow("A1", head); err != nil {
		return err
	}

	row := 2
	add := func(vals ...any) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		row++
		return w.SetRow(cell, vals)
	}
	if err := rows(add); err != nil {
		return fmt.Errorf("export: sheet %s: %w", sheet, err)
	}
	return w.Flush()
}

func (s *sheetWriter) yields(t *yields.WideYieldTable) error {
	cols := t.Columns()
	header := make([]string, 0, len(cols)+1)
	header = append(header, "Date")
	for _, c := range cols {
		header = append(header, c.String())
	}

	dates := t.Dates()
	return s.stream(SheetYields, header, func(add func(...any) error) error {
		for i, d := range dates {
			vals := make([]any, 0, len(cols)+1)
			vals = append(vals, excelize.Cell{StyleID: s.date, Value: d})
			for _, c := range t.Row(i) {
				if c.Valid {
					vals = append(vals, c.Value)
				} else {
					vals = append(vals, nil)
				}
			}
			if err := add(vals...); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *sheetWriter) spread(sheet string, sp yields.SpreadSeries) error {
	return s.stream(sheet, []string{"Date", sp.Name}, func(add func(...any) error) error {
		for _, r := range sp.Rows {
			if err := add(excelize.Cell{StyleID: s.date, Value: r.Date}, r.Spread); err != nil {
				return err
			}
		}
		return nil
	})
}

// highLow expects high and low from yields.RowExtremes, which share dates.
func (s *sheetWriter) highLow(high, low models.NamedSeries) error {
	return s.stream(SheetHighLow, []string{"Date", high.Name, low.Name}, func(add func(...any) error) error {
		for i, p := range high.Points {
			if i >= len(low.Points) {
				break
			}
			if err := add(excelize.Cell{StyleID: s.date, Value: p.Date}, p.Value, low.Points[i].Value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *sheetWriter) extrema(lowest, highest yields.DerivedExtremaSeries) error {
	type pair struct{ lo, hi *yields.ExtremaPoint }
	byDate := map[int64]*pair{}
	var order []int64
	get := func(p yields.ExtremaPoint) *pair {
		k := p.Date.Unix()
		if byDate[k] == nil {
			byDate[k] = &pair{}
			order = append(order, k)
		}
		return byDate[k]
	}
	for i := range lowest.Rows {
		get(lowest.Rows[i]).lo = &lowest.Rows[i]
	}
	for i := range highest.Rows {
		get(highest.Rows[i]).hi = &highest.Rows[i]
	}
	slices.Sort(order)

	header := []string{"Date", "Lowest Maturity", "Lowest Years", "Lowest Yield", "Highest Maturity", "Highest Years", "Highest Yield"}
	return s.stream(SheetExtrema, header, func(add func(...any) error) error {
		for _, k := range order {
			p := byDate[k]
			var date any
			vals := make([]any, 6)
			if p.lo != nil {
				date = p.lo.Date
				vals[0], vals[1], vals[2] = p.lo.Duration.String(), p.lo.Years, p.lo.Yield
			}
			if p.hi != nil {
				date = p.hi.Date
				vals[3], vals[4], vals[5] = p.hi.Duration.String(), p.hi.Years, p.hi.Yield
			}
			row := append([]any{excelize.Cell{StyleID: s.date, Value: date}}, vals...)
			if err := add(row...); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *sheetWriter) events(list []events.Annotation) error {
	return s.stream(SheetEvents, []string{"Date", "Category", "Label"}, func(add func(...any) error) error {
		for _, a := range list {
			if err := add(excelize.Cell{StyleID: s.date, Value: a.Date}, string(a.Category), a.Category.Label()); err != nil {
				return err
			}
		}
		return nil
	})
}
