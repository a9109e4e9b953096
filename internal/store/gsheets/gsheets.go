// Package gsheets is the SheetStore backed by the Google Sheets API.
package gsheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/sheets/v4"

	"github.com/steipete/sheetcal/internal/layout"
	"github.com/steipete/sheetcal/internal/model"
	"github.com/steipete/sheetcal/internal/timeparse"
)

const (
	valueInputRaw   = "RAW"
	gridDataFields  = "sheets(data(startRow,startColumn,rowData(values(effectiveValue,formattedValue))))"
	sheetMetaFields = "sheets(properties(sheetId,title))"
)

var ErrSheetNotFound = errors.New("sheet not found")

// Store reads and writes one tab of one spreadsheet.
type Store struct {
	svc           *sheets.Service
	spreadsheetID string
	sheet         string

	mu       sync.Mutex
	resolved bool
	title    string
	sheetID  int64
}

// New returns a store for the tab named sheet. An empty name selects the
// first tab.
func New(svc *sheets.Service, spreadsheetID, sheet string) *Store {
	return &Store{svc: svc, spreadsheetID: strings.TrimSpace(spreadsheetID), sheet: strings.TrimSpace(sheet)}
}

func (s *Store) resolve(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved {
		return nil
	}

	resp, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields(sheetMetaFields).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet %s: %w", s.spreadsheetID, err)
	}
	for _, sh := range resp.Sheets {
		if sh == nil || sh.Properties == nil {
			continue
		}
		if s.sheet == "" || strings.EqualFold(sh.Properties.Title, s.sheet) {
			s.title = sh.Properties.Title
			s.sheetID = sh.Properties.SheetId
			s.resolved = true
			slog.Debug("resolved sheet", "spreadsheet", s.spreadsheetID, "title", s.title, "sheet_id", s.sheetID)
			return nil
		}
	}
	name := s.sheet
	if name == "" {
		name = "(first tab)"
	}
	return fmt.Errorf("%w: %s in %s", ErrSheetNotFound, name, s.spreadsheetID)
}

func (s *Store) a1(r layout.Range) string {
	return layout.QuoteSheet(s.title) + "!" + r.String()
}

func (s *Store) ReadCell(ctx context.Context, row, col int) (model.Cell, error) {
	cells, err := s.ReadRow(ctx, row, []int{col})
	if err != nil {
		return model.Cell{}, err
	}
	return cells[col], nil
}

func (s *Store) ReadRow(ctx context.Context, row int, cols []int) (map[int]model.Cell, error) {
	if err := s.resolve(ctx); err != nil {
		return nil, err
	}
	var rng string
	if len(cols) == 0 {
		rng = layout.QuoteSheet(s.title) + "!" + fmt.Sprintf("%d:%d", row, row)
	} else {
		rng = s.a1(layout.Range{Row: row, LastRow: row, Col: slices.Min(cols), LastCol: slices.Max(cols)})
	}

	resp, err := s.svc.Spreadsheets.Get(s.spreadsheetID).
		Ranges(rng).
		IncludeGridData(true).
		Fields(gridDataFields).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}

	out := make(map[int]model.Cell)
	for _, sh := range resp.Sheets {
		for _, data := range sh.Data {
			if data == nil {
				continue
			}
			for _, rd := range data.RowData {
				if rd == nil {
					continue
				}
				for i, cd := range rd.Values {
					col := int(data.StartColumn) + i + 1
					if len(cols) > 0 && !slices.Contains(cols, col) {
						continue
					}
					if c, ok := cellFromData(cd); ok {
						out[col] = c
					}
				}
				break
			}
		}
	}
	return out, nil
}

func cellFromData(cd *sheets.CellData) (model.Cell, bool) {
	if cd == nil || cd.EffectiveValue == nil {
		return model.Cell{}, false
	}
	ev := cd.EffectiveValue
	c := model.Cell{Text: cd.FormattedValue}
	switch {
	case ev.BoolValue != nil:
		c.Value = *ev.BoolValue
	case ev.NumberValue != nil:
		c.Value = *ev.NumberValue
	case ev.StringValue != nil:
		c.Value = *ev.StringValue
	case ev.ErrorValue != nil:
		c.Value = nil
		if c.Text == "" {
			c.Text = ev.ErrorValue.Message
		}
	default:
		return model.Cell{}, false
	}
	return c, true
}

func (s *Store) WriteCell(ctx context.Context, row, col int, value any) error {
	return s.WriteRows(ctx, row, []int{col}, [][]any{{value}})
}

func (s *Store) WriteRows(ctx context.Context, startRow int, cols []int, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	if err := s.resolve(ctx); err != nil {
		return err
	}

	var data []*sheets.ValueRange
	for _, run := range columnRuns(cols) {
		values := make([][]any, len(rows))
		for i, row := range rows {
			if len(row) != len(cols) {
				return fmt.Errorf("row %d: %d values for %d columns", startRow+i, len(row), len(cols))
			}
			values[i] = make([]any, 0, len(run.idx))
			for _, j := range run.idx {
				values[i] = append(values[i], toRaw(row[j]))
			}
		}
		data = append(data, &sheets.ValueRange{
			Range:  s.a1(layout.Range{Row: startRow, LastRow: startRow + len(rows) - 1, Col: run.first, LastCol: run.last}),
			Values: values,
		})
	}

	req := &sheets.BatchUpdateValuesRequest{ValueInputOption: valueInputRaw, Data: data}
	if _, err := s.svc.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("write rows %d..%d: %w", startRow, startRow+len(rows)-1, err)
	}
	return nil
}

func (s *Store) ClearCells(ctx context.Context, firstRow, lastRow int, cols []int) error {
	if lastRow < firstRow || len(cols) == 0 {
		return nil
	}
	if err := s.resolve(ctx); err != nil {
		return err
	}
	ranges := make([]string, 0, len(cols))
	for _, run := range columnRuns(cols) {
		ranges = append(ranges, s.a1(layout.Range{Row: firstRow, LastRow: lastRow, Col: run.first, LastCol: run.last}))
	}
	req := &sheets.BatchClearValuesRequest{Ranges: ranges}
	if _, err := s.svc.Spreadsheets.Values.BatchClear(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", strings.Join(ranges, ","), err)
	}
	return nil
}

func (s *Store) SetNumberFormat(ctx context.Context, firstRow, lastRow, col int, pattern string) error {
	if lastRow < firstRow {
		return nil
	}
	if err := s.resolve(ctx); err != nil {
		return err
	}
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          s.sheetID,
					StartRowIndex:    int64(firstRow - 1),
					EndRowIndex:      int64(lastRow),
					StartColumnIndex: int64(col - 1),
					EndColumnIndex:   int64(col),
					ForceSendFields:  []string{"SheetId", "StartRowIndex", "StartColumnIndex"},
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						NumberFormat: &sheets.NumberFormat{Type: NumberFormatType(pattern), Pattern: pattern},
					},
				},
				Fields: "userEnteredFormat.numberFormat",
			},
		}},
	}
	if _, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("format %s: %w", s.a1(layout.Range{Row: firstRow, LastRow: lastRow, Col: col, LastCol: col}), err)
	}
	return nil
}

// LastDataRow relies on the API trimming trailing empty rows.
func (s *Store) LastDataRow(ctx context.Context) (int, error) {
	if err := s.resolve(ctx); err != nil {
		return 0, err
	}
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, layout.QuoteSheet(s.title)).
		ValueRenderOption("UNFORMATTED_VALUE").
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", s.title, err)
	}
	return len(resp.Values), nil
}

// NumberFormatType picks the Sheets number format type for a pattern.
func NumberFormatType(pattern string) string {
	p := strings.ToLower(pattern)
	hasDate := strings.ContainsAny(p, "yd")
	hasClock := strings.ContainsAny(p, "hs") || strings.Contains(p, "am/pm")
	switch {
	case hasDate && hasClock:
		return "DATE_TIME"
	case hasDate:
		return "DATE"
	case hasClock:
		return "TIME"
	default:
		return "NUMBER"
	}
}

type columnRun struct {
	first, last int
	idx         []int
}

// columnRuns groups cols into runs of adjacent columns, remembering each
// column's position in cols.
func columnRuns(cols []int) []columnRun {
	order := make([]int, len(cols))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int { return cols[a] - cols[b] })

	var runs []columnRun
	for _, i := range order {
		col := cols[i]
		if n := len(runs); n > 0 && runs[n-1].last+1 == col {
			runs[n-1].last = col
			runs[n-1].idx = append(runs[n-1].idx, i)
			continue
		}
		runs = append(runs, columnRun{first: col, last: col, idx: []int{i}})
	}
	return runs
}

// toRaw converts domain values into what RAW input stores: dates and times
// become serial numbers so the column format controls their display.
func toRaw(v any) any {
	switch x := v.(type) {
	case nil:
		return ""
	case timeparse.CalendarDate:
		if x.IsZero() {
			return ""
		}
		return x.Serial()
	case timeparse.TimeOfDay:
		return x.DayFraction()
	case time.Time:
		return timeparse.DateOf(x).Serial() + timeparse.TimeOf(x).DayFraction()
	default:
		return x
	}
}
