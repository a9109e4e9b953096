// Package rowcodec maps sheet rows to calendar events and back. It is pure:
// no store access happens here.
package rowcodec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/steipete/sheetcal/internal/layout"
	"github.com/steipete/sheetcal/internal/model"
	"github.com/steipete/sheetcal/internal/timeparse"
)

var (
	ErrMissingTitle = errors.New("title is required")
	ErrMissingDate  = errors.New("missing or invalid date")
)

// RowError is a validation failure scoped to a single sheet row.
type RowError struct {
	Row   int
	Field layout.Field
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s: %v", e.Row, e.Field, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// RawRow is one data row as read from the sheet.
type RawRow struct {
	Number   int
	ID       model.Cell
	Title    model.Cell
	Date     model.Cell
	Time     model.Cell
	Duration model.Cell
	Upload   model.Cell
	Status   model.Cell
}

// FromCells picks the row fields out of cells keyed by 1-based column.
func FromCells(number int, cells map[int]model.Cell, cols layout.ColumnMap) RawRow {
	return RawRow{
		Number:   number,
		ID:       cells[cols.ID],
		Title:    cells[cols.Title],
		Date:     cells[cols.Date],
		Time:     cells[cols.Time],
		Duration: cells[cols.Duration],
		Upload:   cells[cols.Upload],
		Status:   cells[cols.Status],
	}
}

// IDText returns the trimmed identifier, empty when the cell is blank.
func (r RawRow) IDText() string { return CellText(r.ID) }

// TitleText returns the trimmed title, empty when the cell is blank.
func (r RawRow) TitleText() string { return CellText(r.Title) }

// Values is the normalized content of a row's data columns.
type Values struct {
	ID            string                 `json:"id"`
	Title         string                 `json:"title"`
	Date          timeparse.CalendarDate `json:"date"`
	Time          timeparse.TimeOfDay    `json:"time"`
	DurationHours float64                `json:"durationHours"`
}

// Cells returns v in layout.ColumnMap.DataColumns order.
func (v Values) Cells() []any {
	return []any{v.ID, v.Title, v.Date, v.Time, v.DurationHours}
}

// EventFields is what the calendar needs to create or update an event.
type EventFields struct {
	Title string
	Start time.Time
	End   time.Time
}

// EventToRow projects an event onto row values: the start's calendar day,
// its wall-clock time, and the length in (possibly fractional) hours.
func EventToRow(e model.Event) Values {
	return Values{
		ID:            e.ID,
		Title:         e.Title,
		Date:          timeparse.DateOf(e.Start),
		Time:          timeparse.TimeOf(e.Start),
		DurationHours: e.End.Sub(e.Start).Hours(),
	}
}

// ToEventFields validates r and composes its start and end instants in loc.
// Errors are *RowError naming the row and the offending field.
func ToEventFields(r RawRow, order timeparse.DateOrder, loc *time.Location) (EventFields, error) {
	title := r.TitleText()
	if title == "" {
		return EventFields{}, &RowError{Row: r.Number, Field: layout.FieldTitle, Err: ErrMissingTitle}
	}

	date, ok := timeparse.DateFromCell(r.Date.Value, order)
	if !ok {
		if d, textOK := timeparse.DateFromCell(r.Date.Text, order); textOK {
			date, ok = d, true
		}
	}
	if !ok {
		return EventFields{}, &RowError{Row: r.Number, Field: layout.FieldDate, Err: fmt.Errorf("%w: %s", ErrMissingDate, describe(r.Date))}
	}

	clock, err := timeparse.TimeFromCell(r.Time.Value, r.Time.Text)
	if err != nil {
		return EventFields{}, &RowError{Row: r.Number, Field: layout.FieldTime, Err: err}
	}

	hours, err := timeparse.DurationFromCell(r.Duration.Value)
	if err != nil {
		return EventFields{}, &RowError{Row: r.Number, Field: layout.FieldDuration, Err: err}
	}

	start := timeparse.Compose(date, clock, loc)
	return EventFields{
		Title: title,
		Start: start,
		End:   start.Add(timeparse.HoursToDuration(hours)),
	}, nil
}

// FieldsToRow returns the normalized row values written back after a
// successful create or update.
func FieldsToRow(id string, f EventFields) Values {
	return EventToRow(model.Event{ID: id, Title: f.Title, Start: f.Start, End: f.End})
}

// CellText renders a cell as trimmed text.
func CellText(c model.Cell) string {
	switch v := c.Value.(type) {
	case nil:
		return strings.TrimSpace(c.Text)
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// IsChecked reports whether a checkbox cell reads true: a native bool, or
// the literal true indicator as text.
func IsChecked(c model.Cell) bool {
	switch v := c.Value.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	default:
		return false
	}
}

func describe(c model.Cell) string {
	if c.IsEmpty() && c.Text == "" {
		return "empty"
	}
	if c.Text != "" {
		return strconv.Quote(c.Text)
	}
	return fmt.Sprintf("%v", c.Value)
}
