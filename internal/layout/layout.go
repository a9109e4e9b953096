// Package layout describes where things live on the sync sheet: the control
// cells, the first data row and the column of every row field.
package layout

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/steipete/sheetcal/internal/timeparse"
)

// Field names a row column.
type Field string

const (
	FieldID       Field = "id"
	FieldTitle    Field = "title"
	FieldDate     Field = "date"
	FieldTime     Field = "time"
	FieldDuration Field = "duration"
	FieldUpload   Field = "upload"
	FieldStatus   Field = "status"
)

// Fields lists every row field in sheet order.
var Fields = []Field{FieldID, FieldTitle, FieldDate, FieldTime, FieldDuration, FieldUpload, FieldStatus}

const (
	StatusRightOfUpload = "right_of_upload"
	StatusExplicit      = "explicit"
)

var ErrMissingLocation = errors.New("missing required location")

// ConfigError is a fatal configuration problem: a missing or invalid named
// location, header or period bound.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func configErr(field string, err error) error {
	return &ConfigError{Field: field, Err: err}
}

// Layout is the user-facing configuration surface. Columns may be given as
// fixed column references or resolved from a header row.
type Layout struct {
	Sheet            string           `json:"sheet,omitempty" yaml:"sheet,omitempty"`
	DownloadControl  string           `json:"download_control" yaml:"download_control"`
	PeriodStart      string           `json:"period_start" yaml:"period_start"`
	PeriodEnd        string           `json:"period_end" yaml:"period_end"`
	FirstDataRow     int              `json:"first_data_row" yaml:"first_data_row"`
	Columns          map[Field]string `json:"columns,omitempty" yaml:"columns,omitempty"`
	HeaderRow        int              `json:"header_row,omitempty" yaml:"header_row,omitempty"`
	Headers          map[Field]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	StatusColumnMode string           `json:"status_column_mode,omitempty" yaml:"status_column_mode,omitempty"`
	DateOrder        string           `json:"date_order,omitempty" yaml:"date_order,omitempty"`
	DateFormat       string           `json:"date_format,omitempty" yaml:"date_format,omitempty"`
	TimeFormat       string           `json:"time_format,omitempty" yaml:"time_format,omitempty"`
	DurationFormat   string           `json:"duration_format,omitempty" yaml:"duration_format,omitempty"`
}

// Default returns the classic sheet arrangement: controls in B1:B3, data
// from row 6 in columns A..G.
func Default() Layout {
	return Layout{
		DownloadControl: "B1",
		PeriodStart:     "B2",
		PeriodEnd:       "B3",
		FirstDataRow:    6,
		Columns: map[Field]string{
			FieldID:       "A",
			FieldTitle:    "B",
			FieldDate:     "C",
			FieldTime:     "D",
			FieldDuration: "E",
			FieldUpload:   "F",
		},
		StatusColumnMode: StatusRightOfUpload,
	}
}

// Compiled is a validated Layout with parsed addresses. Columns stays empty
// until ResolveColumns runs.
type Compiled struct {
	Sheet           string
	DownloadControl Address
	PeriodStart     Address
	PeriodEnd       Address
	FirstDataRow    int
	DateOrder       timeparse.DateOrder
	DateFormat      string
	TimeFormat      string
	DurationFormat  string
	Columns         ColumnMap

	source Layout
}

// Compile validates l and parses its addresses.
func (l Layout) Compile() (Compiled, error) {
	c := Compiled{
		Sheet:          strings.TrimSpace(l.Sheet),
		FirstDataRow:   l.FirstDataRow,
		DateFormat:     orDefault(l.DateFormat, "yyyy-mm-dd"),
		TimeFormat:     orDefault(l.TimeFormat, "hh:mm"),
		DurationFormat: orDefault(l.DurationFormat, "0.00"),
		source:         l,
	}

	var err error
	if c.DownloadControl, err = requireAddress("download_control", l.DownloadControl); err != nil {
		return Compiled{}, err
	}
	if c.PeriodStart, err = requireAddress("period_start", l.PeriodStart); err != nil {
		return Compiled{}, err
	}
	if c.PeriodEnd, err = requireAddress("period_end", l.PeriodEnd); err != nil {
		return Compiled{}, err
	}
	if c.FirstDataRow < 1 {
		return Compiled{}, configErr("first_data_row", fmt.Errorf("must be >= 1, got %d", l.FirstDataRow))
	}
	if l.HeaderRow >= c.FirstDataRow {
		return Compiled{}, configErr("header_row", fmt.Errorf("must be above first_data_row (%d)", c.FirstDataRow))
	}
	if c.DateOrder, err = timeparse.ParseDateOrder(l.DateOrder); err != nil {
		return Compiled{}, configErr("date_order", err)
	}
	switch l.statusMode() {
	case StatusRightOfUpload, StatusExplicit:
	default:
		return Compiled{}, configErr("status_column_mode", fmt.Errorf("unknown mode %q", l.StatusColumnMode))
	}
	if len(l.Columns) == 0 && len(l.Headers) == 0 {
		return Compiled{}, configErr("columns", fmt.Errorf("%w: columns or headers", ErrMissingLocation))
	}

	if !c.NeedsHeaders() {
		cols, err := ResolveColumns(l, nil)
		if err != nil {
			return Compiled{}, err
		}
		c.Columns = cols
	}
	return c, nil
}

// NeedsHeaders reports whether columns come from the header row.
func (c Compiled) NeedsHeaders() bool {
	return len(c.source.Columns) == 0 && len(c.source.Headers) > 0
}

// HeaderRow is the 1-based header row used for header-driven columns.
func (c Compiled) HeaderRow() int {
	if c.source.HeaderRow > 0 {
		return c.source.HeaderRow
	}
	return c.FirstDataRow - 1
}

// WithHeaders resolves header-driven columns from the header row values.
func (c Compiled) WithHeaders(header []string) (Compiled, error) {
	cols, err := ResolveColumns(c.source, header)
	if err != nil {
		return Compiled{}, err
	}
	c.Columns = cols
	return c, nil
}

func (l Layout) statusMode() string {
	mode := strings.ToLower(strings.TrimSpace(l.StatusColumnMode))
	if mode == "" {
		return StatusRightOfUpload
	}
	return mode
}

func requireAddress(name, ref string) (Address, error) {
	if strings.TrimSpace(ref) == "" {
		return Address{}, configErr(name, ErrMissingLocation)
	}
	a, err := ParseAddress(ref)
	if err != nil {
		return Address{}, configErr(name, err)
	}
	return a, nil
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

// ColumnMap holds the 1-based column index of every row field.
type ColumnMap struct {
	ID       int `json:"id"`
	Title    int `json:"title"`
	Date     int `json:"date"`
	Time     int `json:"time"`
	Duration int `json:"duration"`
	Upload   int `json:"upload"`
	Status   int `json:"status"`
}

// Get returns the column of f.
func (m ColumnMap) Get(f Field) int {
	switch f {
	case FieldID:
		return m.ID
	case FieldTitle:
		return m.Title
	case FieldDate:
		return m.Date
	case FieldTime:
		return m.Time
	case FieldDuration:
		return m.Duration
	case FieldUpload:
		return m.Upload
	case FieldStatus:
		return m.Status
	default:
		return 0
	}
}

func (m *ColumnMap) set(f Field, col int) {
	switch f {
	case FieldID:
		m.ID = col
	case FieldTitle:
		m.Title = col
	case FieldDate:
		m.Date = col
	case FieldTime:
		m.Time = col
	case FieldDuration:
		m.Duration = col
	case FieldUpload:
		m.Upload = col
	case FieldStatus:
		m.Status = col
	}
}

// DataColumns are the event-carrying columns: id, title, date, time, duration.
func (m ColumnMap) DataColumns() []int {
	return []int{m.ID, m.Title, m.Date, m.Time, m.Duration}
}

// OutputColumns are all columns of the output block, ascending and unique.
func (m ColumnMap) OutputColumns() []int {
	cols := []int{m.ID, m.Title, m.Date, m.Time, m.Duration, m.Upload, m.Status}
	slices.Sort(cols)
	return slices.Compact(cols)
}

// ResolveColumns builds the column map either from fixed column references
// or, when none are configured, by matching header labels (trimmed,
// case-insensitive) against header.
func ResolveColumns(l Layout, header []string) (ColumnMap, error) {
	var m ColumnMap
	if len(l.Columns) > 0 {
		for f, ref := range l.Columns {
			if !slices.Contains(Fields, f) {
				return ColumnMap{}, configErr("columns", fmt.Errorf("unknown field %q", f))
			}
			col, err := ParseColumn(ref)
			if err != nil {
				return ColumnMap{}, configErr("columns."+string(f), err)
			}
			m.set(f, col)
		}
	} else {
		index := make(map[string]int, len(header))
		for i, h := range header {
			key := strings.ToLower(strings.TrimSpace(h))
			if key == "" {
				continue
			}
			if _, dup := index[key]; !dup {
				index[key] = i + 1
			}
		}
		for f, label := range l.Headers {
			if !slices.Contains(Fields, f) {
				return ColumnMap{}, configErr("headers", fmt.Errorf("unknown field %q", f))
			}
			col, ok := index[strings.ToLower(strings.TrimSpace(label))]
			if !ok {
				return ColumnMap{}, configErr("headers."+string(f), fmt.Errorf("%w: header %q not found", ErrMissingLocation, label))
			}
			m.set(f, col)
		}
	}

	if m.Status == 0 && l.statusMode() == StatusRightOfUpload && m.Upload > 0 {
		m.Status = m.Upload + 1
	}

	for _, f := range Fields {
		if m.Get(f) == 0 {
			return ColumnMap{}, configErr("columns."+string(f), ErrMissingLocation)
		}
	}

	seen := make(map[int]Field, len(Fields))
	for _, f := range Fields {
		col := m.Get(f)
		if other, dup := seen[col]; dup {
			return ColumnMap{}, configErr("columns."+string(f), fmt.Errorf("column %s already used by %s", ColumnLetter(col), other))
		}
		seen[col] = f
	}
	return m, nil
}
