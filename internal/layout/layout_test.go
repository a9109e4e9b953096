package layout

import (
	"errors"
	"testing"

	"github.com/steipete/sheetcal/internal/timeparse"
)

func TestParseAddressAndRange(t *testing.T) {
	t.Parallel()

	a, err := ParseAddress("'My ''Sheet'''!$B$12")
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	if a != (Address{Row: 12, Col: 2}) || a.String() != "B12" {
		t.Fatalf("unexpected address: %#v", a)
	}

	r, err := ParseRange("Sheet1!F9:D7")
	if err != nil {
		t.Fatalf("ParseRange: %v", err)
	}
	if r != (Range{Row: 7, LastRow: 9, Col: 4, LastCol: 6}) {
		t.Fatalf("unexpected range: %#v", r)
	}
	if r.String() != "D7:F9" || r.SingleCell() {
		t.Fatalf("unexpected range rendering: %s", r)
	}

	for _, bad := range []string{"", "B", "12", "B0", "ABCD1", "B1:"} {
		if _, err := ParseRange(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestSplitSheet(t *testing.T) {
	t.Parallel()

	sheet, rest := SplitSheet("'Q1 ''plan'''!A1:B2")
	if sheet != "Q1 'plan'" || rest != "A1:B2" {
		t.Fatalf("got %q %q", sheet, rest)
	}
	if QuoteSheet(sheet) != "'Q1 ''plan'''" {
		t.Fatalf("QuoteSheet=%q", QuoteSheet(sheet))
	}
}

func TestColumnLetters(t *testing.T) {
	t.Parallel()

	for col, letters := range map[int]string{1: "A", 26: "Z", 27: "AA", 52: "AZ", 703: "AAA"} {
		if got := ColumnLetter(col); got != letters {
			t.Fatalf("ColumnLetter(%d)=%q want %q", col, got, letters)
		}
		if got := ColumnIndex(letters); got != col {
			t.Fatalf("ColumnIndex(%q)=%d want %d", letters, got, col)
		}
	}
	if n, err := ParseColumn("7"); err != nil || n != 7 {
		t.Fatalf("ParseColumn numeric: %d %v", n, err)
	}
}

func TestCompileDefault(t *testing.T) {
	t.Parallel()

	c, err := Default().Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := ColumnMap{ID: 1, Title: 2, Date: 3, Time: 4, Duration: 5, Upload: 6, Status: 7}
	if c.Columns != want {
		t.Fatalf("columns=%#v want %#v", c.Columns, want)
	}
	if c.DownloadControl != (Address{Row: 1, Col: 2}) || c.FirstDataRow != 6 {
		t.Fatalf("unexpected compiled layout: %#v", c)
	}
	if c.DateOrder != timeparse.DayFirst || c.DateFormat != "yyyy-mm-dd" {
		t.Fatalf("unexpected defaults: %#v", c)
	}
	if got := c.Columns.OutputColumns(); len(got) != 7 || got[0] != 1 || got[6] != 7 {
		t.Fatalf("OutputColumns=%v", got)
	}
}

func TestCompileErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		mutate func(*Layout)
		field  string
	}{
		{name: "missing download", mutate: func(l *Layout) { l.DownloadControl = "" }, field: "download_control"},
		{name: "bad period", mutate: func(l *Layout) { l.PeriodEnd = "nope" }, field: "period_end"},
		{name: "first row", mutate: func(l *Layout) { l.FirstDataRow = 0 }, field: "first_data_row"},
		{name: "date order", mutate: func(l *Layout) { l.DateOrder = "mdy" }, field: "date_order"},
		{name: "explicit status missing", mutate: func(l *Layout) { l.StatusColumnMode = StatusExplicit }, field: "columns.status"},
		{name: "duplicate column", mutate: func(l *Layout) { l.Columns[FieldTitle] = "A" }, field: "columns.title"},
		{name: "no columns", mutate: func(l *Layout) { l.Columns = nil }, field: "columns"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			l := Default()
			tc.mutate(&l)
			_, err := l.Compile()
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if ce.Field != tc.field {
				t.Fatalf("field=%q want %q (%v)", ce.Field, tc.field, err)
			}
		})
	}
}

func TestHeaderDrivenColumns(t *testing.T) {
	t.Parallel()

	l := Default()
	l.Columns = nil
	l.HeaderRow = 5
	l.StatusColumnMode = StatusExplicit
	l.Headers = map[Field]string{
		FieldID:       "Event ID",
		FieldTitle:    "Title",
		FieldDate:     "Date",
		FieldTime:     "Start",
		FieldDuration: "Hours",
		FieldUpload:   "Push",
		FieldStatus:   "Result",
	}

	c, err := l.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !c.NeedsHeaders() || c.HeaderRow() != 5 {
		t.Fatalf("expected header-driven layout")
	}

	c, err = c.WithHeaders([]string{"Result", " title ", "DATE", "start", "hours", "", "push", "event id"})
	if err != nil {
		t.Fatalf("WithHeaders: %v", err)
	}
	want := ColumnMap{ID: 8, Title: 2, Date: 3, Time: 4, Duration: 5, Upload: 7, Status: 1}
	if c.Columns != want {
		t.Fatalf("columns=%#v want %#v", c.Columns, want)
	}

	_, err = c.WithHeaders([]string{"Title", "Date"})
	if !errors.Is(err, ErrMissingLocation) {
		t.Fatalf("expected missing header error, got %v", err)
	}
}
