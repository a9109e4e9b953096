package sheetsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/steipete/sheetcal/internal/layout"
	"github.com/steipete/sheetcal/internal/model"
	"github.com/steipete/sheetcal/internal/store/memory"
	"github.com/steipete/sheetcal/internal/timeparse"
)

// Default layout columns.
const (
	colID = iota + 1
	colTitle
	colDate
	colTime
	colDuration
	colUpload
	colStatus
)

var errBackend = errors.New("backend unavailable")

type fixture struct {
	sheet  *memory.Sheet
	cal    *memory.Calendar
	engine *Engine
	loc    *time.Location
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	c, err := layout.Default().Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	f := &fixture{sheet: memory.NewSheet(), cal: memory.NewCalendar(), loc: time.UTC}
	f.engine, err = NewEngine(context.Background(), f.sheet, f.cal, c, f.loc)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return f
}

func (f *fixture) setRow(row int, id, title string, date, clock, hours any) {
	f.sheet.Set(row, colID, id)
	f.sheet.Set(row, colTitle, title)
	f.sheet.Set(row, colDate, date)
	f.sheet.Set(row, colTime, clock)
	f.sheet.Set(row, colDuration, hours)
	f.sheet.Set(row, colUpload, true)
}

func day(y int, m time.Month, d int) timeparse.CalendarDate {
	return timeparse.CalendarDate{Year: y, Month: m, Day: d}
}

func text(v any) string {
	s, _ := v.(string)
	return s
}

// failingCalendar fails every call whose title or id is listed.
type failingCalendar struct {
	*memory.Calendar
	failTitles map[string]bool
	failList   bool
}

func (c *failingCalendar) CreateEvent(ctx context.Context, title string, start, end time.Time) (model.Event, error) {
	if c.failTitles[title] {
		return model.Event{}, errBackend
	}
	return c.Calendar.CreateEvent(ctx, title, start, end)
}

func (c *failingCalendar) ListEvents(ctx context.Context, start, end time.Time) ([]model.Event, error) {
	if c.failList {
		return nil, errBackend
	}
	return c.Calendar.ListEvents(ctx, start, end)
}

// unorderedCalendar returns events in a fixed order regardless of start.
type unorderedCalendar struct {
	*memory.Calendar
	events []model.Event
}

func (c *unorderedCalendar) ListEvents(context.Context, time.Time, time.Time) ([]model.Event, error) {
	return c.events, nil
}
