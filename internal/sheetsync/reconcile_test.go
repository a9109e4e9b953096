package sheetsync

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/steipete/sheetcal/internal/layout"
	"github.com/steipete/sheetcal/internal/model"
	"github.com/steipete/sheetcal/internal/store/memory"
)

func TestReconcileCreateThenUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.setRow(6, "", "Standup", "10/01/2024", "9:30", 0.25)

	first := f.engine.Upload(ctx, 6, 6, false)
	if len(first) != 1 || first[0].Outcome != OutcomeCreated {
		t.Fatalf("unexpected first result: %+v", first)
	}
	id := text(f.sheet.Get(6, colID))
	if id == "" || id != first[0].EventID {
		t.Fatalf("expected id written back, got %q", id)
	}
	if got := f.sheet.Get(6, colDate); got != day(2024, time.January, 10) {
		t.Fatalf("expected normalized date, got %#v", got)
	}
	if got := text(f.sheet.Get(6, colStatus)); got != "Created new event." {
		t.Fatalf("unexpected status %q", got)
	}
	if f.sheet.Get(6, colUpload) != false {
		t.Fatalf("expected checkbox reset")
	}

	f.sheet.Set(6, colUpload, true)
	second := f.engine.Upload(ctx, 6, 6, false)
	if second[0].Outcome != OutcomeUpdated || second[0].EventID != id {
		t.Fatalf("expected update of %s, got %+v", id, second[0])
	}
	if f.cal.Len() != 1 {
		t.Fatalf("expected one event, got %d", f.cal.Len())
	}
	ev, _ := f.cal.GetEvent(ctx, id)
	want := time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)
	if ev == nil || !ev.Start.Equal(want) || ev.Duration() != 15*time.Minute {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestReconcileUnknownIDCreates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.setRow(6, "gone", "Review", day(2024, time.February, 1), 0.5, 1.0)

	res := f.engine.Upload(ctx, 6, 6, false)
	if res[0].Outcome != OutcomeCreated || res[0].EventID == "gone" {
		t.Fatalf("unexpected result: %+v", res[0])
	}
	if got := text(f.sheet.Get(6, colID)); got != res[0].EventID {
		t.Fatalf("id cell=%q want %q", got, res[0].EventID)
	}
}

func TestReconcileDeleteOnEmptyTitle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	start := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	f.cal.Put(model.Event{ID: "ev1", Title: "Old", Start: start, End: start.Add(time.Hour)})
	f.setRow(6, "ev1", "", day(2024, time.January, 10), "09:00", 1.0)

	res := f.engine.Upload(ctx, 6, 6, false)
	if res[0].Outcome != OutcomeDeleted {
		t.Fatalf("unexpected result: %+v", res[0])
	}
	if f.cal.Len() != 0 {
		t.Fatalf("event not deleted")
	}
	for _, col := range []int{colID, colTitle, colDate, colTime, colDuration} {
		if v := f.sheet.Get(6, col); v != nil {
			t.Fatalf("column %d not cleared: %#v", col, v)
		}
	}
	if got := text(f.sheet.Get(6, colStatus)); got != "Deleted event (empty title)." {
		t.Fatalf("unexpected status %q", got)
	}
}

func TestReconcileEmptyRowIsNoop(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.sheet.Set(6, colUpload, true)
	res := f.engine.Upload(context.Background(), 6, 6, false)
	if res[0].Outcome != OutcomeNoop || res[0].Err != nil {
		t.Fatalf("unexpected result: %+v", res[0])
	}
	if f.cal.Len() != 0 || f.sheet.Get(6, colUpload) != false {
		t.Fatalf("no-op touched the calendar or left the checkbox set")
	}
}

func TestReconcileStaleIDCleanup(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.sheet.Set(6, colID, "missing")
	f.sheet.Set(6, colDate, "leave me")
	f.sheet.Set(6, colUpload, true)

	res := f.engine.Upload(context.Background(), 6, 6, false)
	if res[0].Outcome != OutcomeStaleID || res[0].Err != nil {
		t.Fatalf("unexpected result: %+v", res[0])
	}
	if f.sheet.Get(6, colID) != nil {
		t.Fatalf("stale id not cleared")
	}
	if f.sheet.Get(6, colDate) != "leave me" {
		t.Fatalf("only the id cell should be cleared")
	}
	if got := text(f.sheet.Get(6, colStatus)); !strings.Contains(got, "not found") {
		t.Fatalf("unexpected status %q", got)
	}
}

func TestReconcileBatchIsolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.setRow(6, "", "One", "2024-01-10", "08:00", 1.0)
	f.setRow(7, "", "Two", "2024-01-10", "09:00", 0.0)
	f.setRow(8, "", "Three", "2024-01-10", "10:00", 2.0)

	res := f.engine.Upload(ctx, 6, 8, false)
	if len(res) != 3 {
		t.Fatalf("expected 3 results, got %d", len(res))
	}
	if res[0].Outcome != OutcomeCreated || res[2].Outcome != OutcomeCreated {
		t.Fatalf("siblings should succeed: %+v", res)
	}
	if res[1].Outcome != OutcomeFailed || !strings.Contains(res[1].Error, "row 7") {
		t.Fatalf("expected row 7 validation failure, got %+v", res[1])
	}
	status := text(f.sheet.Get(7, colStatus))
	if !strings.HasPrefix(status, "Error: ") || !strings.Contains(status, string(layout.FieldDuration)) {
		t.Fatalf("unexpected status %q", status)
	}
	for row := 6; row <= 8; row++ {
		if f.sheet.Get(row, colUpload) != false {
			t.Fatalf("row %d checkbox not reset", row)
		}
	}
	if f.cal.Len() != 2 {
		t.Fatalf("expected 2 events, got %d", f.cal.Len())
	}
}

func TestReconcileStoreErrorIsRowScoped(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, err := layout.Default().Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	sheet := memory.NewSheet()
	cal := &failingCalendar{Calendar: memory.NewCalendar(), failTitles: map[string]bool{"Broken": true}}
	engine, err := NewEngine(ctx, sheet, cal, c, time.UTC)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	for i, title := range []string{"Broken", "Fine"} {
		row := 6 + i
		sheet.Set(row, colTitle, title)
		sheet.Set(row, colDate, "2024-01-10")
		sheet.Set(row, colTime, "10:00")
		sheet.Set(row, colDuration, 1.0)
		sheet.Set(row, colUpload, true)
	}

	res := engine.Upload(ctx, 6, 7, false)
	if res[0].Outcome != OutcomeFailed || res[1].Outcome != OutcomeCreated {
		t.Fatalf("unexpected results: %+v", res)
	}
	if got := text(sheet.Get(6, colStatus)); !strings.Contains(got, errBackend.Error()) {
		t.Fatalf("unexpected status %q", got)
	}
	if sheet.Get(6, colUpload) != false {
		t.Fatalf("checkbox not reset after failure")
	}
}

func TestReconcileVerifySkipsUnchecked(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.setRow(6, "", "Checked", "2024-01-10", "08:00", 1.0)
	f.setRow(7, "", "Unchecked", "2024-01-10", "09:00", 1.0)
	f.sheet.Set(7, colUpload, false)

	res := f.engine.Upload(context.Background(), 6, 7, true)
	if len(res) != 1 || res[0].Row != 6 {
		t.Fatalf("expected only row 6, got %+v", res)
	}
	if f.sheet.Get(7, colStatus) != nil {
		t.Fatalf("unchecked row should be untouched")
	}
}

func TestUploadClampsToDataRows(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if res := f.engine.Upload(context.Background(), 1, 5, false); res != nil {
		t.Fatalf("rows above the data region must not be reconciled: %+v", res)
	}
}

func TestReconcileFormatsWrittenRow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.setRow(6, "", "Dentist", "15/01/2024", "9:30", "1.5")

	res := f.engine.Upload(context.Background(), 6, 6, false)
	if len(res) != 1 || res[0].Outcome != OutcomeCreated {
		t.Fatalf("unexpected result: %+v", res)
	}
	for col, want := range map[int]string{colDate: "yyyy-mm-dd", colTime: "hh:mm", colDuration: "0.00"} {
		if got := f.sheet.Format(6, col); got != want {
			t.Fatalf("column %d format = %q, want %q", col, got, want)
		}
	}
	if got := f.sheet.Format(7, colDate); got != "" {
		t.Fatalf("format leaked to row 7: %q", got)
	}
	if !strings.Contains(Summary(res), "2024-01-15 09:30") {
		t.Fatalf("summary lacks the event start: %s", Summary(res))
	}
}

// cancellingCalendar cancels the batch once its first event is created.
type cancellingCalendar struct {
	*memory.Calendar
	cancel context.CancelFunc
}

func (c *cancellingCalendar) CreateEvent(ctx context.Context, title string, start, end time.Time) (model.Event, error) {
	ev, err := c.Calendar.CreateEvent(ctx, title, start, end)
	c.cancel()
	return ev, err
}

func TestReconcileCancelledBatchLeavesRemainingRows(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, err := layout.Default().Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	sheet := memory.NewSheet()
	cal := &cancellingCalendar{Calendar: memory.NewCalendar(), cancel: cancel}
	engine, err := NewEngine(context.Background(), sheet, cal, c, time.UTC)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	for i, title := range []string{"First", "Second"} {
		row := 6 + i
		sheet.Set(row, colTitle, title)
		sheet.Set(row, colDate, "2024-01-10")
		sheet.Set(row, colTime, "10:00")
		sheet.Set(row, colDuration, 1.0)
		sheet.Set(row, colUpload, true)
	}

	res := engine.Upload(ctx, 6, 7, false)
	if len(res) != 1 || res[0].Row != 6 || res[0].Outcome != OutcomeCreated {
		t.Fatalf("expected only row 6 reported, got %+v", res)
	}
	if sheet.Get(7, colStatus) != nil || sheet.Get(7, colUpload) != true {
		t.Fatalf("row 7 was touched: status=%v upload=%v", sheet.Get(7, colStatus), sheet.Get(7, colUpload))
	}
}
