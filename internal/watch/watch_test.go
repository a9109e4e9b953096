package watch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/steipete/sheetcal/internal/layout"
	"github.com/steipete/sheetcal/internal/model"
	"github.com/steipete/sheetcal/internal/sheetsync"
	"github.com/steipete/sheetcal/internal/store/memory"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(t *testing.T) (*sheetsync.Engine, *memory.Sheet, *memory.Calendar) {
	t.Helper()

	c, err := layout.Default().Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	sheet := memory.NewSheet()
	cal := memory.NewCalendar()
	e, err := sheetsync.NewEngine(context.Background(), sheet, cal, c, time.UTC)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e, sheet, cal
}

func TestNewValidatesSchedule(t *testing.T) {
	t.Parallel()

	e, _, _ := newEngine(t)
	if _, err := New(e, Options{Schedule: "not a schedule"}); err == nil {
		t.Fatalf("expected schedule error")
	}
	w, err := New(e, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if w.Schedule() != DefaultSchedule {
		t.Fatalf("unexpected default schedule %q", w.Schedule())
	}
	if _, err := New(nil, Options{}); err == nil {
		t.Fatalf("expected error for nil engine")
	}
}

func TestPollDownloadsAndUploads(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e, sheet, cal := newEngine(t)

	start := time.Date(2024, 1, 11, 9, 0, 0, 0, time.UTC)
	cal.Put(model.Event{ID: "e1", Title: "Standup", Start: start, End: start.Add(15 * time.Minute)})
	sheet.Set(1, 2, true)
	sheet.Set(2, 2, "2024-01-10")
	sheet.Set(3, 2, "2024-01-12")

	w, err := New(e, Options{Logger: quietLogger(), now: func() time.Time { return start }})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tick := w.Poll(ctx)
	if tick.Err != nil {
		t.Fatalf("Poll: %v", tick.Err)
	}
	if tick.Download == nil || tick.Download.Events != 1 {
		t.Fatalf("expected one downloaded event, got %+v", tick.Download)
	}
	if sheet.Get(1, 2) != false {
		t.Fatalf("download control not reset")
	}
	if len(tick.Rows) != 0 {
		t.Fatalf("downloaded rows are unchecked, got %+v", tick.Rows)
	}

	// Edit the downloaded row and tick its upload checkbox.
	sheet.Set(6, 2, "Standup (moved)")
	sheet.Set(6, 6, true)

	tick = w.Poll(ctx)
	if tick.Err != nil || tick.Download != nil {
		t.Fatalf("unexpected tick: %+v", tick)
	}
	if len(tick.Rows) != 1 || tick.Rows[0].Outcome != sheetsync.OutcomeUpdated {
		t.Fatalf("unexpected rows: %+v", tick.Rows)
	}
	ev, _ := cal.GetEvent(ctx, "e1")
	if ev == nil || ev.Title != "Standup (moved)" {
		t.Fatalf("event not updated: %+v", ev)
	}

	if tick = w.Poll(ctx); !tick.Idle() {
		t.Fatalf("expected idle tick, got %+v", tick)
	}
}

type stubEngine struct {
	requested   bool
	requestErr  error
	downloadErr error
	uploads     atomic.Int32
}

func (s *stubEngine) DownloadRequested(context.Context) (bool, error) {
	return s.requested, s.requestErr
}

func (s *stubEngine) Download(context.Context, *sheetsync.Period) (sheetsync.DownloadResult, error) {
	return sheetsync.DownloadResult{}, s.downloadErr
}

func (s *stubEngine) UploadChecked(context.Context) ([]sheetsync.RowResult, error) {
	s.uploads.Add(1)
	return nil, nil
}

func TestPollErrors(t *testing.T) {
	t.Parallel()

	errRead := errors.New("read failed")
	stub := &stubEngine{requestErr: errRead}
	w, err := New(stub, Options{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tick := w.Poll(context.Background())
	if !errors.Is(tick.Err, errRead) || tick.Error == "" {
		t.Fatalf("expected read error, got %+v", tick)
	}
	if stub.uploads.Load() != 0 {
		t.Fatalf("uploads should not run after a failed control read")
	}

	errDownload := errors.New("period invalid")
	stub = &stubEngine{requested: true, downloadErr: errDownload}
	w, _ = New(stub, Options{Logger: quietLogger()})
	tick = w.Poll(context.Background())
	if !errors.Is(tick.Err, errDownload) {
		t.Fatalf("expected download error, got %+v", tick)
	}
	if stub.uploads.Load() != 1 {
		t.Fatalf("uploads should still run after a failed download")
	}
}

func TestRunPollsOnSchedule(t *testing.T) {
	t.Parallel()

	stub := &stubEngine{}
	ticks := make(chan Tick, 4)
	w, err := New(stub, Options{
		Schedule: "@every 1s",
		Logger:   quietLogger(),
		OnTick: func(t Tick) {
			select {
			case ticks <- t:
			default:
			}
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case <-ticks:
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatalf("no poll within 5s")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop")
	}
}
