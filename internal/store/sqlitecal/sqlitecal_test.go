package sqlitecal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/steipete/sheetcal/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})
	return s
}

func TestEventLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	start := time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)

	ev, err := s.CreateEvent(ctx, "Standup", start, start.Add(15*time.Minute))
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	got, err := s.GetEvent(ctx, ev.ID)
	if err != nil || got == nil {
		t.Fatalf("GetEvent: %+v %v", got, err)
	}
	if got.Title != "Standup" || !got.Start.Equal(start) || got.Duration() != 15*time.Minute {
		t.Fatalf("unexpected event: %+v", got)
	}

	if err := s.UpdateEvent(ctx, ev.ID, "Standup 2", start, start.Add(time.Hour)); err != nil {
		t.Fatalf("UpdateEvent: %v", err)
	}
	got, _ = s.GetEvent(ctx, ev.ID)
	if got.Title != "Standup 2" || got.Duration() != time.Hour {
		t.Fatalf("update not applied: %+v", got)
	}

	if err := s.DeleteEvent(ctx, ev.ID); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}
	if got, err := s.GetEvent(ctx, ev.ID); got != nil || err != nil {
		t.Fatalf("expected missing event: %+v %v", got, err)
	}
	if err := s.DeleteEvent(ctx, ev.ID); !errors.Is(err, store.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
	if err := s.UpdateEvent(ctx, ev.ID, "x", start, start.Add(time.Hour)); !errors.Is(err, store.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound on update, got %v", err)
	}
}

func TestListEventsWindowAndOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	from := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 3)

	starts := []time.Time{
		from.Add(-time.Minute),
		to.Add(-time.Minute),
		from.Add(9 * time.Hour),
		to,
	}
	for i, st := range starts {
		if _, err := s.CreateEvent(ctx, "e", st, st.Add(time.Hour)); err != nil {
			t.Fatalf("CreateEvent %d: %v", i, err)
		}
	}

	events, err := s.ListEvents(ctx, from, to)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if !events[0].Start.Equal(from.Add(9*time.Hour)) || !events[1].Start.Equal(to.Add(-time.Minute)) {
		t.Fatalf("unexpected order: %+v", events)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cal.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	start := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	ev, err := s.CreateEvent(ctx, "Kept", start, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.GetEvent(ctx, ev.ID)
	if err != nil || got == nil || got.Title != "Kept" {
		t.Fatalf("event lost on reopen: %+v %v", got, err)
	}
}
