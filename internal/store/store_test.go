package store

import (
	"errors"
	"testing"
	"time"

	"github.com/steipete/sheetcal/internal/model"
)

func TestValidateEvent(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	testCases := []struct {
		name    string
		title   string
		end     time.Time
		wantErr bool
	}{
		{name: "ok", title: "T", end: start.Add(time.Minute)},
		{name: "empty title", title: " ", end: start.Add(time.Minute), wantErr: true},
		{name: "zero length", title: "T", end: start, wantErr: true},
		{name: "reversed", title: "T", end: start.Add(-time.Minute), wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateEvent(tc.title, start, tc.end)
			if tc.wantErr != (err != nil) {
				t.Fatalf("err=%v wantErr=%v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidEvent) {
				t.Fatalf("expected ErrInvalidEvent, got %v", err)
			}
		})
	}
}

func TestInWindowIsHalfOpen(t *testing.T) {
	t.Parallel()

	from := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	if !InWindow(model.Event{Start: from}, from, to) {
		t.Fatalf("window start should be included")
	}
	if InWindow(model.Event{Start: to}, from, to) {
		t.Fatalf("window end should be excluded")
	}
	overlap := model.Event{Start: from.Add(-time.Hour), End: from.Add(time.Hour)}
	if InWindow(overlap, from, to) {
		t.Fatalf("event starting before the window should be excluded")
	}
}
