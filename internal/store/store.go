// Package store holds what the calendar backends share: sentinel errors,
// event validation and the ordering every listing follows.
package store

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/steipete/sheetcal/internal/model"
)

var (
	ErrEventNotFound   = errors.New("event not found")
	ErrInvalidEvent    = errors.New("invalid event")
	ErrUnknownBackend  = errors.New("unknown calendar backend")
	ErrMissingLocation = errors.New("backend location is required")
)

// ValidateEvent checks the fields of a create or update.
func ValidateEvent(title string, start, end time.Time) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: empty title", ErrInvalidEvent)
	}
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: missing start or end", ErrInvalidEvent)
	}
	if !end.After(start) {
		return fmt.Errorf("%w: end %s is not after start %s", ErrInvalidEvent, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return nil
}

// InWindow reports whether e starts in [from, to). Events that began
// before from but run into the window are excluded: each downloaded row is
// one event on the day it starts, so a download of the next period would
// list it a second time.
func InWindow(e model.Event, from, to time.Time) bool {
	return !e.Start.Before(from) && e.Start.Before(to)
}

// SortEvents orders events by start, then id.
func SortEvents(events []model.Event) {
	slices.SortStableFunc(events, func(a, b model.Event) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
