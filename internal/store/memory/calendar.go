package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/steipete/sheetcal/internal/model"
	"github.com/steipete/sheetcal/internal/store"
)

// Calendar is a map of events keyed by generated id.
type Calendar struct {
	mu     sync.RWMutex
	events map[string]model.Event
	newID  func() string
}

func NewCalendar() *Calendar {
	return &Calendar{
		events: make(map[string]model.Event),
		newID:  func() string { return uuid.New().String() },
	}
}

// Put inserts or replaces an event as-is.
func (c *Calendar) Put(e model.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events[e.ID] = e
}

// Len returns the number of live events.
func (c *Calendar) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.events)
}

func (c *Calendar) GetEvent(_ context.Context, id string) (*model.Event, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.events[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (c *Calendar) CreateEvent(_ context.Context, title string, start, end time.Time) (model.Event, error) {
	if err := store.ValidateEvent(title, start, end); err != nil {
		return model.Event{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e := model.Event{ID: c.newID(), Title: title, Start: start, End: end}
	c.events[e.ID] = e
	return e, nil
}

func (c *Calendar) UpdateEvent(_ context.Context, id, title string, start, end time.Time) error {
	if err := store.ValidateEvent(title, start, end); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.events[id]; !ok {
		return fmt.Errorf("update %q: %w", id, store.ErrEventNotFound)
	}
	c.events[id] = model.Event{ID: id, Title: title, Start: start, End: end}
	return nil
}

func (c *Calendar) DeleteEvent(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.events[id]; !ok {
		return fmt.Errorf("delete %q: %w", id, store.ErrEventNotFound)
	}
	delete(c.events, id)
	return nil
}

// ListEvents selects events starting in [start, endExclusive).
func (c *Calendar) ListEvents(_ context.Context, start, endExclusive time.Time) ([]model.Event, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	events := make([]model.Event, 0)
	for _, e := range c.events {
		if store.InWindow(e, start, endExclusive) {
			events = append(events, e)
		}
	}
	store.SortEvents(events)
	return events, nil
}
