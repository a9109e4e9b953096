// Package icsfile is a CalendarStore over a local iCalendar file. The file
// is re-read on every call so edits made by other tools are picked up.
package icsfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/steipete/sheetcal/internal/model"
	"github.com/steipete/sheetcal/internal/store"
)

const productName = "sheetcal"

// Store reads and writes one .ics file.
type Store struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("ics: %w", store.ErrMissingLocation)
	}
	return &Store{path: path, now: time.Now}, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) load() (*ical.Calendar, error) {
	body, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		cal := ical.NewCalendarFor(productName)
		cal.SetMethod(ical.MethodPublish)
		return cal, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return cal, nil
}

func (s *Store) save(cal *ical.Calendar) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".sheetcal-*.ics")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := cal.SerializeTo(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode calendar: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

func find(cal *ical.Calendar, id string) *ical.VEvent {
	for _, ve := range cal.Events() {
		if ve.Id() == id {
			return ve
		}
	}
	return nil
}

func toModel(ve *ical.VEvent) (model.Event, error) {
	start, err := ve.GetStartAt()
	if err != nil {
		return model.Event{}, fmt.Errorf("event %s: start: %w", ve.Id(), err)
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return model.Event{}, fmt.Errorf("event %s: end: %w", ve.Id(), err)
	}
	title := ""
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		title = p.Value
	}
	return model.Event{ID: ve.Id(), Title: title, Start: start, End: end}, nil
}

func (s *Store) setFields(ve *ical.VEvent, title string, start, end time.Time) {
	ve.SetSummary(title)
	ve.SetStartAt(start)
	ve.SetEndAt(end)
	ve.SetDtStampTime(s.now())
}

func (s *Store) GetEvent(_ context.Context, id string) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cal, err := s.load()
	if err != nil {
		return nil, err
	}
	ve := find(cal, id)
	if ve == nil {
		return nil, nil
	}
	ev, err := toModel(ve)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *Store) CreateEvent(_ context.Context, title string, start, end time.Time) (model.Event, error) {
	if err := store.ValidateEvent(title, start, end); err != nil {
		return model.Event{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cal, err := s.load()
	if err != nil {
		return model.Event{}, err
	}
	id := uuid.New().String()
	s.setFields(cal.AddEvent(id), title, start, end)
	if err := s.save(cal); err != nil {
		return model.Event{}, err
	}
	return model.Event{ID: id, Title: title, Start: start, End: end}, nil
}

func (s *Store) UpdateEvent(_ context.Context, id, title string, start, end time.Time) error {
	if err := store.ValidateEvent(title, start, end); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cal, err := s.load()
	if err != nil {
		return err
	}
	ve := find(cal, id)
	if ve == nil {
		return fmt.Errorf("update %q: %w", id, store.ErrEventNotFound)
	}
	s.setFields(ve, title, start, end)
	return s.save(cal)
}

func (s *Store) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cal, err := s.load()
	if err != nil {
		return err
	}
	if find(cal, id) == nil {
		return fmt.Errorf("delete %q: %w", id, store.ErrEventNotFound)
	}
	cal.RemoveEvent(id)
	return s.save(cal)
}

// ListEvents skips events whose times cannot be read.
func (s *Store) ListEvents(_ context.Context, start, endExclusive time.Time) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cal, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]model.Event, 0)
	for _, ve := range cal.Events() {
		ev, err := toModel(ve)
		if err != nil {
			slog.Warn("skipping unreadable event", "path", s.path, "err", err)
			continue
		}
		if store.InWindow(ev, start, endExclusive) {
			out = append(out, ev)
		}
	}
	store.SortEvents(out)
	return out, nil
}
