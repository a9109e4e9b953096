// Package gcal is the CalendarStore backed by the Google Calendar API.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"
	gapi "google.golang.org/api/googleapi"

	"github.com/steipete/sheetcal/internal/model"
	"github.com/steipete/sheetcal/internal/store"
)

const (
	PrimaryCalendarID = "primary"
	statusCancelled   = "cancelled"
	listPageSize      = 250
)

// Store manages events of one calendar.
type Store struct {
	svc        *calendar.Service
	calendarID string
	timeZone   string
	loc        *time.Location
}

// New returns a store for calendarID; empty means the primary calendar.
func New(svc *calendar.Service, calendarID string) *Store {
	calendarID = strings.TrimSpace(calendarID)
	if calendarID == "" {
		calendarID = PrimaryCalendarID
	}
	return &Store{svc: svc, calendarID: calendarID}
}

// CalendarID returns the calendar this store writes to.
func (s *Store) CalendarID() string { return s.calendarID }

// Location fetches the calendar's configured time zone.
func (s *Store) Location(ctx context.Context) (*time.Location, error) {
	cal, err := s.svc.CalendarList.Get(s.calendarID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar %q: %w", s.calendarID, err)
	}
	if cal.TimeZone == "" {
		return nil, fmt.Errorf("calendar %q has no timezone set", s.calendarID)
	}
	loc, err := time.LoadLocation(cal.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid calendar timezone %q: %w", cal.TimeZone, err)
	}
	s.timeZone = cal.TimeZone
	s.loc = loc
	return loc, nil
}

// SetLocation sets the zone all-day events without their own zone are read
// in. It should match the zone the sheet is read in.
func (s *Store) SetLocation(loc *time.Location) {
	s.loc = loc
}

func (s *Store) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	ev, err := s.svc.Events.Get(s.calendarID, id).Context(ctx).Do()
	if err != nil {
		if isGone(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	if ev.Status == statusCancelled {
		return nil, nil
	}
	out, err := s.fromAPI(ev)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) CreateEvent(ctx context.Context, title string, start, end time.Time) (model.Event, error) {
	if err := store.ValidateEvent(title, start, end); err != nil {
		return model.Event{}, err
	}
	ev := &calendar.Event{
		Summary: title,
		Start:   s.eventTime(start),
		End:     s.eventTime(end),
	}
	created, err := s.svc.Events.Insert(s.calendarID, ev).Context(ctx).Do()
	if err != nil {
		return model.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return s.fromAPI(created)
}

func (s *Store) UpdateEvent(ctx context.Context, id, title string, start, end time.Time) error {
	if err := store.ValidateEvent(title, start, end); err != nil {
		return err
	}
	patch := &calendar.Event{
		Summary: title,
		Start:   s.eventTime(start),
		End:     s.eventTime(end),
	}
	if _, err := s.svc.Events.Patch(s.calendarID, id, patch).Context(ctx).Do(); err != nil {
		if isGone(err) {
			return fmt.Errorf("update %q: %w", id, store.ErrEventNotFound)
		}
		return fmt.Errorf("patch event %s: %w", id, err)
	}
	return nil
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	if err := s.svc.Events.Delete(s.calendarID, id).Context(ctx).Do(); err != nil {
		if isGone(err) {
			return fmt.Errorf("delete %q: %w", id, store.ErrEventNotFound)
		}
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	return nil
}

// ListEvents expands recurring events into instances and keeps only those
// starting inside the window; the API also returns events that merely
// overlap it.
func (s *Store) ListEvents(ctx context.Context, start, endExclusive time.Time) ([]model.Event, error) {
	var out []model.Event
	pageToken := ""
	for {
		call := s.svc.Events.List(s.calendarID).
			TimeMin(start.Format(time.RFC3339)).
			TimeMax(endExclusive.Format(time.RFC3339)).
			MaxResults(listPageSize).
			SingleEvents(true).
			OrderBy("startTime")
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		for _, item := range resp.Items {
			if item == nil || item.Status == statusCancelled {
				continue
			}
			ev, err := s.fromAPI(item)
			if err != nil {
				return nil, err
			}
			if store.InWindow(ev, start, endExclusive) {
				out = append(out, ev)
			}
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	store.SortEvents(out)
	return out, nil
}

func (s *Store) eventTime(t time.Time) *calendar.EventDateTime {
	return &calendar.EventDateTime{DateTime: t.Format(time.RFC3339), TimeZone: s.timeZone}
}

func (s *Store) fromAPI(ev *calendar.Event) (model.Event, error) {
	start, err := parseEventTime(ev.Start, s.loc)
	if err != nil {
		return model.Event{}, fmt.Errorf("event %s start: %w", ev.Id, err)
	}
	end, err := parseEventTime(ev.End, s.loc)
	if err != nil {
		return model.Event{}, fmt.Errorf("event %s end: %w", ev.Id, err)
	}
	return model.Event{ID: ev.Id, Title: ev.Summary, Start: start, End: end}, nil
}

// parseEventTime accepts timed and all-day values. All-day dates are
// midnight in the event's zone, else in loc, else in the local zone.
func parseEventTime(t *calendar.EventDateTime, loc *time.Location) (time.Time, error) {
	if t == nil {
		return time.Time{}, errors.New("missing time")
	}
	if t.DateTime != "" {
		return time.Parse(time.RFC3339, t.DateTime)
	}
	if t.Date != "" {
		if loc == nil {
			loc = time.Local
		}
		if t.TimeZone != "" {
			if l, err := time.LoadLocation(t.TimeZone); err == nil {
				loc = l
			}
		}
		return time.ParseInLocation("2006-01-02", t.Date, loc)
	}
	return time.Time{}, errors.New("empty time")
}

func isGone(err error) bool {
	var gerr *gapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone
}
