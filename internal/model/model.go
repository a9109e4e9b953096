// Package model holds the values shared between the sheet side and the
// calendar side of a sync.
package model

import "time"

// Event is a calendar entry as seen through a CalendarStore. End is always
// after Start.
type Event struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End - Start.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// In returns e with Start and End expressed in loc.
func (e Event) In(loc *time.Location) Event {
	if loc == nil {
		return e
	}
	e.Start = e.Start.In(loc)
	e.End = e.End.In(loc)
	return e
}

// Cell is one spreadsheet cell. Value holds the native value (string,
// float64, bool, time.Time, timeparse.CalendarDate, timeparse.TimeOfDay or
// nil); Text is the rendered display string when the store knows it.
type Cell struct {
	Value any    `json:"value"`
	Text  string `json:"text,omitempty"`
}

// IsEmpty reports whether the cell holds no value.
func (c Cell) IsEmpty() bool {
	switch v := c.Value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	default:
		return false
	}
}
