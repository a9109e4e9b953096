package memory

import (
	"time"

	"github.com/steipete/sheetcal/internal/model"
)

func modelEvent(id string, start time.Time) model.Event {
	return model.Event{ID: id, Title: "event " + id, Start: start, End: start.Add(time.Hour)}
}
