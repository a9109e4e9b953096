// Package sheetsync reconciles sheet rows with calendar events. It owns the
// per-row create/update/delete decision, the range download and the dispatch
// of edit notifications; storage is reached only through SheetStore and
// CalendarStore.
package sheetsync

import (
	"context"
	"time"

	"github.com/steipete/sheetcal/internal/model"
)

// SheetStore is the spreadsheet collaborator. Rows and columns are 1-based.
// Column lists need not be contiguous.
type SheetStore interface {
	ReadCell(ctx context.Context, row, col int) (model.Cell, error)
	// ReadRow returns the cells of row keyed by column. A nil cols reads
	// every populated column.
	ReadRow(ctx context.Context, row int, cols []int) (map[int]model.Cell, error)
	WriteCell(ctx context.Context, row, col int, value any) error
	ClearCells(ctx context.Context, firstRow, lastRow int, cols []int) error
	// WriteRows writes rows starting at startRow; rows[i][j] lands in cols[j].
	WriteRows(ctx context.Context, startRow int, cols []int, rows [][]any) error
	SetNumberFormat(ctx context.Context, firstRow, lastRow, col int, pattern string) error
	// LastDataRow is the last row holding any value, 0 for an empty sheet.
	LastDataRow(ctx context.Context) (int, error)
}

// CalendarStore is the calendar collaborator.
type CalendarStore interface {
	// GetEvent returns nil, nil when no live event has the id.
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	CreateEvent(ctx context.Context, title string, start, end time.Time) (model.Event, error)
	UpdateEvent(ctx context.Context, id, title string, start, end time.Time) error
	DeleteEvent(ctx context.Context, id string) error
	// ListEvents returns events starting in [start, endExclusive) in store order.
	ListEvents(ctx context.Context, start, endExclusive time.Time) ([]model.Event, error)
}
