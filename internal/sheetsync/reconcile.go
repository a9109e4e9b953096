package sheetsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/steipete/sheetcal/internal/layout"
	"github.com/steipete/sheetcal/internal/rowcodec"
)

// Outcome is what happened to one row.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeDeleted   Outcome = "deleted"
	OutcomeNoop      Outcome = "skipped"
	OutcomeStaleID   Outcome = "stale-id"
	OutcomeFailed    Outcome = "failed"
	OutcomeUnchecked Outcome = "unchecked"
)

const (
	statusCreated = "Created new event."
	statusUpdated = "Updated event."
	statusDeleted = "Deleted event (empty title)."
	statusStale   = "Event not found; cleared stale id."
	statusNoop    = "Nothing to do (empty row)."
)

// RowResult reports the reconciliation of a single row.
type RowResult struct {
	Row     int     `json:"row"`
	Outcome Outcome `json:"outcome"`
	EventID string  `json:"eventId,omitempty"`
	Status  string  `json:"status"`
	Error   string  `json:"error,omitempty"`
	Err     error   `json:"-"`
	// Start is the event's start after a create or update.
	Start time.Time `json:"-"`
}

// Reconciler pushes edited rows to the calendar.
type Reconciler struct {
	sheet  SheetStore
	cal    CalendarStore
	layout layout.Compiled
	loc    *time.Location
}

func NewReconciler(sheet SheetStore, cal CalendarStore, lay layout.Compiled, loc *time.Location) *Reconciler {
	if loc == nil {
		loc = time.Local
	}
	return &Reconciler{sheet: sheet, cal: cal, layout: lay, loc: loc}
}

// ReconcileRows reconciles first..last in increasing order. Each row is
// independent: a failure is recorded on that row and the batch continues.
// With verify set, rows whose upload checkbox does not read true are left
// untouched. A cancelled ctx stops the batch; rows not yet reached are
// neither written nor reported.
func (r *Reconciler) ReconcileRows(ctx context.Context, first, last int, verify bool) []RowResult {
	results := make([]RowResult, 0, max(last-first+1, 0))
	for row := first; row <= last; row++ {
		if ctx.Err() != nil {
			slog.Debug("upload cancelled", "row", row, "done", len(results))
			break
		}
		res, processed := r.reconcile(ctx, row, verify)
		if !processed {
			slog.Debug("row skipped, upload unchecked", "row", row)
			continue
		}
		results = append(results, res)
	}
	return results
}

// ReconcileRow reconciles a single row and always resets its checkbox.
func (r *Reconciler) ReconcileRow(ctx context.Context, row int) RowResult {
	res, _ := r.reconcile(ctx, row, false)
	return res
}

func (r *Reconciler) reconcile(ctx context.Context, row int, verify bool) (RowResult, bool) {
	cols := r.layout.Columns
	cells, err := r.sheet.ReadRow(ctx, row, cols.OutputColumns())
	if err != nil {
		res := failed(row, fmt.Errorf("read row %d: %w", row, err))
		r.finish(ctx, &res)
		return res, true
	}
	raw := rowcodec.FromCells(row, cells, cols)
	if verify && !rowcodec.IsChecked(raw.Upload) {
		return RowResult{Row: row, Outcome: OutcomeUnchecked}, false
	}

	var res RowResult
	if raw.TitleText() == "" {
		res = r.deletePath(ctx, raw)
	} else {
		res = r.upsertPath(ctx, raw)
	}
	r.finish(ctx, &res)

	slog.Debug("row reconciled", "row", row, "outcome", res.Outcome, "event_id", res.EventID)
	return res, true
}

func (r *Reconciler) deletePath(ctx context.Context, raw rowcodec.RawRow) RowResult {
	id := raw.IDText()
	if id == "" {
		return RowResult{Row: raw.Number, Outcome: OutcomeNoop, Status: statusNoop}
	}

	ev, err := r.cal.GetEvent(ctx, id)
	if err != nil {
		return failed(raw.Number, fmt.Errorf("look up event %s: %w", id, err))
	}
	if ev == nil {
		if err := r.sheet.ClearCells(ctx, raw.Number, raw.Number, []int{r.layout.Columns.ID}); err != nil {
			return failed(raw.Number, fmt.Errorf("clear stale id: %w", err))
		}
		return RowResult{Row: raw.Number, Outcome: OutcomeStaleID, EventID: id, Status: statusStale}
	}

	if err := r.cal.DeleteEvent(ctx, id); err != nil {
		return failed(raw.Number, fmt.Errorf("delete event %s: %w", id, err))
	}
	if err := r.sheet.ClearCells(ctx, raw.Number, raw.Number, r.layout.Columns.DataColumns()); err != nil {
		return RowResult{
			Row:     raw.Number,
			Outcome: OutcomeDeleted,
			EventID: id,
			Status:  statusDeleted,
			Err:     fmt.Errorf("event %s deleted but row not cleared: %w", id, err),
		}
	}
	return RowResult{Row: raw.Number, Outcome: OutcomeDeleted, EventID: id, Status: statusDeleted}
}

func (r *Reconciler) upsertPath(ctx context.Context, raw rowcodec.RawRow) RowResult {
	fields, err := rowcodec.ToEventFields(raw, r.layout.DateOrder, r.loc)
	if err != nil {
		return failed(raw.Number, err)
	}

	res := RowResult{Row: raw.Number, Start: fields.Start}
	id := raw.IDText()
	existing := false
	if id != "" {
		ev, err := r.cal.GetEvent(ctx, id)
		if err != nil {
			return failed(raw.Number, fmt.Errorf("look up event %s: %w", id, err))
		}
		existing = ev != nil
	}

	if existing {
		if err := r.cal.UpdateEvent(ctx, id, fields.Title, fields.Start, fields.End); err != nil {
			return failed(raw.Number, fmt.Errorf("update event %s: %w", id, err))
		}
		res.Outcome, res.EventID, res.Status = OutcomeUpdated, id, statusUpdated
	} else {
		created, err := r.cal.CreateEvent(ctx, fields.Title, fields.Start, fields.End)
		if err != nil {
			return failed(raw.Number, fmt.Errorf("create event: %w", err))
		}
		if id != "" {
			slog.Info("row id did not resolve, created a new event", "row", raw.Number, "old_id", id, "event_id", created.ID)
		}
		res.Outcome, res.EventID, res.Status = OutcomeCreated, created.ID, statusCreated
	}

	values := rowcodec.FieldsToRow(res.EventID, fields)
	cols := r.layout.Columns.DataColumns()
	if err := r.sheet.WriteRows(ctx, raw.Number, cols, [][]any{values.Cells()}); err != nil {
		res.Err = fmt.Errorf("event %s saved but row not updated: %w", res.EventID, err)
		return res
	}
	if err := formatRows(ctx, r.sheet, r.layout, raw.Number, raw.Number); err != nil {
		res.Err = fmt.Errorf("event %s saved but row not formatted: %w", res.EventID, err)
	}
	return res
}

// finish resets the upload checkbox and writes the status text.
func (r *Reconciler) finish(ctx context.Context, res *RowResult) {
	if res.Err != nil {
		res.Error = res.Err.Error()
		if res.Outcome == OutcomeFailed {
			res.Status = "Error: " + res.Error
		}
	}
	cols := []int{r.layout.Columns.Upload, r.layout.Columns.Status}
	if err := r.sheet.WriteRows(ctx, res.Row, cols, [][]any{{false, res.Status}}); err != nil {
		slog.Warn("failed to write row status", "row", res.Row, "err", err)
		res.Err = errors.Join(res.Err, fmt.Errorf("write status: %w", err))
		res.Error = res.Err.Error()
	}
}

func failed(row int, err error) RowResult {
	return RowResult{Row: row, Outcome: OutcomeFailed, Err: err}
}
