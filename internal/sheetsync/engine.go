package sheetsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/steipete/sheetcal/internal/classify"
	"github.com/steipete/sheetcal/internal/layout"
	"github.com/steipete/sheetcal/internal/rowcodec"
	"github.com/steipete/sheetcal/internal/timeparse"
)

// Engine wires the classifier, reconciler and downloader over one sheet and
// one calendar.
type Engine struct {
	sheet      SheetStore
	cal        CalendarStore
	layout     layout.Compiled
	loc        *time.Location
	reconciler *Reconciler
	downloader *Downloader
}

// Report is the outcome of handling one notification.
type Report struct {
	Action   string          `json:"action"`
	Reason   string          `json:"reason,omitempty"`
	Download *DownloadResult `json:"download,omitempty"`
	Rows     []RowResult     `json:"rows,omitempty"`
}

// Failed counts failed rows.
func (r Report) Failed() int {
	n := 0
	for _, row := range r.Rows {
		if row.Err != nil || row.Outcome == OutcomeFailed {
			n++
		}
	}
	return n
}

// NewEngine builds an engine. Header-driven layouts are resolved here by
// reading the header row, so a missing header fails before any row is
// touched.
func NewEngine(ctx context.Context, sheet SheetStore, cal CalendarStore, lay layout.Compiled, loc *time.Location) (*Engine, error) {
	if sheet == nil || cal == nil {
		return nil, errors.New("sheet and calendar stores are required")
	}
	if loc == nil {
		loc = time.Local
	}
	if lay.NeedsHeaders() {
		resolved, err := resolveHeaders(ctx, sheet, lay)
		if err != nil {
			return nil, err
		}
		lay = resolved
	}
	return &Engine{
		sheet:      sheet,
		cal:        cal,
		layout:     lay,
		loc:        loc,
		reconciler: NewReconciler(sheet, cal, lay, loc),
		downloader: NewDownloader(sheet, cal, lay, loc),
	}, nil
}

func resolveHeaders(ctx context.Context, sheet SheetStore, lay layout.Compiled) (layout.Compiled, error) {
	row := lay.HeaderRow()
	if row < 1 {
		return layout.Compiled{}, &layout.ConfigError{Field: "header_row", Err: layout.ErrMissingLocation}
	}
	cells, err := sheet.ReadRow(ctx, row, nil)
	if err != nil {
		return layout.Compiled{}, fmt.Errorf("read header row %d: %w", row, err)
	}
	width := 0
	for col := range cells {
		width = max(width, col)
	}
	header := make([]string, width)
	for col, cell := range cells {
		header[col-1] = rowcodec.CellText(cell)
	}
	return lay.WithHeaders(header)
}

// Layout returns the resolved layout.
func (e *Engine) Layout() layout.Compiled { return e.layout }

// Location is the zone used to compose and project wall-clock values.
func (e *Engine) Location() *time.Location { return e.loc }

// Classify runs the edit classifier against the resolved layout.
func (e *Engine) Classify(n classify.Notification) classify.Action {
	return classify.Classify(n, e.layout)
}

// Handle classifies n and performs the requested action.
func (e *Engine) Handle(ctx context.Context, n classify.Notification) (Report, error) {
	action := e.Classify(n)
	report := Report{Action: action.Kind.String(), Reason: action.Reason}

	switch action.Kind {
	case classify.Download:
		res, err := e.Download(ctx, nil)
		report.Download = &res
		return report, err
	case classify.UploadRows:
		report.Rows = e.Upload(ctx, action.FirstRow, action.LastRow, action.VerifyCheckboxes)
		return report, nil
	default:
		slog.Debug("notification ignored", "reason", action.Reason)
		return report, nil
	}
}

// Download runs a range download. A nil period is read from the period
// cells. The download checkbox is reset afterwards whether or not the run
// succeeded.
func (e *Engine) Download(ctx context.Context, period *Period) (DownloadResult, error) {
	res, err := e.download(ctx, period)
	ctrl := e.layout.DownloadControl
	if resetErr := e.sheet.WriteCell(ctx, ctrl.Row, ctrl.Col, false); resetErr != nil {
		slog.Warn("failed to reset download control", "cell", ctrl.String(), "err", resetErr)
		err = errors.Join(err, fmt.Errorf("reset %s: %w", ctrl, resetErr))
	}
	return res, err
}

func (e *Engine) download(ctx context.Context, period *Period) (DownloadResult, error) {
	var p Period
	if period != nil {
		p = *period
	} else {
		read, err := e.downloader.ReadPeriod(ctx)
		if err != nil {
			return DownloadResult{}, err
		}
		p = read
	}
	return e.downloader.Download(ctx, p)
}

// Upload reconciles rows first..last. verify limits the run to rows whose
// upload checkbox is set.
func (e *Engine) Upload(ctx context.Context, first, last int, verify bool) []RowResult {
	first = max(first, e.layout.FirstDataRow)
	if last < first {
		return nil
	}
	return e.reconciler.ReconcileRows(ctx, first, last, verify)
}

// UploadChecked reconciles every data row whose upload checkbox is set.
func (e *Engine) UploadChecked(ctx context.Context) ([]RowResult, error) {
	last, err := e.sheet.LastDataRow(ctx)
	if err != nil {
		return nil, fmt.Errorf("find last row: %w", err)
	}
	return e.Upload(ctx, e.layout.FirstDataRow, last, true), nil
}

// DownloadRequested reports whether the download control currently reads
// checked.
func (e *Engine) DownloadRequested(ctx context.Context) (bool, error) {
	ctrl := e.layout.DownloadControl
	cell, err := e.sheet.ReadCell(ctx, ctrl.Row, ctrl.Col)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", ctrl, err)
	}
	return rowcodec.IsChecked(cell), nil
}

// Summary renders row outcomes as one line per row.
func Summary(rows []RowResult) string {
	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "row %d: %s", r.Row, r.Outcome)
		if r.EventID != "" {
			fmt.Fprintf(&b, " (%s)", r.EventID)
		}
		if !r.Start.IsZero() {
			fmt.Fprintf(&b, " %s %s", timeparse.FormatDateOnly(r.Start), timeparse.FormatTimeOnly(r.Start))
		}
		if r.Error != "" {
			fmt.Fprintf(&b, ": %s", r.Error)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
