package sheetsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/steipete/sheetcal/internal/layout"
	"github.com/steipete/sheetcal/internal/rowcodec"
	"github.com/steipete/sheetcal/internal/timeparse"
)

var ErrPeriodReversed = errors.New("period end is before period start")

// Period is an inclusive range of calendar days.
type Period struct {
	Start timeparse.CalendarDate `json:"start"`
	End   timeparse.CalendarDate `json:"end"`
}

// Window returns the instant range [start of Start, start of the day after End).
func (p Period) Window(loc *time.Location) (time.Time, time.Time) {
	return p.Start.In(loc), p.End.AddDays(1).In(loc)
}

// DownloadResult summarizes one download.
type DownloadResult struct {
	Period  Period    `json:"period"`
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
	Events  int       `json:"events"`
	Cleared int       `json:"clearedRows"`
}

// Downloader rewrites the output block from the calendar.
type Downloader struct {
	sheet  SheetStore
	cal    CalendarStore
	layout layout.Compiled
	loc    *time.Location
}

func NewDownloader(sheet SheetStore, cal CalendarStore, lay layout.Compiled, loc *time.Location) *Downloader {
	if loc == nil {
		loc = time.Local
	}
	return &Downloader{sheet: sheet, cal: cal, layout: lay, loc: loc}
}

// ReadPeriod reads and validates the period bound cells.
func (d *Downloader) ReadPeriod(ctx context.Context) (Period, error) {
	start, err := d.readBound(ctx, "period_start", d.layout.PeriodStart)
	if err != nil {
		return Period{}, err
	}
	end, err := d.readBound(ctx, "period_end", d.layout.PeriodEnd)
	if err != nil {
		return Period{}, err
	}
	p := Period{Start: start, End: end}
	if err := p.validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

func (d *Downloader) readBound(ctx context.Context, name string, at layout.Address) (timeparse.CalendarDate, error) {
	cell, err := d.sheet.ReadCell(ctx, at.Row, at.Col)
	if err != nil {
		return timeparse.CalendarDate{}, fmt.Errorf("read %s (%s): %w", name, at, err)
	}
	if date, ok := timeparse.DateFromCell(cell.Value, d.layout.DateOrder); ok {
		return date, nil
	}
	if date, ok := timeparse.DateFromCell(cell.Text, d.layout.DateOrder); ok {
		return date, nil
	}
	if cell.IsEmpty() {
		return timeparse.CalendarDate{}, &layout.ConfigError{Field: name, Err: fmt.Errorf("%s is empty", at)}
	}
	return timeparse.CalendarDate{}, &layout.ConfigError{Field: name, Err: fmt.Errorf("%s: %w: %v", at, timeparse.ErrInvalidDate, cell.Value)}
}

func (p Period) validate() error {
	if p.Start.IsZero() {
		return &layout.ConfigError{Field: "period_start", Err: layout.ErrMissingLocation}
	}
	if p.End.IsZero() {
		return &layout.ConfigError{Field: "period_end", Err: layout.ErrMissingLocation}
	}
	if p.End.In(time.UTC).Before(p.Start.In(time.UTC)) {
		return &layout.ConfigError{Field: "period_end", Err: fmt.Errorf("%w: %s < %s", ErrPeriodReversed, p.End, p.Start)}
	}
	return nil
}

// Download fetches every event starting inside p and replaces the output
// block with one row per event. Nothing on the sheet changes unless the
// fetch succeeds.
func (d *Downloader) Download(ctx context.Context, p Period) (DownloadResult, error) {
	if err := p.validate(); err != nil {
		return DownloadResult{}, err
	}
	from, to := p.Window(d.loc)
	res := DownloadResult{Period: p, From: from, To: to}

	events, err := d.cal.ListEvents(ctx, from, to)
	if err != nil {
		return res, fmt.Errorf("list events: %w", err)
	}
	last, err := d.sheet.LastDataRow(ctx)
	if err != nil {
		return res, fmt.Errorf("find last row: %w", err)
	}

	cols := d.layout.Columns
	first := d.layout.FirstDataRow
	if last >= first {
		if err := d.sheet.ClearCells(ctx, first, last, cols.OutputColumns()); err != nil {
			return res, fmt.Errorf("clear output block: %w", err)
		}
		res.Cleared = last - first + 1
	}

	if len(events) == 0 {
		slog.Info("download finished", "from", from, "to", to, "events", 0)
		return res, nil
	}

	writeCols := append(cols.DataColumns(), cols.Upload, cols.Status)
	rows := make([][]any, 0, len(events))
	for _, ev := range events {
		rows = append(rows, append(rowcodec.EventToRow(ev.In(d.loc)).Cells(), false, ""))
	}
	if err := d.sheet.WriteRows(ctx, first, writeCols, rows); err != nil {
		return res, fmt.Errorf("write events: %w", err)
	}
	res.Events = len(events)

	if err := formatRows(ctx, d.sheet, d.layout, first, first+len(events)-1); err != nil {
		return res, err
	}

	slog.Info("download finished", "from", from, "to", to, "events", res.Events)
	return res, nil
}

// formatRows applies the display formats of the date, time and duration
// columns to rows first..last.
func formatRows(ctx context.Context, sheet SheetStore, lay layout.Compiled, first, last int) error {
	cols := lay.Columns
	formats := []struct {
		col     int
		pattern string
	}{
		{cols.Date, lay.DateFormat},
		{cols.Time, lay.TimeFormat},
		{cols.Duration, lay.DurationFormat},
	}
	for _, f := range formats {
		if err := sheet.SetNumberFormat(ctx, first, last, f.col, f.pattern); err != nil {
			return fmt.Errorf("format column %s: %w", layout.ColumnLetter(f.col), err)
		}
	}
	return nil
}
