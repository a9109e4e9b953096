package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/steipete/sheetcal/internal/outfmt"
	"github.com/steipete/sheetcal/internal/sheetsync"
	"github.com/steipete/sheetcal/internal/timeparse"
	"github.com/steipete/sheetcal/internal/ui"
)

// writeReport prints a sheetsync.Report in the active output mode and
// returns an exit error when any row failed.
func writeReport(ctx context.Context, report sheetsync.Report) error {
	if outfmt.IsJSON(ctx) {
		payload := map[string]any{"action": report.Action}
		if report.Reason != "" {
			payload["reason"] = report.Reason
		}
		if report.Download != nil {
			payload["download"] = report.Download
		}
		if report.Action == "upload" {
			payload["rows"] = nonNilRows(report.Rows)
			payload["failed"] = report.Failed()
		}
		if err := outfmt.WriteJSON(ctx, os.Stdout, payload); err != nil {
			return err
		}
		return rowsFailedError(report.Rows)
	}

	if outfmt.IsPlain(ctx) {
		records := [][]string{{"action", report.Action}}
		if report.Reason != "" {
			records = append(records, []string{"reason", report.Reason})
		}
		if err := outfmt.WriteTSV(os.Stdout, records); err != nil {
			return err
		}
	} else if u := ui.FromContext(ctx); u != nil && report.Action == "ignore" {
		u.Err().Dim("ignored: " + report.Reason)
	}

	if report.Download != nil {
		if err := writeDownloadText(ctx, *report.Download); err != nil {
			return err
		}
	}
	if len(report.Rows) > 0 {
		if err := writeRowsText(ctx, report.Rows); err != nil {
			return err
		}
	}
	return rowsFailedError(report.Rows)
}

func writeDownload(ctx context.Context, res sheetsync.DownloadResult) error {
	if outfmt.IsJSON(ctx) {
		return outfmt.WriteJSON(ctx, os.Stdout, map[string]any{"download": res})
	}
	return writeDownloadText(ctx, res)
}

func writeDownloadText(ctx context.Context, res sheetsync.DownloadResult) error {
	records := [][]string{
		{"period_start", res.Period.Start.String()},
		{"period_end", res.Period.End.String()},
		{"events", strconv.Itoa(res.Events)},
		{"cleared_rows", strconv.Itoa(res.Cleared)},
	}
	if outfmt.IsPlain(ctx) {
		return outfmt.WriteTSV(os.Stdout, records)
	}
	u := ui.FromContext(ctx)
	if u == nil {
		return outfmt.WriteTSV(os.Stdout, records)
	}
	u.Out().Success(fmt.Sprintf("Downloaded %d event(s) for %s..%s", res.Events, res.Period.Start, res.Period.End))
	if res.Cleared > 0 {
		u.Out().Dim(fmt.Sprintf("cleared %d stale row(s)", res.Cleared))
	}
	return nil
}

func writeRows(ctx context.Context, rows []sheetsync.RowResult) error {
	if outfmt.IsJSON(ctx) {
		failed := sheetsync.Report{Rows: rows}.Failed()
		if err := outfmt.WriteJSON(ctx, os.Stdout, map[string]any{
			"rows":   nonNilRows(rows),
			"failed": failed,
		}); err != nil {
			return err
		}
		return rowsFailedError(rows)
	}
	if err := writeRowsText(ctx, rows); err != nil {
		return err
	}
	return rowsFailedError(rows)
}

func writeRowsText(ctx context.Context, rows []sheetsync.RowResult) error {
	if outfmt.IsPlain(ctx) {
		records := make([][]string, 0, len(rows))
		for _, r := range rows {
			records = append(records, []string{strconv.Itoa(r.Row), string(r.Outcome), r.EventID, r.Status, r.Error})
		}
		return outfmt.WriteTSV(os.Stdout, records)
	}

	u := ui.FromContext(ctx)
	if u == nil {
		_, err := os.Stdout.WriteString(sheetsync.Summary(rows))
		return err
	}
	if len(rows) == 0 {
		u.Err().Println("No rows to reconcile")
		return nil
	}
	for _, r := range rows {
		line := fmt.Sprintf("row %d\t%s", r.Row, r.Outcome)
		if r.EventID != "" {
			line += "\t" + r.EventID
		}
		if !r.Start.IsZero() {
			line += "\t" + timeparse.FormatDateOnly(r.Start) + " " + timeparse.FormatTimeOnly(r.Start)
		}
		switch {
		case r.Outcome == sheetsync.OutcomeFailed:
			u.Out().Error(line + "\t" + r.Error)
		case r.Error != "":
			u.Out().Warn(line + "\t" + r.Error)
		default:
			u.Out().Println(line)
		}
	}
	return nil
}

func nonNilRows(rows []sheetsync.RowResult) []sheetsync.RowResult {
	if rows == nil {
		return []sheetsync.RowResult{}
	}
	return rows
}

func rowsFailedError(rows []sheetsync.RowResult) error {
	failed := sheetsync.Report{Rows: rows}.Failed()
	if failed == 0 {
		return nil
	}
	return &ExitError{Code: exitCodeRowsFailed, Err: fmt.Errorf("%d of %d row(s) failed", failed, len(rows))}
}
