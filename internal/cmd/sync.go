package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/steipete/sheetcal/internal/classify"
	"github.com/steipete/sheetcal/internal/layout"
	"github.com/steipete/sheetcal/internal/sheetsync"
)

var nowFn = time.Now

type DownloadCmd struct {
	Period PeriodFlags `embed:""`
}

func (c *DownloadCmd) Run(ctx context.Context, flags *RootFlags) error {
	if err := dryRunExit(ctx, flags, "download", map[string]any{
		"from":  c.Period.From,
		"to":    c.Period.To,
		"today": c.Period.Today,
		"week":  c.Period.Week,
		"days":  c.Period.Days,
	}); err != nil {
		return err
	}

	s, err := openSession(ctx, flags)
	if err != nil {
		return err
	}
	defer s.Close()

	period, err := c.Period.resolve(nowFn(), s.engine.Location())
	if err != nil {
		return err
	}
	res, err := s.engine.Download(ctx, period)
	if err != nil {
		return err
	}
	return writeDownload(ctx, res)
}

type UploadCmd struct {
	Rows    []string `arg:"" optional:"" name:"rows" help:"Rows to reconcile (7, 7-9); empty means every row with its upload box checked"`
	Checked bool     `name:"checked" help:"Only reconcile listed rows whose upload box is checked"`
}

type rowSpan struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

func parseRowSpans(args []string) ([]rowSpan, error) {
	var out []rowSpan
	for _, arg := range args {
		for _, part := range splitCommaList(arg) {
			first, last, isRange := strings.Cut(part, "-")
			a, err := strconv.Atoi(strings.TrimSpace(first))
			if err != nil || a < 1 {
				return nil, usagef("invalid row %q (expected N or N-M)", part)
			}
			b := a
			if isRange {
				b, err = strconv.Atoi(strings.TrimSpace(last))
				if err != nil || b < a {
					return nil, usagef("invalid row range %q (expected N-M with M >= N)", part)
				}
			}
			out = append(out, rowSpan{First: a, Last: b})
		}
	}
	return out, nil
}

func (c *UploadCmd) Run(ctx context.Context, flags *RootFlags) error {
	spans, err := parseRowSpans(c.Rows)
	if err != nil {
		return err
	}
	if err := dryRunExit(ctx, flags, "upload", map[string]any{
		"rows":    spans,
		"checked": c.Checked || len(spans) == 0,
	}); err != nil {
		return err
	}

	s, err := openSession(ctx, flags)
	if err != nil {
		return err
	}
	defer s.Close()

	if len(spans) == 0 {
		rows, err := s.engine.UploadChecked(ctx)
		if err != nil {
			return err
		}
		return finishUpload(ctx, rows)
	}

	var rows []sheetsync.RowResult
	for _, span := range spans {
		rows = append(rows, s.engine.Upload(ctx, span.First, span.Last, c.Checked)...)
	}
	return finishUpload(ctx, rows)
}

// finishUpload prints the rows that ran, then reports a cancellation that
// cut the batch short.
func finishUpload(ctx context.Context, rows []sheetsync.RowResult) error {
	if err := writeRows(ctx, rows); err != nil {
		return err
	}
	return ctx.Err()
}

// EditCmd feeds one edit notification through the classifier, the way a
// sheet trigger would.
type EditCmd struct {
	Range string `name:"range" help:"Edited range in A1 notation (B1, F7, F7:F12)"`
	Value string `name:"value" help:"New value of the top-left cell (true/false for checkboxes)" default:"true"`
	Sheet string `name:"sheet" help:"Sheet the edit happened on"`
	JSON  string `name:"json" help:"Notification as JSON (inline, @file or - for stdin)"`
}

func (c *EditCmd) notification() (classify.Notification, error) {
	if strings.TrimSpace(c.JSON) != "" {
		if strings.TrimSpace(c.Range) != "" {
			return classify.Notification{}, usage("use either --json or --range")
		}
		b, err := readInput("--json notification", c.JSON, inlineOrFile)
		if err != nil {
			return classify.Notification{}, err
		}
		var n classify.Notification
		if err := json.Unmarshal(b, &n); err != nil {
			return classify.Notification{}, newUsageError(fmt.Errorf("parse --json notification: %w", err))
		}
		return n, nil
	}

	ref := strings.TrimSpace(c.Range)
	if ref == "" {
		return classify.Notification{}, usage("--range or --json is required")
	}
	sheet, rest := layout.SplitSheet(ref)
	if _, err := layout.ParseRange(rest); err != nil {
		return classify.Notification{}, newUsageError(err)
	}
	if strings.TrimSpace(c.Sheet) != "" {
		sheet = strings.TrimSpace(c.Sheet)
	}
	return classify.Notification{Sheet: sheet, RangeAddress: rest, RawValue: parseCellValue(c.Value)}, nil
}

// parseCellValue types a command-line value the way a sheet would: booleans,
// then numbers, then text.
func parseCellValue(raw string) any {
	v := strings.TrimSpace(raw)
	switch strings.ToLower(v) {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return raw
}

func (c *EditCmd) Run(ctx context.Context, flags *RootFlags) error {
	n, err := c.notification()
	if err != nil {
		return err
	}
	if err := dryRunExit(ctx, flags, "edit", n); err != nil {
		return err
	}

	s, err := openSession(ctx, flags)
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := s.engine.Handle(ctx, n)
	if err != nil {
		return err
	}
	return writeReport(ctx, report)
}
