// Package classify turns a raw sheet edit notification into the action it
// requests. It is a pure function of the notification and the layout.
package classify

import (
	"fmt"
	"strings"

	"github.com/steipete/sheetcal/internal/layout"
	"github.com/steipete/sheetcal/internal/model"
	"github.com/steipete/sheetcal/internal/rowcodec"
)

// Notification is one edit as delivered by the host: the affected range and
// the new value of its top-left cell.
type Notification struct {
	Sheet        string `json:"sheet,omitempty"`
	RangeAddress string `json:"range,omitempty"`
	Row          int    `json:"row,omitempty"`
	LastRow      int    `json:"lastRow,omitempty"`
	Column       int    `json:"column,omitempty"`
	LastColumn   int    `json:"lastColumn,omitempty"`
	RawValue     any    `json:"value,omitempty"`
	// Checked is the host's native checkbox state, when it can tell.
	Checked *bool `json:"checked,omitempty"`
}

// Range returns the affected rectangle, falling back to RangeAddress when
// the numeric bounds are missing.
func (n Notification) Range() (layout.Range, error) {
	if n.Row > 0 && n.Column > 0 {
		r := layout.Range{Row: n.Row, LastRow: n.LastRow, Col: n.Column, LastCol: n.LastColumn}
		if r.LastRow < r.Row {
			r.LastRow = r.Row
		}
		if r.LastCol < r.Col {
			r.LastCol = r.Col
		}
		return r, nil
	}
	if strings.TrimSpace(n.RangeAddress) == "" {
		return layout.Range{}, fmt.Errorf("notification has no range")
	}
	return layout.ParseRange(n.RangeAddress)
}

// IsChecked prefers the native checked state and falls back to comparing
// the raw value with the true indicator.
func (n Notification) IsChecked() bool {
	if n.Checked != nil {
		return *n.Checked
	}
	return rowcodec.IsChecked(model.Cell{Value: n.RawValue})
}

// Kind enumerates classifier outcomes.
type Kind int

const (
	Ignore Kind = iota
	Download
	UploadRows
)

func (k Kind) String() string {
	switch k {
	case Download:
		return "download"
	case UploadRows:
		return "upload"
	default:
		return "ignore"
	}
}

// Action is the classifier's verdict.
type Action struct {
	Kind     Kind
	FirstRow int
	LastRow  int
	// VerifyCheckboxes is set for multi-cell edits, where the host carries no
	// per-row value: only rows whose upload checkbox reads true are processed.
	VerifyCheckboxes bool
	Reason           string
}

func ignore(reason string) Action { return Action{Kind: Ignore, Reason: reason} }

// Classify decides what a notification asks for. Unchecking a control, or
// any edit outside the control cells and the upload column, is ignored, so
// the engine's own checkbox resets never trigger another run.
func Classify(n Notification, c layout.Compiled) Action {
	if c.Sheet != "" && n.Sheet != "" && !strings.EqualFold(strings.TrimSpace(n.Sheet), c.Sheet) {
		return ignore("edit on another sheet")
	}

	r, err := n.Range()
	if err != nil {
		return ignore(err.Error())
	}

	if r.SingleCell() && r.Row == c.DownloadControl.Row && r.Col == c.DownloadControl.Col {
		if !n.IsChecked() {
			return ignore("download control unchecked")
		}
		return Action{Kind: Download, Reason: "download control checked"}
	}

	upload := c.Columns.Upload
	if upload == 0 || upload < r.Col || upload > r.LastCol {
		return ignore("edit outside upload column")
	}
	if r.LastRow < c.FirstDataRow {
		return ignore("edit above data rows")
	}
	first := max(r.Row, c.FirstDataRow)

	if r.SingleCell() {
		if !n.IsChecked() {
			return ignore("upload checkbox unchecked")
		}
		return Action{Kind: UploadRows, FirstRow: first, LastRow: first, Reason: "upload checkbox checked"}
	}
	return Action{
		Kind:             UploadRows,
		FirstRow:         first,
		LastRow:          r.LastRow,
		VerifyCheckboxes: true,
		Reason:           "multi-cell edit over upload column",
	}
}
