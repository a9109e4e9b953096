package gsheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/steipete/sheetcal/internal/timeparse"
)

type recorder struct {
	mu       sync.Mutex
	updates  []sheets.BatchUpdateValuesRequest
	clears   []sheets.BatchClearValuesRequest
	formats  []sheets.BatchUpdateSpreadsheetRequest
	gridGets []string
}

func newTestStore(t *testing.T, rec *recorder) *Store {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		path := r.URL.Path
		rec.mu.Lock()
		defer rec.mu.Unlock()
		switch {
		case strings.HasSuffix(path, "/values:batchUpdate") && r.Method == http.MethodPost:
			var req sheets.BatchUpdateValuesRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			rec.updates = append(rec.updates, req)
			_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sid"})
		case strings.HasSuffix(path, "/values:batchClear") && r.Method == http.MethodPost:
			var req sheets.BatchClearValuesRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			rec.clears = append(rec.clears, req)
			_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sid"})
		case strings.HasSuffix(path, "/spreadsheets/sid:batchUpdate") && r.Method == http.MethodPost:
			var req sheets.BatchUpdateSpreadsheetRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			rec.formats = append(rec.formats, req)
			_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sid"})
		case strings.Contains(path, "/spreadsheets/sid/values/") && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"range":  "Events!A1:G9",
				"values": []any{[]any{"x"}, []any{}, []any{}, []any{}, []any{}, []any{"id"}, []any{}, []any{}, []any{"last"}},
			})
		case strings.HasSuffix(path, "/spreadsheets/sid") && r.Method == http.MethodGet:
			if r.URL.Query().Get("includeGridData") == "true" {
				rec.gridGets = append(rec.gridGets, r.URL.Query().Get("ranges"))
				_ = json.NewEncoder(w).Encode(map[string]any{
					"sheets": []any{map[string]any{
						"data": []any{map[string]any{
							"startRow":    5,
							"startColumn": 0,
							"rowData": []any{map[string]any{"values": []any{
								map[string]any{"effectiveValue": map[string]any{"stringValue": "ev1"}, "formattedValue": "ev1"},
								map[string]any{"effectiveValue": map[string]any{"stringValue": "Standup"}, "formattedValue": "Standup"},
								map[string]any{"effectiveValue": map[string]any{"numberValue": 45301}, "formattedValue": "2024-01-10"},
								map[string]any{"effectiveValue": map[string]any{"numberValue": 0.375}, "formattedValue": "09:00"},
								map[string]any{},
								map[string]any{"effectiveValue": map[string]any{"boolValue": true}, "formattedValue": "TRUE"},
							}}},
						}},
					}},
				})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"spreadsheetId": "sid",
				"sheets": []any{
					map[string]any{"properties": map[string]any{"sheetId": 0, "title": "Summary"}},
					map[string]any{"properties": map[string]any{"sheetId": 42, "title": "Events"}},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	svc, err := sheets.NewService(context.Background(),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return New(svc, "sid", "events")
}

func TestReadRow(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := newTestStore(t, rec)
	cells, err := s.ReadRow(context.Background(), 6, []int{1, 2, 3, 4, 5, 6, 7})
	if err != nil {
		t.Fatalf("ReadRow: %v", err)
	}
	if cells[1].Value != "ev1" || cells[3].Value != 45301.0 || cells[6].Value != true {
		t.Fatalf("unexpected cells: %#v", cells)
	}
	if _, ok := cells[5]; ok {
		t.Fatalf("empty cell should be absent")
	}
	if cells[4].Text != "09:00" {
		t.Fatalf("unexpected display text %q", cells[4].Text)
	}
	if len(rec.gridGets) != 1 || rec.gridGets[0] != "'Events'!A6:G6" {
		t.Fatalf("unexpected ranges: %v", rec.gridGets)
	}
}

func TestWriteRowsSplitsColumnRuns(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	s := newTestStore(t, rec)
	date := timeparse.CalendarDate{Year: 2024, Month: time.January, Day: 10}
	err := s.WriteRows(context.Background(), 6, []int{1, 2, 3, 6, 7}, [][]any{
		{"ev1", "Standup", date, false, "Created new event."},
	})
	if err != nil {
		t.Fatalf("WriteRows: %v", err)
	}
	if len(rec.updates) != 1 {
		t.Fatalf("expected one batch update, got %d", len(rec.updates))
	}
	req := rec.updates[0]
	if req.ValueInputOption != "RAW" || len(req.Data) != 2 {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.Data[0].Range != "'Events'!A6:C6" || req.Data[1].Range != "'Events'!F6:G6" {
		t.Fatalf("unexpected ranges: %s %s", req.Data[0].Range, req.Data[1].Range)
	}
	if got := req.Data[0].Values[0][2]; got != 45301.0 {
		t.Fatalf("date should be written as serial, got %#v", got)
	}
}

func TestClearAndFormat(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rec := &recorder{}
	s := newTestStore(t, rec)
	if err := s.ClearCells(ctx, 6, 20, []int{7, 1, 2, 3, 4, 5, 6}); err != nil {
		t.Fatalf("ClearCells: %v", err)
	}
	if len(rec.clears) != 1 || len(rec.clears[0].Ranges) != 1 || rec.clears[0].Ranges[0] != "'Events'!A6:G20" {
		t.Fatalf("unexpected clears: %+v", rec.clears)
	}

	if err := s.SetNumberFormat(ctx, 6, 8, 3, "yyyy-mm-dd"); err != nil {
		t.Fatalf("SetNumberFormat: %v", err)
	}
	rc := rec.formats[0].Requests[0].RepeatCell
	if rc.Range.SheetId != 42 || rc.Range.StartRowIndex != 5 || rc.Range.EndRowIndex != 8 || rc.Range.StartColumnIndex != 2 {
		t.Fatalf("unexpected grid range: %+v", rc.Range)
	}
	if rc.Cell.UserEnteredFormat.NumberFormat.Type != "DATE" {
		t.Fatalf("unexpected format: %+v", rc.Cell.UserEnteredFormat.NumberFormat)
	}
}

func TestLastDataRow(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, &recorder{})
	last, err := s.LastDataRow(context.Background())
	if err != nil {
		t.Fatalf("LastDataRow: %v", err)
	}
	if last != 9 {
		t.Fatalf("last=%d", last)
	}
}

func TestNumberFormatType(t *testing.T) {
	t.Parallel()

	testCases := map[string]string{
		"yyyy-mm-dd":       "DATE",
		"hh:mm":            "TIME",
		"0.00":             "NUMBER",
		"dd/mm/yyyy hh:mm": "DATE_TIME",
	}
	for pattern, want := range testCases {
		if got := NumberFormatType(pattern); got != want {
			t.Fatalf("NumberFormatType(%q)=%s want %s", pattern, got, want)
		}
	}
}

func TestUnknownSheet(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, &recorder{})
	s.sheet = "Missing"
	if _, err := s.LastDataRow(context.Background()); err == nil || !strings.Contains(err.Error(), "sheet not found") {
		t.Fatalf("expected sheet not found, got %v", err)
	}
}
