// Package memory keeps a sheet and a calendar in process memory. It backs
// tests and dry local runs.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/steipete/sheetcal/internal/model"
	"github.com/steipete/sheetcal/internal/timeparse"
)

type cellKey struct{ row, col int }

// Sheet is a sparse grid of cells.
type Sheet struct {
	mu      sync.RWMutex
	cells   map[cellKey]any
	formats map[cellKey]string
}

func NewSheet() *Sheet {
	return &Sheet{cells: make(map[cellKey]any), formats: make(map[cellKey]string)}
}

// Set stores a raw value; nil or "" clears the cell.
func (s *Sheet) Set(row, col int, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(row, col, value)
}

func (s *Sheet) set(row, col int, value any) {
	k := cellKey{row, col}
	if value == nil || value == "" {
		delete(s.cells, k)
		return
	}
	s.cells[k] = value
}

// Get returns the raw value of a cell, nil when empty.
func (s *Sheet) Get(row, col int) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cells[cellKey{row, col}]
}

// Format returns the number format applied to a cell.
func (s *Sheet) Format(row, col int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.formats[cellKey{row, col}]
}

func (s *Sheet) ReadCell(_ context.Context, row, col int) (model.Cell, error) {
	if err := checkAddr(row, col); err != nil {
		return model.Cell{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cellOf(s.cells[cellKey{row, col}]), nil
}

func (s *Sheet) ReadRow(_ context.Context, row int, cols []int) (map[int]model.Cell, error) {
	if row < 1 {
		return nil, fmt.Errorf("invalid row %d", row)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]model.Cell)
	if cols == nil {
		for k, v := range s.cells {
			if k.row == row {
				out[k.col] = cellOf(v)
			}
		}
		return out, nil
	}
	for _, col := range cols {
		if v, ok := s.cells[cellKey{row, col}]; ok {
			out[col] = cellOf(v)
		}
	}
	return out, nil
}

func (s *Sheet) WriteCell(_ context.Context, row, col int, value any) error {
	if err := checkAddr(row, col); err != nil {
		return err
	}
	s.Set(row, col, value)
	return nil
}

func (s *Sheet) ClearCells(_ context.Context, firstRow, lastRow int, cols []int) error {
	if firstRow < 1 || lastRow < firstRow {
		return fmt.Errorf("invalid row range %d..%d", firstRow, lastRow)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for row := firstRow; row <= lastRow; row++ {
		for _, col := range cols {
			delete(s.cells, cellKey{row, col})
		}
	}
	return nil
}

func (s *Sheet) WriteRows(_ context.Context, startRow int, cols []int, rows [][]any) error {
	for i, values := range rows {
		if len(values) != len(cols) {
			return fmt.Errorf("row %d: %d values for %d columns", startRow+i, len(values), len(cols))
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, values := range rows {
		for j, col := range cols {
			s.set(startRow+i, col, values[j])
		}
	}
	return nil
}

func (s *Sheet) SetNumberFormat(_ context.Context, firstRow, lastRow, col int, pattern string) error {
	if err := checkAddr(firstRow, col); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for row := firstRow; row <= lastRow; row++ {
		s.formats[cellKey{row, col}] = pattern
	}
	return nil
}

func (s *Sheet) LastDataRow(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	last := 0
	for k := range s.cells {
		last = max(last, k.row)
	}
	return last, nil
}

func checkAddr(row, col int) error {
	if row < 1 || col < 1 {
		return fmt.Errorf("invalid cell R%dC%d", row, col)
	}
	return nil
}

func cellOf(v any) model.Cell {
	switch x := v.(type) {
	case nil:
		return model.Cell{}
	case string:
		return model.Cell{Value: x, Text: x}
	case float64:
		return model.Cell{Value: x, Text: strconv.FormatFloat(x, 'f', -1, 64)}
	case bool:
		return model.Cell{Value: x, Text: strconv.FormatBool(x)}
	case timeparse.CalendarDate:
		return model.Cell{Value: x, Text: x.String()}
	case timeparse.TimeOfDay:
		return model.Cell{Value: x, Text: x.String()}
	default:
		return model.Cell{Value: x, Text: fmt.Sprint(x)}
	}
}
