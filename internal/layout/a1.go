package layout

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Address is a 1-based cell position.
type Address struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (a Address) String() string {
	return ColumnLetter(a.Col) + strconv.Itoa(a.Row)
}

// Range is a 1-based, inclusive rectangle of cells.
type Range struct {
	Row     int `json:"row"`
	LastRow int `json:"lastRow"`
	Col     int `json:"col"`
	LastCol int `json:"lastColumn"`
}

func (r Range) String() string {
	start := Address{Row: r.Row, Col: r.Col}.String()
	if r.Row == r.LastRow && r.Col == r.LastCol {
		return start
	}
	return start + ":" + Address{Row: r.LastRow, Col: r.LastCol}.String()
}

// Contains reports whether a lies inside r.
func (r Range) Contains(a Address) bool {
	return a.Row >= r.Row && a.Row <= r.LastRow && a.Col >= r.Col && a.Col <= r.LastCol
}

// SingleCell reports whether r covers exactly one cell.
func (r Range) SingleCell() bool {
	return r.Row == r.LastRow && r.Col == r.LastCol
}

var (
	cellPattern   = regexp.MustCompile(`^\$?([A-Za-z]{1,3})\$?([0-9]+)$`)
	columnPattern = regexp.MustCompile(`^\$?([A-Za-z]{1,3})$`)
)

// SplitSheet separates an optional "Sheet!" or "'My Sheet'!" prefix.
func SplitSheet(ref string) (sheet string, rest string) {
	ref = strings.TrimSpace(ref)
	i := strings.LastIndex(ref, "!")
	if i < 0 {
		return "", ref
	}
	sheet = strings.TrimSpace(ref[:i])
	if len(sheet) >= 2 && strings.HasPrefix(sheet, "'") && strings.HasSuffix(sheet, "'") {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}
	return sheet, strings.TrimSpace(ref[i+1:])
}

// ParseAddress parses a single A1 cell reference such as "B2" or "Sheet1!$B$2".
func ParseAddress(ref string) (Address, error) {
	_, cell := SplitSheet(ref)
	m := cellPattern.FindStringSubmatch(cell)
	if m == nil {
		return Address{}, fmt.Errorf("invalid cell address %q", ref)
	}
	row, err := strconv.Atoi(m[2])
	if err != nil || row < 1 {
		return Address{}, fmt.Errorf("invalid cell address %q", ref)
	}
	return Address{Row: row, Col: ColumnIndex(m[1])}, nil
}

// ParseRange parses "B7" or "B7:D9" (optionally sheet-qualified).
func ParseRange(ref string) (Range, error) {
	_, body := SplitSheet(ref)
	first, last, found := strings.Cut(body, ":")
	start, err := ParseAddress(first)
	if err != nil {
		return Range{}, fmt.Errorf("invalid range %q", ref)
	}
	end := start
	if found {
		end, err = ParseAddress(last)
		if err != nil {
			return Range{}, fmt.Errorf("invalid range %q", ref)
		}
	}
	r := Range{
		Row:     min(start.Row, end.Row),
		LastRow: max(start.Row, end.Row),
		Col:     min(start.Col, end.Col),
		LastCol: max(start.Col, end.Col),
	}
	return r, nil
}

// ParseColumn parses a column reference: letters ("C") or a 1-based number ("3").
func ParseColumn(ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 {
			return 0, fmt.Errorf("invalid column %q", ref)
		}
		return n, nil
	}
	if !columnPattern.MatchString(ref) {
		return 0, fmt.Errorf("invalid column %q", ref)
	}
	return ColumnIndex(strings.TrimPrefix(ref, "$")), nil
}

// ColumnIndex converts column letters to a 1-based index (A=1, Z=26, AA=27).
func ColumnIndex(letters string) int {
	n := 0
	for _, r := range strings.ToUpper(letters) {
		n = n*26 + int(r-'A'+1)
	}
	return n
}

// ColumnLetter converts a 1-based index back to letters.
func ColumnLetter(col int) string {
	if col < 1 {
		return ""
	}
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}

// QuoteSheet renders a sheet name for use in an A1 range.
func QuoteSheet(sheet string) string {
	if sheet == "" {
		return ""
	}
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}
