// Package ingest reads bridge measurement runs from workbooks and CSV exports.
package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bridge-cli/internal/profile"
)

// Grid is a sheet of raw cell text. Rows and columns are addressed 1-based,
// like spreadsheet coordinates.
type Grid [][]string

// Cell returns the trimmed text at (row, col), or "" outside the grid.
func (g Grid) Cell(row, col int) string {
	if row < 1 || row > len(g) {
		return ""
	}
	r := g[row-1]
	if col < 1 || col > len(r) {
		return ""
	}
	return strings.TrimSpace(r[col-1])
}

// Rows returns the number of rows.
func (g Grid) Rows() int { return len(g) }

// Float returns the number at (row, col), nil for an empty cell.
func (g Grid) Float(row, col int) (*float64, error) {
	s := g.Cell(row, col)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, eris.Errorf("ingest: cell %s is not a number: %q", Ref(row, col), s)
	}
	return &v, nil
}

// Int returns the integer at (row, col).
func (g Grid) Int(row, col int) (int, error) {
	f, err := g.Float(row, col)
	if err != nil {
		return 0, err
	}
	if f == nil {
		return 0, eris.Errorf("ingest: cell %s is empty", Ref(row, col))
	}
	return int(*f), nil
}

// Time returns the timestamp at (row, col), nil for an empty cell.
func (g Grid) Time(row, col int) (*time.Time, error) {
	s := g.Cell(row, col)
	if s == "" {
		return nil, nil
	}
	t, err := profile.ParseTime(s)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: cell %s", Ref(row, col))
	}
	return &t, nil
}

// Ref formats a 1-based coordinate as an A1-style reference.
func Ref(row, col int) string {
	return ColumnName(col) + strconv.Itoa(row)
}

// ColumnName converts a 1-based column index to letters (1 -> A, 27 -> AA).
func ColumnName(col int) string {
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}
