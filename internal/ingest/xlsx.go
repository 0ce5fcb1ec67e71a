package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/bridge-cli/internal/model"
)

// Sheet names of a bridge workbook.
const (
	SheetData  = "Data"
	SheetRlink = "Rlink"
)

// ReadSheet returns the raw cell values of a sheet.
func ReadSheet(f *xlsx.File, name string) (Grid, error) {
	sheet, ok := f.Sheet[name]
	if !ok {
		return nil, eris.Errorf("xlsx: sheet %q not found", name)
	}
	g := make(Grid, len(sheet.Rows))
	for i, row := range sheet.Rows {
		if row == nil {
			continue
		}
		g[i] = rowValues(row)
	}
	return g, nil
}

// rowValues returns the stored values of a row. Numbers keep full
// precision rather than the cell's display format.
func rowValues(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		if cell != nil {
			cells[j] = cell.Value
		}
	}
	return cells
}

// LoadWorkbook reads a run from the Data and Rlink sheets of a workbook.
func LoadWorkbook(path string, opts Options) (*model.RunInput, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	data, err := ReadSheet(f, SheetData)
	if err != nil {
		return nil, err
	}
	var rlink Grid
	if _, ok := f.Sheet[SheetRlink]; ok {
		if rlink, err = ReadSheet(f, SheetRlink); err != nil {
			return nil, err
		}
	}
	in, err := ParseRun(data, rlink, path, opts)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: %s", path)
	}
	return in, nil
}

// Load reads a run from an .xlsx workbook or a .csv export of the Data
// sheet. For CSV, link data is read from a sibling "<name>_rlink.csv" when
// it exists.
func Load(ctx context.Context, path string, opts Options) (*model.RunInput, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return LoadWorkbook(path, opts)
	case ".csv":
		rlink := strings.TrimSuffix(path, filepath.Ext(path)) + "_rlink.csv"
		if _, err := os.Stat(rlink); err != nil {
			rlink = ""
		}
		return LoadCSV(ctx, path, rlink, opts)
	}
	return nil, eris.Errorf("ingest: unsupported file type %q", path)
}
