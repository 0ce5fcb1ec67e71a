package ingest

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bridge-cli/internal/model"
)

// Data sheet columns, 1-based.
const (
	colV1Set   = 1
	colV2Set   = 2
	colN       = 3
	colTimeV2  = 7
	colV2      = 8
	colV2SD    = 9
	colTimeVd  = 13
	colVd      = 14
	colVdSD    = 15
	colTimeV1  = 16
	colV1      = 17
	colV1SD    = 18
	colDVMT1   = 19
	colDVMT2   = 20
	colGMH1    = 21
	colGMH2    = 22
	colComment = 26
	colRole    = 29
	colDescr   = 30
	colRange   = 31
)

const (
	maxRoles = 10
	// rlinkHeader is the number of header rows before each Rlink data block.
	rlinkHeader      = 6
	rlinkSearchLimit = 500
	rlinkMarker      = "Run Id:"
)

// Options controls how a run is read.
type Options struct {
	// BlockSize is the number of rows per measurement block, 4 or 6.
	BlockSize int
	// RangeMode overrides the range mode recorded on the Data sheet.
	RangeMode model.RangeMode
	// Charset is the encoding of CSV exports; workbooks ignore it.
	Charset string
}

func (o Options) blockSize() int {
	if o.BlockSize == 6 {
		return 6
	}
	return model.BlockRows
}

// ParseRun assembles a run from the Data sheet and, when present, the
// Rlink sheet. The first data row and the last are read from B1 and B2.
func ParseRun(data, rlink Grid, source string, opts Options) (*model.RunInput, error) {
	start, err := data.Int(1, 2)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: data start row")
	}
	stop, err := data.Int(2, 2)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: data stop row")
	}
	if start < 2 || stop < start {
		return nil, eris.Errorf("ingest: stop row %d must follow start row %d", stop, start)
	}

	in := &model.RunInput{
		RunID:   data.Cell(start-1, 2),
		Source:  source,
		Comment: data.Cell(start, colComment),
		Roles:   make(map[string]string),
	}
	if in.RunID == "" {
		return nil, eris.Errorf("ingest: missing run id at %s", Ref(start-1, 2))
	}
	if in.Comment == "" {
		return nil, eris.Errorf("ingest: missing comment at %s", Ref(start, colComment))
	}

	log := zap.L().With(zap.String("run_label", in.RunID), zap.String("file", source))

	rangeCell := ""
	for r := start; r < start+maxRoles; r++ {
		role := data.Cell(r, colRole)
		if role == "" {
			break
		}
		desc := data.Cell(r, colDescr)
		if desc == "" {
			return nil, eris.Errorf("ingest: role %s has no instrument at %s", role, Ref(r, colDescr))
		}
		in.Roles[role] = desc
		if role == model.RoleDVM12 {
			rangeCell = data.Cell(r, colRange)
		}
	}

	switch {
	case opts.RangeMode != "":
		in.RangeMode = opts.RangeMode
	case rangeCell != "":
		if in.RangeMode, err = model.ParseRangeMode(rangeCell); err != nil {
			return nil, err
		}
	default:
		in.RangeMode = model.RangeAuto
	}

	size := opts.blockSize()
	for first := start; first <= stop; first += size {
		if first+size-1 > stop {
			log.Warn("ingest: incomplete trailing block ignored", zap.Int("row", first), zap.Int("rows", stop-first+1))
			break
		}
		b := model.Block{Index: len(in.Blocks), SourceRow: first}
		for r := first; r < first+size; r++ {
			row, err := parseRow(data, r)
			if err != nil {
				return nil, err
			}
			b.Rows = append(b.Rows, row)
		}
		in.Blocks = append(in.Blocks, b)
	}

	if rlink != nil {
		link, err := ParseLink(rlink, in.RunID)
		if err != nil {
			log.Warn("ingest: no link data", zap.Error(err))
		} else {
			in.Link = link
		}
	}

	log.Debug("ingest: parsed run", zap.Int("blocks", len(in.Blocks)), zap.Int("roles", len(in.Roles)))
	return in, nil
}

func parseRow(g Grid, r int) (model.Row, error) {
	var row model.Row
	floats := []struct {
		col int
		dst **float64
	}{
		{colV1Set, &row.V1Set}, {colV2Set, &row.V2Set}, {colN, &row.N},
		{colV2, &row.V2}, {colV2SD, &row.V2SD},
		{colVd, &row.Vd}, {colVdSD, &row.VdSD},
		{colV1, &row.V1}, {colV1SD, &row.V1SD},
		{colDVMT1, &row.DVMT1}, {colDVMT2, &row.DVMT2},
		{colGMH1, &row.GMH1}, {colGMH2, &row.GMH2},
	}
	for _, f := range floats {
		v, err := g.Float(r, f.col)
		if err != nil {
			return row, err
		}
		*f.dst = v
	}

	times := []struct {
		col int
		dst **time.Time
	}{
		{colTimeV2, &row.TimeV2}, {colTimeVd, &row.TimeVd}, {colTimeV1, &row.TimeV1},
	}
	for _, tc := range times {
		v, err := g.Time(r, tc.col)
		if err != nil {
			return row, err
		}
		*tc.dst = v
	}
	return row, nil
}

// ParseLink finds the Rlink block recorded for runID. The sheet holds the
// number of reversal columns in B2 and readings per column in B3; each block
// starts with a "Run Id:" row followed by nominal values and the readings,
// alternating +V and -V columns.
func ParseLink(g Grid, runID string) (*model.LinkData, error) {
	nRevs, err := g.Int(2, 2)
	if err != nil || nRevs <= 0 {
		return nil, eris.New("ingest: missing or no Rlink reversals")
	}
	nReads, err := g.Int(3, 2)
	if err != nil || nReads <= 0 {
		return nil, eris.New("ingest: missing or no Rlink readings")
	}
	jump := rlinkHeader + nReads

	start := -1
	for r := 1; r < rlinkSearchLimit && r <= g.Rows(); r++ {
		if g.Cell(r, 1) != rlinkMarker {
			continue
		}
		if g.Cell(r, 2) == runID {
			start = r + 1
			break
		}
		r += jump
	}
	if start < 0 {
		return nil, eris.Errorf("ingest: no Rlink data for run %q", runID)
	}

	link := &model.LinkData{}
	nominals := []struct {
		row, col int
		dst      *float64
		name     string
	}{
		{start + 2, 3, &link.NomR1, "nominal R1"},
		{start + 3, 3, &link.NomR2, "nominal R2"},
		{start + 2, 4, &link.AbsV1, "nominal V1"},
		{start + 3, 4, &link.AbsV2, "nominal V2"},
	}
	for _, n := range nominals {
		v, err := g.Float(n.row, n.col)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, eris.Errorf("ingest: missing %s at %s", n.name, Ref(n.row, n.col))
		}
		*n.dst = *v
	}

	for r := start + 5; r < start+5+nReads; r++ {
		for c := 1; c <= nRevs; c += 2 {
			vp, err := g.Float(r, c)
			if err != nil {
				return nil, err
			}
			vn, err := g.Float(r, c+1)
			if err != nil {
				return nil, err
			}
			if vp == nil || vn == nil {
				return nil, eris.Errorf("ingest: missing Rlink reading in row %d", r)
			}
			link.Vp = append(link.Vp, *vp)
			link.Vn = append(link.Vn, *vn)
		}
	}
	return link, nil
}
