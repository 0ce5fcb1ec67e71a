package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/bridge-cli/internal/model"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter rune // default ','
	Comment   rune // comment character (0 = none)
	TrimSpace bool
	// Charset names the encoding of the input, e.g. "windows-1252". Empty
	// means UTF-8.
	Charset string
}

// decode wraps r in a decoder for charset.
func decode(r io.Reader, charset string) (io.Reader, error) {
	if charset == "" || strings.EqualFold(charset, "utf-8") {
		return r, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(r), nil
}

// Record is one CSV record. Line is the 1-based input line it starts on and
// Lines the number of input lines it spans.
type Record struct {
	Line   int
	Lines  int
	Fields []string
}

// StreamCSV reads CSV records from r and sends them to a channel.
// Caller must consume the returned row channel. Errors are sent on the error
// channel. Both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan Record, <-chan error) {
	rowCh := make(chan Record, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.FieldsPerRecord = -1 // sheet exports have ragged rows

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			line, _ := reader.FieldPos(0)
			rec := Record{Line: line, Lines: 1 + lineBreaks(record), Fields: record}

			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			select {
			case rowCh <- rec:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// ReadGrid collects a CSV stream into a Grid whose row i is sheet row i+1.
// encoding/csv skips blank and comment lines; they come back as empty rows
// so later cells keep their sheet addresses.
func ReadGrid(ctx context.Context, r io.Reader, opts CSVOptions) (Grid, error) {
	r, err := decode(r, opts.Charset)
	if err != nil {
		return nil, err
	}
	rowCh, errCh := StreamCSV(ctx, r, opts)
	var g Grid
	next := 1 // input line the next record starts on when nothing is skipped
	for rec := range rowCh {
		for ; next < rec.Line; next++ {
			g = append(g, nil)
		}
		g = append(g, rec.Fields)
		next = rec.Line + rec.Lines
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return g, nil
}

// lineBreaks counts the newlines inside quoted fields of a record.
func lineBreaks(fields []string) int {
	n := 0
	for _, f := range fields {
		n += strings.Count(f, "\n")
	}
	return n
}

func readGridFile(ctx context.Context, path, charset string) (Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return ReadGrid(ctx, f, CSVOptions{TrimSpace: true, Charset: charset})
}

// LoadCSV reads a run from a CSV export of the Data sheet and, when
// rlinkPath is not empty, of the Rlink sheet.
func LoadCSV(ctx context.Context, dataPath, rlinkPath string, opts Options) (*model.RunInput, error) {
	data, err := readGridFile(ctx, dataPath, opts.Charset)
	if err != nil {
		return nil, err
	}
	var rlink Grid
	if rlinkPath != "" {
		if rlink, err = readGridFile(ctx, rlinkPath, opts.Charset); err != nil {
			return nil, err
		}
	}
	in, err := ParseRun(data, rlink, dataPath, opts)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: %s", dataPath)
	}
	return in, nil
}
