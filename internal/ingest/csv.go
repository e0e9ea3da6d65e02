// Package ingest loads tabular files (CSV, TSV, XLSX, JSON) into model.Table
// values ready for metric computation.
package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dqmetrics/internal/model"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune            // default ','
	HasHeader  bool            // if true, first row is skipped but sent to HeaderCh
	HeaderCh   chan<- []string // optional: receives the header row
	Comment    rune            // comment character (0 = none)
	LazyQuotes bool
	TrimSpace  bool
}

// StreamCSV reads CSV rows and sends them to a channel.
// Caller must consume the returned row channel. Errors are sent on the error channel.
// Both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
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
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1 // allow variable fields

		first := true
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

			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			if first && opts.HasHeader {
				first = false
				if opts.HeaderCh != nil {
					select {
					case opts.HeaderCh <- record:
					case <-ctx.Done():
						errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled sending header")
						return
					}
				}
				continue
			}
			first = false

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// ReadCSVTable reads a delimited stream whose first row is the header.
// Reading stops early once opts.Limit rows have been collected.
func ReadCSVTable(ctx context.Context, r io.Reader, csvOpts CSVOptions, opts TableOptions) (*model.Table, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	csvOpts.HasHeader = false
	csvOpts.HeaderCh = nil
	csvOpts.LazyQuotes = true
	rowCh, errCh := StreamCSV(ctx, r, csvOpts)

	var b *tableBuilder
	stopped := false
	for row := range rowCh {
		if b == nil {
			var err error
			if b, err = newTableBuilder(row, opts); err != nil {
				return nil, err
			}
			continue
		}
		if !b.add(row) {
			stopped = true
			cancel()
			break
		}
	}
	// Drain so the producer goroutine can exit after an early stop.
	for range rowCh {
	}
	if err := <-errCh; err != nil && !stopped {
		return nil, err
	}

	if b == nil {
		return nil, eris.New("csv: missing header row")
	}
	return b.table()
}
