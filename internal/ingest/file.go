package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dqmetrics/internal/model"
)

// FileOptions bundles the per-format options used by ReadTableFile.
type FileOptions struct {
	Table TableOptions
	XLSX  XLSXOptions
	CSV   CSVOptions
}

// ReadTableFile loads a table from path, choosing the parser by extension:
// .csv, .tsv, .xlsx or .json. The dataset name defaults to the file's base
// name without extension.
func ReadTableFile(ctx context.Context, path string, opts FileOptions) (*model.Table, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if opts.Table.Dataset == "" {
		opts.Table.Dataset = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	switch ext {
	case ".xlsx":
		return ReadXLSXTable(path, opts.XLSX, opts.Table)
	case ".csv", ".tsv", ".json":
	default:
		return nil, eris.Errorf("ingest: unsupported file type %q", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open file")
	}
	defer f.Close() //nolint:errcheck

	switch ext {
	case ".json":
		return DecodeJSONTable(f, opts.Table)
	case ".tsv":
		if opts.CSV.Delimiter == 0 {
			opts.CSV.Delimiter = '\t'
		}
	}
	return ReadCSVTable(ctx, f, opts.CSV, opts.Table)
}
