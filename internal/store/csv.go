package store

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dqmetrics/internal/model"
)

// CSVStore implements Store as a flat CSV file, one row per metric record.
// The header is written with the first append.
type CSVStore struct {
	path string
	mu   sync.Mutex
}

// NewCSV returns a CSVStore backed by the file at path.
func NewCSV(path string) *CSVStore {
	return &CSVStore{path: path}
}

func (s *CSVStore) Migrate(_ context.Context) error {
	dir := filepath.Dir(s.path)
	return eris.Wrap(os.MkdirAll(dir, 0o755), "csv store: create directory")
}

func (s *CSVStore) Close() error {
	return nil
}

func (s *CSVStore) AppendMetrics(ctx context.Context, records []model.MetricRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, eris.Wrap(err, "csv store: append")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, eris.Wrap(err, "csv store: open")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, eris.Wrap(err, "csv store: stat")
	}

	w := csv.NewWriter(f)
	enc := csvutil.NewEncoder(w)
	enc.AutoHeader = info.Size() == 0
	for _, r := range records {
		r.ComputedAt = r.ComputedAt.UTC()
		if err := enc.Encode(r); err != nil {
			return 0, eris.Wrapf(err, "csv store: encode metric %s", r.ColumnName)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, eris.Wrap(err, "csv store: flush")
	}
	return len(records), nil
}

func (s *CSVStore) readAll(ctx context.Context) ([]model.MetricRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "csv store: read")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "csv store: open")
	}
	defer f.Close()

	dec, err := csvutil.NewDecoder(csv.NewReader(f))
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "csv store: read header")
	}

	var records []model.MetricRecord
	for {
		var r model.MetricRecord
		err := dec.Decode(&r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv store: decode")
		}
		records = append(records, r)
	}
	return records, nil
}

func (s *CSVStore) ListHistory(ctx context.Context, filter HistoryFilter) ([]model.MetricRecord, error) {
	all, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}

	var matched []model.MetricRecord
	for _, r := range all {
		if filter.matches(r) {
			matched = append(matched, r)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].ComputedAt.Before(matched[j].ComputedAt) })

	if limit := filter.limit(); len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}

func (s *CSVStore) ListColumns(ctx context.Context) ([]string, error) {
	all, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var cols []string
	for _, r := range all {
		if !seen[r.ColumnName] {
			seen[r.ColumnName] = true
			cols = append(cols, r.ColumnName)
		}
	}
	sort.Strings(cols)
	return cols, nil
}
