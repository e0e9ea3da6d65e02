package ingest

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/dqmetrics/internal/model"
)

// DefaultNullMarkers mirrors the pandas read_csv na_values set.
var DefaultNullMarkers = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
	"n/a", "nan", "null",
}

// TableOptions controls how raw rows become a model.Table.
type TableOptions struct {
	Dataset          string   // table name recorded on every metric
	NullMarkers      []string // nil = DefaultNullMarkers
	Columns          []string // keep only these columns, in this order; nil = all
	Limit            int      // max data rows (0 = all)
	NormalizeHeaders bool     // lower-case and trim header names
}

func (o TableOptions) nullSet() map[string]struct{} {
	markers := o.NullMarkers
	if markers == nil {
		markers = DefaultNullMarkers
	}
	set := make(map[string]struct{}, len(markers))
	for _, m := range markers {
		set[m] = struct{}{}
	}
	return set
}

// NormalizeHeader trims and lower-cases a header name.
func NormalizeHeader(h string) string {
	// A Caser is stateful; build one per call so ingestion can run concurrently.
	return cases.Lower(language.Und).String(strings.TrimSpace(h))
}

// InferKind returns KindNumeric when every non-missing raw value parses as a
// float. A column with no present values is numeric.
func InferKind(raw []string, nulls map[string]struct{}) model.ColumnKind {
	for _, v := range raw {
		if _, isNull := nulls[v]; isNull {
			continue
		}
		if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
			return model.KindTextual
		}
	}
	return model.KindNumeric
}

// BuildColumn converts raw strings to a typed column. The kind is decided
// once here and never revisited.
func BuildColumn(name string, raw []string, nulls map[string]struct{}) model.Column {
	kind := InferKind(raw, nulls)
	cells := make([]model.Cell, len(raw))
	for i, v := range raw {
		if _, isNull := nulls[v]; isNull {
			cells[i] = model.Cell{Null: true}
			continue
		}
		if kind == model.KindNumeric {
			f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
			cells[i] = model.Cell{Num: f}
			continue
		}
		cells[i] = model.Cell{Str: v}
	}
	return model.Column{Name: name, Kind: kind, Cells: cells}
}

// tableBuilder accumulates header + rows and emits a column-oriented table.
type tableBuilder struct {
	opts    TableOptions
	headers []string
	keep    []int // header indexes to keep, in output order
	raw     [][]string
	rows    int
}

func newTableBuilder(header []string, opts TableOptions) (*tableBuilder, error) {
	b := &tableBuilder{opts: opts}
	b.headers = make([]string, len(header))
	pos := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if opts.NormalizeHeaders {
			name = NormalizeHeader(h)
		}
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		if _, dup := pos[name]; dup {
			return nil, eris.Errorf("ingest: duplicate header %q", name)
		}
		b.headers[i] = name
		pos[name] = i
	}

	if len(opts.Columns) == 0 {
		for i := range b.headers {
			b.keep = append(b.keep, i)
		}
	} else {
		for _, c := range opts.Columns {
			want := c
			if opts.NormalizeHeaders {
				want = NormalizeHeader(c)
			}
			i, ok := pos[want]
			if !ok {
				return nil, eris.Errorf("ingest: column %q not found", c)
			}
			b.keep = append(b.keep, i)
		}
	}
	b.raw = make([][]string, len(b.keep))
	return b, nil
}

// add appends a data row. It reports false once Limit is reached.
func (b *tableBuilder) add(row []string) bool {
	if b.opts.Limit > 0 && b.rows >= b.opts.Limit {
		return false
	}
	for j, i := range b.keep {
		v := ""
		if i < len(row) {
			v = row[i]
		}
		b.raw[j] = append(b.raw[j], v)
	}
	b.rows++
	return true
}

func (b *tableBuilder) table() (*model.Table, error) {
	nulls := b.opts.nullSet()
	t := &model.Table{Name: b.opts.Dataset}
	for j, i := range b.keep {
		raw := b.raw[j]
		if raw == nil {
			raw = []string{}
		}
		if err := t.AddColumn(BuildColumn(b.headers[i], raw, nulls)); err != nil {
			return nil, eris.Wrap(err, "ingest: build table")
		}
	}
	return t, nil
}

// TableFromRows builds a table from a header row and data rows.
func TableFromRows(header []string, rows [][]string, opts TableOptions) (*model.Table, error) {
	b, err := newTableBuilder(header, opts)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if !b.add(r) {
			break
		}
	}
	return b.table()
}
