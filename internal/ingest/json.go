package ingest

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cast"

	"github.com/sells-group/dqmetrics/internal/model"
)

// JSONTable is the column-oriented wire shape accepted by DecodeJSONTable:
//
//	{"name": "orders", "columns": [{"name": "amount", "values": [1, null, 3]}]}
type JSONTable struct {
	Name    string       `json:"name"`
	Columns []JSONColumn `json:"columns"`
}

// JSONColumn is one column of a JSONTable. Kind is optional and inferred
// when empty.
type JSONColumn struct {
	Name   string           `json:"name"`
	Kind   model.ColumnKind `json:"kind,omitempty"`
	Values []any            `json:"values"`
}

// DecodeJSONTable decodes a JSONTable from r and converts it to a model.Table.
func DecodeJSONTable(r io.Reader, opts TableOptions) (*model.Table, error) {
	var jt JSONTable
	if err := json.NewDecoder(r).Decode(&jt); err != nil {
		return nil, eris.Wrap(err, "json: decode table")
	}
	return jt.Table(opts)
}

// Table converts the wire shape into a model.Table. JSON null and any string
// in the null marker set become missing cells.
func (jt JSONTable) Table(opts TableOptions) (*model.Table, error) {
	name := jt.Name
	if opts.Dataset != "" {
		name = opts.Dataset
	}
	nulls := opts.nullSet()

	t := &model.Table{Name: name}
	for _, jc := range jt.Columns {
		colName := jc.Name
		if opts.NormalizeHeaders {
			colName = NormalizeHeader(colName)
		}
		values := jc.Values
		if opts.Limit > 0 && len(values) > opts.Limit {
			values = values[:opts.Limit]
		}
		col, err := columnFromValues(colName, jc.Kind, values, nulls)
		if err != nil {
			return nil, err
		}
		if err := t.AddColumn(col); err != nil {
			return nil, eris.Wrap(err, "json: build table")
		}
	}
	return t, nil
}

func isNullValue(v any, nulls map[string]struct{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		_, isNull := nulls[s]
		return isNull
	}
	return false
}

func columnFromValues(name string, kind model.ColumnKind, values []any, nulls map[string]struct{}) (model.Column, error) {
	if kind == "" {
		kind = model.KindNumeric
		for _, v := range values {
			if isNullValue(v, nulls) {
				continue
			}
			if _, err := cast.ToFloat64E(v); err != nil {
				kind = model.KindTextual
				break
			}
		}
	}

	cells := make([]model.Cell, len(values))
	for i, v := range values {
		if isNullValue(v, nulls) {
			cells[i] = model.Cell{Null: true}
			continue
		}
		switch kind {
		case model.KindNumeric:
			f, err := cast.ToFloat64E(v)
			if err != nil {
				return model.Column{}, eris.Wrapf(err, "json: column %q row %d is not numeric", name, i)
			}
			cells[i] = model.Cell{Num: f}
		case model.KindTextual:
			s, err := cast.ToStringE(v)
			if err != nil {
				return model.Column{}, eris.Wrapf(err, "json: column %q row %d", name, i)
			}
			cells[i] = model.Cell{Str: s}
		default:
			return model.Column{}, eris.Errorf("json: column %q has unknown kind %q", name, kind)
		}
	}
	return model.Column{Name: name, Kind: kind, Cells: cells}, nil
}
