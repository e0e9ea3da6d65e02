// Package model holds the tabular input and metric record types shared across packages.
package model

import (
	"math"

	"github.com/rotisserie/eris"
)

// ColumnKind classifies a column as numeric or textual. The kind is fixed when
// the column is built and drives which metric branch applies.
type ColumnKind string

const (
	KindNumeric ColumnKind = "numeric"
	KindTextual ColumnKind = "textual"
)

// Cell is a single value in a column. Num is set for numeric columns and Str
// for textual ones; Null marks a missing value regardless of kind.
type Cell struct {
	Num  float64
	Str  string
	Null bool
}

// Column is a named, ordered sequence of cells of one kind.
type Column struct {
	Name  string     `json:"name"`
	Kind  ColumnKind `json:"kind"`
	Cells []Cell     `json:"-"`
}

// NumericColumn builds a numeric column. NaN values are stored as missing.
func NumericColumn(name string, values ...float64) Column {
	cells := make([]Cell, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			cells[i] = Cell{Null: true}
			continue
		}
		cells[i] = Cell{Num: v}
	}
	return Column{Name: name, Kind: KindNumeric, Cells: cells}
}

// TextColumn builds a textual column. Positions listed in missing are stored
// as missing cells.
func TextColumn(name string, values []string, missing ...int) Column {
	cells := make([]Cell, len(values))
	for i, v := range values {
		cells[i] = Cell{Str: v}
	}
	for _, idx := range missing {
		if idx >= 0 && idx < len(cells) {
			cells[idx] = Cell{Null: true}
		}
	}
	return Column{Name: name, Kind: KindTextual, Cells: cells}
}

// Len returns the number of rows in the column.
func (c Column) Len() int {
	return len(c.Cells)
}

// MissingCount returns the number of missing cells.
func (c Column) MissingCount() int {
	n := 0
	for _, cell := range c.Cells {
		if cell.Null {
			n++
		}
	}
	return n
}

// Values returns the non-missing numeric values in row order.
func (c Column) Values() []float64 {
	out := make([]float64, 0, len(c.Cells))
	for _, cell := range c.Cells {
		if !cell.Null {
			out = append(out, cell.Num)
		}
	}
	return out
}

// Table is an ordered set of row-aligned columns.
type Table struct {
	Name    string
	Columns []Column

	index map[string]int
}

// NewTable builds a table from columns, enforcing unique names and equal
// row counts.
func NewTable(name string, cols ...Column) (*Table, error) {
	t := &Table{Name: name}
	for _, c := range cols {
		if err := t.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// AddColumn appends a column. The first column fixes the row count.
func (t *Table) AddColumn(c Column) error {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	if _, ok := t.index[c.Name]; ok {
		return eris.Errorf("model: duplicate column %q", c.Name)
	}
	if len(t.Columns) > 0 && c.Len() != t.RowCount() {
		return eris.Errorf("model: column %q has %d rows, table has %d", c.Name, c.Len(), t.RowCount())
	}
	if c.Kind != KindNumeric && c.Kind != KindTextual {
		return eris.Errorf("model: column %q has unknown kind %q", c.Name, c.Kind)
	}
	t.index[c.Name] = len(t.Columns)
	t.Columns = append(t.Columns, c)
	return nil
}

// Column returns the named column, or nil if absent.
func (t *Table) Column(name string) *Column {
	if i, ok := t.index[name]; ok {
		return &t.Columns[i]
	}
	return nil
}

// ColumnNames returns column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// RowCount returns the shared row count, or 0 for a table with no columns.
func (t *Table) RowCount() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return t.Columns[0].Len()
}
