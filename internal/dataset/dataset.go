// Package dataset defines the tabular value passed between pipeline
// stages: an ordered list of named columns and rows of typed cells.
//
// Supported cell types are float64, string, bool and nil (null). Every
// parser and converter in this package normalizes to exactly these four,
// so downstream stages never see anything else.
package dataset

import (
	"errors"
	"fmt"
)

// Dataset is an ordered rectangular table. Rows hold cells in column
// order; a cell is float64, string, bool or nil.
type Dataset struct {
	Columns []string
	Rows    [][]any
}

// New returns an empty dataset with the given column order.
func New(columns ...string) *Dataset {
	return &Dataset{Columns: columns}
}

// NumRows returns the number of rows.
func (d *Dataset) NumRows() int { return len(d.Rows) }

// NumColumns returns the number of columns.
func (d *Dataset) NumColumns() int { return len(d.Columns) }

// AppendRow adds a row. The cell count must match the column count.
func (d *Dataset) AppendRow(cells ...any) error {
	if len(cells) != len(d.Columns) {
		return fmt.Errorf("row has %d cells, want %d", len(cells), len(d.Columns))
	}
	for i, c := range cells {
		if !validCell(c) {
			return fmt.Errorf("column %q: unsupported cell type %T", d.Columns[i], c)
		}
	}
	d.Rows = append(d.Rows, cells)
	return nil
}

// Validate checks that the dataset is well formed: at least one column,
// unique column names, rectangular rows and supported cell types.
func (d *Dataset) Validate() error {
	if d == nil {
		return errors.New("dataset is nil")
	}
	if len(d.Columns) == 0 {
		return errors.New("dataset has no columns")
	}
	seen := make(map[string]struct{}, len(d.Columns))
	for _, name := range d.Columns {
		if name == "" {
			return errors.New("empty column name")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate column %q", name)
		}
		seen[name] = struct{}{}
	}
	for i, row := range d.Rows {
		if len(row) != len(d.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(d.Columns))
		}
		for j, c := range row {
			if !validCell(c) {
				return fmt.Errorf("row %d column %q: unsupported cell type %T", i, d.Columns[j], c)
			}
		}
	}
	return nil
}

// Clone returns a deep copy. Each pipeline stage owns its working copy;
// the transform runner in particular never sees the fetcher's rows.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{Columns: append([]string(nil), d.Columns...)}
	if d.Rows != nil {
		out.Rows = make([][]any, len(d.Rows))
		for i, row := range d.Rows {
			out.Rows[i] = append([]any(nil), row...)
		}
	}
	return out
}

func validCell(c any) bool {
	switch c.(type) {
	case nil, float64, string, bool:
		return true
	default:
		return false
	}
}
