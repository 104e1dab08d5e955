package dataset

import (
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// CtyValue converts the dataset to a cty tuple of row objects, the form
// the transform runner binds to the input variable. Null cells become
// null strings; cty values are immutable, so user code can never mutate
// the fetched dataset through this value.
func (d *Dataset) CtyValue() cty.Value {
	if len(d.Rows) == 0 {
		return cty.EmptyTupleVal
	}
	rows := make([]cty.Value, len(d.Rows))
	for i, row := range d.Rows {
		attrs := make(map[string]cty.Value, len(d.Columns))
		for j, col := range d.Columns {
			attrs[col] = ctyCell(row[j])
		}
		rows[i] = cty.ObjectVal(attrs)
	}
	return cty.TupleVal(rows)
}

// FromCty converts a transform result back to a dataset. The value must
// be a list, set or tuple of objects (or maps). Columns named in hint
// keep the hint's order; any additional columns are appended sorted.
// An empty collection yields a zero-row dataset with the hint columns.
func FromCty(v cty.Value, hint []string) (*Dataset, error) {
	if v.IsNull() {
		return nil, fmt.Errorf("value is null")
	}
	ty := v.Type()
	if !ty.IsTupleType() && !ty.IsListType() && !ty.IsSetType() {
		return nil, fmt.Errorf("value is %s, want a list of objects", ty.FriendlyName())
	}

	var rowMaps []map[string]cty.Value
	seen := make(map[string]struct{})
	for it := v.ElementIterator(); it.Next(); {
		_, el := it.Element()
		if el.IsNull() {
			return nil, fmt.Errorf("row %d is null", len(rowMaps))
		}
		elTy := el.Type()
		if !elTy.IsObjectType() && !elTy.IsMapType() {
			return nil, fmt.Errorf("row %d is %s, want an object", len(rowMaps), elTy.FriendlyName())
		}
		m := el.AsValueMap()
		for k := range m {
			seen[k] = struct{}{}
		}
		rowMaps = append(rowMaps, m)
	}

	columns := orderColumns(seen, hint)
	if len(rowMaps) == 0 {
		columns = append([]string(nil), hint...)
	}

	d := New(columns...)
	for i, m := range rowMaps {
		row := make([]any, len(d.Columns))
		for j, col := range d.Columns {
			cv, ok := m[col]
			if !ok {
				row[j] = nil
				continue
			}
			cell, err := goCell(cv)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i, col, err)
			}
			row[j] = cell
		}
		d.Rows = append(d.Rows, row)
	}
	return d, nil
}

func ctyCell(cell any) cty.Value {
	switch v := cell.(type) {
	case nil:
		return cty.NullVal(cty.String)
	case float64:
		return cty.NumberFloatVal(v)
	case string:
		return cty.StringVal(v)
	case bool:
		return cty.BoolVal(v)
	default:
		return cty.NullVal(cty.String)
	}
}

func goCell(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsKnown() {
		return nil, fmt.Errorf("value is not known")
	}
	switch v.Type() {
	case cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return f, nil
	case cty.String:
		return v.AsString(), nil
	case cty.Bool:
		return v.True(), nil
	default:
		return nil, fmt.Errorf("unsupported cell type %s", v.Type().FriendlyName())
	}
}

// orderColumns keeps hint order for known columns and appends the rest
// alphabetically.
func orderColumns(seen map[string]struct{}, hint []string) []string {
	out := make([]string, 0, len(seen))
	used := make(map[string]struct{}, len(seen))
	for _, col := range hint {
		if _, ok := seen[col]; ok {
			out = append(out, col)
			used[col] = struct{}{}
		}
	}
	var extra []string
	for col := range seen {
		if _, ok := used[col]; !ok {
			extra = append(extra, col)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}
