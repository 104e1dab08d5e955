package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

// ParseJSON reads a JSON document into a dataset. Three shapes are
// accepted, mirroring common API response layouts:
//
//   - a list of objects: each object becomes one row
//   - an object with at least one array-valued field: column-oriented
//     data, scalar fields are broadcast to every row
//   - any other object: a single row
//
// Column order is the sorted union of keys, since JSON object key order
// is not preserved by decoding.
func ParseJSON(r io.Reader) (*Dataset, error) {
	dec := json.NewDecoder(r)
	var doc any
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, errors.New("empty document")
		}
		return nil, fmt.Errorf("decode json: %w", err)
	}

	switch v := doc.(type) {
	case []any:
		return fromObjectList(v)
	case map[string]any:
		if hasArrayField(v) {
			return fromColumnar(v)
		}
		return fromObjectList([]any{v})
	default:
		return nil, fmt.Errorf("unsupported document shape %T", doc)
	}
}

func hasArrayField(obj map[string]any) bool {
	for _, v := range obj {
		if _, ok := v.([]any); ok {
			return true
		}
	}
	return false
}

func fromObjectList(items []any) (*Dataset, error) {
	if len(items) == 0 {
		return nil, errors.New("empty object list")
	}

	keys := make(map[string]struct{})
	rows := make([]map[string]any, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("element %d is %T, want object", i, item)
		}
		for k := range obj {
			keys[k] = struct{}{}
		}
		rows = append(rows, obj)
	}

	d := New(sortedKeys(keys)...)
	for i, obj := range rows {
		row := make([]any, len(d.Columns))
		for j, col := range d.Columns {
			cell, err := jsonCell(obj[col])
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i, col, err)
			}
			row[j] = cell
		}
		d.Rows = append(d.Rows, row)
	}
	return d, nil
}

func fromColumnar(obj map[string]any) (*Dataset, error) {
	length := -1
	for k, v := range obj {
		arr, ok := v.([]any)
		if !ok {
			continue
		}
		if length >= 0 && len(arr) != length {
			return nil, fmt.Errorf("column %q has %d values, want %d", k, len(arr), length)
		}
		length = len(arr)
	}

	keys := make(map[string]struct{}, len(obj))
	for k := range obj {
		keys[k] = struct{}{}
	}

	d := New(sortedKeys(keys)...)
	for i := 0; i < length; i++ {
		row := make([]any, len(d.Columns))
		for j, col := range d.Columns {
			raw := obj[col]
			if arr, ok := raw.([]any); ok {
				raw = arr[i]
			}
			cell, err := jsonCell(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i, col, err)
			}
			row[j] = cell
		}
		d.Rows = append(d.Rows, row)
	}
	return d, nil
}

func jsonCell(v any) (any, error) {
	switch c := v.(type) {
	case nil, float64, string, bool:
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported cell type %T", v)
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
