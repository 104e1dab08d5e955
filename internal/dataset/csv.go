package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseCSV reads a CSV document with a header row into a dataset.
// Cell values are inferred: empty cells become null, "true"/"false"
// become bools, numeric strings become float64, everything else stays
// a string.
func ParseCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0 // all records must match the header width

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("empty document")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	d := New(header...)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(d.Rows)+1, err)
		}
		row := make([]any, len(record))
		for i, field := range record {
			row[i] = inferCell(field)
		}
		d.Rows = append(d.Rows, row)
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// FormatCSV renders the dataset in its canonical textual form: a header
// row followed by one line per row, RFC 4180 quoting. The rendering is
// locale-independent and stable: formatting the parse of a formatted
// dataset yields identical bytes.
func FormatCSV(d *Dataset) (string, error) {
	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("invalid dataset: %w", err)
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write(d.Columns); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(d.Columns))
	for _, row := range d.Rows {
		for i, cell := range row {
			record[i] = formatCell(cell)
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func inferCell(field string) any {
	if field == "" {
		return nil
	}
	switch field {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(field, 64); err == nil {
		return f
	}
	return field
}

func formatCell(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	default:
		// Validate rejects these before rendering.
		return fmt.Sprint(v)
	}
}
