package dataset

import (
	"testing"
)

func TestAppendRow_MatchingWidth_Added(t *testing.T) {
	d := New("id", "name")
	if err := d.AppendRow(1.0, "alpha"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if d.NumRows() != 1 {
		t.Fatalf("expected 1 row, got %d", d.NumRows())
	}
}

func TestAppendRow_WrongWidth_Error(t *testing.T) {
	d := New("id", "name")
	if err := d.AppendRow(1.0); err == nil {
		t.Fatal("expected error for short row")
	}
}

func TestAppendRow_UnsupportedType_Error(t *testing.T) {
	d := New("id")
	if err := d.AppendRow(42); err == nil {
		t.Fatal("expected error for int cell")
	}
}

func TestValidate_WellFormed_OK(t *testing.T) {
	d := New("id", "active", "note")
	d.Rows = [][]any{
		{1.0, true, "x"},
		{2.0, false, nil},
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestValidate_NoColumns_Error(t *testing.T) {
	d := &Dataset{}
	if err := d.Validate(); err == nil {
		t.Fatal("expected error for zero columns")
	}
}

func TestValidate_DuplicateColumn_Error(t *testing.T) {
	d := New("id", "id")
	if err := d.Validate(); err == nil {
		t.Fatal("expected error for duplicate column")
	}
}

func TestValidate_EmptyColumnName_Error(t *testing.T) {
	d := New("id", "")
	if err := d.Validate(); err == nil {
		t.Fatal("expected error for empty column name")
	}
}

func TestValidate_RaggedRow_Error(t *testing.T) {
	d := New("a", "b")
	d.Rows = [][]any{{1.0}}
	if err := d.Validate(); err == nil {
		t.Fatal("expected error for ragged row")
	}
}

func TestValidate_NilDataset_Error(t *testing.T) {
	var d *Dataset
	if err := d.Validate(); err == nil {
		t.Fatal("expected error for nil dataset")
	}
}

func TestClone_MutatingCopy_LeavesOriginal(t *testing.T) {
	d := New("id", "name")
	d.Rows = [][]any{{1.0, "alpha"}}

	c := d.Clone()
	c.Rows[0][1] = "mutated"
	c.Columns[0] = "renamed"

	if d.Rows[0][1] != "alpha" {
		t.Fatalf("original row mutated: %v", d.Rows[0][1])
	}
	if d.Columns[0] != "id" {
		t.Fatalf("original columns mutated: %v", d.Columns[0])
	}
}

func TestClone_EmptyRows_NilPreserved(t *testing.T) {
	d := New("id")
	c := d.Clone()
	if c.Rows != nil {
		t.Fatalf("expected nil rows, got %v", c.Rows)
	}
}
