package dataset

import (
	"reflect"
	"testing"

	"github.com/zclconf/go-cty/cty"
)

func TestCtyValue_RowsBecomeObjects(t *testing.T) {
	d := New("id", "name")
	d.Rows = [][]any{{1.0, "alpha"}}

	v := d.CtyValue()
	if !v.Type().IsTupleType() {
		t.Fatalf("expected tuple, got %s", v.Type().FriendlyName())
	}
	row := v.Index(cty.NumberIntVal(0))
	if got := row.GetAttr("name"); got.AsString() != "alpha" {
		t.Fatalf("name: got %v", got)
	}
}

func TestCtyValue_EmptyDataset_EmptyTuple(t *testing.T) {
	d := New("id")
	v := d.CtyValue()
	if v.LengthInt() != 0 {
		t.Fatalf("expected empty tuple, got length %d", v.LengthInt())
	}
}

func TestCtyValue_NullCell_NullValue(t *testing.T) {
	d := New("x")
	d.Rows = [][]any{{nil}}
	row := d.CtyValue().Index(cty.NumberIntVal(0))
	if !row.GetAttr("x").IsNull() {
		t.Fatal("expected null attribute")
	}
}

func TestFromCty_RoundTrip_PreservesColumnOrder(t *testing.T) {
	d := New("zeta", "alpha", "mid")
	d.Rows = [][]any{
		{1.0, "a", true},
		{2.0, "b", false},
	}

	out, err := FromCty(d.CtyValue(), d.Columns)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if !reflect.DeepEqual(out.Columns, d.Columns) {
		t.Fatalf("columns: got %v, want %v", out.Columns, d.Columns)
	}
	if !reflect.DeepEqual(out.Rows, d.Rows) {
		t.Fatalf("rows: got %v, want %v", out.Rows, d.Rows)
	}
}

func TestFromCty_ExtraColumns_AppendedSorted(t *testing.T) {
	v := cty.TupleVal([]cty.Value{
		cty.ObjectVal(map[string]cty.Value{
			"known": cty.StringVal("k"),
			"zz":    cty.NumberIntVal(1),
			"aa":    cty.True,
		}),
	})
	out, err := FromCty(v, []string{"known"})
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	want := []string{"known", "aa", "zz"}
	if !reflect.DeepEqual(out.Columns, want) {
		t.Fatalf("columns: got %v, want %v", out.Columns, want)
	}
}

func TestFromCty_EmptyCollection_KeepsHintColumns(t *testing.T) {
	out, err := FromCty(cty.EmptyTupleVal, []string{"a", "b"})
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if !reflect.DeepEqual(out.Columns, []string{"a", "b"}) {
		t.Fatalf("columns: got %v", out.Columns)
	}
	if out.NumRows() != 0 {
		t.Fatalf("rows: got %d, want 0", out.NumRows())
	}
}

func TestFromCty_ScalarValue_Error(t *testing.T) {
	if _, err := FromCty(cty.NumberIntVal(5), nil); err == nil {
		t.Fatal("expected error for scalar value")
	}
}

func TestFromCty_RowNotObject_Error(t *testing.T) {
	v := cty.TupleVal([]cty.Value{cty.StringVal("not an object")})
	if _, err := FromCty(v, nil); err == nil {
		t.Fatal("expected error for non-object row")
	}
}

func TestFromCty_MissingAttribute_Null(t *testing.T) {
	v := cty.TupleVal([]cty.Value{
		cty.ObjectVal(map[string]cty.Value{"a": cty.NumberIntVal(1), "b": cty.StringVal("x")}),
		cty.ObjectVal(map[string]cty.Value{"a": cty.NumberIntVal(2)}),
	})
	out, err := FromCty(v, []string{"a", "b"})
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if out.Rows[1][1] != nil {
		t.Fatalf("expected null for missing attribute, got %v", out.Rows[1][1])
	}
}
