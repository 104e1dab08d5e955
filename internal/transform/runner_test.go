package transform

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/rs/zerolog"
	"github.com/zclconf/go-cty/cty"

	"github.com/djlord-it/easy-etl/internal/dataset"
	"github.com/djlord-it/easy-etl/internal/testutil"
)

func inputDataset() *dataset.Dataset {
	d := dataset.New("id", "name", "score")
	d.Rows = [][]any{
		{1.0, "alpha", 10.0},
		{2.0, "beta", 20.0},
		{3.0, "gamma", 30.0},
	}
	return d
}

func newTestRunner(timeout time.Duration) *Runner {
	return New(Config{Timeout: timeout}, zerolog.Nop())
}

func TestRun_Identity(t *testing.T) {
	r := newTestRunner(0)
	in := inputDataset()

	out, err := r.Run(testutil.TestContext(t), "output = input", in)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if !reflect.DeepEqual(out.Columns, in.Columns) {
		t.Fatalf("columns: got %v, want %v", out.Columns, in.Columns)
	}
	if !reflect.DeepEqual(out.Rows, in.Rows) {
		t.Fatalf("rows: got %v, want %v", out.Rows, in.Rows)
	}
}

func TestRun_InputNotMutated(t *testing.T) {
	r := newTestRunner(0)
	in := inputDataset()
	before := in.Clone()

	if _, err := r.Run(testutil.TestContext(t), `output = [for row in input : {id = row.id}]`, in); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if !reflect.DeepEqual(in.Rows, before.Rows) {
		t.Fatal("input dataset was mutated")
	}
}

func TestRun_ProjectionAndComputation(t *testing.T) {
	r := newTestRunner(0)
	in := inputDataset()

	code := `output = [for row in input : {
  name    = upper(row.name)
  doubled = row.score * 2
}]`
	out, err := r.Run(testutil.TestContext(t), code, in)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if out.NumRows() != 3 {
		t.Fatalf("rows: got %d, want 3", out.NumRows())
	}
	if out.Rows[0][0] != "ALPHA" {
		t.Fatalf("name: got %v, want ALPHA", out.Rows[0][0])
	}
	if out.Rows[2][1] != 60.0 {
		t.Fatalf("doubled: got %v, want 60", out.Rows[2][1])
	}
}

func TestRun_Filtering(t *testing.T) {
	r := newTestRunner(0)
	in := inputDataset()

	code := `output = [for row in input : row if row.score > 15]`
	out, err := r.Run(testutil.TestContext(t), code, in)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if out.NumRows() != 2 {
		t.Fatalf("rows: got %d, want 2", out.NumRows())
	}
}

func TestRun_IntermediateAttributes_AnyOrder(t *testing.T) {
	r := newTestRunner(0)
	in := inputDataset()

	// output references an attribute defined after it.
	code := `output = [for row in filtered : {name = row.name}]
filtered = [for row in input : row if row.score >= 20]`
	out, err := r.Run(testutil.TestContext(t), code, in)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if out.NumRows() != 2 {
		t.Fatalf("rows: got %d, want 2", out.NumRows())
	}
}

func TestRun_NoOutput_FallsBackToInput(t *testing.T) {
	r := newTestRunner(0)
	in := inputDataset()

	out, err := r.Run(testutil.TestContext(t), `ignored = 42`, in)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if !reflect.DeepEqual(out.Rows, in.Rows) {
		t.Fatal("expected passthrough of input")
	}
}

func TestRun_EmptyResult_OK(t *testing.T) {
	r := newTestRunner(0)
	in := inputDataset()

	out, err := r.Run(testutil.TestContext(t), `output = [for row in input : row if row.score > 1000]`, in)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if out.NumRows() != 0 {
		t.Fatalf("rows: got %d, want 0", out.NumRows())
	}
	if !reflect.DeepEqual(out.Columns, in.Columns) {
		t.Fatalf("columns: got %v, want %v", out.Columns, in.Columns)
	}
}

func TestRun_EmptyProgram_ErrTransform(t *testing.T) {
	r := newTestRunner(0)
	_, err := r.Run(testutil.TestContext(t), "   \n", inputDataset())
	if !errors.Is(err, ErrTransform) {
		t.Fatalf("expected ErrTransform, got %v", err)
	}
}

func TestRun_ParseError_ErrTransform(t *testing.T) {
	r := newTestRunner(0)
	_, err := r.Run(testutil.TestContext(t), "output = [unclosed", inputDataset())
	if !errors.Is(err, ErrTransform) {
		t.Fatalf("expected ErrTransform, got %v", err)
	}
}

func TestRun_BlocksRejected(t *testing.T) {
	r := newTestRunner(0)
	_, err := r.Run(testutil.TestContext(t), "block \"x\" {\n}\noutput = input", inputDataset())
	if !errors.Is(err, ErrTransform) {
		t.Fatalf("expected ErrTransform, got %v", err)
	}
}

func TestRun_InputReserved(t *testing.T) {
	r := newTestRunner(0)
	_, err := r.Run(testutil.TestContext(t), "input = []\noutput = input", inputDataset())
	if !errors.Is(err, ErrTransform) {
		t.Fatalf("expected ErrTransform, got %v", err)
	}
}

func TestRun_UndefinedReference_ErrTransform(t *testing.T) {
	r := newTestRunner(0)
	_, err := r.Run(testutil.TestContext(t), "output = nosuchthing", inputDataset())
	if !errors.Is(err, ErrTransform) {
		t.Fatalf("expected ErrTransform, got %v", err)
	}
}

func TestRun_UnknownFunction_ErrTransform(t *testing.T) {
	r := newTestRunner(0)
	_, err := r.Run(testutil.TestContext(t), `output = readfile("/etc/passwd")`, inputDataset())
	if !errors.Is(err, ErrTransform) {
		t.Fatalf("expected ErrTransform, got %v", err)
	}
}

func TestRun_ScalarOutput_OutputError(t *testing.T) {
	r := newTestRunner(0)
	_, err := r.Run(testutil.TestContext(t), "output = 42", inputDataset())
	var oe *OutputError
	if !errors.As(err, &oe) {
		t.Fatalf("expected OutputError, got %v", err)
	}
	if oe.Got == "" {
		t.Fatal("OutputError must name the produced type")
	}
}

func TestRun_InvalidInput_FailsBeforeEvaluation(t *testing.T) {
	r := newTestRunner(0)
	bad := &dataset.Dataset{} // no columns
	_, err := r.Run(testutil.TestContext(t), "output = input", bad)
	if !errors.Is(err, ErrTransform) {
		t.Fatalf("expected ErrTransform, got %v", err)
	}
}

func TestRun_Timeout_ErrTimeout(t *testing.T) {
	r := newTestRunner(50 * time.Millisecond)
	release := make(chan struct{})
	defer close(release)
	r.eval = func(attrs hclsyntax.Attributes, input cty.Value) (cty.Value, bool, error) {
		<-release
		return input, true, nil
	}

	start := time.Now()
	_, err := r.Run(context.Background(), "output = input", inputDataset())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("runner did not disengage promptly, took %v", elapsed)
	}
}

func TestRun_ContextCancelled_ErrTransform(t *testing.T) {
	r := newTestRunner(time.Minute)
	release := make(chan struct{})
	defer close(release)
	r.eval = func(attrs hclsyntax.Attributes, input cty.Value) (cty.Value, bool, error) {
		<-release
		return input, true, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, "output = input", inputDataset())
	if !errors.Is(err, ErrTransform) {
		t.Fatalf("expected ErrTransform, got %v", err)
	}
}

func TestRun_EvaluationPanic_ErrTransform(t *testing.T) {
	r := newTestRunner(0)
	r.eval = func(attrs hclsyntax.Attributes, input cty.Value) (cty.Value, bool, error) {
		panic("boom")
	}

	_, err := r.Run(context.Background(), "output = input", inputDataset())
	if !errors.Is(err, ErrTransform) {
		t.Fatalf("expected ErrTransform, got %v", err)
	}
}

func TestRun_WhitelistedFunctions(t *testing.T) {
	r := newTestRunner(0)
	in := inputDataset()

	code := `names  = [for row in input : row.name]
output = [{joined = join(",", sort(names)), count = length(names)}]`
	out, err := r.Run(testutil.TestContext(t), code, in)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if out.Rows[0][1] != "alpha,beta,gamma" {
		t.Fatalf("joined: got %v", out.Rows[0][1])
	}
	if out.Rows[0][0] != 3.0 {
		t.Fatalf("count: got %v", out.Rows[0][0])
	}
}
