// Package transform executes user-supplied transformation programs
// against a dataset under a hard wall-clock budget.
//
// A program is a set of HCL attributes evaluated with go-cty values.
// The fetched dataset is bound to "input" (as a list of row objects)
// and the attribute named "output" is the result; when no output is
// defined the input binding is used as-is. The evaluation context
// exposes only a fixed whitelist of pure functions, so user code has no
// filesystem, network or process capability.
//
// The timeout is abandonment, not termination: a runaway evaluation
// goroutine cannot be cancelled mid-expression and may keep consuming
// CPU and memory after the runner disengages from it. Its result is
// discarded and never observed.
package transform

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/rs/zerolog"
	"github.com/zclconf/go-cty/cty"

	"github.com/djlord-it/easy-etl/internal/dataset"
)

const (
	inputVar  = "input"
	outputVar = "output"
)

// ErrTransform wraps validation, parse and evaluation failures.
var ErrTransform = errors.New("transform failed")

// ErrTimeout is returned when evaluation exceeds the configured budget.
var ErrTimeout = errors.New("transform timed out")

// OutputError reports a program whose result is not a dataset. Got
// names the cty type the program actually produced.
type OutputError struct {
	Got   string
	cause error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("transform output is not a dataset: produced %s: %v", e.Got, e.cause)
}

func (e *OutputError) Unwrap() error { return e.cause }

// MetricsSink records transform metrics. All methods are fire-and-forget.
type MetricsSink interface {
	TransformCompleted(outcome string, duration time.Duration)
}

type Config struct {
	// Timeout is the wall-clock budget per execution. Default 5m.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Minute
	}
	return c
}

type Runner struct {
	config  Config
	metrics MetricsSink // optional, nil = disabled
	log     zerolog.Logger

	// eval performs the actual evaluation; injected for tests.
	eval func(attrs hclsyntax.Attributes, input cty.Value) (cty.Value, bool, error)
}

func New(config Config, log zerolog.Logger) *Runner {
	return &Runner{
		config: config.withDefaults(),
		log:    log.With().Str("component", "transform").Logger(),
		eval:   evaluate,
	}
}

// WithMetrics attaches a metrics sink.
func (r *Runner) WithMetrics(sink MetricsSink) *Runner {
	r.metrics = sink
	return r
}

type evalResult struct {
	value     cty.Value
	hasOutput bool
	err       error
}

// Run evaluates code against input and returns the produced dataset.
// Validation and parse errors fail immediately without consuming the
// timeout budget.
func (r *Runner) Run(ctx context.Context, code string, input *dataset.Dataset) (*dataset.Dataset, error) {
	start := time.Now()
	out, err := r.run(ctx, code, input)
	if r.metrics != nil {
		outcome := "success"
		switch {
		case errors.Is(err, ErrTimeout):
			outcome = "timeout"
		case err != nil:
			outcome = "failure"
		}
		r.metrics.TransformCompleted(outcome, time.Since(start))
	}
	return out, err
}

func (r *Runner) run(ctx context.Context, code string, input *dataset.Dataset) (*dataset.Dataset, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid input dataset: %v", ErrTransform, err)
	}
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: empty program", ErrTransform)
	}

	file, diags := hclsyntax.ParseConfig([]byte(code), "transform.hcl", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: parse: %s", ErrTransform, diags.Error())
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected body type", ErrTransform)
	}
	if len(body.Blocks) > 0 {
		return nil, fmt.Errorf("%w: blocks are not allowed, use attributes only", ErrTransform)
	}
	if _, reserved := body.Attributes[inputVar]; reserved {
		return nil, fmt.Errorf("%w: %q is a reserved name", ErrTransform, inputVar)
	}

	// The program gets its own copy of the dataset; cty values are
	// immutable, so nothing the program does can reach the original.
	inputVal := input.Clone().CtyValue()

	resultCh := make(chan evalResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				resultCh <- evalResult{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		value, hasOutput, err := r.eval(body.Attributes, inputVal)
		resultCh <- evalResult{value: value, hasOutput: hasOutput, err: err}
	}()

	timer := time.NewTimer(r.config.Timeout)
	defer timer.Stop()

	var res evalResult
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrTransform, ctx.Err())
	case <-timer.C:
		r.log.Error().Dur("timeout", r.config.Timeout).Msg("execution abandoned after timeout")
		return nil, fmt.Errorf("%w after %s", ErrTimeout, r.config.Timeout)
	case res = <-resultCh:
	}

	if res.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransform, res.err)
	}

	value := res.value
	if !res.hasOutput {
		// Convenience fallback: a program that never assigns output
		// yields its input. Logged so no-op programs stay visible.
		r.log.Warn().Msg("no output binding set, falling back to input")
		value = inputVal
	}

	out, err := dataset.FromCty(value, input.Columns)
	if err != nil {
		return nil, &OutputError{Got: value.Type().FriendlyName(), cause: err}
	}
	if out.NumRows() == 0 {
		r.log.Warn().Msg("transform produced an empty dataset")
	}
	return out, nil
}

// evaluate resolves attributes by fixed-point iteration so programs may
// name intermediate values in any order. Unresolvable attributes (cycles
// or genuine evaluation errors) surface the last diagnostic.
func evaluate(attrs hclsyntax.Attributes, input cty.Value) (cty.Value, bool, error) {
	funcs := Functions()

	resolved := map[string]cty.Value{inputVar: input}
	pending := make(map[string]*hclsyntax.Attribute, len(attrs))
	for name, attr := range attrs {
		pending[name] = attr
	}

	var lastDiags hcl.Diagnostics
	for len(pending) > 0 {
		progress := false
		for name, attr := range pending {
			evalCtx := &hcl.EvalContext{Variables: resolved, Functions: funcs}
			value, diags := attr.Expr.Value(evalCtx)
			if diags.HasErrors() {
				lastDiags = diags
				continue
			}
			resolved[name] = value
			delete(pending, name)
			progress = true
		}
		if !progress {
			return cty.NilVal, false, fmt.Errorf("evaluate: %s", lastDiags.Error())
		}
	}

	value, hasOutput := resolved[outputVar]
	return value, hasOutput, nil
}
