package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/xshader/glsl"
	"github.com/gogpu/xshader/ir"
	"github.com/gogpu/xshader/msl"
	"github.com/gogpu/xshader/reflection"
)

// Input is one source unit handed to the driver.
type Input struct {
	Name   string
	Stage  ir.ShaderStage
	Source []byte
}

// Result is the outcome of one unit.
type Result struct {
	Name  string
	Stage ir.ShaderStage
	State State

	// Output is the emitted MSL source.
	Output          string
	Summary         reflection.Summary
	EntryPointNames map[string]string

	// Err is the failure reason and Kind its class. Both are zero on success.
	Err  error
	Kind ErrorKind

	// Skipped is set for units a fail-fast run never started.
	Skipped bool
}

// OK reports whether the unit went through every stage.
func (r *Result) OK() bool {
	return r.Err == nil && !r.Skipped
}

// Report holds one result per input, in input order.
type Report struct {
	Results []Result
}

// Failed returns the results of units that failed.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Succeeded returns the results of units that went through every stage.
func (r *Report) Succeeded() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// Skipped returns the results of units that never started.
func (r *Report) Skipped() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Skipped {
			out = append(out, res)
		}
	}
	return out
}

// Err joins the failures of every unit, each prefixed with its name. It is
// nil when no unit failed.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Name, res.Err))
		}
	}
	return errors.Join(errs...)
}

// Driver runs batches of units through parse, validate, emit and reflect.
// Units never share state: the capability set and options are copied into
// every unit.
type Driver struct {
	// Capabilities is the validation profile. The zero value allows no
	// optional feature; NewDriver starts from DefaultCapabilities.
	Capabilities ir.Capabilities

	// Target and Pipeline are passed to the MSL writer. The stage of a
	// Pipeline.EntryPoint selector is replaced by each unit's stage.
	Target   msl.Options
	Pipeline msl.PipelineOptions

	// Defines are predefined preprocessor macros for every unit.
	Defines map[string]string

	// FailFast stops starting new units after the first failure.
	FailFast bool

	// Concurrency is the number of units processed at once. Values below
	// two run the batch sequentially.
	Concurrency int

	// Logger receives progress records. Nil means slog.Default().
	Logger *slog.Logger
}

// NewDriver returns a driver with the default capability profile and MSL
// options.
func NewDriver() *Driver {
	return &Driver{
		Capabilities: DefaultCapabilities(),
		Target:       msl.DefaultOptions(),
	}
}

// Run processes every input and reports on each of them. A failing unit
// does not stop its siblings unless FailFast is set, in which case units
// not yet started are reported as skipped. Cancellation of ctx is noticed
// between stages; the stage in progress always completes.
func (d *Driver) Run(ctx context.Context, inputs []Input) *Report {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	report := &Report{Results: make([]Result, len(inputs))}
	var stop atomic.Bool
	process := func(i int) {
		in := inputs[i]
		if stop.Load() {
			report.Results[i] = Result{Name: in.Name, Stage: in.Stage, State: Unparsed, Skipped: true}
			return
		}
		res := d.runUnit(ctx, logger, in)
		if res.Err != nil && d.FailFast {
			stop.Store(true)
		}
		report.Results[i] = res
	}

	if d.Concurrency < 2 {
		for i := range inputs {
			process(i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(d.Concurrency)
		for i := range inputs {
			i := i
			g.Go(func() error {
				process(i)
				return nil
			})
		}
		_ = g.Wait()
	}

	logger.InfoContext(ctx, "batch finished",
		slog.Int("units", len(inputs)),
		slog.Int("failed", len(report.Failed())),
		slog.Int("skipped", len(report.Skipped())),
		slog.Duration("duration", time.Since(start)),
	)
	return report
}

// pipelineFor returns the pipeline options of a unit. A selected entry
// point is looked up in the unit's own stage.
func (d *Driver) pipelineFor(stage ir.ShaderStage) msl.PipelineOptions {
	p := d.Pipeline
	if p.EntryPoint != nil {
		sel := *p.EntryPoint
		sel.Stage = stage
		p.EntryPoint = &sel
	}
	return p
}

// runUnit takes one unit through every stage.
func (d *Driver) runUnit(ctx context.Context, logger *slog.Logger, in Input) Result {
	logger.DebugContext(ctx, "unit started",
		slog.String("unit", in.Name),
		slog.String("stage", in.Stage.String()),
	)

	u := NewUnit(in.Name, in.Source)
	steps := []struct {
		name string
		run  func() error
	}{
		{"parse", func() error { return u.Parse(glsl.Options{Stage: in.Stage, Defines: d.Defines}) }},
		{"validate", func() error { return u.Validate(d.Capabilities) }},
		{"emit", func() error { return u.Emit(d.Target, d.pipelineFor(in.Stage)) }},
		{"reflect", u.Reflect},
	}

	var err error
	for _, step := range steps {
		if cerr := ctx.Err(); cerr != nil {
			err = u.fail(fmt.Errorf("%s: %w", step.name, cerr))
			break
		}
		if err = step.run(); err != nil {
			break
		}
		logger.DebugContext(ctx, "stage completed",
			slog.String("unit", in.Name),
			slog.String("step", step.name),
			slog.String("state", u.State().String()),
		)
	}

	res := Result{
		Name:            in.Name,
		Stage:           in.Stage,
		State:           u.State(),
		Output:          u.Output(),
		Summary:         u.Summary(),
		EntryPointNames: u.Translation().EntryPointNames,
		Err:             err,
		Kind:            Classify(err),
	}
	if err != nil {
		logger.WarnContext(ctx, "unit failed",
			slog.String("unit", in.Name),
			slog.String("kind", res.Kind.String()),
			slog.Any("error", err),
		)
	}
	return res
}
