package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/gogpu/xshader/glsl"
	"github.com/gogpu/xshader/ir"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestDriverSingleUnit(t *testing.T) {
	d := NewDriver()
	d.Logger = quietLogger()

	report := d.Run(context.Background(), []Input{
		{Name: "basic.frag", Stage: ir.StageFragment, Source: []byte(texturedFragment)},
	})
	if len(report.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(report.Results))
	}
	res := report.Results[0]
	if !res.OK() {
		t.Fatalf("unit failed: %v", res.Err)
	}
	if res.State != Reflected {
		t.Errorf("State = %s, want reflected", res.State)
	}
	if res.Output == "" {
		t.Error("Output is empty")
	}
	if got := res.Summary.String(); got != "entry_points: main\nglobal_variables: tex\nfunctions: main()" {
		t.Errorf("Summary = %q", got)
	}
	if res.EntryPointNames["main"] != "main_" {
		t.Errorf("EntryPointNames = %v", res.EntryPointNames)
	}
	if report.Err() != nil {
		t.Errorf("Err() = %v, want nil", report.Err())
	}
}

func TestDriverStatementBodies(t *testing.T) {
	fragment := `#version 450
uniform sampler2D tex;
layout(location = 0) in vec2 uv;
layout(location = 0) out vec4 o_color;

void main() {
    vec4 c = texture(tex, uv);
    c.a = 1.0;
    o_color = c * 0.5;
}
`
	compute := `#version 450
layout(local_size_x = 8, local_size_y = 8) in;
layout(set = 0, binding = 0, rgba32f) uniform readonly image2D src;
layout(set = 0, binding = 1) uniform writeonly image2D dst;

void main() {
    ivec2 p = ivec2(gl_GlobalInvocationID.xy);
    imageStore(dst, p, imageLoad(src, p));
}
`
	d := NewDriver()
	d.Concurrency = 2
	d.Logger = quietLogger()

	report := d.Run(context.Background(), []Input{
		{Name: "lit.frag", Stage: ir.StageFragment, Source: []byte(fragment)},
		{Name: "copy.comp", Stage: ir.StageCompute, Source: []byte(compute)},
	})
	if err := report.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}

	lit, copied := report.Results[0], report.Results[1]
	if got := lit.Summary.GlobalVariableList(); got != "tex,uv,o_color" {
		t.Errorf("lit.frag globals = %q", got)
	}
	for _, want := range []string{"fragment ", "tex.sample(", "o_color"} {
		if !strings.Contains(lit.Output, want) {
			t.Errorf("lit.frag output is missing %q:\n%s", want, lit.Output)
		}
	}
	if got := copied.Summary.GlobalVariableList(); !strings.HasPrefix(got, "src,dst") {
		t.Errorf("copy.comp globals = %q", got)
	}
	for _, want := range []string{"kernel ", "metal::access::write> dst", "src.read(", "dst.write("} {
		if !strings.Contains(copied.Output, want) {
			t.Errorf("copy.comp output is missing %q:\n%s", want, copied.Output)
		}
	}
}

func TestDriverContinuesAfterFailure(t *testing.T) {
	for _, concurrency := range []int{1, 4} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			d := NewDriver()
			d.Concurrency = concurrency
			d.Logger = quietLogger()

			report := d.Run(context.Background(), []Input{
				{Name: "broken.frag", Stage: ir.StageFragment, Source: []byte(brokenFragment)},
				{Name: "basic.frag", Stage: ir.StageFragment, Source: []byte(texturedFragment)},
			})

			broken, basic := report.Results[0], report.Results[1]
			if broken.Err == nil || broken.Kind != KindSyntax {
				t.Errorf("broken unit: err %v, kind %s", broken.Err, broken.Kind)
			}
			if broken.State != Failed {
				t.Errorf("broken unit state = %s, want failed", broken.State)
			}
			if broken.Output != "" {
				t.Error("a unit that failed to parse must not be emitted")
			}
			if !basic.OK() || basic.State != Reflected {
				t.Errorf("sibling unit: state %s, err %v", basic.State, basic.Err)
			}

			if n := len(report.Failed()); n != 1 {
				t.Errorf("Failed() has %d results, want 1", n)
			}
			if n := len(report.Succeeded()); n != 1 {
				t.Errorf("Succeeded() has %d results, want 1", n)
			}
			err := report.Err()
			if err == nil || !strings.HasPrefix(err.Error(), "broken.frag: parse: ") {
				t.Errorf("Err() = %v", err)
			}
			var syntaxErr *glsl.SyntaxError
			if !errors.As(err, &syntaxErr) {
				t.Errorf("Err() does not wrap the syntax error: %v", err)
			}
		})
	}
}

func TestDriverFailFast(t *testing.T) {
	d := NewDriver()
	d.FailFast = true
	d.Logger = quietLogger()

	report := d.Run(context.Background(), []Input{
		{Name: "a.frag", Stage: ir.StageFragment, Source: []byte(texturedFragment)},
		{Name: "broken.frag", Stage: ir.StageFragment, Source: []byte(brokenFragment)},
		{Name: "c.frag", Stage: ir.StageFragment, Source: []byte(texturedFragment)},
		{Name: "d.frag", Stage: ir.StageFragment, Source: []byte(texturedFragment)},
	})

	if !report.Results[0].OK() {
		t.Errorf("first unit: %v", report.Results[0].Err)
	}
	if report.Results[1].Err == nil {
		t.Error("second unit should fail")
	}
	for _, res := range report.Results[2:] {
		if !res.Skipped || res.State != Unparsed || res.Err != nil {
			t.Errorf("%s: skipped %v, state %s, err %v", res.Name, res.Skipped, res.State, res.Err)
		}
		if res.Name == "" {
			t.Error("skipped results keep their name")
		}
	}
	if n := len(report.Skipped()); n != 2 {
		t.Errorf("Skipped() has %d results, want 2", n)
	}
}

func TestDriverCapabilityProfile(t *testing.T) {
	source := `#version 450
layout(location = 0) out vec4 color;
void main() {
    int64_t big = int64_t(1);
    color = vec4(float(big));
}
`
	d := NewDriver()
	d.Logger = quietLogger()
	inputs := []Input{{Name: "int64.frag", Stage: ir.StageFragment, Source: []byte(source)}}

	res := d.Run(context.Background(), inputs).Results[0]
	if res.Kind != KindCapability {
		t.Fatalf("Kind = %s (err %v), want capability", res.Kind, res.Err)
	}
	var capErr *ir.CapabilityError
	if !errors.As(res.Err, &capErr) || capErr.Feature != ir.CapabilityShaderInt64 {
		t.Errorf("err = %v, want SHADER_INT64 missing", res.Err)
	}

	d.Capabilities = d.Capabilities.With(ir.CapabilityShaderInt64)
	res = d.Run(context.Background(), inputs).Results[0]
	if res.Kind == KindCapability {
		t.Errorf("extended profile still rejects the unit: %v", res.Err)
	}
}

func TestDriverDefines(t *testing.T) {
	source := `#version 450
layout(location = 0) out vec4 color;
void main() {
#ifdef USE_RED
    color = vec4(1.0, 0.0, 0.0, 1.0);
#else
    this does not parse
#endif
}
`
	d := NewDriver()
	d.Logger = quietLogger()
	inputs := []Input{{Name: "defines.frag", Stage: ir.StageFragment, Source: []byte(source)}}

	if res := d.Run(context.Background(), inputs).Results[0]; res.Kind != KindSyntax {
		t.Errorf("without the define: kind %s, want syntax", res.Kind)
	}
	d.Defines = map[string]string{"USE_RED": "1"}
	if res := d.Run(context.Background(), inputs).Results[0]; !res.OK() {
		t.Errorf("with the define: %v", res.Err)
	}
}

func TestDriverCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDriver()
	d.Logger = quietLogger()
	res := d.Run(ctx, []Input{{Name: "basic.frag", Stage: ir.StageFragment, Source: []byte(texturedFragment)}}).Results[0]
	if res.Kind != KindCanceled || res.State != Failed {
		t.Errorf("kind %s, state %s, want canceled and failed", res.Kind, res.State)
	}
	if !errors.Is(res.Err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", res.Err)
	}
}

func TestDriverPreservesOrder(t *testing.T) {
	d := NewDriver()
	d.Concurrency = 3
	d.Logger = quietLogger()

	var inputs []Input
	for i := 0; i < 8; i++ {
		inputs = append(inputs, Input{Name: fmt.Sprintf("unit%d.frag", i), Stage: ir.StageFragment, Source: []byte(texturedFragment)})
	}
	report := d.Run(context.Background(), inputs)
	for i, res := range report.Results {
		if want := fmt.Sprintf("unit%d.frag", i); res.Name != want {
			t.Errorf("Results[%d].Name = %q, want %q", i, res.Name, want)
		}
		if !res.OK() {
			t.Errorf("%s: %v", res.Name, res.Err)
		}
	}
}

func TestDriverLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	d := NewDriver()
	d.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	d.Run(context.Background(), []Input{
		{Name: "broken.frag", Stage: ir.StageFragment, Source: []byte(brokenFragment)},
	})
	out := buf.String()
	for _, want := range []string{"unit started", "unit failed", "unit=broken.frag", "kind=syntax", "batch finished"} {
		if !strings.Contains(out, want) {
			t.Errorf("log is missing %q:\n%s", want, out)
		}
	}
}

func TestDefaultCapabilities(t *testing.T) {
	caps := DefaultCapabilities()
	for _, c := range []ir.Capabilities{
		ir.CapabilityPushConstant,
		ir.CapabilityFloat64,
		ir.CapabilityPrimitiveIndex,
		ir.CapabilitySampledTextureAndStorageBufferArrayNonUniformIndexing,
		ir.CapabilityUniformBufferAndStorageTextureArrayNonUniformIndexing,
		ir.CapabilitySamplerNonUniformIndexing,
		ir.CapabilityClipDistance,
		ir.CapabilityCullDistance,
		ir.CapabilityStorageTexture16BitNormFormats,
	} {
		if !caps.Contains(c) {
			t.Errorf("default profile lacks %s", c)
		}
	}
	for _, c := range []ir.Capabilities{ir.CapabilityShaderInt64, ir.CapabilitySampleVariables, ir.CapabilityMultiview} {
		if caps.Contains(c) {
			t.Errorf("default profile includes %s", c)
		}
	}
}
