package msl

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/xshader/glsl"
	"github.com/gogpu/xshader/ir"
)

// allCapabilities lets the validator accept every optional feature so the
// tests exercise the backend's own limits.
const allCapabilities = ir.CapabilitiesAll

func parseAndValidate(t *testing.T, stage ir.ShaderStage, source string) (*ir.Module, *ir.ModuleInfo) {
	t.Helper()
	module, err := glsl.Parse([]byte(source), glsl.Options{Stage: stage})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	info, err := ir.Validate(module, allCapabilities)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	return module, info
}

func compileWith(t *testing.T, stage ir.ShaderStage, source string, options Options, pipeline PipelineOptions) (string, error) {
	t.Helper()
	module, info := parseAndValidate(t, stage, source)
	code, _, err := Compile(module, info, options, pipeline)
	return code, err
}

func mustCompile(t *testing.T, stage ir.ShaderStage, source string) string {
	t.Helper()
	code, err := compileWith(t, stage, source, DefaultOptions(), PipelineOptions{})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return code
}

func expectContains(t *testing.T, code string, fragments ...string) {
	t.Helper()
	for _, fragment := range fragments {
		if !strings.Contains(code, fragment) {
			t.Errorf("output is missing %q\n%s", fragment, code)
		}
	}
}

func expectNotContains(t *testing.T, code string, fragments ...string) {
	t.Helper()
	for _, fragment := range fragments {
		if strings.Contains(code, fragment) {
			t.Errorf("output unexpectedly contains %q\n%s", fragment, code)
		}
	}
}

func ptr[T any](v T) *T { return &v }

const texturedFragment = `#version 450
layout(location = 0) in vec2 uv;
layout(location = 0) out vec4 color;
layout(set = 0, binding = 0) uniform sampler2D tex;

void main() {
    color = texture(tex, uv);
}
`

const transformVertex = `#version 450
layout(location = 0) in vec3 pos;
layout(set = 0, binding = 0) uniform Globals {
    mat4 mvp;
} u;

void main() {
    gl_Position = u.mvp * vec4(pos, 1.0);
}
`

func TestCompileEmptyModule(t *testing.T) {
	module := &ir.Module{}
	info, err := ir.Validate(module, ir.CapabilitiesNone)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	code, translation, err := Compile(module, info, DefaultOptions(), PipelineOptions{})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	expectContains(t, code, "// language: metal2.1\n", "#include <metal_stdlib>", "using metal::uint;")
	if len(translation.EntryPointNames) != 0 {
		t.Errorf("EntryPointNames = %v, want none", translation.EntryPointNames)
	}
}

func TestCompileNilModule(t *testing.T) {
	if _, _, err := Compile(nil, nil, DefaultOptions(), PipelineOptions{}); err == nil {
		t.Fatal("expected an error for a nil module")
	}
}

func TestCompileRejectsForeignInfo(t *testing.T) {
	_, info := parseAndValidate(t, ir.StageFragment, texturedFragment)
	other, _ := parseAndValidate(t, ir.StageFragment, texturedFragment)

	_, _, err := Compile(other, info, DefaultOptions(), PipelineOptions{})
	if !errors.Is(err, errInfoMismatch) {
		t.Fatalf("err = %v, want errInfoMismatch", err)
	}
	if _, _, err := Compile(other, nil, DefaultOptions(), PipelineOptions{}); !errors.Is(err, errInfoMismatch) {
		t.Fatalf("nil info: err = %v, want errInfoMismatch", err)
	}
}

func TestCompileFragmentTexture(t *testing.T) {
	code := mustCompile(t, ir.StageFragment, texturedFragment)
	expectContains(t, code,
		"struct main_Input {",
		"metal::float2 uv [[user(locn0)]];",
		"struct main_Output {",
		"metal::float4 color [[color(0)]];",
		"fragment main_Output main_(",
		"main_Input varyings [[stage_in]]",
		"metal::texture2d<float, metal::access::sample> tex [[texture(0)]]",
		"metal::sampler tex_smplr [[sampler(0)]]",
		"void main_1(",
		"thread metal::float4& color",
		".sample(tex_smplr, ",
		"main_1(uv, color, tex, tex_smplr);",
		"return _output;",
	)
}

func TestCompileVertexUniform(t *testing.T) {
	code := mustCompile(t, ir.StageVertex, transformVertex)
	expectContains(t, code,
		"struct Globals {",
		"metal::float4x4 mvp;",
		"metal::float3 pos [[attribute(0)]];",
		"metal::float4 gl_Position [[position]];",
		"vertex main_Output main_(",
		"constant Globals& u [[buffer(0)]]",
		"_output.gl_Position = gl_Position;",
	)
}

func TestCompileEntryPointNames(t *testing.T) {
	module, info := parseAndValidate(t, ir.StageFragment, texturedFragment)
	_, translation, err := Compile(module, info, DefaultOptions(), PipelineOptions{})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if got := translation.EntryPointNames["main"]; got != "main_" {
		t.Errorf(`EntryPointNames["main"] = %q, want "main_"`, got)
	}
}

func TestCompileDeterministic(t *testing.T) {
	first := mustCompile(t, ir.StageFragment, texturedFragment)
	for i := 0; i < 5; i++ {
		if again := mustCompile(t, ir.StageFragment, texturedFragment); again != first {
			t.Fatalf("output differs between runs:\n%s\n---\n%s", first, again)
		}
	}
}

func TestCompileEntryPointSelection(t *testing.T) {
	tests := []struct {
		name     string
		selector EntryPointSelector
		wantErr  bool
	}{
		{"matching", EntryPointSelector{Stage: ir.StageFragment, Name: "main"}, false},
		{"wrong name", EntryPointSelector{Stage: ir.StageFragment, Name: "other"}, true},
		{"wrong stage", EntryPointSelector{Stage: ir.StageVertex, Name: "main"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			selector := tt.selector
			code, err := compileWith(t, ir.StageFragment, texturedFragment, DefaultOptions(), PipelineOptions{EntryPoint: &selector})
			if tt.wantErr {
				if err == nil || !strings.Contains(err.Error(), "not found") {
					t.Fatalf("err = %v, want entry point not found", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			expectContains(t, code, "fragment main_Output main_(")
		})
	}
}

func TestCompileUnsupportedConstructs(t *testing.T) {
	tests := []struct {
		name      string
		stage     ir.ShaderStage
		source    string
		construct string
	}{
		{
			name:  "double precision",
			stage: ir.StageFragment,
			source: `#version 450
layout(location = 0) out vec4 color;
void main() {
    double d = 1.0lf;
    color = vec4(float(d));
}
`,
			construct: "64-bit floats",
		},
		{
			name:  "matrix inverse",
			stage: ir.StageVertex,
			source: `#version 450
layout(location = 0) in vec4 pos;
layout(set = 0, binding = 0) uniform U { mat4 m; } u;
void main() {
    gl_Position = inverse(u.m) * pos;
}
`,
			construct: "matrix inverse",
		},
		{
			name:  "cull distance",
			stage: ir.StageVertex,
			source: `#version 450
void main() {
    gl_Position = vec4(0.0);
    gl_CullDistance[0] = 1.0;
}
`,
			construct: "cull distances",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileWith(t, tt.stage, tt.source, DefaultOptions(), PipelineOptions{})
			var unsupportedErr *UnsupportedConstructError
			if !errors.As(err, &unsupportedErr) {
				t.Fatalf("err = %v, want *UnsupportedConstructError", err)
			}
			if unsupportedErr.Construct != tt.construct {
				t.Errorf("Construct = %q, want %q", unsupportedErr.Construct, tt.construct)
			}
		})
	}
}

func TestCompilePrimitiveIndexNeedsVersion(t *testing.T) {
	source := `#version 450
layout(location = 0) out vec4 color;
void main() {
    color = vec4(float(gl_PrimitiveID));
}
`
	options := DefaultOptions()
	if _, err := compileWith(t, ir.StageFragment, source, options, PipelineOptions{}); err == nil {
		t.Fatal("expected primitive id to be rejected before MSL 2.2")
	}

	options.LangVersion = Version2_2
	code, err := compileWith(t, ir.StageFragment, source, options, PipelineOptions{})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	expectContains(t, code, "// language: metal2.2", "uint _gl_PrimitiveID [[primitive_id]]", "int gl_PrimitiveID = int(_gl_PrimitiveID);")
}

func TestCompileBindingMap(t *testing.T) {
	options := DefaultOptions()
	options.PerEntryPointMap = map[string]EntryPointResources{
		"main": {
			Resources: map[ir.ResourceBinding]BindTarget{
				{Group: 0, Binding: 0}: {Texture: ptr[uint8](3), Sampler: ptr[uint8](2)},
			},
		},
	}
	code, err := compileWith(t, ir.StageFragment, texturedFragment, options, PipelineOptions{})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	expectContains(t, code, "tex [[texture(3)]]", "tex_smplr [[sampler(2)]]")
}

func TestCompileMissingBinding(t *testing.T) {
	options := DefaultOptions()
	options.PerEntryPointMap = map[string]EntryPointResources{"main": {}}

	if _, err := compileWith(t, ir.StageFragment, texturedFragment, options, PipelineOptions{}); err == nil {
		t.Fatal("expected an error for a resource missing from the binding map")
	}

	options.FakeMissingBindings = true
	code, err := compileWith(t, ir.StageFragment, texturedFragment, options, PipelineOptions{})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	expectContains(t, code, "[[user(fake0)]]", "[[user(fake1)]]")
}

func TestCompileForcePointSize(t *testing.T) {
	code, err := compileWith(t, ir.StageVertex, transformVertex, DefaultOptions(), PipelineOptions{AllowAndForcePointSize: true})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	expectContains(t, code, "float _point_size [[point_size]];", "_output._point_size = 1.0;")

	code = mustCompile(t, ir.StageVertex, transformVertex)
	expectNotContains(t, code, "_point_size")
}

func TestVersionString(t *testing.T) {
	tests := []struct {
		version Version
		want    string
	}{
		{Version1_2, "1.2"},
		{Version2_0, "2.0"},
		{Version2_1, "2.1"},
		{Version3_0, "3.0"},
	}
	for _, tt := range tests {
		if got := tt.version.String(); got != tt.want {
			t.Errorf("Version{%d, %d}.String() = %q, want %q", tt.version.Major, tt.version.Minor, got, tt.want)
		}
	}
}

func TestVersionLess(t *testing.T) {
	if !Version2_1.Less(Version2_2) || !Version2_3.Less(Version3_0) {
		t.Error("expected older versions to compare less")
	}
	if Version2_2.Less(Version2_1) || Version2_1.Less(Version2_1) {
		t.Error("Less must be strict")
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		input   string
		want    Version
		wantErr bool
	}{
		{"2.1", Version2_1, false},
		{"3.0", Version3_0, false},
		{"1.2", Version1_2, false},
		{"1.1", Version{}, true},
		{"two", Version{}, true},
		{"", Version{}, true},
	}
	for _, tt := range tests {
		got, err := ParseVersion(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseVersion(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseVersion(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.LangVersion != Version2_1 {
		t.Errorf("LangVersion = %v, want 2.1", opts.LangVersion)
	}
	if !opts.ZeroInitializeWorkgroupMemory {
		t.Error("expected ZeroInitializeWorkgroupMemory")
	}
	if !opts.ForceLoopBounding {
		t.Error("expected ForceLoopBounding")
	}
}

func TestUnsupportedConstructErrorMessage(t *testing.T) {
	err := unsupported("view index")
	if got := err.Error(); got != "unsupported construct: view index" {
		t.Errorf("Error() = %q", got)
	}
}
