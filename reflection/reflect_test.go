package reflection

import (
	"testing"

	"github.com/gogpu/xshader/glsl"
	"github.com/gogpu/xshader/ir"
)

func TestReflectTexturedFragment(t *testing.T) {
	source := `#version 450
uniform sampler2D tex;

void main() {
}
`
	module, err := glsl.Parse([]byte(source), glsl.Options{Stage: ir.StageFragment})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	s := Reflect(module)
	if got := s.EntryPointList(); got != "main" {
		t.Errorf("EntryPointList = %q, want %q", got, "main")
	}
	if got := s.GlobalVariableList(); got != "tex" {
		t.Errorf("GlobalVariableList = %q, want %q", got, "tex")
	}
	if got := s.FunctionList(); got != "main()" {
		t.Errorf("FunctionList = %q, want %q", got, "main()")
	}

	want := "entry_points: main\nglobal_variables: tex\nfunctions: main()"
	if got := s.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestReflectSignatures(t *testing.T) {
	source := `#version 450
layout(location = 0) out vec4 color;
layout(binding = 0) uniform sampler2D tex;

vec4 shade(vec2 uv, mat3x2 m, uint id, sampler2D s) {
    return texture(s, uv) * float(id) * m[0].x;
}

void split(vec4 v, out float r) {
    r = v.x;
}

void main() {
    float r;
    split(gl_FragCoord, r);
    color = shade(vec2(r), mat3x2(1.0), 1u, tex);
}
`
	module, err := glsl.Parse([]byte(source), glsl.Options{Stage: ir.StageFragment})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	s := Reflect(module)
	want := []string{
		"shade(uv: float2,m: matrix_float3x2,id: uint,s: texture2d<float>)",
		"split(v: float4,r: float)",
		"main()",
	}
	if len(s.Functions) != len(want) {
		t.Fatalf("Functions = %q, want %q", s.Functions, want)
	}
	for i := range want {
		if s.Functions[i] != want[i] {
			t.Errorf("Functions[%d] = %q, want %q", i, s.Functions[i], want[i])
		}
	}
	if got := s.FunctionList(); got != want[0]+","+want[1]+","+want[2] {
		t.Errorf("FunctionList = %q", got)
	}
}

func TestReflectPreservesOrder(t *testing.T) {
	module := &ir.Module{
		Functions: []ir.Function{{Name: "c"}, {Name: "a"}, {Name: "b"}},
		EntryPoints: []ir.EntryPoint{
			{Name: "A", Stage: ir.StageVertex, Function: 0},
			{Name: "B", Stage: ir.StageFragment, Function: 1},
			{Name: "C", Stage: ir.StageCompute, Function: 2, Workgroup: [3]uint32{1, 1, 1}},
		},
	}

	s := Reflect(module)
	if got := s.EntryPointList(); got != "A,B,C" {
		t.Errorf("EntryPointList = %q, want %q", got, "A,B,C")
	}
	if got := s.FunctionList(); got != "c(),a(),b()" {
		t.Errorf("FunctionList = %q, want %q", got, "c(),a(),b()")
	}
}

func TestReflectUnnamedGlobal(t *testing.T) {
	module := &ir.Module{
		Types: []ir.Type{{Inner: ir.ScalarF32}},
		GlobalVariables: []ir.GlobalVariable{
			{Name: "first", Space: ir.SpacePrivate, Type: 0},
			{Space: ir.SpacePrivate, Type: 0},
			{Name: "third", Space: ir.SpacePrivate, Type: 0},
		},
	}

	s := Reflect(module)
	if len(s.GlobalVariables) != 3 || s.GlobalVariables[1] != "" {
		t.Fatalf("GlobalVariables = %q, want an empty middle slot", s.GlobalVariables)
	}
	if got := s.GlobalVariableList(); got != "first,,third" {
		t.Errorf("GlobalVariableList = %q, want %q", got, "first,,third")
	}
}

func TestReflectUnknownArgumentType(t *testing.T) {
	module := &ir.Module{
		Types: []ir.Type{{Name: "Light", Inner: ir.StructType{}}},
		Functions: []ir.Function{{
			Name:      "f",
			Arguments: []ir.FunctionArgument{{Name: "l", Type: 0}, {Name: "x", Type: 42}},
		}},
	}
	if got := Reflect(module).FunctionList(); got != "f(l: ,x: )" {
		t.Errorf("FunctionList = %q, want %q", got, "f(l: ,x: )")
	}
}

func TestReflectEmpty(t *testing.T) {
	s := Reflect(nil)
	if s.String() != "entry_points: \nglobal_variables: \nfunctions: " {
		t.Errorf("String() = %q", s.String())
	}
	if got := Reflect(&ir.Module{}).EntryPointList(); got != "" {
		t.Errorf("EntryPointList = %q, want empty", got)
	}
}
