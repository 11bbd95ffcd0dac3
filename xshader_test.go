package xshader

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/gogpu/xshader/glsl"
	"github.com/gogpu/xshader/ir"
	"github.com/gogpu/xshader/msl"
)

const triangleVertex = `#version 450
layout(location = 0) in vec3 position;
layout(location = 1) in vec3 color;
layout(location = 0) out vec3 v_color;

void main() {
    v_color = color;
    gl_Position = vec4(position, 1.0);
}
`

const texturedFragment = `#version 450
uniform sampler2D tex;
layout(location = 0) in vec2 uv;
layout(location = 0) out vec4 frag_color;

void main() {
    frag_color = texture(tex, uv);
}
`

const blurCompute = `#version 450
layout(local_size_x = 64) in;

layout(set = 0, binding = 0) buffer Data {
    float values[];
} data;

void main() {
    uint i = gl_GlobalInvocationID.x;
    if (int(i) < data.values.length()) {
        data.values[i] = data.values[i] * 0.5;
    }
}
`

func TestTranslateStages(t *testing.T) {
	tests := []struct {
		name   string
		source string
		stage  ir.ShaderStage
		want   []string
	}{
		{"vertex", triangleVertex, ir.StageVertex, []string{"vertex ", "[[position]]", "[[attribute(0)]]"}},
		{"fragment", texturedFragment, ir.StageFragment, []string{"fragment ", "metal::texture2d<float", "metal::sampler"}},
		{"compute", blurCompute, ir.StageCompute, []string{"kernel ", "_buffer_sizes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Translate([]byte(tt.source), DefaultOptions(tt.stage))
			if err != nil {
				t.Fatalf("Translate failed: %v", err)
			}
			if !strings.Contains(result.MSL, "#include <metal_stdlib>") {
				t.Errorf("output is not MSL:\n%s", result.MSL)
			}
			for _, want := range tt.want {
				if !strings.Contains(result.MSL, want) {
					t.Errorf("output is missing %q:\n%s", want, result.MSL)
				}
			}
			if result.Summary.EntryPointList() != "main" {
				t.Errorf("entry points = %q", result.Summary.EntryPointList())
			}
			if result.Translation.EntryPointNames["main"] == "" {
				t.Errorf("EntryPointNames = %v", result.Translation.EntryPointNames)
			}
		})
	}
}

func TestTranslateReflection(t *testing.T) {
	source := `#version 450
uniform sampler2D tex;

void main() {
}
`
	result, err := Translate([]byte(source), DefaultOptions(ir.StageFragment))
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	s := result.Summary
	if s.EntryPointList() != "main" || s.GlobalVariableList() != "tex" || s.FunctionList() != "main()" {
		t.Errorf("summary = %q", s.String())
	}
}

func TestTranslateUTF16(t *testing.T) {
	source := "#version 450\nvoid main() {\n}\n"
	encoded := []byte{0xFF, 0xFE}
	for _, u := range utf16.Encode([]rune(source)) {
		encoded = append(encoded, byte(u), byte(u>>8))
	}
	if _, err := Translate(encoded, DefaultOptions(ir.StageFragment)); err != nil {
		t.Errorf("UTF-16LE source: %v", err)
	}
	bom := append([]byte{0xEF, 0xBB, 0xBF}, source...)
	if _, err := Translate(bom, DefaultOptions(ir.StageFragment)); err != nil {
		t.Errorf("UTF-8 source with a BOM: %v", err)
	}
}

func TestTranslateErrors(t *testing.T) {
	t.Run("syntax", func(t *testing.T) {
		_, err := Translate([]byte("#version 450\nvoid main() {\n"), DefaultOptions(ir.StageFragment))
		var syntaxErr *glsl.SyntaxError
		if !errors.As(err, &syntaxErr) {
			t.Fatalf("err = %v, want *glsl.SyntaxError", err)
		}
		if !strings.HasPrefix(err.Error(), "parse: ") {
			t.Errorf("err = %q, want a parse: prefix", err)
		}
	})

	t.Run("encoding", func(t *testing.T) {
		_, err := Translate([]byte{'v', 'o', 0xFF, 'i', 'd'}, DefaultOptions(ir.StageFragment))
		var encErr *glsl.EncodingError
		if !errors.As(err, &encErr) {
			t.Fatalf("err = %v, want *glsl.EncodingError", err)
		}
	})

	t.Run("capability", func(t *testing.T) {
		source := `#version 450
layout(location = 0) out vec4 color;
void main() {
    color = vec4(float(gl_PrimitiveID));
}
`
		opts := DefaultOptions(ir.StageFragment)
		opts.Capabilities = ir.CapabilitiesNone
		_, err := Translate([]byte(source), opts)
		var capErr *ir.CapabilityError
		if !errors.As(err, &capErr) || capErr.Feature != ir.CapabilityPrimitiveIndex {
			t.Fatalf("err = %v, want PRIMITIVE_INDEX missing", err)
		}
		if !strings.HasPrefix(err.Error(), "validate: ") {
			t.Errorf("err = %q, want a validate: prefix", err)
		}
	})
}

func TestStagesComposeLikeTranslate(t *testing.T) {
	module, err := Parse([]byte(texturedFragment), ir.StageFragment, nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	info, err := Validate(module, DefaultOptions(ir.StageFragment).Capabilities)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	code, _, err := Emit(module, info, msl.DefaultOptions(), msl.PipelineOptions{})
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	result, err := Translate([]byte(texturedFragment), DefaultOptions(ir.StageFragment))
	if err != nil {
		t.Fatal(err)
	}
	if code != result.MSL {
		t.Error("the stage functions and Translate disagree")
	}
	if Reflect(module).String() != result.Summary.String() {
		t.Error("Reflect and Translate disagree")
	}
}

func TestDefines(t *testing.T) {
	source := `#version 450
layout(location = 0) out vec4 color;
void main() {
    color = vec4(SCALE);
}
`
	opts := DefaultOptions(ir.StageFragment)
	if _, err := Translate([]byte(source), opts); err == nil {
		t.Error("an undefined macro must fail")
	}
	opts.Defines = map[string]string{"SCALE": "0.5"}
	result, err := Translate([]byte(source), opts)
	if err != nil {
		t.Fatalf("with SCALE defined: %v", err)
	}
	if !strings.Contains(result.MSL, "0.5") {
		t.Errorf("macro value not used:\n%s", result.MSL)
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
