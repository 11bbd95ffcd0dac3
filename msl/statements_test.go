package msl

import (
	"testing"

	"github.com/gogpu/xshader/ir"
)

func fragmentSource(decl, body string) string {
	return "#version 450\nlayout(location = 0) out vec4 color;\n" + decl + "\nvoid main() {\n    " + body + "\n}\n"
}

func TestStatements(t *testing.T) {
	tests := []struct {
		name   string
		decl   string
		body   string
		want   []string
		absent []string
	}{
		{
			name: "for loop with continuing",
			body: "color = vec4(0.0);\n    for (int i = 0; i < 4; i++) { color = color + vec4(0.25); }",
			want: []string{
				"while(true) {",
				"bool loop_init = true;",
				"if (!loop_init) {",
				"loop_init = false;",
				"break;",
			},
		},
		{
			name:   "while loop has no gate",
			body:   "float x = gl_FragCoord.x;\n    while (x > 1.0) { x = x * 0.5; }\n    color = vec4(x);",
			want:   []string{"while(true) {", "break;"},
			absent: []string{"loop_init"},
		},
		{
			name: "do while breaks from the continuing block",
			body: "float x = gl_FragCoord.x;\n    do { x = x - 1.0; } while (x > 0.0);\n    color = vec4(x);",
			want: []string{"if (!loop_init) {", "if (", "break;"},
		},
		{
			name: "loops are bounded",
			body: "float x = gl_FragCoord.x;\n    while (x > 1.0) { x = x * 0.5; }\n    color = vec4(x);",
			want: []string{
				"metal::uint2 loop_bound = metal::uint2(4294967295u);",
				"if (metal::all(loop_bound == metal::uint2(0u))) { break; }",
				"loop_bound -= metal::uint2(loop_bound.y == 0u, 1u);",
			},
		},
		{
			name: "switch",
			body: "int m = int(gl_FragCoord.x);\n    switch (m) {\n    case 0:\n        color = vec4(1.0);\n        break;\n    default:\n        color = vec4(0.0);\n        break;\n    }",
			want: []string{"switch(", "case 0: {", "default: {"},
		},
		{
			name: "discard",
			body: "if (gl_FragCoord.x < 0.0) { discard; }\n    color = vec4(1.0);",
			want: []string{"metal::discard_fragment();"},
		},
		{
			name: "if else",
			body: "if (gl_FragCoord.x < 1.0) { color = vec4(1.0); } else { color = vec4(0.0); }",
			want: []string{"if (", "} else {"},
		},
		{
			name: "early fragment tests",
			decl: "layout(early_fragment_tests) in;",
			body: "color = vec4(1.0);",
			want: []string{"[[early_fragment_tests]] fragment "},
		},
		{
			name: "depth output",
			body: "gl_FragDepth = 0.5;\n    color = vec4(1.0);",
			want: []string{"float gl_FragDepth [[depth(any)]];"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := mustCompile(t, ir.StageFragment, fragmentSource(tt.decl, tt.body))
			expectContains(t, code, tt.want...)
			expectNotContains(t, code, tt.absent...)
		})
	}
}

func TestLoopBoundingDisabled(t *testing.T) {
	source := fragmentSource("", "float x = gl_FragCoord.x;\n    while (x > 1.0) { x = x * 0.5; }\n    color = vec4(x);")
	options := DefaultOptions()
	options.ForceLoopBounding = false

	code, err := compileWith(t, ir.StageFragment, source, options, PipelineOptions{})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	expectContains(t, code, "while(true) {")
	expectNotContains(t, code, "loop_bound")
}

func TestFunctionCalls(t *testing.T) {
	source := `#version 450
layout(location = 0) out vec4 color;

float twice(float v) {
    return v * 2.0;
}

void split(vec4 v, out float r) {
    r = v.x;
}

void main() {
    float x;
    split(gl_FragCoord, x);
    color = vec4(twice(x));
}
`
	code := mustCompile(t, ir.StageFragment, source)
	expectContains(t, code,
		"float twice(",
		"void split(",
		"thread float& r",
		"split(_e",
		" = twice(",
		"return ",
	)
}

func TestCalleeReceivesGlobals(t *testing.T) {
	source := `#version 450
layout(location = 0) in vec2 uv;
layout(location = 0) out vec4 color;
layout(set = 0, binding = 0) uniform sampler2D tex;

vec4 fetch(vec2 at) {
    return texture(tex, at);
}

void main() {
    color = fetch(uv);
}
`
	code := mustCompile(t, ir.StageFragment, source)
	expectContains(t, code,
		"metal::texture2d<float, metal::access::sample> tex,",
		"metal::sampler tex_smplr",
		"fetch(",
		"tex, tex_smplr",
	)
}

func TestBarrierStatement(t *testing.T) {
	source := `#version 450
layout(local_size_x = 64) in;
shared float tile[64];

void main() {
    tile[gl_LocalInvocationIndex] = 1.0;
    barrier();
}
`
	code := mustCompile(t, ir.StageCompute, source)
	expectContains(t, code, "metal::threadgroup_barrier(metal::mem_flags::mem_threadgroup);")
}
