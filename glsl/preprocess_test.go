package glsl

import (
	"errors"
	"strings"
	"testing"
)

func TestPreprocessMacros(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		defines map[string]string
		want    string
		notWant string
	}{
		{
			name:   "object-like",
			source: "#define N 4\nfloat a[N];",
			want:   "float a[4];",
		},
		{
			name:   "function-like",
			source: "#define SQ(x) ((x) * (x))\nfloat b = SQ(a + 1.0);",
			want:   "float b = ((a + 1.0) * (a + 1.0));",
		},
		{
			name:   "nested expansion",
			source: "#define A B\n#define B 7\nint c = A;",
			want:   "int c = 7;",
		},
		{
			name:   "self reference stops",
			source: "#define X X + 1\nint d = X;",
			want:   "int d = X + 1;",
		},
		{
			name:   "function-like name without call",
			source: "#define F(x) x\nint F;",
			want:   "int F;",
		},
		{
			name:   "undef",
			source: "#define N 4\n#undef N\nint n = N;",
			want:   "int n = N;",
		},
		{
			name:    "option define",
			source:  "#ifdef USE_FOG\nfog();\n#endif",
			defines: map[string]string{"USE_FOG": ""},
			want:    "fog();",
		},
		{
			name:    "option define value",
			source:  "int q = QUALITY;",
			defines: map[string]string{"QUALITY": "3"},
			want:    "int q = 3;",
		},
		{
			name:   "line macro",
			source: "\n\nint l = __LINE__;",
			want:   "int l = 3;",
		},
		{
			name:   "numbers are not identifiers",
			source: "#define e 5\nfloat f = 1e3;",
			want:   "float f = 1e3;",
		},
		{
			name:    "comments removed",
			source:  "int a; // N\n/* hidden */ int b;",
			want:    "int b;",
			notWant: "hidden",
		},
		{
			name:   "vulkan predefined",
			source: "#if VULKAN == 100\nint v;\n#endif",
			want:   "int v;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := preprocess(tt.source, tt.defines)
			if err != nil {
				t.Fatalf("preprocess: %v", err)
			}
			if !strings.Contains(out.text, tt.want) {
				t.Errorf("output %q does not contain %q", out.text, tt.want)
			}
			if tt.notWant != "" && strings.Contains(out.text, tt.notWant) {
				t.Errorf("output %q unexpectedly contains %q", out.text, tt.notWant)
			}
		})
	}
}

func TestPreprocessConditionals(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		keep    []string
		dropped []string
	}{
		{
			name:    "ifdef else",
			source:  "#define A\n#ifdef A\nkeep_a\n#else\ndrop_a\n#endif",
			keep:    []string{"keep_a"},
			dropped: []string{"drop_a"},
		},
		{
			name:   "ifndef",
			source: "#ifndef MISSING\nkeep_b\n#endif",
			keep:   []string{"keep_b"},
		},
		{
			name:    "if elif",
			source:  "#define LEVEL 2\n#if LEVEL == 1\nlevel_one\n#elif LEVEL == 2\nlevel_two\n#else\nlevel_other\n#endif",
			keep:    []string{"level_two"},
			dropped: []string{"level_one", "level_other"},
		},
		{
			name:   "defined operator",
			source: "#define A\n#if defined(A) && !defined B\nboth\n#endif",
			keep:   []string{"both"},
		},
		{
			name:    "nested inactive",
			source:  "#if 0\n#if 1\ninner\n#endif\n#else\nouter\n#endif",
			keep:    []string{"outer"},
			dropped: []string{"inner"},
		},
		{
			name:   "arithmetic",
			source: "#if (3 * 4) % 5 == 2 && (1 << 3) == 8\nmath\n#endif",
			keep:   []string{"math"},
		},
		{
			name:   "directives in inactive groups are ignored",
			source: "#if 0\n#error not reached\n#unknown\n#endif\nafter",
			keep:   []string{"after"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := preprocess(tt.source, nil)
			if err != nil {
				t.Fatalf("preprocess: %v", err)
			}
			for _, k := range tt.keep {
				if !strings.Contains(out.text, k) {
					t.Errorf("output %q lost %q", out.text, k)
				}
			}
			for _, d := range tt.dropped {
				if strings.Contains(out.text, d) {
					t.Errorf("output %q kept %q", out.text, d)
				}
			}
		})
	}
}

func TestPreprocessKeepsLineNumbers(t *testing.T) {
	source := "#version 450\n#define A 1\n#if A\nint x;\n#endif\nint y;\n"
	out, err := preprocess(source, nil)
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	if got, want := strings.Count(out.text, "\n"), strings.Count(source, "\n"); got != want {
		t.Errorf("line count = %d, want %d", got, want)
	}
	lines := strings.Split(out.text, "\n")
	if strings.TrimSpace(lines[3]) != "int x;" {
		t.Errorf("line 4 = %q, want %q", lines[3], "int x;")
	}
	if strings.TrimSpace(lines[5]) != "int y;" {
		t.Errorf("line 6 = %q, want %q", lines[5], "int y;")
	}
}

func TestPreprocessVersion(t *testing.T) {
	out, err := preprocess("#version 310 es\n#ifdef GL_ES\nes\n#endif\n#if __VERSION__ == 310\nv310\n#endif", nil)
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	if out.version != 310 || !out.es {
		t.Errorf("version = %d es = %v, want 310 es", out.version, out.es)
	}
	if !strings.Contains(out.text, "es") || !strings.Contains(out.text, "v310") {
		t.Errorf("output %q lost version dependent lines", out.text)
	}

	out, err = preprocess("int a;", nil)
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	if out.version != defaultVersion {
		t.Errorf("default version = %d, want %d", out.version, defaultVersion)
	}
}

func TestPreprocessErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
		line   int
	}{
		{"error directive", "int a;\n#error broken build", "#error broken build", 2},
		{"unterminated if", "#ifdef A\nint a;", "unterminated conditional", 1},
		{"stray endif", "#endif", "#endif without #if", 1},
		{"else after else", "#if 1\n#else\n#else\n#endif", "duplicate #else", 3},
		{"unknown directive", "#frobnicate", "unknown preprocessor directive", 1},
		{"reserved macro", "#define GL_FOO 1", "reserved macro", 1},
		{"bad version", "#version abc", "invalid #version", 1},
		{"macro arity", "#define F(a, b) a\nint x = F(1);", "expects 2 arguments", 2},
		{"bad condition", "#if 1 +\n#endif", "invalid #if expression", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := preprocess(tt.source, nil)
			if err == nil {
				t.Fatal("expected an error")
			}
			var errs SyntaxErrors
			if !errors.As(err, &errs) {
				t.Fatalf("error %T is not SyntaxErrors", err)
			}
			if !strings.Contains(errs[0].Message, tt.want) {
				t.Errorf("message = %q, want it to contain %q", errs[0].Message, tt.want)
			}
			if errs[0].Location == nil || errs[0].Location.Line != tt.line {
				t.Errorf("location = %+v, want line %d", errs[0].Location, tt.line)
			}
		})
	}
}
