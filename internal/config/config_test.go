package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/xshader/ir"
	"github.com/gogpu/xshader/msl"
	"github.com/gogpu/xshader/pipeline"
)

const fullRunFile = `
fail-fast = true
concurrency = 4
capabilities = ["SHADER_INT64", "multiview"]

[defines]
USE_FOG = "1"

[msl]
lang-version = "2.3"
zero-initialize-workgroup-memory = false
force-point-size = true
entry-point = "main"

[[shader]]
path = "shaders/basic.frag"
stage = "fragment"

[[shader]]
path = "shaders/blur.comp.glsl"
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(fullRunFile))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !f.FailFast || f.Concurrency != 4 {
		t.Errorf("fail-fast %v, concurrency %d", f.FailFast, f.Concurrency)
	}
	if f.Defines["USE_FOG"] != "1" {
		t.Errorf("Defines = %v", f.Defines)
	}
	if len(f.Shaders) != 2 || f.Shaders[1].Path != "shaders/blur.comp.glsl" {
		t.Fatalf("Shaders = %+v", f.Shaders)
	}

	caps, err := f.CapabilitySet()
	if err != nil {
		t.Fatalf("CapabilitySet failed: %v", err)
	}
	if !caps.Contains(pipeline.DefaultCapabilities()) {
		t.Error("listed capabilities must extend the default profile")
	}
	if !caps.Contains(ir.CapabilityShaderInt64 | ir.CapabilityMultiview) {
		t.Errorf("capabilities = %s", caps)
	}

	stage, err := f.Shaders[1].ShaderStage()
	if err != nil || stage != ir.StageCompute {
		t.Errorf("derived stage = %s, %v", stage, err)
	}
}

func TestMSLOptions(t *testing.T) {
	f, err := Parse([]byte(fullRunFile))
	if err != nil {
		t.Fatal(err)
	}
	opts, pipe, err := f.MSL.Options()
	if err != nil {
		t.Fatalf("Options failed: %v", err)
	}
	if opts.LangVersion != (msl.Version{Major: 2, Minor: 3}) {
		t.Errorf("LangVersion = %v", opts.LangVersion)
	}
	if opts.ZeroInitializeWorkgroupMemory {
		t.Error("zero-initialize-workgroup-memory = false was ignored")
	}
	if !opts.ForceLoopBounding {
		t.Error("an unset force-loop-bounding must keep the default")
	}
	if !pipe.AllowAndForcePointSize {
		t.Error("force-point-size was ignored")
	}
	if pipe.EntryPoint == nil || pipe.EntryPoint.Name != "main" {
		t.Errorf("EntryPoint = %+v", pipe.EntryPoint)
	}
}

func TestMSLOptionsDefaults(t *testing.T) {
	var m MSL
	opts, pipe, err := m.Options()
	if err != nil {
		t.Fatal(err)
	}
	def := msl.DefaultOptions()
	if opts.LangVersion != def.LangVersion ||
		opts.ZeroInitializeWorkgroupMemory != def.ZeroInitializeWorkgroupMemory ||
		opts.ForceLoopBounding != def.ForceLoopBounding {
		t.Errorf("empty table: %+v, want the defaults", opts)
	}
	if pipe.EntryPoint != nil || pipe.AllowAndForcePointSize {
		t.Errorf("empty table: pipeline %+v", pipe)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
		field string
		msg   string
	}{
		{
			name:  "negative concurrency",
			input: "concurrency = -1",
			field: "concurrency",
			msg:   "must be at least 0",
		},
		{
			name:  "shader without path",
			input: "[[shader]]\nstage = \"vertex\"",
			field: "shader[0].path",
			msg:   "required",
		},
		{
			name:  "unknown stage",
			input: "[[shader]]\npath = \"a.glsl\"\nstage = \"geometry\"",
			field: "shader[0].stage",
			msg:   "must be one of:",
		},
		{
			name:  "unknown capability",
			input: `capabilities = ["RAY_QUERY"]`,
			field: "capabilities",
			msg:   "unknown capability",
		},
		{
			name:  "old MSL version",
			input: "[msl]\nlang-version = \"1.0\"",
			field: "msl.lang-version",
			msg:   "",
		},
		{
			name:  "stage not derivable",
			input: "[[shader]]\npath = \"shaders/common.glsl\"",
			field: "shader[0].stage",
			msg:   "cannot derive a shader stage",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			for _, f := range verr.Fields {
				if f.Field == tt.field && strings.Contains(f.Message, tt.msg) {
					return
				}
			}
			t.Errorf("no %s error containing %q in %v", tt.field, tt.msg, verr)
		})
	}
}

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse([]byte("concurrency = = 2"))
	if err == nil {
		t.Fatal("expected a TOML error")
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		t.Errorf("a TOML syntax error is not a validation error: %v", err)
	}
}

func TestStageFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    ir.ShaderStage
		wantErr bool
	}{
		{"basic.frag", ir.StageFragment, false},
		{"dir/quad.vert", ir.StageVertex, false},
		{"blur.comp", ir.StageCompute, false},
		{"blur.comp.glsl", ir.StageCompute, false},
		{"light.fs.glsl", ir.StageFragment, false},
		{"common.glsl", 0, true},
		{"noext", 0, true},
		{"mesh.geom", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := StageFromPath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("StageFromPath(%q) = %s, want %s", tt.path, got, tt.want)
			}
		})
	}
}

func TestLoadResolvesShaderPaths(t *testing.T) {
	dir := t.TempDir()
	shaderDir := filepath.Join(dir, "shaders")
	if err := os.MkdirAll(shaderDir, 0o755); err != nil {
		t.Fatal(err)
	}
	source := "#version 450\nvoid main() {}\n"
	if err := os.WriteFile(filepath.Join(shaderDir, "basic.frag"), []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}
	runFile := filepath.Join(dir, FileName)
	if err := os.WriteFile(runFile, []byte("[[shader]]\npath = \"shaders/basic.frag\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := Load(runFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	inputs, err := f.Inputs()
	if err != nil {
		t.Fatalf("Inputs failed: %v", err)
	}
	if len(inputs) != 1 {
		t.Fatalf("got %d inputs", len(inputs))
	}
	in := inputs[0]
	if in.Name != "shaders/basic.frag" || in.Stage != ir.StageFragment || string(in.Source) != source {
		t.Errorf("input = %s %s %q", in.Name, in.Stage, in.Source)
	}
}

func TestLoadPrefixesPath(t *testing.T) {
	runFile := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(runFile, []byte("concurrency = 1000"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(runFile)
	if err == nil || !strings.HasPrefix(err.Error(), runFile+": ") {
		t.Errorf("err = %v, want it prefixed with the file name", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: err = %v", err)
	}
}

func TestDriver(t *testing.T) {
	f, err := Parse([]byte(fullRunFile))
	if err != nil {
		t.Fatal(err)
	}
	d, err := f.Driver(nil)
	if err != nil {
		t.Fatalf("Driver failed: %v", err)
	}
	if !d.FailFast || d.Concurrency != 4 || d.Defines["USE_FOG"] != "1" {
		t.Errorf("driver = %+v", d)
	}
	if !d.Capabilities.Contains(ir.CapabilityShaderInt64) {
		t.Errorf("Capabilities = %s", d.Capabilities)
	}
	if d.Target.LangVersion != (msl.Version{Major: 2, Minor: 3}) {
		t.Errorf("Target = %+v", d.Target)
	}
}
