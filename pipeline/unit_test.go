package pipeline

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/xshader/glsl"
	"github.com/gogpu/xshader/ir"
	"github.com/gogpu/xshader/msl"
)

const texturedFragment = `#version 450
uniform sampler2D tex;

void main() {
}
`

const brokenFragment = `#version 450
void main() {
    float x = 1.0;
`

func TestUnitStages(t *testing.T) {
	u := NewUnit("basic.frag", []byte(texturedFragment))
	if u.State() != Unparsed {
		t.Fatalf("State = %s, want unparsed", u.State())
	}

	if err := u.Parse(glsl.Options{Stage: ir.StageFragment}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if u.State() != Parsed || u.Module() == nil {
		t.Fatalf("after Parse: state %s, module %v", u.State(), u.Module())
	}
	if u.Stage() != ir.StageFragment {
		t.Errorf("Stage = %s, want fragment", u.Stage())
	}

	if err := u.Validate(DefaultCapabilities()); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if u.State() != Validated || u.Info() == nil {
		t.Fatalf("after Validate: state %s", u.State())
	}

	if err := u.Emit(msl.DefaultOptions(), msl.PipelineOptions{}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if u.State() != Emitted {
		t.Fatalf("after Emit: state %s", u.State())
	}
	if !strings.Contains(u.Output(), "#include <metal_stdlib>") {
		t.Errorf("Output is not MSL:\n%s", u.Output())
	}
	if u.Translation().EntryPointNames["main"] != "main_" {
		t.Errorf("EntryPointNames = %v", u.Translation().EntryPointNames)
	}

	if err := u.Reflect(); err != nil {
		t.Fatalf("Reflect failed: %v", err)
	}
	if u.State() != Reflected {
		t.Fatalf("after Reflect: state %s", u.State())
	}
	s := u.Summary()
	if s.EntryPointList() != "main" || s.GlobalVariableList() != "tex" || s.FunctionList() != "main()" {
		t.Errorf("Summary = %+v", s)
	}
}

func TestUnitReflectBeforeEmit(t *testing.T) {
	u := NewUnit("basic.frag", []byte(texturedFragment))
	if err := u.Parse(glsl.Options{Stage: ir.StageFragment}); err != nil {
		t.Fatal(err)
	}
	if err := u.Validate(DefaultCapabilities()); err != nil {
		t.Fatal(err)
	}
	if err := u.Reflect(); err != nil {
		t.Fatalf("Reflect failed: %v", err)
	}
	if err := u.Emit(msl.Options{}, msl.PipelineOptions{}); err != nil {
		t.Fatalf("Emit after Reflect failed: %v", err)
	}
	if u.State() != Reflected {
		t.Errorf("State = %s, want reflected", u.State())
	}

	var stateErr *StateError
	if err := u.Emit(msl.Options{}, msl.PipelineOptions{}); !errors.As(err, &stateErr) {
		t.Errorf("second Emit: err = %v, want *StateError", err)
	}
	if err := u.Reflect(); !errors.As(err, &stateErr) {
		t.Errorf("second Reflect: err = %v, want *StateError", err)
	}
}

func TestUnitOutOfOrder(t *testing.T) {
	tests := []struct {
		name string
		call func(u *Unit) error
	}{
		{"validate before parse", func(u *Unit) error { return u.Validate(DefaultCapabilities()) }},
		{"emit before validate", func(u *Unit) error { return u.Emit(msl.DefaultOptions(), msl.PipelineOptions{}) }},
		{"reflect before validate", func(u *Unit) error { return u.Reflect() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := NewUnit("basic.frag", []byte(texturedFragment))
			err := tt.call(u)
			var stateErr *StateError
			if !errors.As(err, &stateErr) {
				t.Fatalf("err = %v, want *StateError", err)
			}
			if stateErr.State != Unparsed {
				t.Errorf("StateError.State = %s, want unparsed", stateErr.State)
			}
			if u.State() != Unparsed {
				t.Errorf("a refused stage changed the state to %s", u.State())
			}
			if Classify(err) != KindState {
				t.Errorf("Classify = %s, want state", Classify(err))
			}
		})
	}
}

func TestUnitFailureIsTerminal(t *testing.T) {
	u := NewUnit("broken.frag", []byte(brokenFragment))
	err := u.Parse(glsl.Options{Stage: ir.StageFragment})
	if err == nil {
		t.Fatal("expected a parse error")
	}
	if !strings.HasPrefix(err.Error(), "parse: ") {
		t.Errorf("error %q is not prefixed with the stage", err)
	}
	var syntaxErr *glsl.SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Errorf("err = %v, want a *glsl.SyntaxError inside", err)
	}
	if u.State() != Failed || u.Err() != err {
		t.Fatalf("state %s, err %v", u.State(), u.Err())
	}

	var stateErr *StateError
	if err := u.Validate(DefaultCapabilities()); !errors.As(err, &stateErr) {
		t.Errorf("Validate on a failed unit: err = %v, want *StateError", err)
	}
	if err := u.Parse(glsl.Options{Stage: ir.StageFragment}); !errors.As(err, &stateErr) {
		t.Errorf("Parse on a failed unit: err = %v, want *StateError", err)
	}
}

func TestUnitCapabilityFailure(t *testing.T) {
	source := `#version 450
layout(location = 0) out vec4 color;
void main() {
    color = vec4(float(gl_PrimitiveID));
}
`
	u := NewUnit("prim.frag", []byte(source))
	if err := u.Parse(glsl.Options{Stage: ir.StageFragment}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	err := u.Validate(ir.CapabilitiesNone)
	var capErr *ir.CapabilityError
	if !errors.As(err, &capErr) {
		t.Fatalf("err = %v, want *ir.CapabilityError", err)
	}
	if capErr.Feature != ir.CapabilityPrimitiveIndex {
		t.Errorf("Feature = %s, want PRIMITIVE_INDEX", capErr.Feature)
	}
	if u.State() != Failed {
		t.Errorf("State = %s, want failed", u.State())
	}
}

func TestStateString(t *testing.T) {
	want := map[State]string{
		Unparsed:  "unparsed",
		Parsed:    "parsed",
		Validated: "validated",
		Emitted:   "emitted",
		Reflected: "reflected",
		Failed:    "failed",
		State(42): "State(42)",
	}
	for s, name := range want {
		if s.String() != name {
			t.Errorf("State(%d).String() = %q, want %q", uint8(s), s.String(), name)
		}
	}
}

func TestStateErrorMessage(t *testing.T) {
	err := &StateError{Stage: "emit", State: Parsed, Want: []State{Validated, Reflected}}
	if got, want := err.Error(), "emit: unit is parsed, want validated or reflected"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
