package pipeline

import (
	"fmt"
	"slices"

	"github.com/gogpu/xshader/glsl"
	"github.com/gogpu/xshader/ir"
	"github.com/gogpu/xshader/msl"
	"github.com/gogpu/xshader/reflection"
)

// State is the progress of a unit through the pipeline.
type State uint8

const (
	Unparsed State = iota
	Parsed
	Validated
	Emitted
	Reflected
	Failed
)

var stateNames = [...]string{
	Unparsed:  "unparsed",
	Parsed:    "parsed",
	Validated: "validated",
	Emitted:   "emitted",
	Reflected: "reflected",
	Failed:    "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Unit is one source file on its way through parse, validate, emit and
// reflect. A unit is not safe for concurrent use; the driver gives every
// unit its own goroutine.
//
// Each stage checks that the unit reached the state it needs and returns a
// *StateError otherwise. A failing stage moves the unit to Failed, which is
// terminal.
type Unit struct {
	Name   string
	Source []byte

	state       State
	stage       ir.ShaderStage
	module      *ir.Module
	info        *ir.ModuleInfo
	output      string
	translation msl.TranslationInfo
	summary     reflection.Summary
	emitted     bool
	reflected   bool
	err         error
}

// NewUnit returns an unparsed unit.
func NewUnit(name string, source []byte) *Unit {
	return &Unit{Name: name, Source: source}
}

// State returns the current state.
func (u *Unit) State() State { return u.state }

// Err returns the reason the unit failed, or nil.
func (u *Unit) Err() error { return u.err }

// Stage returns the shader stage the unit was parsed for.
func (u *Unit) Stage() ir.ShaderStage { return u.stage }

// Module returns the parsed module, or nil before parsing.
func (u *Unit) Module() *ir.Module { return u.module }

// Info returns the validation result, or nil before validation.
func (u *Unit) Info() *ir.ModuleInfo { return u.info }

// Output returns the emitted MSL source.
func (u *Unit) Output() string { return u.output }

// Translation returns the entry point renaming of the emitted source.
func (u *Unit) Translation() msl.TranslationInfo { return u.translation }

// Summary returns the reflection summary.
func (u *Unit) Summary() reflection.Summary { return u.summary }

// Parse turns the source into a module.
func (u *Unit) Parse(options glsl.Options) error {
	if err := u.require("parse", Unparsed); err != nil {
		return err
	}
	u.stage = options.Stage
	module, err := glsl.Parse(u.Source, options)
	if err != nil {
		return u.fail(fmt.Errorf("parse: %w", err))
	}
	u.module = module
	u.state = Parsed
	return nil
}

// Validate checks the module against a capability set.
func (u *Unit) Validate(caps ir.Capabilities) error {
	if err := u.require("validate", Parsed); err != nil {
		return err
	}
	info, err := ir.Validate(u.module, caps)
	if err != nil {
		return u.fail(fmt.Errorf("validate: %w", err))
	}
	u.info = info
	u.state = Validated
	return nil
}

// Emit writes the module as MSL. It runs on a validated unit, before or
// after reflection.
func (u *Unit) Emit(options msl.Options, pipeline msl.PipelineOptions) error {
	if err := u.require("emit", Validated, Reflected); err != nil {
		return err
	}
	if u.emitted {
		return &StateError{Stage: "emit", State: u.state, Want: []State{Validated}}
	}
	code, translation, err := msl.Compile(u.module, u.info, options, pipeline)
	if err != nil {
		return u.fail(fmt.Errorf("emit: %w", err))
	}
	u.output = code
	u.translation = translation
	u.emitted = true
	u.state = Emitted
	if u.reflected {
		u.state = Reflected
	}
	return nil
}

// Reflect extracts the reflection summary. It runs on a validated unit,
// before or after emission.
func (u *Unit) Reflect() error {
	if err := u.require("reflect", Validated, Emitted); err != nil {
		return err
	}
	u.summary = reflection.Reflect(u.module)
	u.reflected = true
	u.state = Reflected
	return nil
}

func (u *Unit) require(stage string, want ...State) error {
	if slices.Contains(want, u.state) {
		return nil
	}
	return &StateError{Stage: stage, State: u.state, Want: want}
}

func (u *Unit) fail(err error) error {
	u.state = Failed
	u.err = err
	return err
}
