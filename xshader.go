// Package xshader translates GLSL shaders to Metal Shading Language.
//
// A translation runs four stages:
//   - Parse: GLSL source to IR, for one shader stage
//   - Validate: structural checks and a capability profile
//   - Emit: IR to MSL source
//   - Reflect: entry points, global variables and function signatures
//
// Example usage:
//
//	source := []byte(`#version 450
//	layout(location = 0) out vec4 color;
//	void main() { color = vec4(1.0); }
//	`)
//	result, err := xshader.Translate(source, xshader.DefaultOptions(ir.StageFragment))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.MSL)
//
// Batches of shaders are handled by the pipeline package, which runs the
// same stages concurrently and reports failures per unit.
package xshader

import (
	"fmt"

	"github.com/gogpu/xshader/glsl"
	"github.com/gogpu/xshader/ir"
	"github.com/gogpu/xshader/msl"
	"github.com/gogpu/xshader/pipeline"
	"github.com/gogpu/xshader/reflection"
)

// Options configures a translation.
type Options struct {
	// Stage is the shader stage of the source.
	Stage ir.ShaderStage

	// Defines are predefined preprocessor macros.
	Defines map[string]string

	// Capabilities is the validation profile.
	Capabilities ir.Capabilities

	// MSL and Pipeline are passed to the MSL writer.
	MSL      msl.Options
	Pipeline msl.PipelineOptions
}

// DefaultOptions returns options for the given stage with the default
// capability profile and MSL options.
func DefaultOptions(stage ir.ShaderStage) Options {
	return Options{
		Stage:        stage,
		Capabilities: pipeline.DefaultCapabilities(),
		MSL:          msl.DefaultOptions(),
	}
}

// Result is the outcome of a translation.
type Result struct {
	Module      *ir.Module
	Info        *ir.ModuleInfo
	MSL         string
	Translation msl.TranslationInfo
	Summary     reflection.Summary
}

// Translate runs every stage on source. Errors are prefixed with the stage
// that failed and wrap the stage's typed error.
func Translate(source []byte, opts Options) (*Result, error) {
	module, err := Parse(source, opts.Stage, opts.Defines)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	info, err := Validate(module, opts.Capabilities)
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	code, translation, err := Emit(module, info, opts.MSL, opts.Pipeline)
	if err != nil {
		return nil, fmt.Errorf("emit: %w", err)
	}
	return &Result{
		Module:      module,
		Info:        info,
		MSL:         code,
		Translation: translation,
		Summary:     Reflect(module),
	}, nil
}

// Parse converts GLSL source to IR.
//
// The source may be UTF-8 with or without a byte order mark, or UTF-16 with
// one. Syntax errors are returned as glsl.SyntaxErrors, decoding failures as
// *glsl.EncodingError.
func Parse(source []byte, stage ir.ShaderStage, defines map[string]string) (*ir.Module, error) {
	return glsl.Parse(source, glsl.Options{Stage: stage, Defines: defines})
}

// Validate checks a module for structural soundness and rejects features
// outside caps.
func Validate(module *ir.Module, caps ir.Capabilities) (*ir.ModuleInfo, error) {
	return ir.Validate(module, caps)
}

// Emit writes a validated module as MSL source.
func Emit(module *ir.Module, info *ir.ModuleInfo, opts msl.Options, pipe msl.PipelineOptions) (string, msl.TranslationInfo, error) {
	return msl.Compile(module, info, opts, pipe)
}

// Reflect summarizes the entry points, global variables and functions of a
// module.
func Reflect(module *ir.Module) reflection.Summary {
	return reflection.Reflect(module)
}
