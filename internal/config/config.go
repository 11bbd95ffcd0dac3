// Package config loads the TOML run file of the xshaderc command.
//
// A run file lists the shaders of a batch together with the capability
// profile, preprocessor defines and MSL options they are compiled with:
//
//	fail-fast = false
//	concurrency = 4
//	capabilities = ["SHADER_INT64"]
//
//	[defines]
//	USE_FOG = "1"
//
//	[msl]
//	lang-version = "2.1"
//
//	[[shader]]
//	path = "shaders/basic.frag"
//	stage = "fragment"
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml"

	"github.com/gogpu/xshader/ir"
	"github.com/gogpu/xshader/msl"
	"github.com/gogpu/xshader/pipeline"
)

// FileName is the run file looked up when none is given.
const FileName = "xshader.toml"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their TOML key.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// File is a decoded run file.
type File struct {
	FailFast     bool              `toml:"fail-fast"`
	Concurrency  int               `toml:"concurrency" validate:"gte=0,lte=256"`
	Capabilities []string          `toml:"capabilities" validate:"dive,required"`
	Defines      map[string]string `toml:"defines"`
	MSL          MSL               `toml:"msl"`
	Shaders      []Shader          `toml:"shader" validate:"dive"`

	// Dir is the directory relative shader paths are resolved against.
	Dir string `toml:"-"`
}

// MSL holds the [msl] table. Unset switches keep the writer's defaults.
type MSL struct {
	LangVersion                   string `toml:"lang-version"`
	ZeroInitializeWorkgroupMemory *bool  `toml:"zero-initialize-workgroup-memory"`
	ForceLoopBounding             *bool  `toml:"force-loop-bounding"`
	ForcePointSize                bool   `toml:"force-point-size"`
	FakeMissingBindings           bool   `toml:"fake-missing-bindings"`
	EntryPoint                    string `toml:"entry-point"`
}

// Shader is one [[shader]] entry.
type Shader struct {
	Path  string `toml:"path" validate:"required"`
	Stage string `toml:"stage" validate:"omitempty,oneof=vertex vert vs fragment frag fs pixel compute comp cs"`
}

// ValidationError lists the fields of a run file that failed validation.
type ValidationError struct {
	Fields []FieldError
}

// FieldError is one rejected field, named by its TOML path.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Field + ": " + f.Message
	}
	return "invalid run file: " + strings.Join(msgs, "; ")
}

// Load reads and validates the run file at path. Shader paths are resolved
// against the file's directory.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.Dir = filepath.Dir(path)
	return f, nil
}

// Parse decodes and validates a run file.
func Parse(data []byte) (*File, error) {
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks field constraints and the names the struct tags cannot
// express: capabilities, the MSL version and shader stages.
func (f *File) Validate() error {
	if err := validate.Struct(f); err != nil {
		var valErrs validator.ValidationErrors
		if !errors.As(err, &valErrs) {
			return err
		}
		verr := &ValidationError{}
		for _, ve := range valErrs {
			verr.Fields = append(verr.Fields, FieldError{
				Field:   fieldPath(ve),
				Message: formatValidationError(ve),
			})
		}
		return verr
	}

	verr := &ValidationError{}
	if _, err := f.CapabilitySet(); err != nil {
		verr.Fields = append(verr.Fields, FieldError{Field: "capabilities", Message: err.Error()})
	}
	if f.MSL.LangVersion != "" {
		if _, err := msl.ParseVersion(f.MSL.LangVersion); err != nil {
			verr.Fields = append(verr.Fields, FieldError{Field: "msl.lang-version", Message: err.Error()})
		}
	}
	for i, s := range f.Shaders {
		if _, err := s.ShaderStage(); err != nil {
			verr.Fields = append(verr.Fields, FieldError{Field: fmt.Sprintf("shader[%d].stage", i), Message: err.Error()})
		}
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// CapabilitySet returns the default profile extended with the listed
// capabilities.
func (f *File) CapabilitySet() (ir.Capabilities, error) {
	caps := pipeline.DefaultCapabilities()
	extra, err := ir.ParseCapabilities(strings.Join(f.Capabilities, ","))
	if err != nil {
		return caps, err
	}
	return caps.With(extra), nil
}

// Options returns the MSL writer options of the [msl] table.
func (m *MSL) Options() (msl.Options, msl.PipelineOptions, error) {
	opts := msl.DefaultOptions()
	if m.LangVersion != "" {
		v, err := msl.ParseVersion(m.LangVersion)
		if err != nil {
			return opts, msl.PipelineOptions{}, err
		}
		opts.LangVersion = v
	}
	if m.ZeroInitializeWorkgroupMemory != nil {
		opts.ZeroInitializeWorkgroupMemory = *m.ZeroInitializeWorkgroupMemory
	}
	if m.ForceLoopBounding != nil {
		opts.ForceLoopBounding = *m.ForceLoopBounding
	}
	opts.FakeMissingBindings = m.FakeMissingBindings

	pipe := msl.PipelineOptions{AllowAndForcePointSize: m.ForcePointSize}
	if m.EntryPoint != "" {
		// The stage is filled in per unit by the driver.
		pipe.EntryPoint = &msl.EntryPointSelector{Name: m.EntryPoint}
	}
	return opts, pipe, nil
}

// Driver returns a pipeline driver configured from the run file.
func (f *File) Driver(logger *slog.Logger) (*pipeline.Driver, error) {
	caps, err := f.CapabilitySet()
	if err != nil {
		return nil, err
	}
	opts, pipe, err := f.MSL.Options()
	if err != nil {
		return nil, err
	}
	return &pipeline.Driver{
		Capabilities: caps,
		Target:       opts,
		Pipeline:     pipe,
		Defines:      f.Defines,
		FailFast:     f.FailFast,
		Concurrency:  f.Concurrency,
		Logger:       logger,
	}, nil
}

// Inputs reads every listed shader. A shader that cannot be read is
// returned as an error naming its path.
func (f *File) Inputs() ([]pipeline.Input, error) {
	inputs := make([]pipeline.Input, 0, len(f.Shaders))
	for _, s := range f.Shaders {
		stage, err := s.ShaderStage()
		if err != nil {
			return nil, err
		}
		path := s.Path
		if !filepath.IsAbs(path) && f.Dir != "" {
			path = filepath.Join(f.Dir, path)
		}
		source, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, pipeline.Input{Name: s.Path, Stage: stage, Source: source})
	}
	return inputs, nil
}

// ShaderStage returns the declared stage, or the one implied by the file
// extension when none is declared.
func (s *Shader) ShaderStage() (ir.ShaderStage, error) {
	if s.Stage != "" {
		return ir.ParseShaderStage(s.Stage)
	}
	return StageFromPath(s.Path)
}

// StageFromPath derives a shader stage from a file name such as
// "basic.frag" or "blur.comp.glsl".
func StageFromPath(path string) (ir.ShaderStage, error) {
	name := strings.TrimSuffix(filepath.Base(path), ".glsl")
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return 0, fmt.Errorf("cannot derive a shader stage from %q", path)
	}
	stage, err := ir.ParseShaderStage(ext)
	if err != nil {
		return 0, fmt.Errorf("cannot derive a shader stage from %q: %w", path, err)
	}
	return stage, nil
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ve validator.FieldError) string {
	ns := ve.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

// formatValidationError converts a validator.FieldError to a readable message.
func formatValidationError(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return "required"
	case "gte":
		return fmt.Sprintf("must be at least %s", ve.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", ve.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", ve.Param())
	default:
		if ve.Param() != "" {
			return fmt.Sprintf("failed %s=%s validation", ve.Tag(), ve.Param())
		}
		return fmt.Sprintf("failed %s validation", ve.Tag())
	}
}
