package msl

import (
	"errors"
	"fmt"

	"github.com/gogpu/xshader/ir"
)

// Version represents an MSL language version.
type Version struct {
	Major uint8
	Minor uint8
}

// Common MSL versions.
var (
	Version1_2 = Version{Major: 1, Minor: 2}
	Version2_0 = Version{Major: 2, Minor: 0}
	Version2_1 = Version{Major: 2, Minor: 1}
	Version2_2 = Version{Major: 2, Minor: 2}
	Version2_3 = Version{Major: 2, Minor: 3}
	Version3_0 = Version{Major: 3, Minor: 0}
)

// String returns the version as "major.minor".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Less reports whether v is older than other.
func (v Version) Less(other Version) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	return v.Minor < other.Minor
}

// ParseVersion parses "major.minor".
func ParseVersion(s string) (Version, error) {
	var v Version
	if _, err := fmt.Sscanf(s, "%d.%d", &v.Major, &v.Minor); err != nil {
		return Version{}, fmt.Errorf("invalid MSL version %q", s)
	}
	if v.Less(Version1_2) {
		return Version{}, fmt.Errorf("MSL version %s is older than 1.2", v)
	}
	return v, nil
}

// BindTarget specifies the Metal binding slots for a resource.
type BindTarget struct {
	// Buffer is the buffer binding slot. Nil if not bound as buffer.
	Buffer *uint8

	// Texture is the texture binding slot. Nil if not bound as texture.
	Texture *uint8

	// Sampler is the sampler binding slot. Nil if not bound as sampler.
	// Combined image samplers use both Texture and Sampler.
	Sampler *uint8
}

// EntryPointResources maps GLSL resource bindings to Metal binding slots.
type EntryPointResources struct {
	// Resources maps (set, binding) pairs to Metal bind targets.
	Resources map[ir.ResourceBinding]BindTarget

	// PushConstantBuffer is the buffer slot for push constants.
	PushConstantBuffer *uint8

	// SizesBuffer is the buffer slot for runtime array sizes.
	// Required when a shader queries the length of a runtime-sized array.
	SizesBuffer *uint8
}

// Options configures MSL code generation.
type Options struct {
	// LangVersion is the target MSL version.
	// Defaults to Version2_1 if zero.
	LangVersion Version

	// ZeroInitializeWorkgroupMemory enables zero-initialization of
	// threadgroup memory at the start of compute shaders.
	ZeroInitializeWorkgroupMemory bool

	// ForceLoopBounding adds an iteration limit to every loop so the
	// compiler cannot assume it terminates.
	ForceLoopBounding bool

	// PerEntryPointMap maps entry point names to their resource bindings.
	// Entry points without an entry get slots assigned in declaration order.
	PerEntryPointMap map[string]EntryPointResources

	// FakeMissingBindings emits placeholder attributes for resources that
	// are missing from an entry point's map instead of failing.
	FakeMissingBindings bool
}

// DefaultOptions returns sensible default options for MSL generation.
func DefaultOptions() Options {
	return Options{
		LangVersion:                   Version2_1,
		ZeroInitializeWorkgroupMemory: true,
		ForceLoopBounding:             true,
	}
}

// PipelineOptions configures options specific to a single pipeline.
type PipelineOptions struct {
	// EntryPoint specifies which entry point to compile.
	// If nil, all entry points are compiled.
	EntryPoint *EntryPointSelector

	// AllowAndForcePointSize forces a point size output on vertex shaders.
	// Required for point primitive topology.
	AllowAndForcePointSize bool
}

// EntryPointSelector identifies a specific entry point.
type EntryPointSelector struct {
	Stage ir.ShaderStage
	Name  string
}

// TranslationInfo contains information about the compiled MSL output.
type TranslationInfo struct {
	// EntryPointNames maps original entry point names to generated MSL names.
	EntryPointNames map[string]string
}

// UnsupportedConstructError reports a validated construct that has no MSL
// rendition.
type UnsupportedConstructError struct {
	Construct string
}

func (e *UnsupportedConstructError) Error() string {
	return "unsupported construct: " + e.Construct
}

func unsupported(format string, args ...any) error {
	return &UnsupportedConstructError{Construct: fmt.Sprintf(format, args...)}
}

var errInfoMismatch = errors.New("module info was not produced by validating this module")

// Compile generates MSL source code from a validated module.
// Returns the MSL source as a string and translation info, or an error.
func Compile(module *ir.Module, info *ir.ModuleInfo, options Options, pipeline PipelineOptions) (string, TranslationInfo, error) {
	if module == nil {
		return "", TranslationInfo{}, errors.New("msl: nil module")
	}
	if !info.Describes(module) {
		return "", TranslationInfo{}, fmt.Errorf("msl: %w", errInfoMismatch)
	}

	// Apply defaults for zero values
	if options.LangVersion.Major == 0 {
		options.LangVersion = Version2_1
	}

	w := newWriter(module, info, &options, &pipeline)
	if err := w.writeModule(); err != nil {
		return "", TranslationInfo{}, fmt.Errorf("msl: %w", err)
	}

	return w.String(), TranslationInfo{EntryPointNames: w.entryPointNames}, nil
}
