package ir

import (
	"fmt"
	"strings"
)

// Module is one translation unit in IR form.
type Module struct {
	// Types is the type table. Every TypeHandle indexes into it.
	Types []Type

	// Constants holds module-scope constants.
	Constants []Constant

	// GlobalVariables holds module-scope variables, including the stage
	// interface (in/out) and resources.
	GlobalVariables []GlobalVariable

	// Functions holds every function in declaration order.
	Functions []Function

	// EntryPoints lists the invocable entry points in declaration order.
	EntryPoints []EntryPoint
}

// EntryPoint designates a function as the start of execution for a stage.
type EntryPoint struct {
	Name     string
	Stage    ShaderStage
	Function FunctionHandle

	// Workgroup is the compute workgroup size. Zero for other stages.
	Workgroup [3]uint32

	// EarlyDepthTest is set by layout(early_fragment_tests) in.
	EarlyDepthTest bool
}

// ShaderStage identifies a pipeline stage.
type ShaderStage uint8

const (
	StageVertex ShaderStage = iota
	StageFragment
	StageCompute
)

func (s ShaderStage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	default:
		return fmt.Sprintf("ShaderStage(%d)", uint8(s))
	}
}

// ParseShaderStage parses a stage name. Both the long names and the usual
// file-extension abbreviations are accepted.
func ParseShaderStage(name string) (ShaderStage, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "vertex", "vert", "vs":
		return StageVertex, nil
	case "fragment", "frag", "fs", "pixel":
		return StageFragment, nil
	case "compute", "comp", "cs":
		return StageCompute, nil
	}
	return 0, fmt.Errorf("unknown shader stage %q", name)
}

// ShaderStages is a set of stages.
type ShaderStages uint8

const (
	StagesVertex ShaderStages = 1 << iota
	StagesFragment
	StagesCompute

	StagesAll = StagesVertex | StagesFragment | StagesCompute
)

// Stages returns the singleton set for s.
func (s ShaderStage) Stages() ShaderStages {
	return ShaderStages(1) << s
}

// Contains reports whether stage is in the set.
func (s ShaderStages) Contains(stage ShaderStage) bool {
	return s&stage.Stages() != 0
}

// Handle types. Each indexes into the corresponding arena.
type (
	TypeHandle           uint32
	FunctionHandle       uint32
	GlobalVariableHandle uint32
	ConstantHandle       uint32
	ExpressionHandle     uint32
)

// Type is an entry of the module type table.
type Type struct {
	Name  string
	Inner TypeInner
}

// TypeInner is the closed set of type shapes.
type TypeInner interface {
	typeInner()
}

// ScalarType is a scalar of a given kind and byte width.
type ScalarType struct {
	Kind  ScalarKind
	Width uint8
}

func (ScalarType) typeInner() {}

// Common scalars.
var (
	ScalarF32     = ScalarType{Kind: ScalarFloat, Width: 4}
	ScalarF64     = ScalarType{Kind: ScalarFloat, Width: 8}
	ScalarI32     = ScalarType{Kind: ScalarSint, Width: 4}
	ScalarU32     = ScalarType{Kind: ScalarUint, Width: 4}
	ScalarI64     = ScalarType{Kind: ScalarSint, Width: 8}
	ScalarU64     = ScalarType{Kind: ScalarUint, Width: 8}
	ScalarBoolean = ScalarType{Kind: ScalarBool, Width: 1}
)

// ScalarKind is the kind of a scalar.
type ScalarKind uint8

const (
	ScalarSint ScalarKind = iota
	ScalarUint
	ScalarFloat
	ScalarBool
)

func (k ScalarKind) String() string {
	switch k {
	case ScalarSint:
		return "sint"
	case ScalarUint:
		return "uint"
	case ScalarFloat:
		return "float"
	case ScalarBool:
		return "bool"
	default:
		return fmt.Sprintf("ScalarKind(%d)", uint8(k))
	}
}

// VectorType is a vector of 2, 3 or 4 scalars.
type VectorType struct {
	Size   VectorSize
	Scalar ScalarType
}

func (VectorType) typeInner() {}

// VectorSize is the component count of a vector.
type VectorSize uint8

const (
	Vec2 VectorSize = 2
	Vec3 VectorSize = 3
	Vec4 VectorSize = 4
)

// MatrixType is a column-major matrix.
type MatrixType struct {
	Columns VectorSize
	Rows    VectorSize
	Scalar  ScalarType
}

func (MatrixType) typeInner() {}

// ArrayType is a fixed or runtime-sized array.
type ArrayType struct {
	Base   TypeHandle
	Size   ArraySize
	Stride uint32
}

func (ArrayType) typeInner() {}

// ArraySize is the element count of an array. Constant is nil for
// runtime-sized arrays.
type ArraySize struct {
	Constant *uint32
}

// StructType is a structure, either user declared or an interface block.
type StructType struct {
	Members []StructMember
	Span    uint32
}

func (StructType) typeInner() {}

// StructMember is one field of a struct.
type StructMember struct {
	Name   string
	Type   TypeHandle
	Offset uint32
}

// PointerType points at a value of a type in the table.
type PointerType struct {
	Base  TypeHandle
	Space AddressSpace
}

func (PointerType) typeInner() {}

// ValuePointerType points at a scalar or vector that has no entry of its own
// in the type table, such as a vector component or a matrix column.
// Size is zero for scalars.
type ValuePointerType struct {
	Size   VectorSize
	Scalar ScalarType
	Space  AddressSpace
}

func (ValuePointerType) typeInner() {}

// AddressSpace is where a variable lives.
type AddressSpace uint8

const (
	SpaceFunction AddressSpace = iota
	SpacePrivate
	SpaceWorkGroup
	SpaceUniform
	SpaceStorage
	SpacePushConstant
	SpaceHandle
	SpaceIn
	SpaceOut
)

func (s AddressSpace) String() string {
	switch s {
	case SpaceFunction:
		return "function"
	case SpacePrivate:
		return "private"
	case SpaceWorkGroup:
		return "workgroup"
	case SpaceUniform:
		return "uniform"
	case SpaceStorage:
		return "storage"
	case SpacePushConstant:
		return "push_constant"
	case SpaceHandle:
		return "handle"
	case SpaceIn:
		return "in"
	case SpaceOut:
		return "out"
	default:
		return fmt.Sprintf("AddressSpace(%d)", uint8(s))
	}
}

// IsResource reports whether globals in this space are bound by the host.
func (s AddressSpace) IsResource() bool {
	switch s {
	case SpaceUniform, SpaceStorage, SpaceHandle:
		return true
	}
	return false
}

// SamplerType is a separate sampler object.
type SamplerType struct {
	Comparison bool
}

func (SamplerType) typeInner() {}

// ImageType is a texture or storage image.
type ImageType struct {
	Dim          ImageDimension
	Arrayed      bool
	Class        ImageClass
	Multisampled bool

	// SampledKind is the scalar kind texels are read as. Sampled images only.
	SampledKind ScalarKind

	// Format and Access describe storage images.
	Format StorageFormat
	Access StorageAccess
}

func (ImageType) typeInner() {}

// SampledImageType is an image and sampler fused into one handle, as GLSL
// sampler2D and friends are.
type SampledImageType struct {
	Image ImageType
}

func (SampledImageType) typeInner() {}

// Comparison reports whether the fused sampler performs depth comparison.
func (t SampledImageType) Comparison() bool {
	return t.Image.Class == ImageClassDepth
}

// ImageDimension is the dimensionality of an image.
type ImageDimension uint8

const (
	Dim1D ImageDimension = iota
	Dim2D
	Dim3D
	DimCube
)

// ImageClass distinguishes sampled, depth and storage images.
type ImageClass uint8

const (
	ImageClassSampled ImageClass = iota
	ImageClassDepth
	ImageClassStorage
)

// StorageAccess is a set of storage image/buffer access rights.
type StorageAccess uint8

const (
	StorageLoad StorageAccess = 1 << iota
	StorageStore

	StorageReadWrite = StorageLoad | StorageStore
)

// StorageFormat is a texel format of a storage image.
type StorageFormat uint8

const (
	FormatUnknown StorageFormat = iota
	FormatR8Unorm
	FormatRg8Unorm
	FormatRgba8Unorm
	FormatRgba8Snorm
	FormatRgba8Uint
	FormatRgba8Sint
	FormatR16Unorm
	FormatRg16Unorm
	FormatRgba16Unorm
	FormatR16Snorm
	FormatRg16Snorm
	FormatRgba16Snorm
	FormatR16Float
	FormatRg16Float
	FormatRgba16Float
	FormatR32Float
	FormatRg32Float
	FormatRgba32Float
	FormatR32Uint
	FormatRg32Uint
	FormatRgba32Uint
	FormatR32Sint
	FormatRg32Sint
	FormatRgba32Sint
	FormatRgb10a2Unorm
	FormatRg11b10Float
)

// Is16BitNorm reports whether the format is one of the 16-bit normalized
// formats that need a dedicated capability.
func (f StorageFormat) Is16BitNorm() bool {
	switch f {
	case FormatR16Unorm, FormatRg16Unorm, FormatRgba16Unorm,
		FormatR16Snorm, FormatRg16Snorm, FormatRgba16Snorm:
		return true
	}
	return false
}

// ScalarKind returns the kind texels of this format are read as.
func (f StorageFormat) ScalarKind() ScalarKind {
	switch f {
	case FormatRgba8Uint, FormatR32Uint, FormatRg32Uint, FormatRgba32Uint:
		return ScalarUint
	case FormatRgba8Sint, FormatR32Sint, FormatRg32Sint, FormatRgba32Sint:
		return ScalarSint
	default:
		return ScalarFloat
	}
}

// Constant is a named module-scope constant.
type Constant struct {
	Name  string
	Type  TypeHandle
	Value ConstantValue
}

// ConstantValue is the value of a constant.
type ConstantValue interface {
	constantValue()
}

// ScalarValue holds the bit pattern of a scalar constant.
type ScalarValue struct {
	Bits uint64
	Kind ScalarKind
}

func (ScalarValue) constantValue() {}

// CompositeValue builds a vector, matrix, array or struct out of other
// constants.
type CompositeValue struct {
	Components []ConstantHandle
}

func (CompositeValue) constantValue() {}

// ZeroConstantValue is the all-zero value of the constant's type.
type ZeroConstantValue struct{}

func (ZeroConstantValue) constantValue() {}

// GlobalVariable is a module-scope variable.
type GlobalVariable struct {
	Name  string
	Space AddressSpace
	Type  TypeHandle

	// Binding locates a resource. Set for uniform, storage and handle spaces.
	Binding *ResourceBinding

	// IO binds a stage input or output. Set for in and out spaces.
	IO Binding

	// Access restricts storage buffers. Zero means read-write.
	Access StorageAccess

	// Init is an optional constant initializer for private globals.
	Init *ConstantHandle
}

// ResourceBinding is a descriptor set and binding pair.
type ResourceBinding struct {
	Group   uint32
	Binding uint32
}

func (b ResourceBinding) String() string {
	return fmt.Sprintf("set=%d, binding=%d", b.Group, b.Binding)
}

// Function is a function definition.
type Function struct {
	Name      string
	Arguments []FunctionArgument
	Result    *FunctionResult
	LocalVars []LocalVariable

	// Expressions is the expression arena; ExpressionTypes runs parallel to it.
	Expressions     []Expression
	ExpressionTypes []TypeResolution

	Body Block
}

// FunctionArgument is a formal parameter. Out and inout parameters have a
// pointer type.
type FunctionArgument struct {
	Name string
	Type TypeHandle
}

// FunctionResult is a function's return type.
type FunctionResult struct {
	Type TypeHandle
}

// LocalVariable is a function-scope variable.
type LocalVariable struct {
	Name string
	Type TypeHandle
	Init *ExpressionHandle
}

// Binding attaches a global to the stage interface.
type Binding interface {
	binding()
}

// BuiltinBinding binds a pipeline-provided value.
type BuiltinBinding struct {
	Builtin BuiltinValue
}

func (BuiltinBinding) binding() {}

// BuiltinValue identifies a builtin input or output.
type BuiltinValue uint8

const (
	BuiltinPosition BuiltinValue = iota
	BuiltinPointSize
	BuiltinClipDistance
	BuiltinCullDistance
	BuiltinVertexIndex
	BuiltinInstanceIndex
	BuiltinFrontFacing
	BuiltinFragDepth
	BuiltinPointCoord
	BuiltinPrimitiveIndex
	BuiltinSampleIndex
	BuiltinSampleMask
	BuiltinViewIndex
	BuiltinGlobalInvocationID
	BuiltinLocalInvocationID
	BuiltinLocalInvocationIndex
	BuiltinWorkGroupID
	BuiltinNumWorkGroups
)

var builtinNames = [...]string{
	BuiltinPosition:             "position",
	BuiltinPointSize:            "point_size",
	BuiltinClipDistance:         "clip_distance",
	BuiltinCullDistance:         "cull_distance",
	BuiltinVertexIndex:          "vertex_index",
	BuiltinInstanceIndex:        "instance_index",
	BuiltinFrontFacing:          "front_facing",
	BuiltinFragDepth:            "frag_depth",
	BuiltinPointCoord:           "point_coord",
	BuiltinPrimitiveIndex:       "primitive_index",
	BuiltinSampleIndex:          "sample_index",
	BuiltinSampleMask:           "sample_mask",
	BuiltinViewIndex:            "view_index",
	BuiltinGlobalInvocationID:   "global_invocation_id",
	BuiltinLocalInvocationID:    "local_invocation_id",
	BuiltinLocalInvocationIndex: "local_invocation_index",
	BuiltinWorkGroupID:          "workgroup_id",
	BuiltinNumWorkGroups:        "num_workgroups",
}

func (b BuiltinValue) String() string {
	if int(b) < len(builtinNames) {
		return builtinNames[b]
	}
	return fmt.Sprintf("BuiltinValue(%d)", uint8(b))
}

// LocationBinding binds a user-defined varying or attachment.
type LocationBinding struct {
	Location      uint32
	Interpolation *Interpolation
}

func (LocationBinding) binding() {}

// Interpolation qualifies how a fragment input is interpolated.
type Interpolation struct {
	Kind     InterpolationKind
	Sampling InterpolationSampling
}

// InterpolationKind selects the interpolation function.
type InterpolationKind uint8

const (
	InterpolationPerspective InterpolationKind = iota
	InterpolationLinear
	InterpolationFlat
)

// InterpolationSampling selects where interpolation is evaluated.
type InterpolationSampling uint8

const (
	SamplingCenter InterpolationSampling = iota
	SamplingCentroid
	SamplingSample
)

// TypeResolution is the type of an expression. Handle is set when the type
// lives in the module type table; otherwise Value holds it inline.
type TypeResolution struct {
	Handle *TypeHandle
	Value  TypeInner
}

// Inner returns the resolved type shape.
func (r TypeResolution) Inner(module *Module) TypeInner {
	if r.Handle != nil {
		if int(*r.Handle) < len(module.Types) {
			return module.Types[*r.Handle].Inner
		}
		return nil
	}
	return r.Value
}

// TypeResHandle returns a resolution referring to the type table.
func TypeResHandle(h TypeHandle) TypeResolution {
	return TypeResolution{Handle: &h}
}

// TypeResInner returns an inline resolution.
func TypeResInner(inner TypeInner) TypeResolution {
	return TypeResolution{Value: inner}
}
