package reflection

import (
	"fmt"

	"github.com/gogpu/xshader/ir"
)

// Kind is the element kind of a scalar, vector or matrix descriptor.
type Kind uint8

const (
	SignedInt Kind = iota
	UnsignedInt
	Float
	Bool
)

var kindNames = [...]string{
	SignedInt:   "int",
	UnsignedInt: "uint",
	Float:       "float",
	Bool:        "bool",
}

// String returns the target spelling of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return ""
}

// TypeDescriptor is the view of a type the namer works on. The set of
// variants is closed: Scalar, Vector, Matrix, Sampler and Other.
type TypeDescriptor interface {
	descriptor()
}

// Scalar is a single int, uint, float or bool.
type Scalar struct {
	Kind  Kind
	Width uint8
}

// Vector is a 2, 3 or 4 component vector.
type Vector struct {
	Size  uint8
	Kind  Kind
	Width uint8
}

// Matrix is a float matrix. Width is the element width in bytes.
type Matrix struct {
	Rows    uint8
	Columns uint8
	Width   uint8
}

// Sampler is a sampler or a texture combined with one.
type Sampler struct {
	Comparison bool
}

// Other is every type the namer does not spell.
type Other struct{}

func (Scalar) descriptor()  {}
func (Vector) descriptor()  {}
func (Matrix) descriptor()  {}
func (Sampler) descriptor() {}
func (Other) descriptor()   {}

// TypeName returns the target-style name of a type. It never fails: types
// without a spelling yield "".
func TypeName(desc TypeDescriptor) string {
	switch d := desc.(type) {
	case Scalar:
		return d.Kind.String()
	case Vector:
		return fmt.Sprintf("%s%d", d.Kind, d.Size)
	case Matrix:
		return fmt.Sprintf("matrix_%s%dx%d", matrixElement(d.Width), d.Columns, d.Rows)
	case Sampler:
		return "texture2d<float>"
	case Other:
		return ""
	}
	return ""
}

// matrixElement spells a matrix element by width. Zero means the default
// 32-bit float.
func matrixElement(width uint8) string {
	switch width {
	case 2:
		return "half"
	case 8:
		return "double"
	}
	return "float"
}

// Describe projects a type table entry onto a descriptor. Handles outside
// the table are Other.
//
// Pointers are described by the type they point to, so an out or inout
// argument reads "r: float" in a signature rather than "r: ". A pointer
// whose base is not an earlier entry is Other.
func Describe(module *ir.Module, handle ir.TypeHandle) TypeDescriptor {
	if module == nil || int(handle) >= len(module.Types) {
		return Other{}
	}
	switch t := module.Types[handle].Inner.(type) {
	case ir.ScalarType:
		return Scalar{Kind: kindOf(t.Kind), Width: t.Width}
	case ir.VectorType:
		return Vector{Size: uint8(t.Size), Kind: kindOf(t.Scalar.Kind), Width: t.Scalar.Width}
	case ir.MatrixType:
		return Matrix{Rows: uint8(t.Rows), Columns: uint8(t.Columns), Width: t.Scalar.Width}
	case ir.SamplerType:
		return Sampler{Comparison: t.Comparison}
	case ir.SampledImageType:
		return Sampler{Comparison: t.Comparison()}
	case ir.PointerType:
		if t.Base >= handle {
			return Other{}
		}
		return Describe(module, t.Base)
	case ir.ValuePointerType:
		if t.Size == 0 {
			return Scalar{Kind: kindOf(t.Scalar.Kind), Width: t.Scalar.Width}
		}
		return Vector{Size: uint8(t.Size), Kind: kindOf(t.Scalar.Kind), Width: t.Scalar.Width}
	}
	return Other{}
}

func kindOf(k ir.ScalarKind) Kind {
	switch k {
	case ir.ScalarSint:
		return SignedInt
	case ir.ScalarUint:
		return UnsignedInt
	case ir.ScalarFloat:
		return Float
	}
	return Bool
}
