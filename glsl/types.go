package glsl

import (
	"fmt"
	"strings"

	"github.com/gogpu/xshader/ir"
)

// builtinTypes maps every GLSL type keyword to its IR shape. Storage images
// carry FormatUnknown; the format comes from the layout qualifier.
var builtinTypes = map[string]ir.TypeInner{
	"float":    ir.ScalarF32,
	"double":   ir.ScalarF64,
	"int":      ir.ScalarI32,
	"uint":     ir.ScalarU32,
	"bool":     ir.ScalarBoolean,
	"int64_t":  ir.ScalarI64,
	"uint64_t": ir.ScalarU64,

	"sampler":       ir.SamplerType{},
	"samplerShadow": ir.SamplerType{Comparison: true},
}

type imageShape struct {
	suffix       string
	dim          ir.ImageDimension
	arrayed      bool
	multisampled bool
}

var imageShapes = []imageShape{
	{"1D", ir.Dim1D, false, false},
	{"1DArray", ir.Dim1D, true, false},
	{"2D", ir.Dim2D, false, false},
	{"2DArray", ir.Dim2D, true, false},
	{"2DMS", ir.Dim2D, false, true},
	{"2DMSArray", ir.Dim2D, true, true},
	{"3D", ir.Dim3D, false, false},
	{"Cube", ir.DimCube, false, false},
	{"CubeArray", ir.DimCube, true, false},
}

func init() {
	vectors := []struct {
		prefix string
		scalar ir.ScalarType
	}{
		{"vec", ir.ScalarF32},
		{"dvec", ir.ScalarF64},
		{"ivec", ir.ScalarI32},
		{"uvec", ir.ScalarU32},
		{"bvec", ir.ScalarBoolean},
		{"i64vec", ir.ScalarI64},
		{"u64vec", ir.ScalarU64},
	}
	for _, v := range vectors {
		for size := ir.Vec2; size <= ir.Vec4; size++ {
			builtinTypes[fmt.Sprintf("%s%d", v.prefix, size)] = ir.VectorType{Size: size, Scalar: v.scalar}
		}
	}

	for _, m := range []struct {
		prefix string
		scalar ir.ScalarType
	}{{"mat", ir.ScalarF32}, {"dmat", ir.ScalarF64}} {
		for cols := ir.Vec2; cols <= ir.Vec4; cols++ {
			builtinTypes[fmt.Sprintf("%s%d", m.prefix, cols)] = ir.MatrixType{Columns: cols, Rows: cols, Scalar: m.scalar}
			for rows := ir.Vec2; rows <= ir.Vec4; rows++ {
				builtinTypes[fmt.Sprintf("%s%dx%d", m.prefix, cols, rows)] = ir.MatrixType{Columns: cols, Rows: rows, Scalar: m.scalar}
			}
		}
	}

	kinds := []struct {
		prefix string
		kind   ir.ScalarKind
	}{{"", ir.ScalarFloat}, {"i", ir.ScalarSint}, {"u", ir.ScalarUint}}
	for _, k := range kinds {
		for _, s := range imageShapes {
			img := ir.ImageType{
				Dim:          s.dim,
				Arrayed:      s.arrayed,
				Multisampled: s.multisampled,
				Class:        ir.ImageClassSampled,
				SampledKind:  k.kind,
			}
			builtinTypes[k.prefix+"sampler"+s.suffix] = ir.SampledImageType{Image: img}
			builtinTypes[k.prefix+"texture"+s.suffix] = img

			if !s.multisampled {
				storage := ir.ImageType{
					Dim:     s.dim,
					Arrayed: s.arrayed,
					Class:   ir.ImageClassStorage,
					Access:  ir.StorageReadWrite,
				}
				builtinTypes[k.prefix+"image"+s.suffix] = storage
			}
		}
	}

	// Shadow samplers compare against a depth reference.
	for _, s := range []imageShape{
		{"1DShadow", ir.Dim1D, false, false},
		{"1DArrayShadow", ir.Dim1D, true, false},
		{"2DShadow", ir.Dim2D, false, false},
		{"2DArrayShadow", ir.Dim2D, true, false},
		{"CubeShadow", ir.DimCube, false, false},
		{"CubeArrayShadow", ir.DimCube, true, false},
	} {
		builtinTypes["sampler"+s.suffix] = ir.SampledImageType{Image: ir.ImageType{
			Dim:     s.dim,
			Arrayed: s.arrayed,
			Class:   ir.ImageClassDepth,
		}}
	}
}

// storageFormats maps layout format qualifiers to storage formats.
var storageFormats = map[string]ir.StorageFormat{
	"r8":             ir.FormatR8Unorm,
	"rg8":            ir.FormatRg8Unorm,
	"rgba8":          ir.FormatRgba8Unorm,
	"rgba8_snorm":    ir.FormatRgba8Snorm,
	"rgba8ui":        ir.FormatRgba8Uint,
	"rgba8i":         ir.FormatRgba8Sint,
	"r16":            ir.FormatR16Unorm,
	"rg16":           ir.FormatRg16Unorm,
	"rgba16":         ir.FormatRgba16Unorm,
	"r16_snorm":      ir.FormatR16Snorm,
	"rg16_snorm":     ir.FormatRg16Snorm,
	"rgba16_snorm":   ir.FormatRgba16Snorm,
	"r16f":           ir.FormatR16Float,
	"rg16f":          ir.FormatRg16Float,
	"rgba16f":        ir.FormatRgba16Float,
	"r32f":           ir.FormatR32Float,
	"rg32f":          ir.FormatRg32Float,
	"rgba32f":        ir.FormatRgba32Float,
	"r32ui":          ir.FormatR32Uint,
	"rg32ui":         ir.FormatRg32Uint,
	"rgba32ui":       ir.FormatRgba32Uint,
	"r32i":           ir.FormatR32Sint,
	"rg32i":          ir.FormatRg32Sint,
	"rgba32i":        ir.FormatRgba32Sint,
	"rgb10_a2":       ir.FormatRgb10a2Unorm,
	"r11f_g11f_b10f": ir.FormatRg11b10Float,
}

// layoutRules selects how struct members are placed.
type layoutRules uint8

const (
	layoutStd430 layoutRules = iota
	layoutStd140
)

func roundUp(value, align uint32) uint32 {
	if align <= 1 {
		return value
	}
	return (value + align - 1) / align * align
}

// alignSize returns the alignment and size of a type under the given rules.
func (l *Lowerer) alignSize(handle ir.TypeHandle, rules layoutRules) (align, size uint32) {
	inner := l.module.Types[handle].Inner
	return l.innerAlignSize(inner, rules)
}

func (l *Lowerer) innerAlignSize(inner ir.TypeInner, rules layoutRules) (align, size uint32) {
	switch t := inner.(type) {
	case ir.ScalarType:
		w := uint32(t.Width)
		if t.Kind == ir.ScalarBool {
			w = 4
		}
		return w, w
	case ir.VectorType:
		w := uint32(t.Scalar.Width)
		if t.Scalar.Kind == ir.ScalarBool {
			w = 4
		}
		n := uint32(t.Size)
		if n == 3 {
			return 4 * w, 3 * w
		}
		return n * w, n * w
	case ir.MatrixType:
		colAlign, _ := l.innerAlignSize(ir.VectorType{Size: t.Rows, Scalar: t.Scalar}, rules)
		if rules == layoutStd140 {
			colAlign = roundUp(colAlign, 16)
		}
		return colAlign, colAlign * uint32(t.Columns)
	case ir.ArrayType:
		elemAlign, _ := l.alignSize(t.Base, rules)
		if rules == layoutStd140 {
			elemAlign = roundUp(elemAlign, 16)
		}
		if t.Size.Constant == nil {
			return elemAlign, t.Stride
		}
		return elemAlign, t.Stride * *t.Size.Constant
	case ir.StructType:
		var maxAlign uint32 = 1
		for _, m := range t.Members {
			a, _ := l.alignSize(m.Type, rules)
			if a > maxAlign {
				maxAlign = a
			}
		}
		if rules == layoutStd140 {
			maxAlign = roundUp(maxAlign, 16)
		}
		return maxAlign, roundUp(t.Span, maxAlign)
	}
	return 1, 0
}

// arrayType registers an array of base with a stride for the given rules.
// A nil size makes a runtime-sized array.
func (l *Lowerer) arrayType(base ir.TypeHandle, size *uint32, rules layoutRules) ir.TypeHandle {
	align, elemSize := l.alignSize(base, rules)
	if rules == layoutStd140 {
		align = roundUp(align, 16)
	}
	stride := roundUp(elemSize, align)
	return l.registerType("", ir.ArrayType{Base: base, Size: ir.ArraySize{Constant: size}, Stride: stride})
}

// structType lays out members in order and registers the struct.
func (l *Lowerer) structType(name string, names []string, types []ir.TypeHandle, rules layoutRules) ir.TypeHandle {
	members := make([]ir.StructMember, len(names))
	var offset, maxAlign uint32 = 0, 1
	for i := range names {
		align, size := l.alignSize(types[i], rules)
		if rules == layoutStd140 {
			switch l.module.Types[types[i]].Inner.(type) {
			case ir.StructType, ir.ArrayType:
				align = roundUp(align, 16)
			}
		}
		offset = roundUp(offset, align)
		members[i] = ir.StructMember{Name: names[i], Type: types[i], Offset: offset}
		offset += size
		if align > maxAlign {
			maxAlign = align
		}
	}
	return l.registerType(name, ir.StructType{Members: members, Span: roundUp(offset, maxAlign)})
}

// registerType adds a type to the registry with deduplication.
func (l *Lowerer) registerType(name string, inner ir.TypeInner) ir.TypeHandle {
	handle := l.registry.GetOrCreate(name, inner)
	// Keep module types in sync so type resolution works during lowering.
	l.module.Types = l.registry.Types()
	return handle
}

// resolveTypeSpec turns a type specifier plus declarator array sizes into a
// type handle. Sizes apply innermost last, so float[2] a[3] is three arrays
// of two floats.
func (l *Lowerer) resolveTypeSpec(spec TypeSpec, declSizes []Expr, rules layoutRules) (ir.TypeHandle, error) {
	var base ir.TypeHandle
	switch {
	case spec.Struct != nil:
		h, err := l.lowerStruct(spec.Struct)
		if err != nil {
			return 0, err
		}
		base = h
	case spec.Name == "void":
		return 0, fmt.Errorf("void is not a value type")
	default:
		if h, ok := l.structs[spec.Name]; ok {
			base = h
			break
		}
		inner, ok := builtinTypes[spec.Name]
		if !ok {
			return 0, fmt.Errorf("unknown type %q", spec.Name)
		}
		base = l.registerType("", inner)
	}
	return l.wrapArrays(base, spec, declSizes, rules)
}

// wrapArrays applies the array sizes of a specifier and declarator to base.
func (l *Lowerer) wrapArrays(base ir.TypeHandle, spec TypeSpec, declSizes []Expr, rules layoutRules) (ir.TypeHandle, error) {
	sizes := make([]Expr, 0, len(spec.ArraySizes)+len(declSizes))
	sizes = append(sizes, declSizes...)
	sizes = append(sizes, spec.ArraySizes...)
	for i := len(sizes) - 1; i >= 0; i-- {
		if sizes[i] == nil {
			base = l.arrayType(base, nil, rules)
			continue
		}
		n, err := l.evalArraySize(sizes[i])
		if err != nil {
			return 0, err
		}
		base = l.arrayType(base, &n, rules)
	}
	return base, nil
}

func (l *Lowerer) evalArraySize(e Expr) (uint32, error) {
	v, err := l.evalInt(e)
	if err != nil {
		return 0, fmt.Errorf("array size: %w", err)
	}
	if v <= 0 || v > 1<<20 {
		return 0, fmt.Errorf("array size %d is out of range", v)
	}
	return uint32(v), nil //nolint:gosec // G115: range checked above
}

func (l *Lowerer) lowerStruct(s *StructDecl) (ir.TypeHandle, error) {
	if s.Name != "" {
		if h, ok := l.structs[s.Name]; ok {
			if l.declaredStructs[s] {
				return h, nil
			}
			return 0, fmt.Errorf("struct %s is already defined", s.Name)
		}
	}
	var names []string
	var types []ir.TypeHandle
	for _, field := range s.Fields {
		for _, d := range field.Names {
			h, err := l.resolveTypeSpec(field.Type, d.ArraySizes, layoutStd430)
			if err != nil {
				return 0, fmt.Errorf("struct %s member %s: %w", s.Name, d.Name, err)
			}
			if isOpaque(l.module.Types[h].Inner) {
				return 0, fmt.Errorf("struct %s member %s: opaque types cannot be struct members", s.Name, d.Name)
			}
			names = append(names, d.Name)
			types = append(types, h)
		}
	}
	h := l.structType(s.Name, names, types, layoutStd430)
	if s.Name != "" {
		l.structs[s.Name] = h
		l.declaredStructs[s] = true
	}
	return h, nil
}

// isOpaque reports whether values of the type are resource handles.
func isOpaque(inner ir.TypeInner) bool {
	switch inner.(type) {
	case ir.ImageType, ir.SampledImageType, ir.SamplerType:
		return true
	}
	return false
}

// typeLabel renders a type for diagnostics.
func (l *Lowerer) typeLabel(inner ir.TypeInner) string {
	switch t := inner.(type) {
	case ir.ScalarType:
		return scalarLabel(t)
	case ir.VectorType:
		var prefix string
		switch t.Scalar {
		case ir.ScalarF32:
		case ir.ScalarI32:
			prefix = "i"
		case ir.ScalarU32:
			prefix = "u"
		case ir.ScalarBoolean:
			prefix = "b"
		case ir.ScalarF64:
			prefix = "d"
		default:
			prefix = strings.TrimSuffix(scalarLabel(t.Scalar), "_t")
		}
		return fmt.Sprintf("%svec%d", prefix, t.Size)
	case ir.MatrixType:
		return fmt.Sprintf("mat%dx%d", t.Columns, t.Rows)
	case ir.ArrayType:
		elem := l.typeLabel(l.module.Types[t.Base].Inner)
		if t.Size.Constant == nil {
			return elem + "[]"
		}
		return fmt.Sprintf("%s[%d]", elem, *t.Size.Constant)
	case ir.StructType:
		for _, typ := range l.module.Types {
			if st, ok := typ.Inner.(ir.StructType); ok && typ.Name != "" && len(st.Members) == len(t.Members) &&
				(len(st.Members) == 0 || st.Members[0] == t.Members[0]) {
				return typ.Name
			}
		}
		return "struct"
	case ir.PointerType:
		return l.typeLabel(l.module.Types[t.Base].Inner)
	case ir.SampledImageType:
		return "sampler"
	case ir.ImageType:
		return "texture"
	case ir.SamplerType:
		return "sampler"
	}
	return fmt.Sprintf("%T", inner)
}

func scalarLabel(s ir.ScalarType) string {
	switch {
	case s.Kind == ir.ScalarFloat && s.Width == 8:
		return "double"
	case s.Kind == ir.ScalarFloat:
		return "float"
	case s.Kind == ir.ScalarSint && s.Width == 8:
		return "int64_t"
	case s.Kind == ir.ScalarSint:
		return "int"
	case s.Kind == ir.ScalarUint && s.Width == 8:
		return "uint64_t"
	case s.Kind == ir.ScalarUint:
		return "uint"
	default:
		return "bool"
	}
}
