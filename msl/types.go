package msl

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gogpu/xshader/ir"
)

// Type name constants
const (
	typeFloat = "float"
	typeInt   = "int"
	typeUint  = "uint"
	typeBool  = "bool"
	typeHalf  = "half"
)

// Namespace is the MSL metal namespace prefix.
const Namespace = "metal::"

// structField is one entry of a struct as written: a member or padding.
type structField struct {
	member int // -1 for padding
	pad    uint32
	packed bool
}

// writeTypes writes all type definitions.
func (w *Writer) writeTypes() {
	for handle, typ := range w.module.Types {
		w.writeTypeDefinition(ir.TypeHandle(handle), &typ) //nolint:gosec // G115: handle is valid slice index
	}
}

// writeTypeDefinition writes a type definition if needed.
func (w *Writer) writeTypeDefinition(handle ir.TypeHandle, typ *ir.Type) {
	switch inner := typ.Inner.(type) {
	case ir.StructType:
		w.writeStructDefinition(handle, inner)
	case ir.ArrayType:
		w.writeArrayWrapper(handle, inner)
	}
}

// elemPadding returns the bytes to add after each element so the Metal
// stride matches the declared one.
func (w *Writer) elemPadding(arr ir.ArrayType) uint32 {
	size, _ := w.typeLayout(arr.Base)
	if arr.Stride > size {
		return arr.Stride - size
	}
	return 0
}

// writeStructDefinition writes a struct type definition, inserting padding
// so members land on their declared offsets.
func (w *Writer) writeStructDefinition(handle ir.TypeHandle, st ir.StructType) {
	layout := w.structLayout(handle, st)
	w.writeLine("struct %s {", w.getTypeName(handle))
	w.pushIndent()

	for i, field := range layout {
		if field.member < 0 {
			w.writeLine("char _pad%d[%d];", i, field.pad)
			continue
		}
		member := st.Members[field.member]
		memberName := w.getName(nameKey{kind: nameKeyStructMember, handle1: uint32(handle), handle2: uint32(field.member)}) //nolint:gosec // G115: member index is small

		if field.packed {
			vec := w.module.Types[member.Type].Inner.(ir.VectorType)
			w.writeLine("%s %s;", packedVectorTypeName(vec.Scalar), memberName)
			continue
		}
		if arr, ok := w.module.Types[member.Type].Inner.(ir.ArrayType); ok && arr.Size.Constant == nil {
			// Runtime-sized arrays are declared with one element and indexed past it.
			elem := w.writeTypeName(arr.Base)
			if pad := w.elemPadding(arr); pad > 0 {
				w.writeLine("struct { %s value; char _pad[%d]; } %s[1];", elem, pad, memberName)
			} else {
				w.writeLine("%s %s[1];", elem, memberName)
			}
			continue
		}
		w.writeLine("%s %s;", w.writeTypeName(member.Type), memberName)
	}

	w.popIndent()
	w.writeLine("};")
	w.writeLine("")
}

// structLayout computes (and caches) the fields of a struct as written.
func (w *Writer) structLayout(handle ir.TypeHandle, st ir.StructType) []structField {
	if layout, ok := w.structLayouts[handle]; ok {
		return layout
	}
	var layout []structField
	var cur uint32
	for i, member := range st.Members {
		if member.Offset > cur {
			layout = append(layout, structField{member: -1, pad: member.Offset - cur})
			cur = member.Offset
		}
		size, _ := w.typeLayout(member.Type)
		packed := false
		if vec, ok := w.module.Types[member.Type].Inner.(ir.VectorType); ok && vec.Size == ir.Vec3 {
			end := st.Span
			if i+1 < len(st.Members) {
				end = st.Members[i+1].Offset
			}
			if end < member.Offset+size {
				packed = true
				size = 3 * uint32(vec.Scalar.Width)
			}
		}
		layout = append(layout, structField{member: i, packed: packed})
		cur += size
	}
	if st.Span > cur {
		layout = append(layout, structField{member: -1, pad: st.Span - cur})
	}
	w.structLayouts[handle] = layout
	return layout
}

// isPackedMember reports whether a struct member is written as a packed vector.
func (w *Writer) isPackedMember(structType ir.TypeHandle, member uint32) bool {
	st, ok := w.module.Types[structType].Inner.(ir.StructType)
	if !ok {
		return false
	}
	for _, field := range w.structLayout(structType, st) {
		if field.member == int(member) {
			return field.packed
		}
	}
	return false
}

// typeLayout returns the Metal size and alignment of a type.
func (w *Writer) typeLayout(handle ir.TypeHandle) (size, align uint32) {
	return w.innerLayout(handle, w.module.Types[handle].Inner)
}

func (w *Writer) innerLayout(handle ir.TypeHandle, inner ir.TypeInner) (size, align uint32) {
	switch t := inner.(type) {
	case ir.ScalarType:
		return uint32(t.Width), uint32(t.Width)
	case ir.VectorType:
		return vectorLayout(t.Size, t.Scalar)
	case ir.MatrixType:
		colSize, colAlign := vectorLayout(t.Rows, t.Scalar)
		return colSize * uint32(t.Columns), colAlign
	case ir.ArrayType:
		elemSize, elemAlign := w.typeLayout(t.Base)
		stride := max(elemSize, t.Stride)
		if t.Size.Constant == nil {
			return 0, elemAlign
		}
		return stride * *t.Size.Constant, elemAlign
	case ir.StructType:
		var end, maxAlign uint32 = 0, 1
		for _, field := range w.structLayout(handle, t) {
			if field.member < 0 {
				end += field.pad
				continue
			}
			member := t.Members[field.member]
			size, align := w.typeLayout(member.Type)
			if field.packed {
				size = size / 4 * 3
				align = size / 3
			}
			end = member.Offset + size
			maxAlign = max(maxAlign, align)
		}
		return end, maxAlign
	}
	return 0, 1
}

func vectorLayout(size ir.VectorSize, scalar ir.ScalarType) (uint32, uint32) {
	width := uint32(scalar.Width)
	if size == ir.Vec3 {
		return 4 * width, 4 * width
	}
	return uint32(size) * width, uint32(size) * width
}

// writeArrayWrapper writes a wrapper struct for fixed-size array types so
// they can be passed and returned by value. When the array stride is larger
// than the element, each element is padded and accessed through ".value".
func (w *Writer) writeArrayWrapper(handle ir.TypeHandle, arr ir.ArrayType) {
	if arr.Size.Constant == nil {
		return
	}

	wrapperName := w.getTypeName(handle)
	elementType := w.writeTypeName(arr.Base)
	pad := w.elemPadding(arr)

	w.writeLine("struct %s {", wrapperName)
	w.pushIndent()
	if pad > 0 {
		w.writeLine("struct { %s value; char _pad[%d]; } inner[%d];", elementType, pad, *arr.Size.Constant)
	} else {
		w.writeLine("%s inner[%d];", elementType, *arr.Size.Constant)
	}
	w.popIndent()
	w.writeLine("};")
	w.writeLine("")
}

// writeTypeName returns the MSL type name for a type handle.
func (w *Writer) writeTypeName(handle ir.TypeHandle) string {
	if int(handle) >= len(w.module.Types) {
		return fmt.Sprintf("invalid_type_%d", handle)
	}
	return w.writeTypeInnerName(handle, w.module.Types[handle].Inner)
}

// writeResolutionTypeName returns the MSL type name of an expression type.
func (w *Writer) writeResolutionTypeName(res ir.TypeResolution) string {
	if res.Handle != nil {
		return w.writeTypeName(*res.Handle)
	}
	return w.writeTypeInnerName(0, res.Value)
}

// writeTypeInnerName returns the MSL name for a TypeInner. handle is only
// consulted for named types.
func (w *Writer) writeTypeInnerName(handle ir.TypeHandle, inner ir.TypeInner) string {
	switch t := inner.(type) {
	case ir.ScalarType:
		return scalarTypeName(t)

	case ir.VectorType:
		return vectorTypeName(t.Size, t.Scalar)

	case ir.MatrixType:
		return matrixTypeName(t)

	case ir.ArrayType:
		if t.Size.Constant == nil {
			return w.writeTypeName(t.Base)
		}
		return w.getTypeName(handle)

	case ir.StructType:
		return w.getTypeName(handle)

	case ir.PointerType:
		return fmt.Sprintf("%s %s&", addressSpaceName(t.Space), w.writeTypeName(t.Base))

	case ir.ValuePointerType:
		var base string
		if t.Size == 0 {
			base = scalarTypeName(t.Scalar)
		} else {
			base = vectorTypeName(t.Size, t.Scalar)
		}
		return fmt.Sprintf("%s %s&", addressSpaceName(t.Space), base)

	case ir.SamplerType:
		return Namespace + "sampler"

	case ir.ImageType:
		return imageTypeName(t)

	case ir.SampledImageType:
		return imageTypeName(t.Image)

	default:
		return fmt.Sprintf("unknown_type_%T", inner)
	}
}

// scalarTypeName returns the MSL name for a scalar type.
func scalarTypeName(s ir.ScalarType) string {
	switch s.Kind {
	case ir.ScalarBool:
		return typeBool

	case ir.ScalarFloat:
		switch s.Width {
		case 2:
			return typeHalf
		case 4:
			return typeFloat
		case 8:
			return "double"
		}

	case ir.ScalarSint:
		switch s.Width {
		case 1:
			return "char"
		case 2:
			return "short"
		case 4:
			return typeInt
		case 8:
			return "long"
		}

	case ir.ScalarUint:
		switch s.Width {
		case 1:
			return "uchar"
		case 2:
			return "ushort"
		case 4:
			return typeUint
		case 8:
			return "ulong"
		}
	}
	return "unknown_scalar"
}

// vectorTypeName returns the MSL name for a vector type.
func vectorTypeName(size ir.VectorSize, scalar ir.ScalarType) string {
	return fmt.Sprintf("%s%s%d", Namespace, scalarTypeName(scalar), size)
}

// matrixTypeName returns the MSL name for a matrix type.
func matrixTypeName(m ir.MatrixType) string {
	return fmt.Sprintf("%s%s%dx%d", Namespace, scalarTypeName(m.Scalar), m.Columns, m.Rows)
}

// packedVectorTypeName returns the MSL packed three-component vector name.
func packedVectorTypeName(scalar ir.ScalarType) string {
	return fmt.Sprintf("%spacked_%s3", Namespace, scalarTypeName(scalar))
}

// addressSpaceName returns the MSL address space name.
func addressSpaceName(space ir.AddressSpace) string {
	switch space {
	case ir.SpaceUniform, ir.SpacePushConstant:
		return "constant"
	case ir.SpaceStorage:
		return "device"
	case ir.SpaceWorkGroup:
		return "threadgroup"
	default:
		return "thread"
	}
}

// imageTypeName returns the MSL texture type name.
//
//nolint:cyclop // Texture type generation requires handling all dimension/class combinations
func imageTypeName(img ir.ImageType) string {
	var builder strings.Builder
	builder.WriteString(Namespace)

	base := "texture"
	if img.Class == ir.ImageClassDepth {
		base = "depth"
	}
	builder.WriteString(base)
	switch img.Dim {
	case ir.Dim1D:
		builder.WriteString("1d")
	case ir.Dim2D:
		builder.WriteString("2d")
	case ir.Dim3D:
		builder.WriteString("3d")
	case ir.DimCube:
		builder.WriteString("cube")
	}
	if img.Multisampled {
		builder.WriteString("_ms")
	}
	if img.Arrayed && img.Dim != ir.Dim3D {
		builder.WriteString("_array")
	}

	kind := img.SampledKind
	if img.Class == ir.ImageClassStorage {
		kind = img.Format.ScalarKind()
	}
	sampleType := typeFloat
	switch {
	case img.Class == ir.ImageClassDepth:
	case kind == ir.ScalarSint:
		sampleType = typeInt
	case kind == ir.ScalarUint:
		sampleType = typeUint
	}

	access := "sample"
	switch {
	case img.Class == ir.ImageClassStorage:
		switch img.Access {
		case ir.StorageLoad:
			access = "read"
		case ir.StorageStore:
			access = "write"
		default:
			access = "read_write"
		}
	case img.Multisampled:
		access = "read"
	}

	return fmt.Sprintf("%s<%s, %saccess::%s>", builder.String(), sampleType, Namespace, access)
}

// writeConstants writes constant definitions.
func (w *Writer) writeConstants() error {
	if len(w.module.Constants) == 0 {
		return nil
	}

	for handle := range w.module.Constants {
		constant := &w.module.Constants[handle]
		name := w.getName(nameKey{kind: nameKeyConstant, handle1: uint32(handle)}) //nolint:gosec // G115: handle is valid slice index
		w.write("constant %s %s = ", w.writeTypeName(constant.Type), name)
		if err := w.writeConstantValue(constant.Value, constant.Type); err != nil {
			return err
		}
		w.write(";\n")
	}
	w.writeLine("")
	return nil
}

// writeConstantValue writes a constant value.
func (w *Writer) writeConstantValue(value ir.ConstantValue, typeHandle ir.TypeHandle) error {
	switch v := value.(type) {
	case ir.ScalarValue:
		return w.writeScalarValue(v, typeHandle)

	case ir.ZeroConstantValue:
		w.write("%s {}", w.writeTypeName(typeHandle))
		return nil

	case ir.CompositeValue:
		return w.writeComposite(typeHandle, len(v.Components), func(i int) error {
			component := &w.module.Constants[v.Components[i]]
			return w.writeConstantValue(component.Value, component.Type)
		})

	default:
		return fmt.Errorf("unsupported constant value type: %T", value)
	}
}

// writeComposite writes a constructor for a vector, matrix, struct or
// array, calling component to write each element.
func (w *Writer) writeComposite(typeHandle ir.TypeHandle, count int, component func(int) error) error {
	typeName := w.writeTypeName(typeHandle)
	switch t := w.module.Types[typeHandle].Inner.(type) {
	case ir.StructType:
		w.write("%s {", typeName)
		first := true
		for _, field := range w.structLayout(typeHandle, t) {
			if !first {
				w.write(", ")
			}
			first = false
			if field.member < 0 {
				w.write("{}")
				continue
			}
			if err := component(field.member); err != nil {
				return err
			}
		}
		w.write("}")
		return nil

	case ir.ArrayType:
		padded := w.elemPadding(t) > 0
		w.write("%s {{", typeName)
		for i := 0; i < count; i++ {
			if i > 0 {
				w.write(", ")
			}
			if padded {
				w.write("{")
			}
			if err := component(i); err != nil {
				return err
			}
			if padded {
				w.write("}")
			}
		}
		w.write("}}")
		return nil
	}

	w.write("%s(", typeName)
	for i := 0; i < count; i++ {
		if i > 0 {
			w.write(", ")
		}
		if err := component(i); err != nil {
			return err
		}
	}
	w.write(")")
	return nil
}

// writeScalarValue writes a scalar constant value.
func (w *Writer) writeScalarValue(v ir.ScalarValue, typeHandle ir.TypeHandle) error {
	switch v.Kind {
	case ir.ScalarBool:
		w.write("%t", v.Bits != 0)

	case ir.ScalarFloat:
		width := uint8(4)
		if scalar, ok := w.module.Types[typeHandle].Inner.(ir.ScalarType); ok {
			width = scalar.Width
		}
		if width == 8 {
			return unsupported("64-bit floats")
		}
		w.write("%s", formatFloat(math.Float32frombits(uint32(v.Bits)))) //nolint:gosec // G115: low bits hold the f32 pattern

	case ir.ScalarSint:
		w.write("%s", formatInt(int32(v.Bits))) //nolint:gosec // G115: low bits hold the i32 pattern

	case ir.ScalarUint:
		w.write("%du", uint32(v.Bits)) //nolint:gosec // G115: low bits hold the u32 pattern

	default:
		return fmt.Errorf("unsupported scalar kind: %v", v.Kind)
	}
	return nil
}

// formatFloat prints f so that it reads back as the same float.
func formatFloat(f float32) string {
	switch {
	case math.IsInf(float64(f), 1):
		return "INFINITY"
	case math.IsInf(float64(f), -1):
		return "-INFINITY"
	case math.IsNaN(float64(f)):
		return "NAN"
	}
	s := strconv.FormatFloat(float64(f), 'g', -1, 32)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}

// formatInt prints a signed literal; the most negative value has no
// literal form in C++.
func formatInt(i int32) string {
	if i == math.MinInt32 {
		return "(-2147483647 - 1)"
	}
	return strconv.FormatInt(int64(i), 10)
}
