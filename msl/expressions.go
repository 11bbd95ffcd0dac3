package msl

import (
	"fmt"

	"github.com/gogpu/xshader/ir"
)

// writeExpression writes an expression to the output.
// If the expression is already named (baked into a temporary), just writes the name.
func (w *Writer) writeExpression(handle ir.ExpressionHandle) error {
	if name, ok := w.namedExpressions[handle]; ok {
		w.write("%s", name)
		return nil
	}
	return w.writeExpressionInline(handle)
}

// writeExpressionInline writes an expression inline without looking up names.
func (w *Writer) writeExpressionInline(handle ir.ExpressionHandle) error {
	if w.currentFunction == nil {
		return fmt.Errorf("no current function context")
	}
	if int(handle) >= len(w.currentFunction.Expressions) {
		return fmt.Errorf("invalid expression handle: %d", handle)
	}
	return w.writeExpressionKind(w.currentFunction.Expressions[handle].Kind, handle)
}

// writeExpressionKind writes the expression based on its kind.
//
//nolint:gocyclo,cyclop // Expression dispatch requires handling all expression kinds
func (w *Writer) writeExpressionKind(kind ir.ExpressionKind, handle ir.ExpressionHandle) error {
	switch k := kind.(type) {
	case ir.Literal:
		return w.writeLiteral(k)

	case ir.ExprConstant:
		w.write("%s", w.getName(nameKey{kind: nameKeyConstant, handle1: uint32(k.Constant)}))
		return nil

	case ir.ExprZeroValue:
		w.write("%s {}", w.writeTypeName(k.Type))
		return nil

	case ir.ExprCompose:
		return w.writeComposite(k.Type, len(k.Components), func(i int) error {
			return w.writeExpression(k.Components[i])
		})

	case ir.ExprAccess:
		return w.writeAccess(k.Base, handle, func() error {
			return w.writeExpression(k.Index)
		}, nil)

	case ir.ExprAccessIndex:
		index := k.Index
		return w.writeAccess(k.Base, handle, func() error {
			w.write("%d", index)
			return nil
		}, &index)

	case ir.ExprSplat:
		w.write("%s(", w.writeResolutionTypeName(w.currentFunction.ExpressionTypes[handle]))
		if err := w.writeExpression(k.Value); err != nil {
			return err
		}
		w.write(")")
		return nil

	case ir.ExprSwizzle:
		if err := w.writeExpression(k.Vector); err != nil {
			return err
		}
		w.write(".")
		for i := ir.VectorSize(0); i < k.Size; i++ {
			w.write("%c", "xyzw"[k.Pattern[i]])
		}
		return nil

	case ir.ExprFunctionArgument:
		w.write("%s", w.getName(nameKey{kind: nameKeyFunctionArgument, handle1: uint32(w.currentFuncHandle), handle2: k.Index}))
		return nil

	case ir.ExprGlobalVariable:
		w.write("%s", w.getName(nameKey{kind: nameKeyGlobalVariable, handle1: uint32(k.Variable)}))
		return nil

	case ir.ExprLocalVariable:
		if name, ok := w.localNames[k.Variable]; ok {
			w.write("%s", name)
			return nil
		}
		return fmt.Errorf("unknown local variable %d", k.Variable)

	case ir.ExprLoad:
		return w.writeLoad(k)

	case ir.ExprUnary:
		return w.writeUnary(k)

	case ir.ExprBinary:
		return w.writeBinary(k)

	case ir.ExprSelect:
		return w.writeSelect(k)

	case ir.ExprMath:
		return w.writeMath(k, handle)

	case ir.ExprAs:
		return w.writeAs(k, handle)

	case ir.ExprImageSample:
		return w.writeImageSample(k)

	case ir.ExprImageLoad:
		return w.writeImageLoad(k)

	case ir.ExprImageQuery:
		return w.writeImageQuery(k)

	case ir.ExprDerivative:
		return w.writeDerivative(k)

	case ir.ExprRelational:
		return w.writeRelational(k)

	case ir.ExprCallResult:
		// Named by the call statement that produces it.
		return fmt.Errorf("call result [%d] used before its call", handle)

	case ir.ExprArrayLength:
		return w.writeArrayLength(k)

	default:
		return fmt.Errorf("unsupported expression kind: %T", kind)
	}
}

// shouldBake decides whether an emitted expression gets its own temporary.
// Loads, samples and derivatives are pinned where they are emitted so later
// stores cannot change their value; other values are shared once used twice.
func (w *Writer) shouldBake(handle ir.ExpressionHandle) bool {
	refs := w.currentInfo.Expressions[handle].RefCount
	switch w.getExpressionType(handle).(type) {
	case ir.PointerType, ir.ValuePointerType, ir.ImageType, ir.SamplerType, ir.SampledImageType:
		return false
	}
	switch w.currentFunction.Expressions[handle].Kind.(type) {
	case ir.Literal, ir.ExprConstant, ir.ExprFunctionArgument, ir.ExprGlobalVariable,
		ir.ExprLocalVariable, ir.ExprCallResult:
		return false
	case ir.ExprLoad, ir.ExprImageSample, ir.ExprImageLoad, ir.ExprDerivative:
		return refs >= 1
	}
	return refs >= 2
}

// writeLiteral writes a literal value.
func (w *Writer) writeLiteral(lit ir.Literal) error {
	switch v := lit.Value.(type) {
	case ir.LiteralBool:
		w.write("%t", bool(v))
	case ir.LiteralI32:
		w.write("%s", formatInt(int32(v)))
	case ir.LiteralU32:
		w.write("%du", uint32(v))
	case ir.LiteralI64:
		w.write("%dL", int64(v))
	case ir.LiteralU64:
		w.write("%duL", uint64(v))
	case ir.LiteralF32:
		w.write("%s", formatFloat(float32(v)))
	case ir.LiteralF64:
		return unsupported("64-bit floats")
	default:
		return fmt.Errorf("unsupported literal type: %T", lit.Value)
	}
	return nil
}

// accessTarget returns what an access on base indexes into: the pointee
// for pointers, the value type otherwise. handle is set for table types.
func (w *Writer) accessTarget(base ir.ExpressionHandle) (ir.TypeInner, *ir.TypeHandle) {
	res := w.currentFunction.ExpressionTypes[base]
	inner := res.Inner(w.module)
	switch t := inner.(type) {
	case ir.PointerType:
		h := t.Base
		return w.module.Types[h].Inner, &h
	case ir.ValuePointerType:
		if t.Size == 0 {
			return t.Scalar, nil
		}
		return ir.VectorType{Size: t.Size, Scalar: t.Scalar}, nil
	}
	return inner, res.Handle
}

// writeAccess writes an index into an array, vector, matrix or struct.
// constIndex is set for AccessIndex.
func (w *Writer) writeAccess(base, handle ir.ExpressionHandle, index func() error, constIndex *uint32) error {
	target, targetHandle := w.accessTarget(base)

	if st, ok := target.(ir.StructType); ok && constIndex != nil && targetHandle != nil {
		packed := w.isPackedMember(*targetHandle, *constIndex)
		_, isPointer := w.getExpressionType(handle).(ir.PointerType)
		if packed && !isPointer {
			vec := w.module.Types[st.Members[*constIndex].Type].Inner.(ir.VectorType)
			w.write("%s(", vectorTypeName(vec.Size, vec.Scalar))
		}
		if err := w.writeExpression(base); err != nil {
			return err
		}
		w.write(".%s", w.getName(nameKey{kind: nameKeyStructMember, handle1: uint32(*targetHandle), handle2: *constIndex}))
		if packed && !isPointer {
			w.write(")")
		}
		return nil
	}

	if err := w.writeExpression(base); err != nil {
		return err
	}
	arr, isArray := target.(ir.ArrayType)
	if isArray && arr.Size.Constant != nil {
		w.write(".inner")
	}
	w.write("[")
	if err := index(); err != nil {
		return err
	}
	w.write("]")
	if isArray && w.elemPadding(arr) > 0 {
		w.write(".value")
	}
	return nil
}

// writeLoad writes a pointer load. Pointers are references in the output,
// so a load is the referenced lvalue itself.
func (w *Writer) writeLoad(load ir.ExprLoad) error {
	if ai, ok := w.currentFunction.Expressions[load.Pointer].Kind.(ir.ExprAccessIndex); ok {
		if target, th := w.accessTarget(ai.Base); th != nil {
			if st, ok := target.(ir.StructType); ok && w.isPackedMember(*th, ai.Index) {
				vec := w.module.Types[st.Members[ai.Index].Type].Inner.(ir.VectorType)
				w.write("%s(", vectorTypeName(vec.Size, vec.Scalar))
				if err := w.writeExpression(load.Pointer); err != nil {
					return err
				}
				w.write(")")
				return nil
			}
		}
	}
	return w.writeExpression(load.Pointer)
}

// writeUnary writes a unary operation.
func (w *Writer) writeUnary(unary ir.ExprUnary) error {
	var op string
	switch unary.Op {
	case ir.UnaryNegate:
		op = "-"
	case ir.UnaryLogicalNot:
		op = "!"
	case ir.UnaryBitwiseNot:
		op = "~"
	default:
		return fmt.Errorf("unsupported unary operator: %v", unary.Op)
	}

	w.write("(%s", op)
	if err := w.writeExpression(unary.Expr); err != nil {
		return err
	}
	w.write(")")
	return nil
}

// binaryOperators maps IR operators to C++ tokens.
var binaryOperators = [...]string{
	ir.BinaryAdd:          "+",
	ir.BinarySubtract:     "-",
	ir.BinaryMultiply:     "*",
	ir.BinaryDivide:       "/",
	ir.BinaryModulo:       "%",
	ir.BinaryEqual:        "==",
	ir.BinaryNotEqual:     "!=",
	ir.BinaryLess:         "<",
	ir.BinaryLessEqual:    "<=",
	ir.BinaryGreater:      ">",
	ir.BinaryGreaterEqual: ">=",
	ir.BinaryAnd:          "&",
	ir.BinaryExclusiveOr:  "^",
	ir.BinaryInclusiveOr:  "|",
	ir.BinaryLogicalAnd:   "&&",
	ir.BinaryLogicalOr:    "||",
	ir.BinaryShiftLeft:    "<<",
	ir.BinaryShiftRight:   ">>",
}

// writeBinary writes a binary operation.
func (w *Writer) writeBinary(binary ir.ExprBinary) error {
	if binary.Op == ir.BinaryDivide || binary.Op == ir.BinaryModulo {
		var helper string
		switch {
		case !w.isFloatExpression(binary.Left) && binary.Op == ir.BinaryDivide:
			helper = divHelperName
		case !w.isFloatExpression(binary.Left):
			helper = modHelperName
		case binary.Op == ir.BinaryModulo:
			helper = Namespace + "fmod"
		}
		if helper != "" {
			return w.writeCall(helper, binary.Left, binary.Right)
		}
	}

	if int(binary.Op) >= len(binaryOperators) {
		return fmt.Errorf("unsupported binary operator: %v", binary.Op)
	}
	w.write("(")
	if err := w.writeExpression(binary.Left); err != nil {
		return err
	}
	w.write(" %s ", binaryOperators[binary.Op])
	if err := w.writeExpression(binary.Right); err != nil {
		return err
	}
	w.write(")")
	return nil
}

// writeSelect writes a select. Scalar conditions use the conditional
// operator so any type can be selected; vector conditions select per
// component.
func (w *Writer) writeSelect(sel ir.ExprSelect) error {
	if _, ok := w.getExpressionType(sel.Condition).(ir.VectorType); ok {
		return w.writeCall(Namespace+"select", sel.Reject, sel.Accept, sel.Condition)
	}
	w.write("(")
	if err := w.writeExpression(sel.Condition); err != nil {
		return err
	}
	w.write(" ? ")
	if err := w.writeExpression(sel.Accept); err != nil {
		return err
	}
	w.write(" : ")
	if err := w.writeExpression(sel.Reject); err != nil {
		return err
	}
	w.write(")")
	return nil
}

// writeCall writes name(args...).
func (w *Writer) writeCall(name string, args ...ir.ExpressionHandle) error {
	w.write("%s(", name)
	for i, arg := range args {
		if i > 0 {
			w.write(", ")
		}
		if err := w.writeExpression(arg); err != nil {
			return err
		}
	}
	w.write(")")
	return nil
}

// mathFunctionNames holds the metal:: functions that map one to one.
var mathFunctionNames = map[ir.MathFunction]string{
	ir.MathAbs:                "abs",
	ir.MathMin:                "min",
	ir.MathMax:                "max",
	ir.MathClamp:              "clamp",
	ir.MathSaturate:           "saturate",
	ir.MathCos:                "cos",
	ir.MathCosh:               "cosh",
	ir.MathSin:                "sin",
	ir.MathSinh:               "sinh",
	ir.MathTan:                "tan",
	ir.MathTanh:               "tanh",
	ir.MathAcos:               "acos",
	ir.MathAsin:               "asin",
	ir.MathAtan:               "atan",
	ir.MathAtan2:              "atan2",
	ir.MathAsinh:              "asinh",
	ir.MathAcosh:              "acosh",
	ir.MathAtanh:              "atanh",
	ir.MathCeil:               "ceil",
	ir.MathFloor:              "floor",
	ir.MathRound:              "rint",
	ir.MathFract:              "fract",
	ir.MathTrunc:              "trunc",
	ir.MathExp:                "exp",
	ir.MathExp2:               "exp2",
	ir.MathLog:                "log",
	ir.MathLog2:               "log2",
	ir.MathPow:                "pow",
	ir.MathCross:              "cross",
	ir.MathFaceForward:        "faceforward",
	ir.MathReflect:            "reflect",
	ir.MathRefract:            "refract",
	ir.MathFma:                "fma",
	ir.MathMix:                "mix",
	ir.MathStep:               "step",
	ir.MathSmoothStep:         "smoothstep",
	ir.MathSqrt:               "sqrt",
	ir.MathInverseSqrt:        "rsqrt",
	ir.MathTranspose:          "transpose",
	ir.MathDeterminant:        "determinant",
	ir.MathCountTrailingZeros: "ctz",
	ir.MathCountLeadingZeros:  "clz",
	ir.MathCountOneBits:       "popcount",
	ir.MathReverseBits:        "reverse_bits",
}

// mathFunctionName returns the MSL name for a math function, or "" when
// the function needs a rewrite.
func mathFunctionName(fun ir.MathFunction) string {
	return mathFunctionNames[fun]
}

// writeMath writes a math function call.
//
//nolint:gocognit,gocyclo,cyclop,funlen // Functions without a direct Metal equivalent are expanded here
func (w *Writer) writeMath(m ir.ExprMath, handle ir.ExpressionHandle) error {
	args := []ir.ExpressionHandle{m.Arg}
	for _, extra := range []*ir.ExpressionHandle{m.Arg1, m.Arg2, m.Arg3} {
		if extra != nil {
			args = append(args, *extra)
		}
	}
	argInner := w.getExpressionType(m.Arg)
	_, scalarArg := argInner.(ir.ScalarType)
	resultName := w.writeResolutionTypeName(w.currentFunction.ExpressionTypes[handle])

	switch m.Fun {
	case ir.MathInverse:
		return unsupported("matrix inverse")

	case ir.MathRadians, ir.MathDegrees:
		factor := "0.017453292519943295474"
		if m.Fun == ir.MathDegrees {
			factor = "57.295779513082322865"
		}
		w.write("((")
		if err := w.writeExpression(m.Arg); err != nil {
			return err
		}
		w.write(") * %s)", factor)
		return nil

	case ir.MathLength, ir.MathNormalize, ir.MathDistance:
		if !scalarArg {
			name := map[ir.MathFunction]string{ir.MathLength: "length", ir.MathNormalize: "normalize", ir.MathDistance: "distance"}[m.Fun]
			return w.writeCall(Namespace+name, args...)
		}
		// Metal only defines these on vectors.
		switch m.Fun {
		case ir.MathLength:
			return w.writeCall(Namespace+"abs", m.Arg)
		case ir.MathNormalize:
			return w.writeCall(Namespace+"sign", m.Arg)
		}
		w.write("%sabs(", Namespace)
		if err := w.writeExpression(m.Arg); err != nil {
			return err
		}
		w.write(" - ")
		if err := w.writeExpression(args[1]); err != nil {
			return err
		}
		w.write(")")
		return nil

	case ir.MathDot:
		if !w.isFloatExpression(m.Arg) {
			// metal::dot is float only; expand integer dot products.
			vec, ok := argInner.(ir.VectorType)
			if !ok {
				return fmt.Errorf("dot of non-vector %T", argInner)
			}
			w.write("(")
			for i := ir.VectorSize(0); i < vec.Size; i++ {
				if i > 0 {
					w.write(" + ")
				}
				if err := w.writeExpression(m.Arg); err != nil {
					return err
				}
				w.write(".%c * ", "xyzw"[i])
				if err := w.writeExpression(args[1]); err != nil {
					return err
				}
				w.write(".%c", "xyzw"[i])
			}
			w.write(")")
			return nil
		}
		return w.writeCall(Namespace+"dot", args...)

	case ir.MathOuter:
		right, ok := w.getExpressionType(args[1]).(ir.VectorType)
		if !ok {
			return fmt.Errorf("outer product of non-vector")
		}
		w.write("%s(", resultName)
		for i := ir.VectorSize(0); i < right.Size; i++ {
			if i > 0 {
				w.write(", ")
			}
			if err := w.writeExpression(m.Arg); err != nil {
				return err
			}
			w.write(" * ")
			if err := w.writeExpression(args[1]); err != nil {
				return err
			}
			w.write(".%c", "xyzw"[i])
		}
		w.write(")")
		return nil

	case ir.MathSign:
		if w.isFloatExpression(m.Arg) {
			return w.writeCall(Namespace+"sign", m.Arg)
		}
		w.write("%sselect(%sselect(%s(-1), %s(1), (", Namespace, Namespace, resultName, resultName)
		if err := w.writeExpression(m.Arg); err != nil {
			return err
		}
		w.write(" > 0)), %s(0), (", resultName)
		if err := w.writeExpression(m.Arg); err != nil {
			return err
		}
		w.write(" == 0))")
		return nil

	case ir.MathExtractBits, ir.MathInsertBits:
		name := "extract_bits"
		if m.Fun == ir.MathInsertBits {
			name = "insert_bits"
		}
		w.write("%s%s(", Namespace, name)
		for i, arg := range args {
			if i > 0 {
				w.write(", ")
			}
			// Offset and count are unsigned in Metal.
			offsetArg := len(args) - 2
			if i >= offsetArg {
				w.write("uint(")
			}
			if err := w.writeExpression(arg); err != nil {
				return err
			}
			if i >= offsetArg {
				w.write(")")
			}
		}
		w.write(")")
		return nil

	case ir.MathFirstTrailingBit:
		// ctz yields the bit width for zero; map that to -1.
		w.write("(((%sctz(", Namespace)
		if err := w.writeExpression(m.Arg); err != nil {
			return err
		}
		w.write(") + 1) %% 33) - 1)")
		return nil

	case ir.MathFirstLeadingBit:
		signed := false
		if scalar, ok := ir.ScalarOf(argInner); ok {
			signed = scalar.Kind == ir.ScalarSint
		}
		w.write("%sselect(31 - %sclz(", Namespace, Namespace)
		if signed {
			w.write("%sselect(", Namespace)
			if err := w.writeExpression(m.Arg); err != nil {
				return err
			}
			w.write(", ~")
			if err := w.writeExpression(m.Arg); err != nil {
				return err
			}
			w.write(", ")
			if err := w.writeExpression(m.Arg); err != nil {
				return err
			}
			w.write(" < 0)")
		} else if err := w.writeExpression(m.Arg); err != nil {
			return err
		}
		w.write("), %s(-1), ", resultName)
		if err := w.writeExpression(m.Arg); err != nil {
			return err
		}
		w.write(" == 0")
		if signed {
			w.write(" || ")
			if err := w.writeExpression(m.Arg); err != nil {
				return err
			}
			w.write(" == -1")
		}
		w.write(")")
		return nil
	}

	name := mathFunctionName(m.Fun)
	if name == "" {
		return fmt.Errorf("unsupported math function %d", m.Fun)
	}
	if len(args) != m.Fun.ArgumentCount() {
		return fmt.Errorf("math function %s expects %d arguments, got %d", name, m.Fun.ArgumentCount(), len(args))
	}
	return w.writeCall(Namespace+name, args...)
}

// writeAs writes a conversion or bitcast to the expression's result type.
func (w *Writer) writeAs(as ir.ExprAs, handle ir.ExpressionHandle) error {
	typeName := w.writeResolutionTypeName(w.currentFunction.ExpressionTypes[handle])
	if as.Convert != nil {
		return w.writeCall(typeName, as.Expr)
	}
	w.write("as_type<%s>(", typeName)
	if err := w.writeExpression(as.Expr); err != nil {
		return err
	}
	w.write(")")
	return nil
}

// writeDerivative writes a derivative operation. Metal has no separate
// coarse and fine variants.
func (w *Writer) writeDerivative(deriv ir.ExprDerivative) error {
	var funcName string
	switch deriv.Axis {
	case ir.DerivativeX:
		funcName = "dfdx"
	case ir.DerivativeY:
		funcName = "dfdy"
	case ir.DerivativeWidth:
		funcName = "fwidth"
	default:
		return fmt.Errorf("unsupported derivative axis %d", deriv.Axis)
	}
	return w.writeCall(Namespace+funcName, deriv.Expr)
}

// writeRelational writes a relational function.
func (w *Writer) writeRelational(rel ir.ExprRelational) error {
	var funcName string
	switch rel.Fun {
	case ir.RelationalAll:
		funcName = "all"
	case ir.RelationalAny:
		funcName = "any"
	case ir.RelationalIsNan:
		funcName = "isnan"
	case ir.RelationalIsInf:
		funcName = "isinf"
	default:
		return fmt.Errorf("unsupported relational function %d", rel.Fun)
	}
	return w.writeCall(Namespace+funcName, rel.Argument)
}

// writeArrayLength writes the element count of a runtime-sized array from
// the sizes buffer: (buffer size - array offset) / stride.
func (w *Writer) writeArrayLength(length ir.ExprArrayLength) error {
	if !w.needsSizes[w.currentFuncHandle] {
		return unsupported("runtime array length without a sizes buffer")
	}
	global, ok := rootGlobal(w.currentFunction, length.Array)
	if !ok {
		return fmt.Errorf("array length of an expression that is not rooted at a global")
	}

	var offset uint32
	if ai, ok := w.currentFunction.Expressions[length.Array].Kind.(ir.ExprAccessIndex); ok {
		if st, ok := w.module.Types[w.module.GlobalVariables[global].Type].Inner.(ir.StructType); ok && int(ai.Index) < len(st.Members) {
			offset = st.Members[ai.Index].Offset
		}
	}
	target, _ := w.accessTarget(length.Array)
	arr, ok := target.(ir.ArrayType)
	if !ok || arr.Stride == 0 {
		return fmt.Errorf("array length of a non-array %T", target)
	}
	w.write("((%s.size%d - %d) / %d)", sizesParamName, global, offset, arr.Stride)
	return nil
}

// Helper methods for type information

// getExpressionType returns the type of an expression, or nil.
func (w *Writer) getExpressionType(handle ir.ExpressionHandle) ir.TypeInner {
	if w.currentFunction == nil || int(handle) >= len(w.currentFunction.ExpressionTypes) {
		return nil
	}
	return w.currentFunction.ExpressionTypes[handle].Inner(w.module)
}

// isFloatExpression reports whether an expression has a float component type.
func (w *Writer) isFloatExpression(handle ir.ExpressionHandle) bool {
	scalar, ok := ir.ScalarOf(w.getExpressionType(handle))
	return ok && scalar.Kind == ir.ScalarFloat
}
