package ir

import "fmt"

// ResolveExpressionType computes the type of one expression of fn. Operand
// types are taken from fn.ExpressionTypes when already present, so a
// frontend filling the table in arena order resolves each expression in
// constant time.
//
//nolint:gocyclo,cyclop,funlen // one case per expression kind
func ResolveExpressionType(module *Module, fn *Function, handle ExpressionHandle) (TypeResolution, error) {
	if int(handle) >= len(fn.Expressions) {
		return TypeResolution{}, fmt.Errorf("expression [%d] out of range (%d expressions)", handle, len(fn.Expressions))
	}

	switch e := fn.Expressions[handle].Kind.(type) {
	case Literal:
		return TypeResInner(LiteralScalar(e.Value)), nil

	case ExprConstant:
		if int(e.Constant) >= len(module.Constants) {
			return TypeResolution{}, fmt.Errorf("constant [%d] out of range", e.Constant)
		}
		return TypeResHandle(module.Constants[e.Constant].Type), nil

	case ExprZeroValue:
		return TypeResHandle(e.Type), nil

	case ExprCompose:
		return TypeResHandle(e.Type), nil

	case ExprAccess:
		return resolveIndexed(module, fn, e.Base, nil)

	case ExprAccessIndex:
		index := e.Index
		return resolveIndexed(module, fn, e.Base, &index)

	case ExprSplat:
		scalar, err := operandScalar(module, fn, e.Value)
		if err != nil {
			return TypeResolution{}, err
		}
		return TypeResInner(VectorType{Size: e.Size, Scalar: scalar}), nil

	case ExprSwizzle:
		scalar, err := operandScalar(module, fn, e.Vector)
		if err != nil {
			return TypeResolution{}, err
		}
		return TypeResInner(VectorType{Size: e.Size, Scalar: scalar}), nil

	case ExprFunctionArgument:
		if int(e.Index) >= len(fn.Arguments) {
			return TypeResolution{}, fmt.Errorf("argument %d out of range", e.Index)
		}
		return TypeResHandle(fn.Arguments[e.Index].Type), nil

	case ExprGlobalVariable:
		if int(e.Variable) >= len(module.GlobalVariables) {
			return TypeResolution{}, fmt.Errorf("global variable [%d] out of range", e.Variable)
		}
		gv := &module.GlobalVariables[e.Variable]
		if gv.Space == SpaceHandle {
			return TypeResHandle(gv.Type), nil
		}
		return TypeResInner(PointerType{Base: gv.Type, Space: gv.Space}), nil

	case ExprLocalVariable:
		if int(e.Variable) >= len(fn.LocalVars) {
			return TypeResolution{}, fmt.Errorf("local variable %d out of range", e.Variable)
		}
		return TypeResInner(PointerType{Base: fn.LocalVars[e.Variable].Type, Space: SpaceFunction}), nil

	case ExprLoad:
		inner, err := operandInner(module, fn, e.Pointer)
		if err != nil {
			return TypeResolution{}, err
		}
		switch p := inner.(type) {
		case PointerType:
			return TypeResHandle(p.Base), nil
		case ValuePointerType:
			if p.Size == 0 {
				return TypeResInner(p.Scalar), nil
			}
			return TypeResInner(VectorType{Size: p.Size, Scalar: p.Scalar}), nil
		}
		return TypeResolution{}, fmt.Errorf("load through non-pointer %T", inner)

	case ExprImageSample:
		img, err := operandImage(module, fn, e.Image)
		if err != nil {
			return TypeResolution{}, err
		}
		if img.Class == ImageClassDepth && e.Gather == nil {
			return TypeResInner(ScalarF32), nil
		}
		return TypeResInner(VectorType{Size: Vec4, Scalar: ScalarType{Kind: sampledKind(img), Width: 4}}), nil

	case ExprImageLoad:
		img, err := operandImage(module, fn, e.Image)
		if err != nil {
			return TypeResolution{}, err
		}
		if img.Class == ImageClassDepth {
			return TypeResInner(ScalarF32), nil
		}
		return TypeResInner(VectorType{Size: Vec4, Scalar: ScalarType{Kind: sampledKind(img), Width: 4}}), nil

	case ExprImageQuery:
		if _, ok := e.Query.(ImageQuerySize); !ok {
			return TypeResInner(ScalarU32), nil
		}
		img, err := operandImage(module, fn, e.Image)
		if err != nil {
			return TypeResolution{}, err
		}
		switch img.Dim {
		case Dim1D:
			return TypeResInner(ScalarU32), nil
		case Dim3D:
			return TypeResInner(VectorType{Size: Vec3, Scalar: ScalarU32}), nil
		default:
			return TypeResInner(VectorType{Size: Vec2, Scalar: ScalarU32}), nil
		}

	case ExprUnary:
		return operandResolution(module, fn, e.Expr)

	case ExprBinary:
		return resolveBinary(module, fn, e)

	case ExprSelect:
		return operandResolution(module, fn, e.Accept)

	case ExprDerivative:
		return operandResolution(module, fn, e.Expr)

	case ExprRelational:
		inner, err := operandInner(module, fn, e.Argument)
		if err != nil {
			return TypeResolution{}, err
		}
		switch e.Fun {
		case RelationalAll, RelationalAny:
			return TypeResInner(ScalarBoolean), nil
		default:
			if v, ok := inner.(VectorType); ok {
				return TypeResInner(VectorType{Size: v.Size, Scalar: ScalarBoolean}), nil
			}
			return TypeResInner(ScalarBoolean), nil
		}

	case ExprMath:
		return resolveMath(module, fn, e)

	case ExprAs:
		inner, err := operandInner(module, fn, e.Expr)
		if err != nil {
			return TypeResolution{}, err
		}
		return resolveAs(inner, e)

	case ExprCallResult:
		if int(e.Function) >= len(module.Functions) {
			return TypeResolution{}, fmt.Errorf("function [%d] out of range", e.Function)
		}
		result := module.Functions[e.Function].Result
		if result == nil {
			return TypeResolution{}, fmt.Errorf("function [%d] has no result", e.Function)
		}
		return TypeResHandle(result.Type), nil

	case ExprArrayLength:
		return TypeResInner(ScalarU32), nil

	default:
		return TypeResolution{}, fmt.Errorf("cannot resolve %T", e)
	}
}

func sampledKind(img ImageType) ScalarKind {
	switch img.Class {
	case ImageClassStorage:
		return img.Format.ScalarKind()
	case ImageClassDepth:
		return ScalarFloat
	default:
		return img.SampledKind
	}
}

func operandResolution(module *Module, fn *Function, h ExpressionHandle) (TypeResolution, error) {
	if int(h) < len(fn.ExpressionTypes) {
		return fn.ExpressionTypes[h], nil
	}
	return ResolveExpressionType(module, fn, h)
}

func operandInner(module *Module, fn *Function, h ExpressionHandle) (TypeInner, error) {
	res, err := operandResolution(module, fn, h)
	if err != nil {
		return nil, err
	}
	inner := res.Inner(module)
	if inner == nil {
		return nil, fmt.Errorf("expression [%d] has a dangling type", h)
	}
	return inner, nil
}

func operandScalar(module *Module, fn *Function, h ExpressionHandle) (ScalarType, error) {
	inner, err := operandInner(module, fn, h)
	if err != nil {
		return ScalarType{}, err
	}
	if s, ok := ScalarOf(inner); ok {
		return s, nil
	}
	return ScalarType{}, fmt.Errorf("expression [%d] is not numeric: %T", h, inner)
}

func operandImage(module *Module, fn *Function, h ExpressionHandle) (ImageType, error) {
	inner, err := operandInner(module, fn, h)
	if err != nil {
		return ImageType{}, err
	}
	switch t := inner.(type) {
	case ImageType:
		return t, nil
	case SampledImageType:
		return t.Image, nil
	}
	return ImageType{}, fmt.Errorf("expression [%d] is not an image: %T", h, inner)
}

// ScalarOf returns the scalar component type of a scalar, vector or matrix.
func ScalarOf(inner TypeInner) (ScalarType, bool) {
	switch t := inner.(type) {
	case ScalarType:
		return t, true
	case VectorType:
		return t.Scalar, true
	case MatrixType:
		return t.Scalar, true
	}
	return ScalarType{}, false
}

// resolveIndexed handles Access and AccessIndex. index is nil for dynamic
// indices, which cannot select struct members.
func resolveIndexed(module *Module, fn *Function, base ExpressionHandle, index *uint32) (TypeResolution, error) {
	inner, err := operandInner(module, fn, base)
	if err != nil {
		return TypeResolution{}, err
	}

	switch t := inner.(type) {
	case PointerType:
		if int(t.Base) >= len(module.Types) {
			return TypeResolution{}, fmt.Errorf("pointer to dangling type [%d]", t.Base)
		}
		switch pointee := module.Types[t.Base].Inner.(type) {
		case ArrayType:
			return TypeResInner(PointerType{Base: pointee.Base, Space: t.Space}), nil
		case VectorType:
			return TypeResInner(ValuePointerType{Scalar: pointee.Scalar, Space: t.Space}), nil
		case MatrixType:
			return TypeResInner(ValuePointerType{Size: pointee.Rows, Scalar: pointee.Scalar, Space: t.Space}), nil
		case StructType:
			if index == nil || int(*index) >= len(pointee.Members) {
				return TypeResolution{}, fmt.Errorf("invalid struct member access")
			}
			return TypeResInner(PointerType{Base: pointee.Members[*index].Type, Space: t.Space}), nil
		default:
			return TypeResolution{}, fmt.Errorf("cannot index pointer to %T", pointee)
		}

	case ValuePointerType:
		if t.Size == 0 {
			return TypeResolution{}, fmt.Errorf("cannot index a scalar pointer")
		}
		return TypeResInner(ValuePointerType{Scalar: t.Scalar, Space: t.Space}), nil

	case ArrayType:
		return TypeResHandle(t.Base), nil

	case VectorType:
		return TypeResInner(t.Scalar), nil

	case MatrixType:
		return TypeResInner(VectorType{Size: t.Rows, Scalar: t.Scalar}), nil

	case StructType:
		if index == nil || int(*index) >= len(t.Members) {
			return TypeResolution{}, fmt.Errorf("invalid struct member access")
		}
		return TypeResHandle(t.Members[*index].Type), nil
	}
	return TypeResolution{}, fmt.Errorf("cannot index %T", inner)
}

func resolveBinary(module *Module, fn *Function, e ExprBinary) (TypeResolution, error) {
	leftRes, err := operandResolution(module, fn, e.Left)
	if err != nil {
		return TypeResolution{}, err
	}
	left := leftRes.Inner(module)
	right, err := operandInner(module, fn, e.Right)
	if err != nil {
		return TypeResolution{}, err
	}

	if e.Op.IsComparison() {
		size := vectorSizeOf(left)
		if size == 0 {
			size = vectorSizeOf(right)
		}
		if size == 0 {
			return TypeResInner(ScalarBoolean), nil
		}
		return TypeResInner(VectorType{Size: size, Scalar: ScalarBoolean}), nil
	}

	switch e.Op {
	case BinaryLogicalAnd, BinaryLogicalOr:
		return TypeResInner(ScalarBoolean), nil
	case BinaryShiftLeft, BinaryShiftRight:
		return leftRes, nil
	case BinaryMultiply:
		lm, lIsMat := left.(MatrixType)
		rm, rIsMat := right.(MatrixType)
		switch {
		case lIsMat && rIsMat:
			return TypeResInner(MatrixType{Columns: rm.Columns, Rows: lm.Rows, Scalar: lm.Scalar}), nil
		case lIsMat:
			if _, ok := right.(VectorType); ok {
				return TypeResInner(VectorType{Size: lm.Rows, Scalar: lm.Scalar}), nil
			}
			return leftRes, nil
		case rIsMat:
			if _, ok := left.(VectorType); ok {
				return TypeResInner(VectorType{Size: rm.Columns, Scalar: rm.Scalar}), nil
			}
			return TypeResInner(rm), nil
		}
	}

	if _, ok := left.(ScalarType); ok {
		if _, wide := right.(VectorType); wide {
			return TypeResInner(right), nil
		}
	}
	return leftRes, nil
}

func vectorSizeOf(inner TypeInner) VectorSize {
	if v, ok := inner.(VectorType); ok {
		return v.Size
	}
	return 0
}

//nolint:cyclop // grouped by result shape
func resolveMath(module *Module, fn *Function, e ExprMath) (TypeResolution, error) {
	argRes, err := operandResolution(module, fn, e.Arg)
	if err != nil {
		return TypeResolution{}, err
	}
	arg := argRes.Inner(module)

	switch e.Fun {
	case MathDot, MathLength, MathDistance, MathDeterminant:
		s, ok := ScalarOf(arg)
		if !ok {
			return TypeResolution{}, fmt.Errorf("math function %d needs a numeric argument", e.Fun)
		}
		return TypeResInner(s), nil
	case MathOuter:
		if e.Arg1 == nil {
			return TypeResolution{}, fmt.Errorf("outer product needs two arguments")
		}
		right, err := operandInner(module, fn, *e.Arg1)
		if err != nil {
			return TypeResolution{}, err
		}
		lv, lok := arg.(VectorType)
		rv, rok := right.(VectorType)
		if !lok || !rok {
			return TypeResolution{}, fmt.Errorf("outer product needs vectors")
		}
		return TypeResInner(MatrixType{Columns: rv.Size, Rows: lv.Size, Scalar: lv.Scalar}), nil
	case MathTranspose:
		m, ok := arg.(MatrixType)
		if !ok {
			return TypeResolution{}, fmt.Errorf("transpose needs a matrix")
		}
		return TypeResInner(MatrixType{Columns: m.Rows, Rows: m.Columns, Scalar: m.Scalar}), nil
	case MathCountTrailingZeros, MathCountLeadingZeros, MathCountOneBits,
		MathFirstTrailingBit, MathFirstLeadingBit:
		if v, ok := arg.(VectorType); ok {
			return TypeResInner(VectorType{Size: v.Size, Scalar: ScalarI32}), nil
		}
		return TypeResInner(ScalarI32), nil
	case MathMix, MathSmoothStep, MathStep:
		// step(edge, x) and smoothstep(e0, e1, x) take their shape from x.
		last := e.Arg1
		if e.Fun == MathSmoothStep {
			last = e.Arg2
		}
		if e.Fun != MathMix && last != nil {
			return operandResolution(module, fn, *last)
		}
	}
	if _, ok := arg.(ScalarType); ok && e.Arg1 != nil {
		// min/max/clamp/mix accept a scalar first operand only when the
		// others are scalars too, so the first wide operand wins.
		for _, other := range []*ExpressionHandle{e.Arg1, e.Arg2} {
			if other == nil {
				continue
			}
			inner, err := operandInner(module, fn, *other)
			if err != nil {
				return TypeResolution{}, err
			}
			if _, wide := inner.(VectorType); wide {
				return TypeResInner(inner), nil
			}
		}
	}
	return argRes, nil
}

func resolveAs(inner TypeInner, e ExprAs) (TypeResolution, error) {
	width := func(old ScalarType) uint8 {
		switch {
		case e.Convert != nil:
			return *e.Convert
		case e.Kind == ScalarBool:
			return 1
		default:
			return old.Width
		}
	}
	switch t := inner.(type) {
	case ScalarType:
		return TypeResInner(ScalarType{Kind: e.Kind, Width: width(t)}), nil
	case VectorType:
		return TypeResInner(VectorType{Size: t.Size, Scalar: ScalarType{Kind: e.Kind, Width: width(t.Scalar)}}), nil
	case MatrixType:
		return TypeResInner(MatrixType{Columns: t.Columns, Rows: t.Rows, Scalar: ScalarType{Kind: e.Kind, Width: width(t.Scalar)}}), nil
	}
	return TypeResolution{}, fmt.Errorf("cannot convert %T", inner)
}
