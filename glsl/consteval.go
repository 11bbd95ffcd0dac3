package glsl

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gogpu/xshader/ir"
)

// constValue is a value known at compile time. Scalars use the field that
// matches their kind; composites hold components in order.
type constValue struct {
	typ        ir.TypeHandle
	scalar     ir.ScalarType
	f          float64
	i          int64
	u          uint64
	b          bool
	components []constValue
}

var errNotConstant = errors.New("expression is not constant")

func (c constValue) isScalar() bool {
	return c.components == nil
}

func (c constValue) asFloat() float64 {
	switch c.scalar.Kind {
	case ir.ScalarFloat:
		return c.f
	case ir.ScalarSint:
		return float64(c.i)
	case ir.ScalarUint:
		return float64(c.u)
	}
	if c.b {
		return 1
	}
	return 0
}

func (c constValue) asInt() int64 {
	switch c.scalar.Kind {
	case ir.ScalarFloat:
		return int64(c.f)
	case ir.ScalarSint:
		return c.i
	case ir.ScalarUint:
		return int64(c.u) //nolint:gosec // G115: GLSL conversion wraps
	}
	if c.b {
		return 1
	}
	return 0
}

func (c constValue) asBool() bool {
	switch c.scalar.Kind {
	case ir.ScalarFloat:
		return c.f != 0
	case ir.ScalarSint:
		return c.i != 0
	case ir.ScalarUint:
		return c.u != 0
	}
	return c.b
}

// convert casts a scalar to another scalar type.
func (c constValue) convert(to ir.ScalarType) constValue {
	out := constValue{scalar: to}
	switch to.Kind {
	case ir.ScalarFloat:
		out.f = c.asFloat()
		if to.Width == 4 {
			out.f = float64(float32(out.f))
		}
	case ir.ScalarSint:
		out.i = c.asInt()
		if to.Width == 4 {
			out.i = int64(int32(out.i)) //nolint:gosec // G115: GLSL conversion wraps
		}
	case ir.ScalarUint:
		out.u = uint64(c.asInt()) //nolint:gosec // G115: GLSL conversion wraps
		if to.Width == 4 {
			out.u = uint64(uint32(out.u)) //nolint:gosec // G115: GLSL conversion wraps
		}
	case ir.ScalarBool:
		out.b = c.asBool()
	}
	return out
}

func (c constValue) bits() uint64 {
	switch c.scalar.Kind {
	case ir.ScalarFloat:
		if c.scalar.Width == 4 {
			return uint64(math.Float32bits(float32(c.f)))
		}
		return math.Float64bits(c.f)
	case ir.ScalarSint:
		return uint64(c.i) //nolint:gosec // G115: two's complement bit pattern
	case ir.ScalarUint:
		return c.u
	}
	if c.b {
		return 1
	}
	return 0
}

// evalInt evaluates an integer constant expression, as used by array
// sizes, layout values and case labels.
func (l *Lowerer) evalInt(e Expr) (int64, error) {
	v, err := l.evalConst(e)
	if err != nil {
		return 0, err
	}
	if !v.isScalar() || (v.scalar.Kind != ir.ScalarSint && v.scalar.Kind != ir.ScalarUint) {
		return 0, fmt.Errorf("expected an integer constant")
	}
	return v.asInt(), nil
}

func parseIntLiteral(text string) (constValue, error) {
	unsigned := strings.HasSuffix(text, "u") || strings.HasSuffix(text, "U")
	digits := strings.TrimRight(text, "uU")
	base := 10
	switch {
	case strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X"):
		base = 16
		digits = digits[2:]
	case len(digits) > 1 && digits[0] == '0':
		base = 8
		digits = digits[1:]
	}
	v, err := strconv.ParseUint(digits, base, 32)
	if err != nil {
		return constValue{}, fmt.Errorf("invalid integer literal %q", text)
	}
	if unsigned {
		return constValue{scalar: ir.ScalarU32, u: v}, nil
	}
	// Literals above INT_MAX wrap, as 0xFFFFFFFF does in GLSL.
	return constValue{scalar: ir.ScalarI32, i: int64(int32(uint32(v)))}, nil //nolint:gosec // G115: GLSL literal wraps
}

func parseFloatLiteral(text string) (constValue, error) {
	double := strings.HasSuffix(text, "lf") || strings.HasSuffix(text, "LF")
	digits := strings.TrimRight(text, "fFlL")
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return constValue{}, fmt.Errorf("invalid float literal %q", text)
	}
	if double {
		return constValue{scalar: ir.ScalarF64, f: v}, nil
	}
	return constValue{scalar: ir.ScalarF32, f: float64(float32(v))}, nil
}

// evalConst folds an expression to a constant value. It fails with
// errNotConstant for expressions that need runtime evaluation.
//
//nolint:gocyclo,cyclop // one case per foldable expression
func (l *Lowerer) evalConst(e Expr) (constValue, error) {
	switch e := e.(type) {
	case *IntLit:
		return parseIntLiteral(e.Text)
	case *FloatLit:
		return parseFloatLiteral(e.Text)
	case *BoolLit:
		return constValue{scalar: ir.ScalarBoolean, b: e.Value}, nil
	case *Ident:
		if l.fn != nil {
			if sym, ok := l.fn.lookup(e.Name); ok {
				if sym.constant != nil {
					return *sym.constant, nil
				}
				return constValue{}, errNotConstant
			}
		}
		if v, ok := l.constValues[e.Name]; ok {
			return v, nil
		}
		return constValue{}, errNotConstant
	case *UnaryExpr:
		v, err := l.evalConst(e.Operand)
		if err != nil {
			return constValue{}, err
		}
		return mapConst(v, func(s constValue) (constValue, error) { return foldUnary(e.Op, s) })
	case *BinaryExpr:
		left, err := l.evalConst(e.Left)
		if err != nil {
			return constValue{}, err
		}
		right, err := l.evalConst(e.Right)
		if err != nil {
			return constValue{}, err
		}
		return foldBinary(e.Op, left, right)
	case *TernaryExpr:
		cond, err := l.evalConst(e.Cond)
		if err != nil {
			return constValue{}, err
		}
		if !cond.isScalar() {
			return constValue{}, errNotConstant
		}
		if cond.asBool() {
			return l.evalConst(e.Then)
		}
		return l.evalConst(e.Else)
	case *CallExpr:
		return l.evalConstructor(e)
	case *MemberExpr:
		base, err := l.evalConst(e.Base)
		if err != nil {
			return constValue{}, err
		}
		if base.isScalar() || len(base.components) > 4 {
			return constValue{}, errNotConstant
		}
		indices, ok := swizzleIndices(e.Name, len(base.components))
		if !ok {
			return constValue{}, errNotConstant
		}
		if len(indices) == 1 {
			return base.components[indices[0]], nil
		}
		out := constValue{components: make([]constValue, len(indices))}
		for i, idx := range indices {
			out.components[i] = base.components[idx]
		}
		out.typ = l.registerType("", ir.VectorType{Size: ir.VectorSize(len(indices)), Scalar: base.components[0].scalar}) //nolint:gosec // G115: at most 4
		return out, nil
	case *IndexExpr:
		base, err := l.evalConst(e.Base)
		if err != nil {
			return constValue{}, err
		}
		idx, err := l.evalInt(e.Index)
		if err != nil {
			return constValue{}, err
		}
		if base.isScalar() || idx < 0 || int(idx) >= len(base.components) {
			return constValue{}, errNotConstant
		}
		return base.components[idx], nil
	}
	return constValue{}, errNotConstant
}

func mapConst(v constValue, f func(constValue) (constValue, error)) (constValue, error) {
	if v.isScalar() {
		return f(v)
	}
	out := constValue{typ: v.typ, components: make([]constValue, len(v.components))}
	for i, c := range v.components {
		r, err := mapConst(c, f)
		if err != nil {
			return constValue{}, err
		}
		out.components[i] = r
	}
	return out, nil
}

func foldUnary(op TokenKind, v constValue) (constValue, error) {
	switch op {
	case TokenMinus:
		switch v.scalar.Kind {
		case ir.ScalarFloat:
			v.f = -v.f
		case ir.ScalarSint:
			v.i = -v.i
		case ir.ScalarUint:
			v.u = uint64(uint32(-v.u)) //nolint:gosec // G115: wraps like GLSL
		default:
			return constValue{}, errors.New("cannot negate a bool")
		}
	case TokenBang:
		if v.scalar.Kind != ir.ScalarBool {
			return constValue{}, errors.New("'!' needs a bool operand")
		}
		v.b = !v.b
	case TokenTilde:
		switch v.scalar.Kind {
		case ir.ScalarSint:
			v.i = ^v.i
		case ir.ScalarUint:
			v.u = uint64(^uint32(v.u)) //nolint:gosec // G115: 32-bit complement
		default:
			return constValue{}, errors.New("'~' needs an integer operand")
		}
	}
	return v, nil
}

// promote returns the common scalar type of two operands, applying the
// implicit int to float conversion.
func promote(a, b ir.ScalarType) ir.ScalarType {
	if a == b {
		return a
	}
	switch {
	case a.Kind == ir.ScalarFloat && b.Kind == ir.ScalarFloat:
		if a.Width > b.Width {
			return a
		}
		return b
	case a.Kind == ir.ScalarFloat:
		return a
	case b.Kind == ir.ScalarFloat:
		return b
	case a.Kind == ir.ScalarUint || b.Kind == ir.ScalarUint:
		return ir.ScalarU32
	}
	return a
}

func foldBinary(op TokenKind, left, right constValue) (constValue, error) {
	if !left.isScalar() || !right.isScalar() {
		return foldComposite(op, left, right)
	}
	if op == TokenLessLess || op == TokenGreaterGreater {
		shift := right.asInt() & 63
		switch left.scalar.Kind {
		case ir.ScalarSint:
			if op == TokenLessLess {
				left.i = int64(int32(left.i << shift)) //nolint:gosec // G115: 32-bit wrap
			} else {
				left.i >>= shift
			}
		case ir.ScalarUint:
			if op == TokenLessLess {
				left.u = uint64(uint32(left.u << shift)) //nolint:gosec // G115: 32-bit wrap
			} else {
				left.u >>= shift
			}
		default:
			return constValue{}, errors.New("shift needs integer operands")
		}
		return left, nil
	}

	common := promote(left.scalar, right.scalar)
	a, b := left.convert(common), right.convert(common)
	truth := func(v bool) (constValue, error) { return constValue{scalar: ir.ScalarBoolean, b: v}, nil }

	switch op {
	case TokenEqualEqual:
		return truth(a.bits() == b.bits())
	case TokenBangEqual:
		return truth(a.bits() != b.bits())
	case TokenLess:
		return truth(a.asFloat() < b.asFloat())
	case TokenLessEqual:
		return truth(a.asFloat() <= b.asFloat())
	case TokenGreater:
		return truth(a.asFloat() > b.asFloat())
	case TokenGreaterEqual:
		return truth(a.asFloat() >= b.asFloat())
	case TokenAmpAmp:
		return truth(a.asBool() && b.asBool())
	case TokenPipePipe:
		return truth(a.asBool() || b.asBool())
	case TokenCaretCaret:
		return truth(a.asBool() != b.asBool())
	}

	out := constValue{scalar: common}
	switch common.Kind {
	case ir.ScalarFloat:
		switch op {
		case TokenPlus:
			out.f = a.f + b.f
		case TokenMinus:
			out.f = a.f - b.f
		case TokenStar:
			out.f = a.f * b.f
		case TokenSlash:
			out.f = a.f / b.f
		default:
			return constValue{}, fmt.Errorf("operator %s needs integer operands", op)
		}
		return out.convert(common), nil
	case ir.ScalarSint, ir.ScalarUint:
		x, y := a.asInt(), b.asInt()
		if common.Kind == ir.ScalarUint {
			x, y = int64(a.u), int64(b.u) //nolint:gosec // G115: 32-bit values
		}
		var r int64
		switch op {
		case TokenPlus:
			r = x + y
		case TokenMinus:
			r = x - y
		case TokenStar:
			r = x * y
		case TokenSlash, TokenPercent:
			if y == 0 {
				return constValue{}, errors.New("division by zero in constant expression")
			}
			if op == TokenSlash {
				r = x / y
			} else {
				r = x % y
			}
		case TokenAmpersand:
			r = x & y
		case TokenPipe:
			r = x | y
		case TokenCaret:
			r = x ^ y
		default:
			return constValue{}, fmt.Errorf("operator %s is not valid on integers", op)
		}
		return constValue{scalar: ir.ScalarI64, i: r}.convert(common), nil
	}
	return constValue{}, fmt.Errorf("operator %s is not valid on bools", op)
}

// foldComposite applies an operator component-wise, broadcasting a scalar
// operand over a vector.
func foldComposite(op TokenKind, left, right constValue) (constValue, error) {
	switch op {
	case TokenEqualEqual, TokenBangEqual, TokenAmpAmp, TokenPipePipe, TokenCaretCaret:
		return constValue{}, errNotConstant
	}
	n := len(left.components)
	typ := left.typ
	if left.isScalar() {
		n = len(right.components)
		typ = right.typ
	} else if !right.isScalar() && len(right.components) != n {
		return constValue{}, errors.New("operand sizes do not match")
	}
	out := constValue{typ: typ, components: make([]constValue, n)}
	for i := range out.components {
		a, b := left, right
		if !a.isScalar() {
			a = a.components[i]
		}
		if !b.isScalar() {
			b = b.components[i]
		}
		r, err := foldBinary(op, a, b)
		if err != nil {
			return constValue{}, err
		}
		out.components[i] = r
	}
	return out, nil
}

// evalConstructor folds scalar, vector, array and struct constructors.
//
//nolint:cyclop // scalar, vector and aggregate cases
func (l *Lowerer) evalConstructor(call *CallExpr) (constValue, error) {
	typeHandle, ok, err := l.constructorType(call)
	if err != nil {
		return constValue{}, err
	}
	if !ok {
		return constValue{}, errNotConstant
	}
	args := make([]constValue, len(call.Args))
	for i, a := range call.Args {
		v, err := l.evalConst(a)
		if err != nil {
			return constValue{}, err
		}
		args[i] = v
	}

	switch t := l.module.Types[typeHandle].Inner.(type) {
	case ir.ScalarType:
		if len(args) != 1 {
			return constValue{}, errNotConstant
		}
		first := args[0]
		for !first.isScalar() {
			first = first.components[0]
		}
		v := first.convert(t)
		v.typ = typeHandle
		return v, nil
	case ir.VectorType:
		var flat []constValue
		for _, a := range args {
			flat = appendScalars(flat, a)
		}
		if len(flat) == 1 {
			for len(flat) < int(t.Size) {
				flat = append(flat, flat[0])
			}
		}
		if len(flat) < int(t.Size) {
			return constValue{}, fmt.Errorf("not enough components for %s", l.typeLabel(t))
		}
		out := constValue{typ: typeHandle, components: make([]constValue, t.Size)}
		for i := range out.components {
			out.components[i] = flat[i].convert(t.Scalar)
		}
		return out, nil
	case ir.ArrayType, ir.StructType:
		return constValue{typ: typeHandle, components: args}, nil
	}
	return constValue{}, errNotConstant
}

func appendScalars(dst []constValue, v constValue) []constValue {
	if v.isScalar() {
		return append(dst, v)
	}
	for _, c := range v.components {
		dst = appendScalars(dst, c)
	}
	return dst
}

// materialize stores a constant value in the module and returns its handle.
func (l *Lowerer) materialize(name string, v constValue) ir.ConstantHandle {
	if v.isScalar() {
		typ := l.registerType("", v.scalar)
		return l.addConstant(ir.Constant{Name: name, Type: typ, Value: ir.ScalarValue{Bits: v.bits(), Kind: v.scalar.Kind}})
	}
	comps := make([]ir.ConstantHandle, len(v.components))
	for i, c := range v.components {
		comps[i] = l.materialize("", c)
	}
	return l.addConstant(ir.Constant{Name: name, Type: v.typ, Value: ir.CompositeValue{Components: comps}})
}

func (l *Lowerer) addConstant(c ir.Constant) ir.ConstantHandle {
	handle := ir.ConstantHandle(len(l.module.Constants)) //nolint:gosec // G115: arena stays far below 2^32
	l.module.Constants = append(l.module.Constants, c)
	return handle
}

// typeOfConst returns the type handle of a constant value.
func (l *Lowerer) typeOfConst(v constValue) ir.TypeHandle {
	if v.isScalar() {
		return l.registerType("", v.scalar)
	}
	return v.typ
}
