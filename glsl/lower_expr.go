package glsl

import (
	"fmt"

	"github.com/gogpu/xshader/ir"
)

// operand is a lowered expression that may still be a pointer. Values are
// loaded only where an r-value is needed.
type operand struct {
	handle  ir.ExpressionHandle
	pointer bool
}

// inner returns the resolved type of an expression.
func (l *Lowerer) inner(h ir.ExpressionHandle) ir.TypeInner {
	return l.fn.fn.ExpressionTypes[h].Inner(l.module)
}

// pointee returns the type a pointer expression points to.
func (l *Lowerer) pointee(h ir.ExpressionHandle) ir.TypeInner {
	switch p := l.inner(h).(type) {
	case ir.PointerType:
		return l.module.Types[p.Base].Inner
	case ir.ValuePointerType:
		if p.Size == 0 {
			return p.Scalar
		}
		return ir.VectorType{Size: p.Size, Scalar: p.Scalar}
	}
	return l.inner(h)
}

func (l *Lowerer) operandInner(op operand) ir.TypeInner {
	if op.pointer {
		return l.pointee(op.handle)
	}
	return l.inner(op.handle)
}

// typeHandleOf returns a type table handle for the value type of h.
func (l *Lowerer) typeHandleOf(h ir.ExpressionHandle) ir.TypeHandle {
	if res := l.fn.fn.ExpressionTypes[h]; res.Handle != nil {
		return *res.Handle
	}
	return l.registerType("", l.inner(h))
}

// pointeeHandle returns the type handle of what a pointer expression
// points to.
func (l *Lowerer) pointeeHandle(h ir.ExpressionHandle) ir.TypeHandle {
	if p, ok := l.inner(h).(ir.PointerType); ok {
		return p.Base
	}
	return l.registerType("", l.pointee(h))
}

func (l *Lowerer) load(op operand) (ir.ExpressionHandle, error) {
	if !op.pointer {
		return op.handle, nil
	}
	return l.addExpression(ir.ExprLoad{Pointer: op.handle})
}

// expr lowers an expression to a value.
func (l *Lowerer) expr(e Expr, target *ir.Block) (ir.ExpressionHandle, error) {
	op, err := l.operand(e, target)
	if err != nil {
		return 0, err
	}
	return l.load(op)
}

// pointer lowers an expression that must be a writable l-value.
func (l *Lowerer) pointer(e Expr, target *ir.Block) (ir.ExpressionHandle, error) {
	op, err := l.operand(e, target)
	if err != nil {
		return 0, err
	}
	if !op.pointer {
		return 0, l.errorAt(e.Pos(), "expression is not an l-value")
	}
	if err := l.checkWritable(op.handle, e.Pos()); err != nil {
		return 0, err
	}
	return op.handle, nil
}

// checkWritable rejects stores to inputs, uniforms and read-only buffers.
func (l *Lowerer) checkWritable(ptr ir.ExpressionHandle, loc Location) error {
	var space ir.AddressSpace
	switch p := l.inner(ptr).(type) {
	case ir.PointerType:
		space = p.Space
	case ir.ValuePointerType:
		space = p.Space
	}
	switch space {
	case ir.SpaceIn, ir.SpaceUniform, ir.SpacePushConstant:
		return l.errorAt(loc, "cannot assign to a read-only %s variable", space)
	case ir.SpaceStorage:
		if g, ok := l.rootGlobal(ptr); ok && l.module.GlobalVariables[g].Access&ir.StorageStore == 0 {
			return l.errorAt(loc, "cannot assign to readonly buffer %q", l.module.GlobalVariables[g].Name)
		}
	}
	return nil
}

func (l *Lowerer) rootGlobal(h ir.ExpressionHandle) (ir.GlobalVariableHandle, bool) {
	for {
		switch e := l.fn.fn.Expressions[h].Kind.(type) {
		case ir.ExprGlobalVariable:
			return e.Variable, true
		case ir.ExprAccess:
			h = e.Base
		case ir.ExprAccessIndex:
			h = e.Base
		default:
			return 0, false
		}
	}
}

// lowerEffect lowers an expression evaluated only for its side effects.
func (l *Lowerer) lowerEffect(e Expr, target *ir.Block) error {
	switch e := e.(type) {
	case *AssignExpr:
		_, err := l.lowerAssign(e, target)
		return err
	case *IncDecExpr:
		_, err := l.lowerIncDec(e, target)
		return err
	case *CallExpr:
		_, _, err := l.lowerCall(e, target)
		return err
	case *SequenceExpr:
		if err := l.lowerEffect(e.Left, target); err != nil {
			return err
		}
		return l.lowerEffect(e.Right, target)
	}
	_, err := l.operand(e, target)
	return err
}

//nolint:gocyclo,cyclop // one case per expression kind
func (l *Lowerer) operand(e Expr, target *ir.Block) (operand, error) {
	value := func(h ir.ExpressionHandle, err error) (operand, error) {
		if err != nil {
			return operand{}, l.located(err, e.Pos())
		}
		return operand{handle: h}, nil
	}

	switch e := e.(type) {
	case *IntLit:
		v, err := parseIntLiteral(e.Text)
		if err != nil {
			return operand{}, l.errorAt(e.Loc, "%s", err)
		}
		return value(l.literal(v))
	case *FloatLit:
		v, err := parseFloatLiteral(e.Text)
		if err != nil {
			return operand{}, l.errorAt(e.Loc, "%s", err)
		}
		return value(l.literal(v))
	case *BoolLit:
		return value(l.addExpression(ir.Literal{Value: ir.LiteralBool(e.Value)}))
	case *Ident:
		return l.identOperand(e)
	case *MemberExpr:
		return l.memberOperand(e, target)
	case *IndexExpr:
		return l.indexOperand(e, target)
	case *CallExpr:
		h, ok, err := l.lowerCall(e, target)
		if err != nil {
			return operand{}, l.located(err, e.Loc)
		}
		if !ok {
			return operand{}, l.errorAt(e.Loc, "%s does not return a value", e.Name)
		}
		return operand{handle: h}, nil
	case *BinaryExpr:
		return value(l.lowerBinary(e, target))
	case *UnaryExpr:
		return value(l.lowerUnary(e, target))
	case *TernaryExpr:
		return value(l.lowerTernary(e, target))
	case *AssignExpr:
		return value(l.lowerAssign(e, target))
	case *IncDecExpr:
		return value(l.lowerIncDec(e, target))
	case *SequenceExpr:
		if err := l.lowerEffect(e.Left, target); err != nil {
			return operand{}, err
		}
		return l.operand(e.Right, target)
	case *LengthExpr:
		return value(l.lowerLength(e, target))
	}
	return operand{}, fmt.Errorf("unexpected expression %T", e)
}

func literalValue(v constValue) ir.LiteralValue {
	switch v.scalar.Kind {
	case ir.ScalarFloat:
		if v.scalar.Width == 8 {
			return ir.LiteralF64(v.f)
		}
		return ir.LiteralF32(float32(v.f))
	case ir.ScalarSint:
		if v.scalar.Width == 8 {
			return ir.LiteralI64(v.i)
		}
		return ir.LiteralI32(int32(v.i)) //nolint:gosec // G115: value is already 32-bit
	case ir.ScalarUint:
		if v.scalar.Width == 8 {
			return ir.LiteralU64(v.u)
		}
		return ir.LiteralU32(uint32(v.u)) //nolint:gosec // G115: value is already 32-bit
	}
	return ir.LiteralBool(v.b)
}

func (l *Lowerer) literal(v constValue) (ir.ExpressionHandle, error) {
	return l.addExpression(ir.Literal{Value: literalValue(v)})
}

// one returns the literal 1 of a scalar type.
func (l *Lowerer) one(s ir.ScalarType) (ir.ExpressionHandle, error) {
	return l.literal(constValue{scalar: ir.ScalarI64, i: 1}.convert(s))
}

func (l *Lowerer) identOperand(e *Ident) (operand, error) {
	if sym, ok := l.fn.lookup(e.Name); ok {
		switch {
		case sym.local != nil:
			h, err := l.addExpression(ir.ExprLocalVariable{Variable: *sym.local})
			return operand{handle: h, pointer: true}, err
		case sym.argument != nil:
			h, err := l.addExpression(ir.ExprFunctionArgument{Index: *sym.argument})
			_, byRef := l.module.Types[l.fn.fn.Arguments[*sym.argument].Type].Inner.(ir.PointerType)
			return operand{handle: h, pointer: byRef}, err
		default:
			h, err := l.addExpression(ir.ExprConstant{Constant: sym.handle})
			return operand{handle: h}, err
		}
	}
	if g, ok := l.globals[e.Name]; ok {
		h, err := l.addExpression(ir.ExprGlobalVariable{Variable: g.handle})
		if err != nil {
			return operand{}, err
		}
		if l.module.GlobalVariables[g.handle].Space == ir.SpaceHandle {
			return operand{handle: h}, nil
		}
		if g.member != nil {
			h, err = l.addExpression(ir.ExprAccessIndex{Base: h, Index: *g.member})
		}
		return operand{handle: h, pointer: true}, err
	}
	if c, ok := l.constants[e.Name]; ok {
		h, err := l.addExpression(ir.ExprConstant{Constant: c})
		return operand{handle: h}, err
	}
	if _, ok := l.ioBlocks[e.Name]; ok {
		return operand{}, l.errorAt(e.Loc, "interface block %q can only be used through its members", e.Name)
	}
	if op, ok, err := l.builtinVariable(e.Name, e.Loc); ok || err != nil {
		return op, err
	}
	return operand{}, l.errorAt(e.Loc, "undeclared identifier %q", e.Name)
}

// ioBlockMember resolves instance.member of a flattened interface block.
func (l *Lowerer) ioBlockMember(e *MemberExpr) (operand, bool, error) {
	id, ok := e.Base.(*Ident)
	if !ok {
		return operand{}, false, nil
	}
	if _, shadowed := l.fn.lookup(id.Name); shadowed {
		return operand{}, false, nil
	}
	members, ok := l.ioBlocks[id.Name]
	if !ok {
		return operand{}, false, nil
	}
	g, ok := members[e.Name]
	if !ok {
		return operand{}, true, l.errorAt(e.Loc, "block %q has no member %q", id.Name, e.Name)
	}
	h, err := l.addExpression(ir.ExprGlobalVariable{Variable: g})
	return operand{handle: h, pointer: true}, true, err
}

func (l *Lowerer) memberOperand(e *MemberExpr, target *ir.Block) (operand, error) {
	if op, ok, err := l.ioBlockMember(e); ok {
		return op, err
	}
	base, err := l.operand(e.Base, target)
	if err != nil {
		return operand{}, err
	}
	return l.memberOf(base, e)
}

// memberOf applies a struct member access or a swizzle to an operand.
func (l *Lowerer) memberOf(base operand, e *MemberExpr) (operand, error) {
	switch t := l.operandInner(base).(type) {
	case ir.StructType:
		for i, m := range t.Members {
			if m.Name == e.Name {
				h, err := l.addExpression(ir.ExprAccessIndex{Base: base.handle, Index: uint32(i)}) //nolint:gosec // G115: member count is small
				return operand{handle: h, pointer: base.pointer}, err
			}
		}
	case ir.VectorType:
		indices, ok := swizzleIndices(e.Name, int(t.Size))
		if !ok {
			return operand{}, l.errorAt(e.Loc, "invalid swizzle %q on %s", e.Name, l.typeLabel(t))
		}
		if len(indices) == 1 {
			h, err := l.addExpression(ir.ExprAccessIndex{Base: base.handle, Index: uint32(indices[0])}) //nolint:gosec // G115: index below 4
			return operand{handle: h, pointer: base.pointer}, err
		}
		v, err := l.load(base)
		if err != nil {
			return operand{}, err
		}
		h, err := l.swizzle(v, indices)
		return operand{handle: h}, err
	case ir.ScalarType:
		indices, ok := swizzleIndices(e.Name, 1)
		if !ok {
			return operand{}, l.errorAt(e.Loc, "invalid swizzle %q on %s", e.Name, l.typeLabel(t))
		}
		if len(indices) == 1 {
			return base, nil
		}
		v, err := l.load(base)
		if err != nil {
			return operand{}, err
		}
		h, err := l.addExpression(ir.ExprSplat{Size: ir.VectorSize(len(indices)), Value: v}) //nolint:gosec // G115: at most 4
		return operand{handle: h}, err
	}
	return operand{}, l.errorAt(e.Loc, "%s has no member %q", l.typeLabel(l.operandInner(base)), e.Name)
}

func (l *Lowerer) swizzle(vector ir.ExpressionHandle, indices []int) (ir.ExpressionHandle, error) {
	sw := ir.ExprSwizzle{Size: ir.VectorSize(len(indices)), Vector: vector} //nolint:gosec // G115: at most 4
	for i, idx := range indices {
		sw.Pattern[i] = ir.SwizzleComponent(idx) //nolint:gosec // G115: index below 4
	}
	return l.addExpression(sw)
}

// isNonUniform reports whether an index is wrapped in nonuniformEXT.
func isNonUniform(e Expr) bool {
	call, ok := e.(*CallExpr)
	return ok && call.Name == "nonuniformEXT"
}

func (l *Lowerer) indexOperand(e *IndexExpr, target *ir.Block) (operand, error) {
	base, err := l.operand(e.Base, target)
	if err != nil {
		return operand{}, err
	}
	var limit int64 = -1
	switch t := l.operandInner(base).(type) {
	case ir.ArrayType:
		if t.Size.Constant != nil {
			limit = int64(*t.Size.Constant)
		}
	case ir.VectorType:
		limit = int64(t.Size)
	case ir.MatrixType:
		limit = int64(t.Columns)
	default:
		return operand{}, l.errorAt(e.Loc, "cannot index a value of type %s", l.typeLabel(t))
	}

	if v, err := l.evalInt(e.Index); err == nil {
		if v < 0 || (limit >= 0 && v >= limit) {
			return operand{}, l.errorAt(e.Loc, "index %d is out of range", v)
		}
		h, err := l.addExpression(ir.ExprAccessIndex{Base: base.handle, Index: uint32(v)}) //nolint:gosec // G115: range checked above
		return operand{handle: h, pointer: base.pointer}, err
	}

	index, err := l.expr(e.Index, target)
	if err != nil {
		return operand{}, err
	}
	if s, ok := l.inner(index).(ir.ScalarType); !ok || (s.Kind != ir.ScalarSint && s.Kind != ir.ScalarUint) {
		return operand{}, l.errorAt(e.Index.Pos(), "array index must be an int or uint")
	}
	h, err := l.addExpression(ir.ExprAccess{Base: base.handle, Index: index, NonUniform: isNonUniform(e.Index)})
	return operand{handle: h, pointer: base.pointer}, err
}

func (l *Lowerer) lowerLength(e *LengthExpr, target *ir.Block) (ir.ExpressionHandle, error) {
	base, err := l.operand(e.Base, target)
	if err != nil {
		return 0, err
	}
	count := func(n uint32) (ir.ExpressionHandle, error) {
		return l.addExpression(ir.Literal{Value: ir.LiteralI32(int32(n))}) //nolint:gosec // G115: sizes are small
	}
	switch t := l.operandInner(base).(type) {
	case ir.ArrayType:
		if t.Size.Constant != nil {
			return count(*t.Size.Constant)
		}
		if !base.pointer {
			return 0, l.errorAt(e.Loc, "length() of a runtime-sized array needs a buffer member")
		}
		n, err := l.addExpression(ir.ExprArrayLength{Array: base.handle})
		if err != nil {
			return 0, err
		}
		return l.convert(n, ir.ScalarI32)
	case ir.VectorType:
		return count(uint32(t.Size))
	case ir.MatrixType:
		return count(uint32(t.Columns))
	}
	return 0, l.errorAt(e.Loc, "length() needs an array, vector or matrix")
}

// convert applies a value conversion to another scalar type, keeping the
// vector or matrix shape.
func (l *Lowerer) convert(h ir.ExpressionHandle, to ir.ScalarType) (ir.ExpressionHandle, error) {
	if s, ok := ir.ScalarOf(l.inner(h)); ok && s == to {
		return h, nil
	}
	width := to.Width
	return l.addExpression(ir.ExprAs{Expr: h, Kind: to.Kind, Convert: &width})
}

// sameInner compares two non-aggregate types.
func sameInner(a, b ir.TypeInner) bool {
	switch x := a.(type) {
	case ir.ScalarType:
		y, ok := b.(ir.ScalarType)
		return ok && x == y
	case ir.VectorType:
		y, ok := b.(ir.VectorType)
		return ok && x == y
	case ir.MatrixType:
		y, ok := b.(ir.MatrixType)
		return ok && x == y
	}
	return false
}

// coerce applies the implicit conversions GLSL allows when a value is
// assigned, passed or returned.
func (l *Lowerer) coerce(h ir.ExpressionHandle, want ir.TypeHandle) (ir.ExpressionHandle, error) {
	if res := l.fn.fn.ExpressionTypes[h]; res.Handle != nil && *res.Handle == want {
		return h, nil
	}
	have := l.inner(h)
	wantInner := l.module.Types[want].Inner
	if sameInner(have, wantInner) {
		return h, nil
	}
	if l.implicitTo(have, wantInner) {
		s, _ := ir.ScalarOf(wantInner)
		return l.convert(h, s)
	}
	return 0, fmt.Errorf("cannot convert %s to %s", l.typeLabel(have), l.typeLabel(wantInner))
}

// implicitTo reports whether a value of type from converts implicitly to
// type to.
func (l *Lowerer) implicitTo(from, to ir.TypeInner) bool {
	switch t := to.(type) {
	case ir.ScalarType:
		f, ok := from.(ir.ScalarType)
		return ok && implicitlyConvertible(f, t)
	case ir.VectorType:
		f, ok := from.(ir.VectorType)
		return ok && f.Size == t.Size && implicitlyConvertible(f.Scalar, t.Scalar)
	case ir.MatrixType:
		f, ok := from.(ir.MatrixType)
		return ok && f.Columns == t.Columns && f.Rows == t.Rows && implicitlyConvertible(f.Scalar, t.Scalar)
	}
	return false
}

// unify converts two numeric operands to their common scalar type.
func (l *Lowerer) unify(a, b ir.ExpressionHandle, loc Location) (ir.ExpressionHandle, ir.ExpressionHandle, error) {
	sa, okA := ir.ScalarOf(l.inner(a))
	sb, okB := ir.ScalarOf(l.inner(b))
	if !okA || !okB || sa == sb {
		return a, b, nil
	}
	if sa.Kind == ir.ScalarBool || sb.Kind == ir.ScalarBool {
		return 0, 0, l.errorAt(loc, "mismatched operand types %s and %s", scalarLabel(sa), scalarLabel(sb))
	}
	common := promote(sa, sb)
	var err error
	if sa != common {
		if a, err = l.convert(a, common); err != nil {
			return 0, 0, err
		}
	}
	if sb != common {
		if b, err = l.convert(b, common); err != nil {
			return 0, 0, err
		}
	}
	return a, b, nil
}

var arithmeticOps = map[TokenKind]ir.BinaryOperator{
	TokenPlus:           ir.BinaryAdd,
	TokenMinus:          ir.BinarySubtract,
	TokenStar:           ir.BinaryMultiply,
	TokenSlash:          ir.BinaryDivide,
	TokenPercent:        ir.BinaryModulo,
	TokenAmpersand:      ir.BinaryAnd,
	TokenPipe:           ir.BinaryInclusiveOr,
	TokenCaret:          ir.BinaryExclusiveOr,
	TokenLessLess:       ir.BinaryShiftLeft,
	TokenGreaterGreater: ir.BinaryShiftRight,
	TokenLess:           ir.BinaryLess,
	TokenLessEqual:      ir.BinaryLessEqual,
	TokenGreater:        ir.BinaryGreater,
	TokenGreaterEqual:   ir.BinaryGreaterEqual,
	TokenEqualEqual:     ir.BinaryEqual,
	TokenBangEqual:      ir.BinaryNotEqual,
}

var compoundOps = map[TokenKind]TokenKind{
	TokenPlusEqual:           TokenPlus,
	TokenMinusEqual:          TokenMinus,
	TokenStarEqual:           TokenStar,
	TokenSlashEqual:          TokenSlash,
	TokenPercentEqual:        TokenPercent,
	TokenAmpEqual:            TokenAmpersand,
	TokenPipeEqual:           TokenPipe,
	TokenCaretEqual:          TokenCaret,
	TokenLessLessEqual:       TokenLessLess,
	TokenGreaterGreaterEqual: TokenGreaterGreater,
}

func isBool(inner ir.TypeInner) bool {
	s, ok := inner.(ir.ScalarType)
	return ok && s.Kind == ir.ScalarBool
}

func isInteger(inner ir.TypeInner) bool {
	s, ok := ir.ScalarOf(inner)
	return ok && (s.Kind == ir.ScalarSint || s.Kind == ir.ScalarUint)
}

func (l *Lowerer) lowerBinary(e *BinaryExpr, target *ir.Block) (ir.ExpressionHandle, error) {
	if (e.Op == TokenAmpAmp || e.Op == TokenPipePipe) && hasSideEffects(e.Right) {
		return l.shortCircuit(e, target)
	}
	left, err := l.expr(e.Left, target)
	if err != nil {
		return 0, err
	}
	right, err := l.expr(e.Right, target)
	if err != nil {
		return 0, err
	}
	return l.binaryOp(e.Op, left, right, e.Loc)
}

//nolint:gocyclo,cyclop // operator classes have different typing rules
func (l *Lowerer) binaryOp(op TokenKind, left, right ir.ExpressionHandle, loc Location) (ir.ExpressionHandle, error) {
	switch op {
	case TokenAmpAmp, TokenPipePipe, TokenCaretCaret:
		if !isBool(l.inner(left)) || !isBool(l.inner(right)) {
			return 0, l.errorAt(loc, "logical operators need bool operands")
		}
		bop := ir.BinaryLogicalAnd
		switch op {
		case TokenPipePipe:
			bop = ir.BinaryLogicalOr
		case TokenCaretCaret:
			bop = ir.BinaryNotEqual
		}
		return l.addExpression(ir.ExprBinary{Op: bop, Left: left, Right: right})

	case TokenEqualEqual, TokenBangEqual:
		left, right, err := l.unify(left, right, loc)
		if err != nil {
			return 0, err
		}
		cmp, err := l.addExpression(ir.ExprBinary{Op: arithmeticOps[op], Left: left, Right: right})
		if err != nil {
			return 0, err
		}
		switch l.inner(left).(type) {
		case ir.ScalarType:
			return cmp, nil
		case ir.VectorType:
			// Vector equality compares whole values.
			fun := ir.RelationalAll
			if op == TokenBangEqual {
				fun = ir.RelationalAny
			}
			return l.addExpression(ir.ExprRelational{Fun: fun, Argument: cmp})
		}
		return 0, l.errorAt(loc, "cannot compare values of type %s", l.typeLabel(l.inner(left)))

	case TokenLess, TokenLessEqual, TokenGreater, TokenGreaterEqual:
		if _, ok := l.inner(left).(ir.ScalarType); !ok || isBool(l.inner(left)) {
			return 0, l.errorAt(loc, "relational operators need scalar numeric operands")
		}
		left, right, err := l.unify(left, right, loc)
		if err != nil {
			return 0, err
		}
		return l.addExpression(ir.ExprBinary{Op: arithmeticOps[op], Left: left, Right: right})

	case TokenAmpersand, TokenPipe, TokenCaret, TokenLessLess, TokenGreaterGreater, TokenPercent:
		if !isInteger(l.inner(left)) || !isInteger(l.inner(right)) {
			return 0, l.errorAt(loc, "operator %s needs integer operands", opLabel(op))
		}
		if op != TokenLessLess && op != TokenGreaterGreater {
			var err error
			if left, right, err = l.unify(left, right, loc); err != nil {
				return 0, err
			}
		}
		return l.addExpression(ir.ExprBinary{Op: arithmeticOps[op], Left: left, Right: right})

	case TokenPlus, TokenMinus, TokenStar, TokenSlash:
		if _, ok := ir.ScalarOf(l.inner(left)); !ok || isBool(l.inner(left)) {
			return 0, l.errorAt(loc, "operator %s needs numeric operands", opLabel(op))
		}
		left, right, err := l.unify(left, right, loc)
		if err != nil {
			return 0, err
		}
		return l.addExpression(ir.ExprBinary{Op: arithmeticOps[op], Left: left, Right: right})
	}
	return 0, l.errorAt(loc, "unsupported operator %s", opLabel(op))
}

func opLabel(op TokenKind) string {
	if sym, ok := binarySymbols[op]; ok {
		return "'" + sym + "'"
	}
	return op.String()
}

var binarySymbols = map[TokenKind]string{
	TokenPipePipe: "||", TokenCaretCaret: "^^", TokenAmpAmp: "&&",
	TokenPipe: "|", TokenCaret: "^", TokenAmpersand: "&",
	TokenEqualEqual: "==", TokenBangEqual: "!=",
	TokenLess: "<", TokenGreater: ">", TokenLessEqual: "<=", TokenGreaterEqual: ">=",
	TokenLessLess: "<<", TokenGreaterGreater: ">>",
	TokenPlus: "+", TokenMinus: "-", TokenStar: "*", TokenSlash: "/", TokenPercent: "%",
}

func (l *Lowerer) lowerUnary(e *UnaryExpr, target *ir.Block) (ir.ExpressionHandle, error) {
	v, err := l.expr(e.Operand, target)
	if err != nil {
		return 0, err
	}
	inner := l.inner(v)
	switch e.Op {
	case TokenMinus:
		if s, ok := ir.ScalarOf(inner); !ok || s.Kind == ir.ScalarBool {
			return 0, l.errorAt(e.Loc, "cannot negate a value of type %s", l.typeLabel(inner))
		}
		return l.addExpression(ir.ExprUnary{Op: ir.UnaryNegate, Expr: v})
	case TokenBang:
		if !isBool(inner) {
			return 0, l.errorAt(e.Loc, "'!' needs a bool operand")
		}
		return l.addExpression(ir.ExprUnary{Op: ir.UnaryLogicalNot, Expr: v})
	case TokenTilde:
		if !isInteger(inner) {
			return 0, l.errorAt(e.Loc, "'~' needs an integer operand")
		}
		return l.addExpression(ir.ExprUnary{Op: ir.UnaryBitwiseNot, Expr: v})
	}
	return 0, l.errorAt(e.Loc, "unsupported unary operator %s", e.Op)
}

// hasSideEffects reports whether evaluating e may store or call a user
// function, so it cannot be evaluated speculatively.
func hasSideEffects(e Expr) bool {
	switch e := e.(type) {
	case *AssignExpr, *IncDecExpr:
		return true
	case *CallExpr:
		if _, builtin := builtinFunctions[e.Name]; !builtin && e.Name != "" {
			if _, isType := builtinTypes[e.Name]; !isType {
				return true
			}
		}
		for _, a := range e.Args {
			if hasSideEffects(a) {
				return true
			}
		}
	case *BinaryExpr:
		return hasSideEffects(e.Left) || hasSideEffects(e.Right)
	case *UnaryExpr:
		return hasSideEffects(e.Operand)
	case *TernaryExpr:
		return hasSideEffects(e.Cond) || hasSideEffects(e.Then) || hasSideEffects(e.Else)
	case *SequenceExpr:
		return hasSideEffects(e.Left) || hasSideEffects(e.Right)
	case *MemberExpr:
		return hasSideEffects(e.Base)
	case *IndexExpr:
		return hasSideEffects(e.Base) || hasSideEffects(e.Index)
	case *LengthExpr:
		return hasSideEffects(e.Base)
	}
	return false
}

// lowerTernary lowers cond ? a : b. Branches without side effects become a
// select; otherwise only the taken branch runs, through a temporary.
func (l *Lowerer) lowerTernary(e *TernaryExpr, target *ir.Block) (ir.ExpressionHandle, error) {
	cond, err := l.condition(e.Cond, target)
	if err != nil {
		return 0, err
	}
	if !hasSideEffects(e.Then) && !hasSideEffects(e.Else) {
		accept, err := l.expr(e.Then, target)
		if err != nil {
			return 0, err
		}
		reject, err := l.expr(e.Else, target)
		if err != nil {
			return 0, err
		}
		if accept, reject, err = l.unify(accept, reject, e.Loc); err != nil {
			return 0, err
		}
		return l.addExpression(ir.ExprSelect{Condition: cond, Accept: accept, Reject: reject})
	}

	l.flush(target)
	var accept, reject ir.Block
	a, err := l.expr(e.Then, &accept)
	if err != nil {
		return 0, err
	}
	typ := l.typeHandleOf(a)
	tmp := l.newLocal("", typ)
	if err := l.storeLocal(tmp, a, &accept); err != nil {
		return 0, err
	}
	b, err := l.expr(e.Else, &reject)
	if err != nil {
		return 0, err
	}
	if b, err = l.coerce(b, typ); err != nil {
		return 0, l.located(err, e.Loc)
	}
	if err := l.storeLocal(tmp, b, &reject); err != nil {
		return 0, err
	}
	l.push(target, ir.StmtIf{Condition: cond, Accept: accept, Reject: reject})
	return l.loadLocal(tmp)
}

// shortCircuit lowers && and || whose right operand has side effects.
func (l *Lowerer) shortCircuit(e *BinaryExpr, target *ir.Block) (ir.ExpressionHandle, error) {
	left, err := l.condition(e.Left, target)
	if err != nil {
		return 0, err
	}
	tmp := l.newLocal("", l.registerType("", ir.ScalarBoolean))
	if err := l.storeLocal(tmp, left, target); err != nil {
		return 0, err
	}
	var rhs ir.Block
	right, err := l.condition(e.Right, &rhs)
	if err != nil {
		return 0, err
	}
	if err := l.storeLocal(tmp, right, &rhs); err != nil {
		return 0, err
	}
	stmt := ir.StmtIf{Condition: left, Accept: rhs}
	if e.Op == TokenPipePipe {
		stmt = ir.StmtIf{Condition: left, Reject: rhs}
	}
	l.push(target, stmt)
	return l.loadLocal(tmp)
}

func (l *Lowerer) storeLocal(local uint32, value ir.ExpressionHandle, target *ir.Block) error {
	ptr, err := l.addExpression(ir.ExprLocalVariable{Variable: local})
	if err != nil {
		return err
	}
	l.push(target, ir.StmtStore{Pointer: ptr, Value: value})
	return nil
}

func (l *Lowerer) loadLocal(local uint32) (ir.ExpressionHandle, error) {
	ptr, err := l.addExpression(ir.ExprLocalVariable{Variable: local})
	if err != nil {
		return 0, err
	}
	return l.addExpression(ir.ExprLoad{Pointer: ptr})
}

func (l *Lowerer) lowerAssign(e *AssignExpr, target *ir.Block) (ir.ExpressionHandle, error) {
	var ptr ir.ExpressionHandle
	if m, ok := e.Target.(*MemberExpr); ok {
		op, handled, err := l.ioBlockMember(m)
		if !handled {
			base, err := l.operand(m.Base, target)
			if err != nil {
				return 0, err
			}
			if vec, ok := l.operandInner(base).(ir.VectorType); ok && base.pointer {
				if indices, ok := swizzleIndices(m.Name, int(vec.Size)); ok && len(indices) > 1 {
					return l.assignComponents(base.handle, vec, indices, e, target)
				}
			}
			op, err = l.memberOf(base, m)
			if err != nil {
				return 0, err
			}
		} else if err != nil {
			return 0, err
		}
		if !op.pointer {
			return 0, l.errorAt(e.Loc, "expression is not an l-value")
		}
		if err := l.checkWritable(op.handle, e.Loc); err != nil {
			return 0, err
		}
		ptr = op.handle
	} else {
		var err error
		if ptr, err = l.pointer(e.Target, target); err != nil {
			return 0, err
		}
	}

	want := l.pointeeHandle(ptr)
	value, err := l.expr(l.bindInitializer(e.Value, want), target)
	if err != nil {
		return 0, err
	}
	if e.Op != TokenEqual {
		old, err := l.addExpression(ir.ExprLoad{Pointer: ptr})
		if err != nil {
			return 0, err
		}
		if value, err = l.binaryOp(compoundOps[e.Op], old, value, e.Loc); err != nil {
			return 0, err
		}
	}
	if value, err = l.coerce(value, want); err != nil {
		return 0, l.located(err, e.Loc)
	}
	l.push(target, ir.StmtStore{Pointer: ptr, Value: value})
	return value, nil
}

// assignComponents stores through a multi-component swizzle one component
// at a time.
func (l *Lowerer) assignComponents(basePtr ir.ExpressionHandle, vec ir.VectorType, indices []int, e *AssignExpr, target *ir.Block) (ir.ExpressionHandle, error) {
	if err := l.checkWritable(basePtr, e.Loc); err != nil {
		return 0, err
	}
	seen := 0
	for _, idx := range indices {
		if seen&(1<<idx) != 0 {
			return 0, l.errorAt(e.Loc, "swizzle assignment cannot repeat a component")
		}
		seen |= 1 << idx
	}
	want := l.registerType("", ir.VectorType{Size: ir.VectorSize(len(indices)), Scalar: vec.Scalar}) //nolint:gosec // G115: at most 4
	value, err := l.expr(e.Value, target)
	if err != nil {
		return 0, err
	}
	if e.Op != TokenEqual {
		whole, err := l.addExpression(ir.ExprLoad{Pointer: basePtr})
		if err != nil {
			return 0, err
		}
		old, err := l.swizzle(whole, indices)
		if err != nil {
			return 0, err
		}
		if value, err = l.binaryOp(compoundOps[e.Op], old, value, e.Loc); err != nil {
			return 0, err
		}
	}
	if value, err = l.coerce(value, want); err != nil {
		return 0, l.located(err, e.Loc)
	}
	for i, idx := range indices {
		dst, err := l.addExpression(ir.ExprAccessIndex{Base: basePtr, Index: uint32(idx)}) //nolint:gosec // G115: index below 4
		if err != nil {
			return 0, err
		}
		src, err := l.addExpression(ir.ExprAccessIndex{Base: value, Index: uint32(i)}) //nolint:gosec // G115: index below 4
		if err != nil {
			return 0, err
		}
		l.push(target, ir.StmtStore{Pointer: dst, Value: src})
	}
	return value, nil
}

func (l *Lowerer) lowerIncDec(e *IncDecExpr, target *ir.Block) (ir.ExpressionHandle, error) {
	ptr, err := l.pointer(e.Operand, target)
	if err != nil {
		return 0, err
	}
	old, err := l.addExpression(ir.ExprLoad{Pointer: ptr})
	if err != nil {
		return 0, err
	}
	s, ok := ir.ScalarOf(l.inner(old))
	if _, isMat := l.inner(old).(ir.MatrixType); !ok || isMat || s.Kind == ir.ScalarBool {
		return 0, l.errorAt(e.Loc, "%s needs a numeric scalar or vector", e.Op)
	}
	one, err := l.one(s)
	if err != nil {
		return 0, err
	}
	op := ir.BinaryAdd
	if e.Op == TokenMinusMinus {
		op = ir.BinarySubtract
	}
	updated, err := l.addExpression(ir.ExprBinary{Op: op, Left: old, Right: one})
	if err != nil {
		return 0, err
	}
	l.push(target, ir.StmtStore{Pointer: ptr, Value: updated})
	if e.Prefix {
		return updated, nil
	}
	return old, nil
}

// lowerCall lowers a constructor, user function or builtin call. The bool
// result is false for calls without a value.
func (l *Lowerer) lowerCall(call *CallExpr, target *ir.Block) (ir.ExpressionHandle, bool, error) {
	typ, isCtor, err := l.constructorType(call)
	if err != nil {
		return 0, false, l.located(err, call.Loc)
	}
	if isCtor {
		h, err := l.lowerConstructor(call, typ, target)
		return h, true, err
	}
	if _, ok := l.functions[call.Name]; ok {
		return l.lowerUserCall(call, target)
	}
	if _, ok := builtinFunctions[call.Name]; ok {
		return l.lowerBuiltinCall(call, target)
	}
	return 0, false, l.errorAt(call.Loc, "no function named %q", call.Name)
}

// matchOverload picks the overload of a user function for the argument
// operands: an exact match wins over one needing implicit conversions.
func (l *Lowerer) matchOverload(call *CallExpr, args []operand) (*userFunction, error) {
	var exact, converted []*userFunction
	for _, f := range l.functions[call.Name] {
		if len(f.params) != len(args) {
			continue
		}
		same, ok := true, true
		for i, p := range f.params {
			have := l.operandInner(args[i])
			want := l.module.Types[p.typ].Inner
			if l.argumentMatches(args[i], p.typ) {
				continue
			}
			same = false
			if p.qual != StorageIn || !l.implicitTo(have, want) {
				ok = false
				break
			}
		}
		switch {
		case ok && same:
			exact = append(exact, f)
		case ok:
			converted = append(converted, f)
		}
	}
	switch {
	case len(exact) > 0:
		return exact[0], nil
	case len(converted) == 1:
		return converted[0], nil
	case len(converted) > 1:
		return nil, l.errorAt(call.Loc, "call to %s is ambiguous", call.Name)
	}
	return nil, l.errorAt(call.Loc, "no matching overload for %s", call.Name)
}

func (l *Lowerer) argumentMatches(arg operand, want ir.TypeHandle) bool {
	if arg.pointer {
		if p, ok := l.inner(arg.handle).(ir.PointerType); ok && p.Base == want {
			return true
		}
	} else if res := l.fn.fn.ExpressionTypes[arg.handle]; res.Handle != nil && *res.Handle == want {
		return true
	}
	return sameInner(l.operandInner(arg), l.module.Types[want].Inner)
}

// lowerUserCall passes out and inout arguments through temporaries that are
// copied back after the call.
func (l *Lowerer) lowerUserCall(call *CallExpr, target *ir.Block) (ir.ExpressionHandle, bool, error) {
	ops := make([]operand, len(call.Args))
	for i, a := range call.Args {
		op, err := l.operand(a, target)
		if err != nil {
			return 0, false, err
		}
		ops[i] = op
	}
	fn, err := l.matchOverload(call, ops)
	if err != nil {
		return 0, false, err
	}

	type copyBack struct {
		dst ir.ExpressionHandle
		tmp uint32
	}
	var backs []copyBack
	args := make([]ir.ExpressionHandle, len(ops))
	for i, p := range fn.params {
		switch p.qual {
		case StorageOut, StorageInout:
			if !ops[i].pointer {
				return 0, false, l.errorAt(call.Args[i].Pos(), "argument %d of %s must be an l-value", i+1, call.Name)
			}
			if err := l.checkWritable(ops[i].handle, call.Args[i].Pos()); err != nil {
				return 0, false, err
			}
			tmp := l.newLocal("", p.typ)
			if p.qual == StorageInout {
				v, err := l.load(ops[i])
				if err != nil {
					return 0, false, err
				}
				if err := l.storeLocal(tmp, v, target); err != nil {
					return 0, false, err
				}
			}
			ptr, err := l.addExpression(ir.ExprLocalVariable{Variable: tmp})
			if err != nil {
				return 0, false, err
			}
			args[i] = ptr
			backs = append(backs, copyBack{dst: ops[i].handle, tmp: tmp})
		default:
			v, err := l.load(ops[i])
			if err != nil {
				return 0, false, err
			}
			if v, err = l.coerce(v, p.typ); err != nil {
				return 0, false, l.located(err, call.Args[i].Pos())
			}
			args[i] = v
		}
	}

	l.flush(target)
	var result *ir.ExpressionHandle
	if fn.result != nil {
		h, err := l.addExpression(ir.ExprCallResult{Function: fn.handle})
		if err != nil {
			return 0, false, err
		}
		result = &h
		// Call results are defined by the call statement, not an Emit.
		l.fn.emitStart = h + 1
	}
	*target = append(*target, ir.Statement{Kind: ir.StmtCall{Function: fn.handle, Arguments: args, Result: result}})

	for _, b := range backs {
		v, err := l.loadLocal(b.tmp)
		if err != nil {
			return 0, false, err
		}
		l.push(target, ir.StmtStore{Pointer: b.dst, Value: v})
	}
	if result == nil {
		return 0, false, nil
	}
	return *result, true, nil
}

// constructorType reports whether a call constructs a type, and which.
func (l *Lowerer) constructorType(call *CallExpr) (ir.TypeHandle, bool, error) {
	if call.typ != nil {
		return *call.typ, true, nil
	}
	if call.Name == "" {
		return 0, false, fmt.Errorf("initializer list needs a declared type")
	}
	var base ir.TypeHandle
	if h, ok := l.structs[call.Name]; ok {
		base = h
	} else if inner, ok := builtinTypes[call.Name]; ok {
		base = l.registerType("", inner)
	} else {
		return 0, false, nil
	}
	if len(call.ArraySizes) == 0 {
		return base, true, nil
	}
	sizes := call.ArraySizes
	if sizes[0] == nil {
		// float[](a, b) takes its size from the arguments.
		n := uint32(len(call.Args)) //nolint:gosec // G115: argument count is small
		elem, err := l.resolveTypeSpec(TypeSpec{Name: call.Name}, sizes[1:], layoutStd430)
		if err != nil {
			return 0, false, err
		}
		return l.arrayType(elem, &n, layoutStd430), true, nil
	}
	h, err := l.resolveTypeSpec(TypeSpec{Name: call.Name}, sizes, layoutStd430)
	return h, true, err
}

//nolint:gocyclo,cyclop,funlen // one case per constructed shape
func (l *Lowerer) lowerConstructor(call *CallExpr, typ ir.TypeHandle, target *ir.Block) (ir.ExpressionHandle, error) {
	inner := l.module.Types[typ].Inner
	args := make([]ir.ExpressionHandle, len(call.Args))
	for i, a := range call.Args {
		h, err := l.expr(a, target)
		if err != nil {
			return 0, err
		}
		args[i] = h
	}
	if len(args) == 0 {
		return 0, l.errorAt(call.Loc, "constructor of %s needs arguments", l.typeLabel(inner))
	}

	switch t := inner.(type) {
	case ir.ScalarType:
		if len(args) != 1 {
			return 0, l.errorAt(call.Loc, "scalar constructor takes one argument")
		}
		v, err := l.firstComponent(args[0])
		if err != nil {
			return 0, err
		}
		return l.convert(v, t)

	case ir.VectorType:
		if len(args) == 1 {
			if _, scalar := l.inner(args[0]).(ir.ScalarType); scalar {
				v, err := l.convert(args[0], t.Scalar)
				if err != nil {
					return 0, err
				}
				return l.addExpression(ir.ExprSplat{Size: t.Size, Value: v})
			}
			if v, ok := l.inner(args[0]).(ir.VectorType); ok && v.Size >= t.Size {
				h := args[0]
				if v.Size > t.Size {
					var err error
					if h, err = l.swizzle(h, []int{0, 1, 2, 3}[:t.Size]); err != nil {
						return 0, err
					}
				}
				return l.convert(h, t.Scalar)
			}
		}
		var comps []ir.ExpressionHandle
		remaining := int(t.Size)
		for _, a := range args {
			if remaining == 0 {
				return 0, l.errorAt(call.Loc, "too many arguments to %s constructor", l.typeLabel(t))
			}
			parts, err := l.vectorParts(a, remaining)
			if err != nil {
				return 0, err
			}
			for _, p := range parts {
				if remaining -= l.componentCount(p); remaining < 0 {
					return 0, l.errorAt(call.Loc, "too many components for %s", l.typeLabel(t))
				}
				c, err := l.convert(p, t.Scalar)
				if err != nil {
					return 0, err
				}
				comps = append(comps, c)
			}
		}
		if remaining > 0 {
			return 0, l.errorAt(call.Loc, "not enough components for %s", l.typeLabel(t))
		}
		return l.addExpression(ir.ExprCompose{Type: typ, Components: comps})

	case ir.MatrixType:
		return l.matrixConstructor(call, typ, t, args)

	case ir.ArrayType:
		if t.Size.Constant == nil || int(*t.Size.Constant) != len(args) {
			return 0, l.errorAt(call.Loc, "array constructor of %s has %d arguments", l.typeLabel(t), len(args))
		}
		for i := range args {
			var err error
			if args[i], err = l.coerce(args[i], t.Base); err != nil {
				return 0, l.located(err, call.Args[i].Pos())
			}
		}
		return l.addExpression(ir.ExprCompose{Type: typ, Components: args})

	case ir.StructType:
		if len(args) != len(t.Members) {
			return 0, l.errorAt(call.Loc, "constructor of %s takes %d arguments", l.typeLabel(t), len(t.Members))
		}
		for i := range args {
			var err error
			if args[i], err = l.coerce(args[i], t.Members[i].Type); err != nil {
				return 0, l.located(err, call.Args[i].Pos())
			}
		}
		return l.addExpression(ir.ExprCompose{Type: typ, Components: args})
	}
	return 0, l.errorAt(call.Loc, "cannot construct a value of type %s", l.typeLabel(inner))
}

func (l *Lowerer) firstComponent(h ir.ExpressionHandle) (ir.ExpressionHandle, error) {
	for {
		switch l.inner(h).(type) {
		case ir.ScalarType:
			return h, nil
		case ir.VectorType, ir.MatrixType:
			var err error
			if h, err = l.addExpression(ir.ExprAccessIndex{Base: h, Index: 0}); err != nil {
				return 0, err
			}
		default:
			return 0, fmt.Errorf("cannot convert %s to a scalar", l.typeLabel(l.inner(h)))
		}
	}
}

func (l *Lowerer) componentCount(h ir.ExpressionHandle) int {
	if v, ok := l.inner(h).(ir.VectorType); ok {
		return int(v.Size)
	}
	return 1
}

// vectorParts splits a constructor argument into scalars and vectors that
// fit in at most limit components.
func (l *Lowerer) vectorParts(h ir.ExpressionHandle, limit int) ([]ir.ExpressionHandle, error) {
	switch t := l.inner(h).(type) {
	case ir.ScalarType:
		return []ir.ExpressionHandle{h}, nil
	case ir.VectorType:
		if int(t.Size) <= limit {
			return []ir.ExpressionHandle{h}, nil
		}
		if limit == 1 {
			c, err := l.addExpression(ir.ExprAccessIndex{Base: h, Index: 0})
			return []ir.ExpressionHandle{c}, err
		}
		c, err := l.swizzle(h, []int{0, 1, 2, 3}[:limit])
		return []ir.ExpressionHandle{c}, err
	case ir.MatrixType:
		var parts []ir.ExpressionHandle
		for c := uint32(0); c < uint32(t.Columns); c++ {
			if limit <= 0 {
				break
			}
			col, err := l.addExpression(ir.ExprAccessIndex{Base: h, Index: c})
			if err != nil {
				return nil, err
			}
			more, err := l.vectorParts(col, limit)
			if err != nil {
				return nil, err
			}
			parts = append(parts, more...)
			limit -= int(t.Rows)
		}
		return parts, nil
	}
	return nil, fmt.Errorf("cannot use %s in a vector constructor", l.typeLabel(l.inner(h)))
}

// scalars flattens a value into its scalar components.
func (l *Lowerer) scalars(h ir.ExpressionHandle) ([]ir.ExpressionHandle, error) {
	var n uint32
	switch t := l.inner(h).(type) {
	case ir.ScalarType:
		return []ir.ExpressionHandle{h}, nil
	case ir.VectorType:
		n = uint32(t.Size)
	case ir.MatrixType:
		n = uint32(t.Columns)
	default:
		return nil, fmt.Errorf("cannot use %s in a matrix constructor", l.typeLabel(t))
	}
	var out []ir.ExpressionHandle
	for i := uint32(0); i < n; i++ {
		c, err := l.addExpression(ir.ExprAccessIndex{Base: h, Index: i})
		if err != nil {
			return nil, err
		}
		more, err := l.scalars(c)
		if err != nil {
			return nil, err
		}
		out = append(out, more...)
	}
	return out, nil
}

//nolint:gocognit // diagonal, resize and component forms
func (l *Lowerer) matrixConstructor(call *CallExpr, typ ir.TypeHandle, t ir.MatrixType, args []ir.ExpressionHandle) (ir.ExpressionHandle, error) {
	colType := l.registerType("", ir.VectorType{Size: t.Rows, Scalar: t.Scalar})
	zero, err := l.literal(constValue{scalar: t.Scalar})
	if err != nil {
		return 0, err
	}
	one, err := l.one(t.Scalar)
	if err != nil {
		return 0, err
	}
	identityColumn := func(c uint32, from uint32, prefix []ir.ExpressionHandle) (ir.ExpressionHandle, error) {
		comps := append([]ir.ExpressionHandle(nil), prefix...)
		for r := from; r < uint32(t.Rows); r++ {
			if r == c {
				comps = append(comps, one)
			} else {
				comps = append(comps, zero)
			}
		}
		return l.addExpression(ir.ExprCompose{Type: colType, Components: comps})
	}

	var columns []ir.ExpressionHandle
	switch src := l.inner(args[0]).(type) {
	case ir.ScalarType:
		if len(args) != 1 {
			break
		}
		// mat(s) puts s on the diagonal.
		diag, err := l.convert(args[0], t.Scalar)
		if err != nil {
			return 0, err
		}
		for c := uint32(0); c < uint32(t.Columns); c++ {
			comps := make([]ir.ExpressionHandle, t.Rows)
			for r := range comps {
				comps[r] = zero
				if uint32(r) == c {
					comps[r] = diag
				}
			}
			col, err := l.addExpression(ir.ExprCompose{Type: colType, Components: comps})
			if err != nil {
				return 0, err
			}
			columns = append(columns, col)
		}
		return l.addExpression(ir.ExprCompose{Type: typ, Components: columns})

	case ir.MatrixType:
		if len(args) != 1 {
			return 0, l.errorAt(call.Loc, "matrix constructor from a matrix takes one argument")
		}
		m, err := l.convert(args[0], t.Scalar)
		if err != nil {
			return 0, err
		}
		for c := uint32(0); c < uint32(t.Columns); c++ {
			if c >= uint32(src.Columns) {
				col, err := identityColumn(c, 0, nil)
				if err != nil {
					return 0, err
				}
				columns = append(columns, col)
				continue
			}
			col, err := l.addExpression(ir.ExprAccessIndex{Base: m, Index: c})
			if err != nil {
				return 0, err
			}
			switch {
			case src.Rows > t.Rows:
				col, err = l.swizzle(col, []int{0, 1, 2, 3}[:t.Rows])
			case src.Rows < t.Rows:
				col, err = identityColumn(c, uint32(src.Rows), []ir.ExpressionHandle{col})
			}
			if err != nil {
				return 0, err
			}
			columns = append(columns, col)
		}
		return l.addExpression(ir.ExprCompose{Type: typ, Components: columns})
	}

	// Whole columns need no splitting.
	if len(args) == int(t.Columns) {
		whole := true
		for _, a := range args {
			if v, ok := l.inner(a).(ir.VectorType); !ok || v.Size != t.Rows {
				whole = false
				break
			}
		}
		if whole {
			for _, a := range args {
				col, err := l.convert(a, t.Scalar)
				if err != nil {
					return 0, err
				}
				columns = append(columns, col)
			}
			return l.addExpression(ir.ExprCompose{Type: typ, Components: columns})
		}
	}

	var flat []ir.ExpressionHandle
	for _, a := range args {
		parts, err := l.scalars(a)
		if err != nil {
			return 0, l.located(err, call.Loc)
		}
		flat = append(flat, parts...)
	}
	rows := int(t.Rows)
	if len(flat) != rows*int(t.Columns) {
		return 0, l.errorAt(call.Loc, "%s constructor needs %d components, found %d", l.typeLabel(t), rows*int(t.Columns), len(flat))
	}
	for c := 0; c < int(t.Columns); c++ {
		comps := make([]ir.ExpressionHandle, rows)
		for r := 0; r < rows; r++ {
			v, err := l.convert(flat[c*rows+r], t.Scalar)
			if err != nil {
				return 0, err
			}
			comps[r] = v
		}
		col, err := l.addExpression(ir.ExprCompose{Type: colType, Components: comps})
		if err != nil {
			return 0, err
		}
		columns = append(columns, col)
	}
	return l.addExpression(ir.ExprCompose{Type: typ, Components: columns})
}
