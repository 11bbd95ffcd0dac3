package glsl

import (
	"fmt"

	"github.com/gogpu/xshader/ir"
)

// funcCtx holds the state of the function being lowered.
type funcCtx struct {
	fn     *ir.Function
	handle ir.FunctionHandle
	result *ir.TypeHandle
	scopes []map[string]symbol

	// emitStart is the first expression not yet covered by an Emit.
	emitStart ir.ExpressionHandle
}

// symbol is a name declared inside a function. Exactly one field is set.
type symbol struct {
	local    *uint32
	argument *uint32
	constant *constValue
	handle   ir.ConstantHandle
}

func (c *funcCtx) pushScope() {
	c.scopes = append(c.scopes, make(map[string]symbol))
}

func (c *funcCtx) popScope() {
	c.scopes = c.scopes[:len(c.scopes)-1]
}

func (c *funcCtx) declare(name string, sym symbol) {
	c.scopes[len(c.scopes)-1][name] = sym
}

func (c *funcCtx) declaredInScope(name string) bool {
	_, ok := c.scopes[len(c.scopes)-1][name]
	return ok
}

func (c *funcCtx) lookup(name string) (symbol, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if sym, ok := c.scopes[i][name]; ok {
			return sym, true
		}
	}
	return symbol{}, false
}

// addExpression appends an expression and resolves its type.
func (l *Lowerer) addExpression(kind ir.ExpressionKind) (ir.ExpressionHandle, error) {
	fn := l.fn.fn
	handle := ir.ExpressionHandle(len(fn.Expressions)) //nolint:gosec // G115: arena stays far below 2^32
	fn.Expressions = append(fn.Expressions, ir.Expression{Kind: kind})
	res, err := ir.ResolveExpressionType(l.module, fn, handle)
	if err != nil {
		fn.Expressions = fn.Expressions[:handle]
		return 0, err
	}
	fn.ExpressionTypes = append(fn.ExpressionTypes, res)
	return handle, nil
}

// flush covers pending expressions with an Emit statement.
func (l *Lowerer) flush(target *ir.Block) {
	end := ir.ExpressionHandle(len(l.fn.fn.Expressions)) //nolint:gosec // G115: arena stays far below 2^32
	if end > l.fn.emitStart {
		*target = append(*target, ir.Statement{Kind: ir.StmtEmit{Range: ir.Range{Start: l.fn.emitStart, End: end}}})
	}
	l.fn.emitStart = end
}

// push appends a statement after emitting everything it depends on.
func (l *Lowerer) push(target *ir.Block, kind ir.StatementKind) {
	l.flush(target)
	*target = append(*target, ir.Statement{Kind: kind})
}

func (l *Lowerer) newLocal(name string, typ ir.TypeHandle) uint32 {
	idx := uint32(len(l.fn.fn.LocalVars)) //nolint:gosec // G115: local count is small
	l.fn.fn.LocalVars = append(l.fn.fn.LocalVars, ir.LocalVariable{Name: name, Type: typ})
	return idx
}

// lowerStatements lowers statements into target in the current scope.
func (l *Lowerer) lowerStatements(stmts []Stmt, target *ir.Block) error {
	for _, s := range stmts {
		if err := l.lowerStatement(s, target); err != nil {
			return err
		}
	}
	return nil
}

// lowerNested lowers a statement into a fresh block with its own scope.
// The caller must flush its own pending expressions first.
func (l *Lowerer) lowerNested(s Stmt) (ir.Block, error) {
	var block ir.Block
	if s == nil {
		return block, nil
	}
	l.fn.pushScope()
	defer l.fn.popScope()
	var err error
	if b, ok := s.(*BlockStmt); ok {
		err = l.lowerStatements(b.Stmts, &block)
	} else {
		err = l.lowerStatement(s, &block)
	}
	if err != nil {
		return nil, err
	}
	l.flush(&block)
	return block, nil
}

// located attaches loc to an error that has no position yet.
func (l *Lowerer) located(err error, loc Location) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*SyntaxError); ok {
		return err
	}
	return l.errorAt(loc, "%s", err)
}

//nolint:gocyclo,cyclop,funlen // one case per statement kind
func (l *Lowerer) lowerStatement(s Stmt, target *ir.Block) error {
	switch s := s.(type) {
	case *EmptyStmt:
		return nil

	case *BlockStmt:
		l.flush(target)
		block, err := l.lowerNested(s)
		if err != nil {
			return err
		}
		l.push(target, ir.StmtBlock{Block: block})
		return nil

	case *DeclStmt:
		return l.lowerLocalDecl(s.Var, target)

	case *ExprStmt:
		return l.located(l.lowerEffect(s.X, target), s.Pos())

	case *IfStmt:
		cond, err := l.condition(s.Cond, target)
		if err != nil {
			return l.located(err, s.Loc)
		}
		l.flush(target)
		accept, err := l.lowerNested(s.Then)
		if err != nil {
			return err
		}
		reject, err := l.lowerNested(s.Else)
		if err != nil {
			return err
		}
		l.push(target, ir.StmtIf{Condition: cond, Accept: accept, Reject: reject})
		return nil

	case *ForStmt:
		l.fn.pushScope()
		defer l.fn.popScope()
		if s.Init != nil {
			if err := l.lowerStatement(s.Init, target); err != nil {
				return err
			}
		}
		l.flush(target)
		var body ir.Block
		if s.Cond != nil {
			if err := l.breakUnless(s.Cond, &body); err != nil {
				return l.located(err, s.Loc)
			}
		}
		inner, err := l.lowerNested(s.Body)
		if err != nil {
			return err
		}
		body = append(body, inner...)
		var continuing ir.Block
		if s.Update != nil {
			if err := l.lowerEffect(s.Update, &continuing); err != nil {
				return l.located(err, s.Loc)
			}
			l.flush(&continuing)
		}
		l.push(target, ir.StmtLoop{Body: body, Continuing: continuing})
		return nil

	case *WhileStmt:
		l.flush(target)
		var body ir.Block
		if err := l.breakUnless(s.Cond, &body); err != nil {
			return l.located(err, s.Loc)
		}
		inner, err := l.lowerNested(s.Body)
		if err != nil {
			return err
		}
		body = append(body, inner...)
		l.push(target, ir.StmtLoop{Body: body})
		return nil

	case *DoWhileStmt:
		l.flush(target)
		body, err := l.lowerNested(s.Body)
		if err != nil {
			return err
		}
		var continuing ir.Block
		cond, err := l.condition(s.Cond, &continuing)
		if err != nil {
			return l.located(err, s.Loc)
		}
		stop, err := l.addExpression(ir.ExprUnary{Op: ir.UnaryLogicalNot, Expr: cond})
		if err != nil {
			return l.located(err, s.Loc)
		}
		l.flush(&continuing)
		l.push(target, ir.StmtLoop{Body: body, Continuing: continuing, BreakIf: &stop})
		return nil

	case *SwitchStmt:
		return l.lowerSwitch(s, target)

	case *BreakStmt:
		l.push(target, ir.StmtBreak{})
		return nil

	case *ContinueStmt:
		l.push(target, ir.StmtContinue{})
		return nil

	case *DiscardStmt:
		if l.stage != ir.StageFragment {
			return l.errorAt(s.Loc, "discard is only valid in fragment shaders")
		}
		l.push(target, ir.StmtKill{})
		return nil

	case *ReturnStmt:
		if s.Value == nil {
			if l.fn.result != nil {
				return l.errorAt(s.Loc, "function must return a value")
			}
			l.push(target, ir.StmtReturn{})
			return nil
		}
		if l.fn.result == nil {
			return l.errorAt(s.Loc, "void function cannot return a value")
		}
		value, err := l.expr(l.bindInitializer(s.Value, *l.fn.result), target)
		if err != nil {
			return l.located(err, s.Loc)
		}
		value, err = l.coerce(value, *l.fn.result)
		if err != nil {
			return l.located(err, s.Loc)
		}
		l.push(target, ir.StmtReturn{Value: &value})
		return nil
	}
	return fmt.Errorf("unexpected statement %T", s)
}

// breakUnless appends "if (!cond) break;" to a loop body.
func (l *Lowerer) breakUnless(cond Expr, body *ir.Block) error {
	c, err := l.condition(cond, body)
	if err != nil {
		return err
	}
	stop, err := l.addExpression(ir.ExprUnary{Op: ir.UnaryLogicalNot, Expr: c})
	if err != nil {
		return err
	}
	l.push(body, ir.StmtIf{Condition: stop, Accept: ir.Block{{Kind: ir.StmtBreak{}}}})
	return nil
}

// condition lowers an expression that must be a scalar bool.
func (l *Lowerer) condition(e Expr, target *ir.Block) (ir.ExpressionHandle, error) {
	h, err := l.expr(e, target)
	if err != nil {
		return 0, err
	}
	if l.inner(h) != ir.TypeInner(ir.ScalarBoolean) {
		return 0, l.errorAt(e.Pos(), "condition must be a bool, found %s", l.typeLabel(l.inner(h)))
	}
	return h, nil
}

func (l *Lowerer) lowerSwitch(s *SwitchStmt, target *ir.Block) error {
	selector, err := l.expr(s.Selector, target)
	if err != nil {
		return l.located(err, s.Loc)
	}
	scalar, ok := l.inner(selector).(ir.ScalarType)
	if !ok || (scalar != ir.ScalarI32 && scalar != ir.ScalarU32) {
		return l.errorAt(s.Loc, "switch selector must be an int or uint")
	}
	l.flush(target)

	l.fn.pushScope()
	defer l.fn.popScope()

	seen := make(map[int64]bool)
	hasDefault := false
	cases := make([]ir.SwitchCase, 0, len(s.Cases))
	for i, clause := range s.Cases {
		var value ir.SwitchValue = ir.SwitchValueDefault{}
		if clause.Value == nil {
			if hasDefault {
				return l.errorAt(clause.Loc, "duplicate default label")
			}
			hasDefault = true
		} else {
			v, err := l.evalInt(clause.Value)
			if err != nil {
				return l.errorAt(clause.Loc, "case label must be an integer constant")
			}
			if seen[v] {
				return l.errorAt(clause.Loc, "duplicate case label %d", v)
			}
			seen[v] = true
			if scalar == ir.ScalarU32 {
				value = ir.SwitchValueU32(uint32(v)) //nolint:gosec // G115: GLSL case labels are 32-bit
			} else {
				value = ir.SwitchValueI32(int32(v)) //nolint:gosec // G115: GLSL case labels are 32-bit
			}
		}

		var body ir.Block
		if err := l.lowerStatements(clause.Body, &body); err != nil {
			return err
		}
		l.flush(&body)
		cases = append(cases, ir.SwitchCase{
			Value:       value,
			Body:        body,
			FallThrough: i < len(s.Cases)-1 && !endsFlow(clause.Body),
		})
	}
	if !hasDefault {
		cases = append(cases, ir.SwitchCase{Value: ir.SwitchValueDefault{}})
	}
	l.push(target, ir.StmtSwitch{Selector: selector, Cases: cases})
	return nil
}

// endsFlow reports whether a case body never falls into the next case.
func endsFlow(stmts []Stmt) bool {
	if len(stmts) == 0 {
		return false
	}
	switch last := stmts[len(stmts)-1].(type) {
	case *BreakStmt, *ContinueStmt, *ReturnStmt, *DiscardStmt:
		return true
	case *BlockStmt:
		return endsFlow(last.Stmts)
	}
	return false
}

//nolint:gocognit // const folding falls back to a variable
func (l *Lowerer) lowerLocalDecl(d *VarDecl, target *ir.Block) error {
	switch d.Quals.Storage {
	case StorageNone, StorageConst:
	default:
		return l.errorAt(d.Loc, "local variables cannot use this storage qualifier")
	}
	for _, decl := range d.Names {
		if l.fn.declaredInScope(decl.Name) {
			return l.errorAt(decl.Loc, "redefinition of %q", decl.Name)
		}
		typ, err := l.declaredType(d.Type, decl)
		if err != nil {
			return l.errorAt(decl.Loc, "%s", err)
		}
		if isOpaque(elementInner(l.module, l.module.Types[typ].Inner)) {
			return l.errorAt(decl.Loc, "%q: opaque types cannot be local variables", decl.Name)
		}
		if arr, ok := l.module.Types[typ].Inner.(ir.ArrayType); ok && arr.Size.Constant == nil {
			return l.errorAt(decl.Loc, "local array %q needs a size", decl.Name)
		}

		if d.Quals.Storage == StorageConst {
			if decl.Init == nil {
				return l.errorAt(decl.Loc, "const %q needs an initializer", decl.Name)
			}
			if v, err := l.evalConst(l.bindInitializer(decl.Init, typ)); err == nil {
				v, err = l.convertConst(v, typ)
				if err != nil {
					return l.errorAt(decl.Loc, "const %q: %s", decl.Name, err)
				}
				value := v
				l.fn.declare(decl.Name, symbol{constant: &value, handle: l.materialize(decl.Name, v)})
				continue
			}
			// Not foldable here, such as a const copy of a parameter.
		}

		var value *ir.ExpressionHandle
		if decl.Init != nil {
			h, err := l.expr(l.bindInitializer(decl.Init, typ), target)
			if err != nil {
				return l.located(err, decl.Loc)
			}
			h, err = l.coerce(h, typ)
			if err != nil {
				return l.located(err, decl.Loc)
			}
			value = &h
		}
		local := l.newLocal(decl.Name, typ)
		if value != nil {
			ptr, err := l.addExpression(ir.ExprLocalVariable{Variable: local})
			if err != nil {
				return err
			}
			l.push(target, ir.StmtStore{Pointer: ptr, Value: *value})
		}
		l.fn.declare(decl.Name, symbol{local: &local})
	}
	return nil
}
