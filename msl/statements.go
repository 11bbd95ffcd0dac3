package msl

import (
	"fmt"
	"strings"

	"github.com/gogpu/xshader/ir"
)

// writeBlock writes a block of statements.
func (w *Writer) writeBlock(block ir.Block) error {
	for _, stmt := range block {
		if err := w.writeStatement(stmt.Kind); err != nil {
			return err
		}
	}
	return nil
}

// writeStatement writes a statement based on its kind.
//
//nolint:cyclop // Statement dispatch requires handling all statement kinds
func (w *Writer) writeStatement(kind ir.StatementKind) error {
	switch k := kind.(type) {
	case ir.StmtEmit:
		return w.writeEmit(k)

	case ir.StmtBlock:
		w.writeLine("{")
		w.pushIndent()
		if err := w.writeBlock(k.Block); err != nil {
			return err
		}
		w.popIndent()
		w.writeLine("}")
		return nil

	case ir.StmtIf:
		return w.writeIf(k)

	case ir.StmtSwitch:
		return w.writeSwitch(k)

	case ir.StmtLoop:
		return w.writeLoop(k)

	case ir.StmtBreak:
		w.writeLine("break;")
		return nil

	case ir.StmtContinue:
		w.writeLine("continue;")
		return nil

	case ir.StmtReturn:
		return w.writeReturn(k)

	case ir.StmtKill:
		w.writeLine("%sdiscard_fragment();", Namespace)
		return nil

	case ir.StmtBarrier:
		w.writeBarrier(k.Flags)
		return nil

	case ir.StmtStore:
		return w.writeStore(k)

	case ir.StmtImageStore:
		return w.writeImageStore(k)

	case ir.StmtCall:
		return w.writeCallStatement(k)

	default:
		return fmt.Errorf("unsupported statement kind: %T", kind)
	}
}

// writeEmit materializes the emitted expressions that need a temporary.
func (w *Writer) writeEmit(emit ir.StmtEmit) error {
	for handle := emit.Range.Start; handle < emit.Range.End; handle++ {
		if !w.shouldBake(handle) {
			continue
		}
		if err := w.bakeExpression(handle); err != nil {
			return err
		}
	}
	return nil
}

// bakeExpression assigns an expression to a temporary and names it.
func (w *Writer) bakeExpression(handle ir.ExpressionHandle) error {
	typeName := w.writeResolutionTypeName(w.currentFunction.ExpressionTypes[handle])
	name := w.funcNamer.call(fmt.Sprintf("_e%d", handle))

	w.writeIndent()
	w.write("%s %s = ", typeName, name)
	if err := w.writeExpressionInline(handle); err != nil {
		return err
	}
	w.write(";\n")
	w.namedExpressions[handle] = name
	return nil
}

// writeIf writes an if statement.
func (w *Writer) writeIf(ifStmt ir.StmtIf) error {
	w.writeIndent()
	w.write("if (")
	if err := w.writeExpression(ifStmt.Condition); err != nil {
		return err
	}
	w.write(") {\n")
	w.pushIndent()
	if err := w.writeBlock(ifStmt.Accept); err != nil {
		return err
	}
	w.popIndent()

	if len(ifStmt.Reject) > 0 {
		w.writeLine("} else {")
		w.pushIndent()
		if err := w.writeBlock(ifStmt.Reject); err != nil {
			return err
		}
		w.popIndent()
	}
	w.writeLine("}")
	return nil
}

// writeSwitch writes a switch statement. Every case gets its own scope and
// ends with a break unless it falls through.
func (w *Writer) writeSwitch(switchStmt ir.StmtSwitch) error {
	w.writeIndent()
	w.write("switch(")
	if err := w.writeExpression(switchStmt.Selector); err != nil {
		return err
	}
	w.write(") {\n")
	w.pushIndent()

	for _, c := range switchStmt.Cases {
		switch v := c.Value.(type) {
		case ir.SwitchValueI32:
			w.writeLine("case %s: {", formatInt(int32(v)))
		case ir.SwitchValueU32:
			w.writeLine("case %du: {", uint32(v))
		case ir.SwitchValueDefault:
			w.writeLine("default: {")
		default:
			return fmt.Errorf("unsupported switch value %T", c.Value)
		}
		w.pushIndent()
		if err := w.writeBlock(c.Body); err != nil {
			return err
		}
		if !c.FallThrough {
			w.writeLine("break;")
		}
		w.popIndent()
		w.writeLine("}")
	}

	w.popIndent()
	w.writeLine("}")
	return nil
}

// writeLoop writes a loop. The continuing block runs at the top of every
// iteration but the first, so continue statements reach it too.
func (w *Writer) writeLoop(loop ir.StmtLoop) error {
	var bound string
	if w.options.ForceLoopBounding {
		bound = w.funcNamer.call("loop_bound")
		w.writeLine("%suint2 %s = %suint2(4294967295u);", Namespace, bound, Namespace)
	}

	hasContinuing := len(loop.Continuing) > 0 || loop.BreakIf != nil
	var gate string
	if hasContinuing {
		gate = w.funcNamer.call("loop_init")
		w.writeLine("bool %s = true;", gate)
	}

	w.writeLine("while(true) {")
	w.pushIndent()

	if bound != "" {
		w.writeLine("if (%sall(%s == %suint2(0u))) { break; }", Namespace, bound, Namespace)
		w.writeLine("%s -= %suint2(%s.y == 0u, 1u);", bound, Namespace, bound)
	}

	if hasContinuing {
		w.writeLine("if (!%s) {", gate)
		w.pushIndent()
		if err := w.writeBlock(loop.Continuing); err != nil {
			return err
		}
		if loop.BreakIf != nil {
			w.writeIndent()
			w.write("if (")
			if err := w.writeExpression(*loop.BreakIf); err != nil {
				return err
			}
			w.write(") {\n")
			w.pushIndent()
			w.writeLine("break;")
			w.popIndent()
			w.writeLine("}")
		}
		w.popIndent()
		w.writeLine("}")
		w.writeLine("%s = false;", gate)
	}

	if err := w.writeBlock(loop.Body); err != nil {
		return err
	}

	w.popIndent()
	w.writeLine("}")
	return nil
}

// writeReturn writes a return statement.
func (w *Writer) writeReturn(ret ir.StmtReturn) error {
	if ret.Value == nil {
		w.writeLine("return;")
		return nil
	}
	w.writeIndent()
	w.write("return ")
	if err := w.writeExpression(*ret.Value); err != nil {
		return err
	}
	w.write(";\n")
	return nil
}

// writeBarrier writes one threadgroup barrier per memory kind.
func (w *Writer) writeBarrier(flags ir.BarrierFlags) {
	var kinds []string
	if flags&ir.BarrierStorage != 0 {
		kinds = append(kinds, "mem_device")
	}
	if flags&ir.BarrierWorkGroup != 0 {
		kinds = append(kinds, "mem_threadgroup")
	}
	if flags&ir.BarrierTexture != 0 {
		kinds = append(kinds, "mem_texture")
	}
	if len(kinds) == 0 {
		kinds = append(kinds, "mem_none")
	}
	for _, kind := range kinds {
		w.writeLine("%sthreadgroup_barrier(%smem_flags::%s);", Namespace, Namespace, kind)
	}
}

// writeStore writes a store through a pointer. Pointers are references,
// so this is a plain assignment.
func (w *Writer) writeStore(store ir.StmtStore) error {
	w.writeIndent()
	if err := w.writeExpression(store.Pointer); err != nil {
		return err
	}
	w.write(" = ")
	if err := w.writeExpression(store.Value); err != nil {
		return err
	}
	w.write(";\n")
	return nil
}

// writeCallStatement writes a function call. Globals the callee touches are
// passed after the declared arguments.
func (w *Writer) writeCallStatement(call ir.StmtCall) error {
	callee := &w.module.Functions[call.Function]
	w.writeIndent()
	if call.Result != nil {
		if callee.Result == nil {
			return fmt.Errorf("call to %q uses the result of a void function", callee.Name)
		}
		name := w.funcNamer.call(fmt.Sprintf("_e%d", *call.Result))
		w.write("%s %s = ", w.writeTypeName(callee.Result.Type), name)
		w.namedExpressions[*call.Result] = name
	}

	w.write("%s(", w.getName(nameKey{kind: nameKeyFunction, handle1: uint32(call.Function)}))
	args := make([]string, 0, len(call.Arguments))
	for i, arg := range call.Arguments {
		text, err := w.captureExpression(arg)
		if err != nil {
			return err
		}
		args = append(args, text)
		if i < len(callee.Arguments) {
			if _, ok := w.module.Types[callee.Arguments[i].Type].Inner.(ir.SampledImageType); ok {
				smplr, err := w.capture(func() error { return w.writeSamplerOf(arg) })
				if err != nil {
					return err
				}
				args = append(args, smplr)
			}
		}
	}
	args = append(args, w.globalArguments(w.info.Function(call.Function))...)
	if w.needsSizes[call.Function] {
		args = append(args, sizesParamName)
	}
	w.write("%s);\n", strings.Join(args, ", "))
	return nil
}

// captureExpression renders an expression into a string.
func (w *Writer) captureExpression(handle ir.ExpressionHandle) (string, error) {
	return w.capture(func() error { return w.writeExpression(handle) })
}

// capture runs f against a scratch buffer and returns what it wrote.
func (w *Writer) capture(f func() error) (string, error) {
	saved := w.out
	w.out = strings.Builder{}
	err := f()
	text := w.out.String()
	w.out = saved
	return text, err
}
