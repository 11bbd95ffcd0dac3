package glsl

import "github.com/gogpu/xshader/ir"

// orderFunctions reorders module functions so that every callee precedes
// its callers, rewriting call handles to match. It returns the new handle
// of the entry function.
func (l *Lowerer) orderFunctions(entry ir.FunctionHandle) (ir.FunctionHandle, error) {
	funcs := l.module.Functions
	callees := make([][]ir.FunctionHandle, len(funcs))
	for i := range funcs {
		collectCalls(funcs[i].Body, &callees[i])
	}

	undefined := make(map[ir.FunctionHandle]*userFunction)
	for _, overloads := range l.functions {
		for _, o := range overloads {
			if !o.defined {
				undefined[o.handle] = o
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]uint8, len(funcs))
	order := make([]ir.FunctionHandle, 0, len(funcs))
	var visit func(h ir.FunctionHandle) error
	visit = func(h ir.FunctionHandle) error {
		switch state[h] {
		case visiting:
			return l.errorAt(l.functionLoc(h), "recursion is not allowed: %s calls itself", funcs[h].Name)
		case done:
			return nil
		}
		state[h] = visiting
		for _, c := range callees[h] {
			if o, ok := undefined[c]; ok {
				return l.errorAt(o.decl.Loc, "function %s is declared but never defined", o.decl.Name)
			}
			if err := visit(c); err != nil {
				return err
			}
		}
		state[h] = done
		order = append(order, h)
		return nil
	}
	for h := range funcs {
		if _, ok := undefined[ir.FunctionHandle(h)]; ok { //nolint:gosec // G115: arena stays far below 2^32
			continue
		}
		if err := visit(ir.FunctionHandle(h)); err != nil { //nolint:gosec // G115: arena stays far below 2^32
			return 0, err
		}
	}

	remap := make(map[ir.FunctionHandle]ir.FunctionHandle, len(order))
	for i, h := range order {
		remap[h] = ir.FunctionHandle(i) //nolint:gosec // G115: arena stays far below 2^32
	}
	sorted := make([]ir.Function, len(order))
	for i, h := range order {
		fn := funcs[h]
		for j, e := range fn.Expressions {
			if cr, ok := e.Kind.(ir.ExprCallResult); ok {
				cr.Function = remap[cr.Function]
				fn.Expressions[j].Kind = cr
			}
		}
		remapCalls(fn.Body, remap)
		sorted[i] = fn
	}
	l.module.Functions = sorted
	for _, overloads := range l.functions {
		for _, o := range overloads {
			if nh, ok := remap[o.handle]; ok {
				o.handle = nh
			}
		}
	}
	return remap[entry], nil
}

func (l *Lowerer) functionLoc(h ir.FunctionHandle) Location {
	for _, overloads := range l.functions {
		for _, o := range overloads {
			if o.handle == h && o.decl != nil {
				return o.decl.Loc
			}
		}
	}
	return Location{}
}

func collectCalls(b ir.Block, out *[]ir.FunctionHandle) {
	walkBlocks(b, func(s *ir.Statement) {
		if c, ok := s.Kind.(ir.StmtCall); ok {
			*out = append(*out, c.Function)
		}
	})
}

func remapCalls(b ir.Block, remap map[ir.FunctionHandle]ir.FunctionHandle) {
	walkBlocks(b, func(s *ir.Statement) {
		if c, ok := s.Kind.(ir.StmtCall); ok {
			c.Function = remap[c.Function]
			s.Kind = c
		}
	})
}

// walkBlocks visits every statement of b and its nested blocks. Nested
// blocks share backing arrays with the statement kinds, so edits made
// through f are visible to the caller.
func walkBlocks(b ir.Block, f func(*ir.Statement)) {
	for i := range b {
		s := &b[i]
		f(s)
		switch k := s.Kind.(type) {
		case ir.StmtBlock:
			walkBlocks(k.Block, f)
		case ir.StmtIf:
			walkBlocks(k.Accept, f)
			walkBlocks(k.Reject, f)
		case ir.StmtSwitch:
			for _, c := range k.Cases {
				walkBlocks(c.Body, f)
			}
		case ir.StmtLoop:
			walkBlocks(k.Body, f)
			walkBlocks(k.Continuing, f)
		}
	}
}
