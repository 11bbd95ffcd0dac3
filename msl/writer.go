package msl

import (
	"fmt"
	"strings"

	"github.com/gogpu/xshader/ir"
)

// nameKey identifies an IR entity for name lookup.
type nameKey struct {
	kind    nameKeyKind
	handle1 uint32
	handle2 uint32
}

type nameKeyKind uint8

const (
	nameKeyType nameKeyKind = iota
	nameKeyStructMember
	nameKeyConstant
	nameKeyGlobalVariable
	nameKeyFunction
	nameKeyFunctionArgument
	nameKeyEntryPoint
	nameKeyLocal
)

// Fixed identifiers the generated code relies on.
const (
	sizesStructName = "_mslBufferSizes"
	sizesParamName  = "_buffer_sizes"
	divHelperName   = "_xs_div"
	modHelperName   = "_xs_mod"
	samplerSuffix   = "_smplr"
)

// Writer generates MSL source code from IR.
type Writer struct {
	module   *ir.Module
	info     *ir.ModuleInfo
	options  *Options
	pipeline *PipelineOptions

	// Output buffer
	out strings.Builder

	// Current indentation level
	indent int

	// Name management
	names map[nameKey]string
	namer *namer

	// Type tracking
	typeNames     map[ir.TypeHandle]string
	structLayouts map[ir.TypeHandle][]structField

	// Entry points selected by the pipeline options, by index.
	entryPoints []int

	// Module analysis gathered before writing.
	needsDivHelper bool
	needsModHelper bool
	needsSizes     []bool // per function, transitively
	sizesGlobals   []ir.GlobalVariableHandle

	// Function context (set during function writing)
	currentFunction   *ir.Function
	currentFuncHandle ir.FunctionHandle
	currentInfo       *ir.FunctionInfo
	funcNamer         *namer
	localNames        map[uint32]string
	namedExpressions  map[ir.ExpressionHandle]string

	// Output tracking
	entryPointNames map[string]string
}

// namer generates unique identifiers.
type namer struct {
	usedNames map[string]struct{}
	counters  map[string]uint32
}

func newNamer() *namer {
	return &namer{
		usedNames: make(map[string]struct{}),
		counters:  make(map[string]uint32),
	}
}

// clone returns a namer that avoids every name used so far.
func (n *namer) clone() *namer {
	c := newNamer()
	for name := range n.usedNames {
		c.usedNames[name] = struct{}{}
	}
	for base, count := range n.counters {
		c.counters[base] = count
	}
	return c
}

// reserve marks a name as used without renaming it.
func (n *namer) reserve(name string) {
	n.usedNames[name] = struct{}{}
}

// call generates a unique name based on the given base.
func (n *namer) call(base string) string {
	escaped := escapeName(sanitizeName(base))
	if _, used := n.usedNames[escaped]; !used {
		n.usedNames[escaped] = struct{}{}
		return escaped
	}

	// Add numeric suffix
	stem := strings.TrimRight(escaped, "_")
	for {
		n.counters[stem]++
		candidate := fmt.Sprintf("%s_%d", stem, n.counters[stem])
		if _, used := n.usedNames[candidate]; !used {
			n.usedNames[candidate] = struct{}{}
			return candidate
		}
	}
}

// sanitizeName keeps identifier characters and avoids a leading digit.
func sanitizeName(base string) string {
	var b strings.Builder
	for i, r := range base {
		switch {
		case r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}

// newWriter creates a new MSL writer.
func newWriter(module *ir.Module, info *ir.ModuleInfo, options *Options, pipeline *PipelineOptions) *Writer {
	return &Writer{
		module:          module,
		info:            info,
		options:         options,
		pipeline:        pipeline,
		names:           make(map[nameKey]string),
		namer:           newNamer(),
		typeNames:       make(map[ir.TypeHandle]string),
		structLayouts:   make(map[ir.TypeHandle][]structField),
		entryPointNames: make(map[string]string),
	}
}

// String returns the generated MSL source code.
func (w *Writer) String() string {
	return w.out.String()
}

// writeModule generates MSL code for the entire module.
func (w *Writer) writeModule() error {
	// 1. Pick entry points and reject what Metal cannot express
	if err := w.selectEntryPoints(); err != nil {
		return err
	}
	w.analyze()
	if err := w.checkSupport(); err != nil {
		return err
	}

	// 2. Register all names
	w.registerNames()

	// 3. Header
	w.writeHeader()

	// 4. Write type definitions
	w.writeTypes()

	// 5. Write constants
	if err := w.writeConstants(); err != nil {
		return err
	}

	// 6. Write helper functions actually used
	w.writeHelperFunctions()

	// 7. Write functions
	if err := w.writeFunctions(); err != nil {
		return err
	}

	// 8. Write entry points
	return w.writeEntryPoints()
}

// selectEntryPoints applies PipelineOptions.EntryPoint.
func (w *Writer) selectEntryPoints() error {
	sel := w.pipeline.EntryPoint
	for i, ep := range w.module.EntryPoints {
		if sel != nil && (sel.Name != ep.Name || sel.Stage != ep.Stage) {
			continue
		}
		w.entryPoints = append(w.entryPoints, i)
	}
	if sel != nil && len(w.entryPoints) == 0 {
		return fmt.Errorf("entry point %q for the %s stage not found", sel.Name, sel.Stage)
	}
	return nil
}

// analyze finds the polyfills and runtime-array sizes the module needs.
func (w *Writer) analyze() {
	w.needsSizes = make([]bool, len(w.module.Functions))
	sizes := make(map[ir.GlobalVariableHandle]bool)
	for h := range w.module.Functions {
		fn := &w.module.Functions[h]
		for _, expr := range fn.Expressions {
			switch e := expr.Kind.(type) {
			case ir.ExprBinary:
				if e.Op != ir.BinaryDivide && e.Op != ir.BinaryModulo {
					continue
				}
				scalar, ok := ir.ScalarOf(fn.ExpressionTypes[e.Left].Inner(w.module))
				if !ok || scalar.Kind == ir.ScalarFloat {
					continue
				}
				if e.Op == ir.BinaryDivide {
					w.needsDivHelper = true
				} else {
					w.needsModHelper = true
				}
			case ir.ExprArrayLength:
				w.needsSizes[h] = true
				if g, ok := rootGlobal(fn, e.Array); ok {
					sizes[g] = true
				}
			}
		}
		// Callees always precede their callers.
		walkStatements(fn.Body, func(s ir.StatementKind) {
			if call, ok := s.(ir.StmtCall); ok && w.needsSizes[call.Function] {
				w.needsSizes[h] = true
			}
		})
	}
	for g := range w.module.GlobalVariables {
		if sizes[ir.GlobalVariableHandle(g)] {
			w.sizesGlobals = append(w.sizesGlobals, ir.GlobalVariableHandle(g))
		}
	}
}

// checkSupport rejects constructs that have no Metal equivalent.
//
//nolint:gocognit // One pass over types, expressions and interface globals
func (w *Writer) checkSupport() error {
	for _, typ := range w.module.Types {
		if usesFloat64(typ.Inner) {
			return unsupported("64-bit floats")
		}
		if arr, ok := typ.Inner.(ir.ArrayType); ok {
			switch w.module.Types[arr.Base].Inner.(type) {
			case ir.ImageType, ir.SamplerType, ir.SampledImageType:
				return unsupported("arrays of textures or samplers")
			}
		}
	}
	for h := range w.module.Functions {
		for _, expr := range w.module.Functions[h].Expressions {
			switch e := expr.Kind.(type) {
			case ir.Literal:
				if _, ok := e.Value.(ir.LiteralF64); ok {
					return unsupported("64-bit floats")
				}
			case ir.ExprAs:
				if e.Kind == ir.ScalarFloat && e.Convert != nil && *e.Convert == 8 {
					return unsupported("64-bit floats")
				}
			case ir.ExprMath:
				if e.Fun == ir.MathInverse {
					return unsupported("matrix inverse")
				}
			}
		}
	}

	for _, epIdx := range w.entryPoints {
		ep := &w.module.EntryPoints[epIdx]
		epInfo := w.info.EntryPoint(epIdx)
		for g := range w.module.GlobalVariables {
			if !epInfo.UsesGlobal(ir.GlobalVariableHandle(g)) {
				continue
			}
			global := &w.module.GlobalVariables[g]
			builtin, ok := global.IO.(ir.BuiltinBinding)
			if !ok {
				continue
			}
			switch builtin.Builtin {
			case ir.BuiltinCullDistance:
				return unsupported("cull distances")
			case ir.BuiltinViewIndex:
				return unsupported("view index")
			case ir.BuiltinPrimitiveIndex:
				if w.options.LangVersion.Less(Version2_2) {
					return unsupported("primitive id before MSL 2.2")
				}
			case ir.BuiltinClipDistance:
				if global.Space == ir.SpaceIn {
					return unsupported("clip distance inputs")
				}
			}
		}
		if w.needsSizes[ep.Function] && w.sizesBufferSlot(epIdx) == nil {
			return unsupported("runtime array length without a sizes buffer")
		}
	}
	return nil
}

func usesFloat64(inner ir.TypeInner) bool {
	switch t := inner.(type) {
	case ir.ScalarType:
		return t.Kind == ir.ScalarFloat && t.Width == 8
	case ir.VectorType:
		return t.Scalar.Kind == ir.ScalarFloat && t.Scalar.Width == 8
	case ir.MatrixType:
		return t.Scalar.Width == 8
	}
	return false
}

// registerNames assigns unique names to all IR entities.
//
//nolint:gocognit // Name registration requires handling all IR entity types
func (w *Writer) registerNames() {
	for _, fixed := range []string{sizesStructName, sizesParamName, divHelperName, modHelperName} {
		w.namer.reserve(fixed)
	}

	// Entry points first so the wrappers keep the plain names.
	for _, epIdx := range w.entryPoints {
		ep := &w.module.EntryPoints[epIdx]
		name := w.namer.call(ep.Name)
		w.names[nameKey{kind: nameKeyEntryPoint, handle1: uint32(epIdx)}] = name //nolint:gosec // G115: epIdx is valid slice index
		w.entryPointNames[ep.Name] = name
	}

	// Register type names
	for handle, typ := range w.module.Types {
		baseName := typ.Name
		if baseName == "" {
			baseName = fmt.Sprintf("type_%d", handle)
		}
		name := w.namer.call(baseName)
		w.names[nameKey{kind: nameKeyType, handle1: uint32(handle)}] = name //nolint:gosec // G115: handle is valid slice index
		w.typeNames[ir.TypeHandle(handle)] = name                           //nolint:gosec // G115: handle is valid slice index

		// Register struct member names
		if st, ok := typ.Inner.(ir.StructType); ok {
			members := newNamer()
			for memberIdx, member := range st.Members {
				memberName := member.Name
				if memberName == "" {
					memberName = fmt.Sprintf("member_%d", memberIdx)
				}
				w.names[nameKey{kind: nameKeyStructMember, handle1: uint32(handle), handle2: uint32(memberIdx)}] = members.call(memberName) //nolint:gosec // G115: handle is valid slice index
			}
		}
	}

	// Register constant names
	for handle, constant := range w.module.Constants {
		baseName := constant.Name
		if baseName == "" {
			baseName = fmt.Sprintf("const_%d", handle)
		}
		w.names[nameKey{kind: nameKeyConstant, handle1: uint32(handle)}] = w.namer.call(baseName) //nolint:gosec // G115: handle is valid slice index
	}

	// Register global variable names
	for handle, global := range w.module.GlobalVariables {
		baseName := global.Name
		if baseName == "" {
			baseName = fmt.Sprintf("global_%d", handle)
		}
		name := w.namer.call(baseName)
		w.names[nameKey{kind: nameKeyGlobalVariable, handle1: uint32(handle)}] = name //nolint:gosec // G115: handle is valid slice index
		if _, ok := w.module.Types[global.Type].Inner.(ir.SampledImageType); ok {
			w.namer.reserve(name + samplerSuffix)
		}
	}

	// Register function names
	for handle := range w.module.Functions {
		baseName := w.module.Functions[handle].Name
		if baseName == "" {
			baseName = fmt.Sprintf("function_%d", handle)
		}
		w.names[nameKey{kind: nameKeyFunction, handle1: uint32(handle)}] = w.namer.call(baseName) //nolint:gosec // G115: handle is valid slice index
	}
}

// Output helpers

// write writes text to the output. If args are provided, uses fmt.Fprintf.
//
//nolint:goprintffuncname
func (w *Writer) write(format string, args ...any) {
	if len(args) == 0 {
		w.out.WriteString(format)
	} else {
		fmt.Fprintf(&w.out, format, args...)
	}
}

// writeLine writes a line with optional format args and a newline.
//
//nolint:goprintffuncname
func (w *Writer) writeLine(format string, args ...any) {
	w.writeIndent()
	w.write(format, args...)
	w.out.WriteByte('\n')
}

// writeIndent writes the current indentation.
func (w *Writer) writeIndent() {
	for i := 0; i < w.indent; i++ {
		w.out.WriteString("    ")
	}
}

// pushIndent increases indentation.
func (w *Writer) pushIndent() {
	w.indent++
}

// popIndent decreases indentation.
func (w *Writer) popIndent() {
	if w.indent > 0 {
		w.indent--
	}
}

// writeHeader writes the MSL file header.
func (w *Writer) writeHeader() {
	w.writeLine("// language: metal%s", w.options.LangVersion)
	w.writeLine("#include <metal_stdlib>")
	w.writeLine("#include <simd/simd.h>")
	w.writeLine("")
	w.writeLine("using metal::uint;")
	w.writeLine("")
}

// writeHelperFunctions writes the polyfills the module uses.
func (w *Writer) writeHelperFunctions() {
	if w.needsDivHelper {
		w.writeLine("template <typename T, typename D>")
		w.writeLine("T %s(T lhs, D rhs) {", divHelperName)
		w.pushIndent()
		w.writeLine("return lhs / metal::select(rhs, D(1), rhs == D(0));")
		w.popIndent()
		w.writeLine("}")
		w.writeLine("")
	}
	if w.needsModHelper {
		w.writeLine("template <typename T, typename D>")
		w.writeLine("T %s(T lhs, D rhs) {", modHelperName)
		w.pushIndent()
		w.writeLine("return lhs %% metal::select(rhs, D(1), rhs == D(0));")
		w.popIndent()
		w.writeLine("}")
		w.writeLine("")
	}
	if len(w.sizesGlobals) > 0 {
		w.writeLine("struct %s {", sizesStructName)
		w.pushIndent()
		for _, g := range w.sizesGlobals {
			w.writeLine("uint size%d;", g)
		}
		w.popIndent()
		w.writeLine("};")
		w.writeLine("")
	}
}

// getTypeName returns the MSL type name for a type handle.
func (w *Writer) getTypeName(handle ir.TypeHandle) string {
	if name, ok := w.typeNames[handle]; ok {
		return name
	}
	return fmt.Sprintf("type_%d", handle)
}

// getName returns the registered name for a name key.
func (w *Writer) getName(key nameKey) string {
	if name, ok := w.names[key]; ok {
		return name
	}
	return fmt.Sprintf("unnamed_%d_%d", key.kind, key.handle1)
}

// rootGlobal follows an access chain back to the global it starts at.
func rootGlobal(fn *ir.Function, h ir.ExpressionHandle) (ir.GlobalVariableHandle, bool) {
	for {
		switch e := fn.Expressions[h].Kind.(type) {
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

// walkStatements visits every statement in a block tree.
func walkStatements(block ir.Block, f func(ir.StatementKind)) {
	for _, stmt := range block {
		f(stmt.Kind)
		switch s := stmt.Kind.(type) {
		case ir.StmtBlock:
			walkStatements(s.Block, f)
		case ir.StmtIf:
			walkStatements(s.Accept, f)
			walkStatements(s.Reject, f)
		case ir.StmtSwitch:
			for _, c := range s.Cases {
				walkStatements(c.Body, f)
			}
		case ir.StmtLoop:
			walkStatements(s.Body, f)
			walkStatements(s.Continuing, f)
		}
	}
}
