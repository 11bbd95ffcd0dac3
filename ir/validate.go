package ir

import (
	"fmt"
	"math/bits"
)

// Validate checks module against its structural invariants and against the
// allowed capability set. On success it returns the analysis the backends
// need. Structural problems are reported before capability problems; the
// returned error is a *StructuralError or a *CapabilityError.
func Validate(module *Module, caps Capabilities) (*ModuleInfo, error) {
	if module == nil {
		return nil, &StructuralError{Detail: "module is nil"}
	}

	v := &validator{module: module}
	v.validateModule()
	if len(v.errors) > 0 {
		return nil, v.errors[0]
	}

	info := v.analyze()
	if len(v.errors) > 0 {
		return nil, v.errors[0]
	}

	if missing := info.used &^ caps; missing != 0 {
		lowest := Capabilities(1) << bits.TrailingZeros32(uint32(missing))
		return nil, &CapabilityError{Feature: lowest}
	}
	return info, nil
}

type validator struct {
	module *Module
	errors []*StructuralError
	ctx    validationContext
}

type validationContext struct {
	handle       FunctionHandle
	function     *Function
	functionName string
	loopDepth    int
	switchDepth  int
	inContinuing bool
}

func (v *validator) validateModule() {
	v.validateTypes()
	v.validateConstants()
	v.validateGlobalVariables()
	v.validateFunctions()
	v.validateEntryPoints()
}

func (v *validator) validateTypes() {
	for i := range v.module.Types {
		v.validateType(TypeHandle(i), &v.module.Types[i]) //nolint:gosec // G115: bounded by table length
	}
}

func validScalar(s ScalarType) bool {
	switch s.Kind {
	case ScalarBool:
		return s.Width == 1
	case ScalarFloat:
		return s.Width == 2 || s.Width == 4 || s.Width == 8
	case ScalarSint, ScalarUint:
		return s.Width == 4 || s.Width == 8
	}
	return false
}

func validVectorSize(size VectorSize) bool {
	return size == Vec2 || size == Vec3 || size == Vec4
}

//nolint:gocognit,cyclop // one case per type shape
func (v *validator) validateType(handle TypeHandle, typ *Type) {
	// Types may only refer to types declared before them.
	before := func(ref TypeHandle) bool { return ref < handle }

	switch inner := typ.Inner.(type) {
	case nil:
		v.addError("type [%d] has no shape", handle)
	case ScalarType:
		if !validScalar(inner) {
			v.addError("type [%d]: invalid %s scalar of width %d", handle, inner.Kind, inner.Width)
		}
	case VectorType:
		if !validVectorSize(inner.Size) {
			v.addError("type [%d]: vector size must be 2, 3 or 4, got %d", handle, inner.Size)
		}
		if !validScalar(inner.Scalar) {
			v.addError("type [%d]: invalid vector scalar %s/%d", handle, inner.Scalar.Kind, inner.Scalar.Width)
		}
	case MatrixType:
		if !validVectorSize(inner.Columns) || !validVectorSize(inner.Rows) {
			v.addError("type [%d]: matrix must be 2..4 by 2..4, got %dx%d", handle, inner.Columns, inner.Rows)
		}
		if inner.Scalar.Kind != ScalarFloat || !validScalar(inner.Scalar) {
			v.addError("type [%d]: matrix scalar must be float", handle)
		}
	case ArrayType:
		if !before(inner.Base) {
			v.addError("type [%d]: array element type [%d] is not declared before it", handle, inner.Base)
		}
		if inner.Size.Constant != nil && *inner.Size.Constant == 0 {
			v.addError("type [%d]: array size must be positive", handle)
		}
	case StructType:
		if len(inner.Members) == 0 {
			v.addError("type [%d]: struct %q has no members", handle, typ.Name)
		}
		for i, member := range inner.Members {
			if !before(member.Type) {
				v.addError("type [%d]: member %d (%s) has dangling type [%d]", handle, i, member.Name, member.Type)
				continue
			}
			if arr, ok := v.module.Types[member.Type].Inner.(ArrayType); ok && arr.Size.Constant == nil && i != len(inner.Members)-1 {
				v.addError("type [%d]: runtime-sized member %s must be last", handle, member.Name)
			}
		}
	case PointerType:
		if !before(inner.Base) {
			v.addError("type [%d]: pointer base [%d] is not declared before it", handle, inner.Base)
		}
	case ValuePointerType, SamplerType:
	case ImageType:
	case SampledImageType:
		if inner.Image.Class == ImageClassStorage {
			v.addError("type [%d]: storage images cannot be sampled", handle)
		}
	default:
		v.addError("type [%d]: unknown shape %T", handle, inner)
	}
}

func (v *validator) validateConstants() {
	for i, c := range v.module.Constants {
		if !v.validType(c.Type) {
			v.addError("constant [%d] %q has dangling type [%d]", i, c.Name, c.Type)
			continue
		}
		switch value := c.Value.(type) {
		case ScalarValue:
			if _, ok := v.module.Types[c.Type].Inner.(ScalarType); !ok {
				v.addError("constant [%d] %q: scalar value for non-scalar type", i, c.Name)
			}
		case CompositeValue:
			for _, comp := range value.Components {
				if int(comp) >= i {
					v.addError("constant [%d] %q: component [%d] is not declared before it", i, c.Name, comp)
				}
			}
		case ZeroConstantValue:
		default:
			v.addError("constant [%d] %q has no value", i, c.Name)
		}
	}
}

//nolint:gocognit // bindings and interface checks share one walk
func (v *validator) validateGlobalVariables() {
	resources := make(map[ResourceBinding]string)
	locations := make(map[AddressSpace]map[uint32]string)
	builtins := make(map[BuiltinValue]string)

	for i := range v.module.GlobalVariables {
		gv := &v.module.GlobalVariables[i]
		if !v.validType(gv.Type) {
			v.addError("global variable [%d] %q has dangling type [%d]", i, gv.Name, gv.Type)
			continue
		}
		if gv.Init != nil && int(*gv.Init) >= len(v.module.Constants) {
			v.addError("global variable [%d] %q has dangling initializer [%d]", i, gv.Name, *gv.Init)
		}

		switch gv.Space {
		case SpaceUniform, SpaceStorage, SpaceHandle:
			if gv.Binding == nil {
				v.addError("resource %q has no binding", gv.Name)
				continue
			}
			if other, dup := resources[*gv.Binding]; dup {
				v.addError("resources %q and %q share %s", other, gv.Name, *gv.Binding)
				continue
			}
			resources[*gv.Binding] = gv.Name
			if img, ok := v.storageImage(gv.Type); ok && img.Format == FormatUnknown && img.Access != StorageStore {
				v.addError("storage image %q needs a format unless it is write-only", gv.Name)
			}

		case SpaceIn, SpaceOut:
			switch b := gv.IO.(type) {
			case LocationBinding:
				if locations[gv.Space] == nil {
					locations[gv.Space] = make(map[uint32]string)
				}
				if other, dup := locations[gv.Space][b.Location]; dup {
					v.addError("%s variables %q and %q share location %d", gv.Space, other, gv.Name, b.Location)
					continue
				}
				locations[gv.Space][b.Location] = gv.Name
			case BuiltinBinding:
				if other, dup := builtins[b.Builtin]; dup {
					v.addError("builtin %s is bound twice (%q and %q)", b.Builtin, other, gv.Name)
					continue
				}
				builtins[b.Builtin] = gv.Name
			default:
				v.addError("%s variable %q has no interface binding", gv.Space, gv.Name)
			}

		case SpaceFunction:
			v.addError("global variable %q cannot live in the function space", gv.Name)
		}
	}
}

// storageImage returns the storage image a global holds, directly or as
// array elements.
func (v *validator) storageImage(handle TypeHandle) (ImageType, bool) {
	inner := v.module.Types[handle].Inner
	if arr, ok := inner.(ArrayType); ok && v.validType(arr.Base) {
		inner = v.module.Types[arr.Base].Inner
	}
	img, ok := inner.(ImageType)
	return img, ok && img.Class == ImageClassStorage
}

func (v *validator) validateFunctions() {
	for i := range v.module.Functions {
		fn := &v.module.Functions[i]
		v.ctx = validationContext{
			handle:       FunctionHandle(i), //nolint:gosec // G115: bounded by arena length
			function:     fn,
			functionName: functionLabel(fn, i),
		}
		v.validateFunction(fn)
	}
	v.ctx = validationContext{}
}

func functionLabel(fn *Function, index int) string {
	if fn.Name != "" {
		return fn.Name
	}
	return fmt.Sprintf("[%d]", index)
}

func (v *validator) validateFunction(fn *Function) {
	for i, arg := range fn.Arguments {
		if !v.validType(arg.Type) {
			v.addFunctionError("argument %d (%s) has dangling type [%d]", i, arg.Name, arg.Type)
		}
	}
	if fn.Result != nil && !v.validType(fn.Result.Type) {
		v.addFunctionError("result has dangling type [%d]", fn.Result.Type)
	}
	for i, local := range fn.LocalVars {
		if !v.validType(local.Type) {
			v.addFunctionError("local %d (%s) has dangling type [%d]", i, local.Name, local.Type)
		}
		if local.Init != nil && int(*local.Init) >= len(fn.Expressions) {
			v.addFunctionError("local %d (%s) has dangling initializer [%d]", i, local.Name, *local.Init)
		}
	}
	if len(fn.ExpressionTypes) != len(fn.Expressions) {
		v.addFunctionError("%d expressions but %d expression types", len(fn.Expressions), len(fn.ExpressionTypes))
		return
	}
	for i := range fn.Expressions {
		handle := ExpressionHandle(i) //nolint:gosec // G115: bounded by arena length
		v.validateExpression(handle, &fn.Expressions[i])
		if res := fn.ExpressionTypes[i]; res.Handle != nil && !v.validType(*res.Handle) {
			v.addExpressionError(handle, "resolved to dangling type [%d]", *res.Handle)
		}
	}
	v.validateBlock(fn.Body)
}

//nolint:gocyclo,cyclop,funlen,gocognit // one case per expression kind
func (v *validator) validateExpression(handle ExpressionHandle, expr *Expression) {
	fn := v.ctx.function
	operand := func(h ExpressionHandle) {
		if h >= handle {
			v.addExpressionError(handle, "operand [%d] is not evaluated before it", h)
		}
	}
	optional := func(h *ExpressionHandle) {
		if h != nil {
			operand(*h)
		}
	}

	switch e := expr.Kind.(type) {
	case nil:
		v.addExpressionError(handle, "expression has no kind")
	case Literal:
		if e.Value == nil {
			v.addExpressionError(handle, "literal has no value")
		}
	case ExprConstant:
		if int(e.Constant) >= len(v.module.Constants) {
			v.addExpressionError(handle, "dangling constant [%d]", e.Constant)
		}
	case ExprZeroValue:
		if !v.validType(e.Type) {
			v.addExpressionError(handle, "dangling type [%d]", e.Type)
		}
	case ExprCompose:
		if !v.validType(e.Type) {
			v.addExpressionError(handle, "dangling type [%d]", e.Type)
		}
		for _, c := range e.Components {
			operand(c)
		}
	case ExprAccess:
		operand(e.Base)
		operand(e.Index)
	case ExprAccessIndex:
		operand(e.Base)
	case ExprSplat:
		operand(e.Value)
	case ExprSwizzle:
		operand(e.Vector)
		if !validVectorSize(e.Size) {
			v.addExpressionError(handle, "swizzle size must be 2, 3 or 4")
		}
	case ExprFunctionArgument:
		if int(e.Index) >= len(fn.Arguments) {
			v.addExpressionError(handle, "argument %d out of range", e.Index)
		}
	case ExprGlobalVariable:
		if int(e.Variable) >= len(v.module.GlobalVariables) {
			v.addExpressionError(handle, "dangling global variable [%d]", e.Variable)
		}
	case ExprLocalVariable:
		if int(e.Variable) >= len(fn.LocalVars) {
			v.addExpressionError(handle, "dangling local variable %d", e.Variable)
		}
	case ExprLoad:
		operand(e.Pointer)
	case ExprImageSample:
		operand(e.Image)
		operand(e.Sampler)
		operand(e.Coordinate)
		optional(e.ArrayIndex)
		optional(e.Offset)
		optional(e.DepthRef)
		switch level := e.Level.(type) {
		case SampleLevelExact:
			operand(level.Level)
		case SampleLevelBias:
			operand(level.Bias)
		case SampleLevelGradient:
			operand(level.X)
			operand(level.Y)
		}
	case ExprImageLoad:
		operand(e.Image)
		operand(e.Coordinate)
		optional(e.ArrayIndex)
		optional(e.Sample)
		optional(e.Level)
	case ExprImageQuery:
		operand(e.Image)
		if size, ok := e.Query.(ImageQuerySize); ok {
			optional(size.Level)
		}
	case ExprUnary:
		operand(e.Expr)
	case ExprBinary:
		operand(e.Left)
		operand(e.Right)
	case ExprSelect:
		operand(e.Condition)
		operand(e.Accept)
		operand(e.Reject)
	case ExprDerivative:
		operand(e.Expr)
	case ExprRelational:
		operand(e.Argument)
	case ExprMath:
		operand(e.Arg)
		args := []*ExpressionHandle{e.Arg1, e.Arg2, e.Arg3}
		for i, arg := range args {
			optional(arg)
			if want := e.Fun.ArgumentCount(); (i+1 < want) != (arg != nil) {
				v.addExpressionError(handle, "math function %d takes %d arguments", e.Fun, want)
				break
			}
		}
	case ExprAs:
		operand(e.Expr)
	case ExprCallResult:
		if int(e.Function) >= len(v.module.Functions) {
			v.addExpressionError(handle, "dangling function [%d]", e.Function)
		}
	case ExprArrayLength:
		operand(e.Array)
	default:
		v.addExpressionError(handle, "unknown expression %T", e)
	}
}

func (v *validator) validateBlock(block Block) {
	for i := range block {
		v.validateStatement(&block[i])
	}
}

//nolint:gocyclo,cyclop,funlen,gocognit // one case per statement kind
func (v *validator) validateStatement(stmt *Statement) {
	fn := v.ctx.function
	expr := func(h ExpressionHandle, what string) {
		if int(h) >= len(fn.Expressions) {
			v.addFunctionError("%s refers to dangling expression [%d]", what, h)
		}
	}

	switch s := stmt.Kind.(type) {
	case StmtEmit:
		if s.Range.Start > s.Range.End || int(s.Range.End) > len(fn.Expressions) {
			v.addFunctionError("emit range [%d..%d) is out of bounds", s.Range.Start, s.Range.End)
		}
	case StmtBlock:
		v.validateBlock(s.Block)
	case StmtIf:
		expr(s.Condition, "if condition")
		v.validateBlock(s.Accept)
		v.validateBlock(s.Reject)
	case StmtSwitch:
		expr(s.Selector, "switch selector")
		defaults := 0
		seen := make(map[SwitchValue]bool)
		for _, c := range s.Cases {
			if _, ok := c.Value.(SwitchValueDefault); ok {
				defaults++
			} else if seen[c.Value] {
				v.addFunctionError("duplicate switch case %v", c.Value)
			}
			seen[c.Value] = true
		}
		if defaults > 1 {
			v.addFunctionError("switch has %d default cases", defaults)
		}
		v.ctx.switchDepth++
		for _, c := range s.Cases {
			v.validateBlock(c.Body)
		}
		v.ctx.switchDepth--
	case StmtLoop:
		saved := v.ctx
		v.ctx.loopDepth++
		v.ctx.switchDepth = 0
		v.validateBlock(s.Body)
		v.ctx.inContinuing = true
		v.validateBlock(s.Continuing)
		v.ctx = saved
		if s.BreakIf != nil {
			expr(*s.BreakIf, "break-if condition")
		}
	case StmtBreak:
		if v.ctx.loopDepth == 0 && v.ctx.switchDepth == 0 {
			v.addFunctionError("break outside of a loop or switch")
		}
		if v.ctx.inContinuing {
			v.addFunctionError("break inside a continuing block")
		}
	case StmtContinue:
		if v.ctx.loopDepth == 0 {
			v.addFunctionError("continue outside of a loop")
		}
		if v.ctx.inContinuing {
			v.addFunctionError("continue inside a continuing block")
		}
	case StmtReturn:
		if v.ctx.inContinuing {
			v.addFunctionError("return inside a continuing block")
		}
		switch {
		case s.Value != nil && fn.Result == nil:
			v.addFunctionError("returns a value from a void function")
		case s.Value == nil && fn.Result != nil:
			v.addFunctionError("returns without a value")
		case s.Value != nil:
			expr(*s.Value, "return value")
		}
	case StmtKill, StmtBarrier:
	case StmtStore:
		expr(s.Pointer, "store pointer")
		expr(s.Value, "store value")
	case StmtImageStore:
		expr(s.Image, "image store")
		expr(s.Coordinate, "image store coordinate")
		expr(s.Value, "image store value")
		if s.ArrayIndex != nil {
			expr(*s.ArrayIndex, "image store layer")
		}
	case StmtCall:
		if s.Function >= v.ctx.handle {
			v.addFunctionError("calls function [%d], which is not declared before the caller (recursion is not allowed)", s.Function)
			return
		}
		callee := &v.module.Functions[s.Function]
		if len(s.Arguments) != len(callee.Arguments) {
			v.addFunctionError("call to %s passes %d arguments, want %d", callee.Name, len(s.Arguments), len(callee.Arguments))
		}
		for _, arg := range s.Arguments {
			expr(arg, "call argument")
		}
		if (s.Result != nil) != (callee.Result != nil) {
			v.addFunctionError("call to %s does not match its result", callee.Name)
		}
		if s.Result != nil {
			expr(*s.Result, "call result")
		}
	default:
		v.addFunctionError("unknown statement %T", s)
	}
}

func (v *validator) validateEntryPoints() {
	type key struct {
		stage ShaderStage
		name  string
	}
	seen := make(map[key]bool)
	for _, ep := range v.module.EntryPoints {
		if int(ep.Function) >= len(v.module.Functions) {
			v.addError("entry point %q references missing function [%d]", ep.Name, ep.Function)
			continue
		}
		k := key{ep.Stage, ep.Name}
		if seen[k] {
			v.addError("duplicate %s entry point %q", ep.Stage, ep.Name)
		}
		seen[k] = true

		if ep.Stage > StageCompute {
			v.addError("entry point %q has unknown stage %d", ep.Name, ep.Stage)
		}
		if ep.Stage == StageCompute {
			for dim, size := range ep.Workgroup {
				if size == 0 {
					v.addError("compute entry point %q has zero workgroup size in dimension %d", ep.Name, dim)
					break
				}
			}
		}
		if fn := &v.module.Functions[ep.Function]; len(fn.Arguments) != 0 || fn.Result != nil {
			v.addError("entry point %q must take no arguments and return nothing", ep.Name)
		}
	}
}

func (v *validator) validType(handle TypeHandle) bool {
	return int(handle) < len(v.module.Types)
}

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, &StructuralError{Detail: fmt.Sprintf(format, args...)})
}

func (v *validator) addFunctionError(format string, args ...any) {
	v.errors = append(v.errors, &StructuralError{
		Detail:   fmt.Sprintf(format, args...),
		Function: v.ctx.functionName,
	})
}

func (v *validator) addExpressionError(handle ExpressionHandle, format string, args ...any) {
	h := handle
	v.errors = append(v.errors, &StructuralError{
		Detail:     fmt.Sprintf(format, args...),
		Function:   v.ctx.functionName,
		Expression: &h,
	})
}
