package ir

// analyze runs after the structural pass succeeded, so every handle it
// follows is known to be in range.
func (v *validator) analyze() *ModuleInfo {
	info := &ModuleInfo{
		module:    v.module,
		functions: make([]FunctionInfo, len(v.module.Functions)),
	}
	info.used |= v.typeCapabilities()
	info.used |= v.globalCapabilities()

	for i := range v.module.Functions {
		fn := &v.module.Functions[i]
		a := &functionAnalyzer{
			module: v.module,
			info:   info,
			fn:     fn,
			result: FunctionInfo{
				GlobalUses:  make([]GlobalUse, len(v.module.GlobalVariables)),
				Expressions: make([]ExpressionInfo, len(fn.Expressions)),
				Stages:      StagesAll,
			},
		}
		a.run()
		info.functions[i] = a.result
		info.used |= a.caps
	}

	info.entryPoints = make([]FunctionInfo, len(v.module.EntryPoints))
	for i, ep := range v.module.EntryPoints {
		fi := info.functions[ep.Function]
		if !fi.Stages.Contains(ep.Stage) {
			v.addError("entry point %q uses operations that are not available in the %s stage", ep.Name, ep.Stage)
		}
		fi.GlobalUses = append([]GlobalUse(nil), fi.GlobalUses...)
		fi.Expressions = append([]ExpressionInfo(nil), fi.Expressions...)
		info.entryPoints[i] = fi
	}
	return info
}

func scalarCapabilities(s ScalarType) Capabilities {
	if s.Width != 8 {
		return 0
	}
	switch s.Kind {
	case ScalarFloat:
		return CapabilityFloat64
	case ScalarSint, ScalarUint:
		return CapabilityShaderInt64
	}
	return 0
}

func innerCapabilities(inner TypeInner) Capabilities {
	switch t := inner.(type) {
	case ScalarType:
		return scalarCapabilities(t)
	case VectorType:
		return scalarCapabilities(t.Scalar)
	case MatrixType:
		return scalarCapabilities(t.Scalar)
	case ValuePointerType:
		return scalarCapabilities(t.Scalar)
	case ImageType:
		if t.Class == ImageClassStorage && t.Format.Is16BitNorm() {
			return CapabilityStorageTexture16BitNormFormats
		}
	}
	return 0
}

func (v *validator) typeCapabilities() Capabilities {
	var caps Capabilities
	for _, t := range v.module.Types {
		caps |= innerCapabilities(t.Inner)
	}
	return caps
}

var builtinCapabilities = map[BuiltinValue]Capabilities{
	BuiltinPrimitiveIndex: CapabilityPrimitiveIndex,
	BuiltinClipDistance:   CapabilityClipDistance,
	BuiltinCullDistance:   CapabilityCullDistance,
	BuiltinSampleIndex:    CapabilitySampleVariables,
	BuiltinSampleMask:     CapabilitySampleVariables,
	BuiltinViewIndex:      CapabilityMultiview,
}

func (v *validator) globalCapabilities() Capabilities {
	var caps Capabilities
	for _, gv := range v.module.GlobalVariables {
		if gv.Space == SpacePushConstant {
			caps |= CapabilityPushConstant
		}
		if b, ok := gv.IO.(BuiltinBinding); ok {
			caps |= builtinCapabilities[b.Builtin]
		}
	}
	return caps
}

type functionAnalyzer struct {
	module *Module
	info   *ModuleInfo
	fn     *Function
	result FunctionInfo
	caps   Capabilities
}

func (a *functionAnalyzer) run() {
	for i := range a.fn.Expressions {
		a.expression(ExpressionHandle(i)) //nolint:gosec // G115: bounded by arena length
	}
	for _, res := range a.fn.ExpressionTypes {
		if res.Handle == nil {
			a.caps |= innerCapabilities(res.Value)
		}
	}
	for _, local := range a.fn.LocalVars {
		if local.Init != nil {
			a.ref(*local.Init)
		}
	}
	a.block(a.fn.Body)
}

func (a *functionAnalyzer) ref(h ExpressionHandle) {
	a.result.Expressions[h].RefCount++
}

func (a *functionAnalyzer) refOptional(h *ExpressionHandle) {
	if h != nil {
		a.ref(*h)
	}
}

func (a *functionAnalyzer) restrict(stages ShaderStages) {
	a.result.Stages &= stages
}

//nolint:gocyclo,cyclop,funlen // one case per expression kind
func (a *functionAnalyzer) expression(handle ExpressionHandle) {
	switch e := a.fn.Expressions[handle].Kind.(type) {
	case Literal:
		a.caps |= scalarCapabilities(LiteralScalar(e.Value))
	case ExprCompose:
		for _, c := range e.Components {
			a.ref(c)
		}
	case ExprAccess:
		a.ref(e.Base)
		a.ref(e.Index)
		if e.NonUniform {
			a.caps |= a.nonUniformCapabilities(e.Base)
		}
	case ExprAccessIndex:
		a.ref(e.Base)
	case ExprSplat:
		a.ref(e.Value)
	case ExprSwizzle:
		a.ref(e.Vector)
	case ExprGlobalVariable:
		a.result.GlobalUses[e.Variable] |= GlobalRead
		if a.module.GlobalVariables[e.Variable].Space == SpaceWorkGroup {
			a.restrict(StagesCompute)
		}
	case ExprLoad:
		a.ref(e.Pointer)
	case ExprImageSample:
		a.ref(e.Image)
		if e.Sampler != e.Image {
			a.ref(e.Sampler)
		}
		a.ref(e.Coordinate)
		a.refOptional(e.ArrayIndex)
		a.refOptional(e.Offset)
		a.refOptional(e.DepthRef)
		switch level := e.Level.(type) {
		case SampleLevelAuto:
			a.restrict(StagesFragment)
		case SampleLevelBias:
			a.ref(level.Bias)
			a.restrict(StagesFragment)
		case SampleLevelExact:
			a.ref(level.Level)
		case SampleLevelGradient:
			a.ref(level.X)
			a.ref(level.Y)
		}
	case ExprImageLoad:
		a.ref(e.Image)
		a.ref(e.Coordinate)
		a.refOptional(e.ArrayIndex)
		a.refOptional(e.Sample)
		a.refOptional(e.Level)
	case ExprImageQuery:
		a.ref(e.Image)
		if size, ok := e.Query.(ImageQuerySize); ok {
			a.refOptional(size.Level)
		}
	case ExprUnary:
		a.ref(e.Expr)
	case ExprBinary:
		a.ref(e.Left)
		a.ref(e.Right)
	case ExprSelect:
		a.ref(e.Condition)
		a.ref(e.Accept)
		a.ref(e.Reject)
	case ExprDerivative:
		a.ref(e.Expr)
		a.restrict(StagesFragment)
	case ExprRelational:
		a.ref(e.Argument)
	case ExprMath:
		a.ref(e.Arg)
		a.refOptional(e.Arg1)
		a.refOptional(e.Arg2)
		a.refOptional(e.Arg3)
	case ExprAs:
		a.ref(e.Expr)
		if e.Convert != nil {
			a.caps |= scalarCapabilities(ScalarType{Kind: e.Kind, Width: *e.Convert})
		}
	case ExprArrayLength:
		a.ref(e.Array)
	}
}

// nonUniformCapabilities returns the feature needed to index the array
// behind base with a non-uniform index.
func (a *functionAnalyzer) nonUniformCapabilities(base ExpressionHandle) Capabilities {
	inner := a.fn.ExpressionTypes[base].Inner(a.module)
	space := SpaceHandle
	if ptr, ok := inner.(PointerType); ok {
		space = ptr.Space
		inner = a.module.Types[ptr.Base].Inner
	}
	arr, ok := inner.(ArrayType)
	if !ok {
		return 0
	}

	switch elem := a.module.Types[arr.Base].Inner.(type) {
	case SampledImageType:
		return CapabilitySampledTextureAndStorageBufferArrayNonUniformIndexing | CapabilitySamplerNonUniformIndexing
	case SamplerType:
		return CapabilitySamplerNonUniformIndexing
	case ImageType:
		if elem.Class == ImageClassStorage {
			return CapabilityUniformBufferAndStorageTextureArrayNonUniformIndexing
		}
		return CapabilitySampledTextureAndStorageBufferArrayNonUniformIndexing
	default:
		switch space {
		case SpaceStorage:
			return CapabilitySampledTextureAndStorageBufferArrayNonUniformIndexing
		case SpaceUniform:
			return CapabilityUniformBufferAndStorageTextureArrayNonUniformIndexing
		}
	}
	return 0
}

// rootGlobal follows access chains down to the global they start from.
func (a *functionAnalyzer) rootGlobal(h ExpressionHandle) (GlobalVariableHandle, bool) {
	for {
		switch e := a.fn.Expressions[h].Kind.(type) {
		case ExprGlobalVariable:
			return e.Variable, true
		case ExprAccess:
			h = e.Base
		case ExprAccessIndex:
			h = e.Base
		default:
			return 0, false
		}
	}
}

func (a *functionAnalyzer) write(pointer ExpressionHandle) {
	if g, ok := a.rootGlobal(pointer); ok {
		a.result.GlobalUses[g] |= GlobalWrite
	}
}

func (a *functionAnalyzer) block(block Block) {
	for i := range block {
		a.statement(block[i].Kind)
	}
}

//nolint:cyclop // one case per statement kind
func (a *functionAnalyzer) statement(kind StatementKind) {
	switch s := kind.(type) {
	case StmtBlock:
		a.block(s.Block)
	case StmtIf:
		a.ref(s.Condition)
		a.block(s.Accept)
		a.block(s.Reject)
	case StmtSwitch:
		a.ref(s.Selector)
		for _, c := range s.Cases {
			a.block(c.Body)
		}
	case StmtLoop:
		a.block(s.Body)
		a.block(s.Continuing)
		a.refOptional(s.BreakIf)
	case StmtReturn:
		a.refOptional(s.Value)
	case StmtKill:
		a.result.MayKill = true
		a.restrict(StagesFragment)
	case StmtBarrier:
		a.restrict(StagesCompute)
	case StmtStore:
		a.ref(s.Pointer)
		a.ref(s.Value)
		a.write(s.Pointer)
	case StmtImageStore:
		a.ref(s.Image)
		a.ref(s.Coordinate)
		a.refOptional(s.ArrayIndex)
		a.ref(s.Value)
		a.write(s.Image)
	case StmtCall:
		for _, arg := range s.Arguments {
			a.ref(arg)
		}
		callee := a.info.functions[s.Function]
		for g, use := range callee.GlobalUses {
			a.result.GlobalUses[g] |= use
		}
		a.result.Stages &= callee.Stages
		a.result.MayKill = a.result.MayKill || callee.MayKill
	}
}
