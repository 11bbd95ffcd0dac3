package msl

import (
	"fmt"
	"strings"

	"github.com/gogpu/xshader/ir"
)

// writeFunctions writes every function as an ordinary MSL function. Entry
// points get a separate wrapper that calls the function they name.
func (w *Writer) writeFunctions() error {
	for handle := range w.module.Functions {
		if err := w.writeFunction(ir.FunctionHandle(handle)); err != nil { //nolint:gosec // G115: handle is valid slice index
			return err
		}
	}
	return nil
}

// beginFunction sets the per-function writing context.
func (w *Writer) beginFunction(handle ir.FunctionHandle) {
	w.currentFunction = &w.module.Functions[handle]
	w.currentFuncHandle = handle
	w.currentInfo = w.info.Function(handle)
	w.funcNamer = w.namer.clone()
	w.localNames = make(map[uint32]string)
	w.namedExpressions = make(map[ir.ExpressionHandle]string)
}

func (w *Writer) endFunction() {
	w.currentFunction = nil
	w.currentInfo = nil
	w.funcNamer = nil
	w.localNames = nil
	w.namedExpressions = nil
}

// writeFunction writes a function definition. Globals the function touches
// become trailing reference parameters.
func (w *Writer) writeFunction(handle ir.FunctionHandle) error {
	w.beginFunction(handle)
	defer w.endFunction()
	fn := w.currentFunction

	returnType := "void"
	if fn.Result != nil {
		returnType = w.writeTypeName(fn.Result.Type)
	}

	var params []string
	for i, arg := range fn.Arguments {
		base := arg.Name
		if base == "" {
			base = fmt.Sprintf("arg_%d", i)
		}
		name := w.funcNamer.call(base)
		w.names[nameKey{kind: nameKeyFunctionArgument, handle1: uint32(handle), handle2: uint32(i)}] = name //nolint:gosec // G115: i is valid slice index
		if sampled, ok := w.module.Types[arg.Type].Inner.(ir.SampledImageType); ok {
			w.funcNamer.reserve(name + samplerSuffix)
			params = append(params,
				imageTypeName(sampled.Image)+" "+name,
				Namespace+"sampler "+name+samplerSuffix)
			continue
		}
		params = append(params, w.writeTypeName(arg.Type)+" "+name)
	}
	for g := range w.module.GlobalVariables {
		h := ir.GlobalVariableHandle(g) //nolint:gosec // G115: g is valid slice index
		if w.currentInfo.UsesGlobal(h) {
			params = append(params, w.globalParams(h)...)
		}
	}
	if w.needsSizes[handle] {
		params = append(params, fmt.Sprintf("constant %s& %s", sizesStructName, sizesParamName))
	}

	w.writeSignature(returnType+" "+w.getName(nameKey{kind: nameKeyFunction, handle1: uint32(handle)}), params)
	w.pushIndent()

	for i, local := range fn.LocalVars {
		base := local.Name
		if base == "" {
			base = "local"
		}
		name := w.funcNamer.call(base)
		w.localNames[uint32(i)] = name //nolint:gosec // G115: i is valid slice index

		w.writeIndent()
		w.write("%s %s = ", w.writeTypeName(local.Type), name)
		if local.Init != nil {
			if err := w.writeExpression(*local.Init); err != nil {
				return err
			}
		} else {
			w.write("{}")
		}
		w.write(";\n")
	}

	if err := w.writeBlock(fn.Body); err != nil {
		return fmt.Errorf("function %q: %w", fn.Name, err)
	}

	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
	return nil
}

// writeSignature writes "head(" followed by one parameter per line.
func (w *Writer) writeSignature(head string, params []string) {
	if len(params) == 0 {
		w.writeLine("%s() {", head)
		return
	}
	w.writeLine("%s(", head)
	w.pushIndent()
	for i, param := range params {
		if i+1 < len(params) {
			w.writeLine("%s,", param)
		} else {
			w.writeLine("%s", param)
		}
	}
	w.popIndent()
	w.writeLine(") {")
}

// globalParams returns the parameter declarations a global is passed as.
// Fused sampled images take two: the texture and its sampler.
func (w *Writer) globalParams(h ir.GlobalVariableHandle) []string {
	global := &w.module.GlobalVariables[h]
	name := w.getName(nameKey{kind: nameKeyGlobalVariable, handle1: uint32(h)})
	typeName := w.writeTypeName(global.Type)

	switch global.Space {
	case ir.SpaceHandle:
		if _, ok := w.module.Types[global.Type].Inner.(ir.SampledImageType); ok {
			return []string{typeName + " " + name, Namespace + "sampler " + name + samplerSuffix}
		}
		return []string{typeName + " " + name}
	case ir.SpaceStorage:
		qualifier := "device"
		if global.Access == ir.StorageLoad {
			qualifier = "const device"
		}
		if arr, ok := w.module.Types[global.Type].Inner.(ir.ArrayType); ok && arr.Size.Constant == nil {
			return []string{fmt.Sprintf("%s %s* %s", qualifier, typeName, name)}
		}
		return []string{fmt.Sprintf("%s %s& %s", qualifier, typeName, name)}
	default:
		return []string{fmt.Sprintf("%s %s& %s", addressSpaceName(global.Space), typeName, name)}
	}
}

// globalArguments returns the call arguments that pass the globals a
// callee touches, matching globalParams.
func (w *Writer) globalArguments(info *ir.FunctionInfo) []string {
	var args []string
	for g := range w.module.GlobalVariables {
		h := ir.GlobalVariableHandle(g) //nolint:gosec // G115: g is valid slice index
		if !info.UsesGlobal(h) {
			continue
		}
		name := w.getName(nameKey{kind: nameKeyGlobalVariable, handle1: uint32(h)})
		args = append(args, name)
		if _, ok := w.module.Types[w.module.GlobalVariables[g].Type].Inner.(ir.SampledImageType); ok {
			args = append(args, name+samplerSuffix)
		}
	}
	return args
}

// isBufferSpace reports whether globals in space bind to a buffer slot.
func isBufferSpace(space ir.AddressSpace) bool {
	return space == ir.SpaceUniform || space == ir.SpaceStorage || space == ir.SpacePushConstant
}

// sizesBufferSlot returns the buffer slot of the runtime array sizes for an
// entry point. Without a binding map it follows the auto-assigned buffers.
func (w *Writer) sizesBufferSlot(epIdx int) *uint8 {
	ep := &w.module.EntryPoints[epIdx]
	if res, ok := w.options.PerEntryPointMap[ep.Name]; ok {
		return res.SizesBuffer
	}
	info := w.info.EntryPoint(epIdx)
	var slot uint8
	for g := range w.module.GlobalVariables {
		if info.UsesGlobal(ir.GlobalVariableHandle(g)) && isBufferSpace(w.module.GlobalVariables[g].Space) { //nolint:gosec // G115: g is valid slice index
			slot++
		}
	}
	return &slot
}

// slotKind is the kind of Metal binding slot.
type slotKind uint8

const (
	slotBuffer slotKind = iota
	slotTexture
	slotSampler
)

var slotAttributes = [...]string{
	slotBuffer:  "buffer",
	slotTexture: "texture",
	slotSampler: "sampler",
}

// slotAllocator hands out binding attributes for one entry point.
type slotAllocator struct {
	w         *Writer
	epName    string
	resources EntryPointResources
	mapped    bool
	next      [3]uint8
	fakes     int
}

// attribute returns the binding attribute for a resource global.
func (a *slotAllocator) attribute(h ir.GlobalVariableHandle, kind slotKind) (string, error) {
	global := &a.w.module.GlobalVariables[h]
	if !a.mapped {
		slot := a.next[kind]
		a.next[kind]++
		return fmt.Sprintf("[[%s(%d)]]", slotAttributes[kind], slot), nil
	}

	var slot *uint8
	switch {
	case global.Space == ir.SpacePushConstant:
		slot = a.resources.PushConstantBuffer
	case global.Binding != nil:
		target := a.resources.Resources[*global.Binding]
		switch kind {
		case slotBuffer:
			slot = target.Buffer
		case slotTexture:
			slot = target.Texture
		case slotSampler:
			slot = target.Sampler
		}
	}
	if slot != nil {
		return fmt.Sprintf("[[%s(%d)]]", slotAttributes[kind], *slot), nil
	}
	if a.w.options.FakeMissingBindings {
		attr := fmt.Sprintf("[[user(fake%d)]]", a.fakes)
		a.fakes++
		return attr, nil
	}
	where := "push constants"
	if global.Binding != nil {
		where = global.Binding.String()
	}
	return "", fmt.Errorf("entry point %q: no %s slot for %q (%s)", a.epName, slotAttributes[kind], global.Name, where)
}

// builtinInput returns the Metal attribute and parameter type of an input
// builtin.
func builtinInput(b ir.BuiltinValue) (attr, typ string, ok bool) {
	switch b {
	case ir.BuiltinPosition:
		return "position", Namespace + "float4", true
	case ir.BuiltinVertexIndex:
		return "vertex_id", typeUint, true
	case ir.BuiltinInstanceIndex:
		return "instance_id", typeUint, true
	case ir.BuiltinFrontFacing:
		return "front_facing", typeBool, true
	case ir.BuiltinPointCoord:
		return "point_coord", Namespace + "float2", true
	case ir.BuiltinPrimitiveIndex:
		return "primitive_id", typeUint, true
	case ir.BuiltinSampleIndex:
		return "sample_id", typeUint, true
	case ir.BuiltinSampleMask:
		return "sample_mask", typeUint, true
	case ir.BuiltinGlobalInvocationID:
		return "thread_position_in_grid", Namespace + "uint3", true
	case ir.BuiltinLocalInvocationID:
		return "thread_position_in_threadgroup", Namespace + "uint3", true
	case ir.BuiltinLocalInvocationIndex:
		return "thread_index_in_threadgroup", typeUint, true
	case ir.BuiltinWorkGroupID:
		return "threadgroup_position_in_grid", Namespace + "uint3", true
	case ir.BuiltinNumWorkGroups:
		return "threadgroups_per_grid", Namespace + "uint3", true
	}
	return "", "", false
}

// builtinOutput returns the Metal attribute of an output builtin.
func builtinOutput(b ir.BuiltinValue) (string, bool) {
	switch b {
	case ir.BuiltinPosition:
		return "position", true
	case ir.BuiltinPointSize:
		return "point_size", true
	case ir.BuiltinClipDistance:
		return "clip_distance", true
	case ir.BuiltinFragDepth:
		return "depth(any)", true
	case ir.BuiltinSampleMask:
		return "sample_mask", true
	}
	return "", false
}

// interpolationAttribute returns the attribute suffix of a fragment input.
// Perspective-correct center sampling is the default and needs none.
func interpolationAttribute(interp *ir.Interpolation) string {
	if interp == nil {
		return ""
	}
	if interp.Kind == ir.InterpolationFlat {
		return ", flat"
	}
	if interp.Kind == ir.InterpolationPerspective && interp.Sampling == ir.SamplingCenter {
		return ""
	}
	sampling := "center"
	switch interp.Sampling {
	case ir.SamplingCentroid:
		sampling = "centroid"
	case ir.SamplingSample:
		sampling = "sample"
	}
	perspective := "perspective"
	if interp.Kind == ir.InterpolationLinear {
		perspective = "no_perspective"
	}
	return fmt.Sprintf(", %s_%s", sampling, perspective)
}

// entryPointWrapper collects the pieces of an entry point function.
type entryPointWrapper struct {
	inputs   []string // stage_in struct members
	outputs  []string // output struct members
	params   []string
	prologue []string // statements before the call
	epilogue []string // statements filling the output struct
	localID  string   // parameter holding thread_position_in_threadgroup
	wgInit   []string // workgroup variables to zero
}

func (e *entryPointWrapper) prologuef(format string, args ...any) {
	e.prologue = append(e.prologue, fmt.Sprintf(format, args...))
}

func (e *entryPointWrapper) epiloguef(format string, args ...any) {
	e.epilogue = append(e.epilogue, fmt.Sprintf(format, args...))
}

// writeEntryPoints writes a Metal entry point for every selected entry point.
func (w *Writer) writeEntryPoints() error {
	for _, epIdx := range w.entryPoints {
		if err := w.writeEntryPoint(epIdx); err != nil {
			return err
		}
	}
	return nil
}

// writeEntryPoint writes the stage function that binds the pipeline
// interface to globals and calls the entry point's function.
//
//nolint:gocognit,gocyclo,cyclop,funlen // Entry points gather every kind of interface global
func (w *Writer) writeEntryPoint(epIdx int) error {
	ep := &w.module.EntryPoints[epIdx]
	epInfo := w.info.EntryPoint(epIdx)
	epName := w.getName(nameKey{kind: nameKeyEntryPoint, handle1: uint32(epIdx)}) //nolint:gosec // G115: epIdx is valid slice index
	local := w.namer.clone()
	outVar := local.call("_output")
	varyings := local.call("varyings")
	res, mapped := w.options.PerEntryPointMap[ep.Name]
	slots := &slotAllocator{w: w, epName: ep.Name, resources: res, mapped: mapped}
	var wrap entryPointWrapper
	pointSizeWritten := false

	for g := range w.module.GlobalVariables {
		h := ir.GlobalVariableHandle(g) //nolint:gosec // G115: g is valid slice index
		if !epInfo.UsesGlobal(h) {
			continue
		}
		global := &w.module.GlobalVariables[g]
		name := w.getName(nameKey{kind: nameKeyGlobalVariable, handle1: uint32(h)})
		typeName := w.writeTypeName(global.Type)
		inner := w.module.Types[global.Type].Inner

		switch global.Space {
		case ir.SpaceIn:
			switch binding := global.IO.(type) {
			case ir.LocationBinding:
				if err := checkVarying(global.Name, inner); err != nil {
					return err
				}
				attr := fmt.Sprintf("[[user(locn%d)%s]]", binding.Location, interpolationAttribute(binding.Interpolation))
				if ep.Stage == ir.StageVertex {
					attr = fmt.Sprintf("[[attribute(%d)]]", binding.Location)
				}
				wrap.inputs = append(wrap.inputs, fmt.Sprintf("%s %s %s;", typeName, name, attr))
				wrap.prologuef("%s %s = %s.%s;", typeName, name, varyings, name)
			case ir.BuiltinBinding:
				attr, metalType, ok := builtinInput(binding.Builtin)
				if !ok {
					return unsupported("%s input", binding.Builtin)
				}
				if metalType == typeName {
					wrap.params = append(wrap.params, fmt.Sprintf("%s %s [[%s]]", metalType, name, attr))
					if binding.Builtin == ir.BuiltinLocalInvocationID {
						wrap.localID = name
					}
					continue
				}
				raw := local.call("_" + name)
				wrap.params = append(wrap.params, fmt.Sprintf("%s %s [[%s]]", metalType, raw, attr))
				if binding.Builtin == ir.BuiltinLocalInvocationID {
					wrap.localID = raw
				}
				if arr, ok := inner.(ir.ArrayType); ok {
					wrap.prologuef("%s %s = {};", typeName, name)
					wrap.prologuef("%s%s = as_type<%s>(%s);", name, w.elementAccess(arr, "0"), w.writeTypeName(arr.Base), raw)
				} else {
					wrap.prologuef("%s %s = %s(%s);", typeName, name, typeName, raw)
				}
			default:
				return fmt.Errorf("input %q has no binding", global.Name)
			}

		case ir.SpaceOut:
			wrap.prologuef("%s %s = {};", typeName, name)
			switch binding := global.IO.(type) {
			case ir.LocationBinding:
				if err := checkVarying(global.Name, inner); err != nil {
					return err
				}
				attr := fmt.Sprintf("[[user(locn%d)]]", binding.Location)
				if ep.Stage == ir.StageFragment {
					attr = fmt.Sprintf("[[color(%d)]]", binding.Location)
				}
				wrap.outputs = append(wrap.outputs, fmt.Sprintf("%s %s %s;", typeName, name, attr))
				wrap.epiloguef("%s.%s = %s;", outVar, name, name)
			case ir.BuiltinBinding:
				attr, ok := builtinOutput(binding.Builtin)
				if !ok {
					return unsupported("%s output", binding.Builtin)
				}
				switch binding.Builtin {
				case ir.BuiltinClipDistance:
					arr, ok := inner.(ir.ArrayType)
					if !ok || arr.Size.Constant == nil {
						return fmt.Errorf("clip distance output %q is not a sized array", global.Name)
					}
					wrap.outputs = append(wrap.outputs, fmt.Sprintf("float %s [[%s]] [%d];", name, attr, *arr.Size.Constant))
					index := local.call("i")
					wrap.epiloguef("for (int %s = 0; %s < %d; ++%s) { %s.%s[%s] = %s%s; }",
						index, index, *arr.Size.Constant, index, outVar, name, index, name, w.elementAccess(arr, index))
				case ir.BuiltinSampleMask:
					wrap.outputs = append(wrap.outputs, fmt.Sprintf("uint %s [[%s]];", name, attr))
					if arr, ok := inner.(ir.ArrayType); ok {
						wrap.epiloguef("%s.%s = as_type<uint>(%s%s);", outVar, name, name, w.elementAccess(arr, "0"))
					} else {
						wrap.epiloguef("%s.%s = as_type<uint>(%s);", outVar, name, name)
					}
				default:
					if binding.Builtin == ir.BuiltinPointSize {
						pointSizeWritten = true
					}
					wrap.outputs = append(wrap.outputs, fmt.Sprintf("%s %s [[%s]];", typeName, name, attr))
					wrap.epiloguef("%s.%s = %s;", outVar, name, name)
				}
			default:
				return fmt.Errorf("output %q has no binding", global.Name)
			}

		case ir.SpacePrivate:
			if global.Init != nil {
				wrap.prologuef("%s %s = %s;", typeName, name, w.getName(nameKey{kind: nameKeyConstant, handle1: uint32(*global.Init)}))
			} else {
				wrap.prologuef("%s %s = {};", typeName, name)
			}

		case ir.SpaceWorkGroup:
			wrap.prologuef("threadgroup %s %s;", typeName, name)
			wrap.wgInit = append(wrap.wgInit, name)

		case ir.SpaceHandle:
			decls := w.globalParams(h)
			kinds := []slotKind{slotTexture}
			switch inner.(type) {
			case ir.SamplerType:
				kinds = []slotKind{slotSampler}
			case ir.SampledImageType:
				kinds = []slotKind{slotTexture, slotSampler}
			}
			for i, decl := range decls {
				attr, err := slots.attribute(h, kinds[i])
				if err != nil {
					return err
				}
				wrap.params = append(wrap.params, decl+" "+attr)
			}

		default:
			attr, err := slots.attribute(h, slotBuffer)
			if err != nil {
				return err
			}
			wrap.params = append(wrap.params, w.globalParams(h)[0]+" "+attr)
		}
	}

	if ep.Stage == ir.StageVertex && w.pipeline.AllowAndForcePointSize && !pointSizeWritten {
		wrap.outputs = append(wrap.outputs, "float _point_size [[point_size]];")
		wrap.epiloguef("%s._point_size = 1.0;", outVar)
	}

	if w.needsSizes[ep.Function] {
		slot := w.sizesBufferSlot(epIdx)
		if slot == nil {
			return unsupported("runtime array length without a sizes buffer")
		}
		wrap.params = append(wrap.params, fmt.Sprintf("constant %s& %s [[buffer(%d)]]", sizesStructName, sizesParamName, *slot))
	}

	if len(wrap.wgInit) > 0 && w.options.ZeroInitializeWorkgroupMemory && ep.Stage == ir.StageCompute {
		if wrap.localID == "" {
			wrap.localID = local.call("__local_invocation_id")
			wrap.params = append(wrap.params, fmt.Sprintf("%suint3 %s [[thread_position_in_threadgroup]]", Namespace, wrap.localID))
		}
	}

	// Interface structs.
	inputStruct := ""
	if len(wrap.inputs) > 0 {
		inputStruct = w.namer.call(epName + "Input")
		w.writeInterfaceStruct(inputStruct, wrap.inputs)
		wrap.params = append([]string{fmt.Sprintf("%s %s [[stage_in]]", inputStruct, varyings)}, wrap.params...)
	}
	returnType := "void"
	if len(wrap.outputs) > 0 {
		returnType = w.namer.call(epName + "Output")
		w.writeInterfaceStruct(returnType, wrap.outputs)
	}

	var stage string
	switch ep.Stage {
	case ir.StageVertex:
		stage = "vertex"
	case ir.StageFragment:
		stage = "fragment"
		if ep.EarlyDepthTest {
			stage = "[[early_fragment_tests]] fragment"
		}
	case ir.StageCompute:
		stage = "kernel"
	default:
		return fmt.Errorf("unsupported shader stage %s", ep.Stage)
	}

	w.writeSignature(fmt.Sprintf("%s %s %s", stage, returnType, epName), wrap.params)
	w.pushIndent()
	for _, line := range wrap.prologue {
		w.writeLine("%s", line)
	}
	if len(wrap.wgInit) > 0 && w.options.ZeroInitializeWorkgroupMemory && ep.Stage == ir.StageCompute {
		w.writeLine("if (%sall(%s == %suint3(0u))) {", Namespace, wrap.localID, Namespace)
		w.pushIndent()
		for _, name := range wrap.wgInit {
			w.writeLine("%s = {};", name)
		}
		w.popIndent()
		w.writeLine("}")
		w.writeBarrier(ir.BarrierWorkGroup)
	}

	args := w.globalArguments(w.info.Function(ep.Function))
	if w.needsSizes[ep.Function] {
		args = append(args, sizesParamName)
	}
	w.writeLine("%s(%s);", w.getName(nameKey{kind: nameKeyFunction, handle1: uint32(ep.Function)}), strings.Join(args, ", "))

	if len(wrap.outputs) > 0 {
		w.writeLine("%s %s = {};", returnType, outVar)
		for _, line := range wrap.epilogue {
			w.writeLine("%s", line)
		}
		w.writeLine("return %s;", outVar)
	}
	w.popIndent()
	w.writeLine("}")
	w.writeLine("")
	return nil
}

// writeInterfaceStruct writes a stage_in or output struct.
func (w *Writer) writeInterfaceStruct(name string, members []string) {
	w.writeLine("struct %s {", name)
	w.pushIndent()
	for _, member := range members {
		w.writeLine("%s", member)
	}
	w.popIndent()
	w.writeLine("};")
	w.writeLine("")
}

// elementAccess returns the suffix that indexes a wrapped array.
func (w *Writer) elementAccess(arr ir.ArrayType, index string) string {
	suffix := fmt.Sprintf(".inner[%s]", index)
	if w.elemPadding(arr) > 0 {
		suffix += ".value"
	}
	return suffix
}

// checkVarying rejects user varyings Metal cannot carry in an interface
// struct.
func checkVarying(name string, inner ir.TypeInner) error {
	switch inner.(type) {
	case ir.ArrayType:
		return unsupported("array varying %q", name)
	case ir.StructType:
		return unsupported("struct varying %q", name)
	case ir.MatrixType:
		return unsupported("matrix varying %q", name)
	}
	return nil
}
