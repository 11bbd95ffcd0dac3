package glsl

import (
	"errors"
	"fmt"

	"github.com/gogpu/xshader/ir"
)

// Lowerer converts a GLSL AST to IR.
type Lowerer struct {
	module *ir.Module
	source string
	stage  ir.ShaderStage

	// Type resolution
	registry        *ir.TypeRegistry
	structs         map[string]ir.TypeHandle
	declaredStructs map[*StructDecl]bool

	// Module-scope names
	globals     map[string]globalSymbol
	ioBlocks    map[string]map[string]ir.GlobalVariableHandle
	constants   map[string]ir.ConstantHandle
	constValues map[string]constValue
	functions   map[string][]*userFunction
	builtins    map[builtinKey]ir.GlobalVariableHandle

	// Bindings and locations assigned once all declarations are known
	pendingBindings  []pendingSlot
	pendingLocations []pendingSlot
	usedBindings     map[uint32]map[uint32]bool
	usedLocations    map[ir.AddressSpace]map[uint32]bool

	// Entry point state
	workgroup      [3]uint32
	workgroupConst *ir.ConstantHandle
	earlyDepthTest bool

	// Current function context
	fn *funcCtx

	errors SyntaxErrors
}

// globalSymbol names a module-scope variable. member is set for the
// members of an interface block declared without an instance name.
type globalSymbol struct {
	handle ir.GlobalVariableHandle
	member *uint32
}

type builtinKey struct {
	builtin ir.BuiltinValue
	space   ir.AddressSpace
}

// pendingSlot is a global that still needs a binding or location.
type pendingSlot struct {
	handle ir.GlobalVariableHandle
	group  uint32
}

// userFunction is one overload of a user-declared function.
type userFunction struct {
	handle  ir.FunctionHandle
	params  []paramInfo
	result  *ir.TypeHandle
	defined bool
	decl    *FunctionDecl
}

type paramInfo struct {
	typ  ir.TypeHandle // value type, also for out parameters
	qual StorageQualifier
}

// Lower converts a parsed translation unit to an IR module for one stage.
func Lower(unit *TranslationUnit, source string, stage ir.ShaderStage) (*ir.Module, error) {
	l := &Lowerer{
		module:          &ir.Module{},
		source:          source,
		stage:           stage,
		registry:        ir.NewTypeRegistry(),
		structs:         make(map[string]ir.TypeHandle),
		declaredStructs: make(map[*StructDecl]bool),
		globals:         make(map[string]globalSymbol),
		ioBlocks:        make(map[string]map[string]ir.GlobalVariableHandle),
		constants:       make(map[string]ir.ConstantHandle),
		constValues:     make(map[string]constValue),
		functions:       make(map[string][]*userFunction),
		builtins:        make(map[builtinKey]ir.GlobalVariableHandle),
		usedBindings:    make(map[uint32]map[uint32]bool),
		usedLocations:   make(map[ir.AddressSpace]map[uint32]bool),
		workgroup:       [3]uint32{1, 1, 1},
	}
	if stage == ir.StageCompute {
		l.constValues["gl_WorkGroupSize"] = l.workgroupSizeValue()
	}

	for _, decl := range unit.Decls {
		if err := l.lowerDecl(decl); err != nil {
			l.addError(err, decl.Pos())
		}
	}
	if len(l.errors) > 0 {
		return nil, l.errors
	}

	l.assignSlots()

	entry, err := l.entryFunction()
	if err == nil {
		entry, err = l.orderFunctions(entry)
	}
	if err != nil {
		l.addError(err, Location{})
		return nil, l.errors
	}
	l.module.EntryPoints = append(l.module.EntryPoints, ir.EntryPoint{
		Name:           "main",
		Stage:          stage,
		Function:       entry,
		EarlyDepthTest: l.earlyDepthTest && stage == ir.StageFragment,
	})
	if stage == ir.StageCompute {
		l.module.EntryPoints[0].Workgroup = l.workgroup
	}

	l.module.Types = l.registry.Types()
	return l.module, nil
}

// addError records an error at a location. Errors that already carry a
// location keep it.
func (l *Lowerer) addError(err error, loc Location) {
	var se *SyntaxError
	if errors.As(err, &se) {
		l.errors = append(l.errors, se)
		return
	}
	if loc.Line == 0 {
		l.errors = append(l.errors, &SyntaxError{Message: err.Error(), Source: l.source})
		return
	}
	l.errors.add(err.Error(), loc, l.source)
}

// errorAt wraps a message into a located syntax error.
func (l *Lowerer) errorAt(loc Location, format string, args ...any) *SyntaxError {
	loc2 := loc
	return &SyntaxError{Message: fmt.Sprintf(format, args...), Location: &loc2, Source: l.source}
}

func (l *Lowerer) entryFunction() (ir.FunctionHandle, error) {
	for _, overload := range l.functions["main"] {
		if !overload.defined {
			continue
		}
		if len(overload.params) != 0 || overload.result != nil {
			return 0, l.errorAt(overload.decl.Loc, "main must be declared as void main()")
		}
		return overload.handle, nil
	}
	return 0, errors.New("no main function defined")
}

func (l *Lowerer) lowerDecl(decl Decl) error {
	switch d := decl.(type) {
	case *StructDecl:
		_, err := l.lowerStruct(d)
		return err
	case *VarDecl:
		return l.lowerGlobalVar(d)
	case *BlockDecl:
		return l.lowerBlockDecl(d)
	case *DefaultDecl:
		return l.lowerDefaultDecl(d)
	case *FunctionDecl:
		return l.lowerFunction(d)
	}
	return fmt.Errorf("unexpected declaration %T", decl)
}

// layoutValue returns the integer value of a layout qualifier.
func (l *Lowerer) layoutValue(quals Qualifiers, name string) (uint32, bool, error) {
	for _, q := range quals.Layout {
		if q.Name != name {
			continue
		}
		if q.Value == nil {
			return 0, false, l.errorAt(q.Loc, "layout qualifier %s needs a value", name)
		}
		v, err := l.evalInt(q.Value)
		if err != nil || v < 0 {
			return 0, false, l.errorAt(q.Loc, "layout qualifier %s needs a non-negative integer constant", name)
		}
		return uint32(v), true, nil //nolint:gosec // G115: GLSL layout values are 32-bit
	}
	return 0, false, nil
}

func hasLayout(quals Qualifiers, name string) bool {
	for _, q := range quals.Layout {
		if q.Name == name {
			return true
		}
	}
	return false
}

func (l *Lowerer) lowerDefaultDecl(d *DefaultDecl) error {
	if d.Quals.Storage != StorageIn {
		// layout(std140) uniform; and similar defaults need no IR.
		return nil
	}
	for i, name := range []string{"local_size_x", "local_size_y", "local_size_z"} {
		v, ok, err := l.layoutValue(d.Quals, name)
		if err != nil {
			return err
		}
		if ok {
			if l.stage != ir.StageCompute {
				return l.errorAt(d.Loc, "%s is only valid in compute shaders", name)
			}
			l.workgroup[i] = v
			l.constValues["gl_WorkGroupSize"] = l.workgroupSizeValue()
		}
	}
	if hasLayout(d.Quals, "early_fragment_tests") {
		l.earlyDepthTest = true
	}
	return nil
}

func (l *Lowerer) addGlobal(gv ir.GlobalVariable) ir.GlobalVariableHandle {
	handle := ir.GlobalVariableHandle(len(l.module.GlobalVariables)) //nolint:gosec // G115: arena stays far below 2^32
	l.module.GlobalVariables = append(l.module.GlobalVariables, gv)
	return handle
}

func (l *Lowerer) declareGlobalName(name string, sym globalSymbol, loc Location) error {
	if _, dup := l.globals[name]; dup {
		return l.errorAt(loc, "redefinition of %q", name)
	}
	if _, dup := l.constants[name]; dup {
		return l.errorAt(loc, "redefinition of %q", name)
	}
	l.globals[name] = sym
	return nil
}

//nolint:gocyclo,cyclop,funlen // one branch per storage qualifier
func (l *Lowerer) lowerGlobalVar(d *VarDecl) error {
	for _, decl := range d.Names {
		switch d.Quals.Storage {
		case StorageConst:
			if err := l.lowerGlobalConst(d, decl); err != nil {
				return err
			}
			continue
		case StorageInout, StorageBuffer:
			return l.errorAt(decl.Loc, "%q: this qualifier needs an interface block", decl.Name)
		}

		typ, err := l.globalType(d, decl)
		if err != nil {
			if _, ok := err.(*SyntaxError); ok {
				return err
			}
			return l.errorAt(decl.Loc, "%s", err)
		}
		inner := l.module.Types[typ].Inner

		gv := ir.GlobalVariable{Name: decl.Name, Type: typ}
		switch d.Quals.Storage {
		case StorageIn, StorageOut:
			if l.stage == ir.StageCompute {
				return l.errorAt(decl.Loc, "compute shaders have no %q interface variables", decl.Name)
			}
			if decl.Init != nil {
				return l.errorAt(decl.Loc, "interface variable %q cannot have an initializer", decl.Name)
			}
			gv.Space = ir.SpaceIn
			if d.Quals.Storage == StorageOut {
				gv.Space = ir.SpaceOut
			}
			binding, err := l.locationBinding(d.Quals, gv.Space, inner)
			if err != nil {
				return err
			}
			gv.IO = binding
			h := l.addGlobal(gv)
			if _, explicit, _ := l.layoutValue(d.Quals, "location"); !explicit {
				l.pendingLocations = append(l.pendingLocations, pendingSlot{handle: h})
			} else {
				l.reserveLocation(gv.Space, binding.(ir.LocationBinding).Location)
			}
			if err := l.declareGlobalName(decl.Name, globalSymbol{handle: h}, decl.Loc); err != nil {
				return err
			}

		case StorageUniform:
			if !isOpaque(inner) && !isOpaqueArray(l.module, inner) {
				return l.errorAt(decl.Loc, "uniform %q must be declared inside a uniform block", decl.Name)
			}
			if decl.Init != nil {
				return l.errorAt(decl.Loc, "uniform %q cannot have an initializer", decl.Name)
			}
			gv.Space = ir.SpaceHandle
			h := l.addGlobal(gv)
			if err := l.resourceBinding(h, d.Quals); err != nil {
				return err
			}
			if err := l.declareGlobalName(decl.Name, globalSymbol{handle: h}, decl.Loc); err != nil {
				return err
			}

		case StorageShared:
			if l.stage != ir.StageCompute {
				return l.errorAt(decl.Loc, "shared variable %q is only valid in compute shaders", decl.Name)
			}
			gv.Space = ir.SpaceWorkGroup
			h := l.addGlobal(gv)
			if err := l.declareGlobalName(decl.Name, globalSymbol{handle: h}, decl.Loc); err != nil {
				return err
			}

		default:
			if isOpaque(inner) {
				return l.errorAt(decl.Loc, "%q: opaque types must be declared uniform", decl.Name)
			}
			gv.Space = ir.SpacePrivate
			if decl.Init != nil {
				init := l.bindInitializer(decl.Init, typ)
				v, err := l.evalConst(init)
				if err != nil {
					return l.errorAt(decl.Loc, "initializer of global %q must be a constant expression", decl.Name)
				}
				v, err = l.convertConst(v, typ)
				if err != nil {
					return l.errorAt(decl.Loc, "global %q: %s", decl.Name, err)
				}
				c := l.materialize("", v)
				gv.Init = &c
			}
			h := l.addGlobal(gv)
			if err := l.declareGlobalName(decl.Name, globalSymbol{handle: h}, decl.Loc); err != nil {
				return err
			}
		}
	}
	return nil
}

func isOpaqueArray(module *ir.Module, inner ir.TypeInner) bool {
	arr, ok := inner.(ir.ArrayType)
	return ok && isOpaque(module.Types[arr.Base].Inner)
}

func (l *Lowerer) lowerGlobalConst(d *VarDecl, decl Declarator) error {
	if decl.Init == nil {
		return l.errorAt(decl.Loc, "const %q needs an initializer", decl.Name)
	}
	typ, err := l.declaredType(d.Type, decl)
	if err != nil {
		return l.errorAt(decl.Loc, "%s", err)
	}
	v, err := l.evalConst(l.bindInitializer(decl.Init, typ))
	if err != nil {
		return l.errorAt(decl.Loc, "initializer of const %q is not a constant expression", decl.Name)
	}
	v, err = l.convertConst(v, typ)
	if err != nil {
		return l.errorAt(decl.Loc, "const %q: %s", decl.Name, err)
	}
	if _, dup := l.globals[decl.Name]; dup {
		return l.errorAt(decl.Loc, "redefinition of %q", decl.Name)
	}
	if _, dup := l.constants[decl.Name]; dup {
		return l.errorAt(decl.Loc, "redefinition of %q", decl.Name)
	}
	l.constants[decl.Name] = l.materialize(decl.Name, v)
	l.constValues[decl.Name] = v
	return nil
}

// declaredType resolves the type of a declarator. An unsized array takes
// its size from a constructor initializer.
func (l *Lowerer) declaredType(spec TypeSpec, decl Declarator) (ir.TypeHandle, error) {
	sizes := append(append([]Expr(nil), decl.ArraySizes...), spec.ArraySizes...)
	if len(sizes) > 0 && sizes[0] == nil {
		if call, ok := decl.Init.(*CallExpr); ok {
			n := uint32(len(call.Args)) //nolint:gosec // G115: argument count is small
			elem, err := l.resolveTypeSpec(TypeSpec{Name: spec.Name, Struct: spec.Struct}, sizes[1:], layoutStd430)
			if err != nil {
				return 0, err
			}
			return l.arrayType(elem, &n, layoutStd430), nil
		}
	}
	return l.resolveTypeSpec(spec, decl.ArraySizes, layoutStd430)
}

// convertConst converts a folded value to the declared type.
func (l *Lowerer) convertConst(v constValue, typ ir.TypeHandle) (constValue, error) {
	switch t := l.module.Types[typ].Inner.(type) {
	case ir.ScalarType:
		if !v.isScalar() {
			return constValue{}, fmt.Errorf("cannot initialize %s with a composite", scalarLabel(t))
		}
		if v.scalar != t && !implicitlyConvertible(v.scalar, t) {
			return constValue{}, fmt.Errorf("cannot convert %s to %s", scalarLabel(v.scalar), scalarLabel(t))
		}
		return v.convert(t), nil
	case ir.VectorType:
		if v.isScalar() || len(v.components) != int(t.Size) {
			return constValue{}, fmt.Errorf("cannot initialize %s with this value", l.typeLabel(t))
		}
		out := constValue{typ: typ, components: make([]constValue, t.Size)}
		for i, c := range v.components {
			out.components[i] = c.convert(t.Scalar)
		}
		return out, nil
	}
	if v.isScalar() || v.typ != typ {
		return constValue{}, fmt.Errorf("initializer type does not match %s", l.typeLabel(l.module.Types[typ].Inner))
	}
	return v, nil
}

// implicitlyConvertible reports whether GLSL converts from one scalar type
// to another without a constructor.
func implicitlyConvertible(from, to ir.ScalarType) bool {
	switch {
	case from == to:
		return true
	case from.Kind == ir.ScalarSint && to.Kind == ir.ScalarUint && from.Width == to.Width:
		return true
	case (from.Kind == ir.ScalarSint || from.Kind == ir.ScalarUint) && to.Kind == ir.ScalarFloat:
		return true
	case from.Kind == ir.ScalarFloat && to.Kind == ir.ScalarFloat && from.Width < to.Width:
		return true
	}
	return false
}

// bindInitializer attaches the declared type to brace initializer lists.
func (l *Lowerer) bindInitializer(e Expr, typ ir.TypeHandle) Expr {
	call, ok := e.(*CallExpr)
	if !ok || call.Name != "" {
		return e
	}
	t := typ
	call.typ = &t
	for i, arg := range call.Args {
		var elem *ir.TypeHandle
		switch inner := l.module.Types[typ].Inner.(type) {
		case ir.ArrayType:
			elem = &inner.Base
		case ir.StructType:
			if i < len(inner.Members) {
				elem = &inner.Members[i].Type
			}
		case ir.MatrixType:
			h := l.registerType("", ir.VectorType{Size: inner.Rows, Scalar: inner.Scalar})
			elem = &h
		case ir.VectorType:
			h := l.registerType("", inner.Scalar)
			elem = &h
		}
		if elem != nil {
			call.Args[i] = l.bindInitializer(arg, *elem)
		}
	}
	return call
}

// locationBinding builds the interface binding of an in or out variable.
// Locations without an explicit value are filled in by assignSlots.
func (l *Lowerer) locationBinding(quals Qualifiers, space ir.AddressSpace, inner ir.TypeInner) (ir.Binding, error) {
	loc, _, err := l.layoutValue(quals, "location")
	if err != nil {
		return nil, err
	}
	binding := ir.LocationBinding{Location: loc}

	varying := (space == ir.SpaceOut && l.stage == ir.StageVertex) || (space == ir.SpaceIn && l.stage == ir.StageFragment)
	if varying {
		interp := &ir.Interpolation{Kind: ir.InterpolationPerspective}
		switch quals.Interpolation {
		case InterpFlat:
			interp.Kind = ir.InterpolationFlat
		case InterpNoPerspective:
			interp.Kind = ir.InterpolationLinear
		default:
			if s, ok := ir.ScalarOf(elementInner(l.module, inner)); ok && s.Kind != ir.ScalarFloat {
				// Integer varyings cannot be interpolated.
				interp.Kind = ir.InterpolationFlat
			}
		}
		switch {
		case quals.Sample:
			interp.Sampling = ir.SamplingSample
		case quals.Centroid:
			interp.Sampling = ir.SamplingCentroid
		}
		binding.Interpolation = interp
	}
	return binding, nil
}

func elementInner(module *ir.Module, inner ir.TypeInner) ir.TypeInner {
	for {
		arr, ok := inner.(ir.ArrayType)
		if !ok {
			return inner
		}
		inner = module.Types[arr.Base].Inner
	}
}

// globalType resolves the type of a global declarator. Uniform storage
// images take their format and access from the qualifiers before the image
// type is registered, so no unqualified image shape enters the type table.
func (l *Lowerer) globalType(d *VarDecl, decl Declarator) (ir.TypeHandle, error) {
	img, ok := l.storageImageSpec(d.Type)
	if !ok || d.Quals.Storage != StorageUniform {
		return l.resolveTypeSpec(d.Type, decl.ArraySizes, layoutStd430)
	}
	for _, q := range d.Quals.Layout {
		if f, ok := storageFormats[q.Name]; ok {
			img.Format = f
		}
	}
	if img.Format == ir.FormatUnknown && !d.Quals.WriteOnly {
		return 0, l.errorAt(d.Quals.Loc, "image %q needs a format layout qualifier", decl.Name)
	}
	switch {
	case d.Quals.ReadOnly:
		img.Access = ir.StorageLoad
	case d.Quals.WriteOnly:
		img.Access = ir.StorageStore
	}
	return l.wrapArrays(l.registerType("", img), d.Type, decl.ArraySizes, layoutStd430)
}

// storageImageSpec reports whether spec names a builtin storage image type.
func (l *Lowerer) storageImageSpec(spec TypeSpec) (ir.ImageType, bool) {
	if spec.Struct != nil {
		return ir.ImageType{}, false
	}
	if _, ok := l.structs[spec.Name]; ok {
		return ir.ImageType{}, false
	}
	img, ok := builtinTypes[spec.Name].(ir.ImageType)
	if !ok || img.Class != ir.ImageClassStorage {
		return ir.ImageType{}, false
	}
	return img, true
}

// resourceBinding records an explicit binding or queues the global for
// automatic assignment.
func (l *Lowerer) resourceBinding(h ir.GlobalVariableHandle, quals Qualifiers) error {
	set, _, err := l.layoutValue(quals, "set")
	if err != nil {
		return err
	}
	binding, explicit, err := l.layoutValue(quals, "binding")
	if err != nil {
		return err
	}
	if !explicit {
		l.pendingBindings = append(l.pendingBindings, pendingSlot{handle: h, group: set})
		return nil
	}
	l.module.GlobalVariables[h].Binding = &ir.ResourceBinding{Group: set, Binding: binding}
	l.reserveBinding(set, binding)
	return nil
}

func (l *Lowerer) reserveBinding(set, binding uint32) {
	if l.usedBindings[set] == nil {
		l.usedBindings[set] = make(map[uint32]bool)
	}
	l.usedBindings[set][binding] = true
}

func (l *Lowerer) reserveLocation(space ir.AddressSpace, location uint32) {
	if l.usedLocations[space] == nil {
		l.usedLocations[space] = make(map[uint32]bool)
	}
	l.usedLocations[space][location] = true
}

// assignSlots gives every resource without an explicit binding the lowest
// free binding of its set, and every interface variable without a location
// the lowest free location of its direction, in declaration order.
func (l *Lowerer) assignSlots() {
	for _, p := range l.pendingBindings {
		used := l.usedBindings[p.group]
		var slot uint32
		for used[slot] {
			slot++
		}
		l.module.GlobalVariables[p.handle].Binding = &ir.ResourceBinding{Group: p.group, Binding: slot}
		l.reserveBinding(p.group, slot)
	}
	for _, p := range l.pendingLocations {
		gv := &l.module.GlobalVariables[p.handle]
		used := l.usedLocations[gv.Space]
		var slot uint32
		for used[slot] {
			slot++
		}
		b := gv.IO.(ir.LocationBinding)
		b.Location = slot
		gv.IO = b
		l.reserveLocation(gv.Space, slot)
	}
}

//nolint:gocyclo,cyclop,funlen // block kinds share member lowering
func (l *Lowerer) lowerBlockDecl(d *BlockDecl) error {
	if d.BlockName == "gl_PerVertex" {
		// Redeclaring the builtin block changes nothing here.
		return nil
	}

	switch d.Quals.Storage {
	case StorageIn, StorageOut:
		return l.lowerIOBlock(d)
	}

	rules := layoutStd140
	if d.Quals.Storage == StorageBuffer {
		rules = layoutStd430
	}
	switch {
	case hasLayout(d.Quals, "std430"):
		rules = layoutStd430
	case hasLayout(d.Quals, "std140"):
		rules = layoutStd140
	}

	var names []string
	var types []ir.TypeHandle
	for fi, field := range d.Fields {
		for di, decl := range field.Names {
			h, err := l.resolveTypeSpec(field.Type, decl.ArraySizes, rules)
			if err != nil {
				return l.errorAt(decl.Loc, "block %s member %s: %s", d.BlockName, decl.Name, err)
			}
			inner := l.module.Types[h].Inner
			if isOpaque(elementInner(l.module, inner)) {
				return l.errorAt(decl.Loc, "block %s member %s: opaque types cannot be block members", d.BlockName, decl.Name)
			}
			if arr, ok := inner.(ir.ArrayType); ok && arr.Size.Constant == nil {
				last := fi == len(d.Fields)-1 && di == len(field.Names)-1
				if d.Quals.Storage != StorageBuffer || !last {
					return l.errorAt(decl.Loc, "only the last member of a buffer block can be a runtime-sized array")
				}
			}
			names = append(names, decl.Name)
			types = append(types, h)
		}
	}
	blockType := l.structType(d.BlockName, names, types, rules)

	gv := ir.GlobalVariable{Name: d.InstanceName, Type: blockType}
	switch {
	case hasLayout(d.Quals, "push_constant"):
		if d.Quals.Storage != StorageUniform {
			return l.errorAt(d.Loc, "push constant blocks must be uniform blocks")
		}
		gv.Space = ir.SpacePushConstant
	case d.Quals.Storage == StorageUniform:
		gv.Space = ir.SpaceUniform
	case d.Quals.Storage == StorageBuffer:
		gv.Space = ir.SpaceStorage
		gv.Access = ir.StorageReadWrite
		switch {
		case d.Quals.ReadOnly:
			gv.Access = ir.StorageLoad
		case d.Quals.WriteOnly:
			gv.Access = ir.StorageStore
		}
	default:
		return l.errorAt(d.Loc, "block %s needs an in, out, uniform or buffer qualifier", d.BlockName)
	}

	if len(d.InstanceSizes) > 0 {
		arr, err := l.resolveTypeSpec(TypeSpec{Name: d.BlockName}, d.InstanceSizes, rules)
		if err != nil {
			return l.errorAt(d.Loc, "block %s: %s", d.BlockName, err)
		}
		gv.Type = arr
	}

	h := l.addGlobal(gv)
	if gv.Space != ir.SpacePushConstant {
		if err := l.resourceBinding(h, d.Quals); err != nil {
			return err
		}
	}

	if d.InstanceName != "" {
		return l.declareGlobalName(d.InstanceName, globalSymbol{handle: h}, d.Loc)
	}
	for i, name := range names {
		idx := uint32(i) //nolint:gosec // G115: member count is small
		if err := l.declareGlobalName(name, globalSymbol{handle: h, member: &idx}, d.Loc); err != nil {
			return err
		}
	}
	return nil
}

// lowerIOBlock flattens an in or out block into one interface variable per
// member at consecutive locations.
func (l *Lowerer) lowerIOBlock(d *BlockDecl) error {
	if l.stage == ir.StageCompute {
		return l.errorAt(d.Loc, "compute shaders have no interface blocks")
	}
	if len(d.InstanceSizes) > 0 {
		return l.errorAt(d.Loc, "arrays of interface blocks are not supported")
	}
	space := ir.SpaceIn
	if d.Quals.Storage == StorageOut {
		space = ir.SpaceOut
	}
	base, explicit, err := l.layoutValue(d.Quals, "location")
	if err != nil {
		return err
	}

	members := make(map[string]ir.GlobalVariableHandle)
	for _, field := range d.Fields {
		quals := field.Quals
		if quals.Interpolation == InterpDefault {
			quals.Interpolation = d.Quals.Interpolation
		}
		quals.Centroid = quals.Centroid || d.Quals.Centroid
		quals.Sample = quals.Sample || d.Quals.Sample
		for _, decl := range field.Names {
			typ, err := l.resolveTypeSpec(field.Type, decl.ArraySizes, layoutStd430)
			if err != nil {
				return l.errorAt(decl.Loc, "block %s member %s: %s", d.BlockName, decl.Name, err)
			}
			binding, err := l.locationBinding(quals, space, l.module.Types[typ].Inner)
			if err != nil {
				return err
			}
			h := l.addGlobal(ir.GlobalVariable{Name: decl.Name, Space: space, Type: typ, IO: binding})

			memberLoc, memberExplicit, err := l.layoutValue(field.Quals, "location")
			if err != nil {
				return err
			}
			switch {
			case memberExplicit:
				l.setLocation(h, memberLoc)
			case explicit:
				l.setLocation(h, base)
				base++
			default:
				l.pendingLocations = append(l.pendingLocations, pendingSlot{handle: h})
			}

			members[decl.Name] = h
			if d.InstanceName == "" {
				if err := l.declareGlobalName(decl.Name, globalSymbol{handle: h}, decl.Loc); err != nil {
					return err
				}
			}
		}
	}
	if d.InstanceName != "" {
		if _, dup := l.ioBlocks[d.InstanceName]; dup {
			return l.errorAt(d.Loc, "redefinition of %q", d.InstanceName)
		}
		l.ioBlocks[d.InstanceName] = members
	}
	return nil
}

func (l *Lowerer) setLocation(h ir.GlobalVariableHandle, location uint32) {
	gv := &l.module.GlobalVariables[h]
	b := gv.IO.(ir.LocationBinding)
	b.Location = location
	gv.IO = b
	l.reserveLocation(gv.Space, location)
}

// lowerFunction declares a function signature and lowers its body. A
// prototype reserves the handle so earlier functions can call it.
func (l *Lowerer) lowerFunction(d *FunctionDecl) error {
	params := make([]paramInfo, len(d.Params))
	for i, p := range d.Params {
		typ, err := l.resolveTypeSpec(p.Type, p.ArraySizes, layoutStd430)
		if err != nil {
			return l.errorAt(p.Loc, "parameter %d of %s: %s", i+1, d.Name, err)
		}
		qual := p.Quals.Storage
		if qual == StorageConst {
			qual = StorageIn
		}
		if qual == StorageNone {
			qual = StorageIn
		}
		params[i] = paramInfo{typ: typ, qual: qual}
	}
	var result *ir.TypeHandle
	if d.ReturnType.Name != "void" || d.ReturnType.Struct != nil {
		typ, err := l.resolveTypeSpec(d.ReturnType, nil, layoutStd430)
		if err != nil {
			return l.errorAt(d.Loc, "return type of %s: %s", d.Name, err)
		}
		result = &typ
	}
	if _, builtin := builtinFunctions[d.Name]; builtin {
		return l.errorAt(d.Loc, "cannot redefine builtin function %s", d.Name)
	}

	overload := l.findOverload(d.Name, params)
	if overload != nil {
		if !sameResult(overload.result, result) {
			return l.errorAt(d.Loc, "%s redeclared with a different return type", d.Name)
		}
		if overload.defined && d.Body != nil {
			return l.errorAt(d.Loc, "redefinition of function %s", d.Name)
		}
	} else {
		overload = &userFunction{params: params, result: result, decl: d}
		overload.handle = l.declareFunction(d, params, result)
		l.functions[d.Name] = append(l.functions[d.Name], overload)
	}
	if d.Body == nil {
		return nil
	}
	overload.defined = true
	overload.decl = d
	return l.lowerFunctionBody(overload, d)
}

func sameResult(a, b *ir.TypeHandle) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (l *Lowerer) findOverload(name string, params []paramInfo) *userFunction {
outer:
	for _, f := range l.functions[name] {
		if len(f.params) != len(params) {
			continue
		}
		for i := range params {
			if f.params[i].typ != params[i].typ {
				continue outer
			}
		}
		return f
	}
	return nil
}

func (l *Lowerer) declareFunction(d *FunctionDecl, params []paramInfo, result *ir.TypeHandle) ir.FunctionHandle {
	fn := ir.Function{Name: d.Name}
	for i, p := range params {
		typ := p.typ
		if p.qual == StorageOut || p.qual == StorageInout {
			typ = l.registerType("", ir.PointerType{Base: p.typ, Space: ir.SpaceFunction})
		}
		fn.Arguments = append(fn.Arguments, ir.FunctionArgument{Name: d.Params[i].Name, Type: typ})
	}
	if result != nil {
		fn.Result = &ir.FunctionResult{Type: *result}
	}
	handle := ir.FunctionHandle(len(l.module.Functions)) //nolint:gosec // G115: arena stays far below 2^32
	l.module.Functions = append(l.module.Functions, fn)
	return handle
}

func (l *Lowerer) lowerFunctionBody(overload *userFunction, d *FunctionDecl) error {
	fn := l.module.Functions[overload.handle]
	ctx := &funcCtx{fn: &fn, handle: overload.handle, result: overload.result}
	l.fn = ctx
	defer func() { l.fn = nil }()

	ctx.pushScope()
	var body ir.Block
	for i, p := range d.Params {
		if p.Name == "" {
			continue
		}
		idx := uint32(i) //nolint:gosec // G115: parameter count is small
		switch {
		case overload.params[i].qual == StorageOut, overload.params[i].qual == StorageInout,
			isOpaque(l.module.Types[overload.params[i].typ].Inner):
			ctx.declare(p.Name, symbol{argument: &idx})
		default:
			// In parameters are copied into locals so they can be assigned.
			local := l.newLocal(p.Name, overload.params[i].typ)
			arg, err := l.addExpression(ir.ExprFunctionArgument{Index: idx})
			if err != nil {
				return err
			}
			ptr, err := l.addExpression(ir.ExprLocalVariable{Variable: local})
			if err != nil {
				return err
			}
			l.push(&body, ir.StmtStore{Pointer: ptr, Value: arg})
			ctx.declare(p.Name, symbol{local: &local})
		}
	}

	if err := l.lowerStatements(d.Body.Stmts, &body); err != nil {
		return err
	}
	l.flush(&body)
	ctx.popScope()

	fn.Body = body
	l.module.Functions[overload.handle] = fn
	return nil
}
