package glsl

import (
	"fmt"
	"strings"

	"github.com/gogpu/xshader/ir"
)

type builtinVar struct {
	builtin  ir.BuiltinValue
	typ      ir.TypeInner
	output   bool
	stages   ir.ShaderStages
	arrayLen uint32
}

var (
	vec2Type  = ir.VectorType{Size: ir.Vec2, Scalar: ir.ScalarF32}
	vec4Type  = ir.VectorType{Size: ir.Vec4, Scalar: ir.ScalarF32}
	uvec3Type = ir.VectorType{Size: ir.Vec3, Scalar: ir.ScalarU32}
)

var builtinVariables = map[string]builtinVar{
	"gl_Position":             {ir.BuiltinPosition, vec4Type, true, ir.StagesVertex, 0},
	"gl_PointSize":            {ir.BuiltinPointSize, ir.ScalarF32, true, ir.StagesVertex, 0},
	"gl_ClipDistance":         {ir.BuiltinClipDistance, ir.ScalarF32, true, ir.StagesVertex, 8},
	"gl_CullDistance":         {ir.BuiltinCullDistance, ir.ScalarF32, true, ir.StagesVertex, 8},
	"gl_VertexIndex":          {ir.BuiltinVertexIndex, ir.ScalarI32, false, ir.StagesVertex, 0},
	"gl_VertexID":             {ir.BuiltinVertexIndex, ir.ScalarI32, false, ir.StagesVertex, 0},
	"gl_InstanceIndex":        {ir.BuiltinInstanceIndex, ir.ScalarI32, false, ir.StagesVertex, 0},
	"gl_InstanceID":           {ir.BuiltinInstanceIndex, ir.ScalarI32, false, ir.StagesVertex, 0},
	"gl_FragCoord":            {ir.BuiltinPosition, vec4Type, false, ir.StagesFragment, 0},
	"gl_FrontFacing":          {ir.BuiltinFrontFacing, ir.ScalarBoolean, false, ir.StagesFragment, 0},
	"gl_FragDepth":            {ir.BuiltinFragDepth, ir.ScalarF32, true, ir.StagesFragment, 0},
	"gl_PointCoord":           {ir.BuiltinPointCoord, vec2Type, false, ir.StagesFragment, 0},
	"gl_PrimitiveID":          {ir.BuiltinPrimitiveIndex, ir.ScalarI32, false, ir.StagesFragment, 0},
	"gl_SampleID":             {ir.BuiltinSampleIndex, ir.ScalarI32, false, ir.StagesFragment, 0},
	"gl_SampleMask":           {ir.BuiltinSampleMask, ir.ScalarI32, true, ir.StagesFragment, 1},
	"gl_ViewIndex":            {ir.BuiltinViewIndex, ir.ScalarI32, false, ir.StagesVertex | ir.StagesFragment, 0},
	"gl_GlobalInvocationID":   {ir.BuiltinGlobalInvocationID, uvec3Type, false, ir.StagesCompute, 0},
	"gl_LocalInvocationID":    {ir.BuiltinLocalInvocationID, uvec3Type, false, ir.StagesCompute, 0},
	"gl_LocalInvocationIndex": {ir.BuiltinLocalInvocationIndex, ir.ScalarU32, false, ir.StagesCompute, 0},
	"gl_WorkGroupID":          {ir.BuiltinWorkGroupID, uvec3Type, false, ir.StagesCompute, 0},
	"gl_NumWorkGroups":        {ir.BuiltinNumWorkGroups, uvec3Type, false, ir.StagesCompute, 0},
}

// builtinVariable resolves a gl_ variable, creating its interface global on
// first use. Aliases such as gl_VertexID share one global.
func (l *Lowerer) builtinVariable(name string, loc Location) (operand, bool, error) {
	if name == "gl_WorkGroupSize" {
		if l.stage != ir.StageCompute {
			return operand{}, true, l.errorAt(loc, "gl_WorkGroupSize is only available in compute shaders")
		}
		if l.workgroupConst == nil {
			c := l.materialize("", l.constValues[name])
			l.workgroupConst = &c
		}
		h, err := l.addExpression(ir.ExprConstant{Constant: *l.workgroupConst})
		return operand{handle: h}, true, err
	}

	bv, ok := builtinVariables[name]
	if !ok {
		return operand{}, false, nil
	}
	if !bv.stages.Contains(l.stage) {
		return operand{}, true, l.errorAt(loc, "%s is not available in %s shaders", name, l.stage)
	}
	space := ir.SpaceIn
	if bv.output {
		space = ir.SpaceOut
	}
	key := builtinKey{builtin: bv.builtin, space: space}
	g, ok := l.builtins[key]
	if !ok {
		typ := l.registerType("", bv.typ)
		if bv.arrayLen > 0 {
			n := bv.arrayLen
			typ = l.arrayType(typ, &n, layoutStd430)
		}
		g = l.addGlobal(ir.GlobalVariable{
			Name:  name,
			Space: space,
			Type:  typ,
			IO:    ir.BuiltinBinding{Builtin: bv.builtin},
		})
		l.builtins[key] = g
	}
	h, err := l.addExpression(ir.ExprGlobalVariable{Variable: g})
	return operand{handle: h, pointer: true}, true, err
}

// workgroupSizeValue is the folded value of gl_WorkGroupSize.
func (l *Lowerer) workgroupSizeValue() constValue {
	v := constValue{typ: l.registerType("", uvec3Type), components: make([]constValue, 3)}
	for i, n := range l.workgroup {
		v.components[i] = constValue{scalar: ir.ScalarU32, u: uint64(n)}
	}
	return v
}

// swizzleIndices decodes a swizzle against a vector of n components. All
// letters must come from one of the xyzw, rgba or stpq sets.
func swizzleIndices(name string, n int) ([]int, bool) {
	if len(name) == 0 || len(name) > 4 {
		return nil, false
	}
	for _, set := range []string{"xyzw", "rgba", "stpq"} {
		indices := make([]int, 0, len(name))
		for _, c := range name {
			idx := strings.IndexRune(set, c)
			if idx < 0 || idx >= n {
				break
			}
			indices = append(indices, idx)
		}
		if len(indices) == len(name) {
			return indices, true
		}
	}
	return nil, false
}

// builtinClass groups builtin functions by how their arguments lower.
type builtinClass uint8

const (
	builtinMath builtinClass = iota
	builtinSpecial
	builtinTexture
	builtinImage
	builtinBarrier
)

var mathBuiltins = map[string]ir.MathFunction{
	"abs":             ir.MathAbs,
	"min":             ir.MathMin,
	"max":             ir.MathMax,
	"clamp":           ir.MathClamp,
	"sin":             ir.MathSin,
	"cos":             ir.MathCos,
	"tan":             ir.MathTan,
	"asin":            ir.MathAsin,
	"acos":            ir.MathAcos,
	"sinh":            ir.MathSinh,
	"cosh":            ir.MathCosh,
	"tanh":            ir.MathTanh,
	"asinh":           ir.MathAsinh,
	"acosh":           ir.MathAcosh,
	"atanh":           ir.MathAtanh,
	"radians":         ir.MathRadians,
	"degrees":         ir.MathDegrees,
	"ceil":            ir.MathCeil,
	"floor":           ir.MathFloor,
	"round":           ir.MathRound,
	"roundEven":       ir.MathRound,
	"fract":           ir.MathFract,
	"trunc":           ir.MathTrunc,
	"exp":             ir.MathExp,
	"exp2":            ir.MathExp2,
	"log":             ir.MathLog,
	"log2":            ir.MathLog2,
	"pow":             ir.MathPow,
	"sqrt":            ir.MathSqrt,
	"inversesqrt":     ir.MathInverseSqrt,
	"sign":            ir.MathSign,
	"fma":             ir.MathFma,
	"step":            ir.MathStep,
	"smoothstep":      ir.MathSmoothStep,
	"dot":             ir.MathDot,
	"cross":           ir.MathCross,
	"distance":        ir.MathDistance,
	"length":          ir.MathLength,
	"normalize":       ir.MathNormalize,
	"faceforward":     ir.MathFaceForward,
	"reflect":         ir.MathReflect,
	"refract":         ir.MathRefract,
	"outerProduct":    ir.MathOuter,
	"transpose":       ir.MathTranspose,
	"determinant":     ir.MathDeterminant,
	"inverse":         ir.MathInverse,
	"bitCount":        ir.MathCountOneBits,
	"bitfieldReverse": ir.MathReverseBits,
	"bitfieldExtract": ir.MathExtractBits,
	"bitfieldInsert":  ir.MathInsertBits,
	"findLSB":         ir.MathFirstTrailingBit,
	"findMSB":         ir.MathFirstLeadingBit,
}

// Functions whose numeric arguments keep their integer type.
var integerMath = map[ir.MathFunction]bool{
	ir.MathAbs: true, ir.MathMin: true, ir.MathMax: true, ir.MathClamp: true, ir.MathSign: true,
	ir.MathCountOneBits: true, ir.MathReverseBits: true, ir.MathExtractBits: true,
	ir.MathInsertBits: true, ir.MathFirstTrailingBit: true, ir.MathFirstLeadingBit: true,
}

// Functions that broadcast scalar arguments to the vector size.
var splatMath = map[ir.MathFunction]bool{
	ir.MathMin: true, ir.MathMax: true, ir.MathClamp: true,
	ir.MathMix: true, ir.MathStep: true, ir.MathSmoothStep: true,
}

var builtinFunctions = map[string]builtinClass{
	"atan": builtinSpecial, "mix": builtinSpecial, "mod": builtinSpecial,
	"matrixCompMult": builtinSpecial,
	"lessThan":       builtinSpecial, "lessThanEqual": builtinSpecial,
	"greaterThan": builtinSpecial, "greaterThanEqual": builtinSpecial,
	"equal": builtinSpecial, "notEqual": builtinSpecial,
	"any": builtinSpecial, "all": builtinSpecial, "not": builtinSpecial,
	"isnan": builtinSpecial, "isinf": builtinSpecial,
	"floatBitsToInt": builtinSpecial, "floatBitsToUint": builtinSpecial,
	"intBitsToFloat": builtinSpecial, "uintBitsToFloat": builtinSpecial,
	"dFdx": builtinSpecial, "dFdy": builtinSpecial, "fwidth": builtinSpecial,
	"dFdxFine": builtinSpecial, "dFdyFine": builtinSpecial, "fwidthFine": builtinSpecial,
	"dFdxCoarse": builtinSpecial, "dFdyCoarse": builtinSpecial, "fwidthCoarse": builtinSpecial,
	"nonuniformEXT": builtinSpecial,

	"texture": builtinTexture, "textureLod": builtinTexture, "textureGrad": builtinTexture,
	"textureOffset": builtinTexture, "textureLodOffset": builtinTexture, "textureGradOffset": builtinTexture,
	"textureProj": builtinTexture, "textureGather": builtinTexture, "textureGatherOffset": builtinTexture,
	"texelFetch": builtinTexture, "textureSize": builtinTexture, "textureQueryLevels": builtinTexture,
	"textureSamples": builtinTexture,

	"imageLoad": builtinImage, "imageStore": builtinImage, "imageSize": builtinImage,
	"imageSamples": builtinImage,

	"barrier": builtinBarrier, "memoryBarrier": builtinBarrier, "memoryBarrierShared": builtinBarrier,
	"memoryBarrierBuffer": builtinBarrier, "memoryBarrierImage": builtinBarrier,
	"groupMemoryBarrier": builtinBarrier,
}

func init() {
	for name := range mathBuiltins {
		builtinFunctions[name] = builtinMath
	}
}

func (l *Lowerer) lowerBuiltinCall(call *CallExpr, target *ir.Block) (ir.ExpressionHandle, bool, error) {
	switch builtinFunctions[call.Name] {
	case builtinTexture:
		h, err := l.lowerTexture(call, target)
		return h, err == nil, err
	case builtinImage:
		return l.lowerImage(call, target)
	case builtinBarrier:
		return 0, false, l.lowerBarrier(call, target)
	}

	args := make([]ir.ExpressionHandle, len(call.Args))
	for i, a := range call.Args {
		h, err := l.expr(a, target)
		if err != nil {
			return 0, false, err
		}
		args[i] = h
	}
	var (
		h   ir.ExpressionHandle
		err error
	)
	if fun, ok := mathBuiltins[call.Name]; ok {
		h, err = l.lowerMath(call, fun, args)
	} else {
		h, err = l.lowerSpecial(call, args)
	}
	return h, err == nil, err
}

func (l *Lowerer) argCount(call *CallExpr, counts ...int) error {
	for _, n := range counts {
		if len(call.Args) == n {
			return nil
		}
	}
	return l.errorAt(call.Loc, "wrong number of arguments to %s", call.Name)
}

// widest returns the largest vector size among the arguments, or 0.
func (l *Lowerer) widest(args []ir.ExpressionHandle) ir.VectorSize {
	var size ir.VectorSize
	for _, a := range args {
		if v, ok := l.inner(a).(ir.VectorType); ok && v.Size > size {
			size = v.Size
		}
	}
	return size
}

// lowerMath converts arguments to a common type and emits a Math
// expression.
func (l *Lowerer) lowerMath(call *CallExpr, fun ir.MathFunction, args []ir.ExpressionHandle) (ir.ExpressionHandle, error) {
	if err := l.argCount(call, fun.ArgumentCount()); err != nil {
		return 0, err
	}
	for i, a := range args {
		s, ok := ir.ScalarOf(l.inner(a))
		if !ok || s.Kind == ir.ScalarBool {
			return 0, l.errorAt(call.Args[i].Pos(), "%s needs numeric arguments", call.Name)
		}
	}

	switch fun {
	case ir.MathExtractBits, ir.MathInsertBits:
		// Offset and count stay scalar ints.
	case ir.MathRefract:
		var err error
		for i := range args {
			if args[i], err = l.convert(args[i], ir.ScalarF32); err != nil {
				return 0, err
			}
		}
	default:
		if err := l.unifyArgs(args, !integerMath[fun]); err != nil {
			return 0, l.located(err, call.Loc)
		}
	}
	if fun == ir.MathInverse {
		if m, ok := l.inner(args[0]).(ir.MatrixType); !ok || m.Rows != m.Columns {
			return 0, l.errorAt(call.Loc, "inverse needs a square matrix")
		}
	}
	if splatMath[fun] {
		if err := l.splatArgs(args); err != nil {
			return 0, err
		}
	}
	return l.mathExpr(fun, args...)
}

func (l *Lowerer) mathExpr(fun ir.MathFunction, args ...ir.ExpressionHandle) (ir.ExpressionHandle, error) {
	m := ir.ExprMath{Fun: fun, Arg: args[0]}
	extra := []**ir.ExpressionHandle{&m.Arg1, &m.Arg2, &m.Arg3}
	for i := 1; i < len(args); i++ {
		a := args[i]
		*extra[i-1] = &a
	}
	return l.addExpression(m)
}

// unifyArgs converts every argument to the common scalar type, which is
// float when float is required.
func (l *Lowerer) unifyArgs(args []ir.ExpressionHandle, needFloat bool) error {
	var common *ir.ScalarType
	for _, a := range args {
		s, _ := ir.ScalarOf(l.inner(a))
		if common == nil {
			c := s
			common = &c
		} else {
			c := promote(*common, s)
			common = &c
		}
	}
	if common == nil {
		return nil
	}
	want := *common
	if needFloat && want.Kind != ir.ScalarFloat {
		want = ir.ScalarF32
	}
	for i := range args {
		var err error
		if args[i], err = l.convert(args[i], want); err != nil {
			return err
		}
	}
	return nil
}

func (l *Lowerer) splatArgs(args []ir.ExpressionHandle) error {
	size := l.widest(args)
	if size == 0 {
		return nil
	}
	for i, a := range args {
		if _, ok := l.inner(a).(ir.ScalarType); ok {
			h, err := l.addExpression(ir.ExprSplat{Size: size, Value: a})
			if err != nil {
				return err
			}
			args[i] = h
		}
	}
	return nil
}

var relationalBuiltins = map[string]ir.BinaryOperator{
	"lessThan":         ir.BinaryLess,
	"lessThanEqual":    ir.BinaryLessEqual,
	"greaterThan":      ir.BinaryGreater,
	"greaterThanEqual": ir.BinaryGreaterEqual,
	"equal":            ir.BinaryEqual,
	"notEqual":         ir.BinaryNotEqual,
}

var derivativeBuiltins = map[string]ir.ExprDerivative{
	"dFdx":         {Axis: ir.DerivativeX},
	"dFdy":         {Axis: ir.DerivativeY},
	"fwidth":       {Axis: ir.DerivativeWidth},
	"dFdxFine":     {Axis: ir.DerivativeX, Control: ir.DerivativeFine},
	"dFdyFine":     {Axis: ir.DerivativeY, Control: ir.DerivativeFine},
	"fwidthFine":   {Axis: ir.DerivativeWidth, Control: ir.DerivativeFine},
	"dFdxCoarse":   {Axis: ir.DerivativeX, Control: ir.DerivativeCoarse},
	"dFdyCoarse":   {Axis: ir.DerivativeY, Control: ir.DerivativeCoarse},
	"fwidthCoarse": {Axis: ir.DerivativeWidth, Control: ir.DerivativeCoarse},
}

var bitcastBuiltins = map[string]struct {
	from, to ir.ScalarKind
}{
	"floatBitsToInt":  {ir.ScalarFloat, ir.ScalarSint},
	"floatBitsToUint": {ir.ScalarFloat, ir.ScalarUint},
	"intBitsToFloat":  {ir.ScalarSint, ir.ScalarFloat},
	"uintBitsToFloat": {ir.ScalarUint, ir.ScalarFloat},
}

//nolint:gocyclo,cyclop,funlen // one case per builtin family
func (l *Lowerer) lowerSpecial(call *CallExpr, args []ir.ExpressionHandle) (ir.ExpressionHandle, error) {
	name := call.Name

	if op, ok := relationalBuiltins[name]; ok {
		if err := l.argCount(call, 2); err != nil {
			return 0, err
		}
		if _, ok := l.inner(args[0]).(ir.VectorType); !ok {
			return 0, l.errorAt(call.Loc, "%s needs vector arguments", name)
		}
		a, b, err := l.unify(args[0], args[1], call.Loc)
		if err != nil {
			return 0, err
		}
		return l.addExpression(ir.ExprBinary{Op: op, Left: a, Right: b})
	}
	if d, ok := derivativeBuiltins[name]; ok {
		if err := l.argCount(call, 1); err != nil {
			return 0, err
		}
		if l.stage != ir.StageFragment {
			return 0, l.errorAt(call.Loc, "%s is only available in fragment shaders", name)
		}
		v, err := l.convert(args[0], ir.ScalarF32)
		if err != nil {
			return 0, err
		}
		d.Expr = v
		return l.addExpression(d)
	}
	if bc, ok := bitcastBuiltins[name]; ok {
		if err := l.argCount(call, 1); err != nil {
			return 0, err
		}
		if s, ok := ir.ScalarOf(l.inner(args[0])); !ok || s.Kind != bc.from || s.Width != 4 {
			return 0, l.errorAt(call.Loc, "%s needs a 32-bit %s argument", name, bc.from)
		}
		return l.addExpression(ir.ExprAs{Expr: args[0], Kind: bc.to})
	}

	switch name {
	case "atan":
		if err := l.argCount(call, 1, 2); err != nil {
			return 0, err
		}
		if err := l.unifyArgs(args, true); err != nil {
			return 0, err
		}
		if len(args) == 2 {
			return l.mathExpr(ir.MathAtan2, args...)
		}
		return l.mathExpr(ir.MathAtan, args...)

	case "mix":
		if err := l.argCount(call, 3); err != nil {
			return 0, err
		}
		if s, ok := ir.ScalarOf(l.inner(args[2])); ok && s.Kind == ir.ScalarBool {
			// mix with a bool selector picks y where the selector is true.
			x, y, err := l.unify(args[0], args[1], call.Loc)
			if err != nil {
				return 0, err
			}
			return l.addExpression(ir.ExprSelect{Condition: args[2], Accept: y, Reject: x})
		}
		if err := l.unifyArgs(args, true); err != nil {
			return 0, err
		}
		if err := l.splatArgs(args); err != nil {
			return 0, err
		}
		return l.mathExpr(ir.MathMix, args...)

	case "mod":
		// mod(x, y) = x - y * floor(x / y)
		if err := l.argCount(call, 2); err != nil {
			return 0, err
		}
		if err := l.unifyArgs(args, true); err != nil {
			return 0, err
		}
		if err := l.splatArgs(args); err != nil {
			return 0, err
		}
		x, y := args[0], args[1]
		div, err := l.addExpression(ir.ExprBinary{Op: ir.BinaryDivide, Left: x, Right: y})
		if err != nil {
			return 0, err
		}
		floor, err := l.mathExpr(ir.MathFloor, div)
		if err != nil {
			return 0, err
		}
		mul, err := l.addExpression(ir.ExprBinary{Op: ir.BinaryMultiply, Left: y, Right: floor})
		if err != nil {
			return 0, err
		}
		return l.addExpression(ir.ExprBinary{Op: ir.BinarySubtract, Left: x, Right: mul})

	case "matrixCompMult":
		if err := l.argCount(call, 2); err != nil {
			return 0, err
		}
		m, ok := l.inner(args[0]).(ir.MatrixType)
		if !ok || !sameInner(m, l.inner(args[1])) {
			return 0, l.errorAt(call.Loc, "matrixCompMult needs two matrices of the same type")
		}
		cols := make([]ir.ExpressionHandle, m.Columns)
		for c := range cols {
			a, err := l.addExpression(ir.ExprAccessIndex{Base: args[0], Index: uint32(c)}) //nolint:gosec // G115: at most 4
			if err != nil {
				return 0, err
			}
			b, err := l.addExpression(ir.ExprAccessIndex{Base: args[1], Index: uint32(c)}) //nolint:gosec // G115: at most 4
			if err != nil {
				return 0, err
			}
			if cols[c], err = l.addExpression(ir.ExprBinary{Op: ir.BinaryMultiply, Left: a, Right: b}); err != nil {
				return 0, err
			}
		}
		return l.addExpression(ir.ExprCompose{Type: l.typeHandleOf(args[0]), Components: cols})

	case "any", "all", "not":
		if err := l.argCount(call, 1); err != nil {
			return 0, err
		}
		v, ok := l.inner(args[0]).(ir.VectorType)
		if !ok || v.Scalar.Kind != ir.ScalarBool {
			return 0, l.errorAt(call.Loc, "%s needs a bool vector", name)
		}
		switch name {
		case "any":
			return l.addExpression(ir.ExprRelational{Fun: ir.RelationalAny, Argument: args[0]})
		case "all":
			return l.addExpression(ir.ExprRelational{Fun: ir.RelationalAll, Argument: args[0]})
		}
		return l.addExpression(ir.ExprUnary{Op: ir.UnaryLogicalNot, Expr: args[0]})

	case "isnan", "isinf":
		if err := l.argCount(call, 1); err != nil {
			return 0, err
		}
		fun := ir.RelationalIsNan
		if name == "isinf" {
			fun = ir.RelationalIsInf
		}
		return l.addExpression(ir.ExprRelational{Fun: fun, Argument: args[0]})

	case "nonuniformEXT":
		if err := l.argCount(call, 1); err != nil {
			return 0, err
		}
		return args[0], nil
	}
	return 0, l.errorAt(call.Loc, "unsupported builtin function %s", name)
}

var barrierFlags = map[string]ir.BarrierFlags{
	"barrier":             ir.BarrierWorkGroup,
	"memoryBarrierShared": ir.BarrierWorkGroup,
	"memoryBarrierBuffer": ir.BarrierStorage,
	"memoryBarrierImage":  ir.BarrierTexture,
	"memoryBarrier":       ir.BarrierStorage | ir.BarrierTexture,
	"groupMemoryBarrier":  ir.BarrierStorage | ir.BarrierWorkGroup | ir.BarrierTexture,
}

func (l *Lowerer) lowerBarrier(call *CallExpr, target *ir.Block) error {
	if err := l.argCount(call, 0); err != nil {
		return err
	}
	if l.stage != ir.StageCompute {
		return l.errorAt(call.Loc, "%s is only available in compute shaders", call.Name)
	}
	l.push(target, ir.StmtBarrier{Flags: barrierFlags[call.Name]})
	return nil
}

// sampled is the image and sampler pair a texture function operates on.
type sampled struct {
	image   ir.ExpressionHandle
	sampler ir.ExpressionHandle
	img     ir.ImageType
	// hasSampler is false for plain texture objects, which can only be
	// fetched from or queried.
	hasSampler bool
}

// textureOperand lowers the first argument of a texture function: a
// combined sampler or a sampler2D(texture, sampler) pair.
func (l *Lowerer) textureOperand(arg Expr, target *ir.Block) (sampled, error) {
	if call, ok := arg.(*CallExpr); ok && len(call.Args) == 2 {
		if st, ok := builtinTypes[call.Name].(ir.SampledImageType); ok {
			image, err := l.expr(call.Args[0], target)
			if err != nil {
				return sampled{}, err
			}
			sampler, err := l.expr(call.Args[1], target)
			if err != nil {
				return sampled{}, err
			}
			img, ok := l.inner(image).(ir.ImageType)
			if !ok || img.Class != ir.ImageClassSampled {
				return sampled{}, l.errorAt(call.Loc, "%s needs a texture as its first argument", call.Name)
			}
			if _, ok := l.inner(sampler).(ir.SamplerType); !ok {
				return sampled{}, l.errorAt(call.Loc, "%s needs a sampler as its second argument", call.Name)
			}
			if st.Image.Class == ir.ImageClassDepth {
				return sampled{}, l.errorAt(call.Loc, "shadow samplers built from separate objects are not supported")
			}
			return sampled{image: image, sampler: sampler, img: img, hasSampler: true}, nil
		}
	}
	h, err := l.expr(arg, target)
	if err != nil {
		return sampled{}, err
	}
	switch t := l.inner(h).(type) {
	case ir.SampledImageType:
		return sampled{image: h, sampler: h, img: t.Image, hasSampler: true}, nil
	case ir.ImageType:
		return sampled{image: h, sampler: h, img: t}, nil
	}
	return sampled{}, l.errorAt(arg.Pos(), "expected a sampler or texture")
}

func coordinateDims(dim ir.ImageDimension) int {
	switch dim {
	case ir.Dim1D:
		return 1
	case ir.Dim2D:
		return 2
	}
	return 3
}

// splitCoordinate separates the texel coordinate, the array layer and the
// depth reference packed into one GLSL coordinate vector.
func (l *Lowerer) splitCoordinate(p ir.ExpressionHandle, img ir.ImageType, shadow bool) (coord ir.ExpressionHandle, layer, ref *ir.ExpressionHandle, err error) {
	dims := coordinateDims(img.Dim)
	total := l.componentCount(p)
	need := dims
	if img.Arrayed {
		need++
	}
	if total < need {
		return 0, nil, nil, fmt.Errorf("coordinate needs %d components, found %d", need, total)
	}

	coord = p
	switch {
	case dims == 1 && total > 1:
		coord, err = l.addExpression(ir.ExprAccessIndex{Base: p, Index: 0})
	case dims > 1 && total > dims:
		coord, err = l.swizzle(p, []int{0, 1, 2}[:dims])
	}
	if err != nil {
		return 0, nil, nil, err
	}

	if img.Arrayed {
		h, err := l.addExpression(ir.ExprAccessIndex{Base: p, Index: uint32(dims)}) //nolint:gosec // G115: at most 3
		if err != nil {
			return 0, nil, nil, err
		}
		if h, err = l.convert(h, ir.ScalarI32); err != nil {
			return 0, nil, nil, err
		}
		layer = &h
	}

	if shadow {
		idx := need
		if img.Dim == ir.Dim1D {
			// 1D shadow coordinates keep the reference in the third slot.
			idx = 2
		}
		if idx < total {
			h, err := l.addExpression(ir.ExprAccessIndex{Base: p, Index: uint32(idx)}) //nolint:gosec // G115: at most 3
			if err != nil {
				return 0, nil, nil, err
			}
			ref = &h
		}
	}
	return coord, layer, ref, nil
}

// gatherComponent reads the constant component argument of textureGather.
func (l *Lowerer) gatherComponent(e Expr) (ir.SwizzleComponent, error) {
	v, err := l.evalInt(e)
	if err != nil || v < 0 || v > 3 {
		return 0, l.errorAt(e.Pos(), "gather component must be a constant between 0 and 3")
	}
	return ir.SwizzleComponent(v), nil //nolint:gosec // G115: range checked above
}

//nolint:gocyclo,cyclop,funlen,gocognit // one case per texture function
func (l *Lowerer) lowerTexture(call *CallExpr, target *ir.Block) (ir.ExpressionHandle, error) {
	name := call.Name
	if len(call.Args) == 0 {
		return 0, l.errorAt(call.Loc, "%s needs a sampler argument", name)
	}
	s, err := l.textureOperand(call.Args[0], target)
	if err != nil {
		return 0, err
	}
	rest := make([]ir.ExpressionHandle, 0, len(call.Args)-1)
	restExprs := call.Args[1:]

	switch name {
	case "textureSize", "textureQueryLevels", "textureSamples":
		for _, a := range restExprs {
			h, err := l.expr(a, target)
			if err != nil {
				return 0, err
			}
			rest = append(rest, h)
		}
		switch name {
		case "textureQueryLevels":
			return l.queryScalar(s.image, ir.ImageQueryNumLevels{})
		case "textureSamples":
			return l.queryScalar(s.image, ir.ImageQueryNumSamples{})
		}
		var level *ir.ExpressionHandle
		if len(rest) > 0 && !s.img.Multisampled {
			level = &rest[0]
		}
		return l.querySize(s.image, s.img, level)

	case "texelFetch":
		if err := l.argCount(call, 2, 3); err != nil {
			return 0, err
		}
		p, err := l.expr(restExprs[0], target)
		if err != nil {
			return 0, err
		}
		coord, layer, _, err := l.splitCoordinate(p, s.img, false)
		if err != nil {
			return 0, l.located(err, call.Loc)
		}
		load := ir.ExprImageLoad{Image: s.image, Coordinate: coord, ArrayIndex: layer}
		if len(restExprs) > 1 {
			extra, err := l.expr(restExprs[1], target)
			if err != nil {
				return 0, err
			}
			if s.img.Multisampled {
				load.Sample = &extra
			} else {
				load.Level = &extra
			}
		}
		return l.addExpression(load)
	}

	if !s.hasSampler {
		return 0, l.errorAt(call.Loc, "%s needs a sampler, not a bare texture", name)
	}
	if len(restExprs) == 0 {
		return 0, l.errorAt(call.Loc, "%s needs a coordinate", name)
	}
	p, err := l.expr(restExprs[0], target)
	if err != nil {
		return 0, err
	}
	if p, err = l.convert(p, ir.ScalarF32); err != nil {
		return 0, err
	}
	for _, a := range restExprs[1:] {
		h, err := l.expr(a, target)
		if err != nil {
			return 0, err
		}
		rest = append(rest, h)
	}
	shadow := s.img.Class == ir.ImageClassDepth
	sample := ir.ExprImageSample{Image: s.image, Sampler: s.sampler, Level: ir.SampleLevelAuto{}}

	if name == "textureProj" {
		if s.img.Dim != ir.Dim2D || s.img.Arrayed || shadow {
			return 0, l.errorAt(call.Loc, "textureProj is only supported for 2D samplers")
		}
		n := l.componentCount(p)
		if n < 3 {
			return 0, l.errorAt(call.Loc, "textureProj needs a vec3 or vec4 coordinate")
		}
		xy, err := l.swizzle(p, []int{0, 1})
		if err != nil {
			return 0, err
		}
		q, err := l.addExpression(ir.ExprAccessIndex{Base: p, Index: uint32(n - 1)}) //nolint:gosec // G115: at most 3
		if err != nil {
			return 0, err
		}
		if sample.Coordinate, err = l.addExpression(ir.ExprBinary{Op: ir.BinaryDivide, Left: xy, Right: q}); err != nil {
			return 0, err
		}
		if len(rest) > 0 {
			b, err := l.convert(rest[0], ir.ScalarF32)
			if err != nil {
				return 0, err
			}
			sample.Level = ir.SampleLevelBias{Bias: b}
		}
		return l.finishSample(sample)
	}

	coord, layer, ref, err := l.splitCoordinate(p, s.img, shadow)
	if err != nil {
		return 0, l.located(err, call.Loc)
	}
	sample.Coordinate = coord
	sample.ArrayIndex = layer
	src := restExprs[1:]
	if shadow && ref == nil && name != "textureGather" && name != "textureGatherOffset" {
		// samplerCubeArrayShadow passes the reference separately.
		if len(rest) == 0 {
			return 0, l.errorAt(call.Loc, "%s on a shadow sampler needs a depth reference", name)
		}
		ref = &rest[0]
		rest, src = rest[1:], src[1:]
	}
	sample.DepthRef = ref

	var offsetSrc Expr
	take := func() (ir.ExpressionHandle, Expr, bool) {
		if len(rest) == 0 {
			return 0, nil, false
		}
		h, e := rest[0], src[0]
		rest, src = rest[1:], src[1:]
		return h, e, true
	}
	need := func(what string) (ir.ExpressionHandle, error) {
		h, _, ok := take()
		if !ok {
			return 0, l.errorAt(call.Loc, "%s needs %s", name, what)
		}
		return h, nil
	}
	offset := func() error {
		h, e, ok := take()
		if !ok {
			return l.errorAt(call.Loc, "%s needs an offset", name)
		}
		sample.Offset = &h
		offsetSrc = e
		return nil
	}
	bias := func() error {
		if h, _, ok := take(); ok {
			b, err := l.convert(h, ir.ScalarF32)
			if err != nil {
				return err
			}
			sample.Level = ir.SampleLevelBias{Bias: b}
		}
		return nil
	}

	switch name {
	case "texture":
		if err := bias(); err != nil {
			return 0, err
		}
	case "textureOffset":
		if err := offset(); err != nil {
			return 0, err
		}
		if err := bias(); err != nil {
			return 0, err
		}
	case "textureLod", "textureLodOffset":
		lod, err := need("a level of detail")
		if err != nil {
			return 0, err
		}
		if lod, err = l.convert(lod, ir.ScalarF32); err != nil {
			return 0, err
		}
		sample.Level = ir.SampleLevelExact{Level: lod}
		if name == "textureLodOffset" {
			if err := offset(); err != nil {
				return 0, err
			}
		}
	case "textureGrad", "textureGradOffset":
		dx, err := need("gradients")
		if err != nil {
			return 0, err
		}
		dy, err := need("gradients")
		if err != nil {
			return 0, err
		}
		sample.Level = ir.SampleLevelGradient{X: dx, Y: dy}
		if name == "textureGradOffset" {
			if err := offset(); err != nil {
				return 0, err
			}
		}
	case "textureGather", "textureGatherOffset":
		sample.Level = ir.SampleLevelZero{}
		comp := ir.SwizzleX
		if shadow {
			r, err := need("a depth reference")
			if err != nil {
				return 0, err
			}
			sample.DepthRef = &r
		}
		if name == "textureGatherOffset" {
			if err := offset(); err != nil {
				return 0, err
			}
		}
		if !shadow {
			if _, e, ok := take(); ok {
				if comp, err = l.gatherComponent(e); err != nil {
					return 0, err
				}
			}
		}
		sample.Gather = &comp
	}
	if len(rest) > 0 {
		return 0, l.errorAt(call.Loc, "too many arguments to %s", name)
	}
	if offsetSrc != nil {
		if _, err := l.evalConst(offsetSrc); err != nil {
			return 0, l.errorAt(offsetSrc.Pos(), "texel offset of %s must be a constant expression", name)
		}
	}
	return l.finishSample(sample)
}

// finishSample adds an image sample. Implicit derivatives exist only in
// fragment shaders; elsewhere the base level is sampled.
func (l *Lowerer) finishSample(sample ir.ExprImageSample) (ir.ExpressionHandle, error) {
	if l.stage != ir.StageFragment {
		switch sample.Level.(type) {
		case ir.SampleLevelAuto, ir.SampleLevelBias:
			sample.Level = ir.SampleLevelZero{}
		}
	}
	return l.addExpression(sample)
}

func (l *Lowerer) queryScalar(image ir.ExpressionHandle, q ir.ImageQuery) (ir.ExpressionHandle, error) {
	h, err := l.addExpression(ir.ExprImageQuery{Image: image, Query: q})
	if err != nil {
		return 0, err
	}
	return l.convert(h, ir.ScalarI32)
}

// querySize returns the GLSL size vector, with the layer count appended for
// arrayed images.
func (l *Lowerer) querySize(image ir.ExpressionHandle, img ir.ImageType, level *ir.ExpressionHandle) (ir.ExpressionHandle, error) {
	if level != nil {
		lvl, err := l.convert(*level, ir.ScalarI32)
		if err != nil {
			return 0, err
		}
		level = &lvl
	}
	size, err := l.queryScalar(image, ir.ImageQuerySize{Level: level})
	if err != nil {
		return 0, err
	}
	if !img.Arrayed {
		return size, nil
	}
	layers, err := l.queryScalar(image, ir.ImageQueryNumLayers{})
	if err != nil {
		return 0, err
	}
	n := l.componentCount(size) + 1
	typ := l.registerType("", ir.VectorType{Size: ir.VectorSize(n), Scalar: ir.ScalarI32}) //nolint:gosec // G115: at most 4
	return l.addExpression(ir.ExprCompose{Type: typ, Components: []ir.ExpressionHandle{size, layers}})
}

func (l *Lowerer) lowerImage(call *CallExpr, target *ir.Block) (ir.ExpressionHandle, bool, error) {
	if len(call.Args) == 0 {
		return 0, false, l.errorAt(call.Loc, "%s needs an image argument", call.Name)
	}
	image, err := l.expr(call.Args[0], target)
	if err != nil {
		return 0, false, err
	}
	img, ok := l.inner(image).(ir.ImageType)
	if !ok || img.Class != ir.ImageClassStorage {
		return 0, false, l.errorAt(call.Args[0].Pos(), "%s needs a storage image", call.Name)
	}
	args := make([]ir.ExpressionHandle, 0, len(call.Args)-1)
	for _, a := range call.Args[1:] {
		h, err := l.expr(a, target)
		if err != nil {
			return 0, false, err
		}
		args = append(args, h)
	}

	switch call.Name {
	case "imageSize":
		if err := l.argCount(call, 1); err != nil {
			return 0, false, err
		}
		h, err := l.querySize(image, img, nil)
		return h, err == nil, err
	case "imageSamples":
		return 0, false, l.errorAt(call.Loc, "multisampled storage images are not supported")
	}

	if len(args) == 0 {
		return 0, false, l.errorAt(call.Loc, "%s needs a coordinate", call.Name)
	}
	coord, layer, _, err := l.splitCoordinate(args[0], img, false)
	if err != nil {
		return 0, false, l.located(err, call.Loc)
	}

	if call.Name == "imageStore" {
		if err := l.argCount(call, 3); err != nil {
			return 0, false, err
		}
		if img.Access&ir.StorageStore == 0 {
			return 0, false, l.errorAt(call.Loc, "imageStore to a readonly image")
		}
		l.push(target, ir.StmtImageStore{Image: image, Coordinate: coord, ArrayIndex: layer, Value: args[1]})
		return 0, false, nil
	}

	if err := l.argCount(call, 2); err != nil {
		return 0, false, err
	}
	if img.Access&ir.StorageLoad == 0 {
		return 0, false, l.errorAt(call.Loc, "imageLoad from a writeonly image")
	}
	h, err := l.addExpression(ir.ExprImageLoad{Image: image, Coordinate: coord, ArrayIndex: layer})
	return h, err == nil, err
}
