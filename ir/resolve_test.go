package ir

import (
	"testing"
)

// resolveAll fills fn.ExpressionTypes in arena order, the way frontends do.
func resolveAll(t *testing.T, module *Module, fn *Function) {
	t.Helper()
	fn.ExpressionTypes = fn.ExpressionTypes[:0]
	for i := range fn.Expressions {
		res, err := ResolveExpressionType(module, fn, ExpressionHandle(i))
		if err != nil {
			t.Fatalf("resolve [%d]: %v", i, err)
		}
		fn.ExpressionTypes = append(fn.ExpressionTypes, res)
	}
}

func exprs(kinds ...ExpressionKind) []Expression {
	out := make([]Expression, len(kinds))
	for i, k := range kinds {
		out[i] = Expression{Kind: k}
	}
	return out
}

func TestResolve_Literals(t *testing.T) {
	tests := []struct {
		value LiteralValue
		want  ScalarType
	}{
		{LiteralF32(1), ScalarF32},
		{LiteralF64(1), ScalarF64},
		{LiteralI32(1), ScalarI32},
		{LiteralU32(1), ScalarU32},
		{LiteralI64(1), ScalarI64},
		{LiteralU64(1), ScalarU64},
		{LiteralBool(true), ScalarBoolean},
	}
	for _, tt := range tests {
		fn := &Function{Expressions: exprs(Literal{Value: tt.value})}
		res, err := ResolveExpressionType(&Module{}, fn, 0)
		if err != nil {
			t.Fatalf("%T: %v", tt.value, err)
		}
		if res.Value != tt.want {
			t.Errorf("%T resolved to %v, want %v", tt.value, res.Value, tt.want)
		}
	}
}

func TestResolve_Comparison(t *testing.T) {
	module := &Module{Types: []Type{{Inner: VectorType{Size: Vec3, Scalar: ScalarF32}}}}
	fn := &Function{
		Arguments: []FunctionArgument{{Name: "a", Type: 0}},
		Expressions: exprs(
			ExprFunctionArgument{Index: 0},
			ExprFunctionArgument{Index: 0},
			ExprBinary{Op: BinaryLess, Left: 0, Right: 1},
			Literal{Value: LiteralF32(1)},
			Literal{Value: LiteralF32(2)},
			ExprBinary{Op: BinaryEqual, Left: 3, Right: 4},
		),
	}
	resolveAll(t, module, fn)

	if got := fn.ExpressionTypes[2].Inner(module); got != (VectorType{Size: Vec3, Scalar: ScalarBoolean}) {
		t.Errorf("vector comparison resolved to %v", got)
	}
	if got := fn.ExpressionTypes[5].Inner(module); got != ScalarBoolean {
		t.Errorf("scalar comparison resolved to %v", got)
	}
}

func TestResolve_MatrixMultiply(t *testing.T) {
	module := &Module{Types: []Type{
		{Inner: MatrixType{Columns: Vec4, Rows: Vec3, Scalar: ScalarF32}},
		{Inner: VectorType{Size: Vec4, Scalar: ScalarF32}},
		{Inner: VectorType{Size: Vec3, Scalar: ScalarF32}},
	}}
	fn := &Function{
		Arguments: []FunctionArgument{{Name: "m", Type: 0}, {Name: "v4", Type: 1}, {Name: "v3", Type: 2}},
		Expressions: exprs(
			ExprFunctionArgument{Index: 0},
			ExprFunctionArgument{Index: 1},
			ExprFunctionArgument{Index: 2},
			ExprBinary{Op: BinaryMultiply, Left: 0, Right: 1},
			ExprBinary{Op: BinaryMultiply, Left: 2, Right: 0},
		),
	}
	resolveAll(t, module, fn)

	if got := fn.ExpressionTypes[3].Inner(module); got != (VectorType{Size: Vec3, Scalar: ScalarF32}) {
		t.Errorf("mat4x3 * vec4 resolved to %v, want vec3", got)
	}
	if got := fn.ExpressionTypes[4].Inner(module); got != (VectorType{Size: Vec4, Scalar: ScalarF32}) {
		t.Errorf("vec3 * mat4x3 resolved to %v, want vec4", got)
	}
}

func TestResolve_PointerAccess(t *testing.T) {
	four := uint32(4)
	module := &Module{
		Types: []Type{
			{Inner: ScalarF32},
			{Inner: VectorType{Size: Vec4, Scalar: ScalarF32}},
			{Inner: ArrayType{Base: 1, Size: ArraySize{Constant: &four}, Stride: 16}},
			{Name: "Block", Inner: StructType{Members: []StructMember{{Name: "items", Type: 2}}, Span: 64}},
		},
		GlobalVariables: []GlobalVariable{
			{Name: "block", Space: SpaceUniform, Type: 3, Binding: &ResourceBinding{}},
		},
	}
	fn := &Function{
		Expressions: exprs(
			ExprGlobalVariable{Variable: 0},
			ExprAccessIndex{Base: 0, Index: 0},
			ExprAccessIndex{Base: 1, Index: 2},
			ExprAccessIndex{Base: 2, Index: 1},
			ExprLoad{Pointer: 3},
		),
	}
	resolveAll(t, module, fn)

	wantPtr := PointerType{Base: 2, Space: SpaceUniform}
	if got := fn.ExpressionTypes[1].Inner(module); got != wantPtr {
		t.Errorf("member access resolved to %v, want %v", got, wantPtr)
	}
	if got := fn.ExpressionTypes[2].Inner(module); got != (PointerType{Base: 1, Space: SpaceUniform}) {
		t.Errorf("element access resolved to %v", got)
	}
	if got := fn.ExpressionTypes[3].Inner(module); got != (ValuePointerType{Scalar: ScalarF32, Space: SpaceUniform}) {
		t.Errorf("component access resolved to %v", got)
	}
	if got := fn.ExpressionTypes[4].Inner(module); got != ScalarF32 {
		t.Errorf("load resolved to %v, want f32", got)
	}
}

func TestResolve_ImageSample(t *testing.T) {
	color := SampledImageType{Image: ImageType{Dim: Dim2D, SampledKind: ScalarUint}}
	shadow := SampledImageType{Image: ImageType{Dim: Dim2D, Class: ImageClassDepth}}
	module := &Module{
		Types: []Type{
			{Inner: color},
			{Inner: shadow},
			{Inner: VectorType{Size: Vec2, Scalar: ScalarF32}},
		},
		GlobalVariables: []GlobalVariable{
			{Name: "tex", Space: SpaceHandle, Type: 0, Binding: &ResourceBinding{Binding: 0}},
			{Name: "shadow", Space: SpaceHandle, Type: 1, Binding: &ResourceBinding{Binding: 1}},
		},
	}
	fn := &Function{
		Arguments: []FunctionArgument{{Name: "uv", Type: 2}},
		Expressions: exprs(
			ExprGlobalVariable{Variable: 0},
			ExprGlobalVariable{Variable: 1},
			ExprFunctionArgument{Index: 0},
			Literal{Value: LiteralF32(0.5)},
			ExprImageSample{Image: 0, Sampler: 0, Coordinate: 2, Level: SampleLevelAuto{}},
			ExprImageSample{Image: 1, Sampler: 1, Coordinate: 2, Level: SampleLevelZero{}, DepthRef: ptrTo(ExpressionHandle(3))},
			ExprImageQuery{Image: 0, Query: ImageQuerySize{}},
		),
	}
	resolveAll(t, module, fn)

	if got := fn.ExpressionTypes[0].Inner(module); got != color {
		t.Errorf("handle global resolved to %v, want the image value", got)
	}
	if got := fn.ExpressionTypes[4].Inner(module); got != (VectorType{Size: Vec4, Scalar: ScalarU32}) {
		t.Errorf("usampler2D sample resolved to %v", got)
	}
	if got := fn.ExpressionTypes[5].Inner(module); got != ScalarF32 {
		t.Errorf("shadow sample resolved to %v", got)
	}
	if got := fn.ExpressionTypes[6].Inner(module); got != (VectorType{Size: Vec2, Scalar: ScalarU32}) {
		t.Errorf("size query resolved to %v", got)
	}
}

func TestResolve_Math(t *testing.T) {
	module := &Module{Types: []Type{
		{Inner: VectorType{Size: Vec3, Scalar: ScalarF32}},
		{Inner: VectorType{Size: Vec2, Scalar: ScalarU32}},
	}}
	fn := &Function{
		Arguments: []FunctionArgument{{Name: "v", Type: 0}, {Name: "u", Type: 1}},
		Expressions: exprs(
			ExprFunctionArgument{Index: 0},
			ExprFunctionArgument{Index: 1},
			Literal{Value: LiteralF32(0.5)},
			ExprMath{Fun: MathDot, Arg: 0, Arg1: ptrTo(ExpressionHandle(0))},
			ExprMath{Fun: MathStep, Arg: 2, Arg1: ptrTo(ExpressionHandle(0))},
			ExprMath{Fun: MathCountOneBits, Arg: 1},
			ExprMath{Fun: MathOuter, Arg: 0, Arg1: ptrTo(ExpressionHandle(0))},
			ExprMath{Fun: MathMax, Arg: 2, Arg1: ptrTo(ExpressionHandle(0))},
		),
	}
	resolveAll(t, module, fn)

	tests := []struct {
		handle ExpressionHandle
		want   TypeInner
	}{
		{3, ScalarF32},
		{4, VectorType{Size: Vec3, Scalar: ScalarF32}},
		{5, VectorType{Size: Vec2, Scalar: ScalarI32}},
		{6, MatrixType{Columns: Vec3, Rows: Vec3, Scalar: ScalarF32}},
		{7, VectorType{Size: Vec3, Scalar: ScalarF32}},
	}
	for _, tt := range tests {
		if got := fn.ExpressionTypes[tt.handle].Inner(module); got != tt.want {
			t.Errorf("[%d] resolved to %v, want %v", tt.handle, got, tt.want)
		}
	}
}

func TestResolve_As(t *testing.T) {
	module := &Module{Types: []Type{{Inner: VectorType{Size: Vec2, Scalar: ScalarI32}}}}
	four := uint8(4)
	fn := &Function{
		Arguments: []FunctionArgument{{Name: "i", Type: 0}},
		Expressions: exprs(
			ExprFunctionArgument{Index: 0},
			ExprAs{Expr: 0, Kind: ScalarFloat, Convert: &four},
			ExprAs{Expr: 0, Kind: ScalarUint},
			ExprAs{Expr: 0, Kind: ScalarBool, Convert: ptrTo(uint8(1))},
		),
	}
	resolveAll(t, module, fn)

	want := []TypeInner{
		VectorType{Size: Vec2, Scalar: ScalarF32},
		VectorType{Size: Vec2, Scalar: ScalarU32},
		VectorType{Size: Vec2, Scalar: ScalarBoolean},
	}
	for i, w := range want {
		if got := fn.ExpressionTypes[i+1].Inner(module); got != w {
			t.Errorf("[%d] resolved to %v, want %v", i+1, got, w)
		}
	}
}

func TestResolve_OutOfRange(t *testing.T) {
	if _, err := ResolveExpressionType(&Module{}, &Function{}, 3); err == nil {
		t.Error("expected an error for a dangling handle")
	}
}

func ptrTo[T any](v T) *T {
	return &v
}
