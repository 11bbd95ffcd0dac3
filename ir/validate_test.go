package ir

import (
	"errors"
	"strings"
	"testing"
)

// fragmentModule builds a fragment shader writing a constant color.
func fragmentModule() *Module {
	module := &Module{
		Types: []Type{
			{Inner: ScalarF32},
			{Inner: VectorType{Size: Vec4, Scalar: ScalarF32}},
		},
		GlobalVariables: []GlobalVariable{
			{Name: "color", Space: SpaceOut, Type: 1, IO: LocationBinding{Location: 0}},
		},
		Functions: []Function{{
			Name: "main",
			Expressions: exprs(
				ExprGlobalVariable{Variable: 0},
				Literal{Value: LiteralF32(1)},
				ExprSplat{Size: Vec4, Value: 1},
			),
			Body: Block{
				{Kind: StmtEmit{Range: Range{Start: 0, End: 3}}},
				{Kind: StmtStore{Pointer: 0, Value: 2}},
				{Kind: StmtReturn{}},
			},
		}},
		EntryPoints: []EntryPoint{{Name: "main", Stage: StageFragment, Function: 0}},
	}
	return module
}

func mustResolve(t *testing.T, module *Module) *Module {
	t.Helper()
	for i := range module.Functions {
		resolveAll(t, module, &module.Functions[i])
	}
	return module
}

func TestValidate_ValidModule(t *testing.T) {
	module := mustResolve(t, fragmentModule())

	info, err := Validate(module, CapabilitiesNone)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !info.Describes(module) {
		t.Error("info does not describe the validated module")
	}
	if info.Describes(fragmentModule()) {
		t.Error("info describes a module it was not built from")
	}

	fi := info.Function(0)
	if fi == nil {
		t.Fatal("missing function info")
	}
	if fi.GlobalUses[0] != GlobalRead|GlobalWrite {
		t.Errorf("color use = %b, want read|write", fi.GlobalUses[0])
	}
	if !fi.UsesGlobal(0) {
		t.Error("UsesGlobal(0) = false")
	}
	if fi.Expressions[0].RefCount != 1 || fi.Expressions[1].RefCount != 1 {
		t.Errorf("ref counts = %+v", fi.Expressions)
	}
	if info.EntryPoint(0) == nil || info.EntryPoint(1) != nil {
		t.Error("EntryPoint lookup is off")
	}
	if info.Capabilities() != CapabilitiesNone {
		t.Errorf("Capabilities() = %s, want NONE", info.Capabilities())
	}
}

func TestValidate_NilModule(t *testing.T) {
	_, err := Validate(nil, CapabilitiesNone)
	var se *StructuralError
	if !errors.As(err, &se) {
		t.Fatalf("expected StructuralError, got %v", err)
	}
}

func TestValidate_StructuralErrors(t *testing.T) {
	four := uint32(4)
	tests := []struct {
		name   string
		mutate func(m *Module)
		want   string
	}{
		{
			name: "dangling array base",
			mutate: func(m *Module) {
				m.Types = append(m.Types, Type{Inner: ArrayType{Base: 99, Size: ArraySize{Constant: &four}}})
			},
			want: "not declared before",
		},
		{
			name: "integer matrix",
			mutate: func(m *Module) {
				m.Types = append(m.Types, Type{Inner: MatrixType{Columns: Vec2, Rows: Vec2, Scalar: ScalarI32}})
			},
			want: "matrix scalar must be float",
		},
		{
			name: "vector of five",
			mutate: func(m *Module) {
				m.Types = append(m.Types, Type{Inner: VectorType{Size: 5, Scalar: ScalarF32}})
			},
			want: "vector size",
		},
		{
			name: "resource without binding",
			mutate: func(m *Module) {
				m.GlobalVariables = append(m.GlobalVariables, GlobalVariable{Name: "ubo", Space: SpaceUniform, Type: 1})
			},
			want: "has no binding",
		},
		{
			name: "duplicate binding",
			mutate: func(m *Module) {
				b := &ResourceBinding{Group: 0, Binding: 2}
				m.GlobalVariables = append(m.GlobalVariables,
					GlobalVariable{Name: "a", Space: SpaceUniform, Type: 1, Binding: b},
					GlobalVariable{Name: "b", Space: SpaceStorage, Type: 1, Binding: b},
				)
			},
			want: "share set=0, binding=2",
		},
		{
			name: "duplicate location",
			mutate: func(m *Module) {
				m.GlobalVariables = append(m.GlobalVariables,
					GlobalVariable{Name: "other", Space: SpaceOut, Type: 1, IO: LocationBinding{Location: 0}})
			},
			want: "share location 0",
		},
		{
			name: "operand after use",
			mutate: func(m *Module) {
				m.Functions[0].Expressions[2] = Expression{Kind: ExprSplat{Size: Vec4, Value: 2}}
			},
			want: "expression [2]",
		},
		{
			name: "emit out of range",
			mutate: func(m *Module) {
				m.Functions[0].Body[0] = Statement{Kind: StmtEmit{Range: Range{Start: 0, End: 9}}}
			},
			want: "out of bounds",
		},
		{
			name: "break outside loop",
			mutate: func(m *Module) {
				m.Functions[0].Body = append(Block{{Kind: StmtBreak{}}}, m.Functions[0].Body...)
			},
			want: "break outside",
		},
		{
			name: "continue in continuing",
			mutate: func(m *Module) {
				m.Functions[0].Body = append(Block{{Kind: StmtLoop{
					Body:       Block{{Kind: StmtBreak{}}},
					Continuing: Block{{Kind: StmtContinue{}}},
				}}}, m.Functions[0].Body...)
			},
			want: "continue inside a continuing block",
		},
		{
			name: "return value from void",
			mutate: func(m *Module) {
				v := ExpressionHandle(1)
				m.Functions[0].Body[2] = Statement{Kind: StmtReturn{Value: &v}}
			},
			want: "void function",
		},
		{
			name: "missing expression types",
			mutate: func(m *Module) {
				m.Functions[0].ExpressionTypes = nil
			},
			want: "expression types",
		},
		{
			name: "recursive call",
			mutate: func(m *Module) {
				m.Functions[0].Body = append(Block{{Kind: StmtCall{Function: 0}}}, m.Functions[0].Body...)
			},
			want: "recursion",
		},
		{
			name: "duplicate entry point",
			mutate: func(m *Module) {
				m.EntryPoints = append(m.EntryPoints, m.EntryPoints[0])
			},
			want: "duplicate fragment entry point",
		},
		{
			name: "empty workgroup",
			mutate: func(m *Module) {
				m.GlobalVariables[0].Space = SpacePrivate
				m.GlobalVariables[0].IO = nil
				m.EntryPoints[0].Stage = StageCompute
			},
			want: "zero workgroup size",
		},
		{
			name: "read-write storage image without format",
			mutate: func(m *Module) {
				m.Types = append(m.Types, Type{Inner: ImageType{Dim: Dim2D, Class: ImageClassStorage, Access: StorageReadWrite}})
				m.GlobalVariables = append(m.GlobalVariables, GlobalVariable{
					Name: "img", Space: SpaceHandle, Type: 2, Binding: &ResourceBinding{},
				})
			},
			want: "storage image \"img\" needs a format",
		},
		{
			name: "discard in vertex stage",
			mutate: func(m *Module) {
				m.EntryPoints[0].Stage = StageVertex
				m.Functions[0].Body = append(Block{{Kind: StmtKill{}}}, m.Functions[0].Body...)
			},
			want: "not available in the vertex stage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			module := mustResolve(t, fragmentModule())
			tt.mutate(module)

			_, err := Validate(module, CapabilitiesNone)
			var se *StructuralError
			if !errors.As(err, &se) {
				t.Fatalf("expected StructuralError, got %v", err)
			}
			if !strings.Contains(se.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", se.Error(), tt.want)
			}
		})
	}
}

func TestValidate_StorageImageFormats(t *testing.T) {
	tests := []struct {
		name    string
		image   ImageType
		wantErr bool
	}{
		{"write-only without format", ImageType{Dim: Dim2D, Class: ImageClassStorage, Access: StorageStore}, false},
		{"read-only with format", ImageType{Dim: Dim2D, Class: ImageClassStorage, Format: FormatRgba32Float, Access: StorageLoad}, false},
		{"read-only without format", ImageType{Dim: Dim2D, Class: ImageClassStorage, Access: StorageLoad}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			module := mustResolve(t, fragmentModule())
			module.Types = append(module.Types, Type{Inner: tt.image})
			module.GlobalVariables = append(module.GlobalVariables, GlobalVariable{
				Name: "img", Space: SpaceHandle, Type: 2, Binding: &ResourceBinding{},
			})
			_, err := Validate(module, CapabilitiesNone)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_UnreferencedImageShape(t *testing.T) {
	// Function parameters may leave unformatted image shapes in the table.
	module := mustResolve(t, fragmentModule())
	module.Types = append(module.Types, Type{Inner: ImageType{Dim: Dim2D, Class: ImageClassStorage, Access: StorageReadWrite}})
	if _, err := Validate(module, CapabilitiesNone); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidate_StructuralBeforeCapability(t *testing.T) {
	module := mustResolve(t, fragmentModule())
	module.Types = append(module.Types, Type{Inner: ScalarF64})
	module.GlobalVariables = append(module.GlobalVariables, GlobalVariable{Name: "ubo", Space: SpaceUniform, Type: 2})

	_, err := Validate(module, CapabilitiesNone)
	var se *StructuralError
	if !errors.As(err, &se) {
		t.Fatalf("expected the structural error first, got %v", err)
	}
}

func TestValidate_Capabilities(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *Module)
		want   Capabilities
	}{
		{
			name:   "double type",
			mutate: func(m *Module) { m.Types = append(m.Types, Type{Inner: ScalarF64}) },
			want:   CapabilityFloat64,
		},
		{
			name: "int64 literal",
			mutate: func(m *Module) {
				fn := &m.Functions[0]
				fn.Expressions = append(fn.Expressions, Expression{Kind: Literal{Value: LiteralI64(7)}})
				fn.ExpressionTypes = append(fn.ExpressionTypes, TypeResInner(ScalarI64))
			},
			want: CapabilityShaderInt64,
		},
		{
			name: "push constant",
			mutate: func(m *Module) {
				m.GlobalVariables = append(m.GlobalVariables, GlobalVariable{Name: "pc", Space: SpacePushConstant, Type: 1})
			},
			want: CapabilityPushConstant,
		},
		{
			name: "sample index",
			mutate: func(m *Module) {
				m.Types = append(m.Types, Type{Inner: ScalarI32})
				m.GlobalVariables = append(m.GlobalVariables, GlobalVariable{
					Name: "gl_SampleID", Space: SpaceIn, Type: 2, IO: BuiltinBinding{Builtin: BuiltinSampleIndex},
				})
			},
			want: CapabilitySampleVariables,
		},
		{
			name: "primitive index",
			mutate: func(m *Module) {
				m.Types = append(m.Types, Type{Inner: ScalarI32})
				m.GlobalVariables = append(m.GlobalVariables, GlobalVariable{
					Name: "gl_PrimitiveID", Space: SpaceIn, Type: 2, IO: BuiltinBinding{Builtin: BuiltinPrimitiveIndex},
				})
			},
			want: CapabilityPrimitiveIndex,
		},
		{
			name: "rgba16 storage image",
			mutate: func(m *Module) {
				m.Types = append(m.Types, Type{Inner: ImageType{Dim: Dim2D, Class: ImageClassStorage, Format: FormatRgba16Unorm, Access: StorageStore}})
			},
			want: CapabilityStorageTexture16BitNormFormats,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			module := mustResolve(t, fragmentModule())
			tt.mutate(module)

			_, err := Validate(module, CapabilitiesNone)
			var ce *CapabilityError
			if !errors.As(err, &ce) {
				t.Fatalf("expected CapabilityError, got %v", err)
			}
			if ce.Feature != tt.want {
				t.Errorf("Feature = %s, want %s", ce.Feature, tt.want)
			}
			if !strings.Contains(ce.Error(), tt.want.String()) {
				t.Errorf("message %q does not name %s", ce.Error(), tt.want)
			}

			info, err := Validate(module, tt.want)
			if err != nil {
				t.Fatalf("with %s allowed: %v", tt.want, err)
			}
			if !info.Capabilities().Contains(tt.want) {
				t.Errorf("used capabilities %s miss %s", info.Capabilities(), tt.want)
			}
		})
	}
}

func TestValidate_NonUniformIndexing(t *testing.T) {
	four := uint32(4)
	module := mustResolve(t, &Module{
		Types: []Type{
			{Inner: SampledImageType{Image: ImageType{Dim: Dim2D, SampledKind: ScalarFloat}}},
			{Inner: ArrayType{Base: 0, Size: ArraySize{Constant: &four}}},
			{Inner: ScalarI32},
		},
		GlobalVariables: []GlobalVariable{
			{Name: "textures", Space: SpaceHandle, Type: 1, Binding: &ResourceBinding{}},
		},
		Functions: []Function{{
			Name:      "main",
			Arguments: nil,
			Expressions: exprs(
				ExprGlobalVariable{Variable: 0},
				Literal{Value: LiteralI32(1)},
				ExprAccess{Base: 0, Index: 1, NonUniform: true},
			),
			Body: Block{{Kind: StmtEmit{Range: Range{Start: 0, End: 3}}}},
		}},
		EntryPoints: []EntryPoint{{Name: "main", Stage: StageFragment}},
	})

	_, err := Validate(module, CapabilitySampledTextureAndStorageBufferArrayNonUniformIndexing)
	var ce *CapabilityError
	if !errors.As(err, &ce) || ce.Feature != CapabilitySamplerNonUniformIndexing {
		t.Fatalf("expected missing SAMPLER_NON_UNIFORM_INDEXING, got %v", err)
	}

	all := CapabilitySampledTextureAndStorageBufferArrayNonUniformIndexing | CapabilitySamplerNonUniformIndexing
	if _, err := Validate(module, all); err != nil {
		t.Fatalf("with both capabilities: %v", err)
	}
}

func TestValidate_StagesFollowCalls(t *testing.T) {
	module := mustResolve(t, &Module{
		Types: []Type{{Inner: ScalarF32}},
		Functions: []Function{
			{
				Name:        "helper",
				Expressions: exprs(Literal{Value: LiteralF32(1)}, ExprDerivative{Axis: DerivativeX, Expr: 0}),
				Body:        Block{{Kind: StmtEmit{Range: Range{Start: 0, End: 2}}}},
			},
			{
				Name: "main",
				Body: Block{{Kind: StmtCall{Function: 0}}},
			},
		},
		EntryPoints: []EntryPoint{{Name: "main", Stage: StageFragment, Function: 1}},
	})

	info, err := Validate(module, CapabilitiesNone)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := info.Function(1).Stages; got != StagesFragment {
		t.Errorf("caller stages = %b, want fragment only", got)
	}

	module.EntryPoints[0].Stage = StageCompute
	module.EntryPoints[0].Workgroup = [3]uint32{1, 1, 1}
	if _, err := Validate(module, CapabilitiesNone); err == nil {
		t.Error("derivatives reachable from a compute entry point must be rejected")
	}
}
