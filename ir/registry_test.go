package ir

import (
	"testing"
)

func TestTypeRegistry_ScalarDeduplication(t *testing.T) {
	registry := NewTypeRegistry()

	first := registry.Scalar(ScalarF32)
	second := registry.GetOrCreate("", ScalarType{Kind: ScalarFloat, Width: 4})

	if first != second {
		t.Errorf("Expected same handle for identical scalar types, got %d and %d", first, second)
	}
	if registry.Count() != 1 {
		t.Errorf("Expected 1 type, got %d", registry.Count())
	}
}

func TestTypeRegistry_DistinctShapes(t *testing.T) {
	registry := NewTypeRegistry()

	handles := []TypeHandle{
		registry.Scalar(ScalarF32),
		registry.Scalar(ScalarI32),
		registry.Scalar(ScalarU32),
		registry.Scalar(ScalarBoolean),
		registry.Vector(Vec2, ScalarF32),
		registry.Vector(Vec3, ScalarF32),
		registry.GetOrCreate("", MatrixType{Columns: Vec3, Rows: Vec2, Scalar: ScalarF32}),
		registry.GetOrCreate("", MatrixType{Columns: Vec2, Rows: Vec3, Scalar: ScalarF32}),
		registry.GetOrCreate("", SamplerType{}),
		registry.GetOrCreate("", SamplerType{Comparison: true}),
		registry.GetOrCreate("", SampledImageType{Image: ImageType{Dim: Dim2D, SampledKind: ScalarFloat}}),
		registry.GetOrCreate("", ImageType{Dim: Dim2D, SampledKind: ScalarFloat}),
	}

	seen := make(map[TypeHandle]int)
	for i, h := range handles {
		if prev, dup := seen[h]; dup {
			t.Errorf("types %d and %d share handle %d", prev, i, h)
		}
		seen[h] = i
	}
	if registry.Count() != len(handles) {
		t.Errorf("Count() = %d, want %d", registry.Count(), len(handles))
	}
}

func TestTypeRegistry_StructsAreNominal(t *testing.T) {
	registry := NewTypeRegistry()
	f32 := registry.Scalar(ScalarF32)
	shape := StructType{Members: []StructMember{{Name: "x", Type: f32}}, Span: 4}

	a := registry.GetOrCreate("A", shape)
	b := registry.GetOrCreate("B", shape)
	again := registry.GetOrCreate("A", shape)

	if a == b {
		t.Error("structs with different names must not share a handle")
	}
	if a != again {
		t.Errorf("re-registering A returned %d, want %d", again, a)
	}
}

func TestTypeRegistry_ArraySizes(t *testing.T) {
	registry := NewTypeRegistry()
	f32 := registry.Scalar(ScalarF32)
	four, eight := uint32(4), uint32(8)

	fixed4 := registry.GetOrCreate("", ArrayType{Base: f32, Size: ArraySize{Constant: &four}, Stride: 4})
	fixed8 := registry.GetOrCreate("", ArrayType{Base: f32, Size: ArraySize{Constant: &eight}, Stride: 4})
	runtime := registry.GetOrCreate("", ArrayType{Base: f32, Stride: 4})

	other := uint32(4)
	same := registry.GetOrCreate("", ArrayType{Base: f32, Size: ArraySize{Constant: &other}, Stride: 4})

	if fixed4 == fixed8 || fixed4 == runtime || fixed8 == runtime {
		t.Error("arrays of different sizes must have distinct handles")
	}
	if same != fixed4 {
		t.Errorf("equal array registered again got %d, want %d", same, fixed4)
	}
}

func TestTypeRegistry_Lookup(t *testing.T) {
	registry := NewTypeRegistry()
	h := registry.GetOrCreate("Light", StructType{Members: []StructMember{{Name: "color", Type: registry.Vector(Vec3, ScalarF32)}}, Span: 12})

	typ, ok := registry.Lookup(h)
	if !ok {
		t.Fatal("Lookup failed for a registered handle")
	}
	if typ.Name != "Light" {
		t.Errorf("Name = %q, want Light", typ.Name)
	}
	if _, ok := registry.Lookup(TypeHandle(99)); ok {
		t.Error("Lookup succeeded for an unknown handle")
	}
	if got := len(registry.Types()); got != 2 {
		t.Errorf("len(Types()) = %d, want 2", got)
	}
}
