package ir

import (
	"strconv"
	"strings"
)

// TypeRegistry builds a type table in which structurally identical types
// share one handle. Structs and named types are nominal and keyed by name
// as well as shape.
type TypeRegistry struct {
	types   []Type
	handles map[string]TypeHandle
}

// NewTypeRegistry creates an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		types:   make([]Type, 0, 16),
		handles: make(map[string]TypeHandle, 16),
	}
}

// GetOrCreate returns the handle of an equal type, registering it if needed.
func (r *TypeRegistry) GetOrCreate(name string, inner TypeInner) TypeHandle {
	key := typeKey(name, inner)
	if handle, ok := r.handles[key]; ok {
		return handle
	}
	handle := TypeHandle(len(r.types)) //nolint:gosec // G115: table size stays far below 2^32
	r.types = append(r.types, Type{Name: name, Inner: inner})
	r.handles[key] = handle
	return handle
}

// Scalar is a shorthand for registering an unnamed scalar.
func (r *TypeRegistry) Scalar(s ScalarType) TypeHandle {
	return r.GetOrCreate("", s)
}

// Vector is a shorthand for registering an unnamed vector.
func (r *TypeRegistry) Vector(size VectorSize, s ScalarType) TypeHandle {
	return r.GetOrCreate("", VectorType{Size: size, Scalar: s})
}

// Types returns the table built so far.
func (r *TypeRegistry) Types() []Type {
	return r.types
}

// Lookup returns the type behind a handle.
func (r *TypeRegistry) Lookup(handle TypeHandle) (Type, bool) {
	if int(handle) >= len(r.types) {
		return Type{}, false
	}
	return r.types[handle], true
}

// Count returns the number of distinct types.
func (r *TypeRegistry) Count() int {
	return len(r.types)
}

func typeKey(name string, inner TypeInner) string {
	var b strings.Builder
	if name != "" {
		b.WriteString(name)
		b.WriteByte('=')
	}
	writeTypeKey(&b, inner)
	return b.String()
}

func writeTypeKey(b *strings.Builder, inner TypeInner) {
	u := func(v uint64) { b.WriteString(strconv.FormatUint(v, 10)) }
	switch t := inner.(type) {
	case ScalarType:
		b.WriteString("s")
		u(uint64(t.Kind))
		b.WriteByte('w')
		u(uint64(t.Width))
	case VectorType:
		b.WriteString("v")
		u(uint64(t.Size))
		writeTypeKey(b, t.Scalar)
	case MatrixType:
		b.WriteString("m")
		u(uint64(t.Columns))
		b.WriteByte('x')
		u(uint64(t.Rows))
		writeTypeKey(b, t.Scalar)
	case ArrayType:
		b.WriteString("a")
		u(uint64(t.Base))
		b.WriteByte('[')
		if t.Size.Constant != nil {
			u(uint64(*t.Size.Constant))
		}
		b.WriteString("]/")
		u(uint64(t.Stride))
	case StructType:
		b.WriteString("st{")
		for _, m := range t.Members {
			b.WriteString(m.Name)
			b.WriteByte(':')
			u(uint64(m.Type))
			b.WriteByte('@')
			u(uint64(m.Offset))
			b.WriteByte(';')
		}
		b.WriteString("}")
		u(uint64(t.Span))
	case PointerType:
		b.WriteString("p")
		u(uint64(t.Space))
		b.WriteByte('*')
		u(uint64(t.Base))
	case ValuePointerType:
		b.WriteString("vp")
		u(uint64(t.Space))
		b.WriteByte('*')
		u(uint64(t.Size))
		writeTypeKey(b, t.Scalar)
	case SamplerType:
		b.WriteString("smp")
		if t.Comparison {
			b.WriteString("c")
		}
	case ImageType:
		writeImageKey(b, t)
	case SampledImageType:
		b.WriteString("si")
		writeImageKey(b, t.Image)
	default:
		b.WriteString("?")
	}
}

func writeImageKey(b *strings.Builder, t ImageType) {
	b.WriteString("img")
	b.WriteString(strconv.Itoa(int(t.Dim)))
	b.WriteString(strconv.FormatBool(t.Arrayed))
	b.WriteString(strconv.Itoa(int(t.Class)))
	b.WriteString(strconv.FormatBool(t.Multisampled))
	b.WriteString(strconv.Itoa(int(t.SampledKind)))
	b.WriteString(strconv.Itoa(int(t.Format)))
	b.WriteString(strconv.Itoa(int(t.Access)))
}
