package glsl

import (
	"errors"
	"testing"
)

func utf16LE(s string) []byte {
	out := []byte{0xFF, 0xFE}
	for _, r := range s {
		out = append(out, byte(r), byte(r>>8))
	}
	return out
}

func utf16BE(s string) []byte {
	out := []byte{0xFE, 0xFF}
	for _, r := range s {
		out = append(out, byte(r>>8), byte(r))
	}
	return out
}

func TestDecodeSource(t *testing.T) {
	tests := []struct {
		name string
		src  []byte
		want string
	}{
		{"plain", []byte("void main() {}"), "void main() {}"},
		{"utf8 bom", append([]byte{0xEF, 0xBB, 0xBF}, "int a;"...), "int a;"},
		{"utf16 le", utf16LE("int b;"), "int b;"},
		{"utf16 be", utf16BE("int c;"), "int c;"},
		{"non-ascii comment", []byte("// héllo\nint d;"), "// héllo\nint d;"},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeSource(tt.src)
			if err != nil {
				t.Fatalf("decodeSource: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeSourceErrors(t *testing.T) {
	tests := []struct {
		name   string
		src    []byte
		offset int
	}{
		{"invalid utf8", []byte("int a;\xff"), 6},
		{"nul byte", []byte("int\x00 a;"), 3},
		{"odd utf16", []byte{0xFF, 0xFE, 'a'}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeSource(tt.src)
			var encErr *EncodingError
			if !errors.As(err, &encErr) {
				t.Fatalf("error = %v, want *EncodingError", err)
			}
			if encErr.Offset != tt.offset {
				t.Errorf("offset = %d, want %d", encErr.Offset, tt.offset)
			}
		})
	}
}
