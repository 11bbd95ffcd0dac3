package glsl

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// decodeSource turns raw source bytes into UTF-8 text. A UTF-8 byte order
// mark is dropped; UTF-16 input is accepted when it starts with a BOM.
func decodeSource(src []byte) (string, error) {
	if bytes.HasPrefix(src, bomUTF16LE) || bytes.HasPrefix(src, bomUTF16BE) {
		if len(src)%2 != 0 {
			return "", &EncodingError{Offset: len(src) - 1, Reason: "truncated UTF-16 code unit"}
		}
		decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
		out, _, err := transform.Bytes(decoder, src)
		if err != nil {
			return "", &EncodingError{Offset: 0, Reason: "malformed UTF-16: " + err.Error()}
		}
		src = out
	}
	src = bytes.TrimPrefix(src, []byte{0xEF, 0xBB, 0xBF})

	for offset := 0; offset < len(src); {
		r, size := utf8.DecodeRune(src[offset:])
		switch {
		case r == utf8.RuneError && size <= 1:
			return "", &EncodingError{Offset: offset, Reason: "invalid UTF-8 sequence"}
		case r == 0:
			return "", &EncodingError{Offset: offset, Reason: "NUL byte in source"}
		}
		offset += size
	}
	return string(src), nil
}
