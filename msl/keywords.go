package msl

// reservedWords holds C++14 keywords, Metal address spaces and attributes,
// and the type and function names that are visible unqualified after
// "using metal::uint".
var reservedWords = map[string]struct{}{}

func init() {
	for _, word := range []string{
		// C++ keywords
		"alignas", "alignof", "and", "and_eq", "asm", "auto", "bitand", "bitor",
		"bool", "break", "case", "catch", "char", "char16_t", "char32_t", "class",
		"compl", "const", "constexpr", "const_cast", "continue", "decltype",
		"default", "delete", "do", "double", "dynamic_cast", "else", "enum",
		"explicit", "export", "extern", "false", "float", "for", "friend", "goto",
		"if", "inline", "int", "long", "mutable", "namespace", "new", "noexcept",
		"not", "not_eq", "nullptr", "operator", "or", "or_eq", "private",
		"protected", "public", "register", "reinterpret_cast", "return", "short",
		"signed", "sizeof", "static", "static_assert", "static_cast", "struct",
		"switch", "template", "this", "thread_local", "throw", "true", "try",
		"typedef", "typeid", "typename", "union", "unsigned", "using", "virtual",
		"void", "volatile", "wchar_t", "while", "xor", "xor_eq",

		// Metal qualifiers and stage keywords
		"constant", "device", "thread", "threadgroup", "threadgroup_imageblock",
		"ray_data", "object_data", "kernel", "vertex", "fragment", "compute",
		"stage_in", "patch", "visible", "main", "metal",

		// Types and common macros
		"uint", "uchar", "ushort", "ulong", "half", "size_t", "ptrdiff_t",
		"sampler", "texture", "array", "vec", "packed", "atomic",
		"INFINITY", "NAN", "FLT_MAX", "FLT_MIN", "INT_MAX", "INT_MIN", "UINT_MAX",
		"DBL_MAX", "M_PI_F", "M_E_F", "assert", "NULL",
	} {
		reservedWords[word] = struct{}{}
	}
}

// isReserved reports whether name collides with a C++ or Metal identifier.
func isReserved(name string) bool {
	_, ok := reservedWords[name]
	return ok
}

// escapeName appends an underscore to reserved names.
func escapeName(name string) string {
	if isReserved(name) {
		return name + "_"
	}
	return name
}
