// Package glsl is the GLSL frontend: it turns Vulkan-flavoured GLSL source
// into an ir.Module.
//
// Translation runs in four steps:
//
//   - decodeSource accepts UTF-8 (with or without a BOM) and UTF-16 with a BOM
//   - the preprocessor expands macros and conditionals, keeping line numbers
//   - the Lexer and Parser build a TranslationUnit
//   - the Lowerer converts the AST to IR for one shader stage
//
// # Basic Usage
//
//	module, err := glsl.Parse(source, glsl.Options{Stage: ir.StageFragment})
//	if err != nil {
//	    var errs glsl.SyntaxErrors
//	    if errors.As(err, &errs) {
//	        fmt.Println(errs.FormatAll())
//	    }
//	}
//
// # Entry Points
//
// The user's main function is lowered as an ordinary function. Parse adds a
// single entry point named "main" that references it. Builtin variables such
// as gl_Position become in/out globals created on first use.
//
// # Bindings
//
// Resources without an explicit binding receive the lowest free binding of
// their descriptor set, in declaration order. Stage inputs and outputs
// without a location are numbered the same way.
package glsl
