// Package reflection describes the interface of a shader module: its entry
// points, its global variables and the signatures of its functions, with
// argument types spelled the way the generated source spells them.
//
// Reflect never fails. Missing names and types without a spelling come out
// as empty strings.
//
//	summary := reflection.Reflect(module)
//	fmt.Println(summary.EntryPointList()) // "main"
//	fmt.Println(summary.FunctionList())   // "main()"
package reflection

import (
	"strings"

	"github.com/gogpu/xshader/ir"
)

// Summary is the reflected interface of one module. Every list keeps the
// module's declaration order.
type Summary struct {
	EntryPoints     []string
	GlobalVariables []string
	Functions       []string
}

// Reflect extracts the summary of a module.
func Reflect(module *ir.Module) Summary {
	var s Summary
	if module == nil {
		return s
	}
	for i := range module.EntryPoints {
		s.EntryPoints = append(s.EntryPoints, module.EntryPoints[i].Name)
	}
	for i := range module.GlobalVariables {
		s.GlobalVariables = append(s.GlobalVariables, module.GlobalVariables[i].Name)
	}
	for i := range module.Functions {
		s.Functions = append(s.Functions, Signature(module, &module.Functions[i]))
	}
	return s
}

// Signature returns "name(arg: type,arg: type)" for a function.
func Signature(module *ir.Module, fn *ir.Function) string {
	var b strings.Builder
	b.WriteString(fn.Name)
	b.WriteByte('(')
	for i, arg := range fn.Arguments {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(arg.Name)
		b.WriteString(": ")
		b.WriteString(TypeName(Describe(module, arg.Type)))
	}
	b.WriteByte(')')
	return b.String()
}

// EntryPointList returns the entry point names joined by commas.
func (s Summary) EntryPointList() string { return join(s.EntryPoints) }

// GlobalVariableList returns the global variable names joined by commas.
func (s Summary) GlobalVariableList() string { return join(s.GlobalVariables) }

// FunctionList returns the function signatures joined by commas.
func (s Summary) FunctionList() string { return join(s.Functions) }

// String prints the three lists one per line.
func (s Summary) String() string {
	return "entry_points: " + s.EntryPointList() +
		"\nglobal_variables: " + s.GlobalVariableList() +
		"\nfunctions: " + s.FunctionList()
}

func join(items []string) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(item)
	}
	return b.String()
}
