package ir

// GlobalUse records how a function touches a global variable.
type GlobalUse uint8

const (
	GlobalRead GlobalUse = 1 << iota
	GlobalWrite
)

// ExpressionInfo is per-expression analysis output.
type ExpressionInfo struct {
	// RefCount counts references from other expressions and statements.
	RefCount int
}

// FunctionInfo is the analysis result for one function, including
// everything reachable through calls.
type FunctionInfo struct {
	// GlobalUses is indexed by GlobalVariableHandle.
	GlobalUses []GlobalUse

	// Expressions runs parallel to the function's expression arena.
	Expressions []ExpressionInfo

	// Stages are the stages allowed to reach this function.
	Stages ShaderStages

	// MayKill is set when the function can discard the fragment.
	MayKill bool
}

// UsesGlobal reports whether the function or a callee touches handle.
func (fi *FunctionInfo) UsesGlobal(handle GlobalVariableHandle) bool {
	return int(handle) < len(fi.GlobalUses) && fi.GlobalUses[handle] != 0
}

// ModuleInfo is the validator's analysis of a module. It can only be
// obtained from Validate, so holding one proves the module was validated.
type ModuleInfo struct {
	module      *Module
	functions   []FunctionInfo
	entryPoints []FunctionInfo
	used        Capabilities
}

// Describes reports whether info was produced by validating module.
func (info *ModuleInfo) Describes(module *Module) bool {
	return info != nil && info.module == module
}

// Function returns the info for a function handle.
func (info *ModuleInfo) Function(handle FunctionHandle) *FunctionInfo {
	if int(handle) >= len(info.functions) {
		return nil
	}
	return &info.functions[handle]
}

// EntryPoint returns the info for the entry point at index.
func (info *ModuleInfo) EntryPoint(index int) *FunctionInfo {
	if index < 0 || index >= len(info.entryPoints) {
		return nil
	}
	return &info.entryPoints[index]
}

// Capabilities returns the optional features the module actually uses.
func (info *ModuleInfo) Capabilities() Capabilities {
	return info.used
}
