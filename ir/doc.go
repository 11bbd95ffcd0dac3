// Package ir defines the intermediate representation shared by the GLSL
// frontend and the MSL backend.
//
// # Structure
//
// A Module owns flat arenas addressed by typed uint32 handles:
//   - Types: the type table, where compound types refer to earlier entries
//   - Constants: module-scope constant values
//   - GlobalVariables: resources, stage interface variables and private globals
//   - Functions: each with its own expression arena and statement tree
//   - EntryPoints: the functions a pipeline stage may start from
//
// Expressions are evaluated where a StmtEmit names them, so the statement
// tree fixes evaluation order while expressions stay shareable.
//
// # Validation
//
// Validate checks structural invariants, then compares the optional
// features the module uses against a Capabilities set. The ModuleInfo it
// returns carries the per-function analysis backends rely on:
//
//	Source (GLSL) → IR → Validate → ModuleInfo → Target (MSL)
package ir
