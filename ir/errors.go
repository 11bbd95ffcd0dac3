package ir

import "fmt"

// StructuralError reports a broken IR invariant, such as a dangling handle.
type StructuralError struct {
	Detail string

	// Optional context.
	Function   string
	Expression *ExpressionHandle
}

func (e *StructuralError) Error() string {
	switch {
	case e.Function != "" && e.Expression != nil:
		return fmt.Sprintf("in function %s, expression [%d]: %s", e.Function, *e.Expression, e.Detail)
	case e.Function != "":
		return fmt.Sprintf("in function %s: %s", e.Function, e.Detail)
	default:
		return e.Detail
	}
}

// CapabilityError reports a feature the module needs but the capability
// set does not allow. Feature holds exactly one capability.
type CapabilityError struct {
	Feature Capabilities
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capability %s is required but not enabled", e.Feature)
}
