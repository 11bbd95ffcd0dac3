package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/xshader/glsl"
	"github.com/gogpu/xshader/ir"
	"github.com/gogpu/xshader/msl"
)

// ErrorKind is the taxonomy class of a unit failure.
type ErrorKind uint8

const (
	KindNone ErrorKind = iota
	KindEncoding
	KindSyntax
	KindStructural
	KindCapability
	KindUnsupported
	KindState
	KindCanceled
	KindInternal
)

var kindNames = [...]string{
	KindNone:        "none",
	KindEncoding:    "encoding",
	KindSyntax:      "syntax",
	KindStructural:  "structural",
	KindCapability:  "capability",
	KindUnsupported: "unsupported",
	KindState:       "state",
	KindCanceled:    "canceled",
	KindInternal:    "internal",
}

func (k ErrorKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// Classify maps an error to its taxonomy class. Wrapped errors are
// unwrapped; errors outside the taxonomy are KindInternal.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var (
		encodingErr    *glsl.EncodingError
		syntaxErr      *glsl.SyntaxError
		structuralErr  *ir.StructuralError
		capabilityErr  *ir.CapabilityError
		unsupportedErr *msl.UnsupportedConstructError
		stateErr       *StateError
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.As(err, &stateErr):
		return KindState
	case errors.As(err, &encodingErr):
		return KindEncoding
	case errors.As(err, &syntaxErr):
		return KindSyntax
	case errors.As(err, &structuralErr):
		return KindStructural
	case errors.As(err, &capabilityErr):
		return KindCapability
	case errors.As(err, &unsupportedErr):
		return KindUnsupported
	}
	return KindInternal
}

// StateError reports a stage invoked on a unit that has not reached the
// state the stage requires.
type StateError struct {
	Stage string
	State State
	Want  []State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: unit is %s, want %s", e.Stage, e.State, joinStates(e.Want))
}

func joinStates(states []State) string {
	s := ""
	for i, st := range states {
		if i > 0 {
			s += " or "
		}
		s += st.String()
	}
	return s
}
