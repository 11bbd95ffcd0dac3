package glsl

import (
	"fmt"
	"strings"
)

// Location is a position in the decoded source. Line and Column are
// 1-based; Offset is a byte offset.
type Location struct {
	Line   int
	Column int
	Offset int
}

// EncodingError reports source bytes that are not acceptable text.
type EncodingError struct {
	Offset int
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("invalid source encoding at byte %d: %s", e.Offset, e.Reason)
}

// SyntaxError reports source that is not valid GLSL for the requested stage.
// Location is nil when no position is known.
type SyntaxError struct {
	Message  string
	Location *Location
	Source   string // decoded source, for context display
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	if e.Location == nil || e.Location.Line == 0 {
		return e.Message
	}
	return fmt.Sprintf("%d:%d: %s", e.Location.Line, e.Location.Column, e.Message)
}

// FormatWithContext returns the error message with source context.
// Shows the offending line with a caret under the error column.
func (e *SyntaxError) FormatWithContext() string {
	if e.Source == "" || e.Location == nil || e.Location.Line == 0 {
		return e.Error()
	}

	lines := strings.Split(e.Source, "\n")
	lineNum := e.Location.Line
	if lineNum < 1 || lineNum > len(lines) {
		return e.Error()
	}

	line := strings.TrimRight(lines[lineNum-1], "\r")
	col := e.Location.Column
	if col < 1 {
		col = 1
	}
	if col > len(line)+1 {
		col = len(line) + 1
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "error: %s\n", e.Message)
	fmt.Fprintf(&sb, "  --> line %d:%d\n", lineNum, col)
	sb.WriteString("   |\n")
	fmt.Fprintf(&sb, "%3d| %s\n", lineNum, line)
	fmt.Fprintf(&sb, "   | %s^\n", strings.Repeat(" ", col-1))

	return sb.String()
}

// SyntaxErrors is a list of syntax errors found in one source unit.
type SyntaxErrors []*SyntaxError

// Error implements the error interface.
func (el SyntaxErrors) Error() string {
	switch len(el) {
	case 0:
		return "no errors"
	case 1:
		return el[0].Error()
	default:
		return fmt.Sprintf("%s (and %d more errors)", el[0].Error(), len(el)-1)
	}
}

// Unwrap exposes the individual errors to errors.As.
func (el SyntaxErrors) Unwrap() []error {
	errs := make([]error, len(el))
	for i, e := range el {
		errs[i] = e
	}
	return errs
}

// FormatAll returns all errors formatted with context.
func (el SyntaxErrors) FormatAll() string {
	var sb strings.Builder
	for i, e := range el {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(e.FormatWithContext())
	}
	return sb.String()
}

func (el *SyntaxErrors) add(message string, loc Location, source string) {
	l := loc
	*el = append(*el, &SyntaxError{Message: message, Location: &l, Source: source})
}
