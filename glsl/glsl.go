package glsl

import (
	"fmt"

	"github.com/gogpu/xshader/ir"
)

// Options configures a parse.
type Options struct {
	// Stage is the pipeline stage the source is written for. It decides
	// which builtin variables exist and what the entry point is.
	Stage ir.ShaderStage

	// Defines are predefined macros. An empty value defines the name as 1.
	Defines map[string]string
}

// Parse translates GLSL source into an IR module with a single entry point
// named "main" for the requested stage.
//
// Encoding problems return *EncodingError. Preprocessor, syntax and
// semantic problems return SyntaxErrors. A stage the frontend does not
// handle is a *SyntaxError without a location.
func Parse(source []byte, options Options) (*ir.Module, error) {
	switch options.Stage {
	case ir.StageVertex, ir.StageFragment, ir.StageCompute:
	default:
		return nil, &SyntaxError{Message: fmt.Sprintf("unsupported shader stage %d", options.Stage)}
	}

	text, err := decodeSource(source)
	if err != nil {
		return nil, err
	}
	pre, err := preprocess(text, options.Defines)
	if err != nil {
		return nil, err
	}

	tokens := NewLexer(pre.text).Tokenize()
	unit, err := NewParser(tokens, pre.text, options.Stage).Parse()
	if err != nil {
		return nil, err
	}
	return Lower(unit, pre.text, options.Stage)
}
