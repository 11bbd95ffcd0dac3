package glsl

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// condParser evaluates the integer constant expressions of #if. Identifiers
// left after macro expansion evaluate to 0.
type condParser struct {
	tokens []string
	pos    int
}

func evalCondition(expr string) (int64, error) {
	tokens, err := condTokens(expr)
	if err != nil {
		return 0, err
	}
	if len(tokens) == 0 {
		return 0, errors.New("empty expression")
	}
	p := &condParser{tokens: tokens}
	v, err := p.ternary()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.tokens) {
		return 0, fmt.Errorf("unexpected %q", p.tokens[p.pos])
	}
	return v, nil
}

var condOperators = []string{
	"<<", ">>", "<=", ">=", "==", "!=", "&&", "||",
	"(", ")", "!", "~", "-", "+", "*", "/", "%", "<", ">", "&", "^", "|", "?", ":",
}

func condTokens(expr string) ([]string, error) {
	var tokens []string
	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case isDigitByte(c):
			j := i
			for j < len(expr) && isIdentByte(expr[j], false) {
				j++
			}
			tokens = append(tokens, expr[i:j])
			i = j
		case isIdentByte(c, true):
			j := i
			for j < len(expr) && isIdentByte(expr[j], false) {
				j++
			}
			tokens = append(tokens, "0")
			i = j
		default:
			matched := false
			for _, op := range condOperators {
				if strings.HasPrefix(expr[i:], op) {
					tokens = append(tokens, op)
					i += len(op)
					matched = true
					break
				}
			}
			if !matched {
				return nil, fmt.Errorf("unexpected character %q", c)
			}
		}
	}
	return tokens, nil
}

func (p *condParser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

func (p *condParser) match(ops ...string) (string, bool) {
	tok := p.peek()
	for _, op := range ops {
		if tok == op {
			p.pos++
			return op, true
		}
	}
	return "", false
}

func (p *condParser) ternary() (int64, error) {
	cond, err := p.binary(0)
	if err != nil {
		return 0, err
	}
	if _, ok := p.match("?"); !ok {
		return cond, nil
	}
	a, err := p.ternary()
	if err != nil {
		return 0, err
	}
	if _, ok := p.match(":"); !ok {
		return 0, errors.New("expected ':'")
	}
	b, err := p.ternary()
	if err != nil {
		return 0, err
	}
	if cond != 0 {
		return a, nil
	}
	return b, nil
}

// condLevels lists binary operators from lowest to highest precedence.
var condLevels = [][]string{
	{"||"},
	{"&&"},
	{"|"},
	{"^"},
	{"&"},
	{"==", "!="},
	{"<", ">", "<=", ">="},
	{"<<", ">>"},
	{"+", "-"},
	{"*", "/", "%"},
}

func (p *condParser) binary(level int) (int64, error) {
	if level == len(condLevels) {
		return p.unary()
	}
	left, err := p.binary(level + 1)
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.match(condLevels[level]...)
		if !ok {
			return left, nil
		}
		right, err := p.binary(level + 1)
		if err != nil {
			return 0, err
		}
		left, err = applyCondOp(op, left, right)
		if err != nil {
			return 0, err
		}
	}
}

func applyCondOp(op string, a, b int64) (int64, error) {
	truth := func(v bool) int64 {
		if v {
			return 1
		}
		return 0
	}
	switch op {
	case "||":
		return truth(a != 0 || b != 0), nil
	case "&&":
		return truth(a != 0 && b != 0), nil
	case "|":
		return a | b, nil
	case "^":
		return a ^ b, nil
	case "&":
		return a & b, nil
	case "==":
		return truth(a == b), nil
	case "!=":
		return truth(a != b), nil
	case "<":
		return truth(a < b), nil
	case ">":
		return truth(a > b), nil
	case "<=":
		return truth(a <= b), nil
	case ">=":
		return truth(a >= b), nil
	case "<<":
		return a << uint64(b&63), nil //nolint:gosec // G115: masked shift count
	case ">>":
		return a >> uint64(b&63), nil //nolint:gosec // G115: masked shift count
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/", "%":
		if b == 0 {
			return 0, errors.New("division by zero")
		}
		if op == "/" {
			return a / b, nil
		}
		return a % b, nil
	}
	return 0, fmt.Errorf("unknown operator %q", op)
}

func (p *condParser) unary() (int64, error) {
	if op, ok := p.match("!", "~", "-", "+"); ok {
		v, err := p.unary()
		if err != nil {
			return 0, err
		}
		switch op {
		case "!":
			if v == 0 {
				return 1, nil
			}
			return 0, nil
		case "~":
			return ^v, nil
		case "-":
			return -v, nil
		}
		return v, nil
	}
	if _, ok := p.match("("); ok {
		v, err := p.ternary()
		if err != nil {
			return 0, err
		}
		if _, ok := p.match(")"); !ok {
			return 0, errors.New("expected ')'")
		}
		return v, nil
	}

	tok := p.peek()
	if tok == "" {
		return 0, errors.New("unexpected end of expression")
	}
	p.pos++
	v, err := strconv.ParseInt(strings.TrimRight(tok, "uU"), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", tok)
	}
	return v, nil
}
