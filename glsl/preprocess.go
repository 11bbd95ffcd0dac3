package glsl

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type macro struct {
	name     string
	funcLike bool
	params   []string
	body     string
}

type conditional struct {
	active   bool // lines in the current branch are kept
	taken    bool // some branch of this group was already active
	parent   bool // enclosing group is active
	sawElse  bool
	location Location
}

type preprocessed struct {
	text    string
	version int
	es      bool
}

type preprocessor struct {
	source  string
	macros  map[string]*macro
	stack   []conditional
	errors  SyntaxErrors
	version int
	es      bool
	offsets []int // byte offset of each line start
}

const defaultVersion = 450

// preprocess runs the C-style preprocessor over source. Directive lines are
// replaced by empty lines so line numbers of the output match the input.
func preprocess(source string, defines map[string]string) (*preprocessed, error) {
	pp := &preprocessor{
		source:  source,
		macros:  make(map[string]*macro),
		version: defaultVersion,
	}
	pp.define(&macro{name: "VULKAN", body: "100"})
	pp.define(&macro{name: "__VERSION__", body: strconv.Itoa(defaultVersion)})

	// Sorted so that redefinition conflicts are reported deterministically.
	names := make([]string, 0, len(defines))
	for name := range defines {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		body := defines[name]
		if body == "" {
			body = "1"
		}
		pp.define(&macro{name: name, body: body})
	}

	lines := splitLogicalLines(stripComments(source))
	pp.offsets = lineOffsets(source)

	var out strings.Builder
	out.Grow(len(source))
	for i, line := range lines {
		lineNo := i + 1
		trimmed := strings.TrimLeft(line, " \t\r\f\v")
		if strings.HasPrefix(trimmed, "#") {
			pp.directive(strings.TrimSpace(trimmed[1:]), lineNo)
		} else if pp.active() {
			out.WriteString(pp.expand(line, lineNo, nil))
		}
		if i < len(lines)-1 {
			out.WriteByte('\n')
		}
	}

	if len(pp.stack) > 0 {
		open := pp.stack[len(pp.stack)-1]
		pp.errors.add("unterminated conditional directive", open.location, source)
	}
	if len(pp.errors) > 0 {
		return nil, pp.errors
	}
	return &preprocessed{text: out.String(), version: pp.version, es: pp.es}, nil
}

func (pp *preprocessor) define(m *macro) {
	pp.macros[m.name] = m
}

func (pp *preprocessor) active() bool {
	return len(pp.stack) == 0 || pp.stack[len(pp.stack)-1].active
}

func (pp *preprocessor) location(line int) Location {
	loc := Location{Line: line, Column: 1}
	if line-1 < len(pp.offsets) {
		loc.Offset = pp.offsets[line-1]
	}
	return loc
}

func (pp *preprocessor) errorf(line int, format string, args ...any) {
	pp.errors.add(fmt.Sprintf(format, args...), pp.location(line), pp.source)
}

//nolint:gocyclo,cyclop,funlen // one case per directive
func (pp *preprocessor) directive(text string, line int) {
	name, rest := splitDirective(text)

	// Conditionals are tracked even inside inactive groups.
	switch name {
	case "ifdef", "ifndef":
		ident := strings.TrimSpace(rest)
		if !isIdentifier(ident) {
			pp.errorf(line, "#%s expects a macro name", name)
		}
		_, defined := pp.macros[ident]
		pp.push(defined == (name == "ifdef"), line)
		return
	case "if":
		parent := pp.active()
		cond := false
		if parent {
			cond = pp.condition(rest, line)
		}
		pp.push(cond, line)
		return
	case "elif":
		top := pp.top(name, line)
		if top == nil {
			return
		}
		if top.sawElse {
			pp.errorf(line, "#elif after #else")
		}
		if top.taken || !top.parent {
			top.active = false
			return
		}
		top.active = pp.condition(rest, line)
		top.taken = top.active
		return
	case "else":
		top := pp.top(name, line)
		if top == nil {
			return
		}
		if top.sawElse {
			pp.errorf(line, "duplicate #else")
		}
		top.sawElse = true
		top.active = top.parent && !top.taken
		top.taken = true
		return
	case "endif":
		if pp.top(name, line) != nil {
			pp.stack = pp.stack[:len(pp.stack)-1]
		}
		return
	}

	if !pp.active() {
		return
	}

	switch name {
	case "":
		// Null directive.
	case "version":
		pp.versionDirective(rest, line)
	case "define":
		pp.defineDirective(rest, line)
	case "undef":
		ident := strings.TrimSpace(rest)
		if !isIdentifier(ident) {
			pp.errorf(line, "#undef expects a macro name")
			return
		}
		delete(pp.macros, ident)
	case "error":
		pp.errorf(line, "#error %s", strings.TrimSpace(rest))
	case "extension", "pragma", "line":
	default:
		pp.errorf(line, "unknown preprocessor directive #%s", name)
	}
}

func (pp *preprocessor) push(cond bool, line int) {
	parent := pp.active()
	pp.stack = append(pp.stack, conditional{
		active:   parent && cond,
		taken:    parent && cond,
		parent:   parent,
		location: pp.location(line),
	})
}

func (pp *preprocessor) top(name string, line int) *conditional {
	if len(pp.stack) == 0 {
		pp.errorf(line, "#%s without #if", name)
		return nil
	}
	return &pp.stack[len(pp.stack)-1]
}

func (pp *preprocessor) versionDirective(rest string, line int) {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		pp.errorf(line, "#version expects a number")
		return
	}
	v, err := strconv.Atoi(fields[0])
	if err != nil {
		pp.errorf(line, "invalid #version %q", fields[0])
		return
	}
	pp.version = v
	pp.define(&macro{name: "__VERSION__", body: strconv.Itoa(v)})
	if len(fields) > 1 {
		switch fields[1] {
		case "es":
			pp.es = true
			pp.define(&macro{name: "GL_ES", body: "1"})
		case "core", "compatibility":
		default:
			pp.errorf(line, "unknown profile %q", fields[1])
		}
	}
}

func (pp *preprocessor) defineDirective(rest string, line int) {
	rest = strings.TrimLeft(rest, " \t")
	end := 0
	for end < len(rest) && isIdentByte(rest[end], end == 0) {
		end++
	}
	name := rest[:end]
	if name == "" {
		pp.errorf(line, "#define expects a macro name")
		return
	}
	if strings.HasPrefix(name, "GL_") || name == "__LINE__" || name == "__VERSION__" {
		pp.errorf(line, "cannot redefine reserved macro %s", name)
		return
	}

	m := &macro{name: name}
	rest = rest[end:]
	if strings.HasPrefix(rest, "(") {
		closing := strings.IndexByte(rest, ')')
		if closing < 0 {
			pp.errorf(line, "unterminated parameter list in #define %s", name)
			return
		}
		m.funcLike = true
		for _, p := range strings.Split(rest[1:closing], ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if !isIdentifier(p) {
				pp.errorf(line, "invalid macro parameter %q", p)
				return
			}
			m.params = append(m.params, p)
		}
		rest = rest[closing+1:]
	}
	m.body = strings.TrimSpace(rest)
	pp.define(m)
}

// condition evaluates the expression of #if or #elif.
func (pp *preprocessor) condition(expr string, line int) bool {
	expr = pp.expand(replaceDefined(expr, pp.macros), line, nil)
	v, err := evalCondition(expr)
	if err != nil {
		pp.errorf(line, "invalid #if expression: %v", err)
		return false
	}
	return v != 0
}

// expand performs macro replacement on one line. disabled holds the macros
// currently being expanded, which must not be replaced again.
func (pp *preprocessor) expand(text string, line int, disabled map[string]bool) string {
	if !strings.ContainsAny(text, "_ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz") {
		return text
	}

	var out strings.Builder
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case isDigitByte(c) || (c == '.' && i+1 < len(text) && isDigitByte(text[i+1])):
			// Skip whole numbers so suffixes and exponents are not identifiers.
			j := i + 1
			for j < len(text) && (isIdentByte(text[j], false) || text[j] == '.' ||
				((text[j] == '+' || text[j] == '-') && (text[j-1] == 'e' || text[j-1] == 'E'))) {
				j++
			}
			out.WriteString(text[i:j])
			i = j
		case isIdentByte(c, true):
			j := i + 1
			for j < len(text) && isIdentByte(text[j], false) {
				j++
			}
			ident := text[i:j]
			replacement, next, ok := pp.replace(ident, text, j, line, disabled)
			if ok {
				out.WriteString(replacement)
				i = next
			} else {
				out.WriteString(ident)
				i = j
			}
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String()
}

func (pp *preprocessor) replace(ident, text string, after, line int, disabled map[string]bool) (string, int, bool) {
	if ident == "__LINE__" {
		return strconv.Itoa(line), after, true
	}
	m, ok := pp.macros[ident]
	if !ok || disabled[ident] {
		return "", 0, false
	}

	inner := make(map[string]bool, len(disabled)+1)
	for k := range disabled {
		inner[k] = true
	}
	inner[ident] = true

	if !m.funcLike {
		return pp.expand(m.body, line, inner), after, true
	}

	// A function-like macro name not followed by '(' is left alone.
	j := after
	for j < len(text) && (text[j] == ' ' || text[j] == '\t') {
		j++
	}
	if j >= len(text) || text[j] != '(' {
		return "", 0, false
	}
	args, end, err := splitMacroArgs(text, j)
	if err != nil {
		pp.errorf(line, "macro %s: %v", ident, err)
		return "", 0, false
	}
	if len(args) == 1 && strings.TrimSpace(args[0]) == "" && len(m.params) == 0 {
		args = nil
	}
	if len(args) != len(m.params) {
		pp.errorf(line, "macro %s expects %d arguments, got %d", ident, len(m.params), len(args))
		return "", 0, false
	}

	bindings := make(map[string]string, len(args))
	for i, p := range m.params {
		bindings[p] = pp.expand(strings.TrimSpace(args[i]), line, disabled)
	}
	body := substituteParams(m.body, bindings)
	return pp.expand(body, line, inner), end, true
}

// splitMacroArgs splits the parenthesized argument list starting at
// text[open] and returns the index just past the closing parenthesis.
func splitMacroArgs(text string, open int) ([]string, int, error) {
	depth := 0
	start := open + 1
	var args []string
	for i := open; i < len(text); i++ {
		switch text[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				args = append(args, text[start:i])
				return args, i + 1, nil
			}
		case ',':
			if depth == 1 {
				args = append(args, text[start:i])
				start = i + 1
			}
		}
	}
	return nil, 0, fmt.Errorf("unterminated argument list")
}

func substituteParams(body string, bindings map[string]string) string {
	var out strings.Builder
	for i := 0; i < len(body); {
		if isIdentByte(body[i], true) && (i == 0 || !isIdentByte(body[i-1], false)) {
			j := i + 1
			for j < len(body) && isIdentByte(body[j], false) {
				j++
			}
			if v, ok := bindings[body[i:j]]; ok {
				out.WriteString(v)
			} else {
				out.WriteString(body[i:j])
			}
			i = j
			continue
		}
		out.WriteByte(body[i])
		i++
	}
	return out.String()
}

// replaceDefined rewrites defined(X) and defined X into 1 or 0.
func replaceDefined(expr string, macros map[string]*macro) string {
	var out strings.Builder
	for i := 0; i < len(expr); {
		if strings.HasPrefix(expr[i:], "defined") && (i == 0 || !isIdentByte(expr[i-1], false)) &&
			(i+7 == len(expr) || !isIdentByte(expr[i+7], false)) {
			j := i + 7
			for j < len(expr) && (expr[j] == ' ' || expr[j] == '\t') {
				j++
			}
			paren := j < len(expr) && expr[j] == '('
			if paren {
				j++
				for j < len(expr) && (expr[j] == ' ' || expr[j] == '\t') {
					j++
				}
			}
			k := j
			for k < len(expr) && isIdentByte(expr[k], k == j) {
				k++
			}
			name := expr[j:k]
			if paren {
				for k < len(expr) && (expr[k] == ' ' || expr[k] == '\t') {
					k++
				}
				if k < len(expr) && expr[k] == ')' {
					k++
				}
			}
			if _, ok := macros[name]; ok {
				out.WriteString(" 1 ")
			} else {
				out.WriteString(" 0 ")
			}
			i = k
			continue
		}
		out.WriteByte(expr[i])
		i++
	}
	return out.String()
}

// stripComments replaces comments with spaces, keeping newlines.
func stripComments(src string) string {
	if !strings.Contains(src, "/") {
		return src
	}
	out := []byte(src)
	for i := 0; i < len(out); i++ {
		if out[i] != '/' || i+1 >= len(out) {
			continue
		}
		switch out[i+1] {
		case '/':
			for i < len(out) && out[i] != '\n' {
				out[i] = ' '
				i++
			}
		case '*':
			out[i], out[i+1] = ' ', ' '
			i += 2
			for i < len(out) && !(out[i] == '*' && i+1 < len(out) && out[i+1] == '/') {
				if out[i] != '\n' {
					out[i] = ' '
				}
				i++
			}
			if i < len(out) {
				out[i], out[i+1] = ' ', ' '
				i++
			}
		}
	}
	return string(out)
}

// splitLogicalLines splits text into lines, joining backslash-continued
// lines and padding with empty lines so the count is unchanged.
func splitLogicalLines(text string) []string {
	physical := strings.Split(text, "\n")
	lines := make([]string, 0, len(physical))
	pending := ""
	joined := 0
	for _, line := range physical {
		trimmed := strings.TrimRight(line, "\r")
		if strings.HasSuffix(trimmed, "\\") {
			pending += trimmed[:len(trimmed)-1]
			joined++
			continue
		}
		lines = append(lines, pending+line)
		for ; joined > 0; joined-- {
			lines = append(lines, "")
		}
		pending = ""
	}
	if pending != "" {
		lines = append(lines, pending)
	}
	return lines
}

func lineOffsets(src string) []int {
	offsets := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

func splitDirective(text string) (string, string) {
	end := 0
	for end < len(text) && isIdentByte(text[end], false) {
		end++
	}
	return text[:end], text[end:]
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdentByte(s[i], i == 0) {
			return false
		}
	}
	return true
}

func isIdentByte(c byte, first bool) bool {
	if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
		return true
	}
	return !first && isDigitByte(c)
}

func isDigitByte(c byte) bool {
	return c >= '0' && c <= '9'
}
