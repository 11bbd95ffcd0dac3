package glsl

import (
	"fmt"

	"github.com/gogpu/xshader/ir"
)

// Parser parses GLSL tokens into an AST.
type Parser struct {
	tokens  []Token
	current int
	source  string
	stage   ir.ShaderStage
	errors  SyntaxErrors

	// structs holds the struct names declared so far; GLSL requires a
	// type to be declared before use, which resolves the declaration
	// versus expression ambiguity.
	structs map[string]bool
}

// NewParser creates a new parser for the given tokens. The stage decides
// what the legacy varying qualifier means.
func NewParser(tokens []Token, source string, stage ir.ShaderStage) *Parser {
	return &Parser{
		tokens:  tokens,
		source:  source,
		stage:   stage,
		structs: make(map[string]bool),
	}
}

// Parse parses the tokens and returns the translation unit. All syntax
// errors found are returned together.
func (p *Parser) Parse() (*TranslationUnit, error) {
	unit := &TranslationUnit{}

	for !p.isAtEnd() {
		start := p.current
		decl, err := p.declaration()
		if err != nil {
			p.errors = append(p.errors, err)
			p.synchronize(start)
			continue
		}
		if decl != nil {
			unit.Decls = append(unit.Decls, decl)
		}
	}

	if len(p.errors) > 0 {
		return unit, p.errors
	}
	return unit, nil
}

func (p *Parser) errorAt(tok Token, format string, args ...any) *SyntaxError {
	loc := tok.location()
	return &SyntaxError{Message: fmt.Sprintf(format, args...), Location: &loc, Source: p.source}
}

func (p *Parser) unexpected(want string) *SyntaxError {
	return p.errorAt(p.peek(), "expected %s, got %s", want, p.peek().describe())
}

// declaration parses a top-level declaration. It returns nil for
// declarations that carry no meaning, such as precision statements.
//
//nolint:gocyclo,cyclop,funlen // GLSL declarations share one qualifier prefix
func (p *Parser) declaration() (Decl, *SyntaxError) {
	start := p.peek()

	if p.match(TokenSemicolon) {
		return nil, nil
	}
	if p.match(TokenPrecision) {
		p.match(TokenHighp, TokenMediump, TokenLowp)
		if !p.check(TokenIdent) {
			return nil, p.unexpected("type name")
		}
		p.advance()
		if err := p.expect(TokenSemicolon); err != nil {
			return nil, err
		}
		return nil, nil
	}

	quals, hasQuals, err := p.qualifiers()
	if err != nil {
		return nil, err
	}

	// layout(...) in;  or  layout(std140) uniform;
	if hasQuals && p.match(TokenSemicolon) {
		return &DefaultDecl{Quals: quals, Loc: start.location()}, nil
	}

	// invariant gl_Position;  redeclares a builtin with a qualifier only.
	if hasQuals && p.check(TokenIdent) && !p.isTypeName(p.peek().Lexeme) &&
		(p.peekAt(1).Kind == TokenSemicolon || p.peekAt(1).Kind == TokenComma) {
		for !p.check(TokenSemicolon) && !p.isAtEnd() {
			p.advance()
		}
		return nil, p.expect(TokenSemicolon)
	}

	// Interface block: qualifier Name { ... } [instance];
	if hasQuals && p.check(TokenIdent) && p.peekAt(1).Kind == TokenLeftBrace {
		switch quals.Storage {
		case StorageUniform, StorageBuffer, StorageIn, StorageOut:
			return p.blockDecl(quals, start)
		default:
			return nil, p.errorAt(p.peek(), "interface block %q needs an in, out, uniform or buffer qualifier", p.peek().Lexeme)
		}
	}

	typ, err := p.typeSpec()
	if err != nil {
		return nil, err
	}

	// struct S { ... };
	if typ.Struct != nil && p.match(TokenSemicolon) {
		if typ.Struct.Name == "" {
			return nil, p.errorAt(start, "anonymous struct declares nothing")
		}
		return typ.Struct, nil
	}

	if !p.check(TokenIdent) {
		return nil, p.unexpected("identifier")
	}
	if p.peekAt(1).Kind == TokenLeftParen {
		if hasQuals && quals.Storage != StorageNone && quals.Storage != StorageConst {
			return nil, p.errorAt(start, "functions cannot have storage qualifiers")
		}
		return p.functionDecl(typ, start)
	}

	decl, err := p.declarators(quals, typ, start)
	if err != nil {
		return nil, err
	}
	return decl, nil
}

// qualifiers parses any number of qualifiers. hasQuals reports whether at
// least one was present.
//
//nolint:gocyclo,cyclop // one case per qualifier keyword
func (p *Parser) qualifiers() (Qualifiers, bool, *SyntaxError) {
	quals := Qualifiers{Loc: p.peek().location()}
	found := false
	setStorage := func(s StorageQualifier) *SyntaxError {
		if quals.Storage != StorageNone && !(quals.Storage == StorageConst && s == StorageIn) {
			return p.errorAt(p.previous(), "multiple storage qualifiers")
		}
		quals.Storage = s
		return nil
	}

	for {
		tok := p.peek()
		var err *SyntaxError
		switch tok.Kind {
		case TokenConst:
			err = setStorage(StorageConst)
		case TokenIn, TokenAttribute:
			if quals.Storage == StorageConst {
				// const in is a read-only parameter.
				quals.Storage = StorageNone
			}
			err = setStorage(StorageIn)
		case TokenOut:
			err = setStorage(StorageOut)
		case TokenInout:
			err = setStorage(StorageInout)
		case TokenVarying:
			if p.stage == ir.StageVertex {
				err = setStorage(StorageOut)
			} else {
				err = setStorage(StorageIn)
			}
		case TokenUniform:
			err = setStorage(StorageUniform)
		case TokenBuffer:
			err = setStorage(StorageBuffer)
		case TokenShared:
			err = setStorage(StorageShared)
		case TokenLayout:
			p.advance()
			layout, lerr := p.layoutQualifiers()
			if lerr != nil {
				return quals, found, lerr
			}
			quals.Layout = append(quals.Layout, layout...)
			found = true
			continue
		case TokenFlat:
			quals.Interpolation = InterpFlat
		case TokenSmooth:
			quals.Interpolation = InterpSmooth
		case TokenNoperspective:
			quals.Interpolation = InterpNoPerspective
		case TokenCentroid:
			quals.Centroid = true
		case TokenSample:
			quals.Sample = true
		case TokenReadonly:
			quals.ReadOnly = true
		case TokenWriteonly:
			quals.WriteOnly = true
		case TokenInvariant, TokenPrecise, TokenHighp, TokenMediump, TokenLowp,
			TokenCoherent, TokenVolatile, TokenRestrict:
		default:
			return quals, found, nil
		}
		p.advance()
		if err != nil {
			return quals, found, err
		}
		found = true
	}
}

func (p *Parser) layoutQualifiers() ([]LayoutQualifier, *SyntaxError) {
	if err := p.expect(TokenLeftParen); err != nil {
		return nil, err
	}
	var out []LayoutQualifier
	for {
		tok := p.peek()
		if tok.Kind != TokenIdent && tok.Kind != TokenShared {
			return nil, p.unexpected("layout qualifier name")
		}
		p.advance()
		q := LayoutQualifier{Name: tok.Lexeme, Loc: tok.location()}
		if p.match(TokenEqual) {
			value, err := p.conditional()
			if err != nil {
				return nil, err
			}
			q.Value = value
		}
		out = append(out, q)
		if !p.match(TokenComma) {
			break
		}
	}
	if err := p.expect(TokenRightParen); err != nil {
		return nil, err
	}
	return out, nil
}

// typeSpec parses a type name, an inline struct, and trailing array sizes.
func (p *Parser) typeSpec() (TypeSpec, *SyntaxError) {
	tok := p.peek()
	spec := TypeSpec{Loc: tok.location()}

	switch {
	case tok.Kind == TokenStruct:
		s, err := p.structSpec()
		if err != nil {
			return spec, err
		}
		spec.Struct = s
		spec.Name = s.Name
	case tok.Kind == TokenVoid:
		p.advance()
		spec.Name = "void"
	case tok.Kind == TokenIdent && p.isTypeName(tok.Lexeme):
		p.advance()
		spec.Name = tok.Lexeme
	default:
		return spec, p.unexpected("type")
	}

	sizes, err := p.arraySizes()
	if err != nil {
		return spec, err
	}
	spec.ArraySizes = sizes
	return spec, nil
}

func (p *Parser) arraySizes() ([]Expr, *SyntaxError) {
	var sizes []Expr
	for p.match(TokenLeftBracket) {
		if p.match(TokenRightBracket) {
			sizes = append(sizes, nil)
			continue
		}
		size, err := p.conditional()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenRightBracket); err != nil {
			return nil, err
		}
		sizes = append(sizes, size)
	}
	return sizes, nil
}

func (p *Parser) structSpec() (*StructDecl, *SyntaxError) {
	start := p.advance() // struct
	decl := &StructDecl{Loc: start.location()}
	if p.check(TokenIdent) {
		decl.Name = p.advance().Lexeme
		// Registered before the body so later declarations can use it.
		p.structs[decl.Name] = true
	}
	fields, err := p.fieldList()
	if err != nil {
		return nil, err
	}
	decl.Fields = fields
	return decl, nil
}

// fieldList parses { type a, b; ... } for structs and interface blocks.
func (p *Parser) fieldList() ([]StructField, *SyntaxError) {
	if err := p.expect(TokenLeftBrace); err != nil {
		return nil, err
	}
	var fields []StructField
	for !p.check(TokenRightBrace) {
		if p.isAtEnd() {
			return nil, p.unexpected("'}'")
		}
		quals, _, err := p.qualifiers()
		if err != nil {
			return nil, err
		}
		typ, err := p.typeSpec()
		if err != nil {
			return nil, err
		}
		field := StructField{Quals: quals, Type: typ}
		for {
			if !p.check(TokenIdent) {
				return nil, p.unexpected("member name")
			}
			name := p.advance()
			sizes, err := p.arraySizes()
			if err != nil {
				return nil, err
			}
			field.Names = append(field.Names, Declarator{Name: name.Lexeme, ArraySizes: sizes, Loc: name.location()})
			if !p.match(TokenComma) {
				break
			}
		}
		if err := p.expect(TokenSemicolon); err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}
	p.advance() // }
	if len(fields) == 0 {
		return nil, p.errorAt(p.previous(), "empty struct or block")
	}
	return fields, nil
}

func (p *Parser) blockDecl(quals Qualifiers, start Token) (*BlockDecl, *SyntaxError) {
	decl := &BlockDecl{Quals: quals, BlockName: p.advance().Lexeme, Loc: start.location()}
	fields, err := p.fieldList()
	if err != nil {
		return nil, err
	}
	decl.Fields = fields
	if p.check(TokenIdent) {
		decl.InstanceName = p.advance().Lexeme
		sizes, err := p.arraySizes()
		if err != nil {
			return nil, err
		}
		decl.InstanceSizes = sizes
	}
	if err := p.expect(TokenSemicolon); err != nil {
		return nil, err
	}
	return decl, nil
}

func (p *Parser) declarators(quals Qualifiers, typ TypeSpec, start Token) (*VarDecl, *SyntaxError) {
	decl := &VarDecl{Quals: quals, Type: typ, Loc: start.location()}
	for {
		if !p.check(TokenIdent) {
			return nil, p.unexpected("identifier")
		}
		name := p.advance()
		d := Declarator{Name: name.Lexeme, Loc: name.location()}
		sizes, err := p.arraySizes()
		if err != nil {
			return nil, err
		}
		d.ArraySizes = sizes
		if p.match(TokenEqual) {
			init, err := p.initializer()
			if err != nil {
				return nil, err
			}
			d.Init = init
		}
		decl.Names = append(decl.Names, d)
		if !p.match(TokenComma) {
			break
		}
	}
	if err := p.expect(TokenSemicolon); err != nil {
		return nil, err
	}
	return decl, nil
}

// initializer parses an assignment expression or a brace initializer list,
// which becomes a constructor call with an empty name.
func (p *Parser) initializer() (Expr, *SyntaxError) {
	if !p.check(TokenLeftBrace) {
		return p.assignment()
	}
	open := p.advance()
	call := &CallExpr{Loc: open.location()}
	for !p.check(TokenRightBrace) {
		arg, err := p.initializer()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		if !p.match(TokenComma) {
			break
		}
	}
	if err := p.expect(TokenRightBrace); err != nil {
		return nil, err
	}
	return call, nil
}

func (p *Parser) functionDecl(ret TypeSpec, start Token) (*FunctionDecl, *SyntaxError) {
	decl := &FunctionDecl{ReturnType: ret, Name: p.advance().Lexeme, Loc: start.location()}
	p.advance() // (

	// f(void) declares no parameters.
	if p.check(TokenVoid) && p.peekAt(1).Kind == TokenRightParen {
		p.advance()
	}
	for !p.check(TokenRightParen) {
		param, err := p.parameter()
		if err != nil {
			return nil, err
		}
		decl.Params = append(decl.Params, param)
		if !p.match(TokenComma) {
			break
		}
	}
	if err := p.expect(TokenRightParen); err != nil {
		return nil, err
	}

	if p.match(TokenSemicolon) {
		return decl, nil
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	decl.Body = body
	return decl, nil
}

func (p *Parser) parameter() (ParamDecl, *SyntaxError) {
	start := p.peek()
	quals, _, err := p.qualifiers()
	if err != nil {
		return ParamDecl{}, err
	}
	switch quals.Storage {
	case StorageNone, StorageConst, StorageIn, StorageOut, StorageInout:
	default:
		return ParamDecl{}, p.errorAt(start, "invalid parameter qualifier")
	}
	typ, err := p.typeSpec()
	if err != nil {
		return ParamDecl{}, err
	}
	param := ParamDecl{Quals: quals, Type: typ, Loc: start.location()}
	if p.check(TokenIdent) {
		param.Name = p.advance().Lexeme
		sizes, err := p.arraySizes()
		if err != nil {
			return ParamDecl{}, err
		}
		param.ArraySizes = sizes
	}
	return param, nil
}

func (p *Parser) block() (*BlockStmt, *SyntaxError) {
	open := p.peek()
	if err := p.expect(TokenLeftBrace); err != nil {
		return nil, err
	}
	block := &BlockStmt{Loc: open.location()}
	for !p.check(TokenRightBrace) {
		if p.isAtEnd() {
			return nil, p.unexpected("'}'")
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		block.Stmts = append(block.Stmts, stmt)
	}
	p.advance()
	return block, nil
}

//nolint:cyclop // one case per statement keyword
func (p *Parser) statement() (Stmt, *SyntaxError) {
	tok := p.peek()
	switch tok.Kind {
	case TokenLeftBrace:
		return p.block()
	case TokenSemicolon:
		p.advance()
		return &EmptyStmt{Loc: tok.location()}, nil
	case TokenIf:
		return p.ifStmt()
	case TokenFor:
		return p.forStmt()
	case TokenWhile:
		return p.whileStmt()
	case TokenDo:
		return p.doWhileStmt()
	case TokenSwitch:
		return p.switchStmt()
	case TokenBreak:
		p.advance()
		return &BreakStmt{Loc: tok.location()}, p.expect(TokenSemicolon)
	case TokenContinue:
		p.advance()
		return &ContinueStmt{Loc: tok.location()}, p.expect(TokenSemicolon)
	case TokenDiscard:
		p.advance()
		return &DiscardStmt{Loc: tok.location()}, p.expect(TokenSemicolon)
	case TokenReturn:
		p.advance()
		ret := &ReturnStmt{Loc: tok.location()}
		if !p.check(TokenSemicolon) {
			value, err := p.expression()
			if err != nil {
				return nil, err
			}
			ret.Value = value
		}
		return ret, p.expect(TokenSemicolon)
	}
	return p.simpleStatement()
}

// simpleStatement parses a declaration or an expression statement.
func (p *Parser) simpleStatement() (Stmt, *SyntaxError) {
	if p.startsDeclaration() {
		start := p.peek()
		quals, _, err := p.qualifiers()
		if err != nil {
			return nil, err
		}
		switch quals.Storage {
		case StorageNone, StorageConst:
		default:
			return nil, p.errorAt(start, "local variables can only be qualified const")
		}
		typ, err := p.typeSpec()
		if err != nil {
			return nil, err
		}
		if typ.Struct != nil && p.match(TokenSemicolon) {
			return &EmptyStmt{Loc: start.location()}, nil
		}
		decl, err := p.declarators(quals, typ, start)
		if err != nil {
			return nil, err
		}
		return &DeclStmt{Var: decl}, nil
	}

	x, err := p.expression()
	if err != nil {
		return nil, err
	}
	return &ExprStmt{X: x}, p.expect(TokenSemicolon)
}

func (p *Parser) startsDeclaration() bool {
	tok := p.peek()
	switch tok.Kind {
	case TokenConst, TokenStruct, TokenHighp, TokenMediump, TokenLowp, TokenPrecise, TokenInvariant:
		return true
	case TokenIdent:
	default:
		return false
	}
	if !p.isTypeName(tok.Lexeme) {
		return false
	}
	// T name  or  T[...] name
	i := 1
	for p.peekAt(i).Kind == TokenLeftBracket {
		depth := 0
		for {
			k := p.peekAt(i).Kind
			if k == TokenEOF {
				return false
			}
			if k == TokenLeftBracket {
				depth++
			}
			if k == TokenRightBracket {
				depth--
			}
			i++
			if depth == 0 {
				break
			}
		}
	}
	return p.peekAt(i).Kind == TokenIdent
}

func (p *Parser) ifStmt() (Stmt, *SyntaxError) {
	start := p.advance()
	if err := p.expect(TokenLeftParen); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenRightParen); err != nil {
		return nil, err
	}
	then, err := p.statement()
	if err != nil {
		return nil, err
	}
	stmt := &IfStmt{Cond: cond, Then: then, Loc: start.location()}
	if p.match(TokenElse) {
		els, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmt.Else = els
	}
	return stmt, nil
}

func (p *Parser) forStmt() (Stmt, *SyntaxError) {
	start := p.advance()
	if err := p.expect(TokenLeftParen); err != nil {
		return nil, err
	}
	stmt := &ForStmt{Loc: start.location()}
	if !p.match(TokenSemicolon) {
		init, err := p.simpleStatement()
		if err != nil {
			return nil, err
		}
		stmt.Init = init
	}
	if !p.check(TokenSemicolon) {
		cond, err := p.expression()
		if err != nil {
			return nil, err
		}
		stmt.Cond = cond
	}
	if err := p.expect(TokenSemicolon); err != nil {
		return nil, err
	}
	if !p.check(TokenRightParen) {
		update, err := p.expression()
		if err != nil {
			return nil, err
		}
		stmt.Update = update
	}
	if err := p.expect(TokenRightParen); err != nil {
		return nil, err
	}
	body, err := p.statement()
	if err != nil {
		return nil, err
	}
	stmt.Body = body
	return stmt, nil
}

func (p *Parser) whileStmt() (Stmt, *SyntaxError) {
	start := p.advance()
	if err := p.expect(TokenLeftParen); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenRightParen); err != nil {
		return nil, err
	}
	body, err := p.statement()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Cond: cond, Body: body, Loc: start.location()}, nil
}

func (p *Parser) doWhileStmt() (Stmt, *SyntaxError) {
	start := p.advance()
	body, err := p.statement()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenWhile); err != nil {
		return nil, err
	}
	if err := p.expect(TokenLeftParen); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenRightParen); err != nil {
		return nil, err
	}
	return &DoWhileStmt{Body: body, Cond: cond, Loc: start.location()}, p.expect(TokenSemicolon)
}

func (p *Parser) switchStmt() (Stmt, *SyntaxError) {
	start := p.advance()
	if err := p.expect(TokenLeftParen); err != nil {
		return nil, err
	}
	selector, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenRightParen); err != nil {
		return nil, err
	}
	if err := p.expect(TokenLeftBrace); err != nil {
		return nil, err
	}

	stmt := &SwitchStmt{Selector: selector, Loc: start.location()}
	for !p.match(TokenRightBrace) {
		label := p.peek()
		clause := CaseClause{Loc: label.location()}
		switch {
		case p.match(TokenCase):
			value, err := p.conditional()
			if err != nil {
				return nil, err
			}
			clause.Value = value
		case p.match(TokenDefault):
		default:
			return nil, p.unexpected("'case' or 'default'")
		}
		if err := p.expect(TokenColon); err != nil {
			return nil, err
		}
		for !p.check(TokenCase) && !p.check(TokenDefault) && !p.check(TokenRightBrace) {
			if p.isAtEnd() {
				return nil, p.unexpected("'}'")
			}
			s, err := p.statement()
			if err != nil {
				return nil, err
			}
			clause.Body = append(clause.Body, s)
		}
		stmt.Cases = append(stmt.Cases, clause)
	}
	return stmt, nil
}

// Expressions, lowest precedence first.

func (p *Parser) expression() (Expr, *SyntaxError) {
	left, err := p.assignment()
	if err != nil {
		return nil, err
	}
	for p.check(TokenComma) {
		op := p.advance()
		right, err := p.assignment()
		if err != nil {
			return nil, err
		}
		left = &SequenceExpr{Left: left, Right: right, Loc: op.location()}
	}
	return left, nil
}

func isAssignOp(kind TokenKind) bool {
	switch kind {
	case TokenEqual, TokenPlusEqual, TokenMinusEqual, TokenStarEqual, TokenSlashEqual,
		TokenPercentEqual, TokenAmpEqual, TokenPipeEqual, TokenCaretEqual,
		TokenLessLessEqual, TokenGreaterGreaterEqual:
		return true
	}
	return false
}

func (p *Parser) assignment() (Expr, *SyntaxError) {
	target, err := p.conditional()
	if err != nil {
		return nil, err
	}
	if isAssignOp(p.peek().Kind) {
		op := p.advance()
		value, err := p.assignment()
		if err != nil {
			return nil, err
		}
		return &AssignExpr{Op: op.Kind, Target: target, Value: value, Loc: op.location()}, nil
	}
	return target, nil
}

func (p *Parser) conditional() (Expr, *SyntaxError) {
	cond, err := p.binary(0)
	if err != nil {
		return nil, err
	}
	if !p.check(TokenQuestion) {
		return cond, nil
	}
	q := p.advance()
	then, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenColon); err != nil {
		return nil, err
	}
	els, err := p.assignment()
	if err != nil {
		return nil, err
	}
	return &TernaryExpr{Cond: cond, Then: then, Else: els, Loc: q.location()}, nil
}

// binaryLevels lists binary operators from lowest to highest precedence.
var binaryLevels = [][]TokenKind{
	{TokenPipePipe},
	{TokenCaretCaret},
	{TokenAmpAmp},
	{TokenPipe},
	{TokenCaret},
	{TokenAmpersand},
	{TokenEqualEqual, TokenBangEqual},
	{TokenLess, TokenGreater, TokenLessEqual, TokenGreaterEqual},
	{TokenLessLess, TokenGreaterGreater},
	{TokenPlus, TokenMinus},
	{TokenStar, TokenSlash, TokenPercent},
}

func (p *Parser) binary(level int) (Expr, *SyntaxError) {
	if level == len(binaryLevels) {
		return p.unary()
	}
	left, err := p.binary(level + 1)
	if err != nil {
		return nil, err
	}
	for p.match(binaryLevels[level]...) {
		op := p.previous()
		right, err := p.binary(level + 1)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op.Kind, Left: left, Right: right, Loc: op.location()}
	}
	return left, nil
}

func (p *Parser) unary() (Expr, *SyntaxError) {
	switch p.peek().Kind {
	case TokenPlus, TokenMinus, TokenBang, TokenTilde:
		op := p.advance()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		if op.Kind == TokenPlus {
			return operand, nil
		}
		return &UnaryExpr{Op: op.Kind, Operand: operand, Loc: op.location()}, nil
	case TokenPlusPlus, TokenMinusMinus:
		op := p.advance()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &IncDecExpr{Op: op.Kind, Operand: operand, Prefix: true, Loc: op.location()}, nil
	}
	return p.postfix()
}

func (p *Parser) postfix() (Expr, *SyntaxError) {
	expr, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().Kind {
		case TokenLeftBracket:
			open := p.advance()
			index, err := p.expression()
			if err != nil {
				return nil, err
			}
			if err := p.expect(TokenRightBracket); err != nil {
				return nil, err
			}
			expr = &IndexExpr{Base: expr, Index: index, Loc: open.location()}
		case TokenDot:
			dot := p.advance()
			if !p.check(TokenIdent) {
				return nil, p.unexpected("member name")
			}
			name := p.advance()
			if name.Lexeme == "length" && p.check(TokenLeftParen) {
				p.advance()
				if err := p.expect(TokenRightParen); err != nil {
					return nil, err
				}
				expr = &LengthExpr{Base: expr, Loc: dot.location()}
				continue
			}
			expr = &MemberExpr{Base: expr, Name: name.Lexeme, Loc: name.location()}
		case TokenPlusPlus, TokenMinusMinus:
			op := p.advance()
			expr = &IncDecExpr{Op: op.Kind, Operand: expr, Loc: op.location()}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) primary() (Expr, *SyntaxError) {
	tok := p.peek()
	switch tok.Kind {
	case TokenIntLiteral:
		p.advance()
		return &IntLit{Text: tok.Lexeme, Loc: tok.location()}, nil
	case TokenFloatLiteral:
		p.advance()
		return &FloatLit{Text: tok.Lexeme, Loc: tok.location()}, nil
	case TokenBoolLiteral:
		p.advance()
		return &BoolLit{Value: tok.Lexeme == "true", Loc: tok.location()}, nil
	case TokenLeftParen:
		p.advance()
		inner, err := p.expression()
		if err != nil {
			return nil, err
		}
		return inner, p.expect(TokenRightParen)
	case TokenIdent:
		p.advance()
		call := &CallExpr{Name: tok.Lexeme, Loc: tok.location()}
		if p.isTypeName(tok.Lexeme) && p.check(TokenLeftBracket) {
			sizes, err := p.arraySizes()
			if err != nil {
				return nil, err
			}
			call.ArraySizes = sizes
			if !p.check(TokenLeftParen) {
				return nil, p.unexpected("'(' after array type")
			}
		}
		if !p.match(TokenLeftParen) {
			return &Ident{Name: tok.Lexeme, Loc: tok.location()}, nil
		}
		if p.check(TokenVoid) && p.peekAt(1).Kind == TokenRightParen {
			p.advance()
		}
		for !p.check(TokenRightParen) {
			arg, err := p.assignment()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			if !p.match(TokenComma) {
				break
			}
		}
		return call, p.expect(TokenRightParen)
	}
	return nil, p.unexpected("expression")
}

// Token helpers.

func (p *Parser) isTypeName(name string) bool {
	if p.structs[name] {
		return true
	}
	_, ok := builtinTypes[name]
	return ok
}

func (p *Parser) advance() Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

func (p *Parser) peek() Token {
	return p.tokens[p.current]
}

func (p *Parser) peekAt(offset int) Token {
	if p.current+offset >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.current+offset]
}

func (p *Parser) previous() Token {
	if p.current == 0 {
		return p.tokens[0]
	}
	return p.tokens[p.current-1]
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Kind == TokenEOF
}

func (p *Parser) check(kind TokenKind) bool {
	return p.peek().Kind == kind
}

func (p *Parser) match(kinds ...TokenKind) bool {
	for _, kind := range kinds {
		if p.check(kind) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) expect(kind TokenKind) *SyntaxError {
	if p.check(kind) {
		p.advance()
		return nil
	}
	return p.unexpected(kind.String())
}

// synchronize skips the rest of a broken top-level declaration, balancing
// braces from where it started.
func (p *Parser) synchronize(start int) {
	p.current = start
	depth := 0
	for !p.isAtEnd() {
		tok := p.advance()
		switch tok.Kind {
		case TokenLeftBrace:
			depth++
		case TokenRightBrace:
			depth--
			if depth <= 0 && !p.check(TokenSemicolon) && !p.check(TokenIdent) {
				return
			}
		case TokenSemicolon:
			if depth <= 0 {
				return
			}
		}
	}
}
