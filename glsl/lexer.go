package glsl

// Lexer tokenizes preprocessed GLSL source. Comments and directives are
// already gone, so only tokens and whitespace remain.
type Lexer struct {
	source string
	pos    int
	line   int
	column int
	start  int

	startLine   int
	startColumn int

	tokens []Token
}

// NewLexer creates a new lexer for the given source.
func NewLexer(source string) *Lexer {
	// Estimate ~1 token per 5 characters of source.
	estTokens := len(source) / 5
	if estTokens < 16 {
		estTokens = 16
	}
	return &Lexer{
		source: source,
		line:   1,
		column: 1,
		tokens: make([]Token, 0, estTokens),
	}
}

// Tokenize returns all tokens from the source. Invalid characters become
// TokenError tokens so the parser can report them with a location.
func (l *Lexer) Tokenize() []Token {
	for !l.isAtEnd() {
		l.start = l.pos
		l.startLine = l.line
		l.startColumn = l.column
		l.scanToken()
	}

	l.tokens = append(l.tokens, Token{
		Kind:   TokenEOF,
		Line:   l.line,
		Column: l.column,
		Offset: l.pos,
	})
	return l.tokens
}

func (l *Lexer) scanToken() {
	c := l.advance()

	switch {
	case c == '\n':
		l.line++
		l.column = 1
	case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
	case isDigitByte(c) || (c == '.' && isDigitByte(l.peek())):
		l.number()
	case isIdentByte(c, true):
		l.identifier()
	default:
		l.operator()
	}
}

func (l *Lexer) operator() {
	// Longest match over the punctuation table: three, two, then one byte.
	for n := 3; n >= 1; n-- {
		end := l.start + n
		if end > len(l.source) {
			continue
		}
		if kind, ok := punctuation[l.source[l.start:end]]; ok {
			for l.pos < end {
				l.advance()
			}
			l.addToken(kind)
			return
		}
	}
	l.addToken(TokenError)
}

func (l *Lexer) number() {
	if l.source[l.start] == '0' && (l.peek() == 'x' || l.peek() == 'X') {
		l.advance()
		for isHexDigit(l.peek()) {
			l.advance()
		}
		if l.peek() == 'u' || l.peek() == 'U' {
			l.advance()
		}
		l.addToken(TokenIntLiteral)
		return
	}

	isFloat := l.source[l.start] == '.'
	for isDigitByte(l.peek()) {
		l.advance()
	}
	if !isFloat && l.peek() == '.' {
		isFloat = true
		l.advance()
		for isDigitByte(l.peek()) {
			l.advance()
		}
	}
	if l.peek() == 'e' || l.peek() == 'E' {
		next := l.peekNext()
		if isDigitByte(next) || ((next == '+' || next == '-') && l.pos+2 < len(l.source) && isDigitByte(l.source[l.pos+2])) {
			isFloat = true
			l.advance()
			if l.peek() == '+' || l.peek() == '-' {
				l.advance()
			}
			for isDigitByte(l.peek()) {
				l.advance()
			}
		}
	}

	switch {
	case l.peek() == 'f' || l.peek() == 'F':
		isFloat = true
		l.advance()
	case (l.peek() == 'l' && l.peekNext() == 'f') || (l.peek() == 'L' && l.peekNext() == 'F'):
		isFloat = true
		l.advance()
		l.advance()
	case !isFloat && (l.peek() == 'u' || l.peek() == 'U'):
		l.advance()
	}

	if isFloat {
		l.addToken(TokenFloatLiteral)
	} else {
		l.addToken(TokenIntLiteral)
	}
}

func (l *Lexer) identifier() {
	for isIdentByte(l.peek(), false) {
		l.advance()
	}
	text := l.source[l.start:l.pos]
	if kind, ok := keywords[text]; ok {
		l.addToken(kind)
		return
	}
	l.addToken(TokenIdent)
}

func (l *Lexer) addToken(kind TokenKind) {
	l.tokens = append(l.tokens, Token{
		Kind:   kind,
		Lexeme: l.source[l.start:l.pos],
		Line:   l.startLine,
		Column: l.startColumn,
		Offset: l.start,
	})
}

func (l *Lexer) advance() byte {
	c := l.source[l.pos]
	l.pos++
	l.column++
	return c
}

func (l *Lexer) peek() byte {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekNext() byte {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

func (l *Lexer) isAtEnd() bool {
	return l.pos >= len(l.source)
}

func isHexDigit(c byte) bool {
	return isDigitByte(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
