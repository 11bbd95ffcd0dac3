package glsl

import "fmt"

// TokenKind represents the type of token.
type TokenKind uint8

const (
	TokenEOF TokenKind = iota
	TokenError

	// Literals
	TokenIdent
	TokenIntLiteral
	TokenFloatLiteral
	TokenBoolLiteral

	// Operators
	TokenPlus                // +
	TokenMinus               // -
	TokenStar                // *
	TokenSlash               // /
	TokenPercent             // %
	TokenAmpersand           // &
	TokenPipe                // |
	TokenCaret               // ^
	TokenTilde               // ~
	TokenBang                // !
	TokenEqual               // =
	TokenLess                // <
	TokenGreater             // >
	TokenDot                 // .
	TokenComma               // ,
	TokenColon               // :
	TokenSemicolon           // ;
	TokenQuestion            // ?
	TokenPlusPlus            // ++
	TokenMinusMinus          // --
	TokenEqualEqual          // ==
	TokenBangEqual           // !=
	TokenLessEqual           // <=
	TokenGreaterEqual        // >=
	TokenAmpAmp              // &&
	TokenPipePipe            // ||
	TokenCaretCaret          // ^^
	TokenLessLess            // <<
	TokenGreaterGreater      // >>
	TokenPlusEqual           // +=
	TokenMinusEqual          // -=
	TokenStarEqual           // *=
	TokenSlashEqual          // /=
	TokenPercentEqual        // %=
	TokenAmpEqual            // &=
	TokenPipeEqual           // |=
	TokenCaretEqual          // ^=
	TokenLessLessEqual       // <<=
	TokenGreaterGreaterEqual // >>=

	// Delimiters
	TokenLeftParen    // (
	TokenRightParen   // )
	TokenLeftBrace    // {
	TokenRightBrace   // }
	TokenLeftBracket  // [
	TokenRightBracket // ]

	// Keywords
	TokenAttribute
	TokenBreak
	TokenBuffer
	TokenCase
	TokenCentroid
	TokenCoherent
	TokenConst
	TokenContinue
	TokenDefault
	TokenDiscard
	TokenDo
	TokenElse
	TokenFlat
	TokenFor
	TokenHighp
	TokenIf
	TokenIn
	TokenInout
	TokenInvariant
	TokenLayout
	TokenLowp
	TokenMediump
	TokenNoperspective
	TokenOut
	TokenPrecise
	TokenPrecision
	TokenReadonly
	TokenRestrict
	TokenReturn
	TokenSample
	TokenShared
	TokenSmooth
	TokenStruct
	TokenSwitch
	TokenUniform
	TokenVarying
	TokenVoid
	TokenVolatile
	TokenWhile
	TokenWriteonly
)

var tokenNames = map[TokenKind]string{
	TokenEOF:          "end of file",
	TokenError:        "invalid character",
	TokenIdent:        "identifier",
	TokenIntLiteral:   "integer literal",
	TokenFloatLiteral: "float literal",
	TokenBoolLiteral:  "bool literal",
	TokenLeftParen:    "'('",
	TokenRightParen:   "')'",
	TokenLeftBrace:    "'{'",
	TokenRightBrace:   "'}'",
	TokenLeftBracket:  "'['",
	TokenRightBracket: "']'",
	TokenSemicolon:    "';'",
	TokenComma:        "','",
	TokenColon:        "':'",
	TokenEqual:        "'='",
}

func (k TokenKind) String() string {
	if name, ok := tokenNames[k]; ok {
		return name
	}
	for text, kind := range keywords {
		if kind == k {
			return "'" + text + "'"
		}
	}
	for text, kind := range punctuation {
		if kind == k {
			return "'" + text + "'"
		}
	}
	return fmt.Sprintf("TokenKind(%d)", uint8(k))
}

// Token is a lexical token.
type Token struct {
	Kind   TokenKind
	Lexeme string
	Line   int
	Column int
	Offset int
}

func (t Token) location() Location {
	return Location{Line: t.Line, Column: t.Column, Offset: t.Offset}
}

func (t Token) describe() string {
	switch t.Kind {
	case TokenEOF:
		return "end of file"
	case TokenIdent, TokenIntLiteral, TokenFloatLiteral, TokenBoolLiteral:
		return fmt.Sprintf("%s %q", t.Kind, t.Lexeme)
	default:
		return fmt.Sprintf("%q", t.Lexeme)
	}
}

var keywords = map[string]TokenKind{
	"attribute":     TokenAttribute,
	"break":         TokenBreak,
	"buffer":        TokenBuffer,
	"case":          TokenCase,
	"centroid":      TokenCentroid,
	"coherent":      TokenCoherent,
	"const":         TokenConst,
	"continue":      TokenContinue,
	"default":       TokenDefault,
	"discard":       TokenDiscard,
	"do":            TokenDo,
	"else":          TokenElse,
	"false":         TokenBoolLiteral,
	"flat":          TokenFlat,
	"for":           TokenFor,
	"highp":         TokenHighp,
	"if":            TokenIf,
	"in":            TokenIn,
	"inout":         TokenInout,
	"invariant":     TokenInvariant,
	"layout":        TokenLayout,
	"lowp":          TokenLowp,
	"mediump":       TokenMediump,
	"noperspective": TokenNoperspective,
	"out":           TokenOut,
	"precise":       TokenPrecise,
	"precision":     TokenPrecision,
	"readonly":      TokenReadonly,
	"restrict":      TokenRestrict,
	"return":        TokenReturn,
	"sample":        TokenSample,
	"shared":        TokenShared,
	"smooth":        TokenSmooth,
	"struct":        TokenStruct,
	"switch":        TokenSwitch,
	"true":          TokenBoolLiteral,
	"uniform":       TokenUniform,
	"varying":       TokenVarying,
	"void":          TokenVoid,
	"volatile":      TokenVolatile,
	"while":         TokenWhile,
	"writeonly":     TokenWriteonly,
}

// punctuation is ordered by the lexer longest first.
var punctuation = map[string]TokenKind{
	"<<=": TokenLessLessEqual,
	">>=": TokenGreaterGreaterEqual,
	"++":  TokenPlusPlus,
	"--":  TokenMinusMinus,
	"==":  TokenEqualEqual,
	"!=":  TokenBangEqual,
	"<=":  TokenLessEqual,
	">=":  TokenGreaterEqual,
	"&&":  TokenAmpAmp,
	"||":  TokenPipePipe,
	"^^":  TokenCaretCaret,
	"<<":  TokenLessLess,
	">>":  TokenGreaterGreater,
	"+=":  TokenPlusEqual,
	"-=":  TokenMinusEqual,
	"*=":  TokenStarEqual,
	"/=":  TokenSlashEqual,
	"%=":  TokenPercentEqual,
	"&=":  TokenAmpEqual,
	"|=":  TokenPipeEqual,
	"^=":  TokenCaretEqual,
	"+":   TokenPlus,
	"-":   TokenMinus,
	"*":   TokenStar,
	"/":   TokenSlash,
	"%":   TokenPercent,
	"&":   TokenAmpersand,
	"|":   TokenPipe,
	"^":   TokenCaret,
	"~":   TokenTilde,
	"!":   TokenBang,
	"=":   TokenEqual,
	"<":   TokenLess,
	">":   TokenGreater,
	".":   TokenDot,
	",":   TokenComma,
	":":   TokenColon,
	";":   TokenSemicolon,
	"?":   TokenQuestion,
	"(":   TokenLeftParen,
	")":   TokenRightParen,
	"{":   TokenLeftBrace,
	"}":   TokenRightBrace,
	"[":   TokenLeftBracket,
	"]":   TokenRightBracket,
}
