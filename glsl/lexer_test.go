package glsl

import "testing"

func TestLexerTokens(t *testing.T) {
	tests := []struct {
		input string
		kinds []TokenKind
	}{
		{"layout(location = 0) in vec3 pos;", []TokenKind{
			TokenLayout, TokenLeftParen, TokenIdent, TokenEqual, TokenIntLiteral, TokenRightParen,
			TokenIn, TokenIdent, TokenIdent, TokenSemicolon, TokenEOF,
		}},
		{"a <<= b >>= c", []TokenKind{TokenIdent, TokenLessLessEqual, TokenIdent, TokenGreaterGreaterEqual, TokenIdent, TokenEOF}},
		{"x++ && --y || !z ^^ w", []TokenKind{
			TokenIdent, TokenPlusPlus, TokenAmpAmp, TokenMinusMinus, TokenIdent, TokenPipePipe,
			TokenBang, TokenIdent, TokenCaretCaret, TokenIdent, TokenEOF,
		}},
		{"uniform buffer shared const", []TokenKind{TokenUniform, TokenBuffer, TokenShared, TokenConst, TokenEOF}},
		{"true false", []TokenKind{TokenBoolLiteral, TokenBoolLiteral, TokenEOF}},
		{"a @ b", []TokenKind{TokenIdent, TokenError, TokenIdent, TokenEOF}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens := NewLexer(tt.input).Tokenize()
			if len(tokens) != len(tt.kinds) {
				t.Fatalf("got %d tokens, want %d: %v", len(tokens), len(tt.kinds), tokens)
			}
			for i, want := range tt.kinds {
				if tokens[i].Kind != want {
					t.Errorf("token %d (%q) = %s, want %s", i, tokens[i].Lexeme, tokens[i].Kind, want)
				}
			}
		})
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		kind  TokenKind
	}{
		{"42", TokenIntLiteral},
		{"0x1F", TokenIntLiteral},
		{"0xFFu", TokenIntLiteral},
		{"017", TokenIntLiteral},
		{"7u", TokenIntLiteral},
		{"1.5", TokenFloatLiteral},
		{".5", TokenFloatLiteral},
		{"2.", TokenFloatLiteral},
		{"1e10", TokenFloatLiteral},
		{"1.5e-3", TokenFloatLiteral},
		{"3f", TokenFloatLiteral},
		{"2.0lf", TokenFloatLiteral},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens := NewLexer(tt.input).Tokenize()
			if len(tokens) != 2 {
				t.Fatalf("got %d tokens, want 2: %v", len(tokens), tokens)
			}
			if tokens[0].Kind != tt.kind {
				t.Errorf("kind = %s, want %s", tokens[0].Kind, tt.kind)
			}
			if tokens[0].Lexeme != tt.input {
				t.Errorf("lexeme = %q, want %q", tokens[0].Lexeme, tt.input)
			}
		})
	}
}

func TestLexerLocations(t *testing.T) {
	tokens := NewLexer("int a;\n  float b;").Tokenize()
	float := tokens[3]
	if float.Lexeme != "float" {
		t.Fatalf("token 3 = %q, want float", float.Lexeme)
	}
	if float.Line != 2 || float.Column != 3 || float.Offset != 9 {
		t.Errorf("location = %d:%d@%d, want 2:3@9", float.Line, float.Column, float.Offset)
	}
}
