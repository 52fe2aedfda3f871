package token

import "testing"

func TestCreateTokenDerivesLexeme(t *testing.T) {
	tok := CreateToken(ARROW, 3, 7)
	if tok.Lexeme != "->" {
		t.Errorf("lexeme: got %q, want %q", tok.Lexeme, "->")
	}
	if tok.Line != 3 || tok.Column != 7 {
		t.Errorf("position: got %d:%d, want 3:7", tok.Line, tok.Column)
	}
}

func TestCreateLiteralToken(t *testing.T) {
	tok := CreateLiteralToken(NUMBER, float64(42), "42", 1, 0)
	if tok.Literal != float64(42) {
		t.Errorf("literal: got %v, want 42", tok.Literal)
	}
	if tok.Lexeme != "42" {
		t.Errorf("lexeme: got %q, want %q", tok.Lexeme, "42")
	}
}

func TestKeywordTable(t *testing.T) {
	keywords := map[string]TokenType{
		"let": LET, "func": FUNC, "class": CLASS, "try": TRY,
		"catch": CATCH, "raise": RAISE, "exception": EXCEPTION,
		"global": GLOBAL, "private": PRIVATE, "map": MAP, "set": SET,
	}
	for lexeme, want := range keywords {
		if got, ok := KeyWords[lexeme]; !ok || got != want {
			t.Errorf("keyword %q: got %v, want %v", lexeme, got, want)
		}
	}
	if _, ok := KeyWords["myVar"]; ok {
		t.Error("identifiers must not be keywords")
	}
}

func TestTokenString(t *testing.T) {
	tok := CreateLiteralToken(NUMBER, float64(123), "123", 3, 10)
	want := `Token {Type: NUMBER, Value: "123"}`
	if tok.String() != want {
		t.Errorf("String(): got %q, want %q", tok.String(), want)
	}
}
