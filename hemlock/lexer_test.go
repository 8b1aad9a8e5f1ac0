package hemlock

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func lexAll(t *testing.T, src string) []Token {
	t.Helper()
	tokens, res := NewLexer("test.hml", src).Tokenize()
	if res.IsErr() {
		t.Fatalf("Tokenize(%q) failed: %v", src, res.Err)
	}
	return tokens
}

func lexErr(t *testing.T, src string) Error {
	t.Helper()
	_, res := NewLexer("test.hml", src).Tokenize()
	if res.IsOk() {
		t.Fatalf("Tokenize(%q) unexpectedly succeeded", src)
	}
	return res.Err
}

func kindsWithoutEOF(tokens []Token) []TokenType {
	end := len(tokens)
	if end > 0 && tokens[end-1].Kind == TokenEOF {
		end--
	}
	out := make([]TokenType, 0, end)
	for i := 0; i < end; i++ {
		out = append(out, tokens[i].Kind)
	}
	return out
}

func wantKinds(t *testing.T, src string, want []TokenType) []Token {
	t.Helper()
	got := lexAll(t, src)
	if diff := cmp.Diff(want, kindsWithoutEOF(got)); diff != "" {
		t.Fatalf("token kinds for %q (-want +got):\n%s", src, diff)
	}
	return got
}

func TestLexerDeclaration(t *testing.T) {
	tokens := wantKinds(t, `let x = 42`, []TokenType{
		TokenKeyword, TokenIdent, TokenAssign, TokenInt,
	})
	if tokens[0].Value != "let" || tokens[1].Value != "x" || tokens[3].Value != "42" {
		t.Fatalf("unexpected token values: %v", tokens)
	}
}

func TestLexerKeywordVersusIdent(t *testing.T) {
	tokens := lexAll(t, `letter return returning`)
	want := []TokenType{TokenIdent, TokenKeyword, TokenIdent}
	if diff := cmp.Diff(want, kindsWithoutEOF(tokens)); diff != "" {
		t.Fatalf("keyword boundary (-want +got):\n%s", diff)
	}
}

func TestLexerOperators(t *testing.T) {
	wantKinds(t, `+ - * / % == != <= >= < > && || ?? -> ++ -- += -= *= /= %= !`, []TokenType{
		TokenPlus, TokenMinus, TokenMul, TokenDiv, TokenMod,
		TokenEQ, TokenNEQ, TokenLTE, TokenGTE, TokenLT, TokenGT,
		TokenAnd, TokenOr, TokenCoalesce, TokenArrow,
		TokenPlusPlus, TokenMinusMinus,
		TokenPlusEquals, TokenMinusEquals, TokenMulEquals, TokenDivEquals, TokenModEquals,
		TokenBang,
	})
}

func TestLexerNumbers(t *testing.T) {
	tokens := wantKinds(t, `1_000_000 3.14 7`, []TokenType{TokenInt, TokenFloat, TokenInt})
	if tokens[0].Value != "1000000" {
		t.Fatalf("underscore separators not stripped: %q", tokens[0].Value)
	}
	if tokens[1].Value != "3.14" {
		t.Fatalf("float value = %q, want 3.14", tokens[1].Value)
	}
}

func TestLexerIntMethodCall(t *testing.T) {
	// the dot after an int literal belongs to the method call, not the number
	wantKinds(t, `42.to_string()`, []TokenType{
		TokenInt, TokenDot, TokenIdent, TokenLParen, TokenRParen,
	})
}

func TestLexerStringEscapes(t *testing.T) {
	tokens := lexAll(t, `"a\nb\t\"c\""`)
	if tokens[0].Kind != TokenString {
		t.Fatalf("kind = %v, want TokenString", tokens[0].Kind)
	}
	if tokens[0].Value != "a\nb\t\"c\"" {
		t.Fatalf("escapes not decoded: %q", tokens[0].Value)
	}
}

func TestLexerStringInterpolationMarkerKept(t *testing.T) {
	// ${...} stays raw in the token value; splitting happens in the parser
	tokens := lexAll(t, `"a ${x} b"`)
	if tokens[0].Value != "a ${x} b" {
		t.Fatalf("interpolation marker mangled: %q", tokens[0].Value)
	}

	escaped := lexAll(t, `"cost: \$5"`)
	if escaped[0].Value != `cost: \$5` {
		t.Fatalf("escaped marker = %q, want backslash kept", escaped[0].Value)
	}
}

func TestLexerStringErrors(t *testing.T) {
	err := lexErr(t, `"no closing quote`)
	if !strings.Contains(err.Error(), "unterminated string") {
		t.Fatalf("error = %v, want unterminated string", err)
	}

	err = lexErr(t, `"bad \q escape"`)
	if !strings.Contains(err.Error(), "unknown escape sequence") {
		t.Fatalf("error = %v, want unknown escape", err)
	}
}

func TestLexerComments(t *testing.T) {
	wantKinds(t, "let a = 1 // trailing\n/* block\nspanning lines */ let b = 2", []TokenType{
		TokenKeyword, TokenIdent, TokenAssign, TokenInt,
		TokenKeyword, TokenIdent, TokenAssign, TokenInt,
	})

	err := lexErr(t, "/* never closed")
	if !strings.Contains(err.Error(), "unterminated block comment") {
		t.Fatalf("error = %v, want unterminated block comment", err)
	}
}

func TestLexerLocations(t *testing.T) {
	tokens := lexAll(t, "let x = 1\nlet y = 2")
	if tokens[0].Loc.Line != 1 {
		t.Fatalf("first token line = %d, want 1", tokens[0].Loc.Line)
	}
	second := tokens[4] // 'let' on the second line
	if second.Loc.Line != 2 {
		t.Fatalf("second declaration line = %d, want 2", second.Loc.Line)
	}
	if second.Loc.FileName != "test.hml" {
		t.Fatalf("file name = %q", second.Loc.FileName)
	}
}
