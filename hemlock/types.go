package hemlock

import (
	"fmt"
	"slices"
)

type TokenType int

var KeywordConsts = []string{
	"let", "const", "fn", "return", "if", "else", "while", "for", "in",
	"switch", "case", "default", "break", "continue", "try", "catch",
	"finally", "throw", "defer", "import", "export", "from", "as", "enum",
	"define", "extern", "async", "await", "true", "false", "null",
}

// Type annotation keywords, only meaningful after ':' in declarations and
// extern signatures.
var TypeKeywords = []string{
	"int", "i8", "i16", "i32", "i64", "u8", "u16", "u32", "u64",
	"f32", "f64", "number", "string", "bool", "byte", "rune",
	"buffer", "array", "object", "ptr", "void",
}

func IsKeyword(s string) bool {
	return slices.Contains(KeywordConsts, s)
}

func IsTypeKeyword(s string) bool {
	return slices.Contains(TypeKeywords, s)
}

const (
	TokenInt TokenType = iota
	TokenFloat
	TokenString
	TokenIdent
	TokenKeyword
	TokenDot
	TokenLParen
	TokenRParen
	TokenLCurlyBrace
	TokenRCurlyBrace
	TokenLSqBracket
	TokenRSqBracket
	TokenComma
	TokenPlus
	TokenMinus
	TokenMul
	TokenDiv
	TokenMod
	TokenEOF
	TokenError
	TokenSemiColon
	TokenColon
	TokenQuestion
	TokenGT
	TokenGTE
	TokenLT
	TokenLTE
	TokenEQ
	TokenBang
	TokenNEQ
	TokenAssign
	TokenPlusEquals
	TokenMinusEquals
	TokenMulEquals
	TokenDivEquals
	TokenModEquals
	TokenPlusPlus
	TokenMinusMinus
	TokenAnd
	TokenOr
	TokenCoalesce
	TokenArrow
)

func (t TokenType) String() string {
	return []string{
		"TokenInt",
		"TokenFloat",
		"TokenString",
		"TokenIdent",
		"TokenKeyword",
		"TokenDot",
		"TokenLParen",
		"TokenRParen",
		"TokenLCurlyBrace",
		"TokenRCurlyBrace",
		"TokenLSqBracket",
		"TokenRSqBracket",
		"TokenComma",
		"TokenPlus",
		"TokenMinus",
		"TokenMul",
		"TokenDiv",
		"TokenMod",
		"TokenEOF",
		"TokenError",
		"TokenSemiColon",
		"TokenColon",
		"TokenQuestion",
		"TokenGT",
		"TokenGTE",
		"TokenLT",
		"TokenLTE",
		"TokenEQ",
		"TokenBang",
		"TokenNEQ",
		"TokenAssign",
		"TokenPlusEquals",
		"TokenMinusEquals",
		"TokenMulEquals",
		"TokenDivEquals",
		"TokenModEquals",
		"TokenPlusPlus",
		"TokenMinusMinus",
		"TokenAnd",
		"TokenOr",
		"TokenCoalesce",
		"TokenArrow",
	}[t]
}

type Loc struct {
	FileName string `json:"fileName"`
	Line     int    `json:"line"`
	ColStart int    `json:"colStart"`
	ColEnd   *int   `json:"colEnd,omitempty"`
}

func NewLoc(fileName string, line, colStart int, colEnd *int) Loc {
	return Loc{
		FileName: fileName,
		Line:     line,
		ColStart: colStart,
		ColEnd:   colEnd,
	}
}

func (l Loc) String() string {
	if l.ColEnd != nil {
		return fmt.Sprintf("%d:%d-%d", l.Line, l.ColStart, *l.ColEnd)
	}
	return fmt.Sprintf("%d:%d", l.Line, l.ColStart)
}

type Token struct {
	Kind  TokenType `json:"kind"`
	Value string    `json:"value"`
	Loc   Loc       `json:"loc"`
}

func (t Token) GetFileLoc() string {
	return fmt.Sprintf("%s:%s", t.Loc.FileName, t.Loc.String())
}

func (t Token) IsKeyword(value string) bool {
	return t.Kind == TokenKeyword && t.Value == value
}

func (t Token) String() string {
	return fmt.Sprintf("%s %s", t.Kind, t.Value)
}
