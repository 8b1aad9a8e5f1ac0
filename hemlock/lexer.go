package hemlock

import (
	"fmt"
	"strings"
	"unicode"
)

type Lexer struct {
	source   string
	srcName  string
	currIdx  int
	currChar rune
	line     int
	col      int
	tokens   []Token
}

func NewLexer(srcName, source string) *Lexer {
	l := &Lexer{
		source:  source,
		srcName: srcName,
		currIdx: 0,
		line:    1,
		col:     1,
		tokens:  make([]Token, 0),
	}

	if len(source) > 0 {
		l.currChar = rune(source[0])
	}
	return l
}

func (l *Lexer) advance() {
	if l.currChar == '\n' {
		l.line++
		l.col = 0
	}
	l.currIdx++
	if l.currIdx < len(l.source) {
		l.currChar = rune(l.source[l.currIdx])
	} else {
		l.currChar = 0
	}
	l.col++
}

func (l *Lexer) hasChar() bool {
	return l.currChar != 0
}

func (l *Lexer) peek(offset int) rune {
	peekIdx := l.currIdx + offset
	if peekIdx < len(l.source) {
		return rune(l.source[peekIdx])
	}
	return 0
}

func (l *Lexer) getLoc(colStart *int) Loc {
	actualColStart := l.col
	if colStart != nil {
		actualColStart = *colStart
	}

	loc := Loc{FileName: l.srcName, Line: l.line, ColStart: actualColStart}
	if colStart != nil {
		colEnd := l.col - 1
		loc.ColEnd = &colEnd
	}
	return loc
}

func (l *Lexer) addToken(kind TokenType, value string, loc Loc) {
	l.tokens = append(l.tokens, Token{Kind: kind, Value: value, Loc: loc})
}

// Single-character token at the current position, then advance.
func (l *Lexer) addSimple(kind TokenType) {
	l.addToken(kind, string(l.currChar), l.getLoc(nil))
	l.advance()
}

// Two-character operator; assumes the second char has been peeked already.
func (l *Lexer) addPair(kind TokenType) {
	colStart := l.col
	value := string(l.currChar) + string(l.peek(1))
	l.advance()
	l.advance()
	l.addToken(kind, value, l.getLoc(&colStart))
}

func (l *Lexer) Tokenize() ([]Token, Result[any]) {
	for l.hasChar() {
		switch {
		case l.currChar == ' ' || l.currChar == '\t' || l.currChar == '\r' || l.currChar == '\n':
			l.advance()
		case l.currChar == '/' && l.peek(1) == '/':
			for l.hasChar() && l.currChar != '\n' {
				l.advance()
			}
		case l.currChar == '/' && l.peek(1) == '*':
			l.advance()
			l.advance()
			for l.hasChar() && !(l.currChar == '*' && l.peek(1) == '/') {
				l.advance()
			}
			if !l.hasChar() {
				return nil, ResErr[any](NewLexerError("unterminated block comment", l.getLoc(nil)))
			}
			l.advance()
			l.advance()
		case unicode.IsDigit(l.currChar):
			if res := l.makeNumber(); res.IsErr() {
				return nil, ResErr[any](res.Err)
			}
		case unicode.IsLetter(l.currChar) || l.currChar == '_':
			l.makeIdent()
		case l.currChar == '"':
			if res := l.makeString(); res.IsErr() {
				return nil, ResErr[any](res.Err)
			}
		default:
			if res := l.makeOperator(); res.IsErr() {
				return nil, ResErr[any](res.Err)
			}
		}
	}

	l.addToken(TokenEOF, "", l.getLoc(nil))
	return l.tokens, ResOk[any](nil)
}

func (l *Lexer) makeOperator() Result[any] {
	switch l.currChar {
	case '(':
		l.addSimple(TokenLParen)
	case ')':
		l.addSimple(TokenRParen)
	case '{':
		l.addSimple(TokenLCurlyBrace)
	case '}':
		l.addSimple(TokenRCurlyBrace)
	case '[':
		l.addSimple(TokenLSqBracket)
	case ']':
		l.addSimple(TokenRSqBracket)
	case ',':
		l.addSimple(TokenComma)
	case ';':
		l.addSimple(TokenSemiColon)
	case ':':
		l.addSimple(TokenColon)
	case '.':
		l.addSimple(TokenDot)
	case '+':
		if l.peek(1) == '+' {
			l.addPair(TokenPlusPlus)
		} else if l.peek(1) == '=' {
			l.addPair(TokenPlusEquals)
		} else {
			l.addSimple(TokenPlus)
		}
	case '-':
		if l.peek(1) == '-' {
			l.addPair(TokenMinusMinus)
		} else if l.peek(1) == '=' {
			l.addPair(TokenMinusEquals)
		} else if l.peek(1) == '>' {
			l.addPair(TokenArrow)
		} else {
			l.addSimple(TokenMinus)
		}
	case '*':
		if l.peek(1) == '=' {
			l.addPair(TokenMulEquals)
		} else {
			l.addSimple(TokenMul)
		}
	case '/':
		if l.peek(1) == '=' {
			l.addPair(TokenDivEquals)
		} else {
			l.addSimple(TokenDiv)
		}
	case '%':
		if l.peek(1) == '=' {
			l.addPair(TokenModEquals)
		} else {
			l.addSimple(TokenMod)
		}
	case '=':
		if l.peek(1) == '=' {
			l.addPair(TokenEQ)
		} else {
			l.addSimple(TokenAssign)
		}
	case '!':
		if l.peek(1) == '=' {
			l.addPair(TokenNEQ)
		} else {
			l.addSimple(TokenBang)
		}
	case '<':
		if l.peek(1) == '=' {
			l.addPair(TokenLTE)
		} else {
			l.addSimple(TokenLT)
		}
	case '>':
		if l.peek(1) == '=' {
			l.addPair(TokenGTE)
		} else {
			l.addSimple(TokenGT)
		}
	case '&':
		if l.peek(1) == '&' {
			l.addPair(TokenAnd)
		} else {
			return ResErr[any](NewLexerError("unexpected character '&'", l.getLoc(nil)))
		}
	case '|':
		if l.peek(1) == '|' {
			l.addPair(TokenOr)
		} else {
			return ResErr[any](NewLexerError("unexpected character '|'", l.getLoc(nil)))
		}
	case '?':
		if l.peek(1) == '?' {
			l.addPair(TokenCoalesce)
		} else {
			l.addSimple(TokenQuestion)
		}
	default:
		return ResErr[any](NewLexerError(fmt.Sprintf("unexpected character %q", l.currChar), l.getLoc(nil)))
	}
	return ResOk[any](nil)
}

func (l *Lexer) makeNumber() Result[any] {
	colStart := l.col
	var sb strings.Builder
	isFloat := false

	for l.hasChar() && (unicode.IsDigit(l.currChar) || l.currChar == '.' || l.currChar == '_') {
		if l.currChar == '.' {
			// a second dot or a method call on an int literal ends the number
			if isFloat || !unicode.IsDigit(l.peek(1)) {
				break
			}
			isFloat = true
		}
		if l.currChar != '_' {
			sb.WriteRune(l.currChar)
		}
		l.advance()
	}

	kind := TokenInt
	if isFloat {
		kind = TokenFloat
	}
	l.addToken(kind, sb.String(), l.getLoc(&colStart))
	return ResOk[any](nil)
}

func (l *Lexer) makeIdent() {
	colStart := l.col
	var sb strings.Builder

	for l.hasChar() && (unicode.IsLetter(l.currChar) || unicode.IsDigit(l.currChar) || l.currChar == '_') {
		sb.WriteRune(l.currChar)
		l.advance()
	}

	value := sb.String()
	kind := TokenIdent
	if IsKeyword(value) {
		kind = TokenKeyword
	}
	l.addToken(kind, value, l.getLoc(&colStart))
}

// makeString keeps escapes decoded but leaves ${...} interpolation markers
// in the raw value; the parser splits them into parts.
func (l *Lexer) makeString() Result[any] {
	colStart := l.col
	startLine := l.line
	l.advance() // opening quote

	var sb strings.Builder
	for l.hasChar() && l.currChar != '"' {
		if l.currChar == '\\' {
			next := l.peek(1)
			switch next {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			case '\\':
				sb.WriteRune('\\')
			case '"':
				sb.WriteRune('"')
			case '0':
				sb.WriteRune(0)
			case '$':
				// escaped interpolation marker, keep literal
				sb.WriteRune('\\')
				sb.WriteRune('$')
			default:
				return ResErr[any](NewLexerError(fmt.Sprintf("unknown escape sequence '\\%c'", next), l.getLoc(nil)))
			}
			l.advance()
			l.advance()
			continue
		}
		sb.WriteRune(l.currChar)
		l.advance()
	}

	if !l.hasChar() {
		loc := Loc{FileName: l.srcName, Line: startLine, ColStart: colStart}
		return ResErr[any](NewLexerError("unterminated string literal", loc))
	}
	l.advance() // closing quote

	l.addToken(TokenString, sb.String(), l.getLoc(&colStart))
	return ResOk[any](nil)
}
