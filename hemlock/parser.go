package hemlock

import (
	"fmt"
	"strconv"
	"strings"
)

type Parser struct {
	tokens  []Token
	currIdx int
	srcName string
}

func NewParser(tokens []Token) *Parser {
	p := &Parser{
		tokens:  tokens,
		currIdx: 0,
	}
	if len(tokens) > 0 {
		p.srcName = tokens[0].Loc.FileName
	}
	return p
}

func (p *Parser) Parse() Result[*Block] {
	programBlock := &Block{Statements: make([]Stmt, 0)}

	for !p.isAtEnd() {
		stmtResult := p.statement()
		if stmtResult.IsErr() {
			return ResErr[*Block](stmtResult.Err)
		}
		programBlock.Statements = append(programBlock.Statements, stmtResult.Value)

		// semicolon consumption
		if p.check(TokenSemiColon) {
			p.advance()
			continue
		}
	}

	return ResOk(programBlock)
}

// utils

// Check and advance the given token kind if it matches current, return Error with given message otherwise
func (p *Parser) consume(kind TokenType, msg string) Result[*Token] {
	if p.check(kind) {
		tok := p.advance()
		return ResOk(tok)
	}
	return ResErr[*Token](NewParserError(msg, p.current().Loc))
}

func (p *Parser) consumeKeyword(keyword, msg string) Result[*Token] {
	if p.checkKeyword(keyword) {
		tok := p.advance()
		return ResOk(tok)
	}
	return ResErr[*Token](NewParserError(msg, p.current().Loc))
}

// Match and advance if matched otherwise return false without advancing
func (p *Parser) match(types ...TokenType) bool {
	for _, t := range types {
		if p.check(t) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) matchKeyword(keyword string) bool {
	if p.checkKeyword(keyword) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) check(kind TokenType) bool {
	return p.current().Kind == kind
}

func (p *Parser) checkKeyword(keyword string) bool {
	return p.current().Kind == TokenKeyword && p.current().Value == keyword
}

func (p *Parser) current() *Token {
	if p.currIdx < len(p.tokens) {
		return &p.tokens[p.currIdx]
	}
	return &p.tokens[len(p.tokens)-1]
}

func (p *Parser) peekNext() *Token {
	if p.currIdx+1 < len(p.tokens) {
		return &p.tokens[p.currIdx+1]
	}
	return &p.tokens[len(p.tokens)-1]
}

func (p *Parser) advance() *Token {
	tok := p.current()
	if !p.isAtEnd() {
		p.currIdx++
	}
	return tok
}

func (p *Parser) isAtEnd() bool {
	return p.current().Kind == TokenEOF
}

// statements

func (p *Parser) statement() Result[Stmt] {
	switch {
	case p.checkKeyword("let") || p.checkKeyword("const"):
		return p.varDeclaration()
	case p.checkKeyword("fn") && p.peekNext().Kind == TokenIdent:
		return p.functionDef(false)
	case p.checkKeyword("async"):
		// async fn name(...) as a statement; async literals go through expression()
		if p.peekNext().IsKeyword("fn") {
			save := p.currIdx
			p.advance()
			if p.peekNext().Kind == TokenIdent {
				return p.functionDef(true)
			}
			p.currIdx = save
		}
		return p.expressionStatement()
	case p.checkKeyword("if"):
		return p.ifStatement()
	case p.checkKeyword("while"):
		return p.whileStatement()
	case p.checkKeyword("for"):
		return p.forStatement()
	case p.checkKeyword("switch"):
		return p.switchStatement()
	case p.checkKeyword("try"):
		return p.tryStatement()
	case p.checkKeyword("throw"):
		tok := p.advance()
		value := p.expression()
		if value.IsErr() {
			return ResErr[Stmt](value.Err)
		}
		return ResOk[Stmt](&ThrowStmt{Token: tok, Value: value.Value})
	case p.checkKeyword("defer"):
		tok := p.advance()
		body := p.statement()
		if body.IsErr() {
			return ResErr[Stmt](body.Err)
		}
		return ResOk[Stmt](&DeferStmt{Token: tok, Body: body.Value})
	case p.checkKeyword("break"):
		return ResOk[Stmt](&BreakStmt{Token: p.advance()})
	case p.checkKeyword("continue"):
		return ResOk[Stmt](&ContinueStmt{Token: p.advance()})
	case p.checkKeyword("return"):
		return p.returnStatement()
	case p.checkKeyword("enum"):
		return p.enumStatement()
	case p.checkKeyword("define"):
		return p.typeDefStatement()
	case p.checkKeyword("import"):
		return p.importStatement()
	case p.checkKeyword("export"):
		return p.exportStatement()
	case p.checkKeyword("extern"):
		return p.externStatement()
	case p.check(TokenLCurlyBrace):
		blk := p.block()
		if blk.IsErr() {
			return ResErr[Stmt](blk.Err)
		}
		return ResOk[Stmt](blk.Value)
	default:
		return p.expressionStatement()
	}
}

func (p *Parser) block() Result[*Block] {
	open := p.consume(TokenLCurlyBrace, "expected '{'")
	if open.IsErr() {
		return ResErr[*Block](open.Err)
	}

	blk := &Block{Token: open.Value, Statements: make([]Stmt, 0)}
	for !p.check(TokenRCurlyBrace) && !p.isAtEnd() {
		stmt := p.statement()
		if stmt.IsErr() {
			return ResErr[*Block](stmt.Err)
		}
		blk.Statements = append(blk.Statements, stmt.Value)
		if p.check(TokenSemiColon) {
			p.advance()
		}
	}

	end := p.consume(TokenRCurlyBrace, "expected '}' to close block")
	if end.IsErr() {
		return ResErr[*Block](end.Err)
	}
	blk.EndToken = end.Value
	return ResOk(blk)
}

func (p *Parser) varDeclaration() Result[Stmt] {
	tok := p.advance()
	isConst := tok.Value == "const"

	name := p.consume(TokenIdent, "expected variable name")
	if name.IsErr() {
		return ResErr[Stmt](name.Err)
	}

	typeName := ""
	if p.match(TokenColon) {
		t := p.typeName()
		if t.IsErr() {
			return ResErr[Stmt](t.Err)
		}
		typeName = t.Value
	}

	if eq := p.consume(TokenAssign, "expected '=' after variable name"); eq.IsErr() {
		return ResErr[Stmt](eq.Err)
	}

	value := p.expression()
	if value.IsErr() {
		return ResErr[Stmt](value.Err)
	}

	return ResOk[Stmt](&VarDeclareStmt{
		Token:   tok,
		Name:    name.Value,
		Type:    typeName,
		Value:   value.Value,
		IsConst: isConst,
	})
}

// typeName accepts a type keyword or a user-defined identifier. Type
// keywords are not reserved words, so most arrive here as plain idents.
func (p *Parser) typeName() Result[string] {
	cur := p.current()
	if cur.Kind == TokenIdent || (cur.Kind == TokenKeyword && IsTypeKeyword(cur.Value)) {
		p.advance()
		return ResOk(cur.Value)
	}
	return ResErr[string](NewParserError("expected type name", cur.Loc))
}

func (p *Parser) functionDef(isAsync bool) Result[Stmt] {
	tok := p.advance() // fn
	name := p.consume(TokenIdent, "expected function name")
	if name.IsErr() {
		return ResErr[Stmt](name.Err)
	}

	params := p.paramList()
	if params.IsErr() {
		return ResErr[Stmt](params.Err)
	}

	returnType := ""
	if p.match(TokenColon) {
		t := p.typeName()
		if t.IsErr() {
			return ResErr[Stmt](t.Err)
		}
		returnType = t.Value
	}

	body := p.block()
	if body.IsErr() {
		return ResErr[Stmt](body.Err)
	}

	return ResOk[Stmt](&FunctionDefStmt{
		Token:      tok,
		Name:       name.Value,
		Params:     params.Value,
		Body:       body.Value,
		ReturnType: returnType,
		IsAsync:    isAsync,
	})
}

func (p *Parser) paramList() Result[[]*Param] {
	if open := p.consume(TokenLParen, "expected '(' after function name"); open.IsErr() {
		return ResErr[[]*Param](open.Err)
	}

	params := make([]*Param, 0)
	for !p.check(TokenRParen) {
		name := p.consume(TokenIdent, "expected parameter name")
		if name.IsErr() {
			return ResErr[[]*Param](name.Err)
		}
		param := &Param{Name: name.Value}

		if p.match(TokenColon) {
			t := p.typeName()
			if t.IsErr() {
				return ResErr[[]*Param](t.Err)
			}
			param.Type = t.Value
		}
		if p.match(TokenAssign) {
			def := p.expression()
			if def.IsErr() {
				return ResErr[[]*Param](def.Err)
			}
			param.Default = def.Value
		}
		params = append(params, param)

		if !p.match(TokenComma) {
			break
		}
	}

	if end := p.consume(TokenRParen, "expected ')' after parameters"); end.IsErr() {
		return ResErr[[]*Param](end.Err)
	}
	return ResOk(params)
}

func (p *Parser) ifStatement() Result[Stmt] {
	tok := p.advance()
	if open := p.consume(TokenLParen, "expected '(' after 'if'"); open.IsErr() {
		return ResErr[Stmt](open.Err)
	}
	cond := p.expression()
	if cond.IsErr() {
		return ResErr[Stmt](cond.Err)
	}
	if end := p.consume(TokenRParen, "expected ')' after if condition"); end.IsErr() {
		return ResErr[Stmt](end.Err)
	}

	thenBranch := p.block()
	if thenBranch.IsErr() {
		return ResErr[Stmt](thenBranch.Err)
	}

	var elseBranch Stmt
	if p.matchKeyword("else") {
		if p.checkKeyword("if") {
			chained := p.ifStatement()
			if chained.IsErr() {
				return ResErr[Stmt](chained.Err)
			}
			elseBranch = chained.Value
		} else {
			blk := p.block()
			if blk.IsErr() {
				return ResErr[Stmt](blk.Err)
			}
			elseBranch = blk.Value
		}
	}

	return ResOk[Stmt](&IfStmt{
		Token:      tok,
		Condition:  cond.Value,
		ThenBranch: thenBranch.Value,
		ElseBranch: elseBranch,
	})
}

func (p *Parser) whileStatement() Result[Stmt] {
	tok := p.advance()
	if open := p.consume(TokenLParen, "expected '(' after 'while'"); open.IsErr() {
		return ResErr[Stmt](open.Err)
	}
	cond := p.expression()
	if cond.IsErr() {
		return ResErr[Stmt](cond.Err)
	}
	if end := p.consume(TokenRParen, "expected ')' after while condition"); end.IsErr() {
		return ResErr[Stmt](end.Err)
	}
	body := p.block()
	if body.IsErr() {
		return ResErr[Stmt](body.Err)
	}
	return ResOk[Stmt](&WhileStmt{Token: tok, Cond: cond.Value, Body: body.Value})
}

func (p *Parser) forStatement() Result[Stmt] {
	tok := p.advance()
	if open := p.consume(TokenLParen, "expected '(' after 'for'"); open.IsErr() {
		return ResErr[Stmt](open.Err)
	}

	// for (let k in x) / for (let k, v in x)
	if p.checkKeyword("let") {
		save := p.currIdx
		p.advance()
		key := p.consume(TokenIdent, "expected loop variable name")
		if key.IsErr() {
			return ResErr[Stmt](key.Err)
		}
		var valueVar *Token
		if p.match(TokenComma) {
			v := p.consume(TokenIdent, "expected second loop variable name")
			if v.IsErr() {
				return ResErr[Stmt](v.Err)
			}
			valueVar = v.Value
		}
		if p.matchKeyword("in") {
			iter := p.expression()
			if iter.IsErr() {
				return ResErr[Stmt](iter.Err)
			}
			if end := p.consume(TokenRParen, "expected ')' after for-in clause"); end.IsErr() {
				return ResErr[Stmt](end.Err)
			}
			body := p.block()
			if body.IsErr() {
				return ResErr[Stmt](body.Err)
			}
			return ResOk[Stmt](&ForInStmt{
				Token:    tok,
				KeyVar:   key.Value,
				ValueVar: valueVar,
				Iterable: iter.Value,
				Body:     body.Value,
			})
		}
		// not a for-in, rewind to parse a C-style init clause
		p.currIdx = save
	}

	// for (init; cond; post)
	var init Stmt
	if !p.check(TokenSemiColon) {
		res := p.statement()
		if res.IsErr() {
			return ResErr[Stmt](res.Err)
		}
		init = res.Value
	}
	if semi := p.consume(TokenSemiColon, "expected ';' after for init clause"); semi.IsErr() {
		return ResErr[Stmt](semi.Err)
	}

	var cond Expr
	if !p.check(TokenSemiColon) {
		res := p.expression()
		if res.IsErr() {
			return ResErr[Stmt](res.Err)
		}
		cond = res.Value
	}
	if semi := p.consume(TokenSemiColon, "expected ';' after for condition"); semi.IsErr() {
		return ResErr[Stmt](semi.Err)
	}

	var post Stmt
	if !p.check(TokenRParen) {
		res := p.statement()
		if res.IsErr() {
			return ResErr[Stmt](res.Err)
		}
		post = res.Value
	}
	if end := p.consume(TokenRParen, "expected ')' after for clauses"); end.IsErr() {
		return ResErr[Stmt](end.Err)
	}

	body := p.block()
	if body.IsErr() {
		return ResErr[Stmt](body.Err)
	}
	return ResOk[Stmt](&ForStmt{Token: tok, Init: init, Cond: cond, Post: post, Body: body.Value})
}

func (p *Parser) switchStatement() Result[Stmt] {
	tok := p.advance()
	if open := p.consume(TokenLParen, "expected '(' after 'switch'"); open.IsErr() {
		return ResErr[Stmt](open.Err)
	}
	subject := p.expression()
	if subject.IsErr() {
		return ResErr[Stmt](subject.Err)
	}
	if end := p.consume(TokenRParen, "expected ')' after switch subject"); end.IsErr() {
		return ResErr[Stmt](end.Err)
	}
	if open := p.consume(TokenLCurlyBrace, "expected '{' to open switch body"); open.IsErr() {
		return ResErr[Stmt](open.Err)
	}

	stmt := &SwitchStmt{Token: tok, Subject: subject.Value}
	for !p.check(TokenRCurlyBrace) && !p.isAtEnd() {
		switch {
		case p.matchKeyword("case"):
			value := p.expression()
			if value.IsErr() {
				return ResErr[Stmt](value.Err)
			}
			if colon := p.consume(TokenColon, "expected ':' after case value"); colon.IsErr() {
				return ResErr[Stmt](colon.Err)
			}
			body := p.caseBody()
			if body.IsErr() {
				return ResErr[Stmt](body.Err)
			}
			stmt.Cases = append(stmt.Cases, SwitchCase{Value: value.Value, Body: body.Value})
		case p.matchKeyword("default"):
			if colon := p.consume(TokenColon, "expected ':' after 'default'"); colon.IsErr() {
				return ResErr[Stmt](colon.Err)
			}
			body := p.caseBody()
			if body.IsErr() {
				return ResErr[Stmt](body.Err)
			}
			stmt.Default = body.Value
		default:
			return ResErr[Stmt](NewParserError("expected 'case' or 'default' in switch body", p.current().Loc))
		}
	}

	if end := p.consume(TokenRCurlyBrace, "expected '}' to close switch body"); end.IsErr() {
		return ResErr[Stmt](end.Err)
	}
	return ResOk[Stmt](stmt)
}

// caseBody collects statements until the next case/default clause or the
// closing brace of the switch.
func (p *Parser) caseBody() Result[*Block] {
	blk := &Block{Token: p.current(), Statements: make([]Stmt, 0)}
	for !p.check(TokenRCurlyBrace) && !p.checkKeyword("case") && !p.checkKeyword("default") && !p.isAtEnd() {
		stmt := p.statement()
		if stmt.IsErr() {
			return ResErr[*Block](stmt.Err)
		}
		blk.Statements = append(blk.Statements, stmt.Value)
		if p.check(TokenSemiColon) {
			p.advance()
		}
	}
	return ResOk(blk)
}

func (p *Parser) tryStatement() Result[Stmt] {
	tok := p.advance()
	tryBlock := p.block()
	if tryBlock.IsErr() {
		return ResErr[Stmt](tryBlock.Err)
	}

	stmt := &TryStmt{Token: tok, TryBlock: tryBlock.Value}

	if p.matchKeyword("catch") {
		if open := p.consume(TokenLParen, "expected '(' after 'catch'"); open.IsErr() {
			return ResErr[Stmt](open.Err)
		}
		param := p.consume(TokenIdent, "expected catch parameter name")
		if param.IsErr() {
			return ResErr[Stmt](param.Err)
		}
		if end := p.consume(TokenRParen, "expected ')' after catch parameter"); end.IsErr() {
			return ResErr[Stmt](end.Err)
		}
		blk := p.block()
		if blk.IsErr() {
			return ResErr[Stmt](blk.Err)
		}
		stmt.CatchParam = param.Value
		stmt.CatchBlock = blk.Value
	}

	if p.matchKeyword("finally") {
		blk := p.block()
		if blk.IsErr() {
			return ResErr[Stmt](blk.Err)
		}
		stmt.FinallyBlock = blk.Value
	}

	if stmt.CatchBlock == nil && stmt.FinallyBlock == nil {
		return ResErr[Stmt](NewParserError("try requires at least a catch or finally clause", tok.Loc))
	}
	return ResOk[Stmt](stmt)
}

func (p *Parser) returnStatement() Result[Stmt] {
	tok := p.advance()
	stmt := &ReturnStmt{Token: tok}

	// bare return before '}' or ';'
	if !p.check(TokenRCurlyBrace) && !p.check(TokenSemiColon) && !p.isAtEnd() {
		value := p.expression()
		if value.IsErr() {
			return ResErr[Stmt](value.Err)
		}
		stmt.Value = value.Value
	}
	return ResOk[Stmt](stmt)
}

func (p *Parser) enumStatement() Result[Stmt] {
	tok := p.advance()
	name := p.consume(TokenIdent, "expected enum name")
	if name.IsErr() {
		return ResErr[Stmt](name.Err)
	}
	if open := p.consume(TokenLCurlyBrace, "expected '{' after enum name"); open.IsErr() {
		return ResErr[Stmt](open.Err)
	}

	stmt := &EnumStmt{Token: tok, Name: name.Value}
	for !p.check(TokenRCurlyBrace) {
		member := p.consume(TokenIdent, "expected enum member name")
		if member.IsErr() {
			return ResErr[Stmt](member.Err)
		}
		m := &EnumMember{Name: member.Value}
		if p.match(TokenAssign) {
			neg := p.match(TokenMinus)
			num := p.consume(TokenInt, "expected integer enum member value")
			if num.IsErr() {
				return ResErr[Stmt](num.Err)
			}
			v, err := strconv.ParseInt(num.Value.Value, 10, 64)
			if err != nil {
				return ResErr[Stmt](NewParserError("invalid enum member value", num.Value.Loc))
			}
			if neg {
				v = -v
			}
			m.Value = &v
		}
		stmt.Members = append(stmt.Members, m)
		if !p.match(TokenComma) {
			break
		}
	}
	if end := p.consume(TokenRCurlyBrace, "expected '}' to close enum"); end.IsErr() {
		return ResErr[Stmt](end.Err)
	}
	return ResOk[Stmt](stmt)
}

func (p *Parser) typeDefStatement() Result[Stmt] {
	tok := p.advance()
	name := p.consume(TokenIdent, "expected type name after 'define'")
	if name.IsErr() {
		return ResErr[Stmt](name.Err)
	}
	if eq := p.consume(TokenAssign, "expected '=' in type definition"); eq.IsErr() {
		return ResErr[Stmt](eq.Err)
	}
	target := p.typeName()
	if target.IsErr() {
		return ResErr[Stmt](target.Err)
	}
	return ResOk[Stmt](&TypeDefStmt{Token: tok, Name: name.Value, Target: target.Value})
}

func (p *Parser) importStatement() Result[Stmt] {
	tok := p.advance()
	stmt := &ImportStmt{Token: tok}

	switch {
	case p.check(TokenLCurlyBrace):
		p.advance()
		for !p.check(TokenRCurlyBrace) {
			name := p.consume(TokenIdent, "expected imported name")
			if name.IsErr() {
				return ResErr[Stmt](name.Err)
			}
			entry := ImportName{Name: name.Value.Value}
			if p.matchKeyword("as") {
				alias := p.consume(TokenIdent, "expected alias after 'as'")
				if alias.IsErr() {
					return ResErr[Stmt](alias.Err)
				}
				entry.Alias = alias.Value.Value
			}
			stmt.Names = append(stmt.Names, entry)
			if !p.match(TokenComma) {
				break
			}
		}
		if end := p.consume(TokenRCurlyBrace, "expected '}' after import list"); end.IsErr() {
			return ResErr[Stmt](end.Err)
		}
		if from := p.consumeKeyword("from", "expected 'from' after import list"); from.IsErr() {
			return ResErr[Stmt](from.Err)
		}
		path := p.consume(TokenString, "expected module path string")
		if path.IsErr() {
			return ResErr[Stmt](path.Err)
		}
		stmt.Path = path.Value.Value
	case p.check(TokenMul):
		p.advance()
		if as := p.consumeKeyword("as", "expected 'as' after 'import *'"); as.IsErr() {
			return ResErr[Stmt](as.Err)
		}
		ns := p.consume(TokenIdent, "expected namespace name")
		if ns.IsErr() {
			return ResErr[Stmt](ns.Err)
		}
		if from := p.consumeKeyword("from", "expected 'from' after namespace name"); from.IsErr() {
			return ResErr[Stmt](from.Err)
		}
		path := p.consume(TokenString, "expected module path string")
		if path.IsErr() {
			return ResErr[Stmt](path.Err)
		}
		stmt.IsNamespace = true
		stmt.NamespaceName = ns.Value.Value
		stmt.Path = path.Value.Value
	default:
		path := p.consume(TokenString, "expected module path string after 'import'")
		if path.IsErr() {
			return ResErr[Stmt](path.Err)
		}
		stmt.Path = path.Value.Value
		if p.matchKeyword("as") {
			ns := p.consume(TokenIdent, "expected namespace name after 'as'")
			if ns.IsErr() {
				return ResErr[Stmt](ns.Err)
			}
			stmt.IsNamespace = true
			stmt.NamespaceName = ns.Value.Value
		}
	}
	return ResOk[Stmt](stmt)
}

func (p *Parser) exportStatement() Result[Stmt] {
	tok := p.advance()

	if p.check(TokenLCurlyBrace) {
		p.advance()
		stmt := &ExportStmt{Token: tok}
		for !p.check(TokenRCurlyBrace) {
			name := p.consume(TokenIdent, "expected exported name")
			if name.IsErr() {
				return ResErr[Stmt](name.Err)
			}
			entry := ExportName{Name: name.Value.Value}
			if p.matchKeyword("as") {
				alias := p.consume(TokenIdent, "expected alias after 'as'")
				if alias.IsErr() {
					return ResErr[Stmt](alias.Err)
				}
				entry.Alias = alias.Value.Value
			}
			stmt.Names = append(stmt.Names, entry)
			if !p.match(TokenComma) {
				break
			}
		}
		if end := p.consume(TokenRCurlyBrace, "expected '}' after export list"); end.IsErr() {
			return ResErr[Stmt](end.Err)
		}
		return ResOk[Stmt](stmt)
	}

	decl := p.statement()
	if decl.IsErr() {
		return ResErr[Stmt](decl.Err)
	}
	switch decl.Value.(type) {
	case *VarDeclareStmt, *FunctionDefStmt, *EnumStmt:
	default:
		return ResErr[Stmt](NewParserError("only declarations can be exported", tok.Loc))
	}
	return ResOk[Stmt](&ExportStmt{Token: tok, Decl: decl.Value})
}

func (p *Parser) externStatement() Result[Stmt] {
	tok := p.advance()
	if fn := p.consumeKeyword("fn", "expected 'fn' after 'extern'"); fn.IsErr() {
		return ResErr[Stmt](fn.Err)
	}
	name := p.consume(TokenIdent, "expected extern function name")
	if name.IsErr() {
		return ResErr[Stmt](name.Err)
	}
	if open := p.consume(TokenLParen, "expected '(' after extern function name"); open.IsErr() {
		return ResErr[Stmt](open.Err)
	}

	stmt := &ExternFnStmt{Token: tok, Name: name.Value, ReturnType: "void"}
	for !p.check(TokenRParen) {
		pname := p.consume(TokenIdent, "expected extern parameter name")
		if pname.IsErr() {
			return ResErr[Stmt](pname.Err)
		}
		if colon := p.consume(TokenColon, "expected ':' after extern parameter name"); colon.IsErr() {
			return ResErr[Stmt](colon.Err)
		}
		ptype := p.typeName()
		if ptype.IsErr() {
			return ResErr[Stmt](ptype.Err)
		}
		stmt.Params = append(stmt.Params, ExternParam{Name: pname.Value, Type: ptype.Value})
		if !p.match(TokenComma) {
			break
		}
	}
	if end := p.consume(TokenRParen, "expected ')' after extern parameters"); end.IsErr() {
		return ResErr[Stmt](end.Err)
	}
	if p.match(TokenColon) {
		ret := p.typeName()
		if ret.IsErr() {
			return ResErr[Stmt](ret.Err)
		}
		stmt.ReturnType = ret.Value
	}
	return ResOk[Stmt](stmt)
}

func (p *Parser) expressionStatement() Result[Stmt] {
	tok := p.current()
	expr := p.expression()
	if expr.IsErr() {
		return ResErr[Stmt](expr.Err)
	}
	return ResOk[Stmt](&ExprStmt{Token: tok, Expression: expr.Value})
}

// expressions, lowest precedence first

func (p *Parser) expression() Result[Expr] {
	return p.assignment()
}

func (p *Parser) assignment() Result[Expr] {
	left := p.ternary()
	if left.IsErr() {
		return left
	}

	if p.check(TokenAssign) || p.check(TokenPlusEquals) || p.check(TokenMinusEquals) ||
		p.check(TokenMulEquals) || p.check(TokenDivEquals) || p.check(TokenModEquals) {
		op := p.advance()
		value := p.assignment()
		if value.IsErr() {
			return value
		}

		rhs := value.Value
		if op.Kind != TokenAssign {
			// compound assignment desugars to target op value
			binOp := &Token{Kind: compoundBaseOp(op.Kind), Value: strings.TrimSuffix(op.Value, "="), Loc: op.Loc}
			rhs = &BinaryOp{Token: op, Left: left.Value, Op: binOp, Right: value.Value}
		}

		switch target := left.Value.(type) {
		case *IdentExpr:
			return ResOk[Expr](&AssignExpr{Token: op, Name: target.Name, Value: rhs})
		case *IndexExpr:
			return ResOk[Expr](&IndexAssignExpr{Token: op, Collection: target.Collection, Index: target.Index, Value: rhs})
		case *DotExpr:
			return ResOk[Expr](&SetAttrExpr{Token: op, Obj: target.Obj, Attr: &target.Attr, Value: rhs})
		default:
			return ResErr[Expr](NewParserError("invalid assignment target", op.Loc))
		}
	}

	return left
}

func compoundBaseOp(kind TokenType) TokenType {
	switch kind {
	case TokenPlusEquals:
		return TokenPlus
	case TokenMinusEquals:
		return TokenMinus
	case TokenMulEquals:
		return TokenMul
	case TokenDivEquals:
		return TokenDiv
	default:
		return TokenMod
	}
}

func (p *Parser) ternary() Result[Expr] {
	cond := p.coalesce()
	if cond.IsErr() {
		return cond
	}

	if p.check(TokenQuestion) {
		tok := p.advance()
		thenExpr := p.expression()
		if thenExpr.IsErr() {
			return thenExpr
		}
		if colon := p.consume(TokenColon, "expected ':' in ternary expression"); colon.IsErr() {
			return ResErr[Expr](colon.Err)
		}
		elseExpr := p.expression()
		if elseExpr.IsErr() {
			return elseExpr
		}
		return ResOk[Expr](&TernaryExpr{Token: tok, Cond: cond.Value, Then: thenExpr.Value, Else: elseExpr.Value})
	}
	return cond
}

func (p *Parser) coalesce() Result[Expr] {
	left := p.logicalOr()
	if left.IsErr() {
		return left
	}
	for p.check(TokenCoalesce) {
		tok := p.advance()
		right := p.logicalOr()
		if right.IsErr() {
			return right
		}
		left = ResOk[Expr](&CoalesceExpr{Token: tok, Left: left.Value, Right: right.Value})
	}
	return left
}

func (p *Parser) logicalOr() Result[Expr] {
	left := p.logicalAnd()
	if left.IsErr() {
		return left
	}
	for p.check(TokenOr) {
		op := p.advance()
		right := p.logicalAnd()
		if right.IsErr() {
			return right
		}
		left = ResOk[Expr](&LogicalOp{Token: op, Left: left.Value, Op: op, Right: right.Value})
	}
	return left
}

func (p *Parser) logicalAnd() Result[Expr] {
	left := p.equality()
	if left.IsErr() {
		return left
	}
	for p.check(TokenAnd) {
		op := p.advance()
		right := p.equality()
		if right.IsErr() {
			return right
		}
		left = ResOk[Expr](&LogicalOp{Token: op, Left: left.Value, Op: op, Right: right.Value})
	}
	return left
}

func (p *Parser) equality() Result[Expr] {
	left := p.comparison()
	if left.IsErr() {
		return left
	}
	for p.check(TokenEQ) || p.check(TokenNEQ) {
		op := p.advance()
		right := p.comparison()
		if right.IsErr() {
			return right
		}
		left = ResOk[Expr](&BinaryOp{Token: op, Left: left.Value, Op: op, Right: right.Value})
	}
	return left
}

func (p *Parser) comparison() Result[Expr] {
	left := p.additive()
	if left.IsErr() {
		return left
	}
	for p.check(TokenLT) || p.check(TokenLTE) || p.check(TokenGT) || p.check(TokenGTE) {
		op := p.advance()
		right := p.additive()
		if right.IsErr() {
			return right
		}
		left = ResOk[Expr](&BinaryOp{Token: op, Left: left.Value, Op: op, Right: right.Value})
	}
	return left
}

func (p *Parser) additive() Result[Expr] {
	left := p.multiplicative()
	if left.IsErr() {
		return left
	}
	for p.check(TokenPlus) || p.check(TokenMinus) {
		op := p.advance()
		right := p.multiplicative()
		if right.IsErr() {
			return right
		}
		left = ResOk[Expr](&BinaryOp{Token: op, Left: left.Value, Op: op, Right: right.Value})
	}
	return left
}

func (p *Parser) multiplicative() Result[Expr] {
	left := p.unary()
	if left.IsErr() {
		return left
	}
	for p.check(TokenMul) || p.check(TokenDiv) || p.check(TokenMod) {
		op := p.advance()
		right := p.unary()
		if right.IsErr() {
			return right
		}
		left = ResOk[Expr](&BinaryOp{Token: op, Left: left.Value, Op: op, Right: right.Value})
	}
	return left
}

func (p *Parser) unary() Result[Expr] {
	switch {
	case p.check(TokenBang) || p.check(TokenMinus):
		op := p.advance()
		operand := p.unary()
		if operand.IsErr() {
			return operand
		}
		return ResOk[Expr](&UnaryOp{Token: op, Op: op, Operand: operand.Value})
	case p.check(TokenPlusPlus) || p.check(TokenMinusMinus):
		op := p.advance()
		target := p.unary()
		if target.IsErr() {
			return target
		}
		if err := checkIncTarget(target.Value, op.Loc); err != nil {
			return ResErr[Expr](err)
		}
		return ResOk[Expr](&PrefixIncExpr{Token: op, Op: op, Target: target.Value})
	case p.checkKeyword("await"):
		tok := p.advance()
		operand := p.unary()
		if operand.IsErr() {
			return operand
		}
		return ResOk[Expr](&AwaitExpr{Token: tok, Operand: operand.Value})
	}
	return p.postfix()
}

func checkIncTarget(e Expr, loc Loc) Error {
	switch e.(type) {
	case *IdentExpr, *IndexExpr, *DotExpr:
		return nil
	}
	return NewParserError("invalid increment/decrement target", loc)
}

func (p *Parser) postfix() Result[Expr] {
	expr := p.primary()
	if expr.IsErr() {
		return expr
	}

	for {
		switch {
		case p.check(TokenLParen):
			tok := p.advance()
			call := &CallExpr{Token: tok, Callee: expr.Value}
			for !p.check(TokenRParen) {
				arg := p.expression()
				if arg.IsErr() {
					return arg
				}
				call.Arguments = append(call.Arguments, arg.Value)
				if !p.match(TokenComma) {
					break
				}
			}
			if end := p.consume(TokenRParen, "expected ')' after call arguments"); end.IsErr() {
				return ResErr[Expr](end.Err)
			}
			expr = ResOk[Expr](call)
		case p.check(TokenLSqBracket):
			tok := p.advance()
			index := p.expression()
			if index.IsErr() {
				return index
			}
			if end := p.consume(TokenRSqBracket, "expected ']' after index"); end.IsErr() {
				return ResErr[Expr](end.Err)
			}
			expr = ResOk[Expr](&IndexExpr{Token: tok, Collection: expr.Value, Index: index.Value})
		case p.check(TokenDot):
			tok := p.advance()
			attr := p.consume(TokenIdent, "expected property name after '.'")
			if attr.IsErr() {
				return ResErr[Expr](attr.Err)
			}
			expr = ResOk[Expr](&DotExpr{Token: tok, Obj: expr.Value, Attr: *attr.Value})
		case p.check(TokenPlusPlus) || p.check(TokenMinusMinus):
			op := p.advance()
			if err := checkIncTarget(expr.Value, op.Loc); err != nil {
				return ResErr[Expr](err)
			}
			expr = ResOk[Expr](&PostfixIncExpr{Token: op, Op: op, Target: expr.Value})
		default:
			return expr
		}
	}
}

func (p *Parser) primary() Result[Expr] {
	cur := p.current()

	switch cur.Kind {
	case TokenInt:
		p.advance()
		value, err := strconv.ParseFloat(cur.Value, 64)
		if err != nil {
			return ResErr[Expr](NewParserError(fmt.Sprintf("invalid integer literal %q", cur.Value), cur.Loc))
		}
		return ResOk[Expr](&NumberExpr{Token: cur, Value: value, IsInt: true})
	case TokenFloat:
		p.advance()
		value, err := strconv.ParseFloat(cur.Value, 64)
		if err != nil {
			return ResErr[Expr](NewParserError(fmt.Sprintf("invalid float literal %q", cur.Value), cur.Loc))
		}
		return ResOk[Expr](&NumberExpr{Token: cur, Value: value, IsInt: false})
	case TokenString:
		p.advance()
		if strings.Contains(cur.Value, "${") {
			return p.interpolation(cur)
		}
		return ResOk[Expr](&StringExpr{Token: cur, Value: unescapeDollar(cur.Value)})
	case TokenLSqBracket:
		p.advance()
		arr := &ArrayExpr{Token: cur}
		for !p.check(TokenRSqBracket) {
			elem := p.expression()
			if elem.IsErr() {
				return elem
			}
			arr.Elements = append(arr.Elements, elem.Value)
			if !p.match(TokenComma) {
				break
			}
		}
		if end := p.consume(TokenRSqBracket, "expected ']' after array elements"); end.IsErr() {
			return ResErr[Expr](end.Err)
		}
		return ResOk[Expr](arr)
	case TokenLCurlyBrace:
		return p.mapLiteral()
	case TokenLParen:
		p.advance()
		inner := p.expression()
		if inner.IsErr() {
			return inner
		}
		if end := p.consume(TokenRParen, "expected ')' after expression"); end.IsErr() {
			return ResErr[Expr](end.Err)
		}
		return inner
	case TokenIdent:
		p.advance()
		return ResOk[Expr](&IdentExpr{Token: cur, Name: cur})
	case TokenKeyword:
		switch cur.Value {
		case "true", "false":
			p.advance()
			return ResOk[Expr](&BooleanExpr{Token: cur, Value: cur.Value == "true"})
		case "null":
			p.advance()
			return ResOk[Expr](&NullExpr{Token: cur})
		case "fn":
			return p.functionLiteral(false)
		case "async":
			if p.peekNext().IsKeyword("fn") {
				p.advance()
				return p.functionLiteral(true)
			}
		}
	}

	return ResErr[Expr](NewParserError(fmt.Sprintf("unexpected token %q", cur.Value), cur.Loc))
}

func (p *Parser) functionLiteral(isAsync bool) Result[Expr] {
	tok := p.advance() // fn
	params := p.paramList()
	if params.IsErr() {
		return ResErr[Expr](params.Err)
	}

	returnType := ""
	if p.match(TokenColon) {
		t := p.typeName()
		if t.IsErr() {
			return ResErr[Expr](t.Err)
		}
		returnType = t.Value
	}

	body := p.block()
	if body.IsErr() {
		return ResErr[Expr](body.Err)
	}
	return ResOk[Expr](&FunctionExpr{
		Token:      tok,
		Params:     params.Value,
		Body:       body.Value,
		ReturnType: returnType,
		IsAsync:    isAsync,
	})
}

func (p *Parser) mapLiteral() Result[Expr] {
	open := p.advance()
	lit := &MapExpr{Token: open}

	for !p.check(TokenRCurlyBrace) {
		cur := p.current()
		if cur.Kind != TokenIdent && cur.Kind != TokenString {
			return ResErr[Expr](NewParserError("expected object key", cur.Loc))
		}
		p.advance()
		if colon := p.consume(TokenColon, "expected ':' after object key"); colon.IsErr() {
			return ResErr[Expr](colon.Err)
		}
		value := p.expression()
		if value.IsErr() {
			return value
		}
		lit.Properties = append(lit.Properties, MapProperty{Key: cur.Value, Value: value.Value})
		if !p.match(TokenComma) {
			break
		}
	}

	if end := p.consume(TokenRCurlyBrace, "expected '}' after object literal"); end.IsErr() {
		return ResErr[Expr](end.Err)
	}
	return ResOk[Expr](lit)
}

// interpolation splits "a ${x} b" into string parts and sub-parsed
// expression parts. There is always one more string part than expressions.
func (p *Parser) interpolation(tok *Token) Result[Expr] {
	value := tok.Value
	interp := &InterpExpr{Token: tok}

	var part strings.Builder
	i := 0
	for i < len(value) {
		// the lexer leaves \$ escapes in place so they stay literal here
		if value[i] == '\\' && i+1 < len(value) && value[i+1] == '$' {
			part.WriteByte('$')
			i += 2
			continue
		}
		if value[i] == '$' && i+1 < len(value) && value[i+1] == '{' {
			depth := 1
			end := i + 2
			for end < len(value) && depth > 0 {
				switch value[end] {
				case '{':
					depth++
				case '}':
					depth--
				}
				end++
			}
			if depth != 0 {
				return ResErr[Expr](NewParserError("unterminated '${' in string interpolation", tok.Loc))
			}

			interp.Parts = append(interp.Parts, part.String())
			part.Reset()

			inner := value[i+2 : end-1]
			lexer := NewLexer(tok.Loc.FileName, inner)
			tokens, lexRes := lexer.Tokenize()
			if lexRes.IsErr() {
				return ResErr[Expr](lexRes.Err)
			}
			sub := NewParser(tokens)
			expr := sub.expression()
			if expr.IsErr() {
				return expr
			}
			interp.Exprs = append(interp.Exprs, expr.Value)

			i = end
			continue
		}
		part.WriteByte(value[i])
		i++
	}
	interp.Parts = append(interp.Parts, part.String())

	if len(interp.Exprs) == 0 {
		return ResOk[Expr](&StringExpr{Token: tok, Value: interp.Parts[0]})
	}
	return ResOk[Expr](interp)
}

func unescapeDollar(s string) string {
	return strings.ReplaceAll(s, "\\$", "$")
}
