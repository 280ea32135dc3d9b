package compiler

import (
	"fmt"
	"strconv"

	"github.com/tliron/commonlog"
)

var parserLog = commonlog.GetLogger("mia.parser")

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for mia
// ---------------------------------------------------------------------------

// Parser parses mia source code into an AST. Parsing stops at the first
// error; Errors reports it.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	prevEnd   Position // end of the last consumed token
	errors    []*TypeError
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{
		lexer: NewLexer(input),
	}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a whole source file.
func Parse(file, source string) (*Program, error) {
	p := NewParser(source)
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		errs[0].File = file
		return nil, errs[0]
	}
	return prog, nil
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.prevEnd = p.curToken.End
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
	if p.curToken.Type == TokenError {
		p.errorf("%s", p.curToken.Literal)
	}
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the peek token is of the given type.
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// match advances if the current token has the given type.
func (p *Parser) match(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes a token of the given type, or records msg as an error.
func (p *Parser) expect(t TokenType, msg string) (Token, bool) {
	tok := p.curToken
	if p.curTokenIs(t) {
		p.nextToken()
		return tok, true
	}
	p.errorf("%s (got %s)", msg, p.curToken.Type)
	return tok, false
}

// errorf records a parse error at the current token. Only the first error is
// kept, the rest are consequences of it.
func (p *Parser) errorf(format string, args ...any) {
	if len(p.errors) > 0 {
		return
	}
	p.errors = append(p.errors, newError(KindSyntax, p.curToken.Pos, format, args...))
}

// failed reports whether an error has been recorded.
func (p *Parser) failed() bool {
	return len(p.errors) > 0
}

// Errors returns the recorded parse errors.
func (p *Parser) Errors() []*TypeError {
	return p.errors
}

func (p *Parser) spanFrom(start Position) Span {
	return Span{Start: start, End: p.prevEnd}
}

// ---------------------------------------------------------------------------
// Declarations and statements
// ---------------------------------------------------------------------------

// ParseProgram parses statements until EOF.
func (p *Parser) ParseProgram() *Program {
	prog := &Program{}
	for !p.curTokenIs(TokenEOF) && !p.failed() {
		stmt := p.parseDeclaration()
		if stmt == nil {
			break
		}
		parserLog.Debugf("parsed %T at %s", stmt, stmt.Span().Start)
		prog.Statements = append(prog.Statements, stmt)
	}
	return prog
}

func (p *Parser) parseDeclaration() Stmt {
	start := p.curToken.Pos
	switch p.curToken.Type {
	case TokenPub:
		p.nextToken()
		switch p.curToken.Type {
		case TokenLet:
			return p.parseLet(start, true)
		case TokenStruct:
			return p.parseStruct(start, true)
		case TokenFn:
			return p.parseFn(start, true)
		}
		p.errorf("the following declaration cannot be public")
		return nil
	case TokenLet:
		return p.parseLet(start, false)
	case TokenStruct:
		return p.parseStruct(start, false)
	case TokenFn:
		return p.parseFn(start, false)
	case TokenImport:
		return p.parseImport(start)
	case TokenReturn:
		return p.parseReturn(start)
	case TokenFor:
		return p.parseFor(start)
	case TokenLBrace:
		block := p.parseBlock()
		if block == nil {
			return nil
		}
		return block
	}
	return p.parseExprStmt(start)
}

// parseLet parses let name [= expr];
func (p *Parser) parseLet(start Position, public bool) Stmt {
	p.nextToken() // let
	name, ok := p.expect(TokenIdentifier, "expected an identifier after let")
	if !ok {
		return nil
	}
	stmt := &LetStmt{Public: public, Name: name.Literal, NamePos: name.Pos}
	if p.match(TokenEqual) {
		if stmt.Value = p.parseExpression(); stmt.Value == nil {
			return nil
		}
	}
	if _, ok := p.expect(TokenSemicolon, "expected ';' after variable declaration"); !ok {
		return nil
	}
	stmt.SpanVal = p.spanFrom(start)
	return stmt
}

// parseStruct parses struct Name { field: Type, ... }
func (p *Parser) parseStruct(start Position, public bool) Stmt {
	p.nextToken() // struct
	name, ok := p.expect(TokenTypeIdentifier, "expected a name after struct")
	if !ok {
		return nil
	}
	if _, ok := p.expect(TokenLBrace, "expected '{' after struct name"); !ok {
		return nil
	}
	decl := &StructDecl{Public: public, Name: name.Literal}
	for !p.curTokenIs(TokenRBrace) && !p.failed() {
		field, ok := p.expect(TokenIdentifier, "expected a field declaration")
		if !ok {
			return nil
		}
		if _, ok := p.expect(TokenColon, "expected ':' after field name"); !ok {
			return nil
		}
		typ := p.parseType()
		if typ == nil {
			return nil
		}
		decl.Fields = append(decl.Fields, FieldDecl{Name: field.Literal, Pos: field.Pos, Type: typ})
		if !p.match(TokenComma) {
			break
		}
	}
	if _, ok := p.expect(TokenRBrace, "expected '}' after struct definition"); !ok {
		return nil
	}
	decl.SpanVal = p.spanFrom(start)
	return decl
}

// parseType parses Name[<Type>][?].
func (p *Parser) parseType() *TypeExpr {
	start := p.curToken.Pos
	name, ok := p.expect(TokenTypeIdentifier, "expected a type name")
	if !ok {
		return nil
	}
	t := &TypeExpr{Name: name.Literal}
	if p.curTokenIs(TokenLAngle) {
		opening := p.curToken.Pos
		p.nextToken()
		if t.Param = p.parseType(); t.Param == nil {
			return nil
		}
		if _, ok := p.expect(TokenRAngle, fmt.Sprintf("expected '>' matching the '<' at %s", opening)); !ok {
			return nil
		}
	}
	t.Nullable = p.match(TokenQuestion)
	t.SpanVal = p.spanFrom(start)
	return t
}

// parseFn parses fn name(params) [: Type] { body }
func (p *Parser) parseFn(start Position, public bool) Stmt {
	p.nextToken() // fn
	name, ok := p.expect(TokenIdentifier, "expected function name")
	if !ok {
		return nil
	}
	if _, ok := p.expect(TokenLParen, "expected '(' after function name"); !ok {
		return nil
	}
	decl := &FnDecl{Public: public, Name: name.Literal, NamePos: name.Pos}
	for !p.curTokenIs(TokenRParen) && !p.failed() {
		param, ok := p.expect(TokenIdentifier, "expected parameter name")
		if !ok {
			return nil
		}
		decl.Params = append(decl.Params, Param{Name: param.Literal, Pos: param.Pos})
		if !p.match(TokenComma) {
			break
		}
	}
	if _, ok := p.expect(TokenRParen, "expected ')' after parameters"); !ok {
		return nil
	}
	if p.match(TokenColon) {
		if decl.ReturnType = p.parseType(); decl.ReturnType == nil {
			return nil
		}
	}
	body := p.parseBlock()
	if body == nil {
		return nil
	}
	decl.Body = body.Statements
	decl.SpanVal = p.spanFrom(start)
	return decl
}

// parseBlock parses { declarations }.
func (p *Parser) parseBlock() *BlockStmt {
	start := p.curToken.Pos
	if _, ok := p.expect(TokenLBrace, "expected '{'"); !ok {
		return nil
	}
	block := &BlockStmt{}
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) && !p.failed() {
		stmt := p.parseDeclaration()
		if stmt == nil {
			return nil
		}
		block.Statements = append(block.Statements, stmt)
	}
	if _, ok := p.expect(TokenRBrace, "expected '}' at the end of block"); !ok {
		return nil
	}
	block.SpanVal = p.spanFrom(start)
	return block
}

// parseImport parses import Name from 'module';
func (p *Parser) parseImport(start Position) Stmt {
	p.nextToken() // import
	name := p.curToken
	if !p.match(TokenIdentifier) && !p.match(TokenTypeIdentifier) {
		p.errorf("expected a variable or struct name to import")
		return nil
	}
	if _, ok := p.expect(TokenFrom, "expected 'from' after import"); !ok {
		return nil
	}
	module, ok := p.expect(TokenString, "expected module to import from")
	if !ok {
		return nil
	}
	if _, ok := p.expect(TokenSemicolon, "expected ';' after import"); !ok {
		return nil
	}
	return &ImportStmt{SpanVal: p.spanFrom(start), Name: name.Literal, Module: module.Literal}
}

// parseReturn parses return expr;
func (p *Parser) parseReturn(start Position) Stmt {
	p.nextToken() // return
	value := p.parseExpression()
	if value == nil {
		return nil
	}
	if _, ok := p.expect(TokenSemicolon, "expected ';' after return"); !ok {
		return nil
	}
	return &ReturnStmt{SpanVal: p.spanFrom(start), Value: value}
}

// parseFor parses for name in expr { body }
func (p *Parser) parseFor(start Position) Stmt {
	p.nextToken() // for
	v, ok := p.expect(TokenIdentifier, "expected loop variable after for")
	if !ok {
		return nil
	}
	if _, ok := p.expect(TokenIn, "expected 'in' after loop variable"); !ok {
		return nil
	}
	iterable := p.parseExpression()
	if iterable == nil {
		return nil
	}
	body := p.parseBlock()
	if body == nil {
		return nil
	}
	return &ForStmt{SpanVal: p.spanFrom(start), Var: v.Literal, VarPos: v.Pos, Iterable: iterable, Body: body}
}

func (p *Parser) parseExprStmt(start Position) Stmt {
	expr := p.parseExpression()
	if expr == nil {
		return nil
	}
	if _, ok := p.expect(TokenSemicolon, "expected ';' after expression"); !ok {
		return nil
	}
	return &ExprStmt{SpanVal: p.spanFrom(start), Expr: expr}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// ParseExpression parses a single expression.
func (p *Parser) ParseExpression() Expr {
	return p.parseExpression()
}

func (p *Parser) parseExpression() Expr {
	return p.parseTerm()
}

// parseTerm parses factor (('+'|'-') factor)*.
func (p *Parser) parseTerm() Expr {
	return p.parseBinary(p.parseFactor, TokenPlus, TokenMinus)
}

// parseFactor parses call (('*'|'/') call)*.
func (p *Parser) parseFactor() Expr {
	return p.parseBinary(p.parseCall, TokenStar, TokenSlash)
}

// parseBinary parses a left-associative chain of the given operators.
func (p *Parser) parseBinary(operand func() Expr, ops ...TokenType) Expr {
	start := p.curToken.Pos
	left := operand()
	for left != nil && isOneOf(p.curToken.Type, ops) {
		op := p.curToken
		p.nextToken()
		right := operand()
		if right == nil {
			return nil
		}
		left = &BinaryExpr{
			SpanVal: p.spanFrom(start),
			Left:    left,
			Op:      op.Type,
			OpPos:   op.Pos,
			Right:   right,
		}
	}
	return left
}

func isOneOf(t TokenType, set []TokenType) bool {
	for _, s := range set {
		if t == s {
			return true
		}
	}
	return false
}

// parseCall parses primary ('(' args ')')*.
func (p *Parser) parseCall() Expr {
	start := p.curToken.Pos
	expr := p.parsePrimary()
	for expr != nil && p.curTokenIs(TokenLParen) {
		p.nextToken()
		var args []Expr
		for !p.curTokenIs(TokenRParen) && !p.failed() {
			arg := p.parseExpression()
			if arg == nil {
				return nil
			}
			args = append(args, arg)
			if !p.curTokenIs(TokenRParen) {
				if _, ok := p.expect(TokenComma, "expected ',' between function arguments"); !ok {
					return nil
				}
			}
		}
		if _, ok := p.expect(TokenRParen, "expected ')' after function arguments"); !ok {
			return nil
		}
		expr = &CallExpr{SpanVal: p.spanFrom(start), Callee: expr, Args: args}
	}
	return expr
}

func (p *Parser) parsePrimary() Expr {
	tok := p.curToken
	switch tok.Type {
	case TokenNumber:
		p.nextToken()
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.errorf("invalid number %q", tok.Literal)
			return nil
		}
		return &NumberLiteral{SpanVal: p.spanFrom(tok.Pos), Value: v}

	case TokenString:
		p.nextToken()
		return &StringLiteral{SpanVal: p.spanFrom(tok.Pos), Value: tok.Literal}

	case TokenNil:
		p.nextToken()
		return &NilLiteral{SpanVal: p.spanFrom(tok.Pos)}

	case TokenIdentifier:
		p.nextToken()
		return &Variable{SpanVal: p.spanFrom(tok.Pos), Name: tok.Literal}

	case TokenTypeIdentifier:
		if p.peekTokenIs(TokenLBrace) {
			return p.parseStructLiteral()
		}
		// A bare struct name; the checker rejects it as a value.
		p.nextToken()
		return &Variable{SpanVal: p.spanFrom(tok.Pos), Name: tok.Literal}

	case TokenLParen:
		p.nextToken()
		inner := p.parseExpression()
		if inner == nil {
			return nil
		}
		if _, ok := p.expect(TokenRParen, "expected ')' after expression"); !ok {
			return nil
		}
		return &Grouping{SpanVal: p.spanFrom(tok.Pos), Inner: inner}

	case TokenLBracket:
		return p.parseArrayLiteral()
	}

	if !p.failed() {
		p.errorf("expected expression, got %s", tok.Type)
	}
	return nil
}

// parseArrayLiteral parses [e0, e1, ...] with an optional trailing comma.
func (p *Parser) parseArrayLiteral() Expr {
	start := p.curToken.Pos
	p.nextToken() // [
	arr := &ArrayLiteral{}
	for !p.curTokenIs(TokenRBracket) && !p.failed() {
		e := p.parseExpression()
		if e == nil {
			return nil
		}
		arr.Elements = append(arr.Elements, e)
		if !p.match(TokenComma) {
			break
		}
	}
	if _, ok := p.expect(TokenRBracket, "expected ']' after an array"); !ok {
		return nil
	}
	arr.SpanVal = p.spanFrom(start)
	return arr
}

// parseStructLiteral parses Name { field: expr, ... }.
func (p *Parser) parseStructLiteral() Expr {
	name := p.curToken
	p.nextToken() // Name
	p.nextToken() // {
	lit := &StructLiteral{Name: name.Literal}
	for !p.curTokenIs(TokenRBrace) && !p.failed() {
		field, ok := p.expect(TokenIdentifier, "expected a field name")
		if !ok {
			return nil
		}
		if _, dup := lit.Field(field.Literal); dup {
			p.errorf("field %s given twice", field.Literal)
			return nil
		}
		if _, ok := p.expect(TokenColon, "expected ':' after field name"); !ok {
			return nil
		}
		value := p.parseExpression()
		if value == nil {
			return nil
		}
		lit.Fields = append(lit.Fields, FieldInit{Name: field.Literal, Pos: field.Pos, Value: value})
		if !p.match(TokenComma) {
			break
		}
	}
	if _, ok := p.expect(TokenRBrace, "expected '}' after struct instantiation"); !ok {
		return nil
	}
	lit.SpanVal = p.spanFrom(name.Pos)
	return lit
}
