// Package parser turns a token stream into an AST using a Pratt
// (precedence-climbing) expression parser paired with a straightforward
// recursive-descent statement grammar.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"monke/ast"
	"monke/lexer"
	"monke/token"
)

// Precedence levels, lowest to highest binding power.
const (
	_ int = iota
	Lowest
	Equals      // == !=
	LessGreater // < >
	Sum         // + -
	Product     // * /
	Prefix      // -x !x
	Call        // fn(x)
	Index       // arr[x]
)

var precedences = map[token.Type]int{
	token.EQ:       Equals,
	token.NOT_EQ:   Equals,
	token.LT:       LessGreater,
	token.GT:       LessGreater,
	token.PLUS:     Sum,
	token.MINUS:    Sum,
	token.SLASH:    Product,
	token.ASTERISK: Product,
	token.LPAREN:   Call,
	token.LBRACKET: Index,
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// Parser builds an *ast.Program from a Lexer's token stream. It stops
// parsing at the first error, so Errors() never holds more than one
// message; the offending token is retained for callers that want to
// report its position.
type Parser struct {
	l *lexer.Lexer

	curToken  token.Token
	peekToken token.Token

	errors     []string
	errorToken token.Token
	failed     bool

	prefixParseFns map[token.Type]prefixParseFn
	infixParseFns  map[token.Type]infixParseFn
}

// New creates a Parser reading from l and primes curToken/peekToken.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l, errors: []string{}}

	p.prefixParseFns = map[token.Type]prefixParseFn{
		token.IDENT:    p.parseIdentifier,
		token.INT:      p.parseIntegerLiteral,
		token.FLOAT:    p.parseFloatLiteral,
		token.STRING:   p.parseStringLiteral,
		token.TRUE:     p.parseBooleanLiteral,
		token.FALSE:    p.parseBooleanLiteral,
		token.NULL:     p.parseNullLiteral,
		token.NOTHING:  p.parseNullLiteral,
		token.BANG:     p.parsePrefixExpression,
		token.MINUS:    p.parsePrefixExpression,
		token.LPAREN:   p.parseGroupedExpression,
		token.LBRACKET: p.parseArrayLiteral,
		token.LBRACE:   p.parseTableLiteral,
		token.IF:       p.parseIfExpression,
		token.FUNCTION: p.parseFunctionLiteral,
		token.REQUIRE:  p.parseRequireExpression,
	}

	p.infixParseFns = map[token.Type]infixParseFn{
		token.PLUS:     p.parseInfixExpression,
		token.MINUS:    p.parseInfixExpression,
		token.SLASH:    p.parseInfixExpression,
		token.ASTERISK: p.parseInfixExpression,
		token.EQ:       p.parseInfixExpression,
		token.NOT_EQ:   p.parseInfixExpression,
		token.LT:       p.parseInfixExpression,
		token.GT:       p.parseInfixExpression,
		token.LPAREN:   p.parseCallExpression,
		token.LBRACKET: p.parseIndexExpression,
	}

	p.nextToken()
	p.nextToken()
	return p
}

// Errors returns the parse errors accumulated so far (at most one,
// since the parser halts on its first error).
func (p *Parser) Errors() []string { return p.errors }

// ErrorToken returns the token the first recorded error points at, for
// callers that want to report its source position. Zero value if no
// error has occurred yet.
func (p *Parser) ErrorToken() token.Token { return p.errorToken }

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) addError(tok token.Token, format string, args ...any) {
	if p.failed {
		return
	}
	p.failed = true
	p.errorToken = tok
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

// ParseProgram parses the whole token stream into a Program. Parsing
// stops as soon as an error is recorded; whatever statements were
// already built are still returned.
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{Statements: []ast.Statement{}}

	for p.curToken.Type != token.EOF && !p.failed {
		stmt := p.parseStatement()
		if stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		if p.failed {
			break
		}
		p.nextToken()
	}
	return program
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case token.LET:
		return p.parseLetStatement()
	case token.RETURN:
		return p.parseReturnStatement()
	case token.FOR, token.WHILE:
		return p.parseForStatement()
	case token.BREAK:
		return p.parseBreakStatement()
	case token.CONTINUE:
		return p.parseContinueStatement()
	default:
		return p.parseExpressionStatement()
	}
}

// parseLetStatement parses `let a = 1, b, c = f()`, requiring at least
// one name and allowing each to have its own optional initializer.
func (p *Parser) parseLetStatement() *ast.LetStatement {
	stmt := &ast.LetStatement{Token: p.curToken}

	for {
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		name := &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
		stmt.Names = append(stmt.Names, name)

		if p.peekTokenIs(token.ASSIGN) {
			p.nextToken()
			p.nextToken()
			value := p.parseExpression(Lowest)
			if fl, ok := value.(*ast.FunctionLiteral); ok && fl.Name == "" {
				fl.Name = name.Value
			}
			stmt.Initializers = append(stmt.Initializers, value)
		} else {
			stmt.Initializers = append(stmt.Initializers, nil)
		}

		if !p.peekTokenIs(token.COMMA) {
			break
		}
		p.nextToken()
	}

	p.consumeStatementEnd()
	return stmt
}

func (p *Parser) parseReturnStatement() *ast.ReturnStatement {
	stmt := &ast.ReturnStatement{Token: p.curToken}
	p.nextToken()

	if p.curToken.Type == token.SEMICOLON || p.curToken.Type == token.RBRACE || p.curToken.Type == token.EOF {
		p.consumeStatementEnd()
		return stmt
	}

	stmt.ReturnValue = p.parseExpression(Lowest)
	p.consumeStatementEnd()
	return stmt
}

// parseForStatement parses both `for (init; cond; update) body` and
// `while (cond) body`, the latter represented as a ForStatement with a
// nil Init and Update.
func (p *Parser) parseForStatement() *ast.ForStatement {
	stmt := &ast.ForStatement{Token: p.curToken}
	isWhile := p.curToken.Type == token.WHILE

	if !p.expectPeek(token.LPAREN) {
		return nil
	}

	if isWhile {
		p.nextToken()
		stmt.Condition = p.parseExpression(Lowest)
		if !p.expectPeek(token.RPAREN) {
			return nil
		}
	} else {
		p.nextToken()
		switch {
		case p.curToken.Type == token.SEMICOLON:
			// no init clause; curToken stays on this semicolon
		case p.curToken.Type == token.LET:
			stmt.Init = p.parseLetStatement() // leaves curToken on the ';'
		default:
			stmt.Init = p.parseExpressionStatement() // leaves curToken on the ';'
		}

		p.nextToken() // past the init-terminating ';'
		if p.curToken.Type != token.SEMICOLON {
			stmt.Condition = p.parseExpression(Lowest)
			if !p.expectPeek(token.SEMICOLON) {
				return nil
			}
		}

		p.nextToken() // past the condition-terminating ';'
		if p.curToken.Type != token.RPAREN {
			tok := p.curToken
			updateExpr := p.parseExpression(Lowest)
			stmt.Update = &ast.ExpressionStatement{Token: tok, Expression: updateExpr}
			if !p.expectPeek(token.RPAREN) {
				return nil
			}
		}
	}

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlockStatement()
	return stmt
}

func (p *Parser) parseBreakStatement() *ast.BreakStatement {
	stmt := &ast.BreakStatement{Token: p.curToken}
	p.consumeStatementEnd()
	return stmt
}

func (p *Parser) parseContinueStatement() *ast.ContinueStatement {
	stmt := &ast.ContinueStatement{Token: p.curToken}
	p.consumeStatementEnd()
	return stmt
}

func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	block := &ast.BlockStatement{Token: p.curToken}
	p.nextToken()

	for p.curToken.Type != token.RBRACE && p.curToken.Type != token.EOF && !p.failed {
		stmt := p.parseStatement()
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		if p.failed {
			return block
		}
		p.nextToken()
	}
	return block
}

func (p *Parser) parseExpressionStatement() *ast.ExpressionStatement {
	stmt := &ast.ExpressionStatement{Token: p.curToken}
	stmt.Expression = p.parseExpression(Lowest)
	p.consumeStatementEnd()
	return stmt
}

// consumeStatementEnd enforces that a statement ends at a newline, a
// semicolon, EOF, or a closing ) ] } that the caller will consume next;
// it reports an error otherwise. The lexer discards newlines, so a
// "new line" is detected by comparing the line of the token just
// consumed against the line of the upcoming token.
func (p *Parser) consumeStatementEnd() {
	if p.failed {
		return
	}
	endLine := p.curToken.Line
	if p.peekToken.Type == token.SEMICOLON {
		p.nextToken()
		return
	}
	switch p.peekToken.Type {
	case token.EOF, token.RPAREN, token.RBRACKET, token.RBRACE:
		return
	}
	if p.peekToken.Line != endLine {
		return
	}
	p.addError(p.peekToken, "this statement must be on a new line or come after a semicolon")
}

// parseExpression is the Pratt-parser entry point: it looks up curToken's
// prefix handler, then repeatedly folds in infix operators while the
// upcoming operator binds tighter than precedence.
func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.addError(p.curToken, "no prefix parse function for %s found", p.curToken.Type)
		return nil
	}
	leftExp := prefix()

	for !p.peekTokenIs(token.SEMICOLON) && precedence < p.peekPrecedence() && !p.failed {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}
		p.nextToken()
		leftExp = infix(leftExp)
	}

	if precedence == Lowest && isAssignTarget(leftExp) {
		if p.peekTokenIs(token.ASSIGN) {
			return p.parseAssignExpression(leftExp)
		}
		if isOperatorAssign(p.peekToken.Type) {
			return p.parseOperatorAssignExpression(leftExp)
		}
	}
	return leftExp
}

func isAssignTarget(expr ast.Expression) bool {
	switch expr.(type) {
	case *ast.Identifier, *ast.IndexExpression:
		return true
	default:
		return false
	}
}

func isOperatorAssign(t token.Type) bool {
	switch t {
	case token.PLUS_ASSIGN, token.MINUS_ASSIGN, token.STAR_ASSIGN, token.SLASH_ASSIGN:
		return true
	default:
		return false
	}
}

func (p *Parser) parseAssignExpression(target ast.Expression) ast.Expression {
	p.nextToken() // consume '='
	tok := p.curToken
	p.nextToken()
	value := p.parseExpression(Lowest)
	return &ast.AssignExpression{Token: tok, Target: target, Value: value}
}

var operatorAssignSymbol = map[token.Type]string{
	token.PLUS_ASSIGN:  "+",
	token.MINUS_ASSIGN: "-",
	token.STAR_ASSIGN:  "*",
	token.SLASH_ASSIGN: "/",
}

func (p *Parser) parseOperatorAssignExpression(target ast.Expression) ast.Expression {
	p.nextToken() // consume 'op='
	tok := p.curToken
	operator := operatorAssignSymbol[tok.Type]
	p.nextToken()
	value := p.parseExpression(Lowest)
	return &ast.OperatorAssignExpression{Token: tok, Target: target, Operator: operator, Value: value}
}

func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
}

// parseIntegerLiteral normalizes decimal, 0x-hex and 0b-binary source
// forms to a single int64 value; the lexer has already rejected a
// literal that mixes a '.' into a hex or binary form.
func (p *Parser) parseIntegerLiteral() ast.Expression {
	lit := &ast.IntegerLiteral{Token: p.curToken}

	text := p.curToken.Literal
	var value int64
	var err error
	switch {
	case strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X"):
		value, err = strconv.ParseInt(text[2:], 16, 64)
	case strings.HasPrefix(text, "0b") || strings.HasPrefix(text, "0B"):
		value, err = strconv.ParseInt(text[2:], 2, 64)
	default:
		value, err = strconv.ParseInt(text, 10, 64)
	}
	if err != nil {
		p.addError(p.curToken, "could not parse %q as integer", text)
		return nil
	}
	lit.Value = value
	return lit
}

func (p *Parser) parseFloatLiteral() ast.Expression {
	lit := &ast.FloatLiteral{Token: p.curToken}
	value, err := strconv.ParseFloat(p.curToken.Literal, 64)
	if err != nil {
		p.addError(p.curToken, "could not parse %q as float", p.curToken.Literal)
		return nil
	}
	lit.Value = value
	return lit
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseBooleanLiteral() ast.Expression {
	return &ast.BooleanLiteral{Token: p.curToken, Value: p.curToken.Type == token.TRUE}
}

func (p *Parser) parseNullLiteral() ast.Expression {
	return &ast.NullLiteral{Token: p.curToken}
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	expr := &ast.PrefixExpression{Token: p.curToken, Operator: p.curToken.Literal}
	p.nextToken()
	expr.Right = p.parseExpression(Prefix)
	return expr
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expr := &ast.InfixExpression{Token: p.curToken, Operator: p.curToken.Literal, Left: left}
	precedence := p.curPrecedence()
	p.nextToken()
	expr.Right = p.parseExpression(precedence)
	return expr
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nextToken()
	expr := p.parseExpression(Lowest)
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return expr
}

func (p *Parser) parseArrayLiteral() ast.Expression {
	arr := &ast.ArrayLiteral{Token: p.curToken}
	arr.Elements = p.parseExpressionList(token.RBRACKET)
	return arr
}

// parseTableLiteral parses `{k: v, ...}` and also the shorthand entry
// `{x}`, expanded to the key/value pair `"x": x`.
func (p *Parser) parseTableLiteral() ast.Expression {
	table := &ast.TableLiteral{Token: p.curToken}

	if p.peekTokenIs(token.RBRACE) {
		p.nextToken()
		return table
	}

	p.nextToken()
	k, v := p.parseTableEntry()
	table.Keys = append(table.Keys, k)
	table.Values = append(table.Values, v)

	for p.peekTokenIs(token.COMMA) && !p.failed {
		p.nextToken()
		p.nextToken()
		k, v := p.parseTableEntry()
		table.Keys = append(table.Keys, k)
		table.Values = append(table.Values, v)
	}

	if !p.expectPeek(token.RBRACE) {
		return nil
	}
	return table
}

func (p *Parser) parseTableEntry() (ast.Expression, ast.Expression) {
	key := p.parseExpression(Lowest)

	if p.peekTokenIs(token.COLON) {
		p.nextToken()
		p.nextToken()
		value := p.parseExpression(Lowest)
		return key, value
	}

	ident, ok := key.(*ast.Identifier)
	if !ok {
		p.addError(p.curToken, "table shorthand entry must be an identifier, got %s", key.String())
		return key, key
	}
	return &ast.StringLiteral{Token: ident.Token, Value: ident.Value}, ident
}

func (p *Parser) parseIfExpression() ast.Expression {
	expr := &ast.IfExpression{Token: p.curToken}

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	expr.Condition = p.parseExpression(Lowest)
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	expr.Consequence = p.parseBlockStatement()

	if p.peekTokenIs(token.ELSE) {
		p.nextToken()
		if !p.expectPeek(token.LBRACE) {
			return nil
		}
		expr.Alternative = p.parseBlockStatement()
	}
	return expr
}

func (p *Parser) parseFunctionLiteral() ast.Expression {
	lit := &ast.FunctionLiteral{Token: p.curToken}

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	lit.Parameters = p.parseFunctionParameters()

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	lit.Body = p.parseBlockStatement()
	return lit
}

func (p *Parser) parseFunctionParameters() []*ast.Identifier {
	var identifiers []*ast.Identifier

	if p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		return identifiers
	}

	p.nextToken()
	identifiers = append(identifiers, &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal})

	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		identifiers = append(identifiers, &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal})
	}

	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return identifiers
}

func (p *Parser) parseCallExpression(function ast.Expression) ast.Expression {
	expr := &ast.CallExpression{Token: p.curToken, Function: function}
	expr.Arguments = p.parseExpressionList(token.RPAREN)
	return expr
}

func (p *Parser) parseRequireExpression() ast.Expression {
	expr := &ast.RequireExpression{Token: p.curToken}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	expr.Arguments = p.parseExpressionList(token.RPAREN)
	return expr
}

func (p *Parser) parseIndexExpression(left ast.Expression) ast.Expression {
	expr := &ast.IndexExpression{Token: p.curToken, Left: left}
	p.nextToken()
	expr.Index = p.parseExpression(Lowest)
	if !p.expectPeek(token.RBRACKET) {
		return nil
	}
	return expr
}

func (p *Parser) parseExpressionList(end token.Type) []ast.Expression {
	var list []ast.Expression

	if p.peekTokenIs(end) {
		p.nextToken()
		return list
	}

	p.nextToken()
	list = append(list, p.parseExpression(Lowest))

	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		list = append(list, p.parseExpression(Lowest))
	}

	if !p.expectPeek(end) {
		return nil
	}
	return list
}

func (p *Parser) peekTokenIs(t token.Type) bool { return p.peekToken.Type == t }

func (p *Parser) expectPeek(t token.Type) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.addError(p.peekToken, "expected next token to be %s, got %s instead", t, p.peekToken.Type)
	return false
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return Lowest
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return Lowest
}
