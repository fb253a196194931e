// Package parser implements the recursive-descent parser that turns a
// token stream into an ast.Program.
package parser

import (
	"fmt"
	"io"

	"github.com/AndyFerns/determa/internal/ast"
	"github.com/AndyFerns/determa/internal/lexer"
	"github.com/AndyFerns/determa/internal/token"
)

// Parser consumes tokens from an embedded lexer with one-token lookahead.
type Parser struct {
	lex  *lexer.Lexer
	cur  token.Token
	peek token.Token

	errors   []string
	hadError bool

	// Trace, when non-nil, receives a PDA-style push/pop indent trace of
	// grammar function entry/exit. Diagnostic only; no semantic effect.
	Trace io.Writer
	depth int
}

// New creates a parser over lex, priming the one-token lookahead.
func New(lex *lexer.Lexer) *Parser {
	p := &Parser{lex: lex}
	p.advance()
	p.advance()
	return p
}

// Parse runs the parser to completion. On any error the AST is discarded
// and nil is returned; Errors() reports every syntax error found.
func Parse(source string) (*ast.Program, []string) {
	p := New(lexer.New(source))
	prog := p.ParseProgram()
	if p.hadError {
		return nil, p.errors
	}
	return prog, p.errors
}

// Errors returns every syntax error collected so far.
func (p *Parser) Errors() []string { return p.errors }

// ParseProgram parses a full source file or REPL entry. It keeps parsing
// declarations after an error (panic-mode recovery) so multiple syntax
// errors can be reported in one pass.
func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{}
	for p.cur.Kind != token.EOF {
		stmt := p.declaration()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		}
	}
	return prog
}

func (p *Parser) advance() {
	p.cur = p.peek
	p.peek = p.lex.NextToken()
	if p.peek.Kind == token.Illegal {
		p.errorAt(p.peek, p.peek.Message)
	}
}

func (p *Parser) check(k token.Kind) bool { return p.cur.Kind == k }

func (p *Parser) match(k token.Kind) bool {
	if !p.check(k) {
		return false
	}
	p.advance()
	return true
}

// expect consumes the current token if it matches k, else reports msg and
// triggers panic-mode recovery.
func (p *Parser) expect(k token.Kind, msg string) token.Token {
	if p.check(k) {
		tok := p.cur
		p.advance()
		return tok
	}
	p.errorAt(p.cur, msg)
	panic(p.cur)
}

func (p *Parser) errorAt(tok token.Token, msg string) {
	p.hadError = true
	where := fmt.Sprintf("'%s'", tok.Lexeme)
	if tok.Kind == token.EOF {
		where = "end"
	}
	p.errors = append(p.errors, fmt.Sprintf("[Line %d] Error at %s: %s", tok.Line, where, msg))
}

func (p *Parser) enter(name string) {
	if p.Trace == nil {
		return
	}
	fmt.Fprintf(p.Trace, "%*sENTER %s\n", p.depth*2, "", name)
	p.depth++
}

func (p *Parser) leave(name string) {
	if p.Trace == nil {
		return
	}
	p.depth--
	fmt.Fprintf(p.Trace, "%*sLEAVE %s\n", p.depth*2, "", name)
}

// synchronize implements panic-mode recovery: skip tokens until the next
// ';' (consumed) or EOF, then resume parsing declarations.
func (p *Parser) synchronize() {
	for p.cur.Kind != token.EOF {
		if p.cur.Kind == token.Semicolon {
			p.advance()
			return
		}
		p.advance()
	}
}

// declaration := 'func' func_decl | 'var' var_decl | statement
func (p *Parser) declaration() ast.Statement {
	defer func() {
		if r := recover(); r != nil {
			p.synchronize()
		}
	}()

	switch {
	case p.check(token.Func):
		p.advance()
		return p.funcDecl()
	case p.check(token.Var):
		p.advance()
		return p.varDecl()
	default:
		return p.statement()
	}
}

// func_decl := IDENT '(' params? ')' (':' type)? block
func (p *Parser) funcDecl() ast.Statement {
	p.enter("funcDecl")
	defer p.leave("funcDecl")

	name := p.expect(token.Ident, "Expect function name.")
	p.expect(token.LParen, "Expect '(' after function name.")
	var params []token.Token
	if !p.check(token.RParen) {
		params = p.paramList()
	}
	p.expect(token.RParen, "Expect ')' after parameters.")

	var retType *token.Token
	if p.match(token.Colon) {
		t := p.typeToken()
		retType = &t
	}

	p.expect(token.LBrace, "Expect '{' before function body.")
	body := p.block()

	return &ast.FuncDecl{Name: name, Params: params, ReturnType: retType, Body: body}
}

// params := IDENT (',' IDENT)*
func (p *Parser) paramList() []token.Token {
	var params []token.Token
	params = append(params, p.expect(token.Ident, "Expect parameter name."))
	for p.match(token.Comma) {
		params = append(params, p.expect(token.Ident, "Expect parameter name."))
	}
	return params
}

// type := 'int' | 'bool' | 'str' | 'void'
func (p *Parser) typeToken() token.Token {
	switch p.cur.Kind {
	case token.KwInt, token.KwBool, token.KwStr, token.KwVoid:
		t := p.cur
		p.advance()
		return t
	default:
		p.errorAt(p.cur, "Expect type.")
		return p.cur
	}
}

// var_decl := IDENT ('=' expression)? ';'
func (p *Parser) varDecl() ast.Statement {
	p.enter("varDecl")
	defer p.leave("varDecl")

	name := p.expect(token.Ident, "Expect variable name.")
	var init ast.Expression
	if p.match(token.Assign) {
		init = p.expression()
	}
	p.expect(token.Semicolon, "Expect ';' after variable declaration.")
	return &ast.VarDecl{Name: name, Initializer: init}
}

// statement := 'if' if_stmt | 'while' while_stmt
//            | '{' block    | 'return' ret_stmt
//            | 'print' expression ';'
//            | expression ';'
func (p *Parser) statement() ast.Statement {
	p.enter("statement")
	defer p.leave("statement")

	switch {
	case p.check(token.If):
		p.advance()
		return p.ifStmt()
	case p.check(token.While):
		p.advance()
		return p.whileStmt()
	case p.check(token.LBrace):
		line := p.cur.Line
		p.advance()
		blk := p.block()
		blk.LineNo = line
		return blk
	case p.check(token.Return):
		p.advance()
		return p.returnStmt()
	case p.check(token.Print):
		line := p.cur.Line
		p.advance()
		expr := p.expression()
		p.expect(token.Semicolon, "Expect ';' after value.")
		return &ast.PrintStmt{LineNo: line, Expression: expr}
	default:
		line := p.cur.Line
		expr := p.expression()
		p.expect(token.Semicolon, "Expect ';' after expression.")
		stmt := &ast.ExprStmt{Expression: expr}
		_ = line
		return stmt
	}
}

// block := declaration* '}'  (opening '{' already consumed by the caller)
func (p *Parser) block() *ast.Block {
	p.enter("block")
	defer p.leave("block")

	blk := &ast.Block{LineNo: p.cur.Line}
	for !p.check(token.RBrace) && !p.check(token.EOF) {
		stmt := p.declaration()
		if stmt != nil {
			blk.Statements = append(blk.Statements, stmt)
		}
	}
	p.expect(token.RBrace, "Expect '}' after block.")
	return blk
}

// if_stmt := expression block ('elif' if_stmt | 'else' block)?
func (p *Parser) ifStmt() ast.Statement {
	p.enter("ifStmt")
	defer p.leave("ifStmt")

	line := p.cur.Line
	cond := p.expression()
	p.expect(token.LBrace, "Expect '{' after if condition.")
	thenBlk := p.block()

	node := &ast.If{LineNo: line, Condition: cond, Then: thenBlk}

	switch {
	case p.match(token.Elif):
		node.Else = p.ifStmt()
	case p.match(token.Else):
		p.expect(token.LBrace, "Expect '{' after else.")
		node.Else = p.block()
	}
	return node
}

// while_stmt := expression block
func (p *Parser) whileStmt() ast.Statement {
	p.enter("whileStmt")
	defer p.leave("whileStmt")

	line := p.cur.Line
	cond := p.expression()
	p.expect(token.LBrace, "Expect '{' after while condition.")
	body := p.block()
	return &ast.While{LineNo: line, Condition: cond, Body: body}
}

// ret_stmt := expression? ';'
func (p *Parser) returnStmt() ast.Statement {
	p.enter("returnStmt")
	defer p.leave("returnStmt")

	line := p.cur.Line
	var val ast.Expression
	if !p.check(token.Semicolon) {
		val = p.expression()
	}
	p.expect(token.Semicolon, "Expect ';' after return value.")
	return &ast.Return{LineNo: line, Value: val}
}

// expression := assignment
func (p *Parser) expression() ast.Expression {
	return p.assignment()
}

var compoundOps = map[token.Kind]token.Kind{
	token.PlusAssign:    token.Plus,
	token.MinusAssign:   token.Minus,
	token.StarAssign:    token.Star,
	token.SlashAssign:   token.Slash,
	token.PercentAssign: token.Percent,
}

// assignment := equality ( ('='|'+='|'-='|'*='|'/='|'%=') assignment )?
func (p *Parser) assignment() ast.Expression {
	p.enter("assignment")
	defer p.leave("assignment")

	left := p.equality()

	if p.check(token.Assign) {
		op := p.cur
		p.advance()
		access, ok := left.(*ast.VarAccess)
		if !ok {
			p.errorAt(op, "Invalid assignment target.")
			return left
		}
		value := p.assignment()
		return &ast.VarAssign{Name: access.Name, Value: value}
	}

	if base, isCompound := compoundOps[p.cur.Kind]; isCompound {
		op := p.cur
		p.advance()
		access, ok := left.(*ast.VarAccess)
		if !ok {
			p.errorAt(op, "Invalid assignment target.")
			return left
		}
		value := p.assignment()
		// Desugar x op= e into VarAssign(x, BinaryOp(op, VarAccess(x), e)).
		// The read-side VarAccess uses a cloned identifier token so the
		// read target and the assignment target are distinct nodes.
		clone := access.Name
		binOp := token.Token{Kind: base, Lexeme: base.String(), Line: op.Line}
		read := &ast.VarAccess{Name: clone}
		return &ast.VarAssign{Name: access.Name, Value: &ast.BinaryOp{Operator: binOp, Left: read, Right: value}}
	}

	return left
}

// equality := comparison ( ('=='|'!=') comparison )*
func (p *Parser) equality() ast.Expression {
	left := p.comparison()
	for p.check(token.Equal) || p.check(token.NotEqual) {
		op := p.cur
		p.advance()
		right := p.comparison()
		left = &ast.BinaryOp{Operator: op, Left: left, Right: right}
	}
	return left
}

// comparison := term ( ('<'|'<='|'>'|'>=') term )*
func (p *Parser) comparison() ast.Expression {
	left := p.term()
	for p.check(token.Less) || p.check(token.LessEqual) || p.check(token.Greater) || p.check(token.GreaterEqual) {
		op := p.cur
		p.advance()
		right := p.term()
		left = &ast.BinaryOp{Operator: op, Left: left, Right: right}
	}
	return left
}

// term := factor ( ('+'|'-') factor )*
func (p *Parser) term() ast.Expression {
	left := p.factor()
	for p.check(token.Plus) || p.check(token.Minus) {
		op := p.cur
		p.advance()
		right := p.factor()
		left = &ast.BinaryOp{Operator: op, Left: left, Right: right}
	}
	return left
}

// factor := unary ( ('*'|'/'|'%') unary )*
func (p *Parser) factor() ast.Expression {
	left := p.unary()
	for p.check(token.Star) || p.check(token.Slash) || p.check(token.Percent) {
		op := p.cur
		p.advance()
		right := p.unary()
		left = &ast.BinaryOp{Operator: op, Left: left, Right: right}
	}
	return left
}

// unary := ('-'|'!') unary | primary
func (p *Parser) unary() ast.Expression {
	if p.check(token.Minus) || p.check(token.Bang) {
		op := p.cur
		p.advance()
		operand := p.unary()
		return &ast.UnaryOp{Operator: op, Operand: operand}
	}
	return p.primary()
}

// primary := INT | STRING | 'true' | 'false'
//          | IDENT ( '(' args? ')' )?
//          | '(' expression ')'
func (p *Parser) primary() ast.Expression {
	tok := p.cur
	switch tok.Kind {
	case token.Int:
		p.advance()
		return &ast.IntLiteral{LineNo: tok.Line, Value: parseInt32(tok.Lexeme)}
	case token.String:
		p.advance()
		return &ast.StringLiteral{LineNo: tok.Line, Value: tok.Lexeme}
	case token.True:
		p.advance()
		return &ast.BoolLiteral{LineNo: tok.Line, Value: true}
	case token.False:
		p.advance()
		return &ast.BoolLiteral{LineNo: tok.Line, Value: false}
	case token.Ident:
		p.advance()
		if p.match(token.LParen) {
			var args []ast.Expression
			if !p.check(token.RParen) {
				args = p.argList()
			}
			p.expect(token.RParen, "Expect ')' after arguments.")
			return &ast.Call{Callee: tok, Arguments: args}
		}
		return &ast.VarAccess{Name: tok}
	case token.LParen:
		p.advance()
		expr := p.expression()
		p.expect(token.RParen, "Expect ')' after expression.")
		return expr
	default:
		p.errorAt(tok, "Expect expression.")
		panic(tok)
	}
}

// args := expression (',' expression)*
func (p *Parser) argList() []ast.Expression {
	var args []ast.Expression
	args = append(args, p.expression())
	for p.match(token.Comma) {
		args = append(args, p.expression())
	}
	return args
}

func parseInt32(lexeme string) int32 {
	var v int64
	for i := 0; i < len(lexeme); i++ {
		v = v*10 + int64(lexeme[i]-'0')
	}
	return int32(v)
}
