// Package typecheck implements the single-pass static type checker: a
// switch-on-node-kind AST walk that validates scope, arity, and operator
// typing rules, collecting errors rather than aborting on the first one.
package typecheck

import (
	"fmt"

	"github.com/AndyFerns/determa/internal/ast"
	"github.com/AndyFerns/determa/internal/symbols"
	"github.com/AndyFerns/determa/internal/token"
	"github.com/AndyFerns/determa/internal/types"
)

// Checker walks an AST against a checker-local copy of the symbol table.
type Checker struct {
	table    *symbols.Table
	errors   []string
	hadError bool
	funcs    []types.DataType // stack of enclosing functions' declared return types
}

// Check type-checks prog against a clone of table. On success it returns
// the updated table (which the caller must commit back to persistent
// state) and a nil error slice. On failure the original table is
// untouched and every collected error is returned.
func Check(table *symbols.Table, prog *ast.Program) (*symbols.Table, []string) {
	c := &Checker{table: table.Clone()}
	for _, stmt := range prog.Statements {
		c.checkStmt(stmt)
	}
	if c.hadError {
		return nil, c.errors
	}
	return c.table, nil
}

func (c *Checker) errorf(line int, format string, args ...any) {
	c.hadError = true
	c.errors = append(c.errors, fmt.Sprintf("[Line %d] Error: %s", line, fmt.Sprintf(format, args...)))
}

// checkStmt type-checks one statement and updates the symbol table as a
// side effect (VarDecl, FuncDecl).
func (c *Checker) checkStmt(stmt ast.Statement) {
	switch node := stmt.(type) {
	case *ast.VarDecl:
		if node.Initializer == nil {
			c.errorf(node.Line(), "Variable declaration requires an initializer.")
			return
		}
		t := c.checkExpr(node.Initializer)
		if !c.table.Define(symbols.Symbol{Name: node.Name.Lexeme, Type: t}) {
			c.errorf(node.Line(), "Variable '%s' is already declared in this scope.", node.Name.Lexeme)
		}

	case *ast.PrintStmt:
		t := c.checkExpr(node.Expression)
		if t == types.Void {
			c.errorf(node.Line(), "Cannot print a void expression.")
		}

	case *ast.ExprStmt:
		c.checkExpr(node.Expression)

	case *ast.Block:
		c.table.EnterScope()
		for _, s := range node.Statements {
			c.checkStmt(s)
		}
		c.table.ExitScope()

	case *ast.If:
		condType := c.checkExpr(node.Condition)
		if condType != types.Bool && condType != types.Error {
			c.errorf(node.Line(), "If condition must be a boolean.")
		}
		c.checkStmt(node.Then)
		if node.Else != nil {
			c.checkStmt(node.Else)
		}

	case *ast.While:
		condType := c.checkExpr(node.Condition)
		if condType != types.Bool && condType != types.Error {
			c.errorf(node.Line(), "While condition must be a boolean.")
		}
		c.checkStmt(node.Body)

	case *ast.FuncDecl:
		c.checkFuncDecl(node)

	case *ast.Return:
		c.checkReturn(node)

	default:
		c.errorf(stmt.Line(), "Unsupported statement.")
	}
}

func (c *Checker) checkFuncDecl(node *ast.FuncDecl) {
	paramTypes := make([]types.DataType, len(node.Params))
	for i := range paramTypes {
		paramTypes[i] = types.Int
	}
	retType := types.Void
	if node.ReturnType != nil {
		retType = typeFromToken(*node.ReturnType)
	}

	if !c.table.Define(symbols.Symbol{Name: node.Name.Lexeme, Type: retType, IsFunc: true, ParamTypes: paramTypes}) {
		c.errorf(node.Line(), "Function '%s' is already declared in this scope.", node.Name.Lexeme)
	}

	c.table.EnterScope()
	for _, p := range node.Params {
		c.table.Define(symbols.Symbol{Name: p.Lexeme, Type: types.Int})
	}
	c.funcs = append(c.funcs, retType)
	for _, s := range node.Body.Statements {
		c.checkStmt(s)
	}
	c.funcs = c.funcs[:len(c.funcs)-1]
	if retType != types.Void && !blockGuaranteesReturn(node.Body) {
		c.errorf(node.Line(), "Missing return statement in function '%s'.", node.Name.Lexeme)
	}
	c.table.ExitScope()
}

func (c *Checker) checkReturn(node *ast.Return) {
	var valType types.DataType = types.Void
	if node.Value != nil {
		valType = c.checkExpr(node.Value)
	}
	if len(c.funcs) == 0 {
		// A return at the top level returns from the implicit script
		// function, whose type is not statically constrained.
		return
	}
	want := c.funcs[len(c.funcs)-1]
	if valType == types.Error {
		return
	}
	switch {
	case want == types.Void && node.Value != nil:
		c.errorf(node.Line(), "Cannot return a value from a void function.")
	case want != types.Void && node.Value == nil:
		c.errorf(node.Line(), "Missing return value.")
	case valType != want:
		c.errorf(node.Line(), "Cannot return %s from a function declared to return %s.", valType, want)
	}
}

// checkExpr type-checks an expression and returns its static type.
// types.Error silently propagates: once a subexpression has already
// produced an error, no further error is reported about it.
func (c *Checker) checkExpr(expr ast.Expression) types.DataType {
	switch node := expr.(type) {
	case *ast.IntLiteral:
		return types.Int
	case *ast.StringLiteral:
		return types.String
	case *ast.BoolLiteral:
		return types.Bool

	case *ast.VarAccess:
		sym, ok := c.table.Lookup(node.Name.Lexeme)
		if !ok {
			c.errorf(node.Line(), "Undefined variable '%s'.", node.Name.Lexeme)
			return types.Error
		}
		return sym.Type

	case *ast.UnaryOp:
		operand := c.checkExpr(node.Operand)
		if operand == types.Error {
			return types.Error
		}
		switch node.Operator.Kind {
		case token.Minus:
			if operand != types.Int {
				c.errorf(node.Line(), "Operand of unary '-' must be an integer.")
				return types.Error
			}
			return types.Int
		case token.Bang:
			if operand != types.Bool {
				c.errorf(node.Line(), "Operand of '!' must be a boolean.")
				return types.Error
			}
			return types.Bool
		}
		return types.Error

	case *ast.BinaryOp:
		return c.checkBinaryOp(node)

	case *ast.VarAssign:
		sym, ok := c.table.Lookup(node.Name.Lexeme)
		valType := c.checkExpr(node.Value)
		if !ok {
			c.errorf(node.Line(), "Undefined variable '%s'.", node.Name.Lexeme)
			return types.Error
		}
		if valType == types.Error {
			return types.Error
		}
		if valType != sym.Type {
			c.errorf(node.Line(), "Cannot assign %s to variable '%s' of type %s.", valType, node.Name.Lexeme, sym.Type)
			return types.Error
		}
		return sym.Type

	case *ast.Call:
		return c.checkCall(node)

	default:
		c.errorf(expr.Line(), "Unsupported expression.")
		return types.Error
	}
}

func (c *Checker) checkBinaryOp(node *ast.BinaryOp) types.DataType {
	left := c.checkExpr(node.Left)
	right := c.checkExpr(node.Right)
	if left == types.Error || right == types.Error {
		return types.Error
	}

	switch node.Operator.Kind {
	case token.Plus:
		if left == types.Int && right == types.Int {
			return types.Int
		}
		if left == types.String && right == types.String {
			return types.String
		}
		c.errorf(node.Line(), "Operands of '+' must be two integers or two strings.")
		return types.Error

	case token.Minus, token.Star, token.Slash, token.Percent:
		if left == types.Int && right == types.Int {
			return types.Int
		}
		c.errorf(node.Line(), "Operands of '%s' must be integers.", node.Operator.Lexeme)
		return types.Error

	case token.Less, token.LessEqual, token.Greater, token.GreaterEqual:
		if left == types.Int && right == types.Int {
			return types.Bool
		}
		c.errorf(node.Line(), "Operands of '%s' must be integers.", node.Operator.Lexeme)
		return types.Error

	case token.Equal, token.NotEqual:
		if left != right {
			c.errorf(node.Line(), "Operands of '%s' must be the same type.", node.Operator.Lexeme)
			return types.Error
		}
		return types.Bool

	default:
		c.errorf(node.Line(), "Unsupported operator '%s'.", node.Operator.Lexeme)
		return types.Error
	}
}

func (c *Checker) checkCall(node *ast.Call) types.DataType {
	sym, ok := c.table.Lookup(node.Callee.Lexeme)
	if !ok {
		c.errorf(node.Line(), "Undefined function '%s'.", node.Callee.Lexeme)
		for _, a := range node.Arguments {
			c.checkExpr(a)
		}
		return types.Error
	}
	if !sym.IsFunc {
		c.errorf(node.Line(), "'%s' is not a function.", node.Callee.Lexeme)
		for _, a := range node.Arguments {
			c.checkExpr(a)
		}
		return types.Error
	}
	if len(node.Arguments) != len(sym.ParamTypes) {
		c.errorf(node.Line(), "Expected %d arguments to '%s' but got %d.", len(sym.ParamTypes), node.Callee.Lexeme, len(node.Arguments))
	}
	for i, a := range node.Arguments {
		argType := c.checkExpr(a)
		if i < len(sym.ParamTypes) && argType != types.Error && argType != sym.ParamTypes[i] {
			c.errorf(a.Line(), "Argument %d to '%s' must be %s.", i+1, node.Callee.Lexeme, sym.ParamTypes[i])
		}
	}
	return sym.Type
}

func typeFromToken(t token.Token) types.DataType {
	switch t.Kind {
	case token.KwInt:
		return types.Int
	case token.KwBool:
		return types.Bool
	case token.KwStr:
		return types.String
	default:
		return types.Void
	}
}

// blockGuaranteesReturn conservatively decides whether every control
// path through b ends in a return, so the compiler never has to
// synthesize a fallback return value for a non-void function.
func blockGuaranteesReturn(b *ast.Block) bool {
	if len(b.Statements) == 0 {
		return false
	}
	return stmtGuaranteesReturn(b.Statements[len(b.Statements)-1])
}

func stmtGuaranteesReturn(stmt ast.Statement) bool {
	switch s := stmt.(type) {
	case *ast.Return:
		return true
	case *ast.Block:
		return blockGuaranteesReturn(s)
	case *ast.If:
		if s.Else == nil {
			return false
		}
		return blockGuaranteesReturn(s.Then) && stmtGuaranteesReturn(s.Else)
	default:
		return false
	}
}
