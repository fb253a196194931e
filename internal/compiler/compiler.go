// Package compiler implements the single-pass AST-to-bytecode compiler:
// a recursive walk over an *ast.Program that emits into a fresh
// top-level script *bytecode.ObjFunction, resolving names to global
// slots or local stack offsets and patching forward jumps as it goes.
package compiler

import (
	"fmt"

	"github.com/AndyFerns/determa/internal/ast"
	"github.com/AndyFerns/determa/internal/bytecode"
	"github.com/AndyFerns/determa/internal/heap"
	"github.com/AndyFerns/determa/internal/token"
)

// GlobalTable maps source-level global names to dense slot indices. It
// is persistent across compilations so that each line typed at an
// interactive prompt can refer to a global declared on an earlier line.
type GlobalTable struct {
	slots map[string]int
}

// NewGlobalTable returns an empty table.
func NewGlobalTable() *GlobalTable {
	return &GlobalTable{slots: make(map[string]int)}
}

// Slot reports the slot assigned to name, if any.
func (g *GlobalTable) Slot(name string) (int, bool) {
	idx, ok := g.slots[name]
	return idx, ok
}

// Len reports how many global slots are in use.
func (g *GlobalTable) Len() int { return len(g.slots) }

// define returns name's existing slot if one was already assigned
// (REPL-style reuse across compilations), or allocates the next free
// slot. It fails once every slot up to MaxGlobals is taken.
func (g *GlobalTable) define(name string) (int, bool) {
	if idx, ok := g.slots[name]; ok {
		return idx, true
	}
	if len(g.slots) >= bytecode.MaxGlobals {
		return 0, false
	}
	idx := len(g.slots)
	g.slots[name] = idx
	return idx, true
}

// local is one slot on the function's region of the operand stack: a
// name paired with the scope depth it was declared at, so a block exit
// knows which trailing locals to pop.
type local struct {
	name  string
	depth int
}

// funcState is the compiler's state for one function body: its target
// object and the locals currently live on its (future) stack frame.
// enclosing links to the funcState of the function whose FuncDecl this
// one is nested inside, used only to find in-progress chunks for GC
// rooting — never to resolve names, since the language has no closures.
type funcState struct {
	enclosing *funcState
	fn        *bytecode.ObjFunction
	locals    []local
}

// Compiler walks one Program at a time. Create one per compilation (or
// reuse across REPL lines, sharing the same GlobalTable) and call
// Compile.
type Compiler struct {
	gc        *heap.GC
	globals   *GlobalTable
	hostRoots heap.Roots
	cur       *funcState
	depth     int
	line      int
	errors    []string
	hadErr    bool
}

// New returns a compiler that allocates heap objects through gc and
// resolves/creates global slots through globals.
func New(gc *heap.GC, globals *GlobalTable) *Compiler {
	return &Compiler{gc: gc, globals: globals}
}

// Compile compiles prog into a fresh top-level script function: zero
// arity, no name, a trailing OP_RETURN. hostRoots is a snapshot of the
// embedding runtime's live stack/globals/frames at the moment
// compilation starts (the zero value is correct for a program that
// hasn't run yet); it is merged with the compiler's own in-progress
// chunks whenever an allocation might trigger a collection mid-compile.
//
// On success it returns the script function and a nil error slice. On
// failure it returns nil and every collected diagnostic.
func (c *Compiler) Compile(hostRoots heap.Roots, prog *ast.Program) (*bytecode.ObjFunction, []string) {
	c.hostRoots = hostRoots
	c.errors = nil
	c.hadErr = false
	c.depth = 0

	script := c.gc.NewFunction(c.roots())
	c.cur = &funcState{fn: script}

	for _, stmt := range prog.Statements {
		c.compileStmt(stmt)
	}
	c.finishFunction()

	if c.hadErr {
		return nil, c.errors
	}
	return script, nil
}

func (c *Compiler) errorf(line int, format string, args ...any) {
	c.hadErr = true
	c.errors = append(c.errors, fmt.Sprintf("[Line %d] Error: %s", line, fmt.Sprintf(format, args...)))
}

// roots merges the host-supplied snapshot with every function currently
// being compiled, innermost first, exposed both as frames (so the
// function object itself survives) and as their constant pools (the
// "current compiler" root a collection mid-compile needs to see).
func (c *Compiler) roots() heap.Roots {
	r := c.hostRoots
	for fs := c.cur; fs != nil; fs = fs.enclosing {
		r.Frames = append(r.Frames, fs.fn)
		r.Compiling = append(r.Compiling, fs.fn.Chunk.Constants...)
	}
	return r
}

func (c *Compiler) enterScope() { c.depth++ }

// exitScope leaves a block, popping every local declared inside it both
// from the compiler's own bookkeeping and, via OP_POP, from the runtime
// stack region those locals actually occupy.
func (c *Compiler) exitScope() {
	c.depth--
	fs := c.cur
	for len(fs.locals) > 0 && fs.locals[len(fs.locals)-1].depth > c.depth {
		fs.locals = fs.locals[:len(fs.locals)-1]
		c.emitByte(bytecode.OpPop)
	}
}

func (c *Compiler) addLocal(name string) error {
	if len(c.cur.locals) >= bytecode.MaxLocals {
		return fmt.Errorf("too many local variables in function")
	}
	c.cur.locals = append(c.cur.locals, local{name: name, depth: c.depth})
	return nil
}

func (c *Compiler) resolveLocal(name string) (int, bool) {
	locals := c.cur.locals
	for i := len(locals) - 1; i >= 0; i-- {
		if locals[i].name == name {
			return i, true
		}
	}
	return 0, false
}

// finishFunction guarantees the current function's chunk ends with
// OP_RETURN, synthesizing a default "return 0;" when the source never
// did (a void function falling off the end; the type checker has
// already ruled this out for non-void functions).
func (c *Compiler) finishFunction() {
	code := c.cur.fn.Chunk.Code
	if len(code) > 0 && code[len(code)-1] == bytecode.OpReturn {
		return
	}
	c.emitConstant(bytecode.IntValue(0))
	c.emitByte(bytecode.OpReturn)
}

// --- statements ---

func (c *Compiler) compileStmt(stmt ast.Statement) {
	c.line = stmt.Line()
	switch node := stmt.(type) {
	case *ast.VarDecl:
		c.compileVarDecl(node)
	case *ast.PrintStmt:
		c.compileExpr(node.Expression)
		c.emitByte(bytecode.OpPrint)
	case *ast.ExprStmt:
		c.compileExpr(node.Expression)
		c.emitByte(bytecode.OpPop)
	case *ast.Block:
		c.enterScope()
		for _, s := range node.Statements {
			c.compileStmt(s)
		}
		c.exitScope()
	case *ast.If:
		c.compileIf(node)
	case *ast.While:
		c.compileWhile(node)
	case *ast.FuncDecl:
		c.compileFuncDecl(node)
	case *ast.Return:
		c.compileReturn(node)
	default:
		c.errorf(stmt.Line(), "Unsupported statement.")
	}
}

// compileVarDecl leaves the initializer's value on the stack. At depth
// 0 that value is immediately consumed by OP_SET_GLOBAL and popped,
// since the declaration is a statement, not an expression. At depth > 0
// the value is left in place: its stack position is the local's slot.
func (c *Compiler) compileVarDecl(node *ast.VarDecl) {
	c.compileExpr(node.Initializer)
	if c.depth == 0 {
		slot, ok := c.globals.define(node.Name.Lexeme)
		if !ok {
			c.errorf(node.Line(), "Too many globals.")
			return
		}
		c.emitBytes(bytecode.OpSetGlobal, byte(slot))
		c.emitByte(bytecode.OpPop)
		return
	}
	if err := c.addLocal(node.Name.Lexeme); err != nil {
		c.errorf(node.Line(), "%s", err)
	}
}

func (c *Compiler) compileIf(node *ast.If) {
	c.compileExpr(node.Condition)
	thenJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emitByte(bytecode.OpPop)
	c.compileStmt(node.Then)
	elseJump := c.emitJump(bytecode.OpJump)
	c.patchJump(thenJump)
	c.emitByte(bytecode.OpPop)
	if node.Else != nil {
		c.compileStmt(node.Else)
	}
	c.patchJump(elseJump)
}

func (c *Compiler) compileWhile(node *ast.While) {
	loopStart := len(c.cur.fn.Chunk.Code)
	c.compileExpr(node.Condition)
	exitJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emitByte(bytecode.OpPop)
	c.compileStmt(node.Body)
	c.emitLoop(loopStart)
	c.patchJump(exitJump)
	c.emitByte(bytecode.OpPop)
}

// compileFuncDecl loads the (not yet compiled) function as a constant in
// the enclosing chunk and binds it to its name first — exactly like a
// variable, OP_SET_GLOBAL at depth 0 or a new local slot at depth > 0 —
// and only then compiles its body. Binding the name before the body
// lets the body's own recursive calls to itself resolve, mirroring the
// type checker's checkFuncDecl, which defines the function's symbol
// before checking its body for the same reason.
func (c *Compiler) compileFuncDecl(node *ast.FuncDecl) {
	fn := c.gc.NewFunction(c.roots())
	fn.Arity = len(node.Params)

	parent := c.cur
	c.emitConstant(bytecode.ObjValue(fn))
	if c.depth == 0 {
		slot, ok := c.globals.define(node.Name.Lexeme)
		if !ok {
			c.errorf(node.Line(), "Too many globals.")
			return
		}
		c.emitBytes(bytecode.OpSetGlobal, byte(slot))
		c.emitByte(bytecode.OpPop)
	} else if err := c.addLocal(node.Name.Lexeme); err != nil {
		c.errorf(node.Line(), "%s", err)
	}

	c.cur = &funcState{enclosing: parent, fn: fn}
	fn.Name = c.gc.NewString(c.roots(), node.Name.Lexeme)

	c.depth++
	for _, p := range node.Params {
		if err := c.addLocal(p.Lexeme); err != nil {
			c.errorf(p.Line, "%s", err)
		}
	}
	for _, s := range node.Body.Statements {
		c.compileStmt(s)
	}
	c.finishFunction()
	c.depth--
	c.cur = parent
}

func (c *Compiler) compileReturn(node *ast.Return) {
	if node.Value != nil {
		c.compileExpr(node.Value)
	} else {
		c.emitConstant(bytecode.IntValue(0))
	}
	c.emitByte(bytecode.OpReturn)
}

// --- expressions ---

func (c *Compiler) compileExpr(expr ast.Expression) {
	c.line = expr.Line()
	switch node := expr.(type) {
	case *ast.IntLiteral:
		c.emitConstant(bytecode.IntValue(node.Value))

	case *ast.StringLiteral:
		s := c.gc.NewString(c.roots(), node.Value)
		c.emitConstant(bytecode.ObjValue(s))

	case *ast.BoolLiteral:
		if node.Value {
			c.emitByte(bytecode.OpTrue)
		} else {
			c.emitByte(bytecode.OpFalse)
		}

	case *ast.VarAccess:
		c.compileNameLoad(node.Name)

	case *ast.UnaryOp:
		c.compileExpr(node.Operand)
		switch node.Operator.Kind {
		case token.Minus:
			c.emitByte(bytecode.OpNegate)
		case token.Bang:
			c.emitByte(bytecode.OpNot)
		default:
			c.errorf(node.Line(), "Unsupported unary operator '%s'.", node.Operator.Lexeme)
		}

	case *ast.BinaryOp:
		c.compileExpr(node.Left)
		c.compileExpr(node.Right)
		c.emitBinaryOp(node.Operator)

	case *ast.VarAssign:
		c.compileExpr(node.Value)
		c.compileNameStore(node.Name)

	case *ast.Call:
		c.compileNameLoad(node.Callee)
		for _, arg := range node.Arguments {
			c.compileExpr(arg)
		}
		if len(node.Arguments) > 255 {
			c.errorf(node.Line(), "Too many arguments.")
			return
		}
		c.emitBytes(bytecode.OpCall, byte(len(node.Arguments)))

	default:
		c.errorf(expr.Line(), "Unsupported expression.")
	}
}

// compileNameLoad/compileNameStore implement §4.4's lookup order:
// innermost locals, then globals, then undefined — a name the type
// checker accepted but that resolves to neither here is a closure-style
// reference to an enclosing function's local, which the language does
// not support; it surfaces as a plain compile error.
func (c *Compiler) compileNameLoad(name token.Token) {
	if slot, ok := c.resolveLocal(name.Lexeme); ok {
		c.emitBytes(bytecode.OpGetLocal, byte(slot))
		return
	}
	if slot, ok := c.globals.Slot(name.Lexeme); ok {
		c.emitBytes(bytecode.OpGetGlobal, byte(slot))
		return
	}
	c.errorf(name.Line, "Undefined variable '%s'.", name.Lexeme)
}

func (c *Compiler) compileNameStore(name token.Token) {
	if slot, ok := c.resolveLocal(name.Lexeme); ok {
		c.emitBytes(bytecode.OpSetLocal, byte(slot))
		return
	}
	if slot, ok := c.globals.Slot(name.Lexeme); ok {
		c.emitBytes(bytecode.OpSetGlobal, byte(slot))
		return
	}
	c.errorf(name.Line, "Undefined variable '%s'.", name.Lexeme)
}

// emitBinaryOp desugars '!=' into OP_EQUAL;OP_NOT, '>=' into
// OP_LESS;OP_NOT and '<=' into OP_GREATER;OP_NOT, since the instruction
// set only has OP_EQUAL/OP_GREATER/OP_LESS.
func (c *Compiler) emitBinaryOp(op token.Token) {
	switch op.Kind {
	case token.Plus:
		c.emitByte(bytecode.OpAdd)
	case token.Minus:
		c.emitByte(bytecode.OpSubtract)
	case token.Star:
		c.emitByte(bytecode.OpMultiply)
	case token.Slash:
		c.emitByte(bytecode.OpDivide)
	case token.Percent:
		c.emitByte(bytecode.OpModulo)
	case token.Less:
		c.emitByte(bytecode.OpLess)
	case token.Greater:
		c.emitByte(bytecode.OpGreater)
	case token.LessEqual:
		c.emitBytes(bytecode.OpGreater, bytecode.OpNot)
	case token.GreaterEqual:
		c.emitBytes(bytecode.OpLess, bytecode.OpNot)
	case token.Equal:
		c.emitByte(bytecode.OpEqual)
	case token.NotEqual:
		c.emitBytes(bytecode.OpEqual, bytecode.OpNot)
	default:
		c.errorf(op.Line, "Unsupported operator '%s'.", op.Lexeme)
	}
}

// --- byte/jump emission ---

func (c *Compiler) emitByte(b byte) {
	c.cur.fn.Chunk.Write(b, c.line)
}

func (c *Compiler) emitBytes(bs ...byte) {
	for _, b := range bs {
		c.emitByte(b)
	}
}

func (c *Compiler) emitConstant(v bytecode.Value) {
	idx, err := c.cur.fn.Chunk.AddConstant(v)
	if err != nil {
		c.errorf(c.line, "%s", err)
		return
	}
	c.emitBytes(bytecode.OpConstant, byte(idx))
}

// emitJump writes op followed by a 16-bit placeholder and returns the
// offset of that placeholder for a later patchJump call.
func (c *Compiler) emitJump(op byte) int {
	c.emitByte(op)
	c.emitBytes(0xff, 0xff)
	return len(c.cur.fn.Chunk.Code) - 2
}

// patchJump fills in the placeholder at pos with the distance from the
// instruction immediately following it to the current end of the chunk.
func (c *Compiler) patchJump(pos int) {
	offset := len(c.cur.fn.Chunk.Code) - pos - 2
	if offset > bytecode.MaxJump {
		c.errorf(c.line, "Code too large.")
		return
	}
	c.cur.fn.Chunk.Code[pos] = byte(offset >> 8)
	c.cur.fn.Chunk.Code[pos+1] = byte(offset)
}

// emitLoop writes OP_LOOP with a 16-bit backward distance from the
// instruction following it back to loopStart.
func (c *Compiler) emitLoop(loopStart int) {
	opPos := len(c.cur.fn.Chunk.Code)
	offset := opPos + 3 - loopStart
	if offset > bytecode.MaxJump {
		c.errorf(c.line, "Loop body too large.")
		offset = 0
	}
	c.emitByte(bytecode.OpLoop)
	c.emitBytes(byte(offset>>8), byte(offset))
}
