package compiler

import (
	"testing"

	"github.com/AndyFerns/determa/internal/bytecode"
	"github.com/AndyFerns/determa/internal/heap"
	"github.com/AndyFerns/determa/internal/parser"
)

func compileSource(t *testing.T, globals *GlobalTable, src string) *bytecode.ObjFunction {
	t.Helper()
	prog, errs := parser.Parse(src)
	if len(errs) != 0 {
		t.Fatalf("parse errors for %q: %v", src, errs)
	}
	c := New(heap.New(), globals)
	fn, cerrs := c.Compile(heap.Roots{}, prog)
	if len(cerrs) != 0 {
		t.Fatalf("compile errors for %q: %v", src, cerrs)
	}
	return fn
}

func TestCompileIntLiteralPrint(t *testing.T) {
	fn := compileSource(t, NewGlobalTable(), `print 1;`)
	want := []byte{bytecode.OpConstant, 0, bytecode.OpPrint, bytecode.OpConstant, 1, bytecode.OpReturn}
	if len(fn.Chunk.Code) != len(want) {
		t.Fatalf("expected code %v, got %v", want, fn.Chunk.Code)
	}
	for i, b := range want {
		if fn.Chunk.Code[i] != b {
			t.Fatalf("byte %d: expected %02x got %02x (full: %v)", i, b, fn.Chunk.Code[i], fn.Chunk.Code)
		}
	}
	if fn.Chunk.Constants[0].AsInt() != 1 {
		t.Fatalf("expected constant 0 to be Int(1)")
	}
}

func TestGlobalVarDeclThenAccess(t *testing.T) {
	globals := NewGlobalTable()
	fn := compileSource(t, globals, `var x = 1; print x;`)
	want := []byte{
		bytecode.OpConstant, 0,
		bytecode.OpSetGlobal, 0,
		bytecode.OpPop,
		bytecode.OpGetGlobal, 0,
		bytecode.OpPrint,
		bytecode.OpConstant, 1,
		bytecode.OpReturn,
	}
	if len(fn.Chunk.Code) != len(want) {
		t.Fatalf("expected code %v, got %v", want, fn.Chunk.Code)
	}
	for i, b := range want {
		if fn.Chunk.Code[i] != b {
			t.Fatalf("byte %d: expected %02x got %02x (full: %v)", i, b, fn.Chunk.Code[i], fn.Chunk.Code)
		}
	}
}

func TestGlobalSlotPersistsAcrossCompilations(t *testing.T) {
	globals := NewGlobalTable()
	compileSource(t, globals, `var x = 1;`)
	slot, ok := globals.Slot("x")
	if !ok || slot != 0 {
		t.Fatalf("expected x bound to slot 0 after first compile, got slot=%d ok=%v", slot, ok)
	}

	// A second, independent compilation (as on a REPL's next line) must
	// resolve x to the same slot rather than erroring as undefined.
	fn := compileSource(t, globals, `x = 2; print x;`)
	if len(fn.Chunk.Code) == 0 {
		t.Fatalf("expected non-empty code")
	}
	if fn.Chunk.Code[0] != bytecode.OpConstant || fn.Chunk.Code[2] != bytecode.OpSetGlobal || fn.Chunk.Code[3] != 0 {
		t.Fatalf("expected OP_SET_GLOBAL 0 reusing x's slot, got %v", fn.Chunk.Code)
	}
}

func TestUndefinedVariableIsCompileError(t *testing.T) {
	prog, errs := parser.Parse(`print y;`)
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	c := New(heap.New(), NewGlobalTable())
	_, cerrs := c.Compile(heap.Roots{}, prog)
	if len(cerrs) == 0 {
		t.Fatalf("expected a compile error for undefined variable")
	}
}

func TestLocalVariableGetsSlotZero(t *testing.T) {
	fn := compileSource(t, NewGlobalTable(), `{ var y = 1; print y; }`)
	// OP_CONSTANT 0 (local initializer, value stays at slot 0, no store
	// opcode), OP_GET_LOCAL 0, OP_PRINT, OP_POP (block exit pops the
	// local), then the script's synthesized default return.
	want := []byte{
		bytecode.OpConstant, 0,
		bytecode.OpGetLocal, 0,
		bytecode.OpPrint,
		bytecode.OpPop,
		bytecode.OpConstant, 1,
		bytecode.OpReturn,
	}
	if len(fn.Chunk.Code) != len(want) {
		t.Fatalf("expected code %v, got %v", want, fn.Chunk.Code)
	}
	for i, b := range want {
		if fn.Chunk.Code[i] != b {
			t.Fatalf("byte %d: expected %02x got %02x (full: %v)", i, b, fn.Chunk.Code[i], fn.Chunk.Code)
		}
	}
}

func TestCompoundAssignmentDesugaredToLoadOpStore(t *testing.T) {
	fn := compileSource(t, NewGlobalTable(), `var x = 1; x += 2;`)
	// var x=1 -> CONST 0; SET_GLOBAL 0; POP
	// x += 2  -> GET_GLOBAL 0; CONST 1; ADD; SET_GLOBAL 0; POP
	want := []byte{
		bytecode.OpConstant, 0,
		bytecode.OpSetGlobal, 0,
		bytecode.OpPop,
		bytecode.OpGetGlobal, 0,
		bytecode.OpConstant, 1,
		bytecode.OpAdd,
		bytecode.OpSetGlobal, 0,
		bytecode.OpPop,
		bytecode.OpConstant, 2,
		bytecode.OpReturn,
	}
	if len(fn.Chunk.Code) != len(want) {
		t.Fatalf("expected code %v, got %v", want, fn.Chunk.Code)
	}
	for i, b := range want {
		if fn.Chunk.Code[i] != b {
			t.Fatalf("byte %d: expected %02x got %02x (full: %v)", i, b, fn.Chunk.Code[i], fn.Chunk.Code)
		}
	}
}

func TestNotEqualDesugarsToEqualThenNot(t *testing.T) {
	fn := compileSource(t, NewGlobalTable(), `print 1 != 2;`)
	code := fn.Chunk.Code
	// CONST 0, CONST 1, EQUAL, NOT, PRINT, ...
	if code[4] != bytecode.OpEqual || code[5] != bytecode.OpNot || code[6] != bytecode.OpPrint {
		t.Fatalf("expected EQUAL;NOT;PRINT, got %v", code)
	}
}

func TestGreaterEqualDesugarsToLessThenNot(t *testing.T) {
	fn := compileSource(t, NewGlobalTable(), `print 1 >= 2;`)
	code := fn.Chunk.Code
	if code[4] != bytecode.OpLess || code[5] != bytecode.OpNot {
		t.Fatalf("expected LESS;NOT, got %v", code)
	}
}

func TestLessEqualDesugarsToGreaterThenNot(t *testing.T) {
	fn := compileSource(t, NewGlobalTable(), `print 1 <= 2;`)
	code := fn.Chunk.Code
	if code[4] != bytecode.OpGreater || code[5] != bytecode.OpNot {
		t.Fatalf("expected GREATER;NOT, got %v", code)
	}
}

func TestIfElseBothBranchesPatchToValidOffsets(t *testing.T) {
	fn := compileSource(t, NewGlobalTable(), `if true { print 1; } else { print 2; }`)
	code := fn.Chunk.Code

	if code[0] != bytecode.OpTrue {
		t.Fatalf("expected OP_TRUE first, got %v", code)
	}
	if code[1] != bytecode.OpJumpIfFalse {
		t.Fatalf("expected OP_JUMP_IF_FALSE second, got %v", code)
	}
	thenDist := int(code[2])<<8 | int(code[3])
	thenTarget := 4 + thenDist
	if thenTarget < 0 || thenTarget > len(code) {
		t.Fatalf("then-branch jump target %d out of bounds (len %d)", thenTarget, len(code))
	}
	if code[thenTarget] != bytecode.OpPop {
		t.Fatalf("expected OP_JUMP_IF_FALSE to land on the pre-else OP_POP, got %v at %d in %v", code[thenTarget], thenTarget, code)
	}
}

func TestWhileLoopEmitsBackwardJump(t *testing.T) {
	fn := compileSource(t, NewGlobalTable(), `var i = 0; while i < 3 { i = i + 1; }`)
	code := fn.Chunk.Code
	foundLoop := false
	for i := 0; i < len(code); i++ {
		if code[i] == bytecode.OpLoop {
			foundLoop = true
			dist := int(code[i+1])<<8 | int(code[i+2])
			target := i + 3 - dist
			if target < 0 || target >= len(code) {
				t.Fatalf("OP_LOOP target %d out of bounds", target)
			}
			break
		}
	}
	if !foundLoop {
		t.Fatalf("expected an OP_LOOP instruction, got %v", code)
	}
}

func TestFunctionDeclEmitsConstantFunctionWithDefaultReturn(t *testing.T) {
	fn := compileSource(t, NewGlobalTable(), `func f() { print 1; }`)
	var nested *bytecode.ObjFunction
	for _, c := range fn.Chunk.Constants {
		if c.IsFunction() {
			nested = c.AsFunction()
		}
	}
	if nested == nil {
		t.Fatalf("expected the script's constant pool to contain the compiled function")
	}
	if nested.Name == nil || nested.Name.Chars != "f" {
		t.Fatalf("expected function named 'f'")
	}
	code := nested.Chunk.Code
	if code[len(code)-1] != bytecode.OpReturn {
		t.Fatalf("expected function body to end with OP_RETURN, got %v", code)
	}
}

func TestFunctionParametersResolveAsLocalsZeroAndUp(t *testing.T) {
	globals := NewGlobalTable()
	fn := compileSource(t, globals, `func add(a, b): int { return a + b; }`)
	var add *bytecode.ObjFunction
	for _, c := range fn.Chunk.Constants {
		if c.IsFunction() {
			add = c.AsFunction()
		}
	}
	if add == nil {
		t.Fatalf("expected compiled function 'add' in constant pool")
	}
	want := []byte{bytecode.OpGetLocal, 0, bytecode.OpGetLocal, 1, bytecode.OpAdd, bytecode.OpReturn}
	if len(add.Chunk.Code) != len(want) {
		t.Fatalf("expected code %v, got %v", want, add.Chunk.Code)
	}
	for i, b := range want {
		if add.Chunk.Code[i] != b {
			t.Fatalf("byte %d: expected %02x got %02x (full: %v)", i, b, add.Chunk.Code[i], add.Chunk.Code)
		}
	}
}

func TestCallCompilesCalleeThenArgsThenOpCall(t *testing.T) {
	globals := NewGlobalTable()
	fn := compileSource(t, globals, `func add(a, b): int { return a + b; } print add(1, 2);`)
	code := fn.Chunk.Code
	// Past the function constant + OP_SET_GLOBAL/OP_POP for the decl:
	// OP_GET_GLOBAL <slot>, OP_CONSTANT, OP_CONSTANT, OP_CALL 2, OP_PRINT.
	foundCall := false
	for i := 0; i < len(code)-1; i++ {
		if code[i] == bytecode.OpCall && code[i+1] == 2 {
			foundCall = true
			break
		}
	}
	if !foundCall {
		t.Fatalf("expected OP_CALL 2, got %v", code)
	}
}

func TestEmptyProgramCompilesToBareReturn(t *testing.T) {
	fn := compileSource(t, NewGlobalTable(), ``)
	want := []byte{bytecode.OpConstant, 0, bytecode.OpReturn}
	if len(fn.Chunk.Code) != len(want) {
		t.Fatalf("expected code %v, got %v", want, fn.Chunk.Code)
	}
}

func TestScriptFunctionHasNoNameAndZeroArity(t *testing.T) {
	fn := compileSource(t, NewGlobalTable(), `print 1;`)
	if fn.Name != nil {
		t.Fatalf("expected script function to have a nil name")
	}
	if fn.Arity != 0 {
		t.Fatalf("expected script function to have zero arity")
	}
}
