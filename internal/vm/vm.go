// Package vm implements the stack-based bytecode interpreter: a growable
// operand stack, a call-frame array capped at bytecode.MaxFrames, and a
// dispatch loop over the bytecode package's opcode set.
package vm

import (
	"io"

	"github.com/AndyFerns/determa/internal/bytecode"
	"github.com/AndyFerns/determa/internal/heap"
)

// frame is one active call: the function being executed, its instruction
// pointer, and base — the stack slot holding the callee itself. Locals
// (parameters, then block-scoped variables, in declaration order) sit at
// base+1, base+2, ...; slot 0 in OP_GET_LOCAL/OP_SET_LOCAL therefore
// addresses stack[base+1].
type frame struct {
	fn   *bytecode.ObjFunction
	ip   int
	base int
}

// VM is a single-threaded stack machine. One VM can run many scripts in
// sequence (as a REPL does, one compiled line at a time): Globals persists
// across Run calls, while the operand stack and call frames reset at the
// start of each one.
type VM struct {
	gc      *heap.GC
	stack   []bytecode.Value
	frames  []frame
	globals []bytecode.Value
	stdout  io.Writer
	stderr  io.Writer
}

// New returns a VM backed by gc for heap allocation (string concatenation
// is the only runtime path that allocates), printing OP_PRINT output to
// stdout and runtime-error traces to stderr.
func New(gc *heap.GC, stdout, stderr io.Writer) *VM {
	return &VM{
		gc:      gc,
		stack:   make([]bytecode.Value, 0, bytecode.MaxStack),
		frames:  make([]frame, 0, bytecode.MaxFrames),
		globals: make([]bytecode.Value, bytecode.MaxGlobals),
		stdout:  stdout,
		stderr:  stderr,
	}
}

// Globals exposes the persistent global slot array, read-only, for tests
// and for a REPL wanting to print a line's resulting value.
func (vm *VM) Globals() []bytecode.Value { return vm.globals }

// Run executes fn as a fresh top-level call on an empty stack and frame
// array, returning its final return value. A runtime fault returns a
// *RuntimeError; the stack and frames are empty again by the time Run
// returns, either way.
func (vm *VM) Run(fn *bytecode.ObjFunction) (bytecode.Value, error) {
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]

	vm.push(bytecode.ObjValue(fn))
	vm.frames = append(vm.frames, frame{fn: fn, ip: 0, base: 0})

	return vm.run()
}

func (vm *VM) run() (bytecode.Value, error) {
	for {
		fr := &vm.frames[len(vm.frames)-1]
		code := fr.fn.Chunk.Code
		op := code[fr.ip]
		fr.ip++

		switch op {
		case bytecode.OpConstant:
			idx := vm.readByte(fr)
			vm.push(fr.fn.Chunk.Constants[idx])

		case bytecode.OpTrue:
			vm.push(bytecode.BoolValue(true))
		case bytecode.OpFalse:
			vm.push(bytecode.BoolValue(false))
		case bytecode.OpPop:
			vm.pop()

		case bytecode.OpGetGlobal:
			idx := vm.readByte(fr)
			vm.push(vm.globals[idx])
		case bytecode.OpSetGlobal:
			idx := vm.readByte(fr)
			vm.globals[idx] = vm.peek(0)

		case bytecode.OpGetLocal:
			slot := vm.readByte(fr)
			vm.push(vm.stack[fr.base+1+int(slot)])
		case bytecode.OpSetLocal:
			slot := vm.readByte(fr)
			vm.stack[fr.base+1+int(slot)] = vm.peek(0)

		case bytecode.OpAdd:
			v, err := vm.add()
			if err != nil {
				return vm.runtimeError("%s", err)
			}
			vm.push(v)
		case bytecode.OpSubtract, bytecode.OpMultiply, bytecode.OpDivide, bytecode.OpModulo:
			v, err := vm.arithmetic(op)
			if err != nil {
				return vm.runtimeError("%s", err)
			}
			vm.push(v)

		case bytecode.OpNegate:
			v := vm.pop()
			if !v.IsInt() {
				return vm.runtimeError("Operand must be an integer.")
			}
			vm.push(bytecode.IntValue(-v.AsInt()))

		case bytecode.OpNot:
			v := vm.pop()
			if !v.IsBool() {
				return vm.runtimeError("Operand must be a boolean.")
			}
			vm.push(bytecode.BoolValue(!v.AsBool()))

		case bytecode.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(bytecode.BoolValue(bytecode.ValuesEqual(a, b)))

		case bytecode.OpGreater, bytecode.OpLess:
			b := vm.pop()
			a := vm.pop()
			if !a.IsInt() || !b.IsInt() {
				return vm.runtimeError("Operands must be integers.")
			}
			if op == bytecode.OpGreater {
				vm.push(bytecode.BoolValue(a.AsInt() > b.AsInt()))
			} else {
				vm.push(bytecode.BoolValue(a.AsInt() < b.AsInt()))
			}

		case bytecode.OpJump:
			off := vm.readU16(fr)
			fr.ip += off
		case bytecode.OpJumpIfFalse:
			off := vm.readU16(fr)
			if !vm.peek(0).Truthy() {
				fr.ip += off
			}
		case bytecode.OpLoop:
			off := vm.readU16(fr)
			fr.ip -= off

		case bytecode.OpCall:
			argc := int(vm.readByte(fr))
			if v, err := vm.call(argc); err != nil {
				return v, err
			}

		case bytecode.OpPrint:
			v := vm.pop()
			io.WriteString(vm.stdout, v.String())
			io.WriteString(vm.stdout, "\n")

		case bytecode.OpReturn:
			ret := vm.pop()
			base := fr.base
			vm.frames = vm.frames[:len(vm.frames)-1]
			vm.stack = vm.stack[:base]
			if len(vm.frames) == 0 {
				return ret, nil
			}
			vm.push(ret)

		default:
			return vm.runtimeError("Unknown opcode %d.", op)
		}
	}
}

// call dispatches OP_CALL: the callee and its argc arguments are already
// on the stack (callee at peek(argc)); this verifies it's a function of
// the right arity and pushes a new frame over them.
func (vm *VM) call(argc int) (bytecode.Value, error) {
	calleeIdx := len(vm.stack) - argc - 1
	if calleeIdx < 0 {
		return vm.runtimeError("Stack underflow on call.")
	}
	callee := vm.stack[calleeIdx]
	if !callee.IsFunction() {
		return vm.runtimeError("Can only call functions.")
	}
	fn := callee.AsFunction()
	if fn.Arity != argc {
		return vm.runtimeError("Expected %d arguments but got %d.", fn.Arity, argc)
	}
	if len(vm.frames) >= bytecode.MaxFrames {
		return vm.runtimeError("Stack overflow.")
	}
	vm.frames = append(vm.frames, frame{fn: fn, ip: 0, base: calleeIdx})
	return bytecode.Value{}, nil
}

// add handles OP_ADD's two valid operand pairs. The operands stay on the
// stack — and so stay a live GC root — through the allocation that string
// concatenation performs; popping them first and holding them only in
// local variables would let a collection triggered by that allocation
// sweep them out from under it.
func (vm *VM) add() (bytecode.Value, error) {
	b := vm.peek(0)
	a := vm.peek(1)
	switch {
	case a.IsInt() && b.IsInt():
		vm.pop()
		vm.pop()
		return bytecode.IntValue(int32(uint32(a.AsInt()) + uint32(b.AsInt()))), nil
	case a.IsString() && b.IsString():
		concatenated := a.AsString().Chars + b.AsString().Chars
		s := vm.gc.NewString(vm.roots(), concatenated)
		vm.pop()
		vm.pop()
		return bytecode.ObjValue(s), nil
	default:
		return bytecode.Value{}, errOperandsMismatch
	}
}

func (vm *VM) arithmetic(op byte) (bytecode.Value, error) {
	b := vm.pop()
	a := vm.pop()
	if !a.IsInt() || !b.IsInt() {
		return bytecode.Value{}, errOperandsNotInt
	}
	x, y := a.AsInt(), b.AsInt()
	switch op {
	case bytecode.OpSubtract:
		return bytecode.IntValue(int32(uint32(x) - uint32(y))), nil
	case bytecode.OpMultiply:
		return bytecode.IntValue(int32(uint32(x) * uint32(y))), nil
	case bytecode.OpDivide:
		if y == 0 {
			return bytecode.Value{}, errDivideByZero
		}
		return bytecode.IntValue(x / y), nil
	case bytecode.OpModulo:
		if y == 0 {
			return bytecode.Value{}, errModuloByZero
		}
		return bytecode.IntValue(x % y), nil
	}
	return bytecode.Value{}, errOperandsNotInt
}

func (vm *VM) push(v bytecode.Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() bytecode.Value {
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) peek(distance int) bytecode.Value {
	return vm.stack[len(vm.stack)-1-distance]
}

func (vm *VM) readByte(fr *frame) byte {
	b := fr.fn.Chunk.Code[fr.ip]
	fr.ip++
	return b
}

func (vm *VM) readU16(fr *frame) int {
	hi := fr.fn.Chunk.Code[fr.ip]
	lo := fr.fn.Chunk.Code[fr.ip+1]
	fr.ip += 2
	return int(hi)<<8 | int(lo)
}

// roots snapshots every live GC root for a collection triggered mid-run:
// the operand stack, the persistent globals array, and every function
// object on the call-frame stack.
func (vm *VM) roots() heap.Roots {
	frames := make([]*bytecode.ObjFunction, len(vm.frames))
	for i := range vm.frames {
		frames[i] = vm.frames[i].fn
	}
	return heap.Roots{Stack: vm.stack, Globals: vm.globals, Frames: frames}
}
