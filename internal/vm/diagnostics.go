package vm

import (
	"fmt"
	"strings"

	"github.com/AndyFerns/determa/internal/bytecode"
)

// FrameInfo is a snapshot of one call frame at the moment a runtime error
// was raised: the function's display name and the source line its
// instruction pointer had reached.
type FrameInfo struct {
	Name string
	Line int
}

// RuntimeError is returned by Run when the VM halts on a runtime fault:
// a type mismatch an operator can't handle, division by zero, an arity
// mismatch, or a stack/frame overflow. Frames holds the call stack at the
// moment of the fault, innermost first, matching what gets printed to the
// error stream before the VM resets.
type RuntimeError struct {
	Message string
	Frames  []FrameInfo
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for _, fr := range e.Frames {
		b.WriteString("\n")
		fmt.Fprintf(&b, "[line %d] in %s", fr.Line, fr.Name)
	}
	return b.String()
}

// stackTrace builds the frame-info list for the error trace: top-to-bottom,
// innermost (the frame active when the fault was raised) first.
func (vm *VM) stackTrace() []FrameInfo {
	trace := make([]FrameInfo, 0, len(vm.frames))
	for i := len(vm.frames) - 1; i >= 0; i-- {
		trace = append(trace, vm.frameInfo(&vm.frames[i]))
	}
	return trace
}

func (vm *VM) frameInfo(fr *frame) FrameInfo {
	name := "script"
	if fr.fn.Name != nil {
		name = fr.fn.Name.Chars
	}
	line := 0
	if fr.ip > 0 && fr.ip-1 < len(fr.fn.Chunk.Lines) {
		line = fr.fn.Chunk.Lines[fr.ip-1]
	}
	return FrameInfo{Name: name, Line: line}
}

// runtimeError formats and prints "error message\n" followed by one
// "[line n] in <name or \"script\">" per frame, top to bottom, to the
// VM's error stream, resets the operand stack and frame count to empty,
// and returns the error.
func (vm *VM) runtimeError(format string, args ...any) (bytecode.Value, error) {
	msg := fmt.Sprintf(format, args...)
	err := &RuntimeError{Message: msg, Frames: vm.stackTrace()}
	if vm.stderr != nil {
		fmt.Fprintln(vm.stderr, err.Error())
	}
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	return bytecode.Value{}, err
}
