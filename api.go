// Package determa is the embeddable entry point to the language: parse,
// type-check, compile, and run Determa source against a persistent
// Runtime, the way xirelogy-go-flux's own root-level api.go wraps its
// lexer/parser/compiler/vm pipeline behind a single Run-shaped facade.
package determa

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AndyFerns/determa/internal/compiler"
	"github.com/AndyFerns/determa/internal/heap"
	"github.com/AndyFerns/determa/internal/parser"
	"github.com/AndyFerns/determa/internal/symbols"
	"github.com/AndyFerns/determa/internal/typecheck"
	"github.com/AndyFerns/determa/internal/vm"
)

// Status reports which pipeline stage a Run call stopped at.
type Status int

const (
	StatusOK Status = iota
	StatusParseError
	StatusTypeError
	StatusCompileError
	StatusRuntimeError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusParseError:
		return "parse error"
	case StatusTypeError:
		return "type error"
	case StatusCompileError:
		return "compile error"
	case StatusRuntimeError:
		return "runtime error"
	default:
		return "unknown status"
	}
}

// FrameTrace is one call-stack frame in a RuntimeError, re-exported at the
// package boundary so embedders never need to import internal/vm.
type FrameTrace struct {
	Name string
	Line int
}

// RuntimeError is a source-aware execution error surfaced from the VM.
type RuntimeError struct {
	Message string
	Stack   []FrameTrace
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for _, fr := range e.Stack {
		fmt.Fprintf(&b, "\n[line %d] in %s", fr.Line, fr.Name)
	}
	return b.String()
}

func convertRuntimeError(err error) error {
	rte, ok := err.(*vm.RuntimeError)
	if !ok {
		return err
	}
	stack := make([]FrameTrace, len(rte.Frames))
	for i, fr := range rte.Frames {
		stack[i] = FrameTrace{Name: fr.Name, Line: fr.Line}
	}
	return &RuntimeError{Message: rte.Message, Stack: stack}
}

// Runtime is persistent interpreter state shared across many Run calls:
// the global symbol table, the compiler's global slot table, the GC heap,
// and the VM's globals array all outlive a single Run, exactly the state
// a REPL needs to carry from one typed line to the next.
type Runtime struct {
	// Interactive enables the REPL's depth-0 redeclaration exception
	// (Open Question decision #2): re-running "var x = 1;" at the top
	// level is a type error in script mode but not in the interactive
	// prompt.
	Interactive bool

	table   *symbols.Table
	globals *compiler.GlobalTable
	gc      *heap.GC
	machine *vm.VM
	stdout  io.Writer
	stderr  io.Writer
}

// NewRuntime returns a fresh Runtime. A nil stdout/stderr defaults to
// os.Stdout/os.Stderr.
func NewRuntime(stdout, stderr io.Writer) *Runtime {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	gc := heap.New()
	return &Runtime{
		table:   symbols.New(),
		globals: compiler.NewGlobalTable(),
		gc:      gc,
		machine: vm.New(gc, stdout, stderr),
		stdout:  stdout,
		stderr:  stderr,
	}
}

// Run lexes, parses, type-checks, compiles, and executes source against
// rt, returning the pipeline stage it reached and the Go error produced
// there, if any. A successful Run mutates rt's symbol table, global slot
// table, and VM globals in place, so a second Run against the same
// Runtime sees every top-level declaration the first one made — the
// behavior a line-by-line REPL depends on.
func Run(source string, rt *Runtime) (Status, error) {
	rt.table.ForgiveDepth0Redeclaration = rt.Interactive

	prog, perrs := parser.Parse(source)
	if len(perrs) != 0 {
		return StatusParseError, diagnosticError(perrs)
	}

	table, terrs := typecheck.Check(rt.table, prog)
	if len(terrs) != 0 {
		return StatusTypeError, diagnosticError(terrs)
	}
	rt.table = table

	c := compiler.New(rt.gc, rt.globals)
	fn, cerrs := c.Compile(heap.Roots{Globals: rt.machine.Globals()}, prog)
	if len(cerrs) != 0 {
		return StatusCompileError, diagnosticError(cerrs)
	}

	if _, err := rt.machine.Run(fn); err != nil {
		return StatusRuntimeError, convertRuntimeError(err)
	}
	return StatusOK, nil
}

func diagnosticError(msgs []string) error {
	return fmt.Errorf("%s", strings.Join(msgs, "\n"))
}
