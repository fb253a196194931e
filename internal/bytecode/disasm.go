package bytecode

import (
	"fmt"
	"io"
)

// Disassembler formats a Chunk as a readable assembly-style dump, used by
// the CLI's -d/--pda-debug flag.
type Disassembler struct {
	w io.Writer
}

// NewDisassembler constructs a disassembler that writes to w.
func NewDisassembler(w io.Writer) *Disassembler {
	return &Disassembler{w: w}
}

// DisassembleFunction dumps name's chunk, then recurses into any function
// constants embedded in its pool.
func (d *Disassembler) DisassembleFunction(name string, fn *ObjFunction) {
	fmt.Fprintf(d.w, "== %s ==\n", name)
	d.disassembleChunk(fn.Chunk)
	for _, c := range fn.Chunk.Constants {
		if c.IsFunction() {
			nested := c.AsFunction()
			nestedName := "<fn>"
			if nested.Name != nil {
				nestedName = nested.Name.Chars
			}
			d.DisassembleFunction(nestedName, nested)
		}
	}
}

func (d *Disassembler) disassembleChunk(chunk *Chunk) {
	for offset := 0; offset < len(chunk.Code); {
		offset = d.disassembleInstruction(chunk, offset)
	}
}

func (d *Disassembler) disassembleInstruction(chunk *Chunk, offset int) int {
	op := chunk.Code[offset]
	line := chunk.Lines[offset]
	fmt.Fprintf(d.w, "%04d %4d %-16s", offset, line, Name(op))

	switch op {
	case OpConstant:
		idx := chunk.Code[offset+1]
		fmt.Fprintf(d.w, " %3d '%s'\n", idx, chunk.Constants[idx].String())
		return offset + 2
	case OpGetGlobal, OpSetGlobal, OpGetLocal, OpSetLocal, OpCall:
		operand := chunk.Code[offset+1]
		fmt.Fprintf(d.w, " %3d\n", operand)
		return offset + 2
	case OpJump, OpJumpIfFalse, OpLoop:
		hi, lo := chunk.Code[offset+1], chunk.Code[offset+2]
		dist := int(hi)<<8 | int(lo)
		target := offset + 3
		if op == OpLoop {
			target -= dist
		} else {
			target += dist
		}
		fmt.Fprintf(d.w, " %3d -> %d\n", dist, target)
		return offset + 3
	default:
		fmt.Fprintln(d.w)
		return offset + 1
	}
}
