// Package symbols implements the scoped name table shared by the type
// checker and, via its slot-assignment mirror, the compiler.
package symbols

import "github.com/AndyFerns/determa/internal/types"

// Symbol is one defined name: its type and the scope depth it was
// defined at.
type Symbol struct {
	Name  string
	Type  types.DataType
	Depth int
	// IsFunc and ParamTypes are populated for function symbols so that
	// Call sites can check arity (len(ParamTypes)) and yield the declared
	// return type.
	IsFunc     bool
	ParamTypes []types.DataType
}

// Table is a single ordered sequence of symbols plus the current scope
// depth. Symbols are appended on Define and truncated from the tail on
// ExitScope; the bottom frame (depth 0) is never popped.
//
// ForgiveDepth0Redeclaration enables the interactive-prompt exception:
// redefining a name already declared at depth 0 overwrites it in place
// instead of being rejected. Plain script execution leaves this false,
// so depth-0 redeclaration is an error like any other depth.
type Table struct {
	symbols                    []Symbol
	depth                      int
	ForgiveDepth0Redeclaration bool
}

// New returns an empty table at depth 0.
func New() *Table {
	return &Table{}
}

// Clone returns a deep-enough copy for a checker run that may be
// discarded on failure: mutating the clone never affects the original
// until the caller explicitly commits it back.
func (t *Table) Clone() *Table {
	cp := make([]Symbol, len(t.symbols))
	copy(cp, t.symbols)
	return &Table{symbols: cp, depth: t.depth, ForgiveDepth0Redeclaration: t.ForgiveDepth0Redeclaration}
}

// Depth reports the current scope nesting level; 0 is global.
func (t *Table) Depth() int { return t.depth }

// EnterScope increments the current depth.
func (t *Table) EnterScope() { t.depth++ }

// ExitScope decrements the current depth and pops every trailing symbol
// defined at the exited depth.
func (t *Table) ExitScope() {
	cut := len(t.symbols)
	for cut > 0 && t.symbols[cut-1].Depth == t.depth {
		cut--
	}
	t.symbols = t.symbols[:cut]
	t.depth--
}

// Define adds name at the current depth. It rejects a collision with
// another symbol at the same depth, unless the current depth is 0 and
// ForgiveDepth0Redeclaration is set, in which case the existing depth-0
// symbol is overwritten in place.
func (t *Table) Define(sym Symbol) bool {
	sym.Depth = t.depth
	if t.depth == 0 && t.ForgiveDepth0Redeclaration {
		for i := range t.symbols {
			if t.symbols[i].Depth == 0 && t.symbols[i].Name == sym.Name {
				t.symbols[i] = sym
				return true
			}
		}
		t.symbols = append(t.symbols, sym)
		return true
	}
	for i := len(t.symbols) - 1; i >= 0 && t.symbols[i].Depth == t.depth; i-- {
		if t.symbols[i].Name == sym.Name {
			return false
		}
	}
	t.symbols = append(t.symbols, sym)
	return true
}

// Lookup scans innermost-first and returns the most recent match, or
// false if no symbol with that name is visible.
func (t *Table) Lookup(name string) (Symbol, bool) {
	for i := len(t.symbols) - 1; i >= 0; i-- {
		if t.symbols[i].Name == name {
			return t.symbols[i], true
		}
	}
	return Symbol{}, false
}
