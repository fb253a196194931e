// Package runtime is the built-in function registry. Determa allows
// exactly one native entry point, print, and it is realized directly as
// the dedicated OP_PRINT opcode rather than a call dispatched through a
// registry — there is nowhere near enough surface here to justify a
// byName/byOpcode lookup table keyed by a registered Go handler. This
// package exists purely as the listing the REPL's help command draws on,
// so there is one place that knows what's built into the language.
package runtime

// Spec describes one built-in's script-visible signature.
type Spec struct {
	Name  string
	Arity int
}

var builtins = []Spec{
	{Name: "print", Arity: 1},
}

// All returns every built-in's signature, in declaration order.
func All() []Spec {
	return builtins
}

// Lookup finds a built-in by its script-visible name.
func Lookup(name string) (Spec, bool) {
	for _, b := range builtins {
		if b.Name == name {
			return b, true
		}
	}
	return Spec{}, false
}
