// Package types defines the static type lattice used by the checker.
package types

// DataType is one of the fixed set of static types in the language.
// Error is a propagation sentinel: it is never a runtime value, only a
// marker meaning "already reported, don't report again."
type DataType int

const (
	Void DataType = iota
	Int
	Bool
	String
	Error
)

func (d DataType) String() string {
	switch d {
	case Void:
		return "void"
	case Int:
		return "int"
	case Bool:
		return "bool"
	case String:
		return "str"
	case Error:
		return "<error>"
	default:
		return "<unknown>"
	}
}
