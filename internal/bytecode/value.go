package bytecode

// valueKind tags the variant held by a Value.
type valueKind byte

const (
	valBool valueKind = iota
	valInt
	valObj
)

// Value is the runtime's tagged union: Bool and Int are held inline;
// everything else is a reference to a heap-allocated Obj.
type Value struct {
	kind valueKind
	b    bool
	i    int32
	o    Obj
}

func BoolValue(b bool) Value { return Value{kind: valBool, b: b} }
func IntValue(i int32) Value { return Value{kind: valInt, i: i} }
func ObjValue(o Obj) Value   { return Value{kind: valObj, o: o} }

func (v Value) IsBool() bool { return v.kind == valBool }
func (v Value) IsInt() bool  { return v.kind == valInt }
func (v Value) IsObj() bool  { return v.kind == valObj }

func (v Value) AsBool() bool { return v.b }
func (v Value) AsInt() int32 { return v.i }
func (v Value) AsObj() Obj   { return v.o }

func (v Value) IsString() bool {
	_, ok := v.o.(*ObjString)
	return v.kind == valObj && ok
}

func (v Value) AsString() *ObjString { return v.o.(*ObjString) }

func (v Value) IsFunction() bool {
	_, ok := v.o.(*ObjFunction)
	return v.kind == valObj && ok
}

func (v Value) AsFunction() *ObjFunction { return v.o.(*ObjFunction) }

// Truthy reports the VM's notion of falsiness: only Bool(false) is falsy.
func (v Value) Truthy() bool {
	return !(v.kind == valBool && !v.b)
}

// ValuesEqual implements the language's deep-equality rule: compare by
// tag first, then by value (Int, Bool) or by same-pointer fast path /
// deep byte comparison (Obj). Cross-type comparisons are always false.
func ValuesEqual(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case valBool:
		return a.b == b.b
	case valInt:
		return a.i == b.i
	case valObj:
		if a.o == b.o {
			return true
		}
		as, aok := a.o.(*ObjString)
		bs, bok := b.o.(*ObjString)
		if aok && bok {
			return as.Chars == bs.Chars
		}
		return false
	default:
		return false
	}
}

// String renders a value the way OP_PRINT writes it: no quotes around
// strings, true/false for booleans, decimal for integers.
func (v Value) String() string {
	switch v.kind {
	case valBool:
		if v.b {
			return "true"
		}
		return "false"
	case valInt:
		return itoa(v.i)
	case valObj:
		switch o := v.o.(type) {
		case *ObjString:
			return o.Chars
		case *ObjFunction:
			if o.Name == nil {
				return "<script>"
			}
			return "<fn " + o.Name.Chars + ">"
		}
	}
	return "<value>"
}

func itoa(i int32) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	var buf [12]byte
	pos := len(buf)
	u := uint32(i)
	if neg {
		u = uint32(-int64(i))
	}
	for u > 0 {
		pos--
		buf[pos] = byte('0' + u%10)
		u /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
