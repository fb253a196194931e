package bytecode

// ObjKind tags the payload kind of a heap object.
type ObjKind int

const (
	ObjKindString ObjKind = iota
	ObjKindFunction
)

// Obj is satisfied by every heap-allocated object. The garbage collector
// mutates Marked/Next directly during mark and sweep, so these are plain
// methods over an embedded header rather than an opaque handle.
type Obj interface {
	Kind() ObjKind
	Marked() bool
	SetMarked(bool)
	Next() Obj
	SetNext(Obj)
	// Size reports the number of bytes this object contributes to
	// bytesAllocated, for the GC's allocation accounting.
	Size() int
}

// objHeader is embedded in every concrete Obj. next threads the
// intrusive heap list; mark is the per-cycle reachability bit.
type objHeader struct {
	mark bool
	next Obj
}

func (h *objHeader) Marked() bool    { return h.mark }
func (h *objHeader) SetMarked(m bool) { h.mark = m }
func (h *objHeader) Next() Obj       { return h.next }
func (h *objHeader) SetNext(n Obj)   { h.next = n }

// ObjString is a heap-allocated, immutable byte string. Strings are not
// interned: every allocation is independent and equality is always a
// deep byte compare (see ValuesEqual).
type ObjString struct {
	objHeader
	Chars string
}

func (s *ObjString) Kind() ObjKind { return ObjKindString }
func (s *ObjString) Size() int     { return 16 + len(s.Chars) }

// NewObjString allocates a detached ObjString. Callers must make it
// GC-reachable (push it, store it in a chunk's constant pool, etc.)
// before triggering another allocation.
func NewObjString(s string) *ObjString {
	return &ObjString{Chars: s}
}

// ObjFunction is a compiled function: its declared arity, optional name
// (nil for the implicit top-level script), and its bytecode chunk.
type ObjFunction struct {
	objHeader
	Arity int
	Name  *ObjString
	Chunk *Chunk
}

func (f *ObjFunction) Kind() ObjKind { return ObjKindFunction }
func (f *ObjFunction) Size() int     { return 48 }

// NewObjFunction allocates a detached, empty function object with a
// fresh chunk ready for the compiler to emit into.
func NewObjFunction() *ObjFunction {
	return &ObjFunction{Chunk: NewChunk()}
}
