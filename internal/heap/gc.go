// Package heap implements the non-moving mark-and-sweep collector over
// the bytecode package's heap objects (strings, function objects).
package heap

import "github.com/AndyFerns/determa/internal/bytecode"

const initialThreshold = 1 << 10

// Roots is the snapshot of every GC root at the moment a collection
// starts: the operand stack, the globals array, every function object
// live on the call-frame array, and the currently-compiling chunk's
// constant pool (empty when no compilation is in progress).
type Roots struct {
	Stack     []bytecode.Value
	Globals   []bytecode.Value
	Frames    []*bytecode.ObjFunction
	Compiling []bytecode.Value
}

// GC owns the single intrusive heap linked list and drives allocation
// accounting and collection. It is not safe for concurrent use; the
// language is single-threaded.
type GC struct {
	head           bytecode.Obj
	bytesAllocated int
	nextThreshold  int
	gray           []bytecode.Obj // host-allocated worklist, never on the GC heap
	StressTest     bool           // collect on every growing allocation, for tests
}

// New returns a GC with an empty heap.
func New() *GC {
	return &GC{nextThreshold: initialThreshold}
}

// BytesAllocated reports current heap usage, for tests and diagnostics.
func (g *GC) BytesAllocated() int { return g.bytesAllocated }

// NextThreshold reports the byte count that triggers the next collection.
func (g *GC) NextThreshold() int { return g.nextThreshold }

// HeapObjects reports how many objects are currently linked on the heap.
func (g *GC) HeapObjects() int {
	n := 0
	for o := g.head; o != nil; o = o.Next() {
		n++
	}
	return n
}

// NewString allocates a detached ObjString, tracking it on the heap. It
// may trigger a collection before linking the new object in, exactly as
// any other growing allocation would.
func (g *GC) NewString(roots Roots, s string) *bytecode.ObjString {
	obj := bytecode.NewObjString(s)
	g.track(obj, roots)
	return obj
}

// NewFunction allocates a detached ObjFunction with a fresh chunk.
func (g *GC) NewFunction(roots Roots) *bytecode.ObjFunction {
	obj := bytecode.NewObjFunction()
	g.track(obj, roots)
	return obj
}

// track performs the allocation-accounting wrapper every heap object
// passes through: bump bytesAllocated, collect first if that growth
// crosses the threshold (the new object is not yet linked into the heap
// list at that point, so the collector never sees and cannot sweep it),
// then link it in.
func (g *GC) track(obj bytecode.Obj, roots Roots) {
	g.bytesAllocated += obj.Size()
	if g.bytesAllocated > g.nextThreshold || g.StressTest {
		g.Collect(roots)
	}
	obj.SetNext(g.head)
	g.head = obj
}

// Collect runs one full mark-sweep cycle against roots.
func (g *GC) Collect(roots Roots) {
	g.gray = g.gray[:0]

	for _, v := range roots.Stack {
		g.markValue(v)
	}
	for _, v := range roots.Globals {
		g.markValue(v)
	}
	for _, fn := range roots.Frames {
		if fn != nil {
			g.markObject(fn)
		}
	}
	for _, v := range roots.Compiling {
		g.markValue(v)
	}

	for len(g.gray) > 0 {
		obj := g.gray[len(g.gray)-1]
		g.gray = g.gray[:len(g.gray)-1]
		g.blacken(obj)
	}

	g.sweep()

	g.nextThreshold = g.bytesAllocated * 2
	if g.nextThreshold < initialThreshold {
		g.nextThreshold = initialThreshold
	}
}

func (g *GC) markValue(v bytecode.Value) {
	if v.IsObj() {
		g.markObject(v.AsObj())
	}
}

// markObject is a no-op on nil and on an already-marked object, so
// re-entry through a shared reference is cheap and idempotent.
func (g *GC) markObject(o bytecode.Obj) {
	if o == nil || o.Marked() {
		return
	}
	o.SetMarked(true)
	g.gray = append(g.gray, o)
}

func (g *GC) blacken(o bytecode.Obj) {
	switch obj := o.(type) {
	case *bytecode.ObjString:
		// no references
	case *bytecode.ObjFunction:
		if obj.Name != nil {
			g.markObject(obj.Name)
		}
		for _, c := range obj.Chunk.Constants {
			g.markValue(c)
		}
	}
}

// sweep walks the heap list once, unlinking and discarding every object
// whose mark bit is still false, and clearing the bit on every survivor.
func (g *GC) sweep() {
	var prev bytecode.Obj
	obj := g.head
	for obj != nil {
		next := obj.Next()
		if obj.Marked() {
			obj.SetMarked(false)
			prev = obj
		} else {
			if prev == nil {
				g.head = next
			} else {
				prev.SetNext(next)
			}
			g.bytesAllocated -= obj.Size()
		}
		obj = next
	}
}
