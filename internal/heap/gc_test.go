package heap

import (
	"testing"

	"github.com/AndyFerns/determa/internal/bytecode"
)

func TestCollectUnrootedStringIsFreed(t *testing.T) {
	gc := New()
	gc.NewString(Roots{}, "unrooted")
	before := gc.BytesAllocated()
	if before == 0 {
		t.Fatalf("expected nonzero bytesAllocated after allocation")
	}

	gc.Collect(Roots{})

	if gc.HeapObjects() != 0 {
		t.Fatalf("expected empty heap after collecting an unrooted object, got %d objects", gc.HeapObjects())
	}
	if gc.BytesAllocated() >= before {
		t.Fatalf("expected bytesAllocated to strictly decrease, before=%d after=%d", before, gc.BytesAllocated())
	}
}

func TestCollectRootedStringSurvives(t *testing.T) {
	gc := New()
	s := gc.NewString(Roots{}, "rooted")
	roots := Roots{Stack: []bytecode.Value{bytecode.ObjValue(s)}}

	before := gc.BytesAllocated()
	gc.Collect(roots)
	if gc.BytesAllocated() != before {
		t.Fatalf("expected bytesAllocated unchanged while rooted, before=%d after=%d", before, gc.BytesAllocated())
	}
	if gc.HeapObjects() != 1 {
		t.Fatalf("expected string to survive while on the stack root")
	}

	gc.Collect(Roots{}) // pop: no longer rooted
	if gc.HeapObjects() != 0 {
		t.Fatalf("expected string freed once no longer rooted")
	}
}

// TestCollectRootedThroughGlobalsSurvives mirrors
// TestCollectRootedStringSurvives but roots the string the way a
// persistent-Runtime compile does between calls: through the VM's
// globals array, not the operand stack. This is the exact path a
// second-or-later compile against an already-running globals array
// depends on.
func TestCollectRootedThroughGlobalsSurvives(t *testing.T) {
	gc := New()
	s := gc.NewString(Roots{}, "declared on an earlier line")
	globals := []bytecode.Value{bytecode.ObjValue(s)}
	roots := Roots{Globals: globals}

	before := gc.BytesAllocated()
	gc.Collect(roots)
	if gc.BytesAllocated() != before {
		t.Fatalf("expected bytesAllocated unchanged while rooted via Globals, before=%d after=%d", before, gc.BytesAllocated())
	}
	if gc.HeapObjects() != 1 {
		t.Fatalf("expected string rooted via Globals to survive collection")
	}

	globals[0] = bytecode.Value{} // the slot is overwritten; no longer rooted
	gc.Collect(Roots{Globals: globals})
	if gc.HeapObjects() != 0 {
		t.Fatalf("expected string freed once its global slot no longer references it")
	}
}

func TestSurvivorsHaveMarkBitCleared(t *testing.T) {
	gc := New()
	s := gc.NewString(Roots{}, "kept")
	roots := Roots{Stack: []bytecode.Value{bytecode.ObjValue(s)}}
	gc.Collect(roots)

	if s.Marked() {
		t.Fatalf("expected surviving object's mark bit cleared after collection")
	}
}

func TestFunctionRootsItsNameAndConstants(t *testing.T) {
	gc := New()
	name := gc.NewString(Roots{}, "f")
	fn := gc.NewFunction(Roots{})
	fn.Name = name

	nested := gc.NewString(Roots{}, "nested")
	idx, err := fn.Chunk.AddConstant(bytecode.ObjValue(nested))
	if err != nil {
		t.Fatal(err)
	}
	_ = idx

	roots := Roots{Frames: []*bytecode.ObjFunction{fn}}
	gc.Collect(roots)

	if gc.HeapObjects() != 3 {
		t.Fatalf("expected function, name, and nested constant to all survive, got %d objects", gc.HeapObjects())
	}
}

func TestMarkObjectNilIsNoop(t *testing.T) {
	gc := New()
	gc.markObject(nil)
	if len(gc.gray) != 0 {
		t.Fatalf("expected marking nil to be a no-op")
	}
}

func TestMarkObjectIdempotent(t *testing.T) {
	gc := New()
	s := gc.NewString(Roots{}, "x")
	gc.markObject(s)
	gc.markObject(s)
	if len(gc.gray) != 1 {
		t.Fatalf("expected marking the same object twice to enqueue it once, got %d", len(gc.gray))
	}
}
