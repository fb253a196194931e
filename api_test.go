package determa

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunPrintsToStdout(t *testing.T) {
	var stdout bytes.Buffer
	rt := NewRuntime(&stdout, nil)

	status, err := Run(`print 1 + 2;`, rt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != StatusOK {
		t.Fatalf("status = %v, want StatusOK", status)
	}
	if got := stdout.String(); got != "3\n" {
		t.Fatalf("stdout = %q, want %q", got, "3\n")
	}
}

func TestRunPersistsGlobalsAcrossCalls(t *testing.T) {
	var stdout bytes.Buffer
	rt := NewRuntime(&stdout, nil)

	if status, err := Run(`var x = 10;`, rt); err != nil || status != StatusOK {
		t.Fatalf("first Run: status=%v err=%v", status, err)
	}
	if status, err := Run(`print x * 2;`, rt); err != nil || status != StatusOK {
		t.Fatalf("second Run: status=%v err=%v", status, err)
	}
	if got := stdout.String(); got != "20\n" {
		t.Fatalf("stdout = %q, want %q", got, "20\n")
	}
}

// TestGlobalsSurviveCollectionTriggeredByALaterCompile exercises a
// persistent Runtime across a compile large enough to cross the GC's
// initial byte threshold: the earlier Run's global must stay reachable
// through rt.machine.Globals() as a compile root, not just the operand
// stack and the in-progress chunk.
func TestGlobalsSurviveCollectionTriggeredByALaterCompile(t *testing.T) {
	var stdout bytes.Buffer
	rt := NewRuntime(&stdout, nil)

	if status, err := Run(`var greeting = "kept across a later GC";`, rt); err != nil || status != StatusOK {
		t.Fatalf("first Run: status=%v err=%v", status, err)
	}

	big := `"` + strings.Repeat("x", 1200) + `";`
	if status, err := Run(big, rt); err != nil || status != StatusOK {
		t.Fatalf("second Run (forces a GC cycle mid-compile): status=%v err=%v", status, err)
	}

	stdout.Reset()
	if status, err := Run(`print greeting;`, rt); err != nil || status != StatusOK {
		t.Fatalf("third Run: status=%v err=%v", status, err)
	}
	if got := stdout.String(); got != "kept across a later GC\n" {
		t.Fatalf("stdout = %q, want %q", got, "kept across a later GC\n")
	}
}

func TestRunReportsParseError(t *testing.T) {
	rt := NewRuntime(nil, nil)

	status, err := Run(`var x = ;`, rt)
	if status != StatusParseError {
		t.Fatalf("status = %v, want StatusParseError", status)
	}
	if err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestRunReportsTypeError(t *testing.T) {
	rt := NewRuntime(nil, nil)

	status, err := Run(`var x = 1; x = "nope";`, rt)
	if status != StatusTypeError {
		t.Fatalf("status = %v, want StatusTypeError", status)
	}
	if err == nil {
		t.Fatal("expected a type error")
	}
}

func TestRunReportsRuntimeErrorWithFrameTrace(t *testing.T) {
	var stderr bytes.Buffer
	rt := NewRuntime(nil, &stderr)

	status, err := Run(`
		func divide(a, b): int {
			return a / b;
		}
		print divide(1, 0);
	`, rt)
	if status != StatusRuntimeError {
		t.Fatalf("status = %v, want StatusRuntimeError", status)
	}
	rte, ok := err.(*RuntimeError)
	if !ok {
		t.Fatalf("err = %T, want *RuntimeError", err)
	}
	if rte.Message != "Division by zero." {
		t.Fatalf("Message = %q", rte.Message)
	}
	if len(rte.Stack) == 0 {
		t.Fatal("expected a non-empty frame trace")
	}
	if rte.Stack[0].Name != "divide" {
		t.Fatalf("innermost frame = %q, want %q", rte.Stack[0].Name, "divide")
	}
	if !strings.Contains(rte.Error(), "Division by zero.") {
		t.Fatalf("Error() = %q", rte.Error())
	}
}

func TestInteractiveRuntimeForgivesRedeclaration(t *testing.T) {
	var stdout bytes.Buffer
	rt := NewRuntime(&stdout, nil)
	rt.Interactive = true

	if status, err := Run(`var x = 1;`, rt); err != nil || status != StatusOK {
		t.Fatalf("first Run: status=%v err=%v", status, err)
	}
	if status, err := Run(`var x = 2;`, rt); err != nil || status != StatusOK {
		t.Fatalf("redeclaration should be forgiven in interactive mode: status=%v err=%v", status, err)
	}
	if status, err := Run(`print x;`, rt); err != nil || status != StatusOK {
		t.Fatalf("third Run: status=%v err=%v", status, err)
	}
	if got := stdout.String(); got != "2\n" {
		t.Fatalf("stdout = %q, want %q", got, "2\n")
	}
}

func TestNonInteractiveRuntimeRejectsRedeclaration(t *testing.T) {
	rt := NewRuntime(nil, nil)

	if status, err := Run(`var x = 1;`, rt); err != nil || status != StatusOK {
		t.Fatalf("first Run: status=%v err=%v", status, err)
	}
	status, err := Run(`var x = 2;`, rt)
	if status != StatusTypeError {
		t.Fatalf("status = %v, want StatusTypeError", status)
	}
	if err == nil {
		t.Fatal("expected a redeclaration error")
	}
}

func TestRuntimeRecoversAfterRuntimeError(t *testing.T) {
	var stdout bytes.Buffer
	rt := NewRuntime(&stdout, nil)

	if status, _ := Run(`print 1 / 0;`, rt); status != StatusRuntimeError {
		t.Fatalf("status = %v, want StatusRuntimeError", status)
	}
	if status, err := Run(`print 42;`, rt); err != nil || status != StatusOK {
		t.Fatalf("Run after a runtime error: status=%v err=%v", status, err)
	}
	if got := stdout.String(); got != "42\n" {
		t.Fatalf("stdout = %q, want %q", got, "42\n")
	}
}

func TestStatusStringer(t *testing.T) {
	cases := map[Status]string{
		StatusOK:           "ok",
		StatusParseError:   "parse error",
		StatusTypeError:    "type error",
		StatusCompileError: "compile error",
		StatusRuntimeError: "runtime error",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Fatalf("Status(%d).String() = %q, want %q", status, got, want)
		}
	}
}
