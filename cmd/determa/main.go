// Command determa is the CLI driver: run a .det file, or with no file
// argument, start the interactive REPL.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/AndyFerns/determa"
	"github.com/AndyFerns/determa/internal/bytecode"
	"github.com/AndyFerns/determa/internal/compiler"
	"github.com/AndyFerns/determa/internal/heap"
	"github.com/AndyFerns/determa/internal/lexer"
	"github.com/AndyFerns/determa/internal/parser"
	"github.com/AndyFerns/determa/internal/repl"
	"github.com/AndyFerns/determa/internal/symbols"
	"github.com/AndyFerns/determa/internal/typecheck"
	"github.com/AndyFerns/determa/internal/vm"
)

const (
	versionMajor = 0
	versionMinor = 3
	versionPatch = 0
	versionName  = "Spruce"
)

func bold(s string) string  { return "\x1b[1m" + s + "\x1b[0m" }
func cyan(s string) string  { return "\x1b[36m" + s + "\x1b[0m" }
func gray(s string) string  { return "\x1b[90m" + s + "\x1b[0m" }
func green(s string) string { return "\x1b[32m" + s + "\x1b[0m" }

func main() {
	help := flag.Bool("help", false, "Show this help message.")
	flag.BoolVar(help, "h", false, "Show this help message.")
	version := flag.Bool("version", false, "Show version information.")
	flag.BoolVar(version, "v", false, "Show version information.")
	debug := flag.Bool("pda-debug", false, "Enable Parser/PDA stack trace logging.")
	flag.BoolVar(debug, "d", false, "Enable Parser/PDA stack trace logging.")
	flag.Usage = printHelp
	flag.Parse()

	switch {
	case *help:
		printHelp()
		return
	case *version:
		printVersion()
		return
	}

	args := flag.Args()
	switch len(args) {
	case 0:
		if err := repl.Run(os.Stdout, os.Stderr); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case 1:
		os.Exit(runFile(args[0], *debug))
	default:
		fmt.Fprintln(os.Stderr, "determa: expected at most one file argument")
		os.Exit(2)
	}
}

func runFile(path string, debug bool) int {
	if !strings.HasSuffix(path, ".det") {
		fmt.Fprintf(os.Stderr, "determa: warning: %q does not have a .det extension\n", path)
	}

	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "determa: cannot read %s: %v\n", path, err)
		return 1
	}

	if debug {
		return runWithDisassembly(string(src))
	}

	rt := determa.NewRuntime(os.Stdout, os.Stderr)
	if status, err := determa.Run(string(src), rt); err != nil {
		fmt.Fprintf(os.Stderr, "determa: %s: %s\n", status, err)
		return 1
	}
	return 0
}

// runWithDisassembly mirrors determa.Run's pipeline stage by stage, since
// -d/--pda-debug writes the parser's push/pop trace to stderr and needs
// the compiled chunk dumped before it is handed to the VM. It drives its
// own parser/gc/compiler/vm directly rather than also calling determa.Run,
// so the program's side effects (OP_PRINT output) happen exactly once.
func runWithDisassembly(src string) int {
	p := parser.New(lexer.New(src))
	p.Trace = os.Stderr
	prog := p.ParseProgram()
	if perrs := p.Errors(); len(perrs) != 0 {
		fmt.Fprintln(os.Stderr, strings.Join(perrs, "\n"))
		return 1
	}

	if _, terrs := typecheck.Check(symbols.New(), prog); len(terrs) != 0 {
		fmt.Fprintln(os.Stderr, strings.Join(terrs, "\n"))
		return 1
	}

	gc := heap.New()
	machine := vm.New(gc, os.Stdout, os.Stderr)
	c := compiler.New(gc, compiler.NewGlobalTable())
	fn, cerrs := c.Compile(heap.Roots{Globals: machine.Globals()}, prog)
	if len(cerrs) != 0 {
		fmt.Fprintln(os.Stderr, strings.Join(cerrs, "\n"))
		return 1
	}

	bytecode.NewDisassembler(os.Stdout).DisassembleFunction("script", fn)

	if _, err := machine.Run(fn); err != nil {
		fmt.Fprintf(os.Stderr, "determa: runtime error: %s\n", err)
		return 1
	}
	return 0
}

func printVersion() {
	fmt.Printf("%s v%d.%d '%s'\n", cyan(bold("Determa")), versionMajor, versionMinor, versionName)
	fmt.Println(gray("A statically-typed, garbage-collected language."))
}

func printHelp() {
	printVersion()
	fmt.Println()
	fmt.Println(bold("USAGE:"))
	fmt.Println("  determa [options] [file]")
	fmt.Println()
	fmt.Println(bold("OPTIONS:"))
	fmt.Println("  " + green("-h, --help") + "        Show this help message.")
	fmt.Println("  " + green("-v, --version") + "     Show version information.")
	fmt.Println("  " + green("-d, --pda-debug") + "   Enable Parser/PDA stack trace logging.")
	fmt.Println()
	fmt.Println(bold("EXAMPLES:"))
	fmt.Println("  " + cyan("determa") + "                  Start interactive REPL")
	fmt.Println("  " + cyan("determa script.det") + "       Run a script file")
	fmt.Println("  " + cyan("determa -d script.det") + "    Run with debug mode")
	fmt.Println()
}
