// Package repl is the interactive prompt: line editing and persistent
// history over determa.Run, reusing one persistent determa.Runtime across
// every line the way a REPL must for earlier declarations to stay visible.
package repl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/AndyFerns/determa"
	"github.com/AndyFerns/determa/internal/runtime"
)

const (
	historyFile = ".determa_history"
	promptMain  = "det> "
)

const helpHeader = `Determa REPL commands:
  help     show this message, including built-ins
  clear    clear the screen
  exit     leave the REPL (Ctrl+D also works)

Built-ins:
`

func red(s string) string { return "\x1b[31m" + s + "\x1b[0m" }

func helpText() string {
	var b strings.Builder
	b.WriteString(helpHeader)
	for _, spec := range runtime.All() {
		fmt.Fprintf(&b, "  %s (%d argument", spec.Name, spec.Arity)
		if spec.Arity != 1 {
			b.WriteByte('s')
		}
		b.WriteString(")\n")
	}
	return b.String()
}

// Run starts the interactive prompt, reading from stdin and writing
// program output and diagnostics to out/errOut (os.Stdout/os.Stderr by
// default if nil). It returns when the user exits (Ctrl+D, "exit") or an
// unrecoverable line-editor error occurs.
func Run(out, errOut io.Writer) error {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}

	fmt.Fprintln(out, "Determa REPL. Type 'help' for commands, Ctrl+D to exit.")

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	histPath := historyPath()
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			f.Close()
		}
	}()

	rt := determa.NewRuntime(out, errOut)
	rt.Interactive = true

	for {
		line, err := ln.Prompt(promptMain)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ln.AppendHistory(line)

		switch line {
		case "exit", "quit":
			return nil
		case "help":
			fmt.Fprint(out, helpText())
			continue
		case "clear":
			fmt.Fprint(out, "\x1b[2J\x1b[H")
			continue
		}

		if _, err := determa.Run(line, rt); err != nil {
			fmt.Fprintln(errOut, red(err.Error()))
			continue
		}
	}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return historyFile
	}
	return filepath.Join(home, historyFile)
}
