package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sadraskol/mia/compiler"
	"github.com/sadraskol/mia/format"
	"github.com/sadraskol/mia/vm"
)

const replFile = "<repl>"

// repl keeps the declarations entered so far. Every evaluation compiles
// them again in front of the new input.
type repl struct {
	out     io.Writer
	entry   string
	vmOpts  []vm.Option
	prelude strings.Builder
	lines   int
}

// runREPL starts an interactive read-eval-print loop
func runREPL(in io.Reader, out io.Writer, opts *options) {
	r := &repl{
		out:    out,
		entry:  opts.entry,
		vmOpts: []vm.Option{vm.WithMaxFrames(opts.maxFrames)},
	}

	fmt.Fprintln(out, "mia REPL (type 'exit' to quit, ':help' for commands)")

	scanner := bufio.NewScanner(in)
	var buf strings.Builder
	depth := 0

	for {
		if buf.Len() == 0 {
			fmt.Fprint(out, ">> ")
		} else {
			fmt.Fprint(out, ".. ")
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()

		if buf.Len() == 0 {
			trimmed := strings.TrimSpace(line)
			if trimmed == "exit" || trimmed == "quit" {
				break
			}
			if strings.HasPrefix(trimmed, ":") {
				r.command(trimmed)
				continue
			}
		}

		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(line)
		depth += strings.Count(line, "{") - strings.Count(line, "}")

		// A blank line, or a complete statement at depth zero, ends the input.
		trimmed := strings.TrimSpace(line)
		complete := depth <= 0 && (strings.HasSuffix(trimmed, ";") || strings.HasSuffix(trimmed, "}"))
		if trimmed == "" || complete {
			input := strings.TrimSpace(buf.String())
			buf.Reset()
			depth = 0
			if input != "" {
				r.eval(input)
			}
		}
	}

	fmt.Fprintln(out)
}

func (r *repl) command(cmd string) {
	switch cmd {
	case ":help", ":h", ":?":
		fmt.Fprintln(r.out, "REPL Commands:")
		fmt.Fprintln(r.out, "  :help, :h, :?     Show this help")
		fmt.Fprintln(r.out, "  :defs             Show the declarations entered so far")
		fmt.Fprintln(r.out, "  :reset            Forget every declaration")
		fmt.Fprintln(r.out, "  exit, quit        Exit REPL")
	case ":defs":
		fmt.Fprint(r.out, r.prelude.String())
	case ":reset":
		r.prelude.Reset()
		r.lines = 0
		fmt.Fprintln(r.out, "declarations cleared")
	default:
		fmt.Fprintf(r.out, "Unknown command: %s (type :help for commands)\n", cmd)
	}
}

// eval treats input made only of declarations as a definition and anything
// else as an expression whose value is printed.
func (r *repl) eval(input string) {
	if prog, err := compiler.Parse(replFile, input); err == nil && onlyDeclarations(prog, r.entry) {
		r.define(input)
		return
	}

	expr := strings.TrimSuffix(strings.TrimSpace(input), ";")
	source := r.prelude.String() + "pub let " + r.entry + " = " + expr + ";\n"
	result, err := compiler.Build(replFile, source, compiler.Options{Entry: r.entry})
	if err != nil {
		r.printError(err)
		return
	}
	value, err := vm.Execute(result.Chunk, r.vmOpts...)
	if err != nil {
		fmt.Fprintf(r.out, "runtime error: %v\n", err)
		return
	}
	if value == nil {
		fmt.Fprintln(r.out, "null")
		return
	}
	fmt.Fprintln(r.out, format.JSON(value))
}

func (r *repl) define(input string) {
	source := r.prelude.String() + input + "\n"
	if _, err := compiler.Build(replFile, source, compiler.Options{Entry: r.entry}); err != nil {
		r.printError(err)
		return
	}
	r.prelude.WriteString(input)
	r.prelude.WriteString("\n")
	r.lines += strings.Count(input, "\n") + 1
}

// printError reports a diagnostic with lines counted from the current input.
func (r *repl) printError(err error) {
	var te *compiler.TypeError
	if errors.As(err, &te) && te.Pos.Line > r.lines {
		shifted := *te
		shifted.Pos.Line -= r.lines
		err = &shifted
	}
	fmt.Fprintln(r.out, err)
}

// onlyDeclarations reports whether prog only declares names, none of them
// the public entry binding.
func onlyDeclarations(prog *compiler.Program, entry string) bool {
	if len(prog.Statements) == 0 {
		return false
	}
	for _, stmt := range prog.Statements {
		switch d := stmt.(type) {
		case *compiler.LetStmt:
			if d.Public && d.Name == entry {
				return false
			}
		case *compiler.FnDecl, *compiler.StructDecl, *compiler.ImportStmt:
		default:
			return false
		}
	}
	return true
}
