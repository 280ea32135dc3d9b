package compiler

import (
	"github.com/sadraskol/mia/vm"
)

// DefaultEntry is the name of the binding whose value a program yields.
const DefaultEntry = "main"

// Options configures checking and compilation.
type Options struct {
	File  string // reported in diagnostics
	Entry string // entry binding, DefaultEntry when empty
}

func (o Options) entry() string {
	if o.Entry == "" {
		return DefaultEntry
	}
	return o.Entry
}

// Result holds everything a build produced. On failure the stages that did
// run are still filled in.
type Result struct {
	Program    *Program
	Resolution *Resolution
	Chunk      *vm.Chunk
}

// Build parses, checks and compiles source. The returned error is a
// *TypeError.
func Build(file, source string, opts Options) (*Result, error) {
	opts.File = file
	result := &Result{}

	prog, err := Parse(file, source)
	if err != nil {
		return result, err
	}
	result.Program = prog

	res, err := Check(prog, opts)
	result.Resolution = res
	if err != nil {
		return result, err
	}

	chunk, err := Compile(prog, res, opts)
	if err != nil {
		return result, err
	}
	result.Chunk = chunk
	return result, nil
}

// CheckSource parses and type-checks source without compiling it.
func CheckSource(file, source string, opts Options) (*Result, error) {
	opts.File = file
	result := &Result{}

	prog, err := Parse(file, source)
	if err != nil {
		return result, err
	}
	result.Program = prog

	res, err := Check(prog, opts)
	result.Resolution = res
	return result, err
}
