package compiler

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a compile-time diagnostic. Each kind maps to its own
// process exit status.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindSyntax
	KindUnresolved
	KindOperator
	KindArrayElement
	KindStructField
	KindStructShape
	KindNotCallable
	KindArity
	KindNotAValue
	KindReturn
)

var errorKinds = map[ErrorKind]struct {
	name string
	exit int
}{
	KindInternal:     {"internal", 70},
	KindSyntax:       {"syntax", 65},
	KindUnresolved:   {"unresolved", 12},
	KindOperator:     {"operator", 13},
	KindArrayElement: {"array-element", 231},
	KindStructField:  {"struct-field", 68},
	KindStructShape:  {"struct-shape", 14},
	KindNotCallable:  {"not-callable", 15},
	KindArity:        {"arity", 15},
	KindNotAValue:    {"not-a-value", 16},
	KindReturn:       {"return", 17},
}

func (k ErrorKind) String() string {
	if info, ok := errorKinds[k]; ok {
		return info.name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// ExitCode returns the process exit status for the kind.
func (k ErrorKind) ExitCode() int {
	if info, ok := errorKinds[k]; ok {
		return info.exit
	}
	return 70
}

// TypeError is a diagnostic from parsing, checking or compiling a program.
// Only the first one found is reported.
type TypeError struct {
	Kind ErrorKind
	File string
	Pos  Position
	Msg  string
}

func (e *TypeError) Error() string {
	// Array element diagnostics are reported bare.
	if e.Kind == KindArrayElement || e.Pos.Line == 0 {
		return e.Msg
	}
	file := e.File
	if file == "" {
		file = "<input>"
	}
	return fmt.Sprintf("%s:%d: %s", file, e.Pos.Line, e.Msg)
}

func newError(kind ErrorKind, pos Position, format string, args ...any) *TypeError {
	return &TypeError{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// internalf reports a defect in the compiler itself.
func internalf(format string, args ...any) *TypeError {
	return &TypeError{Kind: KindInternal, Msg: "internal compiler error: " + fmt.Sprintf(format, args...)}
}

// ExitCode returns the exit status for err: the kind's status for a
// *TypeError, 70 for anything else and 0 for nil.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var te *TypeError
	if errors.As(err, &te) {
		return te.Kind.ExitCode()
	}
	return 70
}
