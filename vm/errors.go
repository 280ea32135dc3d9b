package vm

import (
	"errors"
	"fmt"
)

// Sentinel causes for RuntimeError. They are invariant violations of the
// bytecode, not conditions a mia program can recover from.
var (
	ErrStackUnderflow    = errors.New("stack underflow")
	ErrUninitializedSlot = errors.New("read of uninitialized local slot")
	ErrBadConstant       = errors.New("constant index out of range")
	ErrBadCapture        = errors.New("capture index out of range")
	ErrBadOperand        = errors.New("operand kinds not supported by operator")
	ErrArity             = errors.New("argument count does not match function arity")
	ErrFrameOverflow     = errors.New("call depth limit exceeded")
	ErrUnknownOpcode     = errors.New("unknown opcode")
	ErrTruncated         = errors.New("truncated instruction")
)

// RuntimeError reports where in the bytecode execution failed.
type RuntimeError struct {
	Chunk  string // name of the chunk being executed
	Offset int    // offset of the failing instruction
	Op     Opcode
	Line   int // source line, 0 if unknown
	Err    error
}

func (e *RuntimeError) Error() string {
	msg := e.Err.Error()
	if e.Line > 0 {
		return fmt.Sprintf("%s at %s+%04X (line %d, %s)", msg, e.Chunk, e.Offset, e.Line, e.Op)
	}
	return fmt.Sprintf("%s at %s+%04X (%s)", msg, e.Chunk, e.Offset, e.Op)
}

func (e *RuntimeError) Unwrap() error { return e.Err }
