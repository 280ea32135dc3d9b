package vm

import (
	"encoding/binary"
	"fmt"
)

// BytecodeVersion is the current bytecode format version.
// Increment when making incompatible changes to the format.
const BytecodeVersion uint16 = 1

// MaxOperand is the largest value a 16-bit operand can carry.
const MaxOperand = 0xFFFF

// SourceLocation maps bytecode position to source location for diagnostics.
type SourceLocation struct {
	BytecodeOffset uint32 // Offset in code section
	Line           uint32 // Source line number (1-based)
	Column         uint16 // Source column number (1-based)
}

// Chunk is one compiled unit: the top-level program or a function body.
// A chunk is not modified after the compiler returns it.
type Chunk struct {
	Version uint16
	Name    string // "<main>" for the top level, otherwise the function name

	// Code section
	Code []byte

	// Constant pool: literals, field names and function prototypes
	Constants []Value

	// Parameter information
	ParamCount int
	ParamNames []string

	// Local variables
	LocalCount int      // slots the compiler allocated, a sizing hint for frames
	VarNames   []string // slot -> declared name, for disassembly

	// Debug information
	SourceMap []SourceLocation
}

// NewChunk creates a new empty chunk with the current version.
func NewChunk(name string) *Chunk {
	return &Chunk{
		Version:   BytecodeVersion,
		Name:      name,
		Code:      make([]byte, 0, 64),
		Constants: make([]Value, 0, 8),
	}
}

// AddConstant adds a value to the pool and returns its index.
// Numbers, texts and nil are deduplicated; functions always get a new entry.
func (c *Chunk) AddConstant(value Value) (uint16, error) {
	for i, existing := range c.Constants {
		if sameConstant(existing, value) {
			return uint16(i), nil
		}
	}
	if len(c.Constants) > MaxOperand {
		return 0, fmt.Errorf("constant pool of %s exceeds %d entries", c.Name, MaxOperand+1)
	}
	idx := uint16(len(c.Constants))
	c.Constants = append(c.Constants, value)
	return idx, nil
}

// GetConstant returns the constant at the given index.
func (c *Chunk) GetConstant(index uint16) (Value, bool) {
	if int(index) >= len(c.Constants) {
		return nil, false
	}
	return c.Constants[index], true
}

// Emit appends a single-byte opcode to the code section.
func (c *Chunk) Emit(op Opcode) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op))
	return offset
}

// EmitWithOperand appends an opcode with raw operand bytes.
func (c *Chunk) EmitWithOperand(op Opcode, operands ...byte) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op))
	c.Code = append(c.Code, operands...)
	return offset
}

// EmitUint16 appends an opcode with a single 16-bit operand.
func (c *Chunk) EmitUint16(op Opcode, operand uint16) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op))
	c.Code = binary.BigEndian.AppendUint16(c.Code, operand)
	return offset
}

// EmitConstant adds value to the pool and emits OpConstant for it.
func (c *Chunk) EmitConstant(value Value) (int, error) {
	idx, err := c.AddConstant(value)
	if err != nil {
		return 0, err
	}
	return c.EmitUint16(OpConstant, idx), nil
}

// CurrentOffset returns the current offset in the code section.
func (c *Chunk) CurrentOffset() int {
	return len(c.Code)
}

// EndsWithReturn reports whether the last instruction is OpReturn.
func (c *Chunk) EndsWithReturn() bool {
	last := -1
	for offset := 0; offset < len(c.Code); {
		last = offset
		offset += Opcode(c.Code[offset]).InstructionLen()
	}
	return last >= 0 && Opcode(c.Code[last]) == OpReturn
}

// AddSourceLocation records that the code emitted from offset on came from
// the given source position. Consecutive entries for the same line and column
// are collapsed.
func (c *Chunk) AddSourceLocation(bytecodeOffset uint32, line uint32, column uint16) {
	if n := len(c.SourceMap); n > 0 {
		last := c.SourceMap[n-1]
		if last.Line == line && last.Column == column {
			return
		}
	}
	c.SourceMap = append(c.SourceMap, SourceLocation{
		BytecodeOffset: bytecodeOffset,
		Line:           line,
		Column:         column,
	})
}

// GetSourceLocation returns the source location for a bytecode offset.
// Returns line 0, column 0 if no mapping exists.
func (c *Chunk) GetSourceLocation(offset uint32) (line uint32, column uint16) {
	for i := len(c.SourceMap) - 1; i >= 0; i-- {
		if c.SourceMap[i].BytecodeOffset <= offset {
			return c.SourceMap[i].Line, c.SourceMap[i].Column
		}
	}
	return 0, 0
}

// readUint16 reads a big-endian operand at offset.
func (c *Chunk) readUint16(offset int) uint16 {
	return binary.BigEndian.Uint16(c.Code[offset:])
}

// varName returns the declared name of a slot, or "".
func (c *Chunk) varName(slot int) string {
	if slot >= 0 && slot < len(c.VarNames) {
		return c.VarNames[slot]
	}
	return ""
}
