package vm

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single bytecode instruction.
// Opcodes are grouped into ranges by category, operands are big-endian.
type Opcode byte

// Stack Operations
const (
	OpPop Opcode = 0x01 // discard top of stack
)

// Push Constants
const (
	OpConstant Opcode = 0x10 // push constant pool entry (16-bit index)
	OpNil      Opcode = 0x11 // push nil
)

// Variable Operations
const (
	OpLoad        Opcode = 0x20 // push local (16-bit slot)
	OpStore       Opcode = 0x21 // pop into local (16-bit slot), growing locals
	OpLoadCapture Opcode = 0x26 // push captured value (16-bit index)
)

// Arithmetic. Each pops left (pushed last) then right.
const (
	OpAdd      Opcode = 0x40 // left + right, numbers or text
	OpSubtract Opcode = 0x41 // left - right
	OpMultiply Opcode = 0x42 // left * right
	OpDivide   Opcode = 0x43 // left / right
)

// Calls and closures
const (
	OpCall        Opcode = 0x50 // pop callee then argc args (8-bit argc)
	OpMakeClosure Opcode = 0x51 // pop n captures, push function (16-bit const, 8-bit n)
)

// Aggregates
const (
	OpMakeArray  Opcode = 0x60 // pop n elements, first pop is element 0 (16-bit n)
	OpMakeStruct Opcode = 0x61 // pop n (name, value) pairs, first pop is field 0 (16-bit n)
)

// Return
const (
	OpReturn Opcode = 0x70 // end frame, yield stack[0]
)

// OpcodeInfo provides metadata about each opcode for disassembly and validation.
type OpcodeInfo struct {
	Name       string // Human-readable name
	StackPop   int    // How many values popped from stack (-1 = variable)
	StackPush  int    // How many values pushed to stack
	OperandLen int    // Number of operand bytes following the opcode
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpPop: {"POP", 1, 0, 0},

	OpConstant: {"CONSTANT", 0, 1, 2},
	OpNil:      {"NIL", 0, 1, 0},

	OpLoad:        {"LOAD", 0, 1, 2},
	OpStore:       {"STORE", 1, 0, 2},
	OpLoadCapture: {"LOAD_CAPTURE", 0, 1, 2},

	OpAdd:      {"ADD", 2, 1, 0},
	OpSubtract: {"SUBTRACT", 2, 1, 0},
	OpMultiply: {"MULTIPLY", 2, 1, 0},
	OpDivide:   {"DIVIDE", 2, 1, 0},

	OpCall:        {"CALL", -1, 1, 1},
	OpMakeClosure: {"MAKE_CLOSURE", -1, 1, 3},

	OpMakeArray:  {"MAKE_ARRAY", -1, 1, 2},
	OpMakeStruct: {"MAKE_STRUCT", -1, 1, 2},

	OpReturn: {"RETURN", 1, 0, 0},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of operand bytes for this opcode.
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// InstructionLen returns the total length of an instruction (1 + operand bytes).
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandLen()
}

// IsArithmetic reports whether op is one of the binary arithmetic opcodes.
func (op Opcode) IsArithmetic() bool {
	return op >= OpAdd && op <= OpDivide
}

// Known reports whether op has an entry in the opcode table.
func (op Opcode) Known() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// AllOpcodes returns a slice of all defined opcodes.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}
