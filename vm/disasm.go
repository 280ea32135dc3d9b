package vm

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable bytecode listing for the chunk.
// Function constants are listed after the chunk that holds them.
func (c *Chunk) Disassemble() string {
	var sb strings.Builder
	c.disassembleInto(&sb)
	return sb.String()
}

func (c *Chunk) disassembleInto(sb *strings.Builder) {
	// Header
	fmt.Fprintf(sb, "; === %s ===\n", c.Name)
	fmt.Fprintf(sb, "; mia bytecode v%d\n", c.Version)

	// Parameters
	if c.ParamCount > 0 {
		fmt.Fprintf(sb, "; Parameters (%d): %s\n", c.ParamCount, strings.Join(c.ParamNames, ", "))
	}

	// Locals
	if c.LocalCount > 0 {
		fmt.Fprintf(sb, "; Locals: %d slots\n", c.LocalCount)
	}

	sb.WriteString("\n")

	// Constants
	if len(c.Constants) > 0 {
		sb.WriteString("; Constants:\n")
		for i, v := range c.Constants {
			fmt.Fprintf(sb, ";   [%3d] %s\n", i, constantPreview(v, 40))
		}
		sb.WriteString("\n")
	}

	// Code section
	sb.WriteString("; Code:\n")
	for offset := 0; offset < len(c.Code); {
		line, instrLen := c.DisassembleInstruction(offset)
		if srcLine, srcCol := c.GetSourceLocation(uint32(offset)); srcLine > 0 {
			fmt.Fprintf(sb, "%04X  %-30s ; line %d:%d\n", offset, line, srcLine, srcCol)
		} else {
			fmt.Fprintf(sb, "%04X  %s\n", offset, line)
		}
		offset += instrLen
	}

	for _, v := range c.Constants {
		if fn, ok := v.(*Function); ok && fn.Chunk != nil {
			sb.WriteString("\n")
			fn.Chunk.disassembleInto(sb)
		}
	}
}

// DisassembleInstruction formats the instruction at offset and returns it
// with the instruction length. A truncated instruction consumes the rest of
// the code.
func (c *Chunk) DisassembleInstruction(offset int) (string, int) {
	if offset >= len(c.Code) {
		return "<end of code>", 0
	}

	op := Opcode(c.Code[offset])
	if !op.Known() {
		return op.String(), 1
	}
	if offset+op.InstructionLen() > len(c.Code) {
		return fmt.Sprintf("%s <truncated>", op), len(c.Code) - offset
	}

	switch op {
	case OpConstant:
		idx := c.readUint16(offset + 1)
		if v, ok := c.GetConstant(idx); ok {
			return fmt.Sprintf("CONSTANT %d ; %s", idx, constantPreview(v, 20)), 3
		}
		return fmt.Sprintf("CONSTANT %d ; <out of range>", idx), 3

	case OpLoad, OpStore:
		slot := c.readUint16(offset + 1)
		if name := c.varName(int(slot)); name != "" {
			return fmt.Sprintf("%s %d ; %s", op, slot, name), 3
		}
		return fmt.Sprintf("%s %d", op, slot), 3

	case OpLoadCapture, OpMakeArray, OpMakeStruct:
		return fmt.Sprintf("%s %d", op, c.readUint16(offset+1)), 3

	case OpCall:
		return fmt.Sprintf("CALL argc=%d", c.Code[offset+1]), 2

	case OpMakeClosure:
		idx := c.readUint16(offset + 1)
		n := c.Code[offset+3]
		name := "<not a function>"
		if v, ok := c.GetConstant(idx); ok {
			if fn, isFn := v.(*Function); isFn {
				name = fn.Name
			}
		}
		return fmt.Sprintf("MAKE_CLOSURE %d captures=%d ; %s", idx, n, name), 4
	}

	return op.String(), op.InstructionLen()
}

func constantPreview(v Value, limit int) string {
	var display string
	switch cv := v.(type) {
	case Text:
		s := string(cv)
		if len(s) > limit {
			s = s[:limit-3] + "..."
		}
		display = fmt.Sprintf("%q", s)
	case *Function:
		display = fmt.Sprintf("%s arity=%d", cv, cv.Arity)
	default:
		display = valueString(v)
	}
	return display
}
