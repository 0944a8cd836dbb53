// Package disasm renders one fetched OPER-8 instruction as a human-readable
// mnemonic line (spec.md §4.D). Instruction is total: unknown opcodes
// render as "??? [$oo $pp]" rather than erroring.
package disasm

import (
	"fmt"

	"github.com/oper8/oper8/pkg/isa"
)

// Instruction returns the canonical text form of one instruction given its
// opcode and operand byte.
func Instruction(opcode, operandByte byte) string {
	if opcode&0xF0 == isa.LDIBase && opcode <= 0x1F {
		reg := opcode & 0x0F
		return fmt.Sprintf("LDI%d $%02X", reg, operandByte)
	}

	info, ok := isa.ByOpcode(opcode)
	if !ok {
		return fmt.Sprintf("??? [$%02X $%02X]", opcode, operandByte)
	}

	rx, ry, imm := isa.DecodeOperand(operandByte)

	switch info.Shape {
	case isa.ShapeNone:
		return info.Mnemonic
	case isa.ShapeReg2, isa.ShapeRegRange:
		return fmt.Sprintf("%s R%d, R%d", info.Mnemonic, rx, ry)
	case isa.ShapeReg1:
		return fmt.Sprintf("%s R%d", info.Mnemonic, rx)
	case isa.ShapeImm8:
		return fmt.Sprintf("%s $%02X", info.Mnemonic, imm)
	case isa.ShapeRel8:
		return fmt.Sprintf("%s $%02X", info.Mnemonic, imm)
	default:
		return fmt.Sprintf("%s $%02X", info.Mnemonic, imm)
	}
}

// Range disassembles every 2-byte instruction in mem[0:length], a buffer
// whose first byte sits at address addr, returning one
// "ADDR  OPCODE OPERAND  MNEMONIC" line per instruction. Used by the
// listing (-l) CLI mode.
func Range(mem []byte, addr uint16, length int) []string {
	lines := make([]string, 0, length/2)
	for i := 0; i+1 < length; i += 2 {
		a := addr + uint16(i)
		op, arg := mem[i], mem[i+1]
		lines = append(lines, fmt.Sprintf("%04X  %02X %02X  %s", a, op, arg, Instruction(op, arg)))
	}
	return lines
}
