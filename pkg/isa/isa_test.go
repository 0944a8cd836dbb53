package isa

import "testing"

// TestOpcodeAssignments verifies every mandatory mnemonic decodes to the
// opcode byte fixed by the spec's canonical opcode list.
func TestOpcodeAssignments(t *testing.T) {
	expected := map[string]byte{
		"NOP": 0x00, "LDI": 0x10,
		"MOV": 0x20, "SWAP": 0x21, "LOAD": 0x22, "STOR": 0x23, "LOADZ": 0x24, "STORZ": 0x25,
		"ADD": 0x30, "ADC": 0x31, "SUB": 0x32, "SBC": 0x33, "INC": 0x34, "DEC": 0x35,
		"CMP": 0x36, "MUL": 0x37, "DIV": 0x38,
		"AND": 0x40, "OR": 0x41, "XOR": 0x42, "NOT": 0x43, "SHL": 0x44, "SHR": 0x45, "TEST": 0x46,
		"JMP": 0x50, "JMPL": 0x51, "JZ": 0x52, "JNZ": 0x53, "JC": 0x54, "JNC": 0x55, "JN": 0x56,
		"CALL": 0x57, "CALLL": 0x58, "RET": 0x59,
		"PUSH": 0x60, "POP": 0x61,
		"PRINT": 0x70, "INPUT": 0x71,
		"HLT": 0xFF,
	}
	if len(expected) != 39 {
		t.Fatalf("test table itself should list 39 mnemonics, has %d", len(expected))
	}
	for mnemonic, opcode := range expected {
		info, ok := ByMnemonic(mnemonic)
		if !ok {
			t.Errorf("%s: not found", mnemonic)
			continue
		}
		if info.Opcode != opcode {
			t.Errorf("%s: opcode = 0x%02X, want 0x%02X", mnemonic, info.Opcode, opcode)
		}
	}
	// lower-case lookups must work too (assembler case-folds before lookup,
	// but ByMnemonic itself must not assume upper case).
	if _, ok := ByMnemonic("hlt"); !ok {
		t.Error("lower-case mnemonic lookup failed")
	}
}

// TestLDIFamilyRoundTrip checks each of the 16 LDI opcodes decodes back to
// the LDI Info and recovers the correct register index.
func TestLDIFamilyRoundTrip(t *testing.T) {
	for reg := byte(0); reg < 16; reg++ {
		opcode := LDIBase + reg
		info, ok := ByOpcode(opcode)
		if !ok {
			t.Fatalf("opcode 0x%02X: not decoded", opcode)
		}
		if info.Mnemonic != "LDI" {
			t.Errorf("opcode 0x%02X: mnemonic = %s, want LDI", opcode, info.Mnemonic)
		}
		if got := opcode & 0x0F; got != reg {
			t.Errorf("opcode 0x%02X: register = %d, want %d", opcode, got, reg)
		}
	}
}

// TestByOpcodeUnknown verifies unassigned opcodes decode to "not found",
// matching the disassembler's total-function contract (spec.md §4.D).
func TestByOpcodeUnknown(t *testing.T) {
	for _, opcode := range []byte{0x01, 0x0F, 0x26, 0x39, 0x47, 0x5A, 0x62, 0x72, 0xFE} {
		if _, ok := ByOpcode(opcode); ok {
			t.Errorf("opcode 0x%02X unexpectedly decoded", opcode)
		}
	}
}

func TestIsBranch(t *testing.T) {
	branch := []string{"JMP", "JZ", "JNZ", "JC", "JNC", "JN", "CALL"}
	for _, m := range branch {
		if !IsBranch(m) {
			t.Errorf("%s should be a branch mnemonic", m)
		}
	}
	nonBranch := []string{"JMPL", "CALLL", "RET", "MOV", "ADD"}
	for _, m := range nonBranch {
		if IsBranch(m) {
			t.Errorf("%s should not be a branch mnemonic", m)
		}
	}
}

func TestEncodeDecodeOperandRoundTrip(t *testing.T) {
	operand := EncodeOperand(ShapeReg2, 0x0A, 0x05)
	rx, ry, imm := DecodeOperand(operand)
	if rx != 0x0A || ry != 0x05 {
		t.Errorf("reg2 round trip: rx=%d ry=%d, want 10,5", rx, ry)
	}
	if imm != operand {
		t.Errorf("imm should equal the whole operand byte")
	}

	operand = EncodeOperand(ShapeReg1, 0x0F, 0)
	rx, _, _ = DecodeOperand(operand)
	if rx != 0x0F {
		t.Errorf("reg1 round trip: rx=%d, want 15", rx)
	}

	operand = EncodeOperand(ShapeImm8, 0, 0x7E)
	if operand != 0x7E {
		t.Errorf("imm8 encode = 0x%02X, want 0x7E", operand)
	}
}
