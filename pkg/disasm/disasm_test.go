package disasm

import "testing"

func TestInstructionRoundTrips(t *testing.T) {
	cases := []struct {
		opcode, operand byte
		want            string
	}{
		{0x00, 0x00, "NOP"},
		{0x13, 0x2A, "LDI3 $2A"},
		{0x20, 0x12, "MOV R1, R2"},
		{0x34, 0x50, "INC R5"},
		{0x24, 0x40, "LOADZ $40"},
		{0x50, 0xFE, "JMP $FE"},
		{0xFF, 0x00, "HLT"},
	}
	for _, c := range cases {
		got := Instruction(c.opcode, c.operand)
		if got != c.want {
			t.Errorf("Instruction(%#x,%#x) = %q, want %q", c.opcode, c.operand, got, c.want)
		}
	}
}

func TestInstructionUnknownOpcodeIsTotal(t *testing.T) {
	got := Instruction(0x27, 0xAB)
	want := "??? [$27 $AB]"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRangeProducesOneLinePerInstruction(t *testing.T) {
	mem := []byte{0x00, 0x00, 0xFF, 0x00}
	lines := Range(mem, 0x0200, len(mem))
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
}
