// Package cpu implements the OPER-8 CPU state container and the
// fetch-decode-execute engine (spec.md §4.E, §4.F, §4.G).
package cpu

import (
	"github.com/oper8/oper8/pkg/isa"
)

// MemSize is the flat, byte-addressed memory size: 64 KiB.
const MemSize = 65536

// NumRegisters is the size of the register file.
const NumRegisters = 16

// State is the entire machine: registers, memory, PC, flags, halted
// indicator, and the two I/O callback slots PRINT/INPUT invoke. It is a
// single owned aggregate threaded through Step — no package-level mutable
// state, no locks; see spec.md §5.
type State struct {
	Regs   [NumRegisters]byte
	Memory [MemSize]byte
	PC     uint16
	Z, C, N bool
	Halted bool

	// OnCharOutput is invoked by PRINT with the register's byte value.
	// Never blocks. May be nil, in which case PRINT is a no-op beyond
	// advancing PC.
	OnCharOutput func(b byte)
	// OnCharInput is invoked by INPUT to obtain one byte. Never blocks —
	// returns 0 when no byte is available. May be nil, in which case
	// INPUT always reads 0.
	OnCharInput func() byte
}

// New returns a freshly reset machine.
func New() *State {
	s := &State{}
	s.Reset()
	return s
}

// Reset clears registers and memory (except the reserved backstop/vector
// bytes), sets PC to the architectural reset vector, clears flags, and
// un-halts the machine (spec.md §3 Lifecycle).
func (s *State) Reset() {
	for i := range s.Regs {
		s.Regs[i] = 0
	}
	for i := range s.Memory {
		s.Memory[i] = 0
	}
	s.PC = isa.ResetPC
	s.Z, s.C, s.N = false, false, false
	s.Halted = false

	// Default fault vector points at the backstop HLT.
	s.Memory[isa.FaultVecHi] = byte(isa.DefaultVector >> 8)
	s.Memory[isa.FaultVecLo] = byte(isa.DefaultVector & 0xFF)
	s.Memory[0xFFFE] = 0xFF
	s.Memory[0xFFFF] = 0xFF
}

// LoadProgram copies bytes into memory starting at addr. The caller is
// responsible for addr+len(bytes) <= MemSize; the engine has no relocation
// or bounds negotiation (spec.md §3 "Assembled program").
func (s *State) LoadProgram(bytes []byte, addr uint16) {
	copy(s.Memory[int(addr):], bytes)
}

// nextReg wraps register-index arithmetic at 4 bits (spec.md §3).
func nextReg(r byte) byte {
	return (r + 1) & 0x0F
}

// prevReg is nextReg's inverse, used to walk a PUSH register range backward
// when POPping it so the range unwinds in LIFO order.
func prevReg(r byte) byte {
	return (r - 1) & 0x0F
}

// addr16 forms a big-endian 16-bit address from a register pair.
func addr16(hi, lo byte) uint16 {
	return uint16(hi)<<8 | uint16(lo)
}

// stackPointer reads the R14:R15 pair as a 16-bit address.
func (s *State) stackPointer() uint16 {
	return addr16(s.Regs[14], s.Regs[15])
}

// setStackPointer writes a 16-bit address back into R14:R15.
func (s *State) setStackPointer(sp uint16) {
	s.Regs[14] = byte(sp >> 8)
	s.Regs[15] = byte(sp)
}
