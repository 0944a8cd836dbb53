package cpu

import "github.com/oper8/oper8/pkg/isa"

// fault performs the fixed fault-entry sequence (spec.md §4.G): write the
// fault code to R0, save the faulting PC to zero page, and redirect PC to
// the handler named by the fault vector. It never returns an error value —
// faults are an in-machine state transition, never surfaced to the host
// (spec.md §7).
func (s *State) fault(code byte) {
	s.Regs[0] = code
	s.Memory[isa.SavedPCHi] = byte(s.PC >> 8)
	s.Memory[isa.SavedPCLo] = byte(s.PC)
	handler := addr16(s.Memory[isa.FaultVecHi], s.Memory[isa.FaultVecLo])
	s.PC = handler
}
