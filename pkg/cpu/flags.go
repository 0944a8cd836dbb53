package cpu

// setZN sets Z and N from an 8-bit result; C is left untouched since every
// caller computes carry/borrow itself from operation-specific inputs
// (spec.md §3 Flags, §4.F per-opcode contracts).
func (s *State) setZN(result byte) {
	s.Z = result == 0
	s.N = result&0x80 != 0
}
