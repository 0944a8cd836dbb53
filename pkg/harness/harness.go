// Package harness implements the OPER-8 declarative single-step test
// format (spec.md §4.H): a `preconds ; instructions ; postconds` string is
// parsed, assembled at a fixed base address, executed one step per
// instruction, and every postcondition is checked and reported.
package harness

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/oper8/oper8/pkg/assembler"
	"github.com/oper8/oper8/pkg/cpu"
)

// BaseAddr is the fixed address single-step tests assemble and run at.
const BaseAddr = 0x0100

// Mismatch is one postcondition that did not hold after execution.
type Mismatch struct {
	Condition string
	Want      string
	Got       string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: want %s, got %s", m.Condition, m.Want, m.Got)
}

// Case is one parsed `preconds ; instructions ; postconds` test.
type Case struct {
	Raw           string
	Preconditions []string
	Instructions  []string
	Postconditions []string
}

// Result is the outcome of running one Case.
type Result struct {
	Case      Case
	Mismatches []Mismatch
}

// Passed reports whether every postcondition held.
func (r Result) Passed() bool {
	return len(r.Mismatches) == 0
}

// Parse splits a test string into its three semicolon-separated groups.
func Parse(raw string) (Case, error) {
	parts := strings.Split(raw, ";")
	if len(parts) != 3 {
		return Case{}, fmt.Errorf("expected 3 semicolon-separated groups, got %d", len(parts))
	}
	return Case{
		Raw:            raw,
		Preconditions:  strings.Fields(parts[0]),
		Instructions:   splitInstructions(parts[1]),
		Postconditions: strings.Fields(parts[2]),
	}, nil
}

// splitInstructions separates the instruction group on "|", since operand
// lists already use commas. A group with no "|" is a single instruction.
func splitInstructions(group string) []string {
	group = strings.TrimSpace(group)
	if group == "" {
		return nil
	}
	if strings.Contains(group, "|") {
		parts := strings.Split(group, "|")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			out = append(out, strings.TrimSpace(p))
		}
		return out
	}
	return []string{group}
}

// Run assembles Instructions at BaseAddr, applies Preconditions, executes
// exactly len(Instructions) steps, then checks Postconditions.
func Run(c Case) (Result, error) {
	s := cpu.New()
	if err := applyPreconditions(s, c.Preconditions); err != nil {
		return Result{}, err
	}

	asm := assembler.New()
	source := ".org " + fmt.Sprintf("0x%04X", BaseAddr) + "\n" + strings.Join(c.Instructions, "\n") + "\n"
	segs, err := asm.Assemble(source)
	if err != nil {
		return Result{}, fmt.Errorf("assembling test instructions: %w", err)
	}
	for _, seg := range segs {
		s.LoadProgram(seg.Bytes, seg.Addr)
	}
	s.PC = BaseAddr

	for range c.Instructions {
		s.Step()
	}

	mismatches, err := checkPostconditions(s, c.Postconditions)
	if err != nil {
		return Result{}, err
	}
	return Result{Case: c, Mismatches: mismatches}, nil
}

func applyPreconditions(s *cpu.State, conds []string) error {
	for _, tok := range conds {
		name, value, err := splitToken(tok)
		if err != nil {
			return err
		}
		switch {
		case isRegisterToken(name):
			reg, err := regIndex(name)
			if err != nil {
				return err
			}
			b, err := parseHexByte(value)
			if err != nil {
				return err
			}
			s.Regs[reg] = b

		case name == "PC":
			addr, err := parseHexWord(value)
			if err != nil {
				return err
			}
			s.PC = addr

		case name == "Z", name == "C", name == "N":
			b, err := parseFlag(value)
			if err != nil {
				return err
			}
			setFlag(s, name, b)

		case isMemoryToken(name):
			addr, b, err := parseMemoryToken(name, value)
			if err != nil {
				return err
			}
			s.Memory[addr] = b

		default:
			return fmt.Errorf("unrecognized precondition %q", tok)
		}
	}
	return nil
}

func checkPostconditions(s *cpu.State, conds []string) ([]Mismatch, error) {
	var mismatches []Mismatch
	for _, tok := range conds {
		name, value, err := splitToken(tok)
		if err != nil {
			return nil, err
		}
		switch {
		case isRegisterToken(name):
			reg, err := regIndex(name)
			if err != nil {
				return nil, err
			}
			want, err := parseHexByte(value)
			if err != nil {
				return nil, err
			}
			if got := s.Regs[reg]; got != want {
				mismatches = append(mismatches, Mismatch{tok, fmt.Sprintf("%02X", want), fmt.Sprintf("%02X", got)})
			}

		case name == "PC":
			want, err := parseHexWord(value)
			if err != nil {
				return nil, err
			}
			if s.PC != want {
				mismatches = append(mismatches, Mismatch{tok, fmt.Sprintf("%04X", want), fmt.Sprintf("%04X", s.PC)})
			}

		case name == "Z", name == "C", name == "N":
			want, err := parseFlag(value)
			if err != nil {
				return nil, err
			}
			if got := flagValue(s, name); got != want {
				mismatches = append(mismatches, Mismatch{tok, flagStr(want), flagStr(got)})
			}

		case isMemoryToken(name):
			addr, want, err := parseMemoryToken(name, value)
			if err != nil {
				return nil, err
			}
			if got := s.Memory[addr]; got != want {
				mismatches = append(mismatches, Mismatch{tok, fmt.Sprintf("%02X", want), fmt.Sprintf("%02X", got)})
			}

		default:
			return nil, fmt.Errorf("unrecognized postcondition %q", tok)
		}
	}
	return mismatches, nil
}

func splitToken(tok string) (name, value string, err error) {
	i := strings.LastIndex(tok, ":")
	if i < 0 {
		return "", "", fmt.Errorf("malformed condition %q: missing ':'", tok)
	}
	return tok[:i], tok[i+1:], nil
}

func isRegisterToken(name string) bool {
	return strings.HasPrefix(strings.ToUpper(name), "R") && !strings.Contains(name, "[")
}

func isMemoryToken(name string) bool {
	return strings.HasPrefix(name, "M[") && strings.HasSuffix(name, "]")
}

func regIndex(name string) (byte, error) {
	n, err := strconv.Atoi(name[1:])
	if err != nil || n < 0 || n > 15 {
		return 0, fmt.Errorf("bad register token %q", name)
	}
	return byte(n), nil
}

func parseMemoryToken(name, value string) (addr uint16, b byte, err error) {
	inner := name[2 : len(name)-1]
	a, err := strconv.ParseUint(inner, 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("bad memory address %q", name)
	}
	bv, err := parseHexByte(value)
	if err != nil {
		return 0, 0, err
	}
	return uint16(a), bv, nil
}

func parseHexByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("bad hex byte %q", s)
	}
	return byte(v), nil
}

func parseHexWord(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("bad hex word %q", s)
	}
	return uint16(v), nil
}

func parseFlag(s string) (bool, error) {
	switch s {
	case "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, fmt.Errorf("bad flag value %q", s)
	}
}

func setFlag(s *cpu.State, name string, v bool) {
	switch name {
	case "Z":
		s.Z = v
	case "C":
		s.C = v
	case "N":
		s.N = v
	}
}

func flagValue(s *cpu.State, name string) bool {
	switch name {
	case "Z":
		return s.Z
	case "C":
		return s.C
	default:
		return s.N
	}
}

func flagStr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
