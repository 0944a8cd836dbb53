// Package repl implements the interactive and single-step debug front
// ends described in spec.md §6: a read-eval-print loop over assembly
// source, and a single-step debug monitor that dumps machine state after
// every instruction. Both are host glue layered over pkg/cpu and never
// touch engine semantics.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/oper8/oper8/pkg/assembler"
	"github.com/oper8/oper8/pkg/cpu"
	"github.com/oper8/oper8/pkg/disasm"
	"github.com/oper8/oper8/internal/termio"
)

// Run starts an interactive REPL against a fresh machine, optionally
// preloaded from initialSource. Each line typed is assembled, loaded and run
// for up to 1000 steps; ".regs" dumps register state; ".quit" or ".exit"
// exits. Once the machine has halted, later lines are still assembled and
// loaded but no longer run.
func Run(in io.Reader, out io.Writer, initialSource string) error {
	s := cpu.New()
	host := termio.NewHost()
	if err := host.Start(); err != nil {
		fmt.Fprintf(out, "warning: raw terminal mode unavailable: %v\n", err)
	} else {
		defer host.Stop()
		s.OnCharInput = host.OnCharInput
	}
	s.OnCharOutput = termio.OnCharOutput

	if initialSource != "" {
		if err := loadAssembly(s, initialSource); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}

	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "oper8> ")
	for scanner.Scan() {
		line := scanner.Text()
		switch line {
		case ".quit", ".exit":
			return nil
		case ".regs":
			dumpRegisters(out, s)
		case "":
			// fall through to next prompt
		default:
			if err := loadAssembly(s, line); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				break
			}
			s.Run(1000)
		}
		fmt.Fprint(out, "oper8> ")
	}
	return scanner.Err()
}

// Debug single-steps a loaded machine, printing a state dump after each
// instruction, until it halts or maxSteps is exhausted.
func Debug(out io.Writer, s *cpu.State, maxSteps int) {
	for i := 0; i < maxSteps; i++ {
		if s.Halted {
			fmt.Fprintln(out, "halted")
			return
		}
		op, arg := s.Memory[s.PC], s.Memory[(s.PC+1)&0xFFFF]
		fmt.Fprintf(out, "%04X  %-20s ", s.PC, disasm.Instruction(op, arg))
		s.Step()
		dumpRegisters(out, s)
	}
}

func loadAssembly(s *cpu.State, source string) error {
	asm := assembler.New()
	segs, err := asm.Assemble(source)
	if err != nil {
		return err
	}
	for _, seg := range segs {
		s.LoadProgram(seg.Bytes, seg.Addr)
	}
	if len(segs) > 0 {
		s.PC = segs[0].Addr
	}
	return nil
}

func dumpRegisters(out io.Writer, s *cpu.State) {
	for i := 0; i < cpu.NumRegisters; i++ {
		fmt.Fprintf(out, "R%-2d=%02X ", i, s.Regs[i])
	}
	fmt.Fprintf(out, " PC=%04X Z=%v C=%v N=%v\n", s.PC, s.Z, s.C, s.N)
}

// StdioRun is a convenience wrapper for the CLI entry point.
func StdioRun(initialSource string) error {
	return Run(os.Stdin, os.Stdout, initialSource)
}
