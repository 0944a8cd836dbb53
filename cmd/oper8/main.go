// Command oper8 is the command-line front end for the OPER-8 CPU engine:
// assemble-and-run, an interactive REPL, a single-step debug monitor, and
// the declarative test harness (spec.md §6).
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/oper8/oper8/internal/repl"
	"github.com/oper8/oper8/pkg/assembler"
	"github.com/oper8/oper8/pkg/cpu"
	"github.com/oper8/oper8/pkg/disasm"
	"github.com/oper8/oper8/pkg/harness"
)

// exitCoder lets RunE report the precise process exit code spec.md §6
// mandates (0 success, 1 assembly/test/fault, 2 invalid CLI) instead of
// cobra's blanket exit(1) on any error.
type exitCoder interface {
	ExitCode() int
}

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) ExitCode() int { return e.code }

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "oper8:", err)
		if ec, ok := err.(exitCoder); ok {
			os.Exit(ec.ExitCode())
		}
		if ec, ok := errors.Cause(err).(exitCoder); ok {
			os.Exit(ec.ExitCode())
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "oper8 [path.bin|.asm]",
		Short: "OPER-8 fantasy 8-bit CPU: assemble, run, and test",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runProgram(cmd, args[0])
		},
	}

	var interactive bool
	var debugPath string
	var listPath string
	var testString string
	var testFile string
	var loadAddr uint16
	var workers int

	root.Flags().BoolVarP(&interactive, "interactive", "i", false, "start a REPL, optionally preloaded from path")
	root.Flags().StringVarP(&debugPath, "debug", "d", "", "single-step the program at path, dumping state after each instruction")
	root.Flags().StringVarP(&listPath, "list", "l", "", "disassemble a binary and print its listing")
	root.Flags().StringVar(&testString, "ss", "", "run one single-step test string; exit 0/1")
	root.Flags().StringVarP(&testFile, "test", "t", "", "run every single-step test in a file; exit 0 iff all pass")
	root.Flags().Uint16Var(&loadAddr, "addr", 0x0200, "load address for .bin files")
	root.Flags().IntVar(&workers, "workers", 0, "worker count for -t (0 = NumCPU)")

	originalRunE := root.RunE
	root.RunE = func(cmd *cobra.Command, args []string) error {
		switch {
		case testString != "":
			return runSingleStepTest(cmd, testString)
		case testFile != "":
			return runTestFile(cmd, testFile, workers)
		case listPath != "":
			return runListing(cmd, listPath, loadAddr)
		case debugPath != "":
			return runDebug(cmd, debugPath, loadAddr)
		case interactive:
			var initial string
			if len(args) == 1 {
				src, err := readAssembly(args[0])
				if err != nil {
					return &exitError{2, err}
				}
				initial = src
			}
			return repl.StdioRun(initial)
		default:
			return originalRunE(cmd, args)
		}
	}

	return root
}

func runProgram(cmd *cobra.Command, path string) error {
	s := cpu.New()
	if err := loadPath(s, path, 0x0200); err != nil {
		return &exitError{2, err}
	}
	s.Run(1_000_000)
	if !s.Halted {
		return &exitError{1, errors.New("program did not halt within step budget")}
	}
	return nil
}

func runSingleStepTest(cmd *cobra.Command, testString string) error {
	c, err := harness.Parse(testString)
	if err != nil {
		return &exitError{2, err}
	}
	res, err := harness.Run(c)
	if err != nil {
		return &exitError{1, err}
	}
	if !res.Passed() {
		for _, m := range res.Mismatches {
			fmt.Fprintln(cmd.OutOrStdout(), m)
		}
		return &exitError{1, errors.New("test failed")}
	}
	fmt.Fprintln(cmd.OutOrStdout(), "PASS")
	return nil
}

func runTestFile(cmd *cobra.Command, path string, workers int) error {
	f, err := os.Open(path)
	if err != nil {
		return &exitError{2, errors.Wrap(err, "opening test file")}
	}
	defer f.Close()

	results, err := harness.RunFile(f, workers)
	if err != nil {
		return &exitError{2, err}
	}
	fmt.Fprint(cmd.OutOrStdout(), harness.Report(results))
	if !harness.AllPassed(results) {
		return &exitError{1, errors.New("one or more tests failed")}
	}
	return nil
}

func runListing(cmd *cobra.Command, path string, loadAddr uint16) error {
	bytes, addr, err := readBinaryOrAssemble(path, loadAddr)
	if err != nil {
		return &exitError{2, err}
	}
	for _, line := range disasm.Range(bytes, addr, len(bytes)) {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}

func runDebug(cmd *cobra.Command, path string, loadAddr uint16) error {
	s := cpu.New()
	if err := loadPath(s, path, loadAddr); err != nil {
		return &exitError{2, err}
	}
	repl.Debug(cmd.OutOrStdout(), s, 1_000_000)
	return nil
}

func loadPath(s *cpu.State, path string, loadAddr uint16) error {
	bytes, addr, err := readBinaryOrAssemble(path, loadAddr)
	if err != nil {
		return err
	}
	s.LoadProgram(bytes, addr)
	s.PC = addr
	return nil
}

// readBinaryOrAssemble loads path as raw bytes (.bin) or assembles it
// (.asm), returning the flattened bytes and their base address.
func readBinaryOrAssemble(path string, loadAddr uint16) ([]byte, uint16, error) {
	if strings.HasSuffix(path, ".asm") {
		src, err := readAssembly(path)
		if err != nil {
			return nil, 0, err
		}
		asm := assembler.New()
		segs, err := asm.Assemble(src)
		if err != nil {
			return nil, 0, err
		}
		addr, buf := assembler.Flatten(segs)
		return buf, addr, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "reading %s", path)
	}
	return raw, loadAddr, nil
}

func readAssembly(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "reading %s", path)
	}
	return string(raw), nil
}
