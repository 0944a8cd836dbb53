package harness

import (
	"bufio"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
)

// FileResult is one line's outcome when running a test file.
type FileResult struct {
	Line   int
	Result Result
	Err    error
}

// RunFile parses and executes every test line from r, skipping blank lines
// and `//`-comments (spec.md §4.H), distributing execution across a worker
// pool since machines are independent of one another (spec.md §5).
func RunFile(r io.Reader, workers int) ([]FileResult, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	type job struct {
		line int
		text string
	}

	var jobs []job
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "//") {
			continue
		}
		jobs = append(jobs, job{line: lineNo, text: text})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading test file: %w", err)
	}

	results := make([]FileResult, len(jobs))
	ch := make(chan int, len(jobs))
	for i := range jobs {
		ch <- i
	}
	close(ch)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range ch {
				j := jobs[i]
				c, err := Parse(j.text)
				if err != nil {
					results[i] = FileResult{Line: j.line, Err: fmt.Errorf("line %d: %w", j.line, err)}
					continue
				}
				res, err := Run(c)
				if err != nil {
					results[i] = FileResult{Line: j.line, Err: fmt.Errorf("line %d: %w", j.line, err)}
					continue
				}
				results[i] = FileResult{Line: j.line, Result: res}
			}
		}()
	}
	wg.Wait()

	return results, nil
}

// AllPassed reports whether every line parsed without error and passed,
// the condition for the test-file CLI mode's exit status (spec.md §4.H).
func AllPassed(results []FileResult) bool {
	for _, r := range results {
		if r.Err != nil || !r.Result.Passed() {
			return false
		}
	}
	return true
}

// Report formats a human-readable PASS/FAIL line per test, suitable for
// the -t CLI mode's output.
func Report(results []FileResult) string {
	var b strings.Builder
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(&b, "line %d: ERROR %v\n", r.Line, r.Err)
			continue
		}
		if r.Result.Passed() {
			fmt.Fprintf(&b, "line %d: PASS\n", r.Line)
			continue
		}
		fmt.Fprintf(&b, "line %d: FAIL\n", r.Line)
		for _, m := range r.Result.Mismatches {
			fmt.Fprintf(&b, "    %s\n", m)
		}
	}
	return b.String()
}
