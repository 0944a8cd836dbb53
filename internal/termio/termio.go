// Package termio puts the controlling terminal into raw mode and feeds
// keystrokes to the CPU's INPUT callback, and relays PRINT callback bytes
// straight to stdout. It is host glue for interactive use (spec.md §6
// "REPL"), outside the core engine's scope.
package termio

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"
)

// Host owns the raw-mode terminal state and a single-producer/single-
// consumer byte queue feeding the CPU's INPUT callback (spec.md §5
// "Host-side concurrency").
type Host struct {
	fd           int
	oldState     *term.State
	nonblockSet  bool
	stopCh       chan struct{}
	done         chan struct{}
	stopOnce     sync.Once

	mu    sync.Mutex
	queue []byte
}

// NewHost returns a Host bound to the process's stdin/stdout.
func NewHost() *Host {
	return &Host{
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start puts stdin into raw, non-blocking mode and begins a goroutine that
// appends every byte read to the internal queue. Call Stop to restore the
// terminal.
func (h *Host) Start() error {
	h.fd = int(os.Stdin.Fd())

	oldState, err := term.MakeRaw(h.fd)
	if err != nil {
		close(h.done)
		return fmt.Errorf("termio: enter raw mode: %w", err)
	}
	h.oldState = oldState

	if err := syscall.SetNonblock(h.fd, true); err != nil {
		_ = term.Restore(h.fd, h.oldState)
		h.oldState = nil
		close(h.done)
		return fmt.Errorf("termio: set stdin non-blocking: %w", err)
	}
	h.nonblockSet = true

	go h.readLoop()
	return nil
}

func (h *Host) readLoop() {
	defer close(h.done)
	buf := make([]byte, 1)
	for {
		select {
		case <-h.stopCh:
			return
		default:
		}

		n, err := syscall.Read(h.fd, buf)
		if n > 0 {
			h.mu.Lock()
			h.queue = append(h.queue, buf[0])
			h.mu.Unlock()
		}
		switch {
		case err == syscall.EAGAIN || err == syscall.EWOULDBLOCK:
			time.Sleep(5 * time.Millisecond)
		case err != nil:
			return
		case n == 0:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// Stop terminates the read goroutine and restores the terminal to its
// original state.
func (h *Host) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
	<-h.done
	if h.nonblockSet {
		_ = syscall.SetNonblock(h.fd, false)
		h.nonblockSet = false
	}
	if h.oldState != nil {
		_ = term.Restore(h.fd, h.oldState)
		h.oldState = nil
	}
}

// OnCharInput is installed as cpu.State.OnCharInput: it never blocks,
// returning 0 when the queue is empty, matching spec.md §5's "INPUT
// returns 0 when no byte is available" contract.
func (h *Host) OnCharInput() byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.queue) == 0 {
		return 0
	}
	b := h.queue[0]
	h.queue = h.queue[1:]
	return b
}

// OnCharOutput is installed as cpu.State.OnCharOutput: it writes the byte
// straight to stdout.
func OnCharOutput(b byte) {
	os.Stdout.Write([]byte{b})
}
