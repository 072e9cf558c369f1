// Package ffmpeg runs capture and playback helper processes that stream raw
// media over stdio.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// DefaultStartupGrace is how long Start waits for the process to fail fast.
const DefaultStartupGrace = 250 * time.Millisecond

const stdinDrainGrace = 500 * time.Millisecond

// Options describes a helper process.
type Options struct {
	Command string
	Args    []string
	// Stdin opens a pipe the caller writes media to.
	Stdin bool
	// Stdout opens a pipe the caller reads media from.
	Stdout bool
	// StartupGrace defaults to DefaultStartupGrace. Negative skips the
	// fail-fast check.
	StartupGrace time.Duration
}

// Process is a running helper. Stop is idempotent.
type Process struct {
	stdout io.ReadCloser
	stdin  io.WriteCloser
	stderr *lockedBuffer

	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

// Start launches the helper and fails if it exits within the startup grace.
func Start(ctx context.Context, opts Options) (*Process, error) {
	if opts.Command == "" {
		return nil, errors.New("no command configured")
	}
	if opts.StartupGrace == 0 {
		opts.StartupGrace = DefaultStartupGrace
	}

	cmd := exec.CommandContext(ctx, opts.Command, opts.Args...)
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr
	cmd.WaitDelay = time.Second

	p := &Process{stderr: stderr}
	var err error
	if opts.Stdout {
		if p.stdout, err = cmd.StdoutPipe(); err != nil {
			return nil, fmt.Errorf("failed to create %s stdout pipe: %w", opts.Command, err)
		}
	}
	if opts.Stdin {
		if p.stdin, err = cmd.StdinPipe(); err != nil {
			return nil, fmt.Errorf("failed to create %s stdin pipe: %w", opts.Command, err)
		}
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", opts.Command, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	if opts.StartupGrace > 0 {
		select {
		case err := <-waitErr:
			if err != nil {
				return nil, fmt.Errorf("%s exited before streaming started: %w: %s", opts.Command, err, trimOutput(stderr.String()))
			}
			return nil, fmt.Errorf("%s exited before streaming started", opts.Command)
		case <-time.After(opts.StartupGrace):
		}
	}

	p.process = cmd.Process
	p.waitErr = waitErr
	return p, nil
}

func (p *Process) Read(b []byte) (int, error) {
	if p.stdout == nil {
		return 0, io.EOF
	}
	return p.stdout.Read(b)
}

func (p *Process) Write(b []byte) (int, error) {
	if p.stdin == nil {
		return 0, os.ErrClosed
	}
	return p.stdin.Write(b)
}

func (p *Process) Close() error {
	return p.Stop()
}

// Stop closes stdin and lets the helper drain, then interrupts it, kills it
// if it lingers, and closes the pipes.
func (p *Process) Stop() error {
	p.stopOnce.Do(func() {
		exited := false
		if p.stdin != nil {
			_ = p.stdin.Close()
			exited = p.waitFor(stdinDrainGrace)
		}
		if !exited && p.process != nil {
			_ = p.process.Signal(os.Interrupt)
			if !p.waitFor(1200 * time.Millisecond) {
				_ = p.process.Kill()
				p.waitFor(0)
			}
		}

		if p.stdout != nil {
			if closeErr := p.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && p.stopErr == nil {
				p.stopErr = closeErr
			}
		}

		if p.stopErr != nil {
			if output := trimOutput(p.stderr.String()); output != "" {
				p.stopErr = fmt.Errorf("%w: %s", p.stopErr, output)
			}
		}
	})
	return p.stopErr
}

// waitFor waits up to timeout for the helper to exit. Zero waits forever.
func (p *Process) waitFor(timeout time.Duration) bool {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case err, ok := <-p.waitErr:
		if ok {
			p.stopErr = normalizeStopErr(err)
		}
		return true
	case <-expired:
		return false
	}
}

// Stderr returns everything the helper wrote to stderr so far.
func (p *Process) Stderr() string {
	return trimOutput(p.stderr.String())
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) || errors.Is(err, exec.ErrWaitDelay) {
		return nil
	}
	return err
}

func trimOutput(output string) string {
	return strings.TrimSpace(output)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
