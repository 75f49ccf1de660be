// Package ffmpeg provides shared FFmpeg process management utilities.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/serrebi/streamgate/internal/util"
)

// ErrStdinClosed is returned by WriteStdin after the input stream is closed.
var ErrStdinClosed = errors.New("ffmpeg stdin closed")

// Options selects which pipes to attach to the subprocess.
type Options struct {
	Stdin  bool // attach a stdin pipe for piped input
	Stdout bool // attach a stdout pipe for streamed output
}

// Process represents a running FFmpeg subprocess.
// WriteStdin and CloseStdin are safe for concurrent use.
type Process struct {
	cmd    *exec.Cmd
	ctx    context.Context
	cancel context.CancelCauseFunc
	stdout io.ReadCloser
	stderr *bytes.Buffer

	stdinMu     sync.Mutex
	stdin       io.WriteCloser
	stdinClosed bool

	waitOnce sync.Once
	waitErr  error
	exited   atomic.Bool
}

// killDelay bounds how long a canceled process may linger after the
// graceful signal before it is killed.
const killDelay = 3 * time.Second

// Start launches an FFmpeg subprocess with the given arguments.
// Cancellation first sends a graceful termination signal; the process is
// killed if it has not exited within killDelay.
func Start(ffmpegPath string, args []string, opts Options) (*Process, error) {
	ctx, cancel := context.WithCancelCause(context.Background())
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	cmd.Cancel = func() error {
		return util.GracefulSignal(cmd.Process)
	}
	cmd.WaitDelay = killDelay

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	p := &Process{
		cmd:    cmd,
		ctx:    ctx,
		cancel: cancel,
		stderr: &stderr,
	}

	if opts.Stdin {
		stdin, err := cmd.StdinPipe()
		if err != nil {
			cancel(err)
			return nil, fmt.Errorf("create stdin pipe: %w", err)
		}
		p.stdin = stdin
	}
	if opts.Stdout {
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			cancel(err)
			p.closeStdinPipe()
			return nil, fmt.Errorf("create stdout pipe: %w", err)
		}
		p.stdout = stdout
	}

	if err := cmd.Start(); err != nil {
		cancel(err)
		p.closeStdinPipe()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	return p, nil
}

// closeStdinPipe closes the stdin pipe if one was created, logging failures.
func (p *Process) closeStdinPipe() {
	if p.stdin == nil {
		return
	}
	if err := p.stdin.Close(); err != nil {
		slog.Warn("failed to close stdin pipe", "error", err)
	}
}

// WriteStdin writes data to the process stdin.
// Returns ErrStdinClosed after CloseStdin has been called.
func (p *Process) WriteStdin(data []byte) (int, error) {
	p.stdinMu.Lock()
	defer p.stdinMu.Unlock()
	if p.stdin == nil || p.stdinClosed {
		return 0, ErrStdinClosed
	}
	return p.stdin.Write(data)
}

// CloseStdin closes the process stdin, signaling end-of-input. Idempotent.
func (p *Process) CloseStdin() {
	p.stdinMu.Lock()
	defer p.stdinMu.Unlock()
	if p.stdin == nil || p.stdinClosed {
		return
	}
	p.stdinClosed = true
	if err := p.stdin.Close(); err != nil {
		slog.Debug("stdin close failed", "error", err)
	}
}

// Stdout returns the process stdout pipe, or nil if none was requested.
func (p *Process) Stdout() io.Reader {
	return p.stdout
}

// Wait waits for the process to exit and returns its exit error.
// Safe to call from multiple goroutines; all callers observe the same result.
func (p *Process) Wait() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.cmd.Wait()
		p.exited.Store(true)
	})
	return p.waitErr
}

// Running reports whether the process has been started and not yet exited.
// Exit is observed through Wait, which the owning session always runs.
func (p *Process) Running() bool {
	if p.cmd.Process == nil {
		return false
	}
	return !p.exited.Load()
}

// Cancel terminates the process via its context with the given cause.
func (p *Process) Cancel(cause error) {
	p.cancel(cause)
}

// Context returns the process context; its cause records why it was stopped.
func (p *Process) Context() context.Context {
	return p.ctx
}

// Stderr returns the collected stderr output.
func (p *Process) Stderr() string {
	return p.stderr.String()
}

// Capture runs FFmpeg to completion and returns its full stdout.
// Used for short synthetic outputs that are buffered before serving.
func Capture(ctx context.Context, ffmpegPath string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := util.ExtractLastError(stderr.String()); msg != "" {
			return nil, fmt.Errorf("ffmpeg: %s: %w", msg, err)
		}
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}
	return stdout.Bytes(), nil
}
