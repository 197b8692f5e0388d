// Package transcode runs the external transcoding engine as a subprocess.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"time"

	"audioconv/internal/models"
)

const (
	DefaultEnginePath      = "ffmpeg"
	DefaultTimeout         = 2 * time.Minute
	defaultStderrTailBytes = 2048
	defaultWaitDelay       = 5 * time.Second
	checkTimeout           = 10 * time.Second
)

var (
	// ErrEngineNotFound reports that the engine executable could not be started.
	ErrEngineNotFound = errors.New("transcoding engine not found")
	// ErrBusy reports that no engine slot freed up within the queue timeout.
	ErrBusy = errors.New("transcoding engine busy")
)

// Outcome is the terminal state of one engine invocation.
type Outcome int

const (
	ExitOK Outcome = iota
	ExitFailed
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case ExitOK:
		return "exit_ok"
	case ExitFailed:
		return "exit_failed"
	case TimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result describes a finished engine invocation.
type Result struct {
	Outcome    Outcome
	ExitCode   int
	StderrTail string
	Duration   time.Duration
}

// Options configures an Engine.
type Options struct {
	Path            string
	Timeout         time.Duration
	StderrTailBytes int
	WaitDelay       time.Duration
	// QueueTimeout bounds the wait for a pool slot. Zero waits until ctx ends.
	QueueTimeout time.Duration
}

// Engine invokes the transcoder binary directly, never through a shell.
type Engine struct {
	path      string
	timeout   time.Duration
	tailBytes int
	waitDelay time.Duration
	queueWait time.Duration
	pool      *Pool
}

// NewEngine creates an Engine. A nil pool leaves concurrency unbounded.
func NewEngine(opts Options, pool *Pool) *Engine {
	if opts.Path == "" {
		opts.Path = DefaultEnginePath
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.StderrTailBytes <= 0 {
		opts.StderrTailBytes = defaultStderrTailBytes
	}
	if opts.WaitDelay <= 0 {
		opts.WaitDelay = defaultWaitDelay
	}
	return &Engine{
		path:      opts.Path,
		timeout:   opts.Timeout,
		tailBytes: opts.StderrTailBytes,
		waitDelay: opts.WaitDelay,
		queueWait: opts.QueueTimeout,
		pool:      pool,
	}
}

// Path returns the configured engine executable.
func (e *Engine) Path() string {
	return e.path
}

// Timeout returns the wall-clock limit applied to each invocation.
func (e *Engine) Timeout() time.Duration {
	return e.timeout
}

// Pool returns the concurrency pool, which may be nil.
func (e *Engine) Pool() *Pool {
	return e.pool
}

// Transcode converts inputPath into outputPath. Engine failures and timeouts
// are reported through Result; the error return is reserved for invalid
// arguments, a missing engine binary and cancellation of ctx. The timeout
// only starts once a pool slot is held, and on expiry the process is killed.
func (e *Engine) Transcode(ctx context.Context, inputPath, outputPath string, format models.Format) (Result, error) {
	var zero Result
	if !filepath.IsAbs(inputPath) || !filepath.IsAbs(outputPath) {
		return zero, fmt.Errorf("engine paths must be absolute")
	}
	args, err := BuildArgs(filepath.Clean(inputPath), filepath.Clean(outputPath), format)
	if err != nil {
		return zero, err
	}

	if e.pool != nil {
		if err := e.acquire(ctx); err != nil {
			return zero, err
		}
		defer e.pool.Release()
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	stderr := newTailBuffer(e.tailBytes)
	cmd := exec.CommandContext(runCtx, e.path, args...)
	cmd.Stderr = stderr
	cmd.WaitDelay = e.waitDelay

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return zero, fmt.Errorf("%w: %s", ErrEngineNotFound, e.path)
		}
		return zero, fmt.Errorf("start engine: %w", err)
	}
	waitErr := cmd.Wait()
	result := Result{Duration: time.Since(start), StderrTail: stderr.String(), ExitCode: -1}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}
	if waitErr == nil {
		result.Outcome = ExitOK
		result.ExitCode = 0
		return result, nil
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.Outcome = TimedOut
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		result.Outcome = ExitFailed
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return result, fmt.Errorf("wait for engine: %w", waitErr)
}

func (e *Engine) acquire(ctx context.Context) error {
	if e.queueWait <= 0 {
		return e.pool.Acquire(ctx)
	}
	queueCtx, cancel := context.WithTimeout(ctx, e.queueWait)
	defer cancel()
	if err := e.pool.Acquire(queueCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: no slot within %s", ErrBusy, e.queueWait)
	}
	return nil
}

// CheckInstalled verifies that the engine at path can be executed.
func CheckInstalled(ctx context.Context, path string) error {
	if path == "" {
		path = DefaultEnginePath
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, "-version")
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrEngineNotFound, path)
		}
		return fmt.Errorf("engine %s not executable: %w", path, err)
	}
	return nil
}
