package local

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// processResult is what one subprocess invocation produced.
type processResult struct {
	stdout   string
	stderr   string
	exitCode int
	duration time.Duration

	// timedOut is set when the process was killed because timeout elapsed.
	timedOut bool
	// canceled is set when the caller's context ended first.
	canceled bool
	// startErr is set when the process could not be started at all.
	startErr error
}

func (p processResult) ok() bool {
	return !p.timedOut && !p.canceled && p.startErr == nil && p.exitCode == 0
}

// runProcess runs argv in dir and waits for it. A positive timeout bounds
// the wall-clock time; on expiry the whole process group is killed.
//
// TIMING:
// The clock stops when the process itself exits. Output goes through OS
// pipes handed straight to the child, so cmd.Wait does not also wait for
// background children that inherited stdout. Those are killed with the
// group once the program is done, and whatever they wrote up to then is
// kept. waitDelay bounds how long the pipes may stay open after that.
func runProcess(ctx context.Context, dir string, timeout, waitDelay time.Duration, argv []string) processResult {
	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay
	configureProcessGroup(cmd)

	stdout, err := newCapture()
	if err != nil {
		return processResult{startErr: err, exitCode: -1}
	}
	stderr, err := newCapture()
	if err != nil {
		stdout.abort()
		return processResult{startErr: err, exitCode: -1}
	}
	cmd.Stdout = stdout.w
	cmd.Stderr = stderr.w

	start := time.Now()
	if err = cmd.Start(); err != nil {
		stdout.abort()
		stderr.abort()
	} else {
		stdout.start()
		stderr.start()
		err = cmd.Wait()
	}
	res := processResult{duration: time.Since(start)}

	// Background children of the program do not outlive the run.
	_ = killProcessGroup(cmd)

	res.stdout = stdout.finish(waitDelay)
	res.stderr = stderr.finish(waitDelay)

	switch {
	case err == nil:
		res.exitCode = 0
	case ctx.Err() != nil:
		res.canceled = true
		res.exitCode = -1
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.timedOut = true
		res.exitCode = -1
	case cmd.ProcessState != nil:
		res.exitCode = cmd.ProcessState.ExitCode()
	default:
		res.startErr = err
		res.exitCode = -1
	}
	return res
}

// capture collects one output stream of a child process.
type capture struct {
	r, w *os.File
	buf  syncBuffer
	done chan struct{}
}

func newCapture() (*capture, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	return &capture{r: r, w: w, done: make(chan struct{})}, nil
}

// start drops the parent's write end, which the child now holds, and
// begins draining the pipe.
func (c *capture) start() {
	c.w.Close()
	go func() {
		defer close(c.done)
		_, _ = io.Copy(&c.buf, c.r)
	}()
}

// abort releases both ends when the process never started.
func (c *capture) abort() {
	c.w.Close()
	c.r.Close()
	close(c.done)
}

// finish waits up to grace for the writers to close the pipe and returns
// what was read. A writer that escaped the process group cannot hold the
// result back past grace. Zero grace waits for EOF, as exec.Cmd.WaitDelay
// does.
func (c *capture) finish(grace time.Duration) string {
	if grace <= 0 {
		<-c.done
	} else {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-c.done:
		case <-timer.C:
		}
	}
	c.r.Close()
	return c.buf.String()
}

// syncBuffer is a bytes.Buffer safe to read while the drain goroutine may
// still be writing.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
