package local

import (
	"context"
	"log/slog"
	"time"

	"github.com/sakif/transpile-bench/internal/executor"
)

var _ executor.Executor = (*Pool)(nil)

// Pool bounds how many executions run at once. Timings are the product
// here, so runs should not compete for CPU more than the host allows.
// Callers wait for a free slot or until their context ends.
type Pool struct {
	next   executor.Executor
	slots  chan struct{}
	logger *slog.Logger
}

// NewPool wraps next with size slots. size < 1 is treated as 1.
func NewPool(next executor.Executor, size int, logger *slog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		next:   next,
		slots:  make(chan struct{}, size),
		logger: logger,
	}
}

// Execute runs req once a slot is free. If ctx ends while waiting, the
// result is a failure with stderr CanceledMessage and nothing is run.
func (p *Pool) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	start := time.Now()

	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		p.logger.Warn("gave up waiting for an execution slot",
			slog.String("language", string(req.Language)),
			slog.Duration("waited", time.Since(start)),
		)
		return &executor.ExecutionResult{Stderr: CanceledMessage}, nil
	}
	defer func() { <-p.slots }()

	if waited := time.Since(start); waited > 100*time.Millisecond {
		p.logger.Debug("execution slot acquired",
			slog.String("language", string(req.Language)),
			slog.Duration("waited", waited),
		)
	}

	return p.next.Execute(ctx, req)
}

// Missing forwards to the wrapped executor when it can report missing
// toolchains.
func (p *Pool) Missing(lang executor.Language) []string {
	if c, ok := p.next.(interface {
		Missing(executor.Language) []string
	}); ok {
		return c.Missing(lang)
	}
	return nil
}

// Size returns the number of slots.
func (p *Pool) Size() int {
	return cap(p.slots)
}
