// Package local implements executor.Executor by running the platform
// toolchains (python, g++, javac/java) as subprocesses on this host.
//
// Each call gets its own run directory, which is removed before Execute
// returns. Calls share no state, so an Executor is safe for concurrent use.
package local

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sakif/transpile-bench/internal/apperror"
	"github.com/sakif/transpile-bench/internal/executor"
)

// Stderr values for outcomes that have no process output of their own.
const (
	TimeoutMessage        = "Timeout"
	CompileTimeoutMessage = "Compile timeout"
	CanceledMessage       = "Canceled"
)

var _ executor.Executor = (*Executor)(nil)

// Executor implements the executor.Executor interface with local processes.
type Executor struct {
	config     Config
	logger     *slog.Logger
	toolchains map[executor.Language]toolchain
}

// New creates an Executor for the given toolchain configuration.
func New(cfg Config, logger *slog.Logger) *Executor {
	return &Executor{
		config:     cfg,
		logger:     logger,
		toolchains: newToolchains(cfg),
	}
}

// Execute compiles (when the language needs it) and runs req.Source.
//
// Missing toolchains, compile errors, non-zero exits and timeouts are all
// reported through the result. The returned error is non-nil only for
// caller mistakes (non-positive timeout) and for failures wrapping
// executor.ErrEnvironment.
func (e *Executor) Execute(ctx context.Context, req executor.ExecutionRequest) (res *executor.ExecutionResult, err error) {
	if req.Timeout <= 0 {
		return nil, apperror.ValidationFailed("timeout", "timeout must be positive")
	}

	tc, ok := e.toolchains[req.Language]
	if !ok {
		return &executor.ExecutionResult{
			Stderr: fmt.Sprintf("unsupported language: %s", req.Language),
		}, nil
	}

	if missing := missingTools(tc.tools()); missing != nil {
		msg := strings.Join(tc.tools(), "/") + " not found on PATH."
		e.logger.Warn("toolchain missing",
			slog.String("language", string(req.Language)),
			slog.String("tools", strings.Join(missing, ",")),
		)
		return &executor.ExecutionResult{Stderr: msg}, nil
	}

	runDir, cleanup, err := setupRunDir(e.config.TempDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", executor.ErrEnvironment, err)
	}
	defer func() {
		if cerr := cleanup(); cerr != nil {
			e.logger.Error("failed to clean up run directory",
				slog.String("dir", runDir),
				slog.String("error", cerr.Error()),
			)
			if err == nil {
				res, err = nil, fmt.Errorf("%w: %w", executor.ErrEnvironment, cerr)
			}
		}
	}()

	return e.execute(ctx, tc, runDir, req)
}

func (e *Executor) execute(ctx context.Context, tc toolchain, runDir string, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	lang := slog.String("language", string(req.Language))

	srcPath := filepath.Join(runDir, tc.sourceFile(req.Source))
	if err := os.WriteFile(srcPath, []byte(req.Source), 0o600); err != nil {
		return nil, fmt.Errorf("%w: writing source file: %w", executor.ErrEnvironment, err)
	}

	res := &executor.ExecutionResult{}

	// === COMPILE PHASE ===
	if argv := tc.compileArgs(runDir, srcPath); argv != nil {
		e.logger.Debug("compiling", lang, slog.String("cmd", strings.Join(argv, " ")))

		comp := runProcess(ctx, runDir, e.config.CompileTimeout, e.config.WaitDelay, argv)
		res.CompileDuration = comp.duration

		if !comp.ok() {
			res.Stdout = comp.stdout
			res.Stderr = comp.stderr
			switch {
			case comp.timedOut:
				res.Stderr = CompileTimeoutMessage
			case comp.canceled:
				res.Stderr = CanceledMessage
			case comp.startErr != nil:
				res.Stderr = comp.startErr.Error()
			}
			e.logger.Debug("compile failed", lang,
				slog.Int("exitCode", comp.exitCode),
				slog.Duration("duration", comp.duration),
			)
			return res, nil
		}
	}

	// === RUN PHASE ===
	argv := tc.runArgs(runDir, srcPath)
	e.logger.Debug("running", lang, slog.String("cmd", strings.Join(argv, " ")))

	run := runProcess(ctx, runDir, req.Timeout, e.config.WaitDelay, argv)

	switch {
	case run.timedOut:
		e.logger.Warn("run timed out", lang, slog.Duration("timeout", req.Timeout))
		res.Stderr = TimeoutMessage
		res.RunDuration = req.Timeout
	case run.canceled:
		res.Stderr = CanceledMessage
		res.RunDuration = run.duration
	case run.startErr != nil:
		res.Stderr = run.startErr.Error()
	default:
		res.Succeeded = run.exitCode == 0
		res.Stdout = run.stdout
		res.Stderr = run.stderr
		res.RunDuration = run.duration
	}

	e.logger.Debug("run finished", lang,
		slog.Bool("succeeded", res.Succeeded),
		slog.Duration("compile", res.CompileDuration),
		slog.Duration("run", res.RunDuration),
	)
	return res, nil
}

// Missing returns the binaries lang needs that are not on PATH. An
// unsupported language reports itself as missing.
func (e *Executor) Missing(lang executor.Language) []string {
	tc, ok := e.toolchains[lang]
	if !ok {
		return []string{string(lang)}
	}
	return missingTools(tc.tools())
}

// missingTools returns the names in tools that do not resolve on PATH.
func missingTools(tools []string) []string {
	var missing []string
	for _, t := range tools {
		if _, err := exec.LookPath(t); err != nil {
			missing = append(missing, t)
		}
	}
	return missing
}
