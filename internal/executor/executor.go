// Package executor defines the contract between callers that want a program
// run and the runners that compile and execute it.
package executor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sakif/transpile-bench/internal/apperror"
)

// Language is one of the closed set of languages the playground can run.
// The string value is the display name the UI shows.
type Language string

const (
	Python Language = "Python"
	CPP    Language = "C++"
	Java   Language = "Java"
)

// Languages lists every supported language in display order.
var Languages = []Language{Python, CPP, Java}

// ParseLanguage maps a user-supplied tag to a Language. Matching is
// case-insensitive and accepts the usual short aliases.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "python", "py", "python3":
		return Python, nil
	case "c++", "cpp", "cxx":
		return CPP, nil
	case "java":
		return Java, nil
	}
	return "", apperror.ValidationFailed("language", "unsupported language: "+s)
}

// ErrEnvironment wraps failures of the host itself (temp directory cannot
// be created or removed). It is the only failure an Executor returns as an
// error; everything else is encoded in the ExecutionResult.
var ErrEnvironment = errors.New("execution environment failure")

// ExecutionRequest represents a request to run one program.
//
// Timeout bounds the run phase only.
type ExecutionRequest struct {
	Language Language      `json:"language"`
	Source   string        `json:"source"`
	Timeout  time.Duration `json:"timeout"`
}

// ExecutionResult represents the output and timings of one execution.
type ExecutionResult struct {
	Succeeded       bool          `json:"succeeded"`
	Stdout          string        `json:"stdout"`
	Stderr          string        `json:"stderr"`
	CompileDuration time.Duration `json:"compileDuration"`
	RunDuration     time.Duration `json:"runDuration"`
}

// Executor represents the core interface for compiling and running code.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
}
