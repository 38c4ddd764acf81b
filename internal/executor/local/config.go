package local

import (
	"time"
)

// Config holds the toolchain configuration for local execution. Every value
// the runner passes to a compiler or interpreter comes from here, so tests
// and deployments can point at other binaries or flags.
type Config struct {
	// TempDir is the parent directory for per-run working directories.
	// Empty means os.TempDir().
	TempDir string

	// PythonBin is the interpreter, invoked as `<PythonBin> -u <file>`.
	PythonBin string

	// CXXBin and CXXFlags form `<CXXBin> <CXXFlags...> <src> -o <exe>`.
	CXXBin   string
	CXXFlags []string

	// JavacBin compiles `<Class>.java`; JavaBin runs it with -cp <run dir>.
	JavacBin string
	JavaBin  string

	// CompileTimeout bounds the compile phase. Zero leaves the compile
	// phase bounded only by the caller's context.
	CompileTimeout time.Duration

	// WaitDelay is how long to wait for output pipes to close after the
	// program exits or is killed.
	WaitDelay time.Duration
}

// DefaultConfig returns the stock toolchain: python3, g++ -O2 -std=c++17,
// javac/java, no compile timeout.
func DefaultConfig() Config {
	return Config{
		PythonBin: "python3",
		CXXBin:    "g++",
		CXXFlags:  []string{"-O2", "-std=c++17"},
		JavacBin:  "javac",
		JavaBin:   "java",
		WaitDelay: 2 * time.Second,
	}
}
