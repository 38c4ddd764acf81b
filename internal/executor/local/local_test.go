package local_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/transpile-bench/internal/apperror"
	"github.com/sakif/transpile-bench/internal/executor"
	"github.com/sakif/transpile-bench/internal/executor/local"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestExecutor returns an executor whose run directories live under a
// test-owned directory, so the test can check that nothing is left behind.
func newTestExecutor(t *testing.T, mutate func(*local.Config)) (*local.Executor, string) {
	t.Helper()
	cfg := local.DefaultConfig()
	cfg.TempDir = t.TempDir()
	if mutate != nil {
		mutate(&cfg)
	}
	return local.New(cfg, newTestLogger()), cfg.TempDir
}

func requireTools(t *testing.T, tools ...string) {
	t.Helper()
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not on PATH", tool)
		}
	}
}

func assertNoRunDirs(t *testing.T, base string) {
	t.Helper()
	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	assert.Empty(t, entries, "run directories should be removed after Execute")
}

func execute(t *testing.T, e *local.Executor, lang executor.Language, src string, timeout time.Duration) *executor.ExecutionResult {
	t.Helper()
	res, err := e.Execute(context.Background(), executor.ExecutionRequest{
		Language: lang,
		Source:   src,
		Timeout:  timeout,
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func TestExecute_Python(t *testing.T) {
	requireTools(t, "python3")
	e, base := newTestExecutor(t, nil)

	t.Run("hello", func(t *testing.T) {
		res := execute(t, e, executor.Python, `print("hello")`, 5*time.Second)

		assert.True(t, res.Succeeded)
		assert.Equal(t, "hello\n", res.Stdout)
		assert.Empty(t, res.Stderr)
		assert.Zero(t, res.CompileDuration)
		assert.Greater(t, res.RunDuration, time.Duration(0))
		assertNoRunDirs(t, base)
	})

	t.Run("non-zero exit", func(t *testing.T) {
		res := execute(t, e, executor.Python, "import sys\nsys.stderr.write('boom')\nsys.exit(3)", 5*time.Second)

		assert.False(t, res.Succeeded)
		assert.Equal(t, "boom", res.Stderr)
		assertNoRunDirs(t, base)
	})

	t.Run("syntax error is a run failure", func(t *testing.T) {
		res := execute(t, e, executor.Python, `print("missing parenthesis"`, 5*time.Second)

		assert.False(t, res.Succeeded)
		assert.Contains(t, res.Stderr, "SyntaxError")
		assert.Zero(t, res.CompileDuration)
	})

	t.Run("timeout", func(t *testing.T) {
		start := time.Now()
		res := execute(t, e, executor.Python, "import time\ntime.sleep(30)", time.Second)

		assert.Less(t, time.Since(start), 10*time.Second)
		assert.False(t, res.Succeeded)
		assert.Empty(t, res.Stdout)
		assert.Equal(t, local.TimeoutMessage, res.Stderr)
		assert.Equal(t, time.Second, res.RunDuration)
		assertNoRunDirs(t, base)
	})
}

func TestExecute_CPP(t *testing.T) {
	requireTools(t, "g++")
	e, base := newTestExecutor(t, nil)

	t.Run("hello", func(t *testing.T) {
		src := "#include <iostream>\nint main(){ std::cout << \"hello\" << std::endl; }"
		res := execute(t, e, executor.CPP, src, 10*time.Second)

		assert.True(t, res.Succeeded)
		assert.Equal(t, "hello\n", res.Stdout)
		assert.Empty(t, res.Stderr)
		assert.Greater(t, res.CompileDuration, time.Duration(0))
		assert.Greater(t, res.RunDuration, time.Duration(0))
		assertNoRunDirs(t, base)
	})

	t.Run("compile error", func(t *testing.T) {
		res := execute(t, e, executor.CPP, "int main() { return undefined_symbol; }", 10*time.Second)

		assert.False(t, res.Succeeded)
		assert.Zero(t, res.RunDuration)
		assert.Greater(t, res.CompileDuration, time.Duration(0))
		assert.NotEmpty(t, res.Stdout+res.Stderr)
		assertNoRunDirs(t, base)
	})

	t.Run("non-zero exit", func(t *testing.T) {
		res := execute(t, e, executor.CPP, "int main() { return 4; }", 10*time.Second)

		assert.False(t, res.Succeeded)
		assert.Greater(t, res.RunDuration, time.Duration(0))
	})

	t.Run("timeout keeps compile duration", func(t *testing.T) {
		res := execute(t, e, executor.CPP, "int main() { volatile int x = 0; for(;;) { x++; } }", time.Second)

		assert.False(t, res.Succeeded)
		assert.Equal(t, local.TimeoutMessage, res.Stderr)
		assert.Equal(t, time.Second, res.RunDuration)
		assert.Greater(t, res.CompileDuration, time.Duration(0))
		assertNoRunDirs(t, base)
	})
}

func TestExecute_Java(t *testing.T) {
	requireTools(t, "javac", "java")
	e, base := newTestExecutor(t, nil)

	t.Run("class name comes from the public class", func(t *testing.T) {
		src := `public class Foo { public static void main(String[] a) { System.out.println(Foo.class.getName()); } }`
		res := execute(t, e, executor.Java, src, 20*time.Second)

		assert.True(t, res.Succeeded, res.Stderr)
		assert.Equal(t, "Foo\n", res.Stdout)
		assert.Greater(t, res.CompileDuration, time.Duration(0))
		assertNoRunDirs(t, base)
	})

	t.Run("no public class falls back to Main", func(t *testing.T) {
		src := `class Main { public static void main(String[] a) { System.out.println("fallback"); } }`
		res := execute(t, e, executor.Java, src, 20*time.Second)

		assert.True(t, res.Succeeded, res.Stderr)
		assert.Equal(t, "fallback\n", res.Stdout)
	})

	t.Run("compile error", func(t *testing.T) {
		src := `public class Broken { public static void main(String[] a) { int x = } }`
		res := execute(t, e, executor.Java, src, 20*time.Second)

		assert.False(t, res.Succeeded)
		assert.Zero(t, res.RunDuration)
		assert.Greater(t, res.CompileDuration, time.Duration(0))
		assert.NotEmpty(t, res.Stdout+res.Stderr)
		assertNoRunDirs(t, base)
	})
}

func TestExecute_MissingToolchain(t *testing.T) {
	t.Run("c++", func(t *testing.T) {
		e, base := newTestExecutor(t, func(c *local.Config) { c.CXXBin = "no-such-cxx-compiler" })

		res := execute(t, e, executor.CPP, "int main() {}", time.Second)

		assert.False(t, res.Succeeded)
		assert.Empty(t, res.Stdout)
		assert.Equal(t, "no-such-cxx-compiler not found on PATH.", res.Stderr)
		assert.Zero(t, res.CompileDuration)
		assert.Zero(t, res.RunDuration)
		assertNoRunDirs(t, base)
	})

	t.Run("java names both tools", func(t *testing.T) {
		e, base := newTestExecutor(t, func(c *local.Config) { c.JavacBin = "no-such-javac" })

		res := execute(t, e, executor.Java, "public class A {}", time.Second)

		assert.False(t, res.Succeeded)
		assert.Equal(t, "no-such-javac/java not found on PATH.", res.Stderr)
		assertNoRunDirs(t, base)
	})

	t.Run("python", func(t *testing.T) {
		e, _ := newTestExecutor(t, func(c *local.Config) { c.PythonBin = "no-such-python" })

		res := execute(t, e, executor.Python, "print(1)", time.Second)

		assert.False(t, res.Succeeded)
		assert.Contains(t, res.Stderr, "no-such-python")
	})
}

func TestExecute_UnsupportedLanguage(t *testing.T) {
	e, _ := newTestExecutor(t, nil)

	res := execute(t, e, executor.Language("Rust"), "fn main() {}", time.Second)

	assert.False(t, res.Succeeded)
	assert.Equal(t, "unsupported language: Rust", res.Stderr)
}

func TestExecute_InvalidTimeout(t *testing.T) {
	e, _ := newTestExecutor(t, nil)

	_, err := e.Execute(context.Background(), executor.ExecutionRequest{
		Language: executor.Python,
		Source:   "print(1)",
	})

	assert.True(t, errors.Is(err, apperror.ErrValidation))
}

func TestExecute_EnvironmentFailure(t *testing.T) {
	// A regular file where the temp directory should be.
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	self, err := os.Executable()
	require.NoError(t, err)

	e := local.New(local.Config{
		TempDir:   filepath.Join(blocker, "runs"),
		PythonBin: self,
	}, newTestLogger())

	res, err := e.Execute(context.Background(), executor.ExecutionRequest{
		Language: executor.Python,
		Source:   "print(1)",
		Timeout:  time.Second,
	})

	assert.Nil(t, res)
	assert.True(t, errors.Is(err, executor.ErrEnvironment))
}

func TestExecute_CallerCancellation(t *testing.T) {
	requireTools(t, "python3")
	e, base := newTestExecutor(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	res, err := e.Execute(ctx, executor.ExecutionRequest{
		Language: executor.Python,
		Source:   "import time\ntime.sleep(30)",
		Timeout:  20 * time.Second,
	})

	require.NoError(t, err)
	assert.False(t, res.Succeeded)
	assert.Equal(t, local.CanceledMessage, res.Stderr)
	assert.Less(t, res.RunDuration, 20*time.Second)
	assertNoRunDirs(t, base)
}

func TestExecute_ConcurrentCallsAreIsolated(t *testing.T) {
	requireTools(t, "python3")
	e, base := newTestExecutor(t, nil)

	const n = 4
	results := make([]*executor.ExecutionResult, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = e.Execute(context.Background(), executor.ExecutionRequest{
				Language: executor.Python,
				Source:   fmt.Sprintf("print(%d)", i),
				Timeout:  10 * time.Second,
			})
		}()
	}
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, fmt.Sprintf("%d\n", i), results[i].Stdout)
	}
	assertNoRunDirs(t, base)
}

func TestMissing(t *testing.T) {
	e, _ := newTestExecutor(t, func(c *local.Config) {
		c.CXXBin = "no-such-cxx-compiler"
		c.JavaBin = "no-such-java"
	})

	assert.Equal(t, []string{"no-such-cxx-compiler"}, e.Missing(executor.CPP))
	assert.Contains(t, e.Missing(executor.Java), "no-such-java")
	assert.Equal(t, []string{"Rust"}, e.Missing(executor.Language("Rust")))
}

// processState returns the state letter from /proc/<pid>/stat, or "" once
// the process is gone.
func processState(t *testing.T, pid int) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if errors.Is(err, os.ErrNotExist) {
		return ""
	}
	require.NoError(t, err)
	// "pid (comm) S ..."; comm may itself contain spaces or parentheses.
	rest := string(data[strings.LastIndexByte(string(data), ')')+1:])
	fields := strings.Fields(rest)
	require.NotEmpty(t, fields)
	return fields[0]
}

func TestExecute_TimeoutKillsProcessGroup(t *testing.T) {
	requireTools(t, "python3", "sleep")
	if _, err := os.Stat("/proc/self/stat"); err != nil {
		t.Skip("needs /proc")
	}
	e, base := newTestExecutor(t, nil)

	pidFile := filepath.Join(t.TempDir(), "child.pid")
	src := fmt.Sprintf(`import subprocess, time
p = subprocess.Popen(["sleep", "60"])
with open(%q, "w") as f:
    f.write(str(p.pid))
time.sleep(30)
`, pidFile)

	res := execute(t, e, executor.Python, src, time.Second)
	assert.Equal(t, local.TimeoutMessage, res.Stderr)
	assertNoRunDirs(t, base)

	data, err := os.ReadFile(pidFile)
	require.NoError(t, err, "program should have started its child before the timeout")
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)

	// Killed grandchildren are gone, or zombies until their new parent
	// reaps them.
	assert.Eventually(t, func() bool {
		state := processState(t, pid)
		return state == "" || state == "Z"
	}, 2*time.Second, 20*time.Millisecond, "sleep %d survived the timeout", pid)
}

func TestExecute_CompileTimeout(t *testing.T) {
	requireTools(t, "g++")
	e, base := newTestExecutor(t, func(c *local.Config) { c.CompileTimeout = time.Millisecond })

	res := execute(t, e, executor.CPP, "#include <iostream>\nint main(){ std::cout << 1; }", 10*time.Second)

	assert.False(t, res.Succeeded)
	assert.Equal(t, local.CompileTimeoutMessage, res.Stderr)
	assert.Empty(t, res.Stdout)
	assert.Greater(t, res.CompileDuration, time.Duration(0))
	assert.Zero(t, res.RunDuration)
	assertNoRunDirs(t, base)
}

func TestExecute_BackgroundChildDoesNotExtendRun(t *testing.T) {
	requireTools(t, "python3", "sleep")
	e, base := newTestExecutor(t, func(c *local.Config) { c.WaitDelay = 5 * time.Second })

	// The child inherits stdout and would keep the pipe open for 30s.
	src := `import subprocess
subprocess.Popen(["sleep", "30"])
print("done")
`
	start := time.Now()
	res := execute(t, e, executor.Python, src, 10*time.Second)

	assert.True(t, res.Succeeded)
	assert.Equal(t, "done\n", res.Stdout)
	assert.Less(t, res.RunDuration, 2*time.Second)
	assert.Less(t, time.Since(start), 4*time.Second)
	assertNoRunDirs(t, base)
}
