package local

import (
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/sakif/transpile-bench/internal/executor"
)

// toolchain is one language variant of the runner. The Executor drives the
// same phases for every variant; a variant only says which binaries it
// needs, where the source goes and which commands to run.
type toolchain interface {
	// tools lists the executables that must resolve on PATH.
	tools() []string
	// sourceFile is the file name the source is written to.
	sourceFile(source string) string
	// compileArgs returns the compiler argv, or nil for interpreted languages.
	compileArgs(runDir, srcPath string) []string
	// runArgs returns the argv of the run phase.
	runArgs(runDir, srcPath string) []string
}

type pythonToolchain struct {
	python string
}

func (p pythonToolchain) tools() []string { return []string{p.python} }

func (p pythonToolchain) sourceFile(string) string { return "main.py" }

func (p pythonToolchain) compileArgs(string, string) []string { return nil }

func (p pythonToolchain) runArgs(_, srcPath string) []string {
	return []string{p.python, "-u", srcPath}
}

type cppToolchain struct {
	cxx   string
	flags []string
}

func (c cppToolchain) tools() []string { return []string{c.cxx} }

func (c cppToolchain) sourceFile(string) string { return "main.cpp" }

func (c cppToolchain) compileArgs(runDir, srcPath string) []string {
	argv := make([]string, 0, len(c.flags)+4)
	argv = append(argv, c.cxx)
	argv = append(argv, c.flags...)
	return append(argv, srcPath, "-o", cppExecutable(runDir))
}

func (c cppToolchain) runArgs(runDir, _ string) []string {
	return []string{cppExecutable(runDir)}
}

func cppExecutable(runDir string) string {
	name := "main"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(runDir, name)
}

type javaToolchain struct {
	javac string
	java  string
}

func (j javaToolchain) tools() []string { return []string{j.javac, j.java} }

func (j javaToolchain) sourceFile(source string) string {
	return javaClassName(source) + ".java"
}

func (j javaToolchain) compileArgs(_, srcPath string) []string {
	return []string{j.javac, srcPath}
}

func (j javaToolchain) runArgs(runDir, srcPath string) []string {
	class := strings.TrimSuffix(filepath.Base(srcPath), ".java")
	return []string{j.java, "-cp", runDir, class}
}

// DefaultJavaClass is used when the source declares no public class.
const DefaultJavaClass = "Main"

var publicClassPattern = regexp.MustCompile(`public\s+class\s+([A-Za-z_]\w*)`)

// javaClassName returns the first public class declared in source, or
// DefaultJavaClass. javac requires the file to be named after that class.
//
// This is a textual match: a declaration inside a comment or string, or a
// nested public class appearing first, is picked up as well.
func javaClassName(source string) string {
	m := publicClassPattern.FindStringSubmatch(source)
	if m == nil {
		return DefaultJavaClass
	}
	return m[1]
}

func newToolchains(cfg Config) map[executor.Language]toolchain {
	return map[executor.Language]toolchain{
		executor.Python: pythonToolchain{python: cfg.PythonBin},
		executor.CPP:    cppToolchain{cxx: cfg.CXXBin, flags: cfg.CXXFlags},
		executor.Java:   javaToolchain{javac: cfg.JavacBin, java: cfg.JavaBin},
	}
}
