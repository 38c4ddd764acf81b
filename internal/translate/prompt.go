package translate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sakif/transpile-bench/internal/executor"
)

const systemPromptTemplate = `You are a compiler-grade code transpiler.
Convert the given source code from %[1]s to %[2]s.
Preserve logic, naming, and structure as much as possible.
Output only valid %[2]s code (no markdown fences).
The response needs to produce an identical output in the fastest possible time.`

// SystemPrompt returns the instruction block sent as the system message.
func SystemPrompt(from, to executor.Language) string {
	return fmt.Sprintf(systemPromptTemplate, from, to)
}

// UserPrompt wraps the code to convert.
func UserPrompt(from, to executor.Language, code string) string {
	return fmt.Sprintf("Convert the following %s code into %s. Output only %s code:\n\n%s", from, to, to, code)
}

// fencePattern matches the first fenced block; the info string may carry
// a language tag such as "cpp" or "c++".
var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z0-9+]*\n(.*?)```")

// ExtractCode pulls the program out of a model reply. Models are told not to
// use markdown fences but often do anyway: the first fenced block wins,
// otherwise the whole reply is used. The result is whitespace-trimmed.
func ExtractCode(text string) string {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}
