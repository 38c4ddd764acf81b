package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sakif/transpile-bench/internal/apperror"
	"github.com/sakif/transpile-bench/internal/executor"
	"github.com/sakif/transpile-bench/internal/repository"
	"github.com/sakif/transpile-bench/internal/translate"
)

type mockExecutor struct {
	mock.Mock
}

func (m *mockExecutor) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*executor.ExecutionResult)
	return res, args.Error(1)
}

// checkingExecutor also reports missing toolchains.
type checkingExecutor struct {
	mockExecutor
	missing map[executor.Language][]string
}

func (c *checkingExecutor) Missing(lang executor.Language) []string {
	return c.missing[lang]
}

type mockTranslator struct {
	mock.Mock
}

func (m *mockTranslator) Translate(ctx context.Context, req translate.Request) (*translate.Result, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*translate.Result)
	return res, args.Error(1)
}

func newPlayground(exec executor.Executor, tr Translator, runs *fakeRunRepo, allow bool) *PlaygroundService {
	var store repository.RunRepository
	if runs != nil {
		store = runs
	}
	return NewPlaygroundService(exec, tr, store, allow, discardLogger())
}

func TestRun_Disabled(t *testing.T) {
	exec := new(mockExecutor)
	svc := newPlayground(exec, nil, nil, false)

	_, err := svc.Run(context.Background(), RunRequest{Language: "Python", Code: "print(1)"})

	assert.True(t, errors.Is(err, apperror.ErrForbidden))
	exec.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestRun_PassesNormalizedRequest(t *testing.T) {
	exec := new(mockExecutor)
	runs := &fakeRunRepo{}
	want := &executor.ExecutionResult{Succeeded: true, Stdout: "1\n", RunDuration: 20 * time.Millisecond}
	exec.On("Execute", mock.Anything, executor.ExecutionRequest{
		Language: executor.Python,
		Source:   "print(1)",
		Timeout:  DefaultTimeoutSeconds * time.Second,
	}).Return(want, nil).Once()

	svc := newPlayground(exec, nil, runs, true)
	got, err := svc.Run(context.Background(), RunRequest{Language: "py", Code: "print(1)", UserID: "user-1"})

	require.NoError(t, err)
	assert.Same(t, want, got)
	exec.AssertExpectations(t)

	require.Len(t, runs.runs, 1)
	assert.Equal(t, "Python", runs.runs[0].Language)
	assert.True(t, runs.runs[0].Succeeded)
	assert.Equal(t, len("print(1)"), runs.runs[0].CodeSize)
	assert.Equal(t, "user-1", runs.runs[0].UserID)
}

func TestRun_Validation(t *testing.T) {
	tests := []struct {
		name  string
		req   RunRequest
		field string
	}{
		{"unknown language", RunRequest{Language: "Rust", Code: "fn main(){}"}, "language"},
		{"empty code", RunRequest{Language: "Python", Code: "   "}, "code"},
		{"code too long", RunRequest{Language: "Python", Code: strings.Repeat("x", MaxCodeLength+1)}, "code"},
		{"timeout too small", RunRequest{Language: "Python", Code: "1", TimeoutSeconds: -1}, "timeout"},
		{"timeout too large", RunRequest{Language: "Python", Code: "1", TimeoutSeconds: MaxTimeoutSeconds + 1}, "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := new(mockExecutor)
			_, err := newPlayground(exec, nil, nil, true).Run(context.Background(), tt.req)

			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.True(t, errors.Is(err, apperror.ErrValidation))
			assert.Equal(t, tt.field, appErr.Field)
			exec.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
		})
	}
}

func TestRun_TimeoutBounds(t *testing.T) {
	for _, secs := range []int{MinTimeoutSeconds, MaxTimeoutSeconds} {
		exec := new(mockExecutor)
		exec.On("Execute", mock.Anything, mock.MatchedBy(func(r executor.ExecutionRequest) bool {
			return r.Timeout == time.Duration(secs)*time.Second
		})).Return(&executor.ExecutionResult{}, nil).Once()

		_, err := newPlayground(exec, nil, nil, true).Run(context.Background(),
			RunRequest{Language: "Java", Code: "class Main {}", TimeoutSeconds: secs})

		require.NoError(t, err)
		exec.AssertExpectations(t)
	}
}

func TestRun_EnvironmentFailure(t *testing.T) {
	exec := new(mockExecutor)
	exec.On("Execute", mock.Anything, mock.Anything).
		Return(nil, errors.Join(executor.ErrEnvironment, errors.New("disk full")))
	runs := &fakeRunRepo{}

	_, err := newPlayground(exec, nil, runs, true).Run(context.Background(),
		RunRequest{Language: "C++", Code: "int main(){}"})

	assert.True(t, errors.Is(err, executor.ErrEnvironment))
	assert.Empty(t, runs.runs, "failed executions are not recorded")
}

func TestRun_HistoryFailureDoesNotFailRun(t *testing.T) {
	exec := new(mockExecutor)
	exec.On("Execute", mock.Anything, mock.Anything).Return(&executor.ExecutionResult{Succeeded: true}, nil)
	runs := &fakeRunRepo{recordErr: errors.New("database is locked")}

	res, err := newPlayground(exec, nil, runs, true).Run(context.Background(),
		RunRequest{Language: "Python", Code: "print(1)"})

	require.NoError(t, err)
	assert.True(t, res.Succeeded)
}

func TestRun_CanceledRunIsRecorded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	exec := new(mockExecutor)
	exec.On("Execute", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(&executor.ExecutionResult{Stderr: "Canceled", RunDuration: 300 * time.Millisecond}, nil)
	runs := &fakeRunRepo{}

	res, err := newPlayground(exec, nil, runs, true).Run(ctx,
		RunRequest{Language: "Python", Code: "import time\ntime.sleep(30)", UserID: "u1"})

	require.NoError(t, err)
	assert.Equal(t, "Canceled", res.Stderr)
	require.Len(t, runs.runs, 1)
	assert.False(t, runs.runs[0].Succeeded)
	assert.Equal(t, 300*time.Millisecond, runs.runs[0].RunDuration)
	assert.Equal(t, "u1", runs.runs[0].UserID)
}

func TestCompare(t *testing.T) {
	exec := new(mockExecutor)
	exec.On("Execute", mock.Anything, mock.MatchedBy(func(r executor.ExecutionRequest) bool {
		return r.Language == executor.Python
	})).Return(&executor.ExecutionResult{Succeeded: true, Stdout: "i= 0\n", RunDuration: 40 * time.Millisecond}, nil).Once()
	exec.On("Execute", mock.Anything, mock.MatchedBy(func(r executor.ExecutionRequest) bool {
		return r.Language == executor.CPP && r.Timeout == 5*time.Second
	})).Return(&executor.ExecutionResult{Succeeded: true, Stdout: "i= 0  \n\n", RunDuration: 10 * time.Millisecond}, nil).Once()
	runs := &fakeRunRepo{}

	cmp, err := newPlayground(exec, nil, runs, true).Compare(context.Background(), CompareRequest{
		SourceLanguage: "Python",
		SourceCode:     "print('i=', 0)",
		TargetLanguage: "C++",
		TargetCode:     "int main(){}",
		TimeoutSeconds: 5,
	})

	require.NoError(t, err)
	assert.True(t, cmp.OutputsMatch)
	assert.InDelta(t, 4.0, cmp.Speedup, 1e-9)
	assert.Len(t, runs.runs, 2)
	exec.AssertExpectations(t)
}

func TestCompare_NoSpeedupWhenTargetFails(t *testing.T) {
	exec := new(mockExecutor)
	exec.On("Execute", mock.Anything, mock.MatchedBy(func(r executor.ExecutionRequest) bool {
		return r.Language == executor.Python
	})).Return(&executor.ExecutionResult{Succeeded: true, Stdout: "1\n", RunDuration: time.Millisecond}, nil)
	exec.On("Execute", mock.Anything, mock.MatchedBy(func(r executor.ExecutionRequest) bool {
		return r.Language == executor.Java
	})).Return(&executor.ExecutionResult{Stderr: "Timeout", RunDuration: 10 * time.Second}, nil)

	cmp, err := newPlayground(exec, nil, nil, true).Compare(context.Background(), CompareRequest{
		SourceLanguage: "Python", SourceCode: "print(1)",
		TargetLanguage: "Java", TargetCode: "class Main {}",
	})

	require.NoError(t, err)
	assert.False(t, cmp.OutputsMatch)
	assert.Zero(t, cmp.Speedup)
}

func TestCompare_RequiresTargetCode(t *testing.T) {
	exec := new(mockExecutor)

	_, err := newPlayground(exec, nil, nil, true).Compare(context.Background(), CompareRequest{
		SourceLanguage: "Python", SourceCode: "print(1)",
		TargetLanguage: "Java",
	})

	assert.True(t, errors.Is(err, apperror.ErrValidation))
	assert.Contains(t, err.Error(), "convert first")
	exec.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestOutputsMatch(t *testing.T) {
	assert.True(t, OutputsMatch("a\nb\n", "a\nb"))
	assert.True(t, OutputsMatch("a  \r\nb\t\n", "a\nb\n\n"))
	assert.False(t, OutputsMatch("a\nb", "a\n b"))
	assert.False(t, OutputsMatch("i= 0", "i=0"))
	assert.True(t, OutputsMatch("", "\n"))
}

func TestTranslate(t *testing.T) {
	tr := new(mockTranslator)
	tr.On("Translate", mock.Anything, translate.Request{
		Engine: translate.EngineAnthropic,
		Model:  "claude-x",
		From:   executor.Python,
		To:     executor.Java,
		Code:   "print(1)",
	}).Return(&translate.Result{Code: "class Main {}"}, nil).Once()

	// Conversion is allowed with execution disabled.
	svc := newPlayground(new(mockExecutor), tr, nil, false)
	res, err := svc.Translate(context.Background(), TranslateRequest{
		Engine: "claude",
		Model:  "claude-x",
		From:   "python",
		To:     "java",
		Code:   "print(1)",
	})

	require.NoError(t, err)
	assert.Equal(t, "class Main {}", res.Code)
	tr.AssertExpectations(t)
}

func TestTranslate_DefaultsToOpenAI(t *testing.T) {
	tr := new(mockTranslator)
	tr.On("Translate", mock.Anything, mock.MatchedBy(func(r translate.Request) bool {
		return r.Engine == translate.EngineOpenAI
	})).Return(&translate.Result{Code: "x"}, nil).Once()

	_, err := newPlayground(new(mockExecutor), tr, nil, true).Translate(context.Background(),
		TranslateRequest{From: "C++", To: "Python", Code: "int x;"})

	require.NoError(t, err)
	tr.AssertExpectations(t)
}

func TestTranslate_Validation(t *testing.T) {
	tr := new(mockTranslator)
	svc := newPlayground(new(mockExecutor), tr, nil, true)

	for _, req := range []TranslateRequest{
		{Engine: "gemini", From: "Python", To: "Java", Code: "x"},
		{From: "Cobol", To: "Java", Code: "x"},
		{From: "Python", To: "Java", Code: ""},
	} {
		_, err := svc.Translate(context.Background(), req)
		assert.True(t, errors.Is(err, apperror.ErrValidation), "%+v", req)
	}
	tr.AssertNotCalled(t, "Translate", mock.Anything, mock.Anything)
}

func TestLanguages(t *testing.T) {
	exec := &checkingExecutor{missing: map[executor.Language][]string{
		executor.Java: {"javac", "java"},
	}}

	langs := newPlayground(exec, nil, nil, true).Languages()

	require.Len(t, langs, 3)
	assert.Equal(t, LanguageInfo{Name: executor.Python, Compiled: false, Available: true}, langs[0])
	assert.True(t, langs[1].Available)
	assert.True(t, langs[1].Compiled)
	assert.False(t, langs[2].Available)
	assert.Equal(t, []string{"javac", "java"}, langs[2].Missing)
}

func TestHistoryAndStats(t *testing.T) {
	exec := new(mockExecutor)
	exec.On("Execute", mock.Anything, mock.Anything).Return(&executor.ExecutionResult{Succeeded: true}, nil)
	runs := &fakeRunRepo{}
	svc := newPlayground(exec, nil, runs, true)

	for _, lang := range []string{"Python", "Java", "Python"} {
		_, err := svc.Run(context.Background(), RunRequest{Language: lang, Code: "x"})
		require.NoError(t, err)
	}

	history, err := svc.History(context.Background(), "py", 0, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	_, err = svc.History(context.Background(), "Rust", 0, 0)
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Len(t, stats, 2)
}

func TestHistory_WithoutStore(t *testing.T) {
	svc := NewPlaygroundService(new(mockExecutor), nil, nil, true, discardLogger())

	history, err := svc.History(context.Background(), "", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, history)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stats)
}
