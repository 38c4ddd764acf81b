package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/transpile-bench/internal/apperror"
	"github.com/sakif/transpile-bench/internal/executor"
	"github.com/sakif/transpile-bench/internal/model"
	"github.com/sakif/transpile-bench/internal/repository"
	"github.com/sakif/transpile-bench/internal/translate"
)

// Run timeout bounds in seconds, as offered by the UI.
const (
	MinTimeoutSeconds     = 1
	MaxTimeoutSeconds     = 250
	DefaultTimeoutSeconds = 10
)

const historyWriteTimeout = 5 * time.Second

// Translator is the part of *translate.Translator the playground uses.
type Translator interface {
	Translate(ctx context.Context, req translate.Request) (*translate.Result, error)
}

// ToolchainChecker is implemented by executors that can report which
// binaries a language is missing on this host.
type ToolchainChecker interface {
	Missing(lang executor.Language) []string
}

// PlaygroundService converts programs and runs them for comparison.
//
//	ExecuteHandler → PlaygroundService → executor.Executor (local.Pool → local.Executor)
//	                                   ↘ Translator (OpenAI / Anthropic)
//	                                   ↘ RunRepository (history, optional)
//
// Every run goes through the same checks: execution switched on
// (ALLOW_EXEC), a known language, code within MaxCodeLength, and a timeout
// within [MinTimeoutSeconds, MaxTimeoutSeconds]. The executor never sees a
// request that fails them.
type PlaygroundService struct {
	exec       executor.Executor
	translator Translator
	runs       repository.RunRepository
	allowExec  bool
	logger     *slog.Logger
}

// NewPlaygroundService wires the service. runs may be nil to disable the
// benchmark history. With allowExec false every run is refused.
func NewPlaygroundService(
	exec executor.Executor,
	translator Translator,
	runs repository.RunRepository,
	allowExec bool,
	logger *slog.Logger,
) *PlaygroundService {
	return &PlaygroundService{
		exec:       exec,
		translator: translator,
		runs:       runs,
		allowExec:  allowExec,
		logger:     logger,
	}
}

// ExecEnabled reports whether local execution is switched on.
func (s *PlaygroundService) ExecEnabled() bool { return s.allowExec }

// LanguageInfo describes one supported language and whether its toolchain
// is installed here.
type LanguageInfo struct {
	Name      executor.Language `json:"name"`
	Compiled  bool              `json:"compiled"`
	Available bool              `json:"available"`
	Missing   []string          `json:"missing,omitempty"`
}

// Languages lists every supported language in display order.
func (s *PlaygroundService) Languages() []LanguageInfo {
	checker, _ := s.exec.(ToolchainChecker)

	out := make([]LanguageInfo, 0, len(executor.Languages))
	for _, lang := range executor.Languages {
		info := LanguageInfo{Name: lang, Compiled: lang != executor.Python, Available: true}
		if checker != nil {
			info.Missing = checker.Missing(lang)
			info.Available = len(info.Missing) == 0
		}
		out = append(out, info)
	}
	return out
}

// RunRequest asks for one program to be run.
type RunRequest struct {
	Language       string
	Code           string
	TimeoutSeconds int // 0 means DefaultTimeoutSeconds
	UserID         string
}

// Run executes one program and records it in the history.
func (s *PlaygroundService) Run(ctx context.Context, req RunRequest) (*executor.ExecutionResult, error) {
	if !s.allowExec {
		return nil, apperror.Forbidden("local execution is disabled; start the server with ALLOW_EXEC=true")
	}

	lang, err := executor.ParseLanguage(req.Language)
	if err != nil {
		return nil, err
	}
	if err := validateCode("code", req.Code); err != nil {
		return nil, err
	}
	timeout, err := normalizeTimeout(req.TimeoutSeconds)
	if err != nil {
		return nil, err
	}

	return s.run(ctx, lang, req.Code, timeout, req.UserID)
}

func (s *PlaygroundService) run(ctx context.Context, lang executor.Language, code string, timeout time.Duration, userID string) (*executor.ExecutionResult, error) {
	res, err := s.exec.Execute(ctx, executor.ExecutionRequest{
		Language: lang,
		Source:   code,
		Timeout:  timeout,
	})
	if err != nil {
		s.logger.Error("execution failed",
			slog.String("language", string(lang)),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("running %s: %w", lang, err)
	}

	s.logger.Info("program executed",
		slog.String("language", string(lang)),
		slog.Bool("succeeded", res.Succeeded),
		slog.Duration("compile", res.CompileDuration),
		slog.Duration("run", res.RunDuration),
	)

	s.record(ctx, lang, code, res, userID)
	return res, nil
}

// record stores the run in the history. A storage failure is logged and
// does not fail the run.
//
// The insert is detached from the caller's cancellation: a run cut short by
// a closed connection ("Canceled") still happened and belongs in the
// history. historyWriteTimeout keeps a stuck database from holding the
// request open.
func (s *PlaygroundService) record(ctx context.Context, lang executor.Language, code string, res *executor.ExecutionResult, userID string) {
	if s.runs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyWriteTimeout)
	defer cancel()

	err := s.runs.RecordRun(ctx, &model.Run{
		Language:        string(lang),
		Succeeded:       res.Succeeded,
		CompileDuration: res.CompileDuration,
		RunDuration:     res.RunDuration,
		CodeSize:        len(code),
		UserID:          userID,
	})
	if err != nil {
		s.logger.Warn("failed to record run", slog.String("error", err.Error()))
	}
}

// CompareRequest asks for a source program and its conversion to be run
// back to back.
type CompareRequest struct {
	SourceLanguage string
	SourceCode     string
	TargetLanguage string
	TargetCode     string
	TimeoutSeconds int
	UserID         string
}

// Comparison holds both results. OutputsMatch compares stdout with trailing
// whitespace trimmed. Speedup is source run time over target run time, set
// only when both runs succeeded.
type Comparison struct {
	Source       *executor.ExecutionResult `json:"source"`
	Target       *executor.ExecutionResult `json:"target"`
	OutputsMatch bool                      `json:"outputsMatch"`
	Speedup      float64                   `json:"speedup,omitempty"`
}

// Compare runs source then target sequentially with the same timeout, so
// the two timings do not compete for the CPU.
//
// FLOW:
//  1. Validate both sides (languages, code, timeout) before running anything
//  2. Run the source program, then the target program
//  3. OutputsMatch: both stdouts equal after trimming trailing whitespace
//  4. Speedup: source run time / target run time, only if both succeeded
//
// Both runs are recorded in the history like single runs.
func (s *PlaygroundService) Compare(ctx context.Context, req CompareRequest) (*Comparison, error) {
	if !s.allowExec {
		return nil, apperror.Forbidden("local execution is disabled; start the server with ALLOW_EXEC=true")
	}

	srcLang, err := executor.ParseLanguage(req.SourceLanguage)
	if err != nil {
		return nil, err
	}
	tgtLang, err := executor.ParseLanguage(req.TargetLanguage)
	if err != nil {
		return nil, err
	}
	if err := validateCode("sourceCode", req.SourceCode); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.TargetCode) == "" {
		return nil, apperror.ValidationFailed("targetCode", "no converted code yet; convert first")
	}
	if err := validateCode("targetCode", req.TargetCode); err != nil {
		return nil, err
	}
	timeout, err := normalizeTimeout(req.TimeoutSeconds)
	if err != nil {
		return nil, err
	}

	src, err := s.run(ctx, srcLang, req.SourceCode, timeout, req.UserID)
	if err != nil {
		return nil, err
	}
	tgt, err := s.run(ctx, tgtLang, req.TargetCode, timeout, req.UserID)
	if err != nil {
		return nil, err
	}

	cmp := &Comparison{
		Source:       src,
		Target:       tgt,
		OutputsMatch: OutputsMatch(src.Stdout, tgt.Stdout),
	}
	if src.Succeeded && tgt.Succeeded && tgt.RunDuration > 0 {
		cmp.Speedup = float64(src.RunDuration) / float64(tgt.RunDuration)
	}
	return cmp, nil
}

// OutputsMatch reports whether two program outputs are equal once trailing
// whitespace is removed from every line and from the end.
func OutputsMatch(a, b string) bool {
	return normalizeOutput(a) == normalizeOutput(b)
}

func normalizeOutput(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

// TranslateRequest asks for a program to be converted.
type TranslateRequest struct {
	Engine string // "" means openai
	Model  string
	From   string
	To     string
	Code   string
}

// Translate converts a program with the chosen engine. Conversion does not
// execute anything, so it is allowed with execution disabled.
func (s *PlaygroundService) Translate(ctx context.Context, req TranslateRequest) (*translate.Result, error) {
	engine := translate.EngineOpenAI
	if strings.TrimSpace(req.Engine) != "" {
		e, err := translate.ParseEngine(req.Engine)
		if err != nil {
			return nil, err
		}
		engine = e
	}

	from, err := executor.ParseLanguage(req.From)
	if err != nil {
		return nil, err
	}
	to, err := executor.ParseLanguage(req.To)
	if err != nil {
		return nil, err
	}
	if err := validateCode("code", req.Code); err != nil {
		return nil, err
	}

	return s.translator.Translate(ctx, translate.Request{
		Engine: engine,
		Model:  req.Model,
		From:   from,
		To:     to,
		Code:   req.Code,
	})
}

// History returns recent runs, newest first.
func (s *PlaygroundService) History(ctx context.Context, language string, limit, offset int) ([]model.Run, error) {
	if s.runs == nil {
		return []model.Run{}, nil
	}
	opts, err := listOptions(language, limit, offset)
	if err != nil {
		return nil, err
	}
	runs, err := s.runs.ListRuns(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// Stats aggregates the history per language.
func (s *PlaygroundService) Stats(ctx context.Context) ([]model.LanguageStats, error) {
	if s.runs == nil {
		return []model.LanguageStats{}, nil
	}
	stats, err := s.runs.RunStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregating runs: %w", err)
	}
	if stats == nil {
		stats = []model.LanguageStats{}
	}
	return stats, nil
}

func normalizeTimeout(seconds int) (time.Duration, error) {
	if seconds == 0 {
		seconds = DefaultTimeoutSeconds
	}
	if seconds < MinTimeoutSeconds || seconds > MaxTimeoutSeconds {
		return 0, apperror.ValidationFailed("timeout",
			fmt.Sprintf("timeout must be between %d and %d seconds", MinTimeoutSeconds, MaxTimeoutSeconds))
	}
	return time.Duration(seconds) * time.Second, nil
}

func validateCode(field, code string) error {
	if strings.TrimSpace(code) == "" {
		return apperror.ValidationFailed(field, "code cannot be empty")
	}
	if len(code) > MaxCodeLength {
		return apperror.ValidationFailed(field,
			fmt.Sprintf("code must be %d bytes or less", MaxCodeLength))
	}
	return nil
}

// listOptions clamps paging and canonicalises an optional language filter.
func listOptions(language string, limit, offset int) (repository.ListOptions, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	opts := repository.ListOptions{Limit: limit, Offset: offset}
	if strings.TrimSpace(language) != "" {
		lang, err := executor.ParseLanguage(language)
		if err != nil {
			return opts, err
		}
		opts.Language = string(lang)
	}
	return opts, nil
}
