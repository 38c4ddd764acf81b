package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/transpile-bench/internal/auth"
	"github.com/sakif/transpile-bench/internal/executor"
	"github.com/sakif/transpile-bench/internal/model"
	"github.com/sakif/transpile-bench/internal/service"
	"github.com/sakif/transpile-bench/internal/translate"
)

// ExecuteHandler serves conversion, execution and benchmark endpoints.
type ExecuteHandler struct {
	svc    *service.PlaygroundService
	logger *slog.Logger
}

// NewExecuteHandler creates a new ExecuteHandler.
func NewExecuteHandler(svc *service.PlaygroundService, logger *slog.Logger) *ExecuteHandler {
	return &ExecuteHandler{
		svc:    svc,
		logger: logger,
	}
}

type executeRequest struct {
	Language       string `json:"language"`
	Code           string `json:"code"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// resultResponse is an ExecutionResult with timings in seconds.
type resultResponse struct {
	Succeeded      bool    `json:"succeeded"`
	Stdout         string  `json:"stdout"`
	Stderr         string  `json:"stderr"`
	CompileSeconds float64 `json:"compileSeconds"`
	RunSeconds     float64 `json:"runSeconds"`
}

func newResultResponse(res *executor.ExecutionResult) resultResponse {
	return resultResponse{
		Succeeded:      res.Succeeded,
		Stdout:         res.Stdout,
		Stderr:         res.Stderr,
		CompileSeconds: res.CompileDuration.Seconds(),
		RunSeconds:     res.RunDuration.Seconds(),
	}
}

// HandleExecute runs one program.
//
// HTTP: POST /api/execute
// REQUEST BODY: {"language":"C++","code":"...","timeoutSeconds":10}
//
// RESPONSES:
//   - 200 with the result, also when the program failed to compile, exited
//     non-zero or timed out (those show up in stderr and exitCode)
//   - 400 for an unknown language, empty code or an out-of-range timeout
//   - 403 when the server runs without ALLOW_EXEC
//
// A signed-in caller's run is recorded under their user ID.
func (h *ExecuteHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid execution request body", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	res, err := h.svc.Run(r.Context(), service.RunRequest{
		Language:       req.Language,
		Code:           req.Code,
		TimeoutSeconds: req.TimeoutSeconds,
		UserID:         userID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newResultResponse(res))
}

type compareRequest struct {
	SourceLanguage string `json:"sourceLanguage"`
	SourceCode     string `json:"sourceCode"`
	TargetLanguage string `json:"targetLanguage"`
	TargetCode     string `json:"targetCode"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

type compareResponse struct {
	Source       resultResponse `json:"source"`
	Target       resultResponse `json:"target"`
	OutputsMatch bool           `json:"outputsMatch"`
	Speedup      float64        `json:"speedup,omitempty"`
}

// HandleCompare runs a program and its conversion back to back.
//
// HTTP: POST /api/compare
func (h *ExecuteHandler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	cmp, err := h.svc.Compare(r.Context(), service.CompareRequest{
		SourceLanguage: req.SourceLanguage,
		SourceCode:     req.SourceCode,
		TargetLanguage: req.TargetLanguage,
		TargetCode:     req.TargetCode,
		TimeoutSeconds: req.TimeoutSeconds,
		UserID:         userID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, compareResponse{
		Source:       newResultResponse(cmp.Source),
		Target:       newResultResponse(cmp.Target),
		OutputsMatch: cmp.OutputsMatch,
		Speedup:      cmp.Speedup,
	})
}

type translateRequest struct {
	Engine string `json:"engine"`
	Model  string `json:"model"`
	From   string `json:"from"`
	To     string `json:"to"`
	Code   string `json:"code"`
}

type translateResponse struct {
	Code            string           `json:"code"`
	Engine          translate.Engine `json:"engine"`
	Model           string           `json:"model"`
	DurationSeconds float64          `json:"durationSeconds"`
}

// HandleTranslate converts a program with an LLM engine.
//
// HTTP: POST /api/translate
// REQUEST BODY: {"engine":"openai","from":"Python","to":"C++","code":"..."}
//
// RESPONSES:
//   - 200 with the converted code, fences and prose already stripped
//   - 400 for an unknown engine or language, or when from equals to
//   - 502 when the provider rejected the request
//   - 503 when the engine has no API key configured
func (h *ExecuteHandler) HandleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.svc.Translate(r.Context(), service.TranslateRequest{
		Engine: req.Engine,
		Model:  req.Model,
		From:   req.From,
		To:     req.To,
		Code:   req.Code,
	})
	if err != nil {
		h.logger.Warn("translation failed",
			slog.String("engine", req.Engine),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, translateResponse{
		Code:            res.Code,
		Engine:          res.Engine,
		Model:           res.Model,
		DurationSeconds: res.Duration.Seconds(),
	})
}

type languagesResponse struct {
	ExecEnabled bool                   `json:"execEnabled"`
	Engines     []translate.Engine     `json:"engines"`
	Languages   []service.LanguageInfo `json:"languages"`
}

// HandleLanguages reports the supported languages and which toolchains
// are installed.
//
// HTTP: GET /api/languages
func (h *ExecuteHandler) HandleLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, languagesResponse{
		ExecEnabled: h.svc.ExecEnabled(),
		Engines:     translate.Engines,
		Languages:   h.svc.Languages(),
	})
}

// HandleExamples returns the built-in example per language.
//
// HTTP: GET /api/examples
func (h *ExecuteHandler) HandleExamples(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, service.Examples())
}

type runResponse struct {
	ID             string    `json:"id"`
	Language       string    `json:"language"`
	Succeeded      bool      `json:"succeeded"`
	CompileSeconds float64   `json:"compileSeconds"`
	RunSeconds     float64   `json:"runSeconds"`
	CodeSize       int       `json:"codeSize"`
	CreatedAt      time.Time `json:"createdAt"`
}

// HandleHistory lists recent runs.
//
// HTTP: GET /api/runs?language=Python&limit=20&offset=0
func (h *ExecuteHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	runs, err := h.svc.History(r.Context(),
		r.URL.Query().Get("language"),
		queryInt(r, "limit"),
		queryInt(r, "offset"),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, newRunResponse(run))
	}
	writeJSON(w, http.StatusOK, out)
}

func newRunResponse(run model.Run) runResponse {
	return runResponse{
		ID:             run.ID,
		Language:       run.Language,
		Succeeded:      run.Succeeded,
		CompileSeconds: run.CompileDuration.Seconds(),
		RunSeconds:     run.RunDuration.Seconds(),
		CodeSize:       run.CodeSize,
		CreatedAt:      run.CreatedAt,
	}
}

type statsResponse struct {
	Language          string  `json:"language"`
	Runs              int     `json:"runs"`
	Succeeded         int     `json:"succeeded"`
	AvgCompileSeconds float64 `json:"avgCompileSeconds"`
	AvgRunSeconds     float64 `json:"avgRunSeconds"`
	FastestRunSeconds float64 `json:"fastestRunSeconds"`
}

// HandleStats aggregates the run history per language.
//
// HTTP: GET /api/runs/stats
func (h *ExecuteHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]statsResponse, 0, len(stats))
	for _, s := range stats {
		out = append(out, statsResponse{
			Language:          s.Language,
			Runs:              s.Runs,
			Succeeded:         s.Succeeded,
			AvgCompileSeconds: s.AvgCompile.Seconds(),
			AvgRunSeconds:     s.AvgRun.Seconds(),
			FastestRunSeconds: s.FastestRun.Seconds(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
