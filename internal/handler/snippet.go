package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/transpile-bench/internal/auth"
	"github.com/sakif/transpile-bench/internal/service"
)

// SnippetHandler manages CRUD operations for saved programs. Ownership
// rules live in the service; the handler only passes the caller's user ID.
type SnippetHandler struct {
	svc    *service.SnippetService
	logger *slog.Logger
}

// NewSnippetHandler creates a new SnippetHandler.
func NewSnippetHandler(svc *service.SnippetService, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{
		svc:    svc,
		logger: logger,
	}
}

type snippetRequest struct {
	Name        string `json:"name"`
	Language    string `json:"language"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (req snippetRequest) input() service.SnippetInput {
	return service.SnippetInput{
		Name:        req.Name,
		Language:    req.Language,
		Code:        req.Code,
		Description: req.Description,
	}
}

// HandleList returns saved snippets, examples first.
//
// HTTP: GET /api/snippets?language=Java&limit=20&offset=0
func (h *SnippetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	snippets, err := h.svc.List(r.Context(),
		r.URL.Query().Get("language"),
		queryInt(r, "limit"),
		queryInt(r, "offset"),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snippets)
}

// HandleGetByID returns one snippet.
//
// HTTP: GET /api/snippets/{id}
func (h *SnippetHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	snippet, err := h.svc.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snippet)
}

// HandleCreate saves a new snippet owned by the caller.
//
// HTTP: POST /api/snippets
// REQUEST BODY: {"name":"fib","language":"Python","code":"...","description":""}
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req snippetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid snippet JSON", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	snippet, err := h.svc.Create(r.Context(), req.input(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, snippet)
}

// HandleUpdate replaces a snippet's editable fields.
//
// HTTP: PUT /api/snippets/{id}
func (h *SnippetHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req snippetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	snippet, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), req.input(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snippet)
}

// HandleDelete removes a snippet.
//
// HTTP: DELETE /api/snippets/{id}
func (h *SnippetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.svc.Delete(r.Context(), id, userID); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("snippet delete requested", slog.String("id", id))
	w.WriteHeader(http.StatusNoContent)
}
