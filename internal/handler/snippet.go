package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/auth"
	"github.com/sakif/snippet-vault/internal/service"
)

// SnippetHandler exposes the snippet registry over HTTP. Every route
// runs behind the auth middleware; the caller's user ID comes from the
// request context.
type SnippetHandler struct {
	snippets *service.SnippetService
	logger   *slog.Logger
}

func NewSnippetHandler(snippets *service.SnippetService, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{snippets: snippets, logger: logger}
}

// Routes mounts the snippet and version endpoints on a chi router.
func (h *SnippetHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/snippets", h.HandleCreate)
	r.Get("/snippets", h.HandleList)
	r.Post("/snippets/validate", h.HandleValidate)
	r.Get("/snippets/{id}", h.HandleGet)
	r.Put("/snippets/{id}", h.HandleUpdate)
	r.Delete("/snippets/{id}", h.HandleDeleteSnippet)
	r.Get("/snippets/{id}/diff", h.HandleDiff)
	r.Post("/snippets/{id}/rollback", h.HandleRollback)
	r.Get("/snippets/{id}/versions", h.HandleListVersions)
	r.Get("/snippets/{id}/versions/{number}", h.HandleGetVersion)
	r.Get("/snippets/{id}/versions/{number}/metrics", h.HandleGetVersionMetrics)
	r.Delete("/snippets/{id}/versions/{number}", h.HandleDeleteVersion)
	r.Delete("/versions/{id}", h.HandleDeleteVersionByID)

	return r
}

type createSnippetRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	Language    string `json:"language"`
}

type updateSnippetRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Content     string  `json:"content"`
}

type rollbackRequest struct {
	VersionNumber int `json:"versionNumber"`
}

type validateRequest struct {
	Content string `json:"content"`
}

type validateResponse struct {
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems"`
}

type versionContentResponse struct {
	VersionNumber int    `json:"versionNumber"`
	Content       string `json:"content"`
}

// HandleCreate makes a snippet with its first version in place.
//
// POST /api/v1/snippets
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Forbidden("authentication required"))
		return
	}

	var req createSnippetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	snippet, err := h.snippets.Create(r.Context(), callerID, service.CreateParams{
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		Language:    req.Language,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, snippet)
}

// HandleList returns the caller's snippets, paginated.
//
// GET /api/v1/snippets?limit=&offset=
func (h *SnippetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Forbidden("authentication required"))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	snippets, err := h.snippets.List(r.Context(), callerID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snippets)
}

// HandleGet returns the current projection of one snippet.
//
// GET /api/v1/snippets/{id}
func (h *SnippetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Forbidden("authentication required"))
		return
	}

	snippet, err := h.snippets.Get(r.Context(), chi.URLParam(r, "id"), callerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snippet)
}

// HandleUpdate replaces the content and bumps the version.
//
// PUT /api/v1/snippets/{id}
func (h *SnippetHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Forbidden("authentication required"))
		return
	}

	var req updateSnippetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	snippet, err := h.snippets.Update(r.Context(), chi.URLParam(r, "id"), callerID, service.UpdateParams{
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snippet)
}

// HandleDeleteSnippet removes the snippet with all versions and metrics.
//
// DELETE /api/v1/snippets/{id}
func (h *SnippetHandler) HandleDeleteSnippet(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Forbidden("authentication required"))
		return
	}

	if err := h.snippets.DeleteSnippet(r.Context(), chi.URLParam(r, "id"), callerID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleDiff compares two versions, v1 as original and v2 as revised.
//
// GET /api/v1/snippets/{id}/diff?v1=&v2=
func (h *SnippetHandler) HandleDiff(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Forbidden("authentication required"))
		return
	}

	v1, err := strconv.Atoi(r.URL.Query().Get("v1"))
	if err != nil {
		writeError(w, apperror.ValidationFailed("v1", "v1 must be a version number"))
		return
	}
	v2, err := strconv.Atoi(r.URL.Query().Get("v2"))
	if err != nil {
		writeError(w, apperror.ValidationFailed("v2", "v2 must be a version number"))
		return
	}

	result, err := h.snippets.Diff(r.Context(), chi.URLParam(r, "id"), callerID, v1, v2)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleRollback restores an older version's content as a new version.
//
// POST /api/v1/snippets/{id}/rollback
func (h *SnippetHandler) HandleRollback(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Forbidden("authentication required"))
		return
	}

	var req rollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	snippet, err := h.snippets.Rollback(r.Context(), chi.URLParam(r, "id"), callerID, req.VersionNumber)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snippet)
}

// HandleListVersions returns the version history, newest first.
//
// GET /api/v1/snippets/{id}/versions
func (h *SnippetHandler) HandleListVersions(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Forbidden("authentication required"))
		return
	}

	versions, err := h.snippets.ListVersions(r.Context(), chi.URLParam(r, "id"), callerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, versions)
}

// HandleGetVersion returns the immutable content of one version.
//
// GET /api/v1/snippets/{id}/versions/{number}
func (h *SnippetHandler) HandleGetVersion(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Forbidden("authentication required"))
		return
	}

	number, err := versionNumber(r)
	if err != nil {
		writeError(w, err)
		return
	}

	content, err := h.snippets.GetVersionContent(r.Context(), chi.URLParam(r, "id"), callerID, number)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, versionContentResponse{
		VersionNumber: number,
		Content:       content,
	})
}

// HandleGetVersionMetrics returns the stored metrics of one version.
//
// GET /api/v1/snippets/{id}/versions/{number}/metrics
func (h *SnippetHandler) HandleGetVersionMetrics(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Forbidden("authentication required"))
		return
	}

	number, err := versionNumber(r)
	if err != nil {
		writeError(w, err)
		return
	}

	metrics, err := h.snippets.GetVersionMetrics(r.Context(), chi.URLParam(r, "id"), callerID, number)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, metrics)
}

// HandleDeleteVersion removes one non-active version.
//
// DELETE /api/v1/snippets/{id}/versions/{number}
func (h *SnippetHandler) HandleDeleteVersion(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Forbidden("authentication required"))
		return
	}

	number, err := versionNumber(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.snippets.DeleteVersion(r.Context(), chi.URLParam(r, "id"), callerID, number); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteVersionByID removes one non-active version by its opaque id.
//
// DELETE /api/v1/versions/{id}
func (h *SnippetHandler) HandleDeleteVersionByID(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Forbidden("authentication required"))
		return
	}

	if err := h.snippets.DeleteVersionByID(r.Context(), chi.URLParam(r, "id"), callerID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleValidate runs the syntax checker over posted content. The
// diagnostics never block any other operation.
//
// POST /api/v1/snippets/validate
func (h *SnippetHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	problems := h.snippets.Validate(req.Content)
	if problems == nil {
		problems = []string{}
	}

	writeJSON(w, http.StatusOK, validateResponse{
		Valid:    len(problems) == 0,
		Problems: problems,
	})
}

func versionNumber(r *http.Request) (int, error) {
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number < 1 {
		return 0, apperror.ValidationFailed("number", "version number must be a positive integer")
	}
	return number, nil
}
