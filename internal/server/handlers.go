package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"trade-app/internal/interfaces"
	"trade-app/internal/logger"
	"trade-app/internal/types"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	advisor        interfaces.Advisor
	maxUploadBytes int64
}

// NewHandler creates a new Handler. maxUploadMB bounds multipart bodies.
func NewHandler(advisor interfaces.Advisor, maxUploadMB int64) *Handler {
	if maxUploadMB <= 0 {
		maxUploadMB = 32
	}
	return &Handler{advisor: advisor, maxUploadBytes: maxUploadMB << 20}
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ListContexts handles GET /api/v1/contexts. Asset bytes are dropped unless
// include_binary=true.
func (h *Handler) ListContexts(w http.ResponseWriter, r *http.Request) {
	include, _ := strconv.ParseBool(r.URL.Query().Get("include_binary"))
	out, err := h.advisor.Contexts(r.Context(), types.ListOptions{ExcludeBinary: !include})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// RegisterContext handles POST /api/v1/contexts (multipart form)
func (h *Handler) RegisterContext(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseRegister(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	saved, err := h.advisor.Register(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, saved.WithoutBinary())
}

// GetContext handles GET /api/v1/contexts/{symbol}
func (h *Handler) GetContext(w http.ResponseWriter, r *http.Request) {
	c, err := h.advisor.Context(r.Context(), mux.Vars(r)["symbol"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// DeleteContext handles DELETE /api/v1/contexts/{symbol}
func (h *Handler) DeleteContext(w http.ResponseWriter, r *http.Request) {
	if err := h.advisor.DeleteContext(r.Context(), mux.Vars(r)["symbol"]); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetHistory handles GET /api/v1/contexts/{symbol}/history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	out, err := h.advisor.History(r.Context(), mux.Vars(r)["symbol"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// GetRevision handles GET /api/v1/revisions/{id}
func (h *Handler) GetRevision(w http.ResponseWriter, r *http.Request) {
	c, err := h.advisor.Revision(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// DeleteRevision handles DELETE /api/v1/revisions/{id}
func (h *Handler) DeleteRevision(w http.ResponseWriter, r *http.Request) {
	if err := h.advisor.DeleteRevision(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Judge handles POST /api/v1/judge (multipart form)
func (h *Handler) Judge(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseJudge(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	res, err := h.advisor.Judge(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// StatusFor maps pipeline errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrValidation), errors.Is(err, types.ErrInvalidAsset):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrInferenceTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, types.ErrInference):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorWithErr(r.Context(), "Request failed", err, "method", r.Method, "path", r.URL.Path, "status", status)
	} else {
		logger.Warn(r.Context(), "Request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
