// Package httpapi serves the campuscore service as a JSON API under /api/v1.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"campuscore/internal/adapters/reports"
	"campuscore/internal/core"
	"campuscore/pkg/domain"
)

const maxImportBytes = 16 << 20

// Handler routes API requests to the service and the export worker.
type Handler struct {
	svc     *core.Service
	exports *reports.Worker
	metrics http.Handler
	logger  *slog.Logger
	now     func() time.Time

	maxImportBytes int64
}

// Option configures a Handler.
type Option func(*Handler)

// WithExports enables the asynchronous export endpoints.
func WithExports(w *reports.Worker) Option {
	return func(h *Handler) { h.exports = w }
}

// WithMetricsHandler replaces the default promhttp handler on /metrics.
func WithMetricsHandler(m http.Handler) Option {
	return func(h *Handler) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithClock overrides the time used to stamp download filenames.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithImportLimit caps the size of an import body. Larger bodies are
// rejected with 413.
func WithImportLimit(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxImportBytes = n
		}
	}
}

// NewHandler constructs the API handler over svc.
func NewHandler(svc *core.Service, opts ...Option) *Handler {
	h := &Handler{
		svc:     svc,
		metrics: promhttp.Handler(),
		logger:  slog.New(slog.DiscardHandler),
		now:     func() time.Time { return time.Now().UTC() },

		maxImportBytes: maxImportBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "httpapi")
	return h
}

// Routes returns the API mux wrapped in request logging.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.Handle("GET /metrics", h.metrics)

	mux.HandleFunc("GET /api/v1/checklist", h.handleChecklist)
	mux.HandleFunc("GET /api/v1/dashboard", h.handleDashboard)

	mux.HandleFunc("GET /api/v1/campuses", h.handleListCampuses)
	mux.HandleFunc("POST /api/v1/campuses", h.handleCreateCampus)
	mux.HandleFunc("PUT /api/v1/campuses/order", h.handleReorderCampuses)
	mux.HandleFunc("PATCH /api/v1/campuses/{id}", h.handleRenameCampus)
	mux.HandleFunc("PUT /api/v1/campuses/{id}/parent", h.handleReparentCampus)
	mux.HandleFunc("POST /api/v1/campuses/{id}/move", h.handleMoveCampus)
	mux.HandleFunc("GET /api/v1/campuses/{id}/path", h.handleCampusPath)
	mux.HandleFunc("GET /api/v1/campuses/{id}/delete-impact", h.handleDeleteImpact)
	mux.HandleFunc("DELETE /api/v1/campuses/{id}", h.handleDeleteCampus)

	mux.HandleFunc("GET /api/v1/bathrooms", h.handleListBathrooms)
	mux.HandleFunc("POST /api/v1/bathrooms", h.handleCreateBathroom)
	mux.HandleFunc("GET /api/v1/bathrooms/statuses", h.handleAssetStatuses)
	mux.HandleFunc("GET /api/v1/bathrooms/{id}", h.handleGetBathroom)
	mux.HandleFunc("PUT /api/v1/bathrooms/{id}", h.handleUpdateBathroom)
	mux.HandleFunc("DELETE /api/v1/bathrooms/{id}", h.handleDeleteBathroom)
	mux.HandleFunc("GET /api/v1/bathrooms/{id}/status", h.handleAssetStatus)

	mux.HandleFunc("GET /api/v1/inspections", h.handleListInspections)
	mux.HandleFunc("POST /api/v1/inspections", h.handleSubmitInspection)
	mux.HandleFunc("DELETE /api/v1/inspections/{id}", h.handleDeleteInspection)

	mux.HandleFunc("GET /api/v1/tickets", h.handleListTickets)
	mux.HandleFunc("POST /api/v1/tickets", h.handleCreateWorkRequest)
	mux.HandleFunc("GET /api/v1/tickets/active", h.handleActiveWork)
	mux.HandleFunc("GET /api/v1/tickets/archive", h.handleArchive)
	mux.HandleFunc("GET /api/v1/tickets/{id}", h.handleGetTicket)
	mux.HandleFunc("PUT /api/v1/tickets/{id}/status", h.handleSetTicketStatus)
	mux.HandleFunc("POST /api/v1/tickets/{id}/notes", h.handleAppendNote)
	mux.HandleFunc("POST /api/v1/tickets/{id}/close", h.handleCloseTicket)
	mux.HandleFunc("DELETE /api/v1/tickets/{id}", h.handleDeleteTicket)

	mux.HandleFunc("POST /api/v1/import", h.handleImport)

	mux.HandleFunc("GET /api/v1/reports/active-work", h.handleActiveWorkReport)
	mux.HandleFunc("GET /api/v1/reports/census", h.handleCensusReport)
	mux.HandleFunc("GET /api/v1/exports", h.handleListExports)
	mux.HandleFunc("POST /api/v1/exports", h.handleCreateExport)
	mux.HandleFunc("GET /api/v1/exports/{id}", h.handleGetExport)
	mux.HandleFunc("GET /api/v1/exports/{id}/download", h.handleDownloadExport)

	return LoggingMiddleware(h.logger, mux)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"generator": h.svc.HasGenerator(),
	})
}

func (h *Handler) handleChecklist(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": domain.Checklist()})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.svc.Dashboard(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: responseError{Code: code, Message: message}})
}

// statusFor maps service errors onto HTTP status codes and error codes.
func statusFor(err error) (int, string) {
	var violation domain.RuleViolationError
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest, "validation"
	case domain.IsCycle(err):
		return http.StatusConflict, "cycle"
	case errors.As(err, &violation):
		return http.StatusConflict, "rule_violation"
	case domain.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case domain.IsPersistence(err):
		return http.StatusServiceUnavailable, "persistence"
	case errors.Is(err, reports.ErrQueueFull):
		return http.StatusServiceUnavailable, "queue_full"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	resp := responseError{Code: code, Message: err.Error()}
	var verr domain.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: resp})
}

// decodeJSON reads a JSON body into dst, rejecting unknown fields. An empty
// body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload: "+err.Error())
		return false
	}
	return true
}
