package httpapi

import (
	"net/http"
	"strings"
	"time"

	"campuscore/internal/core"
	"campuscore/pkg/domain"
)

func (h *Handler) handleListBathrooms(w http.ResponseWriter, r *http.Request) {
	bathrooms, err := h.svc.ListBathrooms(r.Context(), r.URL.Query().Get("campus_id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if bathrooms == nil {
		bathrooms = []domain.Bathroom{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bathrooms": bathrooms})
}

func (h *Handler) handleGetBathroom(w http.ResponseWriter, r *http.Request) {
	bathroom, err := h.svc.GetBathroom(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bathroom": bathroom})
}

func (h *Handler) handleCreateBathroom(w http.ResponseWriter, r *http.Request) {
	var req core.BathroomInput
	if !decodeJSON(w, r, &req) {
		return
	}
	bathroom, err := h.svc.CreateBathroom(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"bathroom": bathroom})
}

func (h *Handler) handleUpdateBathroom(w http.ResponseWriter, r *http.Request) {
	var req core.BathroomInput
	if !decodeJSON(w, r, &req) {
		return
	}
	bathroom, err := h.svc.UpdateBathroom(r.Context(), r.PathValue("id"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bathroom": bathroom})
}

func (h *Handler) handleDeleteBathroom(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteBathroom(r.Context(), r.PathValue("id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAssetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.AssetStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status})
}

func (h *Handler) handleAssetStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.svc.AssetStatuses(r.Context(), r.URL.Query().Get("campus_id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"statuses": statuses})
}

func (h *Handler) handleListInspections(w http.ResponseWriter, r *http.Request) {
	inspections, err := h.svc.ListInspections(r.Context(), r.URL.Query().Get("bathroom_id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if inspections == nil {
		inspections = []domain.Inspection{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"inspections": inspections})
}

type inspectionRequest struct {
	BathroomID string                    `json:"bathroom_id"`
	Date       string                    `json:"date"`
	Records    []domain.InspectionRecord `json:"records"`
}

type inspectionResponse struct {
	Inspection  domain.Inspection `json:"inspection"`
	Ticket      *domain.Ticket    `json:"ticket,omitempty"`
	TicketError string            `json:"ticket_error,omitempty"`
}

// parseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates. Blank
// means now.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, domain.ValidationError{Field: "date", Reason: "expected RFC 3339 or YYYY-MM-DD"}
	}
	return t, nil
}

func (h *Handler) handleSubmitInspection(w http.ResponseWriter, r *http.Request) {
	var req inspectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	outcome, err := h.svc.SubmitInspection(r.Context(), req.BathroomID, date, req.Records)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	resp := inspectionResponse{Inspection: outcome.Inspection, Ticket: outcome.Ticket}
	if outcome.TicketErr != nil {
		resp.TicketError = outcome.TicketErr.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleDeleteInspection(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteInspection(r.Context(), r.PathValue("id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
