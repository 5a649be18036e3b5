package httpapi

import (
	"net/http"

	"campuscore/internal/lifecycle"
	"campuscore/pkg/domain"
)

type statusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

type noteRequest struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

func (h *Handler) writeTickets(w http.ResponseWriter, r *http.Request, tickets []domain.Ticket, err error) {
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": tickets})
}

func (h *Handler) handleListTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.svc.ListTickets(r.Context())
	h.writeTickets(w, r, tickets, err)
}

func (h *Handler) handleActiveWork(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.svc.ActiveWork(r.Context())
	h.writeTickets(w, r, tickets, err)
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.svc.Archive(r.Context())
	h.writeTickets(w, r, tickets, err)
}

func (h *Handler) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.svc.GetTicket(r.Context(), r.PathValue("id"))
	h.writeTicket(w, r, http.StatusOK, ticket, err)
}

func (h *Handler) writeTicket(w http.ResponseWriter, r *http.Request, status int, ticket domain.Ticket, err error) {
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, status, map[string]any{"ticket": ticket})
}

func (h *Handler) handleCreateWorkRequest(w http.ResponseWriter, r *http.Request) {
	var req lifecycle.WorkRequestInput
	if !decodeJSON(w, r, &req) {
		return
	}
	ticket, err := h.svc.CreateWorkRequest(r.Context(), req)
	h.writeTicket(w, r, http.StatusCreated, ticket, err)
}

func (h *Handler) handleSetTicketStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ticket, err := h.svc.SetTicketStatus(r.Context(), r.PathValue("id"), req.Status)
	h.writeTicket(w, r, http.StatusOK, ticket, err)
}

func (h *Handler) handleAppendNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ticket, err := h.svc.AppendNote(r.Context(), r.PathValue("id"), req.Text, req.Author)
	h.writeTicket(w, r, http.StatusCreated, ticket, err)
}

func (h *Handler) handleCloseTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.svc.CloseTicket(r.Context(), r.PathValue("id"))
	h.writeTicket(w, r, http.StatusOK, ticket, err)
}

func (h *Handler) handleDeleteTicket(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTicket(r.Context(), r.PathValue("id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
