package httpapi

import (
	"net/http"

	"campuscore/internal/hierarchy"
)

type campusRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
}

type reparentRequest struct {
	ParentID *string `json:"parent_id"`
}

type moveRequest struct {
	Direction hierarchy.Direction `json:"direction"`
}

type orderRequest struct {
	IDs []string `json:"ids"`
}

// handleListCampuses returns the flat tree-ordered list, or nested nodes
// with ?view=tree.
func (h *Handler) handleListCampuses(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("view") == "tree" {
		tree, err := h.svc.CampusTree(r.Context())
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tree": tree})
		return
	}
	campuses, err := h.svc.ListCampuses(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campuses": campuses})
}

func (h *Handler) handleCreateCampus(w http.ResponseWriter, r *http.Request) {
	var req campusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	campus, err := h.svc.AddCampus(r.Context(), req.Name, req.ParentID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"campus": campus})
}

func (h *Handler) handleRenameCampus(w http.ResponseWriter, r *http.Request) {
	var req campusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	campus, err := h.svc.RenameCampus(r.Context(), r.PathValue("id"), req.Name)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campus": campus})
}

func (h *Handler) handleReparentCampus(w http.ResponseWriter, r *http.Request) {
	var req reparentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	campus, err := h.svc.ReparentCampus(r.Context(), r.PathValue("id"), req.ParentID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campus": campus})
}

func (h *Handler) handleMoveCampus(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Direction != hierarchy.Up && req.Direction != hierarchy.Down {
		writeError(w, http.StatusBadRequest, "validation", "direction must be up or down")
		return
	}
	if err := h.svc.ReorderCampus(r.Context(), r.PathValue("id"), req.Direction); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.handleListCampuses(w, r)
}

func (h *Handler) handleReorderCampuses(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.ReorderCampuses(r.Context(), req.IDs); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.handleListCampuses(w, r)
}

func (h *Handler) handleCampusPath(w http.ResponseWriter, r *http.Request) {
	path, err := h.svc.CampusPath(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path})
}

func (h *Handler) handleDeleteImpact(w http.ResponseWriter, r *http.Request) {
	plan, err := h.svc.CampusDeleteImpact(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plan": plan})
}

func (h *Handler) handleDeleteCampus(w http.ResponseWriter, r *http.Request) {
	plan, err := h.svc.DeleteCampus(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plan": plan})
}
