package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"campuscore/internal/adapters/reports"
	"campuscore/internal/core"
)

// importFormat picks the reader from ?format=, then the filename query
// parameter, then the content type.
func importFormat(r *http.Request) core.ImportFormat {
	q := r.URL.Query()
	if f := strings.ToLower(strings.TrimSpace(q.Get("format"))); f != "" {
		return core.ImportFormat(f)
	}
	if name := q.Get("filename"); name != "" {
		return core.FormatForFilename(name)
	}
	if strings.Contains(r.Header.Get("Content-Type"), "spreadsheetml") {
		return core.ImportXLSX
	}
	return core.ImportCSV
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxImportBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large",
				fmt.Sprintf("import body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_body", "read import body: "+err.Error())
		return
	}
	res, err := h.svc.Import(r.Context(), bytes.NewReader(body), importFormat(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": res})
}

func (h *Handler) serveReport(w http.ResponseWriter, r *http.Request, req reports.Request) {
	rendered, err := reports.Render(r.Context(), h.svc, req, h.now())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", reports.ContentTypeCSV)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rendered.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(rendered.Payload)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rendered.Payload)
}

func (h *Handler) handleActiveWorkReport(w http.ResponseWriter, r *http.Request) {
	h.serveReport(w, r, reports.Request{Kind: reports.KindActiveWork})
}

func (h *Handler) handleCensusReport(w http.ResponseWriter, r *http.Request) {
	h.serveReport(w, r, reports.Request{Kind: reports.KindCensus, ScopeID: r.URL.Query().Get("campus_id")})
}

func (h *Handler) requireExports(w http.ResponseWriter) bool {
	if h.exports == nil {
		writeError(w, http.StatusNotFound, "exports_disabled", "export worker not configured")
		return false
	}
	return true
}

func (h *Handler) handleCreateExport(w http.ResponseWriter, r *http.Request) {
	if !h.requireExports(w) {
		return
	}
	var req reports.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	job, err := h.exports.Enqueue(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"export": job})
}

func (h *Handler) handleListExports(w http.ResponseWriter, r *http.Request) {
	if !h.requireExports(w) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exports": h.exports.Jobs()})
}

func (h *Handler) handleGetExport(w http.ResponseWriter, r *http.Request) {
	if !h.requireExports(w) {
		return
	}
	job, ok := h.exports.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "export not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"export": job})
}

func (h *Handler) handleDownloadExport(w http.ResponseWriter, r *http.Request) {
	if !h.requireExports(w) {
		return
	}
	job, ok := h.exports.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "export not found")
		return
	}
	if job.Status != reports.JobSucceeded || job.Artifact == nil {
		writeError(w, http.StatusConflict, "not_ready", "export is "+string(job.Status))
		return
	}
	artifact, payload, err := h.exports.Store().Get(r.Context(), job.Artifact.Key)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}
