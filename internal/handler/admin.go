package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/interviewprep/internal/model"
)

func (h *Handler) adminRoutes(r chi.Router) {
	r.Get("/sessions", h.handleListSessions)
	r.Get("/export", h.handleExport)
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	completedOnly := r.URL.Query().Get("completed") == "true"
	sessions, err := h.archive.ListSessions(r.Context(), completedOnly)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []model.SessionSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// handleExport streams the report export as a downloadable JSON file.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	out, err := h.archive.ExportReports(r.Context(), h.config.Report)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	name := fmt.Sprintf("interview-reports-%s.json", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	slog.Info("exported reports", "sessions", len(out.Sessions))
	writeJSON(w, http.StatusOK, out)
}
