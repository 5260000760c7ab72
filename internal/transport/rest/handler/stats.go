package handler

import (
	"net/http"

	"go.uber.org/zap"

	"provsurvey/internal/service"
)

// StatsHandler serves the live counters of the running revision
type StatsHandler struct {
	statsSvc *service.StatsService
	revision string
	log      *zap.Logger
}

func NewStatsHandler(statsSvc *service.StatsService, revision string, log *zap.Logger) *StatsHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &StatsHandler{statsSvc: statsSvc, revision: revision, log: log}
}

// Stats handles GET /v1/stats?revision=v1
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	revision := h.revision
	if v := r.URL.Query().Get("revision"); v != "" {
		revision = v
	}
	stats, err := h.statsSvc.Stats(r.Context(), revision)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
