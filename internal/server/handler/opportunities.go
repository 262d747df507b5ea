package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/chainarb/chainarb/internal/domain"
)

// OpportunityHandler serves persisted opportunities and their aggregates.
type OpportunityHandler struct {
	store  domain.OpportunityStore
	logger *slog.Logger
}

func NewOpportunityHandler(store domain.OpportunityStore, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{
		store:  store,
		logger: logger.With(slog.String("handler", "opportunities")),
	}
}

// ListRecent returns opportunities from the last window (default 1h, query
// param "window"), most profitable first.
// GET /api/opportunities/recent
func (h *OpportunityHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	window := queryDuration(r, "window", time.Hour)
	limit := queryInt(r, "limit", 50)

	opps, err := h.store.ListRecent(r.Context(), window, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list recent", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	if opps == nil {
		opps = []domain.ArbitrageOpportunity{}
	}
	writeJSON(w, http.StatusOK, opps)
}

// Statistics returns count/avg/max profit over the last window (default
// 24h).
// GET /api/statistics
func (h *OpportunityHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	window := queryDuration(r, "window", 24*time.Hour)

	stats, err := h.store.Statistics(r.Context(), time.Now().UTC().Add(-window))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "statistics", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to compute statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
