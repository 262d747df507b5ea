package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/chainarb/chainarb/internal/domain"
)

// TokenHandler serves persisted blockchain attribution records.
type TokenHandler struct {
	store  domain.TokenRecordStore
	logger *slog.Logger
}

func NewTokenHandler(store domain.TokenRecordStore, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{
		store:  store,
		logger: logger.With(slog.String("handler", "tokens")),
	}
}

// GetTokenRecords returns every chain a token symbol has been attributed to,
// highest confidence first.
// GET /api/tokens/{symbol}
func (h *TokenHandler) GetTokenRecords(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(r.PathValue("symbol")))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "missing symbol")
		return
	}

	records, err := h.store.GetBySymbol(r.Context(), symbol)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "get token records",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load token records")
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusNotFound, "no blockchain records for symbol")
		return
	}
	writeJSON(w, http.StatusOK, records)
}
