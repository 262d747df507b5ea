package handler

import (
	"net/http"
	"strings"

	"github.com/chainarb/chainarb/internal/domain"
)

// StatusSource exposes the exchange health view.
type StatusSource interface {
	Statuses() []domain.ExchangeStatus
}

// ExchangeHandler serves exchange health.
type ExchangeHandler struct {
	source StatusSource
}

func NewExchangeHandler(source StatusSource) *ExchangeHandler {
	return &ExchangeHandler{source: source}
}

// ListExchanges returns every exchange's current status.
// GET /api/exchanges
func (h *ExchangeHandler) ListExchanges(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.source.Statuses())
}

// pairFromPath converts the URL-safe "BTC-USDT" form back to "BTC/USDT".
func pairFromPath(s string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "/")
}
