package handler

import (
	"net/http"

	"github.com/chainarb/chainarb/internal/domain"
)

// TickerSource is the slice of the exchange manager the ticker handlers
// read from.
type TickerSource interface {
	GetAllTickers() map[string][]domain.Ticker
	GetTickersForSymbol(symbol string) []domain.Ticker
}

// TickerHandler serves the in-memory ticker snapshot.
type TickerHandler struct {
	source TickerSource
}

func NewTickerHandler(source TickerSource) *TickerHandler {
	return &TickerHandler{source: source}
}

// ListTickers returns the full snapshot keyed by exchange.
// GET /api/tickers
func (h *TickerHandler) ListTickers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.source.GetAllTickers())
}

// GetTickersForSymbol returns every exchange's quote for one pair. Pair
// symbols contain a slash, so the path uses a dash: /api/tickers/BTC-USDT.
// GET /api/tickers/{symbol}
func (h *TickerHandler) GetTickersForSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := pairFromPath(r.PathValue("symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "missing symbol")
		return
	}
	tickers := h.source.GetTickersForSymbol(symbol)
	if len(tickers) == 0 {
		writeError(w, http.StatusNotFound, "no tickers for symbol")
		return
	}
	writeJSON(w, http.StatusOK, tickers)
}
