// Package domain holds the core value types and the interfaces the rest of
// the system is wired through.
package domain

import (
	"strings"
	"time"
)

// Ticker is one exchange's current quote for a trading pair. Symbol is
// normalized to "BASE/QUOTE" regardless of how the exchange encodes it.
type Ticker struct {
	Symbol          string    `json:"symbol"`
	Exchange        string    `json:"exchange"`
	Bid             float64   `json:"bid"`
	Ask             float64   `json:"ask"`
	Volume          float64   `json:"volume"`
	Volume24h       float64   `json:"volume_24h"`
	Timestamp       time.Time `json:"timestamp"`
	Blockchain      string    `json:"blockchain,omitempty"`
	ContractAddress string    `json:"contract_address,omitempty"`
}

// Base returns the base asset of the pair, e.g. "BTC" for "BTC/USDT".
func (t Ticker) Base() string {
	base, _, _ := strings.Cut(t.Symbol, "/")
	return base
}

// ExchangeStatus is the manager's health view of a single exchange.
type ExchangeStatus struct {
	Name         string        `json:"name"`
	IsOnline     bool          `json:"is_online"`
	LastUpdate   time.Time     `json:"last_update"`
	ErrorCount   int           `json:"error_count"`
	ResponseTime time.Duration `json:"response_time"`
	LastError    string        `json:"last_error,omitempty"`
}
