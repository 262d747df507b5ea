package domain

import "time"

// TransferAvailability describes whether the base asset can actually be
// moved between the two venues of an opportunity. The pointers are nil when
// the corresponding exchange gave no usable network metadata, which is
// distinct from a definite false.
type TransferAvailability struct {
	BuyAvailable   *bool    `json:"buy_available,omitempty"`
	SellAvailable  *bool    `json:"sell_available,omitempty"`
	CommonNetworks []string `json:"common_networks,omitempty"`
}

// ArbitrageOpportunity is one detected cross-exchange price gap: buy the base
// asset at BuyExchange's ask and sell it at SellExchange's bid.
type ArbitrageOpportunity struct {
	ID               string                `json:"id,omitempty"`
	Symbol           string                `json:"symbol"`
	BuyExchange      string                `json:"buy_exchange"`
	SellExchange     string                `json:"sell_exchange"`
	BuyPrice         float64               `json:"buy_price"`
	SellPrice        float64               `json:"sell_price"`
	ProfitPercentage float64               `json:"profit_percentage"`
	ProfitAmount     float64               `json:"profit_amount"`
	Volume           float64               `json:"volume"`
	Blockchain       string                `json:"blockchain,omitempty"`
	Transfer         *TransferAvailability `json:"transfer,omitempty"`
	Fees             float64               `json:"fees,omitempty"`
	Timestamp        time.Time             `json:"timestamp"`
}

// Statistics aggregates stored opportunities over a time window.
type Statistics struct {
	Count     int64   `json:"count"`
	AvgProfit float64 `json:"avg_profit"`
	MaxProfit float64 `json:"max_profit"`
}

// RescanSummary reports the outcome of one blockchain rescan pass.
type RescanSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
}
