package domain

import "time"

// TokenBlockchainRecord binds a token symbol to a blockchain it is known to
// exist on. ConfidenceScore reflects how the binding was established: 0.95
// for a curated override, the corroboration ratio for a cross-exchange vote,
// or the resolver's reported confidence.
type TokenBlockchainRecord struct {
	Symbol          string    `json:"symbol"`
	Blockchain      string    `json:"blockchain"`
	ContractAddress string    `json:"contract_address,omitempty"`
	IsNative        bool      `json:"is_native"`
	IsPrimary       bool      `json:"is_primary"`
	ConfidenceScore float64   `json:"confidence_score"`
	Exchanges       []string  `json:"exchanges,omitempty"`
	LastVerified    time.Time `json:"last_verified"`
}

// FailedLookup records a symbol that could not be resolved to a blockchain,
// so retries can be bounded and spaced out.
type FailedLookup struct {
	Symbol     string    `json:"symbol"`
	LastError  string    `json:"last_error"`
	FailedAt   time.Time `json:"failed_at"`
	RetryCount int       `json:"retry_count"`
}
