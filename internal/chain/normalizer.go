// Package chain maps the inconsistent network labels exchanges attach to
// deposit/withdrawal methods onto a fixed set of canonical blockchain
// identifiers.
package chain

import (
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Info describes a supported chain: its human display name and a priority
// used to break ties when several plausible chains are detected for the same
// token. Lower priority wins.
type Info struct {
	DisplayName string
	Priority    int
}

// supported is the canonical chain set. Normalize never returns an
// identifier outside this table.
var supported = map[string]Info{
	"ethereum":  {DisplayName: "Ethereum", Priority: 1},
	"bsc":       {DisplayName: "BNB Smart Chain", Priority: 2},
	"tron":      {DisplayName: "Tron", Priority: 3},
	"solana":    {DisplayName: "Solana", Priority: 4},
	"polygon":   {DisplayName: "Polygon", Priority: 5},
	"arbitrum":  {DisplayName: "Arbitrum One", Priority: 6},
	"optimism":  {DisplayName: "Optimism", Priority: 7},
	"base":      {DisplayName: "Base", Priority: 8},
	"avalanche": {DisplayName: "Avalanche C-Chain", Priority: 9},
	"fantom":    {DisplayName: "Fantom", Priority: 10},
	"bitcoin":   {DisplayName: "Bitcoin", Priority: 11},
	"ton":       {DisplayName: "TON", Priority: 12},
}

// aliases maps raw exchange labels (lower-cased, trimmed) to canonical ids.
// Every value must itself be a key of supported.
var aliases = map[string]string{
	"erc20":           "ethereum",
	"erc-20":          "ethereum",
	"eth":             "ethereum",
	"ether":           "ethereum",
	"bep20":           "bsc",
	"bep-20":          "bsc",
	"bep20(bsc)":      "bsc",
	"bnb":             "bsc",
	"bnb smart chain": "bsc",
	"bsc(bep20)":      "bsc",
	"trc20":           "tron",
	"trc-20":          "tron",
	"trx":             "tron",
	"sol":             "solana",
	"spl":             "solana",
	"matic":           "polygon",
	"polygon(matic)":  "polygon",
	"polygon pos":     "polygon",
	"arb":             "arbitrum",
	"arbitrum one":    "arbitrum",
	"arbitrumone":     "arbitrum",
	"arbevm":          "arbitrum",
	"op":              "optimism",
	"optimisml2":      "optimism",
	"avax":            "avalanche",
	"avaxc":           "avalanche",
	"avax c-chain":    "avalanche",
	"cchain":          "avalanche",
	"ftm":             "fantom",
	"opera":           "fantom",
	"btc":             "bitcoin",
	"toncoin":         "ton",
}

// Override lists the chains a multi-chain token is known to exist on,
// together with its primary settlement chain. Overrides encode cross-exchange
// consensus established out of band and take precedence over per-exchange
// raw labels when the two conflict.
type Override struct {
	Primary string
	Chains  []string
	// PrimaryContract is the token's contract address on the primary chain,
	// when the token is a contract there.
	PrimaryContract string
}

// overrides is keyed by upper-case token symbol. Contract addresses are the
// well-known mainnet deployments on each token's primary chain.
var overrides = map[string]Override{
	"USDT": {Primary: "ethereum", Chains: []string{"ethereum", "tron", "bsc", "solana", "polygon", "avalanche", "arbitrum", "ton"}, PrimaryContract: "0xdAC17F958D2ee523a2206206994597C13D831ec7"},
	"USDC": {Primary: "ethereum", Chains: []string{"ethereum", "bsc", "solana", "polygon", "avalanche", "arbitrum", "base", "optimism"}, PrimaryContract: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"},
	"DAI":  {Primary: "ethereum", Chains: []string{"ethereum", "bsc", "polygon", "arbitrum", "optimism"}, PrimaryContract: "0x6B175474E89094C44Da98b954EedeAC495271d0F"},
	"WBTC": {Primary: "ethereum", Chains: []string{"ethereum", "polygon", "arbitrum"}, PrimaryContract: "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"},
	"SHIB": {Primary: "ethereum", Chains: []string{"ethereum", "bsc"}, PrimaryContract: "0x95aD61b0a150d79219dCF64E1E6Cc01f0B64C4cE"},
	"LINK": {Primary: "ethereum", Chains: []string{"ethereum", "bsc", "polygon", "arbitrum"}, PrimaryContract: "0x514910771AF9Ca656af840dff83E8264EcF986CA"},
}

// nativeCoins maps each supported chain to its native coin symbol. Native
// coins have no contract address.
var nativeCoins = map[string]string{
	"ethereum":  "ETH",
	"bsc":       "BNB",
	"tron":      "TRX",
	"solana":    "SOL",
	"polygon":   "POL",
	"arbitrum":  "ETH",
	"optimism":  "ETH",
	"base":      "ETH",
	"avalanche": "AVAX",
	"fantom":    "FTM",
	"bitcoin":   "BTC",
	"ton":       "TON",
}

// Normalize maps a raw exchange network label to a canonical chain id. It
// returns "" when the label is unknown; it never guesses. Idempotent:
// Normalize(Normalize(x)) == Normalize(x) for any x with a non-empty result.
func Normalize(raw string) string {
	label := strings.ToLower(strings.TrimSpace(raw))
	if label == "" {
		return ""
	}
	if canonical, ok := aliases[label]; ok {
		return canonical
	}
	if _, ok := supported[label]; ok {
		return label
	}
	return ""
}

// Lookup returns the Info for a canonical chain id.
func Lookup(id string) (Info, bool) {
	info, ok := supported[id]
	return info, ok
}

// Priority returns the tie-break priority of a canonical chain id. Unknown
// ids sort last.
func Priority(id string) int {
	if info, ok := supported[id]; ok {
		return info.Priority
	}
	return 1 << 30
}

// SortByPriority orders canonical chain ids by priority, then lexically, in
// place, and returns the slice. Used wherever a deterministic chain order is
// needed (common-network lists, corroboration tie breaks).
func SortByPriority(ids []string) []string {
	sort.Slice(ids, func(i, j int) bool {
		pi, pj := Priority(ids[i]), Priority(ids[j])
		if pi != pj {
			return pi < pj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// OverrideFor returns the known-token override for a symbol, if configured.
func OverrideFor(symbol string) (Override, bool) {
	o, ok := overrides[strings.ToUpper(strings.TrimSpace(symbol))]
	return o, ok
}

// NativeCoin returns the native coin symbol of a canonical chain id.
func NativeCoin(chainID string) string {
	return nativeCoins[chainID]
}

// IsNative reports whether symbol is the native coin of the given chain.
func IsNative(symbol, chainID string) bool {
	return nativeCoins[chainID] == strings.ToUpper(strings.TrimSpace(symbol))
}

// Supported returns the canonical chain ids sorted by priority.
func Supported() []string {
	ids := make([]string, 0, len(supported))
	for id := range supported {
		ids = append(ids, id)
	}
	return SortByPriority(ids)
}

// Aliases returns a copy of the alias table, for tests and diagnostics.
func Aliases() map[string]string {
	out := make(map[string]string, len(aliases))
	for k, v := range aliases {
		out[k] = v
	}
	return out
}

// ValidContractAddress reports whether s looks like an EVM contract address.
func ValidContractAddress(s string) bool {
	return common.IsHexAddress(s)
}

// ChecksumAddress normalizes an EVM contract address to its EIP-55 checksum
// form. It returns the input unchanged when it is not a valid hex address.
func ChecksumAddress(s string) string {
	if !common.IsHexAddress(s) {
		return s
	}
	return common.HexToAddress(s).Hex()
}
