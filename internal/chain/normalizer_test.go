package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKnownLabels(t *testing.T) {
	cases := map[string]string{
		"ERC20":          "ethereum",
		"erc-20":         "ethereum",
		" ETH ":          "ethereum",
		"BEP20":          "bsc",
		"BSC(BEP20)":     "bsc",
		"TRC20":          "tron",
		"SPL":            "solana",
		"Polygon POS":    "polygon",
		"ArbitrumOne":    "arbitrum",
		"AVAX C-Chain":   "avalanche",
		"Opera":          "fantom",
		"ethereum":       "ethereum", // canonical ids pass through
		"ton":            "ton",
		"lightning":      "", // unsupported networks never guess
		"":               "",
		"  ":             "",
		"zksync":         "",
		"made-up-chain9": "",
	}
	for raw, want := range cases {
		assert.Equal(t, want, Normalize(raw), "raw label %q", raw)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for alias := range Aliases() {
		once := Normalize(alias)
		require.NotEmpty(t, once, "alias %q must normalize", alias)
		assert.Equal(t, once, Normalize(once), "alias %q", alias)
	}
}

// Every alias target and override chain must be a canonical id, otherwise
// Normalize could emit an identifier the rest of the system does not know.
func TestTablesAreClosed(t *testing.T) {
	for alias, target := range Aliases() {
		_, ok := Lookup(target)
		assert.True(t, ok, "alias %q points at unknown chain %q", alias, target)
	}
	for _, symbol := range []string{"USDT", "USDC", "DAI", "WBTC", "SHIB", "LINK"} {
		o, ok := OverrideFor(symbol)
		require.True(t, ok, symbol)
		_, ok = Lookup(o.Primary)
		assert.True(t, ok, "%s primary %q", symbol, o.Primary)
		for _, id := range o.Chains {
			_, ok := Lookup(id)
			assert.True(t, ok, "%s chain %q", symbol, id)
		}
		if o.PrimaryContract != "" {
			assert.True(t, ValidContractAddress(o.PrimaryContract), "%s contract %q", symbol, o.PrimaryContract)
			assert.Equal(t, o.PrimaryContract, ChecksumAddress(o.PrimaryContract), "%s contract must be checksummed", symbol)
		}
	}
	for _, id := range Supported() {
		assert.NotEmpty(t, NativeCoin(id), "chain %q has no native coin", id)
	}
}

func TestOverrideFor(t *testing.T) {
	o, ok := OverrideFor("usdt")
	require.True(t, ok)
	assert.Equal(t, "ethereum", o.Primary)
	assert.Contains(t, o.Chains, "tron")

	_, ok = OverrideFor("BTC")
	assert.False(t, ok)
}

func TestSortByPriority(t *testing.T) {
	ids := []string{"ton", "tron", "ethereum", "bsc"}
	assert.Equal(t, []string{"ethereum", "bsc", "tron", "ton"}, SortByPriority(ids))

	// Unknown ids sort last, lexically among themselves.
	mixed := []string{"zzz", "solana", "aaa"}
	assert.Equal(t, []string{"solana", "aaa", "zzz"}, SortByPriority(mixed))
}

func TestSupportedOrderedByPriority(t *testing.T) {
	ids := Supported()
	require.NotEmpty(t, ids)
	assert.Equal(t, "ethereum", ids[0])
	for i := 1; i < len(ids); i++ {
		assert.LessOrEqual(t, Priority(ids[i-1]), Priority(ids[i]))
	}
}

func TestIsNative(t *testing.T) {
	assert.True(t, IsNative("ETH", "ethereum"))
	assert.True(t, IsNative("eth", "ethereum"))
	assert.True(t, IsNative("BNB", "bsc"))
	assert.False(t, IsNative("USDT", "ethereum"))
	assert.False(t, IsNative("ETH", "tron"))
}

func TestChecksumAddress(t *testing.T) {
	// EIP-55 reference vector.
	assert.Equal(t,
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		ChecksumAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"))

	// Non-address inputs pass through untouched.
	assert.Equal(t, "TRX9yA2mKkfVh1uo1s8WbeeTKvvtaZ8mz1", ChecksumAddress("TRX9yA2mKkfVh1uo1s8WbeeTKvvtaZ8mz1"))
	assert.Equal(t, "", ChecksumAddress(""))

	assert.True(t, ValidContractAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"))
	assert.False(t, ValidContractAddress("not-an-address"))
}
