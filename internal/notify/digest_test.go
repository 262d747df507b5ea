package notify

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainarb/chainarb/internal/domain"
)

type captureSender struct {
	titles   []string
	messages []string
}

func (c *captureSender) Send(_ context.Context, title, message string) error {
	c.titles = append(c.titles, title)
	c.messages = append(c.messages, message)
	return nil
}

func (c *captureSender) Name() string { return "capture" }

func TestNotifierEventFilter(t *testing.T) {
	sender := &captureSender{}
	n := NewNotifier([]Sender{sender}, []string{"digest"}, slog.New(slog.DiscardHandler))

	require.NoError(t, n.Notify(context.Background(), "error", "boom", "details"))
	assert.Empty(t, sender.titles, "filtered events must not reach senders")

	require.NoError(t, n.Notify(context.Background(), "digest", "summary", "body"))
	assert.Equal(t, []string{"summary"}, sender.titles)
}

func TestDigestCollectsOnlyNotable(t *testing.T) {
	sender := &captureSender{}
	n := NewNotifier([]Sender{sender}, nil, slog.New(slog.DiscardHandler))
	d := NewDigest(n, 2.0, 110)

	d.Add(domain.ArbitrageOpportunity{Symbol: "BTC/USDT", ProfitPercentage: 0.8})
	d.Add(domain.ArbitrageOpportunity{Symbol: "ETH/USDT", BuyExchange: "okx", SellExchange: "bybit", ProfitPercentage: 3.2})
	d.Add(domain.ArbitrageOpportunity{Symbol: "XYZ/USDT", ProfitPercentage: 150})
	require.Equal(t, 1, d.Pending())

	require.NoError(t, d.Flush(context.Background()))
	require.Len(t, sender.messages, 1)
	assert.Contains(t, sender.messages[0], "ETH/USDT")
	assert.Contains(t, sender.titles[0], "1 notable")
	assert.Zero(t, d.Pending(), "flush clears the queue")
}

func TestDigestFlushEmptyIsNoop(t *testing.T) {
	sender := &captureSender{}
	n := NewNotifier([]Sender{sender}, nil, slog.New(slog.DiscardHandler))
	d := NewDigest(n, 2.0, 110)

	require.NoError(t, d.Flush(context.Background()))
	assert.Empty(t, sender.titles)
}
