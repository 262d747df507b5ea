package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chainarb/chainarb/internal/domain"
)

// digestMax bounds how many opportunities one digest message lists; the rest
// are summarized as a count.
const digestMax = 15

// Digest accumulates notable opportunities between flushes so operators get
// one periodic summary instead of a message per detection.
type Digest struct {
	notifier     *Notifier
	minNotable   float64
	maxThreshold float64

	mu      sync.Mutex
	pending []domain.ArbitrageOpportunity
}

// NewDigest collects opportunities with a gross profit percentage in
// [minNotable, maxThreshold].
func NewDigest(notifier *Notifier, minNotable, maxThreshold float64) *Digest {
	return &Digest{
		notifier:     notifier,
		minNotable:   minNotable,
		maxThreshold: maxThreshold,
	}
}

// Add queues an opportunity for the next flush when it clears the notable
// threshold. Safe for concurrent use.
func (d *Digest) Add(opp domain.ArbitrageOpportunity) {
	if opp.ProfitPercentage < d.minNotable || opp.ProfitPercentage > d.maxThreshold {
		return
	}
	d.mu.Lock()
	d.pending = append(d.pending, opp)
	d.mu.Unlock()
}

// Pending returns how many opportunities are queued.
func (d *Digest) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Flush sends the queued opportunities as one digest message and clears the
// queue. Flushing an empty queue is a no-op.
func (d *Digest) Flush(ctx context.Context) error {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	var b strings.Builder
	shown := pending
	if len(shown) > digestMax {
		shown = shown[:digestMax]
	}
	for _, opp := range shown {
		fmt.Fprintf(&b, "%s  %s→%s  %.2f%%  (buy %.6g / sell %.6g)\n",
			opp.Symbol, opp.BuyExchange, opp.SellExchange,
			opp.ProfitPercentage, opp.BuyPrice, opp.SellPrice)
	}
	if len(pending) > digestMax {
		fmt.Fprintf(&b, "… and %d more\n", len(pending)-digestMax)
	}

	title := fmt.Sprintf("Arbitrage digest: %d notable opportunities", len(pending))
	return d.notifier.Notify(ctx, "digest", title, b.String())
}
