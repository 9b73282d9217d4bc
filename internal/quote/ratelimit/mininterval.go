package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"quotealert/internal/optionchain"
	"quotealert/internal/quote"
	"quotealert/internal/watchlist"
)

// MinInterval spaces option-chain calls at least Interval apart. The greeks
// endpoint allows roughly one call per second per key.
type MinInterval struct {
	S        quote.ChainSource
	Interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func (m *MinInterval) Name() string { return m.S.Name() }

func (m *MinInterval) Chain(ctx context.Context, jwt string, sym watchlist.Symbol, spot decimal.Decimal) (optionchain.Summary, error) {
	if m.Interval <= 0 {
		return m.S.Chain(ctx, jwt, sym, spot)
	}

	// Held across the call so concurrent callers queue in order.
	m.mu.Lock()
	defer m.mu.Unlock()

	if wait := time.Until(m.last.Add(m.Interval)); wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return optionchain.Summary{}, quote.NewError(sym.Name, quote.KindCanceled, ctx.Err())
		case <-t.C:
		}
	}
	sum, err := m.S.Chain(ctx, jwt, sym, spot)
	m.last = time.Now()
	return sum, err
}
