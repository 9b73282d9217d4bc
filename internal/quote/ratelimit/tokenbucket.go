package ratelimit

import (
	"context"
	"sync"
	"time"

	"quotealert/internal/quote"
	"quotealert/internal/watchlist"
)

// TokenBucket is a token bucket limiter.
// - rate: tokens per second
// - capacity: maximum tokens the bucket can hold (burst)
type TokenBucket struct {
	rate     float64
	capacity float64

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// PerMinute builds a bucket from a requests-per-minute budget, the unit
// SmartAPI publishes its limits in.
func PerMinute(rpm, burst int) *TokenBucket {
	return NewTokenBucket(float64(rpm)/60, burst)
}

func NewTokenBucket(tokensPerSecond float64, burst int) *TokenBucket {
	if tokensPerSecond <= 0 {
		tokensPerSecond = 0.0000001
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{
		rate:     tokensPerSecond,
		capacity: float64(burst),
		tokens:   float64(burst), // start full to allow an initial burst
		last:     time.Now(),
	}
}

// Wait blocks until one token is available or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		if elapsed := now.Sub(tb.last).Seconds(); elapsed > 0 {
			tb.tokens += elapsed * tb.rate
			if tb.tokens > tb.capacity {
				tb.tokens = tb.capacity
			}
			tb.last = now
		}
		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}
		deficit := 1 - tb.tokens
		tb.mu.Unlock()

		waitDur := time.Duration(deficit / tb.rate * float64(time.Second))
		if waitDur <= 0 {
			waitDur = time.Millisecond
		}
		timer := time.NewTimer(waitDur)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Market gates quote calls through a token bucket.
type Market struct {
	S  quote.MarketSource
	TB *TokenBucket
}

func (m *Market) Name() string { return m.S.Name() }

func (m *Market) Quote(ctx context.Context, jwt string, sym watchlist.Symbol) (quote.Quote, error) {
	if m.TB != nil {
		if err := m.TB.Wait(ctx); err != nil {
			return quote.Quote{}, quote.NewError(sym.Name, quote.KindCanceled, err)
		}
	}
	return m.S.Quote(ctx, jwt, sym)
}
