package cache

import (
	"context"
	"sync"
	"time"

	"quotealert/internal/broker/smartapi"
)

// API is the SmartAPI surface the adapter calls.
type API interface {
	MarketQuote(ctx context.Context, jwt string, mode smartapi.QuoteMode, exchangeTokens map[string][]string) (*smartapi.QuoteData, error)
	OptionGreeks(ctx context.Context, jwt, name, expiry string) ([]smartapi.OptionGreek, error)
}

// entry stores the greeks rows for one underlying and expiry.
type entry struct {
	expiresAt time.Time
	rows      []smartapi.OptionGreek
}

// Greeks caches option-greek rows per underlying and expiry for a TTL.
// Rows are cached rather than summaries so the at-the-money strike is always
// picked against the current spot. Market quotes pass through uncached, and
// failures are not cached.
type Greeks struct {
	API      API
	TTL      time.Duration
	MaxItems int
	Now      func() time.Time

	mu    sync.RWMutex
	items map[string]entry // key: name|expiry
}

func (c *Greeks) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Greeks) MarketQuote(ctx context.Context, jwt string, mode smartapi.QuoteMode, exchangeTokens map[string][]string) (*smartapi.QuoteData, error) {
	return c.API.MarketQuote(ctx, jwt, mode, exchangeTokens)
}

func (c *Greeks) OptionGreeks(ctx context.Context, jwt, name, expiry string) ([]smartapi.OptionGreek, error) {
	if c.TTL <= 0 {
		return c.API.OptionGreeks(ctx, jwt, name, expiry)
	}

	key := name + "|" + expiry
	now := c.now()
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if ok && now.Before(e.expiresAt) {
		return e.rows, nil
	}

	rows, err := c.API.OptionGreeks(ctx, jwt, name, expiry)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = make(map[string]entry)
	}
	c.items[key] = entry{expiresAt: now.Add(c.TTL), rows: rows}
	c.evict(now)
	return rows, nil
}

// evict caps the cache size: expired entries go first, then arbitrary ones.
// Callers hold mu.
func (c *Greeks) evict(now time.Time) {
	if c.MaxItems <= 0 || len(c.items) <= c.MaxItems {
		return
	}
	for k, v := range c.items {
		if !now.Before(v.expiresAt) {
			delete(c.items, k)
		}
	}
	for k := range c.items {
		if len(c.items) <= c.MaxItems {
			break
		}
		delete(c.items, k)
	}
}

// Len reports the number of cached entries, expired ones included.
func (c *Greeks) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
