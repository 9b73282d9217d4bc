// Package instruments caches the brokerage scrip master and answers expiry
// lookups for option chains.
package instruments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"quotealert/internal/broker/smartapi"
)

// IST is the exchange time zone.
var IST = time.FixedZone("IST", 5*3600+30*60)

const expiryLayout = "02Jan2006"

// ErrNoExpiry is returned when no live option expiry exists for an underlying.
var ErrNoExpiry = errors.New("no active option expiry")

// Loader fetches the full instrument list.
type Loader interface {
	ScripMaster(ctx context.Context) ([]smartapi.ScripEntry, error)
}

// DefaultRetryAfter is how long a failed scrip master load is remembered.
const DefaultRetryAfter = 5 * time.Minute

// Master is a TTL cache over the scrip master, indexed by underlying.
// A failed load is not retried before RetryAfter has passed.
type Master struct {
	L          Loader
	TTL        time.Duration
	RetryAfter time.Duration // default: DefaultRetryAfter

	mu        sync.RWMutex
	expiries  map[string][]time.Time // key: segment|name, sorted ascending
	loadErr   error                  // last failure while expiries is nil
	expiresAt time.Time
}

func key(segment, name string) string {
	return strings.ToUpper(segment) + "|" + strings.ToUpper(name)
}

// NearestExpiry returns the first option expiry on or after now's exchange
// date, formatted the way the option chain endpoint expects (e.g. 28NOV2024).
func (m *Master) NearestExpiry(ctx context.Context, segment, name string, now time.Time) (string, error) {
	idx, err := m.index(ctx, now)
	if err != nil {
		return "", err
	}
	y, mo, d := now.In(IST).Date()
	today := time.Date(y, mo, d, 0, 0, 0, 0, IST)
	list := idx[key(segment, name)]
	i := sort.Search(len(list), func(i int) bool { return !list[i].Before(today) })
	if i == len(list) {
		return "", fmt.Errorf("%s %s: %w", segment, name, ErrNoExpiry)
	}
	return strings.ToUpper(list[i].Format(expiryLayout)), nil
}

func (m *Master) index(ctx context.Context, now time.Time) (map[string][]time.Time, error) {
	m.mu.RLock()
	if now.Before(m.expiresAt) && (m.expiries != nil || m.loadErr != nil) {
		idx, err := m.expiries, m.loadErr
		m.mu.RUnlock()
		return idx, err
	}
	m.mu.RUnlock()

	entries, err := m.L.ScripMaster(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.expiresAt = now.Add(m.retryAfter())
		// A stale index is still good for expiry lookups
		if m.expiries != nil {
			return m.expiries, nil
		}
		m.loadErr = fmt.Errorf("load scrip master: %w", err)
		return nil, m.loadErr
	}
	m.expiries = build(entries)
	m.loadErr = nil
	m.expiresAt = now.Add(m.TTL)
	return m.expiries, nil
}

func (m *Master) retryAfter() time.Duration {
	if m.RetryAfter > 0 {
		return m.RetryAfter
	}
	return DefaultRetryAfter
}

func build(entries []smartapi.ScripEntry) map[string][]time.Time {
	sets := make(map[string]map[time.Time]struct{})
	for _, e := range entries {
		switch e.InstrumentType {
		case "OPTIDX", "OPTSTK":
		default:
			continue
		}
		t, err := time.ParseInLocation(expiryLayout, e.Expiry, IST)
		if err != nil {
			continue
		}
		k := key(e.ExchSeg, e.Name)
		if sets[k] == nil {
			sets[k] = make(map[time.Time]struct{})
		}
		sets[k][t] = struct{}{}
	}
	out := make(map[string][]time.Time, len(sets))
	for k, set := range sets {
		list := make([]time.Time, 0, len(set))
		for t := range set {
			list = append(list, t)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].Before(list[j]) })
		out[k] = list
	}
	return out
}
