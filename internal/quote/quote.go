package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"quotealert/internal/optionchain"
	"quotealert/internal/watchlist"
)

// Quote is one symbol's snapshot for a cycle. It is not modified after the
// fetcher returns it.
type Quote struct {
	Symbol   string          `json:"symbol"`
	Exchange string          `json:"exchange"`
	Token    string          `json:"token"`
	LTP      decimal.Decimal `json:"ltp"`
	Volume   int64           `json:"volume"`
	// OptionChain is nil when the symbol has no chain or the chain fetch failed.
	OptionChain *optionchain.Summary `json:"option_chain,omitempty"`
	FetchedAt   time.Time            `json:"fetched_at"`
}

// ErrorKind classifies a per-symbol failure.
type ErrorKind string

const (
	KindAuth        ErrorKind = "auth"
	KindPermission  ErrorKind = "permission"
	KindRateLimited ErrorKind = "rate_limited"
	KindTransport   ErrorKind = "transport"
	KindAPI         ErrorKind = "api"
	KindNotFound    ErrorKind = "not_found"
	KindParse       ErrorKind = "parse"
	KindCanceled    ErrorKind = "canceled"
)

// Error is a classified per-symbol failure.
type Error struct {
	Symbol string
	Kind   ErrorKind
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Symbol, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a classified error for sym.
func NewError(sym string, kind ErrorKind, err error) *Error {
	return &Error{Symbol: sym, Kind: kind, Err: err}
}

// KindOf returns the kind of err. Unclassified errors count as transport
// failures, context errors as cancellations.
func KindOf(err error) ErrorKind {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindTransport
}

// Result is the tagged outcome for one symbol: exactly one of Quote or Err is set.
type Result struct {
	Symbol string
	Quote  *Quote
	Err    *Error
}

// OK reports whether the symbol produced a quote.
func (r Result) OK() bool { return r.Quote != nil }

// Quotes returns the successful quotes of a batch in order.
func Quotes(results []Result) []Quote {
	out := make([]Quote, 0, len(results))
	for _, r := range results {
		if r.Quote != nil {
			out = append(out, *r.Quote)
		}
	}
	return out
}

// MarketSource fetches last traded price and volume for one symbol.
//
//go:generate mockgen -package=quote_test -destination=mock_sources_test.go -source=quote.go MarketSource,ChainSource
type MarketSource interface {
	Name() string
	Quote(ctx context.Context, jwt string, sym watchlist.Symbol) (Quote, error)
}

// ChainSource builds the option-chain summary for one symbol around spot.
type ChainSource interface {
	Name() string
	Chain(ctx context.Context, jwt string, sym watchlist.Symbol, spot decimal.Decimal) (optionchain.Summary, error)
}
