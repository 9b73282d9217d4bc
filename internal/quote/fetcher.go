package quote

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"quotealert/internal/watchlist"
)

// TokenSource yields the session token for each call. Invalidate is called
// when the API rejects the token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// Fetcher turns a symbol list into one Result per symbol.
type Fetcher struct {
	Market MarketSource
	// Chain is optional; nil disables option chains.
	Chain  ChainSource
	Logger *zap.Logger
	Now    func() time.Time
}

// Fetch queries every symbol in order. A failing symbol is recorded and the
// batch continues; nothing is retried.
func (f *Fetcher) Fetch(ctx context.Context, tokens TokenSource, symbols []watchlist.Symbol) []Result {
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := f.Now
	if now == nil {
		now = time.Now
	}

	results := make([]Result, 0, len(symbols))
	for i, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return failRest(results, symbols[i:], KindCanceled, err)
		}
		jwt, err := tokens.Token(ctx)
		if err != nil {
			logger.Error("no usable session, skipping remaining symbols", zap.Error(err))
			return failRest(results, symbols[i:], KindAuth, err)
		}

		q, err := f.Market.Quote(ctx, jwt, sym)
		if err != nil {
			qe := asError(sym.Name, err)
			if qe.Kind == KindAuth {
				tokens.Invalidate()
			}
			logger.Warn("quote fetch failed",
				zap.String("symbol", sym.Name),
				zap.String("kind", string(qe.Kind)),
				zap.Error(qe.Err))
			results = append(results, Result{Symbol: sym.Name, Err: qe})
			continue
		}
		if q.Symbol == "" {
			q.Symbol = sym.Name
		}
		if q.FetchedAt.IsZero() {
			q.FetchedAt = now().UTC()
		}

		if f.Chain != nil && sym.OptionName != "" {
			sum, err := f.Chain.Chain(ctx, jwt, sym, q.LTP)
			if err != nil {
				kind := KindOf(err)
				if kind == KindAuth {
					tokens.Invalidate()
				}
				logger.Warn("option chain unavailable",
					zap.String("symbol", sym.Name),
					zap.String("kind", string(kind)),
					zap.Error(err))
			} else {
				q.OptionChain = &sum
			}
		}

		logger.Debug("quote fetched",
			zap.String("symbol", q.Symbol),
			zap.Stringer("ltp", q.LTP),
			zap.Int64("volume", q.Volume))
		results = append(results, Result{Symbol: sym.Name, Quote: &q})
	}
	return results
}

func asError(sym string, err error) *Error {
	var qe *Error
	if errors.As(err, &qe) {
		return &Error{Symbol: sym, Kind: qe.Kind, Err: qe.Err}
	}
	return NewError(sym, KindOf(err), err)
}

func failRest(results []Result, rest []watchlist.Symbol, kind ErrorKind, err error) []Result {
	for _, s := range rest {
		results = append(results, Result{Symbol: s.Name, Err: NewError(s.Name, kind, err)})
	}
	return results
}
