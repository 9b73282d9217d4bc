package smartapiadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"quotealert/internal/broker/smartapi"
	"quotealert/internal/optionchain"
	"quotealert/internal/quote"
	"quotealert/internal/watchlist"
)

// API is the subset of the SmartAPI client used for quotes.
type API interface {
	MarketQuote(ctx context.Context, jwt string, mode smartapi.QuoteMode, exchangeTokens map[string][]string) (*smartapi.QuoteData, error)
	OptionGreeks(ctx context.Context, jwt, name, expiry string) ([]smartapi.OptionGreek, error)
}

// ExpiryResolver picks the option expiry to summarize.
type ExpiryResolver interface {
	NearestExpiry(ctx context.Context, segment, name string, now time.Time) (string, error)
}

type Config struct {
	Name string // display name, default: SmartAPI
	Now  func() time.Time
}

// Adapter implements quote.MarketSource and quote.ChainSource on SmartAPI.
type Adapter struct {
	cfg      Config
	api      API
	expiries ExpiryResolver
}

func New(cfg Config, api API, expiries ExpiryResolver) *Adapter {
	if cfg.Name == "" {
		cfg.Name = "SmartAPI"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Adapter{cfg: cfg, api: api, expiries: expiries}
}

func (a *Adapter) Name() string { return a.cfg.Name }

// Quote fetches a FULL market quote and validates the fields we rely on.
func (a *Adapter) Quote(ctx context.Context, jwt string, sym watchlist.Symbol) (quote.Quote, error) {
	data, err := a.api.MarketQuote(ctx, jwt, smartapi.ModeFull, map[string][]string{sym.Exchange: {sym.Token}})
	if err != nil {
		return quote.Quote{}, classify(sym.Name, err)
	}
	for _, u := range data.Unfetched {
		if u.SymbolToken == sym.Token {
			return quote.Quote{}, quote.NewError(sym.Name, quote.KindNotFound,
				fmt.Errorf("unfetched: %s (%s)", u.Message, u.ErrorCode))
		}
	}
	for _, mq := range data.Fetched {
		if mq.SymbolToken != sym.Token {
			continue
		}
		ltp, err := parseDecimal("ltp", mq.LTP)
		if err != nil {
			return quote.Quote{}, quote.NewError(sym.Name, quote.KindParse, err)
		}
		vol, err := parseVolume(mq.TradeVolume)
		if err != nil {
			return quote.Quote{}, quote.NewError(sym.Name, quote.KindParse, err)
		}
		return quote.Quote{
			Symbol:    sym.Name,
			Exchange:  sym.Exchange,
			Token:     sym.Token,
			LTP:       ltp,
			Volume:    vol,
			FetchedAt: a.cfg.Now().UTC(),
		}, nil
	}
	return quote.Quote{}, quote.NewError(sym.Name, quote.KindNotFound, errors.New("token missing from response"))
}

// Chain summarizes the nearest-expiry option chain around spot.
func (a *Adapter) Chain(ctx context.Context, jwt string, sym watchlist.Symbol, spot decimal.Decimal) (optionchain.Summary, error) {
	if a.expiries == nil {
		return optionchain.Summary{}, quote.NewError(sym.Name, quote.KindNotFound, errors.New("no expiry resolver"))
	}
	segment := sym.OptionSegment
	if segment == "" {
		segment = "NFO"
	}
	expiry, err := a.expiries.NearestExpiry(ctx, segment, sym.OptionName, a.cfg.Now())
	if err != nil {
		return optionchain.Summary{}, quote.NewError(sym.Name, quote.KindNotFound, err)
	}
	rows, err := a.api.OptionGreeks(ctx, jwt, sym.OptionName, expiry)
	if err != nil {
		return optionchain.Summary{}, classify(sym.Name, err)
	}
	legs := make([]optionchain.Leg, 0, len(rows))
	for i, r := range rows {
		leg, err := toLeg(r)
		if err != nil {
			return optionchain.Summary{}, quote.NewError(sym.Name, quote.KindParse, fmt.Errorf("row %d: %w", i, err))
		}
		legs = append(legs, leg)
	}
	sum, err := optionchain.Summarize(sym.OptionName, expiry, legs, spot)
	if err != nil {
		return optionchain.Summary{}, quote.NewError(sym.Name, quote.KindNotFound, err)
	}
	return sum, nil
}

func toLeg(r smartapi.OptionGreek) (optionchain.Leg, error) {
	side, err := optionchain.ParseSide(r.OptionType)
	if err != nil {
		return optionchain.Leg{}, err
	}
	strike, err := parseDecimal("strikePrice", r.StrikePrice)
	if err != nil {
		return optionchain.Leg{}, err
	}
	iv, err := parseDecimal("impliedVolatility", r.ImpliedVolatility)
	if err != nil {
		return optionchain.Leg{}, err
	}
	vol, err := parseDecimal("tradeVolume", r.TradeVolume)
	if err != nil {
		return optionchain.Leg{}, err
	}
	return optionchain.Leg{Strike: strike, Side: side, IV: iv, Volume: vol}, nil
}

// parseDecimal rejects missing fields rather than defaulting them to zero.
func parseDecimal(field string, n json.Number) (decimal.Decimal, error) {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("missing %s", field)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return d, nil
}

func parseVolume(n json.Number) (int64, error) {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return 0, errors.New("missing tradeVolume")
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil && v >= 0 {
		return v, nil
	}
	// Some segments report volume as a float literal
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() || !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("invalid tradeVolume %q", s)
	}
	return d.IntPart(), nil
}

func classify(sym string, err error) error {
	var apiErr *smartapi.APIError
	switch {
	case errors.Is(err, smartapi.ErrTokenExpired):
		return quote.NewError(sym, quote.KindAuth, err)
	case errors.Is(err, smartapi.ErrPermission):
		return quote.NewError(sym, quote.KindPermission, err)
	case errors.Is(err, smartapi.ErrRateLimited):
		return quote.NewError(sym, quote.KindRateLimited, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return quote.NewError(sym, quote.KindCanceled, err)
	case errors.As(err, &apiErr):
		return quote.NewError(sym, quote.KindAPI, err)
	case errors.Is(err, smartapi.ErrMalformed):
		return quote.NewError(sym, quote.KindParse, err)
	}
	return quote.NewError(sym, quote.KindTransport, err)
}
