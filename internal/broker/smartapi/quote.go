package smartapi

import (
	"context"
	"encoding/json"
	"fmt"
)

const quotePath = "/rest/secure/angelbroking/market/v1/quote/"

// QuoteMode selects how much of the market quote is returned. Only FULL
// carries the traded volume.
type QuoteMode string

const ModeFull QuoteMode = "FULL"

// MarketQuote is one fetched instrument. Numeric fields stay json.Number so
// callers can tell a missing field ("") from a zero.
type MarketQuote struct {
	Exchange      string      `json:"exchange"`
	TradingSymbol string      `json:"tradingSymbol"`
	SymbolToken   string      `json:"symbolToken"`
	LTP           json.Number `json:"ltp"`
	Open          json.Number `json:"open"`
	High          json.Number `json:"high"`
	Low           json.Number `json:"low"`
	Close         json.Number `json:"close"`
	NetChange     json.Number `json:"netChange"`
	PercentChange json.Number `json:"percentChange"`
	TradeVolume   json.Number `json:"tradeVolume"`
	ExchFeedTime  string      `json:"exchFeedTime"`
}

// UnfetchedQuote is an instrument the API declined to quote.
type UnfetchedQuote struct {
	Exchange    string `json:"exchange"`
	SymbolToken string `json:"symbolToken"`
	Message     string `json:"message"`
	ErrorCode   string `json:"errorCode"`
}

// QuoteData is the payload of the market quote endpoint.
type QuoteData struct {
	Fetched   []MarketQuote    `json:"fetched"`
	Unfetched []UnfetchedQuote `json:"unfetched"`
}

// MarketQuote requests quotes for instrument tokens grouped by exchange, e.g.
// {"NSE": ["2885", "1333"]}.
func (c *Client) MarketQuote(ctx context.Context, jwt string, mode QuoteMode, exchangeTokens map[string][]string) (*QuoteData, error) {
	body := map[string]any{
		"mode":           mode,
		"exchangeTokens": exchangeTokens,
	}
	var data QuoteData
	if err := c.post(ctx, quotePath, jwt, body, &data); err != nil {
		return nil, fmt.Errorf("market quote: %w", err)
	}
	return &data, nil
}
