package smartapi

import (
	"context"
	"encoding/json"
	"fmt"
)

const optionGreekPath = "/rest/secure/angelbroking/marketData/v1/optionGreek"

// OptionGreek is one strike/side row of the option chain for an expiry.
type OptionGreek struct {
	Name              string      `json:"name"`
	Expiry            string      `json:"expiry"`
	StrikePrice       json.Number `json:"strikePrice"`
	OptionType        string      `json:"optionType"`
	Delta             json.Number `json:"delta"`
	Gamma             json.Number `json:"gamma"`
	Theta             json.Number `json:"theta"`
	Vega              json.Number `json:"vega"`
	ImpliedVolatility json.Number `json:"impliedVolatility"`
	TradeVolume       json.Number `json:"tradeVolume"`
}

// OptionGreeks returns the option chain with greeks for an underlying name
// (e.g. "NIFTY") and an expiry in DDMONYYYY form (e.g. "28NOV2024").
func (c *Client) OptionGreeks(ctx context.Context, jwt, name, expiry string) ([]OptionGreek, error) {
	body := map[string]string{
		"name":       name,
		"expirydate": expiry,
	}
	var rows []OptionGreek
	if err := c.post(ctx, optionGreekPath, jwt, body, &rows); err != nil {
		return nil, fmt.Errorf("option greeks %s %s: %w", name, expiry, err)
	}
	return rows, nil
}
