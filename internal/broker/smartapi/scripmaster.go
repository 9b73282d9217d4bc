package smartapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// ScripEntry is one instrument of the public scrip master.
type ScripEntry struct {
	Token          string `json:"token"`
	Symbol         string `json:"symbol"`
	Name           string `json:"name"`
	Expiry         string `json:"expiry"`
	Strike         string `json:"strike"`
	LotSize        string `json:"lotsize"`
	InstrumentType string `json:"instrumenttype"`
	ExchSeg        string `json:"exch_seg"`
	TickSize       string `json:"tick_size"`
}

// ScripMaster downloads the full instrument list. The file is public and
// several tens of megabytes, so callers should cache it.
func (c *Client) ScripMaster(ctx context.Context) ([]ScripEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.scripMasterURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	httpClient := c.scripMasterClient
	if httpClient == nil {
		httpClient = c.httpClient
	}
	res, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, &APIError{HTTPStatus: res.StatusCode, Message: "scrip master unavailable"}
	}

	var entries []ScripEntry
	if err := json.NewDecoder(res.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decoding scrip master: %w", err)
	}
	return entries, nil
}
