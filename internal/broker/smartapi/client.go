package smartapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	baseURL        = "https://apiconnect.angelone.in"
	scripMasterURL = "https://margincalculator.angelbroking.com/OpenAPI_File/files/OpenAPIScripMaster.json"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=smartapi_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

var (
	// ErrTokenExpired is returned when the API rejects the session token.
	ErrTokenExpired = errors.New("session token expired or invalid")
	// ErrPermission is returned when the API key lacks access to an endpoint.
	ErrPermission = errors.New("permission denied")
	// ErrRateLimited is returned on HTTP 429.
	ErrRateLimited = errors.New("rate limited")
	// ErrMalformed is returned when a response does not match the expected schema.
	ErrMalformed = errors.New("malformed response")
)

// tokenErrorCodes are SmartAPI error codes that mean the JWT is no longer usable.
var tokenErrorCodes = map[string]struct{}{
	"AG8001": {}, // invalid token
	"AG8002": {}, // token expired
	"AG8003": {}, // token missing
}

// APIError is a non-success response from SmartAPI.
type APIError struct {
	HTTPStatus int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("smartapi: %s (code=%s, http=%d)", e.Message, e.Code, e.HTTPStatus)
	}
	return fmt.Sprintf("smartapi: %s (http=%d)", e.Message, e.HTTPStatus)
}

// Unwrap maps the response onto one of the package sentinels, if any applies.
func (e *APIError) Unwrap() error {
	if _, ok := tokenErrorCodes[strings.ToUpper(e.Code)]; ok {
		return ErrTokenExpired
	}
	switch e.HTTPStatus {
	case http.StatusUnauthorized:
		return ErrTokenExpired
	case http.StatusForbidden:
		return ErrPermission
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}

// Client is a client for the Angel One SmartAPI REST interface.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// scripMasterURL serves the public instrument list.
	scripMasterURL string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// scripMasterClient downloads the instrument list; nil means httpClient.
	scripMasterClient HTTPClient
	// header contains headers sent with each request.
	header http.Header
}

// ClientOption is a configuration option for the SmartAPI client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithScripMasterURL sets the instrument list URL.
func WithScripMasterURL(u string) ClientOption {
	return func(c *Client) {
		c.scripMasterURL = u
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithScripMasterHTTPClient sets the client used for the instrument list
// download, which needs a longer timeout than the API calls.
func WithScripMasterHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.scripMasterClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
// Values replace the defaults for the same key.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			c.header.Del(key)
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// NewClient creates a new SmartAPI client for the given API key.
func NewClient(apiKey string, options ...ClientOption) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("smartapi: api key is required")
	}
	c := &Client{
		baseURL:        baseURL,
		scripMasterURL: scripMasterURL,
		httpClient:     http.DefaultClient,
		header:         http.Header{},
	}
	c.header.Set("Content-Type", "application/json")
	c.header.Set("Accept", "application/json")
	c.header.Set("X-UserType", "USER")
	c.header.Set("X-SourceID", "WEB")
	c.header.Set("X-ClientLocalIP", "127.0.0.1")
	c.header.Set("X-ClientPublicIP", "127.0.0.1")
	c.header.Set("X-MACAddress", "00:00:00:00:00:00")
	// The API key travels as a header on every call.
	// https://smartapi.angelbroking.com/docs
	c.header.Set("X-PrivateKey", apiKey)
	for _, option := range options {
		option(c)
	}
	return c, nil
}

// envelope is the common SmartAPI response wrapper.
type envelope struct {
	Status    bool            `json:"status"`
	Message   string          `json:"message"`
	ErrorCode string          `json:"errorcode"`
	Data      json.RawMessage `json:"data"`
}

// post sends body to path and decodes the envelope's data into out.
// jwt may be empty for unauthenticated endpoints.
func (c *Client) post(ctx context.Context, path, jwt string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()
	if jwt != "" {
		req.Header.Set("Authorization", "Bearer "+jwt)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		apiErr := &APIError{HTTPStatus: res.StatusCode, Message: http.StatusText(res.StatusCode)}
		if decodeErr == nil {
			if env.Message != "" {
				apiErr.Message = env.Message
			}
			apiErr.Code = env.ErrorCode
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("decoding response: %w: %w", ErrMalformed, decodeErr)
	}
	if !env.Status {
		return &APIError{HTTPStatus: res.StatusCode, Code: env.ErrorCode, Message: env.Message}
	}
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("decoding response: %w: missing data", ErrMalformed)
	}
	dec := json.NewDecoder(bytes.NewReader(env.Data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decoding data: %w: %w", ErrMalformed, err)
	}
	return nil
}
