package smartapi

import (
	"context"
	"fmt"
)

const (
	loginPath   = "/rest/auth/angelbroking/user/v1/loginByPassword"
	refreshPath = "/rest/auth/angelbroking/jwt/v1/generateTokens"
	logoutPath  = "/rest/secure/angelbroking/user/v1/logout"
)

// Tokens are the credentials issued by a successful login or refresh.
type Tokens struct {
	JWT          string `json:"jwtToken"`
	RefreshToken string `json:"refreshToken"`
	FeedToken    string `json:"feedToken"`
}

func (t Tokens) validate() error {
	if t.JWT == "" || t.RefreshToken == "" {
		return fmt.Errorf("%w: missing jwtToken or refreshToken", ErrMalformed)
	}
	return nil
}

// Login exchanges client credentials and a current TOTP code for session tokens.
func (c *Client) Login(ctx context.Context, clientCode, password, totp string) (Tokens, error) {
	body := map[string]string{
		"clientcode": clientCode,
		"password":   password,
		"totp":       totp,
	}
	var tok Tokens
	if err := c.post(ctx, loginPath, "", body, &tok); err != nil {
		return Tokens{}, fmt.Errorf("login: %w", err)
	}
	if err := tok.validate(); err != nil {
		return Tokens{}, fmt.Errorf("login: %w", err)
	}
	return tok, nil
}

// RefreshTokens issues a new JWT from a refresh token without a TOTP round trip.
func (c *Client) RefreshTokens(ctx context.Context, jwt, refreshToken string) (Tokens, error) {
	var tok Tokens
	if err := c.post(ctx, refreshPath, jwt, map[string]string{"refreshToken": refreshToken}, &tok); err != nil {
		return Tokens{}, fmt.Errorf("refresh tokens: %w", err)
	}
	if err := tok.validate(); err != nil {
		return Tokens{}, fmt.Errorf("refresh tokens: %w", err)
	}
	return tok, nil
}

// Logout terminates the session identified by jwt.
func (c *Client) Logout(ctx context.Context, jwt, clientCode string) error {
	if err := c.post(ctx, logoutPath, jwt, map[string]string{"clientcode": clientCode}, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}
