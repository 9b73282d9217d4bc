// Package session holds the authenticated brokerage session that is passed
// into every fetch cycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"

	"quotealert/internal/broker/smartapi"
)

// Authenticator is the subset of the SmartAPI client used for session management.
//
//go:generate mockgen -package=session_test -destination=mock_authenticator_test.go -source=session.go Authenticator
type Authenticator interface {
	Login(ctx context.Context, clientCode, password, totp string) (smartapi.Tokens, error)
	RefreshTokens(ctx context.Context, jwt, refreshToken string) (smartapi.Tokens, error)
	Logout(ctx context.Context, jwt, clientCode string) error
}

// Credentials are the secrets needed for a fresh login.
type Credentials struct {
	ClientCode string
	Password   string
	// TOTPSecret is the base32 seed shown when enabling TOTP on the account.
	TOTPSecret string
}

// Session is an explicit, refreshable brokerage session. It is not safe for
// concurrent use; the cycle runner owns it.
type Session struct {
	auth   Authenticator
	creds  Credentials
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger

	tokens   smartapi.Tokens
	issuedAt time.Time
	stale    bool
}

// Option configures a Session.
type Option func(*Session)

// WithTTL sets how long tokens are trusted before a refresh. SmartAPI JWTs are
// valid for the trading day; the default is conservative.
func WithTTL(ttl time.Duration) Option {
	return func(s *Session) { s.ttl = ttl }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// Open logs in and returns a ready session. A failure here is an
// authentication failure and should abort startup.
func Open(ctx context.Context, auth Authenticator, creds Credentials, opts ...Option) (*Session, error) {
	s := &Session{
		auth:   auth,
		creds:  creds,
		ttl:    6 * time.Hour,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.login(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) login(ctx context.Context) error {
	code, err := s.totpCode()
	if err != nil {
		return err
	}
	tok, err := s.auth.Login(ctx, s.creds.ClientCode, s.creds.Password, code)
	if err != nil {
		return fmt.Errorf("session login: %w", err)
	}
	s.set(tok)
	s.logger.Info("brokerage login ok", zap.String("client_code", s.creds.ClientCode))
	return nil
}

func (s *Session) totpCode() (string, error) {
	secret := strings.ToUpper(strings.ReplaceAll(s.creds.TOTPSecret, " ", ""))
	if secret == "" {
		return "", errors.New("session: totp secret is empty")
	}
	code, err := totp.GenerateCode(secret, s.now())
	if err != nil {
		return "", fmt.Errorf("session: generating totp: %w", err)
	}
	return code, nil
}

func (s *Session) set(tok smartapi.Tokens) {
	s.tokens = tok
	s.issuedAt = s.now()
	s.stale = false
}

// Expired reports whether the session must be refreshed before use.
func (s *Session) Expired() bool {
	return s.stale || s.tokens.JWT == "" || (s.ttl > 0 && s.now().Sub(s.issuedAt) >= s.ttl)
}

// Invalidate marks the session stale after the API rejected its token.
// The next Token call refreshes it.
func (s *Session) Invalidate() {
	if !s.stale {
		s.logger.Warn("session token rejected, will refresh")
	}
	s.stale = true
}

// Token returns a usable JWT, refreshing first if expiry was detected. A
// refresh-token exchange is tried before a full TOTP login.
func (s *Session) Token(ctx context.Context) (string, error) {
	if !s.Expired() {
		return s.tokens.JWT, nil
	}
	if s.tokens.RefreshToken != "" {
		tok, err := s.auth.RefreshTokens(ctx, s.tokens.JWT, s.tokens.RefreshToken)
		if err == nil {
			s.set(tok)
			s.logger.Info("session refreshed")
			return s.tokens.JWT, nil
		}
		s.logger.Warn("token refresh failed, logging in again", zap.Error(err))
	}
	if err := s.login(ctx); err != nil {
		return "", err
	}
	return s.tokens.JWT, nil
}

// Close logs out. Errors are returned for logging only.
func (s *Session) Close(ctx context.Context) error {
	if s.tokens.JWT == "" {
		return nil
	}
	err := s.auth.Logout(ctx, s.tokens.JWT, s.creds.ClientCode)
	s.tokens = smartapi.Tokens{}
	return err
}
