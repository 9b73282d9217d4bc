package session_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"quotealert/internal/broker/smartapi"
	"quotealert/internal/session"
)

var creds = session.Credentials{ClientCode: "A123", Password: "1234", TOTPSecret: "JBSWY3DPEHPK3PXP"}

// clock is a manually advanced time source.
type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestOpen_LogsInWithTOTP(t *testing.T) {
	t.Parallel()

	// Arrange
	ctrl := gomock.NewController(t)
	auth := NewMockAuthenticator(ctrl)
	auth.EXPECT().
		Login(gomock.Any(), "A123", "1234", gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _, code string) (smartapi.Tokens, error) {
			require.Regexp(t, regexp.MustCompile(`^\d{6}$`), code)
			return smartapi.Tokens{JWT: "jwt-1", RefreshToken: "ref-1", FeedToken: "feed-1"}, nil
		}).
		Times(1)

	// Act
	s, err := session.Open(t.Context(), auth, creds, session.WithLogger(zaptest.NewLogger(t)))

	// Assert
	require.NoError(t, err)
	tok, err := s.Token(t.Context())
	require.NoError(t, err)
	require.Equal(t, "jwt-1", tok)
}

func TestOpen_LoginFailureIsFatal(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	auth := NewMockAuthenticator(ctrl)
	auth.EXPECT().Login(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(smartapi.Tokens{}, errors.New("invalid totp")).Times(1)

	s, err := session.Open(t.Context(), auth, creds)
	require.ErrorContains(t, err, "invalid totp")
	require.Nil(t, s)
}

func TestOpen_EmptySecret(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	auth := NewMockAuthenticator(ctrl)

	_, err := session.Open(t.Context(), auth, session.Credentials{ClientCode: "A123", Password: "1234"})
	require.ErrorContains(t, err, "totp secret is empty")
}

func TestToken_RefreshesAfterTTL(t *testing.T) {
	t.Parallel()

	// Arrange
	ctrl := gomock.NewController(t)
	auth := NewMockAuthenticator(ctrl)
	clk := &clock{t: time.Date(2024, 11, 4, 9, 0, 0, 0, time.UTC)}

	auth.EXPECT().Login(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(smartapi.Tokens{JWT: "jwt-1", RefreshToken: "ref-1"}, nil).Times(1)
	auth.EXPECT().RefreshTokens(gomock.Any(), "jwt-1", "ref-1").
		Return(smartapi.Tokens{JWT: "jwt-2", RefreshToken: "ref-2"}, nil).Times(1)

	s, err := session.Open(t.Context(), auth, creds, session.WithTTL(time.Hour), session.WithClock(clk.now))
	require.NoError(t, err)

	// Act: within TTL no call is made
	clk.t = clk.t.Add(30 * time.Minute)
	tok, err := s.Token(t.Context())
	require.NoError(t, err)
	require.Equal(t, "jwt-1", tok)

	// Act: past TTL the refresh token is exchanged
	clk.t = clk.t.Add(time.Hour)
	require.True(t, s.Expired())
	tok, err = s.Token(t.Context())

	// Assert
	require.NoError(t, err)
	require.Equal(t, "jwt-2", tok)
	require.False(t, s.Expired())
}

func TestToken_InvalidateFallsBackToLogin(t *testing.T) {
	t.Parallel()

	// Arrange
	ctrl := gomock.NewController(t)
	auth := NewMockAuthenticator(ctrl)
	gomock.InOrder(
		auth.EXPECT().Login(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(smartapi.Tokens{JWT: "jwt-1", RefreshToken: "ref-1"}, nil),
		auth.EXPECT().RefreshTokens(gomock.Any(), "jwt-1", "ref-1").
			Return(smartapi.Tokens{}, smartapi.ErrTokenExpired),
		auth.EXPECT().Login(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(smartapi.Tokens{JWT: "jwt-3", RefreshToken: "ref-3"}, nil),
	)

	s, err := session.Open(t.Context(), auth, creds)
	require.NoError(t, err)

	// Act
	s.Invalidate()
	tok, err := s.Token(t.Context())

	// Assert
	require.NoError(t, err)
	require.Equal(t, "jwt-3", tok)
}

func TestClose_LogsOut(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	auth := NewMockAuthenticator(ctrl)
	auth.EXPECT().Login(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(smartapi.Tokens{JWT: "jwt-1", RefreshToken: "ref-1"}, nil).Times(1)
	auth.EXPECT().Logout(gomock.Any(), "jwt-1", "A123").Return(nil).Times(1)

	s, err := session.Open(t.Context(), auth, creds)
	require.NoError(t, err)
	require.NoError(t, s.Close(t.Context()))

	// Assert: a second close is a no-op
	require.NoError(t, s.Close(t.Context()))
}
