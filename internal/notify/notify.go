// Package notify delivers cycle summaries to a chat.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrNotConfigured is returned by Noop, and means there is nowhere to send.
var ErrNotConfigured = errors.New("notifier not configured")

// Notifier sends one message. Implementations do not retry.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Noop is used when the bot token or chat id is missing.
type Noop struct{}

func (Noop) Send(context.Context, string) error { return ErrNotConfigured }

// HTTPClient describes an HTTP client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Telegram sends messages through the Bot API. The bot identity is never
// fetched (no getMe call), so each Send is exactly one sendMessage request.
type Telegram struct {
	token    string
	chatID   string
	endpoint string
	client   HTTPClient
	bot      *tgbotapi.BotAPI
}

// Option configures a Telegram notifier.
type Option func(*Telegram)

// WithEndpoint sets the Bot API endpoint format, e.g. "https://api.telegram.org/bot%s/%s".
func WithEndpoint(endpoint string) Option {
	return func(t *Telegram) {
		if endpoint != "" {
			t.endpoint = endpoint
		}
	}
}

// WithHTTPClient sets the HTTP client used for Bot API calls.
func WithHTTPClient(c HTTPClient) Option {
	return func(t *Telegram) { t.client = c }
}

// New returns a Telegram notifier, or Noop when token or chatID is empty.
func New(token, chatID string, opts ...Option) Notifier {
	token, chatID = strings.TrimSpace(token), strings.TrimSpace(chatID)
	if token == "" || chatID == "" {
		return Noop{}
	}
	t := &Telegram{
		token:    token,
		chatID:   chatID,
		endpoint: tgbotapi.APIEndpoint,
		client:   http.DefaultClient,
	}
	for _, o := range opts {
		o(t)
	}
	t.bot = &tgbotapi.BotAPI{Token: t.token, Client: t.client, Buffer: 100}
	t.bot.SetAPIEndpoint(t.endpoint)
	return t
}

// message addresses numeric chat ids directly and anything else as a
// channel username.
func (t *Telegram) message(text string) tgbotapi.MessageConfig {
	if id, err := strconv.ParseInt(t.chatID, 10, 64); err == nil {
		return tgbotapi.NewMessage(id, text)
	}
	return tgbotapi.NewMessageToChannel(t.chatID, text)
}

// Send posts text to the configured chat.
func (t *Telegram) Send(ctx context.Context, text string) error {
	if text == "" {
		return errors.New("telegram: empty message")
	}
	// The Bot API client has no context support; the HTTP client timeout
	// bounds the call instead.
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := t.message(text)
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
