package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingCredentials is returned by Validate when a brokerage credential is unset.
var ErrMissingCredentials = errors.New("missing brokerage credentials")

type Angel struct {
	APIKey     string `json:"api_key"`
	ClientCode string `json:"client_code"`
	Password   string `json:"password"`
	TOTPSecret string `json:"totp_secret"`

	BaseURL              string `json:"base_url"`
	ScripMasterURL       string `json:"scrip_master_url"`
	SessionTTLMin        int    `json:"session_ttl_min"`
	MaxRequestsPerMinute int    `json:"max_requests_per_minute"`
	Burst                int    `json:"burst"`
}

type OptionChain struct {
	Enabled               bool `json:"enabled"`
	MinRequestIntervalSec int  `json:"min_request_interval_sec"`
	CacheTTLSeconds       int  `json:"cache_ttl_sec"`
	CacheMaxItems         int  `json:"cache_max_items"`
	ScripMasterTTLMin     int  `json:"scrip_master_ttl_min"`
	ScripMasterTimeoutSec int  `json:"scrip_master_timeout_sec"`
}

type Store struct {
	Driver string `json:"driver"` // sqlite or postgres
	DSN    string `json:"dsn"`
}

type Telegram struct {
	BotToken      string `json:"bot_token"`
	ChatID        string `json:"chat_id"`
	Endpoint      string `json:"endpoint"`
	MaxMessageLen int    `json:"max_message_len"`
}

type Run struct {
	IntervalSec       int  `json:"interval_sec"`
	Align             bool `json:"align"`
	AlignOffsetSec    int  `json:"align_offset_sec"`
	MinSleepSec       int  `json:"min_sleep_sec"`
	RequestTimeoutSec int  `json:"request_timeout_sec"`
}

type Log struct {
	Level      string `json:"level"`
	Production bool   `json:"production"`
	File       string `json:"file"`
}

type Config struct {
	Angel         Angel       `json:"angel"`
	OptionChain   OptionChain `json:"option_chain"`
	Store         Store       `json:"store"`
	Telegram      Telegram    `json:"telegram"`
	Run           Run         `json:"run"`
	Log           Log         `json:"log"`
	WatchlistFile string      `json:"watchlist_file"`
	// Symbols narrows the watchlist to these names when set.
	Symbols []string `json:"symbols"`
}

func Default() Config {
	return Config{
		Angel: Angel{
			SessionTTLMin:        360,
			MaxRequestsPerMinute: 60,
			Burst:                1,
		},
		OptionChain: OptionChain{
			Enabled:               true,
			MinRequestIntervalSec: 1,
			// Longer than the default interval, so every other cycle
			// reuses the greeks rows.
			CacheTTLSeconds:       3600,
			CacheMaxItems:         64,
			ScripMasterTTLMin:     720,
			ScripMasterTimeoutSec: 120,
		},
		Store:    Store{Driver: "sqlite", DSN: "alerts.db"},
		Telegram: Telegram{MaxMessageLen: 4096},
		Run: Run{
			IntervalSec:       1800,
			AlignOffsetSec:    5,
			MinSleepSec:       10,
			RequestTimeoutSec: 10,
		},
		Log: Log{Level: "info"},
	}
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads JSON config from path. If path is empty or file does not exist,
// it returns defaults. Environment variables override select fields for secrecy.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Angel.APIKey, "ANGEL_API_KEY")
	setString(&cfg.Angel.ClientCode, "ANGEL_CLIENT_CODE")
	setString(&cfg.Angel.Password, "ANGEL_PASSWORD")
	setString(&cfg.Angel.TOTPSecret, "ANGEL_TOTP_SECRET")
	setString(&cfg.Angel.BaseURL, "ANGEL_BASE_URL")
	setString(&cfg.Angel.ScripMasterURL, "ANGEL_SCRIP_MASTER_URL")
	setString(&cfg.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(&cfg.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	setString(&cfg.Telegram.Endpoint, "TELEGRAM_API_ENDPOINT")
	setString(&cfg.Store.Driver, "STORE_DRIVER")
	setString(&cfg.Store.DSN, "STORE_DSN")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.File, "LOG_FILE")
	setString(&cfg.WatchlistFile, "WATCHLIST_FILE")
	if v := os.Getenv("WATCHLIST_SYMBOLS"); v != "" {
		cfg.Symbols = SplitCSV(v)
	}

	var errs []error
	errs = append(errs,
		setInt(&cfg.Angel.SessionTTLMin, "ANGEL_SESSION_TTL_MIN", 1),
		setInt(&cfg.Angel.MaxRequestsPerMinute, "QUOTE_MAX_RPM", 0),
		setInt(&cfg.Angel.Burst, "QUOTE_BURST", 1),
		setInt(&cfg.OptionChain.MinRequestIntervalSec, "OPTION_CHAIN_MIN_INTERVAL_SEC", 0),
		setInt(&cfg.OptionChain.CacheTTLSeconds, "OPTION_CHAIN_CACHE_TTL_SEC", 0),
		setInt(&cfg.Run.IntervalSec, "RUN_INTERVAL_SEC", 1),
		setInt(&cfg.Run.AlignOffsetSec, "RUN_ALIGN_OFFSET_SEC", 0),
		setInt(&cfg.Run.MinSleepSec, "RUN_MIN_SLEEP_SEC", 0),
		setInt(&cfg.Run.RequestTimeoutSec, "REQUEST_TIMEOUT_SEC", 1),
		setInt(&cfg.OptionChain.ScripMasterTimeoutSec, "ANGEL_SCRIP_MASTER_TIMEOUT_SEC", 1),
		setInt(&cfg.Telegram.MaxMessageLen, "TELEGRAM_MAX_MESSAGE_LEN", 1),
		setBool(&cfg.OptionChain.Enabled, "OPTION_CHAIN_ENABLED"),
		setBool(&cfg.Run.Align, "RUN_ALIGN"),
		setBool(&cfg.Log.Production, "LOG_PROD"),
	)
	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string, min int) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	x, err := strconv.Atoi(v)
	if err != nil || x < min {
		return fmt.Errorf("%s: want an integer >= %d, got %q", key, min, v)
	}
	*dst = x
	return nil
}

func setBool(dst *bool, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y":
		*dst = true
	case "0", "false", "no", "n":
		*dst = false
	default:
		return fmt.Errorf("%s: want a boolean, got %q", key, v)
	}
	return nil
}

// Validate checks what is needed to start a session and a store.
func (c Config) Validate() error {
	var missing []string
	for _, f := range []struct{ key, val string }{
		{"ANGEL_API_KEY", c.Angel.APIKey},
		{"ANGEL_CLIENT_CODE", c.Angel.ClientCode},
		{"ANGEL_PASSWORD", c.Angel.Password},
		{"ANGEL_TOTP_SECRET", c.Angel.TOTPSecret},
	} {
		if strings.TrimSpace(f.val) == "" {
			missing = append(missing, f.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("store driver %q: want sqlite or postgres", c.Store.Driver)
	}
	if c.Run.IntervalSec <= 0 {
		return errors.New("run interval must be positive")
	}
	return nil
}

// TelegramConfigured reports whether both bot token and chat id are set.
func (c Config) TelegramConfigured() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

func (r Run) Interval() time.Duration       { return time.Duration(r.IntervalSec) * time.Second }
func (r Run) AlignOffset() time.Duration    { return time.Duration(r.AlignOffsetSec) * time.Second }
func (r Run) MinSleep() time.Duration       { return time.Duration(r.MinSleepSec) * time.Second }
func (r Run) RequestTimeout() time.Duration { return time.Duration(r.RequestTimeoutSec) * time.Second }

// SplitCSV splits a comma separated list, dropping empty items.
func SplitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
