package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"quotealert/internal/broker/smartapi"
	"quotealert/internal/config"
	"quotealert/internal/cycle"
	"quotealert/internal/httpx"
	"quotealert/internal/instruments"
	"quotealert/internal/logging"
	"quotealert/internal/notify"
	"quotealert/internal/quote"
	"quotealert/internal/quote/cache"
	"quotealert/internal/quote/ratelimit"
	"quotealert/internal/quote/smartapiadapter"
	"quotealert/internal/session"
	"quotealert/internal/store"
	"quotealert/internal/watchlist"
)

type options struct {
	loop          bool
	configPath    string
	envFile       string
	watchlistPath string
	dbPath        string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	var oneShot bool
	fs := flag.NewFlagSet("quotealert", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&oneShot, "one-shot", false, "run a single cycle and exit (default)")
	fs.BoolVar(&o.loop, "loop", false, "run cycles until interrupted")
	fs.StringVar(&o.configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json (optional)")
	fs.StringVar(&o.envFile, "env", getenv("ENV_FILE", ".env"), "path to a .env file (optional)")
	fs.StringVar(&o.watchlistPath, "watchlist", "", "path to a YAML watchlist (default: built-in list)")
	fs.StringVar(&o.dbPath, "db", "", "store DSN; a file path for sqlite")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if oneShot && o.loop {
		return o, errors.New("--one-shot and --loop are mutually exclusive")
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return o, nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := config.LoadEnvFile(opts.envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	if opts.watchlistPath != "" {
		cfg.WatchlistFile = opts.watchlistPath
	}
	if opts.dbPath != "" {
		cfg.Store.DSN = opts.dbPath
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Production: cfg.Log.Production, File: cfg.Log.File})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return 1
	}
	symbols, err := watchlist.Load(cfg.WatchlistFile)
	if err == nil {
		symbols, err = watchlist.Filter(symbols, cfg.Symbols)
	}
	if err != nil {
		logger.Error("watchlist", zap.Error(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN, logger.Named("store"))
	if err != nil {
		logger.Error("store", zap.Error(err))
		return 1
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("closing store", zap.Error(err))
		}
	}()

	httpClient := httpx.New(cfg.Run.RequestTimeout())
	clientOpts := []smartapi.ClientOption{
		smartapi.WithHTTPClient(httpClient),
		smartapi.WithScripMasterHTTPClient(httpx.New(time.Duration(cfg.OptionChain.ScripMasterTimeoutSec) * time.Second)),
	}
	if cfg.Angel.BaseURL != "" {
		clientOpts = append(clientOpts, smartapi.WithBaseURL(cfg.Angel.BaseURL))
	}
	if cfg.Angel.ScripMasterURL != "" {
		clientOpts = append(clientOpts, smartapi.WithScripMasterURL(cfg.Angel.ScripMasterURL))
	}
	api, err := smartapi.NewClient(cfg.Angel.APIKey, clientOpts...)
	if err != nil {
		logger.Error("smartapi client", zap.Error(err))
		return 1
	}

	sess, err := session.Open(ctx, api, session.Credentials{
		ClientCode: cfg.Angel.ClientCode,
		Password:   cfg.Angel.Password,
		TOTPSecret: cfg.Angel.TOTPSecret,
	},
		session.WithTTL(time.Duration(cfg.Angel.SessionTTLMin)*time.Minute),
		session.WithLogger(logger.Named("session")),
	)
	if err != nil {
		if ctx.Err() != nil {
			return 0
		}
		logger.Error("login failed", zap.Error(err))
		return 1
	}
	defer func() {
		// ctx may already be canceled here.
		lctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sess.Close(lctx); err != nil {
			logger.Warn("logout failed", zap.Error(err))
		}
	}()

	var greeks smartapiadapter.API = api
	if cfg.OptionChain.CacheTTLSeconds > 0 {
		greeks = &cache.Greeks{API: api, TTL: time.Duration(cfg.OptionChain.CacheTTLSeconds) * time.Second, MaxItems: cfg.OptionChain.CacheMaxItems}
	}
	adapter := smartapiadapter.New(smartapiadapter.Config{}, greeks, &instruments.Master{
		L:   api,
		TTL: time.Duration(cfg.OptionChain.ScripMasterTTLMin) * time.Minute,
	})
	var market quote.MarketSource = adapter
	if cfg.Angel.MaxRequestsPerMinute > 0 {
		market = &ratelimit.Market{S: market, TB: ratelimit.PerMinute(cfg.Angel.MaxRequestsPerMinute, cfg.Angel.Burst)}
	}
	var chain quote.ChainSource
	if cfg.OptionChain.Enabled {
		chain = adapter
		if cfg.OptionChain.MinRequestIntervalSec > 0 {
			chain = &ratelimit.MinInterval{S: chain, Interval: time.Duration(cfg.OptionChain.MinRequestIntervalSec) * time.Second}
		}
	}

	if !cfg.TelegramConfigured() {
		logger.Warn("telegram not configured, alerts will be recorded as skipped")
	}
	notifier := notify.New(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
		notify.WithEndpoint(cfg.Telegram.Endpoint),
		notify.WithHTTPClient(httpClient),
	)

	runner := &cycle.Runner{
		Fetcher:  &quote.Fetcher{Market: market, Chain: chain, Logger: logger.Named("fetch")},
		Session:  sess,
		Symbols:  symbols,
		Store:    st,
		Notifier: notifier,
		Schedule: cycle.Schedule{
			Interval: cfg.Run.Interval(),
			Align:    cfg.Run.Align,
			Offset:   cfg.Run.AlignOffset(),
			MinSleep: cfg.Run.MinSleep(),
			Location: instruments.IST,
		},
		MaxMessageLen: cfg.Telegram.MaxMessageLen,
		Location:      instruments.IST,
		Logger:        logger.Named("cycle"),
	}

	if opts.loop {
		logger.Info("starting loop", zap.Int("symbols", len(symbols)), zap.Duration("interval", cfg.Run.Interval()), zap.Bool("align", cfg.Run.Align))
		if err := runner.Loop(ctx); err != nil {
			logger.Error("loop stopped", zap.Error(err))
			return 1
		}
		logger.Info("shutting down")
		return 0
	}

	if _, err := runner.RunOnce(ctx); err != nil && ctx.Err() == nil {
		logger.Error("cycle", zap.Error(err))
		return 1
	}
	return 0
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
