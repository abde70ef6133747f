package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tayloree/shopcli/internal/api"
	"github.com/tayloree/shopcli/internal/cache"
	"github.com/tayloree/shopcli/internal/config"
	"github.com/tayloree/shopcli/internal/logging"
	"github.com/tayloree/shopcli/internal/session"
)

// app holds the collaborators every command shares.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	client  *api.Client
	store   cache.Store
	session *session.Session
}

func newApp(ctx context.Context, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, invalidArgsError(
			err.Error(),
			"Check ~/.shopcli/config.toml or pass --config PATH.",
		)
	}

	level := zapcore.DebugLevel
	if !flagVerbose {
		level, err = logging.ParseLevel(cfg.Log.Level)
		if err != nil {
			return nil, invalidArgsError(err.Error(), "Use one of debug, info, warn, error.")
		}
	}
	logger := logging.New(level, stderr)

	store, err := cache.Open(ctx, cache.Options{
		Backend:  strings.ToLower(strings.TrimSpace(cfg.Cache.Backend)),
		DataDir:  cfg.Cache.DataDir,
		RedisURL: cfg.Cache.RedisURL,
	})
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	raw, err := resolveToken(cfg)
	if err != nil {
		logger.Warn("token file unreadable", zap.Error(err))
	}

	timeout := time.Duration(cfg.API.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := api.NewClient(
		cfg.API.BaseURL,
		api.WithHTTPClient(&http.Client{Timeout: timeout}),
		api.WithRateLimit(cfg.API.RateLimit, cfg.API.Burst),
		api.WithLogger(logger.Named("api")),
	)

	logger.Debug("shopcli ready",
		zap.String("api", client.BaseURL()),
		zap.String("cache", cfg.Cache.Backend),
		zap.String("config", cfg.Path),
		zap.Bool("signedIn", raw != ""),
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		store:   store,
		session: session.New(raw),
	}, nil
}

// resolveToken picks the session token: --token, then config/env, then the
// token file.
func resolveToken(cfg *config.Config) (string, error) {
	if tok := strings.TrimSpace(flagToken); tok != "" {
		return tok, nil
	}
	if tok := strings.TrimSpace(cfg.Auth.Token); tok != "" {
		return tok, nil
	}
	path := cfg.TokenFilePath()
	if path == "" {
		return "", nil
	}
	return session.LoadFile(path)
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing cache", zap.Error(err))
	}
	_ = a.logger.Sync()
}
