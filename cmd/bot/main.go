package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tti-balder/internal/app"
	"tti-balder/internal/config"
	"tti-balder/internal/handlers"
	"tti-balder/internal/telegram"
	"tti-balder/internal/web"
	"tti-balder/internal/widget"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if cfg.TelegramToken == "" {
		panic("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.Storefront.StoreOrigin == "" {
		panic("STORE_ORIGIN is required for the bot")
	}

	logger := newLogger(cfg)

	// Chats have no host page to delegate to, so the bot always hands out
	// cart links.
	a, err := app.New(app.Options{Config: cfg, CartMode: widget.CartRedirect, Logger: logger})
	if err != nil {
		logger.Error("app init failed", "err", err)
		os.Exit(1)
	}

	tg, err := telegram.New(telegram.Options{
		Token:      cfg.TelegramToken,
		HTTPClient: a.HTTPClient,
		Logger:     logger,
		Debug:      cfg.Debug,
	})
	if err != nil {
		logger.Error("telegram init failed", "err", err)
		os.Exit(1)
	}

	handler := handlers.New(handlers.Options{
		Telegram: tg,
		Widget:   a.Widget,
		Logger:   logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.Prune(ctx, time.Minute, func(now time.Time) {
		handler.PruneForms(now, cfg.SessionTTL)
	})

	// Inline images are hosted by this process, so cart links only work
	// when it is reachable.
	if cfg.PublicBaseURL != "" {
		assetSrv := &http.Server{
			Addr:              cfg.WebAddr,
			Handler:           web.AssetRoutes(a.Assets, logger),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := assetSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("asset server failed", "err", err)
			}
		}()
		defer assetSrv.Close()
	} else if cfg.ImageProvider == config.ProviderGemini {
		logger.Warn("PUBLIC_BASE_URL is not set, gemini designs cannot be added to the cart")
	}

	logger.Info("bot started", "username", tg.Username(), "provider", cfg.ImageProvider)

	updates := tg.Updates(telegram.UpdatesOptions{
		Timeout: 30 * time.Second,
	})
	defer tg.StopUpdates()

	// Generation runs inside the update, so the deadline covers it too.
	timeout := cfg.RequestTimeout + cfg.GenerationTimeout

	sem := make(chan struct{}, cfg.MaxConcurrent)
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case update, ok := <-updates:
			if !ok {
				logger.Info("updates channel closed")
				return
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}

			go func(update telegram.Update) {
				defer func() { <-sem }()

				reqCtx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()

				if err := handler.HandleUpdate(reqCtx, update); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("handle update failed", "err", err)
				}
			}(update)
		}
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}
