// Package app wires the widget backend from configuration. Both the web
// server and the Telegram bot build on it.
package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"tti-balder/internal/assets"
	"tti-balder/internal/bridge"
	"tti-balder/internal/cart"
	"tti-balder/internal/config"
	"tti-balder/internal/gemini"
	"tti-balder/internal/generation"
	"tti-balder/internal/httpclient"
	"tti-balder/internal/mockup"
	"tti-balder/internal/openai"
	"tti-balder/internal/session"
	"tti-balder/internal/widget"
)

type Options struct {
	Config config.Config
	// CartMode overrides the configured mode when set.
	CartMode widget.CartMode
	Logger   *slog.Logger
}

type App struct {
	HTTPClient *http.Client
	Assets     *assets.Store
	Sessions   *session.Store
	Hub        *bridge.Hub
	Widget     *widget.Service
	logger     *slog.Logger
}

// provider is implemented by both image backends.
type provider interface {
	generation.Refiner
	generation.ImageGenerator
}

func New(opts Options) (*App, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	mode := opts.CartMode
	if mode == "" {
		m, err := widget.ParseCartMode(cfg.CartMode)
		if err != nil {
			return nil, err
		}
		mode = m
	}

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})
	storeClient := httpclient.New(httpclient.Options{
		PreferIPv4:    cfg.PreferIPv4,
		Timeout:       20 * time.Second,
		HeaderTimeout: 10 * time.Second,
	})
	fetchClient := httpclient.NewFetch(httpclient.Options{PreferIPv4: cfg.PreferIPv4})
	store := assets.New(assets.Options{BaseURL: cfg.PublicBaseURL})

	limiter := rate.NewLimiter(rate.Limit(cfg.OpenAIRPS), 1)
	var images provider
	switch cfg.ImageProvider {
	case config.ProviderGemini:
		images = gemini.New(gemini.Options{
			APIKey:     cfg.GeminiAPIKey,
			BaseURL:    cfg.GeminiBaseURL,
			APIVersion: cfg.GeminiAPIVersion,
			HTTPClient: httpClient,
			Limiter:    limiter,
			Logger:     logger,
		})
	default:
		images = openai.New(openai.Options{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			ChatModel:  cfg.OpenAIChatModel,
			ImageModel: cfg.OpenAIImageModel,
			HTTPClient: httpClient,
			Limiter:    limiter,
			Logger:     logger,
		})
	}

	pipeline := generation.New(generation.Options{
		Refiner: images,
		Images:  images,
		Timeout: cfg.GenerationTimeout,
		Logger:  logger,
	})

	sf := cfg.Storefront
	renderer := mockup.NewRenderer(mockup.RendererOptions{
		Bases: sf.Bases(),
		Fetcher: mockup.NewFetcher(mockup.FetcherOptions{
			HTTPClient: fetchClient,
			Local:      store,
			Logger:     logger,
		}),
		Logger: logger,
	})

	sessions := session.NewStore(session.Options{
		TTL:     cfg.SessionTTL,
		Catalog: cart.Catalog(sf.Catalog),
	})

	hub := bridge.NewHub(bridge.HubOptions{
		AllowedOrigins: sf.Origins(),
		HostOrigin:     sf.HostOrigin,
		AllowBroadcast: cfg.BridgeAllowBroadcast,
		Logger:         logger,
	})

	svc := widget.New(widget.Options{
		Sessions: sessions,
		Pipeline: pipeline,
		Renderer: renderer,
		Bridge:   hub,
		Cart: cart.NewClient(cart.ClientOptions{
			StoreOrigin: sf.StoreOrigin,
			HTTPClient:  storeClient,
			Logger:      logger,
		}),
		Assets:         store,
		Colors:         sf.ColorNames(),
		ColorTable:     sf.ColorTable(),
		CartMode:       mode,
		StoreOrigin:    sf.StoreOrigin,
		ProductPageURL: cfg.ProductPageURL,
		PushHosts:      sf.ImageHosts,
		MaxConcurrent:  cfg.MaxConcurrent,
		Logger:         logger,
	})

	return &App{
		HTTPClient: httpClient,
		Assets:     store,
		Sessions:   sessions,
		Hub:        hub,
		Widget:     svc,
		logger:     logger,
	}, nil
}

// Prune expires idle sessions every interval until ctx is done. Each extra
// func runs on the same tick.
func (a *App) Prune(ctx context.Context, interval time.Duration, extra ...func(time.Time)) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := a.Sessions.Prune(now); n > 0 {
				a.logger.Debug("sessions pruned", "count", n, "active", a.Sessions.Len())
			}
			for _, fn := range extra {
				fn(now)
			}
		}
	}
}
