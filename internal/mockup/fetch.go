package mockup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"tti-balder/internal/assets"
	"tti-balder/internal/httpclient"
)

const defaultMaxImageBytes = 12 << 20

var ErrImageTooLarge = errors.New("image exceeds size limit")

// LocalSource serves URLs this process hosts itself.
type LocalSource interface {
	Lookup(url string) ([]byte, bool)
}

type FetcherOptions struct {
	// HTTPClient defaults to a public-only fetch client.
	HTTPClient *http.Client
	Local      LocalSource
	// TTL should stay below the lifetime of upstream image URLs.
	TTL      time.Duration
	MaxBytes int64
	Logger   *slog.Logger
}

// Fetcher loads overlay images by URL, caching decoded images and sharing
// concurrent loads of the same URL.
type Fetcher struct {
	httpClient *http.Client
	local      LocalSource
	cache      *cache.Cache
	group      singleflight.Group
	maxBytes   int64
	logger     *slog.Logger
}

func NewFetcher(opts FetcherOptions) *Fetcher {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 50 * time.Minute
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxImageBytes
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = httpclient.NewFetch(httpclient.Options{})
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Fetcher{
		httpClient: httpClient,
		local:      opts.Local,
		cache:      cache.New(ttl, 2*ttl),
		maxBytes:   maxBytes,
		logger:     logger,
	}
}

func (f *Fetcher) Image(ctx context.Context, url string) (image.Image, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("image url is empty")
	}

	if cached, ok := f.cache.Get(url); ok {
		return cached.(image.Image), nil
	}

	val, err, _ := f.group.Do(url, func() (interface{}, error) {
		if cached, ok := f.cache.Get(url); ok {
			return cached, nil
		}

		data, err := f.load(ctx, url)
		if err != nil {
			return nil, err
		}
		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode overlay: %w", err)
		}

		f.cache.SetDefault(url, img)
		f.logger.Debug("overlay cached", "bytes", len(data), "bounds", img.Bounds().String())
		return img, nil
	})
	if err != nil {
		return nil, err
	}

	img, ok := val.(image.Image)
	if !ok {
		return nil, fmt.Errorf("unexpected cached type %T", val)
	}
	return img, nil
}

func (f *Fetcher) load(ctx context.Context, url string) ([]byte, error) {
	if strings.HasPrefix(url, "data:") {
		_, data, err := assets.DecodeDataURL(url)
		return data, err
	}
	if f.local != nil {
		if data, ok := f.local.Lookup(url); ok {
			return data, nil
		}
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("unsupported overlay url %q", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create overlay request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch overlay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch overlay: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read overlay: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, ErrImageTooLarge
	}
	return data, nil
}
