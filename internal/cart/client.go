package cart

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"tti-balder/internal/upstream"
)

type ClientOptions struct {
	StoreOrigin string
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Client reads storefront pages. Cart lines are never posted from here: the
// store cart is bound to the shopper's cookie, so the host page adds them.
type Client struct {
	storeOrigin string
	httpClient  *http.Client
	logger      *slog.Logger
}

func NewClient(opts ClientOptions) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		storeOrigin: strings.TrimRight(opts.StoreOrigin, "/"),
		httpClient:  httpClient,
		logger:      logger,
	}
}

// ProductVariantID fetches a product page and reads the variant currently
// selected in its add-to-cart form.
// A path-only pageURL is resolved against the store origin.
func (c *Client) ProductVariantID(ctx context.Context, pageURL string) (string, error) {
	if strings.HasPrefix(pageURL, "/") {
		pageURL = c.storeOrigin + pageURL
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create product page request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", upstream.Network("store", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("product page %s: %s", pageURL, resp.Status)
	}

	id, ok, err := DiscoverVariantID(resp.Body)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNoProductForm
	}
	c.logger.Debug("product variant discovered", "url", pageURL, "variant_id", id)
	return id, nil
}
