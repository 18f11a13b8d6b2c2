// Package assets hosts generated images that arrive inline as data URLs so
// carts and chat links can carry a short URL instead of the image itself.
package assets

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// PathPrefix is where the web server mounts the store.
const PathPrefix = "/api/assets/"

var (
	ErrNotDataURL = errors.New("not a base64 data url")
	ErrTooLarge   = errors.New("asset exceeds size limit")
	ErrNotImage   = errors.New("asset is not a raster image")
)

const defaultMaxBytes = 12 << 20

type Asset struct {
	ContentType string
	Data        []byte
}

type Options struct {
	// BaseURL is the public origin of the widget server. Without it asset
	// URLs are path-only.
	BaseURL  string
	TTL      time.Duration
	MaxBytes int
}

type Store struct {
	base     string
	cache    *cache.Cache
	maxBytes int
}

func New(opts Options) *Store {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Store{
		base:     strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		cache:    cache.New(ttl, time.Hour),
		maxBytes: maxBytes,
	}
}

// Host stores the image carried by a data URL and returns the URL it is
// served at.
func (s *Store) Host(dataURL string) (string, error) {
	contentType, data, err := DecodeDataURL(dataURL)
	if err != nil {
		return "", err
	}
	ext := extension(contentType)
	if ext == "" {
		return "", ErrNotImage
	}
	if len(data) > s.maxBytes {
		return "", ErrTooLarge
	}

	name := uuid.NewString() + ext
	s.cache.SetDefault(name, Asset{ContentType: contentType, Data: data})
	return s.base + PathPrefix + name, nil
}

// Get returns the asset stored under name, the last path element of its URL.
func (s *Store) Get(name string) (Asset, bool) {
	v, ok := s.cache.Get(name)
	if !ok {
		return Asset{}, false
	}
	a, ok := v.(Asset)
	return a, ok
}

// Lookup resolves a URL handed out by Host without going over the network.
func (s *Store) Lookup(url string) ([]byte, bool) {
	rest, ok := strings.CutPrefix(url, s.base+PathPrefix)
	if !ok {
		return nil, false
	}
	a, ok := s.Get(rest)
	if !ok {
		return nil, false
	}
	return a.Data, true
}

// DecodeDataURL splits a base64 data URL into its media type and payload.
func DecodeDataURL(value string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(value), "data:")
	if !ok {
		return "", nil, ErrNotDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return "", nil, ErrNotDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data url: %w", err)
	}
	contentType := strings.TrimSuffix(meta, ";base64")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return contentType, data, nil
}

func extension(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ""
	}
}
