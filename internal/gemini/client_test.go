package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tti-balder/internal/upstream"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Options{APIKey: "g-key", BaseURL: srv.URL, HTTPClient: srv.Client()})
}

func TestRefine(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1beta/models/"+modelText+":generateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "g-key" {
			t.Errorf("missing api key header")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": " a glowing fox "}}}},
			},
		})
	})

	got, err := c.Refine(context.Background(), "fox")
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if got != "a glowing fox" {
		t.Errorf("Refine = %q", got)
	}
}

func TestGenerateImage(t *testing.T) {
	t.Run("returns data url", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"candidates": []map[string]any{
					{"content": map[string]any{"parts": []map[string]any{
						{"inlineData": map[string]any{"mimeType": "image/png", "data": "aGVsbG8="}},
					}}},
				},
			})
		})

		got, err := c.GenerateImage(context.Background(), "fox")
		if err != nil {
			t.Fatalf("GenerateImage: %v", err)
		}
		if got != "data:image/png;base64,aGVsbG8=" {
			t.Errorf("GenerateImage = %q", got)
		}
	})

	t.Run("safety block maps to content policy", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
		})

		_, err := c.GenerateImage(context.Background(), "fox")
		if !upstream.IsContentPolicy(err) {
			t.Fatalf("expected content policy error, got %v", err)
		}
	})

	t.Run("http error keeps status", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"quota","status":"RESOURCE_EXHAUSTED"}}`))
		})

		_, err := c.GenerateImage(context.Background(), "fox")
		var upErr *upstream.Error
		if !errors.As(err, &upErr) || upErr.Status != http.StatusTooManyRequests || upErr.Code != "RESOURCE_EXHAUSTED" {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
