package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"tti-balder/internal/upstream"
)

const provider = "gemini"

const (
	modelText  = "gemini-2.5-flash"
	modelImage = "gemini-2.5-flash-image"
)

const refineInstruction = `You write prompts for printable artwork.
Rewrite the idea into one detailed prompt for a sticker or flat illustration, centered and isolated on a plain white background.
Never mention or depict a shirt, garment, fabric, clothing, a person wearing anything, or a mockup.
Return only the English prompt.`

// blockReasons are the finish and block reasons Gemini reports when its
// safety filters refuse a prompt.
var blockReasons = map[string]struct{}{
	"SAFETY":             {},
	"PROHIBITED_CONTENT": {},
	"IMAGE_SAFETY":       {},
	"BLOCKLIST":          {},
}

type Options struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	Logger     *slog.Logger
}

type Client struct {
	apiKey     string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "v1beta"
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		apiVersion: apiVersion,
		httpClient: httpClient,
		limiter:    opts.Limiter,
		logger:     logger,
	}
}

func (c *Client) Refine(ctx context.Context, raw string) (string, error) {
	req := generateContentRequest{
		Contents:          []content{{Role: "user", Parts: []part{{Text: raw}}}},
		SystemInstruction: &content{Role: "user", Parts: []part{{Text: refineInstruction}}},
		GenerationConfig:  generationConfig{Temperature: 0.7},
	}

	resp, err := c.generateContent(ctx, modelText, req)
	if err != nil {
		return "", err
	}
	if text := strings.TrimSpace(resp.Text); text != "" {
		return text, nil
	}
	return raw, nil
}

// GenerateImage returns the image as a data URL; Gemini does not host
// generated images.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt is empty")
	}

	req := generateContentRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: prompt}}},
		},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"IMAGE"},
			ImageConfig:        &imageConfig{AspectRatio: "1:1"},
		},
	}

	resp, err := c.generateContent(ctx, modelImage, req)
	if err != nil && isUnknownFieldError(err, "imageConfig") {
		req.GenerationConfig.ImageConfig = nil
		resp, err = c.generateContent(ctx, modelImage, req)
	}
	if err != nil {
		return "", err
	}
	if len(resp.Images) == 0 {
		return "", &upstream.Error{Provider: provider, Status: http.StatusOK, Message: "response contained no image"}
	}
	return resp.Images[0], nil
}

func (c *Client) generateContent(ctx context.Context, model string, payload generateContentRequest) (response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return response{}, upstream.Network(provider, err)
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return response{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, c.apiVersion, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return response{}, upstream.Network(provider, err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return response{}, upstream.Network(provider, err)
	}

	if httpResp.StatusCode >= 400 {
		return response{}, decodeError(httpResp.StatusCode, rawBody)
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		return response{}, fmt.Errorf("decode response: %w", err)
	}

	if reason := blockReason(decoded); reason != "" {
		c.logger.Warn("gemini refused prompt", "reason", reason, "model", model)
		return response{}, &upstream.Error{
			Provider: provider,
			Status:   http.StatusOK,
			Code:     upstream.CodeContentPolicy,
			Message:  "blocked: " + reason,
		}
	}

	text, images := extractParts(decoded)
	return response{Text: text, Images: images}, nil
}

func decodeError(status int, body []byte) error {
	var decoded struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	upErr := &upstream.Error{Provider: provider, Status: status, Message: strings.TrimSpace(string(body))}
	if err := json.Unmarshal(body, &decoded); err == nil && decoded.Error.Message != "" {
		upErr.Message = decoded.Error.Message
		upErr.Code = decoded.Error.Status
	}
	return upErr
}

func blockReason(resp generateContentResponse) string {
	if resp.PromptFeedback != nil {
		if _, ok := blockReasons[resp.PromptFeedback.BlockReason]; ok {
			return resp.PromptFeedback.BlockReason
		}
	}
	if len(resp.Candidates) > 0 {
		if _, ok := blockReasons[resp.Candidates[0].FinishReason]; ok {
			return resp.Candidates[0].FinishReason
		}
	}
	return ""
}

func extractParts(resp generateContentResponse) (string, []string) {
	if len(resp.Candidates) == 0 {
		return "", nil
	}

	var textBuilder strings.Builder
	var images []string

	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" {
			textBuilder.WriteString(p.Text)
		}
		if p.InlineData != nil && p.InlineData.Data != "" && p.InlineData.MimeType != "" {
			images = append(images, fmt.Sprintf("data:%s;base64,%s", p.InlineData.MimeType, p.InlineData.Data))
		}
	}

	return textBuilder.String(), images
}

func isUnknownFieldError(err error, field string) bool {
	var upErr *upstream.Error
	if !errors.As(err, &upErr) {
		return false
	}
	return strings.Contains(upErr.Message, "Unknown name") && strings.Contains(upErr.Message, field)
}
