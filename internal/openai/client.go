package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	oai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"tti-balder/internal/upstream"
)

const provider = "openai"

const refineInstruction = `You are a prompt engineer for printable artwork.
Rewrite the user's idea into one detailed, visually rich prompt for an image model.
The result must be a sticker or flat illustration style artwork, centered and isolated on a plain white background.
Never mention or depict a shirt, garment, fabric, clothing, a person wearing anything, or a mockup.
Output only the English prompt.`

type Options struct {
	APIKey     string
	BaseURL    string
	ChatModel  string
	ImageModel string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	Logger     *slog.Logger
}

type Client struct {
	api        *oai.Client
	chatModel  string
	imageModel string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func New(opts Options) *Client {
	cfg := oai.DefaultConfig(opts.APIKey)
	if baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"); baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}

	chatModel := strings.TrimSpace(opts.ChatModel)
	if chatModel == "" {
		chatModel = oai.GPT4o
	}
	imageModel := strings.TrimSpace(opts.ImageModel)
	if imageModel == "" {
		imageModel = oai.CreateImageModelDallE3
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		api:        oai.NewClientWithConfig(cfg),
		chatModel:  chatModel,
		imageModel: imageModel,
		limiter:    opts.Limiter,
		logger:     logger,
	}
}

// Refine rewrites a raw prompt through the chat completion endpoint. An empty
// completion yields the raw prompt unchanged.
func (c *Client) Refine(ctx context.Context, raw string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}

	resp, err := c.api.CreateChatCompletion(ctx, oai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []oai.ChatCompletionMessage{
			{Role: oai.ChatMessageRoleSystem, Content: refineInstruction},
			{Role: oai.ChatMessageRoleUser, Content: raw},
		},
	})
	if err != nil {
		return "", classify(err)
	}

	if len(resp.Choices) == 0 {
		return raw, nil
	}
	if text := strings.TrimSpace(resp.Choices[0].Message.Content); text != "" {
		return text, nil
	}
	return raw, nil
}

// GenerateImage requests exactly one square image and returns its URL.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt is empty")
	}
	if err := c.wait(ctx); err != nil {
		return "", err
	}

	resp, err := c.api.CreateImage(ctx, oai.ImageRequest{
		Model:          c.imageModel,
		Prompt:         prompt,
		N:              1,
		Size:           oai.CreateImageSize1024x1024,
		Quality:        oai.CreateImageQualityStandard,
		ResponseFormat: oai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", classify(err)
	}

	if len(resp.Data) == 0 || strings.TrimSpace(resp.Data[0].URL) == "" {
		return "", &upstream.Error{Provider: provider, Status: http.StatusOK, Message: "response contained no image"}
	}
	if revised := strings.TrimSpace(resp.Data[0].RevisedPrompt); revised != "" {
		c.logger.Debug("image prompt revised by upstream", "revised_prompt", revised)
	}
	return resp.Data[0].URL, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return upstream.Network(provider, err)
	}
	return nil
}

func classify(err error) error {
	var apiErr *oai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if apiErr.Code != nil {
			code = fmt.Sprint(apiErr.Code)
		}
		return &upstream.Error{
			Provider: provider,
			Status:   apiErr.HTTPStatusCode,
			Code:     code,
			Message:  apiErr.Message,
		}
	}

	var reqErr *oai.RequestError
	if errors.As(err, &reqErr) {
		return &upstream.Error{
			Provider: provider,
			Status:   reqErr.HTTPStatusCode,
			Message:  reqErr.Error(),
		}
	}

	return upstream.Network(provider, err)
}
