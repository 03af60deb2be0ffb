// Package ai calls the generative AI service for text completion and image
// generation. Both are opaque, rate-limited dependencies; callers retry
// transient failures through the workflow engine.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newtube/backend/config"
	"github.com/newtube/backend/pkg/apperr"
)

// Client is the generative AI service surface the enrichment workflows use.
type Client interface {
	// GenerateText runs a system+user chat completion and returns the text.
	GenerateText(ctx context.Context, system, user string) (string, error)
	// GenerateImage generates one image for prompt and returns its temporary URL.
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

type client struct {
	http   *http.Client
	cfg    config.OpenAIConfig
	logger *zap.Logger
}

// NewClient creates an AI service client.
func NewClient(cfg config.OpenAIConfig, logger *zap.Logger) Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &client{
		http:   &http.Client{Timeout: timeout},
		cfg:    cfg,
		logger: logger,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *client) GenerateText(ctx context.Context, system, user string) (string, error) {
	payload := chatRequest{
		Model: c.cfg.TextModel,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	var out chatResponse
	if err := c.post(ctx, "/v1/chat/completions", payload, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", apperr.Terminal(fmt.Errorf("chat completion: %w", apperr.ErrEmptyResult))
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

func (c *client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	payload := imageRequest{
		Model:          c.cfg.ImageModel,
		Prompt:         prompt,
		N:              1,
		Size:           c.cfg.ImageSize,
		ResponseFormat: "url",
	}
	var out imageResponse
	if err := c.post(ctx, "/v1/images/generations", payload, &out); err != nil {
		return "", err
	}
	if len(out.Data) == 0 || out.Data[0].URL == "" {
		return "", apperr.Terminal(fmt.Errorf("image generation: %w", apperr.ErrEmptyResult))
	}
	return out.Data[0].URL, nil
}

func (c *client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ai call %s: %w", path, err)
	}
	defer resp.Body.Close()
	if err := apperr.FromStatus("ai call "+path, resp.StatusCode); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
