// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// =============================================================================
// PROVIDER
// =============================================================================

// ProviderRequest is one upstream completion.
type ProviderRequest struct {
	Prompt      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Provider streams a completion from the upstream LLM service, calling
// onDelta for every non-empty text delta.
type Provider interface {
	StreamChat(ctx context.Context, req ProviderRequest, onDelta func(string) error) error
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, req ProviderRequest, onDelta func(string) error) error

// StreamChat implements Provider.
func (f ProviderFunc) StreamChat(ctx context.Context, req ProviderRequest, onDelta func(string) error) error {
	return f(ctx, req, onDelta)
}

// =============================================================================
// OPENAI PROVIDER
// =============================================================================

// OpenAIProvider streams chat completions with go-openai.
type OpenAIProvider struct {
	client *openai.Client
	logger *slog.Logger
}

// NewOpenAIProvider creates a provider for apiKey. An empty baseURL uses the
// OpenAI default.
func NewOpenAIProvider(apiKey, baseURL string, httpClient *http.Client) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		logger: slog.Default(),
	}
}

// WithLogger sets the logger.
func (p *OpenAIProvider) WithLogger(l *slog.Logger) *OpenAIProvider {
	p.logger = l
	return p
}

// StreamChat implements Provider.
func (p *OpenAIProvider) StreamChat(ctx context.Context, req ProviderRequest, onDelta func(string) error) error {
	temperature := float32(req.Temperature)
	if temperature == 0 {
		// go-openai omits a zero temperature, which the API reads as 1
		temperature = math.SmallestNonzeroFloat32
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: temperature,
		N:           1,
	})
	if err != nil {
		return fmt.Errorf("open provider stream: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("provider stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			if err := onDelta(delta); err != nil {
				return err
			}
		}
	}
}
