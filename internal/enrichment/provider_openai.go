package enrichment

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/platformbuilds/dashbridge/internal/config"
	"github.com/platformbuilds/dashbridge/internal/logging"
)

// OpenAIProvider implements Completer using OpenAI's chat completions API.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	logger      logging.Logger
}

// NewOpenAIProvider creates a new OpenAI provider. BaseURL targets any
// OpenAI-compatible endpoint.
func NewOpenAIProvider(cfg config.EnrichmentConfig, logger logging.Logger) (*OpenAIProvider, error) {
	apiKey := resolveEnvVar(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
		logger:      logging.OrNop(logger),
	}, nil
}

func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	p.logger.Debug("Calling OpenAI API", "model", p.model, "max_tokens", p.maxTokens)

	req := openai.ChatCompletionRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI returned no choices")
	}

	p.logger.Debug("OpenAI API call successful", "tokens_used", resp.Usage.TotalTokens)
	return resp.Choices[0].Message.Content, nil
}

// Name returns "openai".
func (p *OpenAIProvider) Name() string { return "openai" }
