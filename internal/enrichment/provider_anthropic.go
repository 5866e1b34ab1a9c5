package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/platformbuilds/dashbridge/internal/config"
	"github.com/platformbuilds/dashbridge/internal/logging"
)

const defaultAnthropicEndpoint = "https://api.anthropic.com/v1/messages"

// AnthropicProvider implements Completer using the Anthropic messages API.
type AnthropicProvider struct {
	endpoint    string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	logger      logging.Logger
	client      *http.Client
}

func NewAnthropicProvider(cfg config.EnrichmentConfig, logger logging.Logger) (*AnthropicProvider, error) {
	apiKey := resolveEnvVar(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	endpoint := resolveEnvVar(cfg.BaseURL)
	if endpoint == "" {
		endpoint = defaultAnthropicEndpoint
	}

	return &AnthropicProvider{
		endpoint:    endpoint,
		apiKey:      apiKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logging.OrNop(logger),
		client:      &http.Client{Timeout: cfg.CallTimeout()},
	}, nil
}

func (p *AnthropicProvider) Complete(ctx context.Context, prompt string) (string, error) {
	p.logger.Debug("Calling Anthropic API", "model", p.model)

	reqBody := map[string]interface{}{
		"model":       p.model,
		"max_tokens":  p.maxTokens,
		"temperature": p.temperature,
		"messages": []map[string]string{
			{
				"role":    "user",
				"content": prompt,
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("Anthropic API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		p.logger.Error("Anthropic API error", "status", resp.StatusCode, "body", string(body))
		return "", fmt.Errorf("Anthropic API returned status %d", resp.StatusCode)
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Content) == 0 {
		return "", fmt.Errorf("Anthropic returned no content")
	}

	return result.Content[0].Text, nil
}

// Name returns "anthropic".
func (p *AnthropicProvider) Name() string { return "anthropic" }
