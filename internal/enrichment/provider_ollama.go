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

const defaultOllamaEndpoint = "http://localhost:11434/api/generate"

// OllamaProvider implements Completer using Ollama's local generate API.
type OllamaProvider struct {
	endpoint    string
	model       string
	maxTokens   int
	temperature float64
	logger      logging.Logger
	client      *http.Client
}

func NewOllamaProvider(cfg config.EnrichmentConfig, logger logging.Logger) (*OllamaProvider, error) {
	endpoint := resolveEnvVar(cfg.BaseURL)
	if endpoint == "" {
		endpoint = defaultOllamaEndpoint
	}

	return &OllamaProvider{
		endpoint:    endpoint,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logging.OrNop(logger),
		client:      &http.Client{Timeout: cfg.CallTimeout()},
	}, nil
}

func (p *OllamaProvider) Complete(ctx context.Context, prompt string) (string, error) {
	p.logger.Debug("Calling Ollama API", "model", p.model, "endpoint", p.endpoint)

	reqBody := map[string]interface{}{
		"model":  p.model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]interface{}{
			"num_predict": p.maxTokens,
			"temperature": p.temperature,
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

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("Ollama API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		p.logger.Error("Ollama API error", "status", resp.StatusCode, "body", string(body))
		return "", fmt.Errorf("Ollama API returned status %d", resp.StatusCode)
	}

	var result struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if result.Response == "" {
		return "", fmt.Errorf("Ollama returned empty response")
	}

	return result.Response, nil
}

// Name returns "ollama".
func (p *OllamaProvider) Name() string { return "ollama" }
