package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Ollama talks to a local Ollama server
type Ollama struct {
	Endpoint string
	Model    string

	httpClient *http.Client
}

// NewOllama creates an Ollama provider. An empty endpoint uses the local default.
func NewOllama(endpoint, model string, timeout time.Duration) *Ollama {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = defaultOllamaEndpoint
	}
	return &Ollama{
		Endpoint:   endpoint,
		Model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type ollamaRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

// Name returns provider name
func (o *Ollama) Name() string { return ProviderOllama }

// Generate sends a prompt to Ollama and returns the generated text
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	data, err := json.Marshal(ollamaRequest{Model: o.Model, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.Endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned status %s", resp.Status)
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode ollama response: %w", err)
	}
	return strings.TrimSpace(out.Response), nil
}

// IsAvailable checks if the Ollama service answers
func (o *Ollama) IsAvailable(ctx context.Context) bool {
	tags := strings.Replace(o.Endpoint, "/api/generate", "/api/tags", 1)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tags, nil)
	if err != nil {
		return false
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}
