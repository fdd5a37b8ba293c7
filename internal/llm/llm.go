package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Provider names accepted by NewProvider
const (
	ProviderOllama  = "ollama"
	ProviderBedrock = "bedrock"
)

const (
	defaultOllamaEndpoint = "http://localhost:11434/api/generate"
	defaultTimeout        = 60 * time.Second
)

// DefaultSummaryTemplate is used when Summarizer.Template is empty. {{body}} is replaced by the text.
const DefaultSummaryTemplate = "Summarize the following email in one short paragraph. " +
	"Mention any requested action or deadline.\n\n{{body}}"

// Provider defines a generic LLM interface
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Settings select and configure a provider
type Settings struct {
	Provider string
	Endpoint string
	Model    string
	Region   string
	Timeout  time.Duration
}

// NewProvider creates a Provider from settings
func NewProvider(s Settings) (Provider, error) {
	if s.Timeout <= 0 {
		s.Timeout = defaultTimeout
	}
	switch strings.ToLower(strings.TrimSpace(s.Provider)) {
	case ProviderOllama:
		if strings.TrimSpace(s.Model) == "" {
			return nil, fmt.Errorf("ollama model is required")
		}
		return NewOllama(s.Endpoint, s.Model, s.Timeout), nil
	case ProviderBedrock:
		return NewBedrock(s.Region, s.Model, s.Timeout)
	}
	return nil, fmt.Errorf("unknown llm provider %q", s.Provider)
}

// Summarizer turns a provider into a text summarizer
type Summarizer struct {
	provider Provider
	// Template is the prompt, with {{body}} standing for the text to summarize
	Template string
}

// NewSummarizer wraps p with the default summary prompt
func NewSummarizer(p Provider) *Summarizer {
	return &Summarizer{provider: p, Template: DefaultSummaryTemplate}
}

// Summarize asks the provider for a summary of text
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	tmpl := s.Template
	if tmpl == "" {
		tmpl = DefaultSummaryTemplate
	}
	out, err := s.provider.Generate(ctx, strings.ReplaceAll(tmpl, "{{body}}", text))
	if err != nil {
		return "", fmt.Errorf("%s: %w", s.provider.Name(), err)
	}
	if out == "" {
		return "", fmt.Errorf("%s returned an empty summary", s.provider.Name())
	}
	return out, nil
}
