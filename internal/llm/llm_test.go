package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	prompt string
	out    string
	err    error
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Generate(ctx context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.out, s.err
}

func TestSummarizer(t *testing.T) {
	p := &stubProvider{out: "Short."}
	s := NewSummarizer(p)
	s.Template = "TL;DR {{body}}"

	got, err := s.Summarize(context.Background(), "Subject: hi\n\nbody")
	require.NoError(t, err)
	assert.Equal(t, "Short.", got)
	assert.Equal(t, "TL;DR Subject: hi\n\nbody", p.prompt)
}

func TestSummarizer_Errors(t *testing.T) {
	_, err := NewSummarizer(&stubProvider{}).Summarize(context.Background(), "x")
	assert.ErrorContains(t, err, "empty summary")

	boom := errors.New("boom")
	_, err = NewSummarizer(&stubProvider{err: boom}).Summarize(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(Settings{Provider: "Ollama", Model: "llama3"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, p.Name())
	assert.Equal(t, defaultOllamaEndpoint, p.(*Ollama).Endpoint)

	_, err = NewProvider(Settings{Provider: "ollama"})
	assert.Error(t, err)

	_, err = NewProvider(Settings{Provider: "bedrock", Model: "meta.llama3"})
	assert.ErrorContains(t, err, "unsupported")

	_, err = NewProvider(Settings{Provider: "openai"})
	assert.ErrorContains(t, err, "unknown llm provider")
}

func TestOllama_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		assert.False(t, req.Stream)
		_ = json.NewEncoder(w).Encode(ollamaResponse{Response: "  " + req.Prompt + " done \n"})
	}))
	defer srv.Close()

	o := NewOllama(srv.URL+"/api/generate", "llama3", time.Second)
	got, err := o.Generate(context.Background(), "summarize")
	require.NoError(t, err)
	assert.Equal(t, "summarize done", got)
}

func TestOllama_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	o := NewOllama(srv.URL+"/api/generate", "missing", time.Second)
	_, err := o.Generate(context.Background(), "x")
	assert.ErrorContains(t, err, "404")
	assert.True(t, o.IsAvailable(context.Background()))
}

type stubInvoker struct {
	input *bedrockruntime.InvokeModelInput
	body  string
	err   error
}

func (s *stubInvoker) InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	s.input = in
	if s.err != nil {
		return nil, s.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(s.body)}, nil
}

func TestBedrock_Generate(t *testing.T) {
	inv := &stubInvoker{body: `{"content":[{"type":"text","text":" A summary. "}]}`}
	b := &Bedrock{Model: "anthropic.claude-3-haiku-20240307-v1", Timeout: time.Second, svc: inv}

	got, err := b.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "A summary.", got)
	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", *inv.input.ModelId)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(inv.input.Body, &payload))
	assert.Equal(t, bedrockAnthropicVersion, payload["anthropic_version"])
}

func TestBedrock_InvalidModelHint(t *testing.T) {
	inv := &stubInvoker{err: errors.New("The provided model identifier is invalid")}
	b := &Bedrock{Model: "anthropic.claude", svc: inv}

	_, err := b.Generate(context.Background(), "hello")
	assert.ErrorContains(t, err, "Hint: verify the exact Bedrock ModelId")
}

func TestNormalizeModelID(t *testing.T) {
	assert.Equal(t, "anthropic.claude-v2:0", normalizeModelID("anthropic.claude-v2"))
	assert.Equal(t, "anthropic.claude-v2:1", normalizeModelID("anthropic.claude-v2:1"))
	arn := "arn:aws:bedrock:us-east-1:123:inference-profile/us.anthropic.claude"
	assert.Equal(t, arn, normalizeModelID(arn))
}

func TestParseAnthropicResponse(t *testing.T) {
	got, err := parseAnthropicResponse([]byte(`{"outputText":"fallback"}`))
	require.NoError(t, err)
	assert.Equal(t, "fallback", got)

	_, err = parseAnthropicResponse([]byte(`{"content":[]}`))
	assert.Error(t, err)

	_, err = parseAnthropicResponse([]byte(`not json`))
	assert.Error(t, err)
}

func TestDetectBedrockFamily(t *testing.T) {
	assert.Equal(t, "anthropic", detectBedrockFamily("us.anthropic.claude-3"))
	assert.Equal(t, "meta", detectBedrockFamily("meta.llama3"))
	assert.Equal(t, "titan", detectBedrockFamily("amazon.titan-text"))
	assert.Equal(t, "", detectBedrockFamily("mistral.large"))
}
