package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const (
	bedrockAnthropicVersion = "bedrock-2023-05-31"
	bedrockMaxTokens        = 1024
)

// invoker is the part of the Bedrock runtime client used here
type invoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Bedrock implements Provider for Amazon Bedrock
type Bedrock struct {
	Region  string
	Model   string
	Timeout time.Duration

	svc invoker
}

// NewBedrock initializes a Bedrock client using the default AWS config chain
func NewBedrock(region, model string, timeout time.Duration) (*Bedrock, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("bedrock model is required")
	}
	if detectBedrockFamily(model) != "anthropic" {
		return nil, fmt.Errorf("unsupported Bedrock model family for %q", model)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var opts []func(*awsconfig.LoadOptions) error
	if strings.TrimSpace(region) != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("AWS region not resolved. Set summary.region, AWS_REGION or a region in the AWS profile")
	}
	return &Bedrock{Region: cfg.Region, Model: model, Timeout: timeout, svc: bedrockruntime.NewFromConfig(cfg)}, nil
}

// Name returns provider name
func (b *Bedrock) Name() string { return ProviderBedrock }

// Generate sends a prompt to an Anthropic model on Bedrock
func (b *Bedrock) Generate(ctx context.Context, prompt string) (string, error) {
	modelID := normalizeModelID(b.Model)
	body, err := json.Marshal(map[string]any{
		"anthropic_version": bedrockAnthropicVersion,
		"max_tokens":        bedrockMaxTokens,
		"temperature":       0.2,
		"messages": []any{
			map[string]any{
				"role":    "user",
				"content": []any{map[string]any{"type": "text", "text": prompt}},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	if b.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}
	out, err := b.svc.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", annotateBedrockError(fmt.Errorf("bedrock invoke error: %w", err), modelID)
	}
	return parseAnthropicResponse(out.Body)
}

// normalizeModelID adds the :0 revision to bare model ids. ARNs and inference profiles pass through.
func normalizeModelID(model string) string {
	lower := strings.ToLower(model)
	if strings.HasPrefix(lower, "arn:") || strings.Contains(lower, "inference-profile/") || strings.Contains(model, ":") {
		return model
	}
	return model + ":0"
}

func parseAnthropicResponse(body []byte) (string, error) {
	var resp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		OutputText string `json:"outputText"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode Anthropic response: %w", err)
	}
	for _, c := range resp.Content {
		if c.Type == "text" && strings.TrimSpace(c.Text) != "" {
			return strings.TrimSpace(c.Text), nil
		}
	}
	if text := strings.TrimSpace(resp.OutputText); text != "" {
		return text, nil
	}
	return "", fmt.Errorf("empty response from Bedrock Anthropic model")
}

func detectBedrockFamily(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.Contains(m, "anthropic."):
		return "anthropic"
	case strings.Contains(m, "meta."):
		return "meta"
	case strings.Contains(m, "amazon.titan"):
		return "titan"
	}
	return ""
}

// annotateBedrockError adds common hints for Bedrock model ID issues
func annotateBedrockError(err error, modelID string) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "validationexception") && strings.Contains(msg, "throughput isn't supported"):
		return fmt.Errorf("%w\nHint: this model may require an inference profile. Set summary.model to the profile ID/ARN for %q", err, modelID)
	case strings.Contains(msg, "provided model identifier is invalid"):
		return fmt.Errorf("%w\nHint: verify the exact Bedrock ModelId. Regional prefixes (e.g. us.) and the :0 revision may be required", err)
	}
	return err
}
