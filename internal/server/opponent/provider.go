package opponent

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"
)

// Provider completes one chat exchange
type Provider interface {
	Name() string
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// ProviderConfig describes one OpenAI-compatible endpoint
type ProviderConfig struct {
	ID      string
	APIKey  string
	BaseURL string
	Model   string
	RPS     float64 // outbound request rate, 0 means 1 per second
	Timeout time.Duration
}

// OpenAIProvider talks to any OpenAI-compatible chat completions API
type OpenAIProvider struct {
	id      string
	client  openai.Client
	model   string
	limiter *rate.Limiter
	timeout time.Duration
}

func NewOpenAIProvider(cfg ProviderConfig) *OpenAIProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(1),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	rps := cfg.RPS
	if rps <= 0 {
		rps = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIProvider{
		id:      cfg.ID,
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		timeout: timeout,
	}
}

func (p *OpenAIProvider) Name() string {
	return p.id
}

// Complete waits for the provider's rate budget, then sends one request
func (p *OpenAIProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModel(p.model),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
