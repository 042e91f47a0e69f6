package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	defaultStandardModel = "gpt-4o-mini"
	defaultAdvancedModel = "gpt-4o"
	defaultTimeout       = 60 * time.Second
)

// Config configures the OpenAI-compatible completion provider.
type Config struct {
	// APIKey is the bearer token used to authenticate against the API.
	APIKey string

	// BaseURL overrides the API endpoint. Useful for local models (Ollama),
	// Azure OpenAI, or any other OpenAI-compatible endpoint.
	BaseURL string

	// StandardModel serves TierStandard. Defaults to gpt-4o-mini.
	StandardModel string

	// AdvancedModel serves TierAdvanced. Defaults to gpt-4o.
	AdvancedModel string

	// Timeout is the HTTP request timeout. Defaults to 60 s.
	Timeout time.Duration

	// MaxRetries is passed to the SDK retry policy. Negative keeps the SDK
	// default.
	MaxRetries int
}

type openAIProvider struct {
	client openai.Client
	models map[Tier]string
}

// NewOpenAI returns a Provider backed by the OpenAI (or compatible) chat
// completions API.
func NewOpenAI(cfg Config) Provider {
	if cfg.StandardModel == "" {
		cfg.StandardModel = defaultStandardModel
	}
	if cfg.AdvancedModel == "" {
		cfg.AdvancedModel = defaultAdvancedModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	return &openAIProvider{
		client: openai.NewClient(opts...),
		models: map[Tier]string{
			TierStandard: cfg.StandardModel,
			TierAdvanced: cfg.AdvancedModel,
		},
	}
}

func (p *openAIProvider) model(t Tier) string {
	if m, ok := p.models[t]; ok {
		return m
	}
	return p.models[TierStandard]
}

// Complete sends the request to the chat completions endpoint and returns the
// first choice's content.
func (p *openAIProvider) Complete(ctx context.Context, req Request) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	if len(msgs) == 0 {
		return "", fmt.Errorf("llm: complete: no messages")
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.model(req.Tier)),
		Messages: msgs,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("llm: chat completion (%s): %w", req.Tier, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}
