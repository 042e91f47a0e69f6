// Package moderation screens third-party chat content before it is stored.
package moderation

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// PolicyNotice is sent to the room when an addressed message was removed.
const PolicyNotice = "That message was removed because it violates the content policy. I won't respond to it."

// Moderator decides whether text violates the content policy.
type Moderator interface {
	Violates(ctx context.Context, text string) (bool, error)
}

// Noop never flags anything.
type Noop struct{}

// Violates always returns false.
func (Noop) Violates(context.Context, string) (bool, error) { return false, nil }

// Config configures the OpenAI moderation client.
type Config struct {
	APIKey  string
	BaseURL string
	// Model defaults to omni-moderation-latest.
	Model   string
	Timeout time.Duration
}

// OpenAI uses the OpenAI moderations endpoint.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI creates an OpenAI-backed Moderator.
func NewOpenAI(cfg Config) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = "omni-moderation-latest"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(1),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{client: openai.NewClient(opts...), model: cfg.Model}
}

// Violates reports whether any moderation result is flagged. Empty text is
// never flagged.
func (m *OpenAI) Violates(ctx context.Context, text string) (bool, error) {
	if text == "" {
		return false, nil
	}
	resp, err := m.client.Moderations.New(ctx, openai.ModerationNewParams{
		Model: openai.ModerationModel(m.model),
		Input: openai.ModerationNewParamsInputUnion{OfString: openai.String(text)},
	})
	if err != nil {
		return false, fmt.Errorf("moderation: %w", err)
	}
	for _, r := range resp.Results {
		if r.Flagged {
			return true, nil
		}
	}
	return false, nil
}

var (
	_ Moderator = Noop{}
	_ Moderator = (*OpenAI)(nil)
)
