package main

import (
	"errors"
	"time"

	"github.com/bdobrica/kioku/common/environment"
	"github.com/bdobrica/kioku/internal/kioku/app"
	"github.com/bdobrica/kioku/internal/kioku/conversation"
	"github.com/bdobrica/kioku/internal/kioku/llm"
	"github.com/bdobrica/kioku/internal/kioku/matrix"
	"github.com/bdobrica/kioku/internal/kioku/memory"
	"github.com/bdobrica/kioku/internal/kioku/moderation"
	"github.com/bdobrica/kioku/internal/kioku/search"
)

const defaultDatabasePath = "./kioku.db"

// loadConfig reads the agent configuration from the environment.
func loadConfig() (*app.Config, error) {
	var errs []error
	required := func(name string) string {
		v, err := environment.RequiredString(name)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	homeserver := required("MATRIX_HOMESERVER")
	userID := required("MATRIX_USER_ID")
	accessToken := required("MATRIX_ACCESS_TOKEN")
	apiKey := environment.FirstOf("KIOKU_OPENAI_API_KEY", "OPENAI_API_KEY")
	if apiKey == "" {
		errs = append(errs, errors.New("KIOKU_OPENAI_API_KEY or OPENAI_API_KEY must be set"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	baseURL := environment.StringOr("KIOKU_OPENAI_BASE_URL", "")
	timeout := environment.DurationOr("KIOKU_HTTP_TIMEOUT", 60*time.Second)

	cfg := &app.Config{
		DatabasePath: environment.StringOr("DATABASE_PATH", defaultDatabasePath),
		Matrix: matrix.Config{
			Homeserver:       homeserver,
			UserID:           userID,
			AccessToken:      accessToken,
			Names:            environment.StringSliceOr("KIOKU_NAMES", nil),
			MaxMessageLength: environment.IntOr("KIOKU_MAX_MESSAGE_LENGTH", matrix.DefaultMaxMessageLength),
		},
		LLM: llm.Config{
			APIKey:        apiKey,
			BaseURL:       baseURL,
			StandardModel: environment.StringOr("KIOKU_STANDARD_MODEL", ""),
			AdvancedModel: environment.StringOr("KIOKU_ADVANCED_MODEL", ""),
			Timeout:       timeout,
			MaxRetries:    environment.IntOr("KIOKU_LLM_MAX_RETRIES", -1),
		},
		PersonaPath: environment.StringOr("KIOKU_PERSONA", ""),
		Admins:      environment.StringSliceOr("KIOKU_ADMINS", nil),
		Budgets: conversation.Budgets{
			ReplyTrigger:      environment.IntOr("KIOKU_REPLY_TRIGGER_TOKENS", 300),
			BackgroundTrigger: environment.IntOr("KIOKU_BACKGROUND_TRIGGER_TOKENS", 500),
			Retained:          environment.IntOr("KIOKU_RETAINED_TOKENS", 200),
		},
		RateLimit:        environment.IntOr("KIOKU_RATE_LIMIT", 0),
		MemorizeSchedule: environment.StringOr("KIOKU_MEMORIZE_SCHEDULE", app.DefaultMemorizeSchedule),
		HTTPAddr:         environment.StringOr("HTTP_ADDR", ""),
	}

	if environment.BoolOr("KIOKU_EMBEDDINGS", true) {
		cfg.Embedding = memory.OpenAIEmbedderConfig{
			APIKey:  apiKey,
			BaseURL: baseURL,
			Model:   environment.StringOr("KIOKU_EMBEDDING_MODEL", ""),
		}
	}
	if environment.BoolOr("KIOKU_MODERATION", true) {
		cfg.Moderation = &moderation.Config{APIKey: apiKey, BaseURL: baseURL}
	}
	if key := environment.StringOr("BING_SEARCH_KEY", ""); key != "" {
		cfg.Bing = &search.BingConfig{
			SubscriptionKey: key,
			Endpoint:        environment.StringOr("BING_SEARCH_ENDPOINT", ""),
			Timeout:         environment.DurationOr("BING_SEARCH_TIMEOUT", 10*time.Second),
		}
	}
	return cfg, nil
}
