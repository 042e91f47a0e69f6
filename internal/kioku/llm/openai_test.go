package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bdobrica/kioku/internal/kioku/llm"
)

type capturedRequest struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completionServer(t *testing.T, content string, got *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if got != nil {
			if err := json.Unmarshal(body, got); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 0,
			"model":   "test",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAI_CompleteSendsTierModelAndMessages(t *testing.T) {
	var got capturedRequest
	srv := completionServer(t, "  hello there  ", &got)

	p := llm.NewOpenAI(llm.Config{
		APIKey:        "sk-test",
		BaseURL:       srv.URL,
		StandardModel: "small",
		AdvancedModel: "large",
	})

	out, err := p.Complete(context.Background(), llm.Request{
		Tier:      llm.TierAdvanced,
		System:    "be brief",
		MaxTokens: 42,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "hi"},
			{Role: llm.RoleAssistant, Content: "hey"},
		},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "hello there" {
		t.Errorf("content = %q, want trimmed %q", out, "hello there")
	}
	if got.Model != "large" {
		t.Errorf("model = %q, want large", got.Model)
	}
	if got.MaxTokens != 42 {
		t.Errorf("max_tokens = %d, want 42", got.MaxTokens)
	}
	if len(got.Messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(got.Messages))
	}
	wantRoles := []string{"system", "user", "assistant"}
	for i, r := range wantRoles {
		if got.Messages[i].Role != r {
			t.Errorf("messages[%d].role = %q, want %q", i, got.Messages[i].Role, r)
		}
	}
}

func TestOpenAI_StandardTierIsDefault(t *testing.T) {
	var got capturedRequest
	srv := completionServer(t, "ok", &got)
	p := llm.NewOpenAI(llm.Config{APIKey: "k", BaseURL: srv.URL, StandardModel: "small"})

	if _, err := p.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "x"}},
	}); err != nil {
		t.Fatal(err)
	}
	if got.Model != "small" {
		t.Errorf("model = %q, want small", got.Model)
	}
}

func TestOpenAI_BlankContentIsEmptyCompletion(t *testing.T) {
	srv := completionServer(t, "   ", nil)
	p := llm.NewOpenAI(llm.Config{APIKey: "k", BaseURL: srv.URL})

	_, err := p.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "x"}},
	})
	if !errors.Is(err, llm.ErrEmptyCompletion) {
		t.Errorf("err = %v, want ErrEmptyCompletion", err)
	}
}

func TestOpenAI_HTTPErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	p := llm.NewOpenAI(llm.Config{APIKey: "k", BaseURL: srv.URL, MaxRetries: 0})
	if _, err := p.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "x"}},
	}); err == nil {
		t.Fatal("expected error from 400 response")
	}
}

func TestOpenAI_NoMessagesIsError(t *testing.T) {
	p := llm.NewOpenAI(llm.Config{APIKey: "k", BaseURL: "http://127.0.0.1:1"})
	if _, err := p.Complete(context.Background(), llm.Request{}); err == nil {
		t.Fatal("expected error for empty request")
	}
}

func TestParseTier(t *testing.T) {
	tests := []struct {
		in   string
		want llm.Tier
	}{
		{"advanced", llm.TierAdvanced},
		{"standard", llm.TierStandard},
		{"", llm.TierStandard},
		{"bogus", llm.TierStandard},
	}
	for _, tt := range tests {
		if got := llm.ParseTier(tt.in); got != tt.want {
			t.Errorf("ParseTier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
