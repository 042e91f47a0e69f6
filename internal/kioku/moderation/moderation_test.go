package moderation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func moderationServer(t *testing.T, flagged bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/moderations" {
			t.Errorf("path = %s, want /moderations", r.URL.Path)
		}
		var req struct {
			Input string `json:"input"`
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Input == "" || req.Model != "omni-moderation-latest" {
			t.Errorf("request = %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "modr-test",
			"model": "omni-moderation-latest",
			"results": []map[string]any{{
				"flagged":         flagged,
				"categories":      map[string]bool{},
				"category_scores": map[string]float64{},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAI_Violates(t *testing.T) {
	for _, flagged := range []bool{true, false} {
		srv := moderationServer(t, flagged)
		m := NewOpenAI(Config{APIKey: "k", BaseURL: srv.URL})
		got, err := m.Violates(context.Background(), "some text")
		if err != nil {
			t.Fatalf("Violates: %v", err)
		}
		if got != flagged {
			t.Errorf("Violates = %v, want %v", got, flagged)
		}
	}
}

func TestOpenAI_EmptyTextSkipsBackend(t *testing.T) {
	m := NewOpenAI(Config{APIKey: "k", BaseURL: "http://127.0.0.1:1"})
	got, err := m.Violates(context.Background(), "")
	if err != nil || got {
		t.Errorf("Violates('') = %v, %v", got, err)
	}
}

func TestOpenAI_ServerErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"nope"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()
	m := NewOpenAI(Config{APIKey: "k", BaseURL: srv.URL})
	if _, err := m.Violates(context.Background(), "x"); err == nil {
		t.Error("expected error")
	}
}

func TestNoop(t *testing.T) {
	if v, err := (Noop{}).Violates(context.Background(), "anything"); v || err != nil {
		t.Errorf("Noop.Violates = %v, %v", v, err)
	}
}
