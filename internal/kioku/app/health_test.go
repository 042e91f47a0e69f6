package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubCounts struct {
	conversations int
	err           error
}

func (s *stubCounts) ConversationCount(context.Context) (int, error) { return s.conversations, s.err }

type stubActors int

func (s stubActors) Len() int { return int(s) }

func getJSON(t *testing.T, hs *HealthServer, path string) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	hs.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return w.Code, resp
}

func TestHealthServer_Health(t *testing.T) {
	hs := NewHealthServer("127.0.0.1:0", &stubCounts{}, nil)
	code, resp := getJSON(t, hs, "/health")
	if code != http.StatusOK || resp["status"] != "ok" {
		t.Errorf("GET /health = %d %v", code, resp)
	}
}

func TestHealthServer_Status(t *testing.T) {
	tests := []struct {
		name       string
		store      *stubCounts
		actors     liveCounter
		wantStatus string
		wantConvs  float64
		wantActors float64
	}{
		{"counts", &stubCounts{conversations: 5}, stubActors(3), "ok", 5, 3},
		{"no registry yet", &stubCounts{conversations: 2}, nil, "ok", 2, 0},
		{"store error", &stubCounts{err: errors.New("locked")}, stubActors(1), "degraded", 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := NewHealthServer("127.0.0.1:0", tt.store, tt.actors)
			code, resp := getJSON(t, hs, "/status")
			if code != http.StatusOK {
				t.Fatalf("status code %d", code)
			}
			if resp["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %s", resp["status"], tt.wantStatus)
			}
			if resp["conversation_count"] != tt.wantConvs || resp["active_actors"] != tt.wantActors {
				t.Errorf("counts = %v/%v, want %v/%v",
					resp["conversation_count"], resp["active_actors"], tt.wantConvs, tt.wantActors)
			}
		})
	}
}

func TestHealthServer_StartAndShutdown(t *testing.T) {
	hs := NewHealthServer("127.0.0.1:0", &stubCounts{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := hs.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
	hs.Stop()
}
