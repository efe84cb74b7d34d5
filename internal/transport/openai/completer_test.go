package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
)

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chatServer(t *testing.T, reply string, got *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got != nil {
			if err := json.NewDecoder(r.Body).Decode(got); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-3.5-turbo",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestCompleter(baseURL string) *Completer {
	return NewCompleter(&CompleterConfig{APIKey: "test-key", BaseURL: baseURL, Logger: zap.NewNop()})
}

func TestCompleter_Complete(t *testing.T) {
	var req chatRequest
	srv := chatServer(t, "  {\"normalized\":\"tornillo\"}\n", &req)

	reply, err := newTestCompleter(srv.URL).Complete(context.Background(), domain.Prompt{
		System: "Eres un asistente.",
		User:   "tornillo",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != `{"normalized":"tornillo"}` {
		t.Errorf("unexpected reply: %q", reply)
	}
	if req.Model != DefaultChatModel {
		t.Errorf("model = %q, want %q", req.Model, DefaultChatModel)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "tornillo" {
		t.Errorf("unexpected messages: %+v", req.Messages)
	}
	if req.Temperature <= 0 || req.Temperature > 1e-6 {
		t.Errorf("expected near-zero temperature on the wire, got %v", req.Temperature)
	}
}

func TestCompleter_NoSystemMessage(t *testing.T) {
	var req chatRequest
	srv := chatServer(t, "ok", &req)

	if _, err := newTestCompleter(srv.URL).Complete(context.Background(), domain.Prompt{User: "hola"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
		t.Errorf("unexpected messages: %+v", req.Messages)
	}
}

func TestCompleter_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	}))
	t.Cleanup(srv.Close)

	_, err := newTestCompleter(srv.URL).Complete(context.Background(), domain.Prompt{User: "x"})
	if !errors.Is(err, domain.ErrMalformedResponse) || !errors.Is(err, domain.ErrLanguageModelError) {
		t.Fatalf("expected malformed language model error, got %v", err)
	}
}

func TestCompleter_ErrorMapping(t *testing.T) {
	srv := errorServer(t, http.StatusTooManyRequests,
		`{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`)
	_, err := newTestCompleter(srv.URL).Complete(context.Background(), domain.Prompt{User: "x"})
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	srv = errorServer(t, http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`)
	_, err = newTestCompleter(srv.URL).Complete(context.Background(), domain.Prompt{User: "x"})
	if !errors.Is(err, domain.ErrLanguageModelError) {
		t.Fatalf("expected ErrLanguageModelError, got %v", err)
	}
}

func TestCompleter_RateLimiterHonoursContext(t *testing.T) {
	srv := chatServer(t, "ok", nil)
	c := NewCompleter(&CompleterConfig{
		APIKey:            "test-key",
		BaseURL:           srv.URL,
		RequestsPerSecond: 0.001,
		Burst:             1,
		Logger:            zap.NewNop(),
	})

	if _, err := c.Complete(context.Background(), domain.Prompt{User: "first"}); err != nil {
		t.Fatalf("first call should use the burst token: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Complete(ctx, domain.Prompt{User: "second"}); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited while paced, got %v", err)
	}
}
