package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/lease-lens/internal/core/domain"
	"github.com/kirillkom/lease-lens/internal/infrastructure/resilience"
)

func TestCompleteJSONSendsChatRequest(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":" {\"analysis\":[]} "},"done":true}`))
	}))
	defer server.Close()

	client := New(server.URL, "llama3", nil)
	out, err := client.CompleteJSON(context.Background(), "system rules", "lease text")
	if err != nil {
		t.Fatalf("CompleteJSON() error = %v", err)
	}
	if out != `{"analysis":[]}` {
		t.Fatalf("unexpected content %q", out)
	}
	if captured.Model != "llama3" || captured.Format != "json" || captured.Stream {
		t.Fatalf("unexpected request %+v", captured)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Content != "system rules" || captured.Messages[1].Content != "lease text" {
		t.Fatalf("unexpected messages %+v", captured.Messages)
	}
}

func TestCompleteJSONIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := New(server.URL, "missing", nil).CompleteJSON(context.Background(), "s", "u")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model not found") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("404 must not be temporary, got %v", err)
	}
}

func TestCompleteJSONRetriesUnavailable(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "loading model", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"{}"},"done":true}`))
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{
		Retry: resilience.RetryPolicy{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	})
	out, err := New(server.URL, "llama3", exec).CompleteJSON(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("CompleteJSON() error = %v", err)
	}
	if out != "{}" || calls.Load() != 2 {
		t.Fatalf("expected success on second call, got %q after %d calls", out, calls.Load())
	}
}

func TestUnavailableIsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := New(server.URL, "llama3", nil).CompleteJSON(context.Background(), "s", "u")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}
