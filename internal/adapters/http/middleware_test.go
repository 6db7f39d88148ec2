package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/lease-lens/internal/core/domain"
)

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	f := newAPIFixture(t, Options{RateLimitRPS: 1, RateLimitBurst: 1})

	res1 := f.do(t, httptest.NewRequest(http.MethodPost, "/v1/workflows", nil))
	if res1.Code != http.StatusCreated {
		t.Fatalf("first request expected 201, got %d", res1.Code)
	}

	res2 := f.do(t, httptest.NewRequest(http.MethodPost, "/v1/workflows", nil))
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header for 429 response")
	}
}

func TestBackpressureMiddlewareReturns503WhenSaturated(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan int, 1)

	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		w.WriteHeader(http.StatusNoContent)
	})
	handler := backpressureMiddleware(base, 1, 20*time.Millisecond)

	go func() {
		req := httptest.NewRequest(http.MethodGet, "/v1/workflows/wf", nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		done <- res.Code
	}()

	<-started

	req2 := httptest.NewRequest(http.MethodGet, "/v1/workflows/wf", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for saturated backpressure gate, got %d", res2.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(bytes.NewReader(res2.Body.Bytes())).Decode(&resp); err != nil {
		t.Fatalf("decode overload response: %v", err)
	}
	if resp["error"] == "" {
		t.Fatalf("expected overload error message in response")
	}

	close(release)

	select {
	case code := <-done:
		if code != http.StatusNoContent {
			t.Fatalf("first request expected 204, got %d", code)
		}
	case <-time.After(1 * time.Second):
		t.Fatalf("timed out waiting for first request completion")
	}
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	cases := map[error]int{
		domain.ErrInvalidFileType:   http.StatusUnsupportedMediaType,
		domain.ErrFileTooLarge:      http.StatusRequestEntityTooLarge,
		domain.ErrInvalidInput:      http.StatusBadRequest,
		domain.ErrUnauthorized:      http.StatusUnauthorized,
		domain.ErrWorkflowNotFound:  http.StatusNotFound,
		domain.ErrInvalidTransition: http.StatusConflict,
		domain.ErrAnalysisFailure:   http.StatusBadGateway,
		domain.ErrAnalysisTimeout:   http.StatusGatewayTimeout,
		domain.ErrTemporary:         http.StatusServiceUnavailable,
		errors.New("boom"):          http.StatusInternalServerError,
	}
	for kind, want := range cases {
		err := domain.WrapError(kind, "op", errors.New("detail"))
		if got := mapErrorToHTTPStatus(err); got != want {
			t.Fatalf("mapErrorToHTTPStatus(%v) = %d, want %d", kind, got, want)
		}
	}
}

func TestIsAuthorizedBearerHeader(t *testing.T) {
	if !isAuthorizedBearerHeader("Bearer  secret ", "secret") {
		t.Fatalf("expected trimmed token to match")
	}
	if isAuthorizedBearerHeader("Basic secret", "secret") || isAuthorizedBearerHeader("Bearer secret", "") {
		t.Fatalf("unexpected authorization")
	}
}
