package httpclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig(retries int) Config {
	return Config{
		MaxRetries: retries,
		BaseDelay:  1 * time.Millisecond,
		MaxDelay:   10 * time.Millisecond,
		Timeout:    5 * time.Second,
	}
}

func newGet(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, http.NoBody)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	return req
}

func TestDo_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	resp, err := New(DefaultConfig(), testLogger()).Do(newGet(t, server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestDo_RetriesServerErrorsUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp, err := New(fastConfig(3), testLogger()).Do(newGet(t, server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestDo_RateLimitedThenOK(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp, err := New(fastConfig(3), testLogger()).Do(newGet(t, server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestDo_ExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	resp, err := New(fastConfig(2), testLogger()).Do(newGet(t, server.URL + "/search?query=dune"))
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected error after exhausted retries")
	}
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Errorf("expected ErrRetriesExhausted, got %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusServiceUnavailable {
		t.Errorf("expected wrapped StatusError 503, got %v", err)
	}
	if strings.Contains(err.Error(), "dune") {
		t.Errorf("query string leaked into error: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestDo_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	resp, err := New(fastConfig(3), testLogger()).Do(newGet(t, server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if calls.Load() != 1 {
		t.Errorf("expected 1 call (no retry), got %d", calls.Load())
	}
}

func TestDo_CanceledContextStopsRetrying(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(5)
	cfg.BaseDelay = time.Second
	cfg.MaxDelay = time.Second
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, http.NoBody)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := New(cfg, testLogger()).Do(req)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDo_SetsUserAgent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "moviesearch/test" {
			t.Errorf("unexpected user agent %q", ua)
		}
	}))
	defer server.Close()

	cfg := fastConfig(1)
	cfg.UserAgent = "moviesearch/test"
	resp, err := New(cfg, testLogger()).Do(newGet(t, server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
}

func TestCheckStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok" {
			return
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status_message":"not found"}`))
	}))
	defer server.Close()

	client := New(fastConfig(1), testLogger())

	resp, err := client.Do(newGet(t, server.URL+"/ok"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := CheckStatus(resp); err != nil {
		t.Errorf("expected nil for 200, got %v", err)
	}
	resp.Body.Close()

	resp, err = client.Do(newGet(t, server.URL+"/missing?api_key=secret"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	err = CheckStatus(resp)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %T", err)
	}
	if se.Code != http.StatusNotFound {
		t.Errorf("code = %d, want 404", se.Code)
	}
	if !strings.Contains(se.Body, "not found") {
		t.Errorf("body = %q", se.Body)
	}
	if strings.Contains(se.URL, "secret") {
		t.Errorf("URL not redacted: %q", se.URL)
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		code   int
		method string
		expect bool
	}{
		{200, http.MethodGet, false},
		{400, http.MethodGet, false},
		{401, http.MethodGet, false},
		{404, http.MethodGet, false},
		{429, http.MethodGet, true},
		{500, http.MethodGet, true},
		{502, http.MethodGet, true},
		{503, http.MethodGet, true},
		{504, http.MethodGet, true},
		{429, http.MethodPost, true},
		{500, http.MethodPost, false},
	}
	for _, tt := range tests {
		if got := shouldRetry(tt.code, tt.method); got != tt.expect {
			t.Errorf("shouldRetry(%d, %s) = %v, want %v", tt.code, tt.method, got, tt.expect)
		}
	}
}
