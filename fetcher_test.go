package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// Mock handler for testing
type mockHandler struct {
	canHandleResult bool
	handleResult    *ContentResult
	handleError     error
}

func (m *mockHandler) CanHandle(url string, resp *http.Response) bool {
	return m.canHandleResult
}

func (m *mockHandler) Handle(url string, resp *http.Response) (*ContentResult, error) {
	return m.handleResult, m.handleError
}

func TestNewContentFetcher(t *testing.T) {
	tests := []struct {
		name          string
		apiKey        string
		expectedCount int
	}{
		{name: "with anthropic key", apiKey: "test-key", expectedCount: 3}, // Telegram, PDF, HTML
		{name: "without anthropic key", apiKey: "", expectedCount: 2},     // Telegram, HTML
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := NewContentFetcher(tt.apiKey, 5*time.Second)

			if fetcher.client == nil {
				t.Fatal("NewContentFetcher() did not initialize HTTP client")
			}
			if len(fetcher.handlers) != tt.expectedCount {
				t.Errorf("NewContentFetcher() registered %d handlers, want %d",
					len(fetcher.handlers), tt.expectedCount)
			}
			if _, ok := fetcher.handlers[len(fetcher.handlers)-1].(*HTMLHandler); !ok {
				t.Error("HTMLHandler should be the last handler")
			}
		})
	}
}

func TestAddHandler(t *testing.T) {
	fetcher := &ContentFetcher{}
	initialCount := len(fetcher.handlers)

	mockH := &mockHandler{canHandleResult: true}
	fetcher.AddHandler(mockH)

	if len(fetcher.handlers) != initialCount+1 {
		t.Errorf("AddHandler() handlers count = %d, want %d",
			len(fetcher.handlers), initialCount+1)
	}

	lastHandler := fetcher.handlers[len(fetcher.handlers)-1]
	if lastHandler != mockH {
		t.Error("AddHandler() did not add handler to the end of the chain")
	}
}

func TestFetchContentHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := &ContentFetcher{client: server.Client(), retries: 3}

	result, err := fetcher.FetchContent(context.Background(), server.URL)

	if result != nil {
		t.Error("FetchContent() should return nil result on HTTP error")
	}

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("FetchContent() should return HTTPError, got %T", err)
	}
	if httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("HTTPError.StatusCode = %d, want %d", httpErr.StatusCode, http.StatusNotFound)
	}
	if httpErr.URL != server.URL {
		t.Errorf("HTTPError.URL = %q, want %q", httpErr.URL, server.URL)
	}
}

func TestFetchContentRetriesRateLimit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	fetcher := &ContentFetcher{
		client:   server.Client(),
		retries:  3,
		backoff:  time.Millisecond,
		handlers: []ContentHandler{&mockHandler{canHandleResult: true, handleResult: &ContentResult{Text: "done"}}},
	}

	result, err := fetcher.FetchContent(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchContent() error = %v", err)
	}
	if result.Text != "done" {
		t.Errorf("FetchContent() result.Text = %q, want %q", result.Text, "done")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server called %d times, want 3", got)
	}
}

func TestFetchContentGivesUpAfterRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	fetcher := &ContentFetcher{client: server.Client(), retries: 2, backoff: time.Millisecond}

	_, err := fetcher.FetchContent(context.Background(), server.URL)
	if err == nil {
		t.Fatal("FetchContent() should fail when every attempt is rate limited")
	}
	if !strings.Contains(err.Error(), "exceeded max retries") {
		t.Errorf("FetchContent() error = %q, want retry exhaustion", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("server called %d times, want 2", got)
	}
}

func TestFetchContentHandlerChain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<h1>Test HTML</h1>"))
	}))
	defer server.Close()

	handler1 := &mockHandler{canHandleResult: false}
	handler2 := &mockHandler{canHandleResult: true, handleResult: &ContentResult{Text: "handler2 result"}}
	handler3 := &mockHandler{canHandleResult: true, handleResult: &ContentResult{Text: "handler3 result"}}

	fetcher := &ContentFetcher{
		client:   server.Client(),
		retries:  1,
		handlers: []ContentHandler{handler1, handler2, handler3},
	}

	result, err := fetcher.FetchContent(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchContent() error = %v", err)
	}
	if result.Text != "handler2 result" {
		t.Errorf("FetchContent() result.Text = %q, want %q", result.Text, "handler2 result")
	}
}

func TestFetchContentNoMatchingHandler(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("some content"))
	}))
	defer server.Close()

	fetcher := &ContentFetcher{
		client:   server.Client(),
		retries:  1,
		handlers: []ContentHandler{&mockHandler{}, &mockHandler{}},
	}

	result, err := fetcher.FetchContent(context.Background(), server.URL)
	if result != nil {
		t.Error("FetchContent() should return nil when no handler matches")
	}
	if err == nil {
		t.Fatal("FetchContent() should return error when no handler matches")
	}

	expectedMsg := "no handler found for " + server.URL
	if err.Error() != expectedMsg {
		t.Errorf("FetchContent() error = %q, want %q", err.Error(), expectedMsg)
	}
}
