package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

// ContentResult represents the result of fetching a source page
type ContentResult struct {
	Text   string   // Markdown text content (for HTML pages)
	Images []string // Absolute image URLs, cover first
	FileID string   // File ID (for PDFs)
}

// ContentFetcher handles fetching and processing content from URLs
type ContentFetcher struct {
	handlers []ContentHandler
	client   *http.Client
	retries  int
	backoff  time.Duration
}

// NewContentFetcher creates a new content fetcher with default handlers.
// PDFs are only handled when an Anthropic key is available to upload them.
func NewContentFetcher(anthropicKey string, timeout time.Duration) *ContentFetcher {
	f := &ContentFetcher{
		client:  &http.Client{Timeout: timeout},
		retries: 3,
		backoff: time.Second,
	}

	// Register handlers (most specific first)
	f.AddHandler(&TelegramPostHandler{})
	if anthropicKey != "" {
		f.AddHandler(&PDFHandler{apiKey: anthropicKey})
	}
	f.AddHandler(&HTMLHandler{converter: md.NewConverter("", true, nil)}) // fallback

	return f
}

// AddHandler adds a content handler to the chain
func (f *ContentFetcher) AddHandler(handler ContentHandler) {
	f.handlers = append(f.handlers, handler)
}

// FetchContent fetches and processes content using the handler chain.
// Rate-limited responses are retried with exponential backoff.
func (f *ContentFetcher) FetchContent(ctx context.Context, url string) (*ContentResult, error) {
	var lastErr error
	for i := 0; i < f.retries; i++ {
		result, err := f.fetchOnce(ctx, url)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var httpErr *HTTPError
		if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusTooManyRequests {
			return nil, err
		}
		if i == f.retries-1 {
			break
		}

		wait := f.backoff * time.Duration(1<<uint(i))
		debugLog("rate limited by %s, retrying in %s", url, wait)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("exceeded max retries after %d attempts: %w", f.retries, lastErr)
}

func (f *ContentFetcher) fetchOnce(ctx context.Context, url string) (*ContentResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", "post-editor/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	// Find handler based on URL + response headers
	for _, handler := range f.handlers {
		if handler.CanHandle(url, resp) {
			return handler.Handle(url, resp)
		}
	}

	return nil, fmt.Errorf("no handler found for %s", url)
}
