package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// TokenSource supplies the access token attached to authenticated requests
type TokenSource interface {
	AccessToken() string
}

// RequestOptions mirrors the subset of fetch options the backend needs
type RequestOptions struct {
	Method  string
	Headers map[string]string
	Body    any
}

// ValidationIssue is one entry of a 422 "detail" array
type ValidationIssue struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

func (v ValidationIssue) String() string {
	parts := make([]string, len(v.Loc))
	for i, p := range v.Loc {
		parts[i] = fmt.Sprint(p)
	}
	return strings.Join(parts, ".") + ": " + v.Msg
}

// APIError is a non-2xx response from the backend
type APIError struct {
	StatusCode int
	Status     string
	Message    string
	Issues     []ValidationIssue
}

func (e *APIError) Error() string {
	return e.Message
}

// TransportError means the request never produced an HTTP response
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIClient talks to the rewriting backend
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

// NewAPIClient creates a client for baseURL with the given request timeout
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// UseTokens sets where authenticated requests read their token from
func (c *APIClient) UseTokens(tokens TokenSource) {
	c.tokens = tokens
}

// Request performs a call and decodes the JSON response into out (if not nil)
func (c *APIClient) Request(ctx context.Context, endpoint string, opts RequestOptions, requiresAuth, formEncoded bool, out any) error {
	body, _, err := c.do(ctx, endpoint, opts, requiresAuth, formEncoded)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", endpoint, err)
	}
	return nil
}

// RequestRaw performs a call and returns the undecoded body and its content type
func (c *APIClient) RequestRaw(ctx context.Context, endpoint string, opts RequestOptions, requiresAuth bool) ([]byte, string, error) {
	body, header, err := c.do(ctx, endpoint, opts, requiresAuth, false)
	if err != nil {
		return nil, "", err
	}
	return body, header.Get("Content-Type"), nil
}

func (c *APIClient) do(ctx context.Context, endpoint string, opts RequestOptions, requiresAuth, formEncoded bool) ([]byte, http.Header, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	headers := make(map[string]string, len(opts.Headers)+2)
	for k, v := range opts.Headers {
		headers[http.CanonicalHeaderKey(k)] = v
	}

	if requiresAuth && c.tokens != nil {
		if token := c.tokens.AccessToken(); token != "" {
			headers["Token"] = token
		}
	}

	if _, ok := headers["Content-Type"]; !ok {
		if formEncoded {
			headers["Content-Type"] = "application/x-www-form-urlencoded"
		} else {
			headers["Content-Type"] = "application/json"
		}
	}

	payload, err := encodeBody(opts.Body, formEncoded)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding %s body: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, payload)
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	debugLog("%s %s auth=%t form=%t", method, endpoint, requiresAuth, formEncoded)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &TransportError{Endpoint: endpoint, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, decodeAPIError(resp, body)
	}
	return body, resp.Header, nil
}

func encodeBody(body any, formEncoded bool) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case string:
		return strings.NewReader(b), nil
	case []byte:
		return bytes.NewReader(b), nil
	case url.Values:
		if formEncoded {
			return strings.NewReader(b.Encode()), nil
		}
	}
	if formEncoded {
		return nil, fmt.Errorf("form body must be url.Values or string, got %T", body)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// decodeAPIError turns an error response into an APIError. Bodies that are not
// JSON fall through to the status line message.
func decodeAPIError(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Status:     statusText(resp),
	}

	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		debugLog("error body for status %d is not JSON: %v", resp.StatusCode, err)
	}

	detail := bytes.TrimSpace(payload.Detail)
	if len(detail) > 0 && !bytes.Equal(detail, []byte("null")) {
		if resp.StatusCode == http.StatusUnprocessableEntity && detail[0] == '[' {
			var issues []ValidationIssue
			if err := json.Unmarshal(detail, &issues); err == nil {
				msgs := make([]string, len(issues))
				for i, issue := range issues {
					msgs[i] = issue.String()
				}
				apiErr.Issues = issues
				apiErr.Message = strings.Join(msgs, "; ")
				return apiErr
			}
		}

		var text string
		if err := json.Unmarshal(detail, &text); err == nil {
			if text != "" {
				apiErr.Message = text
				return apiErr
			}
		} else {
			var compact bytes.Buffer
			if json.Compact(&compact, detail) == nil {
				detail = compact.Bytes()
			}
			apiErr.Message = string(detail)
			return apiErr
		}
	}

	if payload.Message != "" {
		apiErr.Message = payload.Message
		return apiErr
	}

	apiErr.Message = fmt.Sprintf("error %d: %s", resp.StatusCode, apiErr.Status)
	return apiErr
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
