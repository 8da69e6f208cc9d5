package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Login exchanges credentials for a token pair. The backend expects an
// OAuth2 password form, not JSON.
func (c *APIClient) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var resp AuthResponse
	err := c.Request(ctx, "/api/auth/login", RequestOptions{
		Method: http.MethodPost,
		Body:   form,
	}, false, true, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account and returns its token pair
func (c *APIClient) Register(ctx context.Context, name, email, password string) (*AuthResponse, error) {
	var resp AuthResponse
	err := c.Request(ctx, "/api/auth/signup", RequestOptions{
		Method: http.MethodPost,
		Body: map[string]string{
			"name":     name,
			"email":    email,
			"password": password,
		},
	}, false, false, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh trades a refresh token for a new token pair. The refresh token
// travels in the same "token" header used for access tokens.
func (c *APIClient) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	var resp AuthResponse
	err := c.Request(ctx, "/api/auth/refresh", RequestOptions{
		Method:  http.MethodPost,
		Headers: map[string]string{"token": refreshToken},
	}, false, false, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Rewrite asks the backend for platform-specific variants of a source post
func (c *APIClient) Rewrite(ctx context.Context, req RewriteRequest) (*RewriteResponse, error) {
	var resp RewriteResponse
	err := c.Request(ctx, "/api/rewrite", RequestOptions{
		Method: http.MethodPost,
		Body:   req,
	}, false, false, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetPhoto downloads a photo that is only served to signed-in users
func (c *APIClient) GetPhoto(ctx context.Context, photoID string) ([]byte, string, error) {
	return c.RequestRaw(ctx, "/api/news/photo/"+url.PathEscape(photoID), RequestOptions{
		Method: http.MethodGet,
	}, true)
}

// ListNews returns the user's stored posts
func (c *APIClient) ListNews(ctx context.Context) ([]NewsItem, error) {
	var items []NewsItem
	if err := c.Request(ctx, "/api/news/show", RequestOptions{Method: http.MethodGet}, true, false, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// AddNews stores a post for later approval
func (c *APIClient) AddNews(ctx context.Context, source, about, social string, photoURL *string) (*NewsItem, error) {
	var item NewsItem
	err := c.Request(ctx, "/api/news/add", RequestOptions{
		Method: http.MethodPost,
		Body: map[string]any{
			"source":    source,
			"about":     about,
			"social":    social,
			"photo_url": photoURL,
		},
	}, true, false, &item)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *APIClient) UpdateNews(ctx context.Context, id int64, about, social string) error {
	return c.Request(ctx, "/api/news/update", RequestOptions{
		Method: http.MethodPut,
		Body:   map[string]any{"id": id, "about": about, "social": social},
	}, true, false, nil)
}

// ApproveNews schedules a stored post for publishing at the given time
func (c *APIClient) ApproveNews(ctx context.Context, id int64, publishing time.Time) error {
	return c.Request(ctx, "/api/news/approve", RequestOptions{
		Method: http.MethodPatch,
		Body:   map[string]any{"id": id, "publishing": publishing.Format(time.RFC3339)},
	}, true, false, nil)
}

func (c *APIClient) DeleteNews(ctx context.Context, id int64) error {
	return c.newsAction(ctx, http.MethodDelete, "/api/news/delete", id)
}

// ForcePostNews publishes a stored post immediately
func (c *APIClient) ForcePostNews(ctx context.Context, id int64) error {
	return c.newsAction(ctx, http.MethodPost, "/api/news/force", id)
}

func (c *APIClient) TranslateNews(ctx context.Context, id int64) error {
	return c.newsAction(ctx, http.MethodPost, "/api/news/translate", id)
}

func (c *APIClient) newsAction(ctx context.Context, method, endpoint string, id int64) error {
	return c.Request(ctx, endpoint, RequestOptions{
		Method: method,
		Body:   map[string]any{"id": id},
	}, true, false, nil)
}

// ReadContextVK returns what the backend knows about a VK community
func (c *APIClient) ReadContextVK(ctx context.Context, clubID string) (json.RawMessage, error) {
	var raw json.RawMessage
	endpoint := fmt.Sprintf("/api/news/read_context_vk/%s", url.PathEscape(clubID))
	if err := c.Request(ctx, endpoint, RequestOptions{Method: http.MethodGet}, false, false, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// HasKey reports whether a publishing key is stored for social ("VK" or "TG")
func (c *APIClient) HasKey(ctx context.Context, social string) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.Request(ctx, "/api/keys/has", RequestOptions{
		Method: http.MethodPost,
		Body:   map[string]string{"social": social},
	}, true, false, &raw)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *APIClient) AddKey(ctx context.Context, social, number, value string) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.Request(ctx, "/api/keys/add", RequestOptions{
		Method: http.MethodPost,
		Body:   map[string]string{"social": social, "number": number, "value": value},
	}, true, false, &raw)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
