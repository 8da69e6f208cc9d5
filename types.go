package main

import (
	"fmt"
	"strings"
)

// Platform identifies a target social network
type Platform string

const (
	PlatformVK       Platform = "VK"
	PlatformTelegram Platform = "Telegram"
)

// Platforms lists every supported platform in tab order
var Platforms = []Platform{PlatformVK, PlatformTelegram}

// ParsePlatform resolves user input such as "vk", "telegram" or "tg"
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vk", "vkontakte":
		return PlatformVK, nil
	case "telegram", "tg":
		return PlatformTelegram, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, s)
}

// KeySocial returns the short code the keys API expects
func (p Platform) KeySocial() string {
	if p == PlatformTelegram {
		return "TG"
	}
	return string(p)
}

func (p Platform) valid() bool {
	return p == PlatformVK || p == PlatformTelegram
}

// Variant is one rewrite candidate returned by the rewriting service
type Variant struct {
	Title               string   `json:"title"`
	Body                string   `json:"body"`
	Hashtags            []string `json:"hashtags"`
	VerificationFailed  bool     `json:"verification_failed,omitempty"`
	VerificationComment string   `json:"verification_comment,omitempty"`
}

// RewriteRequest is the body of POST /api/rewrite
type RewriteRequest struct {
	Source string `json:"source"`
	Social string `json:"social"`
	ClubID string `json:"club_id,omitempty"`
}

// RewriteResponse is what the rewriting service returns for one platform
type RewriteResponse struct {
	Source       string    `json:"source"`
	Social       string    `json:"social"`
	About        []Variant `json:"about"`
	PhotoUUID    *string   `json:"photo_uuid"`
	SourceImages []string  `json:"source_images"`
}

// AuthResponse is returned by login, signup and refresh
type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	Login        string `json:"login"`
	Name         string `json:"name"`
}

// User is the signed-in identity
type User struct {
	Name  string
	Email string
}

// NewsItem is a stored post on the backend
type NewsItem struct {
	ID         int64   `json:"id"`
	Source     string  `json:"source"`
	About      string  `json:"about"`
	Social     string  `json:"social"`
	PhotoURL   *string `json:"photo_url,omitempty"`
	Publishing string  `json:"publishing,omitempty"`
}
