package main

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultUserName = "User"

// AuthAPI is the part of the backend the session talks to
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (*AuthResponse, error)
	Register(ctx context.Context, name, email, password string) (*AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error)
}

// AuthResult is what login and register report back to the caller
type AuthResult struct {
	Success bool
	Error   string
}

// Session holds the signed-in identity and its tokens. It is the only writer
// of the token store.
type Session struct {
	mu           sync.RWMutex
	api          AuthAPI
	store        TokenStore
	user         *User
	accessToken  string
	refreshToken string
	listeners    []func(authenticated bool)
}

// NewSession restores whatever identity the store holds. Tokens are not
// checked for freshness here; an expired one surfaces on the first protected call.
func NewSession(api AuthAPI, store TokenStore) (*Session, error) {
	s := &Session{api: api, store: store}

	tokens, err := store.Load()
	if err != nil {
		return nil, err
	}
	if tokens.AccessToken != "" {
		name := tokens.UserName
		if name == "" {
			name = defaultUserName
		}
		s.user = &User{Name: name}
		s.accessToken = tokens.AccessToken
		s.refreshToken = tokens.RefreshToken
		debugLog("restored session for %s", name)
	}
	return s, nil
}

// Login signs in with the form-encoded password flow
func (s *Session) Login(ctx context.Context, email, password string) AuthResult {
	resp, err := s.api.Login(ctx, email, password)
	if err != nil {
		return failure(err, "login failed")
	}
	if err := s.establish(resp); err != nil {
		return failure(err, "login failed")
	}
	log.Printf("✓ Signed in as %s", resp.Name)
	return AuthResult{Success: true}
}

func (s *Session) Register(ctx context.Context, name, email, password string) AuthResult {
	resp, err := s.api.Register(ctx, name, email, password)
	if err != nil {
		return failure(err, "registration failed")
	}
	if err := s.establish(resp); err != nil {
		return failure(err, "registration failed")
	}
	log.Printf("✓ Registered %s", resp.Name)
	return AuthResult{Success: true}
}

// Refresh exchanges the stored refresh token for a new pair. It is never
// called automatically.
func (s *Session) Refresh(ctx context.Context) AuthResult {
	s.mu.RLock()
	refreshToken := s.refreshToken
	s.mu.RUnlock()

	if refreshToken == "" {
		return AuthResult{Error: ErrNotAuthenticated.Error()}
	}

	resp, err := s.api.Refresh(ctx, refreshToken)
	if err != nil {
		return failure(err, "token refresh failed")
	}

	s.mu.RLock()
	if resp.Name == "" && s.user != nil {
		resp.Name = s.user.Name
	}
	if resp.Login == "" && s.user != nil {
		resp.Login = s.user.Email
	}
	if resp.RefreshToken == "" {
		resp.RefreshToken = refreshToken
	}
	s.mu.RUnlock()

	if err := s.establish(resp); err != nil {
		return failure(err, "token refresh failed")
	}
	return AuthResult{Success: true}
}

// Logout forgets the identity locally; there is no server call
func (s *Session) Logout() {
	if err := s.store.Clear(); err != nil {
		log.Printf("✗ Clearing stored session: %v", err)
	}

	s.mu.Lock()
	wasAuthenticated := s.accessToken != ""
	s.user = nil
	s.accessToken = ""
	s.refreshToken = ""
	s.mu.Unlock()

	if wasAuthenticated {
		s.notify(false)
	}
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken != ""
}

// AccessToken implements TokenSource
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// User returns a copy of the signed-in identity, or nil
func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// TokenExpiry reads the exp claim of the access token without verifying it.
// Only meant for display.
func (s *Session) TokenExpiry() (time.Time, bool) {
	token := s.AccessToken()
	if token == "" {
		return time.Time{}, false
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		debugLog("access token is not a JWT: %v", err)
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// OnChange registers fn to run after every sign-in and sign-out
func (s *Session) OnChange(fn func(authenticated bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// establish persists the new tokens in one write before touching memory. A
// response without an access token leaves the session as it was.
func (s *Session) establish(resp *AuthResponse) error {
	if resp == nil || resp.AccessToken == "" {
		return ErrNoAccessToken
	}
	if err := s.store.Save(StoredTokens{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		UserName:     resp.Name,
	}); err != nil {
		return err
	}

	s.mu.Lock()
	s.user = &User{Name: resp.Name, Email: resp.Login}
	s.accessToken = resp.AccessToken
	s.refreshToken = resp.RefreshToken
	s.mu.Unlock()

	s.notify(true)
	return nil
}

func (s *Session) notify(authenticated bool) {
	s.mu.RLock()
	listeners := append([]func(bool){}, s.listeners...)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(authenticated)
	}
}

func failure(err error, fallback string) AuthResult {
	msg := err.Error()
	if msg == "" {
		msg = fallback
	}
	return AuthResult{Error: msg}
}
