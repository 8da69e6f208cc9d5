package main

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

type stubFetcher struct {
	result *ContentResult
	err    error
	urls   []string
}

func (f *stubFetcher) FetchContent(ctx context.Context, url string) (*ContentResult, error) {
	f.urls = append(f.urls, url)
	return f.result, f.err
}

type stubModel struct {
	answer string
	err    error
	system string
	user   string
}

func (m *stubModel) Complete(ctx context.Context, systemPrompt, userPrompt string, content *ContentResult) (string, error) {
	m.system, m.user = systemPrompt, userPrompt
	return m.answer, m.err
}

func testConfig() *Config {
	return &Config{
		Settings: &Settings{Rewriter: RewriterSettings{Variants: 2, ContentMaxTokens: 100}},
	}
}

func TestNewLocalRewriter(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		wantErr  bool
	}{
		{
			name:     "anthropic with key",
			settings: Settings{AnthropicAPIKey: "key", Rewriter: RewriterSettings{Provider: "anthropic"}},
		},
		{
			name:     "anthropic without key",
			settings: Settings{Rewriter: RewriterSettings{Provider: "anthropic"}},
			wantErr:  true,
		},
		{
			name:     "openai with key",
			settings: Settings{OpenAIAPIKey: "key", Rewriter: RewriterSettings{Provider: "openai", Model: "gpt-4o-mini"}},
		},
		{
			name:     "openai without key",
			settings: Settings{Rewriter: RewriterSettings{Provider: "openai"}},
			wantErr:  true,
		},
		{
			name:     "unknown provider",
			settings: Settings{Rewriter: RewriterSettings{Provider: "other"}},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := tt.settings
			r, err := NewLocalRewriter(&Config{Settings: &settings}, &stubFetcher{})

			if (err != nil) != tt.wantErr {
				t.Fatalf("NewLocalRewriter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && r.model == nil {
				t.Error("NewLocalRewriter() did not set a model")
			}
		})
	}
}

func TestLocalRewriterRewrite(t *testing.T) {
	fetcher := &stubFetcher{result: &ContentResult{
		Text:   "Source article text",
		Images: []string{"https://example.com/a.jpg"},
	}}
	model := &stubModel{answer: "```json\n" +
		`{"about":[{"title":"T1","body":"B1","hashtags":["news","#city life"]},{"title":"T2","body":"B2","hashtags":[]}]}` +
		"\n```"}
	r := &LocalRewriter{fetcher: fetcher, model: model, config: testConfig()}

	resp, err := r.Rewrite(context.Background(), RewriteRequest{Source: "https://example.com/post", Social: "tg"})
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}

	if resp.Social != string(PlatformTelegram) {
		t.Errorf("Social = %q, want %q", resp.Social, PlatformTelegram)
	}
	if resp.Source != "https://example.com/post" {
		t.Errorf("Source = %q", resp.Source)
	}
	if len(resp.About) != 2 {
		t.Fatalf("got %d variants, want 2", len(resp.About))
	}
	if want := []string{"#news", "#city_life"}; !reflect.DeepEqual(resp.About[0].Hashtags, want) {
		t.Errorf("Hashtags = %v, want %v", resp.About[0].Hashtags, want)
	}
	if !reflect.DeepEqual(resp.SourceImages, fetcher.result.Images) {
		t.Errorf("SourceImages = %v, want %v", resp.SourceImages, fetcher.result.Images)
	}
	if resp.PhotoUUID != nil {
		t.Error("local rewrites never carry a secure photo")
	}

	if !strings.Contains(model.system, "Telegram") || !strings.Contains(model.system, "Write 2 distinct variants") {
		t.Errorf("system prompt not rendered: %q", model.system)
	}
	if !strings.Contains(model.user, "Source article text") || !strings.Contains(model.user, "https://example.com/post") {
		t.Errorf("user prompt not rendered: %q", model.user)
	}
}

func TestLocalRewriterErrors(t *testing.T) {
	t.Run("unknown platform", func(t *testing.T) {
		r := &LocalRewriter{fetcher: &stubFetcher{}, model: &stubModel{}, config: testConfig()}
		_, err := r.Rewrite(context.Background(), RewriteRequest{Source: "u", Social: "facebook"})
		if !errors.Is(err, ErrUnknownPlatform) {
			t.Errorf("error = %v, want ErrUnknownPlatform", err)
		}
	})

	t.Run("fetch failure", func(t *testing.T) {
		fetchErr := &HTTPError{StatusCode: 404, URL: "u"}
		r := &LocalRewriter{fetcher: &stubFetcher{err: fetchErr}, model: &stubModel{}, config: testConfig()}
		_, err := r.Rewrite(context.Background(), RewriteRequest{Source: "u", Social: "vk"})
		var httpErr *HTTPError
		if !errors.As(err, &httpErr) {
			t.Errorf("error = %v, want wrapped HTTPError", err)
		}
	})

	t.Run("model failure", func(t *testing.T) {
		r := &LocalRewriter{
			fetcher: &stubFetcher{result: &ContentResult{Text: "x"}},
			model:   &stubModel{err: errors.New("overloaded")},
			config:  testConfig(),
		}
		_, err := r.Rewrite(context.Background(), RewriteRequest{Source: "u", Social: "vk"})
		if err == nil || !strings.Contains(err.Error(), "overloaded") {
			t.Errorf("error = %v, want model error", err)
		}
	})
}

func TestParseVariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{name: "plain json", input: `{"about":[{"title":"a","body":"b","hashtags":["#x"]}]}`, want: 1},
		{name: "fenced json", input: "```json\n{\"about\":[{\"title\":\"a\",\"body\":\"b\"}]}\n```", want: 1},
		{name: "bare fence", input: "```\n{\"about\":[{\"title\":\"a\"},{\"title\":\"b\"}]}\n```", want: 2},
		{name: "no variants", input: `{"about":[]}`, wantErr: true},
		{name: "not json", input: "Sorry, I can't do that", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVariants(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseVariants() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.want {
				t.Errorf("parseVariants() returned %d variants, want %d", len(got), tt.want)
			}
		})
	}
}

func TestParseVariantsVerificationFields(t *testing.T) {
	got, err := parseVariants(`{"about":[{"title":"a","body":"b","hashtags":[],"verification_failed":true,"verification_comment":"date unclear"}]}`)
	if err != nil {
		t.Fatalf("parseVariants() error = %v", err)
	}
	if !got[0].VerificationFailed || got[0].VerificationComment != "date unclear" {
		t.Errorf("verification fields not decoded: %+v", got[0])
	}
}

func TestLimitContentTokens(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		maxTokens int
		want      string
	}{
		{name: "short content", content: "hello", maxTokens: 10, want: "hello"},
		{name: "truncated", content: "abcdefghij", maxTokens: 2, want: "abcdefgh..."},
		{name: "multibyte runes", content: "приветмир", maxTokens: 1, want: "прив..."},
		{name: "no limit", content: "abc", maxTokens: 0, want: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := limitContentTokens(tt.content, tt.maxTokens); got != tt.want {
				t.Errorf("limitContentTokens() = %q, want %q", got, tt.want)
			}
		})
	}
}
