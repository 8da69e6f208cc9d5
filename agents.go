package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

var platformGuidelines = map[Platform]string{
	PlatformVK: `- Up to 2000 characters, a few short paragraphs.
- A friendly community tone; emoji are fine in moderation.
- End with 3 to 6 hashtags.`,
	PlatformTelegram: `- Keep title and body under 900 characters so the post fits a photo caption.
- Plain, dense, news-channel tone; at most one emoji.
- End with 2 to 4 hashtags.`,
}

// SourceFetcher loads the page a post is rewritten from
type SourceFetcher interface {
	FetchContent(ctx context.Context, url string) (*ContentResult, error)
}

// ModelClient sends one prompt to a language model and returns its text answer
type ModelClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, content *ContentResult) (string, error)
}

// LocalRewriter produces variants without the post service by fetching the
// source itself and prompting a model
type LocalRewriter struct {
	fetcher SourceFetcher
	model   ModelClient
	config  *Config
}

// NewLocalRewriter picks the model provider from settings
func NewLocalRewriter(config *Config, fetcher SourceFetcher) (*LocalRewriter, error) {
	s := config.Settings
	var model ModelClient
	switch s.Rewriter.Provider {
	case "anthropic":
		if s.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("API key required: set ANTHROPIC_API_KEY for the anthropic rewriter")
		}
		model = &anthropicModel{
			apiKey: s.AnthropicAPIKey,
			schema: config.GetRewriteSchema(),
			settings: types.RequestSettings{
				Model:       s.Rewriter.Model,
				MaxTokens:   s.Rewriter.MaxTokens,
				Temperature: s.Rewriter.Temperature,
			},
		}
	case "openai":
		if s.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("API key required: set OPENAI_API_KEY for the openai rewriter")
		}
		model = newOpenAIModel(s.OpenAIAPIKey, s.Rewriter)
	default:
		return nil, fmt.Errorf("unknown rewriter provider %q", s.Rewriter.Provider)
	}
	return &LocalRewriter{fetcher: fetcher, model: model, config: config}, nil
}

// Rewrite implements Rewriter
func (r *LocalRewriter) Rewrite(ctx context.Context, req RewriteRequest) (*RewriteResponse, error) {
	platform, err := ParsePlatform(req.Social)
	if err != nil {
		return nil, err
	}

	log.Printf("→ Fetching %s", req.Source)
	content, err := r.fetcher.FetchContent(ctx, req.Source)
	if err != nil {
		return nil, fmt.Errorf("fetching source: %w", err)
	}

	systemPrompt, err := r.systemPrompt(platform)
	if err != nil {
		return nil, err
	}
	userPrompt, err := r.userPrompt(req.Source, content)
	if err != nil {
		return nil, err
	}

	log.Printf("→ Writing %s variants...", platform)
	text, err := r.model.Complete(ctx, systemPrompt, userPrompt, content)
	if err != nil {
		return nil, fmt.Errorf("rewriter agent failed: %w", err)
	}

	variants, err := parseVariants(text)
	if err != nil {
		return nil, err
	}
	log.Printf("✓ Writing completed: %d variants", len(variants))

	return &RewriteResponse{
		Source:       req.Source,
		Social:       string(platform),
		About:        variants,
		SourceImages: append([]string{}, content.Images...),
	}, nil
}

func (r *LocalRewriter) systemPrompt(p Platform) (string, error) {
	tmpl := r.config.GetRewriterSystemPrompt()
	for _, v := range []string{"{{.platform}}", "{{.variants}}"} {
		if !strings.Contains(tmpl, v) {
			return "", fmt.Errorf("rewriter system prompt template must contain %s variable", v)
		}
	}
	return strings.NewReplacer(
		"{{.platform}}", string(p),
		"{{.guidelines}}", platformGuidelines[p],
		"{{.variants}}", strconv.Itoa(r.config.Settings.Rewriter.Variants),
	).Replace(tmpl), nil
}

func (r *LocalRewriter) userPrompt(sourceURL string, content *ContentResult) (string, error) {
	tmpl := r.config.GetRewriterUserPrompt()
	if !strings.Contains(tmpl, "{{.source_content}}") {
		return "", fmt.Errorf("rewriter user prompt template must contain {{.source_content}} variable")
	}
	text := limitContentTokens(content.Text, r.config.Settings.Rewriter.ContentMaxTokens)
	if text == "" && content.FileID != "" {
		text = "(attached document)"
	}
	return strings.NewReplacer(
		"{{.source_url}}", sourceURL,
		"{{.source_content}}", text,
	).Replace(tmpl), nil
}

// limitContentTokens limits content to approximately N tokens (using 4 chars ≈ 1 token)
func limitContentTokens(content string, maxTokens int) string {
	if maxTokens <= 0 {
		return content
	}
	runes := []rune(content)
	maxChars := maxTokens * 4
	if len(runes) <= maxChars {
		return content
	}
	return string(runes[:maxChars]) + "..."
}

// parseVariants reads {"about": [...]} from a model answer, tolerating a
// surrounding markdown code fence
func parseVariants(text string) ([]Variant, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	var parsed struct {
		About []Variant `json:"about"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse rewriter response: %w", err)
	}
	if len(parsed.About) == 0 {
		return nil, fmt.Errorf("rewriter response has no variants")
	}

	for i := range parsed.About {
		parsed.About[i].Hashtags = normalizeHashtags(parsed.About[i].Hashtags)
	}
	return parsed.About, nil
}

func normalizeHashtags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.Join(strings.Fields(t), "_")
		if t == "" || t == "#" {
			continue
		}
		if !strings.HasPrefix(t, "#") {
			t = "#" + t
		}
		out = append(out, t)
	}
	return out
}

type anthropicModel struct {
	apiKey   string
	schema   string
	settings types.RequestSettings
}

func (m *anthropicModel) Complete(ctx context.Context, systemPrompt, userPrompt string, content *ContentResult) (string, error) {
	var files []types.File
	if content.FileID != "" {
		files = append(files, types.File{ID: content.FileID})
	}

	response, err := anthropic.PromptWithSettings(systemPrompt, userPrompt, m.schema, m.apiKey, m.settings, files...)
	if err != nil {
		return "", err
	}
	if len(response.Content) == 0 {
		return "", fmt.Errorf("no content in response")
	}
	return response.Content[0].Text, nil
}

type openAIModel struct {
	client      openai.Client
	model       string
	maxTokens   int
	temperature float64
}

// newOpenAIModel also serves OpenAI-compatible gateways through base_url
func newOpenAIModel(apiKey string, s RewriterSettings) *openAIModel {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if s.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(s.BaseURL))
	}
	return &openAIModel{
		client:      openai.NewClient(opts...),
		model:       s.Model,
		maxTokens:   s.MaxTokens,
		temperature: s.Temperature,
	}
}

func (m *openAIModel) Complete(ctx context.Context, systemPrompt, userPrompt string, content *ContentResult) (string, error) {
	if content.FileID != "" {
		return "", fmt.Errorf("the openai rewriter cannot read uploaded documents")
	}

	resp, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(m.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		MaxTokens:   openai.Int(int64(m.maxTokens)),
		Temperature: openai.Float(m.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}
	return resp.Choices[0].Message.Content, nil
}
