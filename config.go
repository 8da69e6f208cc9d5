package main

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const defaultConfigDir = ".post-editor"

// ConfigOverrides allows overriding embedded defaults and settings from flags
type ConfigOverrides struct {
	SettingsPath *string
	BackendURL   *string
	TemplatePath *string
	PromptPath   *string
	Ephemeral    bool // keep the session in memory only
}

//go:embed config/settings.yaml
var defaultSettings string

//go:embed config/rewriter-system-prompt.md
var defaultRewriterSystemPrompt string

//go:embed config/rewriter-user-prompt.md
var defaultRewriterUserPrompt string

//go:embed config/rewrite-output-schema.json
var defaultRewriteSchema string

//go:embed config/draft-template.md
var defaultTemplate string

// RewriterSettings configures rewriting. Mode "backend" uses the post service,
// "local" calls a model provider directly.
type RewriterSettings struct {
	Mode             string  `yaml:"mode" env:"POST_EDITOR_REWRITER" env-default:"backend"`
	Provider         string  `yaml:"provider" env:"POST_EDITOR_REWRITER_PROVIDER" env-default:"anthropic"`
	Model            string  `yaml:"model" env:"POST_EDITOR_REWRITER_MODEL" env-default:"claude-sonnet-4-20250514"`
	BaseURL          string  `yaml:"base_url" env:"POST_EDITOR_REWRITER_BASE_URL"`
	MaxTokens        int     `yaml:"max_tokens" env-default:"4000"`
	Temperature      float64 `yaml:"temperature" env-default:"0.7"`
	Variants         int     `yaml:"variants" env-default:"3"`
	ContentMaxTokens int     `yaml:"content_max_tokens" env-default:"3000"`
}

type ExportSettings struct {
	Directory string `yaml:"directory" env:"POST_EDITOR_EXPORT_DIR" env-default:"drafts"`
	Format    string `yaml:"format" env-default:"md"`
}

type TelegramSettings struct {
	PreviewChatID int64  `yaml:"preview_chat_id" env:"POST_EDITOR_PREVIEW_CHAT_ID"`
	BotToken      string `yaml:"-" env:"TELEGRAM_BOT_TOKEN"`
}

// Settings represents settings.yaml. Every key can be overridden from the
// environment; API keys are read from the environment only.
type Settings struct {
	BackendURL     string           `yaml:"backend_url" env:"POST_EDITOR_BACKEND_URL" env-default:"http://localhost:8000"`
	RequestTimeout time.Duration    `yaml:"request_timeout" env:"POST_EDITOR_TIMEOUT" env-default:"60s"`
	SessionFile    string           `yaml:"session_file" env:"POST_EDITOR_SESSION_FILE" env-default:".post-editor/session.yaml"`
	PhotoCacheDir  string           `yaml:"photo_cache_dir" env:"POST_EDITOR_PHOTO_CACHE" env-default:".cache/photos"`
	Export         ExportSettings   `yaml:"export"`
	Rewriter       RewriterSettings `yaml:"rewriter"`
	Telegram       TelegramSettings `yaml:"telegram"`

	AnthropicAPIKey string `yaml:"-" env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey    string `yaml:"-" env:"OPENAI_API_KEY"`
}

// Config holds settings and overrides
type Config struct {
	Settings  *Settings
	Overrides *ConfigOverrides
}

// NewConfig writes the default settings on first run and loads them
func NewConfig(overrides *ConfigOverrides) (*Config, error) {
	if overrides == nil {
		overrides = &ConfigOverrides{}
	}

	settingsPath := getConfigPath("settings.yaml")
	if overrides.SettingsPath != nil {
		settingsPath = *overrides.SettingsPath
	} else if err := ensureConfigExists(); err != nil {
		return nil, fmt.Errorf("ensuring config files exist: %w", err)
	}

	settings, err := loadSettings(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if overrides.BackendURL != nil {
		settings.BackendURL = *overrides.BackendURL
	}

	return &Config{Settings: settings, Overrides: overrides}, nil
}

// GetRewriterSystemPrompt returns the rewriter system prompt (from override file or embedded)
func (c *Config) GetRewriterSystemPrompt() string {
	if c.Overrides != nil && c.Overrides.PromptPath != nil {
		if content, err := os.ReadFile(*c.Overrides.PromptPath); err == nil {
			return string(content)
		}
	}
	return defaultRewriterSystemPrompt
}

func (c *Config) GetRewriterUserPrompt() string {
	return defaultRewriterUserPrompt
}

func (c *Config) GetRewriteSchema() string {
	return defaultRewriteSchema
}

// GetTemplate returns the export template (from override file or embedded)
func (c *Config) GetTemplate() string {
	if c.Overrides != nil && c.Overrides.TemplatePath != nil {
		if content, err := os.ReadFile(*c.Overrides.TemplatePath); err == nil {
			return string(content)
		}
	}
	return defaultTemplate
}

func loadSettings(settingsPath string) (*Settings, error) {
	var settings Settings
	if err := cleanenv.ReadConfig(settingsPath, &settings); err != nil {
		return nil, fmt.Errorf("reading %s: %w", settingsPath, err)
	}
	if settings.Rewriter.Mode != "backend" && settings.Rewriter.Mode != "local" {
		return nil, fmt.Errorf("rewriter.mode must be backend or local, got %q", settings.Rewriter.Mode)
	}
	if settings.Rewriter.Variants < 1 {
		settings.Rewriter.Variants = 1
	}
	return &settings, nil
}

// getConfigPath returns the path to a config file in the .post-editor directory
func getConfigPath(filename string) string {
	return filepath.Join(defaultConfigDir, filename)
}

// ensureConfigExists creates the config directory and writes settings.yaml if needed
func ensureConfigExists() error {
	if err := os.MkdirAll(defaultConfigDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	settingsFile := getConfigPath("settings.yaml")
	if _, err := os.Stat(settingsFile); os.IsNotExist(err) {
		if err := os.WriteFile(settingsFile, []byte(defaultSettings), 0644); err != nil {
			return fmt.Errorf("writing settings.yaml: %w", err)
		}
	}
	return nil
}
