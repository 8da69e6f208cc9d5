package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaultSettings(t *testing.T) {
	settings, err := loadSettings(writeSettings(t, defaultSettings))
	if err != nil {
		t.Fatalf("loadSettings() error = %v", err)
	}

	if settings.BackendURL != "http://localhost:8000" {
		t.Errorf("BackendURL = %q", settings.BackendURL)
	}
	if settings.RequestTimeout != 60*time.Second {
		t.Errorf("RequestTimeout = %v", settings.RequestTimeout)
	}
	if settings.Rewriter.Mode != "backend" || settings.Rewriter.Variants != 3 {
		t.Errorf("Rewriter = %+v", settings.Rewriter)
	}
	if settings.Export.Directory != "drafts" || settings.Export.Format != "md" {
		t.Errorf("Export = %+v", settings.Export)
	}
}

func TestLoadSettingsEnvOverrides(t *testing.T) {
	t.Setenv("POST_EDITOR_BACKEND_URL", "https://api.example.com")
	t.Setenv("POST_EDITOR_REWRITER", "local")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	settings, err := loadSettings(writeSettings(t, defaultSettings))
	if err != nil {
		t.Fatalf("loadSettings() error = %v", err)
	}

	if settings.BackendURL != "https://api.example.com" {
		t.Errorf("BackendURL = %q", settings.BackendURL)
	}
	if settings.Rewriter.Mode != "local" {
		t.Errorf("Mode = %q", settings.Rewriter.Mode)
	}
	if settings.Telegram.BotToken != "123:abc" || settings.AnthropicAPIKey != "sk-test" {
		t.Error("secrets not read from the environment")
	}
}

func TestLoadSettingsValidation(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		wantErr      string
		wantVariants int
	}{
		{
			name:    "unknown mode",
			content: "rewriter:\n  mode: mock\n",
			wantErr: "rewriter.mode must be backend or local",
		},
		{
			name:         "variants raised to one",
			content:      "rewriter:\n  mode: local\n  variants: -2\n",
			wantVariants: 1,
		},
		{
			name:    "malformed yaml",
			content: "rewriter: [",
			wantErr: "reading",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings, err := loadSettings(writeSettings(t, tt.content))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("loadSettings() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("loadSettings() error = %v", err)
			}
			if settings.Rewriter.Variants != tt.wantVariants {
				t.Errorf("Variants = %d, want %d", settings.Rewriter.Variants, tt.wantVariants)
			}
		})
	}
}

func TestNewConfigOverrides(t *testing.T) {
	settingsPath := writeSettings(t, defaultSettings)
	backend := "http://127.0.0.1:9000"
	templatePath := filepath.Join(t.TempDir(), "template.md")
	os.WriteFile(templatePath, []byte("custom {{.Text}}"), 0644)
	missingPrompt := filepath.Join(t.TempDir(), "missing.md")

	config, err := NewConfig(&ConfigOverrides{
		SettingsPath: &settingsPath,
		BackendURL:   &backend,
		TemplatePath: &templatePath,
		PromptPath:   &missingPrompt,
	})
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}

	if config.Settings.BackendURL != backend {
		t.Errorf("BackendURL = %q, want flag value", config.Settings.BackendURL)
	}
	if config.GetTemplate() != "custom {{.Text}}" {
		t.Errorf("GetTemplate() = %q", config.GetTemplate())
	}
	if config.GetRewriterSystemPrompt() != defaultRewriterSystemPrompt {
		t.Error("unreadable prompt override should fall back to the embedded prompt")
	}
}

func TestEnsureConfigExists(t *testing.T) {
	t.Chdir(t.TempDir())

	if err := ensureConfigExists(); err != nil {
		t.Fatalf("ensureConfigExists() error = %v", err)
	}
	path := getConfigPath("settings.yaml")
	content, err := os.ReadFile(path)
	if err != nil || string(content) != defaultSettings {
		t.Fatalf("settings.yaml not written: %v", err)
	}

	os.WriteFile(path, []byte("backend_url: http://edited\n"), 0644)
	if err := ensureConfigExists(); err != nil {
		t.Fatal(err)
	}
	if content, _ := os.ReadFile(path); string(content) != "backend_url: http://edited\n" {
		t.Error("ensureConfigExists() overwrote an edited settings file")
	}
}

func TestEmbeddedPromptsHavePlaceholders(t *testing.T) {
	for _, want := range []string{"{{.platform}}", "{{.variants}}", "{{.guidelines}}"} {
		if !strings.Contains(defaultRewriterSystemPrompt, want) {
			t.Errorf("system prompt missing %s", want)
		}
	}
	if !strings.Contains(defaultRewriterUserPrompt, "{{.source_content}}") {
		t.Error("user prompt missing {{.source_content}}")
	}
}
