package main

import (
	"fmt"
)

// app is the object graph behind every command. The session is created once
// and handed to whatever needs it.
type app struct {
	config  *Config
	client  *APIClient
	session *Session
	drafts  *DraftStore
	editor  *Editor
}

func newApp(overrides *ConfigOverrides) (*app, error) {
	config, err := NewConfig(overrides)
	if err != nil {
		return nil, err
	}
	s := config.Settings
	debugLog("backend %s, rewriter %s", s.BackendURL, s.Rewriter.Mode)

	client := NewAPIClient(s.BackendURL, s.RequestTimeout)
	session, err := NewSession(client, tokenStore(config))
	if err != nil {
		return nil, fmt.Errorf("restoring session: %w", err)
	}
	client.UseTokens(session)

	var rewriter Rewriter = client
	if s.Rewriter.Mode == "local" {
		local, err := NewLocalRewriter(config, NewContentFetcher(s.AnthropicAPIKey, s.RequestTimeout))
		if err != nil {
			return nil, err
		}
		rewriter = local
	}

	drafts := NewDraftStore(rewriter, client, NewPhotoCache(s.PhotoCacheDir))
	editor := NewEditor(drafts, session, client)
	if overrides != nil && overrides.TemplatePath != nil {
		editor.UseExportTemplate(config.GetTemplate())
	}

	return &app{
		config:  config,
		client:  client,
		session: session,
		drafts:  drafts,
		editor:  editor,
	}, nil
}

func tokenStore(config *Config) TokenStore {
	if config.Overrides != nil && config.Overrides.Ephemeral {
		debugLog("session kept in memory")
		return &MemoryTokenStore{}
	}
	return NewFileTokenStore(config.Settings.SessionFile)
}

// previewer builds the Telegram previewer from settings
func (a *app) previewer() (*TelegramPreviewer, error) {
	t := a.config.Settings.Telegram
	return NewTelegramPreviewer(t.BotToken, t.PreviewChatID)
}
