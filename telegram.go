package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	telegramCaptionLimit = 1024
	telegramMessageLimit = 4096
)

// telegramSender is the part of *bot.Bot used for previews
type telegramSender interface {
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramPreviewer posts a draft to a private chat so it can be checked the
// way subscribers will see it
type TelegramPreviewer struct {
	sender telegramSender
	chatID int64
}

func NewTelegramPreviewer(token string, chatID int64) (*TelegramPreviewer, error) {
	if token == "" {
		return nil, fmt.Errorf("bot token required: set TELEGRAM_BOT_TOKEN")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram.preview_chat_id is not set")
	}
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	return &TelegramPreviewer{sender: b, chatID: chatID}, nil
}

// Preview sends the cover image with the text as caption when it fits,
// otherwise the image followed by the text in as many messages as needed
func (p *TelegramPreviewer) Preview(ctx context.Context, d PlatformDraft) error {
	text := strings.TrimSpace(d.Text)
	if text == "" && len(d.Images) == 0 {
		return fmt.Errorf("nothing to preview: draft has no text and no images")
	}

	if len(d.Images) > 0 {
		photo, err := telegramPhoto(d.Images[0])
		if err != nil {
			return err
		}
		params := &bot.SendPhotoParams{ChatID: p.chatID, Photo: photo}
		if runeCount(text) <= telegramCaptionLimit {
			params.Caption = text
			text = ""
		}
		if _, err := p.sender.SendPhoto(ctx, params); err != nil {
			return fmt.Errorf("sending preview photo: %w", err)
		}
	}

	for _, chunk := range splitMessage(text, telegramMessageLimit) {
		if _, err := p.sender.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: p.chatID,
			Text:   chunk,
		}); err != nil {
			return fmt.Errorf("sending preview text: %w", err)
		}
	}

	log.Printf("✓ Preview sent to chat %d", p.chatID)
	return nil
}

func telegramPhoto(ref string) (models.InputFile, error) {
	if isRemoteImage(ref) {
		return &models.InputFileString{Data: ref}, nil
	}
	path, ok := localPath(ref)
	if !ok {
		path = ref
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading preview photo: %w", err)
	}
	return &models.InputFileUpload{Filename: filepath.Base(path), Data: bytes.NewReader(data)}, nil
}

// splitMessage cuts text into chunks of at most limit runes, preferring to
// break after a newline
func splitMessage(text string, limit int) []string {
	var chunks []string
	runes := []rune(strings.TrimSpace(text))
	for len(runes) > 0 {
		if len(runes) <= limit {
			chunks = append(chunks, string(runes))
			break
		}
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		chunks = append(chunks, strings.TrimSpace(string(runes[:cut])))
		runes = []rune(strings.TrimSpace(string(runes[cut:])))
	}
	return chunks
}

func runeCount(s string) int {
	return len([]rune(s))
}
