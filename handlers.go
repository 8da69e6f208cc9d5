package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/aktagon/llmkit/anthropic"
)

const maxPageImages = 10

// HTTPError represents an HTTP error with status code
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

// ContentHandler processes URLs based on response inspection
type ContentHandler interface {
	CanHandle(url string, resp *http.Response) bool
	Handle(url string, resp *http.Response) (*ContentResult, error)
}

var debugEnabled bool

// SetDebugMode enables or disables debug logging
func SetDebugMode(enabled bool) {
	debugEnabled = enabled
}

func debugLog(format string, args ...interface{}) {
	if debugEnabled {
		log.Printf("[DEBUG] "+format, args...)
	}
}

// TelegramPostHandler handles public t.me post pages, which carry the post
// text and photos in their widget markup
type TelegramPostHandler struct{}

var backgroundImageRe = regexp.MustCompile(`background-image:\s*url\(['"]?([^'")]+)['"]?\)`)

func (h *TelegramPostHandler) CanHandle(rawURL string, resp *http.Response) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	return host == "t.me" || host == "telegram.me"
}

func (h *TelegramPostHandler) Handle(rawURL string, resp *http.Response) (*ContentResult, error) {
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing telegram post: %w", err)
	}

	text := strings.TrimSpace(doc.Find(".tgme_widget_message_text").First().Text())
	if text == "" {
		text = metaContent(doc, "og:description")
	}
	if text == "" {
		return nil, fmt.Errorf("no post text found at %s", rawURL)
	}

	var images []string
	if og := metaContent(doc, "og:image"); og != "" {
		images = append(images, og)
	}
	doc.Find(".tgme_widget_message_photo_wrap").Each(func(_ int, sel *goquery.Selection) {
		style, _ := sel.Attr("style")
		if m := backgroundImageRe.FindStringSubmatch(style); m != nil {
			images = appendUnique(images, resolveURL(rawURL, m[1]))
		}
	})

	debugLog("telegram post %s: %d chars, %d images", rawURL, len(text), len(images))
	return &ContentResult{Text: text, Images: limitImages(images)}, nil
}

// PDFHandler uploads PDF sources so the model can read them directly
type PDFHandler struct {
	apiKey string
}

func (h *PDFHandler) CanHandle(url string, resp *http.Response) bool {
	// Check URL extension first
	if strings.HasSuffix(strings.ToLower(url), ".pdf") {
		return true
	}

	// Check content-type header
	contentType := resp.Header.Get("Content-Type")
	return strings.Contains(contentType, "application/pdf")
}

func (h *PDFHandler) Handle(url string, resp *http.Response) (*ContentResult, error) {
	tempFile, err := os.CreateTemp("", "source-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("creating temporary file: %w", err)
	}
	defer os.Remove(tempFile.Name())
	defer tempFile.Close()

	if _, err := io.Copy(tempFile, resp.Body); err != nil {
		return nil, fmt.Errorf("downloading PDF content: %w", err)
	}

	// Close the file so it can be opened by UploadFile
	tempFile.Close()

	file, err := anthropic.UploadFile(tempFile.Name(), h.apiKey)
	if err != nil {
		return nil, fmt.Errorf("uploading PDF file: %w", err)
	}

	return &ContentResult{FileID: file.ID}, nil
}

// HTMLHandler handles regular HTML content (fallback)
type HTMLHandler struct {
	converter *md.Converter
}

func (h *HTMLHandler) CanHandle(url string, resp *http.Response) bool {
	return true // Always handles as fallback
}

func (h *HTMLHandler) Handle(rawURL string, resp *http.Response) (*ContentResult, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	markdown, err := h.converter.ConvertString(string(body))
	if err != nil {
		return nil, fmt.Errorf("converting HTML to markdown: %w", err)
	}

	return &ContentResult{Text: markdown, Images: pageImages(rawURL, body)}, nil
}

// pageImages returns the og:image followed by the page's <img> sources
func pageImages(pageURL string, body []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		debugLog("parsing %s for images: %v", pageURL, err)
		return nil
	}

	var images []string
	if og := metaContent(doc, "og:image"); og != "" {
		images = append(images, resolveURL(pageURL, og))
	}
	doc.Find("article img[src], main img[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		if strings.HasPrefix(src, "data:") {
			return
		}
		images = appendUnique(images, resolveURL(pageURL, src))
	})
	return limitImages(images)
}

func metaContent(doc *goquery.Document, property string) string {
	sel := doc.Find(fmt.Sprintf(`meta[property="%s"]`, property)).First()
	if sel.Length() == 0 {
		sel = doc.Find(fmt.Sprintf(`meta[name="%s"]`, property)).First()
	}
	content, _ := sel.Attr("content")
	return strings.TrimSpace(content)
}

func resolveURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}

func limitImages(images []string) []string {
	if len(images) > maxPageImages {
		return images[:maxPageImages]
	}
	return images
}
