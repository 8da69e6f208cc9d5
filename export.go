package main

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/yuin/goldmark"
)

// ExportInput is everything written for one exported draft
type ExportInput struct {
	SourceURL string
	Platform  Platform
	Draft     PlatformDraft
	CreatedAt time.Time
	Template  string // markdown template, embedded default when empty
}

type exportView struct {
	Title     string
	SourceURL string
	Platform  Platform
	Hash      string
	CreatedAt time.Time
	Hashtags  []string
	Images    []string
	Text      string
	HTML      template.HTML
}

var htmlPage = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<meta name="source_url" content="{{.SourceURL}}">
<meta name="platform" content="{{.Platform}}">
</head>
<body>
<article>
{{- range .Images}}
<img src="{{.}}" alt="">
{{- end}}
{{.HTML}}
</article>
</body>
</html>
`))

// ExportDraft writes a draft as markdown ("md") or HTML ("html") under
// dir/YYYY/MM/. A second export of the same source and platform replaces the
// first one.
func ExportDraft(dir, format string, in ExportInput) (string, error) {
	if format == "" {
		format = "md"
	}
	if format != "md" && format != "html" {
		return "", fmt.Errorf("unsupported export format %q", format)
	}

	view := newExportView(in)

	var buf bytes.Buffer
	switch format {
	case "md":
		tmplText := in.Template
		if tmplText == "" {
			tmplText = defaultTemplate
		}
		tmpl, err := texttemplate.New("draft").Parse(tmplText)
		if err != nil {
			return "", fmt.Errorf("parsing template: %w", err)
		}
		if err := tmpl.Execute(&buf, view); err != nil {
			return "", fmt.Errorf("executing template: %w", err)
		}
	case "html":
		var body bytes.Buffer
		if err := goldmark.Convert([]byte(in.Draft.Text), &body); err != nil {
			return "", fmt.Errorf("rendering markdown: %w", err)
		}
		view.HTML = template.HTML(body.String())
		if err := htmlPage.Execute(&buf, view); err != nil {
			return "", fmt.Errorf("executing html template: %w", err)
		}
	}

	filename := findExistingExport(dir, view.Hash, format)
	if filename == "" {
		filename = exportFilename(dir, view, format)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}
	if err := os.WriteFile(filename, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("writing export: %w", err)
	}
	return filename, nil
}

func newExportView(in ExportInput) exportView {
	view := exportView{
		SourceURL: in.SourceURL,
		Platform:  in.Platform,
		Hash:      exportHash(in.SourceURL, in.Platform),
		CreatedAt: in.CreatedAt,
		Text:      in.Draft.Text,
	}
	for _, img := range in.Draft.Images {
		if isRemoteImage(img) {
			view.Images = append(view.Images, img)
		} else if path, ok := localPath(img); ok {
			view.Images = append(view.Images, path)
		}
	}
	if v, ok := in.Draft.SelectedVariant(); ok {
		view.Title = v.Title
		view.Hashtags = v.Hashtags
	}
	if view.Title == "" {
		view.Title = firstLine(in.Draft.Text)
	}
	return view
}

// exportHash identifies a source and platform pair
func exportHash(sourceURL string, p Platform) string {
	h := sha256.Sum256([]byte(sourceURL + "|" + string(p)))
	return fmt.Sprintf("%x", h)[:8]
}

// exportFilename uses the export date in YYYY/MM/slug-hash format
func exportFilename(dir string, view exportView, format string) string {
	slug := generateSlugFromTitle(view.Title)
	year := view.CreatedAt.Format("2006")
	month := view.CreatedAt.Format("01")
	return filepath.Join(dir, year, month, fmt.Sprintf("%s-%s.%s", slug, view.Hash, format))
}

// findExistingExport looks for an earlier export with the same hash
func findExistingExport(dir, hash, format string) string {
	matches, err := filepath.Glob(filepath.Join(dir, "*", "*", fmt.Sprintf("*-%s.%s", hash, format)))
	if err != nil || len(matches) == 0 {
		return ""
	}
	return matches[0]
}

var (
	slugInvalidRe = regexp.MustCompile(`[^\p{L}\p{N}]+`)
	slugDashRe    = regexp.MustCompile(`-+`)
)

// generateSlugFromTitle creates a filename slug from a title. Letters of any
// script are kept.
func generateSlugFromTitle(title string) string {
	if title == "" {
		return "post"
	}

	slug := strings.ToLower(title)
	slug = slugInvalidRe.ReplaceAllString(slug, "-")
	slug = slugDashRe.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	// Limit length to avoid filesystem issues
	if runes := []rune(slug); len(runes) > 50 {
		slug = strings.Trim(string(runes[:50]), "-")
	}

	if slug == "" {
		return "post"
	}
	return slug
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	return strings.TrimSpace(line)
}
