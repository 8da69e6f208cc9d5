package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// AuthState is what the editor needs to know about the session
type AuthState interface {
	IsAuthenticated() bool
	OnChange(fn func(authenticated bool))
}

// NewsAPI stores and schedules finished posts
type NewsAPI interface {
	AddNews(ctx context.Context, source, about, social string, photoURL *string) (*NewsItem, error)
	ApproveNews(ctx context.Context, id int64, publishing time.Time) error
	ForcePostNews(ctx context.Context, id int64) error
}

// Editor is the state behind the editing screen: which platform tab is
// open, the shared source URL, and whether a rewrite is running.
type Editor struct {
	mu         sync.Mutex
	drafts     *DraftStore
	auth       AuthState
	news       NewsAPI
	active     Platform
	sourceURL  string
	rewriting  bool
	fixRequest string
	template   string
}

func NewEditor(drafts *DraftStore, auth AuthState, news NewsAPI) *Editor {
	e := &Editor{
		drafts: drafts,
		auth:   auth,
		news:   news,
		active: PlatformVK,
	}
	auth.OnChange(func(authenticated bool) {
		if authenticated {
			e.checkSecureImage(context.Background())
		}
	})
	return e
}

// Hydrate loads a result produced elsewhere as the first generation of its platform
func (e *Editor) Hydrate(ctx context.Context, resp *RewriteResponse) error {
	p := PlatformVK
	if resp.Social != "" {
		parsed, err := ParsePlatform(resp.Social)
		if err != nil {
			return err
		}
		p = parsed
	}

	if err := e.drafts.Apply(p, resp); err != nil {
		return err
	}

	e.mu.Lock()
	e.active = p
	if resp.Source != "" {
		e.sourceURL = resp.Source
	}
	e.mu.Unlock()

	e.checkSecureImage(ctx)
	return nil
}

// SwitchPlatform changes the active tab. Drafts and the source URL are kept.
func (e *Editor) SwitchPlatform(ctx context.Context, p Platform) error {
	if !p.valid() {
		return fmt.Errorf("%w: %q", ErrUnknownPlatform, p)
	}
	e.mu.Lock()
	e.active = p
	e.mu.Unlock()

	e.checkSecureImage(ctx)
	return nil
}

func (e *Editor) ActivePlatform() Platform {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// SetSourceURL is shared by every platform tab and never clears drafts
func (e *Editor) SetSourceURL(u string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sourceURL = u
}

func (e *Editor) SourceURL() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sourceURL
}

func (e *Editor) IsRewriting() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rewriting
}

// Generate rewrites the current source URL for the active platform
func (e *Editor) Generate(ctx context.Context) (PlatformDraft, error) {
	e.mu.Lock()
	if e.rewriting {
		e.mu.Unlock()
		return PlatformDraft{}, ErrRewriteInProgress
	}
	sourceURL := strings.TrimSpace(e.sourceURL)
	if sourceURL == "" {
		e.mu.Unlock()
		return PlatformDraft{}, ErrEmptySourceURL
	}
	p := e.active
	e.rewriting = true
	e.mu.Unlock()

	_, err := e.drafts.Generate(ctx, p, sourceURL)

	e.mu.Lock()
	e.rewriting = false
	e.mu.Unlock()

	if err != nil {
		return PlatformDraft{}, err
	}

	e.checkSecureImage(ctx)
	return e.drafts.Draft(p)
}

// Regenerate is Generate issued on a draft that already has content
func (e *Editor) Regenerate(ctx context.Context) (PlatformDraft, error) {
	return e.Generate(ctx)
}

func (e *Editor) SelectVariant(i int) error {
	p, err := e.idlePlatform()
	if err != nil {
		return err
	}
	return e.drafts.SelectVariant(p, i)
}

func (e *Editor) EditText(text string) error {
	p, err := e.idlePlatform()
	if err != nil {
		return err
	}
	return e.drafts.EditText(p, text)
}

func (e *Editor) PromoteImage(i int) error {
	p, err := e.idlePlatform()
	if err != nil {
		return err
	}
	return e.drafts.PromoteImage(p, i)
}

// SetFixRequest stores free-text instructions for the next rewrite. Nothing
// consumes them yet.
func (e *Editor) SetFixRequest(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fixRequest = text
}

func (e *Editor) FixRequest() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fixRequest
}

// Current returns a copy of the active platform's draft
func (e *Editor) Current() (Platform, PlatformDraft, error) {
	p := e.ActivePlatform()
	d, err := e.drafts.Draft(p)
	return p, d, err
}

// Publish stores the active draft on the backend and schedules it for at.
// A zero at posts it right away.
func (e *Editor) Publish(ctx context.Context, at time.Time) (*NewsItem, error) {
	if !e.auth.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	if e.IsRewriting() {
		return nil, ErrRewriteInProgress
	}

	p, d, err := e.Current()
	if err != nil {
		return nil, err
	}
	if !d.IsGenerated {
		return nil, fmt.Errorf("publishing %s: %w", p, ErrNotGenerated)
	}
	if strings.TrimSpace(d.Text) == "" {
		return nil, fmt.Errorf("publishing %s: draft text is empty", p)
	}

	var photoURL *string
	if len(d.Images) > 0 && isRemoteImage(d.Images[0]) {
		photoURL = &d.Images[0]
	}

	log.Printf("→ Publishing %s draft", p)
	item, err := e.news.AddNews(ctx, e.SourceURL(), d.Text, string(p), photoURL)
	if err != nil {
		return nil, fmt.Errorf("adding news: %w", err)
	}

	if at.IsZero() {
		if err := e.news.ForcePostNews(ctx, item.ID); err != nil {
			return item, fmt.Errorf("posting news %d: %w", item.ID, err)
		}
		log.Printf("✓ Posted news %d to %s", item.ID, p)
		return item, nil
	}

	if err := e.news.ApproveNews(ctx, item.ID, at); err != nil {
		return item, fmt.Errorf("approving news %d: %w", item.ID, err)
	}
	item.Publishing = at.Format(time.RFC3339)
	log.Printf("✓ Scheduled news %d for %s", item.ID, at.Format(time.RFC3339))
	return item, nil
}

// Export writes the active draft under dir and returns the file path
func (e *Editor) Export(dir, format string) (string, error) {
	p, d, err := e.Current()
	if err != nil {
		return "", err
	}
	if !d.IsGenerated {
		return "", fmt.Errorf("exporting %s: %w", p, ErrNotGenerated)
	}
	return ExportDraft(dir, format, ExportInput{
		SourceURL: e.SourceURL(),
		Platform:  p,
		Draft:     d,
		CreatedAt: time.Now(),
		Template:  e.exportTemplate(),
	})
}

// UseExportTemplate replaces the embedded markdown export template
func (e *Editor) UseExportTemplate(tmpl string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.template = tmpl
}

func (e *Editor) exportTemplate() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.template
}

func (e *Editor) idlePlatform() (Platform, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rewriting {
		return "", ErrRewriteInProgress
	}
	return e.active, nil
}

// checkSecureImage runs whenever a platform becomes active, a draft is
// freshly generated, or the user signs in. Failures are only logged.
func (e *Editor) checkSecureImage(ctx context.Context) {
	p := e.ActivePlatform()
	if _, err := e.drafts.MaterializeSecureImage(ctx, p, e.auth.IsAuthenticated()); err != nil {
		debugLog("secure image for %s: %v", p, err)
	}
}
