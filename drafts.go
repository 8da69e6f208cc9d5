package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
)

// Rewriter produces variants of a source for one platform
type Rewriter interface {
	Rewrite(ctx context.Context, req RewriteRequest) (*RewriteResponse, error)
}

// PhotoFetcher downloads photos that need an authenticated request
type PhotoFetcher interface {
	GetPhoto(ctx context.Context, photoID string) ([]byte, string, error)
}

// PlatformDraft is the editable working copy for one platform
type PlatformDraft struct {
	IsGenerated          bool
	Variants             []Variant
	SelectedVariantIndex int
	Text                 string
	Images               []string // index 0 is the cover image
	PhotoID              string   // empty when the rewrite returned no secure photo
}

// SelectedVariant returns the variant the text was last composed from
func (d PlatformDraft) SelectedVariant() (Variant, bool) {
	if d.SelectedVariantIndex < 0 || d.SelectedVariantIndex >= len(d.Variants) {
		return Variant{}, false
	}
	return d.Variants[d.SelectedVariantIndex], true
}

func (d PlatformDraft) clone() PlatformDraft {
	c := d
	c.Variants = make([]Variant, len(d.Variants))
	for i, v := range d.Variants {
		v.Hashtags = append([]string(nil), v.Hashtags...)
		c.Variants[i] = v
	}
	c.Images = append([]string{}, d.Images...)
	return c
}

type draftState struct {
	PlatformDraft
	generation       int // bumped by every Apply
	sourceImageCount int
	secureLoaded     bool
	secureLoading    bool
}

// FormatVariant composes the post body shown in the editor
func FormatVariant(v Variant) string {
	return v.Title + "\n\n" + v.Body + "\n\n" + strings.Join(v.Hashtags, " ")
}

// DraftStore keeps one independent draft per platform. The mutex protects
// memory only: a Generate and edits issued while it runs are not ordered, and
// the last response to arrive wins.
type DraftStore struct {
	mu       sync.Mutex
	rewriter Rewriter
	photos   PhotoFetcher
	blobs    BlobStore
	drafts   map[Platform]*draftState
}

func NewDraftStore(rewriter Rewriter, photos PhotoFetcher, blobs BlobStore) *DraftStore {
	s := &DraftStore{
		rewriter: rewriter,
		photos:   photos,
		blobs:    blobs,
		drafts:   make(map[Platform]*draftState, len(Platforms)),
	}
	for _, p := range Platforms {
		s.drafts[p] = &draftState{PlatformDraft: PlatformDraft{Images: []string{}}}
	}
	return s
}

// Draft returns a copy of the platform's draft
func (s *DraftStore) Draft(p Platform) (PlatformDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.get(p)
	if err != nil {
		return PlatformDraft{}, err
	}
	return d.clone(), nil
}

// Generate rewrites sourceURL for p and replaces the platform's draft. The
// draft is left as it was if the rewrite fails.
func (s *DraftStore) Generate(ctx context.Context, p Platform, sourceURL string) (PlatformDraft, error) {
	if !p.valid() {
		return PlatformDraft{}, fmt.Errorf("%w: %q", ErrUnknownPlatform, p)
	}

	log.Printf("→ Rewriting %s for %s", sourceURL, p)
	resp, err := s.rewriter.Rewrite(ctx, RewriteRequest{Source: sourceURL, Social: string(p)})
	if err != nil {
		return PlatformDraft{}, fmt.Errorf("rewriting for %s: %w", p, err)
	}

	if err := s.Apply(p, resp); err != nil {
		return PlatformDraft{}, err
	}
	log.Printf("✓ %d variants for %s", len(resp.About), p)
	return s.Draft(p)
}

// Apply replaces the platform's draft with a rewrite result
func (s *DraftStore) Apply(p Platform, resp *RewriteResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.get(p)
	if err != nil {
		return err
	}

	variants := make([]Variant, len(resp.About))
	copy(variants, resp.About)

	text := ""
	if len(variants) > 0 {
		text = FormatVariant(variants[0])
	}

	photoID := ""
	if resp.PhotoUUID != nil {
		photoID = *resp.PhotoUUID
	}

	*d = draftState{
		PlatformDraft: PlatformDraft{
			IsGenerated:          true,
			Variants:             variants,
			SelectedVariantIndex: 0,
			Text:                 text,
			Images:               append([]string{}, resp.SourceImages...),
			PhotoID:              photoID,
		},
		generation:       d.generation + 1,
		sourceImageCount: len(resp.SourceImages),
	}
	return nil
}

// SelectVariant recomposes the text from variant i. Manual edits to the text
// are discarded.
func (s *DraftStore) SelectVariant(p Platform, i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.get(p)
	if err != nil {
		return err
	}
	if i < 0 || i >= len(d.Variants) {
		return fmt.Errorf("%w: %d of %d", ErrVariantOutOfRange, i, len(d.Variants))
	}
	d.SelectedVariantIndex = i
	d.Text = FormatVariant(d.Variants[i])
	return nil
}

func (s *DraftStore) EditText(p Platform, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.get(p)
	if err != nil {
		return err
	}
	d.Text = text
	return nil
}

// PromoteImage makes image i the cover by swapping it with image 0
func (s *DraftStore) PromoteImage(p Platform, i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.get(p)
	if err != nil {
		return err
	}
	if i == 0 {
		return nil
	}
	if i < 0 || i >= len(d.Images) {
		return fmt.Errorf("%w: %d of %d", ErrImageOutOfRange, i, len(d.Images))
	}
	d.Images[0], d.Images[i] = d.Images[i], d.Images[0]
	return nil
}

// MaterializeSecureImage downloads the draft's secure photo and appends a
// local handle to its images. It runs at most once per generation and reports
// whether an image was added.
func (s *DraftStore) MaterializeSecureImage(ctx context.Context, p Platform, authenticated bool) (bool, error) {
	s.mu.Lock()
	d, err := s.get(p)
	if err != nil {
		s.mu.Unlock()
		return false, err
	}
	if !authenticated || !d.IsGenerated || d.PhotoID == "" || d.secureLoaded || d.secureLoading ||
		len(d.Images) > d.sourceImageCount || s.photos == nil || s.blobs == nil {
		s.mu.Unlock()
		return false, nil
	}
	d.secureLoading = true
	photoID, generation := d.PhotoID, d.generation
	s.mu.Unlock()

	handle, err := s.fetchPhoto(ctx, photoID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if d.generation != generation {
		debugLog("dropping photo %s: %s draft was regenerated", photoID, p)
		return false, nil
	}
	d.secureLoading = false
	if err != nil {
		log.Printf("✗ Loading secure photo %s: %v", photoID, err)
		return false, err
	}
	if len(d.Images) > d.sourceImageCount {
		return false, nil
	}
	d.Images = append(d.Images, handle)
	d.secureLoaded = true
	debugLog("secure photo %s added to %s draft", photoID, p)
	return true, nil
}

func (s *DraftStore) fetchPhoto(ctx context.Context, photoID string) (string, error) {
	if handle, ok := s.blobs.Lookup(photoID); ok {
		return handle, nil
	}
	data, contentType, err := s.photos.GetPhoto(ctx, photoID)
	if err != nil {
		return "", fmt.Errorf("fetching photo: %w", err)
	}
	return s.blobs.Put(photoID, data, contentType)
}

func (s *DraftStore) get(p Platform) (*draftState, error) {
	d, ok := s.drafts[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, p)
	}
	return d, nil
}
