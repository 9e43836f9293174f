package content

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Page is one editable page.
type Page struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by"`
}

// PageInput carries the writable fields of a page.
type PageInput struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

func (in PageInput) validate() error {
	if !slugPattern.MatchString(in.Slug) {
		return fmt.Errorf("%w: slug %q", ErrInvalid, in.Slug)
	}
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title required", ErrInvalid)
	}
	return nil
}

// Pages is an in-memory page store.
type Pages struct {
	now func() time.Time

	mu     sync.RWMutex
	byID   map[string]Page
	bySlug map[string]string
}

// NewPages creates an empty store. A nil now uses time.Now.
func NewPages(now func() time.Time) *Pages {
	if now == nil {
		now = time.Now
	}
	return &Pages{
		now:    now,
		byID:   make(map[string]Page),
		bySlug: make(map[string]string),
	}
}

// List returns every page ordered by slug.
func (p *Pages) List(_ context.Context) []Page {
	p.mu.RLock()
	out := make([]Page, 0, len(p.byID))
	for _, page := range p.byID {
		out = append(out, page)
	}
	p.mu.RUnlock()

	slices.SortFunc(out, func(a, b Page) int { return strings.Compare(a.Slug, b.Slug) })
	return out
}

// Get returns the page with id.
func (p *Pages) Get(_ context.Context, id string) (Page, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	page, ok := p.byID[id]
	if !ok {
		return Page{}, fmt.Errorf("%w: page %s", ErrNotFound, id)
	}
	return page, nil
}

// Create stores a new page edited by editorID.
func (p *Pages) Create(_ context.Context, editorID string, in PageInput) (Page, error) {
	if err := in.validate(); err != nil {
		return Page{}, err
	}

	now := p.now().UTC()
	page := Page{
		ID:        uuid.NewString(),
		Slug:      in.Slug,
		Title:     strings.TrimSpace(in.Title),
		Body:      in.Body,
		CreatedAt: now,
		UpdatedAt: now,
		UpdatedBy: editorID,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, taken := p.bySlug[in.Slug]; taken {
		return Page{}, fmt.Errorf("%w: slug %s", ErrConflict, in.Slug)
	}
	p.byID[page.ID] = page
	p.bySlug[page.Slug] = page.ID
	return page, nil
}

// Update replaces the writable fields of page id.
func (p *Pages) Update(_ context.Context, editorID, id string, in PageInput) (Page, error) {
	if err := in.validate(); err != nil {
		return Page{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	page, ok := p.byID[id]
	if !ok {
		return Page{}, fmt.Errorf("%w: page %s", ErrNotFound, id)
	}
	if in.Slug != page.Slug {
		if _, taken := p.bySlug[in.Slug]; taken {
			return Page{}, fmt.Errorf("%w: slug %s", ErrConflict, in.Slug)
		}
		delete(p.bySlug, page.Slug)
		p.bySlug[in.Slug] = id
	}

	page.Slug = in.Slug
	page.Title = strings.TrimSpace(in.Title)
	page.Body = in.Body
	page.UpdatedAt = p.now().UTC()
	page.UpdatedBy = editorID
	p.byID[id] = page
	return page, nil
}

// Delete removes page id.
func (p *Pages) Delete(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	page, ok := p.byID[id]
	if !ok {
		return fmt.Errorf("%w: page %s", ErrNotFound, id)
	}
	delete(p.byID, id)
	delete(p.bySlug, page.Slug)
	return nil
}
