package domain

import (
	"context"
	"time"
)

type PageStatus string

const (
	PageStatusDraft           PageStatus = "draft"
	PageStatusPublished       PageStatus = "published"
	PageStatusArchived        PageStatus = "archived"
	PageStatusPendingApproval PageStatus = "pending_approval"
)

// Page is the root document edited by a session.
type Page struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Description string     `json:"description"`
	Status      PageStatus `json:"status"`
	UserID      string     `json:"userId"` // owner
	TemplateID  string     `json:"templateId"`
	Sections    []Section  `json:"sections"`
	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	PublishedAt *time.Time `json:"publishedAt"`
}

// Clone returns a deep copy of the page, sections included.
func (p *Page) Clone() *Page {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Sections = CloneSections(p.Sections)
	if p.PublishedAt != nil {
		t := *p.PublishedAt
		cp.PublishedAt = &t
	}
	return &cp
}

// ListOptions paginates ListPagesByUser. A zero Limit means no limit.
type ListOptions struct {
	Limit  int
	Offset int
}

// PageStore persists pages. Implementations report ErrNotFound for
// unknown ids and ErrVersionConflict when an update loses a race.
type PageStore interface {
	CreatePage(ctx context.Context, p *Page) error
	GetPage(ctx context.Context, id string) (*Page, error)
	UpdatePage(ctx context.Context, p *Page) error
	DeletePage(ctx context.Context, id string) error
	// ListPagesByUser returns the user's pages, most recently updated first.
	ListPagesByUser(ctx context.Context, userID string, opts ListOptions) ([]Page, error)
	Close() error
}
