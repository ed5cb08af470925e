package domain

import (
	"context"
	"time"
)

// PageVersion is a published snapshot of a page's sections.
type PageVersion struct {
	ID        string    `json:"id"`
	PageID    string    `json:"pageId"`
	Version   int       `json:"version"`
	Sections  []Section `json:"sections"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	Message   string    `json:"message"`
}

// VersionStore keeps published snapshots, newest first on listing.
type VersionStore interface {
	CreateVersion(ctx context.Context, v *PageVersion) error
	GetVersion(ctx context.Context, id string) (*PageVersion, error)
	ListVersions(ctx context.Context, pageID string) ([]PageVersion, error)
	DeleteVersionsByPage(ctx context.Context, pageID string) error
}
