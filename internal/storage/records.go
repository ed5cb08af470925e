package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"pagebuilder/internal/domain"
)

// pageRecord is the row/document shape of a page. Sections are kept as JSON
// text: element content is a tagged union neither SQL nor BSON can decode
// into an interface.
type pageRecord struct {
	ID           string     `db:"id"            bson:"_id"`
	Title        string     `db:"title"         bson:"title"`
	Slug         string     `db:"slug"          bson:"slug"`
	Description  string     `db:"description"   bson:"description"`
	Status       string     `db:"status"        bson:"status"`
	UserID       string     `db:"user_id"       bson:"user_id"`
	TemplateID   string     `db:"template_id"   bson:"template_id"`
	SectionsJSON string     `db:"sections_json" bson:"sections_json"`
	Version      int        `db:"version"       bson:"version"`
	CreatedAt    time.Time  `db:"created_at"    bson:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    bson:"updated_at"`
	PublishedAt  *time.Time `db:"published_at"  bson:"published_at"`
}

const pageColumns = `id, title, slug, description, status, user_id, template_id,
	sections_json, version, created_at, updated_at, published_at`

func newPageRecord(p *domain.Page) (pageRecord, error) {
	sections, err := encodeSections(p.Sections)
	if err != nil {
		return pageRecord{}, err
	}
	return pageRecord{
		ID:           p.ID,
		Title:        p.Title,
		Slug:         p.Slug,
		Description:  p.Description,
		Status:       string(p.Status),
		UserID:       p.UserID,
		TemplateID:   p.TemplateID,
		SectionsJSON: sections,
		Version:      p.Version,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
		PublishedAt:  p.PublishedAt,
	}, nil
}

func (r pageRecord) page() (domain.Page, error) {
	sections, err := decodeSections(r.SectionsJSON)
	if err != nil {
		return domain.Page{}, fmt.Errorf("page %s: %w", r.ID, err)
	}
	return domain.Page{
		ID:          r.ID,
		Title:       r.Title,
		Slug:        r.Slug,
		Description: r.Description,
		Status:      domain.PageStatus(r.Status),
		UserID:      r.UserID,
		TemplateID:  r.TemplateID,
		Sections:    sections,
		Version:     r.Version,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		PublishedAt: r.PublishedAt,
	}, nil
}

type versionRecord struct {
	ID           string    `db:"id"            bson:"_id"`
	PageID       string    `db:"page_id"       bson:"page_id"`
	Version      int       `db:"version"       bson:"version"`
	SectionsJSON string    `db:"sections_json" bson:"sections_json"`
	CreatedBy    string    `db:"created_by"    bson:"created_by"`
	Message      string    `db:"message"       bson:"message"`
	CreatedAt    time.Time `db:"created_at"    bson:"created_at"`
}

const versionColumns = `id, page_id, version, sections_json, created_by, message, created_at`

func newVersionRecord(v *domain.PageVersion) (versionRecord, error) {
	sections, err := encodeSections(v.Sections)
	if err != nil {
		return versionRecord{}, err
	}
	return versionRecord{
		ID:           v.ID,
		PageID:       v.PageID,
		Version:      v.Version,
		SectionsJSON: sections,
		CreatedBy:    v.CreatedBy,
		Message:      v.Message,
		CreatedAt:    v.CreatedAt,
	}, nil
}

func (r versionRecord) version() (domain.PageVersion, error) {
	sections, err := decodeSections(r.SectionsJSON)
	if err != nil {
		return domain.PageVersion{}, fmt.Errorf("version %s: %w", r.ID, err)
	}
	return domain.PageVersion{
		ID:        r.ID,
		PageID:    r.PageID,
		Version:   r.Version,
		Sections:  sections,
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt,
		Message:   r.Message,
	}, nil
}

func encodeSections(sections []domain.Section) (string, error) {
	if sections == nil {
		sections = []domain.Section{}
	}
	data, err := json.Marshal(sections)
	if err != nil {
		return "", fmt.Errorf("encode sections: %w", err)
	}
	return string(data), nil
}

func decodeSections(s string) ([]domain.Section, error) {
	sections := []domain.Section{}
	if s == "" {
		return sections, nil
	}
	if err := json.Unmarshal([]byte(s), &sections); err != nil {
		return nil, fmt.Errorf("decode sections: %w", err)
	}
	return sections, nil
}

// preparePage fills the fields a new page gets on creation.
func preparePage(p *domain.Page, newID func() string, now time.Time) {
	if p.ID == "" {
		p.ID = newID()
	}
	if p.Status == "" {
		p.Status = domain.PageStatusDraft
	}
	if p.Version <= 0 {
		p.Version = 1
	}
	if p.Sections == nil {
		p.Sections = []domain.Section{}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
}
