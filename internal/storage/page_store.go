package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"pagebuilder/internal/domain"
)

// SQLPageStore persists pages in any of the SQL drivers DB supports.
type SQLPageStore struct {
	db *DB
}

func NewSQLPageStore(db *DB) *SQLPageStore {
	return &SQLPageStore{db: db}
}

// CreatePage inserts p, filling its id, status, version and timestamps
// when unset.
func (s *SQLPageStore) CreatePage(ctx context.Context, p *domain.Page) error {
	preparePage(p, uuid.NewString, time.Now().UTC())
	rec, err := newPageRecord(p)
	if err != nil {
		return err
	}
	_, err = s.db.conn.NamedExecContext(ctx,
		`INSERT INTO pages (`+pageColumns+`)
		 VALUES (:id, :title, :slug, :description, :status, :user_id, :template_id,
		 	:sections_json, :version, :created_at, :updated_at, :published_at)`,
		rec,
	)
	if err != nil {
		return fmt.Errorf("insert page: %w", err)
	}
	return nil
}

func (s *SQLPageStore) GetPage(ctx context.Context, id string) (*domain.Page, error) {
	var rec pageRecord
	err := s.db.conn.GetContext(ctx, &rec,
		s.db.conn.Rebind(`SELECT `+pageColumns+` FROM pages WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get page %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get page %s: %w", id, err)
	}
	p, err := rec.page()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePage writes p if the stored version still equals p.Version, then
// bumps p.Version. A stale version fails with domain.ErrVersionConflict.
func (s *SQLPageStore) UpdatePage(ctx context.Context, p *domain.Page) error {
	now := time.Now().UTC()
	sections, err := encodeSections(p.Sections)
	if err != nil {
		return err
	}
	res, err := s.db.conn.ExecContext(ctx, s.db.conn.Rebind(
		`UPDATE pages SET title = ?, slug = ?, description = ?, status = ?, template_id = ?,
		 sections_json = ?, version = ?, updated_at = ?, published_at = ?
		 WHERE id = ? AND version = ?`),
		p.Title, p.Slug, p.Description, string(p.Status), p.TemplateID,
		sections, p.Version+1, now, p.PublishedAt,
		p.ID, p.Version,
	)
	if err != nil {
		return fmt.Errorf("update page %s: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update page %s: %w", p.ID, err)
	}
	if n == 0 {
		return s.missOrConflict(ctx, p.ID)
	}
	p.Version++
	p.UpdatedAt = now
	return nil
}

func (s *SQLPageStore) missOrConflict(ctx context.Context, id string) error {
	var count int
	if err := s.db.conn.GetContext(ctx, &count,
		s.db.conn.Rebind(`SELECT COUNT(*) FROM pages WHERE id = ?`), id); err != nil {
		return fmt.Errorf("check page %s: %w", id, err)
	}
	if count == 0 {
		return fmt.Errorf("update page %s: %w", id, domain.ErrNotFound)
	}
	return fmt.Errorf("update page %s: %w", id, domain.ErrVersionConflict)
}

func (s *SQLPageStore) DeletePage(ctx context.Context, id string) error {
	res, err := s.db.conn.ExecContext(ctx, s.db.conn.Rebind(`DELETE FROM pages WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete page %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete page %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *SQLPageStore) ListPagesByUser(ctx context.Context, userID string, opts domain.ListOptions) ([]domain.Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages WHERE user_id = ? ORDER BY updated_at DESC, id`
	args := []any{userID}
	if opts.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, opts.Offset)
	}

	var recs []pageRecord
	if err := s.db.conn.SelectContext(ctx, &recs, s.db.conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list pages of %s: %w", userID, err)
	}
	if opts.Limit <= 0 && opts.Offset > 0 {
		recs = lo.Drop(recs, opts.Offset)
	}

	pages := make([]domain.Page, 0, len(recs))
	for _, r := range recs {
		p, err := r.page()
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, nil
}

// Close closes the underlying connection.
func (s *SQLPageStore) Close() error {
	return s.db.Close()
}
