package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"pagebuilder/internal/domain"
)

// DefaultMaxVersions bounds the published versions kept per page.
const DefaultMaxVersions = 20

// SQLVersionStore keeps published page snapshots.
type SQLVersionStore struct {
	db         *DB
	maxPerPage int
}

// NewSQLVersionStore creates a store keeping at most maxPerPage versions
// of each page; older versions are pruned on insert.
func NewSQLVersionStore(db *DB, maxPerPage int) *SQLVersionStore {
	if maxPerPage <= 0 {
		maxPerPage = DefaultMaxVersions
	}
	return &SQLVersionStore{db: db, maxPerPage: maxPerPage}
}

func (s *SQLVersionStore) CreateVersion(ctx context.Context, v *domain.PageVersion) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	rec, err := newVersionRecord(v)
	if err != nil {
		return err
	}
	_, err = s.db.conn.NamedExecContext(ctx,
		`INSERT INTO page_versions (`+versionColumns+`)
		 VALUES (:id, :page_id, :version, :sections_json, :created_by, :message, :created_at)`,
		rec,
	)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}

	if err := s.prune(ctx, v.PageID); err != nil {
		log.Printf("[STORAGE] prune versions of %s: %v", v.PageID, err)
	}
	return nil
}

func (s *SQLVersionStore) GetVersion(ctx context.Context, id string) (*domain.PageVersion, error) {
	var rec versionRecord
	err := s.db.conn.GetContext(ctx, &rec,
		s.db.conn.Rebind(`SELECT `+versionColumns+` FROM page_versions WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get version %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get version %s: %w", id, err)
	}
	v, err := rec.version()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVersions returns the page's versions, newest first.
func (s *SQLVersionStore) ListVersions(ctx context.Context, pageID string) ([]domain.PageVersion, error) {
	var recs []versionRecord
	err := s.db.conn.SelectContext(ctx, &recs, s.db.conn.Rebind(
		`SELECT `+versionColumns+` FROM page_versions WHERE page_id = ? ORDER BY version DESC`), pageID)
	if err != nil {
		return nil, fmt.Errorf("list versions of %s: %w", pageID, err)
	}
	versions := make([]domain.PageVersion, 0, len(recs))
	for _, r := range recs {
		v, err := r.version()
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, nil
}

func (s *SQLVersionStore) DeleteVersionsByPage(ctx context.Context, pageID string) error {
	_, err := s.db.conn.ExecContext(ctx, s.db.conn.Rebind(`DELETE FROM page_versions WHERE page_id = ?`), pageID)
	if err != nil {
		return fmt.Errorf("delete versions of %s: %w", pageID, err)
	}
	return nil
}

// prune removes the oldest versions when the page has more than maxPerPage.
func (s *SQLVersionStore) prune(ctx context.Context, pageID string) error {
	var count int
	if err := s.db.conn.GetContext(ctx, &count,
		s.db.conn.Rebind(`SELECT COUNT(*) FROM page_versions WHERE page_id = ?`), pageID); err != nil {
		return err
	}
	if count <= s.maxPerPage {
		return nil
	}

	// Collect ids first; the delete runs with no rows cursor open.
	var ids []string
	err := s.db.conn.SelectContext(ctx, &ids, s.db.conn.Rebind(
		`SELECT id FROM page_versions WHERE page_id = ? ORDER BY version ASC LIMIT ?`),
		pageID, count-s.maxPerPage)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(`DELETE FROM page_versions WHERE id IN (?)`, ids)
	if err != nil {
		return err
	}
	_, err = s.db.conn.ExecContext(ctx, s.db.conn.Rebind(query), args...)
	return err
}
