package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/storage"
)

func openStores(t *testing.T, maxVersions int) *storage.Stores {
	t.Helper()
	stores, err := storage.Open(context.Background(), storage.Config{
		Driver:             storage.DriverSQLite,
		Path:               filepath.Join(t.TempDir(), "pages.db"),
		MaxVersionsPerPage: maxVersions,
	})
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })
	return stores
}

func samplePage(userID string) *domain.Page {
	return &domain.Page{
		Title:  "Landing",
		UserID: userID,
		Sections: []domain.Section{{
			ID:      "s1",
			Name:    "Hero",
			Type:    domain.SectionTypeHero,
			Visible: true,
			Elements: []domain.Element{{
				ID:      "e1",
				Type:    domain.ElementTypeHeading,
				Visible: true,
				Content: &domain.HeadingContent{Text: "Welcome", Level: 1},
			}},
		}},
	}
}

// ─────────────────────────────────────────────────────────────
// Pages
// ─────────────────────────────────────────────────────────────

func TestSQLPageStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	stores := openStores(t, 0)

	p := samplePage("u1")
	require.NoError(t, stores.Pages.CreatePage(ctx, p))
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, 1, p.Version)
	assert.Equal(t, domain.PageStatusDraft, p.Status)

	got, err := stores.Pages.GetPage(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Landing", got.Title)
	require.Len(t, got.Sections, 1)
	heading, ok := got.Sections[0].Elements[0].Content.(*domain.HeadingContent)
	require.True(t, ok, "content variant survives storage")
	assert.Equal(t, "Welcome", heading.Text)
	assert.WithinDuration(t, p.UpdatedAt, got.UpdatedAt, time.Second)
	assert.Nil(t, got.PublishedAt)

	_, err = stores.Pages.GetPage(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLPageStore_OptimisticUpdate(t *testing.T) {
	ctx := context.Background()
	stores := openStores(t, 0)

	p := samplePage("u1")
	require.NoError(t, stores.Pages.CreatePage(ctx, p))

	stale := p.Clone()

	p.Title = "Renamed"
	require.NoError(t, stores.Pages.UpdatePage(ctx, p))
	assert.Equal(t, 2, p.Version)

	stale.Title = "Lost"
	assert.ErrorIs(t, stores.Pages.UpdatePage(ctx, stale), domain.ErrVersionConflict)

	got, err := stores.Pages.GetPage(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, 2, got.Version)

	ghost := &domain.Page{ID: "ghost", Version: 1}
	assert.ErrorIs(t, stores.Pages.UpdatePage(ctx, ghost), domain.ErrNotFound)
}

func TestSQLPageStore_ListByUser(t *testing.T) {
	ctx := context.Background()
	stores := openStores(t, 0)

	var ids []string
	for i := 0; i < 3; i++ {
		p := samplePage("u1")
		require.NoError(t, stores.Pages.CreatePage(ctx, p))
		ids = append(ids, p.ID)
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, stores.Pages.CreatePage(ctx, samplePage("u2")))

	// Touch the oldest page so it becomes the most recent.
	first, err := stores.Pages.GetPage(ctx, ids[0])
	require.NoError(t, err)
	require.NoError(t, stores.Pages.UpdatePage(ctx, first))

	pages, err := stores.Pages.ListPagesByUser(ctx, "u1", domain.ListOptions{})
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, []string{ids[0], ids[2], ids[1]}, []string{pages[0].ID, pages[1].ID, pages[2].ID})

	tests := []struct {
		name string
		opts domain.ListOptions
		want []string
	}{
		{"limit", domain.ListOptions{Limit: 2}, []string{ids[0], ids[2]}},
		{"limit and offset", domain.ListOptions{Limit: 2, Offset: 2}, []string{ids[1]}},
		{"offset only", domain.ListOptions{Offset: 1}, []string{ids[2], ids[1]}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages, err := stores.Pages.ListPagesByUser(ctx, "u1", tt.opts)
			require.NoError(t, err)
			var got []string
			for _, p := range pages {
				got = append(got, p.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSQLPageStore_Delete(t *testing.T) {
	ctx := context.Background()
	stores := openStores(t, 0)

	p := samplePage("u1")
	require.NoError(t, stores.Pages.CreatePage(ctx, p))
	require.NoError(t, stores.Pages.DeletePage(ctx, p.ID))

	_, err := stores.Pages.GetPage(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, stores.Pages.DeletePage(ctx, p.ID), domain.ErrNotFound)
}

func TestOpenSQLite_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "pages.db")

	db, err := storage.OpenSQLite(ctx, path)
	require.NoError(t, err)
	p := samplePage("u1")
	require.NoError(t, storage.NewSQLPageStore(db).CreatePage(ctx, p))
	require.NoError(t, db.Close())

	// Migrations are idempotent.
	db, err = storage.OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer db.Close()
	got, err := storage.NewSQLPageStore(db).GetPage(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Title, got.Title)
}

// ─────────────────────────────────────────────────────────────
// Versions
// ─────────────────────────────────────────────────────────────

func TestSQLVersionStore_ListNewestFirstAndPrune(t *testing.T) {
	ctx := context.Background()
	stores := openStores(t, 3)

	for i := 1; i <= 5; i++ {
		v := &domain.PageVersion{PageID: "p1", Version: i, Sections: samplePage("u1").Sections, Message: "publish"}
		require.NoError(t, stores.Versions.CreateVersion(ctx, v))
	}
	require.NoError(t, stores.Versions.CreateVersion(ctx, &domain.PageVersion{PageID: "p2", Version: 1}))

	versions, err := stores.Versions.ListVersions(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, []int{5, 4, 3}, []int{versions[0].Version, versions[1].Version, versions[2].Version})

	got, err := stores.Versions.GetVersion(ctx, versions[0].ID)
	require.NoError(t, err)
	require.Len(t, got.Sections, 1)
	assert.Equal(t, "s1", got.Sections[0].ID)

	require.NoError(t, stores.Versions.DeleteVersionsByPage(ctx, "p1"))
	versions, err = stores.Versions.ListVersions(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, versions)

	others, err := stores.Versions.ListVersions(ctx, "p2")
	require.NoError(t, err)
	assert.Len(t, others, 1)

	_, err = stores.Versions.GetVersion(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ─────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────

func TestDSNBuilders(t *testing.T) {
	cfg := storage.Config{Host: "db", Database: "pages", Username: "app", Password: "pw"}
	assert.Equal(t, "host=db port=5432 user=app password=pw dbname=pages sslmode=disable", storage.PostgresDSN(cfg))
	assert.Equal(t, "app:pw@tcp(db:3306)/pages?parseTime=true&charset=utf8mb4", storage.MySQLDSN(cfg))

	cfg.SSLMode = "require"
	assert.Contains(t, storage.MySQLDSN(cfg), "&tls=true")
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()
	_, err := storage.Open(ctx, storage.Config{Driver: "oracle"})
	assert.Error(t, err)
	_, err = storage.Open(ctx, storage.Config{Driver: storage.DriverSQLite})
	assert.Error(t, err)
}

// ─────────────────────────────────────────────────────────────
// Approvals
// ─────────────────────────────────────────────────────────────

func TestSQLApprovalStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	stores := openStores(t, 0)
	approvals := stores.Approvals

	a := &storage.Approval{ID: "a1", Tool: "delete_page", Description: "Delete page Landing"}
	require.NoError(t, approvals.CreateApproval(ctx, a))
	assert.Equal(t, storage.ApprovalPending, a.Status)
	assert.Equal(t, "{}", a.Metadata)
	require.NoError(t, approvals.CreateApproval(ctx, &storage.Approval{ID: "a2", Tool: "delete_section"}))

	pending, err := approvals.ListPendingApprovals(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, approvals.ResolveApproval(ctx, "a1", true))
	got, err := approvals.GetApproval(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, storage.ApprovalApproved, got.Status)

	// Already resolved.
	assert.ErrorIs(t, approvals.ResolveApproval(ctx, "a1", false), domain.ErrNotFound)

	pending, err = approvals.ListPendingApprovals(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "a2", pending[0].ID)

	require.NoError(t, approvals.DeleteApproval(ctx, "a1"))
	_, err = approvals.GetApproval(ctx, "a1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
