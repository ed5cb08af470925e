package service_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/service"
	"pagebuilder/internal/storage"
)

type templates map[string]domain.Template

func (t templates) Template(id string) (domain.Template, bool) {
	tpl, ok := t[id]
	return tpl, ok
}

var library = templates{
	"startup": {
		ID:       "startup",
		Name:     "Startup",
		Category: domain.TemplateSaaS,
		Sections: []domain.Section{
			{ID: "tpl-hero", Name: "Hero", Type: domain.SectionTypeHero, Visible: true, Elements: []domain.Element{
				{ID: "tpl-h", Type: domain.ElementTypeHeading, Visible: true, Content: &domain.HeadingContent{Text: "Ship faster", Level: 1}},
			}},
			{ID: "tpl-cta", Name: "Call to action", Type: domain.SectionTypeCTA, Visible: true, Elements: []domain.Element{}},
		},
	},
}

func newService(t *testing.T) (*service.PageService, *storage.Stores, *service.MockEmitter) {
	t.Helper()
	stores, err := storage.Open(context.Background(), storage.Config{
		Driver: storage.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "pages.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	emitter := &service.MockEmitter{}
	return service.NewPageService(stores.Pages, stores.Versions, library, emitter, 0), stores, emitter
}

// ─────────────────────────────────────────────────────────────
// saveGuard tests
// ─────────────────────────────────────────────────────────────

func TestSaveGuard_TryLock(t *testing.T) {
	var g service.ExportedSaveGuard

	require.True(t, g.TryLock("page-1"))
	assert.False(t, g.TryLock("page-1"), "second lock of the same page fails")
	assert.True(t, g.TryLock("page-2"))
	g.Unlock("page-1")
	g.Unlock("page-2")

	assert.True(t, g.TryLock("page-1"), "lock succeeds after unlock")
	g.Unlock("page-1")
}

func TestSaveGuard_WaitAll(t *testing.T) {
	var g service.ExportedSaveGuard
	require.True(t, g.TryLock("page-a"))

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		g.WaitAll(ctx)
		close(done)
	}()
	go func() {
		time.Sleep(20 * time.Millisecond)
		g.Unlock("page-a")
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitAll timed out")
	}
}

// ─────────────────────────────────────────────────────────────
// MockEmitter tests
// ─────────────────────────────────────────────────────────────

func TestMockEmitter_RecordsEvents(t *testing.T) {
	m := &service.MockEmitter{}
	ctx := context.Background()

	m.Emit(ctx, "test:event", map[string]string{"foo": "bar"})
	m.Emit(ctx, "test:event2", nil)
	m.Emit(ctx, "test:event", nil)

	require.Len(t, m.Events, 3)
	assert.Equal(t, "test:event", m.Events[0].Event)
	assert.Len(t, m.Named("test:event"), 2)
}
