package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/storage"
)

// writeExternally saves a new tree the way another process would.
func writeExternally(t *testing.T, a *App, pageID string, sections ...domain.Section) {
	t.Helper()
	ctx := context.Background()
	p, err := a.stores.Pages.GetPage(ctx, pageID)
	require.NoError(t, err)
	p.Title = "Edited elsewhere"
	p.Sections = sections
	require.NoError(t, a.stores.Pages.UpdatePage(ctx, p))
}

func externalSection(id string) domain.Section {
	return domain.Section{ID: id, Name: "External", Type: domain.SectionTypeFAQ, Visible: true, Elements: []domain.Element{}}
}

func TestStoreWatcher_ReloadsCleanSession(t *testing.T) {
	ctx := context.Background()
	a, emitter := newTestApp(t)
	sess := openPage(t, a)

	a.watcher.check(ctx)
	assert.Empty(t, emitter.Named(EventPageReloaded), "nothing changed yet")

	writeExternally(t, a, sess.PageID(), externalSection("s-ext"))
	a.watcher.check(ctx)

	_, ok := sess.Section("s-ext")
	assert.True(t, ok)
	assert.Equal(t, "Edited elsewhere", sess.Page().Title)
	assert.False(t, sess.CanUndo(), "reload is not an undoable step")
	require.Len(t, emitter.Named(EventPageReloaded), 1)

	a.watcher.check(ctx)
	assert.Len(t, emitter.Named(EventPageReloaded), 1, "the same version is not reloaded twice")
}

func TestStoreWatcher_ReportsConflictWithPendingEdits(t *testing.T) {
	ctx := context.Background()
	a, emitter := newTestApp(t)
	sess := openPage(t, a)
	_, err := sess.AddSection(domain.Section{Name: "Local", Type: domain.SectionTypeHero})
	require.NoError(t, err)
	require.True(t, a.autosave.Pending(sess))

	writeExternally(t, a, sess.PageID(), externalSection("s-ext"))
	a.watcher.check(ctx)
	a.watcher.check(ctx)

	events := emitter.Named(EventPageChangedExternally)
	require.Len(t, events, 1)
	assert.Equal(t, pageChange{PageID: sess.PageID(), Version: 2}, events[0].Data)
	_, ok := sess.Section("s-ext")
	assert.False(t, ok, "local edits are kept")
	assert.Len(t, sess.Sections(), 1)
}

func TestStoreWatcher_ReportsDeletedPage(t *testing.T) {
	ctx := context.Background()
	a, emitter := newTestApp(t)
	sess := openPage(t, a)

	require.NoError(t, a.stores.Pages.DeletePage(ctx, sess.PageID()))
	a.watcher.check(ctx)
	a.watcher.check(ctx)
	assert.Len(t, emitter.Named(EventPageDeleted), 1)
}

func TestStoreWatcher_ForwardsPendingApprovals(t *testing.T) {
	ctx := context.Background()
	a, emitter := newTestApp(t)
	approvals := a.stores.Approvals

	require.NoError(t, approvals.CreateApproval(ctx, &storage.Approval{
		ID: "ap-1", Tool: "delete_page", Description: "Delete page Landing",
	}))
	a.watcher.check(ctx)
	a.watcher.check(ctx)

	events := emitter.Named(EventApprovalRequired)
	require.Len(t, events, 1, "each approval is forwarded once")
	data := events[0].Data.(map[string]string)
	assert.Equal(t, "ap-1", data["id"])
	assert.Equal(t, "delete_page", data["tool"])

	require.NoError(t, approvals.ResolveApproval(ctx, "ap-1", true))
	a.watcher.check(ctx)
	assert.Empty(t, a.watcher.emittedApprovals)
}
