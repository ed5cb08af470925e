package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/editor"
	"pagebuilder/internal/service"
)

func storedSections(t *testing.T, svc *service.PageService, id string) int {
	t.Helper()
	p, err := svc.GetPage(context.Background(), id)
	require.NoError(t, err)
	return len(p.Sections)
}

func TestAutosaver_DebouncesLocalEdits(t *testing.T) {
	ctx := context.Background()
	svc, _, emitter := newService(t)
	p, err := svc.CreatePage(ctx, "u1", "Landing", "")
	require.NoError(t, err)
	sess, err := svc.OpenSession(ctx, p.ID)
	require.NoError(t, err)

	auto := service.NewAutosaver(svc, 50*time.Millisecond)
	auto.Watch(sess)
	auto.Watch(sess)

	for i := 0; i < 3; i++ {
		_, err := sess.AddSection(domain.Section{})
		require.NoError(t, err)
	}
	assert.True(t, auto.Pending(sess))

	require.Eventually(t, func() bool { return storedSections(t, svc, p.ID) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, emitter.Named(service.EventPageSaved), 1, "a burst of edits is saved once")
	assert.False(t, auto.Pending(sess))
}

func TestAutosaver_IgnoresRemoteChanges(t *testing.T) {
	ctx := context.Background()
	svc, _, emitter := newService(t)
	p, err := svc.CreatePage(ctx, "u1", "Landing", "")
	require.NoError(t, err)
	sess, err := svc.OpenSession(ctx, p.ID)
	require.NoError(t, err)

	auto := service.NewAutosaver(svc, 20*time.Millisecond)
	auto.Watch(sess)

	data, err := json.Marshal(editor.AddSectionData{Section: domain.Section{ID: "remote"}})
	require.NoError(t, err)
	require.NoError(t, sess.ApplyRemote(domain.Change{
		ID: "c1", UserID: "bob", Kind: domain.ChangeAdd, Target: domain.TargetSection, TargetID: "remote", Data: data,
	}))

	time.Sleep(100 * time.Millisecond)
	assert.False(t, auto.Pending(sess))
	assert.Empty(t, emitter.Named(service.EventPageSaved))
	assert.Equal(t, 0, storedSections(t, svc, p.ID))
}

func TestAutosaver_UnwatchAndFlushSavePendingEdits(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	p1, err := svc.CreatePage(ctx, "u1", "One", "")
	require.NoError(t, err)
	p2, err := svc.CreatePage(ctx, "u1", "Two", "")
	require.NoError(t, err)
	s1, err := svc.OpenSession(ctx, p1.ID)
	require.NoError(t, err)
	s2, err := svc.OpenSession(ctx, p2.ID)
	require.NoError(t, err)

	auto := service.NewAutosaver(svc, time.Hour)
	auto.Watch(s1)
	auto.Watch(s2)

	_, err = s1.AddSection(domain.Section{})
	require.NoError(t, err)
	_, err = s2.AddSection(domain.Section{})
	require.NoError(t, err)

	auto.Unwatch(ctx, s1)
	assert.Equal(t, 1, storedSections(t, svc, p1.ID))

	auto.Flush(ctx)
	assert.Equal(t, 1, storedSections(t, svc, p2.ID))
	assert.False(t, auto.Pending(s2))

	// Unwatched sessions are no longer saved.
	_, err = s1.AddSection(domain.Section{})
	require.NoError(t, err)
	auto.Flush(ctx)
	assert.Equal(t, 1, storedSections(t, svc, p1.ID))
}
