package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagebuilder/internal/collab"
	"pagebuilder/internal/config"
	"pagebuilder/internal/domain"
	"pagebuilder/internal/editor"
	"pagebuilder/internal/realtime"
	"pagebuilder/internal/service"
	"pagebuilder/internal/storage"
)

func newTestApp(t *testing.T) (*App, *service.MockEmitter) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Default(t.TempDir())
	cfg.Templates.Dir = ""
	cfg.Autosave.Delay = config.Duration{Duration: time.Hour}
	cfg.UserID = "ana"

	emitter := &service.MockEmitter{}
	a, err := New(context.Background(), cfg, emitter)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })
	return a, emitter
}

func openPage(t *testing.T, a *App) *editor.Session {
	t.Helper()
	ctx := context.Background()
	p, err := a.Pages().CreatePage(ctx, "ana", "Landing", "")
	require.NoError(t, err)
	sess, err := a.Sessions().Session(ctx, p.ID)
	require.NoError(t, err)
	return sess
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Storage.Driver = "oracle"
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestApp_OpenSessionJoinsPage(t *testing.T) {
	a, _ := newTestApp(t)
	sess := openPage(t, a)
	pageID := sess.PageID()

	b, ok := a.Binding(pageID)
	require.True(t, ok)
	assert.True(t, b.Overlay().IsCollaborating())
	_, ok = a.hub.Value(collab.PresencePath(pageID, "ana"))
	assert.True(t, ok, "presence is published on open")
	assert.Len(t, a.overlays(), 1)

	a.Sessions().Close(context.Background(), pageID)
	_, ok = a.Binding(pageID)
	assert.False(t, ok)
	_, ok = a.hub.Value(collab.PresencePath(pageID, "ana"))
	assert.False(t, ok, "presence is removed on close")
}

func TestApp_RemoteParticipantOverGateway(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a, _ := newTestApp(t)
	sess := openPage(t, a)
	pageID := sess.PageID()

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()
	bob, err := realtime.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws")
	require.NoError(t, err)
	defer bob.Close()

	// Bob sees ana's presence.
	seen := make(chan string, 4)
	unsub, err := bob.Subscribe(collab.Prefix(collab.RootPresence, pageID), func(path string, _ []byte) {
		seen <- path
	})
	require.NoError(t, err)
	defer unsub()
	select {
	case path := <-seen:
		assert.Equal(t, collab.PresencePath(pageID, "ana"), path)
	case <-ctx.Done():
		t.Fatal("no presence received")
	}

	// Bob's change lands in ana's session without touching her history.
	data, err := json.Marshal(editor.AddSectionData{Section: domain.Section{
		ID: "s-bob", Name: "Pricing", Type: domain.SectionTypePricing, Visible: true, Elements: []domain.Element{},
	}})
	require.NoError(t, err)
	change, err := json.Marshal(domain.Change{
		ID: "c1", UserID: "bob", Kind: domain.ChangeAdd, Target: domain.TargetSection,
		TargetID: "s-bob", Data: data, Timestamp: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, bob.Publish(ctx, collab.ChangePath(pageID, "c1"), change))

	require.Eventually(t, func() bool {
		_, ok := sess.Section("s-bob")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, sess.CanUndo())
}

func TestApp_Healthz(t *testing.T) {
	a, _ := newTestApp(t)
	openPage(t, a)

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok 1 sessions\n", string(body))
}

func TestApp_ApprovalEndpoints(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestApp(t)
	require.NoError(t, a.stores.Approvals.CreateApproval(ctx, &storage.Approval{
		ID: "ap-1", Tool: "delete_section", Description: "Delete section Hero",
	}))

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/approvals")
	require.NoError(t, err)
	var pending []storage.Approval
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pending))
	resp.Body.Close()
	require.Len(t, pending, 1)
	assert.Equal(t, "delete_section", pending[0].Tool)

	resp, err = http.Post(srv.URL+"/approvals/ap-1/reject", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	got, err := a.stores.Approvals.GetApproval(ctx, "ap-1")
	require.NoError(t, err)
	assert.Equal(t, storage.ApprovalRejected, got.Status)

	resp, err = http.Post(srv.URL+"/approvals/ap-1/approve", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "only pending approvals can be resolved")

	resp, err = http.Get(srv.URL + "/approvals")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(body))
}

func TestApp_CloseSavesPendingEdits(t *testing.T) {
	a, _ := newTestApp(t)
	sess := openPage(t, a)
	_, err := sess.AddSection(domain.Section{Name: "Hero", Type: domain.SectionTypeHero})
	require.NoError(t, err)

	require.NoError(t, a.Close(context.Background()))
	require.NoError(t, a.Close(context.Background()), "second close is a no-op")

	stores, err := storage.Open(context.Background(), a.cfg.StoreConfig())
	require.NoError(t, err)
	defer stores.Close()
	p, err := stores.Pages.GetPage(context.Background(), sess.PageID())
	require.NoError(t, err)
	assert.Len(t, p.Sections, 1)
}

func TestApp_RunStopsWithContext(t *testing.T) {
	a, _ := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, false) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestApp_MCPServerUsesStoreApprovals(t *testing.T) {
	a, _ := newTestApp(t)
	assert.NotNil(t, a.NewMCPServer(context.Background()))

	a.cfg.MCP.RequireApproval = false
	assert.NotNil(t, a.NewMCPServer(context.Background()))
}

func TestApp_HeartbeatRefreshesPresence(t *testing.T) {
	a, _ := newTestApp(t)
	sess := openPage(t, a)
	path := collab.PresencePath(sess.PageID(), "ana")

	before, ok := a.hub.Value(path)
	require.True(t, ok)
	time.Sleep(5 * time.Millisecond)
	a.heartbeat(context.Background())
	after, ok := a.hub.Value(path)
	require.True(t, ok)

	var u0, u1 domain.ActiveUser
	require.NoError(t, json.Unmarshal(before, &u0))
	require.NoError(t, json.Unmarshal(after, &u1))
	assert.True(t, u1.LastActivity.After(u0.LastActivity))
}

func TestHeartbeatInterval(t *testing.T) {
	assert.Equal(t, time.Minute, heartbeatInterval(2*time.Minute, 5*time.Minute))
	assert.Equal(t, 30*time.Second, heartbeatInterval(2*time.Minute, time.Minute))
	assert.Equal(t, 2*time.Minute, heartbeatInterval(0, 4*time.Minute))
	assert.Equal(t, time.Minute, heartbeatInterval(0, 0))
}

func TestColorFor_IsStable(t *testing.T) {
	assert.Equal(t, colorFor("ana"), colorFor("ana"))
	assert.Contains(t, userColors, colorFor("bob"))
}
