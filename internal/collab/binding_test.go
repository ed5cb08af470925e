package collab_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagebuilder/internal/collab"
	"pagebuilder/internal/domain"
	"pagebuilder/internal/editor"
	"pagebuilder/internal/realtime"
)

type participant struct {
	session *editor.Session
	binding *collab.Binding
	conn    *realtime.HubConn
}

func join(t *testing.T, hub *realtime.Hub, userID string) *participant {
	t.Helper()
	page := &domain.Page{ID: "page-1", Sections: []domain.Section{}}
	s := editor.NewSession(page, editor.Options{})
	conn := hub.Connect()
	b := collab.NewBinding(s, collab.NewOverlay(), conn, domain.ActiveUser{ID: userID, DisplayName: userID, Color: "#f00"}, nil)
	require.NoError(t, b.Join(context.Background()))
	return &participant{session: s, binding: b, conn: conn}
}

func newHub() *realtime.Hub {
	return realtime.NewHub(realtime.WithEphemeralRoots(collab.RootChanges))
}

func TestBinding_PresenceIsMirrored(t *testing.T) {
	hub := newHub()
	alice := join(t, hub, "alice")
	bob := join(t, hub, "bob")

	assert.True(t, alice.binding.Overlay().IsCollaborating())
	assert.Contains(t, alice.binding.Overlay().ActiveUsers(), "bob")
	assert.Contains(t, bob.binding.Overlay().ActiveUsers(), "alice", "late joiner sees existing presence")
	assert.NotContains(t, alice.binding.Overlay().ActiveUsers(), "alice", "own presence is not mirrored")
}

func TestBinding_CursorAndSelection(t *testing.T) {
	ctx := context.Background()
	hub := newHub()
	alice := join(t, hub, "alice")
	bob := join(t, hub, "bob")

	require.NoError(t, bob.binding.MoveCursor(ctx, 10, 20))
	cur := alice.binding.Overlay().Cursors()["bob"]
	assert.Equal(t, 10.0, cur.X)
	assert.Equal(t, 20.0, cur.Y)

	require.NoError(t, bob.binding.Select(ctx, domain.SelectionSection, "s1"))
	sel := alice.binding.Overlay().Selections()["bob"]
	assert.Equal(t, "s1", sel.TargetID)
	assert.Equal(t, "s1", alice.binding.Overlay().ActiveUsers()["bob"].CurrentSection)

	require.NoError(t, bob.binding.SetTyping(ctx, true))
	assert.True(t, alice.binding.Overlay().ActiveUsers()["bob"].IsTyping)

	require.NoError(t, bob.binding.ClearSelection(ctx))
	assert.NotContains(t, alice.binding.Overlay().Selections(), "bob")
}

func TestBinding_LocalMutationsReachOtherSessions(t *testing.T) {
	hub := newHub()
	alice := join(t, hub, "alice")
	bob := join(t, hub, "bob")

	_, err := alice.session.AddSection(domain.Section{ID: "a", Name: "Hero"})
	require.NoError(t, err)
	_, err = alice.session.AddElement("a", domain.Element{ID: "e1", Type: domain.ElementTypeText, Content: &domain.TextContent{HTML: "<p>hi</p>"}})
	require.NoError(t, err)
	_, err = bob.session.AddSection(domain.Section{ID: "b", Name: "Footer"})
	require.NoError(t, err)

	assert.Equal(t, alice.session.Sections(), bob.session.Sections())
	assert.Len(t, alice.session.Sections(), 2)

	// Remote edits are logged, not recorded in history: bob's undo returns
	// to his previous snapshot and the replace reaches alice.
	assert.Len(t, bob.session.RemoteLog(), 2)
	require.True(t, bob.session.Undo())
	assert.Empty(t, bob.session.Sections())
	assert.Empty(t, alice.session.Sections())
}

func TestBinding_DuplicateDeliveryIsIgnored(t *testing.T) {
	ctx := context.Background()
	hub := newHub()
	alice := join(t, hub, "alice")
	bob := join(t, hub, "bob")

	sec := domain.Section{ID: "x", Elements: []domain.Element{}}
	data, err := json.Marshal(editor.AddSectionData{Section: sec})
	require.NoError(t, err)
	change, err := json.Marshal(domain.Change{ID: "c-1", UserID: "carol", Kind: domain.ChangeAdd, Target: domain.TargetSection, TargetID: "x", Data: data})
	require.NoError(t, err)

	carol := hub.Connect()
	require.NoError(t, carol.Publish(ctx, collab.ChangePath("page-1", "c-1"), change))
	require.NoError(t, carol.Publish(ctx, collab.ChangePath("page-1", "c-1"), change))

	assert.Len(t, alice.session.Sections(), 1)
	assert.Len(t, alice.session.RemoteLog(), 1)
	assert.Len(t, bob.session.RemoteLog(), 1)
}

func TestBinding_ActivityKeepsPeersFromIdling(t *testing.T) {
	ctx := context.Background()
	hub := newHub()
	alice := join(t, hub, "alice")
	bob := join(t, hub, "bob")
	const maxIdle = 20 * time.Millisecond

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, bob.binding.MoveCursor(ctx, 5, 5))
	assert.Empty(t, alice.binding.Overlay().PruneIdle(maxIdle, time.Now()), "a cursor move is activity")

	time.Sleep(30 * time.Millisecond)
	_, err := bob.session.AddSection(domain.Section{ID: "a", Name: "Hero"})
	require.NoError(t, err)
	assert.Empty(t, alice.binding.Overlay().PruneIdle(maxIdle, time.Now()), "a change is activity")

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, bob.binding.Heartbeat(ctx))
	assert.Empty(t, alice.binding.Overlay().PruneIdle(maxIdle, time.Now()), "a heartbeat is activity")

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, []string{"bob"}, alice.binding.Overlay().PruneIdle(maxIdle, time.Now()))
}

func TestBinding_HeartbeatRepublishesPresence(t *testing.T) {
	ctx := context.Background()
	hub := newHub()
	bob := join(t, hub, "bob")

	before, ok := hub.Value(collab.PresencePath("page-1", "bob"))
	require.True(t, ok)
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, bob.binding.Heartbeat(ctx))
	after, ok := hub.Value(collab.PresencePath("page-1", "bob"))
	require.True(t, ok)

	var u0, u1 domain.ActiveUser
	require.NoError(t, json.Unmarshal(before, &u0))
	require.NoError(t, json.Unmarshal(after, &u1))
	assert.True(t, u1.LastActivity.After(u0.LastActivity))
	assert.Equal(t, u0.JoinedAt.Unix(), u1.JoinedAt.Unix())

	require.NoError(t, bob.binding.Leave(ctx))
	require.NoError(t, bob.binding.Heartbeat(ctx), "heartbeat after leave publishes nothing")
	_, ok = hub.Value(collab.PresencePath("page-1", "bob"))
	assert.False(t, ok)
}

func TestBinding_LeaveAndDisconnect(t *testing.T) {
	ctx := context.Background()
	hub := newHub()
	alice := join(t, hub, "alice")
	bob := join(t, hub, "bob")
	carol := join(t, hub, "carol")

	require.NoError(t, bob.binding.MoveCursor(ctx, 1, 1))
	require.NoError(t, bob.binding.Leave(ctx))
	assert.NotContains(t, alice.binding.Overlay().ActiveUsers(), "bob")
	assert.NotContains(t, alice.binding.Overlay().Cursors(), "bob")
	assert.False(t, bob.binding.Overlay().IsCollaborating())

	// carol drops without leaving: the transport cleans up for her.
	require.NoError(t, carol.conn.Close())
	assert.NotContains(t, alice.binding.Overlay().ActiveUsers(), "carol")

	// bob no longer broadcasts.
	_, err := bob.session.AddSection(domain.Section{ID: "late"})
	require.NoError(t, err)
	assert.Empty(t, alice.session.Sections())
}

func TestBinding_EmitsPresenceEvents(t *testing.T) {
	hub := newHub()
	rec := &recorder{}
	s := editor.NewSession(&domain.Page{ID: "page-1"}, editor.Options{})
	b := collab.NewBinding(s, collab.NewOverlay(), hub.Connect(), domain.ActiveUser{ID: "alice"}, rec)
	require.NoError(t, b.Join(context.Background()))

	join(t, hub, "bob")
	require.NotEmpty(t, rec.events)
	snap, ok := rec.events[len(rec.events)-1].(collab.Snapshot)
	require.True(t, ok)
	assert.Contains(t, snap.ActiveUsers, "bob")
}

type recorder struct{ events []any }

func (r *recorder) Emit(_ context.Context, event string, data any) {
	if event == collab.EventPresenceChanged {
		r.events = append(r.events, data)
	}
}
