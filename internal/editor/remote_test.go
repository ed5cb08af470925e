package editor_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/editor"
)

func toChange(t *testing.T, m editor.Mutation, user string) domain.Change {
	t.Helper()
	return domain.Change{
		ID:        "c-" + m.Action,
		UserID:    user,
		Kind:      m.Kind,
		Target:    m.Target,
		TargetID:  m.TargetID,
		SectionID: m.SectionID,
		Data:      m.Data,
		Timestamp: m.At,
	}
}

// mirror replays every local mutation of src onto dst as remote changes.
func mirror(t *testing.T, src, dst *editor.Session) {
	t.Helper()
	src.Observe(func(m editor.Mutation) {
		require.NoError(t, dst.ApplyRemote(toChange(t, m, "alice")))
	})
}

func TestRemote_MirroredSessionsConverge(t *testing.T) {
	alice, _ := newSession(t)
	bob, _ := newSession(t)
	mirror(t, alice, bob)

	_, err := alice.AddSection(domain.Section{ID: "a", Name: "Hero"})
	require.NoError(t, err)
	_, err = alice.AddSection(domain.Section{ID: "b", Name: "Footer"})
	require.NoError(t, err)
	_, err = alice.AddElement("a", heading("e1", "Title"))
	require.NoError(t, err)
	text := "Welcome"
	require.NoError(t, alice.UpdateElement("a", "e1", editor.ElementPatch{Content: &domain.HeadingContent{Text: text, Level: 1}}))
	require.NoError(t, alice.UpdateSection("b", editor.SectionPatch{Name: &text}))
	require.NoError(t, alice.MoveSection(1, 0))
	_, err = alice.DuplicateSection("a")
	require.NoError(t, err)
	require.NoError(t, alice.DeleteElement("a", "e1"))
	require.True(t, alice.Undo())

	assert.Equal(t, alice.Sections(), bob.Sections())
	assert.False(t, bob.CanUndo(), "remote changes are not undoable")
	assert.Len(t, bob.RemoteLog(), 9)
}

func TestRemote_DecodedPatchContentReachesPeers(t *testing.T) {
	alice, _ := newSession(t)
	bob, _ := newSession(t)
	mirror(t, alice, bob)

	_, err := alice.AddSection(domain.Section{ID: "a", Elements: []domain.Element{heading("e1", "Title")}})
	require.NoError(t, err)

	// Patches from agent tools arrive as JSON with the variant unresolved.
	var patch editor.ElementPatch
	require.NoError(t, json.Unmarshal([]byte(`{"content":{"text":"Changed","level":1}}`), &patch))
	require.NoError(t, alice.UpdateElement("a", "e1", patch))

	el, ok := bob.Element("a", "e1")
	require.True(t, ok)
	assert.Equal(t, &domain.HeadingContent{Text: "Changed", Level: 1}, el.Content)
	assert.Equal(t, alice.Sections(), bob.Sections())
}

func TestRemote_UpdateReplayIsIdempotent(t *testing.T) {
	s, _ := newSession(t)
	_, err := s.AddSection(domain.Section{ID: "a", Elements: []domain.Element{heading("e1", "Title")}})
	require.NoError(t, err)

	c := domain.Change{
		ID:        "c1",
		UserID:    "bob",
		Kind:      domain.ChangeUpdate,
		Target:    domain.TargetElement,
		TargetID:  "e1",
		SectionID: "a",
		Data:      json.RawMessage(`{"name":"Headline","content":{"text":"Hi","level":3}}`),
	}
	require.NoError(t, s.ApplyRemote(c))
	once := s.Sections()
	require.NoError(t, s.ApplyRemote(c))
	assert.Equal(t, once, s.Sections())

	el, _ := s.Element("a", "e1")
	assert.Equal(t, "Headline", el.Name)
	assert.Equal(t, &domain.HeadingContent{Text: "Hi", Level: 3}, el.Content)
}

func TestRemote_AddReplayIsRejected(t *testing.T) {
	s, _ := newSession(t)
	c := domain.Change{
		ID:       "c1",
		UserID:   "bob",
		Kind:     domain.ChangeAdd,
		Target:   domain.TargetSection,
		TargetID: "a",
		Data:     json.RawMessage(`{"section":{"id":"a","name":"Hero","elements":[]}}`),
	}
	require.NoError(t, s.ApplyRemote(c))
	err := s.ApplyRemote(c)
	assert.ErrorIs(t, err, domain.ErrDuplicateID)
	assert.Len(t, s.Sections(), 1)
	assert.Len(t, s.RemoteLog(), 1)
}

func TestRemote_BypassesHistory(t *testing.T) {
	s, rec := newSession(t)
	_, err := s.AddSection(domain.Section{ID: "a"})
	require.NoError(t, err)
	before := s.HistoryLen()

	require.NoError(t, s.ApplyRemote(domain.Change{
		UserID:   "bob",
		Kind:     domain.ChangeAdd,
		Target:   domain.TargetSection,
		TargetID: "b",
		Data:     json.RawMessage(`{"section":{"id":"b"}}`),
	}))
	assert.Equal(t, before, s.HistoryLen())
	assert.Equal(t, 1, s.RemoteChangesSinceSnapshot())

	events := rec.all()
	last := events[len(events)-1]
	assert.True(t, last.Remote)
	assert.Equal(t, "bob", last.UserID)

	// Undo reverts to the last local snapshot, which predates bob's edit.
	require.True(t, s.Undo())
	assert.Empty(t, s.Sections())
	assert.Equal(t, 0, s.RemoteChangesSinceSnapshot())
}

func TestRemote_UnknownTargetsAreNoOps(t *testing.T) {
	s, _ := newSession(t)
	changes := []domain.Change{
		{Kind: domain.ChangeDelete, Target: domain.TargetSection, TargetID: "nope"},
		{Kind: domain.ChangeUpdate, Target: domain.TargetSection, TargetID: "nope", Data: json.RawMessage(`{}`)},
		{Kind: domain.ChangeAdd, Target: domain.TargetElement, SectionID: "nope", Data: json.RawMessage(`{}`)},
	}
	for _, c := range changes {
		assert.NoError(t, s.ApplyRemote(c))
	}
	assert.Empty(t, s.RemoteLog())
}

func TestRemote_DeleteClearsSelection(t *testing.T) {
	s, _ := newSession(t)
	_, err := s.AddSection(domain.Section{ID: "a"})
	require.NoError(t, err)
	s.SelectSection("a")

	require.NoError(t, s.ApplyRemote(domain.Change{Kind: domain.ChangeDelete, Target: domain.TargetSection, TargetID: "a"}))
	assert.Equal(t, domain.Selection{}, s.Selection())
}

func TestRemote_ContentMismatch(t *testing.T) {
	s, _ := newSession(t)
	_, err := s.AddSection(domain.Section{ID: "a", Elements: []domain.Element{heading("e1", "Title")}})
	require.NoError(t, err)

	err = s.ApplyRemote(domain.Change{
		Kind:      domain.ChangeUpdate,
		Target:    domain.TargetElement,
		TargetID:  "e1",
		SectionID: "a",
		Data:      json.RawMessage(`{"content":{"level":"not a number"}}`),
	})
	assert.ErrorIs(t, err, domain.ErrContentMismatch)
}
