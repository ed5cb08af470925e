package history_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/history"
)

func sections(names ...string) []domain.Section {
	out := make([]domain.Section, len(names))
	for i, n := range names {
		out[i] = domain.Section{
			ID:      n,
			Name:    n,
			Order:   i,
			Visible: true,
			Elements: []domain.Element{{
				ID:      n + "-title",
				Type:    domain.ElementTypeHeading,
				Content: &domain.HeadingContent{Text: n, Level: 1},
			}},
		}
	}
	return out
}

// ─────────────────────────────────────────────────────────────
// Undo / redo state machine
// ─────────────────────────────────────────────────────────────

func TestHistory_BaselineIsNotUndoable(t *testing.T) {
	h := history.New(0)
	h.Reset(nil)

	assert.False(t, h.CanUndo())
	assert.False(t, h.CanRedo())

	_, _, ok := h.Undo()
	assert.False(t, ok, "undo at baseline is a no-op")
	assert.Equal(t, 1, h.PastLen())
}

func TestHistory_UndoRedo(t *testing.T) {
	h := history.New(10)
	h.Reset(nil)
	h.Record(sections("a"), "add section")
	h.Record(sections("a", "b"), "add section")

	require.True(t, h.CanUndo())

	got, action, ok := h.Undo()
	require.True(t, ok)
	assert.Equal(t, "add section", action)
	assert.Equal(t, sections("a"), got)
	assert.True(t, h.CanRedo())

	got, _, ok = h.Undo()
	require.True(t, ok)
	assert.Empty(t, got)
	assert.NotNil(t, got, "undo to an empty baseline returns an empty slice")
	assert.False(t, h.CanUndo())

	got, _, ok = h.Redo()
	require.True(t, ok)
	assert.Equal(t, sections("a"), got)

	got, _, ok = h.Redo()
	require.True(t, ok)
	assert.Equal(t, sections("a", "b"), got)

	_, _, ok = h.Redo()
	assert.False(t, ok, "redo past the newest state is a no-op")
}

func TestHistory_RecordClearsFuture(t *testing.T) {
	h := history.New(10)
	h.Reset(nil)
	h.Record(sections("a"), "add")
	h.Undo()
	require.True(t, h.CanRedo())

	h.Record(sections("x"), "add")
	assert.False(t, h.CanRedo())
	assert.Equal(t, 0, h.FutureLen())
}

func TestHistory_DepthBound(t *testing.T) {
	h := history.New(history.DefaultDepth)
	h.Reset(nil)

	for i := 0; i < 200; i++ {
		h.Record(sections(fmt.Sprintf("s%d", i)), "add")
		assert.LessOrEqual(t, h.PastLen()+h.FutureLen(), history.DefaultDepth)
	}
	for i := 0; i < 30; i++ {
		h.Undo()
		assert.LessOrEqual(t, h.PastLen()+h.FutureLen(), history.DefaultDepth)
	}
	h.Record(sections("z"), "add")
	assert.LessOrEqual(t, h.PastLen()+h.FutureLen(), history.DefaultDepth)

	// The oldest surviving entry is the new floor.
	for h.CanUndo() {
		h.Undo()
	}
	got, ok := h.Current()
	require.True(t, ok)
	assert.NotEmpty(t, got)
}

// ─────────────────────────────────────────────────────────────
// Aliasing
// ─────────────────────────────────────────────────────────────

func TestHistory_RecordCopiesInput(t *testing.T) {
	h := history.New(10)
	h.Reset(nil)

	live := sections("a")
	h.Record(live, "add")
	h.Record(sections("a", "b"), "add")

	live[0].Name = "mutated"
	live[0].Elements[0].Content.(*domain.HeadingContent).Text = "mutated"

	got, _, _ := h.Undo()
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, "a", got[0].Elements[0].Content.(*domain.HeadingContent).Text)
}

func TestHistory_ReturnedSnapshotsAreIndependent(t *testing.T) {
	h := history.New(10)
	h.Reset(nil)
	h.Record(sections("a"), "add")
	h.Record(sections("a", "b"), "add")

	got, _, _ := h.Undo()
	got[0].Name = "changed"
	got[0].Elements[0].Content.(*domain.HeadingContent).Text = "changed"

	again, _, _ := h.Redo()
	assert.Equal(t, "a", again[0].Name)

	back, _, _ := h.Undo()
	assert.Equal(t, "a", back[0].Name)
	assert.Equal(t, "a", back[0].Elements[0].Content.(*domain.HeadingContent).Text)
}

func TestHistory_Entries(t *testing.T) {
	h := history.New(10)
	h.Reset(nil)
	h.Record(sections("a"), "add a")
	h.Record(sections("a", "b"), "add b")
	h.Undo()

	entries := h.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "open", entries[0].Action)
	assert.True(t, entries[1].Current)
	assert.Equal(t, "add b", entries[2].Action)
	assert.False(t, entries[2].Current)
}
