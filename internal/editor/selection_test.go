package editor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagebuilder/internal/domain"
)

func TestSelection_SelectSectionClearsElement(t *testing.T) {
	s, _ := newSession(t)
	s.SelectElement("e1")
	s.SelectSection("a")
	assert.Equal(t, domain.Selection{SectionID: "a"}, s.Selection())

	s.SelectElement("e2")
	assert.Equal(t, domain.Selection{SectionID: "a", ElementID: "e2"}, s.Selection())

	s.ClearSelection()
	assert.Equal(t, domain.Selection{}, s.Selection())
}

func TestSelection_DeleteSection(t *testing.T) {
	tests := []struct {
		name    string
		selSec  string
		selEl   string
		deleted string
		want    domain.Selection
	}{
		{"selected section", "a", "a1", "a", domain.Selection{}},
		{"section owning selected element", "b", "a1", "a", domain.Selection{SectionID: "b"}},
		{"unselected section", "a", "a1", "b", domain.Selection{SectionID: "a", ElementID: "a1"}},
		{"unknown section", "a", "", "zzz", domain.Selection{SectionID: "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newSession(t)
			_, err := s.AddSection(domain.Section{ID: "a", Elements: []domain.Element{heading("a1", "x")}})
			require.NoError(t, err)
			_, err = s.AddSection(domain.Section{ID: "b", Elements: []domain.Element{heading("b1", "y")}})
			require.NoError(t, err)

			s.SelectSection(tt.selSec)
			if tt.selEl != "" {
				s.SelectElement(tt.selEl)
			}
			require.NoError(t, s.DeleteSection(tt.deleted))
			assert.Equal(t, tt.want, s.Selection())
		})
	}
}

func TestSelection_DeleteElement(t *testing.T) {
	s, _ := newSession(t)
	_, err := s.AddSection(domain.Section{ID: "a", Elements: []domain.Element{heading("a1", "x"), heading("a2", "y")}})
	require.NoError(t, err)

	s.SelectSection("a")
	s.SelectElement("a1")
	require.NoError(t, s.DeleteElement("a", "a2"))
	assert.Equal(t, "a1", s.Selection().ElementID)

	require.NoError(t, s.DeleteElement("a", "a1"))
	assert.Equal(t, domain.Selection{SectionID: "a"}, s.Selection())
}

func TestSelection_UndoDropsDanglingSelection(t *testing.T) {
	s, _ := newSession(t)
	_, err := s.AddSection(domain.Section{ID: "a"})
	require.NoError(t, err)
	s.SelectSection("a")

	require.True(t, s.Undo())
	assert.Equal(t, domain.Selection{}, s.Selection())
}

func TestViewport(t *testing.T) {
	s, _ := newSession(t)
	assert.Equal(t, domain.ViewportDesktop, s.Viewport())

	require.NoError(t, s.SetViewport(domain.ViewportMobile))
	assert.Equal(t, domain.ViewportMobile, s.Viewport())

	err := s.SetViewport("watch")
	assert.ErrorIs(t, err, domain.ErrInvalidViewport)
	assert.Equal(t, domain.ViewportMobile, s.Viewport())
}

func TestViewport_ResolvedSectionDoesNotTouchTree(t *testing.T) {
	s, _ := newSession(t)
	cols := 1
	_, err := s.AddSection(domain.Section{
		ID:     "a",
		Layout: domain.SectionLayout{Columns: 3, Gap: 24},
		Responsive: domain.SectionResponsive{
			Mobile: domain.LayoutOverride{Columns: &cols},
		},
	})
	require.NoError(t, err)
	before := s.Sections()
	historyBefore := s.HistoryLen()

	require.NoError(t, s.SetViewport(domain.ViewportMobile))
	sec, ok := s.ResolvedSection("a")
	require.True(t, ok)
	assert.Equal(t, 1, sec.Layout.Columns)
	assert.Equal(t, 24.0, sec.Layout.Gap)

	require.NoError(t, s.SetViewport(domain.ViewportTablet))
	sec, _ = s.ResolvedSection("a")
	assert.Equal(t, 3, sec.Layout.Columns)

	assert.Equal(t, before, s.Sections())
	assert.Equal(t, historyBefore, s.HistoryLen())
}
