package editor

import (
	"fmt"

	"pagebuilder/internal/domain"
)

// Selection and viewport are session state only; they never touch the tree
// or the history.

func (s *Session) Selection() domain.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// SelectSection selects a section and clears the element selection. An
// empty id clears both.
func (s *Session) SelectSection(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = domain.Selection{SectionID: id}
}

// SelectElement selects an element. The section selection is kept.
func (s *Session) SelectElement(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.ElementID = id
}

func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = domain.Selection{}
}

func (s *Session) Viewport() domain.Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport
}

func (s *Session) SetViewport(v domain.Viewport) error {
	if !v.Valid() {
		return fmt.Errorf("set viewport %q: %w", v, domain.ErrInvalidViewport)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport = v
	return nil
}

// ResolvedSection returns the section as presented in the current
// viewport: layout and element styling flattened through the cascade.
func (s *Session) ResolvedSection(id string) (domain.Section, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec := s.sectionLocked(id)
	if sec == nil {
		return domain.Section{}, false
	}
	return sec.Resolved(s.viewport), true
}

// pruneSelectionLocked drops selected ids that no longer exist in the tree.
func (s *Session) pruneSelectionLocked() {
	if s.selection.SectionID != "" && domain.SectionIndex(s.page.Sections, s.selection.SectionID) < 0 {
		s.selection.SectionID = ""
	}
	if s.selection.ElementID == "" {
		return
	}
	for i := range s.page.Sections {
		if s.page.Sections[i].ElementIndex(s.selection.ElementID) >= 0 {
			return
		}
	}
	s.selection.ElementID = ""
}
