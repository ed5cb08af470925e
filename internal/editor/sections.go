package editor

import (
	"fmt"

	"pagebuilder/internal/domain"
)

// AddSection appends section to the page and returns its id. An empty id
// is replaced with a generated one.
func (s *Session) AddSection(section domain.Section) (string, error) {
	var id string
	err := s.mutate(func() (*Mutation, error) {
		idx := len(s.page.Sections)
		sec, err := s.insertSectionLocked(section, idx)
		if err != nil {
			return nil, err
		}
		id = sec.ID
		return sectionAdded("add section", sec, idx), nil
	})
	return id, err
}

// InsertSection places section at index (0..N) and returns its id.
func (s *Session) InsertSection(section domain.Section, index int) (string, error) {
	var id string
	err := s.mutate(func() (*Mutation, error) {
		sec, err := s.insertSectionLocked(section, index)
		if err != nil {
			return nil, err
		}
		id = sec.ID
		return sectionAdded("insert section", sec, index), nil
	})
	return id, err
}

// UpdateSection merges patch into the section. Unknown ids are a no-op.
func (s *Session) UpdateSection(id string, patch SectionPatch) error {
	return s.mutate(func() (*Mutation, error) {
		sec := s.sectionLocked(id)
		if sec == nil {
			return nil, nil
		}
		patch.apply(sec)
		return &Mutation{
			Action:   "update section",
			Kind:     domain.ChangeUpdate,
			Target:   domain.TargetSection,
			TargetID: id,
			Data:     mustJSON(patch),
		}, nil
	})
}

// DeleteSection removes the section. Unknown ids are a no-op.
func (s *Session) DeleteSection(id string) error {
	return s.mutate(func() (*Mutation, error) {
		if !s.deleteSectionLocked(id) {
			return nil, nil
		}
		return &Mutation{
			Action:   "delete section",
			Kind:     domain.ChangeDelete,
			Target:   domain.TargetSection,
			TargetID: id,
		}, nil
	})
}

// MoveSection moves the section at from to position to, splice style.
// Both indices must be in 0..N-1.
func (s *Session) MoveSection(from, to int) error {
	return s.mutate(func() (*Mutation, error) {
		id, err := s.moveSectionLocked(from, to)
		if err != nil || from == to {
			return nil, err
		}
		return &Mutation{
			Action:   "move section",
			Kind:     domain.ChangeMove,
			Target:   domain.TargetSection,
			TargetID: id,
			Data:     mustJSON(MoveData{From: from, To: to}),
		}, nil
	})
}

// DuplicateSection inserts a deep copy of the section right after it. The
// copy and each of its elements get fresh ids. Unknown ids are a no-op and
// return an empty id.
func (s *Session) DuplicateSection(id string) (string, error) {
	var newID string
	err := s.mutate(func() (*Mutation, error) {
		idx := domain.SectionIndex(s.page.Sections, id)
		if idx < 0 {
			return nil, nil
		}
		cp := s.page.Sections[idx].Clone()
		cp.ID = s.newID()
		cp.Name += " (Copy)"
		for i := range cp.Elements {
			cp.Elements[i].ID = s.newID()
		}
		sec, err := s.insertSectionLocked(cp, idx+1)
		if err != nil {
			return nil, err
		}
		newID = sec.ID
		return sectionAdded("duplicate section", sec, idx+1), nil
	})
	return newID, err
}

// ReplaceSections swaps the whole tree in one undoable step. Used when
// applying a template or restoring a version.
func (s *Session) ReplaceSections(sections []domain.Section, action string) error {
	cp := domain.CloneSections(sections)
	if cp == nil {
		cp = []domain.Section{}
	}
	for i := range cp {
		if cp[i].ID == "" {
			cp[i].ID = s.newID()
		}
		for j := range cp[i].Elements {
			if cp[i].Elements[j].ID == "" {
				cp[i].Elements[j].ID = s.newID()
			}
		}
		domain.ReindexElements(cp[i].Elements)
	}
	domain.ReindexSections(cp)
	if err := domain.ValidateSections(cp); err != nil {
		return fmt.Errorf("replace sections: %w", err)
	}
	if action == "" {
		action = "replace sections"
	}

	return s.mutate(func() (*Mutation, error) {
		s.page.Sections = cp
		s.pruneSelectionLocked()
		return &Mutation{
			Action: action,
			Kind:   domain.ChangeReplace,
			Target: domain.TargetPage,
			Data:   mustJSON(ReplaceData{Sections: cp}),
		}, nil
	})
}

// ─────────────────────────────────────────────────────────────
// Tree operations shared by local and remote changes
// ─────────────────────────────────────────────────────────────

func (s *Session) insertSectionLocked(section domain.Section, index int) (domain.Section, error) {
	if index < 0 || index > len(s.page.Sections) {
		return domain.Section{}, fmt.Errorf("insert section at %d of %d: %w", index, len(s.page.Sections), domain.ErrInvalidIndex)
	}
	sec := section.Clone()
	if sec.ID == "" {
		sec.ID = s.newID()
	}
	if domain.SectionIndex(s.page.Sections, sec.ID) >= 0 {
		return domain.Section{}, fmt.Errorf("insert section %s: %w", sec.ID, domain.ErrDuplicateID)
	}
	for i := range sec.Elements {
		if sec.Elements[i].ID == "" {
			sec.Elements[i].ID = s.newID()
		}
	}
	domain.ReindexElements(sec.Elements)
	if err := validateElementSet(sec.Elements); err != nil {
		return domain.Section{}, fmt.Errorf("insert section %s: %w", sec.ID, err)
	}
	if sec.Elements == nil {
		sec.Elements = []domain.Element{}
	}

	s.page.Sections = append(s.page.Sections, domain.Section{})
	copy(s.page.Sections[index+1:], s.page.Sections[index:])
	s.page.Sections[index] = sec
	domain.ReindexSections(s.page.Sections)
	return s.page.Sections[index].Clone(), nil
}

func (s *Session) deleteSectionLocked(id string) bool {
	idx := domain.SectionIndex(s.page.Sections, id)
	if idx < 0 {
		return false
	}
	removed := s.page.Sections[idx]
	s.page.Sections = append(s.page.Sections[:idx], s.page.Sections[idx+1:]...)
	domain.ReindexSections(s.page.Sections)

	switch {
	case s.selection.SectionID == id:
		s.selection = domain.Selection{}
	case s.selection.ElementID != "" && removed.ElementIndex(s.selection.ElementID) >= 0:
		s.selection.ElementID = ""
	}
	return true
}

// moveSectionLocked returns the id of the moved section.
func (s *Session) moveSectionLocked(from, to int) (string, error) {
	n := len(s.page.Sections)
	if from < 0 || from >= n || to < 0 || to >= n {
		return "", fmt.Errorf("move section %d -> %d of %d: %w", from, to, n, domain.ErrInvalidIndex)
	}
	s.page.Sections = splice(s.page.Sections, from, to)
	domain.ReindexSections(s.page.Sections)
	return s.page.Sections[to].ID, nil
}

// splice removes the item at from and reinserts it at to.
func splice[T any](items []T, from, to int) []T {
	if from == to {
		return items
	}
	item := items[from]
	items = append(items[:from], items[from+1:]...)
	items = append(items, item)
	copy(items[to+1:], items[to:])
	items[to] = item
	return items
}

func validateElementSet(elements []domain.Element) error {
	seen := make(map[string]struct{}, len(elements))
	for i := range elements {
		e := &elements[i]
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("element %s: %w", e.ID, domain.ErrDuplicateID)
		}
		seen[e.ID] = struct{}{}
		if err := e.CheckContent(); err != nil {
			return err
		}
	}
	return nil
}

func sectionAdded(action string, sec domain.Section, index int) *Mutation {
	return &Mutation{
		Action:   action,
		Kind:     domain.ChangeAdd,
		Target:   domain.TargetSection,
		TargetID: sec.ID,
		Data:     mustJSON(AddSectionData{Section: sec, Index: &index}),
	}
}
