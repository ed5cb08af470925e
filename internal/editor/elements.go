package editor

import (
	"fmt"

	"pagebuilder/internal/domain"
)

// AddElement appends element to the section and returns its id. An
// unknown section is a no-op and returns an empty id.
func (s *Session) AddElement(sectionID string, element domain.Element) (string, error) {
	var id string
	err := s.mutate(func() (*Mutation, error) {
		sec := s.sectionLocked(sectionID)
		if sec == nil {
			return nil, nil
		}
		idx := len(sec.Elements)
		el, err := s.insertElementLocked(sec, element, idx)
		if err != nil {
			return nil, err
		}
		id = el.ID
		return elementAdded("add element", sectionID, el, idx), nil
	})
	return id, err
}

// InsertElement places element at index (0..N) within the section.
func (s *Session) InsertElement(sectionID string, element domain.Element, index int) (string, error) {
	var id string
	err := s.mutate(func() (*Mutation, error) {
		sec := s.sectionLocked(sectionID)
		if sec == nil {
			return nil, nil
		}
		el, err := s.insertElementLocked(sec, element, index)
		if err != nil {
			return nil, err
		}
		id = el.ID
		return elementAdded("insert element", sectionID, el, index), nil
	})
	return id, err
}

// UpdateElement merges patch into the element. Unknown ids are a no-op.
func (s *Session) UpdateElement(sectionID, elementID string, patch ElementPatch) error {
	return s.mutate(func() (*Mutation, error) {
		el := s.elementLocked(sectionID, elementID)
		if el == nil {
			return nil, nil
		}
		if err := patch.apply(el); err != nil {
			return nil, fmt.Errorf("update element %s: %w", elementID, err)
		}
		return &Mutation{
			Action:    "update element",
			Kind:      domain.ChangeUpdate,
			Target:    domain.TargetElement,
			TargetID:  elementID,
			SectionID: sectionID,
			Data:      mustJSON(patch),
		}, nil
	})
}

// DeleteElement removes the element. Unknown ids are a no-op.
func (s *Session) DeleteElement(sectionID, elementID string) error {
	return s.mutate(func() (*Mutation, error) {
		if !s.deleteElementLocked(sectionID, elementID) {
			return nil, nil
		}
		return &Mutation{
			Action:    "delete element",
			Kind:      domain.ChangeDelete,
			Target:    domain.TargetElement,
			TargetID:  elementID,
			SectionID: sectionID,
		}, nil
	})
}

// MoveElement moves an element within its section. Both indices must be in
// 0..N-1. An unknown section is a no-op.
func (s *Session) MoveElement(sectionID string, from, to int) error {
	return s.mutate(func() (*Mutation, error) {
		sec := s.sectionLocked(sectionID)
		if sec == nil {
			return nil, nil
		}
		id, err := moveElementLocked(sec, from, to)
		if err != nil || from == to {
			return nil, err
		}
		return &Mutation{
			Action:    "move element",
			Kind:      domain.ChangeMove,
			Target:    domain.TargetElement,
			TargetID:  id,
			SectionID: sectionID,
			Data:      mustJSON(MoveData{From: from, To: to}),
		}, nil
	})
}

// DuplicateElement inserts a deep copy of the element right after it.
func (s *Session) DuplicateElement(sectionID, elementID string) (string, error) {
	var newID string
	err := s.mutate(func() (*Mutation, error) {
		sec := s.sectionLocked(sectionID)
		if sec == nil {
			return nil, nil
		}
		idx := sec.ElementIndex(elementID)
		if idx < 0 {
			return nil, nil
		}
		cp := sec.Elements[idx].Clone()
		cp.ID = s.newID()
		cp.Name += " (Copy)"
		el, err := s.insertElementLocked(sec, cp, idx+1)
		if err != nil {
			return nil, err
		}
		newID = el.ID
		return elementAdded("duplicate element", sectionID, el, idx+1), nil
	})
	return newID, err
}

// ─────────────────────────────────────────────────────────────
// Tree operations shared by local and remote changes
// ─────────────────────────────────────────────────────────────

func (s *Session) elementLocked(sectionID, elementID string) *domain.Element {
	sec := s.sectionLocked(sectionID)
	if sec == nil {
		return nil
	}
	idx := sec.ElementIndex(elementID)
	if idx < 0 {
		return nil
	}
	return &sec.Elements[idx]
}

func (s *Session) insertElementLocked(sec *domain.Section, element domain.Element, index int) (domain.Element, error) {
	if index < 0 || index > len(sec.Elements) {
		return domain.Element{}, fmt.Errorf("insert element at %d of %d: %w", index, len(sec.Elements), domain.ErrInvalidIndex)
	}
	el := element.Clone()
	if el.ID == "" {
		el.ID = s.newID()
	}
	if sec.ElementIndex(el.ID) >= 0 {
		return domain.Element{}, fmt.Errorf("insert element %s: %w", el.ID, domain.ErrDuplicateID)
	}
	if el.Content == nil {
		c, err := domain.NewContent(el.Type)
		if err != nil {
			return domain.Element{}, fmt.Errorf("insert element %s: %w", el.ID, err)
		}
		el.Content = c
	}
	if err := el.CheckContent(); err != nil {
		return domain.Element{}, fmt.Errorf("insert element %s: %w", el.ID, err)
	}

	sec.Elements = append(sec.Elements, domain.Element{})
	copy(sec.Elements[index+1:], sec.Elements[index:])
	sec.Elements[index] = el
	domain.ReindexElements(sec.Elements)
	return sec.Elements[index].Clone(), nil
}

func (s *Session) deleteElementLocked(sectionID, elementID string) bool {
	sec := s.sectionLocked(sectionID)
	if sec == nil {
		return false
	}
	idx := sec.ElementIndex(elementID)
	if idx < 0 {
		return false
	}
	sec.Elements = append(sec.Elements[:idx], sec.Elements[idx+1:]...)
	domain.ReindexElements(sec.Elements)
	if s.selection.ElementID == elementID {
		s.selection.ElementID = ""
	}
	return true
}

func moveElementLocked(sec *domain.Section, from, to int) (string, error) {
	n := len(sec.Elements)
	if from < 0 || from >= n || to < 0 || to >= n {
		return "", fmt.Errorf("move element %d -> %d of %d: %w", from, to, n, domain.ErrInvalidIndex)
	}
	sec.Elements = splice(sec.Elements, from, to)
	domain.ReindexElements(sec.Elements)
	return sec.Elements[to].ID, nil
}

func elementAdded(action, sectionID string, el domain.Element, index int) *Mutation {
	return &Mutation{
		Action:    action,
		Kind:      domain.ChangeAdd,
		Target:    domain.TargetElement,
		TargetID:  el.ID,
		SectionID: sectionID,
		Data:      mustJSON(AddElementData{Element: el, Index: &index}),
	}
}
