package domain

import "fmt"

// ReindexSections sets every section's Order to its position.
func ReindexSections(sections []Section) {
	for i := range sections {
		sections[i].Order = i
	}
}

// ReindexElements sets every element's Order to its position.
func ReindexElements(elements []Element) {
	for i := range elements {
		elements[i].Order = i
	}
}

// ValidateSections checks id uniqueness and order contiguity for the whole
// tree, sections and their elements.
func ValidateSections(sections []Section) error {
	seen := make(map[string]struct{}, len(sections))
	for i := range sections {
		s := &sections[i]
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: section %s", ErrDuplicateID, s.ID)
		}
		seen[s.ID] = struct{}{}
		if s.Order != i {
			return fmt.Errorf("section %s has order %d at position %d", s.ID, s.Order, i)
		}
		if err := validateElements(s); err != nil {
			return err
		}
	}
	return nil
}

func validateElements(s *Section) error {
	seen := make(map[string]struct{}, len(s.Elements))
	for j := range s.Elements {
		e := &s.Elements[j]
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("%w: element %s in section %s", ErrDuplicateID, e.ID, s.ID)
		}
		seen[e.ID] = struct{}{}
		if e.Order != j {
			return fmt.Errorf("element %s in section %s has order %d at position %d", e.ID, s.ID, e.Order, j)
		}
		if err := e.CheckContent(); err != nil {
			return err
		}
	}
	return nil
}
