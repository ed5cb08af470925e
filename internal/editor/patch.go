package editor

import (
	"encoding/json"
	"fmt"

	"pagebuilder/internal/domain"
)

// SectionPatch is a partial update. Set fields replace the section's field
// wholesale. ID, Order and Elements are not patchable.
type SectionPatch struct {
	Type            *domain.SectionType       `json:"type,omitempty"`
	Name            *string                   `json:"name,omitempty"`
	Visible         *bool                     `json:"visible,omitempty"`
	Layout          *domain.SectionLayout     `json:"layout,omitempty"`
	Styling         *domain.SectionStyling    `json:"styling,omitempty"`
	Responsive      *domain.SectionResponsive `json:"responsive,omitempty"`
	Animation       *domain.Animation         `json:"animation,omitempty"`
	RemoveAnimation bool                      `json:"removeAnimation,omitempty"`
}

func (p *SectionPatch) apply(s *domain.Section) {
	if p.Type != nil {
		s.Type = *p.Type
	}
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Visible != nil {
		s.Visible = *p.Visible
	}
	if p.Layout != nil {
		s.Layout = *p.Layout
	}
	if p.Styling != nil {
		s.Styling = p.Styling.Clone()
	}
	if p.Responsive != nil {
		s.Responsive = domain.SectionResponsive{
			Tablet: p.Responsive.Tablet.Clone(),
			Mobile: p.Responsive.Mobile.Clone(),
		}
	}
	switch {
	case p.RemoveAnimation:
		s.Animation = nil
	case p.Animation != nil:
		a := *p.Animation
		s.Animation = &a
	}
}

// ElementPatch is a partial update of an element. An element's type is
// fixed at creation, so Content must be of the element's variant.
type ElementPatch struct {
	Name            *string                   `json:"name,omitempty"`
	Visible         *bool                     `json:"visible,omitempty"`
	Content         domain.Content            `json:"content,omitempty"`
	Styling         *domain.ElementStyling    `json:"styling,omitempty"`
	Responsive      *domain.ElementResponsive `json:"responsive,omitempty"`
	Animation       *domain.Animation         `json:"animation,omitempty"`
	RemoveAnimation bool                      `json:"removeAnimation,omitempty"`

	// rawContent holds decoded-later content from JSON, where the variant
	// is unknown until the target element is found.
	rawContent json.RawMessage
}

type elementPatchJSON struct {
	Name            *string                   `json:"name,omitempty"`
	Visible         *bool                     `json:"visible,omitempty"`
	Content         json.RawMessage           `json:"content,omitempty"`
	Styling         *domain.ElementStyling    `json:"styling,omitempty"`
	Responsive      *domain.ElementResponsive `json:"responsive,omitempty"`
	Animation       *domain.Animation         `json:"animation,omitempty"`
	RemoveAnimation bool                      `json:"removeAnimation,omitempty"`
}

// MarshalJSON keeps decoded-later content, so a patch read from JSON can be
// forwarded to collaborators unchanged.
func (p ElementPatch) MarshalJSON() ([]byte, error) {
	raw := elementPatchJSON{
		Name:            p.Name,
		Visible:         p.Visible,
		Content:         p.rawContent,
		Styling:         p.Styling,
		Responsive:      p.Responsive,
		Animation:       p.Animation,
		RemoveAnimation: p.RemoveAnimation,
	}
	if p.Content != nil {
		b, err := json.Marshal(p.Content)
		if err != nil {
			return nil, fmt.Errorf("encode patch content: %w", err)
		}
		raw.Content = b
	}
	return json.Marshal(raw)
}

func (p *ElementPatch) UnmarshalJSON(data []byte) error {
	var raw elementPatchJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = ElementPatch{
		Name:            raw.Name,
		Visible:         raw.Visible,
		Styling:         raw.Styling,
		Responsive:      raw.Responsive,
		Animation:       raw.Animation,
		RemoveAnimation: raw.RemoveAnimation,
	}
	if len(raw.Content) > 0 && string(raw.Content) != "null" {
		p.rawContent = raw.Content
	}
	return nil
}

// content resolves the patch content against the target element type.
func (p *ElementPatch) content(t domain.ElementType) (domain.Content, error) {
	if p.Content != nil {
		if p.Content.Kind() != t {
			return nil, fmt.Errorf("%w: %s element cannot take %s content", domain.ErrContentMismatch, t, p.Content.Kind())
		}
		return p.Content.CloneContent(), nil
	}
	if p.rawContent != nil {
		c, err := domain.DecodeContent(t, p.rawContent)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrContentMismatch, err)
		}
		return c, nil
	}
	return nil, nil
}

// apply validates content first so that a rejected patch leaves e intact.
func (p *ElementPatch) apply(e *domain.Element) error {
	content, err := p.content(e.Type)
	if err != nil {
		return err
	}
	if content != nil {
		e.Content = content
	}
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.Visible != nil {
		e.Visible = *p.Visible
	}
	if p.Styling != nil {
		e.Styling = p.Styling.Clone()
	}
	if p.Responsive != nil {
		e.Responsive = domain.ElementResponsive{
			Tablet: p.Responsive.Tablet.Clone(),
			Mobile: p.Responsive.Mobile.Clone(),
		}
	}
	switch {
	case p.RemoveAnimation:
		e.Animation = nil
	case p.Animation != nil:
		a := *p.Animation
		e.Animation = &a
	}
	return nil
}
