package domain

import (
	"encoding/json"
	"fmt"
)

type ElementType string

const (
	ElementTypeHeading ElementType = "heading"
	ElementTypeText    ElementType = "text"
	ElementTypeImage   ElementType = "image"
	ElementTypeButton  ElementType = "button"
	ElementTypeForm    ElementType = "form"
	ElementTypeVideo   ElementType = "video"
	ElementTypeIcon    ElementType = "icon"
	ElementTypeDivider ElementType = "divider"
	ElementTypeSpacer  ElementType = "spacer"
	ElementTypeHTML    ElementType = "html"
)

// Element is a leaf content node. Its Content variant is selected by Type.
type Element struct {
	ID         string            `json:"id"`
	Type       ElementType       `json:"type"`
	Name       string            `json:"name"`
	Order      int               `json:"order"`
	Visible    bool              `json:"visible"`
	Content    Content           `json:"content"`
	Styling    ElementStyling    `json:"styling"`
	Responsive ElementResponsive `json:"responsive"`
	Animation  *Animation        `json:"animation"`
}

type Typography struct {
	FontSize      float64 `json:"fontSize"`
	FontWeight    float64 `json:"fontWeight"`
	LineHeight    float64 `json:"lineHeight"`
	LetterSpacing float64 `json:"letterSpacing"`
	TextAlign     string  `json:"textAlign"`     // left | center | right | justify
	TextTransform string  `json:"textTransform"` // none | uppercase | lowercase | capitalize
	Color         string  `json:"color"`
}

type BoxSpacing struct {
	Padding Spacing `json:"padding"`
	Margin  Spacing `json:"margin"`
}

type ElementBackground struct {
	Color string `json:"color"`
	Image string `json:"image,omitempty"`
}

// ElementStyling doubles as a partial overlay: nil fields are unset.
type ElementStyling struct {
	Typography *Typography        `json:"typography,omitempty"`
	Spacing    *BoxSpacing        `json:"spacing,omitempty"`
	Background *ElementBackground `json:"background,omitempty"`
	Border     *Border            `json:"border,omitempty"`
	Shadow     *string            `json:"shadow,omitempty"`
}

// ElementResponsive holds the tablet and mobile overlays on top of Styling.
type ElementResponsive struct {
	Tablet ElementStyling `json:"tablet"`
	Mobile ElementStyling `json:"mobile"`
}

// elementJSON mirrors Element with the content left raw so that it can be
// decoded once the type is known.
type elementJSON struct {
	ID         string            `json:"id"`
	Type       ElementType       `json:"type"`
	Name       string            `json:"name"`
	Order      int               `json:"order"`
	Visible    bool              `json:"visible"`
	Content    json.RawMessage   `json:"content"`
	Styling    ElementStyling    `json:"styling"`
	Responsive ElementResponsive `json:"responsive"`
	Animation  *Animation        `json:"animation"`
}

func (e *Element) UnmarshalJSON(data []byte) error {
	var raw elementJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	content, err := DecodeContent(raw.Type, raw.Content)
	if err != nil {
		return fmt.Errorf("element %s: %w", raw.ID, err)
	}
	*e = Element{
		ID:         raw.ID,
		Type:       raw.Type,
		Name:       raw.Name,
		Order:      raw.Order,
		Visible:    raw.Visible,
		Content:    content,
		Styling:    raw.Styling,
		Responsive: raw.Responsive,
		Animation:  raw.Animation,
	}
	return nil
}

// CheckContent rejects an unknown type and reports ErrContentMismatch when
// the element's content variant does not belong to its type. A nil content
// is allowed.
func (e *Element) CheckContent() error {
	if _, err := NewContent(e.Type); err != nil {
		return fmt.Errorf("element %s: %w", e.ID, err)
	}
	if e.Content != nil && e.Content.Kind() != e.Type {
		return fmt.Errorf("%w: %s element carries %s content", ErrContentMismatch, e.Type, e.Content.Kind())
	}
	return nil
}
