package domain

import (
	"encoding/json"
	"fmt"
)

// Content is the closed set of element payloads. Every implementation
// lives in this file and is used through a pointer.
type Content interface {
	Kind() ElementType
	CloneContent() Content
}

type HeadingContent struct {
	Text  string `json:"text"`
	Level int    `json:"level"` // 1..6
}

type TextContent struct {
	HTML string `json:"html"`
}

type ImageContent struct {
	URL     string   `json:"url"`
	Alt     string   `json:"alt"`
	Caption *string  `json:"caption"`
	Link    *string  `json:"link"`
	Width   *float64 `json:"width"`
	Height  *float64 `json:"height"`
}

type ButtonContent struct {
	Text         string  `json:"text"`
	Link         string  `json:"link"`
	OpenInNewTab bool    `json:"openInNewTab"`
	Variant      string  `json:"variant"` // primary | secondary | outline | ghost
	Size         string  `json:"size"`    // sm | md | lg
	Icon         *string `json:"icon"`
	IconPosition string  `json:"iconPosition"` // left | right
}

type FormField struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"` // text | email | tel | number | textarea | select | checkbox | radio
	Label       string   `json:"label"`
	Placeholder string   `json:"placeholder"`
	Required    bool     `json:"required"`
	Options     []string `json:"options,omitempty"`
}

type FormContent struct {
	Fields         []FormField `json:"fields"`
	SubmitButton   string      `json:"submitButton"`
	SuccessMessage string      `json:"successMessage"`
	ErrorMessage   string      `json:"errorMessage"`
	Action         string      `json:"action"`
	Method         string      `json:"method"` // POST | GET
}

type VideoContent struct {
	URL      string `json:"url"`
	Provider string `json:"provider"` // youtube | vimeo | custom
	Autoplay bool   `json:"autoplay"`
	Loop     bool   `json:"loop"`
	Controls bool   `json:"controls"`
	Muted    bool   `json:"muted"`
}

type IconContent struct {
	Name    string  `json:"name"`
	Library string  `json:"library"` // lucide | heroicons | custom
	Size    float64 `json:"size"`
	Color   string  `json:"color"`
}

type DividerContent struct {
	Style string  `json:"style"` // solid | dashed | dotted
	Width float64 `json:"width"`
	Color string  `json:"color"`
}

type SpacerContent struct {
	Height float64 `json:"height"`
}

// HTMLContent is raw markup rendered as-is.
type HTMLContent struct {
	HTML string `json:"html"`
}

func (*HeadingContent) Kind() ElementType { return ElementTypeHeading }
func (*TextContent) Kind() ElementType    { return ElementTypeText }
func (*ImageContent) Kind() ElementType   { return ElementTypeImage }
func (*ButtonContent) Kind() ElementType  { return ElementTypeButton }
func (*FormContent) Kind() ElementType    { return ElementTypeForm }
func (*VideoContent) Kind() ElementType   { return ElementTypeVideo }
func (*IconContent) Kind() ElementType    { return ElementTypeIcon }
func (*DividerContent) Kind() ElementType { return ElementTypeDivider }
func (*SpacerContent) Kind() ElementType  { return ElementTypeSpacer }
func (*HTMLContent) Kind() ElementType    { return ElementTypeHTML }

func (c *HeadingContent) CloneContent() Content { cp := *c; return &cp }
func (c *TextContent) CloneContent() Content    { cp := *c; return &cp }
func (c *VideoContent) CloneContent() Content   { cp := *c; return &cp }
func (c *IconContent) CloneContent() Content    { cp := *c; return &cp }
func (c *DividerContent) CloneContent() Content { cp := *c; return &cp }
func (c *SpacerContent) CloneContent() Content  { cp := *c; return &cp }
func (c *HTMLContent) CloneContent() Content    { cp := *c; return &cp }

func (c *ImageContent) CloneContent() Content {
	cp := *c
	cp.Caption = cloneString(c.Caption)
	cp.Link = cloneString(c.Link)
	cp.Width = cloneFloat(c.Width)
	cp.Height = cloneFloat(c.Height)
	return &cp
}

func (c *ButtonContent) CloneContent() Content {
	cp := *c
	cp.Icon = cloneString(c.Icon)
	return &cp
}

func (c *FormContent) CloneContent() Content {
	cp := *c
	if c.Fields != nil {
		cp.Fields = make([]FormField, len(c.Fields))
		for i, f := range c.Fields {
			cp.Fields[i] = f
			if f.Options != nil {
				cp.Fields[i].Options = append([]string(nil), f.Options...)
			}
		}
	}
	return &cp
}

// NewContent returns an empty payload of the variant used by t.
func NewContent(t ElementType) (Content, error) {
	switch t {
	case ElementTypeHeading:
		return &HeadingContent{Level: 2}, nil
	case ElementTypeText:
		return &TextContent{}, nil
	case ElementTypeImage:
		return &ImageContent{}, nil
	case ElementTypeButton:
		return &ButtonContent{Variant: "primary", Size: "md", IconPosition: "left"}, nil
	case ElementTypeForm:
		return &FormContent{Method: "POST"}, nil
	case ElementTypeVideo:
		return &VideoContent{Provider: "youtube", Controls: true}, nil
	case ElementTypeIcon:
		return &IconContent{Library: "lucide"}, nil
	case ElementTypeDivider:
		return &DividerContent{Style: "solid"}, nil
	case ElementTypeSpacer:
		return &SpacerContent{}, nil
	case ElementTypeHTML:
		return &HTMLContent{}, nil
	default:
		return nil, fmt.Errorf("unknown element type %q", t)
	}
}

// DecodeContent decodes raw JSON into the variant used by t. Empty or null
// input yields a nil content for known types.
func DecodeContent(t ElementType, raw json.RawMessage) (Content, error) {
	c, err := NewContent(t)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if err := json.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("decode %s content: %w", t, err)
	}
	return c, nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
