package domain

// Viewport selects which responsive layer is presented and edited.
type Viewport string

const (
	ViewportMobile  Viewport = "mobile"
	ViewportTablet  Viewport = "tablet"
	ViewportDesktop Viewport = "desktop"
)

func (v Viewport) Valid() bool {
	switch v {
	case ViewportMobile, ViewportTablet, ViewportDesktop:
		return true
	}
	return false
}

// Apply returns l with every field set in o replaced. l is not modified.
func (l SectionLayout) Apply(o LayoutOverride) SectionLayout {
	out := l
	if o.Container != nil {
		out.Container = *o.Container
	}
	if o.Columns != nil {
		out.Columns = *o.Columns
	}
	if o.Gap != nil {
		out.Gap = *o.Gap
	}
	if o.Alignment != nil {
		out.Alignment = *o.Alignment
	}
	if o.Padding != nil {
		out.Padding = *o.Padding
	}
	if o.Margin != nil {
		out.Margin = *o.Margin
	}
	return out
}

// ResolveLayout cascades desktop -> tablet -> mobile.
func (s *Section) ResolveLayout(v Viewport) SectionLayout {
	out := s.Layout
	if v == ViewportTablet || v == ViewportMobile {
		out = out.Apply(s.Responsive.Tablet)
	}
	if v == ViewportMobile {
		out = out.Apply(s.Responsive.Mobile)
	}
	return out
}

// Overlay returns a copy of s with every field set in o taking precedence.
func (s ElementStyling) Overlay(o ElementStyling) ElementStyling {
	out := s.Clone()
	o = o.Clone()
	if o.Typography != nil {
		out.Typography = o.Typography
	}
	if o.Spacing != nil {
		out.Spacing = o.Spacing
	}
	if o.Background != nil {
		out.Background = o.Background
	}
	if o.Border != nil {
		out.Border = o.Border
	}
	if o.Shadow != nil {
		out.Shadow = o.Shadow
	}
	return out
}

// ResolveStyling cascades desktop -> tablet -> mobile. The result never
// shares memory with the element.
func (e *Element) ResolveStyling(v Viewport) ElementStyling {
	out := e.Styling.Clone()
	if v == ViewportTablet || v == ViewportMobile {
		out = out.Overlay(e.Responsive.Tablet)
	}
	if v == ViewportMobile {
		out = out.Overlay(e.Responsive.Mobile)
	}
	return out
}

// Resolved returns a deep copy of the section whose Layout and element
// stylings are flattened for v. Responsive overlays are left in place.
func (s *Section) Resolved(v Viewport) Section {
	cp := s.Clone()
	cp.Layout = s.ResolveLayout(v)
	for i := range cp.Elements {
		cp.Elements[i].Styling = s.Elements[i].ResolveStyling(v)
	}
	return cp
}
