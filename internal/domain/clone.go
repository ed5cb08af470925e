package domain

// Structural deep copies. The history engine and duplicate operations rely
// on these never sharing mutable state with their source.

func (s *Section) Clone() Section {
	cp := *s
	if s.Elements != nil {
		cp.Elements = make([]Element, len(s.Elements))
		for i := range s.Elements {
			cp.Elements[i] = s.Elements[i].Clone()
		}
	}
	cp.Styling = s.Styling.Clone()
	cp.Responsive = SectionResponsive{
		Tablet: s.Responsive.Tablet.Clone(),
		Mobile: s.Responsive.Mobile.Clone(),
	}
	cp.Animation = cloneAnimation(s.Animation)
	return cp
}

func (e *Element) Clone() Element {
	cp := *e
	if e.Content != nil {
		cp.Content = e.Content.CloneContent()
	}
	cp.Styling = e.Styling.Clone()
	cp.Responsive = ElementResponsive{
		Tablet: e.Responsive.Tablet.Clone(),
		Mobile: e.Responsive.Mobile.Clone(),
	}
	cp.Animation = cloneAnimation(e.Animation)
	return cp
}

// CloneSections deep-copies a section sequence. A nil input stays nil.
func CloneSections(sections []Section) []Section {
	if sections == nil {
		return nil
	}
	out := make([]Section, len(sections))
	for i := range sections {
		out[i] = sections[i].Clone()
	}
	return out
}

func (s SectionStyling) Clone() SectionStyling {
	cp := s
	cp.Background = s.Background.Clone()
	return cp
}

func (b Background) Clone() Background {
	cp := b
	if b.Gradient != nil {
		g := *b.Gradient
		g.Colors = append([]string(nil), b.Gradient.Colors...)
		cp.Gradient = &g
	}
	if b.Image != nil {
		img := *b.Image
		cp.Image = &img
	}
	if b.Video != nil {
		v := *b.Video
		cp.Video = &v
	}
	return cp
}

func (o LayoutOverride) Clone() LayoutOverride {
	cp := o
	if o.Container != nil {
		v := *o.Container
		cp.Container = &v
	}
	if o.Columns != nil {
		v := *o.Columns
		cp.Columns = &v
	}
	cp.Gap = cloneFloat(o.Gap)
	if o.Alignment != nil {
		v := *o.Alignment
		cp.Alignment = &v
	}
	if o.Padding != nil {
		v := *o.Padding
		cp.Padding = &v
	}
	if o.Margin != nil {
		v := *o.Margin
		cp.Margin = &v
	}
	return cp
}

func (s ElementStyling) Clone() ElementStyling {
	var cp ElementStyling
	if s.Typography != nil {
		v := *s.Typography
		cp.Typography = &v
	}
	if s.Spacing != nil {
		v := *s.Spacing
		cp.Spacing = &v
	}
	if s.Background != nil {
		v := *s.Background
		cp.Background = &v
	}
	if s.Border != nil {
		v := *s.Border
		cp.Border = &v
	}
	cp.Shadow = cloneString(s.Shadow)
	return cp
}

func cloneAnimation(a *Animation) *Animation {
	if a == nil {
		return nil
	}
	v := *a
	return &v
}
