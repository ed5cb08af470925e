package domain

// SectionType is the layout archetype of a section.
type SectionType string

const (
	SectionTypeHero         SectionType = "hero"
	SectionTypeFeatures     SectionType = "features"
	SectionTypeTestimonials SectionType = "testimonials"
	SectionTypePricing      SectionType = "pricing"
	SectionTypeContact      SectionType = "contact"
	SectionTypeFAQ          SectionType = "faq"
	SectionTypeCTA          SectionType = "cta"
	SectionTypeStats        SectionType = "stats"
	SectionTypeTeam         SectionType = "team"
	SectionTypePortfolio    SectionType = "portfolio"
	SectionTypeCustom       SectionType = "custom"
)

type Container string

const (
	ContainerFull   Container = "full"
	ContainerBoxed  Container = "boxed"
	ContainerNarrow Container = "narrow"
)

type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

type Spacing struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// SectionLayout is the desktop (base) layout of a section.
type SectionLayout struct {
	Container Container `json:"container"`
	Columns   int       `json:"columns"`
	Gap       float64   `json:"gap"`
	Alignment Alignment `json:"alignment"`
	Padding   Spacing   `json:"padding"`
	Margin    Spacing   `json:"margin"`
}

// LayoutOverride is a partial SectionLayout. Nil fields inherit.
type LayoutOverride struct {
	Container *Container `json:"container,omitempty"`
	Columns   *int       `json:"columns,omitempty"`
	Gap       *float64   `json:"gap,omitempty"`
	Alignment *Alignment `json:"alignment,omitempty"`
	Padding   *Spacing   `json:"padding,omitempty"`
	Margin    *Spacing   `json:"margin,omitempty"`
}

// SectionResponsive holds the tablet and mobile overlays on top of Layout.
type SectionResponsive struct {
	Tablet LayoutOverride `json:"tablet"`
	Mobile LayoutOverride `json:"mobile"`
}

type BackgroundType string

const (
	BackgroundNone     BackgroundType = "none"
	BackgroundColor    BackgroundType = "color"
	BackgroundGradient BackgroundType = "gradient"
	BackgroundImage    BackgroundType = "image"
	BackgroundVideo    BackgroundType = "video"
)

type Gradient struct {
	Type   string   `json:"type"` // linear | radial
	Angle  float64  `json:"angle"`
	Colors []string `json:"colors"`
}

type BackgroundImageSettings struct {
	URL        string `json:"url"`
	Position   string `json:"position"`
	Size       string `json:"size"` // cover | contain | auto
	Repeat     bool   `json:"repeat"`
	Attachment string `json:"attachment"` // scroll | fixed
}

type BackgroundVideoSettings struct {
	URL      string `json:"url"`
	Autoplay bool   `json:"autoplay"`
	Loop     bool   `json:"loop"`
	Muted    bool   `json:"muted"`
}

type Background struct {
	Type     BackgroundType           `json:"type"`
	Color    string                   `json:"color,omitempty"`
	Gradient *Gradient                `json:"gradient,omitempty"`
	Image    *BackgroundImageSettings `json:"image,omitempty"`
	Video    *BackgroundVideoSettings `json:"video,omitempty"`
}

type Border struct {
	Width  float64 `json:"width"`
	Style  string  `json:"style"` // none | solid | dashed | dotted
	Color  string  `json:"color"`
	Radius float64 `json:"radius"`
}

type SectionStyling struct {
	Background Background `json:"background"`
	Border     Border     `json:"border"`
	Shadow     string     `json:"shadow,omitempty"`
}

type AnimationType string

const (
	AnimationNone   AnimationType = "none"
	AnimationFade   AnimationType = "fade"
	AnimationSlide  AnimationType = "slide"
	AnimationScale  AnimationType = "scale"
	AnimationRotate AnimationType = "rotate"
)

type Animation struct {
	Type     AnimationType `json:"type"`
	Duration float64       `json:"duration"`
	Delay    float64       `json:"delay"`
	Easing   string        `json:"easing"`
}

// Section is a layout-level node owning an ordered list of elements.
// Order always equals the section's position in the page.
type Section struct {
	ID         string            `json:"id"`
	Type       SectionType       `json:"type"`
	Name       string            `json:"name"`
	Order      int               `json:"order"`
	Visible    bool              `json:"visible"`
	Elements   []Element         `json:"elements"`
	Layout     SectionLayout     `json:"layout"`
	Styling    SectionStyling    `json:"styling"`
	Responsive SectionResponsive `json:"responsive"`
	Animation  *Animation        `json:"animation"`
}

// ElementIndex returns the position of the element with the given id, or -1.
func (s *Section) ElementIndex(id string) int {
	for i := range s.Elements {
		if s.Elements[i].ID == id {
			return i
		}
	}
	return -1
}

// SectionIndex returns the position of the section with the given id, or -1.
func SectionIndex(sections []Section, id string) int {
	for i := range sections {
		if sections[i].ID == id {
			return i
		}
	}
	return -1
}
