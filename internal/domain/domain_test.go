package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagebuilder/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func sampleSection() domain.Section {
	return domain.Section{
		ID:      "hero",
		Type:    domain.SectionTypeHero,
		Name:    "Hero",
		Visible: true,
		Layout: domain.SectionLayout{
			Container: domain.ContainerBoxed,
			Columns:   2,
			Gap:       32,
			Alignment: domain.AlignCenter,
			Padding:   domain.Spacing{Top: 80, Bottom: 80},
		},
		Styling: domain.SectionStyling{
			Background: domain.Background{
				Type:     domain.BackgroundGradient,
				Gradient: &domain.Gradient{Type: "linear", Angle: 90, Colors: []string{"#000", "#fff"}},
			},
		},
		Responsive: domain.SectionResponsive{
			Tablet: domain.LayoutOverride{Columns: ptr(2), Gap: ptr(16.0)},
			Mobile: domain.LayoutOverride{Columns: ptr(1)},
		},
		Animation: &domain.Animation{Type: domain.AnimationFade, Duration: 0.4},
		Elements: []domain.Element{
			{
				ID:      "title",
				Type:    domain.ElementTypeHeading,
				Name:    "Title",
				Visible: true,
				Content: &domain.HeadingContent{Text: "Build faster", Level: 1},
				Styling: domain.ElementStyling{
					Typography: &domain.Typography{FontSize: 48, Color: "#111"},
				},
				Responsive: domain.ElementResponsive{
					Tablet: domain.ElementStyling{Typography: &domain.Typography{FontSize: 36}},
					Mobile: domain.ElementStyling{Shadow: ptr("none")},
				},
			},
			{
				ID:      "signup",
				Type:    domain.ElementTypeForm,
				Name:    "Signup",
				Order:   1,
				Visible: true,
				Content: &domain.FormContent{
					Fields: []domain.FormField{{ID: "plan", Type: "select", Options: []string{"free", "pro"}}},
					Method: "POST",
				},
			},
		},
	}
}

// ─────────────────────────────────────────────────────────────
// JSON
// ─────────────────────────────────────────────────────────────

func TestElement_JSONKeepsContentVariant(t *testing.T) {
	sec := sampleSection()
	b, err := json.Marshal(sec)
	require.NoError(t, err)

	var back domain.Section
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, sec, back)

	_, ok := back.Elements[1].Content.(*domain.FormContent)
	assert.True(t, ok)
}

func TestElement_JSONUnknownType(t *testing.T) {
	var el domain.Element
	err := json.Unmarshal([]byte(`{"id":"x","type":"carousel","content":{}}`), &el)
	assert.Error(t, err)
}

func TestElement_CheckContent(t *testing.T) {
	el := domain.Element{ID: "x", Type: domain.ElementTypeImage, Content: &domain.TextContent{}}
	assert.ErrorIs(t, el.CheckContent(), domain.ErrContentMismatch)

	el.Content = nil
	assert.NoError(t, el.CheckContent())

	el.Type = ""
	assert.Error(t, el.CheckContent())
}

func TestNewContent_AllTypes(t *testing.T) {
	types := []domain.ElementType{
		domain.ElementTypeHeading, domain.ElementTypeText, domain.ElementTypeImage,
		domain.ElementTypeButton, domain.ElementTypeForm, domain.ElementTypeVideo,
		domain.ElementTypeIcon, domain.ElementTypeDivider, domain.ElementTypeSpacer,
		domain.ElementTypeHTML,
	}
	for _, typ := range types {
		c, err := domain.NewContent(typ)
		require.NoError(t, err, typ)
		assert.Equal(t, typ, c.Kind())
		assert.Equal(t, c, c.CloneContent())
	}
}

// ─────────────────────────────────────────────────────────────
// Clone
// ─────────────────────────────────────────────────────────────

func TestSection_CloneIsDeep(t *testing.T) {
	orig := sampleSection()
	cp := orig.Clone()
	require.Equal(t, orig, cp)

	cp.Styling.Background.Gradient.Colors[0] = "#f00"
	*cp.Responsive.Tablet.Columns = 9
	cp.Animation.Duration = 3
	cp.Elements[0].Content.(*domain.HeadingContent).Text = "changed"
	cp.Elements[0].Styling.Typography.FontSize = 1
	*cp.Elements[0].Responsive.Mobile.Shadow = "lg"
	cp.Elements[1].Content.(*domain.FormContent).Fields[0].Options[0] = "gold"

	assert.Equal(t, sampleSection(), orig)
}

func TestPage_Clone(t *testing.T) {
	var nilPage *domain.Page
	assert.Nil(t, nilPage.Clone())

	p := &domain.Page{ID: "p", Sections: []domain.Section{sampleSection()}}
	cp := p.Clone()
	cp.Sections[0].Name = "other"
	assert.Equal(t, "Hero", p.Sections[0].Name)
}

// ─────────────────────────────────────────────────────────────
// Responsive cascade
// ─────────────────────────────────────────────────────────────

func TestSection_ResolveLayout(t *testing.T) {
	sec := sampleSection()

	tests := []struct {
		viewport domain.Viewport
		columns  int
		gap      float64
	}{
		{domain.ViewportDesktop, 2, 32},
		{domain.ViewportTablet, 2, 16},
		{domain.ViewportMobile, 1, 16},
	}
	for _, tt := range tests {
		t.Run(string(tt.viewport), func(t *testing.T) {
			l := sec.ResolveLayout(tt.viewport)
			assert.Equal(t, tt.columns, l.Columns)
			assert.Equal(t, tt.gap, l.Gap)
			assert.Equal(t, domain.ContainerBoxed, l.Container)
		})
	}
	assert.Equal(t, sampleSection(), sec, "resolution never mutates the base")
}

func TestElement_ResolveStyling(t *testing.T) {
	sec := sampleSection()
	el := &sec.Elements[0]

	desktop := el.ResolveStyling(domain.ViewportDesktop)
	assert.Equal(t, 48.0, desktop.Typography.FontSize)
	assert.Nil(t, desktop.Shadow)

	mobile := el.ResolveStyling(domain.ViewportMobile)
	assert.Equal(t, 36.0, mobile.Typography.FontSize, "tablet cascades into mobile")
	require.NotNil(t, mobile.Shadow)
	assert.Equal(t, "none", *mobile.Shadow)

	mobile.Typography.FontSize = 1
	assert.Equal(t, sampleSection(), sec)
}

func TestViewport_Valid(t *testing.T) {
	assert.True(t, domain.ViewportTablet.Valid())
	assert.False(t, domain.Viewport("tv").Valid())
}

// ─────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────

func TestValidateSections(t *testing.T) {
	good := []domain.Section{sampleSection()}
	require.NoError(t, domain.ValidateSections(good))

	dup := []domain.Section{{ID: "a"}, {ID: "a", Order: 1}}
	assert.ErrorIs(t, domain.ValidateSections(dup), domain.ErrDuplicateID)

	gap := []domain.Section{{ID: "a"}, {ID: "b", Order: 2}}
	assert.Error(t, domain.ValidateSections(gap))

	bad := sampleSection()
	bad.Elements[1].Content = &domain.TextContent{}
	assert.ErrorIs(t, domain.ValidateSections([]domain.Section{bad}), domain.ErrContentMismatch)

	domain.ReindexSections(gap)
	assert.NoError(t, domain.ValidateSections(gap))
}
