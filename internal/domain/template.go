package domain

// TemplateCategory groups templates in the library.
type TemplateCategory string

const (
	TemplateBusiness  TemplateCategory = "business"
	TemplatePortfolio TemplateCategory = "portfolio"
	TemplateEcommerce TemplateCategory = "ecommerce"
	TemplateAgency    TemplateCategory = "agency"
	TemplateSaaS      TemplateCategory = "saas"
	TemplatePersonal  TemplateCategory = "personal"
	TemplateNonprofit TemplateCategory = "nonprofit"
)

// Template is a reusable set of sections a page can start from.
type Template struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Category    TemplateCategory `json:"category"`
	Sections    []Section        `json:"sections"`
	Tags        []string         `json:"tags"`
}
