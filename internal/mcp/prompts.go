package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("landing_page",
		mcp.WithPromptDescription("Guide through building a landing page for a product"),
		mcp.WithArgument("product",
			mcp.ArgumentDescription("Product or company the page is about"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("audience",
			mcp.ArgumentDescription("Who the page is for"),
		),
	), s.handleLandingPagePrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("responsive_review",
		mcp.WithPromptDescription("Review every section of a page on tablet and mobile and fix layouts that do not fit"),
		mcp.WithArgument("pageId",
			mcp.ArgumentDescription("Page to review"),
			mcp.RequiredArgument(),
		),
	), s.handleResponsiveReviewPrompt)
}

func (s *Server) handleLandingPagePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	product := req.Params.Arguments["product"]
	audience := req.Params.Arguments["audience"]
	if audience == "" {
		audience = "prospective customers"
	}
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Build a landing page for: %s", product),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Build a landing page for "%s" aimed at %s. Follow these steps:

1. Use list_templates and pick the closest template, then create_page with it
2. Rewrite the hero: update_element on the heading and text so they speak to the audience
3. Add or adjust a features section with three short benefits
4. Finish with a cta section holding a button element that links to a sign-up form
5. Use set_viewport mobile and preview_section on each section; fix layouts with update_section
6. publish_page with a message describing the first version

Keep copy short. Undo any step that makes the page worse.`, product, audience),
				},
			},
		},
	}, nil
}

func (s *Server) handleResponsiveReviewPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	pageID := req.Params.Arguments["pageId"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Review page %s on smaller screens", pageID),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Review page %s on tablet and mobile. Follow these steps:

1. set_active_page %s and get_page to see the sections
2. For each viewport (tablet, then mobile): set_viewport, then preview_section on every section
3. Sections with more than two columns on mobile or one on tablet need a responsive override:
   update_section with a patch setting responsive.mobile.columns or responsive.tablet.columns
4. Large headings may need a smaller font on mobile: update_element with responsive.mobile.typography
5. save_page when done and summarize what changed.`, pageID, pageID),
				},
			},
		},
	}, nil
}
