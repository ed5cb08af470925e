package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/samber/lo"

	"pagebuilder/internal/domain"
)

func (s *Server) registerTemplateTools() {
	s.mcp.AddTool(mcp.NewTool("list_templates",
		mcp.WithDescription("List the page templates, optionally filtered by category"),
		mcp.WithString("category", mcp.Description("business, portfolio, ecommerce, agency, saas, personal or nonprofit (optional)")),
	), s.handleListTemplates)

	s.mcp.AddTool(mcp.NewTool("apply_template",
		mcp.WithDescription("Add the sections of a template to the page, or replace all sections with them. One undo step reverts it."),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithString("templateId", mcp.Description("Template ID"), mcp.Required()),
		mcp.WithBoolean("replace", mcp.Description("Replace the existing sections instead of appending (default false)")),
	), s.handleApplyTemplate)
}

type templateSummary struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Category    domain.TemplateCategory `json:"category"`
	Sections    []string                `json:"sections"`
	Tags        []string                `json:"tags,omitempty"`
}

func summarizeTemplate(t domain.Template) templateSummary {
	return templateSummary{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Category:    t.Category,
		Sections:    lo.Map(t.Sections, func(s domain.Section, _ int) string { return string(s.Type) }),
		Tags:        t.Tags,
	}
}

func (s *Server) handleListTemplates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category := domain.TemplateCategory(getString(req.GetArguments(), "category"))
	return jsonResult(lo.Map(s.templates.List(category), func(t domain.Template, _ int) templateSummary {
		return summarizeTemplate(t)
	}))
}

func (s *Server) handleApplyTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sess, err := s.session(ctx, args)
	if err != nil {
		return nil, err
	}
	templateID, err := requireString(args, "templateId")
	if err != nil {
		return nil, err
	}
	if err := s.pages.ApplyTemplate(sess, templateID, getBool(args, "replace", false)); err != nil {
		return nil, fmt.Errorf("apply template: %w", err)
	}
	s.emitPageChanged(ctx, sess.PageID())
	return jsonResult(sectionOutline(sess.Sections()))
}
