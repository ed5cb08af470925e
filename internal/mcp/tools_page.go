package mcpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/samber/lo"

	"pagebuilder/internal/domain"
)

func (s *Server) registerPageTools() {
	// ── list_pages ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List your pages, most recently updated first"),
		mcp.WithNumber("limit", mcp.Description("Maximum number of pages (optional)")),
		mcp.WithNumber("offset", mcp.Description("Number of pages to skip (optional)")),
	), s.handleListPages)

	// ── create_page ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_page",
		mcp.WithDescription("Create a new draft page, optionally from a template. The new page becomes the active page."),
		mcp.WithString("title",
			mcp.Description("Title of the new page"),
			mcp.Required(),
		),
		mcp.WithString("templateId", mcp.Description("Template to start from (optional, see list_templates)")),
	), s.handleCreatePage)

	// ── set_active_page ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_active_page",
		mcp.WithDescription("Set the active page for subsequent tool calls. Tools that accept pageId will default to this."),
		mcp.WithString("pageId",
			mcp.Description("ID of the page to make active"),
			mcp.Required(),
		),
	), s.handleSetActivePage)

	// ── get_page ───────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_page",
		mcp.WithDescription("Get the full editor state of a page: sections, elements, selection, viewport and history flags"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleGetPage)

	// ── save_page ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("save_page",
		mcp.WithDescription("Save the page now instead of waiting for autosave"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleSavePage)

	// ── delete_page (destructive) ──────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_page",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete a page and its published versions. Requires user approval."),
		mcp.WithString("pageId", mcp.Description("Page ID to delete"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeletePage)
}

type pageSummary struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Status    domain.PageStatus `json:"status"`
	Version   int               `json:"version"`
	Sections  int               `json:"sections"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

func summarizePage(p domain.Page) pageSummary {
	return pageSummary{
		ID:        p.ID,
		Title:     p.Title,
		Status:    p.Status,
		Version:   p.Version,
		Sections:  len(p.Sections),
		UpdatedAt: p.UpdatedAt,
	}
}

func (s *Server) handleListPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	pages, err := s.pages.ListPages(ctx, s.userID, domain.ListOptions{
		Limit:  getInt(args, "limit", 0),
		Offset: getInt(args, "offset", 0),
	})
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return jsonResult(lo.Map(pages, func(p domain.Page, _ int) pageSummary { return summarizePage(p) }))
}

func (s *Server) handleCreatePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	title, err := requireString(args, "title")
	if err != nil {
		return nil, err
	}
	page, err := s.pages.CreatePage(ctx, s.userID, title, getString(args, "templateId"))
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	// Auto-set as active page
	s.setActivePage(page.ID)
	return jsonResult(summarizePage(*page))
}

func (s *Server) handleSetActivePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := requireString(req.GetArguments(), "pageId")
	if err != nil {
		return nil, err
	}
	if _, err := s.sessions.Session(ctx, pageID); err != nil {
		return nil, err
	}
	s.setActivePage(pageID)
	return textResult(fmt.Sprintf("Active page set to %s", pageID)), nil
}

func (s *Server) handleGetPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(ctx, req.GetArguments())
	if err != nil {
		return nil, err
	}
	return jsonResult(sess.State())
}

func (s *Server) handleSavePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(ctx, req.GetArguments())
	if err != nil {
		return nil, err
	}
	return jsonResult(s.pages.Save(ctx, sess))
}

func (s *Server) handleDeletePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := requireString(req.GetArguments(), "pageId")
	if err != nil {
		return nil, err
	}
	page, err := s.pages.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}

	meta := fmt.Sprintf(`{"pageId":%q}`, page.ID)
	if !s.confirm("delete_page", fmt.Sprintf("Delete page %q (%d sections)", page.Title, len(page.Sections)), meta) {
		return textResult("Action rejected by user"), nil
	}

	s.sessions.Close(ctx, page.ID)
	if err := s.pages.DeletePage(ctx, page.ID); err != nil {
		return nil, fmt.Errorf("delete page: %w", err)
	}
	s.mu.Lock()
	if s.activePageID == page.ID {
		s.activePageID = ""
	}
	s.mu.Unlock()

	s.emitPageChanged(ctx, page.ID)
	return textResult(fmt.Sprintf("Page %s deleted", page.ID)), nil
}
