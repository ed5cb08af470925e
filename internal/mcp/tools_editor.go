package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"pagebuilder/internal/domain"
)

func (s *Server) registerEditorTools() {
	s.mcp.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Undo the last edit of the page"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleUndo)

	s.mcp.AddTool(mcp.NewTool("redo",
		mcp.WithDescription("Redo the last undone edit of the page"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleRedo)

	s.mcp.AddTool(mcp.NewTool("history",
		mcp.WithDescription("List the undo history of the page, oldest first; the current entry is flagged"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleHistory)

	s.mcp.AddTool(mcp.NewTool("select_section",
		mcp.WithDescription("Select a section in the editor"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithString("sectionId", mcp.Description("Section ID"), mcp.Required()),
	), s.handleSelectSection)

	s.mcp.AddTool(mcp.NewTool("select_element",
		mcp.WithDescription("Select an element in the editor"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithString("elementId", mcp.Description("Element ID"), mcp.Required()),
	), s.handleSelectElement)

	s.mcp.AddTool(mcp.NewTool("clear_selection",
		mcp.WithDescription("Clear the editor selection"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleClearSelection)

	s.mcp.AddTool(mcp.NewTool("set_viewport",
		mcp.WithDescription("Switch the edited viewport. Layout and styling edits then apply to that device."),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithString("viewport", mcp.Description("desktop, tablet or mobile"), mcp.Required()),
	), s.handleSetViewport)

	s.mcp.AddTool(mcp.NewTool("preview_section",
		mcp.WithDescription("Show a section as rendered in the current viewport, with responsive overrides applied"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithString("sectionId", mcp.Description("Section ID"), mcp.Required()),
	), s.handlePreviewSection)
}

func (s *Server) handleUndo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(ctx, req.GetArguments())
	if err != nil {
		return nil, err
	}
	if !sess.Undo() {
		return textResult("Nothing to undo"), nil
	}
	s.emitPageChanged(ctx, sess.PageID())
	return jsonResult(sectionOutline(sess.Sections()))
}

func (s *Server) handleRedo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(ctx, req.GetArguments())
	if err != nil {
		return nil, err
	}
	if !sess.Redo() {
		return textResult("Nothing to redo"), nil
	}
	s.emitPageChanged(ctx, sess.PageID())
	return jsonResult(sectionOutline(sess.Sections()))
}

func (s *Server) handleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(ctx, req.GetArguments())
	if err != nil {
		return nil, err
	}
	return jsonResult(sess.HistoryEntries())
}

func (s *Server) handleSelectSection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sess, err := s.session(ctx, args)
	if err != nil {
		return nil, err
	}
	id, err := requireString(args, "sectionId")
	if err != nil {
		return nil, err
	}
	sess.SelectSection(id)
	return jsonResult(sess.Selection())
}

func (s *Server) handleSelectElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sess, err := s.session(ctx, args)
	if err != nil {
		return nil, err
	}
	id, err := requireString(args, "elementId")
	if err != nil {
		return nil, err
	}
	sess.SelectElement(id)
	return jsonResult(sess.Selection())
}

func (s *Server) handleClearSelection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(ctx, req.GetArguments())
	if err != nil {
		return nil, err
	}
	sess.ClearSelection()
	return textResult("Selection cleared"), nil
}

func (s *Server) handleSetViewport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sess, err := s.session(ctx, args)
	if err != nil {
		return nil, err
	}
	viewport, err := requireString(args, "viewport")
	if err != nil {
		return nil, err
	}
	if err := sess.SetViewport(domain.Viewport(viewport)); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("Viewport set to %s", viewport)), nil
}

func (s *Server) handlePreviewSection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sess, err := s.session(ctx, args)
	if err != nil {
		return nil, err
	}
	id, err := requireString(args, "sectionId")
	if err != nil {
		return nil, err
	}
	section, ok := sess.ResolvedSection(id)
	if !ok {
		return nil, fmt.Errorf("section %s: %w", id, domain.ErrNotFound)
	}
	return jsonResult(section)
}
