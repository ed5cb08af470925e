package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/editor"
)

func (s *Server) registerElementTools() {
	// ── add_element ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("add_element",
		mcp.WithDescription("Add an element to a section. Appends unless index is set. Content defaults to an empty payload of the type."),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithString("sectionId", mcp.Description("Section ID"), mcp.Required()),
		mcp.WithString("type",
			mcp.Description("Element type: heading, text, image, button, form, video, icon, divider, spacer, html"),
			mcp.Required(),
		),
		mcp.WithString("name", mcp.Description("Display name (optional)")),
		mcp.WithString("content", mcp.Description(`Content JSON for the type, e.g. {"text":"Hello","level":1} for a heading (optional)`)),
		mcp.WithNumber("index", mcp.Description("Position to insert at (optional)")),
	), s.handleAddElement)

	// ── update_element ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_element",
		mcp.WithDescription("Patch an element. The patch is JSON with any of: name, visible, content, styling, responsive, animation, removeAnimation. Content must match the element type."),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithString("sectionId", mcp.Description("Section ID"), mcp.Required()),
		mcp.WithString("elementId", mcp.Description("Element ID"), mcp.Required()),
		mcp.WithString("patch", mcp.Description("Patch JSON"), mcp.Required()),
	), s.handleUpdateElement)

	// ── delete_element ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_element",
		mcp.WithDescription("Delete an element from its section"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithString("sectionId", mcp.Description("Section ID"), mcp.Required()),
		mcp.WithString("elementId", mcp.Description("Element ID"), mcp.Required()),
	), s.handleDeleteElement)

	// ── move_element ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("move_element",
		mcp.WithDescription("Move the element at position from to position to within its section"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithString("sectionId", mcp.Description("Section ID"), mcp.Required()),
		mcp.WithNumber("from", mcp.Description("Current position"), mcp.Required()),
		mcp.WithNumber("to", mcp.Description("New position"), mcp.Required()),
	), s.handleMoveElement)

	// ── duplicate_element ──────────────────────────────
	s.mcp.AddTool(mcp.NewTool("duplicate_element",
		mcp.WithDescription("Insert a copy of an element right after it"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithString("sectionId", mcp.Description("Section ID"), mcp.Required()),
		mcp.WithString("elementId", mcp.Description("Element ID"), mcp.Required()),
	), s.handleDuplicateElement)
}

// elementTarget resolves the session and section named by the tool args.
func (s *Server) elementTarget(ctx context.Context, args map[string]any) (*editor.Session, string, error) {
	sess, err := s.session(ctx, args)
	if err != nil {
		return nil, "", err
	}
	sectionID, err := requireString(args, "sectionId")
	if err != nil {
		return nil, "", err
	}
	if _, ok := sess.Section(sectionID); !ok {
		return nil, "", fmt.Errorf("section %s: %w", sectionID, domain.ErrNotFound)
	}
	return sess, sectionID, nil
}

func (s *Server) handleAddElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sess, sectionID, err := s.elementTarget(ctx, args)
	if err != nil {
		return nil, err
	}
	elementType, err := requireString(args, "type")
	if err != nil {
		return nil, err
	}

	el := domain.Element{
		Type:    domain.ElementType(elementType),
		Name:    getString(args, "name"),
		Visible: true,
	}
	if raw := getString(args, "content"); raw != "" {
		content, err := domain.DecodeContent(el.Type, json.RawMessage(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid content: %w", err)
		}
		el.Content = content
	} else if _, err := domain.NewContent(el.Type); err != nil {
		return nil, err
	}

	var id string
	if index := getInt(args, "index", -1); index >= 0 {
		id, err = sess.InsertElement(sectionID, el, index)
	} else {
		id, err = sess.AddElement(sectionID, el)
	}
	if err != nil {
		return nil, fmt.Errorf("add element: %w", err)
	}

	s.emitPageChanged(ctx, sess.PageID())
	added, _ := sess.Element(sectionID, id)
	return jsonResult(added)
}

func (s *Server) handleUpdateElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sess, sectionID, err := s.elementTarget(ctx, args)
	if err != nil {
		return nil, err
	}
	elementID, err := requireString(args, "elementId")
	if err != nil {
		return nil, err
	}
	raw, err := requireString(args, "patch")
	if err != nil {
		return nil, err
	}
	var patch editor.ElementPatch
	if err := parseJSON(raw, &patch); err != nil {
		return nil, fmt.Errorf("invalid patch JSON: %w", err)
	}

	if _, ok := sess.Element(sectionID, elementID); !ok {
		return nil, fmt.Errorf("element %s: %w", elementID, domain.ErrNotFound)
	}
	if err := sess.UpdateElement(sectionID, elementID, patch); err != nil {
		return nil, err
	}

	s.emitPageChanged(ctx, sess.PageID())
	updated, _ := sess.Element(sectionID, elementID)
	return jsonResult(updated)
}

func (s *Server) handleDeleteElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sess, sectionID, err := s.elementTarget(ctx, args)
	if err != nil {
		return nil, err
	}
	elementID, err := requireString(args, "elementId")
	if err != nil {
		return nil, err
	}
	if _, ok := sess.Element(sectionID, elementID); !ok {
		return nil, fmt.Errorf("element %s: %w", elementID, domain.ErrNotFound)
	}
	if err := sess.DeleteElement(sectionID, elementID); err != nil {
		return nil, fmt.Errorf("delete element: %w", err)
	}
	s.emitPageChanged(ctx, sess.PageID())
	return textResult(fmt.Sprintf("Element %s deleted", elementID)), nil
}

func (s *Server) handleMoveElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sess, sectionID, err := s.elementTarget(ctx, args)
	if err != nil {
		return nil, err
	}
	from, to := getInt(args, "from", -1), getInt(args, "to", -1)
	if err := sess.MoveElement(sectionID, from, to); err != nil {
		return nil, fmt.Errorf("move element: %w", err)
	}
	s.emitPageChanged(ctx, sess.PageID())
	section, _ := sess.Section(sectionID)
	return jsonResult(section.Elements)
}

func (s *Server) handleDuplicateElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sess, sectionID, err := s.elementTarget(ctx, args)
	if err != nil {
		return nil, err
	}
	elementID, err := requireString(args, "elementId")
	if err != nil {
		return nil, err
	}
	id, err := sess.DuplicateElement(sectionID, elementID)
	if err != nil {
		return nil, fmt.Errorf("duplicate element: %w", err)
	}
	if id == "" {
		return nil, fmt.Errorf("element %s: %w", elementID, domain.ErrNotFound)
	}
	s.emitPageChanged(ctx, sess.PageID())
	return textResult(fmt.Sprintf("Element %s duplicated as %s", elementID, id)), nil
}
