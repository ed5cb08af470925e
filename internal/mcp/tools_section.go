package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/editor"
)

func (s *Server) registerSectionTools() {
	// ── add_section ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("add_section",
		mcp.WithDescription("Add a section to the page. Either give type and name, or a full section as JSON. Appends unless index is set."),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithString("type", mcp.Description("Section type: hero, features, testimonials, pricing, contact, faq, cta, stats, team, portfolio, custom")),
		mcp.WithString("name", mcp.Description("Display name (optional)")),
		mcp.WithString("section", mcp.Description("Full section JSON including elements (optional, ids are replaced)")),
		mcp.WithNumber("index", mcp.Description("Position to insert at (optional)")),
	), s.handleAddSection)

	// ── update_section ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_section",
		mcp.WithDescription("Patch a section. The patch is JSON with any of: type, name, visible, layout, styling, responsive, animation, removeAnimation. Each given field replaces the current one."),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithString("sectionId", mcp.Description("Section ID"), mcp.Required()),
		mcp.WithString("patch", mcp.Description("Patch JSON"), mcp.Required()),
	), s.handleUpdateSection)

	// ── delete_section (destructive) ───────────────────
	s.mcp.AddTool(mcp.NewTool("delete_section",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete a section and its elements. Requires user approval."),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithString("sectionId", mcp.Description("Section ID to delete"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteSection)

	// ── move_section ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("move_section",
		mcp.WithDescription("Move the section at position from to position to"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithNumber("from", mcp.Description("Current position"), mcp.Required()),
		mcp.WithNumber("to", mcp.Description("New position"), mcp.Required()),
	), s.handleMoveSection)

	// ── duplicate_section ──────────────────────────────
	s.mcp.AddTool(mcp.NewTool("duplicate_section",
		mcp.WithDescription("Insert a copy of a section right after it"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithString("sectionId", mcp.Description("Section ID"), mcp.Required()),
	), s.handleDuplicateSection)
}

func (s *Server) handleAddSection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sess, err := s.session(ctx, args)
	if err != nil {
		return nil, err
	}

	section := domain.Section{Type: domain.SectionTypeCustom, Visible: true}
	if raw := getString(args, "section"); raw != "" {
		if err := parseJSON(raw, &section); err != nil {
			return nil, fmt.Errorf("invalid section JSON: %w", err)
		}
		// Ids come from the editor.
		section.ID = ""
		for i := range section.Elements {
			section.Elements[i].ID = ""
		}
	}
	if t := getString(args, "type"); t != "" {
		section.Type = domain.SectionType(t)
	}
	if name := getString(args, "name"); name != "" {
		section.Name = name
	}

	var id string
	if index := getInt(args, "index", -1); index >= 0 {
		id, err = sess.InsertSection(section, index)
	} else {
		id, err = sess.AddSection(section)
	}
	if err != nil {
		return nil, fmt.Errorf("add section: %w", err)
	}

	s.emitPageChanged(ctx, sess.PageID())
	added, _ := sess.Section(id)
	return jsonResult(added)
}

func (s *Server) handleUpdateSection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sess, err := s.session(ctx, args)
	if err != nil {
		return nil, err
	}
	sectionID, err := requireString(args, "sectionId")
	if err != nil {
		return nil, err
	}
	raw, err := requireString(args, "patch")
	if err != nil {
		return nil, err
	}
	var patch editor.SectionPatch
	if err := parseJSON(raw, &patch); err != nil {
		return nil, fmt.Errorf("invalid patch JSON: %w", err)
	}

	if _, ok := sess.Section(sectionID); !ok {
		return nil, fmt.Errorf("section %s: %w", sectionID, domain.ErrNotFound)
	}
	if err := sess.UpdateSection(sectionID, patch); err != nil {
		return nil, fmt.Errorf("update section: %w", err)
	}

	s.emitPageChanged(ctx, sess.PageID())
	updated, _ := sess.Section(sectionID)
	return jsonResult(updated)
}

func (s *Server) handleDeleteSection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sess, err := s.session(ctx, args)
	if err != nil {
		return nil, err
	}
	sectionID, err := requireString(args, "sectionId")
	if err != nil {
		return nil, err
	}
	section, ok := sess.Section(sectionID)
	if !ok {
		return nil, fmt.Errorf("section %s: %w", sectionID, domain.ErrNotFound)
	}

	meta := fmt.Sprintf(`{"pageId":%q,"sectionIds":[%q]}`, sess.PageID(), section.ID)
	desc := fmt.Sprintf("Delete %s section %q with %d elements", section.Type, section.Name, len(section.Elements))
	if !s.confirm("delete_section", desc, meta) {
		return textResult("Action rejected by user"), nil
	}

	if err := sess.DeleteSection(section.ID); err != nil {
		return nil, fmt.Errorf("delete section: %w", err)
	}
	s.emitPageChanged(ctx, sess.PageID())
	return textResult(fmt.Sprintf("Section %s deleted (undo restores it)", section.ID)), nil
}

func (s *Server) handleMoveSection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sess, err := s.session(ctx, args)
	if err != nil {
		return nil, err
	}
	from, to := getInt(args, "from", -1), getInt(args, "to", -1)
	if err := sess.MoveSection(from, to); err != nil {
		return nil, fmt.Errorf("move section: %w", err)
	}
	s.emitPageChanged(ctx, sess.PageID())
	return jsonResult(sectionOutline(sess.Sections()))
}

func (s *Server) handleDuplicateSection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sess, err := s.session(ctx, args)
	if err != nil {
		return nil, err
	}
	sectionID, err := requireString(args, "sectionId")
	if err != nil {
		return nil, err
	}
	id, err := sess.DuplicateSection(sectionID)
	if err != nil {
		return nil, fmt.Errorf("duplicate section: %w", err)
	}
	if id == "" {
		return nil, fmt.Errorf("section %s: %w", sectionID, domain.ErrNotFound)
	}
	s.emitPageChanged(ctx, sess.PageID())
	return textResult(fmt.Sprintf("Section %s duplicated as %s", sectionID, id)), nil
}

type sectionLine struct {
	ID       string             `json:"id"`
	Order    int                `json:"order"`
	Type     domain.SectionType `json:"type"`
	Name     string             `json:"name"`
	Elements int                `json:"elements"`
}

// sectionOutline is the compact listing returned after reordering.
func sectionOutline(sections []domain.Section) []sectionLine {
	out := make([]sectionLine, len(sections))
	for i, sec := range sections {
		out[i] = sectionLine{
			ID:       sec.ID,
			Order:    sec.Order,
			Type:     sec.Type,
			Name:     sec.Name,
			Elements: len(sec.Elements),
		}
	}
	return out
}
