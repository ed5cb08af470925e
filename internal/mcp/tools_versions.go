package mcpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/samber/lo"

	"pagebuilder/internal/domain"
)

func (s *Server) registerVersionTools() {
	s.mcp.AddTool(mcp.NewTool("publish_page",
		mcp.WithDescription("Publish the page: saves it and records a numbered version that can be restored later"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithString("message", mcp.Description("Short description of this version (optional)")),
	), s.handlePublishPage)

	s.mcp.AddTool(mcp.NewTool("list_versions",
		mcp.WithDescription("List the published versions of a page, newest first"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleListVersions)

	s.mcp.AddTool(mcp.NewTool("restore_version",
		mcp.WithDescription("Replace the page sections with a published version. One undo step reverts it."),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithString("versionId", mcp.Description("Version ID from list_versions"), mcp.Required()),
	), s.handleRestoreVersion)
}

type versionSummary struct {
	ID        string    `json:"id"`
	Version   int       `json:"version"`
	Message   string    `json:"message"`
	CreatedBy string    `json:"createdBy"`
	Sections  int       `json:"sections"`
	CreatedAt time.Time `json:"createdAt"`
}

func summarizeVersion(v domain.PageVersion) versionSummary {
	return versionSummary{
		ID:        v.ID,
		Version:   v.Version,
		Message:   v.Message,
		CreatedBy: v.CreatedBy,
		Sections:  len(v.Sections),
		CreatedAt: v.CreatedAt,
	}
}

func (s *Server) handlePublishPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sess, err := s.session(ctx, args)
	if err != nil {
		return nil, err
	}
	v, err := s.pages.PublishVersion(ctx, sess, s.userID, getString(args, "message"))
	if err != nil {
		return nil, fmt.Errorf("publish page: %w", err)
	}
	s.emitPageChanged(ctx, sess.PageID())
	return jsonResult(summarizeVersion(*v))
}

func (s *Server) handleListVersions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := s.resolvePageID(req.GetArguments())
	if err != nil {
		return nil, err
	}
	versions, err := s.pages.ListVersions(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return jsonResult(lo.Map(versions, func(v domain.PageVersion, _ int) versionSummary { return summarizeVersion(v) }))
}

func (s *Server) handleRestoreVersion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sess, err := s.session(ctx, args)
	if err != nil {
		return nil, err
	}
	versionID, err := requireString(args, "versionId")
	if err != nil {
		return nil, err
	}
	if err := s.pages.RestoreVersion(ctx, sess, versionID); err != nil {
		return nil, fmt.Errorf("restore version: %w", err)
	}
	s.emitPageChanged(ctx, sess.PageID())
	return jsonResult(sectionOutline(sess.Sections()))
}
