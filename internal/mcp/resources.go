package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/samber/lo"

	"pagebuilder/internal/domain"
)

const (
	pagesURI      = "pagebuilder://pages"
	templatesURI  = "pagebuilder://templates"
	pageURIPrefix = "pagebuilder://page/"
)

func (s *Server) registerResources() {
	// ── pagebuilder://pages ────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		pagesURI,
		"All Pages",
		mcp.WithMIMEType("application/json"),
	), s.handlePagesResource)

	// ── pagebuilder://templates ────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		templatesURI,
		"Page Templates",
		mcp.WithMIMEType("application/json"),
	), s.handleTemplatesResource)

	// ── pagebuilder://page/{pageId} ────────────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			pageURIPrefix+"{pageId}",
			"Page Sections",
		),
		s.handlePageResource,
	)
}

func (s *Server) handlePagesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	pages, err := s.pages.ListPages(ctx, s.userID, domain.ListOptions{})
	if err != nil {
		return nil, err
	}
	return jsonResource(pagesURI, lo.Map(pages, func(p domain.Page, _ int) pageSummary { return summarizePage(p) }))
}

func (s *Server) handleTemplatesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(templatesURI, lo.Map(s.templates.List(""), func(t domain.Template, _ int) templateSummary {
		return summarizeTemplate(t)
	}))
}

// handlePageResource serves the live tree of the page's editing session,
// which may be ahead of the stored copy.
func (s *Server) handlePageResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	pageID := extractPageIDFromURI(uri)
	if pageID == "" {
		return nil, fmt.Errorf("could not extract pageId from URI: %s", uri)
	}
	sess, err := s.sessions.Session(ctx, pageID)
	if err != nil {
		return nil, err
	}
	return jsonResource(uri, sess.Page())
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// extractPageIDFromURI extracts the page ID from "pagebuilder://page/{id}".
func extractPageIDFromURI(uri string) string {
	id, ok := strings.CutPrefix(uri, pageURIPrefix)
	if !ok {
		return ""
	}
	id, _, _ = strings.Cut(id, "/")
	return id
}
