package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/editor"
	"pagebuilder/internal/service"
)

// Sessions hands out the open editing session of a page.
type Sessions interface {
	Session(ctx context.Context, pageID string) (*editor.Session, error)
	Close(ctx context.Context, pageID string)
}

// TemplateLister lists the template library.
type TemplateLister interface {
	List(category domain.TemplateCategory) []domain.Template
}

// Server is the MCP server of the page builder.
// It exposes tools, resources, and prompts so AI agents can edit pages.
type Server struct {
	mcp      *server.MCPServer
	emitter  EventEmitter
	approval *ApprovalQueue

	pages     *service.PageService
	sessions  Sessions
	templates TemplateLister
	userID    string

	// Active page context (set by set_active_page / create_page)
	mu           sync.Mutex
	activePageID string
}

// Deps holds all dependencies passed from the app layer to the MCP server.
type Deps struct {
	Emitter   EventEmitter
	Pages     *service.PageService
	Sessions  Sessions
	Templates TemplateLister
	// UserID owns the pages the agent creates and lists.
	UserID string
	// Approval gates destructive tools; nil runs them directly.
	Approval *ApprovalQueue
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	s := &Server{
		emitter:   deps.Emitter,
		approval:  deps.Approval,
		pages:     deps.Pages,
		sessions:  deps.Sessions,
		templates: deps.Templates,
		userID:    deps.UserID,
	}
	if s.emitter == nil {
		s.emitter = noopEmitter{}
	}

	s.mcp = server.NewMCPServer(
		"pagebuilder-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerPageTools()
	s.registerSectionTools()
	s.registerElementTools()
	s.registerEditorTools()
	s.registerVersionTools()
	s.registerTemplateTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	log.Println("[MCP] Starting stdio server...")
	return server.ServeStdio(s.mcp)
}

// ── Helpers ────────────────────────────────────────────────

type noopEmitter struct{}

func (noopEmitter) Emit(_ context.Context, _ string, _ any) {}

// emitPageChanged notifies listeners that an agent edited a page.
func (s *Server) emitPageChanged(ctx context.Context, pageID string) {
	s.emitter.Emit(ctx, "mcp:page-changed", map[string]string{"pageId": pageID})
}

// confirm asks for approval when an approval queue is configured.
func (s *Server) confirm(tool, description, metadata string) bool {
	if s.approval == nil {
		return true
	}
	approved, err := s.approval.Request(tool, description, metadata)
	if err != nil {
		log.Printf("[MCP] %s not approved: %v", tool, err)
	}
	return err == nil && approved
}

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

func (s *Server) setActivePage(pageID string) {
	s.mu.Lock()
	s.activePageID = pageID
	s.mu.Unlock()
}

// resolvePageID returns the pageId from tool args or falls back to the active page.
func (s *Server) resolvePageID(args map[string]any) (string, error) {
	if pid, ok := args["pageId"].(string); ok && pid != "" {
		return pid, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activePageID != "" {
		return s.activePageID, nil
	}
	return "", fmt.Errorf("no pageId provided and no active page set (use set_active_page first)")
}

// session returns the editing session of the page named by the tool args.
func (s *Server) session(ctx context.Context, args map[string]any) (*editor.Session, error) {
	pageID, err := s.resolvePageID(args)
	if err != nil {
		return nil, err
	}
	return s.sessions.Session(ctx, pageID)
}
