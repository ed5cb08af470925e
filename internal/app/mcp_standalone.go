package app

import (
	"context"
	"log"

	"pagebuilder/internal/config"
	mcpserver "pagebuilder/internal/mcp"
	"pagebuilder/internal/service"
)

// NewMCPServer builds the MCP server over the app's services. Destructive
// tools wait for an approval stored in the database when the config asks
// for one, so a separate process can answer it.
func (a *App) NewMCPServer(ctx context.Context) *mcpserver.Server {
	var approval *mcpserver.ApprovalQueue
	if a.cfg.MCP.RequireApproval {
		approval = mcpserver.NewApprovalQueue(ctx, a.emitter, a.cfg.MCP.ApprovalTimeout.Duration)
		approval.SetStore(a.stores.Approvals)
	}
	return mcpserver.New(mcpserver.Deps{
		Emitter:   a.emitter,
		Pages:     a.pages,
		Sessions:  a.sessions,
		Templates: a.templates,
		UserID:    a.cfg.UserID,
		Approval:  approval,
	})
}

// ServeMCP runs the app as a standalone MCP server on stdin/stdout. Edits
// are autosaved to the shared store and, with the redis backend, shared
// live with other participants. Logs go to stderr.
func ServeMCP(ctx context.Context, cfg *config.Config) error {
	a, err := New(ctx, cfg, service.LogEmitter{})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			log.Printf("[MCP] shutdown: %v", err)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := a.Run(runCtx, false); err != nil {
			log.Printf("[MCP] background: %v", err)
		}
	}()

	log.Println("[MCP] Starting standalone stdio server...")
	err = a.NewMCPServer(ctx).ServeStdio()
	cancel()
	<-done
	return err
}
