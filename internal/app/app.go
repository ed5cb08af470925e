package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"pagebuilder/internal/collab"
	"pagebuilder/internal/config"
	"pagebuilder/internal/domain"
	"pagebuilder/internal/realtime"
	"pagebuilder/internal/service"
	"pagebuilder/internal/storage"
	"pagebuilder/internal/template"
)

const (
	joinTimeout     = 10 * time.Second
	shutdownTimeout = 15 * time.Second
)

// App wires storage, services and the collaboration channel together.
// It owns every long-running component and shuts them down in order.
type App struct {
	ctx     context.Context
	cfg     *config.Config
	emitter service.EventEmitter

	stores    *storage.Stores
	templates *template.Library
	pages     *service.PageService
	autosave  *service.Autosaver
	sessions  *service.SessionRegistry

	hub     *realtime.Hub // memory backend only
	channel collab.Channel
	gateway *realtime.Gateway
	sweeper *collab.Sweeper
	watcher *storeWatcher

	mu       sync.Mutex
	bindings map[string]*collab.Binding // pageID → local user's binding

	closeOnce sync.Once
}

// New opens the configured store and builds every component. Nothing runs
// in the background until Run.
func New(ctx context.Context, cfg *config.Config, emitter service.EventEmitter) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if emitter == nil {
		emitter = service.LogEmitter{}
	}
	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	a := &App{
		ctx:      ctx,
		cfg:      cfg,
		emitter:  emitter,
		bindings: make(map[string]*collab.Binding),
	}

	stores, err := storage.Open(ctx, cfg.StoreConfig())
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.stores = stores

	a.templates, err = template.NewLibrary(cfg.Templates.Dir)
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("load templates: %w", err)
	}
	a.templates.OnReload(func(ids []string) {
		a.emitter.Emit(a.ctx, EventTemplatesReloaded, ids)
	})

	a.pages = service.NewPageService(stores.Pages, stores.Versions, a.templates, emitter, cfg.History.MaxDepth)
	a.autosave = service.NewAutosaver(a.pages, cfg.Autosave.Delay.Duration)
	a.sessions = service.NewSessionRegistry(a.pages, a.autosave)

	if err := a.openChannel(ctx); err != nil {
		stores.Close()
		return nil, err
	}
	a.sessions.OnOpen(a.join)
	a.sessions.OnClose(a.leave)

	a.sweeper, err = collab.NewSweeper(cfg.Collab.SweepSchedule, cfg.Collab.IdleTimeout.Duration, a.overlays)
	if err != nil {
		a.channel.Close()
		stores.Close()
		return nil, err
	}
	a.sweeper.OnPrune(func([]string) { a.emitPresence() })

	a.watcher = newStoreWatcher(watcherDeps{
		interval:  cfg.Collab.PollInterval.Duration,
		sessions:  a.sessions,
		pages:     a.pages,
		approvals: stores.Approvals,
		pending:   a.autosave.Pending,
		emitter:   emitter,
	})
	return a, nil
}

func (a *App) openChannel(ctx context.Context) error {
	switch a.cfg.Realtime.Backend {
	case "redis":
		ch, err := realtime.NewRedisChannel(ctx, realtime.RedisConfig{
			Address:   a.cfg.Realtime.RedisAddr,
			KeyPrefix: a.cfg.Realtime.RedisPrefix,
			TTL:       a.cfg.Realtime.PresenceTTL.Duration,
		}, realtime.WithEphemeralRoots(collab.RootChanges))
		if err != nil {
			return fmt.Errorf("open realtime channel: %w", err)
		}
		a.channel = ch
	default:
		a.hub = realtime.NewHub(realtime.WithEphemeralRoots(collab.RootChanges))
		a.channel = a.hub.Connect()
		a.gateway = realtime.NewGateway(a.hub)
	}
	return nil
}

// Pages returns the page service.
func (a *App) Pages() *service.PageService { return a.pages }

// Sessions returns the registry of open editing sessions.
func (a *App) Sessions() *service.SessionRegistry { return a.sessions }

// Templates returns the template library.
func (a *App) Templates() *template.Library { return a.templates }

// Stores returns the open storage backend.
func (a *App) Stores() *storage.Stores { return a.stores }

// Binding returns the local user's collaboration binding on pageID, set
// while the page's session is open.
func (a *App) Binding(pageID string) (*collab.Binding, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.bindings[pageID]
	return b, ok
}

// Run starts the background components and blocks until ctx is done or
// one of them fails. With serveHTTP the Handler listens on the configured
// address.
func (a *App) Run(ctx context.Context, serveHTTP bool) error {
	if err := a.templates.Watch(ctx); err != nil {
		log.Printf("[APP] template watch disabled: %v", err)
	}
	a.sweeper.Start()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.watcher.Run(ctx)
		return nil
	})
	g.Go(func() error {
		a.runHeartbeat(ctx)
		return nil
	})
	if serveHTTP && a.cfg.Realtime.ListenAddr != "" {
		srv := &http.Server{
			Addr:              a.cfg.Realtime.ListenAddr,
			Handler:           a.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			log.Printf("[APP] listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}

// Handler serves the WebSocket gateway at /ws, the pending MCP approvals
// and a health check.
func (a *App) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())

	if a.gateway != nil {
		router.GET("/ws", gin.WrapH(a.gateway))
	}
	router.GET("/healthz", a.healthHandler)

	approvals := router.Group("/approvals")
	approvals.GET("", a.listApprovalsHandler)
	approvals.POST("/:id/approve", a.resolveApprovalHandler(true))
	approvals.POST("/:id/reject", a.resolveApprovalHandler(false))
	return router
}

func (a *App) healthHandler(c *gin.Context) {
	c.String(http.StatusOK, "ok %d sessions\n", len(a.sessions.Open()))
}

func (a *App) listApprovalsHandler(c *gin.Context) {
	pending, err := a.stores.Approvals.ListPendingApprovals(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if pending == nil {
		pending = []storage.Approval{}
	}
	c.JSON(http.StatusOK, pending)
}

func (a *App) resolveApprovalHandler(approved bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		err := a.stores.Approvals.ResolveApproval(c.Request.Context(), id, approved)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "no pending approval " + id})
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		default:
			log.Printf("[APP] approval %s resolved (approved=%v)", id, approved)
			c.Status(http.StatusNoContent)
		}
	}
}

// Close saves pending edits, stops every component and releases the
// store. It is safe to call more than once.
func (a *App) Close(ctx context.Context) error {
	var err error
	a.closeOnce.Do(func() {
		a.sweeper.Stop(ctx)
		a.sessions.CloseAll(ctx)
		a.autosave.Flush(ctx)
		a.pages.WaitSaves(ctx)

		var errs []error
		if a.gateway != nil {
			errs = append(errs, a.gateway.Close())
		}
		errs = append(errs, a.channel.Close())
		errs = append(errs, a.templates.Close())
		errs = append(errs, a.stores.Close())
		err = errors.Join(errs...)
		log.Println("[APP] shut down")
	})
	return err
}
