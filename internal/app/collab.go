package app

import (
	"context"
	"hash/fnv"
	"log"
	"time"

	"github.com/samber/lo"

	"pagebuilder/internal/collab"
	"pagebuilder/internal/domain"
	"pagebuilder/internal/editor"
)

// Events emitted by the app layer.
const (
	EventTemplatesReloaded     = "pagebuilder:templates-reloaded"
	EventPageChangedExternally = "pagebuilder:page-changed-externally"
	EventPageReloaded          = "pagebuilder:page-reloaded"
	EventPageDeleted           = "pagebuilder:page-deleted-externally"
	EventApprovalRequired      = "mcp:approval-required"
)

var userColors = []string{
	"#e5484d", "#f76b15", "#ffc53d", "#30a46c",
	"#12a594", "#0090ff", "#6e56cf", "#d6409f",
}

// colorFor picks a stable cursor color for a user.
func colorFor(userID string) string {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return userColors[h.Sum32()%uint32(len(userColors))]
}

// join binds a freshly opened session to the collaboration channel as the
// configured local user.
func (a *App) join(sess *editor.Session) {
	user := domain.ActiveUser{
		ID:          a.cfg.UserID,
		DisplayName: a.cfg.UserID,
		Color:       colorFor(a.cfg.UserID),
	}
	b := collab.NewBinding(sess, collab.NewOverlay(), a.channel, user, a.emitter)

	ctx, cancel := context.WithTimeout(a.ctx, joinTimeout)
	defer cancel()
	if err := b.Join(ctx); err != nil {
		// The page stays editable locally.
		log.Printf("[APP] join page %s: %v", sess.PageID(), err)
		return
	}
	a.mu.Lock()
	a.bindings[sess.PageID()] = b
	a.mu.Unlock()
}

func (a *App) leave(sess *editor.Session) {
	a.mu.Lock()
	b, ok := a.bindings[sess.PageID()]
	delete(a.bindings, sess.PageID())
	a.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), joinTimeout)
	defer cancel()
	if err := b.Leave(ctx); err != nil {
		log.Printf("[APP] leave page %s: %v", sess.PageID(), err)
	}
}

// heartbeatInterval keeps presence alive well inside both the channel's
// presence TTL and the peers' idle timeout.
func heartbeatInterval(ttl, idle time.Duration) time.Duration {
	d := min(ttl, idle)
	if ttl <= 0 {
		d = idle
	}
	if d <= 0 {
		return time.Minute
	}
	return d / 2
}

func (a *App) runHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval(a.cfg.Realtime.PresenceTTL.Duration, a.cfg.Collab.IdleTimeout.Duration))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.heartbeat(ctx)
		}
	}
}

func (a *App) heartbeat(ctx context.Context) {
	a.mu.Lock()
	bindings := lo.Values(a.bindings)
	a.mu.Unlock()
	for _, b := range bindings {
		if err := b.Heartbeat(ctx); err != nil {
			log.Printf("[APP] heartbeat page %s: %v", b.PageID(), err)
		}
	}
}

// overlays feeds the idle sweeper.
func (a *App) overlays() []*collab.Overlay {
	a.mu.Lock()
	defer a.mu.Unlock()
	return lo.Map(lo.Values(a.bindings), func(b *collab.Binding, _ int) *collab.Overlay {
		return b.Overlay()
	})
}

func (a *App) emitPresence() {
	a.mu.Lock()
	bindings := lo.Values(a.bindings)
	a.mu.Unlock()
	for _, b := range bindings {
		a.emitter.Emit(a.ctx, collab.EventPresenceChanged, b.Overlay().Snapshot())
	}
}
