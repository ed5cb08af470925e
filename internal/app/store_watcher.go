package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/editor"
	"pagebuilder/internal/storage"
)

const defaultPollInterval = 2 * time.Second

// storeUserID marks changes the watcher pulled from the store.
const storeUserID = "store"

type openSessions interface {
	Open() []string
	Lookup(pageID string) (*editor.Session, bool)
}

type pageGetter interface {
	GetPage(ctx context.Context, id string) (*domain.Page, error)
}

type approvalLister interface {
	ListPendingApprovals(ctx context.Context) ([]storage.Approval, error)
}

type watcherDeps struct {
	interval  time.Duration
	sessions  openSessions
	pages     pageGetter
	approvals approvalLister // nil disables approval forwarding
	pending   func(*editor.Session) bool
	emitter   editor.Emitter
}

// storeWatcher polls the store for changes made by other processes (an
// MCP server or another editor on the same database): pages with an open
// session that were saved elsewhere, and MCP approvals waiting for an
// answer.
type storeWatcher struct {
	watcherDeps

	mu sync.Mutex
	// Track emitted approval IDs to avoid re-emission
	emittedApprovals map[string]bool
	// Last stored version reported per page while local edits were pending
	reported map[string]int
}

func newStoreWatcher(deps watcherDeps) *storeWatcher {
	if deps.interval <= 0 {
		deps.interval = defaultPollInterval
	}
	if deps.pending == nil {
		deps.pending = func(*editor.Session) bool { return false }
	}
	return &storeWatcher{
		watcherDeps:      deps,
		emittedApprovals: map[string]bool{},
		reported:         map[string]int{},
	}
}

// Run polls until ctx is done.
func (w *storeWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.check(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (w *storeWatcher) check(ctx context.Context) {
	for _, pageID := range w.sessions.Open() {
		if sess, ok := w.sessions.Lookup(pageID); ok {
			w.checkPage(ctx, sess)
		}
	}
	if w.approvals != nil {
		w.checkApprovals(ctx)
	}
}

// pageChange is the payload of the page events.
type pageChange struct {
	PageID   string `json:"pageId"`
	Version  int    `json:"version"`
	Reloaded bool   `json:"reloaded"`
}

// checkPage compares the stored version with the session's. A session
// without pending edits takes the stored tree; otherwise the change is
// only reported so the user can decide.
func (w *storeWatcher) checkPage(ctx context.Context, sess *editor.Session) {
	pageID := sess.PageID()
	if sess.SaveStatus().Saving {
		return
	}
	stored, err := w.pages.GetPage(ctx, pageID)
	if errors.Is(err, domain.ErrNotFound) {
		w.emitOnce(ctx, pageID, -1, EventPageDeleted, pageChange{PageID: pageID})
		return
	}
	if err != nil {
		log.Printf("[WATCHER] get page %s: %v", pageID, err)
		return
	}
	// A save may have landed between the two reads.
	if sess.SaveStatus().Saving || stored.Version <= sess.Page().Version {
		return
	}

	if w.pending(sess) {
		w.emitOnce(ctx, pageID, stored.Version, EventPageChangedExternally, pageChange{
			PageID:  pageID,
			Version: stored.Version,
		})
		return
	}

	if err := reloadSession(sess, stored); err != nil {
		log.Printf("[WATCHER] reload page %s: %v", pageID, err)
		return
	}
	w.mu.Lock()
	delete(w.reported, pageID)
	w.mu.Unlock()
	log.Printf("[WATCHER] reloaded page %s at version %d", pageID, stored.Version)
	w.emitter.Emit(ctx, EventPageReloaded, pageChange{PageID: pageID, Version: stored.Version, Reloaded: true})
}

func (w *storeWatcher) emitOnce(ctx context.Context, pageID string, version int, event string, data pageChange) {
	w.mu.Lock()
	last, seen := w.reported[pageID]
	w.reported[pageID] = version
	w.mu.Unlock()
	if seen && last == version {
		return
	}
	w.emitter.Emit(ctx, event, data)
}

// reloadSession swaps the stored tree into sess as a remote change, so it
// stays out of the local undo history.
func reloadSession(sess *editor.Session, stored *domain.Page) error {
	sections := stored.Sections
	if sections == nil {
		sections = []domain.Section{}
	}
	data, err := json.Marshal(editor.ReplaceData{Sections: sections})
	if err != nil {
		return err
	}
	err = sess.ApplyRemote(domain.Change{
		ID:        uuid.New().String(),
		UserID:    storeUserID,
		Kind:      domain.ChangeReplace,
		Target:    domain.TargetPage,
		TargetID:  stored.ID,
		Data:      data,
		Timestamp: stored.UpdatedAt,
	})
	if err != nil {
		return err
	}
	sess.SetTitle(stored.Title)
	sess.SetPageMeta(stored.Version, stored.Status, stored.UpdatedAt)
	return nil
}

// checkApprovals forwards approvals created by a standalone MCP process.
func (w *storeWatcher) checkApprovals(ctx context.Context) {
	pending, err := w.approvals.ListPendingApprovals(ctx)
	if err != nil {
		log.Printf("[WATCHER] list approvals: %v", err)
		return
	}

	live := make(map[string]bool, len(pending))
	for _, a := range pending {
		live[a.ID] = true
		w.mu.Lock()
		alreadySent := w.emittedApprovals[a.ID]
		w.emittedApprovals[a.ID] = true
		w.mu.Unlock()
		if alreadySent {
			continue
		}
		w.emitter.Emit(ctx, EventApprovalRequired, map[string]string{
			"id":          a.ID,
			"tool":        a.Tool,
			"description": a.Description,
			"createdAt":   a.CreatedAt.Format(time.RFC3339),
			"metadata":    a.Metadata,
		})
	}

	// Clean up tracking for resolved/deleted approvals
	w.mu.Lock()
	for id := range w.emittedApprovals {
		if !live[id] {
			delete(w.emittedApprovals, id)
		}
	}
	w.mu.Unlock()
}
