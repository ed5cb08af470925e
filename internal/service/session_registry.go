package service

import (
	"context"
	"log"
	"slices"
	"sync"

	"github.com/samber/lo"

	"pagebuilder/internal/editor"
)

// SessionRegistry keeps one open editing session per page for this
// process and autosaves them.
type SessionRegistry struct {
	svc      *PageService
	autosave *Autosaver

	mu       sync.Mutex
	sessions map[string]*editor.Session
	onOpen   func(*editor.Session)
	onClose  func(*editor.Session)
}

// NewSessionRegistry creates a registry. autosave may be nil.
func NewSessionRegistry(svc *PageService, autosave *Autosaver) *SessionRegistry {
	return &SessionRegistry{
		svc:      svc,
		autosave: autosave,
		sessions: make(map[string]*editor.Session),
	}
}

// OnOpen registers a hook run once for every newly opened session.
func (r *SessionRegistry) OnOpen(fn func(*editor.Session)) { r.onOpen = fn }

// OnClose registers a hook run before a session is dropped.
func (r *SessionRegistry) OnClose(fn func(*editor.Session)) { r.onClose = fn }

// Session returns the open session of pageID, loading it from the store
// on first use.
func (r *SessionRegistry) Session(ctx context.Context, pageID string) (*editor.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[pageID]; ok {
		return s, nil
	}
	s, err := r.svc.OpenSession(ctx, pageID)
	if err != nil {
		return nil, err
	}
	r.sessions[pageID] = s
	if r.autosave != nil {
		r.autosave.Watch(s)
	}
	if r.onOpen != nil {
		r.onOpen(s)
	}
	log.Printf("[SERVICE] opened session for page %s", pageID)
	return s, nil
}

// Lookup returns an already open session.
func (r *SessionRegistry) Lookup(pageID string) (*editor.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[pageID]
	return s, ok
}

// Open lists the page ids with an open session, sorted.
func (r *SessionRegistry) Open() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := lo.Keys(r.sessions)
	slices.Sort(ids)
	return ids
}

// Close saves pending edits of pageID and drops its session.
func (r *SessionRegistry) Close(ctx context.Context, pageID string) {
	r.mu.Lock()
	s, ok := r.sessions[pageID]
	delete(r.sessions, pageID)
	r.mu.Unlock()
	if !ok {
		return
	}
	r.release(ctx, s)
}

// CloseAll closes every session; used on shutdown.
func (r *SessionRegistry) CloseAll(ctx context.Context) {
	r.mu.Lock()
	sessions := lo.Values(r.sessions)
	r.sessions = make(map[string]*editor.Session)
	r.mu.Unlock()

	for _, s := range sessions {
		r.release(ctx, s)
	}
}

func (r *SessionRegistry) release(ctx context.Context, s *editor.Session) {
	if r.onClose != nil {
		r.onClose(s)
	}
	if r.autosave != nil {
		r.autosave.Unwatch(ctx, s)
	}
}
