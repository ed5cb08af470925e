package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/bep/debounce"

	"pagebuilder/internal/editor"
)

// DefaultAutosaveDelay is the quiet period after the last local edit
// before a session is saved.
const DefaultAutosaveDelay = 2 * time.Second

const autosaveTimeout = 10 * time.Second

// Autosaver saves watched sessions once local edits stop for a while.
// Remote changes never trigger a save; their author saves them.
type Autosaver struct {
	svc   *PageService
	delay time.Duration

	mu      sync.Mutex
	watched map[*editor.Session]*autosaveWatch
}

type autosaveWatch struct {
	debounced   func(func())
	stopObserve func()
	dirty       bool
}

func NewAutosaver(svc *PageService, delay time.Duration) *Autosaver {
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}
	return &Autosaver{
		svc:     svc,
		delay:   delay,
		watched: make(map[*editor.Session]*autosaveWatch),
	}
}

// Watch starts autosaving sess. Watching twice is a no-op.
func (a *Autosaver) Watch(sess *editor.Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.watched[sess]; ok {
		return
	}
	w := &autosaveWatch{debounced: debounce.New(a.delay)}
	w.stopObserve = sess.Observe(func(m editor.Mutation) {
		if m.Remote {
			return
		}
		a.mu.Lock()
		w.dirty = true
		a.mu.Unlock()
		w.debounced(func() { a.saveIfDirty(sess) })
	})
	a.watched[sess] = w
}

// Unwatch stops autosaving sess, saving pending edits first.
func (a *Autosaver) Unwatch(ctx context.Context, sess *editor.Session) {
	a.mu.Lock()
	w, ok := a.watched[sess]
	if ok {
		delete(a.watched, sess)
		w.stopObserve()
	}
	dirty := ok && w.dirty
	a.mu.Unlock()

	if dirty {
		a.save(ctx, sess)
	}
}

// Flush saves every watched session with pending edits now.
func (a *Autosaver) Flush(ctx context.Context) {
	a.mu.Lock()
	var pending []*editor.Session
	for sess, w := range a.watched {
		if w.dirty {
			w.dirty = false
			pending = append(pending, sess)
		}
	}
	a.mu.Unlock()

	for _, sess := range pending {
		a.save(ctx, sess)
	}
}

// Pending reports whether sess has edits not yet saved.
func (a *Autosaver) Pending(sess *editor.Session) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	w, ok := a.watched[sess]
	return ok && w.dirty
}

func (a *Autosaver) saveIfDirty(sess *editor.Session) {
	a.mu.Lock()
	w, ok := a.watched[sess]
	if !ok || !w.dirty {
		a.mu.Unlock()
		return
	}
	w.dirty = false
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), autosaveTimeout)
	defer cancel()
	a.save(ctx, sess)
}

func (a *Autosaver) save(ctx context.Context, sess *editor.Session) {
	res := a.svc.Save(ctx, sess)
	if !res.Success {
		log.Printf("[AUTOSAVE] page %s: %s", sess.PageID(), res.Message)
		a.mu.Lock()
		if w, ok := a.watched[sess]; ok {
			w.dirty = true
		}
		a.mu.Unlock()
	}
}
