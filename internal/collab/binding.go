package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/editor"
)

// EventPresenceChanged is emitted with an overlay Snapshot whenever the
// mirrored state of another participant changes.
const EventPresenceChanged = "pagebuilder:presence-changed"

const (
	broadcastTimeout = 5 * time.Second
	seenChangesCap   = 1024
)

// Binding connects one local user's editing session to a page's real-time
// channel: it publishes the user's presence, cursor, selection and local
// mutations, and mirrors everyone else's into the overlay and session.
type Binding struct {
	session *editor.Session
	overlay *Overlay
	channel Channel
	emitter editor.Emitter

	userID string
	pageID string

	mu          sync.Mutex
	user        domain.ActiveUser
	joined      bool
	unsubs      []func()
	stopObserve func()

	// seenMu is separate from mu: inbound handlers run while Join holds mu.
	seenMu    sync.Mutex
	seen      map[string]struct{}
	seenOrder []string
}

// NewBinding creates an unjoined binding. emitter may be nil.
func NewBinding(session *editor.Session, overlay *Overlay, channel Channel, user domain.ActiveUser, emitter editor.Emitter) *Binding {
	return &Binding{
		session: session,
		overlay: overlay,
		channel: channel,
		emitter: emitter,
		userID:  user.ID,
		user:    user,
		pageID:  session.PageID(),
		seen:    make(map[string]struct{}),
	}
}

func (b *Binding) UserID() string { return b.userID }
func (b *Binding) PageID() string { return b.pageID }

func (b *Binding) Overlay() *Overlay { return b.overlay }

// Join announces the user on the page and starts mirroring the other
// participants. Joining twice is a no-op.
func (b *Binding) Join(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.joined {
		return nil
	}

	roots := []string{RootPresence, RootCursors, RootSelections, RootChanges}
	for _, root := range roots {
		unsub, err := b.channel.Subscribe(Prefix(root, b.pageID), b.handle)
		if err != nil {
			b.unsubscribeLocked()
			return fmt.Errorf("subscribe %s: %w", root, err)
		}
		b.unsubs = append(b.unsubs, unsub)
	}

	for _, p := range []string{
		PresencePath(b.pageID, b.userID),
		CursorPath(b.pageID, b.userID),
		SelectionPath(b.pageID, b.userID),
	} {
		if err := b.channel.RemoveOnDisconnect(ctx, p); err != nil {
			b.unsubscribeLocked()
			return fmt.Errorf("register disconnect cleanup: %w", err)
		}
	}

	now := time.Now()
	b.user.JoinedAt = now
	b.user.LastActivity = now
	if err := b.publishLocked(ctx, PresencePath(b.pageID, b.userID), b.user); err != nil {
		b.unsubscribeLocked()
		return fmt.Errorf("publish presence: %w", err)
	}

	b.stopObserve = b.session.Observe(b.onMutation)
	b.overlay.SetCollaborating(true)
	b.joined = true
	log.Printf("[COLLAB] %s joined page %s", b.userID, b.pageID)
	return nil
}

// Leave removes the user's entries from the channel and stops mirroring.
func (b *Binding) Leave(ctx context.Context) error {
	b.mu.Lock()
	if !b.joined {
		b.mu.Unlock()
		return nil
	}
	b.joined = false
	if b.stopObserve != nil {
		b.stopObserve()
		b.stopObserve = nil
	}
	b.unsubscribeLocked()
	b.mu.Unlock()

	var errs []error
	for _, p := range []string{
		SelectionPath(b.pageID, b.userID),
		CursorPath(b.pageID, b.userID),
		PresencePath(b.pageID, b.userID),
	} {
		if err := b.channel.Remove(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	b.overlay.Reset()
	b.emitPresence()
	log.Printf("[COLLAB] %s left page %s", b.userID, b.pageID)
	return errors.Join(errs...)
}

func (b *Binding) MoveCursor(ctx context.Context, x, y float64) error {
	b.touch()
	return b.publish(ctx, CursorPath(b.pageID, b.userID), domain.CursorPosition{
		UserID:    b.userID,
		X:         x,
		Y:         y,
		Timestamp: time.Now(),
	})
}

// Select publishes the local selection and updates the user's focus.
func (b *Binding) Select(ctx context.Context, kind domain.SelectionKind, id string) error {
	err := b.publish(ctx, SelectionPath(b.pageID, b.userID), domain.RemoteSelection{
		UserID:    b.userID,
		Kind:      kind,
		TargetID:  id,
		Timestamp: time.Now(),
	})
	if err != nil {
		return err
	}
	return b.updatePresence(ctx, func(u *domain.ActiveUser) {
		switch kind {
		case domain.SelectionSection:
			u.CurrentSection = id
			u.CurrentElement = ""
		case domain.SelectionElement:
			u.CurrentElement = id
		}
	})
}

func (b *Binding) ClearSelection(ctx context.Context) error {
	if err := b.channel.Remove(ctx, SelectionPath(b.pageID, b.userID)); err != nil {
		return fmt.Errorf("clear selection: %w", err)
	}
	return b.updatePresence(ctx, func(u *domain.ActiveUser) {
		u.CurrentSection = ""
		u.CurrentElement = ""
	})
}

func (b *Binding) SetTyping(ctx context.Context, typing bool) error {
	return b.updatePresence(ctx, func(u *domain.ActiveUser) { u.IsTyping = typing })
}

// Heartbeat republishes presence so that a joined user outlives the
// channel's presence TTL and the peers' idle sweep.
func (b *Binding) Heartbeat(ctx context.Context) error {
	return b.updatePresence(ctx, func(*domain.ActiveUser) {})
}

// Broadcast packages a local mutation as a change event and publishes it.
// Remote mutations are never re-broadcast.
func (b *Binding) Broadcast(ctx context.Context, m editor.Mutation) error {
	if m.Remote {
		return nil
	}
	c := domain.Change{
		ID:        uuid.NewString(),
		UserID:    b.userID,
		Kind:      m.Kind,
		Target:    m.Target,
		TargetID:  m.TargetID,
		SectionID: m.SectionID,
		Data:      m.Data,
		Timestamp: m.At,
	}
	b.markSeen(c.ID)
	b.touch()
	return b.publish(ctx, ChangePath(b.pageID, c.ID), c)
}

func (b *Binding) onMutation(m editor.Mutation) {
	if m.Remote {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), broadcastTimeout)
	defer cancel()
	if err := b.Broadcast(ctx, m); err != nil {
		log.Printf("[COLLAB] broadcast %s on page %s: %v", m.Action, b.pageID, err)
	}
}

func (b *Binding) updatePresence(ctx context.Context, fn func(u *domain.ActiveUser)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.user)
	b.user.LastActivity = time.Now()
	if !b.joined {
		return nil
	}
	return b.publishLocked(ctx, PresencePath(b.pageID, b.userID), b.user)
}

func (b *Binding) touch() {
	b.mu.Lock()
	b.user.LastActivity = time.Now()
	b.mu.Unlock()
}

func (b *Binding) publish(ctx context.Context, path string, v any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.joined {
		return nil
	}
	return b.publishLocked(ctx, path, v)
}

func (b *Binding) publishLocked(ctx context.Context, path string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := b.channel.Publish(ctx, path, payload); err != nil {
		return fmt.Errorf("publish %s: %w", path, err)
	}
	return nil
}

func (b *Binding) unsubscribeLocked() {
	for _, fn := range b.unsubs {
		fn()
	}
	b.unsubs = nil
}

// ─────────────────────────────────────────────────────────────
// Inbound
// ─────────────────────────────────────────────────────────────

func (b *Binding) handle(path string, payload []byte) {
	root, pageID, leaf, ok := ParsePath(path)
	if !ok || pageID != b.pageID {
		return
	}
	if root != RootChanges && leaf == b.userID {
		return
	}

	switch root {
	case RootPresence:
		b.handlePresence(leaf, payload)
	case RootCursors:
		if len(payload) == 0 {
			b.overlay.RemoveCursor(leaf)
		} else {
			var c domain.CursorPosition
			if err := json.Unmarshal(payload, &c); err != nil {
				log.Printf("[COLLAB] decode cursor %s: %v", path, err)
				return
			}
			b.overlay.UpdateCursor(leaf, c)
			b.overlay.Touch(leaf, time.Now())
		}
		b.emitPresence()
	case RootSelections:
		if len(payload) == 0 {
			b.overlay.RemoveSelection(leaf)
		} else {
			var sel domain.RemoteSelection
			if err := json.Unmarshal(payload, &sel); err != nil {
				log.Printf("[COLLAB] decode selection %s: %v", path, err)
				return
			}
			b.overlay.UpdateSelection(leaf, sel)
		}
		b.emitPresence()
	case RootChanges:
		b.handleChange(path, payload)
	}
}

func (b *Binding) handlePresence(userID string, payload []byte) {
	if len(payload) == 0 {
		b.overlay.RemoveUser(userID)
		log.Printf("[COLLAB] %s left page %s", userID, b.pageID)
		b.emitPresence()
		return
	}
	var u domain.ActiveUser
	if err := json.Unmarshal(payload, &u); err != nil {
		log.Printf("[COLLAB] decode presence of %s: %v", userID, err)
		return
	}
	u.ID = userID
	if u.LastActivity.IsZero() {
		u.LastActivity = time.Now()
	}
	b.overlay.AddActiveUser(userID, u)
	b.emitPresence()
}

func (b *Binding) handleChange(path string, payload []byte) {
	if len(payload) == 0 {
		return
	}
	var c domain.Change
	if err := json.Unmarshal(payload, &c); err != nil {
		log.Printf("[COLLAB] decode change %s: %v", path, err)
		return
	}
	if c.UserID == b.userID || !b.markSeen(c.ID) {
		return
	}
	b.overlay.Touch(c.UserID, time.Now())
	if err := b.session.ApplyRemote(c); err != nil {
		log.Printf("[COLLAB] %v", err)
	}
}

// markSeen records a change id and reports whether it was new. Transports
// deliver at least once.
func (b *Binding) markSeen(id string) bool {
	if id == "" {
		return true
	}
	b.seenMu.Lock()
	defer b.seenMu.Unlock()
	if _, ok := b.seen[id]; ok {
		return false
	}
	b.seen[id] = struct{}{}
	b.seenOrder = append(b.seenOrder, id)
	if len(b.seenOrder) > seenChangesCap {
		delete(b.seen, b.seenOrder[0])
		b.seenOrder = b.seenOrder[1:]
	}
	return true
}

func (b *Binding) emitPresence() {
	if b.emitter == nil {
		return
	}
	b.emitter.Emit(context.Background(), EventPresenceChanged, b.overlay.Snapshot())
}
