package collab

import (
	"sync"
	"time"

	"github.com/samber/lo"

	"pagebuilder/internal/domain"
)

// Overlay mirrors the ephemeral state of the other participants on a page:
// presence, cursors and selections, each keyed by user id. Entries are
// owned by the remote users; the overlay only mirrors them.
type Overlay struct {
	mu sync.RWMutex

	users      map[string]domain.ActiveUser
	cursors    map[string]domain.CursorPosition
	selections map[string]domain.RemoteSelection

	collaborating bool
}

func NewOverlay() *Overlay {
	return &Overlay{
		users:      make(map[string]domain.ActiveUser),
		cursors:    make(map[string]domain.CursorPosition),
		selections: make(map[string]domain.RemoteSelection),
	}
}

// ─────────────────────────────────────────────────────────────
// Active users
// ─────────────────────────────────────────────────────────────

func (o *Overlay) ActiveUsers() map[string]domain.ActiveUser {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return lo.Assign(o.users)
}

func (o *Overlay) SetActiveUsers(users map[string]domain.ActiveUser) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.users = lo.Assign(users)
}

func (o *Overlay) AddActiveUser(id string, u domain.ActiveUser) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.users[id] = u
}

// UpdateActiveUser merges patch into a known user. Unknown users are
// ignored: an update can race a disconnect and must not resurrect it.
func (o *Overlay) UpdateActiveUser(id string, patch domain.ActiveUserPatch) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	u, ok := o.users[id]
	if !ok {
		return false
	}
	if patch.DisplayName != nil {
		u.DisplayName = *patch.DisplayName
	}
	if patch.Color != nil {
		u.Color = *patch.Color
	}
	if patch.IsTyping != nil {
		u.IsTyping = *patch.IsTyping
	}
	if patch.CurrentSection != nil {
		u.CurrentSection = *patch.CurrentSection
	}
	if patch.CurrentElement != nil {
		u.CurrentElement = *patch.CurrentElement
	}
	u.LastActivity = time.Now()
	o.users[id] = u
	return true
}

// Touch records activity from a known user. Cursor moves and changes count,
// not only presence updates.
func (o *Overlay) Touch(id string, at time.Time) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	u, ok := o.users[id]
	if !ok {
		return false
	}
	if at.After(u.LastActivity) {
		u.LastActivity = at
		o.users[id] = u
	}
	return true
}

func (o *Overlay) RemoveActiveUser(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.users, id)
}

// ─────────────────────────────────────────────────────────────
// Cursors
// ─────────────────────────────────────────────────────────────

func (o *Overlay) Cursors() map[string]domain.CursorPosition {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return lo.Assign(o.cursors)
}

func (o *Overlay) SetCursors(cursors map[string]domain.CursorPosition) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cursors = lo.Assign(cursors)
}

func (o *Overlay) UpdateCursor(id string, c domain.CursorPosition) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cursors[id] = c
}

func (o *Overlay) RemoveCursor(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.cursors, id)
}

// ─────────────────────────────────────────────────────────────
// Selections
// ─────────────────────────────────────────────────────────────

func (o *Overlay) Selections() map[string]domain.RemoteSelection {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return lo.Assign(o.selections)
}

func (o *Overlay) SetSelections(selections map[string]domain.RemoteSelection) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.selections = lo.Assign(selections)
}

func (o *Overlay) UpdateSelection(id string, sel domain.RemoteSelection) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.selections[id] = sel
}

func (o *Overlay) RemoveSelection(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.selections, id)
}

// ─────────────────────────────────────────────────────────────
// Lifecycle
// ─────────────────────────────────────────────────────────────

// RemoveUser drops every entry of a disconnected user.
func (o *Overlay) RemoveUser(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.users, id)
	delete(o.cursors, id)
	delete(o.selections, id)
}

func (o *Overlay) SetCollaborating(on bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.collaborating = on
}

func (o *Overlay) IsCollaborating() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.collaborating
}

// PruneIdle removes users whose last activity is older than maxIdle and
// returns their ids.
func (o *Overlay) PruneIdle(maxIdle time.Duration, now time.Time) []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	idle := lo.Keys(lo.PickBy(o.users, func(_ string, u domain.ActiveUser) bool {
		return now.Sub(u.LastActivity) > maxIdle
	}))
	for _, id := range idle {
		delete(o.users, id)
		delete(o.cursors, id)
		delete(o.selections, id)
	}
	return idle
}

func (o *Overlay) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.users = make(map[string]domain.ActiveUser)
	o.cursors = make(map[string]domain.CursorPosition)
	o.selections = make(map[string]domain.RemoteSelection)
	o.collaborating = false
}

// Snapshot is the overlay as sent to the presentation layer.
type Snapshot struct {
	Collaborating bool                              `json:"isCollaborating"`
	ActiveUsers   map[string]domain.ActiveUser      `json:"activeUsers"`
	Cursors       map[string]domain.CursorPosition  `json:"cursors"`
	Selections    map[string]domain.RemoteSelection `json:"selections"`
}

func (o *Overlay) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return Snapshot{
		Collaborating: o.collaborating,
		ActiveUsers:   lo.Assign(o.users),
		Cursors:       lo.Assign(o.cursors),
		Selections:    lo.Assign(o.selections),
	}
}
