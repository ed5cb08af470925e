package collab

import (
	"context"
	"strings"
)

// Channel is the real-time transport shared by all participants of a
// page. Paths are slash separated. An empty payload delivered to a
// subscriber means the value at that path was removed.
type Channel interface {
	Publish(ctx context.Context, path string, payload []byte) error
	// Subscribe delivers every publish and removal under prefix. Handlers
	// may run on transport goroutines.
	Subscribe(prefix string, fn func(path string, payload []byte)) (unsubscribe func(), err error)
	Remove(ctx context.Context, path string) error
	// RemoveOnDisconnect asks the transport to remove path when this
	// publisher goes away, cleanly or not.
	RemoveOnDisconnect(ctx context.Context, path string) error
	Close() error
}

// Path roots.
const (
	RootPresence   = "presence"
	RootCursors    = "cursors"
	RootSelections = "selections"
	RootChanges    = "changes"
)

func PresencePath(pageID, userID string) string  { return RootPresence + "/" + pageID + "/" + userID }
func CursorPath(pageID, userID string) string    { return RootCursors + "/" + pageID + "/" + userID }
func SelectionPath(pageID, userID string) string { return RootSelections + "/" + pageID + "/" + userID }
func ChangePath(pageID, changeID string) string  { return RootChanges + "/" + pageID + "/" + changeID }

// Prefix returns the subscription prefix of a root for one page.
func Prefix(root, pageID string) string { return root + "/" + pageID + "/" }

// ParsePath splits root/page/leaf.
func ParsePath(path string) (root, pageID, leaf string, ok bool) {
	parts := strings.SplitN(path, "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// MatchPrefix reports whether path is at or below prefix.
func MatchPrefix(prefix, path string) bool {
	return prefix == "" || strings.HasPrefix(path, prefix)
}
