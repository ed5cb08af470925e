package realtime

import (
	"context"
	"errors"
	"log"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
)

var ErrClosed = errors.New("channel closed")

// Option configures a transport.
type Option func(*options)

type options struct {
	ephemeral []string
}

// WithEphemeralRoots marks path roots whose values are delivered but not
// retained for late subscribers.
func WithEphemeralRoots(roots ...string) Option {
	return func(o *options) { o.ephemeral = append(o.ephemeral, roots...) }
}

func (o *options) retained(path string) bool {
	root, _, _ := strings.Cut(path, "/")
	return !slices.Contains(o.ephemeral, root)
}

type subscription struct {
	id     int
	conn   *HubConn
	prefix string
	fn     func(path string, payload []byte)
}

// Hub is an in-process fan-out of paths to subscribers. Values are
// retained, so a new subscriber first receives the current value of every
// path under its prefix. Delivery is synchronous on the publisher's
// goroutine, in subscription order.
type Hub struct {
	mu     sync.Mutex
	opts   options
	values map[string][]byte
	subs   []*subscription
	nextID int
	conns  map[*HubConn]struct{}
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		values: make(map[string][]byte),
		conns:  make(map[*HubConn]struct{}),
	}
	for _, o := range opts {
		o(&h.opts)
	}
	return h
}

// Connect opens a participant connection. Paths registered with
// RemoveOnDisconnect are removed when the connection is closed.
func (h *Hub) Connect() *HubConn {
	c := &HubConn{hub: h, cleanup: make(map[string]struct{})}
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	return c
}

// Conns reports the number of open connections.
func (h *Hub) Conns() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Value returns the retained value at path.
func (h *Hub) Value(path string) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.values[path]
	return v, ok
}

func (h *Hub) set(path string, payload []byte) {
	h.mu.Lock()
	if h.opts.retained(path) {
		h.values[path] = slices.Clone(payload)
	}
	targets := h.matchLocked(path)
	h.mu.Unlock()

	deliver(targets, path, payload)
}

func (h *Hub) remove(path string) {
	h.mu.Lock()
	_, had := h.values[path]
	delete(h.values, path)
	targets := h.matchLocked(path)
	h.mu.Unlock()

	if had || !h.opts.retained(path) {
		deliver(targets, path, nil)
	}
}

func (h *Hub) matchLocked(path string) []*subscription {
	return lo.Filter(h.subs, func(s *subscription, _ int) bool {
		return strings.HasPrefix(path, s.prefix)
	})
}

func (h *Hub) subscribe(c *HubConn, prefix string, fn func(string, []byte)) func() {
	h.mu.Lock()
	h.nextID++
	sub := &subscription{id: h.nextID, conn: c, prefix: prefix, fn: fn}
	h.subs = append(h.subs, sub)

	type kv struct {
		path  string
		value []byte
	}
	var current []kv
	for p, v := range h.values {
		if strings.HasPrefix(p, prefix) {
			current = append(current, kv{p, slices.Clone(v)})
		}
	}
	h.mu.Unlock()

	slices.SortFunc(current, func(a, b kv) int { return strings.Compare(a.path, b.path) })
	for _, e := range current {
		fn(e.path, e.value)
	}

	return func() { h.unsubscribe(sub.id) }
}

func (h *Hub) unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs = slices.DeleteFunc(h.subs, func(s *subscription) bool { return s.id == id })
}

func (h *Hub) disconnect(c *HubConn, paths []string) {
	h.mu.Lock()
	delete(h.conns, c)
	h.subs = slices.DeleteFunc(h.subs, func(s *subscription) bool { return s.conn == c })
	h.mu.Unlock()

	for _, p := range paths {
		h.remove(p)
	}
	if len(paths) > 0 {
		log.Printf("[REALTIME] connection closed, removed %d path(s)", len(paths))
	}
}

func deliver(targets []*subscription, path string, payload []byte) {
	for _, s := range targets {
		s.fn(path, payload)
	}
}

// HubConn is one participant's view of a Hub. It satisfies collab.Channel.
type HubConn struct {
	hub *Hub

	mu      sync.Mutex
	cleanup map[string]struct{}
	closed  bool
}

func (c *HubConn) Publish(ctx context.Context, path string, payload []byte) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	c.hub.set(path, payload)
	return nil
}

func (c *HubConn) Subscribe(prefix string, fn func(path string, payload []byte)) (func(), error) {
	if err := c.check(context.Background()); err != nil {
		return nil, err
	}
	return c.hub.subscribe(c, prefix, fn), nil
}

func (c *HubConn) Remove(ctx context.Context, path string) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.cleanup, path)
	c.mu.Unlock()
	c.hub.remove(path)
	return nil
}

func (c *HubConn) RemoveOnDisconnect(ctx context.Context, path string) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.cleanup[path] = struct{}{}
	c.mu.Unlock()
	return nil
}

// Close drops the connection's subscriptions and removes its registered
// paths. Closing twice is a no-op.
func (c *HubConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	paths := lo.Keys(c.cleanup)
	c.cleanup = nil
	c.mu.Unlock()

	slices.Sort(paths)
	c.hub.disconnect(c, paths)
	return nil
}

func (c *HubConn) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}
