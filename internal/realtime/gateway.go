package realtime

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Frame is the JSON message exchanged over a gateway WebSocket.
//
// Client to server: publish, remove, onDisconnect (path), subscribe
// (sub, path as prefix), unsubscribe (sub). Each carries a seq answered by
// an ack frame, with Error set on failure.
// Server to client: message (sub, path, payload) and ack.
type Frame struct {
	Op      string `json:"op"`
	Seq     uint64 `json:"seq,omitempty"`
	Sub     int    `json:"sub,omitempty"`
	Path    string `json:"path,omitempty"`
	Payload []byte `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

const (
	OpPublish      = "publish"
	OpRemove       = "remove"
	OpOnDisconnect = "onDisconnect"
	OpSubscribe    = "subscribe"
	OpUnsubscribe  = "unsubscribe"
	OpMessage      = "message"
	OpAck          = "ack"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// Gateway exposes a Hub to remote participants over WebSocket. Every
// socket is one HubConn, so a dropped socket triggers the disconnect
// cleanup of whatever that participant registered.
type Gateway struct {
	hub      *Hub
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*gatewayConn]struct{}
}

func NewGateway(hub *Hub) *Gateway {
	return &Gateway{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[*gatewayConn]struct{}),
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[REALTIME] websocket upgrade failed: %v", err)
		return
	}

	gc := &gatewayConn{
		ws:     ws,
		hub:    g.hub.Connect(),
		send:   make(chan Frame, sendBuffer),
		unsubs: make(map[int]func()),
		done:   make(chan struct{}),
	}
	g.register(gc)
	defer g.unregister(gc)

	go gc.writeLoop()
	gc.readLoop()
}

// Close disconnects every socket.
func (g *Gateway) Close() error {
	g.mu.Lock()
	conns := make([]*gatewayConn, 0, len(g.conns))
	for c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()
	for _, c := range conns {
		c.ws.Close()
	}
	return nil
}

func (g *Gateway) register(c *gatewayConn) {
	g.mu.Lock()
	g.conns[c] = struct{}{}
	n := len(g.conns)
	g.mu.Unlock()
	log.Printf("[REALTIME] websocket connection registered: %d active connections", n)
}

func (g *Gateway) unregister(c *gatewayConn) {
	g.mu.Lock()
	delete(g.conns, c)
	n := len(g.conns)
	g.mu.Unlock()

	c.shutdown()
	log.Printf("[REALTIME] websocket connection unregistered: %d active connections", n)
}

type gatewayConn struct {
	ws  *websocket.Conn
	hub *HubConn

	send chan Frame

	mu     sync.Mutex
	unsubs map[int]func()
	closed bool
	done   chan struct{}
}

func (c *gatewayConn) readLoop() {
	c.ws.SetReadLimit(1 << 20)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[REALTIME] websocket read: %v", err)
			}
			return
		}
		c.enqueue(Frame{Op: OpAck, Seq: f.Seq, Error: errString(c.dispatch(f))})
	}
}

func (c *gatewayConn) dispatch(f Frame) error {
	ctx := context.Background()
	switch f.Op {
	case OpPublish:
		return c.hub.Publish(ctx, f.Path, f.Payload)
	case OpRemove:
		return c.hub.Remove(ctx, f.Path)
	case OpOnDisconnect:
		return c.hub.RemoveOnDisconnect(ctx, f.Path)
	case OpSubscribe:
		sub := f.Sub
		unsub, err := c.hub.Subscribe(f.Path, func(path string, payload []byte) {
			c.enqueue(Frame{Op: OpMessage, Sub: sub, Path: path, Payload: payload})
		})
		if err != nil {
			return err
		}
		c.mu.Lock()
		if old, ok := c.unsubs[sub]; ok {
			old()
		}
		c.unsubs[sub] = unsub
		c.mu.Unlock()
		return nil
	case OpUnsubscribe:
		c.mu.Lock()
		unsub, ok := c.unsubs[f.Sub]
		delete(c.unsubs, f.Sub)
		c.mu.Unlock()
		if ok {
			unsub()
		}
		return nil
	default:
		return fmt.Errorf("unknown op %q", f.Op)
	}
}

// enqueue never blocks the hub: a client that cannot keep up is dropped.
func (c *gatewayConn) enqueue(f Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- f:
	default:
		log.Printf("[REALTIME] websocket send buffer full, dropping connection")
		c.closed = true
		close(c.done)
		c.ws.Close()
	}
}

func (c *gatewayConn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case f := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(f); err != nil {
				c.ws.Close()
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.ws.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *gatewayConn) shutdown() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	unsubs := c.unsubs
	c.unsubs = map[int]func(){}
	c.mu.Unlock()

	for _, fn := range unsubs {
		fn()
	}
	c.hub.Close()
	c.ws.Close()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
