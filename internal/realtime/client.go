package realtime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const subscribeTimeout = 10 * time.Second

// Client is a Channel backed by a Gateway WebSocket. Closing the socket,
// or losing it, makes the gateway run this client's disconnect cleanup.
type Client struct {
	ws *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	seq     uint64
	pending map[uint64]chan string
	subs    map[int]func(path string, payload []byte)
	nextSub int
	err     error
	done    chan struct{}
}

// Dial connects to a gateway at url (ws:// or wss://).
func Dial(ctx context.Context, url string) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Client{
		ws:      ws,
		pending: make(map[uint64]chan string),
		subs:    make(map[int]func(string, []byte)),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) Publish(ctx context.Context, path string, payload []byte) error {
	return c.call(ctx, Frame{Op: OpPublish, Path: path, Payload: payload})
}

func (c *Client) Remove(ctx context.Context, path string) error {
	return c.call(ctx, Frame{Op: OpRemove, Path: path})
}

func (c *Client) RemoveOnDisconnect(ctx context.Context, path string) error {
	return c.call(ctx, Frame{Op: OpOnDisconnect, Path: path})
}

// Subscribe registers fn for messages under prefix. Handlers run on the
// read goroutine and must not block on calls to the same client.
func (c *Client) Subscribe(prefix string, fn func(path string, payload []byte)) (func(), error) {
	c.mu.Lock()
	c.nextSub++
	sub := c.nextSub
	c.subs[sub] = fn
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), subscribeTimeout)
	defer cancel()
	if err := c.call(ctx, Frame{Op: OpSubscribe, Sub: sub, Path: prefix}); err != nil {
		c.mu.Lock()
		delete(c.subs, sub)
		c.mu.Unlock()
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, sub)
			c.mu.Unlock()
			ctx, cancel := context.WithTimeout(context.Background(), subscribeTimeout)
			defer cancel()
			if err := c.call(ctx, Frame{Op: OpUnsubscribe, Sub: sub}); err != nil && !errors.Is(err, ErrClosed) {
				log.Printf("[REALTIME] unsubscribe %d: %v", sub, err)
			}
		})
	}, nil
}

// Close sends a close frame and tears down the socket.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()

	err := c.ws.Close()
	<-c.done
	return err
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) call(ctx context.Context, f Frame) error {
	ack := make(chan string, 1)

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return ErrClosed
	}
	c.seq++
	f.Seq = c.seq
	c.pending[f.Seq] = ack
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, f.Seq)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		c.ws.SetWriteDeadline(deadline)
	} else {
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	}
	err := c.ws.WriteJSON(f)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("%s %s: %w", f.Op, f.Path, err)
	}

	select {
	case msg := <-ack:
		if msg != "" {
			return fmt.Errorf("%s %s: %s", f.Op, f.Path, msg)
		}
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		var f Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			return
		}
		switch f.Op {
		case OpAck:
			c.mu.Lock()
			ack, ok := c.pending[f.Seq]
			c.mu.Unlock()
			if ok {
				ack <- f.Error
			}
		case OpMessage:
			c.mu.Lock()
			fn := c.subs[f.Sub]
			c.mu.Unlock()
			if fn != nil {
				fn(f.Path, f.Payload)
			}
		}
	}
}
