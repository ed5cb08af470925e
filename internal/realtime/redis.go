package realtime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for RedisChannel.
type RedisConfig struct {
	Address  string
	Password string
	Database int
	// KeyPrefix namespaces keys and pub/sub channels.
	KeyPrefix string
	// TTL bounds how long a retained value outlives its publisher when the
	// disconnect cleanup never ran. Zero keeps values until removed.
	TTL time.Duration
}

// RedisChannel shares paths between processes through Redis: the latest
// value of a path is kept under a key and every change is published on a
// pub/sub channel named after the key. A removal is published as an empty
// message.
type RedisChannel struct {
	client *redis.Client
	owned  bool
	cfg    RedisConfig
	opts   options

	mu      sync.Mutex
	pubsubs []*redis.PubSub
	cleanup map[string]struct{}
	closed  bool
	wg      sync.WaitGroup
}

// NewRedisChannel connects to Redis and verifies the connection.
func NewRedisChannel(ctx context.Context, cfg RedisConfig, opts ...Option) (*RedisChannel, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.Database,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Address, err)
	}
	c := NewRedisChannelFromClient(client, cfg, opts...)
	c.owned = true
	return c, nil
}

// NewRedisChannelFromClient wraps an existing client. The client is not
// closed by Close.
func NewRedisChannelFromClient(client *redis.Client, cfg RedisConfig, opts ...Option) *RedisChannel {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "pagebuilder:"
	}
	c := &RedisChannel{
		client:  client,
		cfg:     cfg,
		cleanup: make(map[string]struct{}),
	}
	for _, o := range opts {
		o(&c.opts)
	}
	return c
}

func (c *RedisChannel) key(path string) string { return c.cfg.KeyPrefix + path }

func (c *RedisChannel) path(key string) string { return strings.TrimPrefix(key, c.cfg.KeyPrefix) }

func (c *RedisChannel) Publish(ctx context.Context, path string, payload []byte) error {
	if err := c.check(); err != nil {
		return err
	}
	key := c.key(path)
	pipe := c.client.Pipeline()
	if c.opts.retained(path) {
		pipe.Set(ctx, key, payload, c.cfg.TTL)
	}
	pipe.Publish(ctx, key, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish %s: %w", path, err)
	}
	return nil
}

func (c *RedisChannel) Remove(ctx context.Context, path string) error {
	if err := c.check(); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.cleanup, path)
	c.mu.Unlock()
	return c.remove(ctx, path)
}

func (c *RedisChannel) remove(ctx context.Context, path string) error {
	key := c.key(path)
	pipe := c.client.Pipeline()
	pipe.Del(ctx, key)
	pipe.Publish(ctx, key, "")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

func (c *RedisChannel) RemoveOnDisconnect(_ context.Context, path string) error {
	if err := c.check(); err != nil {
		return err
	}
	c.mu.Lock()
	c.cleanup[path] = struct{}{}
	c.mu.Unlock()
	return nil
}

// Subscribe replays the retained values under prefix, then delivers live
// messages from a dedicated goroutine until unsubscribed.
func (c *RedisChannel) Subscribe(prefix string, fn func(path string, payload []byte)) (func(), error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	ctx := context.Background()
	pattern := c.key(prefix) + "*"

	ps := c.client.PSubscribe(ctx, pattern)
	// Wait for the subscription to be active so nothing published after
	// the replay is lost.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", prefix, err)
	}

	if err := c.replay(ctx, pattern, fn); err != nil {
		ps.Close()
		return nil, err
	}

	c.mu.Lock()
	c.pubsubs = append(c.pubsubs, ps)
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for msg := range ps.Channel() {
			fn(c.path(msg.Channel), []byte(msg.Payload))
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.pubsubs = slices.DeleteFunc(c.pubsubs, func(p *redis.PubSub) bool { return p == ps })
			c.mu.Unlock()
			ps.Close()
		})
	}, nil
}

func (c *RedisChannel) replay(ctx context.Context, pattern string, fn func(string, []byte)) error {
	var keys []string
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return nil
	}
	slices.Sort(keys)

	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("load %s: %w", pattern, err)
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue // expired between SCAN and MGET
		}
		fn(c.path(keys[i]), []byte(s))
	}
	return nil
}

// Close removes the paths registered with RemoveOnDisconnect, stops all
// subscriptions and closes the client if this channel opened it.
func (c *RedisChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	paths := make([]string, 0, len(c.cleanup))
	for p := range c.cleanup {
		paths = append(paths, p)
	}
	pubsubs := c.pubsubs
	c.pubsubs = nil
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	slices.Sort(paths)
	for _, p := range paths {
		if err := c.remove(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	for _, ps := range pubsubs {
		if err := ps.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.wg.Wait()
	if c.owned {
		if err := c.client.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(paths) > 0 {
		log.Printf("[REALTIME] redis channel closed, removed %d path(s)", len(paths))
	}
	return errors.Join(errs...)
}

func (c *RedisChannel) check() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}
