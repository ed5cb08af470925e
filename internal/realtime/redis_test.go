package realtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagebuilder/internal/realtime"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, realtime.RedisConfig) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return mr, realtime.RedisConfig{Address: mr.Addr(), KeyPrefix: "test:"}
}

func TestRedisChannel_PublishDeliversAndRetains(t *testing.T) {
	ctx := context.Background()
	mr, cfg := setupRedis(t)

	pub, err := realtime.NewRedisChannel(ctx, cfg)
	require.NoError(t, err)
	defer pub.Close()
	sub, err := realtime.NewRedisChannel(ctx, cfg)
	require.NoError(t, err)
	defer sub.Close()

	var in inbox
	_, err = sub.Subscribe("presence/p1/", in.handle)
	require.NoError(t, err)

	require.NoError(t, pub.Publish(ctx, "presence/p1/alice", []byte(`{"id":"alice"}`)))
	require.Eventually(t, func() bool { return len(in.all()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, message{"presence/p1/alice", `{"id":"alice"}`}, in.all()[0])

	got, err := mr.Get("test:presence/p1/alice")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"alice"}`, got)

	// A late subscriber sees the retained value.
	var late inbox
	_, err = sub.Subscribe("presence/p1/", late.handle)
	require.NoError(t, err)
	assert.Equal(t, []message{{"presence/p1/alice", `{"id":"alice"}`}}, late.all())
}

func TestRedisChannel_TTL(t *testing.T) {
	ctx := context.Background()
	mr, cfg := setupRedis(t)
	cfg.TTL = 30 * time.Second

	ch, err := realtime.NewRedisChannel(ctx, cfg)
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, ch.Publish(ctx, "presence/p1/alice", []byte(`a`)))
	assert.Equal(t, 30*time.Second, mr.TTL("test:presence/p1/alice"))

	mr.FastForward(31 * time.Second)
	assert.False(t, mr.Exists("test:presence/p1/alice"))
}

func TestRedisChannel_EphemeralRootsAreNotStored(t *testing.T) {
	ctx := context.Background()
	mr, cfg := setupRedis(t)

	ch, err := realtime.NewRedisChannel(ctx, cfg, realtime.WithEphemeralRoots("changes"))
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, ch.Publish(ctx, "changes/p1/c1", []byte(`{}`)))
	assert.False(t, mr.Exists("test:changes/p1/c1"))
}

func TestRedisChannel_CloseRemovesRegisteredPaths(t *testing.T) {
	ctx := context.Background()
	mr, cfg := setupRedis(t)

	watcher, err := realtime.NewRedisChannel(ctx, cfg)
	require.NoError(t, err)
	defer watcher.Close()
	var in inbox
	_, err = watcher.Subscribe("presence/", in.handle)
	require.NoError(t, err)

	alice, err := realtime.NewRedisChannel(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, alice.Publish(ctx, "presence/p1/alice", []byte(`a`)))
	require.NoError(t, alice.RemoveOnDisconnect(ctx, "presence/p1/alice"))
	require.NoError(t, alice.Close())

	assert.False(t, mr.Exists("test:presence/p1/alice"))
	require.Eventually(t, func() bool {
		msgs := in.all()
		return len(msgs) == 2 && msgs[1] == message{"presence/p1/alice", ""}
	}, 2*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, alice.Publish(ctx, "presence/p1/alice", nil), realtime.ErrClosed)
}

func TestRedisChannel_SharedClientIsNotClosed(t *testing.T) {
	ctx := context.Background()
	_, cfg := setupRedis(t)

	client := redis.NewClient(&redis.Options{Addr: cfg.Address})
	defer client.Close()

	ch := realtime.NewRedisChannelFromClient(client, cfg)
	require.NoError(t, ch.Close())
	assert.NoError(t, client.Ping(ctx).Err())
}

func TestNewRedisChannel_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := realtime.NewRedisChannel(ctx, realtime.RedisConfig{Address: "127.0.0.1:1"})
	assert.Error(t, err)
}
