package realtime_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagebuilder/internal/realtime"
)

func startGateway(t *testing.T) (*realtime.Hub, string) {
	t.Helper()
	hub := realtime.NewHub()
	gw := realtime.NewGateway(hub)
	srv := httptest.NewServer(gw)
	t.Cleanup(func() {
		gw.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestGateway_ClientRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hub, url := startGateway(t)

	alice, err := realtime.Dial(ctx, url)
	require.NoError(t, err)
	defer alice.Close()
	bob, err := realtime.Dial(ctx, url)
	require.NoError(t, err)
	defer bob.Close()

	var in inbox
	unsub, err := bob.Subscribe("cursors/p1/", in.handle)
	require.NoError(t, err)

	require.NoError(t, alice.Publish(ctx, "cursors/p1/alice", []byte(`{"x":1,"y":2}`)))
	require.Eventually(t, func() bool { return len(in.all()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, message{"cursors/p1/alice", `{"x":1,"y":2}`}, in.all()[0])

	v, ok := hub.Value("cursors/p1/alice")
	require.True(t, ok)
	assert.Equal(t, `{"x":1,"y":2}`, string(v))

	unsub()
	require.NoError(t, alice.Publish(ctx, "cursors/p1/alice", []byte(`{}`)))
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, in.all(), 1)
}

func TestGateway_DroppedClientIsCleanedUp(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hub, url := startGateway(t)

	watcher := hub.Connect()
	var in inbox
	_, err := watcher.Subscribe("presence/", in.handle)
	require.NoError(t, err)

	alice, err := realtime.Dial(ctx, url)
	require.NoError(t, err)
	require.NoError(t, alice.Publish(ctx, "presence/p1/alice", []byte(`a`)))
	require.NoError(t, alice.RemoveOnDisconnect(ctx, "presence/p1/alice"))
	require.NoError(t, alice.Close())

	require.Eventually(t, func() bool {
		_, ok := hub.Value("presence/p1/alice")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
	msgs := in.all()
	assert.Equal(t, message{"presence/p1/alice", ""}, msgs[len(msgs)-1])
}

func TestGateway_CallAfterCloseFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, url := startGateway(t)

	c, err := realtime.Dial(ctx, url)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	<-c.Done()
	assert.Error(t, c.Publish(ctx, "presence/p1/x", []byte(`x`)))
}
