package paper

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paper-cache/go-paper/wire"
)

func testClient(t *testing.T, server *fakeServer, cfg Config) *Client {
	t.Helper()

	client, err := Dial(context.Background(), server.addr(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestClient_SetGet(t *testing.T) {
	server := newFakeServer(t)
	client := testClient(t, server, Config{})
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "hello", []byte("world"), 0))

	item, err := client.Get(ctx, "hello")
	require.NoError(t, err)
	assert.True(t, item.Found)
	assert.Equal(t, "hello", item.Key)
	assert.Equal(t, []byte("world"), item.Value)
}

func TestClient_GetMissing(t *testing.T) {
	server := newFakeServer(t)
	client := testClient(t, server, Config{})

	item, err := client.Get(context.Background(), "no-such-key")
	require.NoError(t, err)
	assert.False(t, item.Found)
	assert.Equal(t, "no-such-key", item.Key)
	assert.Nil(t, item.Value)
}

func TestClient_TTLRoundTrip(t *testing.T) {
	server := newFakeServer(t)
	client := testClient(t, server, Config{})
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "session", []byte("abc"), 0))
	require.NoError(t, client.SetTTL(ctx, "session", 5*time.Second))

	ttl, hasExpiry, err := client.TTL(ctx, "session")
	require.NoError(t, err)
	assert.True(t, hasExpiry)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, 5*time.Second)

	// Clearing the expiry makes the entry permanent again.
	require.NoError(t, client.SetTTL(ctx, "session", 0))

	_, hasExpiry, err = client.TTL(ctx, "session")
	require.NoError(t, err)
	assert.False(t, hasExpiry)
}

func TestClient_TTLMissingKey(t *testing.T) {
	server := newFakeServer(t)
	client := testClient(t, server, Config{})

	_, _, err := client.TTL(context.Background(), "gone")
	assert.ErrorIs(t, err, wire.ErrKeyNotFound)
}

func TestClient_FaultAndExplicitRecover(t *testing.T) {
	server := newFakeServer(t)
	client := testClient(t, server, Config{})
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", []byte("v"), 0))

	server.dropNextResponse.Store(true)

	_, err := client.Get(ctx, "k")
	var cerr *ConnectionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, StateFaulted, client.State())

	// No silent healing: the fault keeps surfacing until Reconnect.
	_, err = client.Get(ctx, "k")
	require.ErrorAs(t, err, &cerr)
	assert.ErrorIs(t, err, ErrFaulted)

	require.NoError(t, client.Reconnect(ctx))
	assert.Equal(t, StateConnected, client.State())

	item, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), item.Value)
}

func TestClient_Resize(t *testing.T) {
	server := newFakeServer(t)
	client := testClient(t, server, Config{})
	ctx := context.Background()

	// Negative capacities never reach the wire.
	err := client.Resize(ctx, -1)
	var aerr *wire.ArgumentError
	require.ErrorAs(t, err, &aerr)

	// A zero capacity is refused by the server.
	err = client.Resize(ctx, 0)
	assert.ErrorIs(t, err, wire.ErrZeroCacheSize)

	require.NoError(t, client.Resize(ctx, 1<<24))

	size, err := client.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<24), size.MaxSize)
}

func TestClient_InvalidArgumentSendsNothing(t *testing.T) {
	server := newFakeServer(t)

	client, err := New(server.addr(), Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	err = client.Set(context.Background(), "", []byte("v"), 0)
	var aerr *wire.ArgumentError
	require.ErrorAs(t, err, &aerr)

	getErr := client.Set(context.Background(), "k", []byte("v"), -time.Second)
	require.ErrorAs(t, getErr, &aerr)

	// Validation failed before connecting, so no bytes ever left the client.
	assert.Equal(t, StateDisconnected, client.State())
	assert.Equal(t, int64(0), server.bytesIn.Load())
}

func TestClient_Timeout(t *testing.T) {
	server := newFakeServer(t)
	client := testClient(t, server, Config{Timeout: 50 * time.Millisecond})
	ctx := context.Background()

	server.delay.Store(int64(500 * time.Millisecond))

	err := client.Ping(ctx)
	var terr *TimeoutError
	require.ErrorAs(t, err, &terr)
	assert.True(t, terr.Timeout())
	assert.Equal(t, StateFaulted, client.State())
}

func TestClient_ContextDeadline(t *testing.T) {
	server := newFakeServer(t)
	client := testClient(t, server, Config{})

	server.delay.Store(int64(500 * time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := client.Ping(ctx)
	var terr *TimeoutError
	require.ErrorAs(t, err, &terr)
}

func TestClient_Auth(t *testing.T) {
	server := newFakeServer(t)
	server.requireAuth("hunter2")

	client := testClient(t, server, Config{})
	ctx := context.Background()

	// Unauthorized until a valid token is presented.
	err := client.Ping(ctx)
	assert.ErrorIs(t, err, wire.ErrUnauthorized)

	err = client.Auth(ctx, "wrong")
	assert.ErrorIs(t, err, wire.ErrUnauthorized)

	require.NoError(t, client.Auth(ctx, "hunter2"))
	require.NoError(t, client.Ping(ctx))
}

func TestClient_AuthReplayedOnReconnect(t *testing.T) {
	server := newFakeServer(t)
	server.requireAuth("hunter2")

	client := testClient(t, server, Config{AuthToken: "hunter2"})
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", []byte("v"), 0))

	server.dropNextResponse.Store(true)
	_, err := client.Get(ctx, "k")
	var cerr *ConnectionError
	require.ErrorAs(t, err, &cerr)

	// Reconnect re-presents the token before anything else.
	require.NoError(t, client.Reconnect(ctx))

	item, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), item.Value)
}

func TestClient_AutoReconnect(t *testing.T) {
	server := newFakeServer(t)
	client := testClient(t, server, Config{MaxReconnectAttempts: 2})
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", []byte("v"), 0))

	server.dropNextResponse.Store(true)

	// The failed round trip is retried on a fresh connection.
	item, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), item.Value)
	assert.Equal(t, StateConnected, client.State())
}

func TestClient_DialFailures(t *testing.T) {
	_, err := Dial(context.Background(), "http://127.0.0.1:3145", Config{})
	var addrErr *AddrError
	require.ErrorAs(t, err, &addrErr)

	server := newFakeServer(t)
	addr := server.addr()
	server.close()

	_, err = Dial(context.Background(), addr, Config{ConnectTimeout: time.Second})
	var cerr *ConnectionError
	require.ErrorAs(t, err, &cerr)
}

func TestClient_DialHandshakeRejected(t *testing.T) {
	server := newFakeServer(t)
	server.failHandshake(wire.ErrMaxConnectionsExceeded)

	_, err := Dial(context.Background(), server.addr(), Config{})
	assert.ErrorIs(t, err, wire.ErrMaxConnectionsExceeded)
}

func TestClient_Closed(t *testing.T) {
	server := newFakeServer(t)
	client := testClient(t, server, Config{})
	ctx := context.Background()

	require.NoError(t, client.Close())
	require.NoError(t, client.Close()) // idempotent

	assert.ErrorIs(t, client.Ping(ctx), ErrClientClosed)
	assert.ErrorIs(t, client.Reconnect(ctx), ErrClientClosed)
}

func TestClient_PingVersion(t *testing.T) {
	server := newFakeServer(t)
	client := testClient(t, server, Config{})
	ctx := context.Background()

	require.NoError(t, client.Ping(ctx))

	version, err := client.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0.3.0", version)
}

func TestClient_HasPeekDelete(t *testing.T) {
	server := newFakeServer(t)
	client := testClient(t, server, Config{})
	ctx := context.Background()

	ok, err := client.Has(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, client.Set(ctx, "k", []byte("v"), 0))

	ok, err = client.Has(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	item, err := client.Peek(ctx, "k")
	require.NoError(t, err)
	assert.True(t, item.Found)
	assert.Equal(t, []byte("v"), item.Value)

	size, err := client.ValueSize(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	require.NoError(t, client.Delete(ctx, "k"))
	assert.ErrorIs(t, client.Delete(ctx, "k"), wire.ErrKeyNotFound)
}

func TestClient_SetRejectedByServer(t *testing.T) {
	server := newFakeServer(t)
	client := testClient(t, server, Config{})
	ctx := context.Background()

	err := client.Set(ctx, "k", nil, 0)
	assert.ErrorIs(t, err, wire.ErrZeroValueSize)

	// The connection survives a protocol error.
	assert.Equal(t, StateConnected, client.State())
	require.NoError(t, client.Ping(ctx))
}

func TestClient_StatusAndPolicy(t *testing.T) {
	server := newFakeServer(t)
	client := testClient(t, server, Config{})
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "a", []byte("12345"), 0))

	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(4242), status.PID)
	assert.Equal(t, uint64(5), status.UsedSize)
	assert.Equal(t, uint64(1), status.NumObjects)
	assert.InDelta(t, 0.25, status.MissRatio, 1e-9)
	assert.Equal(t, wire.LRU, status.Policy)
	assert.Contains(t, status.Policies, wire.Sieve)

	policy, err := client.Policy(ctx)
	require.NoError(t, err)
	assert.Equal(t, wire.LRU, policy)

	require.NoError(t, client.SetPolicy(ctx, wire.LFU))

	policy, err = client.Policy(ctx)
	require.NoError(t, err)
	assert.Equal(t, wire.LFU, policy)
}

func TestClient_ClearAndWipe(t *testing.T) {
	server := newFakeServer(t)
	client := testClient(t, server, Config{})
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, client.Set(ctx, "b", []byte("2"), 0))

	require.NoError(t, client.Clear(ctx))

	size, err := client.Size(ctx)
	require.NoError(t, err)
	assert.Zero(t, size.NumObjects)

	// Clear keeps the lifetime counters; Wipe resets them.
	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), status.TotalSets)

	require.NoError(t, client.Wipe(ctx))

	status, err = client.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.TotalSets)
}

func TestClient_SubSecondTTLRoundsUp(t *testing.T) {
	server := newFakeServer(t)
	client := testClient(t, server, Config{})
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", []byte("v"), 100*time.Millisecond))

	ttl, hasExpiry, err := client.TTL(ctx, "k")
	require.NoError(t, err)
	assert.True(t, hasExpiry)
	assert.Equal(t, time.Second, ttl)
}

func TestTTLSeconds(t *testing.T) {
	tests := []struct {
		name string
		ttl  time.Duration
		want uint32
		err  bool
	}{
		{name: "zero", ttl: 0, want: 0},
		{name: "sub-second rounds up", ttl: time.Millisecond, want: 1},
		{name: "whole seconds", ttl: 90 * time.Second, want: 90},
		{name: "truncates to seconds", ttl: 1500 * time.Millisecond, want: 1},
		{name: "negative", ttl: -time.Second, err: true},
		{name: "too large", ttl: time.Duration(math.MaxInt64), err: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ttlSeconds(tt.ttl)
			if tt.err {
				var aerr *wire.ArgumentError
				require.ErrorAs(t, err, &aerr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
