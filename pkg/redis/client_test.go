package redis

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/devicehub-backend/pkg/config"
)

func TestOwnerScripts(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	key := client.LockKey("cron")

	ok, err := client.SetNX(ctx, key, "owner-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	extended, err := client.ExtendIfOwner(ctx, key, "owner-b", time.Minute)
	require.NoError(t, err)
	require.False(t, extended)
	extended, err = client.ExtendIfOwner(ctx, key, "owner-a", 90*time.Second)
	require.NoError(t, err)
	require.True(t, extended)
	require.Equal(t, int64(90000), mock.lastTTLms)

	removed, err := client.ReleaseIfOwner(ctx, key, "owner-b")
	require.NoError(t, err)
	require.False(t, removed, "foreign owner must not release the lock")

	removed, err = client.ReleaseIfOwner(ctx, key, "owner-a")
	require.NoError(t, err)
	require.True(t, removed)
	_, err = client.Get(ctx, key)
	require.ErrorIs(t, err, redis.Nil)
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	require.Equal(t, "dh:idempotency:carrier-webhook:abc", client.IdempotencyKey("carrier-webhook", "abc"))
	require.Equal(t, "dh:lock:cron", client.LockKey("cron"))
	require.Equal(t, "dh:idempotency:scope", client.IdempotencyKey("scope", " "))
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	require.ErrorIs(t, client.Ping(context.Background()), errNotInitialized)
	_, err := client.SetNX(context.Background(), "k", "v", time.Second)
	require.ErrorIs(t, err, errNotInitialized)
	require.NoError(t, client.Close())
}

func TestOptionsURLWins(t *testing.T) {
	opts, err := options(config.RedisConfig{
		URL:         "redis://:fromurl@localhost:6379/3",
		Password:    "fromenv",
		DB:          1,
		PoolSize:    7,
		DialTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	require.Equal(t, "fromurl", opts.Password)
	require.Equal(t, 3, opts.DB)
	require.Equal(t, 7, opts.PoolSize)
	require.Equal(t, 2*time.Second, opts.DialTimeout)

	_, err = options(config.RedisConfig{})
	require.Error(t, err)
}

type mockCmdable struct {
	data      map[string]string
	lastTTLms int64
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string)}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

// Eval emulates the two owner-guarded scripts.
func (m *mockCmdable) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	if len(keys) != 1 || len(args) == 0 || m.data[keys[0]] != fmt.Sprint(args[0]) {
		return redis.NewCmdResult(int64(0), nil)
	}
	if strings.Contains(script, "PEXPIRE") {
		m.lastTTLms = args[1].(int64)
		return redis.NewCmdResult(int64(1), nil)
	}
	delete(m.data, keys[0])
	return redis.NewCmdResult(int64(1), nil)
}
