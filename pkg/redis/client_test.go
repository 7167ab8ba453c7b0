package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/homedoc-backend/pkg/config"
)

func TestClaimIsFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	mock := newMockCommands()
	client := &Client{cmd: mock}

	first, err := client.Claim(ctx, "stripe:event", "evt_1", time.Hour)
	require.NoError(t, err)
	require.True(t, first)
	require.Equal(t, time.Hour, mock.ttls["hd:claim:stripe:event:evt_1"])

	again, err := client.Claim(ctx, "stripe:event", "evt_1", time.Hour)
	require.NoError(t, err)
	require.False(t, again, "second sighting must lose")

	require.NoError(t, client.Unclaim(ctx, "stripe:event", "evt_1"))
	first, err = client.Claim(ctx, "stripe:event", "evt_1", time.Hour)
	require.NoError(t, err)
	require.True(t, first, "an unclaimed id can be claimed again")
}

func TestReplayKeepsFirstRecord(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newMockCommands()}

	_, ok, err := client.LoadReplay(ctx, "checkout", "k1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, client.SaveReplay(ctx, "checkout", "k1", `{"status":200}`, time.Minute))
	require.NoError(t, client.SaveReplay(ctx, "checkout", "k1", `{"status":201}`, time.Minute))

	record, ok, err := client.LoadReplay(ctx, "checkout", "k1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"status":200}`, record)
}

func TestUnlockChecksOwner(t *testing.T) {
	ctx := context.Background()
	mock := newMockCommands()
	client := &Client{cmd: mock}

	ok, err := client.TryLock(ctx, "cron-worker:prod", "owner-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = client.TryLock(ctx, "cron-worker:prod", "owner-b", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	released, err := client.Unlock(ctx, "cron-worker:prod", "owner-b")
	require.NoError(t, err)
	require.False(t, released)
	require.Equal(t, "owner-a", mock.data["hd:lock:cron-worker:prod"])

	released, err = client.Unlock(ctx, "cron-worker:prod", "owner-a")
	require.NoError(t, err)
	require.True(t, released)
	require.NotContains(t, mock.data, "hd:lock:cron-worker:prod")
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	ctx := context.Background()

	_, err := client.Claim(ctx, "s", "id", time.Second)
	require.ErrorIs(t, err, errNotInitialized)
	_, _, err = client.LoadReplay(ctx, "s", "k")
	require.ErrorIs(t, err, errNotInitialized)
	_, err = client.Unlock(ctx, "n", "o")
	require.ErrorIs(t, err, errNotInitialized)
	require.ErrorIs(t, client.Ping(ctx), errNotInitialized)
	require.NoError(t, client.Close())
}

func TestKeySkipsBlankParts(t *testing.T) {
	require.Equal(t, "hd:claim:scope:id", key("claim", "scope", "id"))
	require.Equal(t, "hd:claim:scope", key("claim", " scope ", ""))
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{
		Address:     "localhost:6379",
		DB:          2,
		PoolSize:    7,
		DialTimeout: 3 * time.Second,
	})
	require.NoError(t, err)
	require.Equal(t, "localhost:6379", opts.Addr)
	require.Equal(t, 2, opts.DB)
	require.Equal(t, 7, opts.PoolSize)
	require.Equal(t, 3*time.Second, opts.DialTimeout)

	opts, err = optionsFromConfig(config.RedisConfig{URL: "redis://:secret@cache:6380/4", PoolSize: 3})
	require.NoError(t, err)
	require.Equal(t, "cache:6380", opts.Addr)
	require.Equal(t, "secret", opts.Password)
	require.Equal(t, 4, opts.DB)
	require.Equal(t, 3, opts.PoolSize)
}

type mockCommands struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newMockCommands() *mockCommands {
	return &mockCommands{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *mockCommands) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCommands) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCommands) SetNX(_ context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, ok := m.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *mockCommands) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(m.data, k)
		delete(m.ttls, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

// Eval understands only unlockScript.
func (m *mockCommands) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	if script != unlockScript || len(keys) != 1 || len(args) != 1 {
		return redis.NewCmdResult(nil, fmt.Errorf("unexpected script"))
	}
	if m.data[keys[0]] != fmt.Sprint(args[0]) {
		return redis.NewCmdResult(int64(0), nil)
	}
	delete(m.data, keys[0])
	return redis.NewCmdResult(int64(1), nil)
}
