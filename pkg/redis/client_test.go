package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/binarycomp-backend/pkg/config"
)

func TestSetNXOnlyFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	ok, err := client.SetNX(ctx, "k", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.SetNX(ctx, "k", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	value, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "a", value)

	require.NoError(t, client.Del(ctx, "k"))
	_, err = client.Get(ctx, "k")
	assert.True(t, IsNil(err))
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "mlm:lock:payout-window", client.LockKey("payout-window"))
	assert.Equal(t, "mlm:checkpoint:payout-window", client.CheckpointKey(" payout-window "))
	assert.Equal(t, "mlm:lock", client.LockKey(""))
	assert.Equal(t, "mlm:idempotency:POST /api/v1/members:abc", client.IdempotencyKey("POST /api/v1/members", "abc"))
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	ctx := context.Background()
	require.Error(t, client.Ping(ctx))
	require.Error(t, client.Set(ctx, "k", "v", 0))
	_, err := client.Get(ctx, "k")
	require.Error(t, err)
	require.NoError(t, client.Close())
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7, DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DB: 3})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 3, opts.DB)
}

type mockCmdable struct {
	data map[string]string
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string)}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
