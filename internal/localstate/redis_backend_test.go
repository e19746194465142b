package localstate

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisBackend(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	backend := NewRedisBackend(client)
	if err := backend.Ping(ctx); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}

	key := "test:" + t.Name()
	t.Cleanup(func() { _ = backend.Delete(context.Background(), key) })

	_, err := backend.Load(ctx, key)
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, backend.Save(ctx, key, Record{Version: 1, Data: []byte(`{"roles":["Partner"]}`)}))
	rec, err := backend.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Version)
	assert.JSONEq(t, `{"roles":["Partner"]}`, string(rec.Data))

	require.NoError(t, backend.Delete(ctx, key))
	_, err = backend.Load(ctx, key)
	assert.True(t, errors.Is(err, ErrNotFound))
}
