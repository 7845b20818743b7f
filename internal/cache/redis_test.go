package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straja-ai/emotion/internal/config"
)

func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("EMOTION_REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("EMOTION_REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()

	r, err := NewRedis(config.RedisConfig{Addr: addr, KeyPrefix: "emotion-test:"})
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, r.Ping(ctx))

	key := uuid.NewString()
	_, found, err := r.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, r.Set(ctx, key, []byte(`{"label":"POS"}`), time.Minute))
	v, found, err := r.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"label":"POS"}`, string(v))
}
