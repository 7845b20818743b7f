package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/straja-ai/emotion/internal/config"
)

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("EMOTION_PG_TEST_DSN")
	if dsn == "" {
		t.Skip("EMOTION_PG_TEST_DSN not set")
	}
	ctx := context.Background()

	s, err := NewPostgres(ctx, config.StoreConfig{Type: "postgres", DSN: dsn, MaxConns: 2})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.pool.Exec(ctx, `TRUNCATE emotion_records`)
	require.NoError(t, err)

	exerciseStore(t, s)
}
