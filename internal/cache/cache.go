// Package cache stores classifier predictions keyed by model and text hash.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/straja-ai/emotion/internal/config"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
type Cache interface {
	// Get reports found=false with a nil error on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// New builds the cache selected by cfg.Type. It returns nil, nil for "none".
func New(cfg config.CacheConfig) (Cache, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemory(cfg.MaxEntries), nil
	case "redis":
		return NewRedis(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Type)
	}
}
