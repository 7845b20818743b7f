package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/straja-ai/emotion/internal/cache"
)

// Cached memoizes predictions of the wrapped classifier. Cache failures are
// logged and never fail a classification.
type Cached struct {
	next  Classifier
	cache cache.Cache
	ttl   time.Duration
}

// NewCached wraps next. A nil cache returns next unchanged.
func NewCached(next Classifier, c cache.Cache, ttl time.Duration) Classifier {
	if c == nil {
		return next
	}
	return &Cached{next: next, cache: c, ttl: ttl}
}

// CacheKey is pred:<model>:<sha256 of text>.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "pred:" + model + ":" + hex.EncodeToString(sum[:])
}

func (c *Cached) Classify(ctx context.Context, text string) (Prediction, error) {
	key := CacheKey(c.next.Model(), text)

	if b, found, err := c.cache.Get(ctx, key); err != nil {
		log.Warn().Err(err).Msg("prediction cache get failed")
	} else if found {
		var p Prediction
		if err := json.Unmarshal(b, &p); err == nil {
			p.Cached = true
			return p, nil
		}
		log.Warn().Str("key", key).Msg("prediction cache entry unreadable")
	}

	p, err := c.next.Classify(ctx, text)
	if err != nil {
		return Prediction{}, err
	}

	if b, err := json.Marshal(p); err == nil {
		if err := c.cache.Set(ctx, key, b, c.ttl); err != nil {
			log.Warn().Err(err).Msg("prediction cache set failed")
		}
	}
	return p, nil
}

func (c *Cached) Model() string   { return c.next.Model() }
func (c *Cached) Backend() string { return c.next.Backend() }

func (c *Cached) Close() error {
	err := c.next.Close()
	if cerr := c.cache.Close(); err == nil {
		err = cerr
	}
	return err
}
