// Package cache stores validated generation results. The cache is an
// optimisation only: every failure degrades to a miss or a skipped write.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"vibe-workers/internal/common/config"
	"vibe-workers/internal/common/logger"
)

const keyPrefix = "vibe"

// ResponseCache is the store behind generation results.
type ResponseCache interface {
	// Get returns the stored payload, or false on a miss or any store failure.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores value for ttl. Store failures are logged and dropped.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	IsAvailable(ctx context.Context) bool
}

// CacheUnavailableError wraps a store failure. It is logged and never
// returned from a ResponseCache method.
type CacheUnavailableError struct {
	Op  string
	Key string
	Err error
}

func (e *CacheUnavailableError) Error() string {
	return fmt.Sprintf("cache unavailable during %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *CacheUnavailableError) Unwrap() error { return e.Err }

// New returns a redis-backed cache when an address is configured and a
// NoopCache otherwise.
func New(cfg config.CacheConfig, log logger.Logger) ResponseCache {
	if !cfg.Enabled() {
		if log != nil {
			log.Info("response cache disabled: no redis address configured", nil)
		}
		return NoopCache{}
	}
	return NewRedisCache(NewRedisClient(cfg.Redis), log)
}

// Key derives a deterministic cache key from the fields that determine a
// generation result. Raw user text never appears in the key.
func Key(namespace string, parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0x1f})
		}
		h.Write([]byte(p))
	}
	return fmt.Sprintf("%s:%s:%s", keyPrefix, namespace, hex.EncodeToString(h.Sum(nil)))
}

// PairKey is Key for a symmetric pair of ids: (a, b) and (b, a) collide.
func PairKey(namespace, a, b string, parts ...string) string {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if b < a {
		a, b = b, a
	}
	return Key(namespace, append([]string{a, b}, parts...)...)
}

// NoopCache never stores anything.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) ([]byte, bool)         { return nil, false }
func (NoopCache) Set(context.Context, string, []byte, time.Duration) {}
func (NoopCache) IsAvailable(context.Context) bool                   { return false }
