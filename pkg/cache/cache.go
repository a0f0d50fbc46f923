// Package cache provides the content-addressed query result cache.
// Results are keyed by a hash of the normalized query text and the user,
// so the same question from the same user is answered without model calls.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yyup/kindergarten-engine/pkg/models"
)

// Entry is a single cached query result.
type Entry struct {
	Key        string                 `json:"key"`
	UserID     string                 `json:"user_id"`
	QueryText  string                 `json:"query_text"`
	Level      models.ProcessingLevel `json:"level"`
	Payload    json.RawMessage        `json:"payload"`
	TokensUsed int                    `json:"tokens_used"`
	CreatedAt  time.Time              `json:"created_at"`
	ExpiresAt  time.Time              `json:"expires_at"`
	HitCount   int64                  `json:"hit_count"`
}

// Expired reports whether the entry's TTL has elapsed.
func (e *Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Store is a cache backend. Get returns (nil, nil) on a miss.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, entry *Entry, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// InvalidateExpired removes expired entries and returns how many were
	// deleted. Safe to call concurrently; repeated calls are no-ops.
	InvalidateExpired(ctx context.Context) (int, error)
}

// QueryCache is the query-level cache facade used by the pipeline.
type QueryCache interface {
	// Get returns the cached entry for the query, or false on a miss.
	// Backend failures degrade to a miss, never to an error.
	Get(ctx context.Context, queryText, userID string) (*Entry, bool)

	// Set caches a query result. The entry's Key, CreatedAt and ExpiresAt
	// are computed here.
	Set(ctx context.Context, entry *Entry) error

	// InvalidateExpired removes expired entries from every layer and
	// returns the total deleted.
	InvalidateExpired(ctx context.Context) (int, error)
}

// Normalize canonicalizes query text for cache keying: lowercased, trimmed,
// internal whitespace collapsed.
func Normalize(queryText string) string {
	return strings.Join(strings.Fields(strings.ToLower(queryText)), " ")
}

// KeyFor computes the cache key for a query and user.
func KeyFor(queryText, userID string) string {
	sum := sha256.Sum256([]byte(Normalize(queryText) + "|" + userID))
	return hex.EncodeToString(sum[:])
}

// queryCache layers a local LRU in front of an optional shared store.
type queryCache struct {
	local  Store
	shared Store // nil when Redis is not configured
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a QueryCache with the given layers. shared may be nil.
func New(local, shared Store, ttl time.Duration, logger *zap.Logger) QueryCache {
	return &queryCache{
		local:  local,
		shared: shared,
		ttl:    ttl,
		logger: logger.Named("cache"),
	}
}

func (c *queryCache) Get(ctx context.Context, queryText, userID string) (*Entry, bool) {
	key := KeyFor(queryText, userID)
	now := time.Now()

	if entry, err := c.local.Get(ctx, key); err == nil && entry != nil {
		if !entry.Expired(now) {
			entry.HitCount++
			return entry, true
		}
		_ = c.local.Delete(ctx, key)
	}

	if c.shared == nil {
		return nil, false
	}

	entry, err := c.shared.Get(ctx, key)
	if err != nil {
		// Fail open: a cache outage must not fail the query.
		c.logger.Warn("cache read failed, treating as miss",
			zap.String("key", key),
			zap.Error(err))
		return nil, false
	}
	if entry == nil || entry.Expired(now) {
		return nil, false
	}

	entry.HitCount++
	// Promote to the local layer for subsequent requests.
	if err := c.local.Set(ctx, entry, time.Until(entry.ExpiresAt)); err != nil {
		c.logger.Warn("local cache promote failed", zap.Error(err))
	}
	return entry, true
}

func (c *queryCache) Set(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("nil cache entry")
	}

	entry.Key = KeyFor(entry.QueryText, entry.UserID)
	entry.CreatedAt = time.Now()
	entry.ExpiresAt = entry.CreatedAt.Add(c.ttl)

	if err := c.local.Set(ctx, entry, c.ttl); err != nil {
		c.logger.Warn("local cache write failed", zap.Error(err))
	}

	if c.shared == nil {
		return nil
	}
	if err := c.shared.Set(ctx, entry, c.ttl); err != nil {
		// Degraded but not fatal; the local layer still has it.
		c.logger.Warn("shared cache write failed",
			zap.String("key", entry.Key),
			zap.Error(err))
	}
	return nil
}

func (c *queryCache) InvalidateExpired(ctx context.Context) (int, error) {
	deleted, err := c.local.InvalidateExpired(ctx)
	if err != nil {
		return deleted, fmt.Errorf("invalidate local cache: %w", err)
	}

	if c.shared != nil {
		n, err := c.shared.InvalidateExpired(ctx)
		deleted += n
		if err != nil {
			return deleted, fmt.Errorf("invalidate shared cache: %w", err)
		}
	}

	c.logger.Info("expired cache entries removed", zap.Int("deleted", deleted))
	return deleted, nil
}

// Ensure queryCache implements QueryCache at compile time.
var _ QueryCache = (*queryCache)(nil)
