// Package cache keeps query results in Redis. Store decorates any
// domain.QueryStore; Invalidator drops cached results when PostgreSQL
// announces a change through NOTIFY.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"metaquery/internal/domain"
	"metaquery/internal/domain/query"
	"metaquery/pkg/logger"
)

// Compile-time check that Store implements domain.QueryStore.
var _ domain.QueryStore[struct{}] = (*Store[struct{}])(nil)

// Config holds cache settings.
type Config struct {
	// Prefix namespaces every key (default "metaquery").
	Prefix string
	// TTL bounds the life of a cached result (default 5 minutes).
	TTL time.Duration
	// CompressThreshold is the payload size from which results are compressed.
	CompressThreshold int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Prefix: "metaquery", TTL: 5 * time.Minute, CompressThreshold: DefaultCompressThreshold}
}

// Store answers queries from Redis when it can and from the wrapped store
// otherwise. Redis failures are logged and never fail a query.
//
// Keys embed a per-entity generation number; Invalidate bumps it so stale
// entries are never read again and expire on their own.
type Store[R any] struct {
	inner  domain.QueryStore[R]
	client redis.UniversalClient
	codec  *Codec
	cfg    Config
}

// NewStore wraps inner.
func NewStore[R any](inner domain.QueryStore[R], client redis.UniversalClient, cfg Config) (*Store[R], error) {
	def := DefaultConfig()
	if cfg.Prefix == "" {
		cfg.Prefix = def.Prefix
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	codec, err := NewCodec(cfg.CompressThreshold)
	if err != nil {
		return nil, err
	}
	return &Store[R]{inner: inner, client: client, codec: codec, cfg: cfg}, nil
}

// Find implements domain.QueryStore.
func (s *Store[R]) Find(ctx context.Context, q query.Query, page *domain.PageRequest) ([]R, error) {
	var items []R
	key, ok := s.lookup(ctx, q, "find:"+q.Fingerprint()+":"+PageKey(page), &items)
	if ok {
		return items, nil
	}

	items, err := s.inner.Find(ctx, q, page)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, items)
	return items, nil
}

// Count implements domain.QueryStore.
func (s *Store[R]) Count(ctx context.Context, q query.Query) (int64, error) {
	var n int64
	key, ok := s.lookup(ctx, q, "count:"+q.Fingerprint(), &n)
	if ok {
		return n, nil
	}

	n, err := s.inner.Count(ctx, q)
	if err != nil {
		return 0, err
	}
	s.store(ctx, key, n)
	return n, nil
}

// Invalidate makes every cached result of entity stale.
func (s *Store[R]) Invalidate(ctx context.Context, entity string) error {
	return Invalidate(ctx, s.client, s.cfg.Prefix, entity)
}

// Invalidate bumps the generation of entity under prefix.
func Invalidate(ctx context.Context, client redis.UniversalClient, prefix, entity string) error {
	if err := client.Incr(ctx, generationKey(prefix, entity)).Err(); err != nil {
		return fmt.Errorf("invalidate %s: %w", entity, err)
	}
	return nil
}

// lookup reads suffix for q's entity into dest. It returns the full key to
// store a fresh result under, or "" when Redis is unavailable.
func (s *Store[R]) lookup(ctx context.Context, q query.Query, suffix string, dest any) (string, bool) {
	gen, err := s.client.Get(ctx, generationKey(s.cfg.Prefix, q.Entity.Name)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		logger.Warn(ctx, "query cache unavailable", "entity", q.Entity.Name, "error", err)
		return "", false
	}
	key := s.cfg.Prefix + ":" + q.Entity.Name + ":" + strconv.FormatInt(gen, 10) + ":" + suffix

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn(ctx, "query cache read failed", "key", key, "error", err)
		}
		return key, false
	}
	if err := s.codec.Decode(data, dest); err != nil {
		logger.Warn(ctx, "query cache entry unreadable", "key", key, "error", err)
		return key, false
	}
	logger.Debug(ctx, "query cache hit", "key", key)
	return key, true
}

func (s *Store[R]) store(ctx context.Context, key string, v any) {
	if key == "" {
		return
	}
	data, err := s.codec.Encode(v)
	if err != nil {
		logger.Warn(ctx, "query cache encode failed", "key", key, "error", err)
		return
	}
	if err := s.client.Set(ctx, key, data, s.cfg.TTL).Err(); err != nil {
		logger.Warn(ctx, "query cache write failed", "key", key, "error", err)
	}
}

func generationKey(prefix, entity string) string {
	return prefix + ":" + entity + ":gen"
}

// PageKey renders the parts of a page request that change a result.
func PageKey(page *domain.PageRequest) string {
	if page == nil {
		return "all"
	}
	var b strings.Builder
	b.WriteString(strconv.Itoa(page.Offset))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(page.Limit))
	for _, o := range page.Sort {
		b.WriteByte(':')
		b.WriteString(o.Field)
		b.WriteByte(',')
		b.WriteString(string(o.Direction))
	}
	return b.String()
}
