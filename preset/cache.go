package preset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pulivilizator/billmgr-addon/internal/observability"
	"github.com/pulivilizator/billmgr-addon/model"
	"github.com/pulivilizator/billmgr-addon/ui"
)

// Store caches resolved option lists. Implementations must be safe for
// concurrent use since async sources share one store.
type Store interface {
	Get(ctx context.Context, key string) (opts []ui.Option, found bool, err error)
	Set(ctx context.Context, key string, opts []ui.Option, ttl time.Duration) error
}

// KeyFunc derives the cache key of one resolution. An empty key bypasses
// the cache.
type KeyFunc func(form *ui.Form, rc *model.RequestContext) string

// Cached wraps fn with a read-through cache. Store failures fall through to
// fn and are logged; a failed fn is never cached.
func Cached(store Store, ttl time.Duration, key KeyFunc, fn AsyncFunc) Source {
	return Async(func(ctx context.Context, form *ui.Form, rc *model.RequestContext) ([]ui.Option, error) {
		k := key(form, rc)
		if k == "" {
			return fn(ctx, form, rc)
		}
		logger := observability.LoggerFrom(ctx, zap.NewNop())
		opts, found, err := store.Get(ctx, k)
		if err != nil {
			logger.Warn("preset cache read failed", zap.String("key", k), zap.Error(err))
		} else if found {
			return opts, nil
		}
		opts, err = fn(ctx, form, rc)
		if err != nil {
			return nil, err
		}
		if err := store.Set(ctx, k, opts, ttl); err != nil {
			logger.Warn("preset cache write failed", zap.String("key", k), zap.Error(err))
		}
		return opts, nil
	})
}

// FormatKey builds the standard cache key.
func FormatKey(field string, parts ...string) string {
	key := "preset:" + field
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

type storedOption struct {
	Key      string  `json:"key"`
	Label    *string `json:"label,omitempty"`
	Original *string `json:"original,omitempty"`
}

func encodeOptions(opts []ui.Option) ([]byte, error) {
	out := make([]storedOption, len(opts))
	for i, o := range opts {
		out[i] = storedOption{Key: o.Key, Label: o.Label, Original: o.Original}
	}
	return json.Marshal(out)
}

func decodeOptions(raw []byte) ([]ui.Option, error) {
	var in []storedOption
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	opts := make([]ui.Option, len(in))
	for i, o := range in {
		opts[i] = ui.Option{Key: o.Key, Label: o.Label, Original: o.Original}
	}
	return opts, nil
}

// --- MemoryStore ---

// MemoryStore is an in-process Store with TTL support.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	now     func() time.Time
}

type memEntry struct {
	opts      []ui.Option
	expiresAt time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memEntry), now: time.Now}
}

// Get returns a live entry.
func (s *MemoryStore) Get(_ context.Context, key string) ([]ui.Option, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return append([]ui.Option(nil), entry.opts...), true, nil
}

// Set stores opts for ttl.
func (s *MemoryStore) Set(_ context.Context, key string, opts []ui.Option, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memEntry{opts: append([]ui.Option(nil), opts...), expiresAt: s.now().Add(ttl)}
	return nil
}

// Len returns the number of entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// --- RedisStore ---

// RedisStore is a Redis-backed Store shared between plugin processes.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore creates a store over client.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

// Get reads an entry.
func (s *RedisStore) Get(ctx context.Context, key string) ([]ui.Option, bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}
	opts, err := decodeOptions(raw)
	if err != nil {
		return nil, false, fmt.Errorf("unmarshal options %q: %w", key, err)
	}
	return opts, true, nil
}

// Set writes an entry with ttl.
func (s *RedisStore) Set(ctx context.Context, key string, opts []ui.Option, ttl time.Duration) error {
	data, err := encodeOptions(opts)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}
