package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

type redisStore struct {
	client *redis.Client
	ctx    context.Context
	cfg    config
}

var _ Store = (*redisStore)(nil)

// NewRedis returns a Store backed by Redis, for caches shared across hosts.
// Entries live under "<prefix>:e:<name>" keys and the lock marker uses SET NX,
// Redis's native atomic create-if-absent. The caller owns the redis.Client
// lifecycle — Close is a no-op on the client.
func NewRedis(ctx context.Context, client *redis.Client, opts ...Option) Store {
	return &redisStore{client: client, ctx: ctx, cfg: applyOptions(opts)}
}

func (s *redisStore) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.cfg.queryTimeout)
}

func (s *redisStore) key(kind, name string) string {
	k := kind + ":" + name
	if s.cfg.prefix == "" {
		return k
	}
	return s.cfg.prefix + ":" + k
}

func (s *redisStore) Entries(ctx context.Context) ([]string, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	pattern := s.key("e", "*")
	strip := len(pattern) - 1
	var names []string
	iter := s.client.Scan(qctx, 0, pattern, 0).Iterator()
	for iter.Next(qctx) {
		names = append(names, iter.Val()[strip:])
	}
	return names, iter.Err()
}

func (s *redisStore) Write(ctx context.Context, name string, data []byte) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	return s.client.Set(qctx, s.key("e", name), data, 0).Err()
}

func (s *redisStore) Read(ctx context.Context, name string) ([]byte, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	data, err := s.client.Get(qctx, s.key("e", name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errors.New("snapshot: no such entry: " + name)
	}
	return data, err
}

// LockTTL bounds how long a Redis lock marker can outlive a crashed worker.
// Filesystem locks have no equivalent safety net and need manual cleanup.
const LockTTL = 24 * time.Hour

func (s *redisStore) AcquireLock(ctx context.Context, cache string, info LockInfo) (bool, error) {
	data, err := msgpack.Marshal(info)
	if err != nil {
		return false, err
	}
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	return s.client.SetNX(qctx, s.key("l", cache), data, LockTTL).Result()
}

func (s *redisStore) ReadLock(ctx context.Context, cache string) (bool, LockInfo, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	data, err := s.client.Get(qctx, s.key("l", cache)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, LockInfo{}, nil
	}
	if err != nil {
		return false, LockInfo{}, err
	}
	var info LockInfo
	if err := msgpack.Unmarshal(data, &info); err != nil {
		return true, LockInfo{}, nil
	}
	return true, info, nil
}

func (s *redisStore) ReleaseLock(ctx context.Context, cache string) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	return s.client.Del(qctx, s.key("l", cache)).Err()
}

// Close is a no-op — the caller owns the redis.Client lifecycle.
func (s *redisStore) Close() error {
	return nil
}
