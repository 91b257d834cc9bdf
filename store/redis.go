package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

var _ Store = (*redisStore)(nil)

// NewRedis returns a Store backed by Redis. Keys are namespaced with prefix.
// The caller owns the redis.Client lifecycle; Close is a no-op on the client.
func NewRedis(client *redis.Client, prefix string) Store {
	return &redisStore{client: client, prefix: prefix, timeout: DefaultQueryTimeout}
}

func (s *redisStore) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.timeout)
}

func (s *redisStore) key(parts ...string) string {
	k := s.prefix
	for _, p := range parts {
		if k != "" {
			k += ":"
		}
		k += p
	}
	return k
}

func (s *redisStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	val, err := s.client.HGet(qctx, s.key("settings"), key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "store: reading setting %s", key)
	}
	return val, true, nil
}

func (s *redisStore) SaveSettings(ctx context.Context, set map[string]string, remove []string) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	hash := s.key("settings")
	_, err := s.client.TxPipelined(qctx, func(pipe redis.Pipeliner) error {
		if len(set) > 0 {
			pairs := make([]string, 0, 2*len(set))
			for k, v := range set {
				pairs = append(pairs, k, v)
			}
			pipe.HSet(qctx, hash, pairs)
		}
		if len(remove) > 0 {
			pipe.HDel(qctx, hash, remove...)
		}
		return nil
	})
	return errors.Wrap(err, "store: saving settings")
}

func (s *redisStore) ReadBlob(ctx context.Context, name string) ([]byte, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	data, err := s.client.Get(qctx, s.key("blob", name)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "store: reading %s", name)
	}
	return data, nil
}

func (s *redisStore) WriteBlob(ctx context.Context, name string, data []byte) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	return errors.Wrapf(s.client.Set(qctx, s.key("blob", name), data, 0).Err(), "store: writing %s", name)
}

func (s *redisStore) DeleteBlob(ctx context.Context, name string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	return errors.Wrapf(s.client.Del(qctx, s.key("blob", name)).Err(), "store: removing %s", name)
}

func (s *redisStore) Close() error {
	return nil
}
