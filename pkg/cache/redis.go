package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/jarprobe/pkg/errors"
)

const (
	redisSchemaKey   = "jarprobe:schema"
	redisEntryPrefix = "jarprobe:artifact:"
)

// RedisStore keeps one JSON value per hash; SETNX makes the first writer
// win. Keys never expire.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the server named by a redis:// URL.
func NewRedisStore(ctx context.Context, dsn string) (*RedisStore, error) {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse redis cache URL")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect redis cache")
	}
	s := &RedisStore{client: client}
	if err := s.ensureSchema(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

func (s *RedisStore) ensureSchema(ctx context.Context) error {
	want, err := json.Marshal(ExpectedSchema)
	if err != nil {
		return err
	}
	if err := s.client.SetNX(ctx, redisSchemaKey, want, 0).Err(); err != nil {
		return err
	}
	raw, err := s.client.Get(ctx, redisSchemaKey).Bytes()
	if err != nil {
		return err
	}
	var found Schema
	if err := json.Unmarshal(raw, &found); err != nil {
		return errors.Wrap(errors.ErrCodeSchemaMismatch, err, "unreadable schema under %s", redisSchemaKey)
	}
	if !found.Equal(ExpectedSchema) {
		return schemaMismatch("redis", found)
	}
	return nil
}

// Get retrieves the entry for hash.
func (s *RedisStore) Get(ctx context.Context, hash string) (Entry, bool, error) {
	raw, err := s.client.Get(ctx, redisEntryPrefix+hash).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, errors.Wrap(errors.ErrCodeInternal, err, "corrupt cache entry %s", hash)
	}
	return e, true, nil
}

// Put stores e unless the key exists.
func (s *RedisStore) Put(ctx context.Context, hash string, e Entry) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return false, err
	}
	return s.client.SetNX(ctx, redisEntryPrefix+hash, data, 0).Result()
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
