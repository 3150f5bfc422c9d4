package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"clearinghouse/internal/keyring/models"
	"clearinghouse/pkg/platform/sentinel"
)

const keyPrefix = "clearinghouse:keyring:"

// RedisStore keeps one hash per pid, one field per doc type.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func hashKey(pid string) string {
	return keyPrefix + pid
}

// putEntry stores ARGV[2] under field ARGV[1] unless the field holds an
// entry with a key other than ARGV[3]. A same-key update keeps created_at.
var putEntry = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], ARGV[1])
if not cur then
	redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
	return 1
end
local old = cjson.decode(cur)
if old.key ~= ARGV[3] then
	return 0
end
local new = cjson.decode(ARGV[2])
new.created_at = old.created_at
redis.call('HSET', KEYS[1], ARGV[1], cjson.encode(new))
return 1
`)

// Put inserts the entry, or updates its schema when the stored entry has the
// same key. A different key is ErrAlreadyUsed.
func (s *RedisStore) Put(ctx context.Context, e *models.Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal keyring entry: %w", err)
	}
	stored, err := putEntry.Run(ctx, s.client, []string{hashKey(e.Pid)},
		e.DocTypeID, raw, base64.StdEncoding.EncodeToString(e.Key)).Int()
	if err != nil {
		return fmt.Errorf("store keyring entry: %w", err)
	}
	if stored == 0 {
		return fmt.Errorf("keyring entry %s/%s: %w", e.Pid, e.DocTypeID, sentinel.ErrAlreadyUsed)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, pid, docTypeID string) error {
	if err := s.client.HDel(ctx, hashKey(pid), docTypeID).Err(); err != nil {
		return fmt.Errorf("delete keyring entry: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, pid, docTypeID string) (*models.Entry, error) {
	raw, err := s.client.HGet(ctx, hashKey(pid), docTypeID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("keyring entry %s/%s: %w", pid, docTypeID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load keyring entry: %w", err)
	}
	var e models.Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode keyring entry %s/%s: %w", pid, docTypeID, sentinel.ErrIntegrity)
	}
	return &e, nil
}
