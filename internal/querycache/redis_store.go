package querycache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

// RedisStore is a Store backed by Redis. Each family has a version counter;
// entry keys embed the version, so bumping it on invalidation orphans every
// entry of the family and TTLs clean them up. Invalidations are published on
// a pub/sub channel tagged with the publishing instance's ID.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	origin string
}

// invalidation is the pub/sub message body.
type invalidation struct {
	Origin string `json:"origin"`
	Family string `json:"family"`
}

// NewRedisStore creates a store whose keys all start with prefix.
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		rdb:    rdb,
		prefix: prefix,
		origin: uuid.NewString(),
	}
}

// Origin returns the ID this instance tags its invalidations with.
func (s *RedisStore) Origin() string { return s.origin }

func (s *RedisStore) channel() string { return s.prefix + ":invalidate" }

func (s *RedisStore) versionKey(family string) string {
	return s.prefix + ":ver:" + family
}

// setIfVersion writes ARGV[2] to KEYS[2] only while the family version in
// KEYS[1] still equals ARGV[1]. A missing version counts as 0.
var setIfVersion = redis.NewScript(`
if (redis.call('GET', KEYS[1]) or '0') ~= ARGV[1] then
  return 0
end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
else
  redis.call('SET', KEYS[2], ARGV[2])
end
return 1
`)

// Version returns the family's current version; 0 before any invalidation.
func (s *RedisStore) Version(ctx context.Context, family string) (int64, error) {
	ver, err := s.rdb.Get(ctx, s.versionKey(family)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading version of %s: %w", family, err)
	}
	return ver, nil
}

// entryKey is key's Redis key under version. Parts are hashed so user-typed
// filters never end up in key names.
func (s *RedisStore) entryKey(key Key, version int64) string {
	sum := blake2b.Sum256([]byte(key.String()))
	return fmt.Sprintf("%s:q:%s:%d:%s", s.prefix, key.Family(), version, hex.EncodeToString(sum[:16]))
}

// Get returns the stored entry for key under version, or nil on a miss.
func (s *RedisStore) Get(ctx context.Context, key Key, version int64) (*StoredEntry, error) {
	k := s.entryKey(key, version)
	raw, err := s.rdb.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", k, err)
	}

	var entry StoredEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", k, err)
	}
	return &entry, nil
}

// Set stores entry for key under version with the given TTL. The version
// check and the write run as one script, so an invalidation from another
// instance can never land between them.
func (s *RedisStore) Set(ctx context.Context, key Key, version int64, entry StoredEntry, ttl time.Duration) error {
	k := s.entryKey(key, version)
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding entry: %w", err)
	}

	written, err := setIfVersion.Run(ctx, s.rdb,
		[]string{s.versionKey(key.Family()), k},
		strconv.FormatInt(version, 10), raw, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("writing %s: %w", k, err)
	}
	if written == 0 {
		return ErrVersionChanged
	}
	return nil
}

// Invalidate bumps the family version and tells other instances.
func (s *RedisStore) Invalidate(ctx context.Context, family string) error {
	if err := s.rdb.Incr(ctx, s.versionKey(family)).Err(); err != nil {
		return fmt.Errorf("bumping version of %s: %w", family, err)
	}

	msg, err := json.Marshal(invalidation{Origin: s.origin, Family: family})
	if err != nil {
		return fmt.Errorf("encoding invalidation: %w", err)
	}
	if err := s.rdb.Publish(ctx, s.channel(), msg).Err(); err != nil {
		return fmt.Errorf("publishing invalidation of %s: %w", family, err)
	}
	return nil
}

// Subscribe listens for invalidations from other instances until ctx is
// cancelled. It returns after Redis confirms the subscription.
func (s *RedisStore) Subscribe(ctx context.Context, handler func(family string)) error {
	pubsub := s.rdb.Subscribe(ctx, s.channel())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribing to %s: %w", s.channel(), err)
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var inv invalidation
				if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil {
					slog.Warn("ignoring malformed invalidation",
						slog.String("channel", msg.Channel),
						slog.Any("error", err),
					)
					continue
				}
				if inv.Origin == s.origin || inv.Family == "" {
					continue
				}
				handler(inv.Family)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
