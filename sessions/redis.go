package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	claimSuffix = ":claim"
	// claimPending marks a claim whose report is still being written
	claimPending = "pending"
	// DefaultClaimTTL keeps completion markers around long enough to absorb
	// gateway retries of the final step
	DefaultClaimTTL = time.Hour
)

// RedisClient is the subset of go-redis used by RedisStore
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps sessions as JSON strings in Redis
type RedisStore struct {
	client   RedisClient
	ttl      time.Duration
	claimTTL time.Duration
	now      func() time.Time
}

// NewRedisStore returns a store whose sessions live for ttl after creation
func NewRedisStore(client RedisClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client:   client,
		ttl:      ttl,
		claimTTL: DefaultClaimTTL,
		now:      time.Now,
	}
}

// NewRedisClient parses a redis:// URL
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// TTL is the lifetime of a session
func (s *RedisStore) TTL() time.Duration {
	return s.ttl
}

func (s *RedisStore) Get(ctx context.Context, key Key) (*Session, error) {
	raw, err := s.client.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &sess, nil
}

// Put writes s with whatever is left of its lifetime. A session past its
// lifetime is not written and ErrExpired is returned.
func (s *RedisStore) Put(ctx context.Context, sess *Session) error {
	remaining := s.ttl - s.now().Sub(sess.CreatedAt)
	if remaining <= 0 {
		_ = s.Delete(ctx, sess.Key())
		return ErrExpired
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, sess.Key().String(), raw, remaining).Err(); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	return s.client.Del(ctx, key.String()).Err()
}

// Claim atomically reserves the right to complete a conversation. When the
// claim is already held, reportID carries the id recorded by Complete, or is
// empty while the holder is still working.
func (s *RedisStore) Claim(ctx context.Context, key Key) (string, bool, error) {
	claimKey := key.String() + claimSuffix
	ok, err := s.client.SetNX(ctx, claimKey, claimPending, s.claimTTL).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to claim session: %w", err)
	}
	if ok {
		return "", true, nil
	}
	v, err := s.client.Get(ctx, claimKey).Result()
	if errors.Is(err, redis.Nil) {
		// released between the two calls, let the caller retry
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read session claim: %w", err)
	}
	if v == claimPending {
		return "", false, nil
	}
	return v, false, nil
}

// Complete records the report created under a claim and drops the session
func (s *RedisStore) Complete(ctx context.Context, key Key, reportID string) error {
	if err := s.client.Set(ctx, key.String()+claimSuffix, reportID, s.claimTTL).Err(); err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	return s.Delete(ctx, key)
}

// Release gives up a claim so the final step can be retried
func (s *RedisStore) Release(ctx context.Context, key Key) error {
	return s.client.Del(ctx, key.String()+claimSuffix).Err()
}
