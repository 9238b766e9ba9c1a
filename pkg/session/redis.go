package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix  = "session:"
	redisUserPrefix = "session_user:"
)

// RedisStore persists sessions in Redis with native TTL expiry. A secondary
// set per user supports DeleteByUserID.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// redisSession is the wire representation of a session.
type redisSession struct {
	CreatedAt    time.Time      `json:"created_at"`
	LastActiveAt time.Time      `json:"last_active_at"`
	ExpiresAt    time.Time      `json:"expires_at"`
	UserID       *string        `json:"user_id,omitempty"`
	Values       map[string]any `json:"values"`
	ID           string         `json:"id"`
	Token        string         `json:"token"`
}

// Create persists a new session.
func (r *RedisStore) Create(ctx context.Context, s *Session) error {
	return r.write(ctx, s)
}

// Get retrieves a session by token.
func (r *RedisStore) Get(ctx context.Context, token string) (*Session, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var rs redisSession
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, err
	}

	s := &Session{
		ID:           rs.ID,
		Token:        rs.Token,
		UserID:       rs.UserID,
		Values:       rs.Values,
		CreatedAt:    rs.CreatedAt,
		LastActiveAt: rs.LastActiveAt,
		ExpiresAt:    rs.ExpiresAt,
	}
	if s.Values == nil {
		s.Values = make(map[string]any)
	}
	// TTL should have removed it already, but clocks and persistence
	// settings can disagree.
	if s.IsExpired() {
		return nil, ErrExpired
	}
	return s, nil
}

// Update saves changes to an existing session, removing the key under the
// previous token when the token was rotated.
func (r *RedisStore) Update(ctx context.Context, s *Session, oldToken string) error {
	if oldToken != "" && oldToken != s.Token {
		if err := r.client.Del(ctx, redisKeyPrefix+oldToken).Err(); err != nil {
			return err
		}
	}
	return r.write(ctx, s)
}

// Delete removes a session by token.
func (r *RedisStore) Delete(ctx context.Context, token string) error {
	s, err := r.Get(ctx, token)
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrExpired) {
		return r.client.Del(ctx, redisKeyPrefix+token).Err()
	}
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, redisKeyPrefix+token)
	if s.UserID != nil {
		pipe.SRem(ctx, redisUserPrefix+*s.UserID, token)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// DeleteByUserID removes all sessions bound to a user.
func (r *RedisStore) DeleteByUserID(ctx context.Context, userID string) error {
	tokens, err := r.client.SMembers(ctx, redisUserPrefix+userID).Result()
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	for _, token := range tokens {
		pipe.Del(ctx, redisKeyPrefix+token)
	}
	pipe.Del(ctx, redisUserPrefix+userID)
	_, err = pipe.Exec(ctx)
	return err
}

// DeleteExpired is a no-op: Redis expires session keys natively via TTL.
func (r *RedisStore) DeleteExpired(_ context.Context, _ time.Time) error {
	return nil
}

// write marshals and stores the session with a TTL derived from its expiry,
// and maintains the per-user token index.
func (r *RedisStore) write(ctx context.Context, s *Session) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return ErrExpired
	}

	data, err := json.Marshal(redisSession{
		ID:           s.ID,
		Token:        s.Token,
		UserID:       s.UserID,
		Values:       s.Values,
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.LastActiveAt,
		ExpiresAt:    s.ExpiresAt,
	})
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, redisKeyPrefix+s.Token, data, ttl)
	if s.UserID != nil {
		pipe.SAdd(ctx, redisUserPrefix+*s.UserID, s.Token)
		pipe.Expire(ctx, redisUserPrefix+*s.UserID, ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}
