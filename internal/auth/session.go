package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrNoSession is returned when a token does not resolve to a live session.
var ErrNoSession = errors.New("no session")

const sessionKeyPrefix = "session:"

// Session is the identity resolved from a bearer token. Roles mirror the
// storefront's user types: buyer, seller, logistics, admin.
type Session struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore resolves bearer tokens to sessions. The production
// implementation is Redis-backed; tests substitute a fake.
type SessionStore interface {
	Get(ctx context.Context, token string) (*Session, error)
}

type RedisSessionStore struct {
	rdb *redis.Client
}

func NewRedisSessionStore(redisURL string) (*RedisSessionStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisSessionStore{rdb: rdb}, nil
}

func (s *RedisSessionStore) Get(ctx context.Context, token string) (*Session, error) {
	val, err := s.rdb.Get(ctx, sessionKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session Session
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	return &session, nil
}

// Put stores a session under token with the given TTL. The hosted auth
// provider writes sessions on login; this exists for seeding and tests.
func (s *RedisSessionStore) Put(ctx context.Context, token string, session *Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.rdb.Set(ctx, sessionKeyPrefix+token, data, ttl).Err()
}

func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, sessionKeyPrefix+token).Err()
}

func (s *RedisSessionStore) Close() error {
	return s.rdb.Close()
}
