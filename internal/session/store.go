package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/mindsight/journal/config"
)

// ErrNoSession is returned when a request carries no valid session.
var ErrNoSession = errors.New("no session")

// Store binds a user ID to a session subject. The subject is what gets signed
// into the session cookie.
type Store interface {
	Save(ctx context.Context, userID int, ttl time.Duration) (string, error)
	Load(ctx context.Context, subject string) (int, error)
	Destroy(ctx context.Context, subject string) error
}

// OpenStore selects the session backend named by cfg.Session.Backend.
func OpenStore(ctx context.Context, cfg config.Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Session.Backend)) {
	case "", "cookie":
		return CookieStore{}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return NewRedisStore(client), nil
	default:
		return nil, fmt.Errorf("unsupported session backend %q", cfg.Session.Backend)
	}
}

// CookieStore keeps the user ID itself as the subject. Nothing is stored
// server side, so Destroy only relies on the cookie being cleared.
type CookieStore struct{}

func (CookieStore) Save(_ context.Context, userID int, _ time.Duration) (string, error) {
	return strconv.Itoa(userID), nil
}

func (CookieStore) Load(_ context.Context, subject string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(subject))
	if err != nil || id < 1 {
		return 0, ErrNoSession
	}
	return id, nil
}

func (CookieStore) Destroy(context.Context, string) error {
	return nil
}

type redisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// RedisStore keeps session:<id> -> user ID with an expiry.
type RedisStore struct {
	client redisClient
}

func NewRedisStore(client redisClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, userID int, ttl time.Duration) (string, error) {
	id := uuid.NewString()
	if err := s.client.Set(ctx, redisKey(id), userID, ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return id, nil
}

func (s *RedisStore) Load(ctx context.Context, subject string) (int, error) {
	value, err := s.client.Get(ctx, redisKey(subject)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrNoSession
		}
		return 0, fmt.Errorf("load session: %w", err)
	}
	return value, nil
}

func (s *RedisStore) Destroy(ctx context.Context, subject string) error {
	return s.client.Del(ctx, redisKey(subject)).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func redisKey(id string) string {
	return "session:" + id
}
