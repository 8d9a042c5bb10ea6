package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/riskibarqy/judging-portal/internal/domain/session"
)

// Commander is the subset of *goredis.Client the repository needs.
type Commander interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// SessionRepository stores the token pair under <prefix>:access and
// <prefix>:refresh so several portal processes can share one login.
type SessionRepository struct {
	client Commander
	prefix string
}

func NewSessionRepository(client Commander, prefix string) *SessionRepository {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "judging-portal:session"
	}

	return &SessionRepository{client: client, prefix: prefix}
}

func (r *SessionRepository) Load(ctx context.Context) (session.TokenPair, bool, error) {
	access, err := r.get(ctx, r.key("access"))
	if err != nil {
		return session.TokenPair{}, false, err
	}
	refresh, err := r.get(ctx, r.key("refresh"))
	if err != nil {
		return session.TokenPair{}, false, err
	}

	pair := session.TokenPair{Access: access, Refresh: refresh}
	if pair.Validate() != nil {
		return session.TokenPair{}, false, nil
	}
	return pair, true, nil
}

func (r *SessionRepository) Save(ctx context.Context, pair session.TokenPair) error {
	if err := pair.Validate(); err != nil {
		return fmt.Errorf("save session to redis: %w", err)
	}
	if err := r.client.Set(ctx, r.key("access"), pair.Access, 0).Err(); err != nil {
		return fmt.Errorf("set access token in redis: %w", err)
	}
	if err := r.client.Set(ctx, r.key("refresh"), pair.Refresh, 0).Err(); err != nil {
		return fmt.Errorf("set refresh token in redis: %w", err)
	}

	return nil
}

func (r *SessionRepository) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key("access"), r.key("refresh")).Err(); err != nil {
		return fmt.Errorf("delete session from redis: %w", err)
	}
	return nil
}

func (r *SessionRepository) get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s from redis: %w", key, err)
	}
	return value, nil
}

func (r *SessionRepository) key(name string) string {
	return r.prefix + ":" + name
}
