package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"pkstore/internal/domain"
)

const keyPrefix = "pk:session:"

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	SetXX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// RedisRepo stores tokens as JSON strings that expire with the token.
type RedisRepo struct {
	store cmdable
	now   func() time.Time
}

func NewRedis(client *redis.Client) *RedisRepo {
	return &RedisRepo{store: client, now: time.Now}
}

// Dial parses a redis:// URL and verifies connectivity.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (r *RedisRepo) Ping(ctx context.Context) error {
	return r.store.Ping(ctx).Err()
}

func (r *RedisRepo) Create(ctx context.Context, t Token) error {
	ttl, err := r.ttl(t)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(t)
	if err != nil {
		return err
	}
	ok, err := r.store.SetNX(ctx, Key(t.Token), payload, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (r *RedisRepo) Get(ctx context.Context, token string) (*Token, error) {
	raw, err := r.store.Get(ctx, Key(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var out Token
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	if out.Expired(r.now()) {
		return nil, domain.ErrNotFound
	}
	return &out, nil
}

// Update overwrites an existing token. The caller's ExpiresAt is replaced with the stored one.
func (r *RedisRepo) Update(ctx context.Context, t Token) error {
	stored, err := r.Get(ctx, t.Token)
	if err != nil {
		return err
	}
	t.ExpiresAt = stored.ExpiresAt
	t.CreatedAt = stored.CreatedAt
	ttl, err := r.ttl(t)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(t)
	if err != nil {
		return err
	}
	ok, err := r.store.SetXX(ctx, Key(t.Token), payload, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}

func (r *RedisRepo) Delete(ctx context.Context, token string) error {
	n, err := r.store.Del(ctx, Key(token)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *RedisRepo) ttl(t Token) (time.Duration, error) {
	if t.ExpiresAt.IsZero() {
		return 0, nil
	}
	ttl := t.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return 0, fmt.Errorf("token already expired at %s", t.ExpiresAt.Format(time.RFC3339))
	}
	return ttl, nil
}

// Key is the redis key holding a token.
func Key(token string) string {
	return keyPrefix + token
}
