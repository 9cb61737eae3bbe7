package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/safar/osushi-store/internal/config"
)

const (
	cartPrefix = "cart"
	lockPrefix = "lock"
)

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// Client wraps the redis helpers used for cart persistence and checkout locks.
type Client struct {
	store     cmdable
	raw       *redis.Client
	namespace string
}

// New connects using cfg.URL and verifies connectivity.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Client{store: raw, raw: raw, namespace: cfg.KeyPrefix}, nil
}

// NewWithCmdable wires a client around an existing command surface.
func NewWithCmdable(store cmdable, namespace string) *Client {
	return &Client{store: store, namespace: namespace}
}

// Get returns the raw value at key. found is false when the key does not exist.
func (c *Client) Get(ctx context.Context, key string) (value []byte, found bool, err error) {
	if c.store == nil {
		return nil, false, errors.New("redis client not initialized")
	}
	res, err := c.store.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return res, true, nil
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.Set(ctx, key, value, ttl).Err()
}

func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c.store == nil {
		return false, errors.New("redis client not initialized")
	}
	return c.store.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.Del(ctx, keys...).Err()
}

func (c *Client) Ping(ctx context.Context) error {
	if c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.Ping(ctx).Err()
}

// CartKey namespaces the persisted cart of one session.
func (c *Client) CartKey(session string) string {
	return c.buildKey(cartPrefix, session)
}

// LockKey namespaces a mutual-exclusion token.
func (c *Client) LockKey(scope, id string) string {
	return c.buildKey(lockPrefix, scope, id)
}

// LockPrefix is the namespace LockKey builds on, for lockers that join their
// own key suffixes.
func (c *Client) LockPrefix() string {
	return c.buildKey(lockPrefix)
}

func (c *Client) Close() error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

func (c *Client) buildKey(parts ...string) string {
	filtered := make([]string, 0, len(parts)+1)
	if c.namespace != "" {
		filtered = append(filtered, c.namespace)
	}
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			filtered = append(filtered, p)
		}
	}
	return strings.Join(filtered, ":")
}
