// Package redis holds the short-lived coordination state of the service:
// delivery claims, Idempotency-Key replays and the cron worker lock.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/homedoc-backend/pkg/config"
	"github.com/angelmondragon/homedoc-backend/pkg/logger"
)

const namespace = "hd"

var errNotInitialized = errors.New("redis client not initialized")

// unlockScript deletes the lock only while it still holds the caller's token.
const unlockScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) end return 0`

type commands interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// Claimer records the first sighting of an id within a scope.
type Claimer interface {
	// Claim reports true when this caller is the first to see id.
	Claim(ctx context.Context, scope, id string, ttl time.Duration) (bool, error)
	Unclaim(ctx context.Context, scope, id string) error
}

// ReplayStore keeps encoded responses for Idempotency-Key replays.
type ReplayStore interface {
	LoadReplay(ctx context.Context, scope, key string) (string, bool, error)
	SaveReplay(ctx context.Context, scope, key, record string, ttl time.Duration) error
}

// Locker is an owner-token lock with a TTL.
type Locker interface {
	TryLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, name, owner string) (bool, error)
}

type Client struct {
	cmd  commands
	conn *redis.Client
}

// New connects and pings before returning.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	conn := redis.NewClient(opts)
	if err := conn.Ping(ctx).Err(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "redis_addr", opts.Addr), "redis connected")
	}
	return &Client{cmd: conn, conn: conn}, nil
}

// optionsFromConfig prefers URL; pool and timeout settings fill whatever the
// URL leaves unset.
func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	opts := &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
		if opts.DB == 0 {
			opts.DB = cfg.DB
		}
	case cfg.Address == "":
		return nil, errors.New("redis url or address is required")
	}

	fill := func(dst *time.Duration, v time.Duration) {
		if *dst == 0 {
			*dst = v
		}
	}
	fill(&opts.DialTimeout, cfg.DialTimeout)
	fill(&opts.ReadTimeout, cfg.ReadTimeout)
	fill(&opts.WriteTimeout, cfg.WriteTimeout)
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	return opts, nil
}

func (c *Client) Claim(ctx context.Context, scope, id string, ttl time.Duration) (bool, error) {
	if c.cmd == nil {
		return false, errNotInitialized
	}
	return c.cmd.SetNX(ctx, key("claim", scope, id), time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

func (c *Client) Unclaim(ctx context.Context, scope, id string) error {
	if c.cmd == nil {
		return errNotInitialized
	}
	return c.cmd.Del(ctx, key("claim", scope, id)).Err()
}

// LoadReplay returns ok=false when nothing is stored under key.
func (c *Client) LoadReplay(ctx context.Context, scope, replayKey string) (string, bool, error) {
	if c.cmd == nil {
		return "", false, errNotInitialized
	}
	record, err := c.cmd.Get(ctx, key("replay", scope, replayKey)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return record, true, nil
}

// SaveReplay keeps the first record written under key.
func (c *Client) SaveReplay(ctx context.Context, scope, replayKey, record string, ttl time.Duration) error {
	if c.cmd == nil {
		return errNotInitialized
	}
	return c.cmd.SetNX(ctx, key("replay", scope, replayKey), record, ttl).Err()
}

func (c *Client) TryLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	if c.cmd == nil {
		return false, errNotInitialized
	}
	return c.cmd.SetNX(ctx, key("lock", name), owner, ttl).Result()
}

// Unlock reports whether owner still held the lock.
func (c *Client) Unlock(ctx context.Context, name, owner string) (bool, error) {
	if c.cmd == nil {
		return false, errNotInitialized
	}
	deleted, err := c.cmd.Eval(ctx, unlockScript, []string{key("lock", name)}, owner).Int64()
	if err != nil {
		return false, err
	}
	return deleted == 1, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c.cmd == nil {
		return errNotInitialized
	}
	return c.cmd.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// key joins non-empty parts under the service namespace.
func key(parts ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}

var (
	_ Claimer     = (*Client)(nil)
	_ ReplayStore = (*Client)(nil)
	_ Locker      = (*Client)(nil)
)
