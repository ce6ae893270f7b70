package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrMiss is returned when the requested key is absent or expired.
var ErrMiss = errors.New("cache: miss")

type Redis struct {
	client *redis.Client
}

func New(addr string, dbNum int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbNum,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info().Str("addr", addr).Msg("connected to Redis")
	return &Redis{client: client}, nil
}

func (c *Redis) GetBytes(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("cache: get %s: %w", key, err)
	}
	return val, nil
}

func (c *Redis) SetBytes(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, val, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

func (c *Redis) GetJSON(ctx context.Context, key string, dest any) error {
	raw, err := c.GetBytes(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (c *Redis) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("cache: marshal %s: %w", key, err)
	}
	return c.SetBytes(ctx, key, raw, ttl)
}

// countInWindowScript increments the counter and starts the window in one
// atomic step. A non-atomic INCR-then-EXPIRE could leave a TTL-less,
// ever-growing counter after a crash between the two commands; the script
// also repairs such a key by re-arming the TTL whenever it is missing.
var countInWindowScript = redis.NewScript(`
	local n = redis.call('INCR', KEYS[1])
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl < 0 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
		ttl = tonumber(ARGV[1])
	end
	return {n, ttl}
`)

// CountInWindow increments the fixed-window counter behind key and reports
// the count so far plus the time remaining until the window resets. The
// first hit in a window starts it.
func (c *Redis) CountInWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	res, err := countInWindowScript.Run(ctx, c.client, []string{key}, window.Milliseconds()).Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("cache: count %s: %w", key, err)
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("cache: count %s: unexpected reply %v", key, res)
	}
	n, ok := res[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("cache: count %s: unexpected count %v", key, res[0])
	}
	remaining := window
	if ms, ok := res[1].(int64); ok && ms >= 0 {
		remaining = time.Duration(ms) * time.Millisecond
	}
	return n, remaining, nil
}

func (c *Redis) Close() error {
	return c.client.Close()
}
