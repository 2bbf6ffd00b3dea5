package redisclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Cursor persists a monotonically advancing int64 position, such as the last
// audit sequence number handed to Kafka.
type Cursor struct {
	client *redis.Client
	key    string
}

func NewCursor(client *redis.Client, key string) *Cursor {
	return &Cursor{client: client, key: key}
}

// Get returns the stored position, 0 when none was saved yet.
func (c *Cursor) Get(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cursor %s: %w", c.key, err)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse cursor %s=%q: %w", c.key, v, err)
	}
	return n, nil
}

// Advance stores pos only if it is ahead of the saved value.
func (c *Cursor) Advance(ctx context.Context, pos int64) error {
	_, err := advanceScript.Run(ctx, c.client, []string{c.key}, pos).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("advance cursor %s: %w", c.key, err)
	}
	return nil
}

var advanceScript = redis.NewScript(`
local cur = tonumber(redis.call("GET", KEYS[1]) or "0")
local nxt = tonumber(ARGV[1])
if nxt > cur then
  redis.call("SET", KEYS[1], ARGV[1])
  return 1
end
return 0
`)
