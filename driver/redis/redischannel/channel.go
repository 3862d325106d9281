// Package redischannel provides a [channel.Channel] implementation backed by
// Redis lists.
//
// Each (event key, direction) pair maps to one Redis list. The worker side
// pushes onto "<prefix>:<key>:w2o" and pops from "<prefix>:<key>:o2w"; the
// owner side does the reverse. This lets the two processes share nothing but
// a Redis instance and a key prefix.
package redischannel

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// NewWorker returns the channel endpoint used by the process that issues
// requests.
func NewWorker(client *redis.Client, prefix string) *Channel {
	return &Channel{
		client: client,
		prefix: prefix,
		out:    "w2o",
		in:     "o2w",
	}
}

// NewOwner returns the channel endpoint used by the process that owns the
// stores and answers requests.
func NewOwner(client *redis.Client, prefix string) *Channel {
	return &Channel{
		client: client,
		prefix: prefix,
		out:    "o2w",
		in:     "w2o",
	}
}

// Channel is one side of a Redis-backed duplex channel.
type Channel struct {
	client *redis.Client
	prefix string
	out    string
	in     string
}

// Send delivers a payload to the peer endpoint under the given event key.
func (c *Channel) Send(ctx context.Context, key string, payload []byte) error {
	return c.client.RPush(
		ctx,
		c.list(key, c.out),
		payload,
	).Err()
}

// Read blocks until a payload arrives on the given event key, then returns
// it.
func (c *Channel) Read(ctx context.Context, key string) ([]byte, error) {
	res, err := c.client.BLPop(
		ctx,
		0, // block indefinitely
		c.list(key, c.in),
	).Result()
	if err != nil {
		return nil, err
	}

	// BLPOP returns [list, payload].
	return []byte(res[1]), nil
}

// Flush discards any payloads pending on the given event key without reading
// them.
func (c *Channel) Flush(ctx context.Context, key string) error {
	return c.client.Del(
		ctx,
		c.list(key, c.in),
	).Err()
}

func (c *Channel) list(key, dir string) string {
	return c.prefix + ":" + key + ":" + dir
}
