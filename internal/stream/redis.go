package stream

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// redisClient adapts go-redis streams (XADD/XGROUP/XREADGROUP/XACK) to the
// Client interface.
type redisClient struct {
	rdb *redis.Client
}

func NewRedisClient(rdb *redis.Client) Client {
	return &redisClient{rdb: rdb}
}

func (c *redisClient) Append(ctx context.Context, stream string, fields map[string]interface{}) (string, error) {
	id, err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: fields,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("redis XADD to %s failed: %w", stream, err)
	}
	return id, nil
}

func (c *redisClient) EnsureGroup(ctx context.Context, stream, group string) error {
	// Cursor 0 so a group created after records were appended still sees them.
	err := c.rdb.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return fmt.Errorf("redis XGROUP CREATE %s/%s failed: %w", stream, group, err)
	}
	return nil
}

func (c *redisClient) ReadGroup(ctx context.Context, args ReadArgs) ([]Record, error) {
	res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    args.Group,
		Consumer: args.Consumer,
		Streams:  []string{args.Stream, ">"},
		Count:    args.Count,
		Block:    args.Block,
	}).Result()
	if err != nil {
		// redis.Nil means the block window elapsed with nothing to deliver.
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis XREADGROUP %s/%s failed: %w", args.Stream, args.Group, err)
	}

	var records []Record
	for _, s := range res {
		for _, msg := range s.Messages {
			fields := make(map[string]string, len(msg.Values))
			for k, v := range msg.Values {
				if str, ok := v.(string); ok {
					fields[k] = str
				} else {
					fields[k] = fmt.Sprint(v)
				}
			}
			records = append(records, Record{ID: msg.ID, Fields: fields})
		}
	}
	return records, nil
}

func (c *redisClient) Ack(ctx context.Context, stream, group string, ids ...string) error {
	if err := c.rdb.XAck(ctx, stream, group, ids...).Err(); err != nil {
		return fmt.Errorf("redis XACK on %s/%s failed: %w", stream, group, err)
	}
	return nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}
