package appcache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// Invalidation watches Redis for app policy invalidations.
type Invalidation struct {
	Cache *Cache
	Redis *redis.Client

	StreamKey string // Redis key
	Backlog   int64  // Number of invalidations to keep

	streamID string // ID of last message
}

// Run applies cache invalidations from Redis Streams.
func (i *Invalidation) Run(ctx context.Context) error {
	for {
		if err := i.read(ctx); err != nil {
			return err
		}
	}
}

func (i *Invalidation) read(ctx context.Context) error {
	if i.streamID == "" {
		i.streamID = "0"
	}
	streams, err := i.Redis.XRead(ctx, &redis.XReadArgs{
		Streams: []string{i.StreamKey, i.streamID},
		Count:   128,
		Block:   time.Second,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	} else if err != nil {
		return err
	}
	if len(streams) < 1 {
		return nil
	}
	for _, msg := range streams[0].Messages {
		i.streamID = msg.ID
		appID, ok := msg.Values["app"].(string)
		if !ok || appID == "" {
			continue
		}
		i.Cache.Invalidate(appID)
	}
	return nil
}

// Add commits another cache invalidation.
func (i *Invalidation) Add(ctx context.Context, appID string) error {
	return i.Redis.XAdd(ctx, &redis.XAddArgs{
		Stream:       i.StreamKey,
		MaxLenApprox: i.Backlog,
		ID:           "*",
		Values:       []string{"app", appID},
	}).Err()
}
