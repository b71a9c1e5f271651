package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	CommunityKeyPrefix = "community:%s"
	TrendingKeyPrefix  = "trending:%s:%d"
	PopularKeyPrefix   = "communities:popular:%d"
)

const (
	CommunityTTL = 10 * time.Minute
	TrendingTTL  = time.Minute
	PopularTTL   = 5 * time.Minute
)

func CommunityKey(name string) string {
	return fmt.Sprintf(CommunityKeyPrefix, name)
}

func TrendingKey(timeframe string, limit int) string {
	return fmt.Sprintf(TrendingKeyPrefix, timeframe, limit)
}

func PopularKey(limit int) string {
	return fmt.Sprintf(PopularKeyPrefix, limit)
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

// InvalidateCommunity drops the cached detail for a community along with the
// popular lists that embed its counters.
func InvalidateCommunity(ctx context.Context, name string) {
	Invalidate(ctx, CommunityKey(name))
	InvalidatePattern(ctx, "communities:popular:*")
}

// InvalidatePattern deletes every key matching pattern.
func InvalidatePattern(ctx context.Context, pattern string) {
	if client == nil {
		return
	}
	iter := client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	Invalidate(ctx, keys...)
}
