package cache

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// TimelineCachePrefix is the key prefix for per-actor home timeline caches
	TimelineCachePrefix = "timeline:actor:"

	// TimelineCacheCap is the maximum number of posts cached per actor
	TimelineCacheCap = 800

	// TimelineCacheTTL is the TTL for a timeline cache (7 days)
	TimelineCacheTTL = 7 * 24 * time.Hour
)

// PostScore represents a post with its timestamp score for caching
type PostScore struct {
	PostID    int64
	Timestamp int64 // Unix timestamp
}

// TimelineCache holds, per actor, the ids of posts fanned out to their home
// timeline, scored by publish timestamp. The worker maintains it from queue
// events; the timeline service reads windows out of it.
type TimelineCache interface {
	// AddPost adds a post to an actor's home timeline cache.
	AddPost(ctx context.Context, actorID, postID int64, timestamp int64) error

	// RemovePost removes a post from an actor's home timeline cache.
	RemovePost(ctx context.Context, actorID, postID int64) error

	// Window retrieves post ids newest-first. A nil cursorScore starts at
	// the top; otherwise posts strictly older than the cursor are returned.
	Window(ctx context.Context, actorID int64, cursorScore *float64, limit int) (postIDs []int64, scores []float64, err error)

	// Warm bulk-inserts posts into an actor's timeline cache.
	Warm(ctx context.Context, actorID int64, posts []PostScore) error

	// Exists reports whether the actor has a timeline cache entry. False
	// means a new actor or an expired TTL; the service warms on miss.
	Exists(ctx context.Context, actorID int64) (bool, error)
}

// RedisTimelineCache implements TimelineCache using Redis sorted sets.
type RedisTimelineCache struct {
	client *redis.Client
}

// NewTimelineCache creates a TimelineCache backed by Redis.
func NewTimelineCache(client *redis.Client) TimelineCache {
	return &RedisTimelineCache{client: client}
}

func timelineKey(actorID int64) string {
	return fmt.Sprintf("%s%d", TimelineCachePrefix, actorID)
}

// AddPost pipelines ZADD + ZREMRANGEBYRANK (trim to cap) + EXPIRE.
func (c *RedisTimelineCache) AddPost(ctx context.Context, actorID, postID int64, timestamp int64) error {
	key := timelineKey(actorID)

	pipe := c.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(timestamp),
		Member: strconv.FormatInt(postID, 10),
	})
	// Keep the newest TimelineCacheCap scores, drop the rest.
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-TimelineCacheCap-1))
	pipe.Expire(ctx, key, TimelineCacheTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[TimelineCache] AddPost FAILED: actor=%d post=%d err=%v", actorID, postID, err)
		return fmt.Errorf("add post to timeline: %w", err)
	}
	return nil
}

func (c *RedisTimelineCache) RemovePost(ctx context.Context, actorID, postID int64) error {
	key := timelineKey(actorID)
	member := strconv.FormatInt(postID, 10)

	if _, err := c.client.ZRem(ctx, key, member).Result(); err != nil {
		log.Printf("[TimelineCache] RemovePost FAILED: actor=%d post=%d err=%v", actorID, postID, err)
		return fmt.Errorf("remove post from timeline: %w", err)
	}
	return nil
}

// Window reads newest-first. The cursor bound is exclusive ("(" prefix) so
// pages never overlap.
func (c *RedisTimelineCache) Window(ctx context.Context, actorID int64, cursorScore *float64, limit int) ([]int64, []float64, error) {
	key := timelineKey(actorID)

	var results []redis.Z
	var err error

	if cursorScore == nil {
		results, err = c.client.ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	} else {
		results, err = c.client.ZRevRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
			Min:    "-inf",
			Max:    fmt.Sprintf("(%f", *cursorScore),
			Offset: 0,
			Count:  int64(limit),
		}).Result()
	}
	if err != nil {
		log.Printf("[TimelineCache] Window FAILED: actor=%d err=%v", actorID, err)
		return nil, nil, fmt.Errorf("timeline window: %w", err)
	}

	// Refresh TTL on access
	c.client.Expire(ctx, key, TimelineCacheTTL)

	postIDs := make([]int64, len(results))
	scores := make([]float64, len(results))
	for i, z := range results {
		id, err := strconv.ParseInt(z.Member.(string), 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("parse post id: %w", err)
		}
		postIDs[i] = id
		scores[i] = z.Score
	}
	return postIDs, scores, nil
}

// Warm bulk-inserts posts with a single pipelined ZADD.
func (c *RedisTimelineCache) Warm(ctx context.Context, actorID int64, posts []PostScore) error {
	if len(posts) == 0 {
		return nil
	}
	key := timelineKey(actorID)
	startTime := time.Now()

	members := make([]redis.Z, len(posts))
	for i, p := range posts {
		members[i] = redis.Z{
			Score:  float64(p.Timestamp),
			Member: strconv.FormatInt(p.PostID, 10),
		}
	}

	pipe := c.client.Pipeline()
	pipe.ZAdd(ctx, key, members...)
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-TimelineCacheCap-1))
	pipe.Expire(ctx, key, TimelineCacheTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[TimelineCache] Warm FAILED: actor=%d posts=%d err=%v", actorID, len(posts), err)
		return fmt.Errorf("warm timeline cache: %w", err)
	}

	log.Printf("[TimelineCache] Warm OK: actor=%d posts=%d duration=%v",
		actorID, len(posts), time.Since(startTime))
	return nil
}

func (c *RedisTimelineCache) Exists(ctx context.Context, actorID int64) (bool, error) {
	exists, err := c.client.Exists(ctx, timelineKey(actorID)).Result()
	if err != nil {
		return false, fmt.Errorf("check timeline cache exists: %w", err)
	}
	return exists > 0, nil
}
