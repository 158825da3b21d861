package worker

import (
	"context"
	"fmt"
	"log"

	"quill/internal/cache"
	"quill/internal/queue"
)

// FollowerProvider abstracts the relationship store so the worker only
// depends on the one query fan-out needs.
type FollowerProvider interface {
	GetFollowerIDs(ctx context.Context, actorID int64) ([]int64, error)
}

// RecentPostsProvider supplies an actor's recent posts as (id, timestamp)
// pairs for backfilling a follower's timeline cache.
type RecentPostsProvider interface {
	GetRecentPostsByActor(ctx context.Context, actorID int64, limit int) ([]cache.PostScore, error)
}

const (
	// backfillLimit caps how many of a new followee's posts get pushed
	// into the follower's cache on follow accept.
	backfillLimit = 20

	// sweepLimit caps how many of a former followee's posts get cleared
	// on unfollow. The cache holds at most a few hundred entries per
	// actor, so this bounds the sweep without missing live ones.
	sweepLimit = 100
)

// Handler applies timeline events to the per-actor timeline caches.
type Handler struct {
	timelines cache.TimelineCache
	followers FollowerProvider
	posts     RecentPostsProvider
}

func NewHandler(timelines cache.TimelineCache, followers FollowerProvider, posts RecentPostsProvider) *Handler {
	return &Handler{
		timelines: timelines,
		followers: followers,
		posts:     posts,
	}
}

// HandleEvent routes one event by type. Share wrappers ride the same code
// paths as regular posts: a share is a post whose id fans out like any other.
func (h *Handler) HandleEvent(ctx context.Context, event queue.TimelineEvent) error {
	switch event.Type {
	case queue.EventPostCreated, queue.EventShareCreated:
		return h.fanOut(ctx, event)
	case queue.EventPostDeleted, queue.EventShareRemoved:
		return h.evict(ctx, event)
	case queue.EventFollowAccepted:
		return h.backfill(ctx, event)
	case queue.EventFollowRemoved:
		return h.sweep(ctx, event)
	default:
		return fmt.Errorf("unknown event type: %s", event.Type)
	}
}

// fanOut pushes the post into every follower's timeline cache, plus the
// author's own. A failed push for one follower doesn't abort the rest.
func (h *Handler) fanOut(ctx context.Context, event queue.TimelineEvent) error {
	followers, err := h.followers.GetFollowerIDs(ctx, event.AuthorID)
	if err != nil {
		return fmt.Errorf("get followers: %w", err)
	}

	var failed int
	for _, followerID := range followers {
		if err := h.timelines.AddPost(ctx, followerID, event.PostID, event.Timestamp); err != nil {
			log.Printf("[Worker] fan-out: add post=%d actor=%d FAILED: %v", event.PostID, followerID, err)
			failed++
		}
	}
	if err := h.timelines.AddPost(ctx, event.AuthorID, event.PostID, event.Timestamp); err != nil {
		log.Printf("[Worker] fan-out: add post=%d to author=%d FAILED: %v", event.PostID, event.AuthorID, err)
	}

	log.Printf("[Worker] fan-out DONE: post=%d targets=%d failed=%d", event.PostID, len(followers)+1, failed)
	return nil
}

// evict removes a deleted or unshared post from follower caches. Missing
// entries are fine; ZREM on an absent member is a no-op.
func (h *Handler) evict(ctx context.Context, event queue.TimelineEvent) error {
	followers, err := h.followers.GetFollowerIDs(ctx, event.AuthorID)
	if err != nil {
		return fmt.Errorf("get followers: %w", err)
	}

	var failed int
	for _, followerID := range followers {
		if err := h.timelines.RemovePost(ctx, followerID, event.PostID); err != nil {
			log.Printf("[Worker] evict: remove post=%d actor=%d FAILED: %v", event.PostID, followerID, err)
			failed++
		}
	}
	if err := h.timelines.RemovePost(ctx, event.AuthorID, event.PostID); err != nil {
		log.Printf("[Worker] evict: remove post=%d from author=%d FAILED: %v", event.PostID, event.AuthorID, err)
	}

	log.Printf("[Worker] evict DONE: post=%d targets=%d failed=%d", event.PostID, len(followers)+1, failed)
	return nil
}

// backfill seeds the follower's cache with the followee's recent posts
// after a follow is accepted.
func (h *Handler) backfill(ctx context.Context, event queue.TimelineEvent) error {
	posts, err := h.posts.GetRecentPostsByActor(ctx, event.FolloweeID, backfillLimit)
	if err != nil {
		return fmt.Errorf("get recent posts: %w", err)
	}
	if len(posts) == 0 {
		return nil
	}

	var failed int
	for _, p := range posts {
		if err := h.timelines.AddPost(ctx, event.FollowerID, p.PostID, p.Timestamp); err != nil {
			log.Printf("[Worker] backfill: add post=%d FAILED: %v", p.PostID, err)
			failed++
		}
	}

	log.Printf("[Worker] backfill DONE: follower=%d followee=%d added=%d failed=%d",
		event.FollowerID, event.FolloweeID, len(posts)-failed, failed)
	return nil
}

// sweep clears the former followee's posts out of the follower's cache
// after an unfollow or a block severed the edge.
func (h *Handler) sweep(ctx context.Context, event queue.TimelineEvent) error {
	posts, err := h.posts.GetRecentPostsByActor(ctx, event.FolloweeID, sweepLimit)
	if err != nil {
		return fmt.Errorf("get posts to remove: %w", err)
	}
	if len(posts) == 0 {
		return nil
	}

	var failed int
	for _, p := range posts {
		if err := h.timelines.RemovePost(ctx, event.FollowerID, p.PostID); err != nil {
			log.Printf("[Worker] sweep: remove post=%d FAILED: %v", p.PostID, err)
			failed++
		}
	}

	log.Printf("[Worker] sweep DONE: follower=%d followee=%d removed=%d failed=%d",
		event.FollowerID, event.FolloweeID, len(posts)-failed, failed)
	return nil
}
