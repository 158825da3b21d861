package worker_test

import (
	"context"
	"sort"
	"testing"

	"quill/internal/cache"
	"quill/internal/queue"
	"quill/internal/worker"
)

// memoryTimelines is an in-memory stand-in for the redis timeline cache.
type memoryTimelines struct {
	entries map[int64]map[int64]int64 // actorID -> postID -> timestamp
}

func newMemoryTimelines() *memoryTimelines {
	return &memoryTimelines{entries: make(map[int64]map[int64]int64)}
}

func (m *memoryTimelines) AddPost(ctx context.Context, actorID, postID int64, timestamp int64) error {
	if m.entries[actorID] == nil {
		m.entries[actorID] = make(map[int64]int64)
	}
	m.entries[actorID][postID] = timestamp
	return nil
}

func (m *memoryTimelines) RemovePost(ctx context.Context, actorID, postID int64) error {
	delete(m.entries[actorID], postID)
	return nil
}

func (m *memoryTimelines) Window(ctx context.Context, actorID int64, cursorScore *float64, limit int) ([]int64, []float64, error) {
	var ids []int64
	for id := range m.entries[actorID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return m.entries[actorID][ids[i]] > m.entries[actorID][ids[j]]
	})
	if len(ids) > limit {
		ids = ids[:limit]
	}
	scores := make([]float64, len(ids))
	for i, id := range ids {
		scores[i] = float64(m.entries[actorID][id])
	}
	return ids, scores, nil
}

func (m *memoryTimelines) Warm(ctx context.Context, actorID int64, posts []cache.PostScore) error {
	for _, p := range posts {
		if err := m.AddPost(ctx, actorID, p.PostID, p.Timestamp); err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryTimelines) Exists(ctx context.Context, actorID int64) (bool, error) {
	return len(m.entries[actorID]) > 0, nil
}

func (m *memoryTimelines) has(actorID, postID int64) bool {
	_, ok := m.entries[actorID][postID]
	return ok
}

// followerMap is a map-backed FollowerProvider.
type followerMap map[int64][]int64

func (f followerMap) GetFollowerIDs(ctx context.Context, actorID int64) ([]int64, error) {
	return f[actorID], nil
}

// postsMap is a map-backed RecentPostsProvider.
type postsMap map[int64][]cache.PostScore

func (p postsMap) GetRecentPostsByActor(ctx context.Context, actorID int64, limit int) ([]cache.PostScore, error) {
	posts := p[actorID]
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func TestHandleEvent_PostCreatedFansOut(t *testing.T) {
	timelines := newMemoryTimelines()
	followers := followerMap{7: {1, 2, 3}}
	h := worker.NewHandler(timelines, followers, postsMap{})

	event := queue.NewPostCreatedEvent(100, 7)
	if err := h.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	for _, actorID := range []int64{1, 2, 3, 7} {
		if !timelines.has(actorID, 100) {
			t.Errorf("post 100 missing from actor %d's timeline", actorID)
		}
	}
}

func TestHandleEvent_ShareCreatedFansOutLikeAPost(t *testing.T) {
	timelines := newMemoryTimelines()
	followers := followerMap{5: {9}}
	h := worker.NewHandler(timelines, followers, postsMap{})

	event := queue.NewShareCreatedEvent(200, 5)
	if err := h.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if !timelines.has(9, 200) || !timelines.has(5, 200) {
		t.Error("share wrapper not fanned out to follower and sharer")
	}
}

func TestHandleEvent_PostDeletedEvicts(t *testing.T) {
	timelines := newMemoryTimelines()
	ctx := context.Background()
	timelines.AddPost(ctx, 1, 100, 1000)
	timelines.AddPost(ctx, 7, 100, 1000)
	timelines.AddPost(ctx, 1, 101, 1001) // unrelated post stays

	followers := followerMap{7: {1}}
	h := worker.NewHandler(timelines, followers, postsMap{})

	if err := h.HandleEvent(ctx, queue.NewPostDeletedEvent(100, 7)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if timelines.has(1, 100) || timelines.has(7, 100) {
		t.Error("deleted post still cached")
	}
	if !timelines.has(1, 101) {
		t.Error("unrelated post evicted")
	}
}

func TestHandleEvent_FollowAcceptedBackfills(t *testing.T) {
	timelines := newMemoryTimelines()
	posts := postsMap{8: {
		{PostID: 300, Timestamp: 3000},
		{PostID: 301, Timestamp: 3001},
	}}
	h := worker.NewHandler(timelines, followerMap{}, posts)

	if err := h.HandleEvent(context.Background(), queue.NewFollowAcceptedEvent(2, 8)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if !timelines.has(2, 300) || !timelines.has(2, 301) {
		t.Error("followee's recent posts not backfilled into follower's timeline")
	}
}

func TestHandleEvent_FollowRemovedSweeps(t *testing.T) {
	timelines := newMemoryTimelines()
	ctx := context.Background()
	timelines.AddPost(ctx, 2, 300, 3000)
	timelines.AddPost(ctx, 2, 400, 4000) // from someone else

	posts := postsMap{8: {{PostID: 300, Timestamp: 3000}}}
	h := worker.NewHandler(timelines, followerMap{}, posts)

	if err := h.HandleEvent(ctx, queue.NewFollowRemovedEvent(2, 8)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if timelines.has(2, 300) {
		t.Error("former followee's post still cached")
	}
	if !timelines.has(2, 400) {
		t.Error("unrelated post swept")
	}
}

func TestHandleEvent_UnknownType(t *testing.T) {
	h := worker.NewHandler(newMemoryTimelines(), followerMap{}, postsMap{})
	err := h.HandleEvent(context.Background(), queue.TimelineEvent{Type: "mystery"})
	if err == nil {
		t.Fatal("unknown event type accepted")
	}
}
