package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"quill/internal/cache"
	"quill/internal/metrics"
	"quill/internal/model"
	"quill/internal/repository"
	"quill/internal/timeline"
	"quill/internal/visibility"
)

// homeWarmLimit caps how many posts a cold cache rebuild pulls from the
// store. Matches the cache's own retention cap.
const homeWarmLimit = 800

// TimelineService assembles the four timeline surfaces: home (cache-backed),
// profile, reply threads, and quote lists (store-backed with the visibility
// filter pushed into SQL).
type TimelineService struct {
	posts     repository.PostRepository
	actors    repository.ActorRepository
	rels      repository.RelationshipRepository
	timelines cache.TimelineCache
	composer  *timeline.Composer
	hydrator  *Hydrator
}

func NewTimelineService(
	posts repository.PostRepository,
	actors repository.ActorRepository,
	rels repository.RelationshipRepository,
	timelines cache.TimelineCache,
	composer *timeline.Composer,
	hydrator *Hydrator,
) *TimelineService {
	return &TimelineService{
		posts:     posts,
		actors:    actors,
		rels:      rels,
		timelines: timelines,
		composer:  composer,
		hydrator:  hydrator,
	}
}

// Home returns one page of the viewer's home timeline, reading post ids from
// the per-actor cache and rebuilding it from the store on a cold miss.
func (s *TimelineService) Home(ctx context.Context, viewer *model.Actor, cursorToken *string, limit int, langPrefs []string) (*model.TimelineResponse, error) {
	defer observe("home", time.Now())

	cur, err := decodeCursorToken(cursorToken)
	if err != nil {
		return nil, err
	}
	if err := s.ensureWarm(ctx, viewer.ID); err != nil {
		return nil, err
	}

	page, err := s.composer.Page(ctx, viewer, cur, limit, s.cacheFetch(viewer.ID))
	if err != nil {
		return nil, err
	}
	return s.respond(ctx, viewer, page, langPrefs)
}

// Profile returns one page of an actor's posts: pinned posts lead the
// uncursored first page, replies are excluded, shares collapse.
func (s *TimelineService) Profile(ctx context.Context, authorID int64, viewer *model.Actor, cursorToken *string, limit int, langPrefs []string) (*model.TimelineResponse, error) {
	defer observe("profile", time.Now())

	if _, err := s.actors.GetByID(ctx, authorID); err != nil {
		return nil, err
	}
	cur, err := decodeCursorToken(cursorToken)
	if err != nil {
		return nil, err
	}

	f := visibility.ForViewer(actorID(viewer), "p")
	fetch := func(ctx context.Context, before *timeline.Cursor, limit int) ([]model.Post, error) {
		return s.posts.GetProfileWindow(ctx, authorID, f, before, limit)
	}

	var pinned []model.Post
	if cur == nil {
		pinned, err = s.posts.GetPinned(ctx, authorID, f)
		if err != nil {
			return nil, err
		}
	}

	page, err := s.composer.ProfilePage(ctx, viewer, pinned, cur, limit, fetch)
	if err != nil {
		return nil, err
	}
	return s.respond(ctx, viewer, page, langPrefs)
}

// Replies returns one page of direct replies to a post. The parent must be
// visible to the viewer; otherwise the thread doesn't exist for them.
func (s *TimelineService) Replies(ctx context.Context, parentID int64, viewer *model.Actor, cursorToken *string, limit int, langPrefs []string) (*model.TimelineResponse, error) {
	defer observe("replies", time.Now())

	if err := s.gate(ctx, parentID, viewer); err != nil {
		return nil, err
	}
	cur, err := decodeCursorToken(cursorToken)
	if err != nil {
		return nil, err
	}

	f := visibility.ForViewer(actorID(viewer), "p")
	fetch := func(ctx context.Context, before *timeline.Cursor, limit int) ([]model.Post, error) {
		return s.posts.GetReplyWindow(ctx, parentID, f, before, limit)
	}

	page, err := s.composer.Page(ctx, viewer, cur, limit, fetch)
	if err != nil {
		return nil, err
	}
	return s.respond(ctx, viewer, page, langPrefs)
}

// Quotes returns one page of posts quoting the given post.
func (s *TimelineService) Quotes(ctx context.Context, quotedID int64, viewer *model.Actor, cursorToken *string, limit int, langPrefs []string) (*model.TimelineResponse, error) {
	defer observe("quotes", time.Now())

	if err := s.gate(ctx, quotedID, viewer); err != nil {
		return nil, err
	}
	cur, err := decodeCursorToken(cursorToken)
	if err != nil {
		return nil, err
	}

	f := visibility.ForViewer(actorID(viewer), "p")
	fetch := func(ctx context.Context, before *timeline.Cursor, limit int) ([]model.Post, error) {
		return s.posts.GetQuoteWindow(ctx, quotedID, f, before, limit)
	}

	page, err := s.composer.Page(ctx, viewer, cur, limit, fetch)
	if err != nil {
		return nil, err
	}
	return s.respond(ctx, viewer, page, langPrefs)
}

// gate checks that the anchor post of a thread surface is visible to the
// viewer, reporting violations as not-found.
func (s *TimelineService) gate(ctx context.Context, postID int64, viewer *model.Actor) error {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	oracle := visibility.NewOracle(s.rels, actorID(viewer))
	ok, err := visibility.Check(ctx, oracle, post, viewer)
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrPostNotFound
	}
	return nil
}

// ensureWarm rebuilds a missing home timeline cache from the store: the
// viewer's accepted followees' recent posts plus their own.
func (s *TimelineService) ensureWarm(ctx context.Context, viewerID int64) error {
	exists, err := s.timelines.Exists(ctx, viewerID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	followees, err := s.rels.GetFolloweeIDs(ctx, viewerID)
	if err != nil {
		return fmt.Errorf("get followees: %w", err)
	}
	scores, err := s.posts.GetFeedPostIDs(ctx, append(followees, viewerID), homeWarmLimit)
	if err != nil {
		return fmt.Errorf("get feed posts: %w", err)
	}
	if len(scores) == 0 {
		return nil
	}
	if err := s.timelines.Warm(ctx, viewerID, scores); err != nil {
		return fmt.Errorf("warm timeline cache: %w", err)
	}

	metrics.CacheWarms.Inc()
	log.Printf("[TimelineService] warmed cache: actor=%d posts=%d", viewerID, len(scores))
	return nil
}

func (s *TimelineService) respond(ctx context.Context, viewer *model.Actor, page *timeline.Page, langPrefs []string) (*model.TimelineResponse, error) {
	posts, err := s.hydrator.Hydrate(ctx, viewer, page.Items, langPrefs)
	if err != nil {
		return nil, err
	}
	resp := &model.TimelineResponse{
		Posts:   posts,
		HasMore: page.HasMore,
	}
	if page.NextCursor != nil {
		token := page.NextCursor.Encode()
		resp.NextCursor = &token
	}
	return resp, nil
}

func decodeCursorToken(token *string) (*timeline.Cursor, error) {
	if token == nil || *token == "" {
		return nil, nil
	}
	return timeline.DecodeCursor(*token)
}

// cacheFetch adapts the redis timeline cache into a composer fetch source.
// Cached ids whose post has since been deleted are evicted lazily and
// replaced from further down the sorted set, so a dead entry never reads as
// cache exhaustion. Cache scores are whole seconds, so the first window
// starts one score above the cursor to keep same-second entries in range;
// the precise timestamps on the hydrated rows then cut the (published_at,
// id) key below the cursor.
func (s *TimelineService) cacheFetch(viewerID int64) timeline.FetchFunc {
	return func(ctx context.Context, before *timeline.Cursor, limit int) ([]model.Post, error) {
		var cursorScore *float64
		if before != nil {
			sc := before.Score() + 1
			cursorScore = &sc
		}

		out := make([]model.Post, 0, limit)
		for len(out) < limit {
			want := limit - len(out)
			ids, scores, err := s.timelines.Window(ctx, viewerID, cursorScore, want)
			if err != nil {
				return nil, err
			}
			if len(ids) == 0 {
				break
			}

			posts, err := s.posts.GetByIDs(ctx, ids)
			if err != nil {
				return nil, err
			}

			alive := make(map[int64]bool, len(posts))
			for _, p := range posts {
				alive[p.ID] = true
			}
			for _, id := range ids {
				if !alive[id] {
					if err := s.timelines.RemovePost(ctx, viewerID, id); err != nil {
						log.Printf("[TimelineService] evict stale cache entry failed: actor=%d post=%d err=%v", viewerID, id, err)
					}
				}
			}

			for i := range posts {
				if before != nil && !before.Admits(&posts[i]) {
					continue
				}
				out = append(out, posts[i])
			}

			if len(ids) < want {
				break
			}
			last := scores[len(scores)-1]
			cursorScore = &last
		}
		return out, nil
	}
}

func observe(kind string, start time.Time) {
	metrics.TimelineLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
