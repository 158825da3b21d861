package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jmoiron/sqlx"

	"quill/internal/metrics"
	"quill/internal/model"
	"quill/internal/queue"
	"quill/internal/repository"
	"quill/internal/timeline"
	"quill/internal/visibility"
)

// PostService owns the write paths around posts: composing, sharing,
// deleting, and reacting. Every path that touches another actor's post runs
// the visibility check first and reports violations as not-found, never as
// forbidden, so the response doesn't leak that the post exists.
type PostService struct {
	posts     repository.PostRepository
	reactions repository.ReactionRepository
	rels      repository.RelationshipRepository
	hydrator  *Hydrator
	publisher queue.Publisher
	db        *sqlx.DB
}

func NewPostService(
	posts repository.PostRepository,
	reactions repository.ReactionRepository,
	rels repository.RelationshipRepository,
	hydrator *Hydrator,
	publisher queue.Publisher,
	db *sqlx.DB,
) *PostService {
	return &PostService{
		posts:     posts,
		reactions: reactions,
		rels:      rels,
		hydrator:  hydrator,
		publisher: publisher,
		db:        db,
	}
}

// visible runs the visibility check for one post against one viewer.
func (s *PostService) visible(ctx context.Context, post *model.Post, viewer *model.Actor) (bool, error) {
	oracle := visibility.NewOracle(s.rels, actorID(viewer))
	return visibility.Check(ctx, oracle, post, viewer)
}

// Create validates and persists a new post, then queues it for fan-out.
// Replies don't fan out; they surface through the reply thread only.
func (s *PostService) Create(ctx context.Context, author *model.Actor, req model.CreatePostRequest) (*model.Post, error) {
	kind := req.Kind
	if kind == "" {
		kind = model.PostKindNote
	}
	if kind != model.PostKindNote && kind != model.PostKindArticle {
		kind = model.PostKindNote
	}

	switch kind {
	case model.PostKindArticle:
		if len(req.Contents) == 0 {
			return nil, model.ErrEmptyContent
		}
		for _, c := range req.Contents {
			if strings.TrimSpace(c.Body) == "" {
				return nil, model.ErrEmptyContent
			}
			if len(c.Body) > model.MaxPostContentLength {
				return nil, model.ErrContentTooLong
			}
		}
	default:
		if req.Content == nil || strings.TrimSpace(*req.Content) == "" {
			return nil, model.ErrEmptyContent
		}
		if len(*req.Content) > model.MaxPostContentLength {
			return nil, model.ErrContentTooLong
		}
	}
	if len(req.MentionIDs) > model.MaxMentionCount {
		return nil, model.ErrTooManyMentions
	}

	post := &model.Post{
		AuthorID:     author.ID,
		Kind:         kind,
		Visibility:   model.ParseVisibility(req.Visibility),
		Content:      req.Content,
		Language:     req.Language,
		InReplyToID:  req.InReplyToID,
		QuotedPostID: req.QuotedID,
		MentionIDs:   req.MentionIDs,
		Contents:     req.Contents,
	}

	if req.InReplyToID != nil {
		parent, err := s.posts.GetByID(ctx, *req.InReplyToID)
		if err != nil {
			return nil, err
		}
		ok, err := s.visible(ctx, parent, author)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, model.ErrPostNotFound
		}
	}
	if req.QuotedID != nil {
		quoted, err := s.posts.GetByID(ctx, *req.QuotedID)
		if err != nil {
			return nil, err
		}
		ok, err := s.visible(ctx, quoted, author)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, model.ErrPostNotFound
		}
		// Quoting rebroadcasts: restricted audiences can't be widened.
		if quoted.Visibility != model.VisibilityPublic && quoted.Visibility != model.VisibilityUnlisted {
			return nil, model.ErrCannotShareLevel
		}
	}

	created, err := s.posts.Create(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	if created.InReplyToID == nil {
		s.publish(ctx, queue.NewPostCreatedEvent(created.ID, author.ID))
	}
	return created, nil
}

// Get returns one display-ready post. Visibility violations come back as
// model.ErrPostNotFound.
func (s *PostService) Get(ctx context.Context, postID int64, viewer *model.Actor, langPrefs []string) (*model.TimelinePost, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	ok, err := s.visible(ctx, post, viewer)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.ErrPostNotFound
	}

	hydrated, err := s.hydrator.Hydrate(ctx, viewer, []timeline.Item{{Post: *post}}, langPrefs)
	if err != nil {
		return nil, err
	}
	return &hydrated[0], nil
}

// Delete soft-deletes the actor's own post and queues cache eviction.
func (s *PostService) Delete(ctx context.Context, postID int64, actor *model.Actor) error {
	deleted, err := s.posts.SoftDelete(ctx, postID, actor.ID)
	if err != nil {
		return err
	}
	s.publish(ctx, queue.NewPostDeletedEvent(deleted.ID, actor.ID))
	return nil
}

// Share creates a share wrapper around the target post. Sharing a share
// re-shares the original, so every wrapper points at a real post. Followers
// and direct posts can't be rebroadcast.
func (s *PostService) Share(ctx context.Context, postID int64, actor *model.Actor, vis string) (*model.Post, error) {
	target, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	ok, err := s.visible(ctx, target, actor)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.ErrPostNotFound
	}
	if target.IsShare() {
		if target.Shared == nil || target.Shared.Deleted() {
			return nil, model.ErrPostNotFound
		}
		target = target.Shared
	}
	if target.Visibility != model.VisibilityPublic && target.Visibility != model.VisibilityUnlisted {
		return nil, model.ErrCannotShareLevel
	}

	wrapper, err := s.posts.CreateShare(ctx, actor.ID, target.ID, model.ParseVisibility(vis))
	if err != nil {
		return nil, err
	}

	metrics.SharesTotal.WithLabelValues("share").Inc()
	s.publish(ctx, queue.NewShareCreatedEvent(wrapper.ID, actor.ID))
	return wrapper, nil
}

// Unshare removes the actor's share of the target post.
func (s *PostService) Unshare(ctx context.Context, postID int64, actor *model.Actor) error {
	wrapper, err := s.posts.FindShare(ctx, actor.ID, postID)
	if err != nil {
		return err
	}
	if _, err := s.posts.SoftDelete(ctx, wrapper.ID, actor.ID); err != nil {
		return err
	}
	metrics.SharesTotal.WithLabelValues("unshare").Inc()
	s.publish(ctx, queue.NewShareRemovedEvent(wrapper.ID, actor.ID))
	return nil
}

// React records one emoji reaction from the actor on the post. Reacting
// twice with the same emoji is a no-op; the counter only moves when a row is
// actually inserted.
func (s *PostService) React(ctx context.Context, postID int64, actor *model.Actor, emoji string) error {
	if !validEmoji(emoji) {
		return model.ErrInvalidEmoji
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	ok, err := s.visible(ctx, post, actor)
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrPostNotFound
	}
	// Reactions land on the original, not the share wrapper.
	targetID := displayTarget(post).ID

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	inserted, err := s.reactions.Create(ctx, tx, targetID, actor.ID, emoji)
	if err != nil {
		return err
	}
	if inserted {
		if err := s.posts.IncrementReactionCount(ctx, tx, targetID, 1); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	if inserted {
		metrics.ReactionsTotal.WithLabelValues("react").Inc()
	}
	return nil
}

// UndoReact removes one emoji reaction. Removing a reaction that isn't there
// returns model.ErrReactionNotFound.
func (s *PostService) UndoReact(ctx context.Context, postID int64, actor *model.Actor, emoji string) error {
	if !validEmoji(emoji) {
		return model.ErrInvalidEmoji
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	ok, err := s.visible(ctx, post, actor)
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrPostNotFound
	}
	targetID := displayTarget(post).ID

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.reactions.Delete(ctx, tx, targetID, actor.ID, emoji); err != nil {
		return err
	}
	if err := s.posts.IncrementReactionCount(ctx, tx, targetID, -1); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	metrics.ReactionsTotal.WithLabelValues("undo").Inc()
	return nil
}

func (s *PostService) publish(ctx context.Context, event queue.TimelineEvent) {
	if s.publisher == nil {
		return
	}
	msgID, err := s.publisher.Publish(ctx, queue.StreamTimeline, event)
	if err != nil {
		// The write already committed; fan-out is retried out of band.
		log.Printf("[PostService] publish %s FAILED: %v", event.Type, err)
		return
	}
	log.Printf("[PostService] published %s msgID=%s", event.Type, msgID)
}

func validEmoji(emoji string) bool {
	if emoji == "" || len(emoji) > model.MaxEmojiLength {
		return false
	}
	if strings.ContainsAny(emoji, " \t\n") {
		return false
	}
	return true
}
