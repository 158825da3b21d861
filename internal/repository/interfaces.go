package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"quill/internal/cache"
	"quill/internal/model"
	"quill/internal/timeline"
	"quill/internal/visibility"
)

type ActorRepository interface {
	Create(ctx context.Context, actor *model.Actor) error
	GetByID(ctx context.Context, id int64) (*model.Actor, error)
	GetByHandle(ctx context.Context, username string, domain *string) (*model.Actor, error)
	// GetSummaries batch-loads lightweight actor records for hydration.
	GetSummaries(ctx context.Context, ids []int64) (map[int64]model.ActorSummary, error)
	GetEmojis(ctx context.Context, actorID int64) ([]model.CustomEmoji, error)
}

type RelationshipRepository interface {
	// Get returns the full relationship snapshot between viewer and target.
	Get(ctx context.Context, viewerID, targetID int64) (model.Relationship, error)
	// GetMany returns snapshots for viewer against each target, for
	// batch-filtering a timeline window in two queries instead of 2N.
	GetMany(ctx context.Context, viewerID int64, targetIDs []int64) (map[int64]model.Relationship, error)

	CreateFollow(ctx context.Context, tx *sqlx.Tx, followerID, followeeID int64, state string) (bool, error)
	AcceptFollow(ctx context.Context, tx *sqlx.Tx, followerID, followeeID int64) error
	DeleteFollow(ctx context.Context, tx *sqlx.Tx, followerID, followeeID int64) error
	CreateBlock(ctx context.Context, tx *sqlx.Tx, blockerID, blockedID int64) (bool, error)
	DeleteBlock(ctx context.Context, tx *sqlx.Tx, blockerID, blockedID int64) error

	GetFollowerIDs(ctx context.Context, actorID int64) ([]int64, error)
	GetFolloweeIDs(ctx context.Context, actorID int64) ([]int64, error)
}

type PostRepository interface {
	Create(ctx context.Context, post *model.Post) (*model.Post, error)
	CreateShare(ctx context.Context, actorID, sharedPostID int64, vis model.Visibility) (*model.Post, error)
	GetByID(ctx context.Context, postID int64) (*model.Post, error)
	GetByIDs(ctx context.Context, postIDs []int64) ([]model.Post, error)
	SoftDelete(ctx context.Context, postID, actorID int64) (*model.Post, error)
	Exists(ctx context.Context, postID int64) (bool, error)
	GetAuthorID(ctx context.Context, postID int64) (int64, error)

	// Window queries push the viewer's visibility filter into SQL and
	// over-fetch limit+1 rows; the composer derives the cursor from the
	// extra row. See visibility.Filter.
	GetProfileWindow(ctx context.Context, authorID int64, f visibility.Filter, before *timeline.Cursor, limit int) ([]model.Post, error)
	GetPinned(ctx context.Context, authorID int64, f visibility.Filter) ([]model.Post, error)
	GetReplyWindow(ctx context.Context, parentID int64, f visibility.Filter, before *timeline.Cursor, limit int) ([]model.Post, error)
	GetQuoteWindow(ctx context.Context, quotedID int64, f visibility.Filter, before *timeline.Cursor, limit int) ([]model.Post, error)

	// Feed support (home timeline cache warm + fan-out backfill).
	GetFeedPostIDs(ctx context.Context, followeeIDs []int64, limit int) ([]cache.PostScore, error)
	GetRecentPostsByActor(ctx context.Context, actorID int64, limit int) ([]cache.PostScore, error)

	// Share state
	FindShare(ctx context.Context, actorID, sharedPostID int64) (*model.Post, error)
	CheckShares(ctx context.Context, actorID int64, postIDs []int64) (map[int64]bool, error)

	// Counter maintenance, always inside the transaction that creates or
	// removes the child row the counter summarizes.
	IncrementReplyCount(ctx context.Context, tx *sqlx.Tx, postID int64, delta int) error
	IncrementShareCount(ctx context.Context, tx *sqlx.Tx, postID int64, delta int) error
	IncrementQuoteCount(ctx context.Context, tx *sqlx.Tx, postID int64, delta int) error
	IncrementReactionCount(ctx context.Context, tx *sqlx.Tx, postID int64, delta int) error
}

type ReactionRepository interface {
	// Create inserts a reaction row. Returns false when the (actor, post,
	// emoji) key already has a live row (idempotent no-op).
	Create(ctx context.Context, tx *sqlx.Tx, postID, actorID int64, emoji string) (bool, error)
	// Delete removes a reaction row. Returns model.ErrReactionNotFound when
	// no live row matched.
	Delete(ctx context.Context, tx *sqlx.Tx, postID, actorID int64, emoji string) error
	// GroupsForPosts returns per-emoji aggregates for each post, with the
	// viewer's own membership marked. viewerID <= 0 means anonymous.
	GroupsForPosts(ctx context.Context, postIDs []int64, viewerID int64) (map[int64][]model.ReactionGroup, error)
	// DeleteAllForPost removes all reactions on a post (post deletion).
	DeleteAllForPost(ctx context.Context, tx *sqlx.Tx, postID int64) error
}
