package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"quill/internal/model"
)

type reactionRepository struct {
	db *sqlx.DB
}

func NewReactionRepository(db *sqlx.DB) ReactionRepository {
	return &reactionRepository{db: db}
}

// Create inserts a reaction row. The unique key on (post_id, actor_id, emoji)
// plus ON CONFLICT DO NOTHING makes re-reacting with the same emoji an
// idempotent no-op; the caller only bumps the counter when a row was actually
// inserted.
func (r *reactionRepository) Create(ctx context.Context, tx *sqlx.Tx, postID, actorID int64, emoji string) (bool, error) {
	query := `
		INSERT INTO reactions (post_id, actor_id, emoji)
		VALUES ($1, $2, $3)
		ON CONFLICT (post_id, actor_id, emoji) DO NOTHING
	`
	result, err := tx.ExecContext(ctx, query, postID, actorID, emoji)
	if err != nil {
		return false, fmt.Errorf("insert reaction: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *reactionRepository) Delete(ctx context.Context, tx *sqlx.Tx, postID, actorID int64, emoji string) error {
	query := `DELETE FROM reactions WHERE post_id = $1 AND actor_id = $2 AND emoji = $3`
	result, err := tx.ExecContext(ctx, query, postID, actorID, emoji)
	if err != nil {
		return fmt.Errorf("delete reaction: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrReactionNotFound
	}
	return nil
}

// GroupsForPosts aggregates reactions per (post, emoji) for a timeline window
// in one query, marking the groups the viewer belongs to. The in-SQL ordering
// is a coarse pass; the engagement package applies the full deterministic
// order before render.
func (r *reactionRepository) GroupsForPosts(ctx context.Context, postIDs []int64, viewerID int64) (map[int64][]model.ReactionGroup, error) {
	result := make(map[int64][]model.ReactionGroup, len(postIDs))
	if len(postIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT post_id, emoji, COUNT(*) AS count,
			BOOL_OR(actor_id = $2) AS viewer_reacted
		FROM reactions
		WHERE post_id = ANY($1)
		GROUP BY post_id, emoji
		ORDER BY post_id, count DESC, emoji
	`
	var groups []model.ReactionGroup
	if err := r.db.SelectContext(ctx, &groups, query, pq.Array(postIDs), viewerID); err != nil {
		return nil, fmt.Errorf("get reaction groups: %w", err)
	}
	for _, g := range groups {
		result[g.PostID] = append(result[g.PostID], g)
	}
	return result, nil
}

func (r *reactionRepository) DeleteAllForPost(ctx context.Context, tx *sqlx.Tx, postID int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM reactions WHERE post_id = $1`, postID); err != nil {
		return fmt.Errorf("delete reactions for post: %w", err)
	}
	return nil
}
