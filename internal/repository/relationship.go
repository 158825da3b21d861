package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"quill/internal/model"
)

type relationshipRepository struct {
	db *sqlx.DB
}

func NewRelationshipRepository(db *sqlx.DB) RelationshipRepository {
	return &relationshipRepository{db: db}
}

// Get computes the full relationship snapshot between viewer and target in a
// single query: block edges both directions, accepted follow edges both
// directions.
func (r *relationshipRepository) Get(ctx context.Context, viewerID, targetID int64) (model.Relationship, error) {
	query := `
		SELECT
			EXISTS(SELECT 1 FROM blocks WHERE blocker_id = $1 AND blocked_id = $2) AS blocking,
			EXISTS(SELECT 1 FROM blocks WHERE blocker_id = $2 AND blocked_id = $1) AS blocked_by,
			EXISTS(SELECT 1 FROM follows WHERE follower_id = $1 AND followee_id = $2 AND state = 'accepted') AS following,
			EXISTS(SELECT 1 FROM follows WHERE follower_id = $2 AND followee_id = $1 AND state = 'accepted') AS followed_by
	`
	var rel model.Relationship
	if err := r.db.GetContext(ctx, &rel, query, viewerID, targetID); err != nil {
		return model.Relationship{}, fmt.Errorf("get relationship: %w", err)
	}
	return rel, nil
}

// GetMany returns the viewer's relationship against each target. Targets with
// no edges at all map to the zero snapshot.
func (r *relationshipRepository) GetMany(ctx context.Context, viewerID int64, targetIDs []int64) (map[int64]model.Relationship, error) {
	result := make(map[int64]model.Relationship, len(targetIDs))
	for _, id := range targetIDs {
		result[id] = model.Relationship{}
	}
	if len(targetIDs) == 0 {
		return result, nil
	}

	type edge struct {
		ActorID    int64 `db:"actor_id"`
		Blocking   bool  `db:"blocking"`
		BlockedBy  bool  `db:"blocked_by"`
		Following  bool  `db:"following"`
		FollowedBy bool  `db:"followed_by"`
	}

	query := `
		SELECT t.id AS actor_id,
			EXISTS(SELECT 1 FROM blocks WHERE blocker_id = $1 AND blocked_id = t.id) AS blocking,
			EXISTS(SELECT 1 FROM blocks WHERE blocker_id = t.id AND blocked_id = $1) AS blocked_by,
			EXISTS(SELECT 1 FROM follows WHERE follower_id = $1 AND followee_id = t.id AND state = 'accepted') AS following,
			EXISTS(SELECT 1 FROM follows WHERE follower_id = t.id AND followee_id = $1 AND state = 'accepted') AS followed_by
		FROM unnest($2::bigint[]) AS t(id)
	`
	var edges []edge
	if err := r.db.SelectContext(ctx, &edges, query, viewerID, pq.Array(targetIDs)); err != nil {
		return nil, fmt.Errorf("get relationships: %w", err)
	}
	for _, e := range edges {
		result[e.ActorID] = model.Relationship{
			Blocking:   e.Blocking,
			BlockedBy:  e.BlockedBy,
			Following:  e.Following,
			FollowedBy: e.FollowedBy,
		}
	}
	return result, nil
}

// CreateFollow inserts a follow edge in the given state. Returns false when
// the edge already exists (re-follow is a no-op).
func (r *relationshipRepository) CreateFollow(ctx context.Context, tx *sqlx.Tx, followerID, followeeID int64, state string) (bool, error) {
	query := `
		INSERT INTO follows (follower_id, followee_id, state)
		VALUES ($1, $2, $3)
		ON CONFLICT (follower_id, followee_id) DO NOTHING
	`
	result, err := tx.ExecContext(ctx, query, followerID, followeeID, state)
	if err != nil {
		return false, fmt.Errorf("create follow: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *relationshipRepository) AcceptFollow(ctx context.Context, tx *sqlx.Tx, followerID, followeeID int64) error {
	query := `
		UPDATE follows SET state = 'accepted'
		WHERE follower_id = $1 AND followee_id = $2 AND state = 'pending'
	`
	result, err := tx.ExecContext(ctx, query, followerID, followeeID)
	if err != nil {
		return fmt.Errorf("accept follow: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrNotFollowing
	}
	return nil
}

func (r *relationshipRepository) DeleteFollow(ctx context.Context, tx *sqlx.Tx, followerID, followeeID int64) error {
	query := `DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`
	result, err := tx.ExecContext(ctx, query, followerID, followeeID)
	if err != nil {
		return fmt.Errorf("delete follow: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrNotFollowing
	}
	return nil
}

// CreateBlock inserts a directed block edge and severs any follow edges
// between the pair in the same transaction, so a block immediately revokes
// followers-only access both ways.
func (r *relationshipRepository) CreateBlock(ctx context.Context, tx *sqlx.Tx, blockerID, blockedID int64) (bool, error) {
	query := `
		INSERT INTO blocks (blocker_id, blocked_id)
		VALUES ($1, $2)
		ON CONFLICT (blocker_id, blocked_id) DO NOTHING
	`
	result, err := tx.ExecContext(ctx, query, blockerID, blockedID)
	if err != nil {
		return false, fmt.Errorf("create block: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM follows
		WHERE (follower_id = $1 AND followee_id = $2)
		   OR (follower_id = $2 AND followee_id = $1)
	`, blockerID, blockedID)
	if err != nil {
		return false, fmt.Errorf("sever follows on block: %w", err)
	}
	return true, nil
}

func (r *relationshipRepository) DeleteBlock(ctx context.Context, tx *sqlx.Tx, blockerID, blockedID int64) error {
	query := `DELETE FROM blocks WHERE blocker_id = $1 AND blocked_id = $2`
	result, err := tx.ExecContext(ctx, query, blockerID, blockedID)
	if err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrNotBlocking
	}
	return nil
}

// GetFollowerIDs returns actors with an accepted follow to the given actor.
// Used by the fan-out worker.
func (r *relationshipRepository) GetFollowerIDs(ctx context.Context, actorID int64) ([]int64, error) {
	query := `SELECT follower_id FROM follows WHERE followee_id = $1 AND state = 'accepted'`
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, actorID); err != nil {
		return nil, fmt.Errorf("get follower ids: %w", err)
	}
	return ids, nil
}

func (r *relationshipRepository) GetFolloweeIDs(ctx context.Context, actorID int64) ([]int64, error) {
	query := `SELECT followee_id FROM follows WHERE follower_id = $1 AND state = 'accepted'`
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, actorID); err != nil {
		return nil, fmt.Errorf("get followee ids: %w", err)
	}
	return ids, nil
}
