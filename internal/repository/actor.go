package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"quill/internal/model"
)

type actorRepository struct {
	db *sqlx.DB
}

func NewActorRepository(db *sqlx.DB) ActorRepository {
	return &actorRepository{db: db}
}

// Create inserts a new actor. Used on local signup and on first federation
// contact with a remote actor.
func (r *actorRepository) Create(ctx context.Context, actor *model.Actor) error {
	query := `
		INSERT INTO actors (uri, username, domain, display_name, avatar_url, account_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		actor.URI, actor.Username, actor.Domain, actor.DisplayName, actor.AvatarURL, actor.AccountID,
	).Scan(&actor.ID, &actor.CreatedAt, &actor.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert actor: %w", err)
	}
	return nil
}

func (r *actorRepository) GetByID(ctx context.Context, id int64) (*model.Actor, error) {
	query := `
		SELECT id, uri, username, domain, display_name, avatar_url, account_id, created_at, updated_at
		FROM actors
		WHERE id = $1
	`
	var actor model.Actor
	err := r.db.GetContext(ctx, &actor, query, id)
	if err == sql.ErrNoRows {
		return nil, model.ErrActorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get actor: %w", err)
	}
	return &actor, nil
}

// GetByHandle looks up an actor by username@host. domain == nil means a
// local actor.
func (r *actorRepository) GetByHandle(ctx context.Context, username string, domain *string) (*model.Actor, error) {
	var (
		query string
		args  []interface{}
	)
	if domain == nil {
		query = `
			SELECT id, uri, username, domain, display_name, avatar_url, account_id, created_at, updated_at
			FROM actors
			WHERE username = $1 AND domain IS NULL
		`
		args = []interface{}{username}
	} else {
		query = `
			SELECT id, uri, username, domain, display_name, avatar_url, account_id, created_at, updated_at
			FROM actors
			WHERE username = $1 AND domain = $2
		`
		args = []interface{}{username, *domain}
	}

	var actor model.Actor
	err := r.db.GetContext(ctx, &actor, query, args...)
	if err == sql.ErrNoRows {
		return nil, model.ErrActorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get actor by handle: %w", err)
	}
	return &actor, nil
}

// GetSummaries batch-loads lightweight actor records, keyed by id.
// Used when hydrating a timeline window.
func (r *actorRepository) GetSummaries(ctx context.Context, ids []int64) (map[int64]model.ActorSummary, error) {
	result := make(map[int64]model.ActorSummary, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `
		SELECT id, username, domain, display_name, avatar_url
		FROM actors
		WHERE id = ANY($1)
	`
	var summaries []model.ActorSummary
	if err := r.db.SelectContext(ctx, &summaries, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("get actor summaries: %w", err)
	}
	for _, s := range summaries {
		result[s.ID] = s
	}
	return result, nil
}

func (r *actorRepository) GetEmojis(ctx context.Context, actorID int64) ([]model.CustomEmoji, error) {
	query := `
		SELECT e.id, e.shortcode, e.image_url
		FROM custom_emojis e
		JOIN actor_emojis ae ON ae.emoji_id = e.id
		WHERE ae.actor_id = $1
		ORDER BY e.shortcode
	`
	var emojis []model.CustomEmoji
	if err := r.db.SelectContext(ctx, &emojis, query, actorID); err != nil {
		return nil, fmt.Errorf("get actor emojis: %w", err)
	}
	return emojis, nil
}
