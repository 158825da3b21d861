package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"quill/internal/cache"
	"quill/internal/model"
	"quill/internal/timeline"
	"quill/internal/visibility"
)

const postColumns = `id, uri, author_id, kind, visibility, content, language,
	in_reply_to_id, quoted_post_id, shared_post_id, pinned, published_at, deleted_at,
	reply_count, share_count, quote_count, reaction_count`

type postRepository struct {
	db *sqlx.DB
}

func NewPostRepository(db *sqlx.DB) PostRepository {
	return &postRepository{db: db}
}

// Create inserts a post plus its mention rows and article contents in one
// transaction, and bumps the parent's reply/quote counter when the post is a
// reply or a quote.
func (r *postRepository) Create(ctx context.Context, post *model.Post) (*model.Post, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO posts (uri, author_id, kind, visibility, content, language, in_reply_to_id, quoted_post_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + postColumns
	err = tx.GetContext(ctx, post, query,
		post.URI, post.AuthorID, post.Kind, post.Visibility,
		post.Content, post.Language, post.InReplyToID, post.QuotedPostID)
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}

	for _, actorID := range post.MentionIDs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO post_mentions (post_id, actor_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			post.ID, actorID)
		if err != nil {
			return nil, fmt.Errorf("insert mention: %w", err)
		}
	}

	for _, c := range post.Contents {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO post_contents (post_id, language, body) VALUES ($1, $2, $3)`,
			post.ID, c.Language, c.Body)
		if err != nil {
			return nil, fmt.Errorf("insert content %s: %w", c.Language, err)
		}
	}

	if post.InReplyToID != nil {
		if err := r.IncrementReplyCount(ctx, tx, *post.InReplyToID, 1); err != nil {
			return nil, err
		}
	}
	if post.QuotedPostID != nil {
		if err := r.IncrementQuoteCount(ctx, tx, *post.QuotedPostID, 1); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return post, nil
}

// CreateShare inserts a share wrapper and increments the shared post's share
// counter in the same transaction. Returns model.ErrAlreadyShared when the
// actor already has a live share of the post.
func (r *postRepository) CreateShare(ctx context.Context, actorID, sharedPostID int64, vis model.Visibility) (*model.Post, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM posts
			WHERE author_id = $1 AND shared_post_id = $2 AND deleted_at IS NULL
		)
	`, actorID, sharedPostID)
	if err != nil {
		return nil, fmt.Errorf("check existing share: %w", err)
	}
	if exists {
		return nil, model.ErrAlreadyShared
	}

	var post model.Post
	query := `
		INSERT INTO posts (uri, author_id, kind, visibility, shared_post_id)
		VALUES ('', $1, 'note', $2, $3)
		RETURNING ` + postColumns
	if err := tx.GetContext(ctx, &post, query, actorID, vis, sharedPostID); err != nil {
		return nil, fmt.Errorf("insert share: %w", err)
	}

	if err := r.IncrementShareCount(ctx, tx, sharedPostID, 1); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &post, nil
}

// GetByID retrieves one post with mentions and contents, hydrating the inner
// post when it is a share wrapper.
func (r *postRepository) GetByID(ctx context.Context, postID int64) (*model.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1 AND deleted_at IS NULL`
	var post model.Post
	err := r.db.GetContext(ctx, &post, query, postID)
	if err == sql.ErrNoRows {
		return nil, model.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}

	if err := r.attachChildren(ctx, []*model.Post{&post}); err != nil {
		return nil, err
	}
	return &post, nil
}

// GetByIDs retrieves multiple posts, preserving the order of the input ids.
// Used for hydrating the home timeline from the cache.
func (r *postRepository) GetByIDs(ctx context.Context, postIDs []int64) ([]model.Post, error) {
	if len(postIDs) == 0 {
		return []model.Post{}, nil
	}

	query := `SELECT ` + postColumns + ` FROM posts WHERE id = ANY($1) AND deleted_at IS NULL`
	var posts []model.Post
	if err := r.db.SelectContext(ctx, &posts, query, pq.Array(postIDs)); err != nil {
		return nil, fmt.Errorf("get posts by ids: %w", err)
	}

	byID := make(map[int64]model.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}
	ordered := make([]model.Post, 0, len(posts))
	for _, id := range postIDs {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}

	refs := make([]*model.Post, len(ordered))
	for i := range ordered {
		refs[i] = &ordered[i]
	}
	if err := r.attachChildren(ctx, refs); err != nil {
		return nil, err
	}
	return ordered, nil
}

// attachChildren loads mentions, article contents, and inner shared/quoted
// posts for the given batch.
func (r *postRepository) attachChildren(ctx context.Context, posts []*model.Post) error {
	if len(posts) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(posts))
	innerIDs := make([]int64, 0)
	for _, p := range posts {
		ids = append(ids, p.ID)
		if p.SharedPostID != nil {
			innerIDs = append(innerIDs, *p.SharedPostID)
		}
		if p.QuotedPostID != nil {
			innerIDs = append(innerIDs, *p.QuotedPostID)
		}
	}

	type mentionRow struct {
		PostID  int64 `db:"post_id"`
		ActorID int64 `db:"actor_id"`
	}
	var mentions []mentionRow
	err := r.db.SelectContext(ctx, &mentions,
		`SELECT post_id, actor_id FROM post_mentions WHERE post_id = ANY($1) ORDER BY post_id, actor_id`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("get mentions: %w", err)
	}
	mentionsByPost := make(map[int64][]int64)
	for _, m := range mentions {
		mentionsByPost[m.PostID] = append(mentionsByPost[m.PostID], m.ActorID)
	}

	var contents []model.PostContent
	err = r.db.SelectContext(ctx, &contents,
		`SELECT post_id, language, body FROM post_contents WHERE post_id = ANY($1) ORDER BY post_id, language`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("get contents: %w", err)
	}
	contentsByPost := make(map[int64][]model.PostContent)
	for _, c := range contents {
		contentsByPost[c.PostID] = append(contentsByPost[c.PostID], c)
	}

	// Inner posts for shares and quotes. Deleted inner posts are fetched
	// too: a share of a deleted post must read as inert, not vanish from
	// thread structure.
	innerByID := make(map[int64]*model.Post)
	if len(innerIDs) > 0 {
		var inner []model.Post
		err = r.db.SelectContext(ctx, &inner,
			`SELECT `+postColumns+` FROM posts WHERE id = ANY($1)`, pq.Array(innerIDs))
		if err != nil {
			return fmt.Errorf("get inner posts: %w", err)
		}
		for i := range inner {
			innerByID[inner[i].ID] = &inner[i]
		}
		innerRefs := make([]int64, 0, len(inner))
		for i := range inner {
			innerRefs = append(innerRefs, inner[i].ID)
		}
		var innerMentions []mentionRow
		err = r.db.SelectContext(ctx, &innerMentions,
			`SELECT post_id, actor_id FROM post_mentions WHERE post_id = ANY($1)`, pq.Array(innerRefs))
		if err != nil {
			return fmt.Errorf("get inner mentions: %w", err)
		}
		for _, m := range innerMentions {
			p := innerByID[m.PostID]
			p.MentionIDs = append(p.MentionIDs, m.ActorID)
		}
	}

	for _, p := range posts {
		p.MentionIDs = mentionsByPost[p.ID]
		p.Contents = contentsByPost[p.ID]
		if p.SharedPostID != nil {
			p.Shared = innerByID[*p.SharedPostID]
		}
		if p.QuotedPostID != nil {
			p.Quoted = innerByID[*p.QuotedPostID]
		}
	}
	return nil
}

// SoftDelete marks a post inert and rolls its contribution out of the parent
// counters: the reply/quote/share counter of whatever it pointed at goes down
// by one, and its own reactions are removed. The id survives for thread
// integrity. Returns the deleted post so the caller can publish fan-out
// removal events.
func (r *postRepository) SoftDelete(ctx context.Context, postID, actorID int64) (*model.Post, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var post model.Post
	err = tx.GetContext(ctx, &post, `
		UPDATE posts SET deleted_at = NOW()
		WHERE id = $1 AND author_id = $2 AND deleted_at IS NULL
		RETURNING `+postColumns, postID, actorID)
	if err == sql.ErrNoRows {
		var exists bool
		if err := r.db.GetContext(ctx, &exists,
			`SELECT EXISTS(SELECT 1 FROM posts WHERE id = $1 AND deleted_at IS NULL)`, postID); err != nil {
			return nil, fmt.Errorf("check post exists: %w", err)
		}
		if exists {
			return nil, model.ErrNotPostAuthor
		}
		return nil, model.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("soft delete post: %w", err)
	}

	if post.InReplyToID != nil {
		if err := r.IncrementReplyCount(ctx, tx, *post.InReplyToID, -1); err != nil {
			return nil, err
		}
	}
	if post.QuotedPostID != nil {
		if err := r.IncrementQuoteCount(ctx, tx, *post.QuotedPostID, -1); err != nil {
			return nil, err
		}
	}
	if post.SharedPostID != nil {
		if err := r.IncrementShareCount(ctx, tx, *post.SharedPostID, -1); err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM reactions WHERE post_id = $1`, postID)
	if err != nil {
		return nil, fmt.Errorf("delete reactions of deleted post: %w", err)
	}
	_, err = tx.ExecContext(ctx, `UPDATE posts SET reaction_count = 0 WHERE id = $1`, postID)
	if err != nil {
		return nil, fmt.Errorf("zero reaction count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &post, nil
}

func (r *postRepository) Exists(ctx context.Context, postID int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM posts WHERE id = $1 AND deleted_at IS NULL)`, postID)
	if err != nil {
		return false, fmt.Errorf("check post exists: %w", err)
	}
	return exists, nil
}

func (r *postRepository) GetAuthorID(ctx context.Context, postID int64) (int64, error) {
	var authorID int64
	err := r.db.GetContext(ctx, &authorID,
		`SELECT author_id FROM posts WHERE id = $1 AND deleted_at IS NULL`, postID)
	if err == sql.ErrNoRows {
		return 0, model.ErrPostNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get author id: %w", err)
	}
	return authorID, nil
}

// window runs one ?-style window query with the visibility filter embedded,
// rebinding for the postgres driver. Callers pass limit+1 to probe for a next
// page.
func (r *postRepository) window(ctx context.Context, base string, f visibility.Filter, args []interface{}, before *timeline.Cursor, limit int) ([]model.Post, error) {
	query := base + ` AND ` + f.Clause()
	args = append(args, f.Args()...)
	if before != nil {
		// Compare the full ordering key so rows sharing the boundary
		// row's timestamp still land on the next page.
		query += ` AND (p.published_at, p.id) < (?, ?)`
		args = append(args, before.TS, before.ID)
	}
	query += ` ORDER BY p.published_at DESC, p.id DESC LIMIT ?`
	args = append(args, limit)

	var posts []model.Post
	err := r.db.SelectContext(ctx, &posts, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("window query: %w", err)
	}

	refs := make([]*model.Post, len(posts))
	for i := range posts {
		refs[i] = &posts[i]
	}
	if err := r.attachChildren(ctx, refs); err != nil {
		return nil, err
	}
	return posts, nil
}

// GetProfileWindow returns the author's unpinned posts the viewer may see,
// newest first. Replies are excluded from the profile feed; shares are not.
func (r *postRepository) GetProfileWindow(ctx context.Context, authorID int64, f visibility.Filter, before *timeline.Cursor, limit int) ([]model.Post, error) {
	base := `
		SELECT ` + aliased(postColumns) + ` FROM posts p
		WHERE p.author_id = ? AND p.deleted_at IS NULL AND NOT p.pinned
		  AND p.in_reply_to_id IS NULL`
	return r.window(ctx, base, f, []interface{}{authorID}, before, limit)
}

// GetPinned returns the author's pinned posts the viewer may see, most
// recently published first.
func (r *postRepository) GetPinned(ctx context.Context, authorID int64, f visibility.Filter) ([]model.Post, error) {
	query := `
		SELECT ` + aliased(postColumns) + ` FROM posts p
		WHERE p.author_id = ? AND p.deleted_at IS NULL AND p.pinned
		  AND ` + f.Clause() + `
		ORDER BY p.published_at DESC`
	args := append([]interface{}{authorID}, f.Args()...)

	var posts []model.Post
	err := r.db.SelectContext(ctx, &posts, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("pinned query: %w", err)
	}
	refs := make([]*model.Post, len(posts))
	for i := range posts {
		refs[i] = &posts[i]
	}
	if err := r.attachChildren(ctx, refs); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) GetReplyWindow(ctx context.Context, parentID int64, f visibility.Filter, before *timeline.Cursor, limit int) ([]model.Post, error) {
	base := `
		SELECT ` + aliased(postColumns) + ` FROM posts p
		WHERE p.in_reply_to_id = ? AND p.deleted_at IS NULL`
	return r.window(ctx, base, f, []interface{}{parentID}, before, limit)
}

func (r *postRepository) GetQuoteWindow(ctx context.Context, quotedID int64, f visibility.Filter, before *timeline.Cursor, limit int) ([]model.Post, error) {
	base := `
		SELECT ` + aliased(postColumns) + ` FROM posts p
		WHERE p.quoted_post_id = ? AND p.deleted_at IS NULL`
	return r.window(ctx, base, f, []interface{}{quotedID}, before, limit)
}

// GetFeedPostIDs returns recent (id, timestamp) pairs from the given authors
// for warming a home timeline cache.
func (r *postRepository) GetFeedPostIDs(ctx context.Context, followeeIDs []int64, limit int) ([]cache.PostScore, error) {
	if len(followeeIDs) == 0 {
		return []cache.PostScore{}, nil
	}
	query := `
		SELECT id, EXTRACT(EPOCH FROM published_at)::bigint AS ts
		FROM posts
		WHERE author_id = ANY($1) AND deleted_at IS NULL AND in_reply_to_id IS NULL
		  AND visibility IN ('public', 'unlisted', 'followers')
		ORDER BY published_at DESC
		LIMIT $2
	`
	return r.selectScores(ctx, query, pq.Array(followeeIDs), limit)
}

// GetRecentPostsByActor returns an actor's recent posts for backfilling a new
// follower's timeline cache.
func (r *postRepository) GetRecentPostsByActor(ctx context.Context, actorID int64, limit int) ([]cache.PostScore, error) {
	query := `
		SELECT id, EXTRACT(EPOCH FROM published_at)::bigint AS ts
		FROM posts
		WHERE author_id = $1 AND deleted_at IS NULL AND in_reply_to_id IS NULL
		  AND visibility IN ('public', 'unlisted', 'followers')
		ORDER BY published_at DESC
		LIMIT $2
	`
	return r.selectScores(ctx, query, actorID, limit)
}

func (r *postRepository) selectScores(ctx context.Context, query string, args ...interface{}) ([]cache.PostScore, error) {
	type row struct {
		ID int64 `db:"id"`
		TS int64 `db:"ts"`
	}
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select post scores: %w", err)
	}
	scores := make([]cache.PostScore, len(rows))
	for i, w := range rows {
		scores[i] = cache.PostScore{PostID: w.ID, Timestamp: w.TS}
	}
	return scores, nil
}

// FindShare returns the actor's live share of the given post, or
// model.ErrNotShared.
func (r *postRepository) FindShare(ctx context.Context, actorID, sharedPostID int64) (*model.Post, error) {
	query := `
		SELECT ` + postColumns + ` FROM posts
		WHERE author_id = $1 AND shared_post_id = $2 AND deleted_at IS NULL
	`
	var post model.Post
	err := r.db.GetContext(ctx, &post, query, actorID, sharedPostID)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotShared
	}
	if err != nil {
		return nil, fmt.Errorf("find share: %w", err)
	}
	return &post, nil
}

// CheckShares reports which of the given posts the actor has a live share of.
func (r *postRepository) CheckShares(ctx context.Context, actorID int64, postIDs []int64) (map[int64]bool, error) {
	result := make(map[int64]bool, len(postIDs))
	if actorID <= 0 || len(postIDs) == 0 {
		return result, nil
	}
	query := `
		SELECT shared_post_id FROM posts
		WHERE author_id = $1 AND shared_post_id = ANY($2) AND deleted_at IS NULL
	`
	var shared []int64
	if err := r.db.SelectContext(ctx, &shared, query, actorID, pq.Array(postIDs)); err != nil {
		return nil, fmt.Errorf("check shares: %w", err)
	}
	for _, id := range shared {
		result[id] = true
	}
	return result, nil
}

func (r *postRepository) IncrementReplyCount(ctx context.Context, tx *sqlx.Tx, postID int64, delta int) error {
	return r.incrementCounter(ctx, tx, "reply_count", postID, delta)
}

func (r *postRepository) IncrementShareCount(ctx context.Context, tx *sqlx.Tx, postID int64, delta int) error {
	return r.incrementCounter(ctx, tx, "share_count", postID, delta)
}

func (r *postRepository) IncrementQuoteCount(ctx context.Context, tx *sqlx.Tx, postID int64, delta int) error {
	return r.incrementCounter(ctx, tx, "quote_count", postID, delta)
}

func (r *postRepository) IncrementReactionCount(ctx context.Context, tx *sqlx.Tx, postID int64, delta int) error {
	return r.incrementCounter(ctx, tx, "reaction_count", postID, delta)
}

// incrementCounter adjusts a derived aggregate, floored at zero so a racing
// double-decrement can never drive a counter negative.
func (r *postRepository) incrementCounter(ctx context.Context, tx *sqlx.Tx, column string, postID int64, delta int) error {
	query := fmt.Sprintf(
		`UPDATE posts SET %s = GREATEST(%s + $1, 0) WHERE id = $2`, column, column)
	if _, err := tx.ExecContext(ctx, query, delta, postID); err != nil {
		return fmt.Errorf("increment %s: %w", column, err)
	}
	return nil
}

// aliased prefixes each column in a comma-separated list with "p.".
func aliased(columns string) string {
	out := ""
	for i, c := range splitColumns(columns) {
		if i > 0 {
			out += ", "
		}
		out += "p." + c
	}
	return out
}

func splitColumns(columns string) []string {
	var cols []string
	current := ""
	for _, ch := range columns {
		switch ch {
		case ',':
			cols = append(cols, current)
			current = ""
		case ' ', '\n', '\t':
			// skip whitespace between names
		default:
			current += string(ch)
		}
	}
	if current != "" {
		cols = append(cols, current)
	}
	return cols
}
