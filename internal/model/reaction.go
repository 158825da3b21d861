package model

import (
	"errors"
	"strings"
	"time"
)

// Reaction is one actor's reaction of one emoji kind on one post.
// At most one live row exists per (actor, post, emoji) key.
type Reaction struct {
	ID        int64     `db:"id" json:"id"`
	PostID    int64     `db:"post_id" json:"post_id"`
	ActorID   int64     `db:"actor_id" json:"actor_id"`
	Emoji     string    `db:"emoji" json:"emoji"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ReactionGroup aggregates all reactions of one emoji kind on one post.
type ReactionGroup struct {
	PostID        int64  `db:"post_id" json:"-"`
	Emoji         string `db:"emoji" json:"emoji"`
	Count         int    `db:"count" json:"count"`
	ViewerReacted bool   `db:"viewer_reacted" json:"viewer_reacted"`
}

// CustomEmojiName reports whether the emoji is a custom-emoji shortcode
// (":blobcat:" style) rather than a unicode emoji.
func CustomEmojiName(emoji string) bool {
	return len(emoji) > 2 && strings.HasPrefix(emoji, ":") && strings.HasSuffix(emoji, ":")
}

// Reaction limits
const (
	MaxEmojiLength = 64
)

// Reaction errors
var (
	ErrReactionNotFound = errors.New("reaction not found")
	ErrInvalidEmoji     = errors.New("invalid emoji")
)
