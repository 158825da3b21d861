package model

import (
	"errors"
	"time"
)

// Visibility is the audience level attached to a post.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityUnlisted  Visibility = "unlisted"
	VisibilityFollowers Visibility = "followers"
	VisibilityDirect    Visibility = "direct"
)

// ParseVisibility maps a raw level to a known one. Unknown or malformed
// levels fail closed to direct, the most restrictive audience.
func ParseVisibility(s string) Visibility {
	switch Visibility(s) {
	case VisibilityPublic, VisibilityUnlisted, VisibilityFollowers, VisibilityDirect:
		return Visibility(s)
	default:
		return VisibilityDirect
	}
}

// Post kinds.
const (
	PostKindNote    = "note"
	PostKindArticle = "article"
)

// Post is authored content: a note, an article, or a share/quote wrapper.
// Exactly one of Content (plus Contents for articles) or SharedPostID is
// authoritative for display; a share inherits the shared post's content but
// carries its own id and visibility.
type Post struct {
	ID           int64      `db:"id" json:"id"`
	URI          string     `db:"uri" json:"uri"`
	AuthorID     int64      `db:"author_id" json:"author_id"`
	Kind         string     `db:"kind" json:"kind"`
	Visibility   Visibility `db:"visibility" json:"visibility"`
	Content      *string    `db:"content" json:"content,omitempty"`
	Language     *string    `db:"language" json:"language,omitempty"`
	InReplyToID  *int64     `db:"in_reply_to_id" json:"in_reply_to_id,omitempty"`
	QuotedPostID *int64     `db:"quoted_post_id" json:"quoted_post_id,omitempty"`
	SharedPostID *int64     `db:"shared_post_id" json:"shared_post_id,omitempty"`
	Pinned       bool       `db:"pinned" json:"pinned"`
	PublishedAt  time.Time  `db:"published_at" json:"published_at"`
	DeletedAt    *time.Time `db:"deleted_at" json:"-"`

	// Derived aggregate counters (maintained transactionally with the
	// child rows they summarize, see repository).
	ReplyCount    int `db:"reply_count" json:"reply_count"`
	ShareCount    int `db:"share_count" json:"share_count"`
	QuoteCount    int `db:"quote_count" json:"quote_count"`
	ReactionCount int `db:"reaction_count" json:"reaction_count"`

	// Joined fields (not in posts table)
	Author     *ActorSummary `json:"author,omitempty"`
	MentionIDs []int64       `json:"mention_ids,omitempty"`
	Contents   []PostContent `json:"contents,omitempty"` // article translations
	Shared     *Post         `json:"shared,omitempty"`   // inner post when this is a share
	Quoted     *Post         `json:"quoted,omitempty"`
}

// Deleted reports whether the post has been soft-deleted. Deleted posts keep
// their id for thread integrity but are inert everywhere else.
func (p *Post) Deleted() bool {
	return p.DeletedAt != nil
}

// IsShare reports whether the post is a share wrapper around another post.
func (p *Post) IsShare() bool {
	return p.SharedPostID != nil
}

// Mentions reports whether the given actor appears in the post's mention list.
func (p *Post) Mentions(actorID int64) bool {
	for _, id := range p.MentionIDs {
		if id == actorID {
			return true
		}
	}
	return false
}

// PostContent is one language rendition of an article body.
type PostContent struct {
	PostID   int64  `db:"post_id" json:"-"`
	Language string `db:"language" json:"language"`
	Body     string `db:"body" json:"body"`
}

// DisplayContent resolves the body to render for the given ordered language
// preferences. The fallback list is evaluated once, in declared priority:
// first preferred language with a rendition, then the post's original
// language rendition, then the post's plain content field.
func (p *Post) DisplayContent(langPrefs []string) string {
	for _, lang := range langPrefs {
		for _, c := range p.Contents {
			if c.Language == lang {
				return c.Body
			}
		}
	}
	if p.Language != nil {
		for _, c := range p.Contents {
			if c.Language == *p.Language {
				return c.Body
			}
		}
	}
	if p.Content != nil {
		return *p.Content
	}
	return ""
}

// CreatePostRequest is the request body for composing a post.
type CreatePostRequest struct {
	Kind        string        `json:"kind"` // note (default) or article
	Content     *string       `json:"content"`
	Language    *string       `json:"language"`
	Contents    []PostContent `json:"contents,omitempty"`
	Visibility  string        `json:"visibility"`
	InReplyToID *int64        `json:"in_reply_to_id"`
	QuotedID    *int64        `json:"quoted_post_id"`
	MentionIDs  []int64       `json:"mention_ids"`
}

// Post limits
const (
	MaxPostContentLength = 5000
	MaxMentionCount      = 50
)

// Post errors
var (
	ErrPostNotFound     = errors.New("post not found")
	ErrNotPostAuthor    = errors.New("not the author of this post")
	ErrEmptyContent     = errors.New("post content is required")
	ErrContentTooLong   = errors.New("post content too long")
	ErrTooManyMentions  = errors.New("too many mentions")
	ErrAlreadyShared    = errors.New("post already shared")
	ErrNotShared        = errors.New("post not shared")
	ErrCannotShareLevel = errors.New("followers and direct posts cannot be shared")
)
