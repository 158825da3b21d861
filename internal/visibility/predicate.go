// Package visibility decides, for any viewer and any post, whether the post
// may be shown. The predicate is pure and total; the oracle supplies the
// relationship data it runs over; the filter pushes the same rules into SQL
// so the store never pages over invisible rows.
package visibility

import (
	"context"

	"quill/internal/model"
)

// Visible is the pure predicate: may viewer see post, given the viewer's
// relationship snapshot against the post's author? viewer may be nil
// (anonymous). It is total: nil and malformed input yield false, never a
// panic.
//
// Rules:
//   - deleted posts are never visible;
//   - the author always sees their own post;
//   - a block in either direction hides the post regardless of level;
//   - public and unlisted are visible to everyone, anonymous included;
//   - followers requires an accepted follow edge;
//   - direct requires presence in the mention list;
//   - unknown levels fail closed to direct.
func Visible(post *model.Post, viewer *model.Actor, rel model.Relationship) bool {
	if post == nil || post.Deleted() {
		return false
	}

	level := model.ParseVisibility(string(post.Visibility))

	if viewer == nil {
		return level == model.VisibilityPublic || level == model.VisibilityUnlisted
	}
	if viewer.ID == post.AuthorID {
		return true
	}
	if rel.Blocked() {
		return false
	}

	switch level {
	case model.VisibilityPublic, model.VisibilityUnlisted:
		return true
	case model.VisibilityFollowers:
		return rel.Following
	default: // direct, and anything unknown
		return post.Mentions(viewer.ID)
	}
}

// Check evaluates the predicate with relationship data from the oracle,
// descending into share wrappers: the inner post obeys its own visibility
// and block state independently of the wrapper's. A share wrapper whose
// inner post was not hydrated fails closed.
func Check(ctx context.Context, o *Oracle, post *model.Post, viewer *model.Actor) (bool, error) {
	if post == nil {
		return false, nil
	}

	rel := model.Relationship{}
	if viewer != nil && viewer.ID != post.AuthorID {
		var err error
		rel, err = o.Relationship(ctx, post.AuthorID)
		if err != nil {
			return false, err
		}
	}
	if !Visible(post, viewer, rel) {
		return false, nil
	}

	if post.IsShare() {
		if post.Shared == nil {
			return false, nil
		}
		return Check(ctx, o, post.Shared, viewer)
	}
	return true, nil
}
