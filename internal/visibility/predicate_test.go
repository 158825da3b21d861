package visibility

import (
	"context"
	"testing"
	"time"

	"quill/internal/model"
)

func actor(id int64) *model.Actor {
	return &model.Actor{ID: id, Username: "a", URI: "https://example.com/a"}
}

func post(author int64, vis model.Visibility) *model.Post {
	return &model.Post{ID: 100, AuthorID: author, Visibility: vis, PublishedAt: time.Now()}
}

func TestVisible_PublicAndUnlisted(t *testing.T) {
	for _, vis := range []model.Visibility{model.VisibilityPublic, model.VisibilityUnlisted} {
		p := post(1, vis)
		if !Visible(p, nil, model.Relationship{}) {
			t.Errorf("%s post should be visible to anonymous viewer", vis)
		}
		if !Visible(p, actor(2), model.Relationship{}) {
			t.Errorf("%s post should be visible to unrelated viewer", vis)
		}
	}
}

func TestVisible_BlockSymmetry(t *testing.T) {
	// A block in either direction hides the post regardless of level.
	levels := []model.Visibility{
		model.VisibilityPublic, model.VisibilityUnlisted,
		model.VisibilityFollowers, model.VisibilityDirect,
	}
	rels := []model.Relationship{
		{Blocking: true, Following: true},
		{BlockedBy: true, Following: true},
	}
	for _, vis := range levels {
		p := post(1, vis)
		p.MentionIDs = []int64{2}
		for _, rel := range rels {
			if Visible(p, actor(2), rel) {
				t.Errorf("%s post visible through block %+v", vis, rel)
			}
		}
	}
}

func TestVisible_Followers(t *testing.T) {
	p := post(1, model.VisibilityFollowers)

	if Visible(p, nil, model.Relationship{}) {
		t.Error("followers post visible to anonymous viewer")
	}
	if Visible(p, actor(2), model.Relationship{}) {
		t.Error("followers post visible to non-follower")
	}
	if !Visible(p, actor(2), model.Relationship{Following: true}) {
		t.Error("followers post hidden from accepted follower")
	}
	if !Visible(p, actor(1), model.Relationship{}) {
		t.Error("followers post hidden from its author")
	}
	// FollowedBy is not enough: the edge must run viewer -> author.
	if Visible(p, actor(2), model.Relationship{FollowedBy: true}) {
		t.Error("followers post visible through the reverse follow edge")
	}
}

func TestVisible_Direct(t *testing.T) {
	p := post(1, model.VisibilityDirect)
	p.MentionIDs = []int64{3}

	if Visible(p, nil, model.Relationship{}) {
		t.Error("direct post visible to anonymous viewer")
	}
	if Visible(p, actor(2), model.Relationship{Following: true}) {
		t.Error("direct post visible to a follower who is not mentioned")
	}
	if !Visible(p, actor(3), model.Relationship{}) {
		t.Error("direct post hidden from mentioned actor")
	}
	if !Visible(p, actor(1), model.Relationship{}) {
		t.Error("direct post hidden from its author")
	}
}

func TestVisible_UnknownLevelFailsClosed(t *testing.T) {
	p := post(1, model.Visibility("circl"))
	p.MentionIDs = []int64{3}

	if Visible(p, actor(2), model.Relationship{Following: true}) {
		t.Error("unknown level should behave as direct, not followers")
	}
	if !Visible(p, actor(3), model.Relationship{}) {
		t.Error("unknown level should still admit mentioned actors")
	}
	if Visible(p, nil, model.Relationship{}) {
		t.Error("unknown level visible to anonymous viewer")
	}
}

func TestVisible_TotalOnNilAndDeleted(t *testing.T) {
	if Visible(nil, actor(1), model.Relationship{}) {
		t.Error("nil post should be invisible, not panic")
	}
	now := time.Now()
	p := post(1, model.VisibilityPublic)
	p.DeletedAt = &now
	if Visible(p, actor(1), model.Relationship{}) {
		t.Error("deleted post visible to author")
	}
}

// mockSource is a function-field mock of RelationshipSource.
type mockSource struct {
	getFn func(ctx context.Context, viewerID, targetID int64) (model.Relationship, error)
	calls int
}

func (m *mockSource) Get(ctx context.Context, viewerID, targetID int64) (model.Relationship, error) {
	m.calls++
	if m.getFn != nil {
		return m.getFn(ctx, viewerID, targetID)
	}
	return model.Relationship{}, nil
}

func (m *mockSource) GetMany(ctx context.Context, viewerID int64, targetIDs []int64) (map[int64]model.Relationship, error) {
	out := make(map[int64]model.Relationship, len(targetIDs))
	for _, id := range targetIDs {
		rel, err := m.Get(ctx, viewerID, id)
		if err != nil {
			return nil, err
		}
		out[id] = rel
	}
	return out, nil
}

func TestCheck_ShareInnerPostIndependent(t *testing.T) {
	// Author 2 shares author 3's post. The viewer has blocked author 3:
	// the wrapper passes its own check but the inner post must not.
	src := &mockSource{
		getFn: func(ctx context.Context, viewerID, targetID int64) (model.Relationship, error) {
			if targetID == 3 {
				return model.Relationship{Blocking: true}, nil
			}
			return model.Relationship{}, nil
		},
	}
	o := NewOracle(src, 5)

	inner := post(3, model.VisibilityPublic)
	wrapper := post(2, model.VisibilityPublic)
	wrapper.SharedPostID = &inner.ID
	wrapper.Shared = inner

	ok, err := Check(context.Background(), o, wrapper, actor(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("share of a blocked author's post should be invisible")
	}
}

func TestCheck_ShareInnerVisibilityIndependent(t *testing.T) {
	// A public share wrapping a followers-only post: the inner level wins
	// for a non-follower.
	src := &mockSource{}
	o := NewOracle(src, 5)

	inner := post(3, model.VisibilityFollowers)
	wrapper := post(2, model.VisibilityPublic)
	wrapper.SharedPostID = &inner.ID
	wrapper.Shared = inner

	ok, err := Check(context.Background(), o, wrapper, actor(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("share wrapper must not widen the inner post's audience")
	}
}

func TestCheck_UnhydratedShareFailsClosed(t *testing.T) {
	src := &mockSource{}
	o := NewOracle(src, 5)

	innerID := int64(42)
	wrapper := post(2, model.VisibilityPublic)
	wrapper.SharedPostID = &innerID // Shared not loaded

	ok, err := Check(context.Background(), o, wrapper, actor(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("share wrapper without hydrated inner post must fail closed")
	}
}

func TestOracle_Memoizes(t *testing.T) {
	src := &mockSource{}
	o := NewOracle(src, 5)

	for i := 0; i < 4; i++ {
		if _, err := o.Relationship(context.Background(), 9); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if src.calls != 1 {
		t.Errorf("store hit %d times for one target, want 1", src.calls)
	}

	// Self and anonymous lookups never touch the store.
	if _, err := o.Relationship(context.Background(), 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	anon := NewOracle(src, 0)
	if _, err := anon.Relationship(context.Background(), 9); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.calls != 1 {
		t.Errorf("self/anonymous lookups hit the store: calls=%d", src.calls)
	}
}
