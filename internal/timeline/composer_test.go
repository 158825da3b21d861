package timeline

import (
	"context"
	"testing"
	"time"

	"quill/internal/model"
)

// memorySource is a function-field mock of visibility.RelationshipSource.
type memorySource struct {
	rels map[int64]model.Relationship // keyed by target actor id
}

func (m *memorySource) Get(ctx context.Context, viewerID, targetID int64) (model.Relationship, error) {
	return m.rels[targetID], nil
}

func (m *memorySource) GetMany(ctx context.Context, viewerID int64, targetIDs []int64) (map[int64]model.Relationship, error) {
	out := make(map[int64]model.Relationship, len(targetIDs))
	for _, id := range targetIDs {
		out[id] = m.rels[id]
	}
	return out, nil
}

func makePosts(n int, author int64) []model.Post {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	posts := make([]model.Post, n)
	for i := 0; i < n; i++ {
		posts[i] = model.Post{
			ID:          int64(i + 1),
			AuthorID:    author,
			Visibility:  model.VisibilityPublic,
			PublishedAt: base.Add(-time.Duration(i) * time.Minute), // newest first
		}
	}
	return posts
}

// storeFetch builds a FetchFunc over an in-memory newest-first slice with the
// same (published_at, id) tuple semantics as the repository window queries.
func storeFetch(posts []model.Post) FetchFunc {
	return func(ctx context.Context, before *Cursor, limit int) ([]model.Post, error) {
		var out []model.Post
		for i := range posts {
			if before != nil && !before.Admits(&posts[i]) {
				continue
			}
			out = append(out, posts[i])
			if len(out) == limit {
				break
			}
		}
		return out, nil
	}
}

func TestPage_PaginationLaw(t *testing.T) {
	// 45 visible posts, window 20: exactly pages of 20, 20, 5, no item
	// repeated or skipped.
	posts := makePosts(45, 1)
	composer := NewComposer(&memorySource{})
	fetch := storeFetch(posts)

	seen := make(map[int64]bool)
	var cur *Cursor
	sizes := []int{}

	for page := 0; page < 10; page++ {
		p, err := composer.Page(context.Background(), nil, cur, 20, fetch)
		if err != nil {
			t.Fatalf("page %d: %v", page, err)
		}
		sizes = append(sizes, len(p.Items))
		for _, item := range p.Items {
			if seen[item.Post.ID] {
				t.Fatalf("post %d repeated across pages", item.Post.ID)
			}
			seen[item.Post.ID] = true
		}
		if !p.HasMore {
			break
		}
		if p.NextCursor == nil {
			t.Fatal("HasMore with nil cursor")
		}
		// Round-trip through the opaque token like a real client.
		decoded, err := DecodeCursor(p.NextCursor.Encode())
		if err != nil {
			t.Fatalf("cursor round trip: %v", err)
		}
		cur = decoded
	}

	if len(sizes) != 3 || sizes[0] != 20 || sizes[1] != 20 || sizes[2] != 5 {
		t.Fatalf("page sizes = %v, want [20 20 5]", sizes)
	}
	if len(seen) != 45 {
		t.Fatalf("saw %d distinct posts, want 45 (skips)", len(seen))
	}
}

func TestPage_EqualTimestampBoundary(t *testing.T) {
	// Several posts published in the same instant straddling a page
	// boundary: the cursor's (timestamp, id) key must admit the same-time
	// rows onto the next page instead of skipping them.
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	posts := make([]model.Post, 5)
	for i := range posts {
		posts[i] = model.Post{
			ID:          int64(5 - i), // newest-first means id descending at a shared timestamp
			AuthorID:    1,
			Visibility:  model.VisibilityPublic,
			PublishedAt: at,
		}
	}
	composer := NewComposer(&memorySource{})
	fetch := storeFetch(posts)

	seen := make(map[int64]bool)
	var cur *Cursor
	for page := 0; page < 5; page++ {
		p, err := composer.Page(context.Background(), nil, cur, 2, fetch)
		if err != nil {
			t.Fatalf("page %d: %v", page, err)
		}
		for _, item := range p.Items {
			if seen[item.Post.ID] {
				t.Fatalf("post %d repeated across pages", item.Post.ID)
			}
			seen[item.Post.ID] = true
		}
		if !p.HasMore {
			break
		}
		decoded, err := DecodeCursor(p.NextCursor.Encode())
		if err != nil {
			t.Fatalf("cursor round trip: %v", err)
		}
		cur = decoded
	}

	if len(seen) != 5 {
		t.Fatalf("saw %d of 5 same-timestamp posts (boundary rows skipped)", len(seen))
	}
}

func TestCursor_AdmitsTupleOrder(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cur := Cursor{TS: at, ID: 10}

	older := model.Post{ID: 99, PublishedAt: at.Add(-time.Second)}
	sameTimeLowerID := model.Post{ID: 9, PublishedAt: at}
	self := model.Post{ID: 10, PublishedAt: at}
	sameTimeHigherID := model.Post{ID: 11, PublishedAt: at}
	newer := model.Post{ID: 1, PublishedAt: at.Add(time.Second)}

	if !cur.Admits(&older) || !cur.Admits(&sameTimeLowerID) {
		t.Error("rows below the cursor key must be admitted")
	}
	if cur.Admits(&self) || cur.Admits(&sameTimeHigherID) || cur.Admits(&newer) {
		t.Error("rows at or above the cursor key must be excluded")
	}
}

func TestPage_FullLastPageHasNoMore(t *testing.T) {
	// Exactly one full window: the probe row is absent, so HasMore must be
	// false even though the page is full.
	posts := makePosts(20, 1)
	composer := NewComposer(&memorySource{})

	p, err := composer.Page(context.Background(), nil, nil, 20, storeFetch(posts))
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(p.Items) != 20 {
		t.Fatalf("items = %d, want 20", len(p.Items))
	}
	if p.HasMore || p.NextCursor != nil {
		t.Error("full page without a probe row must not claim more data")
	}
}

func TestPage_BlockedAuthorExcludedFromWindow(t *testing.T) {
	// Viewer blocked author 2: author 2's public posts never count toward
	// the window, and the window still fills from author 1.
	var posts []model.Post
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		author := int64(1)
		if i%2 == 0 {
			author = 2
		}
		posts = append(posts, model.Post{
			ID:          int64(i + 1),
			AuthorID:    author,
			Visibility:  model.VisibilityPublic,
			PublishedAt: base.Add(-time.Duration(i) * time.Minute),
		})
	}
	source := &memorySource{rels: map[int64]model.Relationship{
		2: {Blocking: true},
	}}
	composer := NewComposer(source)
	viewer := &model.Actor{ID: 9}

	p, err := composer.Page(context.Background(), viewer, nil, 10, storeFetch(posts))
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(p.Items) != 10 {
		t.Fatalf("items = %d, want a full window of 10", len(p.Items))
	}
	for _, item := range p.Items {
		if item.Post.AuthorID == 2 {
			t.Fatalf("blocked author's post %d surfaced", item.Post.ID)
		}
	}
}

func TestPage_SharesCollapse(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	original := model.Post{ID: 100, AuthorID: 5, Visibility: model.VisibilityPublic, PublishedAt: base.Add(-time.Hour)}

	share := func(id, author int64, age time.Duration) model.Post {
		sharedID := original.ID
		inner := original
		return model.Post{
			ID: id, AuthorID: author, Visibility: model.VisibilityPublic,
			SharedPostID: &sharedID, Shared: &inner,
			PublishedAt: base.Add(-age),
		}
	}

	posts := []model.Post{
		share(1, 2, 1*time.Minute), // newest share: surfaces
		{ID: 2, AuthorID: 3, Visibility: model.VisibilityPublic, PublishedAt: base.Add(-2 * time.Minute)},
		share(3, 4, 3*time.Minute), // collapsed
		share(4, 6, 4*time.Minute), // collapsed
	}
	composer := NewComposer(&memorySource{})

	p, err := composer.Page(context.Background(), nil, nil, 10, storeFetch(posts))
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(p.Items) != 2 {
		t.Fatalf("items = %d, want 2 (shares collapsed)", len(p.Items))
	}
	if p.Items[0].Post.ID != 1 {
		t.Errorf("surviving share = %d, want the most recent (1)", p.Items[0].Post.ID)
	}
	if p.Items[0].OtherSharers != 2 {
		t.Errorf("OtherSharers = %d, want 2", p.Items[0].OtherSharers)
	}
}

func TestPage_ShareOfBlockedInnerAuthorHidden(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	innerID := int64(100)
	inner := model.Post{ID: innerID, AuthorID: 7, Visibility: model.VisibilityPublic, PublishedAt: base.Add(-time.Hour)}
	posts := []model.Post{{
		ID: 1, AuthorID: 2, Visibility: model.VisibilityPublic,
		SharedPostID: &innerID, Shared: &inner,
		PublishedAt: base,
	}}
	source := &memorySource{rels: map[int64]model.Relationship{
		7: {BlockedBy: true}, // inner author blocked the viewer
	}}
	composer := NewComposer(source)

	p, err := composer.Page(context.Background(), &model.Actor{ID: 9}, nil, 10, storeFetch(posts))
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(p.Items) != 0 {
		t.Fatal("share of a post whose author blocked the viewer surfaced")
	}
}

func TestProfilePage_PinnedLeadFirstPageOnly(t *testing.T) {
	posts := makePosts(25, 1)
	pinned := []model.Post{
		{ID: 900, AuthorID: 1, Visibility: model.VisibilityPublic, Pinned: true,
			PublishedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	composer := NewComposer(&memorySource{})
	fetch := storeFetch(posts)

	first, err := composer.ProfilePage(context.Background(), nil, pinned, nil, 20, fetch)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	// 1 pinned lead + full window of 20: pinned is outside the count.
	if len(first.Items) != 21 {
		t.Fatalf("first page items = %d, want 21", len(first.Items))
	}
	if !first.Items[0].Pinned || first.Items[0].Post.ID != 900 {
		t.Error("pinned post not leading the first page")
	}
	if !first.HasMore {
		t.Fatal("expected a second page")
	}

	second, err := composer.ProfilePage(context.Background(), nil, pinned, first.NextCursor, 20, fetch)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	for _, item := range second.Items {
		if item.Pinned {
			t.Error("pinned post repeated on a cursored page")
		}
	}
	if len(second.Items) != 5 {
		t.Errorf("second page items = %d, want 5", len(second.Items))
	}
}

func TestDecodeCursor_Garbage(t *testing.T) {
	for _, token := range []string{"", "not-base64!!", "aGVsbG8", "MTI6YWJj"} {
		if _, err := DecodeCursor(token); err == nil {
			t.Errorf("DecodeCursor(%q) accepted garbage", token)
		}
	}
}

func TestCursor_RoundTrip(t *testing.T) {
	c := Cursor{TS: time.Date(2025, 6, 1, 12, 30, 15, 123456000, time.UTC), ID: 42}
	got, err := DecodeCursor(c.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != c.ID || !got.TS.Equal(c.TS) {
		t.Fatalf("round trip = %+v, want %+v", got, c)
	}
}
