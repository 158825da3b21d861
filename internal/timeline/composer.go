// Package timeline assembles ordered, paginated post lists for a viewer:
// profile feeds, the home timeline, reply threads, and quote lists. The
// visibility predicate runs before anything counts toward a page window, and
// duplicate shares of the same original collapse into the newest one.
package timeline

import (
	"context"

	"github.com/samber/lo"

	"quill/internal/model"
	"quill/internal/visibility"
)

// FetchFunc returns up to limit candidate posts whose (published_at, id)
// ordering key is strictly below before, newest first. Comparing the full
// key, not just the timestamp, keeps rows that share the boundary row's
// timestamp from being skipped. The store is expected to have the viewer's
// visibility filter pushed down already; the composer re-checks each row
// anyway, because the pushdown cannot see inside share wrappers.
type FetchFunc func(ctx context.Context, before *Cursor, limit int) ([]model.Post, error)

// Item is one composed timeline entry.
type Item struct {
	Post model.Post

	// OtherSharers counts additional viewer-visible shares of the same
	// original that were collapsed into this entry within the window.
	OtherSharers int

	// Pinned marks entries surfaced ahead of the chronological window.
	Pinned bool
}

// Page is one composed timeline window.
type Page struct {
	Items      []Item
	NextCursor *Cursor
	HasMore    bool
}

// Composer builds timeline pages. It is stateless across requests; each page
// gets a fresh relationship oracle.
type Composer struct {
	source visibility.RelationshipSource
}

func NewComposer(source visibility.RelationshipSource) *Composer {
	return &Composer{source: source}
}

// Page assembles one window. It over-fetches window+1 visible rows: a full
// window alone never proves more data exists, only the probe row does. The
// next cursor is derived from the last returned row; the probe row is
// discarded.
func (c *Composer) Page(ctx context.Context, viewer *model.Actor, cur *Cursor, window int, fetch FetchFunc) (*Page, error) {
	oracle := visibility.NewOracle(c.source, viewerID(viewer))

	before := cur

	items := make([]Item, 0, window+1)
	seenShares := make(map[int64]int)

	for len(items) < window+1 {
		need := window + 1 - len(items)
		batch, err := fetch(ctx, before, need)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		if err := c.primeOracle(ctx, oracle, batch); err != nil {
			return nil, err
		}

		for i := range batch {
			post := batch[i]
			ok, err := visibility.Check(ctx, oracle, &post, viewer)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			if post.IsShare() {
				if idx, dup := seenShares[*post.SharedPostID]; dup {
					items[idx].OtherSharers++
					continue
				}
				seenShares[*post.SharedPostID] = len(items)
			}
			items = append(items, Item{Post: post})
		}

		if len(batch) < need {
			break // store exhausted
		}
		last := batch[len(batch)-1]
		before = &Cursor{TS: last.PublishedAt, ID: last.ID}
	}

	page := &Page{Items: items}
	if len(items) > window {
		page.Items = items[:window]
		page.HasMore = true
		lastItem := page.Items[window-1]
		page.NextCursor = &Cursor{TS: lastItem.Post.PublishedAt, ID: lastItem.Post.ID}
	}
	return page, nil
}

// ProfilePage assembles a profile window. Pinned posts lead the page when no
// cursor is active and are excluded from the regular window's count.
func (c *Composer) ProfilePage(ctx context.Context, viewer *model.Actor, pinned []model.Post, cur *Cursor, window int, fetch FetchFunc) (*Page, error) {
	page, err := c.Page(ctx, viewer, cur, window, fetch)
	if err != nil {
		return nil, err
	}
	if cur != nil || len(pinned) == 0 {
		return page, nil
	}

	oracle := visibility.NewOracle(c.source, viewerID(viewer))
	if err := c.primeOracle(ctx, oracle, pinned); err != nil {
		return nil, err
	}

	lead := make([]Item, 0, len(pinned))
	for i := range pinned {
		post := pinned[i]
		ok, err := visibility.Check(ctx, oracle, &post, viewer)
		if err != nil {
			return nil, err
		}
		if ok {
			lead = append(lead, Item{Post: post, Pinned: true})
		}
	}
	page.Items = append(lead, page.Items...)
	return page, nil
}

// Collapse filters and collapses an already-fetched candidate list without
// paginating. The home timeline path uses it on rows hydrated from the cache.
func (c *Composer) Collapse(ctx context.Context, viewer *model.Actor, posts []model.Post) ([]Item, error) {
	oracle := visibility.NewOracle(c.source, viewerID(viewer))
	if err := c.primeOracle(ctx, oracle, posts); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(posts))
	seenShares := make(map[int64]int)
	for i := range posts {
		post := posts[i]
		ok, err := visibility.Check(ctx, oracle, &post, viewer)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if post.IsShare() {
			if idx, dup := seenShares[*post.SharedPostID]; dup {
				items[idx].OtherSharers++
				continue
			}
			seenShares[*post.SharedPostID] = len(items)
		}
		items = append(items, Item{Post: post})
	}
	return items, nil
}

// primeOracle batch-loads relationship snapshots for every author a batch
// can touch, inner shared/quoted authors included.
func (c *Composer) primeOracle(ctx context.Context, oracle *visibility.Oracle, posts []model.Post) error {
	authorIDs := make([]int64, 0, len(posts))
	for i := range posts {
		authorIDs = append(authorIDs, posts[i].AuthorID)
		if inner := posts[i].Shared; inner != nil {
			authorIDs = append(authorIDs, inner.AuthorID)
		}
		if inner := posts[i].Quoted; inner != nil {
			authorIDs = append(authorIDs, inner.AuthorID)
		}
	}
	return oracle.Load(ctx, lo.Uniq(authorIDs))
}

func viewerID(viewer *model.Actor) int64 {
	if viewer == nil {
		return 0
	}
	return viewer.ID
}
