package optimistic

import (
	"fmt"
	"reflect"
	"sync"
)

// PostRecord is the normalized per-post record: engagement counters, the
// viewer's share flag, and links to the per-emoji reaction-group records.
type PostRecord struct {
	ID    int64
	Inert bool // soft-deleted

	Replies int
	Shares  int
	Quotes  int

	ViewerShared bool

	// GroupIDs links the post to its reaction-group records so created
	// groups stay discoverable and disposable.
	GroupIDs []string
}

// GroupRecord is the normalized per-(post, emoji) reaction aggregate.
type GroupRecord struct {
	ID            string
	PostID        int64
	Emoji         string
	Count         int
	ViewerReacted bool
}

// GroupID derives the arena key of a reaction group.
func GroupID(postID int64, emoji string) string {
	return fmt.Sprintf("%d/%s", postID, emoji)
}

// Cache is an arena of records by id. Mutations go through narrow per-field
// methods, never whole-record replaces, so concurrent mutations on different
// keys of the same post compose without clobbering each other.
type Cache struct {
	mu     sync.Mutex
	posts  map[int64]*PostRecord
	groups map[string]*GroupRecord
	lists  map[string][]int64
}

func NewCache() *Cache {
	return &Cache{
		posts:  make(map[int64]*PostRecord),
		groups: make(map[string]*GroupRecord),
		lists:  make(map[string][]int64),
	}
}

// PutPost stores or replaces a post record from server-authoritative data.
func (c *Cache) PutPost(p PostRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := p
	cp.GroupIDs = append([]string(nil), p.GroupIDs...)
	c.posts[p.ID] = &cp
}

// PutGroup stores or replaces a reaction-group record and links it to its
// post.
func (c *Cache) PutGroup(g GroupRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := g
	if cp.ID == "" {
		cp.ID = GroupID(g.PostID, g.Emoji)
	}
	c.groups[cp.ID] = &cp
	c.linkGroupLocked(cp.PostID, cp.ID)
}

// PutList stores a named ordered list of post ids (a timeline connection).
func (c *Cache) PutList(id string, postIDs []int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists[id] = append([]int64(nil), postIDs...)
}

// Post returns a copy of the post record.
func (c *Cache) Post(id int64) (PostRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.posts[id]
	if !ok {
		return PostRecord{}, false
	}
	cp := *p
	cp.GroupIDs = append([]string(nil), p.GroupIDs...)
	return cp, true
}

// Group returns a copy of the reaction-group record for (post, emoji).
func (c *Cache) Group(postID int64, emoji string) (GroupRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.groups[GroupID(postID, emoji)]
	if !ok {
		return GroupRecord{}, false
	}
	return *g, true
}

// List returns a copy of a named list.
func (c *Cache) List(id string) ([]int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids, ok := c.lists[id]
	if !ok {
		return nil, false
	}
	return append([]int64(nil), ids...), true
}

func (c *Cache) linkGroupLocked(postID int64, groupID string) {
	p, ok := c.posts[postID]
	if !ok {
		return
	}
	for _, id := range p.GroupIDs {
		if id == groupID {
			return
		}
	}
	p.GroupIDs = append(p.GroupIDs, groupID)
}

// ensureGroup returns the live group record for (post, emoji), creating and
// linking an empty one if absent. Reports whether it created the record, so
// a rollback can dispose of exactly what the edit introduced.
func (c *Cache) ensureGroup(postID int64, emoji string) (g *GroupRecord, created bool) {
	id := GroupID(postID, emoji)
	if g, ok := c.groups[id]; ok {
		return g, false
	}
	g = &GroupRecord{ID: id, PostID: postID, Emoji: emoji}
	c.groups[id] = g
	c.linkGroupLocked(postID, id)
	return g, true
}

// disposeGroup removes a group record and its link from the post.
func (c *Cache) disposeGroup(postID int64, groupID string) {
	delete(c.groups, groupID)
	p, ok := c.posts[postID]
	if !ok {
		return
	}
	for i, id := range p.GroupIDs {
		if id == groupID {
			p.GroupIDs = append(p.GroupIDs[:i], p.GroupIDs[i+1:]...)
			return
		}
	}
}

// removeFromList drops a post id from one named list, leaving unknown lists
// alone. Returns the previous list contents for exact restoration.
func (c *Cache) removeFromList(listID string, postID int64) (prev []int64, changed bool) {
	ids, ok := c.lists[listID]
	if !ok {
		return nil, false
	}
	prev = append([]int64(nil), ids...)
	out := ids[:0]
	for _, id := range ids {
		if id != postID {
			out = append(out, id)
		}
	}
	if len(out) == len(prev) {
		return prev, false
	}
	c.lists[listID] = out
	return prev, true
}

// Snapshot deep-copies the whole arena. Tests use it to state the rollback
// law: apply+rollback leaves the cache Equal to its snapshot.
func (c *Cache) Snapshot() *Cache {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := NewCache()
	for id, p := range c.posts {
		cp := *p
		cp.GroupIDs = append([]string(nil), p.GroupIDs...)
		s.posts[id] = &cp
	}
	for id, g := range c.groups {
		cg := *g
		s.groups[id] = &cg
	}
	for id, ids := range c.lists {
		s.lists[id] = append([]int64(nil), ids...)
	}
	return s
}

// Equal reports whether two caches hold identical records.
func (c *Cache) Equal(other *Cache) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	other.mu.Lock()
	defer other.mu.Unlock()

	if len(c.posts) != len(other.posts) || len(c.groups) != len(other.groups) || len(c.lists) != len(other.lists) {
		return false
	}
	for id, p := range c.posts {
		q, ok := other.posts[id]
		if !ok || !reflect.DeepEqual(*p, *q) {
			return false
		}
	}
	for id, g := range c.groups {
		h, ok := other.groups[id]
		if !ok || !reflect.DeepEqual(*g, *h) {
			return false
		}
	}
	for id, ids := range c.lists {
		if !reflect.DeepEqual(ids, other.lists[id]) {
			return false
		}
	}
	return true
}
