package optimistic

import (
	"context"
	"log"

	"github.com/google/uuid"
)

// Edit is one applied optimistic edit plus its exact inverse. The inverse
// restores the precise field values the edit touched, and only those, so
// rolling back composes with edits on other keys that landed in between.
type Edit struct {
	ID     string
	Intent Intent
	Input  Input

	rollback []func(c *Cache)
}

// Mutator applies speculative edits to the cache for a mutation intent,
// fires the intent over the transport, and reconciles: confirmed edits stand
// as-is, rejected and failed ones are undone symmetrically and surfaced as a
// user notice. The net effect of apply+rollback is a no-op on the cache.
type Mutator struct {
	cache     *Cache
	transport Transport
	notifier  Notifier
}

func NewMutator(cache *Cache, transport Transport, notifier Notifier) *Mutator {
	return &Mutator{
		cache:     cache,
		transport: transport,
		notifier:  notifier,
	}
}

// Cache exposes the arena the mutator edits.
func (m *Mutator) Cache() *Cache {
	return m.cache
}

// Apply performs the local speculative edit for an intent and returns the
// pending edit carrying its inverse. It does not touch the network.
func (m *Mutator) Apply(intent Intent, input Input) (*Edit, error) {
	c := m.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	post, ok := c.posts[input.PostID]
	if !ok {
		return nil, ErrUnknownPost
	}

	edit := &Edit{
		ID:     uuid.NewString(),
		Intent: intent,
		Input:  input,
	}

	switch intent {
	case IntentReact:
		g, created := c.ensureGroup(input.PostID, input.Emoji)
		prevCount, prevViewer := g.Count, g.ViewerReacted
		g.Count++
		g.ViewerReacted = true
		edit.rollback = append(edit.rollback, func(c *Cache) {
			if created {
				c.disposeGroup(input.PostID, g.ID)
				return
			}
			if g, ok := c.groups[GroupID(input.PostID, input.Emoji)]; ok {
				g.Count = prevCount
				g.ViewerReacted = prevViewer
			}
		})

	case IntentUndoReact:
		g, created := c.ensureGroup(input.PostID, input.Emoji)
		prevCount, prevViewer := g.Count, g.ViewerReacted
		if g.Count > 0 {
			g.Count--
		}
		g.ViewerReacted = false
		edit.rollback = append(edit.rollback, func(c *Cache) {
			if created {
				c.disposeGroup(input.PostID, g.ID)
				return
			}
			if g, ok := c.groups[GroupID(input.PostID, input.Emoji)]; ok {
				g.Count = prevCount
				g.ViewerReacted = prevViewer
			}
		})

	case IntentShare:
		prevShares, prevFlag := post.Shares, post.ViewerShared
		post.ViewerShared = true
		post.Shares++
		// While the optimistic shared flag holds, the displayed count
		// must never read below 1.
		if post.Shares < 1 {
			post.Shares = 1
		}
		edit.rollback = append(edit.rollback, func(c *Cache) {
			if p, ok := c.posts[input.PostID]; ok {
				p.Shares = prevShares
				p.ViewerShared = prevFlag
			}
		})

	case IntentUnshare:
		prevShares, prevFlag := post.Shares, post.ViewerShared
		post.ViewerShared = false
		if post.Shares > 0 {
			post.Shares--
		}
		edit.rollback = append(edit.rollback, func(c *Cache) {
			if p, ok := c.posts[input.PostID]; ok {
				p.Shares = prevShares
				p.ViewerShared = prevFlag
			}
		})

	case IntentDeletePost:
		prevInert := post.Inert
		post.Inert = true
		edit.rollback = append(edit.rollback, func(c *Cache) {
			if p, ok := c.posts[input.PostID]; ok {
				p.Inert = prevInert
			}
		})
		// Only the lists the caller named; deletion never walks the
		// whole cache.
		for _, listID := range input.ListIDs {
			listID := listID
			prev, changed := c.removeFromList(listID, input.PostID)
			if changed {
				edit.rollback = append(edit.rollback, func(c *Cache) {
					c.lists[listID] = append([]int64(nil), prev...)
				})
			}
		}

	default:
		return nil, ErrUnknownIntent
	}

	return edit, nil
}

// Rollback undoes exactly the edit's own field changes, in reverse order.
func (m *Mutator) Rollback(edit *Edit) {
	c := m.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(edit.rollback) - 1; i >= 0; i-- {
		edit.rollback[i](c)
	}
}

// Resolve reconciles a pending edit with the server's answer. A confirmed
// result keeps the edit; a domain rejection or transport failure rolls it
// back and notifies the user. Returns ErrMutationFailed after a rollback.
func (m *Mutator) Resolve(edit *Edit, res Result, transportErr error) error {
	if transportErr != nil {
		m.Rollback(edit)
		log.Printf("[Mutator] %s FAILED (transport): edit=%s err=%v", edit.Intent, edit.ID, transportErr)
		m.notify(Notice{
			Intent:    edit.Intent,
			Message:   "Could not reach the server. Your change was undone; try again.",
			Retryable: true,
		})
		return ErrMutationFailed
	}
	if !res.OK {
		m.Rollback(edit)
		log.Printf("[Mutator] %s REJECTED: edit=%s domain=%s", edit.Intent, edit.ID, res.Domain)
		m.notify(Notice{
			Intent:    edit.Intent,
			Message:   domainMessage(res.Domain),
			Retryable: false,
		})
		return ErrMutationFailed
	}
	// Confirmed: the optimistic edit already matches the authoritative
	// state; nothing further to change.
	return nil
}

// Do is the full optimistic round trip: apply, send, reconcile.
func (m *Mutator) Do(ctx context.Context, intent Intent, input Input) error {
	edit, err := m.Apply(intent, input)
	if err != nil {
		return err
	}
	res, terr := m.transport.Send(ctx, intent, input)
	return m.Resolve(edit, res, terr)
}

func (m *Mutator) notify(n Notice) {
	if m.notifier != nil {
		m.notifier.Notify(n)
	}
}

func domainMessage(d DomainError) string {
	switch d {
	case DomainErrNotAuthenticated:
		return "You need to sign in to do that."
	case DomainErrInvalidInput:
		return "The server rejected that action."
	default:
		return "That action could not be completed."
	}
}
