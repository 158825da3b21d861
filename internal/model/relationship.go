package model

import "errors"

// Follow states. A follow to a locked or remote actor starts out pending and
// only an accepted edge grants access to followers-only posts.
const (
	FollowStatePending  = "pending"
	FollowStateAccepted = "accepted"
)

// Relationship is the viewer-side snapshot of the edges between two actors.
// It is computed per request and never persisted: it exists only to gate
// visibility decisions for the duration of one request/response cycle.
type Relationship struct {
	Blocking   bool `json:"blocking"`    // viewer blocks target
	BlockedBy  bool `json:"blocked_by"`  // target blocks viewer
	Following  bool `json:"following"`   // viewer has an accepted follow to target
	FollowedBy bool `json:"followed_by"` // target has an accepted follow to viewer
}

// Blocked reports whether either direction carries a block edge. A block in
// either direction hides content symmetrically.
func (r Relationship) Blocked() bool {
	return r.Blocking || r.BlockedBy
}

// Relationship errors
var (
	ErrCannotFollowSelf = errors.New("cannot follow yourself")
	ErrCannotBlockSelf  = errors.New("cannot block yourself")
	ErrNotFollowing     = errors.New("not following this actor")
	ErrNotBlocking      = errors.New("not blocking this actor")
	ErrActorBlocked     = errors.New("interaction blocked")
)
