package optimistic

import (
	"context"
	"sync"
)

// State is the lifecycle position of one (viewer, post, emoji) reaction key.
type State int

const (
	StateIdle     State = iota // no reaction
	StateReacting              // optimistic react, request in flight
	StateReacted               // confirmed
	StateUndoing               // optimistic undo, request in flight
)

func (s State) String() string {
	switch s {
	case StateReacting:
		return "reacting"
	case StateReacted:
		return "reacted"
	case StateUndoing:
		return "undoing"
	default:
		return "idle"
	}
}

// InFlight reports whether the state is transient: a request is pending and
// further mutations on the key are rejected until it settles.
func (s State) InFlight() bool {
	return s == StateReacting || s == StateUndoing
}

type reactionKey struct {
	postID int64
	emoji  string
}

// Reactor is the per-key reaction state machine. It guarantees at most one
// in-flight mutation per (post, emoji) key: duplicates are rejected locally
// with no cache edit and no network call. Keys are independent; mutations on
// different emojis or posts run concurrently without coordination.
type Reactor struct {
	mu      sync.Mutex
	states  map[reactionKey]State
	mutator *Mutator
}

func NewReactor(mutator *Mutator) *Reactor {
	return &Reactor{
		states:  make(map[reactionKey]State),
		mutator: mutator,
	}
}

// State returns the machine state for a key. Keys never touched by this
// reactor derive their stable state from the cache's viewer flag.
func (r *Reactor) State(postID int64, emoji string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked(reactionKey{postID, emoji})
}

func (r *Reactor) stateLocked(k reactionKey) State {
	if s, ok := r.states[k]; ok {
		return s
	}
	if g, ok := r.mutator.Cache().Group(k.postID, k.emoji); ok && g.ViewerReacted {
		return StateReacted
	}
	return StateIdle
}

// React moves a key idle → reacting, applying the optimistic +1 and viewer
// flag, then settles to reacted on success or rolls back to idle on failure.
// Reacting while already reacted is an idempotent no-op.
func (r *Reactor) React(ctx context.Context, postID int64, emoji string) error {
	k := reactionKey{postID, emoji}

	r.mu.Lock()
	switch s := r.stateLocked(k); {
	case s.InFlight():
		r.mu.Unlock()
		return ErrMutationInFlight
	case s == StateReacted:
		r.mu.Unlock()
		return nil
	}
	r.states[k] = StateReacting
	r.mu.Unlock()

	edit, err := r.mutator.Apply(IntentReact, Input{PostID: postID, Emoji: emoji})
	if err != nil {
		r.settle(k, StateIdle)
		return err
	}

	res, terr := r.mutator.transport.Send(ctx, IntentReact, edit.Input)
	if rerr := r.mutator.Resolve(edit, res, terr); rerr != nil {
		r.settle(k, StateIdle)
		return rerr
	}
	r.settle(k, StateReacted)
	return nil
}

// Undo moves a key reacted → undoing, applying the optimistic -1 (floored at
// zero) and clearing the viewer flag, then settles to idle on success or
// rolls back to reacted on failure. Undoing while idle is a no-op.
func (r *Reactor) Undo(ctx context.Context, postID int64, emoji string) error {
	k := reactionKey{postID, emoji}

	r.mu.Lock()
	switch s := r.stateLocked(k); {
	case s.InFlight():
		r.mu.Unlock()
		return ErrMutationInFlight
	case s == StateIdle:
		r.mu.Unlock()
		return nil
	}
	r.states[k] = StateUndoing
	r.mu.Unlock()

	edit, err := r.mutator.Apply(IntentUndoReact, Input{PostID: postID, Emoji: emoji})
	if err != nil {
		r.settle(k, StateReacted)
		return err
	}

	res, terr := r.mutator.transport.Send(ctx, IntentUndoReact, edit.Input)
	if rerr := r.mutator.Resolve(edit, res, terr); rerr != nil {
		r.settle(k, StateReacted)
		return rerr
	}
	r.settle(k, StateIdle)
	return nil
}

// settle records the stable state a key resolved to. Transient states never
// outlive the request that created them.
func (r *Reactor) settle(k reactionKey, s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[k] = s
}
