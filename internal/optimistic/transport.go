// Package optimistic implements the client-side half of engagement
// consistency: a normalized cache of post records, speculative edits applied
// before the server answers, and the reconciliation that settles or rolls
// them back when it does.
package optimistic

import (
	"context"
	"errors"
)

// Intent names a mutation the client can fire.
type Intent string

const (
	IntentReact      Intent = "react"
	IntentUndoReact  Intent = "undo_react"
	IntentShare      Intent = "share"
	IntentUnshare    Intent = "unshare"
	IntentDeletePost Intent = "delete_post"
)

// Input is the structured input of a mutation intent.
type Input struct {
	PostID int64
	Emoji  string // react / undo_react only

	// ListIDs names the cache lists the caller knows contain the post.
	// Deletion removes the post from exactly these; it never searches the
	// whole cache.
	ListIDs []string
}

// DomainError is a server-side rejection of a mutation, distinct from a
// transport failure: the server was reached and said no.
type DomainError string

const (
	DomainErrInvalidInput     DomainError = "invalid_input"
	DomainErrNotAuthenticated DomainError = "not_authenticated"
)

// Result is the settled outcome of a mutation request. It is a tagged
// variant: either OK, or exactly one domain error. Transport failures never
// appear here; they travel as ordinary errors alongside.
type Result struct {
	OK     bool
	Domain DomainError
}

// Confirmed is the success variant.
func Confirmed() Result {
	return Result{OK: true}
}

// Rejected is the domain-error variant.
func Rejected(d DomainError) Result {
	return Result{Domain: d}
}

// Transport fires a named intent at the server. A non-nil error means the
// server was unreachable (retryable); a Result with a DomainError means it
// refused (not retryable).
type Transport interface {
	Send(ctx context.Context, intent Intent, input Input) (Result, error)
}

// Notice is a user-facing failure surfaced after a rollback.
type Notice struct {
	Intent    Intent
	Message   string
	Retryable bool
}

// Notifier receives user-facing notices. The rendering layer implements it;
// tests use a recording stub.
type Notifier interface {
	Notify(n Notice)
}

var (
	// ErrUnknownPost means the target post is not in the cache; the edit
	// was not applied.
	ErrUnknownPost = errors.New("post not in cache")

	// ErrMutationInFlight means a mutation for the same key is already
	// pending; the attempt is rejected locally with no network call.
	ErrMutationInFlight = errors.New("mutation already in flight for this key")

	// ErrMutationFailed means the mutation was rolled back; the cache is
	// back at its pre-edit state and the user has been notified.
	ErrMutationFailed = errors.New("mutation failed and was rolled back")

	// ErrUnknownIntent is a programming-contract error: the intent is not
	// one the mutator knows how to apply.
	ErrUnknownIntent = errors.New("unknown mutation intent")
)
