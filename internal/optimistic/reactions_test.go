package optimistic

import (
	"context"
	"errors"
	"testing"
)

func newReactor(transport Transport, notifier Notifier) (*Reactor, *Cache) {
	cache := NewCache()
	cache.PutPost(PostRecord{ID: 1})
	cache.PutGroup(GroupRecord{PostID: 1, Emoji: "👍", Count: 2})
	return NewReactor(NewMutator(cache, transport, notifier)), cache
}

func TestReactor_ReactThenUndoRoundTrip(t *testing.T) {
	transport := &mockTransport{}
	r, cache := newReactor(transport, nil)
	before := cache.Snapshot()

	if err := r.React(context.Background(), 1, "👍"); err != nil {
		t.Fatalf("react: %v", err)
	}
	if s := r.State(1, "👍"); s != StateReacted {
		t.Fatalf("state = %v, want reacted", s)
	}
	g, _ := cache.Group(1, "👍")
	if g.Count != 3 || !g.ViewerReacted {
		t.Fatalf("after react: %+v", g)
	}

	if err := r.Undo(context.Background(), 1, "👍"); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if s := r.State(1, "👍"); s != StateIdle {
		t.Fatalf("state = %v, want idle", s)
	}

	// Both confirmed: group state and count match the pre-react state.
	if !cache.Equal(before) {
		t.Error("react+undo did not round-trip the cache")
	}
	if transport.callCount() != 2 {
		t.Errorf("network calls = %d, want 2", transport.callCount())
	}
}

func TestReactor_AtMostOneInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	transport := &mockTransport{
		sendFn: func(ctx context.Context, intent Intent, input Input) (Result, error) {
			close(started)
			<-release
			return Confirmed(), nil
		},
	}
	r, cache := newReactor(transport, nil)

	done := make(chan error, 1)
	go func() {
		done <- r.React(context.Background(), 1, "👍")
	}()
	<-started

	countBefore, _ := cache.Group(1, "👍")

	// Duplicate while reacting: rejected locally, no network call, no
	// count change.
	if err := r.React(context.Background(), 1, "👍"); !errors.Is(err, ErrMutationInFlight) {
		t.Fatalf("duplicate react err = %v, want ErrMutationInFlight", err)
	}
	if err := r.Undo(context.Background(), 1, "👍"); !errors.Is(err, ErrMutationInFlight) {
		t.Fatalf("undo while reacting err = %v, want ErrMutationInFlight", err)
	}
	if transport.callCount() != 1 {
		t.Errorf("network calls = %d, want 1", transport.callCount())
	}
	countAfter, _ := cache.Group(1, "👍")
	if countAfter.Count != countBefore.Count {
		t.Errorf("count changed by rejected duplicate: %d -> %d", countBefore.Count, countAfter.Count)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first react: %v", err)
	}
	if s := r.State(1, "👍"); s != StateReacted {
		t.Errorf("state = %v, want reacted after settle", s)
	}
}

func TestReactor_IndependentKeysRunConcurrently(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	transport := &mockTransport{
		sendFn: func(ctx context.Context, intent Intent, input Input) (Result, error) {
			if input.Emoji == "👍" {
				close(started)
				<-release
			}
			return Confirmed(), nil
		},
	}
	r, _ := newReactor(transport, nil)

	done := make(chan error, 1)
	go func() {
		done <- r.React(context.Background(), 1, "👍")
	}()
	<-started

	// A different emoji is a different key: not blocked by the pending 👍.
	if err := r.React(context.Background(), 1, "🔥"); err != nil {
		t.Fatalf("react on independent key: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first react: %v", err)
	}
}

func TestReactor_DomainErrorRollsBackToIdle(t *testing.T) {
	notifier := &recordingNotifier{}
	transport := &mockTransport{
		sendFn: func(ctx context.Context, intent Intent, input Input) (Result, error) {
			return Rejected(DomainErrNotAuthenticated), nil
		},
	}
	r, cache := newReactor(transport, notifier)
	before := cache.Snapshot()

	err := r.React(context.Background(), 1, "👍")
	if !errors.Is(err, ErrMutationFailed) {
		t.Fatalf("err = %v, want ErrMutationFailed", err)
	}
	if s := r.State(1, "👍"); s != StateIdle {
		t.Errorf("state = %v, want idle after rollback", s)
	}
	if !cache.Equal(before) {
		t.Error("count/flag not restored after domain error")
	}
	if len(notifier.notices) != 1 || notifier.notices[0].Retryable {
		t.Errorf("notices = %+v, want one non-retryable notice", notifier.notices)
	}
}

func TestReactor_UndoFailureRollsBackToReacted(t *testing.T) {
	transport := &mockTransport{}
	r, cache := newReactor(transport, &recordingNotifier{})

	if err := r.React(context.Background(), 1, "👍"); err != nil {
		t.Fatalf("react: %v", err)
	}
	reacted := cache.Snapshot()

	transport.sendFn = func(ctx context.Context, intent Intent, input Input) (Result, error) {
		return Result{}, errors.New("connection reset")
	}
	if err := r.Undo(context.Background(), 1, "👍"); !errors.Is(err, ErrMutationFailed) {
		t.Fatalf("err = %v, want ErrMutationFailed", err)
	}
	if s := r.State(1, "👍"); s != StateReacted {
		t.Errorf("state = %v, want reacted after failed undo", s)
	}
	if !cache.Equal(reacted) {
		t.Error("cache not restored to reacted state after failed undo")
	}
}

func TestReactor_ReactWhileReactedIsIdempotent(t *testing.T) {
	transport := &mockTransport{}
	r, _ := newReactor(transport, nil)

	if err := r.React(context.Background(), 1, "👍"); err != nil {
		t.Fatalf("react: %v", err)
	}
	if err := r.React(context.Background(), 1, "👍"); err != nil {
		t.Fatalf("re-react: %v", err)
	}
	if transport.callCount() != 1 {
		t.Errorf("network calls = %d, want 1 (re-react is a local no-op)", transport.callCount())
	}
}

func TestReactor_SeededViewerStateReadsAsReacted(t *testing.T) {
	// A key this reactor never touched derives its state from the cache.
	cache := NewCache()
	cache.PutPost(PostRecord{ID: 5})
	cache.PutGroup(GroupRecord{PostID: 5, Emoji: "❤️", Count: 1, ViewerReacted: true})
	r := NewReactor(NewMutator(cache, &mockTransport{}, nil))

	if s := r.State(5, "❤️"); s != StateReacted {
		t.Errorf("state = %v, want reacted from cache flag", s)
	}
	if s := r.State(5, "👍"); s != StateIdle {
		t.Errorf("state = %v, want idle for unseen emoji", s)
	}
}
