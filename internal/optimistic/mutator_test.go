package optimistic

import (
	"context"
	"sync"
	"testing"
)

// mockTransport is a function-field mock of Transport.
type mockTransport struct {
	mu     sync.Mutex
	sendFn func(ctx context.Context, intent Intent, input Input) (Result, error)
	calls  []Intent
}

func (m *mockTransport) Send(ctx context.Context, intent Intent, input Input) (Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, intent)
	m.mu.Unlock()
	if m.sendFn != nil {
		return m.sendFn(ctx, intent, input)
	}
	return Confirmed(), nil
}

func (m *mockTransport) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// recordingNotifier collects notices for assertions.
type recordingNotifier struct {
	notices []Notice
}

func (n *recordingNotifier) Notify(notice Notice) {
	n.notices = append(n.notices, notice)
}

func seededCache() *Cache {
	c := NewCache()
	c.PutPost(PostRecord{ID: 1, Replies: 2, Shares: 3, Quotes: 1})
	c.PutPost(PostRecord{ID: 2})
	c.PutGroup(GroupRecord{PostID: 1, Emoji: "👍", Count: 4})
	c.PutList("home", []int64{2, 1})
	c.PutList("profile:9", []int64{1})
	return c
}

func TestApplyRollback_IsNoOp(t *testing.T) {
	// The central property: for every intent, apply then rollback leaves
	// the cache bit-for-bit at its pre-edit state.
	cases := []struct {
		name   string
		intent Intent
		input  Input
	}{
		{"react existing group", IntentReact, Input{PostID: 1, Emoji: "👍"}},
		{"react new group", IntentReact, Input{PostID: 1, Emoji: "🔥"}},
		{"undo react", IntentUndoReact, Input{PostID: 1, Emoji: "👍"}},
		{"share", IntentShare, Input{PostID: 1}},
		{"unshare", IntentUnshare, Input{PostID: 1}},
		{"delete", IntentDeletePost, Input{PostID: 1, ListIDs: []string{"home", "profile:9"}}},
		{"delete with unknown list", IntentDeletePost, Input{PostID: 1, ListIDs: []string{"nope"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cache := seededCache()
			m := NewMutator(cache, &mockTransport{}, nil)
			before := cache.Snapshot()

			edit, err := m.Apply(tc.intent, tc.input)
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			if cache.Equal(before) {
				t.Fatal("apply changed nothing; edit is not observable")
			}
			m.Rollback(edit)
			if !cache.Equal(before) {
				t.Fatal("apply+rollback is not a no-op")
			}
		})
	}
}

func TestApply_React_CreatesLinkedGroup(t *testing.T) {
	cache := seededCache()
	m := NewMutator(cache, &mockTransport{}, nil)

	if _, err := m.Apply(IntentReact, Input{PostID: 1, Emoji: "🔥"}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	g, ok := cache.Group(1, "🔥")
	if !ok {
		t.Fatal("group record not created")
	}
	if g.Count != 1 || !g.ViewerReacted {
		t.Errorf("group = %+v, want count 1 viewer true", g)
	}

	p, _ := cache.Post(1)
	found := false
	for _, id := range p.GroupIDs {
		if id == g.ID {
			found = true
		}
	}
	if !found {
		t.Error("created group not linked back to post record")
	}
}

func TestApply_ShareFloor(t *testing.T) {
	cache := NewCache()
	cache.PutPost(PostRecord{ID: 7, Shares: 0})
	m := NewMutator(cache, &mockTransport{}, nil)

	if _, err := m.Apply(IntentShare, Input{PostID: 7}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	p, _ := cache.Post(7)
	if !p.ViewerShared || p.Shares != 1 {
		t.Errorf("after share: %+v, want shared count 1", p)
	}

	// Unshare while the viewer is the sole known sharer must floor at 0.
	if _, err := m.Apply(IntentUnshare, Input{PostID: 7}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := m.Apply(IntentUnshare, Input{PostID: 7}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	p, _ = cache.Post(7)
	if p.Shares != 0 {
		t.Errorf("shares = %d, want floored 0", p.Shares)
	}
}

func TestApply_DeleteOnlyTouchesNamedLists(t *testing.T) {
	cache := seededCache()
	m := NewMutator(cache, &mockTransport{}, nil)

	if _, err := m.Apply(IntentDeletePost, Input{PostID: 1, ListIDs: []string{"home"}}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	home, _ := cache.List("home")
	if len(home) != 1 || home[0] != 2 {
		t.Errorf("home = %v, want [2]", home)
	}
	// The profile list was not named, so it keeps the deleted post.
	profile, _ := cache.List("profile:9")
	if len(profile) != 1 || profile[0] != 1 {
		t.Errorf("profile = %v, want untouched [1]", profile)
	}
	p, _ := cache.Post(1)
	if !p.Inert {
		t.Error("deleted post not marked inert")
	}
}

func TestApply_UnknownPost(t *testing.T) {
	m := NewMutator(NewCache(), &mockTransport{}, nil)
	if _, err := m.Apply(IntentReact, Input{PostID: 404, Emoji: "👍"}); err != ErrUnknownPost {
		t.Fatalf("err = %v, want ErrUnknownPost", err)
	}
}

func TestDo_DomainRejectionRollsBackAndNotifies(t *testing.T) {
	cache := seededCache()
	before := cache.Snapshot()
	notifier := &recordingNotifier{}
	transport := &mockTransport{
		sendFn: func(ctx context.Context, intent Intent, input Input) (Result, error) {
			return Rejected(DomainErrNotAuthenticated), nil
		},
	}
	m := NewMutator(cache, transport, notifier)

	err := m.Do(context.Background(), IntentShare, Input{PostID: 1})
	if err != ErrMutationFailed {
		t.Fatalf("err = %v, want ErrMutationFailed", err)
	}
	if !cache.Equal(before) {
		t.Error("cache not restored after domain rejection")
	}
	if len(notifier.notices) != 1 {
		t.Fatalf("notices = %d, want 1", len(notifier.notices))
	}
	if notifier.notices[0].Retryable {
		t.Error("domain rejection notice must be non-retryable")
	}
}

func TestDo_TransportFailureIsRetryable(t *testing.T) {
	cache := seededCache()
	before := cache.Snapshot()
	notifier := &recordingNotifier{}
	transport := &mockTransport{
		sendFn: func(ctx context.Context, intent Intent, input Input) (Result, error) {
			return Result{}, context.DeadlineExceeded
		},
	}
	m := NewMutator(cache, transport, notifier)

	if err := m.Do(context.Background(), IntentUnshare, Input{PostID: 1}); err != ErrMutationFailed {
		t.Fatalf("err = %v, want ErrMutationFailed", err)
	}
	if !cache.Equal(before) {
		t.Error("cache not restored after transport failure")
	}
	if len(notifier.notices) != 1 || !notifier.notices[0].Retryable {
		t.Errorf("notices = %+v, want one retryable notice", notifier.notices)
	}
}

func TestApply_DifferentKeysCompose(t *testing.T) {
	// A react and a share on the same post touch disjoint field groups;
	// rolling back one must not clobber the other.
	cache := seededCache()
	m := NewMutator(cache, &mockTransport{}, nil)

	reactEdit, err := m.Apply(IntentReact, Input{PostID: 1, Emoji: "👍"})
	if err != nil {
		t.Fatalf("apply react: %v", err)
	}
	if _, err := m.Apply(IntentShare, Input{PostID: 1}); err != nil {
		t.Fatalf("apply share: %v", err)
	}

	m.Rollback(reactEdit)

	p, _ := cache.Post(1)
	if !p.ViewerShared || p.Shares != 4 {
		t.Errorf("share edit clobbered by reaction rollback: %+v", p)
	}
	g, _ := cache.Group(1, "👍")
	if g.Count != 4 || g.ViewerReacted {
		t.Errorf("reaction not restored: %+v", g)
	}
}
