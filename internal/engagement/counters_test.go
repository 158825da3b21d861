package engagement

import (
	"reflect"
	"testing"

	"quill/internal/model"
)

func TestSortGroups_Deterministic(t *testing.T) {
	groups := []model.ReactionGroup{
		{Emoji: ":blobcat:", Count: 2},
		{Emoji: "😂", Count: 5},
		{Emoji: "👍", Count: 2},
		{Emoji: "❤️", Count: 2},
		{Emoji: ":aww:", Count: 2},
		{Emoji: "🔥", Count: 9},
	}

	SortGroups(groups)

	want := []string{"🔥", "😂", "👍", "❤️", ":aww:", ":blobcat:"}
	got := make([]string, len(groups))
	for i, g := range groups {
		got[i] = g.Emoji
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}

	// Sorting again must not change anything.
	SortGroups(groups)
	for i, g := range groups {
		if g.Emoji != want[i] {
			t.Fatalf("order unstable on re-sort at %d: got %s want %s", i, g.Emoji, want[i])
		}
	}
}

func TestSummarize_TotalsAndViewerFlag(t *testing.T) {
	post := &model.Post{
		ID:            1,
		ReplyCount:    3,
		ShareCount:    2,
		QuoteCount:    1,
		ReactionCount: 99, // stale stored counter; total must come from groups
	}
	groups := []model.ReactionGroup{
		{PostID: 1, Emoji: "👍", Count: 4},
		{PostID: 1, Emoji: "😂", Count: 2, ViewerReacted: true},
	}

	s := Summarize(post, groups, true)

	if s.Counts.Reactions != 6 {
		t.Errorf("reactions = %d, want sum of group counts 6", s.Counts.Reactions)
	}
	if s.Counts.Replies != 3 || s.Counts.Shares != 2 || s.Counts.Quotes != 1 {
		t.Errorf("counts = %+v", s.Counts)
	}
	if !s.ViewerReacted {
		t.Error("ViewerReacted should be true when any group carries the viewer")
	}
	if !s.ViewerShared {
		t.Error("ViewerShared not carried through")
	}
}

func TestSummarize_NoReactions(t *testing.T) {
	post := &model.Post{ID: 2}
	s := Summarize(post, nil, false)

	if s.Counts.Reactions != 0 {
		t.Errorf("reactions = %d, want 0", s.Counts.Reactions)
	}
	if s.ViewerReacted {
		t.Error("ViewerReacted should be false with no groups")
	}
	if len(s.Groups) != 0 {
		t.Errorf("groups = %v, want empty", s.Groups)
	}
}
