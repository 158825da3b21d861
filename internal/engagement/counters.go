// Package engagement models the derived engagement aggregates attached to a
// post: the four counters, the per-emoji reaction groups, and the two
// viewer-scoped flags. Counters are server-authoritative; the optimistic
// package layers speculative edits on top of them client-side.
package engagement

import (
	"sort"

	"github.com/samber/lo"

	"quill/internal/model"
)

// Counts holds the four derived aggregates of a post. Each must equal the
// number of live, non-deleted child rows of its kind.
type Counts struct {
	Replies   int `json:"replies"`
	Shares    int `json:"shares"`
	Quotes    int `json:"quotes"`
	Reactions int `json:"reactions"`
}

// Summary is the full engagement view of a post for one viewer.
type Summary struct {
	Counts Counts                `json:"counts"`
	Groups []model.ReactionGroup `json:"groups"`

	// ViewerReacted is the derived OR over per-emoji membership. Per-emoji
	// state stays independent in Groups; this flag only exists for cheap
	// "has reacted at all" rendering.
	ViewerReacted bool `json:"viewer_reacted"`
	ViewerShared  bool `json:"viewer_shared"`
}

// Summarize builds the engagement view for a post. Groups are re-sorted into
// the deterministic render order, and the reaction total is recomputed as the
// sum of group counts so per-emoji independence is preserved even if the
// stored counter has drifted.
func Summarize(post *model.Post, groups []model.ReactionGroup, viewerShared bool) Summary {
	sorted := make([]model.ReactionGroup, len(groups))
	copy(sorted, groups)
	SortGroups(sorted)

	return Summary{
		Counts: Counts{
			Replies:   post.ReplyCount,
			Shares:    post.ShareCount,
			Quotes:    post.QuoteCount,
			Reactions: lo.SumBy(sorted, func(g model.ReactionGroup) int { return g.Count }),
		},
		Groups:        sorted,
		ViewerReacted: lo.SomeBy(sorted, func(g model.ReactionGroup) bool { return g.ViewerReacted }),
		ViewerShared:  viewerShared,
	}
}

// emojiPriority fixes the tie-break order for the common unicode set. Lower
// is earlier. Emoji outside the list, custom shortcodes included, sort after
// all of these.
var emojiPriority = map[string]int{
	"👍":  0,
	"❤️": 1,
	"😂":  2,
	"😮":  3,
	"😢":  4,
	"😡":  5,
	"🎉":  6,
	"🔥":  7,
}

var unrankedPriority = len(emojiPriority)

func priority(emoji string) int {
	if p, ok := emojiPriority[emoji]; ok {
		return p
	}
	return unrankedPriority
}

// SortGroups orders reaction groups deterministically for render: count
// descending, then the fixed emoji priority list, then custom/unknown emoji
// last in lexicographic order. The same input always renders the same way.
func SortGroups(groups []model.ReactionGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		pi, pj := priority(groups[i].Emoji), priority(groups[j].Emoji)
		if pi != pj {
			return pi < pj
		}
		return groups[i].Emoji < groups[j].Emoji
	})
}
