package service

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"quill/internal/engagement"
	"quill/internal/model"
	"quill/internal/repository"
	"quill/internal/timeline"
)

// Hydrator enriches composed timeline items into display-ready posts:
// author summaries, resolved content, reaction groups, and the viewer's own
// flags. Shares display the inner post's engagement, so all engagement
// lookups key on the display target, not the wrapper.
type Hydrator struct {
	actors    repository.ActorRepository
	posts     repository.PostRepository
	reactions repository.ReactionRepository
}

func NewHydrator(
	actors repository.ActorRepository,
	posts repository.PostRepository,
	reactions repository.ReactionRepository,
) *Hydrator {
	return &Hydrator{actors: actors, posts: posts, reactions: reactions}
}

// displayTarget is the post whose content and engagement the entry renders:
// the inner post for a share wrapper, the post itself otherwise.
func displayTarget(p *model.Post) *model.Post {
	if p.IsShare() && p.Shared != nil {
		return p.Shared
	}
	return p
}

// Hydrate builds display-ready posts for one page of items.
func (h *Hydrator) Hydrate(ctx context.Context, viewer *model.Actor, items []timeline.Item, langPrefs []string) ([]model.TimelinePost, error) {
	if len(items) == 0 {
		return []model.TimelinePost{}, nil
	}

	var authorIDs, targetIDs []int64
	for i := range items {
		p := &items[i].Post
		authorIDs = append(authorIDs, p.AuthorID)
		if p.Shared != nil {
			authorIDs = append(authorIDs, p.Shared.AuthorID)
		}
		if p.Quoted != nil {
			authorIDs = append(authorIDs, p.Quoted.AuthorID)
		}
		targetIDs = append(targetIDs, displayTarget(p).ID)
	}
	authorIDs = lo.Uniq(authorIDs)
	targetIDs = lo.Uniq(targetIDs)

	summaries, err := h.actors.GetSummaries(ctx, authorIDs)
	if err != nil {
		return nil, fmt.Errorf("load author summaries: %w", err)
	}

	groups, err := h.reactions.GroupsForPosts(ctx, targetIDs, actorID(viewer))
	if err != nil {
		return nil, fmt.Errorf("load reaction groups: %w", err)
	}

	shared := map[int64]bool{}
	if viewer != nil {
		shared, err = h.posts.CheckShares(ctx, viewer.ID, targetIDs)
		if err != nil {
			return nil, fmt.Errorf("check viewer shares: %w", err)
		}
	}

	out := make([]model.TimelinePost, 0, len(items))
	for i := range items {
		tp := model.TimelinePost{
			Post:         items[i].Post,
			OtherSharers: items[i].OtherSharers,
		}
		if s, ok := summaries[tp.Post.AuthorID]; ok {
			tp.Author = s
		}
		if inner := tp.Post.Shared; inner != nil {
			if s, ok := summaries[inner.AuthorID]; ok {
				summary := s
				inner.Author = &summary
			}
		}
		if inner := tp.Post.Quoted; inner != nil {
			if s, ok := summaries[inner.AuthorID]; ok {
				summary := s
				inner.Author = &summary
			}
		}

		target := displayTarget(&tp.Post)
		sum := engagement.Summarize(target, groups[target.ID], shared[target.ID])
		target.ReactionCount = sum.Counts.Reactions
		tp.DisplayBody = target.DisplayContent(langPrefs)
		tp.ReactionGroups = sum.Groups
		tp.ViewerReacted = sum.ViewerReacted
		tp.ViewerShared = sum.ViewerShared

		out = append(out, tp)
	}
	return out, nil
}

// actorID unwraps an optional viewer; 0 means anonymous.
func actorID(viewer *model.Actor) int64 {
	if viewer == nil {
		return 0
	}
	return viewer.ID
}
