package model

// TimelinePost is a post enriched for timeline display: author, resolved
// content, engagement counters, and viewer-scoped flags.
type TimelinePost struct {
	Post
	Author         ActorSummary    `json:"author"`
	DisplayBody    string          `json:"display_body"`
	ReactionGroups []ReactionGroup `json:"reaction_groups"`
	ViewerReacted  bool            `json:"viewer_reacted"`
	ViewerShared   bool            `json:"viewer_shared"`

	// OtherSharers is set on collapsed shares: how many additional
	// viewer-visible shares of the same original were folded into this one.
	OtherSharers int `json:"other_sharers,omitempty"`
}

// TimelineResponse is a paginated timeline page.
type TimelineResponse struct {
	Posts      []TimelinePost `json:"posts"`
	NextCursor *string        `json:"next_cursor,omitempty"`
	HasMore    bool           `json:"has_more"`
}
