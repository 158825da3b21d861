package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types carried on the timeline stream.
const (
	EventPostCreated    = "post_created"
	EventPostDeleted    = "post_deleted"
	EventShareCreated   = "share_created"
	EventShareRemoved   = "share_removed"
	EventFollowAccepted = "follow_accepted"
	EventFollowRemoved  = "follow_removed"
)

// StreamTimeline carries fan-out work for home timeline caches.
const StreamTimeline = "stream:timeline"

// ConsumerGroupTimeline is the consumer group the fan-out workers join.
const ConsumerGroupTimeline = "timeline_workers"

// TimelineEvent is one unit of fan-out work. All event types share the
// structure; unused fields stay zero.
type TimelineEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`

	// Post and share events.
	PostID   int64 `json:"post_id,omitempty"`
	AuthorID int64 `json:"author_id,omitempty"`

	// Follow events.
	FollowerID int64 `json:"follower_id,omitempty"`
	FolloweeID int64 `json:"followee_id,omitempty"`
}

// NewPostCreatedEvent signals a new post to push into follower timelines.
// Shares are posts too: share wrappers reuse this event with the wrapper's
// own id, so the fan-out path is identical.
func NewPostCreatedEvent(postID, authorID int64) TimelineEvent {
	return TimelineEvent{
		Type:      EventPostCreated,
		Timestamp: time.Now().Unix(),
		PostID:    postID,
		AuthorID:  authorID,
	}
}

// NewPostDeletedEvent signals a post to evict from follower timelines.
func NewPostDeletedEvent(postID, authorID int64) TimelineEvent {
	return TimelineEvent{
		Type:      EventPostDeleted,
		Timestamp: time.Now().Unix(),
		PostID:    postID,
		AuthorID:  authorID,
	}
}

// NewShareCreatedEvent signals a share wrapper to push into the sharer's
// follower timelines.
func NewShareCreatedEvent(sharePostID, sharerID int64) TimelineEvent {
	return TimelineEvent{
		Type:      EventShareCreated,
		Timestamp: time.Now().Unix(),
		PostID:    sharePostID,
		AuthorID:  sharerID,
	}
}

// NewShareRemovedEvent signals an unshared wrapper to evict.
func NewShareRemovedEvent(sharePostID, sharerID int64) TimelineEvent {
	return TimelineEvent{
		Type:      EventShareRemoved,
		Timestamp: time.Now().Unix(),
		PostID:    sharePostID,
		AuthorID:  sharerID,
	}
}

// NewFollowAcceptedEvent signals an accepted follow: the worker backfills
// the followee's recent posts into the follower's timeline cache.
func NewFollowAcceptedEvent(followerID, followeeID int64) TimelineEvent {
	return TimelineEvent{
		Type:       EventFollowAccepted,
		Timestamp:  time.Now().Unix(),
		FollowerID: followerID,
		FolloweeID: followeeID,
	}
}

// NewFollowRemovedEvent signals an unfollow or a block-severed edge: the
// worker sweeps the followee's posts out of the follower's timeline cache.
func NewFollowRemovedEvent(followerID, followeeID int64) TimelineEvent {
	return TimelineEvent{
		Type:       EventFollowRemoved,
		Timestamp:  time.Now().Unix(),
		FollowerID: followerID,
		FolloweeID: followeeID,
	}
}

// ToMap shapes the event as stream fields for XADD. The payload rides in a
// single JSON "data" field next to a bare "type" for cheap filtering.
func (e TimelineEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseTimelineEvent decodes an event from stream message values.
func ParseTimelineEvent(values map[string]interface{}) (TimelineEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return TimelineEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event TimelineEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return TimelineEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
