package service

import (
	"context"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"quill/internal/model"
	"quill/internal/queue"
	"quill/internal/repository"
)

// RelationshipService owns follow and block edges. Follows to local actors
// accept immediately; follows to remote actors stay pending until the remote
// side's accept arrives. Blocks sever follow edges in both directions.
type RelationshipService struct {
	rels      repository.RelationshipRepository
	actors    repository.ActorRepository
	publisher queue.Publisher
	db        *sqlx.DB
}

func NewRelationshipService(
	rels repository.RelationshipRepository,
	actors repository.ActorRepository,
	publisher queue.Publisher,
	db *sqlx.DB,
) *RelationshipService {
	return &RelationshipService{
		rels:      rels,
		actors:    actors,
		publisher: publisher,
		db:        db,
	}
}

// Relationship returns the viewer's snapshot against the target actor.
func (s *RelationshipService) Relationship(ctx context.Context, viewerID, targetID int64) (model.Relationship, error) {
	return s.rels.Get(ctx, viewerID, targetID)
}

// Follow creates a follow edge from the actor to the target. The returned
// state is pending or accepted.
func (s *RelationshipService) Follow(ctx context.Context, actor *model.Actor, targetID int64) (string, error) {
	if actor.ID == targetID {
		return "", model.ErrCannotFollowSelf
	}

	target, err := s.actors.GetByID(ctx, targetID)
	if err != nil {
		return "", err
	}

	rel, err := s.rels.Get(ctx, actor.ID, targetID)
	if err != nil {
		return "", err
	}
	if rel.Blocked() {
		return "", model.ErrActorBlocked
	}

	state := model.FollowStatePending
	if target.Local() {
		state = model.FollowStateAccepted
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.rels.CreateFollow(ctx, tx, actor.ID, targetID, state); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}

	if state == model.FollowStateAccepted {
		s.publish(ctx, queue.NewFollowAcceptedEvent(actor.ID, targetID))
	}
	return state, nil
}

// AcceptFollow flips a pending follow to accepted. Called when the remote
// side delivers its accept activity.
func (s *RelationshipService) AcceptFollow(ctx context.Context, followerID, followeeID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.rels.AcceptFollow(ctx, tx, followerID, followeeID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.publish(ctx, queue.NewFollowAcceptedEvent(followerID, followeeID))
	return nil
}

// Unfollow removes the actor's follow edge to the target.
func (s *RelationshipService) Unfollow(ctx context.Context, actor *model.Actor, targetID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.rels.DeleteFollow(ctx, tx, actor.ID, targetID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.publish(ctx, queue.NewFollowRemovedEvent(actor.ID, targetID))
	return nil
}

// Block creates a block edge and severs any follow edges between the two
// actors, in both directions, in the same transaction.
func (s *RelationshipService) Block(ctx context.Context, actor *model.Actor, targetID int64) error {
	if actor.ID == targetID {
		return model.ErrCannotBlockSelf
	}
	if _, err := s.actors.GetByID(ctx, targetID); err != nil {
		return err
	}

	rel, err := s.rels.Get(ctx, actor.ID, targetID)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.rels.CreateBlock(ctx, tx, actor.ID, targetID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	// Severed follows stop fan-out; sweep cached posts both ways.
	if rel.Following {
		s.publish(ctx, queue.NewFollowRemovedEvent(actor.ID, targetID))
	}
	if rel.FollowedBy {
		s.publish(ctx, queue.NewFollowRemovedEvent(targetID, actor.ID))
	}
	return nil
}

// Unblock removes the actor's block edge. Severed follows stay severed.
func (s *RelationshipService) Unblock(ctx context.Context, actor *model.Actor, targetID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.rels.DeleteBlock(ctx, tx, actor.ID, targetID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *RelationshipService) publish(ctx context.Context, event queue.TimelineEvent) {
	if s.publisher == nil {
		return
	}
	if _, err := s.publisher.Publish(ctx, queue.StreamTimeline, event); err != nil {
		log.Printf("[RelationshipService] publish %s FAILED: %v", event.Type, err)
	}
}
