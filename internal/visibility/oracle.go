package visibility

import (
	"context"

	"quill/internal/model"
)

// RelationshipSource answers block/follow state between two actors. The sqlx
// relationship repository satisfies this; tests use function-field mocks.
type RelationshipSource interface {
	Get(ctx context.Context, viewerID, targetID int64) (model.Relationship, error)
	GetMany(ctx context.Context, viewerID int64, targetIDs []int64) (map[int64]model.Relationship, error)
}

// Oracle answers relationship queries for a single viewer over the lifetime
// of one request, memoizing lookups so repeated checks against the same
// author hit the store once. It is request-scoped and not safe for
// concurrent use; build a fresh one per request and discard it after.
type Oracle struct {
	source   RelationshipSource
	viewerID int64
	memo     map[int64]model.Relationship
}

// NewOracle builds an oracle for the given viewer. viewerID <= 0 means an
// anonymous viewer; every lookup then returns the zero snapshot.
func NewOracle(source RelationshipSource, viewerID int64) *Oracle {
	return &Oracle{
		source:   source,
		viewerID: viewerID,
		memo:     make(map[int64]model.Relationship),
	}
}

// Relationship returns the viewer's snapshot against target.
func (o *Oracle) Relationship(ctx context.Context, targetID int64) (model.Relationship, error) {
	if o.viewerID <= 0 || o.viewerID == targetID {
		return model.Relationship{}, nil
	}
	if rel, ok := o.memo[targetID]; ok {
		return rel, nil
	}
	rel, err := o.source.Get(ctx, o.viewerID, targetID)
	if err != nil {
		return model.Relationship{}, err
	}
	o.memo[targetID] = rel
	return rel, nil
}

// Load batch-fetches snapshots for the given targets into the memo. Timeline
// hydration calls this once per window so per-post checks are memo hits.
func (o *Oracle) Load(ctx context.Context, targetIDs []int64) error {
	if o.viewerID <= 0 {
		return nil
	}
	missing := make([]int64, 0, len(targetIDs))
	for _, id := range targetIDs {
		if _, ok := o.memo[id]; !ok && id != o.viewerID {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	rels, err := o.source.GetMany(ctx, o.viewerID, missing)
	if err != nil {
		return err
	}
	for id, rel := range rels {
		o.memo[id] = rel
	}
	return nil
}
