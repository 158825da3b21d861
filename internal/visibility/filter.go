package visibility

// Filter is the SQL pushdown form of the predicate. Window queries embed its
// clause in their WHERE so visibility filtering happens in the store, before
// pagination, instead of in memory after.
//
// The clause uses ? placeholders; callers compose it into a ?-style query and
// run the result through sqlx.Rebind for the postgres driver.
type Filter struct {
	clause string
	args   []interface{}
}

// ForViewer builds the filter for the given viewer actor id. viewerID <= 0
// means anonymous: only public and unlisted rows pass, and no relationship
// subqueries are emitted at all.
//
// alias is the posts table alias in the enclosing query.
func ForViewer(viewerID int64, alias string) Filter {
	if viewerID <= 0 {
		return Filter{
			clause: "(" + alias + ".visibility IN ('public', 'unlisted'))",
		}
	}

	// Own posts pass unconditionally. Everything else requires the absence
	// of a block edge in either direction, then the level-specific rule:
	// public/unlisted always, followers behind an accepted edge, direct
	// behind a mention row. Rows with levels outside the known set match no
	// branch, which is the same fail-closed default as the predicate.
	clause := `(
		` + alias + `.author_id = ?
		OR (
			NOT EXISTS(
				SELECT 1 FROM blocks b
				WHERE (b.blocker_id = ? AND b.blocked_id = ` + alias + `.author_id)
				   OR (b.blocker_id = ` + alias + `.author_id AND b.blocked_id = ?)
			)
			AND (
				` + alias + `.visibility IN ('public', 'unlisted')
				OR (` + alias + `.visibility = 'followers' AND EXISTS(
					SELECT 1 FROM follows f
					WHERE f.follower_id = ? AND f.followee_id = ` + alias + `.author_id AND f.state = 'accepted'
				))
				OR (` + alias + `.visibility = 'direct' AND EXISTS(
					SELECT 1 FROM post_mentions m
					WHERE m.post_id = ` + alias + `.id AND m.actor_id = ?
				))
			)
		)
	)`
	return Filter{
		clause: clause,
		args:   []interface{}{viewerID, viewerID, viewerID, viewerID, viewerID},
	}
}

// Clause returns the WHERE fragment with ? placeholders.
func (f Filter) Clause() string {
	return f.clause
}

// Args returns the bind arguments for the clause, in placeholder order.
func (f Filter) Args() []interface{} {
	return f.args
}
