package domain

// ProjectsAreEqual reports whether b is a faithful copy of a for migration
// purposes: same id and name, and for contexts, relationships, groups, users
// and user needs the same count and the same id set.
//
// It is a structural integrity check, not deep equality; field-level edits
// made by other replicas in the meantime do not count as a mismatch.
func ProjectsAreEqual(a, b Project) bool {
	if a.ID != b.ID || a.Name != b.Name {
		return false
	}
	return sameIDs(ids(a.Contexts, func(c BoundedContext) string { return c.ID }),
		ids(b.Contexts, func(c BoundedContext) string { return c.ID })) &&
		sameIDs(ids(a.Relationships, func(r Relationship) string { return r.ID }),
			ids(b.Relationships, func(r Relationship) string { return r.ID })) &&
		sameIDs(ids(a.Groups, func(g Group) string { return g.ID }),
			ids(b.Groups, func(g Group) string { return g.ID })) &&
		sameIDs(ids(a.Users, func(u User) string { return u.ID }),
			ids(b.Users, func(u User) string { return u.ID })) &&
		sameIDs(ids(a.UserNeeds, func(n UserNeed) string { return n.ID }),
			ids(b.UserNeeds, func(n UserNeed) string { return n.ID }))
}

func ids[T any](items []T, id func(T) string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = id(item)
	}
	return out
}

// sameIDs compares counts first, then set membership. Duplicate ids on one
// side make the counts diverge from the set size and are treated as unequal.
func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]int, len(a))
	for _, id := range a {
		set[id]++
	}
	for _, id := range b {
		if set[id] == 0 {
			return false
		}
		set[id]--
	}
	return true
}
