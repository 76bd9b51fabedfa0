package bridge

import (
	"slices"

	"github.com/roach88/contextsync/internal/domain"
	"github.com/roach88/contextsync/internal/history"
	"github.com/roach88/contextsync/internal/replica"
)

// AddContext inserts c, replacing any context with the same id.
func (e *Editor) AddContext(c domain.BoundedContext) error {
	return e.addRecord(history.CmdAddContext, ColContexts, c.ID, c)
}

// UpdateContext patches the context's fields.
func (e *Editor) UpdateContext(id string, patch Patch) error {
	return e.updateRecord(history.CmdUpdateContext, ColContexts, id, patch)
}

// UpdateContextPosition moves the context on every view at once.
func (e *Editor) UpdateContextPosition(id string, pos domain.Positions) error {
	return e.updateRecord(history.CmdMoveContext, ColContexts, id, Patch{"positions": pos})
}

// DeleteContext removes the context together with the relationships and
// need connections that reference it, and drops it from every group.
func (e *Editor) DeleteContext(id string) error {
	return e.commit(history.CmdDeleteContext, func(tx *replica.Txn) ([]history.Change, error) {
		if !tx.Exists(ColContexts, id) {
			return nil, nil
		}
		var changes []history.Change
		changes = append(changes, removeWhere(tx, ColRelationships, "fromContextId", id)...)
		changes = append(changes, removeWhere(tx, ColRelationships, "toContextId", id)...)
		changes = append(changes, removeWhere(tx, ColNeedContextConnections, "contextId", id)...)
		for _, gid := range tx.IDs(ColGroups) {
			fields, _ := tx.Fields(ColGroups, gid)
			members := stringsField(fields, "contextIds")
			if !slices.Contains(members, id) {
				continue
			}
			kept := slices.DeleteFunc(slices.Clone(members), func(m string) bool { return m == id })
			ch, _ := update(tx, ColGroups, gid, history.Fields{"contextIds": mustRaw(kept)})
			changes = append(changes, ch)
		}
		ch, _ := remove(tx, ColContexts, id)
		return append(changes, ch), nil
	})
}

// AddRelationship inserts r.
func (e *Editor) AddRelationship(r domain.Relationship) error {
	return e.addRecord(history.CmdAddRelationship, ColRelationships, r.ID, r)
}

// UpdateRelationship patches the relationship's fields.
func (e *Editor) UpdateRelationship(id string, patch Patch) error {
	return e.updateRecord(history.CmdUpdateRelationship, ColRelationships, id, patch)
}

// DeleteRelationship removes the relationship.
func (e *Editor) DeleteRelationship(id string) error {
	return e.deleteRecord(history.CmdDeleteRelationship, ColRelationships, id)
}

// AddGroup inserts g.
func (e *Editor) AddGroup(g domain.Group) error {
	if g.ContextIDs == nil {
		g.ContextIDs = []string{}
	}
	return e.addRecord(history.CmdAddGroup, ColGroups, g.ID, g)
}

// UpdateGroup patches the group's fields.
func (e *Editor) UpdateGroup(id string, patch Patch) error {
	return e.updateRecord(history.CmdUpdateGroup, ColGroups, id, patch)
}

// DeleteGroup removes the group. Member contexts are untouched.
func (e *Editor) DeleteGroup(id string) error {
	return e.deleteRecord(history.CmdDeleteGroup, ColGroups, id)
}

// AddContextToGroup appends contextID to the group's members unless it is
// already one.
func (e *Editor) AddContextToGroup(groupID, contextID string) error {
	return e.commit(history.CmdAddGroupMember, func(tx *replica.Txn) ([]history.Change, error) {
		fields, ok := tx.Fields(ColGroups, groupID)
		if !ok {
			return nil, nil
		}
		members := stringsField(fields, "contextIds")
		if slices.Contains(members, contextID) {
			return nil, nil
		}
		return single(update(tx, ColGroups, groupID, history.Fields{
			"contextIds": mustRaw(append(slices.Clone(members), contextID)),
		}))
	})
}

// RemoveContextFromGroup drops contextID from the group's members.
func (e *Editor) RemoveContextFromGroup(groupID, contextID string) error {
	return e.commit(history.CmdRemoveGroupMember, func(tx *replica.Txn) ([]history.Change, error) {
		fields, ok := tx.Fields(ColGroups, groupID)
		if !ok {
			return nil, nil
		}
		members := stringsField(fields, "contextIds")
		if !slices.Contains(members, contextID) {
			return nil, nil
		}
		kept := slices.DeleteFunc(slices.Clone(members), func(m string) bool { return m == contextID })
		if kept == nil {
			kept = []string{}
		}
		return single(update(tx, ColGroups, groupID, history.Fields{"contextIds": mustRaw(kept)}))
	})
}
