package history

import (
	"bytes"
	"encoding/json"
)

// CommandType names the domain operation a command records.
type CommandType string

const (
	CmdAddContext            CommandType = "context.add"
	CmdUpdateContext         CommandType = "context.update"
	CmdDeleteContext         CommandType = "context.delete"
	CmdMoveContext           CommandType = "context.move"
	CmdAddRelationship       CommandType = "relationship.add"
	CmdUpdateRelationship    CommandType = "relationship.update"
	CmdDeleteRelationship    CommandType = "relationship.delete"
	CmdAddGroup              CommandType = "group.add"
	CmdUpdateGroup           CommandType = "group.update"
	CmdDeleteGroup           CommandType = "group.delete"
	CmdAddGroupMember        CommandType = "group.addMember"
	CmdRemoveGroupMember     CommandType = "group.removeMember"
	CmdAddTeam               CommandType = "team.add"
	CmdUpdateTeam            CommandType = "team.update"
	CmdDeleteTeam            CommandType = "team.delete"
	CmdAddUser               CommandType = "user.add"
	CmdUpdateUser            CommandType = "user.update"
	CmdDeleteUser            CommandType = "user.delete"
	CmdMoveUser              CommandType = "user.move"
	CmdAddUserNeed           CommandType = "userNeed.add"
	CmdUpdateUserNeed        CommandType = "userNeed.update"
	CmdDeleteUserNeed        CommandType = "userNeed.delete"
	CmdMoveUserNeed          CommandType = "userNeed.move"
	CmdAddUserNeedConnection CommandType = "userNeedConnection.add"
	CmdUpdateUserNeedConn    CommandType = "userNeedConnection.update"
	CmdDeleteUserNeedConn    CommandType = "userNeedConnection.delete"
	CmdAddNeedContextConn    CommandType = "needContextConnection.add"
	CmdUpdateNeedContextConn CommandType = "needContextConnection.update"
	CmdDeleteNeedContextConn CommandType = "needContextConnection.delete"
	CmdAddFlowStage          CommandType = "flowStage.add"
	CmdUpdateFlowStage       CommandType = "flowStage.update"
	CmdDeleteFlowStage       CommandType = "flowStage.delete"
	CmdAddKeyframe           CommandType = "keyframe.add"
	CmdUpdateKeyframe        CommandType = "keyframe.update"
	CmdDeleteKeyframe        CommandType = "keyframe.delete"
	CmdMoveKeyframeContext   CommandType = "keyframe.moveContext"
	CmdRenameProject         CommandType = "project.rename"
	CmdToggleTemporal        CommandType = "project.toggleTemporal"
)

// ChangeOp is the kind of record-level change.
type ChangeOp string

const (
	OpCreate ChangeOp = "create"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
)

// Fields maps JSON field names to JSON values. In an update, a nil value
// means the field was (or becomes) absent.
type Fields map[string]json.RawMessage

// Clone returns a deep copy.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = bytes.Clone(v)
	}
	return out
}

// Change is one record-level edit.
//
//	create: After holds every field of the new record, Before is nil
//	delete: Before holds every field of the removed record, After is nil
//	update: Before/After hold only the touched fields
type Change struct {
	Collection string   `json:"collection"`
	ID         string   `json:"id"`
	Op         ChangeOp `json:"op"`
	Before     Fields   `json:"before,omitempty"`
	After      Fields   `json:"after,omitempty"`
}

// Inverse returns the change that undoes c.
func (c Change) Inverse() Change {
	inv := Change{Collection: c.Collection, ID: c.ID, Before: c.After.Clone(), After: c.Before.Clone()}
	switch c.Op {
	case OpCreate:
		inv.Op = OpDelete
	case OpDelete:
		inv.Op = OpCreate
	default:
		inv.Op = OpUpdate
	}
	return inv
}

// Payload carries the changes a command made, in application order.
type Payload struct {
	Changes []Change `json:"changes"`
}

// Command is a recorded, replayable user mutation.
type Command struct {
	Type    CommandType `json:"type"`
	Payload Payload     `json:"payload"`
}

// Inverse returns the command that undoes c. Changes are reversed so that
// cascaded records are restored before the records that reference them.
func (c Command) Inverse() Command {
	changes := make([]Change, len(c.Payload.Changes))
	for i, ch := range c.Payload.Changes {
		changes[len(changes)-1-i] = ch.Inverse()
	}
	return Command{Type: c.Type, Payload: Payload{Changes: changes}}
}

// Empty reports whether the command changed nothing.
func (c Command) Empty() bool {
	return len(c.Payload.Changes) == 0
}
