package bridge

import (
	"github.com/roach88/contextsync/internal/domain"
	"github.com/roach88/contextsync/internal/history"
	"github.com/roach88/contextsync/internal/replica"
)

// AddTeam inserts t.
func (e *Editor) AddTeam(t domain.Team) error {
	return e.addRecord(history.CmdAddTeam, ColTeams, t.ID, t)
}

// UpdateTeam patches the team's fields.
func (e *Editor) UpdateTeam(id string, patch Patch) error {
	return e.updateRecord(history.CmdUpdateTeam, ColTeams, id, patch)
}

// DeleteTeam removes the team and clears teamId on the contexts it owned.
func (e *Editor) DeleteTeam(id string) error {
	return e.commit(history.CmdDeleteTeam, func(tx *replica.Txn) ([]history.Change, error) {
		if !tx.Exists(ColTeams, id) {
			return nil, nil
		}
		var changes []history.Change
		for _, cid := range tx.IDs(ColContexts) {
			fields, _ := tx.Fields(ColContexts, cid)
			if stringField(fields, "teamId") != id {
				continue
			}
			ch, _ := update(tx, ColContexts, cid, history.Fields{"teamId": nil})
			changes = append(changes, ch)
		}
		ch, _ := remove(tx, ColTeams, id)
		return append(changes, ch), nil
	})
}

// AddUser inserts u.
func (e *Editor) AddUser(u domain.User) error {
	return e.addRecord(history.CmdAddUser, ColUsers, u.ID, u)
}

// UpdateUser patches the user's fields.
func (e *Editor) UpdateUser(id string, patch Patch) error {
	return e.updateRecord(history.CmdUpdateUser, ColUsers, id, patch)
}

// UpdateUserPosition moves the user along the value stream.
func (e *Editor) UpdateUserPosition(id string, position float64) error {
	return e.updateRecord(history.CmdMoveUser, ColUsers, id, Patch{"position": position})
}

// DeleteUser removes the user and its user-need connections.
func (e *Editor) DeleteUser(id string) error {
	return e.commit(history.CmdDeleteUser, func(tx *replica.Txn) ([]history.Change, error) {
		if !tx.Exists(ColUsers, id) {
			return nil, nil
		}
		changes := removeWhere(tx, ColUserNeedConnections, "userId", id)
		ch, _ := remove(tx, ColUsers, id)
		return append(changes, ch), nil
	})
}

// AddUserNeed inserts n.
func (e *Editor) AddUserNeed(n domain.UserNeed) error {
	return e.addRecord(history.CmdAddUserNeed, ColUserNeeds, n.ID, n)
}

// UpdateUserNeed patches the need's fields.
func (e *Editor) UpdateUserNeed(id string, patch Patch) error {
	return e.updateRecord(history.CmdUpdateUserNeed, ColUserNeeds, id, patch)
}

// UpdateUserNeedPosition moves the need along the value stream.
func (e *Editor) UpdateUserNeedPosition(id string, position float64) error {
	return e.updateRecord(history.CmdMoveUserNeed, ColUserNeeds, id, Patch{"position": position})
}

// DeleteUserNeed removes the need and every connection to it, on both the
// user side and the context side.
func (e *Editor) DeleteUserNeed(id string) error {
	return e.commit(history.CmdDeleteUserNeed, func(tx *replica.Txn) ([]history.Change, error) {
		if !tx.Exists(ColUserNeeds, id) {
			return nil, nil
		}
		changes := removeWhere(tx, ColUserNeedConnections, "userNeedId", id)
		changes = append(changes, removeWhere(tx, ColNeedContextConnections, "userNeedId", id)...)
		ch, _ := remove(tx, ColUserNeeds, id)
		return append(changes, ch), nil
	})
}

// AddUserNeedConnection links a user to a need.
func (e *Editor) AddUserNeedConnection(c domain.UserNeedConnection) error {
	return e.addRecord(history.CmdAddUserNeedConnection, ColUserNeedConnections, c.ID, c)
}

// UpdateUserNeedConnection patches the connection's fields.
func (e *Editor) UpdateUserNeedConnection(id string, patch Patch) error {
	return e.updateRecord(history.CmdUpdateUserNeedConn, ColUserNeedConnections, id, patch)
}

// DeleteUserNeedConnection removes the user-need link.
func (e *Editor) DeleteUserNeedConnection(id string) error {
	return e.deleteRecord(history.CmdDeleteUserNeedConn, ColUserNeedConnections, id)
}

// AddNeedContextConnection links a need to the context that serves it.
func (e *Editor) AddNeedContextConnection(c domain.NeedContextConnection) error {
	return e.addRecord(history.CmdAddNeedContextConn, ColNeedContextConnections, c.ID, c)
}

// UpdateNeedContextConnection patches the connection's fields.
func (e *Editor) UpdateNeedContextConnection(id string, patch Patch) error {
	return e.updateRecord(history.CmdUpdateNeedContextConn, ColNeedContextConnections, id, patch)
}

// DeleteNeedContextConnection removes the need-context link.
func (e *Editor) DeleteNeedContextConnection(id string) error {
	return e.deleteRecord(history.CmdDeleteNeedContextConn, ColNeedContextConnections, id)
}
