package bridge

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/contextsync/internal/domain"
	"github.com/roach88/contextsync/internal/history"
	"github.com/roach88/contextsync/internal/replica"
)

// ErrStageExists is returned when a flow stage rename collides with another
// stage.
var ErrStageExists = errors.New("bridge: flow stage already exists")

// AddFlowStage inserts s, keyed by its name.
func (e *Editor) AddFlowStage(s domain.FlowStageMarker) error {
	return e.addRecord(history.CmdAddFlowStage, ColFlowStages, s.Name, s)
}

// UpdateFlowStage patches the stage called name. A patch that changes the
// name moves the stage to its new key.
func (e *Editor) UpdateFlowStage(name string, patch Patch) error {
	newName, renamed := patch["name"].(string)
	renamed = renamed && newName != name
	rest := make(Patch, len(patch))
	for k, v := range patch {
		if k != "name" || renamed {
			rest[k] = v
		}
	}
	fields, err := rest.fields()
	if err != nil {
		return fmt.Errorf("%s: %w", history.CmdUpdateFlowStage, err)
	}
	return e.commit(history.CmdUpdateFlowStage, func(tx *replica.Txn) ([]history.Change, error) {
		if !renamed {
			return single(update(tx, ColFlowStages, name, fields))
		}
		cur, ok := tx.Fields(ColFlowStages, name)
		if !ok {
			return nil, nil
		}
		if tx.Exists(ColFlowStages, newName) {
			return nil, fmt.Errorf("%w: %s", ErrStageExists, newName)
		}
		merged := history.Fields(cur).Clone()
		for k, v := range fields {
			if v == nil {
				delete(merged, k)
			} else {
				merged[k] = v
			}
		}
		del, _ := remove(tx, ColFlowStages, name)
		return []history.Change{del, put(tx, ColFlowStages, newName, merged)}, nil
	})
}

// DeleteFlowStage removes the stage called name.
func (e *Editor) DeleteFlowStage(name string) error {
	return e.deleteRecord(history.CmdDeleteFlowStage, ColFlowStages, name)
}

// AddKeyframe inserts k.
func (e *Editor) AddKeyframe(k domain.TemporalKeyframe) error {
	return e.addRecord(history.CmdAddKeyframe, ColKeyframes, k.ID, normalizeKeyframe(k))
}

// UpdateKeyframe patches the keyframe's fields.
func (e *Editor) UpdateKeyframe(id string, patch Patch) error {
	return e.updateRecord(history.CmdUpdateKeyframe, ColKeyframes, id, patch)
}

// DeleteKeyframe removes the keyframe.
func (e *Editor) DeleteKeyframe(id string) error {
	return e.deleteRecord(history.CmdDeleteKeyframe, ColKeyframes, id)
}

// UpdateKeyframeContextPosition sets one context's position inside a
// keyframe, leaving the other contexts' positions as they are.
func (e *Editor) UpdateKeyframeContextPosition(keyframeID, contextID string, pos domain.Position) error {
	return e.commit(history.CmdMoveKeyframeContext, func(tx *replica.Txn) ([]history.Change, error) {
		fields, ok := tx.Fields(ColKeyframes, keyframeID)
		if !ok {
			return nil, nil
		}
		positions := map[string]domain.Position{}
		if raw, ok := fields["positions"]; ok {
			if err := json.Unmarshal(raw, &positions); err != nil {
				return nil, fmt.Errorf("decode keyframe %s positions: %w", keyframeID, err)
			}
		}
		positions[contextID] = pos
		raw, err := json.Marshal(positions)
		if err != nil {
			return nil, err
		}
		return single(update(tx, ColKeyframes, keyframeID, history.Fields{"positions": raw}))
	})
}

// RenameProject sets the project name.
func (e *Editor) RenameProject(name string) error {
	return e.commit(history.CmdRenameProject, func(tx *replica.Txn) ([]history.Change, error) {
		return single(update(tx, ColProject, MetaID, history.Fields{"name": mustRaw(name)}))
	})
}

// ToggleTemporal flips whether the evolution timeline is enabled.
func (e *Editor) ToggleTemporal() error {
	return e.commit(history.CmdToggleTemporal, func(tx *replica.Txn) ([]history.Change, error) {
		fields, ok := tx.Fields(ColProject, MetaID)
		if !ok {
			return nil, nil
		}
		var enabled bool
		if raw, ok := fields["temporalEnabled"]; ok {
			_ = json.Unmarshal(raw, &enabled)
		}
		return single(update(tx, ColProject, MetaID, history.Fields{"temporalEnabled": mustRaw(!enabled)}))
	})
}
