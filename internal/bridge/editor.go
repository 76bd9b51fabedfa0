package bridge

import (
	"fmt"
	"log/slog"

	"github.com/roach88/contextsync/internal/history"
	"github.com/roach88/contextsync/internal/replica"
)

// Recorder receives the command produced by every effective mutation.
type Recorder interface {
	Record(cmd history.Command)
}

// Editor is the mutation surface over one replicated document. Each method
// runs one transaction, so a mutation and its cascades reach peers as a
// single update. Mutations that name a missing record change nothing and
// record nothing.
type Editor struct {
	doc      *replica.Doc
	recorder Recorder
	logger   *slog.Logger
}

// EditorOption configures an Editor.
type EditorOption func(*Editor)

// WithRecorder sends every effective mutation to r.
func WithRecorder(r Recorder) EditorOption {
	return func(e *Editor) {
		e.recorder = r
	}
}

// WithEditorLogger sets the logger used for ignored mutations.
func WithEditorLogger(l *slog.Logger) EditorOption {
	return func(e *Editor) {
		e.logger = l
	}
}

// NewEditor returns an Editor writing into doc.
func NewEditor(doc *replica.Doc, opts ...EditorOption) *Editor {
	e := &Editor{doc: doc, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Doc returns the underlying document.
func (e *Editor) Doc() *replica.Doc {
	return e.doc
}

// Apply replays a recorded command without recording it again. It makes
// Editor a history.Applier.
func (e *Editor) Apply(cmd history.Command) error {
	err := e.doc.Transact(OriginHistory, func(tx *replica.Txn) {
		for _, ch := range cmd.Payload.Changes {
			applyChange(tx, ch)
		}
	})
	if err != nil {
		return fmt.Errorf("apply %s: %w", cmd.Type, err)
	}
	return nil
}

// commit runs fn in one transaction and records what it changed.
func (e *Editor) commit(typ history.CommandType, fn func(tx *replica.Txn) ([]history.Change, error)) error {
	var (
		changes []history.Change
		fnErr   error
	)
	err := e.doc.Transact(OriginEdit, func(tx *replica.Txn) {
		changes, fnErr = fn(tx)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", typ, err)
	}
	if fnErr != nil {
		return fmt.Errorf("%s: %w", typ, fnErr)
	}
	if len(changes) == 0 {
		e.logger.Debug("mutation changed nothing", "command", string(typ))
		return nil
	}
	if e.recorder != nil {
		e.recorder.Record(history.Command{Type: typ, Payload: history.Payload{Changes: changes}})
	}
	return nil
}

func applyChange(tx *replica.Txn, ch history.Change) {
	switch ch.Op {
	case history.OpCreate:
		put(tx, ch.Collection, ch.ID, ch.After)
	case history.OpDelete:
		if tx.Exists(ch.Collection, ch.ID) {
			tx.Delete(ch.Collection, ch.ID)
		}
	case history.OpUpdate:
		if !tx.Exists(ch.Collection, ch.ID) {
			return
		}
		writeFields(tx, ch.Collection, ch.ID, ch.After)
	}
}

// put creates the record, or replaces every field of an existing one.
func put(tx *replica.Txn, col, id string, fields history.Fields) history.Change {
	cur, exists := tx.Fields(col, id)
	if !exists {
		tx.Create(col, id)
		writeFields(tx, col, id, fields)
		return history.Change{Collection: col, ID: id, Op: history.OpCreate, After: fields.Clone()}
	}

	before := history.Fields{}
	after := history.Fields{}
	for name, v := range cur {
		before[name] = v
		after[name] = nil
	}
	for name, v := range fields {
		if _, ok := before[name]; !ok {
			before[name] = nil
		}
		after[name] = v
	}
	writeFields(tx, col, id, after)
	return history.Change{Collection: col, ID: id, Op: history.OpUpdate, Before: before, After: after.Clone()}
}

// update writes patch into an existing record. It reports false when the
// record does not exist.
func update(tx *replica.Txn, col, id string, patch history.Fields) (history.Change, bool) {
	cur, ok := tx.Fields(col, id)
	if !ok {
		return history.Change{}, false
	}
	before := make(history.Fields, len(patch))
	for name := range patch {
		before[name] = cur[name]
	}
	writeFields(tx, col, id, patch)
	return history.Change{Collection: col, ID: id, Op: history.OpUpdate, Before: before, After: patch.Clone()}, true
}

func remove(tx *replica.Txn, col, id string) (history.Change, bool) {
	cur, ok := tx.Fields(col, id)
	if !ok {
		return history.Change{}, false
	}
	tx.Delete(col, id)
	return history.Change{Collection: col, ID: id, Op: history.OpDelete, Before: history.Fields(cur)}, true
}

func writeFields(tx *replica.Txn, col, id string, fields history.Fields) {
	for _, name := range sortedFieldNames(fields) {
		if v := fields[name]; v == nil {
			tx.Unset(col, id, name)
		} else {
			tx.Set(col, id, name, v)
		}
	}
}

// single wraps an optional change.
func single(ch history.Change, ok bool) ([]history.Change, error) {
	if !ok {
		return nil, nil
	}
	return []history.Change{ch}, nil
}

// addRecord, updateRecord and deleteRecord cover the plain entity mutations.
func (e *Editor) addRecord(typ history.CommandType, col, id string, v any) error {
	if id == "" {
		return fmt.Errorf("%s: empty id", typ)
	}
	fields, err := toFields(v)
	if err != nil {
		return err
	}
	return e.commit(typ, func(tx *replica.Txn) ([]history.Change, error) {
		return []history.Change{put(tx, col, id, fields)}, nil
	})
}

func (e *Editor) updateRecord(typ history.CommandType, col, id string, patch Patch) error {
	fields, err := patch.fields("id")
	if err != nil {
		return fmt.Errorf("%s: %w", typ, err)
	}
	return e.commit(typ, func(tx *replica.Txn) ([]history.Change, error) {
		return single(update(tx, col, id, fields))
	})
}

func (e *Editor) deleteRecord(typ history.CommandType, col, id string) error {
	return e.commit(typ, func(tx *replica.Txn) ([]history.Change, error) {
		return single(remove(tx, col, id))
	})
}

// removeWhere deletes every record of col whose string field equals value.
func removeWhere(tx *replica.Txn, col, field, value string) []history.Change {
	var changes []history.Change
	for _, id := range tx.IDs(col) {
		fields, _ := tx.Fields(col, id)
		if stringField(fields, field) != value {
			continue
		}
		if ch, ok := remove(tx, col, id); ok {
			changes = append(changes, ch)
		}
	}
	return changes
}
