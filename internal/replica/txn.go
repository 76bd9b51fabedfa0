package replica

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Txn is the handle passed to Transact. Reads observe the transaction's own
// writes. A Txn must not be retained after Transact returns.
type Txn struct {
	doc  *Doc
	ops  []Op
	done bool
}

// Exists reports whether the record is live.
func (t *Txn) Exists(col, id string) bool {
	_, ok := t.doc.lookupLocked(col, id)
	return ok
}

// Fields returns a copy of the record's visible fields.
func (t *Txn) Fields(col, id string) (map[string]json.RawMessage, bool) {
	rec, ok := t.doc.lookupLocked(col, id)
	if !ok {
		return nil, false
	}
	return rec.visibleFields(), true
}

// Field returns one visible field of a live record.
func (t *Txn) Field(col, id, field string) (json.RawMessage, bool) {
	rec, ok := t.doc.lookupLocked(col, id)
	if !ok {
		return nil, false
	}
	reg, ok := rec.fields[field]
	if !ok || reg.deleted || !reg.stamp.After(rec.alive.stamp) {
		return nil, false
	}
	return bytes.Clone(reg.value), true
}

// IDs returns the ids of live records in col, sorted.
func (t *Txn) IDs(col string) []string {
	var ids []string
	for id, rec := range t.doc.collections[col] {
		if rec.visible() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Create (re)creates a record. Fields written before this call are hidden.
func (t *Txn) Create(col, id string) {
	t.write(Op{Collection: col, Record: id})
}

// Delete tombstones a record.
func (t *Txn) Delete(col, id string) {
	t.write(Op{Collection: col, Record: id, Delete: true})
}

// Set writes a raw JSON value into a field.
func (t *Txn) Set(col, id, field string, value json.RawMessage) {
	if value == nil {
		value = json.RawMessage("null")
	}
	t.write(Op{Collection: col, Record: id, Field: field, Value: bytes.Clone(value)})
}

// SetValue marshals v and writes it into a field.
func (t *Txn) SetValue(col, id, field string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("replica: set %s/%s.%s: %w", col, id, field, err)
	}
	t.Set(col, id, field, raw)
	return nil
}

// Unset tombstones a field.
func (t *Txn) Unset(col, id, field string) {
	t.write(Op{Collection: col, Record: id, Field: field, Delete: true})
}

func (t *Txn) write(op Op) {
	if t.done {
		panic("replica: Txn used after Transact returned")
	}
	op.Stamp = Stamp{Clock: t.doc.clock.Next(), Client: t.doc.client}
	t.doc.applyLocked(op)
	t.ops = append(t.ops, op)
}
