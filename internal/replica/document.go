package replica

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrDestroyed is returned by Transact and ApplyUpdate after Destroy.
var ErrDestroyed = errors.New("replica: document destroyed")

type register struct {
	value   json.RawMessage
	deleted bool
	stamp   Stamp
}

type record struct {
	alive  register
	fields map[string]*register
}

func (r *record) visible() bool {
	return !r.alive.stamp.IsZero() && !r.alive.deleted
}

// visibleFields returns copies of the live fields written after the record's
// latest creation.
func (r *record) visibleFields() map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(r.fields))
	for name, reg := range r.fields {
		if reg.deleted || !reg.stamp.After(r.alive.stamp) {
			continue
		}
		out[name] = bytes.Clone(reg.value)
	}
	return out
}

type observer struct {
	id uint64
	fn func(UpdateEvent)
}

// Doc is a replicated document.
//
// Thread-safety: all methods are safe for concurrent use. Observers run on
// the goroutine that produced the update, after the document lock has been
// released, so they may read the document (Snapshot) or start a new
// transaction.
type Doc struct {
	mu          sync.Mutex
	client      string
	clock       *Clock
	collections map[string]map[string]*record
	observers   []observer
	nextObs     uint64
	destroyed   bool
}

// Option configures a Doc.
type Option func(*Doc)

// WithClientID sets the replica's client id.
func WithClientID(id string) Option {
	return func(d *Doc) {
		d.client = id
	}
}

// WithIDGenerator draws the client id from gen.
func WithIDGenerator(gen ClientIDGenerator) Option {
	return func(d *Doc) {
		d.client = gen.Generate()
	}
}

// New creates an empty document. Without WithClientID a UUIDv7 client id is
// generated.
func New(opts ...Option) *Doc {
	d := &Doc{
		clock:       NewClock(),
		collections: make(map[string]map[string]*record),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.client == "" {
		d.client = UUIDv7Generator{}.Generate()
	}
	return d
}

// ClientID returns the replica's client id.
func (d *Doc) ClientID() string {
	return d.client
}

// Transact runs fn as one atomic transaction. Observers receive a single
// UpdateEvent with every op fn produced; a transaction that writes nothing
// produces no event.
func (d *Doc) Transact(origin any, fn func(*Txn)) error {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return ErrDestroyed
	}
	txn := &Txn{doc: d}
	fn(txn)
	txn.done = true
	observers := d.observersLocked()
	d.mu.Unlock()

	if len(txn.ops) == 0 {
		return nil
	}
	notify(observers, UpdateEvent{Update: Update{Ops: txn.ops}, Origin: origin, Local: true})
	return nil
}

// ApplyUpdate merges a remote update. Ops that lose against the local
// registers are dropped; observers receive only the ops that took effect.
func (d *Doc) ApplyUpdate(u Update, origin any) error {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return ErrDestroyed
	}
	var applied []Op
	for _, op := range u.Ops {
		if op.Collection == "" || op.Record == "" {
			d.mu.Unlock()
			return fmt.Errorf("replica: apply update: op missing collection or record")
		}
		d.clock.Observe(op.Stamp.Clock)
		if d.applyLocked(op) {
			applied = append(applied, op)
		}
	}
	observers := d.observersLocked()
	d.mu.Unlock()

	if len(applied) == 0 {
		return nil
	}
	notify(observers, UpdateEvent{Update: Update{Ops: applied}, Origin: origin, Local: false})
	return nil
}

// EncodeState returns every register as an update. Applying it to another
// replica brings that replica up to date with this one.
func (d *Doc) EncodeState() Update {
	d.mu.Lock()
	defer d.mu.Unlock()

	var ops []Op
	for _, col := range sortedKeys(d.collections) {
		recs := d.collections[col]
		for _, id := range sortedKeys(recs) {
			rec := recs[id]
			if !rec.alive.stamp.IsZero() {
				ops = append(ops, Op{Collection: col, Record: id, Delete: rec.alive.deleted, Stamp: rec.alive.stamp})
			}
			for _, name := range sortedKeys(rec.fields) {
				reg := rec.fields[name]
				ops = append(ops, Op{
					Collection: col,
					Record:     id,
					Field:      name,
					Value:      bytes.Clone(reg.value),
					Delete:     reg.deleted,
					Stamp:      reg.stamp,
				})
			}
		}
	}
	return Update{Ops: ops}
}

// Snapshot returns the visible records of every collection.
func (d *Doc) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap := make(Snapshot, len(d.collections))
	for col, recs := range d.collections {
		out := make(map[string]map[string]json.RawMessage)
		for id, rec := range recs {
			if rec.visible() {
				out[id] = rec.visibleFields()
			}
		}
		if len(out) > 0 {
			snap[col] = out
		}
	}
	return snap
}

// Observe registers fn for every update. The returned function removes it.
func (d *Doc) Observe(fn func(UpdateEvent)) (cancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextObs++
	id := d.nextObs
	d.observers = append(d.observers, observer{id: id, fn: fn})

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, o := range d.observers {
			if o.id == id {
				d.observers = append(d.observers[:i:i], d.observers[i+1:]...)
				return
			}
		}
	}
}

// Destroy drops all observers and rejects further writes. Reads keep
// returning the last state.
func (d *Doc) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed = true
	d.observers = nil
}

// Destroyed reports whether Destroy has been called.
func (d *Doc) Destroyed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed
}

func (d *Doc) observersLocked() []observer {
	return append([]observer(nil), d.observers...)
}

func notify(observers []observer, ev UpdateEvent) {
	for _, o := range observers {
		o.fn(ev)
	}
}

// applyLocked merges op into the register it targets. Returns true when the
// op won.
func (d *Doc) applyLocked(op Op) bool {
	recs, ok := d.collections[op.Collection]
	if !ok {
		recs = make(map[string]*record)
		d.collections[op.Collection] = recs
	}
	rec, ok := recs[op.Record]
	if !ok {
		rec = &record{fields: make(map[string]*register)}
		recs[op.Record] = rec
	}

	var reg *register
	if op.Field == "" {
		reg = &rec.alive
	} else {
		reg, ok = rec.fields[op.Field]
		if !ok {
			reg = &register{}
			rec.fields[op.Field] = reg
		}
	}

	if !op.Stamp.After(reg.stamp) {
		return false
	}
	reg.stamp = op.Stamp
	reg.deleted = op.Delete
	if op.Delete {
		reg.value = nil
	} else {
		reg.value = bytes.Clone(op.Value)
	}
	return true
}

func (d *Doc) lookupLocked(col, id string) (*record, bool) {
	rec, ok := d.collections[col][id]
	if !ok || !rec.visible() {
		return nil, false
	}
	return rec, true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
