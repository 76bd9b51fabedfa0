package bridge

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/contextsync/internal/domain"
	"github.com/roach88/contextsync/internal/history"
	"github.com/roach88/contextsync/internal/replica"
)

// Populate clears every shared structure in doc and rewrites it from p in a
// single transaction. Used when a session starts from a known local state,
// e.g. right after a local-only project moves into collaborative mode.
func Populate(doc *replica.Doc, p domain.Project) error {
	type entry struct {
		col, id string
		fields  history.Fields
	}
	var entries []entry
	add := func(col, id string, v any) error {
		fields, err := toFields(v)
		if err != nil {
			return err
		}
		entries = append(entries, entry{col: col, id: id, fields: fields})
		return nil
	}

	meta := metaRecord{ID: p.ID, Name: p.Name, Description: p.Description, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt}
	if p.Temporal != nil {
		enabled := p.Temporal.Enabled
		meta.TemporalEnabled = &enabled
	}
	if err := add(ColProject, MetaID, meta); err != nil {
		return fmt.Errorf("populate: %w", err)
	}

	var err error
	collect := func(col, id string, v any) {
		if err == nil {
			err = add(col, id, v)
		}
	}
	for _, c := range p.Contexts {
		collect(ColContexts, c.ID, c)
	}
	for _, r := range p.Relationships {
		collect(ColRelationships, r.ID, r)
	}
	for _, g := range p.Groups {
		if g.ContextIDs == nil {
			g.ContextIDs = []string{}
		}
		collect(ColGroups, g.ID, g)
	}
	for _, u := range p.Users {
		collect(ColUsers, u.ID, u)
	}
	for _, n := range p.UserNeeds {
		collect(ColUserNeeds, n.ID, n)
	}
	for _, c := range p.UserNeedConnections {
		collect(ColUserNeedConnections, c.ID, c)
	}
	for _, c := range p.NeedContextConnections {
		collect(ColNeedContextConnections, c.ID, c)
	}
	for _, t := range p.Teams {
		collect(ColTeams, t.ID, t)
	}
	for _, s := range p.ViewConfig.FlowStages {
		collect(ColFlowStages, s.Name, s)
	}
	if p.Temporal != nil {
		for _, k := range p.Temporal.Keyframes {
			collect(ColKeyframes, k.ID, normalizeKeyframe(k))
		}
	}
	if err != nil {
		return fmt.Errorf("populate: %w", err)
	}

	return doc.Transact(OriginPopulate, func(tx *replica.Txn) {
		tx.Delete(ColProject, MetaID)
		for _, col := range entityCollections {
			for _, id := range tx.IDs(col) {
				tx.Delete(col, id)
			}
		}
		for _, e := range entries {
			tx.Create(e.col, e.id)
			for _, name := range sortedFieldNames(e.fields) {
				tx.Set(e.col, e.id, name, e.fields[name])
			}
		}
	})
}

// Extract reconstructs the full project from doc. Collections are returned
// sorted by id; flow stages by position and keyframes by date.
func Extract(doc *replica.Doc) (domain.Project, error) {
	snap := doc.Snapshot()

	var p domain.Project
	if rec, ok := snap.Record(ColProject, MetaID); ok {
		var meta metaRecord
		if err := fromFields(rec, &meta); err != nil {
			return domain.Project{}, fmt.Errorf("extract project meta: %w", err)
		}
		p.ID = meta.ID
		p.Name = meta.Name
		p.Description = meta.Description
		p.CreatedAt = meta.CreatedAt
		p.UpdatedAt = meta.UpdatedAt
		if meta.TemporalEnabled != nil {
			p.Temporal = &domain.TemporalState{Enabled: *meta.TemporalEnabled}
		}
	}

	var err error
	if p.Contexts, err = decodeAll[domain.BoundedContext](snap, ColContexts); err != nil {
		return domain.Project{}, err
	}
	if p.Relationships, err = decodeAll[domain.Relationship](snap, ColRelationships); err != nil {
		return domain.Project{}, err
	}
	if p.Groups, err = decodeAll[domain.Group](snap, ColGroups); err != nil {
		return domain.Project{}, err
	}
	if p.Users, err = decodeAll[domain.User](snap, ColUsers); err != nil {
		return domain.Project{}, err
	}
	if p.UserNeeds, err = decodeAll[domain.UserNeed](snap, ColUserNeeds); err != nil {
		return domain.Project{}, err
	}
	if p.UserNeedConnections, err = decodeAll[domain.UserNeedConnection](snap, ColUserNeedConnections); err != nil {
		return domain.Project{}, err
	}
	if p.NeedContextConnections, err = decodeAll[domain.NeedContextConnection](snap, ColNeedContextConnections); err != nil {
		return domain.Project{}, err
	}
	if p.Teams, err = decodeAll[domain.Team](snap, ColTeams); err != nil {
		return domain.Project{}, err
	}
	if p.ViewConfig.FlowStages, err = decodeAll[domain.FlowStageMarker](snap, ColFlowStages); err != nil {
		return domain.Project{}, err
	}
	sort.SliceStable(p.ViewConfig.FlowStages, func(i, j int) bool {
		return p.ViewConfig.FlowStages[i].Position < p.ViewConfig.FlowStages[j].Position
	})

	keyframes, err := decodeAll[domain.TemporalKeyframe](snap, ColKeyframes)
	if err != nil {
		return domain.Project{}, err
	}
	sort.SliceStable(keyframes, func(i, j int) bool { return keyframes[i].Date < keyframes[j].Date })
	if len(keyframes) > 0 && p.Temporal == nil {
		p.Temporal = &domain.TemporalState{}
	}
	if p.Temporal != nil {
		for i := range keyframes {
			keyframes[i] = normalizeKeyframe(keyframes[i])
		}
		p.Temporal.Keyframes = keyframes
	}

	p.Normalize()
	return p, nil
}

// HasContent reports whether doc already holds a project, i.e. whether a
// joining client must load the shared state instead of seeding it.
func HasContent(doc *replica.Doc) bool {
	_, ok := doc.Snapshot().Record(ColProject, MetaID)
	return ok
}

// Observe calls fn with a freshly extracted project after every local or
// remote change to doc. Extraction failures are logged and skipped.
func Observe(doc *replica.Doc, fn func(domain.Project), logger *slog.Logger) (cancel func()) {
	if logger == nil {
		logger = slog.Default()
	}
	return doc.Observe(func(ev replica.UpdateEvent) {
		p, err := Extract(doc)
		if err != nil {
			logger.Error("extract after update failed",
				"error", err,
				"local", ev.Local,
				"ops", len(ev.Update.Ops),
			)
			return
		}
		fn(p)
	})
}

func decodeAll[T any](snap replica.Snapshot, col string) ([]T, error) {
	ids := snap.IDs(col)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		rec, _ := snap.Record(col, id)
		var v T
		if err := fromFields(rec, &v); err != nil {
			return nil, fmt.Errorf("extract %s/%s: %w", col, id, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func normalizeKeyframe(k domain.TemporalKeyframe) domain.TemporalKeyframe {
	if k.Positions == nil {
		k.Positions = map[string]domain.Position{}
	}
	if k.ActiveContextIDs == nil {
		k.ActiveContextIDs = []string{}
	}
	return k
}
