package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/roach88/contextsync/internal/history"
)

// Collection names.
const (
	ColProject                = "project"
	ColContexts               = "contexts"
	ColRelationships          = "relationships"
	ColGroups                 = "groups"
	ColUsers                  = "users"
	ColUserNeeds              = "userNeeds"
	ColUserNeedConnections    = "userNeedConnections"
	ColNeedContextConnections = "needContextConnections"
	ColTeams                  = "teams"
	ColFlowStages             = "flowStages"
	ColKeyframes              = "keyframes"

	// MetaID is the single record of ColProject.
	MetaID = "meta"
)

// entityCollections lists every collection Populate clears, in write order.
var entityCollections = []string{
	ColContexts,
	ColRelationships,
	ColGroups,
	ColUsers,
	ColUserNeeds,
	ColUserNeedConnections,
	ColNeedContextConnections,
	ColTeams,
	ColFlowStages,
	ColKeyframes,
}

// Transaction origins, visible to document observers.
const (
	OriginPopulate = "bridge.populate"
	OriginEdit     = "bridge.edit"
	OriginHistory  = "bridge.history"
)

// ErrImmutableField is returned when a patch tries to change a record key.
var ErrImmutableField = errors.New("bridge: field is immutable")

// metaRecord is the stored form of the project-level fields.
type metaRecord struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	CreatedAt       *time.Time `json:"createdAt,omitempty"`
	UpdatedAt       *time.Time `json:"updatedAt,omitempty"`
	TemporalEnabled *bool      `json:"temporalEnabled,omitempty"`
}

// Patch is a partial update keyed by JSON field name. A nil value removes
// the field.
type Patch map[string]any

func (p Patch) fields(immutable ...string) (history.Fields, error) {
	out := make(history.Fields, len(p))
	for k, v := range p {
		for _, key := range immutable {
			if k == key {
				return nil, fmt.Errorf("%w: %s", ErrImmutableField, k)
			}
		}
		if v == nil {
			out[k] = nil
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("bridge: encode field %s: %w", k, err)
		}
		out[k] = raw
	}
	return out, nil
}

// toFields splits a domain struct into per-field JSON values.
func toFields(v any) (history.Fields, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("bridge: encode %T: %w", v, err)
	}
	var fields history.Fields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("bridge: split %T: %w", v, err)
	}
	return fields, nil
}

// fromFields reassembles a record into a domain struct.
func fromFields(fields map[string]json.RawMessage, out any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func stringField(fields map[string]json.RawMessage, name string) string {
	var s string
	if raw, ok := fields[name]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

func stringsField(fields map[string]json.RawMessage, name string) []string {
	var out []string
	if raw, ok := fields[name]; ok {
		_ = json.Unmarshal(raw, &out)
	}
	return out
}

// mustRaw encodes values that cannot fail to marshal (strings, slices of
// strings, bools, maps of finite positions).
func mustRaw(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("bridge: encode %T: %v", v, err))
	}
	return raw
}

func sortedFieldNames(f history.Fields) []string {
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
