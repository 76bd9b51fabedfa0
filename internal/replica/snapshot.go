package replica

import (
	"encoding/json"
	"sort"
)

// Snapshot is a point-in-time copy of the visible records:
// collection -> record id -> field -> JSON value.
type Snapshot map[string]map[string]map[string]json.RawMessage

// IDs returns the record ids of col, sorted.
func (s Snapshot) IDs(col string) []string {
	ids := make([]string, 0, len(s[col]))
	for id := range s[col] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Record returns the fields of one record.
func (s Snapshot) Record(col, id string) (map[string]json.RawMessage, bool) {
	rec, ok := s[col][id]
	return rec, ok
}

// Len returns the number of records in col.
func (s Snapshot) Len(col string) int {
	return len(s[col])
}
