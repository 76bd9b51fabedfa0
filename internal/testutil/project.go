package testutil

import (
	"strconv"

	"github.com/roach88/contextsync/internal/domain"
)

// Project returns a small normalized project with the given number of
// contexts (ctx-1..ctx-n) and relationships chaining them (rel-1..).
// Relationships wrap around so any count is valid when contexts > 0.
func Project(id, name string, contexts, relationships int) domain.Project {
	p := domain.Project{ID: id, Name: name}
	for i := 1; i <= contexts; i++ {
		p.Contexts = append(p.Contexts, domain.BoundedContext{
			ID:        ctxID(i),
			Name:      "Context " + strconv.Itoa(i),
			Positions: domain.Positions{Flow: domain.Position{X: float64(i * 10)}},
		})
	}
	for i := 1; i <= relationships && contexts > 0; i++ {
		p.Relationships = append(p.Relationships, domain.Relationship{
			ID:            "rel-" + strconv.Itoa(i),
			FromContextID: ctxID((i-1)%contexts + 1),
			ToContextID:   ctxID(i%contexts + 1),
			Pattern:       "customer-supplier",
		})
	}
	p.Normalize()
	return p
}

func ctxID(i int) string { return "ctx-" + strconv.Itoa(i) }
