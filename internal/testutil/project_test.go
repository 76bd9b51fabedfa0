package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProject_Shape(t *testing.T) {
	p := Project("proj-1", "Shop", 3, 2)

	assert.Equal(t, "proj-1", p.ID)
	assert.Len(t, p.Contexts, 3)
	assert.Len(t, p.Relationships, 2)
	assert.Equal(t, "ctx-1", p.Relationships[0].FromContextID)
	assert.Equal(t, "ctx-2", p.Relationships[0].ToContextID)
	assert.NotNil(t, p.Groups)
}

func TestProject_RelationshipsWrap(t *testing.T) {
	p := Project("p", "P", 2, 3)
	assert.Equal(t, "ctx-1", p.Relationships[2].FromContextID)
	assert.Equal(t, "ctx-2", p.Relationships[2].ToContextID)
}

func TestProject_NoContextsNoRelationships(t *testing.T) {
	p := Project("p", "P", 0, 4)
	assert.Empty(t, p.Relationships)
}
