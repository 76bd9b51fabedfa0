package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contextsync/internal/domain"
	"github.com/roach88/contextsync/internal/history"
	"github.com/roach88/contextsync/internal/replica"
)

type editorFixture struct {
	doc     *replica.Doc
	editor  *Editor
	history *history.History
}

func newEditorFixture(t *testing.T) *editorFixture {
	t.Helper()
	doc := populated(t)
	h := history.New()
	e := NewEditor(doc, WithRecorder(h))
	h.Bind(e)
	return &editorFixture{doc: doc, editor: e, history: h}
}

func TestEditor_AddContext(t *testing.T) {
	f := newEditorFixture(t)

	require.NoError(t, f.editor.AddContext(domain.BoundedContext{ID: "ctx-d", Name: "Billing"}))

	proj1 := extract(t, f.doc)
	got, ok := proj1.Context("ctx-d")
	require.True(t, ok)
	assert.Equal(t, "Billing", got.Name)
	assert.True(t, f.history.CanUndo())
}

func TestEditor_AddContextRequiresID(t *testing.T) {
	f := newEditorFixture(t)

	assert.Error(t, f.editor.AddContext(domain.BoundedContext{Name: "nameless"}))
	assert.False(t, f.history.CanUndo())
}

func TestEditor_UpdateContextPatchesFields(t *testing.T) {
	f := newEditorFixture(t)

	require.NoError(t, f.editor.UpdateContext("ctx-b", Patch{"name": "Payments v2", "codeSize": nil}))

	proj2 := extract(t, f.doc)
	got, _ := proj2.Context("ctx-b")
	assert.Equal(t, "Payments v2", got.Name)
	assert.Equal(t, "core", got.StrategicClassification)
	assert.Nil(t, got.CodeSize)
}

func TestEditor_UpdateRejectsIDChange(t *testing.T) {
	f := newEditorFixture(t)

	err := f.editor.UpdateContext("ctx-a", Patch{"id": "ctx-z"})
	assert.ErrorIs(t, err, ErrImmutableField)
}

func TestEditor_MissingTargetIsNoOp(t *testing.T) {
	f := newEditorFixture(t)
	before := extract(t, f.doc)

	mutations := map[string]func() error{
		"update context":   func() error { return f.editor.UpdateContext("nope", Patch{"name": "x"}) },
		"move context":     func() error { return f.editor.UpdateContextPosition("nope", domain.Positions{}) },
		"delete context":   func() error { return f.editor.DeleteContext("nope") },
		"delete group":     func() error { return f.editor.DeleteGroup("nope") },
		"add to group":     func() error { return f.editor.AddContextToGroup("nope", "ctx-a") },
		"remove from grp":  func() error { return f.editor.RemoveContextFromGroup("grp-1", "ctx-c") },
		"delete team":      func() error { return f.editor.DeleteTeam("nope") },
		"delete user":      func() error { return f.editor.DeleteUser("nope") },
		"move user":        func() error { return f.editor.UpdateUserPosition("nope", 3) },
		"delete need":      func() error { return f.editor.DeleteUserNeed("nope") },
		"rename stage":     func() error { return f.editor.UpdateFlowStage("nope", Patch{"name": "x"}) },
		"move in keyframe": func() error { return f.editor.UpdateKeyframeContextPosition("nope", "ctx-a", domain.Position{}) },
		"delete keyframe":  func() error { return f.editor.DeleteKeyframe("nope") },
	}
	for name, m := range mutations {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, m())
		})
	}

	assert.Equal(t, before, extract(t, f.doc))
	assert.False(t, f.history.CanUndo())
}

func TestEditor_DeleteContextCascades(t *testing.T) {
	f := newEditorFixture(t)

	require.NoError(t, f.editor.DeleteContext("ctx-a"))

	p := extract(t, f.doc)
	_, ok := p.Context("ctx-a")
	assert.False(t, ok)
	assert.Empty(t, p.Relationships)
	require.Len(t, p.NeedContextConnections, 1)
	assert.Equal(t, "ncc-1", p.NeedContextConnections[0].ID)
	g, _ := p.Group("grp-1")
	assert.Equal(t, []string{"ctx-b"}, g.ContextIDs)
}

func TestEditor_UndoDeleteContextRestoresEverything(t *testing.T) {
	f := newEditorFixture(t)
	before := extract(t, f.doc)

	require.NoError(t, f.editor.DeleteContext("ctx-a"))
	undone, err := f.history.Undo()
	require.NoError(t, err)
	require.True(t, undone)

	assert.Equal(t, before, extract(t, f.doc))
}

func TestEditor_DeleteTeamClearsOwnership(t *testing.T) {
	f := newEditorFixture(t)

	require.NoError(t, f.editor.DeleteTeam("team-1"))

	p := extract(t, f.doc)
	assert.Empty(t, p.Teams)
	c, _ := p.Context("ctx-a")
	assert.Empty(t, c.TeamID)
}

func TestEditor_DeleteUserCascades(t *testing.T) {
	f := newEditorFixture(t)

	require.NoError(t, f.editor.DeleteUser("usr-1"))

	p := extract(t, f.doc)
	assert.Empty(t, p.Users)
	assert.Empty(t, p.UserNeedConnections)
	assert.Len(t, p.NeedContextConnections, 2)
}

func TestEditor_DeleteUserNeedCascades(t *testing.T) {
	f := newEditorFixture(t)

	require.NoError(t, f.editor.DeleteUserNeed("need-1"))

	p := extract(t, f.doc)
	assert.Empty(t, p.UserNeeds)
	assert.Empty(t, p.UserNeedConnections)
	assert.Empty(t, p.NeedContextConnections)
	assert.Len(t, p.Users, 1)
}

func TestEditor_GroupMembership(t *testing.T) {
	f := newEditorFixture(t)

	require.NoError(t, f.editor.AddContextToGroup("grp-1", "ctx-c"))
	require.NoError(t, f.editor.AddContextToGroup("grp-1", "ctx-c"))
	proj3 := extract(t, f.doc)
	g, _ := proj3.Group("grp-1")
	assert.Equal(t, []string{"ctx-a", "ctx-b", "ctx-c"}, g.ContextIDs)

	require.NoError(t, f.editor.RemoveContextFromGroup("grp-1", "ctx-a"))
	proj4 := extract(t, f.doc)
	g, _ = proj4.Group("grp-1")
	assert.Equal(t, []string{"ctx-b", "ctx-c"}, g.ContextIDs)

	undo, _ := f.history.Depth()
	assert.Equal(t, 2, undo)
}

func TestEditor_RenameFlowStage(t *testing.T) {
	f := newEditorFixture(t)

	require.NoError(t, f.editor.UpdateFlowStage("Browse", Patch{"name": "Discover", "owner": "growth"}))

	stages := extract(t, f.doc).ViewConfig.FlowStages
	require.Len(t, stages, 2)
	assert.Equal(t, domain.FlowStageMarker{Name: "Discover", Position: 10, Owner: "growth"}, stages[0])

	_, err := f.history.Undo()
	require.NoError(t, err)
	assert.Equal(t, "Browse", extract(t, f.doc).ViewConfig.FlowStages[0].Name)
}

func TestEditor_RenameFlowStageCollision(t *testing.T) {
	f := newEditorFixture(t)

	err := f.editor.UpdateFlowStage("Browse", Patch{"name": "Checkout"})
	assert.ErrorIs(t, err, ErrStageExists)
	assert.Len(t, extract(t, f.doc).ViewConfig.FlowStages, 2)
	assert.False(t, f.history.CanUndo())
}

func TestEditor_KeyframeContextPositionKeepsOthers(t *testing.T) {
	f := newEditorFixture(t)

	require.NoError(t, f.editor.UpdateKeyframeContextPosition("kf-1", "ctx-b", domain.Position{X: 7, Y: 8}))

	kf := extract(t, f.doc).Temporal.Keyframes[0]
	assert.Equal(t, map[string]domain.Position{
		"ctx-a": {X: 1, Y: 2},
		"ctx-b": {X: 7, Y: 8},
	}, kf.Positions)
}

func TestEditor_ToggleTemporal(t *testing.T) {
	f := newEditorFixture(t)

	require.NoError(t, f.editor.ToggleTemporal())
	assert.False(t, extract(t, f.doc).Temporal.Enabled)

	require.NoError(t, f.editor.ToggleTemporal())
	assert.True(t, extract(t, f.doc).Temporal.Enabled)
}

func TestEditor_AddOverExistingUndoesToOriginal(t *testing.T) {
	f := newEditorFixture(t)
	before := extract(t, f.doc)

	require.NoError(t, f.editor.AddContext(domain.BoundedContext{ID: "ctx-b", Name: "Replaced"}))
	proj5 := extract(t, f.doc)
	c, _ := proj5.Context("ctx-b")
	assert.Equal(t, domain.BoundedContext{ID: "ctx-b", Name: "Replaced"}, c)

	_, err := f.history.Undo()
	require.NoError(t, err)
	assert.Equal(t, before, extract(t, f.doc))
}

func TestEditor_DestroyedDocReturnsError(t *testing.T) {
	f := newEditorFixture(t)
	f.doc.Destroy()

	assert.ErrorIs(t, f.editor.RenameProject("x"), replica.ErrDestroyed)
}

func TestEditor_ApplyDoesNotRecord(t *testing.T) {
	doc := populated(t)
	h := history.New()
	e := NewEditor(doc, WithRecorder(h))

	cmd := history.Command{Type: history.CmdRenameProject, Payload: history.Payload{Changes: []history.Change{{
		Collection: ColProject, ID: MetaID, Op: history.OpUpdate,
		After: history.Fields{"name": mustRaw("Applied")},
	}}}}
	require.NoError(t, e.Apply(cmd))

	assert.Equal(t, "Applied", extract(t, doc).Name)
	assert.False(t, h.CanUndo())
}

// Every mutation, undone then redone, leaves the project exactly as the
// mutation alone did; undone once, it restores the starting project.
func TestEditor_UndoRedoRoundTrip(t *testing.T) {
	mutations := map[string]func(e *Editor) error{
		"add context":      func(e *Editor) error { return e.AddContext(domain.BoundedContext{ID: "ctx-n", Name: "New"}) },
		"update context":   func(e *Editor) error { return e.UpdateContext("ctx-a", Patch{"purpose": "take orders"}) },
		"move context":     func(e *Editor) error { return e.UpdateContextPosition("ctx-a", domain.Positions{Flow: domain.Position{X: 99}}) },
		"delete context":   func(e *Editor) error { return e.DeleteContext("ctx-b") },
		"add relationship": func(e *Editor) error { return e.AddRelationship(domain.Relationship{ID: "rel-3", FromContextID: "ctx-b", ToContextID: "ctx-c", Pattern: "acl"}) },
		"update rel":       func(e *Editor) error { return e.UpdateRelationship("rel-1", Patch{"pattern": "partnership"}) },
		"delete rel":       func(e *Editor) error { return e.DeleteRelationship("rel-2") },
		"add group":        func(e *Editor) error { return e.AddGroup(domain.Group{ID: "grp-2", Label: "Edge"}) },
		"update group":     func(e *Editor) error { return e.UpdateGroup("grp-1", Patch{"color": "#ff0000"}) },
		"delete group":     func(e *Editor) error { return e.DeleteGroup("grp-1") },
		"add member":       func(e *Editor) error { return e.AddContextToGroup("grp-1", "ctx-c") },
		"remove member":    func(e *Editor) error { return e.RemoveContextFromGroup("grp-1", "ctx-b") },
		"add team":         func(e *Editor) error { return e.AddTeam(domain.Team{ID: "team-2", Name: "Platform"}) },
		"update team":      func(e *Editor) error { return e.UpdateTeam("team-1", Patch{"jiraBoard": "ORD"}) },
		"delete team":      func(e *Editor) error { return e.DeleteTeam("team-1") },
		"add user":         func(e *Editor) error { return e.AddUser(domain.User{ID: "usr-2", Name: "Admin"}) },
		"update user":      func(e *Editor) error { return e.UpdateUser("usr-1", Patch{"isExternal": true}) },
		"move user":        func(e *Editor) error { return e.UpdateUserPosition("usr-1", 80) },
		"delete user":      func(e *Editor) error { return e.DeleteUser("usr-1") },
		"add need":         func(e *Editor) error { return e.AddUserNeed(domain.UserNeed{ID: "need-2", Name: "Track"}) },
		"update need":      func(e *Editor) error { return e.UpdateUserNeed("need-1", Patch{"visibility": false}) },
		"move need":        func(e *Editor) error { return e.UpdateUserNeedPosition("need-1", 12.5) },
		"delete need":      func(e *Editor) error { return e.DeleteUserNeed("need-1") },
		"add unc":          func(e *Editor) error { return e.AddUserNeedConnection(domain.UserNeedConnection{ID: "unc-2", UserID: "usr-1", UserNeedID: "need-1"}) },
		"update unc":       func(e *Editor) error { return e.UpdateUserNeedConnection("unc-1", Patch{"notes": "primary"}) },
		"delete unc":       func(e *Editor) error { return e.DeleteUserNeedConnection("unc-1") },
		"add ncc":          func(e *Editor) error { return e.AddNeedContextConnection(domain.NeedContextConnection{ID: "ncc-3", UserNeedID: "need-1", ContextID: "ctx-c"}) },
		"update ncc":       func(e *Editor) error { return e.UpdateNeedContextConnection("ncc-1", Patch{"notes": "sync"}) },
		"delete ncc":       func(e *Editor) error { return e.DeleteNeedContextConnection("ncc-2") },
		"add stage":        func(e *Editor) error { return e.AddFlowStage(domain.FlowStageMarker{Name: "Deliver", Position: 90}) },
		"update stage":     func(e *Editor) error { return e.UpdateFlowStage("Checkout", Patch{"position": 60}) },
		"rename stage":     func(e *Editor) error { return e.UpdateFlowStage("Checkout", Patch{"name": "Pay"}) },
		"delete stage":     func(e *Editor) error { return e.DeleteFlowStage("Browse") },
		"add keyframe":     func(e *Editor) error { return e.AddKeyframe(domain.TemporalKeyframe{ID: "kf-3", Date: "2025"}) },
		"update keyframe":  func(e *Editor) error { return e.UpdateKeyframe("kf-2", Patch{"label": "north star"}) },
		"delete keyframe":  func(e *Editor) error { return e.DeleteKeyframe("kf-1") },
		"move in keyframe": func(e *Editor) error {
			return e.UpdateKeyframeContextPosition("kf-1", "ctx-a", domain.Position{X: 5, Y: 5})
		},
		"rename project":  func(e *Editor) error { return e.RenameProject("Checkout 2") },
		"toggle temporal": func(e *Editor) error { return e.ToggleTemporal() },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			f := newEditorFixture(t)
			start := extract(t, f.doc)

			require.NoError(t, mutate(f.editor))
			after := extract(t, f.doc)
			require.NotEqual(t, start, after, "mutation must change the project")

			undone, err := f.history.Undo()
			require.NoError(t, err)
			require.True(t, undone)
			assert.Equal(t, start, extract(t, f.doc))

			redone, err := f.history.Redo()
			require.NoError(t, err)
			require.True(t, redone)
			assert.Equal(t, after, extract(t, f.doc))
		})
	}
}
