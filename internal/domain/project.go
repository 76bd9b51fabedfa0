package domain

import "time"

// Project is the full domain document.
type Project struct {
	ID                     string                  `json:"id"`
	Name                   string                  `json:"name"`
	Description            string                  `json:"description,omitempty"`
	CreatedAt              *time.Time              `json:"createdAt,omitempty"`
	UpdatedAt              *time.Time              `json:"updatedAt,omitempty"`
	Contexts               []BoundedContext        `json:"contexts"`
	Relationships          []Relationship          `json:"relationships"`
	Groups                 []Group                 `json:"groups"`
	Users                  []User                  `json:"users"`
	UserNeeds              []UserNeed              `json:"userNeeds"`
	UserNeedConnections    []UserNeedConnection    `json:"userNeedConnections"`
	NeedContextConnections []NeedContextConnection `json:"needContextConnections"`
	Teams                  []Team                  `json:"teams"`
	ViewConfig             ViewConfig              `json:"viewConfig"`
	Temporal               *TemporalState          `json:"temporal,omitempty"`
}

// Position is a point on one of the canvas views.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Positions holds a context's placement in every view. Flow and Strategic
// views only use X; Shared only uses Y (the value-chain height).
type Positions struct {
	Flow         Position `json:"flow"`
	Strategic    Position `json:"strategic"`
	Distillation Position `json:"distillation"`
	Shared       Position `json:"shared"`
}

// CodeSize describes the size of the code behind a context.
type CodeSize struct {
	LOC    int    `json:"loc,omitempty"`
	Bucket string `json:"bucket,omitempty"`
}

// BoundedContext is a node on the map.
type BoundedContext struct {
	ID                      string    `json:"id"`
	Name                    string    `json:"name"`
	Purpose                 string    `json:"purpose,omitempty"`
	StrategicClassification string    `json:"strategicClassification,omitempty"`
	Ownership               string    `json:"ownership,omitempty"`
	BoundaryIntegrity       string    `json:"boundaryIntegrity,omitempty"`
	BoundaryNotes           string    `json:"boundaryNotes,omitempty"`
	EvolutionStage          string    `json:"evolutionStage,omitempty"`
	Positions               Positions `json:"positions"`
	CodeSize                *CodeSize `json:"codeSize,omitempty"`
	IsLegacy                bool      `json:"isLegacy,omitempty"`
	IsExternal              bool      `json:"isExternal,omitempty"`
	TeamID                  string    `json:"teamId,omitempty"`
	Notes                   string    `json:"notes,omitempty"`
}

// Relationship is a directed edge between two contexts.
type Relationship struct {
	ID                string `json:"id"`
	FromContextID     string `json:"fromContextId"`
	ToContextID       string `json:"toContextId"`
	Pattern           string `json:"pattern"`
	CommunicationMode string `json:"communicationMode,omitempty"`
	Description       string `json:"description,omitempty"`
}

// Group is a labelled set of contexts.
type Group struct {
	ID         string   `json:"id"`
	Label      string   `json:"label"`
	Color      string   `json:"color,omitempty"`
	ContextIDs []string `json:"contextIds"`
	Notes      string   `json:"notes,omitempty"`
}

// User is an actor placed along the value stream.
type User struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Position    float64 `json:"position"`
	IsExternal  bool    `json:"isExternal,omitempty"`
}

// UserNeed is something a user needs from the system.
type UserNeed struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Position    float64 `json:"position"`
	Visibility  bool    `json:"visibility,omitempty"`
}

// UserNeedConnection links a user to a need.
type UserNeedConnection struct {
	ID         string `json:"id"`
	UserID     string `json:"userId"`
	UserNeedID string `json:"userNeedId"`
	Notes      string `json:"notes,omitempty"`
}

// NeedContextConnection links a need to the context that serves it.
type NeedContextConnection struct {
	ID         string `json:"id"`
	UserNeedID string `json:"userNeedId"`
	ContextID  string `json:"contextId"`
	Notes      string `json:"notes,omitempty"`
}

// Team owns contexts.
type Team struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	JiraBoard    string `json:"jiraBoard,omitempty"`
	TopologyType string `json:"topologyType,omitempty"`
}

// FlowStageMarker labels a segment of the value stream. Stage names are
// unique within a project.
type FlowStageMarker struct {
	Name        string  `json:"name"`
	Position    float64 `json:"position"`
	Description string  `json:"description,omitempty"`
	Owner       string  `json:"owner,omitempty"`
	Notes       string  `json:"notes,omitempty"`
}

// ViewConfig holds view-level settings.
type ViewConfig struct {
	FlowStages []FlowStageMarker `json:"flowStages"`
}

// TemporalState holds the evolution timeline.
type TemporalState struct {
	Enabled   bool               `json:"enabled"`
	Keyframes []TemporalKeyframe `json:"keyframes"`
}

// TemporalKeyframe captures context placement at a point in time.
type TemporalKeyframe struct {
	ID               string              `json:"id"`
	Date             string              `json:"date"`
	Label            string              `json:"label,omitempty"`
	Positions        map[string]Position `json:"positions"`
	ActiveContextIDs []string            `json:"activeContextIds"`
}

// Context returns the context with the given id.
func (p *Project) Context(id string) (BoundedContext, bool) {
	for _, c := range p.Contexts {
		if c.ID == id {
			return c, true
		}
	}
	return BoundedContext{}, false
}

// Group returns the group with the given id.
func (p *Project) Group(id string) (Group, bool) {
	for _, g := range p.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return Group{}, false
}

// Normalize replaces nil collections with empty ones so the JSON form is
// stable regardless of how the project was built.
func (p *Project) Normalize() {
	if p.Contexts == nil {
		p.Contexts = []BoundedContext{}
	}
	if p.Relationships == nil {
		p.Relationships = []Relationship{}
	}
	if p.Groups == nil {
		p.Groups = []Group{}
	}
	if p.Users == nil {
		p.Users = []User{}
	}
	if p.UserNeeds == nil {
		p.UserNeeds = []UserNeed{}
	}
	if p.UserNeedConnections == nil {
		p.UserNeedConnections = []UserNeedConnection{}
	}
	if p.NeedContextConnections == nil {
		p.NeedContextConnections = []NeedContextConnection{}
	}
	if p.Teams == nil {
		p.Teams = []Team{}
	}
	if p.ViewConfig.FlowStages == nil {
		p.ViewConfig.FlowStages = []FlowStageMarker{}
	}
	for i := range p.Groups {
		if p.Groups[i].ContextIDs == nil {
			p.Groups[i].ContextIDs = []string{}
		}
	}
	if p.Temporal != nil && p.Temporal.Keyframes == nil {
		p.Temporal.Keyframes = []TemporalKeyframe{}
	}
}
