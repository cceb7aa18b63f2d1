package mcp

import (
	"github.com/sportsched/schedgraph/pkg/knowledge"
)

// --- Tool Arguments ---

type AddEntityArgs struct {
	Type       string         `json:"type" jsonschema:"Entity type: schedule, game, team, venue or constraint,required"`
	Properties map[string]any `json:"properties,omitempty" jsonschema:"Arbitrary properties. Set 'id' to choose the entity id, otherwise one is generated"`
}

type AddEntityResult struct {
	EntityID string `json:"entity_id"`
	Status   string `json:"status"`
}

type LinkEntitiesArgs struct {
	SourceID   string         `json:"source_id" jsonschema:"required"`
	TargetID   string         `json:"target_id" jsonschema:"required"`
	Relation   string         `json:"relation" jsonschema:"The relationship type (e.g. 'CONTAINS', 'PLAYED_AT', 'HOME_TEAM', 'AWAY_TEAM'),required"`
	Properties map[string]any `json:"properties,omitempty"`
}

type LinkEntitiesResult struct {
	RelationshipID string `json:"relationship_id"`
}

type QueryEntitiesArgs struct {
	EntityType    string                    `json:"entity_type" jsonschema:"Type of entity to search,required"`
	Filters       map[string]any            `json:"filters,omitempty" jsonschema:"Exact-match property filters"`
	Relationships []knowledge.RelConstraint `json:"relationships,omitempty" jsonschema:"Relationship constraints; every constraint must hold (AND)"`
	Limit         int                       `json:"limit,omitempty" jsonschema:"Max number of results (default 25)"`
}

type QueryEntitiesResult struct {
	Entities []string `json:"entities"` // Formatted strings for the LLM
	Total    int      `json:"total"`
}

type ImportScheduleArgs struct {
	Schedule knowledge.ScheduleImport `json:"schedule" jsonschema:"The schedule and its games,required"`
}

type ImportScheduleResult struct {
	ScheduleID           string `json:"schedule_id"`
	GamesImported        int    `json:"games_imported"`
	RelationshipsCreated int    `json:"relationships_created"`
}

type FindConflictsArgs struct {
	ScheduleID string `json:"schedule_id" jsonschema:"required"`
	VenuesOnly bool   `json:"venues_only,omitempty" jsonschema:"Check venue double-bookings only"`
	TeamsOnly  bool   `json:"teams_only,omitempty" jsonschema:"Check team double-bookings only"`
}

type FindConflictsResult struct {
	Conflicts []string `json:"conflicts"` // Human-readable conflict descriptions
	Total     int      `json:"total"`
}

type ScheduleInsightsArgs struct {
	ScheduleID    string `json:"schedule_id" jsonschema:"required"`
	SkipConflicts bool   `json:"skip_conflicts,omitempty"`
}

type ExploreConnectionsArgs struct {
	EntityID  string   `json:"entity_id" jsonschema:"required"`
	Relations []string `json:"relations,omitempty" jsonschema:"Filter by relationship types (e.g. ['CONTAINS'])"`
	Depth     int      `json:"depth,omitempty" jsonschema:"Traversal depth (default 1)"`
}

type ExploreConnectionsResult struct {
	GraphDescription string `json:"graph_description"` // Textual description of connections
}
