// Package knowledge exposes domain-shaped operations over the property-graph
// store: typed and relationship-constrained queries, schedule import,
// conflict detection and aggregate insight computation.
//
// The repository holds a reference to one graph.Store and never duplicates
// its state; it translates domain intent into store primitives and
// post-processes the results.
package knowledge

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/sportsched/schedgraph/pkg/graph"
)

// Entity types of the scheduling domain.
const (
	EntitySchedule   = "schedule"
	EntityGame       = "game"
	EntityTeam       = "team"
	EntityVenue      = "venue"
	EntityConstraint = "constraint"
)

// Relationship types of the scheduling domain.
const (
	RelContains = "CONTAINS"
	RelPlayedAt = "PLAYED_AT"
	RelHomeTeam = "HOME_TEAM"
	RelAwayTeam = "AWAY_TEAM"
)

// ErrScheduleNotFound is returned by conflict detection and insight
// computation when the schedule node does not exist.
var ErrScheduleNotFound = errors.New("schedule not found")

// Repository is the domain query layer over a graph.Store.
type Repository struct {
	store  *graph.Store
	logger *slog.Logger
}

// NewRepository creates a repository bound to the given store.
func NewRepository(store *graph.Store, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{store: store, logger: logger}
}

// Store returns the underlying graph store.
func (r *Repository) Store() *graph.Store {
	return r.store
}

// AddEntity stores a domain entity as a typed node. Thin pass-through that
// keeps the boundary independent of the storage engine's vocabulary.
func (r *Repository) AddEntity(entityType string, data map[string]any) (*graph.Node, error) {
	return r.store.AddNode(entityType, data)
}

// AddRelationship links two existing entities.
func (r *Repository) AddRelationship(sourceID, relType, targetID string, properties map[string]any) (*graph.Relationship, error) {
	return r.store.AddRelationship(sourceID, relType, targetID, properties)
}

// RelConstraint requires a candidate node to have at least one connected
// relationship of the given type/direction leading to a node matching the
// target filter.
type RelConstraint struct {
	Type      string          `json:"type"`
	Direction graph.Direction `json:"direction,omitempty"`
	Target    TargetFilter    `json:"target"`
}

// TargetFilter matches the node on the far end of a constrained relationship.
type TargetFilter struct {
	Type       string         `json:"type,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Query selects entities by type, exact property filters and relationship
// constraints.
type Query struct {
	EntityType    string          `json:"entity_type"`
	Filters       map[string]any  `json:"filters,omitempty"`
	Relationships []RelConstraint `json:"relationships,omitempty"`
}

// Query resolves the typed/filtered candidates and keeps each one only if it
// satisfies every relationship constraint (AND across constraints, OR within
// a constraint's set of connected neighbors).
func (r *Repository) Query(q Query) ([]*graph.Node, error) {
	if q.EntityType == "" {
		return nil, errors.New("query entity type must not be empty")
	}

	candidates := r.store.FindNodes(q.EntityType, q.Filters)
	if len(q.Relationships) == 0 {
		return candidates, nil
	}

	result := make([]*graph.Node, 0, len(candidates))
	for _, node := range candidates {
		keep := true
		for _, constraint := range q.Relationships {
			ok, err := r.satisfiesConstraint(node, constraint)
			if err != nil {
				return nil, err
			}
			if !ok {
				keep = false
				break
			}
		}
		if keep {
			result = append(result, node)
		}
	}
	return result, nil
}

// satisfiesConstraint reports whether at least one connected relationship of
// the constrained type/direction leads to a matching target node.
func (r *Repository) satisfiesConstraint(node *graph.Node, c RelConstraint) (bool, error) {
	conn, err := r.store.ConnectedRelationships(node.ID, graph.ConnectedOptions{
		Direction: c.Direction,
		Types:     []string{c.Type},
	})
	if err != nil {
		return false, fmt.Errorf("resolving constraint %s for %s: %w", c.Type, node.ID, err)
	}

	check := func(neighborID string) bool {
		neighbor, ok := r.store.GetNode(neighborID)
		if !ok {
			return false
		}
		if c.Target.Type != "" && neighbor.Type != c.Target.Type {
			return false
		}
		return graph.MatchProperties(neighbor.Properties, c.Target.Properties)
	}

	for _, rel := range conn.Outgoing {
		if check(rel.TargetID) {
			return true, nil
		}
	}
	for _, rel := range conn.Incoming {
		if check(rel.SourceID) {
			return true, nil
		}
	}
	return false, nil
}

// scheduleGames resolves the schedule node and collects its games via a
// one-hop outgoing CONTAINS traversal.
func (r *Repository) scheduleGames(scheduleID string) ([]*graph.Node, error) {
	if _, ok := r.store.GetNode(scheduleID); !ok {
		return nil, fmt.Errorf("%w: %s", ErrScheduleNotFound, scheduleID)
	}

	traversal, err := r.store.TraverseFrom(scheduleID, graph.TraverseOptions{
		MaxDepth:          1,
		Direction:         graph.DirectionOutgoing,
		RelationshipTypes: []string{RelContains},
		NodeTypes:         []string{EntityGame},
		UniqueNodes:       true,
	})
	if err != nil {
		return nil, err
	}
	return traversal.Nodes, nil
}
