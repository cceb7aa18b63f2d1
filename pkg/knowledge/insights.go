// Aggregate insight computation: a single pass over the schedule's exported
// subgraph, plus a structural relationship summary built on traversal.
package knowledge

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/sportsched/schedgraph/pkg/graph"
)

// HomeAwayTally counts a team's home and away games.
type HomeAwayTally struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// Insights aggregates a schedule's subgraph.
type Insights struct {
	ScheduleID  string `json:"schedule_id"`
	TotalGames  int    `json:"total_games"`
	TotalTeams  int    `json:"total_teams"`
	TotalVenues int    `json:"total_venues"`

	GamesPerDay   map[string]int           `json:"games_per_day"`
	GamesPerVenue map[string]int           `json:"games_per_venue"`
	GamesPerTeam  map[string]int           `json:"games_per_team"`
	HomeAway      map[string]HomeAwayTally `json:"home_away"`

	MeanGamesPerDay   float64 `json:"mean_games_per_day"`
	StdDevGamesPerDay float64 `json:"stddev_games_per_day"`

	Conflicts   []Conflict `json:"conflicts"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// InsightOptions tunes insight generation.
type InsightOptions struct {
	// SkipConflicts leaves the Conflicts field empty.
	SkipConflicts bool
}

// GenerateInsights exports the bounded subgraph around the schedule and
// aggregates it in a single pass, then attaches the conflict report.
func (r *Repository) GenerateInsights(scheduleID string, opts InsightOptions) (*Insights, error) {
	if _, ok := r.store.GetNode(scheduleID); !ok {
		return nil, fmt.Errorf("%w: %s", ErrScheduleNotFound, scheduleID)
	}

	exported, err := r.store.Export(graph.ExportOptions{
		StartNodeID: scheduleID,
		NodeTypes:   []string{EntitySchedule, EntityGame, EntityTeam, EntityVenue},
	})
	if err != nil {
		return nil, err
	}

	insights := &Insights{
		ScheduleID:    scheduleID,
		GamesPerDay:   make(map[string]int),
		GamesPerVenue: make(map[string]int),
		GamesPerTeam:  make(map[string]int),
		HomeAway:      make(map[string]HomeAwayTally),
		GeneratedAt:   time.Now().UTC(),
	}

	gameIDs := make(map[string]struct{})
	for _, node := range exported.Nodes {
		switch node.Type {
		case EntityGame:
			insights.TotalGames++
			gameIDs[node.ID] = struct{}{}
			if day := stringProperty(node, "date"); day != "" {
				insights.GamesPerDay[day]++
			}
		case EntityTeam:
			insights.TotalTeams++
		case EntityVenue:
			insights.TotalVenues++
		}
	}

	for _, rel := range exported.Relationships {
		if _, isGame := gameIDs[rel.SourceID]; !isGame {
			continue
		}
		switch rel.Type {
		case RelPlayedAt:
			insights.GamesPerVenue[rel.TargetID]++
		case RelHomeTeam:
			insights.GamesPerTeam[rel.TargetID]++
			tally := insights.HomeAway[rel.TargetID]
			tally.Home++
			insights.HomeAway[rel.TargetID] = tally
		case RelAwayTeam:
			insights.GamesPerTeam[rel.TargetID]++
			tally := insights.HomeAway[rel.TargetID]
			tally.Away++
			insights.HomeAway[rel.TargetID] = tally
		}
	}

	if len(insights.GamesPerDay) > 0 {
		perDay := make([]float64, 0, len(insights.GamesPerDay))
		for _, count := range insights.GamesPerDay {
			perDay = append(perDay, float64(count))
		}
		insights.MeanGamesPerDay = stat.Mean(perDay, nil)
		insights.StdDevGamesPerDay = stat.PopStdDev(perDay, nil)
	}

	if !opts.SkipConflicts {
		conflicts, err := r.FindConflicts(scheduleID, ConflictOptions{})
		if err != nil {
			return nil, err
		}
		insights.Conflicts = conflicts
	}

	return insights, nil
}

// AnalyzeOptions bounds a relationship analysis.
type AnalyzeOptions struct {
	EntityID          string          `json:"entity_id"`
	RelationshipTypes []string        `json:"relationship_types,omitempty"`
	Direction         graph.Direction `json:"direction,omitempty"`
	MaxDepth          int             `json:"max_depth,omitempty"`
}

// RelationshipAnalysis is a structural summary of a node's neighborhood,
// not a conflict check.
type RelationshipAnalysis struct {
	EntityID            string         `json:"entity_id"`
	TotalNodes          int            `json:"total_nodes"`
	TotalRelationships  int            `json:"total_relationships"`
	RelationshipsByType map[string]int `json:"relationships_by_type"`
	NodesByType         map[string]int `json:"nodes_by_type"`
	MaxPathLength       int            `json:"max_path_length"`
}

// AnalyzeRelationships wraps a traversal and reduces its output into counts
// by type and the maximum observed path length.
func (r *Repository) AnalyzeRelationships(opts AnalyzeOptions) (*RelationshipAnalysis, error) {
	maxDepth := opts.MaxDepth
	if maxDepth < 1 {
		maxDepth = 2
	}

	traversal, err := r.store.TraverseFrom(opts.EntityID, graph.TraverseOptions{
		MaxDepth:          maxDepth,
		Direction:         opts.Direction,
		RelationshipTypes: opts.RelationshipTypes,
		UniqueNodes:       true,
	})
	if err != nil {
		return nil, err
	}

	analysis := &RelationshipAnalysis{
		EntityID:            opts.EntityID,
		TotalNodes:          len(traversal.Nodes),
		TotalRelationships:  len(traversal.Relationships),
		RelationshipsByType: make(map[string]int),
		NodesByType:         make(map[string]int),
	}
	for _, rel := range traversal.Relationships {
		analysis.RelationshipsByType[rel.Type]++
	}
	for _, node := range traversal.Nodes {
		analysis.NodesByType[node.Type]++
	}
	for _, path := range traversal.Paths {
		if hops := len(path.Relationships); hops > analysis.MaxPathLength {
			analysis.MaxPathLength = hops
		}
	}
	return analysis, nil
}
