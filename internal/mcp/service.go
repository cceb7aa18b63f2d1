package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sportsched/schedgraph/pkg/graph"
	"github.com/sportsched/schedgraph/pkg/knowledge"
)

type Service struct {
	repo *knowledge.Repository
}

func NewService(repo *knowledge.Repository) *Service {
	return &Service{repo: repo}
}

// --- Tool Handlers ---

func (s *Service) AddEntity(ctx context.Context, req *mcp.CallToolRequest, args AddEntityArgs) (*mcp.CallToolResult, AddEntityResult, error) {
	node, err := s.repo.AddEntity(args.Type, args.Properties)
	if err != nil {
		return nil, AddEntityResult{}, err
	}
	return nil, AddEntityResult{EntityID: node.ID, Status: "created"}, nil
}

func (s *Service) LinkEntities(ctx context.Context, req *mcp.CallToolRequest, args LinkEntitiesArgs) (*mcp.CallToolResult, LinkEntitiesResult, error) {
	rel, err := s.repo.AddRelationship(args.SourceID, args.Relation, args.TargetID, args.Properties)
	if err != nil {
		return nil, LinkEntitiesResult{}, err
	}
	return nil, LinkEntitiesResult{RelationshipID: rel.ID}, nil
}

func (s *Service) QueryEntities(ctx context.Context, req *mcp.CallToolRequest, args QueryEntitiesArgs) (*mcp.CallToolResult, QueryEntitiesResult, error) {
	nodes, err := s.repo.Query(knowledge.Query{
		EntityType:    args.EntityType,
		Filters:       args.Filters,
		Relationships: args.Relationships,
	})
	if err != nil {
		return nil, QueryEntitiesResult{}, err
	}

	limit := args.Limit
	if limit <= 0 {
		limit = 25
	}

	result := QueryEntitiesResult{Total: len(nodes)}
	for i, node := range nodes {
		if i >= limit {
			break
		}
		result.Entities = append(result.Entities, formatNode(node))
	}
	return nil, result, nil
}

func (s *Service) ImportSchedule(ctx context.Context, req *mcp.CallToolRequest, args ImportScheduleArgs) (*mcp.CallToolResult, ImportScheduleResult, error) {
	res, err := s.repo.ImportSchedule(args.Schedule)
	if err != nil {
		return nil, ImportScheduleResult{}, err
	}
	return nil, ImportScheduleResult{
		ScheduleID:           res.ScheduleID,
		GamesImported:        res.GamesImported,
		RelationshipsCreated: res.RelationshipsCreated,
	}, nil
}

func (s *Service) FindConflicts(ctx context.Context, req *mcp.CallToolRequest, args FindConflictsArgs) (*mcp.CallToolResult, FindConflictsResult, error) {
	if args.VenuesOnly && args.TeamsOnly {
		return nil, FindConflictsResult{}, fmt.Errorf("venues_only and teams_only are mutually exclusive; omit both to run every check")
	}
	opts := knowledge.ConflictOptions{
		CheckVenues: !args.TeamsOnly,
		CheckTeams:  !args.VenuesOnly,
	}

	conflicts, err := s.repo.FindConflicts(args.ScheduleID, opts)
	if err != nil {
		return nil, FindConflictsResult{}, err
	}

	result := FindConflictsResult{Total: len(conflicts)}
	if len(conflicts) == 0 {
		result.Conflicts = []string{"No conflicts found."}
		return nil, result, nil
	}
	for _, c := range conflicts {
		result.Conflicts = append(result.Conflicts,
			fmt.Sprintf("[%s] %s on %s", c.Type, c.Message, c.Date))
	}
	return nil, result, nil
}

func (s *Service) ScheduleInsights(ctx context.Context, req *mcp.CallToolRequest, args ScheduleInsightsArgs) (*mcp.CallToolResult, knowledge.Insights, error) {
	insights, err := s.repo.GenerateInsights(args.ScheduleID, knowledge.InsightOptions{
		SkipConflicts: args.SkipConflicts,
	})
	if err != nil {
		return nil, knowledge.Insights{}, err
	}
	return nil, *insights, nil
}

func (s *Service) ExploreConnections(ctx context.Context, req *mcp.CallToolRequest, args ExploreConnectionsArgs) (*mcp.CallToolResult, ExploreConnectionsResult, error) {
	depth := args.Depth
	if depth <= 0 {
		depth = 1
	}

	traversal, err := s.repo.Store().TraverseFrom(args.EntityID, graph.TraverseOptions{
		MaxDepth:          depth,
		Direction:         graph.DirectionBoth,
		RelationshipTypes: args.Relations,
		UniqueNodes:       true,
		IncludeStartNode:  true,
	})
	if err != nil {
		return nil, ExploreConnectionsResult{}, err
	}

	// Format as a readable description for the LLM.
	var sb strings.Builder
	if len(traversal.Relationships) == 0 {
		sb.WriteString(fmt.Sprintf("No connections found around '%s'\n", args.EntityID))
	} else {
		sb.WriteString(fmt.Sprintf("Graph context around '%s' (Depth %d):\n", args.EntityID, depth))
		for _, rel := range traversal.Relationships {
			sb.WriteString(fmt.Sprintf("- %s --(%s)--> %s\n", rel.SourceID, rel.Type, rel.TargetID))
		}

		sb.WriteString("\nNodes details:\n")
		for _, node := range traversal.Nodes {
			// Mark the root node visually
			prefix := "- "
			if node.ID == args.EntityID {
				prefix = "* "
			}
			sb.WriteString(prefix + formatNode(node) + "\n")
		}
	}

	return nil, ExploreConnectionsResult{GraphDescription: sb.String()}, nil
}

// formatNode renders a node as a compact one-liner.
func formatNode(node *graph.Node) string {
	name, _ := node.Properties["name"].(string)
	if name != "" {
		return fmt.Sprintf("[%s: %s] %s", node.Type, node.ID, name)
	}
	return fmt.Sprintf("[%s: %s]", node.Type, node.ID)
}
