package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sportsched/schedgraph/pkg/knowledge"
)

func NewMCPServer(repo *knowledge.Repository) *mcp.Server {
	service := NewService(repo)

	s := mcp.NewServer(&mcp.Implementation{
		Name:    "SchedGraph Knowledge",
		Version: "0.3.0",
	}, nil)

	// Register tools using the generic AddTool which inspects structs.

	mcp.AddTool(s, &mcp.Tool{
		Name:        "add_entity",
		Description: "Create a scheduling entity (team, venue, schedule, game or constraint) with arbitrary properties.",
	}, service.AddEntity)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "link_entities",
		Description: "Create a typed relationship between two existing entities (e.g. CONTAINS, PLAYED_AT, HOME_TEAM, AWAY_TEAM).",
	}, service.LinkEntities)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "query_entities",
		Description: "Find entities by type, exact property filters, and relationship constraints (e.g. 'games played at venues in Springfield').",
	}, service.QueryEntities)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "import_schedule",
		Description: "Import a whole schedule: games with home/away teams, venues and times. Teams and venues must already exist.",
	}, service.ImportSchedule)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "find_conflicts",
		Description: "Detect venue and team double-bookings within a schedule.",
	}, service.FindConflicts)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "schedule_insights",
		Description: "Aggregate statistics for a schedule: games per day/venue/team, home/away balance, plus detected conflicts.",
	}, service.ScheduleInsights)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "explore_connections",
		Description: "Explore the graph neighborhood of a specific entity to understand its context.",
	}, service.ExploreConnections)

	return s
}
