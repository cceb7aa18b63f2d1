package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/sportsched/schedgraph/pkg/graph"
	"github.com/sportsched/schedgraph/pkg/knowledge"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := graph.Open(graph.Options{Persistence: false})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return NewService(knowledge.NewRepository(store, nil))
}

func seedSchedule(t *testing.T, s *Service) {
	t.Helper()
	ctx := context.Background()
	for _, id := range []string{"team-1", "team-2", "team-3", "team-4"} {
		if _, _, err := s.AddEntity(ctx, nil, AddEntityArgs{
			Type:       knowledge.EntityTeam,
			Properties: map[string]any{"id": id},
		}); err != nil {
			t.Fatal(err)
		}
	}
	if _, _, err := s.AddEntity(ctx, nil, AddEntityArgs{
		Type:       knowledge.EntityVenue,
		Properties: map[string]any{"id": "venue-1"},
	}); err != nil {
		t.Fatal(err)
	}

	_, _, err := s.ImportSchedule(ctx, nil, ImportScheduleArgs{
		Schedule: knowledge.ScheduleImport{
			ID:   "sched-1",
			Name: "Winter League",
			Games: []knowledge.GameImport{
				{ID: "game-1", HomeTeamID: "team-1", AwayTeamID: "team-2", VenueID: "venue-1",
					Date: "2024-01-10", StartTime: "14:00", EndTime: "16:00"},
				{ID: "game-2", HomeTeamID: "team-3", AwayTeamID: "team-4", VenueID: "venue-1",
					Date: "2024-01-10", StartTime: "15:00", EndTime: "17:00"},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestFindConflictsTool(t *testing.T) {
	s := newTestService(t)
	seedSchedule(t, s)

	_, result, err := s.FindConflicts(context.Background(), nil, FindConflictsArgs{
		ScheduleID: "sched-1",
		VenuesOnly: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Total != 1 || !strings.Contains(result.Conflicts[0], knowledge.ConflictVenue) {
		t.Errorf("expected one venue conflict, got %+v", result)
	}
}

func TestFindConflictsToolRejectsContradictoryFlags(t *testing.T) {
	s := newTestService(t)
	seedSchedule(t, s)

	// venues_only and teams_only together would otherwise fall through to the
	// repository's "run everything" default.
	_, _, err := s.FindConflicts(context.Background(), nil, FindConflictsArgs{
		ScheduleID: "sched-1",
		VenuesOnly: true,
		TeamsOnly:  true,
	})
	if err == nil {
		t.Error("setting both venues_only and teams_only must fail")
	}
}

func TestExploreConnectionsTool(t *testing.T) {
	s := newTestService(t)
	seedSchedule(t, s)

	_, result, err := s.ExploreConnections(context.Background(), nil, ExploreConnectionsArgs{
		EntityID: "sched-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.GraphDescription, "CONTAINS") {
		t.Errorf("expected CONTAINS edges in the description, got %q", result.GraphDescription)
	}
}
