// Conflict detection over an already-built schedule graph: venue
// double-booking and team double-booking.
//
// The detector sorts each resource's games by (date, startTime) and compares
// immediate neighbors only. This is known to miss certain non-adjacent
// overlaps (a game fully nested inside a longer one is only compared against
// its sort neighbor). Downstream consumers rely on this exact behaviour; do
// not upgrade to a full pairwise sweep without flagging the change.
package knowledge

import (
	"fmt"
	"sort"
	"time"

	"github.com/sportsched/schedgraph/pkg/graph"
)

// Conflict kinds.
const (
	ConflictVenue = "VENUE_CONFLICT"
	ConflictTeam  = "TEAM_CONFLICT"
)

// Conflict is a detected scheduling overlap: two games plus the shared
// resource (venue or team).
type Conflict struct {
	Type         string   `json:"type"`
	ResourceType string   `json:"resource_type"`
	ResourceID   string   `json:"resource_id"`
	GameIDs      []string `json:"game_ids"` // earlier game first
	Date         string   `json:"date"`
	Message      string   `json:"message"`
}

// ConflictOptions selects which checks run. The zero value runs every check.
type ConflictOptions struct {
	CheckVenues bool
	CheckTeams  bool
}

// FindConflicts collects the schedule's games and runs the venue and team
// double-booking checks independently. Fails with ErrScheduleNotFound when
// the schedule node does not exist.
func (r *Repository) FindConflicts(scheduleID string, opts ConflictOptions) ([]Conflict, error) {
	games, err := r.scheduleGames(scheduleID)
	if err != nil {
		return nil, err
	}

	if !opts.CheckVenues && !opts.CheckTeams {
		opts.CheckVenues = true
		opts.CheckTeams = true
	}

	conflicts := []Conflict{}
	if opts.CheckVenues {
		groups, err := r.groupGamesBy(games, []string{RelPlayedAt})
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, overlapsByResource(groups, ConflictVenue, EntityVenue)...)
	}
	if opts.CheckTeams {
		groups, err := r.groupGamesBy(games, []string{RelHomeTeam, RelAwayTeam})
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, overlapsByResource(groups, ConflictTeam, EntityTeam)...)
	}

	r.logger.Info("conflict detection finished",
		"schedule_id", scheduleID,
		"games", len(games),
		"conflicts", len(conflicts),
	)
	return conflicts, nil
}

// groupGamesBy buckets games by the target of their outgoing relationships of
// the given types. A game with edges to several resources (home and away
// team) contributes to each bucket.
func (r *Repository) groupGamesBy(games []*graph.Node, relTypes []string) (map[string][]*graph.Node, error) {
	groups := make(map[string][]*graph.Node)
	for _, game := range games {
		conn, err := r.store.ConnectedRelationships(game.ID, graph.ConnectedOptions{
			Direction: graph.DirectionOutgoing,
			Types:     relTypes,
		})
		if err != nil {
			return nil, err
		}
		for _, rel := range conn.Outgoing {
			groups[rel.TargetID] = append(groups[rel.TargetID], game)
		}
	}
	return groups, nil
}

// overlapsByResource sorts each resource's games by start time and emits a
// conflict for every adjacent pair whose intervals overlap.
func overlapsByResource(groups map[string][]*graph.Node, conflictType, resourceType string) []Conflict {
	resourceIDs := make([]string, 0, len(groups))
	for id := range groups {
		resourceIDs = append(resourceIDs, id)
	}
	sort.Strings(resourceIDs)

	var conflicts []Conflict
	for _, resourceID := range resourceIDs {
		games := groups[resourceID]
		sort.SliceStable(games, func(i, j int) bool {
			si, _ := gameInterval(games[i])
			sj, _ := gameInterval(games[j])
			return si.Before(sj)
		})

		for i := 1; i < len(games); i++ {
			prev, cur := games[i-1], games[i]
			_, prevEnd := gameInterval(prev)
			curStart, _ := gameInterval(cur)
			if prevEnd.After(curStart) {
				conflicts = append(conflicts, Conflict{
					Type:         conflictType,
					ResourceType: resourceType,
					ResourceID:   resourceID,
					GameIDs:      []string{prev.ID, cur.ID},
					Date:         stringProperty(cur, "date"),
					Message: fmt.Sprintf("%s %s double-booked: game %s overlaps game %s",
						resourceType, resourceID, prev.ID, cur.ID),
				})
			}
		}
	}
	return conflicts
}

// gameInterval computes the occupied interval of a game. A missing startTime
// defaults to the start of the day and a missing endTime to the end of the
// day, so a game with only a date occupies the whole day.
func gameInterval(game *graph.Node) (start, end time.Time) {
	day, err := time.Parse("2006-01-02", stringProperty(game, "date"))
	if err != nil {
		day = time.Time{}
	}

	start = day
	if clock, ok := parseClock(stringProperty(game, "startTime")); ok {
		start = day.Add(clock)
	}

	end = day.Add(24*time.Hour - time.Second)
	if clock, ok := parseClock(stringProperty(game, "endTime")); ok {
		end = day.Add(clock)
	}
	return start, end
}

// parseClock turns "15:04" into an offset from midnight.
func parseClock(s string) (time.Duration, bool) {
	if s == "" {
		return 0, false
	}
	clock, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute, true
}

func stringProperty(node *graph.Node, key string) string {
	s, _ := node.Properties[key].(string)
	return s
}
