// Schedule import: builds the schedule subgraph (schedule, games, CONTAINS,
// PLAYED_AT, HOME_TEAM, AWAY_TEAM) from a flat document. Teams and venues are
// referenced by id and must already exist; a dangling reference fails the
// import at the offending game.
package knowledge

import (
	"errors"
	"fmt"
)

// GameImport describes one game in a schedule document.
type GameImport struct {
	ID         string         `json:"id,omitempty"`
	HomeTeamID string         `json:"home_team_id"`
	AwayTeamID string         `json:"away_team_id"`
	VenueID    string         `json:"venue_id,omitempty"`
	Date       string         `json:"date"`       // 2006-01-02
	StartTime  string         `json:"start_time"` // 15:04, optional
	EndTime    string         `json:"end_time"`   // 15:04, optional
	Properties map[string]any `json:"properties,omitempty"`
}

// ScheduleImport is a complete schedule document.
type ScheduleImport struct {
	ID     string       `json:"id,omitempty"`
	Name   string       `json:"name"`
	Season string       `json:"season,omitempty"`
	Games  []GameImport `json:"games"`
}

// ImportResult summarizes a successful import.
type ImportResult struct {
	ScheduleID           string `json:"schedule_id"`
	GamesImported        int    `json:"games_imported"`
	RelationshipsCreated int    `json:"relationships_created"`
}

// ImportSchedule creates the schedule node and its game subgraph.
func (r *Repository) ImportSchedule(doc ScheduleImport) (*ImportResult, error) {
	if doc.Name == "" {
		return nil, errors.New("schedule name must not be empty")
	}

	scheduleProps := map[string]any{"name": doc.Name}
	if doc.ID != "" {
		scheduleProps["id"] = doc.ID
	}
	if doc.Season != "" {
		scheduleProps["season"] = doc.Season
	}
	schedule, err := r.store.AddNode(EntitySchedule, scheduleProps)
	if err != nil {
		return nil, fmt.Errorf("creating schedule node: %w", err)
	}

	result := &ImportResult{ScheduleID: schedule.ID}
	for i, game := range doc.Games {
		if game.HomeTeamID == "" || game.AwayTeamID == "" {
			return result, fmt.Errorf("game %d: home and away team ids are required", i)
		}

		props := make(map[string]any, len(game.Properties)+4)
		for k, v := range game.Properties {
			props[k] = v
		}
		if game.ID != "" {
			props["id"] = game.ID
		}
		props["date"] = game.Date
		if game.StartTime != "" {
			props["startTime"] = game.StartTime
		}
		if game.EndTime != "" {
			props["endTime"] = game.EndTime
		}

		node, err := r.store.AddNode(EntityGame, props)
		if err != nil {
			return result, fmt.Errorf("game %d: %w", i, err)
		}

		links := []struct {
			src, typ, dst string
		}{
			{schedule.ID, RelContains, node.ID},
			{node.ID, RelHomeTeam, game.HomeTeamID},
			{node.ID, RelAwayTeam, game.AwayTeamID},
		}
		if game.VenueID != "" {
			links = append(links, struct{ src, typ, dst string }{node.ID, RelPlayedAt, game.VenueID})
		}
		for _, l := range links {
			if _, err := r.store.AddRelationship(l.src, l.typ, l.dst, nil); err != nil {
				return result, fmt.Errorf("game %s: %w", node.ID, err)
			}
			result.RelationshipsCreated++
		}
		result.GamesImported++
	}

	r.logger.Info("schedule imported",
		"schedule_id", schedule.ID,
		"games", result.GamesImported,
		"relationships", result.RelationshipsCreated,
	)
	return result, nil
}
