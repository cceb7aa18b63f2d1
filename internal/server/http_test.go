package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/sportsched/schedgraph/pkg/graph"
	"github.com/sportsched/schedgraph/pkg/knowledge"
)

const testAddr = "http://localhost:9193"

func startTestServer(t *testing.T) *Server {
	t.Helper()

	store, err := graph.Open(graph.Options{Persistence: false})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	repo := knowledge.NewRepository(store, nil)
	s, err := NewServer(repo, ":9193", "test-secret-token")
	if err != nil {
		t.Fatal(err)
	}

	errCh := make(chan error)
	go func() {
		errCh <- s.Run()
	}()
	t.Cleanup(func() {
		s.Shutdown()
		<-errCh
	})

	time.Sleep(500 * time.Millisecond)
	return s
}

func authedRequest(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, testAddr+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Add("Authorization", "Bearer test-secret-token")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestHealthzAndAuth(t *testing.T) {
	startTestServer(t)

	resp, err := http.Get(testAddr + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("healthz expected 200, got %d", resp.StatusCode)
	}

	resp, err = http.Get(testAddr + "/system/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 401 {
		t.Errorf("protected expected 401, got %d", resp.StatusCode)
	}

	resp = authedRequest(t, http.MethodGet, "/system/stats", nil)
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("protected with token expected 200, got %d", resp.StatusCode)
	}
}

func TestNodeLifecycleOverHTTP(t *testing.T) {
	startTestServer(t)

	resp := authedRequest(t, http.MethodPost, "/graph/nodes", NodeCreateRequest{
		Type:       knowledge.EntityTeam,
		Properties: map[string]any{"id": "team-1", "name": "Falcons"},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("node create expected 201, got %d", resp.StatusCode)
	}

	resp = authedRequest(t, http.MethodGet, "/graph/nodes/team-1", nil)
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("node get expected 200, got %d", resp.StatusCode)
	}
	var node graph.Node
	if err := json.NewDecoder(resp.Body).Decode(&node); err != nil {
		t.Fatal(err)
	}
	if node.Properties["name"] != "Falcons" {
		t.Errorf("unexpected node payload: %+v", node)
	}

	// Duplicate caller-supplied id is a 409.
	resp = authedRequest(t, http.MethodPost, "/graph/nodes", NodeCreateRequest{
		Type:       knowledge.EntityTeam,
		Properties: map[string]any{"id": "team-1"},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate id expected 409, got %d", resp.StatusCode)
	}

	resp = authedRequest(t, http.MethodGet, "/graph/nodes/ghost", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown node expected 404, got %d", resp.StatusCode)
	}
}

func TestScheduleImportAndConflictsOverHTTP(t *testing.T) {
	s := startTestServer(t)

	for _, id := range []string{"team-1", "team-2", "team-3", "team-4"} {
		if _, err := s.repo.AddEntity(knowledge.EntityTeam, map[string]any{"id": id}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.repo.AddEntity(knowledge.EntityVenue, map[string]any{"id": "venue-1"}); err != nil {
		t.Fatal(err)
	}

	resp := authedRequest(t, http.MethodPost, "/schedules/import", knowledge.ScheduleImport{
		ID:   "sched-1",
		Name: "Winter League",
		Games: []knowledge.GameImport{
			{ID: "game-1", HomeTeamID: "team-1", AwayTeamID: "team-2", VenueID: "venue-1",
				Date: "2024-01-10", StartTime: "14:00", EndTime: "16:00"},
			{ID: "game-2", HomeTeamID: "team-3", AwayTeamID: "team-4", VenueID: "venue-1",
				Date: "2024-01-10", StartTime: "15:00", EndTime: "17:00"},
		},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("import expected 201, got %d", resp.StatusCode)
	}

	resp = authedRequest(t, http.MethodGet, "/schedules/sched-1/conflicts?teams=false", nil)
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("conflicts expected 200, got %d", resp.StatusCode)
	}
	var report struct {
		Conflicts []knowledge.Conflict `json:"conflicts"`
		Count     int                  `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.Count != 1 || report.Conflicts[0].Type != knowledge.ConflictVenue {
		t.Errorf("expected one venue conflict, got %+v", report)
	}

	// Disabling both checks is contradictory, not "run everything".
	resp = authedRequest(t, http.MethodGet, "/schedules/sched-1/conflicts?venues=false&teams=false", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("disabling every check expected 400, got %d", resp.StatusCode)
	}

	resp = authedRequest(t, http.MethodGet, "/schedules/ghost/insights", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown schedule expected 404, got %d", resp.StatusCode)
	}
}
