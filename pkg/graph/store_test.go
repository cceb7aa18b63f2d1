package graph

import (
	"errors"
	"testing"
)

func newMemoryStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{Persistence: false})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddAndGetNode(t *testing.T) {
	s := newMemoryStore(t)

	node, err := s.AddNode("team", map[string]any{"name": "Falcons", "division": "east"})
	if err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}
	if node.ID == "" {
		t.Fatal("expected a generated id")
	}
	if node.Properties["id"] != node.ID {
		t.Errorf("properties should mirror the id, got %v", node.Properties["id"])
	}

	got, ok := s.GetNode(node.ID)
	if !ok {
		t.Fatal("GetNode should find the node")
	}
	if got.Type != "team" || got.Properties["name"] != "Falcons" {
		t.Errorf("unexpected node: %+v", got)
	}

	if _, ok := s.GetNode("missing"); ok {
		t.Error("GetNode for an absent id should report not found, not a node")
	}
}

func TestAddNodeCallerSuppliedID(t *testing.T) {
	s := newMemoryStore(t)

	node, err := s.AddNode("venue", map[string]any{"id": "venue-1", "name": "Main Arena"})
	if err != nil {
		t.Fatal(err)
	}
	if node.ID != "venue-1" {
		t.Errorf("expected caller-supplied id, got %s", node.ID)
	}

	// A second node with the same id must be rejected: silently overwriting
	// would leave stale index entries for the old property values.
	_, err = s.AddNode("venue", map[string]any{"id": "venue-1", "name": "Other Arena"})
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}

	got, _ := s.GetNode("venue-1")
	if got.Properties["name"] != "Main Arena" {
		t.Error("rejected add must not modify the existing node")
	}
}

func TestAddRelationshipReferentialIntegrity(t *testing.T) {
	s := newMemoryStore(t)

	a, _ := s.AddNode("team", map[string]any{"id": "team-a"})
	b, _ := s.AddNode("team", map[string]any{"id": "team-b"})

	rel, err := s.AddRelationship(a.ID, "RIVAL_OF", b.ID, map[string]any{"since": 2020})
	if err != nil {
		t.Fatalf("AddRelationship failed: %v", err)
	}

	if _, ok := s.GetNode(rel.SourceID); !ok {
		t.Error("source must resolve via GetNode")
	}
	if _, ok := s.GetNode(rel.TargetID); !ok {
		t.Error("target must resolve via GetNode")
	}

	if _, err := s.AddRelationship(a.ID, "RIVAL_OF", "ghost", nil); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("unknown target should fail with ErrNodeNotFound, got %v", err)
	}
	if _, err := s.AddRelationship("ghost", "RIVAL_OF", b.ID, nil); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("unknown source should fail with ErrNodeNotFound, got %v", err)
	}
	if s.RelationshipCount() != 1 {
		t.Errorf("failed adds must not be stored, have %d relationships", s.RelationshipCount())
	}
}

func TestFindNodesIndexConsistency(t *testing.T) {
	s := newMemoryStore(t)

	s.AddNode("game", map[string]any{"id": "game-1", "date": "2024-01-10", "round": 1})
	s.AddNode("game", map[string]any{"id": "game-2", "date": "2024-01-10", "round": 2})
	s.AddNode("game", map[string]any{"id": "game-3", "date": "2024-01-11", "round": 1})
	s.AddNode("team", map[string]any{"id": "team-1", "date": "2024-01-10"})

	all := s.FindNodes("game", nil)
	if len(all) != 3 {
		t.Fatalf("expected 3 games, got %d", len(all))
	}

	sameDay := s.FindNodes("game", map[string]any{"date": "2024-01-10"})
	if len(sameDay) != 2 {
		t.Fatalf("expected 2 games on 2024-01-10, got %d", len(sameDay))
	}

	// Conjunction of filters intersects the index buckets.
	one := s.FindNodes("game", map[string]any{"date": "2024-01-10", "round": 2})
	if len(one) != 1 || one[0].ID != "game-2" {
		t.Fatalf("expected exactly game-2, got %v", one)
	}

	// A filter value with no index entry short-circuits to empty.
	if got := s.FindNodes("game", map[string]any{"date": "2030-01-01"}); len(got) != 0 {
		t.Errorf("expected no games, got %d", len(got))
	}

	// Every node is findable by each of its exact property values.
	for _, n := range all {
		for key, value := range n.Properties {
			found := false
			for _, hit := range s.FindNodes("game", map[string]any{key: value}) {
				if hit.ID == n.ID {
					found = true
				}
			}
			if !found {
				t.Errorf("node %s not found via filter %s=%v", n.ID, key, value)
			}
		}
	}
}

func TestFindRelationshipsByProperties(t *testing.T) {
	s := newMemoryStore(t)

	s.AddNode("schedule", map[string]any{"id": "sched-1"})
	s.AddNode("game", map[string]any{"id": "game-1"})
	s.AddNode("game", map[string]any{"id": "game-2"})

	s.AddRelationship("sched-1", "CONTAINS", "game-1", map[string]any{"slot": 1})
	s.AddRelationship("sched-1", "CONTAINS", "game-2", map[string]any{"slot": 2})

	all := s.FindRelationships("CONTAINS", nil)
	if len(all) != 2 {
		t.Fatalf("expected 2 CONTAINS relationships, got %d", len(all))
	}

	bySlot := s.FindRelationships("CONTAINS", map[string]any{"slot": 2})
	if len(bySlot) != 1 || bySlot[0].TargetID != "game-2" {
		t.Fatalf("expected the slot-2 edge to game-2, got %v", bySlot)
	}

	// Endpoints are indexed alongside ordinary properties.
	bySource := s.FindRelationships("CONTAINS", map[string]any{"source_id": "sched-1"})
	if len(bySource) != 2 {
		t.Errorf("expected 2 edges from sched-1, got %d", len(bySource))
	}
}

func TestFindNodesInRange(t *testing.T) {
	s := newMemoryStore(t)

	s.AddNode("game", map[string]any{"id": "g1", "week": 1})
	s.AddNode("game", map[string]any{"id": "g2", "week": 3})
	s.AddNode("game", map[string]any{"id": "g3", "week": 5})
	s.AddNode("game", map[string]any{"id": "g4", "week": 8})

	got := s.FindNodesInRange("game", "week", 2, 6)
	if len(got) != 2 {
		t.Fatalf("expected weeks 3 and 5, got %d nodes", len(got))
	}
	if got[0].ID != "g2" || got[1].ID != "g3" {
		t.Errorf("expected ascending order g2,g3 got %s,%s", got[0].ID, got[1].ID)
	}

	if got := s.FindNodesInRange("game", "attendance", 0, 100); got != nil {
		t.Errorf("unindexed property should yield nil, got %v", got)
	}
}

func TestClear(t *testing.T) {
	s := newMemoryStore(t)

	s.AddNode("team", map[string]any{"id": "team-1", "name": "Falcons"})
	s.AddNode("team", map[string]any{"id": "team-2"})
	s.AddRelationship("team-1", "RIVAL_OF", "team-2", nil)

	s.Clear()

	if s.NodeCount() != 0 || s.RelationshipCount() != 0 {
		t.Error("Clear must empty the primary maps")
	}
	if got := s.FindNodes("team", map[string]any{"name": "Falcons"}); len(got) != 0 {
		t.Error("Clear must empty the indices too")
	}
	if !s.Dirty() {
		t.Error("Clear must mark the store dirty")
	}
}

func TestStringifyValueBuckets(t *testing.T) {
	// Ints and whole floats must land in the same index bucket: JSON decodes
	// numbers as float64, so a reloaded snapshot has to keep matching the
	// filters that worked before the flush.
	if stringifyValue(5) != stringifyValue(float64(5)) {
		t.Error("5 and 5.0 should share a bucket")
	}
	if stringifyValue(int64(7)) != stringifyValue(7) {
		t.Error("int64 and int should share a bucket")
	}
	if stringifyValue(nil) != "null" {
		t.Error("nil should stringify to null")
	}
	if stringifyValue(true) != "true" {
		t.Error("bool should stringify to true/false")
	}
}
