package graph

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func openPersistent(t *testing.T, dir string) *Store {
	t.Helper()
	opts := DefaultOptions(dir)
	opts.FlushInterval = time.Hour // flush manually in tests
	s, err := Open(opts)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s := openPersistent(t, dir)
	s.AddNode("team", map[string]any{"id": "team-1", "name": "Falcons", "division": "east"})
	s.AddNode("team", map[string]any{"id": "team-2", "name": "Comets"})
	s.AddNode("venue", map[string]any{"id": "venue-1", "capacity": 4000})
	s.AddRelationship("team-1", "RIVAL_OF", "team-2", map[string]any{"since": 2020})

	if err := s.SaveSnapshot(); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if s.Dirty() {
		t.Error("flush should reset the dirty flag")
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// Reload into a fresh store and compare query results.
	reloaded := openPersistent(t, dir)
	defer reloaded.Close()

	if reloaded.NodeCount() != 3 || reloaded.RelationshipCount() != 1 {
		t.Fatalf("reload: got %d nodes, %d relationships",
			reloaded.NodeCount(), reloaded.RelationshipCount())
	}

	teams := reloaded.FindNodes("team", map[string]any{"name": "Falcons"})
	if len(teams) != 1 || teams[0].ID != "team-1" {
		t.Errorf("reloaded index must answer the same filters, got %v", teams)
	}

	// Numeric properties decode as float64 from JSON; index buckets and the
	// range index must keep matching.
	rivals := reloaded.FindRelationships("RIVAL_OF", map[string]any{"since": 2020})
	if len(rivals) != 1 {
		t.Errorf("expected the since=2020 edge after reload, got %d", len(rivals))
	}
	venues := reloaded.FindNodesInRange("venue", "capacity", 1000, 5000)
	if len(venues) != 1 || venues[0].ID != "venue-1" {
		t.Errorf("range index must be rebuilt on load, got %v", venues)
	}
}

func TestSnapshotAtomicReplace(t *testing.T) {
	dir := t.TempDir()

	s := openPersistent(t, dir)
	s.AddNode("team", map[string]any{"id": "team-1"})
	if err := s.SaveSnapshot(); err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Simulate a crash between temp-file write and rename: a half-written
	// temp file next to the real snapshot.
	tmp := filepath.Join(dir, "nodes.json.tmp")
	if err := os.WriteFile(tmp, []byte(`{"version":1,"entr`), 0644); err != nil {
		t.Fatal(err)
	}

	// The previously-persisted snapshot must still load intact.
	reloaded := openPersistent(t, dir)
	defer reloaded.Close()
	if _, ok := reloaded.GetNode("team-1"); !ok {
		t.Error("crash mid-write must never corrupt the committed snapshot")
	}
}

func TestLoadRejectsDanglingRelationship(t *testing.T) {
	dir := t.TempDir()

	s := openPersistent(t, dir)
	s.AddNode("team", map[string]any{"id": "team-1"})
	s.AddNode("team", map[string]any{"id": "team-2"})
	s.AddRelationship("team-1", "RIVAL_OF", "team-2", nil)
	if err := s.SaveSnapshot(); err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Drop the node file: the relationship file now dangles.
	if err := os.Remove(filepath.Join(dir, "nodes.json")); err != nil {
		t.Fatal(err)
	}

	opts := DefaultOptions(dir)
	if _, err := Open(opts); err == nil {
		t.Error("Open must refuse to start with a partially loaded graph")
	}
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	dir := t.TempDir()

	data := []byte(`{"version":99,"saved_at":"2024-01-01T00:00:00Z","entries":{}}`)
	if err := os.WriteFile(filepath.Join(dir, "nodes.json"), data, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(DefaultOptions(dir)); err == nil {
		t.Error("Open must reject an unsupported snapshot version")
	}
}

func TestCloseFlushesWhenDirty(t *testing.T) {
	dir := t.TempDir()

	s := openPersistent(t, dir)
	s.AddNode("team", map[string]any{"id": "team-1"})
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reloaded := openPersistent(t, dir)
	defer reloaded.Close()
	if _, ok := reloaded.GetNode("team-1"); !ok {
		t.Error("Close must flush unsaved mutations")
	}
}

func TestConcurrentSavesKeepDirtyAccounting(t *testing.T) {
	dir := t.TempDir()

	s := openPersistent(t, dir)
	defer s.Close()

	// Several flushers racing the same batch of writes must not subtract the
	// pending count more than once: a fresh mutation afterwards has to leave
	// the store dirty, or Close would silently skip its final flush.
	total := 0
	for round := 0; round < 5; round++ {
		for i := 0; i < 5; i++ {
			id := fmt.Sprintf("team-%d-%d", round, i)
			if _, err := s.AddNode("team", map[string]any{"id": id}); err != nil {
				t.Fatal(err)
			}
			total++
		}

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := s.SaveSnapshot(); err != nil {
					t.Error(err)
				}
			}()
		}
		wg.Wait()

		if _, err := s.AddNode("team", map[string]any{"id": fmt.Sprintf("extra-%d", round)}); err != nil {
			t.Fatal(err)
		}
		total++
		if !s.Dirty() {
			t.Fatalf("round %d: store must be dirty after a post-flush mutation", round)
		}
		if err := s.SaveSnapshot(); err != nil {
			t.Fatal(err)
		}
	}

	reloaded := openPersistent(t, dir)
	defer reloaded.Close()
	if reloaded.NodeCount() != total {
		t.Errorf("expected %d nodes after reload, got %d", total, reloaded.NodeCount())
	}
}

func TestBackgroundFlush(t *testing.T) {
	dir := t.TempDir()

	opts := DefaultOptions(dir)
	opts.FlushInterval = 50 * time.Millisecond
	s, err := Open(opts)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	s.AddNode("team", map[string]any{"id": "team-1"})

	deadline := time.Now().Add(2 * time.Second)
	for s.Dirty() && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if s.Dirty() {
		t.Fatal("background flusher never picked up the dirty store")
	}
	if _, err := os.Stat(filepath.Join(dir, "nodes.json")); err != nil {
		t.Errorf("snapshot file missing after background flush: %v", err)
	}
}
