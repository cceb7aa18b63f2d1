// This file implements the snapshot persistence protocol: two JSON files
// (nodes, relationships) written via write-to-temp-then-rename, a dirty
// counter, and the background flush goroutine. Serialization happens outside
// the store lock on copied maps so disk I/O never blocks mutators.
package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// snapshotVersion is written into every snapshot file so that future format
// changes can be detected on load.
const snapshotVersion = 1

type nodeSnapshot struct {
	Version int              `json:"version"`
	SavedAt time.Time        `json:"saved_at"`
	Entries map[string]*Node `json:"entries"`
}

type relationshipSnapshot struct {
	Version int                      `json:"version"`
	SavedAt time.Time                `json:"saved_at"`
	Entries map[string]*Relationship `json:"entries"`
}

func (s *Store) nodesPath() string {
	return filepath.Join(s.opts.DataDir, s.opts.NodesFilename)
}

func (s *Store) relationshipsPath() string {
	return filepath.Join(s.opts.DataDir, s.opts.RelationshipsFilename)
}

// SaveSnapshot writes both maps to their snapshot files atomically
// (temp file then rename) and resets the dirty counter on success.
// Only one flush runs at a time; mutators are never blocked by disk I/O.
func (s *Store) SaveSnapshot() error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	if err := os.MkdirAll(s.opts.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// Copy the maps under the read lock, serialize outside it.
	s.mu.RLock()
	pending := atomic.LoadInt64(&s.dirty)
	nodes := make(map[string]*Node, len(s.nodes))
	for id, node := range s.nodes {
		nodes[id] = node
	}
	rels := make(map[string]*Relationship, len(s.relationships))
	for id, rel := range s.relationships {
		rels[id] = rel
	}
	s.mu.RUnlock()

	now := time.Now().UTC()
	if err := writeSnapshotFile(s.nodesPath(), nodeSnapshot{
		Version: snapshotVersion,
		SavedAt: now,
		Entries: nodes,
	}); err != nil {
		s.logger.Error("node snapshot write failed", "path", s.nodesPath(), "error", err)
		return err
	}
	if err := writeSnapshotFile(s.relationshipsPath(), relationshipSnapshot{
		Version: snapshotVersion,
		SavedAt: now,
		Entries: rels,
	}); err != nil {
		s.logger.Error("relationship snapshot write failed", "path", s.relationshipsPath(), "error", err)
		return err
	}

	// Subtract only what was captured; writes racing the flush stay dirty.
	atomic.AddInt64(&s.dirty, -pending)
	s.mu.Lock()
	s.lastSaveTime = now
	s.mu.Unlock()

	s.logger.Info("snapshot saved", "nodes", len(nodes), "relationships", len(rels))
	return nil
}

// writeSnapshotFile serializes payload to path via a temporary file and an
// atomic rename, so a crash mid-write never leaves a truncated snapshot in
// place of the previous one.
func writeSnapshotFile(path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// loadSnapshot restores the store from its snapshot files, re-indexing every
// loaded entity. Absent files are fine (fresh store); malformed files or
// dangling relationship endpoints abort the load so the store never starts
// with a partially loaded graph.
func (s *Store) loadSnapshot() error {
	if err := os.MkdirAll(s.opts.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	var nodeSnap nodeSnapshot
	found, err := readSnapshotFile(s.nodesPath(), &nodeSnap)
	if err != nil {
		return err
	}
	if found {
		if nodeSnap.Version != snapshotVersion {
			return fmt.Errorf("unsupported node snapshot version %d", nodeSnap.Version)
		}
		for id, node := range nodeSnap.Entries {
			s.nodes[id] = node
			s.indexNodeLocked(node)
		}
	}

	var relSnap relationshipSnapshot
	found, err = readSnapshotFile(s.relationshipsPath(), &relSnap)
	if err != nil {
		return err
	}
	if found {
		if relSnap.Version != snapshotVersion {
			return fmt.Errorf("unsupported relationship snapshot version %d", relSnap.Version)
		}
		for id, rel := range relSnap.Entries {
			if _, ok := s.nodes[rel.SourceID]; !ok {
				return fmt.Errorf("snapshot relationship %s references unknown source %s", id, rel.SourceID)
			}
			if _, ok := s.nodes[rel.TargetID]; !ok {
				return fmt.Errorf("snapshot relationship %s references unknown target %s", id, rel.TargetID)
			}
			s.relationships[id] = rel
			s.indexRelationshipLocked(rel)
		}
	}

	if len(s.nodes) > 0 || len(s.relationships) > 0 {
		s.logger.Info("snapshot loaded",
			"nodes", len(s.nodes),
			"relationships", len(s.relationships),
			"dir", s.opts.DataDir,
		)
	}
	return nil
}

func readSnapshotFile(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	return true, nil
}

// flushLoop periodically flushes to disk, but only when writes happened since
// the last flush. Stopped by Close.
func (s *Store) flushLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.closed:
			return
		case <-ticker.C:
			if atomic.LoadInt64(&s.dirty) == 0 {
				continue
			}
			if err := s.SaveSnapshot(); err != nil {
				s.logger.Error("background snapshot failed", "error", err)
			}
		}
	}
}

// Dirty reports whether the store has unsaved mutations.
func (s *Store) Dirty() bool {
	return atomic.LoadInt64(&s.dirty) > 0
}
