// This file implements the Store itself: the primary node/relationship maps,
// the secondary property indices, and the indexed lookup operations. All
// mutations and index reads go through a single read-write mutex so that a
// lookup never observes a half-updated index.
package graph

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/btree"
)

var (
	// ErrNodeNotFound is returned when a relationship or traversal references
	// a node id that is not in the store.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateID is returned by AddNode when the caller supplies an id
	// that already exists. Overwriting would leave stale index entries behind,
	// so duplicates are rejected outright.
	ErrDuplicateID = errors.New("node id already exists")
)

// propertyIndex maps entityType -> propertyKey -> stringifiedValue -> set of ids.
// It is derived from the primary maps and rebuilt on every add and on load.
type propertyIndex map[string]map[string]map[string]map[string]struct{}

func (idx propertyIndex) add(entityType, key, value, id string) {
	byKey, ok := idx[entityType]
	if !ok {
		byKey = make(map[string]map[string]map[string]struct{})
		idx[entityType] = byKey
	}
	byValue, ok := byKey[key]
	if !ok {
		byValue = make(map[string]map[string]struct{})
		byKey[key] = byValue
	}
	ids, ok := byValue[value]
	if !ok {
		ids = make(map[string]struct{})
		byValue[value] = ids
	}
	ids[id] = struct{}{}
}

// bucket returns the id set for one (type, key, value) triple, or nil.
func (idx propertyIndex) bucket(entityType, key, value string) map[string]struct{} {
	if byKey, ok := idx[entityType]; ok {
		if byValue, ok := byKey[key]; ok {
			return byValue[value]
		}
	}
	return nil
}

// rangeItem associates a numeric property value with a node id inside the
// B-Tree range index. The id acts as a tie-breaker to keep items distinct.
type rangeItem struct {
	Value float64
	ID    string
}

func rangeItemLess(a, b rangeItem) bool {
	if a.Value != b.Value {
		return a.Value < b.Value
	}
	return a.ID < b.ID
}

// Options configures a Store, including the persistence behaviour.
// All settings are constructor-time; there is no runtime mutation.
type Options struct {
	// DataDir is the directory where snapshot files are stored.
	// Created automatically if it does not exist.
	DataDir string

	// Persistence enables snapshot loading on Open and the background flush.
	Persistence bool

	// FlushInterval is how often the background flusher checks the dirty
	// counter. Default: 5 minutes.
	FlushInterval time.Duration

	// NodesFilename and RelationshipsFilename name the two snapshot files
	// inside DataDir.
	NodesFilename         string
	RelationshipsFilename string

	// Logger receives persistence and lifecycle events. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns a configuration with persistence enabled and a
// 5 minute flush interval.
func DefaultOptions(dataDir string) Options {
	return Options{
		DataDir:               dataDir,
		Persistence:           true,
		FlushInterval:         5 * time.Minute,
		NodesFilename:         "nodes.json",
		RelationshipsFilename: "relationships.json",
	}
}

// Store is a thread-safe, in-memory property graph with secondary indices
// and durable snapshotting. It exclusively owns its nodes, relationships and
// indices; returned pointers must be treated as read-only by callers.
//
// Use Open to initialize a Store and Close to shut it down gracefully.
// Multiple independent stores can coexist in one process.
type Store struct {
	mu            sync.RWMutex
	nodes         map[string]*Node
	relationships map[string]*Relationship

	nodeIndex propertyIndex
	relIndex  propertyIndex

	// rangeIndex holds numeric node properties per type for range queries.
	// nodeType -> propertyKey -> BTree of (value, id).
	rangeIndex map[string]map[string]*btree.BTreeG[rangeItem]

	opts   Options
	logger *slog.Logger

	// dirty counts write operations since the last successful flush.
	dirty        int64
	lastSaveTime time.Time

	// flushMu serializes snapshot writers. The background flusher and an
	// on-demand save would otherwise share the temp file and both subtract
	// the same pending count from dirty.
	flushMu sync.Mutex

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Open initializes a Store from the given options.
//
// When persistence is enabled it creates DataDir if missing, loads the prior
// snapshot files if present (re-indexing every loaded entity) and starts the
// background flush goroutine. Load errors abort Open: the store never starts
// with a partially loaded graph.
func Open(opts Options) (*Store, error) {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 5 * time.Minute
	}
	if opts.NodesFilename == "" {
		opts.NodesFilename = "nodes.json"
	}
	if opts.RelationshipsFilename == "" {
		opts.RelationshipsFilename = "relationships.json"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Store{
		nodes:         make(map[string]*Node),
		relationships: make(map[string]*Relationship),
		nodeIndex:     make(propertyIndex),
		relIndex:      make(propertyIndex),
		rangeIndex:    make(map[string]map[string]*btree.BTreeG[rangeItem]),
		opts:          opts,
		logger:        opts.Logger,
		lastSaveTime:  time.Now(),
		closed:        make(chan struct{}),
	}

	if opts.Persistence {
		if err := s.loadSnapshot(); err != nil {
			return nil, fmt.Errorf("failed to load snapshot: %w", err)
		}
		s.wg.Add(1)
		go s.flushLoop()
	}

	return s, nil
}

// Close stops the background flusher and performs one final flush if the
// store is dirty. Safe to call more than once.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		s.wg.Wait()
		if s.opts.Persistence && atomic.LoadInt64(&s.dirty) > 0 {
			err = s.SaveSnapshot()
		}
	})
	return err
}

// AddNode creates a node of the given type. The id is taken from
// properties["id"] when present, otherwise generated. Rejects duplicate ids.
func (s *Store) AddNode(nodeType string, properties map[string]any) (*Node, error) {
	if nodeType == "" {
		return nil, errors.New("node type must not be empty")
	}

	props := make(map[string]any, len(properties)+1)
	for k, v := range properties {
		props[k] = v
	}

	id, _ := props["id"].(string)
	if id == "" {
		id = uuid.New().String()
	}
	props["id"] = id

	now := time.Now().UTC()
	node := &Node{
		ID:         id,
		Type:       nodeType,
		Properties: props,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nodes[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}

	s.nodes[id] = node
	s.indexNodeLocked(node)
	atomic.AddInt64(&s.dirty, 1)

	return node, nil
}

// AddRelationship creates a directed edge of the given type between two
// existing nodes. Fails with ErrNodeNotFound when either endpoint is unknown.
func (s *Store) AddRelationship(sourceID, relType, targetID string, properties map[string]any) (*Relationship, error) {
	if relType == "" {
		return nil, errors.New("relationship type must not be empty")
	}

	props := make(map[string]any, len(properties))
	for k, v := range properties {
		props[k] = v
	}

	now := time.Now().UTC()
	rel := &Relationship{
		ID:         uuid.New().String(),
		Type:       relType,
		SourceID:   sourceID,
		TargetID:   targetID,
		Properties: props,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[sourceID]; !ok {
		return nil, fmt.Errorf("%w: source %s", ErrNodeNotFound, sourceID)
	}
	if _, ok := s.nodes[targetID]; !ok {
		return nil, fmt.Errorf("%w: target %s", ErrNodeNotFound, targetID)
	}

	s.relationships[rel.ID] = rel
	s.indexRelationshipLocked(rel)
	atomic.AddInt64(&s.dirty, 1)

	return rel, nil
}

// GetNode returns the node with the given id, or false when absent.
func (s *Store) GetNode(id string) (*Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[id]
	return node, ok
}

// GetRelationship returns the relationship with the given id, or false when absent.
func (s *Store) GetRelationship(id string) (*Relationship, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rel, ok := s.relationships[id]
	return rel, ok
}

// FindNodes returns all nodes of the given type matching every filter
// exactly. With no filters it returns every node of the type. Filtered
// lookups intersect index buckets smallest-first; a filter value with no
// bucket short-circuits to an empty result.
func (s *Store) FindNodes(nodeType string, filters map[string]any) []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(filters) == 0 {
		result := make([]*Node, 0)
		for _, node := range s.nodes {
			if node.Type == nodeType {
				result = append(result, node)
			}
		}
		sortNodes(result)
		return result
	}

	ids := s.nodeIndex.intersect(nodeType, filters)
	result := make([]*Node, 0, len(ids))
	for id := range ids {
		if node, ok := s.nodes[id]; ok {
			result = append(result, node)
		}
	}
	sortNodes(result)
	return result
}

// FindRelationships is the relationship analogue of FindNodes.
func (s *Store) FindRelationships(relType string, filters map[string]any) []*Relationship {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(filters) == 0 {
		result := make([]*Relationship, 0)
		for _, rel := range s.relationships {
			if rel.Type == relType {
				result = append(result, rel)
			}
		}
		sortRelationships(result)
		return result
	}

	ids := s.relIndex.intersect(relType, filters)
	result := make([]*Relationship, 0, len(ids))
	for id := range ids {
		if rel, ok := s.relationships[id]; ok {
			result = append(result, rel)
		}
	}
	sortRelationships(result)
	return result
}

// FindNodesInRange returns nodes of the given type whose numeric property
// falls within [min, max], in ascending property order. Backed by the B-Tree
// range index; non-numeric values are never indexed here.
func (s *Store) FindNodesInRange(nodeType, property string, min, max float64) []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byKey, ok := s.rangeIndex[nodeType]
	if !ok {
		return nil
	}
	tree, ok := byKey[property]
	if !ok {
		return nil
	}

	var result []*Node
	tree.Ascend(rangeItem{Value: min}, func(item rangeItem) bool {
		if item.Value > max {
			return false
		}
		if node, ok := s.nodes[item.ID]; ok {
			result = append(result, node)
		}
		return true
	})
	return result
}

// Clear empties all primary maps and indices and marks the store dirty.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = make(map[string]*Node)
	s.relationships = make(map[string]*Relationship)
	s.nodeIndex = make(propertyIndex)
	s.relIndex = make(propertyIndex)
	s.rangeIndex = make(map[string]map[string]*btree.BTreeG[rangeItem])
	atomic.AddInt64(&s.dirty, 1)
}

// NodeCount returns the number of nodes in the store.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// RelationshipCount returns the number of relationships in the store.
func (s *Store) RelationshipCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.relationships)
}

// indexNodeLocked inserts a node into every secondary index bucket derived
// from its properties. Caller must hold the write lock.
func (s *Store) indexNodeLocked(node *Node) {
	for key, value := range node.Properties {
		s.nodeIndex.add(node.Type, key, stringifyValue(value), node.ID)

		if num, ok := numericValue(value); ok {
			byKey, ok := s.rangeIndex[node.Type]
			if !ok {
				byKey = make(map[string]*btree.BTreeG[rangeItem])
				s.rangeIndex[node.Type] = byKey
			}
			tree, ok := byKey[key]
			if !ok {
				tree = btree.NewBTreeG(rangeItemLess)
				byKey[key] = tree
			}
			tree.Set(rangeItem{Value: num, ID: node.ID})
		}
	}
}

// indexRelationshipLocked mirrors indexNodeLocked for relationships.
// Endpoints are indexed alongside ordinary properties so that
// FindRelationships can filter by source_id/target_id.
func (s *Store) indexRelationshipLocked(rel *Relationship) {
	s.relIndex.add(rel.Type, "source_id", rel.SourceID, rel.ID)
	s.relIndex.add(rel.Type, "target_id", rel.TargetID, rel.ID)
	for key, value := range rel.Properties {
		s.relIndex.add(rel.Type, key, stringifyValue(value), rel.ID)
	}
}

// intersect resolves every filter to its index bucket and intersects the id
// sets, starting from the smallest bucket. Returns nil when any filter has
// no bucket at all.
func (idx propertyIndex) intersect(entityType string, filters map[string]any) map[string]struct{} {
	buckets := make([]map[string]struct{}, 0, len(filters))
	for key, value := range filters {
		bucket := idx.bucket(entityType, key, stringifyValue(value))
		if len(bucket) == 0 {
			return nil
		}
		buckets = append(buckets, bucket)
	}

	sort.Slice(buckets, func(i, j int) bool {
		return len(buckets[i]) < len(buckets[j])
	})

	result := make(map[string]struct{}, len(buckets[0]))
	for id := range buckets[0] {
		result[id] = struct{}{}
	}
	for _, bucket := range buckets[1:] {
		for id := range result {
			if _, ok := bucket[id]; !ok {
				delete(result, id)
			}
		}
		if len(result) == 0 {
			return nil
		}
	}
	return result
}

func sortNodes(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
}

func sortRelationships(rels []*Relationship) {
	sort.Slice(rels, func(i, j int) bool { return rels[i].ID < rels[j].ID })
}
