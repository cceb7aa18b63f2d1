// This file implements neighborhood lookup, breadth-first traversal and
// subgraph export. Traversal runs entirely under the read lock and never
// revisits a fully processed node, so it terminates on cyclic graphs.
package graph

import (
	"fmt"
	"time"
)

// ConnectedOptions filters the relationships considered around a node.
type ConnectedOptions struct {
	// Direction defaults to DirectionBoth.
	Direction Direction

	// Types is an optional allow-list of relationship types.
	Types []string

	// Properties is an optional exact-equality property filter.
	Properties map[string]any
}

// Connected holds the relationships touching a node, split by direction.
type Connected struct {
	Outgoing []*Relationship `json:"outgoing"`
	Incoming []*Relationship `json:"incoming"`
}

// TraverseOptions bounds a breadth-first traversal.
type TraverseOptions struct {
	// MaxDepth is the maximum number of hops from the start node.
	// Values below 1 are treated as 1.
	MaxDepth int

	// Direction defaults to DirectionBoth.
	Direction Direction

	// RelationshipTypes restricts which edges are followed.
	RelationshipTypes []string

	// NodeTypes restricts which neighbor nodes are visited.
	NodeTypes []string

	// UniqueNodes skips nodes that were already visited.
	UniqueNodes bool

	// IncludeStartNode places the start node first in the result node list.
	IncludeStartNode bool

	// MaxNodes caps the total number of visited nodes. MaxDepth alone does
	// not bound the visited count on a highly connected graph when
	// UniqueNodes is false. Default: 10000.
	MaxNodes int
}

// Path is one root-to-node walk recorded during traversal.
type Path struct {
	Nodes         []string `json:"nodes"`
	Relationships []string `json:"relationships"`
}

// Traversal is the result of TraverseFrom.
type Traversal struct {
	Nodes         []*Node         `json:"nodes"`
	Relationships []*Relationship `json:"relationships"`
	Paths         []Path          `json:"paths"`
}

// Export is a bounded slice of the graph.
type Export struct {
	Nodes         []*Node         `json:"nodes"`
	Relationships []*Relationship `json:"relationships"`
	ExportedAt    time.Time       `json:"exported_at"`
}

// ExportOptions selects the exported subgraph: by traversal from StartNodeID
// when set, otherwise by node type filter.
type ExportOptions struct {
	NodeTypes   []string
	StartNodeID string
}

const defaultMaxVisitedNodes = 10000

// ConnectedRelationships returns the relationships touching nodeID, filtered
// by direction, type allow-list and property equality. Fails with
// ErrNodeNotFound for an unknown node.
func (s *Store) ConnectedRelationships(nodeID string, opts ConnectedOptions) (Connected, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[nodeID]; !ok {
		return Connected{}, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	return s.connectedLocked(nodeID, opts), nil
}

// connectedLocked is the scan behind ConnectedRelationships and TraverseFrom.
// Caller must hold at least the read lock.
func (s *Store) connectedLocked(nodeID string, opts ConnectedOptions) Connected {
	direction := opts.Direction
	if direction == "" {
		direction = DirectionBoth
	}

	var allowed map[string]struct{}
	if len(opts.Types) > 0 {
		allowed = make(map[string]struct{}, len(opts.Types))
		for _, t := range opts.Types {
			allowed[t] = struct{}{}
		}
	}

	var conn Connected
	for _, rel := range s.relationships {
		if allowed != nil {
			if _, ok := allowed[rel.Type]; !ok {
				continue
			}
		}
		if len(opts.Properties) > 0 && !MatchProperties(rel.Properties, opts.Properties) {
			continue
		}
		if rel.SourceID == nodeID && (direction == DirectionOutgoing || direction == DirectionBoth) {
			conn.Outgoing = append(conn.Outgoing, rel)
		}
		if rel.TargetID == nodeID && (direction == DirectionIncoming || direction == DirectionBoth) {
			conn.Incoming = append(conn.Incoming, rel)
		}
	}
	sortRelationships(conn.Outgoing)
	sortRelationships(conn.Incoming)
	return conn
}

// TraverseFrom performs a breadth-first exploration starting at startID.
// It fails before any queue processing when startID is unknown.
func (s *Store) TraverseFrom(startID string, opts TraverseOptions) (*Traversal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, ok := s.nodes[startID]
	if !ok {
		return nil, fmt.Errorf("%w: traversal start %s", ErrNodeNotFound, startID)
	}

	maxDepth := opts.MaxDepth
	if maxDepth < 1 {
		maxDepth = 1
	}
	maxNodes := opts.MaxNodes
	if maxNodes <= 0 {
		maxNodes = defaultMaxVisitedNodes
	}

	var allowedNodeTypes map[string]struct{}
	if len(opts.NodeTypes) > 0 {
		allowedNodeTypes = make(map[string]struct{}, len(opts.NodeTypes))
		for _, t := range opts.NodeTypes {
			allowedNodeTypes[t] = struct{}{}
		}
	}

	result := &Traversal{}
	if opts.IncludeStartNode {
		result.Nodes = append(result.Nodes, start)
	}

	type queueEntry struct {
		nodeID string
		depth  int
		path   Path
	}

	visited := map[string]struct{}{}
	seenRels := map[string]struct{}{}
	recorded := map[string]struct{}{startID: {}}
	visitedCount := 1

	queue := []queueEntry{{nodeID: startID, depth: 0, path: Path{Nodes: []string{startID}}}}

	for len(queue) > 0 {
		entry := queue[0]
		queue = queue[1:]

		if opts.UniqueNodes {
			if _, done := visited[entry.nodeID]; done {
				continue
			}
			visited[entry.nodeID] = struct{}{}
		}

		// The node itself was recorded when enqueued; at the depth limit it
		// is not expanded further.
		if entry.depth >= maxDepth {
			continue
		}

		conn := s.connectedLocked(entry.nodeID, ConnectedOptions{
			Direction: opts.Direction,
			Types:     opts.RelationshipTypes,
		})

		neighbors := make([]struct {
			rel *Relationship
			id  string
		}, 0, len(conn.Outgoing)+len(conn.Incoming))
		for _, rel := range conn.Outgoing {
			neighbors = append(neighbors, struct {
				rel *Relationship
				id  string
			}{rel, rel.TargetID})
		}
		for _, rel := range conn.Incoming {
			neighbors = append(neighbors, struct {
				rel *Relationship
				id  string
			}{rel, rel.SourceID})
		}

		for _, nb := range neighbors {
			if nb.id == entry.nodeID {
				continue
			}
			if opts.UniqueNodes {
				if _, done := visited[nb.id]; done {
					continue
				}
				if _, queued := recorded[nb.id]; queued {
					continue
				}
			}
			neighbor, ok := s.nodes[nb.id]
			if !ok {
				continue
			}
			if allowedNodeTypes != nil {
				if _, ok := allowedNodeTypes[neighbor.Type]; !ok {
					continue
				}
			}
			if visitedCount >= maxNodes {
				return result, nil
			}

			if _, ok := recorded[nb.id]; !ok || !opts.UniqueNodes {
				result.Nodes = append(result.Nodes, neighbor)
				recorded[nb.id] = struct{}{}
				visitedCount++
			}
			if _, ok := seenRels[nb.rel.ID]; !ok {
				result.Relationships = append(result.Relationships, nb.rel)
				seenRels[nb.rel.ID] = struct{}{}
			}

			extended := Path{
				Nodes:         append(append([]string{}, entry.path.Nodes...), nb.id),
				Relationships: append(append([]string{}, entry.path.Relationships...), nb.rel.ID),
			}
			result.Paths = append(result.Paths, extended)

			queue = append(queue, queueEntry{nodeID: nb.id, depth: entry.depth + 1, path: extended})
		}
	}

	return result, nil
}

// Export returns a bounded subgraph. With StartNodeID it delegates to a
// depth-10 bidirectional unique traversal; otherwise it returns all nodes
// (optionally type-filtered) plus every relationship whose both endpoints
// are in the filtered node set.
func (s *Store) Export(opts ExportOptions) (*Export, error) {
	if opts.StartNodeID != "" {
		traversal, err := s.TraverseFrom(opts.StartNodeID, TraverseOptions{
			MaxDepth:         10,
			Direction:        DirectionBoth,
			NodeTypes:        opts.NodeTypes,
			UniqueNodes:      true,
			IncludeStartNode: true,
		})
		if err != nil {
			return nil, err
		}
		return &Export{
			Nodes:         traversal.Nodes,
			Relationships: traversal.Relationships,
			ExportedAt:    time.Now().UTC(),
		}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var allowed map[string]struct{}
	if len(opts.NodeTypes) > 0 {
		allowed = make(map[string]struct{}, len(opts.NodeTypes))
		for _, t := range opts.NodeTypes {
			allowed[t] = struct{}{}
		}
	}

	exported := &Export{ExportedAt: time.Now().UTC()}
	included := make(map[string]struct{}, len(s.nodes))
	for id, node := range s.nodes {
		if allowed != nil {
			if _, ok := allowed[node.Type]; !ok {
				continue
			}
		}
		exported.Nodes = append(exported.Nodes, node)
		included[id] = struct{}{}
	}
	for _, rel := range s.relationships {
		if _, ok := included[rel.SourceID]; !ok {
			continue
		}
		if _, ok := included[rel.TargetID]; !ok {
			continue
		}
		exported.Relationships = append(exported.Relationships, rel)
	}
	sortNodes(exported.Nodes)
	sortRelationships(exported.Relationships)
	return exported, nil
}
