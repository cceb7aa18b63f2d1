package server

import (
	"github.com/sportsched/schedgraph/pkg/graph"
)

// NodeCreateRequest defines the body for node creation.
type NodeCreateRequest struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
}

// NodeSearchRequest defines the body for exact-match node lookup.
type NodeSearchRequest struct {
	Type    string         `json:"type"`
	Filters map[string]any `json:"filters,omitempty"`
}

// RangeSearchRequest defines the body for numeric range lookup over an
// indexed property.
type RangeSearchRequest struct {
	Type     string  `json:"type"`
	Property string  `json:"property"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
}

// RelationshipCreateRequest defines the body for relationship creation.
type RelationshipCreateRequest struct {
	SourceID   string         `json:"source_id"`
	Type       string         `json:"type"`
	TargetID   string         `json:"target_id"`
	Properties map[string]any `json:"properties,omitempty"`
}

// RelationshipSearchRequest defines the body for relationship lookup.
type RelationshipSearchRequest struct {
	Type    string         `json:"type"`
	Filters map[string]any `json:"filters,omitempty"`
}

// TraverseRequest defines the body for breadth-first traversal.
type TraverseRequest struct {
	StartID           string          `json:"start_id"`
	MaxDepth          int             `json:"max_depth,omitempty"`
	Direction         graph.Direction `json:"direction,omitempty"`
	RelationshipTypes []string        `json:"relationship_types,omitempty"`
	NodeTypes         []string        `json:"node_types,omitempty"`
	UniqueNodes       bool            `json:"unique_nodes,omitempty"`
	IncludeStartNode  bool            `json:"include_start_node,omitempty"`
	MaxNodes          int             `json:"max_nodes,omitempty"`
}

// ExportRequest defines the body for subgraph export.
type ExportRequest struct {
	NodeTypes   []string `json:"node_types,omitempty"`
	StartNodeID string   `json:"start_node_id,omitempty"`
}

// Bodies that map 1:1 to repository types are decoded directly into
// knowledge.Query, knowledge.ScheduleImport and knowledge.AnalyzeOptions.
