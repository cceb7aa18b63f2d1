// Package graph provides the in-memory property-graph store at the heart of
// schedgraph.
//
// This file defines the graph primitives (Node, Relationship) and the
// stringification rules used to key the secondary indices. Property bags are
// string-keyed maps of JSON-compatible values; index keys are derived with a
// single well-defined stringify function so that lookups and inserts always
// agree on the bucket.
package graph

import (
	"encoding/json"
	"strconv"
	"time"
)

// Node is a typed, property-bag entity in the graph (team, venue, game,
// schedule, constraint). Type is immutable after creation. Properties always
// contains "id" as a convenience mirror of ID.
type Node struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Relationship is a typed, directed, property-bag edge between two nodes.
// SourceID and TargetID reference existing nodes at creation time.
type Relationship struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	SourceID   string         `json:"source_id"`
	TargetID   string         `json:"target_id"`
	Properties map[string]any `json:"properties"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Direction selects which edges to follow relative to a node.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

// stringifyValue converts a property value to its canonical index key.
// Numbers are formatted without a trailing ".0" so that 5, int64(5) and 5.0
// land in the same bucket. Composite values fall back to their JSON encoding.
func stringifyValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case float32:
		return stringifyValue(float64(val))
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// numericValue reports the float64 form of a property value, for the
// range index. Only scalar numbers qualify.
func numericValue(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	default:
		return 0, false
	}
}

// MatchProperties reports whether every key in filters is present in props
// with the same stringified value.
func MatchProperties(props map[string]any, filters map[string]any) bool {
	for key, want := range filters {
		got, ok := props[key]
		if !ok {
			return false
		}
		if stringifyValue(got) != stringifyValue(want) {
			return false
		}
	}
	return true
}
