// Package walking provides the stop-to-stop walking duration graph.
package walking

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Neighbor is a stop reachable on foot with its walking duration.
type Neighbor struct {
	StopId  string
	Seconds float64
}

// Graph is a symmetric map of walking durations in seconds between stops.
// Built offline by the walkgraph tool; read only at runtime.
type Graph struct {
	durations map[string]map[string]float64
}

// LoadFile reads a walking distance JSON file, an object of objects keyed by
// stop id with duration values in seconds.
func LoadFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading walking distances from %s: %w", path, err)
	}
	return Load(data)
}

// Load parses walking distance JSON.
func Load(data []byte) (*Graph, error) {
	durations := make(map[string]map[string]float64)
	if err := json.Unmarshal(data, &durations); err != nil {
		return nil, fmt.Errorf("unmarshaling walking distances: %w", err)
	}
	return &Graph{durations: durations}, nil
}

// MakeGraph builds a Graph directly from a duration map. Intended for tests.
func MakeGraph(durations map[string]map[string]float64) *Graph {
	return &Graph{durations: durations}
}

// Neighbors returns the stops walkable from stopId within maxWalk seconds,
// sorted by stop id for deterministic iteration.
func (g *Graph) Neighbors(stopId string, maxWalk float64) []Neighbor {
	edges, present := g.durations[stopId]
	if !present {
		return nil
	}
	neighbors := make([]Neighbor, 0, len(edges))
	for neighborId, seconds := range edges {
		if seconds <= maxWalk {
			neighbors = append(neighbors, Neighbor{StopId: neighborId, Seconds: seconds})
		}
	}
	sort.Slice(neighbors, func(i, j int) bool {
		return neighbors[i].StopId < neighbors[j].StopId
	})
	return neighbors
}

// Duration returns the walking seconds between two stops.
// ok is false when no edge exists.
func (g *Graph) Duration(fromId, toId string) (float64, bool) {
	edges, present := g.durations[fromId]
	if !present {
		return 0, false
	}
	seconds, present := edges[toId]
	return seconds, present
}

// Size returns the number of stops with at least one walking edge.
func (g *Graph) Size() int {
	return len(g.durations)
}
