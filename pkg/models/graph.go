package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNodeNotFound  = errors.New("node not found")
	ErrDuplicateNode = errors.New("duplicate node id")
	ErrSelfLoop      = errors.New("edge connects a node to itself")
	ErrDuplicateEdge = errors.New("duplicate edge")
	ErrUnknownKind   = errors.New("unknown node kind")
)

// Graph is the in-memory representation of a workflow definition: an ordered
// collection of nodes plus a set of directed edges. It is immutable once
// constructed; the execution engine never mutates it.
type Graph struct {
	nodes []*Node
	edges []Edge
	byID  map[string]*Node
	out   map[string][]Edge
	in    map[string][]Edge
}

// NewGraph builds a graph from nodes and edges. It fails when a node id
// repeats, a node kind is unknown, an edge references a missing node,
// an edge is a self-loop, or the same ordered pair appears twice.
func NewGraph(nodes []*Node, edges []Edge) (*Graph, error) {
	g := &Graph{
		nodes: make([]*Node, 0, len(nodes)),
		edges: make([]Edge, 0, len(edges)),
		byID:  make(map[string]*Node, len(nodes)),
		out:   make(map[string][]Edge),
		in:    make(map[string][]Edge),
	}

	for _, node := range nodes {
		if node.ID == "" {
			return nil, errors.New("node with empty id")
		}

		if !node.Kind.Valid() {
			return nil, fmt.Errorf("node %s: %w: %q", node.ID, ErrUnknownKind, node.Kind)
		}

		if _, exists := g.byID[node.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, node.ID)
		}

		g.nodes = append(g.nodes, node)
		g.byID[node.ID] = node
	}

	seen := make(map[Edge]bool, len(edges))

	for _, edge := range edges {
		if edge.SourceID == edge.TargetID {
			return nil, fmt.Errorf("%w: %s", ErrSelfLoop, edge.SourceID)
		}

		if _, ok := g.byID[edge.SourceID]; !ok {
			return nil, fmt.Errorf("edge source: %w: %s", ErrNodeNotFound, edge.SourceID)
		}

		if _, ok := g.byID[edge.TargetID]; !ok {
			return nil, fmt.Errorf("edge target: %w: %s", ErrNodeNotFound, edge.TargetID)
		}

		if seen[edge] {
			return nil, fmt.Errorf("%w: %s -> %s", ErrDuplicateEdge, edge.SourceID, edge.TargetID)
		}

		seen[edge] = true

		g.edges = append(g.edges, edge)
		g.out[edge.SourceID] = append(g.out[edge.SourceID], edge)
		g.in[edge.TargetID] = append(g.in[edge.TargetID], edge)
	}

	return g, nil
}

// Nodes returns the nodes in definition order.
func (g *Graph) Nodes() []*Node {
	return g.nodes
}

// Edges returns all edges in definition order.
func (g *Graph) Edges() []Edge {
	return g.edges
}

// NodeByID looks up a node by id.
func (g *Graph) NodeByID(id string) (*Node, bool) {
	node, ok := g.byID[id]

	return node, ok
}

// EdgesFrom returns the outgoing edges of a node.
func (g *Graph) EdgesFrom(id string) []Edge {
	return g.out[id]
}

// EdgesTo returns the incoming edges of a node.
func (g *Graph) EdgesTo(id string) []Edge {
	return g.in[id]
}

// Definition is the persisted JSON shape of a workflow graph.
type Definition struct {
	Nodes []*Node `json:"nodes"`
	Edges []Edge  `json:"edges"`
}

// ParseDefinition decodes a persisted definition and constructs a graph from
// it. Unknown node kinds are rejected here rather than passed through.
func ParseDefinition(raw []byte) (*Graph, error) {
	var def Definition

	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("failed to decode workflow definition: %w", err)
	}

	return NewGraph(def.Nodes, def.Edges)
}
