package workflow

import (
	"sort"

	"github.com/genstack/genstack/pkg/models"
)

// Order computes the execution sequence for a graph. A validated graph is a
// single simple path, so ordering is a linear walk from the unique entry
// node. When validation was bypassed and the walk cannot cover the graph, a
// stable topological sort with an id-ascending tie-break is used instead so
// the behavior degrades to first-discovered, id-ordered rather than being
// undefined.
func Order(g *models.Graph) []*models.Node {
	nodes := g.Nodes()
	if len(nodes) == 0 {
		return nil
	}

	if sequence, ok := linearWalk(g); ok {
		return sequence
	}

	return topoSort(g)
}

func linearWalk(g *models.Graph) ([]*models.Node, bool) {
	var entry *models.Node

	for _, node := range g.Nodes() {
		if len(g.EdgesTo(node.ID)) == 0 {
			if entry != nil {
				return nil, false
			}

			entry = node
		}
	}

	if entry == nil {
		return nil, false
	}

	sequence := []*models.Node{entry}
	visited := map[string]bool{entry.ID: true}
	current := entry

	for {
		out := g.EdgesFrom(current.ID)
		if len(out) != 1 {
			break
		}

		next, ok := g.NodeByID(out[0].TargetID)
		if !ok || visited[next.ID] {
			return nil, false
		}

		visited[next.ID] = true
		sequence = append(sequence, next)
		current = next
	}

	if len(sequence) != len(g.Nodes()) {
		return nil, false
	}

	return sequence, true
}

func topoSort(g *models.Graph) []*models.Node {
	inDegree := make(map[string]int, len(g.Nodes()))
	for _, node := range g.Nodes() {
		inDegree[node.ID] = len(g.EdgesTo(node.ID))
	}

	var ready []string

	for _, node := range g.Nodes() {
		if inDegree[node.ID] == 0 {
			ready = append(ready, node.ID)
		}
	}

	sequence := make([]*models.Node, 0, len(g.Nodes()))
	placed := make(map[string]bool, len(g.Nodes()))

	for len(ready) > 0 {
		sort.Strings(ready)

		id := ready[0]
		ready = ready[1:]

		node, _ := g.NodeByID(id)
		sequence = append(sequence, node)
		placed[id] = true

		for _, edge := range g.EdgesFrom(id) {
			inDegree[edge.TargetID]--
			if inDegree[edge.TargetID] == 0 {
				ready = append(ready, edge.TargetID)
			}
		}
	}

	// Nodes trapped in a cycle never reach in-degree zero; append them in id
	// order so the sequence still covers the whole graph.
	if len(sequence) < len(g.Nodes()) {
		var leftover []string

		for _, node := range g.Nodes() {
			if !placed[node.ID] {
				leftover = append(leftover, node.ID)
			}
		}

		sort.Strings(leftover)

		for _, id := range leftover {
			node, _ := g.NodeByID(id)
			sequence = append(sequence, node)
		}
	}

	return sequence
}
