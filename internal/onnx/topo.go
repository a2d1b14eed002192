package onnx

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/goombaio/dag"
)

// SortTopologically returns a copy of g whose nodes are ordered so that every node follows
// the producers of its inputs. The sort is stable: nodes already in a valid order keep it.
// Returns ErrCycle when no such order exists.
func SortTopologically(g *GraphProto) (*GraphProto, error) {
	d, err := nodeDAG(g)
	if err != nil {
		return nil, err
	}

	indeg := make([]int, len(g.Nodes))
	for i := range g.Nodes {
		v, err := d.GetVertex(strconv.Itoa(i))
		if err != nil {
			return nil, err
		}
		preds, err := d.Predecessors(v)
		if err != nil {
			return nil, err
		}
		indeg[i] = len(preds)
	}

	// Kahn's algorithm, always taking the lowest original index that is ready.
	var ready []int
	for i, n := range indeg {
		if n == 0 {
			ready = append(ready, i)
		}
	}
	order := make([]int, 0, len(g.Nodes))
	for len(ready) > 0 {
		sort.Ints(ready)
		i := ready[0]
		ready = ready[1:]
		order = append(order, i)

		v, err := d.GetVertex(strconv.Itoa(i))
		if err != nil {
			return nil, err
		}
		succs, err := d.Successors(v)
		if err != nil {
			return nil, err
		}
		for _, s := range succs {
			j := s.Value.(int)
			indeg[j]--
			if indeg[j] == 0 {
				ready = append(ready, j)
			}
		}
	}
	if len(order) != len(g.Nodes) {
		return nil, fmt.Errorf("%w: %d of %d nodes unreachable", ErrCycle, len(g.Nodes)-len(order), len(g.Nodes))
	}

	out := g.Clone()
	for pos, i := range order {
		out.Nodes[pos] = *g.Nodes[i].Clone()
	}
	return out, nil
}

// nodeDAG builds a vertex per node and an edge from each producer node to each consumer.
func nodeDAG(g *GraphProto) (*dag.DAG, error) {
	d := dag.NewDAG()
	vertices := make([]*dag.Vertex, len(g.Nodes))
	producer := make(map[string]int)
	for i := range g.Nodes {
		vertices[i] = dag.NewVertex(strconv.Itoa(i), i)
		if err := d.AddVertex(vertices[i]); err != nil {
			return nil, err
		}
		for _, out := range g.Nodes[i].Outputs {
			if out != "" {
				producer[out] = i
			}
		}
	}

	type edge struct{ from, to int }
	seen := make(map[edge]bool)
	for i := range g.Nodes {
		for _, in := range referencedNames(&g.Nodes[i]) {
			j, ok := producer[in]
			if !ok || seen[edge{j, i}] {
				continue
			}
			if j == i {
				return nil, fmt.Errorf("%w: node %d consumes its own output %q", ErrCycle, i, in)
			}
			seen[edge{j, i}] = true
			if err := d.AddEdge(vertices[j], vertices[i]); err != nil {
				return nil, err
			}
		}
	}
	return d, nil
}

// referencedNames returns the node inputs plus every outer-scope name its subgraphs read.
func referencedNames(n *NodeProto) []string {
	names := append([]string(nil), n.Inputs...)
	for _, sub := range n.Subgraphs() {
		names = append(names, OuterScopeNames(sub)...)
	}
	return names
}

// OuterScopeNames returns the names a graph reads without producing them itself, i.e. the
// names it captures from an enclosing scope.
func OuterScopeNames(g *GraphProto) []string {
	local := make(map[string]bool)
	for i := range g.Inputs {
		local[g.Inputs[i].Name] = true
	}
	for i := range g.Initializers {
		local[g.Initializers[i].Name] = true
	}
	var captured []string
	seen := make(map[string]bool)
	capture := func(name string) {
		if name != "" && !local[name] && !seen[name] {
			seen[name] = true
			captured = append(captured, name)
		}
	}
	for i := range g.Nodes {
		for _, in := range referencedNames(&g.Nodes[i]) {
			capture(in)
		}
		for _, out := range g.Nodes[i].Outputs {
			local[out] = true
		}
	}
	for i := range g.Outputs {
		capture(g.Outputs[i].Name)
	}
	return captured
}
