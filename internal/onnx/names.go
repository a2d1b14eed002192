package onnx

import "strconv"

// Namer hands out names that collide with nothing already used in a set of graphs.
// Tensor names and node names are separate namespaces, so a Namer covers one of them.
// Generated names are deterministic: base_1, base_2, ... in request order.
type Namer struct {
	used  map[string]struct{}
	nodes bool
}

// NewNamer returns a Namer that treats every tensor name in graphs (and their subgraphs) as
// taken.
func NewNamer(graphs ...*GraphProto) *Namer {
	n := &Namer{used: make(map[string]struct{})}
	for _, g := range graphs {
		n.reserveGraph(g)
	}
	return n
}

// NewNodeNamer returns a Namer over node names, treating every node name in graphs (and their
// subgraphs) as taken.
func NewNodeNamer(graphs ...*GraphProto) *Namer {
	n := &Namer{used: make(map[string]struct{}), nodes: true}
	for _, g := range graphs {
		n.reserveGraph(g)
	}
	return n
}

// Reserve marks names as taken.
func (n *Namer) Reserve(names ...string) {
	for _, name := range names {
		if name != "" {
			n.used[name] = struct{}{}
		}
	}
}

// Used reports whether name is taken.
func (n *Namer) Used(name string) bool {
	_, ok := n.used[name]
	return ok
}

// Fresh returns base with the smallest numeric suffix that is not taken, and takes it.
func (n *Namer) Fresh(base string) string {
	if base == "" {
		base = "tensor"
	}
	for i := 1; ; i++ {
		candidate := base + "_" + strconv.Itoa(i)
		if !n.Used(candidate) {
			n.used[candidate] = struct{}{}
			return candidate
		}
	}
}

// Unique returns base itself when it is free, otherwise Fresh(base). Either way the result is
// taken.
func (n *Namer) Unique(base string) string {
	if base != "" && !n.Used(base) {
		n.used[base] = struct{}{}
		return base
	}
	return n.Fresh(base)
}

func (n *Namer) reserveGraph(g *GraphProto) {
	if g == nil {
		return
	}
	if n.nodes {
		for i := range g.Nodes {
			n.Reserve(g.Nodes[i].Name)
			for _, sub := range g.Nodes[i].Subgraphs() {
				n.reserveGraph(sub)
			}
		}
		return
	}
	for i := range g.Inputs {
		n.Reserve(g.Inputs[i].Name)
	}
	for i := range g.Outputs {
		n.Reserve(g.Outputs[i].Name)
	}
	for i := range g.ValueInfo {
		n.Reserve(g.ValueInfo[i].Name)
	}
	for i := range g.Initializers {
		n.Reserve(g.Initializers[i].Name)
	}
	for i := range g.Nodes {
		node := &g.Nodes[i]
		n.Reserve(node.Inputs...)
		n.Reserve(node.Outputs...)
		for _, sub := range node.Subgraphs() {
			n.reserveGraph(sub)
		}
	}
}
