package compose

import (
	"github.com/born-ml/onnxkit/internal/onnx"
)

// definedNames returns every tensor name g defines (inputs, initializers, node outputs,
// and the same inside subgraphs) in order of first appearance.
func definedNames(g *onnx.GraphProto) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	var walk func(g *onnx.GraphProto)
	walk = func(g *onnx.GraphProto) {
		for i := range g.Inputs {
			add(g.Inputs[i].Name)
		}
		for i := range g.Initializers {
			add(g.Initializers[i].Name)
		}
		for i := range g.Nodes {
			for _, sub := range g.Nodes[i].Subgraphs() {
				walk(sub)
			}
			for _, name := range g.Nodes[i].Outputs {
				add(name)
			}
		}
	}
	walk(g)
	return out
}

// nodeNames returns the non-empty node names of g and its subgraphs.
func nodeNames(g *onnx.GraphProto) []string {
	var out []string
	for i := range g.Nodes {
		if g.Nodes[i].Name != "" {
			out = append(out, g.Nodes[i].Name)
		}
		for _, sub := range g.Nodes[i].Subgraphs() {
			out = append(out, nodeNames(sub)...)
		}
	}
	return out
}

// renameGraph rewrites every tensor reference of g through tensors and every node name
// through nodes, recursing into subgraphs. Names missing from a map are kept. g is modified
// in place; callers pass a clone.
func renameGraph(g *onnx.GraphProto, tensors, nodes map[string]string) {
	sub := func(name string) string {
		if to, ok := tensors[name]; ok {
			return to
		}
		return name
	}
	for _, list := range [][]onnx.ValueInfoProto{g.Inputs, g.Outputs, g.ValueInfo} {
		for i := range list {
			list[i].Name = sub(list[i].Name)
		}
	}
	for i := range g.Initializers {
		g.Initializers[i].Name = sub(g.Initializers[i].Name)
	}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		for j := range n.Inputs {
			n.Inputs[j] = sub(n.Inputs[j])
		}
		for j := range n.Outputs {
			n.Outputs[j] = sub(n.Outputs[j])
		}
		if to, ok := nodes[n.Name]; ok {
			n.Name = to
		}
		for _, sg := range n.Subgraphs() {
			renameGraph(sg, tensors, nodes)
		}
	}
}
