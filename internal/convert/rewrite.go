package convert

import (
	"fmt"

	"github.com/born-ml/onnxkit/internal/onnx"
)

// rewrite is the state an adapter sees while one graph is converted. Nested graphs get their
// own rewrite with parent set, so constants of enclosing graphs stay visible.
type rewrite struct {
	conv    *conversion
	graph   *onnx.GraphProto
	parent  *rewrite
	orphans []string // inputs adapters stopped consuming; pruned when unused
}

// unique returns a fresh tensor name derived from n.
func (r *rewrite) unique(n *onnx.NodeProto, suffix string) string {
	base := n.Name
	if base == "" && len(n.Outputs) > 0 {
		base = n.Outputs[0]
	}
	return r.conv.namer.Unique(base + "_" + suffix)
}

// addInitializer stores t in the current graph and records its type.
func (r *rewrite) addInitializer(t onnx.TensorProto) string {
	r.graph.Initializers = append(r.graph.Initializers, t)
	dims := make([]onnx.DimensionProto, len(t.Dims))
	for i, d := range t.Dims {
		dims[i] = onnx.Dim(d)
	}
	r.conv.types[t.Name] = onnx.MakeTensorType(t.DataType, dims)
	return t.Name
}

// release marks name as no longer consumed by a rewritten node.
func (r *rewrite) release(name string) {
	if name != "" {
		r.orphans = append(r.orphans, name)
	}
}

// setType records the type of a tensor introduced by an adapter.
func (r *rewrite) setType(name string, typ *onnx.TypeProto) {
	if typ != nil {
		r.conv.types[name] = typ
	}
}

func (r *rewrite) typeOf(name string) *onnx.TypeProto {
	return r.conv.types[name]
}

// dims returns the shape of name when its rank is known.
func (r *rewrite) dims(name string) ([]onnx.DimensionProto, bool) {
	t := r.conv.types[name]
	if t == nil || t.TensorType == nil || t.TensorType.Shape == nil {
		return nil, false
	}
	return t.TensorType.Shape.Dims, true
}

func (r *rewrite) rank(name string) (int, bool) {
	dims, ok := r.dims(name)
	return len(dims), ok
}

// elemType returns the element type of name, FLOAT when unknown.
func (r *rewrite) elemType(name string) onnx.DataType {
	t := r.conv.types[name]
	if t == nil || t.TensorType == nil || t.TensorType.ElemType == onnx.TensorProtoUndefined {
		return onnx.TensorProtoFloat
	}
	return t.TensorType.ElemType
}

// constant returns the value of name when it is an initializer or the output of a Constant
// node, looking through enclosing graphs. Graph inputs shadow outer constants.
func (r *rewrite) constant(name string) (*onnx.TensorProto, bool) {
	for s := r; s != nil; s = s.parent {
		if t, ok := s.graph.Initializer(name); ok {
			return t, true
		}
		if _, ok := s.graph.Input(name); ok {
			return nil, false
		}
		for i := range s.graph.Nodes {
			n := &s.graph.Nodes[i]
			if n.OpType != "Constant" || onnx.CanonicalDomain(n.Domain) != onnx.DefaultDomain || len(n.Outputs) == 0 || n.Outputs[0] != name {
				continue
			}
			return constantValue(n)
		}
	}
	return nil, false
}

func constantValue(n *onnx.NodeProto) (*onnx.TensorProto, bool) {
	name := n.Outputs[0]
	for i := range n.Attributes {
		a := &n.Attributes[i]
		var t onnx.TensorProto
		switch a.Name {
		case "value":
			if a.T == nil {
				return nil, false
			}
			return a.T, true
		case "value_int":
			t = onnx.Int64Tensor(name, nil, []int64{a.I})
		case "value_ints":
			t = onnx.Int64Tensor(name, []int64{int64(len(a.Ints))}, a.Ints)
		case "value_float":
			t = onnx.Float32Tensor(name, nil, []float32{a.F})
		case "value_floats":
			t = onnx.Float32Tensor(name, []int64{int64(len(a.Floats))}, a.Floats)
		default:
			continue
		}
		return &t, true
	}
	return nil, false
}

// constInts reads input index of n as a constant integer list.
func (r *rewrite) constInts(n *onnx.NodeProto, index int, what string) ([]int64, error) {
	t, ok := r.constant(n.Inputs[index])
	if !ok {
		return nil, fmt.Errorf("%s input %q is not a constant", what, n.Inputs[index])
	}
	vals, ok := t.Int64s()
	if !ok {
		return nil, fmt.Errorf("%s input %q is not an integer tensor", what, n.Inputs[index])
	}
	return vals, nil
}

// constFloat reads input index of n as a constant scalar.
func (r *rewrite) constFloat(n *onnx.NodeProto, index int, what string) (float64, error) {
	t, ok := r.constant(n.Inputs[index])
	if !ok {
		return 0, fmt.Errorf("%s input %q is not a constant", what, n.Inputs[index])
	}
	vals, ok := t.Float64s()
	if !ok || len(vals) != 1 {
		return 0, fmt.Errorf("%s input %q is not a floating point scalar", what, n.Inputs[index])
	}
	return vals[0], nil
}

// scalar builds a scalar initializer of elem type.
func scalar(name string, elem onnx.DataType, v float64) (onnx.TensorProto, error) {
	switch elem {
	case onnx.TensorProtoFloat:
		return onnx.Float32Tensor(name, nil, []float32{float32(v)}), nil
	case onnx.TensorProtoDouble:
		return onnx.Float64Tensor(name, nil, []float64{v}), nil
	default:
		return onnx.TensorProto{}, fmt.Errorf("no scalar constant for element type %s", elem)
	}
}

// input returns input index of n, or "" when omitted.
func input(n *onnx.NodeProto, index int) string {
	if index < len(n.Inputs) {
		return n.Inputs[index]
	}
	return ""
}

// setInput sets input index of n, padding skipped optional inputs with "".
func setInput(n *onnx.NodeProto, index int, name string) {
	for len(n.Inputs) <= index {
		n.Inputs = append(n.Inputs, "")
	}
	n.Inputs[index] = name
	trimInputs(n)
}

// trimInputs drops trailing omitted inputs.
func trimInputs(n *onnx.NodeProto) {
	end := len(n.Inputs)
	for end > 0 && n.Inputs[end-1] == "" {
		end--
	}
	n.Inputs = n.Inputs[:end]
}

// prune removes initializers and Constant nodes whose only consumers were rewritten away,
// along with their value_info.
func (r *rewrite) prune() {
	if len(r.orphans) == 0 {
		return
	}
	used := make(map[string]bool)
	collectUses(r.graph, used)
	for i := range r.graph.Outputs {
		used[r.graph.Outputs[i].Name] = true
	}
	for i := range r.graph.Inputs {
		used[r.graph.Inputs[i].Name] = true
	}

	dead := make(map[string]bool, len(r.orphans))
	for _, name := range r.orphans {
		if !used[name] {
			dead[name] = true
		}
	}
	if len(dead) == 0 {
		return
	}

	inits := r.graph.Initializers[:0]
	for _, t := range r.graph.Initializers {
		if !dead[t.Name] {
			inits = append(inits, t)
		}
	}
	r.graph.Initializers = inits
	if len(r.graph.Initializers) == 0 {
		r.graph.Initializers = nil
	}

	nodes := r.graph.Nodes[:0]
	for _, n := range r.graph.Nodes {
		if n.OpType == "Constant" && len(n.Outputs) == 1 && dead[n.Outputs[0]] {
			continue
		}
		nodes = append(nodes, n)
	}
	r.graph.Nodes = nodes

	infos := r.graph.ValueInfo[:0]
	for _, vi := range r.graph.ValueInfo {
		if !dead[vi.Name] {
			infos = append(infos, vi)
		}
	}
	r.graph.ValueInfo = infos
	if len(r.graph.ValueInfo) == 0 {
		r.graph.ValueInfo = nil
	}
}

// collectUses records every name consumed by the nodes of g and its subgraphs.
func collectUses(g *onnx.GraphProto, used map[string]bool) {
	for i := range g.Nodes {
		for _, in := range g.Nodes[i].Inputs {
			used[in] = true
		}
		for _, sub := range g.Nodes[i].Subgraphs() {
			collectUses(sub, used)
			for j := range sub.Outputs {
				used[sub.Outputs[j].Name] = true
			}
		}
	}
}
