package onnx

import "slices"

// DefaultDomain is the canonical name of the default operator domain. "ai.onnx" is an alias.
const DefaultDomain = ""

// CanonicalDomain maps the "ai.onnx" alias to the default domain.
func CanonicalDomain(domain string) string {
	if domain == "ai.onnx" {
		return DefaultDomain
	}
	return domain
}

// OpsetVersion returns the imported opset version for domain.
func (m *ModelProto) OpsetVersion(domain string) (int64, bool) {
	domain = CanonicalDomain(domain)
	for _, opset := range m.OpsetImport {
		if CanonicalDomain(opset.Domain) == domain {
			return opset.Version, true
		}
	}
	return 0, false
}

// SetOpsetVersion sets the imported version for domain, adding an import if needed.
func (m *ModelProto) SetOpsetVersion(domain string, version int64) {
	domain = CanonicalDomain(domain)
	for i := range m.OpsetImport {
		if CanonicalDomain(m.OpsetImport[i].Domain) == domain {
			m.OpsetImport[i].Version = version
			return
		}
	}
	m.OpsetImport = append(m.OpsetImport, OperatorSetID{Domain: domain, Version: version})
}

// Metadata returns model metadata as key-value pairs.
func (m *ModelProto) Metadata() map[string]string {
	meta := make(map[string]string, len(m.MetadataProps)+3)
	for _, prop := range m.MetadataProps {
		meta[prop.Key] = prop.Value
	}
	meta["producer_name"] = m.ProducerName
	meta["producer_version"] = m.ProducerVersion
	meta["domain"] = m.Domain
	return meta
}

// Clone returns a structural copy of the model. Nodes, names, attributes and type
// annotations are copied; tensor payloads (raw and typed data slices) are shared, since no
// operation in this module mutates them.
func (m *ModelProto) Clone() *ModelProto {
	if m == nil {
		return nil
	}
	out := *m
	out.Graph = m.Graph.Clone()
	out.OpsetImport = cloneSlice(m.OpsetImport, func(o OperatorSetID) OperatorSetID {
		o.Unknown = slices.Clone(o.Unknown)
		return o
	})
	out.MetadataProps = cloneSlice(m.MetadataProps, func(e StringStringEntry) StringStringEntry {
		e.Unknown = slices.Clone(e.Unknown)
		return e
	})
	out.Unknown = slices.Clone(m.Unknown)
	return &out
}

// Clone returns a structural copy of the graph.
func (g *GraphProto) Clone() *GraphProto {
	if g == nil {
		return nil
	}
	out := *g
	out.Nodes = cloneSlice(g.Nodes, func(n NodeProto) NodeProto { return *n.Clone() })
	out.Initializers = cloneSlice(g.Initializers, func(t TensorProto) TensorProto { return *t.Clone() })
	out.Inputs = cloneSlice(g.Inputs, func(v ValueInfoProto) ValueInfoProto { return *v.Clone() })
	out.Outputs = cloneSlice(g.Outputs, func(v ValueInfoProto) ValueInfoProto { return *v.Clone() })
	out.ValueInfo = cloneSlice(g.ValueInfo, func(v ValueInfoProto) ValueInfoProto { return *v.Clone() })
	out.Unknown = slices.Clone(g.Unknown)
	return &out
}

// Clone returns a structural copy of the node.
func (n *NodeProto) Clone() *NodeProto {
	out := *n
	out.Inputs = slices.Clone(n.Inputs)
	out.Outputs = slices.Clone(n.Outputs)
	out.Attributes = cloneSlice(n.Attributes, func(a AttributeProto) AttributeProto { return *a.Clone() })
	out.Unknown = slices.Clone(n.Unknown)
	return &out
}

// Clone returns a structural copy of the attribute; nested graphs are copied.
func (a *AttributeProto) Clone() *AttributeProto {
	out := *a
	out.S = slices.Clone(a.S)
	if a.T != nil {
		out.T = a.T.Clone()
	}
	out.G = a.G.Clone()
	out.Floats = slices.Clone(a.Floats)
	out.Ints = slices.Clone(a.Ints)
	out.Strings = slices.Clone(a.Strings)
	out.Tensors = cloneSlice(a.Tensors, func(t TensorProto) TensorProto { return *t.Clone() })
	out.Graphs = cloneSlice(a.Graphs, func(g GraphProto) GraphProto { return *g.Clone() })
	out.Unknown = slices.Clone(a.Unknown)
	return &out
}

// Clone copies the tensor header. Data slices are shared.
func (t *TensorProto) Clone() *TensorProto {
	out := *t
	out.Dims = slices.Clone(t.Dims)
	out.Unknown = slices.Clone(t.Unknown)
	return &out
}

// Clone returns a deep copy of the value info.
func (v *ValueInfoProto) Clone() *ValueInfoProto {
	out := *v
	out.Type = v.Type.Clone()
	out.Unknown = slices.Clone(v.Unknown)
	return &out
}

// Clone returns a deep copy of the type.
func (t *TypeProto) Clone() *TypeProto {
	if t == nil {
		return nil
	}
	out := *t
	out.TensorType = t.TensorType.Clone()
	out.Unknown = slices.Clone(t.Unknown)
	return &out
}

// Clone returns a deep copy of the tensor type.
func (t *TensorTypeProto) Clone() *TensorTypeProto {
	if t == nil {
		return nil
	}
	out := *t
	if t.Shape != nil {
		out.Shape = &TensorShapeProto{
			Dims: cloneSlice(t.Shape.Dims, func(d DimensionProto) DimensionProto {
				d.Unknown = slices.Clone(d.Unknown)
				return d
			}),
			Unknown: slices.Clone(t.Shape.Unknown),
		}
	}
	out.Unknown = slices.Clone(t.Unknown)
	return &out
}

func cloneSlice[T any](in []T, clone func(T) T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	for i := range in {
		out[i] = clone(in[i])
	}
	return out
}

// InputNames returns the names of the declared graph inputs.
func (g *GraphProto) InputNames() []string {
	return valueInfoNames(g.Inputs)
}

// OutputNames returns the names of the declared graph outputs.
func (g *GraphProto) OutputNames() []string {
	return valueInfoNames(g.Outputs)
}

func valueInfoNames(vis []ValueInfoProto) []string {
	names := make([]string, len(vis))
	for i := range vis {
		names[i] = vis[i].Name
	}
	return names
}

// Initializer returns the initializer named name.
func (g *GraphProto) Initializer(name string) (*TensorProto, bool) {
	for i := range g.Initializers {
		if g.Initializers[i].Name == name {
			return &g.Initializers[i], true
		}
	}
	return nil, false
}

// Input returns the declared graph input named name.
func (g *GraphProto) Input(name string) (*ValueInfoProto, bool) {
	return findValueInfo(g.Inputs, name)
}

// Output returns the declared graph output named name.
func (g *GraphProto) Output(name string) (*ValueInfoProto, bool) {
	return findValueInfo(g.Outputs, name)
}

// DeclaredType returns the declared type of name from inputs, outputs or value_info.
func (g *GraphProto) DeclaredType(name string) (*TypeProto, bool) {
	for _, list := range [][]ValueInfoProto{g.Inputs, g.Outputs, g.ValueInfo} {
		if vi, ok := findValueInfo(list, name); ok && vi.Type != nil {
			return vi.Type, true
		}
	}
	return nil, false
}

func findValueInfo(vis []ValueInfoProto, name string) (*ValueInfoProto, bool) {
	for i := range vis {
		if vis[i].Name == name {
			return &vis[i], true
		}
	}
	return nil, false
}

// Attribute returns the attribute named name.
func (n *NodeProto) Attribute(name string) (*AttributeProto, bool) {
	for i := range n.Attributes {
		if n.Attributes[i].Name == name {
			return &n.Attributes[i], true
		}
	}
	return nil, false
}

// RemoveAttribute deletes the attribute named name and reports whether it existed.
func (n *NodeProto) RemoveAttribute(name string) bool {
	for i := range n.Attributes {
		if n.Attributes[i].Name == name {
			n.Attributes = slices.Delete(n.Attributes, i, i+1)
			if len(n.Attributes) == 0 {
				n.Attributes = nil
			}
			return true
		}
	}
	return false
}

// SetAttribute replaces the attribute with the same name, or appends it.
func (n *NodeProto) SetAttribute(attr AttributeProto) {
	for i := range n.Attributes {
		if n.Attributes[i].Name == attr.Name {
			n.Attributes[i] = attr
			return
		}
	}
	n.Attributes = append(n.Attributes, attr)
}

// AttrInt returns an integer attribute or default value.
func (n *NodeProto) AttrInt(name string, defaultVal int64) int64 {
	if a, ok := n.Attribute(name); ok {
		return a.I
	}
	return defaultVal
}

// AttrInts returns an integer array attribute.
func (n *NodeProto) AttrInts(name string) []int64 {
	if a, ok := n.Attribute(name); ok {
		return a.Ints
	}
	return nil
}

// AttrFloat returns a float attribute or default value.
func (n *NodeProto) AttrFloat(name string, defaultVal float32) float32 {
	if a, ok := n.Attribute(name); ok {
		return a.F
	}
	return defaultVal
}

// AttrString returns a string attribute or default value.
func (n *NodeProto) AttrString(name, defaultVal string) string {
	if a, ok := n.Attribute(name); ok {
		return string(a.S)
	}
	return defaultVal
}

// EffectiveType returns the declared attribute type, or infers it from the populated value
// field for attributes written without one.
//
//nolint:gocyclo,cyclop // One branch per value field.
func (a *AttributeProto) EffectiveType() AttributeType {
	if a.Type != AttributeProtoUndefined {
		return a.Type
	}
	switch {
	case a.G != nil:
		return AttributeProtoGraph
	case a.T != nil:
		return AttributeProtoTensor
	case len(a.Graphs) > 0:
		return AttributeProtoGraphs
	case len(a.Tensors) > 0:
		return AttributeProtoTensors
	case len(a.Strings) > 0:
		return AttributeProtoStrings
	case len(a.Ints) > 0:
		return AttributeProtoInts
	case len(a.Floats) > 0:
		return AttributeProtoFloats
	case a.S != nil:
		return AttributeProtoString
	case a.F != 0:
		return AttributeProtoFloat
	case a.I != 0:
		return AttributeProtoInt
	default:
		return AttributeProtoUndefined
	}
}

// Subgraphs returns pointers to every graph held by the node's attributes.
func (n *NodeProto) Subgraphs() []*GraphProto {
	var out []*GraphProto
	for i := range n.Attributes {
		a := &n.Attributes[i]
		if a.G != nil {
			out = append(out, a.G)
		}
		for j := range a.Graphs {
			out = append(out, &a.Graphs[j])
		}
	}
	return out
}
