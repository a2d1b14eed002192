package onnx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func opTypes(g *GraphProto) []string {
	out := make([]string, len(g.Nodes))
	for i := range g.Nodes {
		out[i] = g.Nodes[i].OpType
	}
	return out
}

func TestSortTopologically(t *testing.T) {
	g := MakeGraph("g",
		[]NodeProto{
			MakeNode("Sigmoid", []string{"b"}, []string{"c"}),
			MakeNode("Relu", []string{"a"}, []string{"b"}),
			MakeNode("Add", []string{"b", "c"}, []string{"d"}),
			MakeNode("Neg", []string{"a"}, []string{"e"}),
		},
		[]ValueInfoProto{MakeTensorValueInfo("a", TensorProtoFloat, nil)},
		[]ValueInfoProto{MakeTensorValueInfo("d", TensorProtoFloat, nil), MakeTensorValueInfo("e", TensorProtoFloat, nil)},
	)

	sorted, err := SortTopologically(g)
	require.NoError(t, err)
	assert.Equal(t, []string{"Relu", "Sigmoid", "Add", "Neg"}, opTypes(sorted))

	// Input untouched.
	assert.Equal(t, "Sigmoid", g.Nodes[0].OpType)
}

func TestSortTopologicallyKeepsValidOrder(t *testing.T) {
	g := richModel().Graph
	sorted, err := SortTopologically(g)
	require.NoError(t, err)
	assert.Equal(t, g, sorted)
}

func TestSortTopologicallyCycle(t *testing.T) {
	g := MakeGraph("g",
		[]NodeProto{
			MakeNode("Add", []string{"a", "y"}, []string{"x"}),
			MakeNode("Relu", []string{"x"}, []string{"y"}),
		},
		[]ValueInfoProto{MakeTensorValueInfo("a", TensorProtoFloat, nil)},
		nil,
	)
	_, err := SortTopologically(g)
	assert.ErrorIs(t, err, ErrCycle)

	self := MakeGraph("g", []NodeProto{MakeNode("Add", []string{"a", "x"}, []string{"x"})}, nil, nil)
	_, err = SortTopologically(self)
	assert.ErrorIs(t, err, ErrCycle)
}

func TestSortTopologicallyFollowsCaptures(t *testing.T) {
	body := MakeGraph("then",
		[]NodeProto{MakeNode("Identity", []string{"outer"}, []string{"r"})},
		nil,
		[]ValueInfoProto{MakeTensorValueInfo("r", TensorProtoFloat, nil)},
	)
	g := MakeGraph("g",
		[]NodeProto{
			MakeNode("If", []string{"cond"}, []string{"y"}, AttrGraph("then_branch", body)),
			MakeNode("Relu", []string{"x"}, []string{"outer"}),
		},
		nil, nil,
	)

	assert.Equal(t, []string{"outer"}, OuterScopeNames(body))

	sorted, err := SortTopologically(g)
	require.NoError(t, err)
	assert.Equal(t, []string{"Relu", "If"}, opTypes(sorted))
}

func TestNamer(t *testing.T) {
	n := NewNamer(richModel().Graph)

	assert.True(t, n.Used("x"))
	assert.True(t, n.Used("y")) // produced inside a subgraph
	assert.False(t, n.Used("x_1"))

	assert.Equal(t, "x_1", n.Fresh("x"))
	assert.Equal(t, "x_2", n.Fresh("x"))

	n.Reserve("axes_1")
	assert.Equal(t, "axes_2", n.Fresh("axes"))
	assert.Equal(t, "tensor_1", n.Fresh(""))

	assert.Equal(t, "scale", n.Unique("scale"))
	assert.Equal(t, "scale_1", n.Unique("scale"))
	assert.True(t, n.Used("scale"))
}

func TestNamerKeepsNodeNamesSeparate(t *testing.T) {
	relu := MakeNode("Relu", []string{"x"}, []string{"y"})
	relu.Name = "act"
	g := MakeGraph("g", []NodeProto{relu}, nil, nil)

	tensors := NewNamer(g)
	assert.True(t, tensors.Used("x"))
	assert.False(t, tensors.Used("act"))

	nodes := NewNodeNamer(g)
	assert.True(t, nodes.Used("act"))
	assert.False(t, nodes.Used("y"))
	assert.Equal(t, "act_1", nodes.Fresh("act"))
}

func TestSymbolTable(t *testing.T) {
	g := richModel().Graph
	s := Index(g)

	p, ok := s.Producer("x")
	require.True(t, ok)
	assert.Equal(t, ProducedByInput, p.Kind)

	p, ok = s.Producer("axes")
	require.True(t, ok)
	assert.Equal(t, ProducedByInitializer, p.Kind)

	p, ok = s.Producer("squeezed")
	require.True(t, ok)
	assert.Equal(t, Producer{Kind: ProducedByNode, Node: 1, Output: 0}, p)

	_, ok = s.Producer("")
	assert.False(t, ok)

	assert.Equal(t, []int{1}, s.Consumers("axes"))
	assert.Equal(t, []int{1}, s.Consumers("clipped"))
	assert.Empty(t, s.Consumers("z"))
}
