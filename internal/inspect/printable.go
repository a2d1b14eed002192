package inspect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/born-ml/onnxkit/internal/onnx"
)

// PrintableGraph renders g in the familiar text form:
//
//	graph softmax (
//	  %X[FLOAT, 1x1000]
//	) {
//	  %Y = Softmax[axis = 1](%X)
//	  return %Y
//	}
//
// Graph attributes are printed after the node that owns them.
func PrintableGraph(g *onnx.GraphProto) string {
	var b strings.Builder
	writeGraph(&b, g, "")
	return strings.TrimRight(b.String(), "\n")
}

func writeGraph(b *strings.Builder, g *onnx.GraphProto, indent string) {
	fmt.Fprintf(b, "%sgraph %s (\n", indent, g.Name)
	var inputs []string
	for i := range g.Inputs {
		if _, ok := g.Initializer(g.Inputs[i].Name); !ok {
			inputs = append(inputs, valueInfoString(&g.Inputs[i]))
		}
	}
	writeList(b, inputs, indent)
	if len(g.Initializers) > 0 {
		inits := make([]string, len(g.Initializers))
		for i := range g.Initializers {
			t := &g.Initializers[i]
			inits[i] = "%" + t.Name + "[" + t.DataType.String() + tensorDims(t.Dims) + "]"
		}
		fmt.Fprintf(b, "%s) initializers (\n", indent)
		writeList(b, inits, indent)
	}
	fmt.Fprintf(b, "%s) {\n", indent)

	for i := range g.Nodes {
		n := &g.Nodes[i]
		b.WriteString(indent + "  " + nodeString(n) + "\n")
		for _, sub := range n.Subgraphs() {
			writeGraph(b, sub, indent+"    ")
		}
	}
	outputs := make([]string, len(g.Outputs))
	for i := range g.Outputs {
		outputs[i] = "%" + g.Outputs[i].Name
	}
	fmt.Fprintf(b, "%s  return %s\n", indent, strings.Join(outputs, ", "))
	fmt.Fprintf(b, "%s}\n", indent)
}

func writeList(b *strings.Builder, items []string, indent string) {
	for i, item := range items {
		b.WriteString(indent + "  " + item)
		if i < len(items)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
}

func valueInfoString(vi *onnx.ValueInfoProto) string {
	s := "%" + vi.Name
	if vi.Type == nil || vi.Type.TensorType == nil {
		return s
	}
	tt := vi.Type.TensorType
	s += "[" + tt.ElemType.String()
	if tt.Shape != nil && len(tt.Shape.Dims) > 0 {
		dims := make([]string, len(tt.Shape.Dims))
		for i, d := range tt.Shape.Dims {
			dims[i] = dimString(d)
		}
		s += ", " + strings.Join(dims, "x")
	}
	return s + "]"
}

func tensorDims(dims []int64) string {
	if len(dims) == 0 {
		return ""
	}
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = strconv.FormatInt(d, 10)
	}
	return ", " + strings.Join(parts, "x")
}

func nodeString(n *onnx.NodeProto) string {
	var b strings.Builder
	outs := make([]string, len(n.Outputs))
	for i, o := range n.Outputs {
		outs[i] = "%" + o
	}
	b.WriteString(strings.Join(outs, ", "))
	b.WriteString(" = ")
	if n.Domain != "" {
		b.WriteString(n.Domain + ".")
	}
	b.WriteString(n.OpType)
	if len(n.Attributes) > 0 {
		attrs := make([]string, len(n.Attributes))
		for i := range n.Attributes {
			attrs[i] = n.Attributes[i].Name + " = " + attributeValue(&n.Attributes[i])
		}
		b.WriteString("[" + strings.Join(attrs, ", ") + "]")
	}
	ins := make([]string, len(n.Inputs))
	for i, in := range n.Inputs {
		if in != "" {
			ins[i] = "%" + in
		}
	}
	b.WriteString("(" + strings.Join(ins, ", ") + ")")
	return b.String()
}

func attributeValue(a *onnx.AttributeProto) string {
	switch a.EffectiveType() {
	case onnx.AttributeProtoFloat:
		return formatFloat(a.F)
	case onnx.AttributeProtoInt:
		return strconv.FormatInt(a.I, 10)
	case onnx.AttributeProtoString:
		return "'" + string(a.S) + "'"
	case onnx.AttributeProtoTensor:
		return "<Tensor>"
	case onnx.AttributeProtoGraph:
		name := ""
		if a.G != nil {
			name = a.G.Name
		}
		return "<graph " + name + ">"
	case onnx.AttributeProtoFloats:
		parts := make([]string, len(a.Floats))
		for i, f := range a.Floats {
			parts[i] = formatFloat(f)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case onnx.AttributeProtoInts:
		parts := make([]string, len(a.Ints))
		for i, v := range a.Ints {
			parts[i] = strconv.FormatInt(v, 10)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case onnx.AttributeProtoStrings:
		parts := make([]string, len(a.Strings))
		for i, s := range a.Strings {
			parts[i] = "'" + string(s) + "'"
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case onnx.AttributeProtoTensors:
		return "[" + strings.TrimSuffix(strings.Repeat("<Tensor>, ", len(a.Tensors)), ", ") + "]"
	case onnx.AttributeProtoGraphs:
		parts := make([]string, len(a.Graphs))
		for i := range a.Graphs {
			parts[i] = "<graph " + a.Graphs[i].Name + ">"
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return "<unknown>"
	}
}

func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}
